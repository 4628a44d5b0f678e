package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/JGooseK41/NFTServiceApp-sub013/internal/access"
	"github.com/JGooseK41/NFTServiceApp-sub013/internal/auth"
	"github.com/JGooseK41/NFTServiceApp-sub013/internal/blob"
	"github.com/JGooseK41/NFTServiceApp-sub013/internal/httpapi"
	"github.com/JGooseK41/NFTServiceApp-sub013/internal/notice"
	"github.com/JGooseK41/NFTServiceApp-sub013/internal/obs"
	"github.com/JGooseK41/NFTServiceApp-sub013/internal/store/pg"
	"github.com/JGooseK41/NFTServiceApp-sub013/internal/stream"
)

var (
	version = "1.2.0"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	addr := os.Getenv("NFTSERVE_LISTEN_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	var (
		db         *sql.DB
		notices    notice.Store
		accessSt   access.Store
		authStore  auth.Store
	)
	if dsn := os.Getenv("NFTSERVE_PG_DSN"); dsn != "" {
		pgStore, err := pg.Open(dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		db = pgStore.DB()
		notices = pgStore
		accessSt = pg.NewAccessStore(db)
		authStore = auth.NewPGStore(db)
	} else {
		log.Println("NFTSERVE_PG_DSN not set, using in-memory stores")
		notices = notice.NewInMemory()
		accessSt = access.NewInMemory()
		authStore = auth.NewInMemoryStore()
	}

	accessSvc := access.NewService(notices, accessSt)
	events := stream.New()
	documents := blob.NewGateway(blob.WithGatewayURL(os.Getenv("NFTSERVE_IPFS_GATEWAY")))

	api := httpapi.New(httpapi.Config{
		Ready:     httpapi.ReadyProbe{DB: db},
		Version:   version,
		Notices:   notices,
		Access:    accessSvc,
		Auth:      authStore,
		Stream:    events,
		Documents: documents,
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting nftserve-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if db != nil {
		_ = db.Close()
	}
	log.Println("Stopped")
}
