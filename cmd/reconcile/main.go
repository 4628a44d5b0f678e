package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/JGooseK41/NFTServiceApp-sub013/internal/obs"
	"github.com/JGooseK41/NFTServiceApp-sub013/internal/reconcile"
	"github.com/JGooseK41/NFTServiceApp-sub013/internal/store/pg"
	"github.com/JGooseK41/NFTServiceApp-sub013/internal/tron"
)

func main() {
	log.SetFlags(0)
	var (
		dsn           = flag.String("dsn", os.Getenv("NFTSERVE_PG_DSN"), "PostgreSQL DSN")
		wallet        = flag.String("wallet", "", "Wallet whose served notices to reconcile")
		idList        = flag.String("ids", "", "Comma-separated expected alert token ids")
		tronURL       = flag.String("tron-url", os.Getenv("NFTSERVE_TRON_URL"), "TRON node HTTP API base URL")
		contract      = flag.String("contract", os.Getenv("NFTSERVE_CONTRACT"), "Service contract address")
		apiKey        = flag.String("api-key", os.Getenv("NFTSERVE_TRON_API_KEY"), "TronGrid API key")
		dryRun        = flag.Bool("dry-run", false, "Report without inserting placeholder records")
		repairColumns = flag.Bool("repair-columns", false, "Cast drifted integer id columns back to text")
		driftOnly     = flag.Bool("drift", false, "Only flag recipient drift, never insert")
	)
	flag.Parse()

	if *dsn == "" {
		log.Fatal("missing DSN: provide via -dsn or NFTSERVE_PG_DSN")
	}

	obs.Init()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	store, err := pg.Open(*dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer store.DB().Close()

	if *repairColumns {
		applied, failures := reconcile.NewColumnRepair(store.DB()).Repair(ctx)
		for _, col := range applied {
			log.Printf("repaired column %s", col)
		}
		for _, col := range failures {
			log.Printf("failed to repair column %s", col)
		}
		if len(failures) > 0 {
			os.Exit(1)
		}
		if *wallet == "" {
			return
		}
	}

	if *wallet == "" || *idList == "" {
		log.Fatal("usage: reconcile -wallet <addr> -ids <id,id,...> [-dry-run] [-drift]")
	}
	ids := splitIDs(*idList)

	opts := []reconcile.Option{reconcile.WithDryRun(*dryRun)}
	if *tronURL != "" && *contract != "" {
		client := tron.NewClient(*tronURL, *contract, *wallet, tron.WithAPIKey(*apiKey))
		opts = append(opts, reconcile.WithChain(tron.NewRegistry(client)))
	}
	svc := reconcile.NewService(store, opts...)

	if *driftOnly {
		flags, err := svc.CheckRecipientDrift(ctx, *wallet, ids)
		if err != nil {
			log.Fatalf("drift check: %v", err)
		}
		printJSON(map[string]any{"flags": flags})
		return
	}

	report, err := svc.RepairMissing(ctx, *wallet, ids)
	if err != nil {
		log.Fatalf("repair: %v", err)
	}
	printJSON(report)
	if len(report.Errors) > 0 {
		os.Exit(1)
	}
}

func splitIDs(raw string) []string {
	var out []string
	for _, v := range strings.Split(raw, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatalf("encode report: %v", err)
	}
	fmt.Println(string(data))
}
