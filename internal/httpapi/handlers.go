package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/JGooseK41/NFTServiceApp-sub013/internal/access"
	"github.com/JGooseK41/NFTServiceApp-sub013/internal/auth"
	"github.com/JGooseK41/NFTServiceApp-sub013/internal/notice"
	"github.com/JGooseK41/NFTServiceApp-sub013/internal/obs"
	"github.com/JGooseK41/NFTServiceApp-sub013/internal/stream"
)

// ReadyProbe reports readiness, typically by pinging the database.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// DocumentFetcher resolves a validated content hash to document bytes.
type DocumentFetcher interface {
	Fetch(ctx context.Context, ipfsHash string) ([]byte, error)
}

// Config wires the HTTP layer to its backends.
type Config struct {
	Ready     ReadyProbe
	Version   string
	Notices   notice.Store
	Access    *access.Service
	Auth      auth.Store
	Stream    *stream.Stream
	Documents DocumentFetcher
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string
	notices    notice.Store
	access     *access.Service
	auth       auth.Store
	stream     *stream.Stream
	documents  DocumentFetcher
}

func New(cfg Config) *API {
	a := &API{
		mux:        http.NewServeMux(),
		readyProbe: cfg.Ready,
		version:    cfg.Version,
		notices:    cfg.Notices,
		access:     cfg.Access,
		auth:       cfg.Auth,
		stream:     cfg.Stream,
		documents:  cfg.Documents,
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	// wallet-facing surface
	a.mux.HandleFunc("/v1/access/check", a.handleAccessCheck)
	a.mux.HandleFunc("/v1/documents/", a.handleDocument)
	a.mux.HandleFunc("/v1/wallets/", a.handleWalletResource)

	// notice lifecycle
	a.mux.HandleFunc("/v1/notices", a.handleNoticesCollection)
	a.mux.HandleFunc("/v1/notices/", a.handleNoticeResource)

	// process server registry
	a.mux.HandleFunc("/v1/servers", a.handleServersCollection)
	a.mux.HandleFunc("/v1/servers/", a.handleServerResource)

	// admin auth + event stream
	a.mux.HandleFunc("/v1/auth/token", a.handleAuthToken)
	a.mux.HandleFunc("/v1/events", a.Stream)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the fully wrapped http.Handler.
func (a *API) Handler() http.Handler {
	h := a.withAuth(a.mux)
	h = MaxBodyBytes(h, 1<<20)
	h = RateLimit(h, 50, 25)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = RequestID(h)
	h = Logging(h)
	return obs.Instrument(h)
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "nftserve-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "nftserve-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}
