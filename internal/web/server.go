package web

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/hpungsan/wishpair/internal/config"
	"github.com/hpungsan/wishpair/internal/nudge"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

// NewServer creates the HTTP server for the wishpair API and pair board.
// scheduler may be nil when background nudges are disabled.
func NewServer(database *sql.DB, cfg *config.Config, engine *nudge.Engine, scheduler *nudge.Scheduler, log *logrus.Logger, version string) *http.Server {
	// Create sub-FS for templates (strip "templates/" prefix)
	templateSub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		log.Fatalf("failed to create template sub-FS: %v", err)
	}

	h := &Handlers{
		db:        database,
		cfg:       cfg,
		engine:    engine,
		scheduler: scheduler,
		renderer:  NewRenderer(templateSub, version),
		log:       log,
	}

	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Bind, cfg.Port),
		Handler:           requestLogger(log, securityHeaders(newMux(h))),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// newMux registers every route on a fresh ServeMux.
func newMux(h *Handlers) *http.ServeMux {
	staticSub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(fmt.Sprintf("static sub-FS: %v", err))
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.HandleHealth)

	mux.HandleFunc("POST /users", h.HandleCreateUser)
	mux.HandleFunc("GET /users/{id}", h.HandleGetUser)
	mux.HandleFunc("PATCH /users/{id}", h.HandleUpdateUser)
	mux.HandleFunc("GET /users/{id}/pair", h.HandleUserPair)

	mux.HandleFunc("POST /pairs/invite", h.HandleInvite)
	mux.HandleFunc("POST /pairs/join", h.HandleJoin)
	mux.HandleFunc("GET /pairs/{id}", h.HandleGetPair)
	mux.HandleFunc("POST /pairs/{id}/wishes", h.HandleCreateWish)
	mux.HandleFunc("GET /pairs/{id}/wishes", h.HandleListWishes)
	mux.HandleFunc("GET /pairs/{id}/board", h.HandleBoard)

	mux.HandleFunc("GET /wishes/{id}", h.HandleGetWish)
	mux.HandleFunc("PATCH /wishes/{id}", h.HandleUpdateWish)
	mux.HandleFunc("POST /wishes/{id}/complete", h.HandleCompleteWish)
	mux.HandleFunc("DELETE /wishes/{id}", h.HandleDeleteWish)

	mux.HandleFunc("POST /nudges/trigger", h.HandleTriggerNudges)
	mux.HandleFunc("GET /nudges/config", h.HandleNudgeConfig)

	if !h.cfg.DisableMetrics {
		mux.Handle("GET /metrics", promhttp.Handler())
	}

	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(staticSub)))

	return mux
}

// securityHeaders adds security-related HTTP headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self'; style-src 'self'")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// requestLogger logs one line per request at debug level.
func requestLogger(log *logrus.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"duration": time.Since(start).String(),
		}).Debug("request")
	})
}

// Run starts the HTTP server and handles graceful shutdown on SIGINT/SIGTERM.
// The scheduler, if any, is started with the server and stopped before it.
func Run(srv *http.Server, scheduler *nudge.Scheduler, log *logrus.Logger) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	if scheduler != nil {
		scheduler.Start()
	}

	log.Infof("wishpair API listening on http://%s", srv.Addr)

	if strings.Contains(srv.Addr, "0.0.0.0") || strings.Contains(srv.Addr, "::") {
		log.Warn("server is binding to all interfaces and may be accessible from the network")
	}

	select {
	case err := <-errCh:
		if scheduler != nil {
			<-scheduler.Stop().Done()
		}
		return err
	case <-sigCh:
		log.Info("shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if scheduler != nil {
			select {
			case <-scheduler.Stop().Done():
			case <-ctx.Done():
			}
		}
		return srv.Shutdown(ctx)
	}
}
