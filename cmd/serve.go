package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/enrich-cli/internal/monitoring"
	"github.com/sells-group/enrich-cli/internal/pipeline"
	"github.com/sells-group/enrich-cli/internal/store"
)

var (
	serveAddr    string
	serveOffline bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the enrichment API server",
	Long: `Serves the run journal and Prometheus metrics, and accepts enrichment
requests for server-side spreadsheets. Runs triggered over the API are
journaled and show up under GET /api/runs.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		var env *pipelineEnv
		var err error
		if serveOffline {
			env, err = initOfflinePipeline(ctx, true)
		} else {
			env, err = initPipeline(ctx, true)
		}
		if err != nil {
			return eris.Wrap(err, "serve: init pipeline")
		}
		defer env.Close()

		if cfg.Monitoring.WebhookURL != "" {
			checker := monitoring.NewChecker(
				monitoring.NewCollector(env.Store),
				monitoring.NewAlerter(cfg.Monitoring),
				cfg.Monitoring,
			)
			go checker.Run(ctx)
		}

		addr := serveAddr
		if addr == "" {
			addr = fmt.Sprintf(":%d", cfg.Server.Port)
		}

		srv := &http.Server{
			Addr:              addr,
			Handler:           newRouter(ctx, env),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config, e.g. :8080)")
	serveCmd.Flags().BoolVar(&serveOffline, "offline", false, "use stub clients (no API keys needed)")
	rootCmd.AddCommand(serveCmd)
}

// newRouter assembles the API surface. base is the server's lifetime
// context; async enrichment runs inherit it so shutdown cancels them
// at a batch boundary.
func newRouter(base context.Context, env *pipelineEnv) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Get("/api/runs", func(w http.ResponseWriter, req *http.Request) {
		limit := 50
		if raw := req.URL.Query().Get("limit"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil && n > 0 {
				limit = n
			}
		}
		runs, err := env.Store.ListRuns(req.Context(), limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "list runs failed")
			return
		}
		writeJSON(w, http.StatusOK, runs)
	})

	r.Get("/api/runs/{id}", func(w http.ResponseWriter, req *http.Request) {
		run, err := env.Store.GetRun(req.Context(), chi.URLParam(req, "id"))
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "get run failed")
			return
		}
		writeJSON(w, http.StatusOK, run)
	})

	r.Get("/api/summary", func(w http.ResponseWriter, req *http.Request) {
		sum, err := monitoring.NewCollector(env.Store).Collect(req.Context(), 200)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "summary failed")
			return
		}
		writeJSON(w, http.StatusOK, sum)
	})

	r.Post("/api/enrich", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Input  string `json:"input"`
			Output string `json:"output"`
			Limit  int    `json:"limit"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if body.Input == "" {
			writeError(w, http.StatusBadRequest, "input is required")
			return
		}

		go func() {
			res, err := env.Pipeline.Run(base, pipeline.Options{
				InputPath:  body.Input,
				OutputPath: body.Output,
				Limit:      body.Limit,
			})
			if err != nil {
				zap.L().Error("api enrichment failed",
					zap.String("input", body.Input),
					zap.Error(err))
				return
			}
			zap.L().Info("api enrichment complete",
				zap.String("input", body.Input),
				zap.String("run_id", res.RunID),
				zap.Int64("found", res.Stats.Found),
				zap.Int64("not_found", res.Stats.NotFound))
		}()

		writeJSON(w, http.StatusAccepted, map[string]string{
			"status": "accepted",
			"input":  body.Input,
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
