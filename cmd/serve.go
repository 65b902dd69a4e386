package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/anchorlab/anchorbench/internal/runlog"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve recorded runs over read-only HTTP",
	Long:  "Exposes the runs directory as JSON: /health, /runs, and /runs/summary?dir=<run-dir>.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		mux := http.NewServeMux()

		mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		mux.HandleFunc("GET /runs", func(w http.ResponseWriter, r *http.Request) {
			runs, err := runlog.ListRuns(cfg.Runs.Dir)
			if err != nil {
				zap.L().Error("list runs", zap.Error(err))
				http.Error(w, `{"error":"failed to list runs"}`, http.StatusInternalServerError)
				return
			}

			type runEntry struct {
				Dir       string    `json:"dir"`
				Model     string    `json:"model_name"`
				StartedAt time.Time `json:"started_at"`
			}
			entries := make([]runEntry, 0, len(runs))
			for _, run := range runs {
				entries = append(entries, runEntry{
					Dir:       run.Dir,
					Model:     run.Meta.Model,
					StartedAt: run.Meta.StartedAt,
				})
			}
			writeJSON(w, http.StatusOK, entries)
		})

		mux.HandleFunc("GET /runs/summary", func(w http.ResponseWriter, r *http.Request) {
			dir := r.URL.Query().Get("dir")
			if dir == "" {
				http.Error(w, `{"error":"dir query parameter is required"}`, http.StatusBadRequest)
				return
			}
			if !withinRunsDir(cfg.Runs.Dir, dir) {
				http.Error(w, `{"error":"dir is outside the runs directory"}`, http.StatusBadRequest)
				return
			}

			summary, err := runlog.Summarize(dir)
			if err != nil {
				zap.L().Warn("summarize run", zap.String("dir", dir), zap.Error(err))
				http.Error(w, `{"error":"run not found or unreadable"}`, http.StatusNotFound)
				return
			}
			writeJSON(w, http.StatusOK, summary)
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			gracefulShutdown(srv, shutdownTimeout)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// shutdownTimeout bounds how long in-flight requests get to drain.
const shutdownTimeout = 10 * time.Second

// gracefulShutdown drains in-flight requests on a fresh context. The signal
// context is already canceled by the time shutdown starts, so reusing it
// would abort requests instead of draining them.
func gracefulShutdown(srv *http.Server, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zap.L().Warn("server shutdown", zap.Error(err))
	}
}

// withinRunsDir rejects paths that escape the configured runs directory.
func withinRunsDir(base, dir string) bool {
	rel, err := filepath.Rel(base, dir)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
