package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/marmos91/docufs/internal/logger"
	"github.com/marmos91/docufs/pkg/metrics"
)

// adminServer is the optional HTTP sidecar: Prometheus metrics, a health
// probe, and a JSON node table.
type adminServer struct {
	srv *http.Server
}

func newAdminServer(s *Server, addr string) *adminServer {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Handle("/metrics", metrics.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/api/v1/nodes", func(w http.ResponseWriter, _ *http.Request) {
		infos := s.nodes.snapshot(func(id string) int { return len(s.store.FilesOnNode(id)) })
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(infos); err != nil {
			logger.Warn("node table encode failed", logger.KeyError, err)
		}
	})

	return &adminServer{
		srv: &http.Server{
			Addr:              addr,
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

func (a *adminServer) run() {
	logger.Info("admin server listening", "listen_addr", a.srv.Addr)
	if err := a.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("admin server failed", logger.KeyError, err)
	}
}

func (a *adminServer) stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = a.srv.Shutdown(ctx)
}
