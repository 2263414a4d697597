package service

import (
	"context"
	"net/http"

	"github.com/ethereum/go-ethereum/log"
	"github.com/rs/cors"
)

type HealthzServer struct {
	ctx    context.Context
	server *http.Server
	log    log.Logger
}

// Handler serves /healthz with permissive CORS.
func (h *HealthzServer) Handler() http.Handler {
	hdlr := http.NewServeMux()
	hdlr.HandleFunc("/healthz", h.Handle)
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
	})
	return c.Handler(hdlr)
}

func (h *HealthzServer) Start(ctx context.Context, addr string) error {
	h.server = &http.Server{
		Handler: h.Handler(),
		Addr:    addr,
	}
	h.ctx = ctx
	return h.server.ListenAndServe()
}

func (h *HealthzServer) Shutdown() error {
	if h.server == nil {
		return nil
	}
	return h.server.Shutdown(h.ctx)
}

func (h *HealthzServer) Handle(w http.ResponseWriter, r *http.Request) {
	if h.log != nil {
		h.log.Debug("Received health check request", "path", r.URL.Path)
	}
	w.Write([]byte("OK")) //nolint:errcheck
}
