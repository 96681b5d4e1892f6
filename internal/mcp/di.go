package mcp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/foxseedlab/gymvoice/internal/config"
	"github.com/foxseedlab/gymvoice/internal/repository"
	"github.com/mark3labs/mcp-go/server"
	"github.com/samber/do/v2"
)

const Version = "1.0.0"

// HTTPServer serves the history tools over streamable HTTP.
type HTTPServer struct {
	addr string
	srv  *server.StreamableHTTPServer
}

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*HTTPServer, error) {
		cfg := do.MustInvoke[*config.Config](i)
		store := do.MustInvoke[repository.History](i)
		loc := do.MustInvoke[*time.Location](i)
		return &HTTPServer{
			addr: cfg.MCPAddr,
			srv:  server.NewStreamableHTTPServer(New(store, loc, Version)),
		}, nil
	})
}

// Start blocks serving on the configured address until Shutdown is called.
func (h *HTTPServer) Start() error {
	slog.Info("mcp server listening", "addr", h.addr)
	if err := h.srv.Start(h.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (h *HTTPServer) Shutdown(ctx context.Context) error {
	return h.srv.Shutdown(ctx)
}
