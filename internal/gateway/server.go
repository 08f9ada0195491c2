// Package gateway exposes the chat backend over HTTP.
package gateway

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/agentdesk/agentdesk/internal/chat"
	"github.com/agentdesk/agentdesk/internal/store"
	"github.com/agentdesk/agentdesk/internal/usage"
)

// Server bundles the gateway's collaborators.
type Server struct {
	chat      *chat.Service
	store     *store.Store
	ledger    *usage.Ledger
	authToken string
}

// Opts holds the gateway dependencies.
type Opts struct {
	Chat   *chat.Service
	Store  *store.Store
	Ledger *usage.Ledger
	// AuthToken, when set, requires "Authorization: Bearer <token>" on all
	// /api routes.
	AuthToken string
}

// New builds the gateway server.
func New(opts Opts) *Server {
	return &Server{
		chat:      opts.Chat,
		store:     opts.Store,
		ledger:    opts.Ledger,
		authToken: opts.AuthToken,
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	api.Use(s.authMiddleware(), s.userMiddleware())
	s.registerRoutes(api)
	return router
}

// Start serves HTTP on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}

	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
