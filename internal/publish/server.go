package publish

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Server exposes a hub over HTTP:
//
//	GET /ws      live event stream
//	GET /latest  latest event per id
//	GET /health  status and client count
type Server struct {
	hub *Hub
	ln  net.Listener
	srv *http.Server
}

// NewRouter builds the HTTP routes for hub.
func NewRouter(hub *Hub) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/ws", func(c *gin.Context) {
		hub.ServeHTTP(c.Writer, c.Request)
	})
	router.GET("/latest", func(c *gin.Context) {
		c.JSON(http.StatusOK, hub.Latest())
	})
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"clients": hub.Clients(),
		})
	})
	return router
}

// Listen binds addr and starts serving in the background.
func Listen(addr string, hub *Hub) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	s := &Server{
		hub: hub,
		ln:  ln,
		srv: &http.Server{
			Handler:           NewRouter(hub),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) && hub.logger != nil {
			hub.logger.Error("http server: %v", err)
		}
	}()
	return s, nil
}

// Addr is the bound address, useful with port 0.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Shutdown closes the hub's clients and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	return s.srv.Shutdown(ctx)
}
