// Package status exposes read-only views of the running updaters: what is
// configured, how each is doing, and what each currently holds. Nothing
// here mutates the graph.
package status

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/agentic-research/livegraph/internal/journal"
	"github.com/agentic-research/livegraph/internal/updater"
	"github.com/gin-gonic/gin"
	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Registry lists updaters. *updater.Manager implements it.
type Registry interface {
	Updaters() []updater.Updater
	Updater(id string) (updater.Updater, bool)
}

// History returns journaled commits. *journal.Journal implements it.
type History interface {
	Recent(ctx context.Context, updater string, limit int) ([]journal.Entry, error)
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// Server serves the status API.
type Server struct {
	// Version is reported to MCP clients.
	Version string

	reg     Registry
	history History
	log     logrus.FieldLogger
}

// New returns a status server. history may be nil when no journal is
// configured.
func New(reg Registry, history History, log logrus.FieldLogger) *Server {
	return &Server{Version: "dev", reg: reg, history: history, log: log.WithField("component", "status")}
}

// Router builds the gin engine with every status route.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.logRequests)

	r.GET("/updaters", s.handleList)
	r.GET("/updaters/:id", s.handleStatus)
	r.GET("/updaters/:id/updates", s.handleUpdates)
	r.GET("/updaters/:id/history", s.handleHistory)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.Any("/mcp", gin.WrapH(server.NewStreamableHTTPServer(s.MCPServer(s.Version))))
	return r
}

func (s *Server) logRequests(c *gin.Context) {
	start := time.Now()
	c.Next()
	s.log.WithFields(logrus.Fields{
		"method":   c.Request.Method,
		"path":     c.FullPath(),
		"status":   c.Writer.Status(),
		"duration": time.Since(start).String(),
	}).Debug("status request")
}

// Run serves on addr until ctx ends.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("status server listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// handleList maps each updater id to its description.
func (s *Server) handleList(c *gin.Context) {
	list := s.reg.Updaters()
	if len(list) == 0 {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "no updaters running", Code: "NO_UPDATERS"})
		return
	}
	out := make(map[string]string, len(list))
	for _, u := range list {
		out[u.ID()] = u.Description()
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) lookup(c *gin.Context) (updater.Updater, bool) {
	id := c.Param("id")
	u, ok := s.reg.Updater(id)
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "no updater " + strconv.Quote(id), Code: "UNKNOWN_UPDATER"})
	}
	return u, ok
}

func (s *Server) handleStatus(c *gin.Context) {
	u, ok := s.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, u.Status())
}

func (s *Server) handleUpdates(c *gin.Context) {
	u, ok := s.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, u.Updates())
}

func (s *Server) handleHistory(c *gin.Context) {
	u, ok := s.lookup(c)
	if !ok {
		return
	}
	if s.history == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "journal disabled", Code: "NO_JOURNAL"})
		return
	}
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be a positive integer", Code: "INVALID_LIMIT"})
			return
		}
		limit = n
	}
	entries, err := s.history.Recent(c.Request.Context(), u.ID(), limit)
	if err != nil {
		s.log.WithError(err).WithField("updater", u.ID()).Error("journal read failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: "JOURNAL_READ_FAILED"})
		return
	}
	if entries == nil {
		entries = []journal.Entry{}
	}
	c.JSON(http.StatusOK, entries)
}
