package offline

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/educonnect/educonnect-client/pkg/logger"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// ShellServer fronts the app shell and same-origin traffic with the worker's
// interception layer, the runtime the browser's worker registration would
// otherwise provide.
type ShellServer struct {
	worker *Worker
	server *http.Server
}

// NewShellServer wires the worker into a gin engine listening on addr.
func NewShellServer(addr string, worker *Worker, allowedOrigins []string) *ShellServer {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	corsCfg := cors.DefaultConfig()
	if len(allowedOrigins) > 0 {
		corsCfg.AllowOrigins = allowedOrigins
	} else {
		corsCfg.AllowAllOrigins = true
	}
	corsCfg.AllowCredentials = !corsCfg.AllowAllOrigins
	router.Use(cors.New(corsCfg))

	s := &ShellServer{worker: worker}

	router.POST("/__sw/message", s.handleMessage)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.NoRoute(s.handleFetch)

	s.server = &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// Run installs and activates the worker, then serves until the listener
// closes.
func (s *ShellServer) Run(ctx context.Context) error {
	if err := s.worker.Install(ctx); err != nil {
		return err
	}
	if err := s.worker.Activate(ctx); err != nil {
		return err
	}

	logger.Info("Shell gateway listening", zap.String("addr", s.server.Addr))
	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests and stops the server.
func (s *ShellServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *ShellServer) handleMessage(c *gin.Context) {
	var msg Message
	if err := c.ShouldBindJSON(&msg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid worker message"})
		return
	}

	if err := s.worker.HandleMessage(c.Request.Context(), msg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"state": s.worker.State().String()})
}

// handleFetch forwards the inbound request to the origin through the
// worker's routing policy and copies the outcome back.
func (s *ShellServer) handleFetch(c *gin.Context) {
	outbound := c.Request.Clone(c.Request.Context())
	outbound.URL = s.worker.origin.ResolveReference(&url.URL{
		Path:     c.Request.URL.Path,
		RawQuery: c.Request.URL.RawQuery,
	})
	outbound.Host = s.worker.origin.Host
	outbound.RequestURI = ""

	resp, err := s.worker.Fetch(outbound)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "upstream unreachable"})
		return
	}
	defer resp.Body.Close() //nolint:errcheck

	for key, values := range resp.Header {
		for _, v := range values {
			c.Writer.Header().Add(key, v)
		}
	}
	c.Status(resp.StatusCode)
	if _, err := io.Copy(c.Writer, resp.Body); err != nil {
		logger.Warn("Failed to stream response to client", zap.Error(err))
	}
}
