package compilesrv

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/specialistvlad/graphcraft/internal/ctxlog"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

// NewHandler returns the HTTP API of svc. A nil gatherer disables
// /metrics.
func NewHandler(svc *Service, gatherer prometheus.Gatherer, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	h := &handlers{svc: svc, logger: logger}

	router := gin.New()
	router.Use(gin.Recovery(), h.requestID)
	router.GET("/health", h.health)
	router.POST("/v1/compile", h.compile)
	if gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
	return router
}

type handlers struct {
	svc    *Service
	logger *slog.Logger
}

// requestID attaches a request-scoped logger to the request context.
func (h *handlers) requestID(c *gin.Context) {
	id := c.GetHeader(RequestIDHeader)
	if id == "" {
		id = uuid.NewString()
	}
	c.Header(RequestIDHeader, id)
	logger := h.logger.With("request_id", id)
	c.Request = c.Request.WithContext(ctxlog.WithLogger(c.Request.Context(), logger))
	c.Next()
}

func (h *handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *handlers) compile(c *gin.Context) {
	ctx := c.Request.Context()
	logger := ctxlog.FromContext(ctx)

	var req CompileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body.", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error(), Code: CodeBadRequest})
		return
	}

	resp, err := h.svc.Compile(ctx, Request{Source: req.Source, Profile: req.Profile})
	if err != nil {
		status, body := errorReply(err)
		if status >= http.StatusInternalServerError {
			logger.Error("Compile request failed.", "status", status, "error", err)
		}
		c.JSON(status, body)
		return
	}

	a := resp.Artifact
	c.JSON(http.StatusOK, CompileResponse{
		Key:         a.Key.String(),
		Profile:     a.Profile,
		Artifact:    a.Binary,
		CacheHit:    resp.CacheHit,
		Diagnostics: ToWire(a.Diagnostics),
	})
}

func errorReply(err error) (int, ErrorResponse) {
	var ce *CompileError
	if !errors.As(err, &ce) {
		if errors.Is(err, context.DeadlineExceeded) {
			return http.StatusGatewayTimeout, ErrorResponse{Error: err.Error(), Code: CodeTimeout}
		}
		return http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: CodeInternal}
	}
	switch ce.Kind {
	case KindBadRequest:
		return http.StatusBadRequest, ErrorResponse{Error: ce.Error(), Code: CodeBadRequest}
	case KindDiagnostics:
		return http.StatusUnprocessableEntity, ErrorResponse{Error: ce.Error(), Code: CodeDiagnostics, Diagnostics: ToWire(ce.Diagnostics)}
	case KindTimeout:
		return http.StatusGatewayTimeout, ErrorResponse{Error: ce.Error(), Code: CodeTimeout}
	}
	return http.StatusInternalServerError, ErrorResponse{Error: ce.Error(), Code: CodeInternal}
}
