// Package httpapi exposes the quality service over a gin router. Handlers
// only decode requests, call core.Service and map its error taxonomy onto
// status codes.
package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"coopquality/docs/schema/openapi"
	"coopquality/internal/core"
	"coopquality/pkg/domain"

	"github.com/gin-gonic/gin"
)

// ActorHeader carries the acting user for audit entries.
const ActorHeader = "X-Actor"

// Handler serves the /api/v1 routes.
type Handler struct {
	svc    *core.Service
	logger core.Logger
}

// NewHandler builds a handler over svc. A nil logger discards output.
func NewHandler(svc *core.Service, logger core.Logger) *Handler {
	if logger == nil {
		logger = nopLogger{}
	}
	return &Handler{svc: svc, logger: logger}
}

// Router returns a gin engine with recovery and every route registered.
func (h *Handler) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	h.Register(r)
	return r
}

// Register mounts the API on r.
func (h *Handler) Register(r gin.IRouter) {
	v1 := r.Group("/api/v1")
	v1.Use(actorMiddleware)

	v1.GET("/openapi.yaml", serveSpec)
	v1.GET("/standards", h.listStandards)

	insp := v1.Group("/inspections")
	insp.GET("", h.listInspections)
	insp.POST("", h.scheduleInspection)
	insp.GET("/:id", h.getInspection)
	insp.POST("/:id/start", h.startInspection)
	insp.POST("/:id/evaluations", h.recordEvaluation)
	insp.POST("/:id/complete", h.completeInspection)
	insp.POST("/:id/cancel", h.cancelInspection)
	insp.POST("/:id/evidence", h.attachEvidence)
	insp.GET("/:id/evidence", h.listEvidence)
	insp.GET("/:id/defects", h.listDefects)
	insp.POST("/:id/defects", h.reportDefect)

	v1.POST("/defects/:id/advance", h.advanceDefect)

	certs := v1.Group("/certifications")
	certs.GET("", h.listCertifications)
	certs.POST("", h.createCertification)
	certs.POST("/sweep", h.sweepCertifications)
	certs.POST("/:id/renew", h.renewCertification)
	certs.POST("/:id/suspend", h.suspendCertification)
	certs.POST("/:id/revoke", h.revokeCertification)

	alerts := v1.Group("/alerts")
	alerts.GET("", h.listAlerts)
	alerts.POST("/:id/acknowledge", h.acknowledgeAlert)
	alerts.POST("/:id/resolve", h.resolveAlert)
	alerts.POST("/:id/dismiss", h.dismissAlert)
}

func serveSpec(c *gin.Context) {
	c.Data(http.StatusOK, "application/yaml", openapi.Spec())
}

func actorMiddleware(c *gin.Context) {
	if actor := strings.TrimSpace(c.GetHeader(ActorHeader)); actor != "" {
		c.Request = c.Request.WithContext(core.WithActor(c.Request.Context(), actor))
	}
	c.Next()
}

// HTTPStatus maps a service error to a status code: data problems are 422,
// lifecycle conflicts (including blocked commits) 409, missing records 404.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrInvalidState):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func errorCode(status int) string {
	switch status {
	case http.StatusNotFound:
		return "not_found"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusConflict:
		return "invalid_state"
	case http.StatusBadRequest:
		return "bad_request"
	default:
		return "internal_error"
	}
}

func (h *Handler) fail(c *gin.Context, err error) {
	status := HTTPStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
		msg = "internal error"
	}
	c.AbortWithStatusJSON(status, errorBody{Error: errorCode(status), Message: msg})
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorBody{Error: errorCode(http.StatusBadRequest), Message: err.Error()})
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
