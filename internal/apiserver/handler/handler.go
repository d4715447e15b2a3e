package handler

import (
	"fmt"

	"github.com/medlinkx/medlinkx/internal/apiserver/middleware"
	"github.com/medlinkx/medlinkx/internal/common/errorx"
	"github.com/medlinkx/medlinkx/internal/tenancy"
	"github.com/medlinkx/medlinkx/pkg/metrics"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler serves the site, access and selection routes. Every resolver
// "false" is answered with 403.
type Handler struct {
	logger  *zap.Logger
	svc     *tenancy.Service
	metrics *metrics.Metrics
	errs    *errorx.ErrorHandler
}

func NewHandler(logger *zap.Logger, svc *tenancy.Service, m *metrics.Metrics, errs *errorx.ErrorHandler) *Handler {
	return &Handler{
		logger:  logger.Named("apiserver.handler"),
		svc:     svc,
		metrics: m,
		errs:    errs,
	}
}

// actor returns the caller's user id. The JWT middleware guarantees claims on /api routes.
func (h *Handler) actor(c *gin.Context) (string, bool) {
	claims, ok := middleware.Claims(c)
	if !ok {
		h.errs.HandleError(c, errorx.ErrUnauthorized)
		return "", false
	}
	return claims.Email, true
}

// allow records the decision and writes 403 when denied
func (h *Handler) allow(c *gin.Context, allowed bool, what string) bool {
	h.metrics.AccessDecision(allowed)
	if !allowed {
		h.errs.HandleError(c, fmt.Errorf("%w: %s", errorx.ErrForbidden, what))
	}
	return allowed
}

// requireGlobalAdmin resolves the actor and rejects anyone without unrestricted access
func (h *Handler) requireGlobalAdmin(c *gin.Context) (string, bool) {
	actor, ok := h.actor(c)
	if !ok {
		return "", false
	}
	if !h.allow(c, h.svc.IsGlobalAdmin(c.Request.Context(), actor), "global administrator access required") {
		return "", false
	}
	return actor, true
}

func (h *Handler) bind(c *gin.Context, out any, invalid error) bool {
	if err := c.ShouldBindJSON(out); err != nil {
		h.errs.HandleError(c, fmt.Errorf("%w: %v", invalid, err))
		return false
	}
	return true
}
