package handler

import (
	"net/http"

	"github.com/medlinkx/medlinkx/internal/common/errorx"
	"github.com/medlinkx/medlinkx/internal/tenancy"

	"github.com/gin-gonic/gin"
)

type selectSiteRequest struct {
	SiteID string `json:"siteId"`
}

type selectUnitRequest struct {
	BusinessUnit string `json:"businessUnit"`
}

// GetSelection returns the caller's current site and business unit. Fallbacks
// only pick sites the caller may access.
func (h *Handler) GetSelection(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	ptr, err := h.svc.CurrentSelection(c.Request.Context(), tenancy.Personal(actor))
	if err != nil {
		h.errs.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, ptr)
}

func (h *Handler) SelectSite(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req selectSiteRequest
	if !h.bind(c, &req, errorx.ErrInvalidSite) {
		return
	}
	if !h.allow(c, h.svc.CanAccess(c.Request.Context(), actor, req.SiteID), "no access to site "+req.SiteID) {
		return
	}

	ptr, err := h.svc.SelectSite(c.Request.Context(), tenancy.Personal(actor), req.SiteID)
	if err != nil {
		h.errs.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, ptr)
}

func (h *Handler) SelectBusinessUnit(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req selectUnitRequest
	if !h.bind(c, &req, errorx.ErrUnknownBusinessUnit) {
		return
	}

	ptr, err := h.svc.SelectBusinessUnit(c.Request.Context(), tenancy.Personal(actor), req.BusinessUnit)
	if err != nil {
		h.errs.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, ptr)
}

// MySites returns the sites visible to the caller
func (h *Handler) MySites(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	c.JSON(http.StatusOK, gin.H{
		"userId":      actor,
		"globalAdmin": h.svc.IsGlobalAdmin(ctx, actor),
		"sites":       h.svc.VisibleSites(ctx, actor),
	})
}
