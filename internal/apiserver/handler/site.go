package handler

import (
	"net/http"

	"github.com/medlinkx/medlinkx/internal/common/errorx"
	"github.com/medlinkx/medlinkx/internal/site"
	"github.com/medlinkx/medlinkx/internal/tenancy"

	"github.com/gin-gonic/gin"
)

// ListSites returns the sites visible to the caller
func (h *Handler) ListSites(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.svc.VisibleSites(c.Request.Context(), actor))
}

func (h *Handler) GetSite(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id := c.Param("id")
	if !h.allow(c, h.svc.CanAccess(c.Request.Context(), actor, id), "no access to site "+id) {
		return
	}

	s, err := h.svc.GetSite(c.Request.Context(), id)
	if err != nil {
		h.errs.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *Handler) CreateSite(c *gin.Context) {
	actor, ok := h.requireGlobalAdmin(c)
	if !ok {
		return
	}
	var req site.NewSite
	if !h.bind(c, &req, errorx.ErrInvalidSite) {
		return
	}

	s, err := h.svc.AddSite(c.Request.Context(), req, actor)
	if err != nil {
		h.errs.HandleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, s)
}

func (h *Handler) UpdateSite(c *gin.Context) {
	actor, ok := h.requireGlobalAdmin(c)
	if !ok {
		return
	}
	var req site.Patch
	if !h.bind(c, &req, errorx.ErrInvalidSite) {
		return
	}

	s, err := h.svc.UpdateSite(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		h.errs.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

// DeleteSite removes a site and returns the caller's selection after the delete
func (h *Handler) DeleteSite(c *gin.Context) {
	actor, ok := h.requireGlobalAdmin(c)
	if !ok {
		return
	}

	ptr, err := h.svc.DeleteSite(c.Request.Context(), c.Param("id"), tenancy.Personal(actor), actor)
	if err != nil {
		h.errs.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"selection": ptr})
}
