package handler

import (
	"net/http"

	"github.com/medlinkx/medlinkx/internal/access"
	"github.com/medlinkx/medlinkx/internal/common/errorx"

	"github.com/gin-gonic/gin"
)

func (h *Handler) ListRules(c *gin.Context) {
	if _, ok := h.requireGlobalAdmin(c); !ok {
		return
	}
	c.JSON(http.StatusOK, h.svc.ListRules(c.Request.Context()))
}

// GetRule returns a user's rule. Users may always read their own.
func (h *Handler) GetRule(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	userID := c.Param("userId")
	self := h.svc.Rules.UserKey(actor) == h.svc.Rules.UserKey(userID)
	if !h.allow(c, self || h.svc.IsGlobalAdmin(ctx, actor), "cannot read another user's access rule") {
		return
	}

	r, err := h.svc.GetRule(ctx, userID)
	if err != nil {
		h.errs.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *Handler) CreateRule(c *gin.Context) {
	actor, ok := h.requireGlobalAdmin(c)
	if !ok {
		return
	}
	var req access.NewRule
	if !h.bind(c, &req, errorx.ErrInvalidRule) {
		return
	}

	r, err := h.svc.CreateRule(c.Request.Context(), req, actor)
	if err != nil {
		h.errs.HandleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

func (h *Handler) UpdateRule(c *gin.Context) {
	actor, ok := h.requireGlobalAdmin(c)
	if !ok {
		return
	}
	var req access.RulePatch
	if !h.bind(c, &req, errorx.ErrInvalidRule) {
		return
	}

	r, err := h.svc.UpdateRule(c.Request.Context(), c.Param("userId"), req, actor)
	if err != nil {
		h.errs.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *Handler) DeleteRule(c *gin.Context) {
	actor, ok := h.requireGlobalAdmin(c)
	if !ok {
		return
	}
	if err := h.svc.DeleteRule(c.Request.Context(), c.Param("userId"), actor); err != nil {
		h.errs.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) GrantSite(c *gin.Context) {
	actor, ok := h.requireGlobalAdmin(c)
	if !ok {
		return
	}
	r, err := h.svc.GrantSite(c.Request.Context(), c.Param("userId"), c.Param("siteId"), actor)
	if err != nil {
		h.errs.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *Handler) RevokeSite(c *gin.Context) {
	actor, ok := h.requireGlobalAdmin(c)
	if !ok {
		return
	}
	r, err := h.svc.RevokeSite(c.Request.Context(), c.Param("userId"), c.Param("siteId"), actor)
	if err != nil {
		h.errs.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}
