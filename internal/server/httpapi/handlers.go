package httpapi

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/dmitrijs2005/crosspost/internal/common"
	"github.com/dmitrijs2005/crosspost/internal/server/billing"
	"github.com/dmitrijs2005/crosspost/internal/server/models"
	"github.com/dmitrijs2005/crosspost/internal/server/quickconnect"
	"github.com/dmitrijs2005/crosspost/internal/server/services"
	"github.com/gin-gonic/gin"
)

func (h *handler) createItem(c *gin.Context) {
	var req services.CreateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	item, err := h.svc.Items.Create(c.Request.Context(), currentUser(c), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (h *handler) itemActivity(c *gin.Context) {
	list, err := h.svc.Items.Activity(c.Request.Context(), currentUser(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *handler) publish(c *gin.Context) {
	res, err := h.svc.Publisher.Publish(c.Request.Context(), c.Param("id"), currentUser(c))
	if err != nil {
		if errors.Is(err, common.ErrValidation) {
			abortError(c, http.StatusBadRequest, "No platforms selected. Save the draft with platforms chosen.")
			return
		}
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *handler) deleteItem(c *gin.Context) {
	if err := h.svc.Items.Delete(c.Request.Context(), currentUser(c), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func brandParam(c *gin.Context) *string {
	if b := c.Query("brandId"); b != "" {
		return &b
	}
	return nil
}

func (h *handler) listConnections(c *gin.Context) {
	list, err := h.svc.Connections.List(c.Request.Context(), currentUser(c), brandParam(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *handler) connect(c *gin.Context) {
	var req services.ConnectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	view, err := h.svc.Connections.Connect(c.Request.Context(), currentUser(c), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

func (h *handler) testConnection(c *gin.Context) {
	res, err := h.svc.Connections.Test(c.Request.Context(), currentUser(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *handler) deleteConnection(c *gin.Context) {
	if err := h.svc.Connections.Delete(c.Request.Context(), currentUser(c), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type usageLimits struct {
	PostsPerMonth         int `json:"postsPerMonth"`
	AIAdaptationsPerMonth int `json:"aiAdaptationsPerMonth"`
	Brands                int `json:"brands"`
	Platforms             int `json:"platforms"`
}

type usageResponse struct {
	models.Usage
	Tier   string      `json:"tier"`
	Limits usageLimits `json:"limits"`
}

func (h *handler) usage(c *gin.Context) {
	ctx := c.Request.Context()
	userID := currentUser(c)

	u, err := h.svc.Billing.Usage(ctx, userID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	tier, err := h.svc.Billing.Tier(ctx, userID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, usageResponse{
		Usage: *u,
		Tier:  tier.ID,
		Limits: usageLimits{
			PostsPerMonth:         tier.Limits.PostsPerMonth,
			AIAdaptationsPerMonth: tier.Limits.AIAdaptationsPerMonth,
			Brands:                tier.Limits.Brands,
			Platforms:             tier.Limits.Platforms,
		},
	})
}

func (h *handler) check(c *gin.Context) {
	action, err := billing.ParseAction(c.Query("action"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	d, err := h.svc.Billing.Check(c.Request.Context(), currentUser(c), action)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *handler) quota(c *gin.Context) {
	q, err := h.svc.Billing.QuickConnectQuota(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

type adaptationRequest struct {
	Count int `json:"count"`
}

func (h *handler) recordAdaptations(c *gin.Context) {
	req := adaptationRequest{Count: 1}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			abortError(c, http.StatusBadRequest, "Invalid JSON body")
			return
		}
	}
	if err := h.svc.Usage.RecordAdaptation(c.Request.Context(), currentUser(c), req.Count); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *handler) oauthAuthorize(c *gin.Context) {
	target, err := h.svc.QuickConnect.AuthorizeURL(currentUser(c), c.Param("platform"), c.Query("brandId"))
	if err != nil {
		if errors.Is(err, common.ErrConfiguration) {
			c.AbortWithStatusJSON(http.StatusNotImplemented, errorResponse{
				Error: "Quick Connect is not configured.",
				Hint:  "Set X_CLIENT_ID and X_CLIENT_SECRET (or use Advanced and your own API keys).",
			})
			return
		}
		h.writeError(c, err)
		return
	}
	c.Redirect(http.StatusFound, target)
}

func (h *handler) oauthCallback(c *gin.Context) {
	outcome, err := h.svc.QuickConnect.Callback(c.Request.Context(), quickconnect.CallbackParams{
		Code:  c.Query("code"),
		State: c.Query("state"),
		Error: c.Query("error"),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.Redirect(http.StatusFound, h.opts.SettingsPath+"?oauth="+url.QueryEscape(outcome))
}

func (h *handler) runDue(c *gin.Context) {
	sum, err := h.svc.Scheduler.RunDue(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}
