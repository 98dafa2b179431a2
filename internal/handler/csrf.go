package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"admin-bff/internal/csrf"
	"admin-bff/internal/model"
)

// CSRFHandler issues double-submit tokens.
type CSRFHandler struct {
	mgr *csrf.Manager
}

// NewCSRFHandler creates a CSRFHandler.
func NewCSRFHandler(mgr *csrf.Manager) *CSRFHandler {
	return &CSRFHandler{mgr: mgr}
}

type csrfToken struct {
	Token      string    `json:"token"`
	HeaderName string    `json:"headerName"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// Issue sets a fresh token cookie and returns the same token in the body.
func (h *CSRFHandler) Issue(c echo.Context) error {
	t := h.mgr.Issue()
	c.SetCookie(h.mgr.Cookie(t))
	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return c.JSON(http.StatusOK, model.Envelope{
		Success: true,
		Data: csrfToken{
			Token:      t.Value,
			HeaderName: h.mgr.HeaderName(),
			ExpiresAt:  t.ExpiresAt,
		},
	})
}
