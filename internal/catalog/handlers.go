package catalog

import (
	"net/http"
	"time"

	"github.com/noah-isme/pos-terminal/internal/common"
)

// Handler exposes catalog maintenance endpoints.
type Handler struct {
	Service *Service
}

type rulesResponse struct {
	Kits       int       `json:"kits"`
	Promotions int       `json:"promotions"`
	LoadedAt   time.Time `json:"loadedAt"`
	Rules      *Rules    `json:"rules,omitempty"`
}

// Rules handles GET /api/v1/catalog/rules.
func (h *Handler) Rules(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	rules, err := h.Service.Rules(r.Context())
	if err != nil {
		common.JSONError(w, http.StatusServiceUnavailable, "CATALOG_UNAVAILABLE", "unable to load rule catalog", nil)
		return
	}
	common.Data(w, http.StatusOK, rulesResponse{
		Kits:       len(rules.Kits),
		Promotions: len(rules.Promotions),
		LoadedAt:   rules.LoadedAt,
		Rules:      &rules,
	})
}

// Refresh handles POST /api/v1/catalog/refresh.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	rules, err := h.Service.Refresh(r.Context())
	if err != nil {
		common.JSONError(w, http.StatusServiceUnavailable, "CATALOG_UNAVAILABLE", "unable to reload rule catalog", nil)
		return
	}
	common.Data(w, http.StatusOK, rulesResponse{
		Kits:       len(rules.Kits),
		Promotions: len(rules.Promotions),
		LoadedAt:   rules.LoadedAt,
	})
}
