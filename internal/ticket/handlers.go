package ticket

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/pos-terminal/internal/common"
	"github.com/noah-isme/pos-terminal/internal/lock"
	"github.com/noah-isme/pos-terminal/internal/obs"
	"github.com/noah-isme/pos-terminal/internal/pricing"
)

// Subscriber opens a subscription to one ticket's advisories.
type Subscriber interface {
	Subscribe(ctx context.Context, ticketID string) *redis.PubSub
}

// Handler wires ticket services to HTTP.
type Handler struct {
	Svc      *Service
	Events   Subscriber
	TaxBps   int
	Currency string
	// Idem guards the writes that are not naturally idempotent (opening a
	// ticket, adding units). Nil disables the guard.
	Idem *common.Idem
}

// View is the ticket as returned to the till.
type View struct {
	Ticket
	Summary  pricing.Summary `json:"summary"`
	Currency string          `json:"currency"`
}

// Routes mounts the ticket endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.With(h.idempotent).Post("/", h.Open)
	r.Route("/{id}", func(t chi.Router) {
		t.Get("/", h.Get)
		t.Delete("/", h.Close)
		t.With(h.idempotent).Post("/items", h.AddItem)
		t.Patch("/lines/{lineId}", h.SetQuantity)
		t.Delete("/lines/{lineId}", h.RemoveLine)
		t.Put("/mode", h.SetMode)
		t.Put("/discount", h.SetDiscount)
		t.Delete("/discount", h.ClearDiscount)
		t.Get("/events", h.Stream)
	})
}

func (h *Handler) idempotent(next http.Handler) http.Handler {
	if h.Idem == nil {
		return next
	}
	return h.Idem.Middleware(next)
}

func (h *Handler) view(t Ticket) View {
	return View{Ticket: t, Summary: pricing.Compute(t.Lines, h.TaxBps), Currency: h.Currency}
}

func (h *Handler) ready(w http.ResponseWriter) bool {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "ticket service not configured", nil)
		return false
	}
	return true
}

func ticketID(r *http.Request) string {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	obs.SetTicketID(r.Context(), id)
	return id
}

// Open handles POST /api/v1/tickets.
func (h *Handler) Open(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	var payload struct {
		Mode string `json:"mode"`
	}
	if r.ContentLength != 0 {
		if err := common.DecodeJSON(r, &payload); err != nil {
			h.writeError(w, err)
			return
		}
	}
	t, err := h.Svc.Open(r.Context(), payload.Mode)
	if err != nil {
		h.writeError(w, err)
		return
	}
	obs.SetTicketID(r.Context(), t.ID)
	common.Data(w, http.StatusCreated, h.view(t))
}

// Get handles GET /api/v1/tickets/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	t, err := h.Svc.Get(r.Context(), ticketID(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, h.view(t))
}

// Close handles DELETE /api/v1/tickets/{id}.
func (h *Handler) Close(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	t, err := h.Svc.Close(r.Context(), ticketID(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, h.view(t))
}

// AddItem handles POST /api/v1/tickets/{id}/items.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	id := ticketID(r)
	var payload ItemInput
	if err := common.DecodeJSON(r, &payload); err != nil {
		h.writeError(w, err)
		return
	}
	t, err := h.Svc.AddItem(r.Context(), id, payload)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, h.view(t))
}

// SetQuantity handles PATCH /api/v1/tickets/{id}/lines/{lineId}.
func (h *Handler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	id := ticketID(r)
	var payload struct {
		Quantity *int `json:"quantity" validate:"required,gte=0"`
	}
	if err := common.DecodeJSON(r, &payload); err != nil {
		h.writeError(w, err)
		return
	}
	t, err := h.Svc.SetQuantity(r.Context(), id, pricing.LineID(chi.URLParam(r, "lineId")), *payload.Quantity)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, h.view(t))
}

// RemoveLine handles DELETE /api/v1/tickets/{id}/lines/{lineId}.
func (h *Handler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	t, err := h.Svc.RemoveLine(r.Context(), ticketID(r), pricing.LineID(chi.URLParam(r, "lineId")))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, h.view(t))
}

// SetMode handles PUT /api/v1/tickets/{id}/mode.
func (h *Handler) SetMode(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	id := ticketID(r)
	var payload struct {
		Mode string `json:"mode" validate:"required"`
	}
	if err := common.DecodeJSON(r, &payload); err != nil {
		h.writeError(w, err)
		return
	}
	t, err := h.Svc.SetMode(r.Context(), id, payload.Mode)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, h.view(t))
}

// SetDiscount handles PUT /api/v1/tickets/{id}/discount.
func (h *Handler) SetDiscount(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	id := ticketID(r)
	var payload struct {
		Percent *decimal.Decimal `json:"percent" validate:"required"`
	}
	if err := common.DecodeJSON(r, &payload); err != nil {
		h.writeError(w, err)
		return
	}
	t, err := h.Svc.SetDiscount(r.Context(), id, *payload.Percent)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, h.view(t))
}

// ClearDiscount handles DELETE /api/v1/tickets/{id}/discount.
func (h *Handler) ClearDiscount(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	t, err := h.Svc.ClearDiscount(r.Context(), ticketID(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, h.view(t))
}

// Stream handles GET /api/v1/tickets/{id}/events, relaying the ticket's
// advisories as server-sent events until the client goes away.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	if h.Events == nil {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "notification stream disabled", nil)
		return
	}
	ctx := r.Context()
	id := ticketID(r)
	if _, err := h.Svc.Get(ctx, id); err != nil {
		h.writeError(w, err)
		return
	}

	sub := h.Events.Subscribe(ctx, id)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		common.JSONError(w, http.StatusServiceUnavailable, "STREAM_UNAVAILABLE", "unable to subscribe", nil)
		return
	}

	rc := http.NewResponseController(w)
	headers := w.Header()
	headers.Set("Content-Type", "text/event-stream")
	headers.Set("Cache-Control", "no-cache")
	headers.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		return
	}

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			if _, err := fmt.Fprintf(w, "event: notification\ndata: %s\n\n", msg.Payload); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	if err == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unknown error", nil)
		return
	}
	if common.WriteAppError(w, err) {
		return
	}
	switch {
	case errors.Is(err, ErrInvalidInput):
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, ErrInsufficientStock):
		common.JSONError(w, http.StatusConflict, "INSUFFICIENT_STOCK", err.Error(), nil)
	case errors.Is(err, ErrLineLocked):
		common.JSONError(w, http.StatusConflict, "LINE_LOCKED", err.Error(), nil)
	case errors.Is(err, lock.ErrNotAcquired):
		common.JSONError(w, http.StatusConflict, "TICKET_BUSY", "ticket is being updated, retry", nil)
	case errors.Is(err, ErrCatalogUnavailable):
		common.JSONError(w, http.StatusServiceUnavailable, "CATALOG_UNAVAILABLE", "unable to load rule catalog", nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to update ticket", nil)
	}
}
