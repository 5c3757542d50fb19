package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"eventgate/api/model"
	"eventgate/workerapi"
)

type SubscriptionsHandler struct {
	dispatcher Dispatcher
}

func NewSubscriptionsHandler(dispatcher Dispatcher) *SubscriptionsHandler {
	return &SubscriptionsHandler{dispatcher: dispatcher}
}

func (h *SubscriptionsHandler) Register(r chi.Router) {
	r.Put("/stores/{store}/subscriptions/{id}", h.save)
	r.Delete("/stores/{store}/subscriptions/{id}", h.remove)
	r.Post("/stores/{store}/subscriptions/{id}/ack", h.ack)
}

func selectorKind(name string) (workerapi.SelectorKind, bool) {
	switch name {
	case "stream":
		return workerapi.ByStream, true
	case "event_type":
		return workerapi.ByEventType, true
	case "pattern":
		return workerapi.ByPattern, true
	case "payload":
		return workerapi.ByPayload, true
	default:
		return 0, false
	}
}

func (h *SubscriptionsHandler) save(w http.ResponseWriter, r *http.Request) {
	store := chi.URLParam(r, "store")
	subID := chi.URLParam(r, "id")

	var req model.SaveSubscriptionRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	kind, ok := selectorKind(req.Selector.Kind)
	if !ok {
		http.Error(w, "invalid selector kind", http.StatusBadRequest)
		return
	}

	sub := workerapi.Subscription{
		ID: subID,
		Selector: workerapi.Selector{
			Kind:  kind,
			Value: req.Selector.Value,
		},
	}

	if err := h.dispatcher.SaveSubscription(r.Context(), store, sub); err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

func (h *SubscriptionsHandler) remove(w http.ResponseWriter, r *http.Request) {
	store := chi.URLParam(r, "store")
	subID := chi.URLParam(r, "id")

	if err := h.dispatcher.RemoveSubscription(r.Context(), store, subID); err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

func (h *SubscriptionsHandler) ack(w http.ResponseWriter, r *http.Request) {
	store := chi.URLParam(r, "store")
	subID := chi.URLParam(r, "id")

	var req model.AckEventRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if req.EventID == "" {
		http.Error(w, "event_id is required", http.StatusBadRequest)
		return
	}

	if err := h.dispatcher.AckEvent(r.Context(), store, subID, req.EventID); err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}
