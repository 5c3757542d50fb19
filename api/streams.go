package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"eventgate/api/model"
	"eventgate/workerapi"
)

const defaultReadCount = 100

type StreamsHandler struct {
	dispatcher Dispatcher
}

func NewStreamsHandler(dispatcher Dispatcher) *StreamsHandler {
	return &StreamsHandler{dispatcher: dispatcher}
}

func (h *StreamsHandler) Register(r chi.Router) {
	r.Get("/stores", h.listStores)
	r.Get("/stores/{store}/streams", h.listStreams)
	r.Get("/stores/{store}/streams/{stream}/events", h.getEvents)
	r.Post("/stores/{store}/streams/{stream}/events", h.appendEvents)
	r.Get("/stores/{store}/streams/{stream}/version", h.streamVersion)
}

func (h *StreamsHandler) listStores(w http.ResponseWriter, r *http.Request) {
	stores, err := h.dispatcher.ListStores(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.JSON(w, r, model.ListStoresResponse{Stores: stores})
}

func (h *StreamsHandler) listStreams(w http.ResponseWriter, r *http.Request) {
	store := chi.URLParam(r, "store")

	streams, err := h.dispatcher.ListStreams(r.Context(), store)
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.JSON(w, r, model.ListStreamsResponse{Streams: streams})
}

func (h *StreamsHandler) appendEvents(w http.ResponseWriter, r *http.Request) {
	store := chi.URLParam(r, "store")
	stream := chi.URLParam(r, "stream")

	var req model.AppendEventsRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	expectedVersion := workerapi.AnyVersion
	if req.ExpectedVersion != nil {
		expectedVersion = *req.ExpectedVersion
	}

	events := make([]workerapi.Event, len(req.Events))
	for i, ev := range req.Events {
		events[i] = workerapi.Event{
			ID:       ev.ID,
			Type:     ev.Type,
			Data:     ev.Data,
			Metadata: ev.Metadata,
		}
	}

	version, err := h.dispatcher.AppendEvents(r.Context(), store, stream, events, expectedVersion)
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.JSON(w, r, model.AppendEventsResponse{StreamVersion: version})
}

func (h *StreamsHandler) getEvents(w http.ResponseWriter, r *http.Request) {
	store := chi.URLParam(r, "store")
	stream := chi.URLParam(r, "stream")
	query := r.URL.Query()

	var fromVersion int64

	if raw := query.Get("from"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			http.Error(w, "invalid from version", http.StatusBadRequest)
			return
		}

		fromVersion = parsed
	}

	count := defaultReadCount

	if raw := query.Get("count"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "invalid count", http.StatusBadRequest)
			return
		}

		count = parsed
	}

	dir := workerapi.Forward

	switch query.Get("direction") {
	case "", "forward":
	case "backward":
		dir = workerapi.Backward
	default:
		http.Error(w, "invalid direction", http.StatusBadRequest)
		return
	}

	events, err := h.dispatcher.GetEvents(r.Context(), store, stream, fromVersion, count, dir)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := model.GetEventsResponse{Events: make([]model.Event, len(events))}
	for i, ev := range events {
		resp.Events[i] = model.Event{
			ID:       ev.ID,
			Type:     ev.Type,
			Data:     ev.Data,
			Metadata: ev.Metadata,
			Version:  ev.Version,
			Recorded: ev.Recorded,
		}
	}

	render.JSON(w, r, resp)
}

func (h *StreamsHandler) streamVersion(w http.ResponseWriter, r *http.Request) {
	store := chi.URLParam(r, "store")
	stream := chi.URLParam(r, "stream")

	version, err := h.dispatcher.StreamVersion(r.Context(), store, stream)
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.JSON(w, r, model.StreamVersionResponse{
		Stream:  stream,
		Version: version,
	})
}
