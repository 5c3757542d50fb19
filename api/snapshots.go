package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"eventgate/api/model"
	"eventgate/workerapi"
)

type SnapshotsHandler struct {
	dispatcher Dispatcher
}

func NewSnapshotsHandler(dispatcher Dispatcher) *SnapshotsHandler {
	return &SnapshotsHandler{dispatcher: dispatcher}
}

func (h *SnapshotsHandler) Register(r chi.Router) {
	r.Get("/stores/{store}/snapshots", h.list)
	r.Get("/stores/{store}/snapshots/{source}", h.read)
	r.Put("/stores/{store}/snapshots/{source}", h.record)
	r.Delete("/stores/{store}/snapshots/{source}", h.remove)
}

func (h *SnapshotsHandler) list(w http.ResponseWriter, r *http.Request) {
	store := chi.URLParam(r, "store")

	snaps, err := h.dispatcher.ListSnapshots(r.Context(), store)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := model.ListSnapshotsResponse{Snapshots: make([]model.Snapshot, len(snaps))}
	for i, snap := range snaps {
		resp.Snapshots[i] = model.Snapshot{
			Source:    snap.Source,
			Version:   snap.Version,
			Data:      snap.Data,
			CreatedAt: snap.CreatedAt,
		}
	}

	render.JSON(w, r, resp)
}

func (h *SnapshotsHandler) read(w http.ResponseWriter, r *http.Request) {
	store := chi.URLParam(r, "store")
	source := chi.URLParam(r, "source")

	snap, err := h.dispatcher.ReadSnapshot(r.Context(), store, source)
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.JSON(w, r, model.Snapshot{
		Source:    snap.Source,
		Version:   snap.Version,
		Data:      snap.Data,
		CreatedAt: snap.CreatedAt,
	})
}

func (h *SnapshotsHandler) record(w http.ResponseWriter, r *http.Request) {
	store := chi.URLParam(r, "store")
	source := chi.URLParam(r, "source")

	var req model.RecordSnapshotRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	snap := workerapi.Snapshot{
		Source:  source,
		Version: req.Version,
		Data:    req.Data,
	}

	if err := h.dispatcher.RecordSnapshot(r.Context(), store, snap); err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

func (h *SnapshotsHandler) remove(w http.ResponseWriter, r *http.Request) {
	store := chi.URLParam(r, "store")
	source := chi.URLParam(r, "source")

	if err := h.dispatcher.DeleteSnapshot(r.Context(), store, source); err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}
