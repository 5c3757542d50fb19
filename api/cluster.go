package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"eventgate/api/model"
)

type ClusterHandler struct {
	peers     PeerDirectory
	workers   WorkerView
	registrar Registrar
}

func NewClusterHandler(peers PeerDirectory, workers WorkerView, registrar Registrar) *ClusterHandler {
	return &ClusterHandler{
		peers:     peers,
		workers:   workers,
		registrar: registrar,
	}
}

func (h *ClusterHandler) Register(r chi.Router) {
	r.Get("/cluster/peers", h.listPeers)
	r.Get("/status", h.status)
}

func (h *ClusterHandler) listPeers(w http.ResponseWriter, r *http.Request) {
	peers := h.peers.Peers()

	resp := model.ClusterPeersResponse{Peers: make([]model.Peer, len(peers))}
	for i, peer := range peers {
		resp.Peers[i] = model.Peer{
			Name:           peer.Name,
			Addr:           peer.Addr,
			ServerAddr:     peer.ServerAddr,
			Classification: peer.Classification.String(),
			Reachable:      peer.Reachable,
		}
	}

	render.JSON(w, r, resp)
}

func (h *ClusterHandler) status(w http.ResponseWriter, r *http.Request) {
	workers, err := h.workers.AllWorkers(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	stores, err := h.workers.Stores(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.JSON(w, r, model.StatusResponse{
		InstanceID:   h.registrar.InstanceID(),
		Registration: h.registrar.State().String(),
		Workers:      len(workers),
		Stores:       len(stores),
	})
}
