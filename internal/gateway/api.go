package gateway

import (
	"net/http"
	"strconv"

	"github.com/flemzord/tickwork/internal/world"
	"github.com/go-chi/chi/v5"
)

type submitJobRequest struct {
	Name  string `json:"name"`
	Units int    `json:"units"`
}

type spawnRequest struct {
	Name string `json:"name"`
}

type touchRequest struct {
	N int `json:"n"`
}

type saveResponse struct {
	RequestID string `json:"request_id"`
}

type saveAllResponse struct {
	Queued int `json:"queued"`
}

type acceptedResponse struct {
	Status string `json:"status"`
}

// withBackend short-circuits with 503 while no runtime is wired.
func (g *Gateway) withBackend(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.backend == nil {
			g.writeError(w, r, errNoBackend)
			return
		}
		h(w, r)
	}
}

// indexParam parses the {index} URL parameter, writing 400 on failure.
func indexParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid entity index"})
		return 0, false
	}
	return index, true
}

func (g *Gateway) handleSubmitJob() http.HandlerFunc {
	return g.withBackend(func(w http.ResponseWriter, r *http.Request) {
		var req submitJobRequest
		if !decodeBody(w, r, &req) {
			return
		}
		ticket, err := g.backend.SubmitJob(r.Context(), req.Name, req.Units)
		if err != nil {
			g.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusAccepted, ticket)
	})
}

func (g *Gateway) handleCompaction() http.HandlerFunc {
	return g.withBackend(func(w http.ResponseWriter, r *http.Request) {
		if err := g.backend.EnqueueCompaction(r.Context()); err != nil {
			g.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusAccepted, acceptedResponse{Status: "queued"})
	})
}

func (g *Gateway) handleListEntities() http.HandlerFunc {
	return g.withBackend(func(w http.ResponseWriter, r *http.Request) {
		entities, err := g.backend.Entities(r.Context())
		if err != nil {
			g.writeError(w, r, err)
			return
		}
		if entities == nil {
			entities = []world.EntityInfo{}
		}
		writeJSON(w, http.StatusOK, entities)
	})
}

func (g *Gateway) handleSpawn() http.HandlerFunc {
	return g.withBackend(func(w http.ResponseWriter, r *http.Request) {
		var req spawnRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.Name == "" {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "name is required"})
			return
		}
		info, err := g.backend.Spawn(r.Context(), req.Name)
		if err != nil {
			g.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, info)
	})
}

func (g *Gateway) handleDespawn() http.HandlerFunc {
	return g.withBackend(func(w http.ResponseWriter, r *http.Request) {
		index, ok := indexParam(w, r)
		if !ok {
			return
		}
		if err := g.backend.Despawn(r.Context(), index); err != nil {
			g.writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func (g *Gateway) handleTouch() http.HandlerFunc {
	return g.withBackend(func(w http.ResponseWriter, r *http.Request) {
		index, ok := indexParam(w, r)
		if !ok {
			return
		}
		req := touchRequest{N: 1}
		if !decodeOptionalBody(w, r, &req) {
			return
		}
		info, err := g.backend.Touch(r.Context(), index, req.N)
		if err != nil {
			g.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, info)
	})
}

func (g *Gateway) handleSave() http.HandlerFunc {
	return g.withBackend(func(w http.ResponseWriter, r *http.Request) {
		index, ok := indexParam(w, r)
		if !ok {
			return
		}
		id, err := g.backend.Save(r.Context(), index)
		if err != nil {
			g.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusAccepted, saveResponse{RequestID: id.String()})
	})
}

func (g *Gateway) handleSaveAll() http.HandlerFunc {
	return g.withBackend(func(w http.ResponseWriter, r *http.Request) {
		n, err := g.backend.SaveAll(r.Context())
		if err != nil {
			g.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusAccepted, saveAllResponse{Queued: n})
	})
}
