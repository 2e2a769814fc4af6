package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleListMaterials(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	recs, err := s.materials.ListMaterials(r.Context(), accountID(r.Context()), limit)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	// List view omits the output text; it can be large and the client
	// fetches a single material to read it.
	out := make([]*materialResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toMaterialResponse(rec, false))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"materials": out})
}

func (s *Server) handleGetMaterial(w http.ResponseWriter, r *http.Request) {
	rec, err := s.materials.GetMaterial(r.Context(), accountID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMaterialResponse(rec, true))
}

func (s *Server) handleUpdateMaterial(w http.ResponseWriter, r *http.Request) {
	var req updateMaterialRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	rec, err := s.materials.GetMaterial(ctx, accountID(ctx), chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	if req.Title != nil {
		rec.Title = *req.Title
	}
	if req.OutputText != nil {
		rec.OutputText = *req.OutputText
	}
	if err := s.materials.UpdateMaterial(ctx, rec); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMaterialResponse(rec, true))
}

func (s *Server) handleDeleteMaterial(w http.ResponseWriter, r *http.Request) {
	if err := s.materials.DeleteMaterial(r.Context(), accountID(r.Context()), chi.URLParam(r, "id")); err != nil {
		s.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
