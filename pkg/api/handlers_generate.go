package api

import (
	"net/http"

	"github.com/formatexp/formatexp/pkg/credits"
)

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.gate.AttemptGeneration(r.Context(), accountID(r.Context()), credits.GenerationRequest{
		Type:       credits.MaterialType(req.Type),
		SourceText: req.SourceText,
		Difficulty: credits.Difficulty(req.Difficulty),
		Questions:  req.Questions,
		Title:      req.Title,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	resp := generateResponse{
		OutputText:       result.OutputText,
		Cost:             result.Cost,
		CreditsUsed:      result.CreditsUsed,
		CreditsQuota:     result.CreditsQuota,
		CreditsRemaining: result.CreditsRemaining,
	}
	if result.Record != nil {
		resp.Material = toMaterialResponse(result.Record, false)
	}
	writeJSON(w, http.StatusOK, resp)
}
