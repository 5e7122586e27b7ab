package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/crosslens/crosslens/pkg/domain"
	"go.uber.org/zap"
)

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) int {
	var request domain.AnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		return s.writeError(w, http.StatusBadRequest, "invalid request body")
	}

	result, err := s.engine.AnalyzePatterns(r.Context(), &request)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidRequest) {
			return s.writeError(w, http.StatusBadRequest, err.Error())
		}
		s.logger.Error("Analyze request failed", zap.Error(err))
		return s.writeError(w, http.StatusInternalServerError, err.Error())
	}
	return s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) int {
	var request domain.PredictionRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		return s.writeError(w, http.StatusBadRequest, "invalid request body")
	}

	result, err := s.engine.PredictOutcome(r.Context(), &request)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidRequest) {
			return s.writeError(w, http.StatusBadRequest, err.Error())
		}
		s.logger.Error("Predict request failed", zap.Error(err))
		return s.writeError(w, http.StatusInternalServerError, err.Error())
	}
	return s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, value interface{}) int {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(value); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
	return code
}

func (s *Server) writeError(w http.ResponseWriter, code int, message string) int {
	return s.writeJSON(w, code, errorResponse{Error: message})
}
