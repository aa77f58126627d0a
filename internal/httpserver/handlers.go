package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"go-stats-cache/internal/models"
	"go-stats-cache/internal/policy"
	"go-stats-cache/internal/utils"
)

const maxRevalidateBody = 64 << 10

// handleRevalidate purges the edge tiers for the requested tags
func (s *Server) handleRevalidate(w http.ResponseWriter, r *http.Request) {
	defer func() { _ = r.Body.Close() }()

	tags, ok := parseTags(io.LimitReader(r.Body, maxRevalidateBody))
	if !ok {
		s.writeJSON(w, http.StatusBadRequest, &errorResponse{Error: "Invalid tags provided"})
		return
	}

	result, err := s.gateway.Revalidate(r.Context(), models.InvalidationRequest{Tags: tags})
	if err != nil {
		var invalid *models.InvalidTagError
		if errors.As(err, &invalid) {
			s.writeJSON(w, http.StatusBadRequest, &errorResponse{Error: invalid.Error()})
			return
		}
		s.logger.Error("Revalidation failed", zap.Strings("tags", tags), zap.Error(err))
		s.writeJSON(w, http.StatusInternalServerError, &errorResponse{Error: "Failed to revalidate cache"})
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

// parseTags accepts only a body whose tags field is a list of strings
func parseTags(body io.Reader) ([]string, bool) {
	var req revalidateRequest
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		return nil, false
	}
	if len(req.Tags) == 0 || string(req.Tags) == "null" {
		return nil, false
	}

	var tags []string
	if err := json.Unmarshal(req.Tags, &tags); err != nil {
		return nil, false
	}
	if tags == nil {
		tags = []string{}
	}
	return tags, true
}

// handleData serves GET /api/... through the edge tiers
func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	resp, err := s.cacheService.Serve(r.Context(), r.URL.Path, r.URL.Query())
	if err != nil {
		s.writeDataError(w, r, err)
		return
	}

	for name, value := range policy.Headers(resp.Policy) {
		w.Header().Set(name, value)
	}
	w.Header().Set(HeaderCacheStatus, string(resp.Status))
	w.Header().Set(HeaderCacheLevel, string(resp.Level))
	w.Header().Set("Content-Type", resp.ContentType)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(resp.Body); err != nil {
		s.logger.Error("Failed to write response", zap.Error(err))
	}
}

func (s *Server) writeDataError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case isClientDisconnect(err) && r.Context().Err() != nil:
		s.logger.Debug("Client went away", zap.String("path", r.URL.Path))
		return
	case errors.Is(err, models.ErrUnknownCategory):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrInvalidParameter):
		status = http.StatusBadRequest
	case errors.Is(err, models.ErrFetchFailure):
		status = http.StatusBadGateway
	}

	if status >= http.StatusInternalServerError {
		s.logger.Warn("Data request failed", zap.String("path", r.URL.Path), zap.Int("status", status), zap.Error(err))
	}
	w.Header().Set("Cache-Control", "no-store")
	s.writeBody(w, status, utils.ErrorEnvelope(err.Error()))
}
