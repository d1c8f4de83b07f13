package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"meetpoint/internal/export"
	"meetpoint/internal/models"
	"meetpoint/internal/observability"
	"meetpoint/internal/resilience"
)

const maxRequestBytes = 1 << 20

// Handler provides the HTTP endpoints and their dependencies
type Handler struct {
	Engine   Computer
	Breakers []*resilience.CircuitBreaker
	Checks   map[string]HealthCheck
	Metrics  *observability.Collector
	Logger   *zap.Logger
}

// ErrorResponse represents an API error
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ExternalHealth is the body of GET /api/v1/health/external
type ExternalHealth struct {
	Status       string              `json:"status"`
	Dependencies []resilience.Status `json:"dependencies"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.Logger.Warn("failed to encode response", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string) {
	h.writeJSON(w, status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// handleError maps a typed error to its HTTP status
func (h *Handler) handleError(w http.ResponseWriter, err error) {
	var typed *models.Error
	if !errors.As(err, &typed) {
		h.Logger.Error("internal error", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An error occurred. Please try again.")
		return
	}

	message := typed.Message
	if message == "" {
		message = string(typed.Kind)
	}

	switch typed.Kind {
	case models.KindInvalidInput:
		h.writeError(w, http.StatusBadRequest, string(typed.Kind), message)
	case models.KindNotFound:
		h.writeError(w, http.StatusNotFound, string(typed.Kind), message)
	case models.KindUnavailable:
		h.writeError(w, http.StatusServiceUnavailable, string(typed.Kind), message)
	default:
		h.Logger.Error("calculation error", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, string(typed.Kind), message)
	}
}

func (h *Handler) decodeRequest(w http.ResponseWriter, r *http.Request) (models.MeetingPointRequest, bool) {
	var req models.MeetingPointRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, string(models.KindInvalidInput), fmt.Sprintf("invalid request body: %v", err))
		return req, false
	}
	return req, true
}

// HandleMeetingPoint handles POST /api/v1/meeting-point
func (h *Handler) HandleMeetingPoint(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}

	result, err := h.Engine.ComputeForRequest(r.Context(), req)
	if err != nil {
		h.handleError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// HandleMeetingPointKML handles POST /api/v1/meeting-point/kml
func (h *Handler) HandleMeetingPointKML(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}

	result, err := h.Engine.ComputeForRequest(r.Context(), req)
	if err != nil {
		h.handleError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteKML(&buf, result); err != nil {
		h.handleError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.google-earth.kml+xml")
	w.Header().Set("Content-Disposition", `attachment; filename="meeting-point.kml"`)
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// HandleHealthCheck handles GET /api/v1/health
func (h *Handler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	body := map[string]string{}

	for name, check := range h.Checks {
		if err := check(r.Context()); err != nil {
			status = "degraded"
			body[name] = "error"
			h.Logger.Warn("health check failed", zap.String("check", name), zap.Error(err))
			continue
		}
		body[name] = "ok"
	}
	body["status"] = status

	h.writeJSON(w, http.StatusOK, body)
}

// HandleExternalHealth handles GET /api/v1/health/external
func (h *Handler) HandleExternalHealth(w http.ResponseWriter, r *http.Request) {
	resp := ExternalHealth{Status: "ok", Dependencies: make([]resilience.Status, 0, len(h.Breakers))}
	for _, b := range h.Breakers {
		st := b.Status()
		if st.State != resilience.StateClosed {
			resp.Status = "degraded"
		}
		resp.Dependencies = append(resp.Dependencies, st)
	}
	h.Metrics.SetBreakerStates(h.Breakers...)

	h.writeJSON(w, http.StatusOK, resp)
}
