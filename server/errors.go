package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	gh "github.com/pulseboard/github-activity/github"
)

type errorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("response encode failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	s.respondJSON(w, status, errorBody{Error: errorDetail{
		Code:      code,
		Message:   message,
		RequestID: GetRequestID(r.Context()),
	}})
}

// respondError maps the façade's error taxonomy onto HTTP status codes.
// Anything unrecognized is a bad gateway; its detail is logged, not shown.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var notFound *gh.NotFoundError
	if errors.As(err, &notFound) {
		s.writeError(w, r, http.StatusNotFound, "not_found", notFound.Error())
		return
	}
	var denied *gh.AccessDeniedError
	if errors.As(err, &denied) {
		s.writeError(w, r, http.StatusForbidden, "access_denied", denied.Error())
		return
	}
	var limited *gh.RateLimitError
	if errors.As(err, &limited) {
		retry := int(limited.RetryAfter / time.Second)
		if retry > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(retry))
		}
		s.writeError(w, r, http.StatusTooManyRequests, "rate_limit_exceeded", limited.Error())
		return
	}

	s.log.Warn("request failed upstream",
		zap.String("path", r.URL.Path),
		zap.Error(err))
	s.writeError(w, r, http.StatusBadGateway, "bad_gateway", "upstream GitHub request failed")
}
