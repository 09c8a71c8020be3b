package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/rl1809/order-saga/internal/core/domain"
	"github.com/rl1809/order-saga/internal/tracing"
)

const (
	msgInvalidBody   = "Invalid request body"
	msgMissingFields = "Missing required fields"
)

// NewRouter returns the router every role mounts its routes on. It serves
// /health and /metrics and continues incoming traces.
func NewRouter() *mux.Router {
	r := mux.NewRouter()
	r.Use(tracing.Middleware)
	r.HandleFunc("/health", HealthCheck).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	return r
}

func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// respond writes the envelope for (data, err). The HTTP status mirrors the
// envelope status.
func respond[T any](w http.ResponseWriter, r *http.Request, logger *zap.Logger, data T, err error, message string) {
	if err != nil {
		env := domain.Failure(data, err)
		if reason := domain.ReasonOf(err); reason != "" {
			w.Header().Set(domain.ReasonHeader, reason)
		}
		if env.Status == http.StatusInternalServerError {
			logger.Error("request failed", zap.String("method", r.Method),
				zap.String("path", r.URL.Path), zap.Error(err))
		}
		writeJSON(w, env.Status, env)
		return
	}
	writeJSON(w, http.StatusOK, domain.OK(data, message))
}

// decodeBody reads a JSON body into dst. On failure it has already written
// a 400 envelope.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		badRequest(w, msgInvalidBody)
		return false
	}
	return true
}

func badRequest(w http.ResponseWriter, message string) {
	w.Header().Set(domain.ReasonHeader, domain.ReasonOf(domain.ErrValidation))
	writeJSON(w, http.StatusBadRequest, domain.Failure[any](nil, domain.NewError(domain.ErrValidation, message)))
}

// userProductRequest is the body shared by most order and payment routes.
type userProductRequest struct {
	UserName    string `json:"userName"`
	ProductName string `json:"productName"`
}

func (req userProductRequest) valid() bool {
	return req.UserName != "" && req.ProductName != ""
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
