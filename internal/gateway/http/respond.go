package http

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Warn("failed to encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// handleServiceError converts gRPC status codes returned by the services to HTTP responses.
func handleServiceError(w http.ResponseWriter, err error) {
	st, ok := status.FromError(err)
	if !ok {
		zap.L().Error("unexpected service error", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	var httpStatus int
	var code string

	switch st.Code() {
	case codes.InvalidArgument:
		httpStatus = http.StatusBadRequest
		code = "invalid_argument"
	case codes.NotFound:
		httpStatus = http.StatusNotFound
		code = "not_found"
	case codes.AlreadyExists:
		httpStatus = http.StatusConflict
		code = "already_exists"
	case codes.FailedPrecondition:
		httpStatus = http.StatusConflict
		code = "failed_precondition"
	case codes.Unauthenticated:
		httpStatus = http.StatusUnauthorized
		code = "unauthenticated"
	case codes.PermissionDenied:
		httpStatus = http.StatusForbidden
		code = "permission_denied"
	case codes.ResourceExhausted:
		httpStatus = http.StatusTooManyRequests
		code = "rate_limit_exceeded"
	case codes.Unavailable:
		httpStatus = http.StatusServiceUnavailable
		code = "service_unavailable"
	case codes.DeadlineExceeded, codes.Canceled:
		httpStatus = http.StatusGatewayTimeout
		code = "timeout"
	default:
		httpStatus = http.StatusInternalServerError
		code = "internal_error"
	}

	respondError(w, httpStatus, code, st.Message())
}
