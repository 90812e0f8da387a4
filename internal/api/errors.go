package api

import (
	"encoding/json"
	"net/http"

	"campusrun/internal/service"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

func httpStatus(kind service.Kind) int {
	switch kind {
	case service.KindForbidden:
		return http.StatusForbidden
	case service.KindInvalidState, service.KindRunnerBusy, service.KindDuplicateApplication:
		return http.StatusConflict
	case service.KindNotApplicant:
		return http.StatusUnprocessableEntity
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func grpcCode(kind service.Kind) codes.Code {
	switch kind {
	case service.KindForbidden:
		return codes.PermissionDenied
	case service.KindInvalidState, service.KindRunnerBusy, service.KindNotApplicant:
		return codes.FailedPrecondition
	case service.KindDuplicateApplication:
		return codes.AlreadyExists
	case service.KindNotFound:
		return codes.NotFound
	case service.KindValidation:
		return codes.InvalidArgument
	default:
		return codes.Internal
	}
}

// grpcError converts a lifecycle error into a status error. Internal failures
// are not echoed to the caller.
func grpcError(err error) error {
	if err == nil {
		return nil
	}
	kind := service.KindOf(err)
	if kind == "" {
		return status.Error(codes.Internal, "internal error")
	}
	return status.Error(grpcCode(kind), err.Error())
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, code, message string) {
	writeJSON(w, statusCode, errorEnvelope{Error: errorBody{Code: code, Message: message}})
}

func writeServiceError(w http.ResponseWriter, err error) {
	kind := service.KindOf(err)
	if kind == "" {
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
		return
	}
	writeError(w, httpStatus(kind), string(kind), err.Error())
}
