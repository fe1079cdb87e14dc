// Package handlers implements the HTTP handlers of the test record API.
package handlers

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/turtacn/vehicle-test-records/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/vehicle-test-records/pkg/errors"
	"github.com/turtacn/vehicle-test-records/pkg/types/record"
)

const defaultMaxBodyBytes int64 = 1 << 20

// writeJSON writes data with the given status.
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// writeAppError renders err as an ErrorResponse. Errors that are not an
// AppError are reported as a generic internal error; the original is logged.
func writeAppError(w http.ResponseWriter, r *http.Request, logger logging.Logger, err error) {
	var appErr *errors.AppError
	if !stderrors.As(err, &appErr) {
		appErr = errors.Internal("internal server error").WithCause(err)
	}
	status := appErr.HTTPStatus()
	reqID := chimw.GetReqID(r.Context())

	if status >= http.StatusInternalServerError {
		logger.Error("request failed",
			logging.String("request_id", reqID),
			logging.String("path", r.URL.Path),
			logging.ErrCode(appErr),
			logging.Err(err))
	}

	writeJSON(w, status, record.ErrorResponse{Error: record.ErrorDetail{
		Code:      string(appErr.Code),
		Message:   appErr.Message,
		Detail:    appErr.Detail,
		Fields:    appErr.Fields,
		RequestID: reqID,
	}})
}

// decodeJSON reads at most limit bytes of JSON into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, dst interface{}) error {
	if limit <= 0 {
		limit = defaultMaxBodyBytes
	}
	body := http.MaxBytesReader(w, r.Body, limit)
	defer body.Close()

	if err := json.NewDecoder(body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case stderrors.As(err, &tooLarge):
			return errors.NewValidation("request body exceeds %d bytes", limit)
		case stderrors.Is(err, io.EOF):
			return errors.NewValidation("request body is empty")
		default:
			return errors.NewValidation("malformed request body").WithDetail(err.Error())
		}
	}
	return nil
}
