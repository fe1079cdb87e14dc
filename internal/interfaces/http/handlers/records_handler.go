package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/turtacn/vehicle-test-records/internal/application/records"
	"github.com/turtacn/vehicle-test-records/internal/domain/testrecord"
	"github.com/turtacn/vehicle-test-records/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/vehicle-test-records/pkg/errors"
	"github.com/turtacn/vehicle-test-records/pkg/types/record"
)

// Route parameters.
const (
	ParamSystemNumber = "systemNumber"
	ParamStaffID      = "staffId"
	ParamVIN          = "vin"
)

// RecordsHandler serves the /test-records resource.
type RecordsHandler struct {
	svc          records.Service
	logger       logging.Logger
	maxBodyBytes int64
}

// RecordsHandlerOption configures a RecordsHandler.
type RecordsHandlerOption func(*RecordsHandler)

// WithMaxBodyBytes caps the size of write requests.
func WithMaxBodyBytes(n int64) RecordsHandlerOption {
	return func(h *RecordsHandler) {
		if n > 0 {
			h.maxBodyBytes = n
		}
	}
}

func NewRecordsHandler(svc records.Service, logger logging.Logger, opts ...RecordsHandlerOption) *RecordsHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	h := &RecordsHandler{svc: svc, logger: logger, maxBodyBytes: defaultMaxBodyBytes}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type findFunc func(ctx context.Context, id string, q records.Query) ([]*testrecord.TestRecord, error)

// GetBySystemNumber handles GET /test-records/{systemNumber}.
func (h *RecordsHandler) GetBySystemNumber(w http.ResponseWriter, r *http.Request) {
	h.find(w, r, ParamSystemNumber, h.svc.FindBySystemNumber)
}

// GetByTesterStaffID handles GET /test-records/tester/{staffId}.
func (h *RecordsHandler) GetByTesterStaffID(w http.ResponseWriter, r *http.Request) {
	h.find(w, r, ParamStaffID, h.svc.FindByTesterStaffID)
}

// GetByVIN handles GET /test-records/vin/{vin}.
func (h *RecordsHandler) GetByVIN(w http.ResponseWriter, r *http.Request) {
	h.find(w, r, ParamVIN, h.svc.FindByVIN)
}

func (h *RecordsHandler) find(w http.ResponseWriter, r *http.Request, param string, fn findFunc) {
	id := chi.URLParam(r, param)
	if id == "" {
		writeAppError(w, r, h.logger, errors.NewValidation("%s is required", param).WithField(param, "required"))
		return
	}
	wire, err := record.ParseQuery(r.URL.Query())
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}

	out, err := fn(r.Context(), id, records.Query{
		Status:   wire.Status,
		FromDate: wire.From,
		ToDate:   wire.To,
		Version:  wire.Version,
		Limit:    wire.Limit,
	})
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// Create handles POST /test-records.
func (h *RecordsHandler) Create(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeSubmit(w, r)
	if !ok {
		return
	}
	out, err := h.svc.Create(r.Context(), req.TestResult, req.User.Actor())
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	h.logger.Info("test record created",
		logging.String("system_number", out.SystemNumber),
		logging.String("test_result_id", out.TestResultID))
	writeJSON(w, http.StatusCreated, out)
}

// Update handles PUT /test-records/{systemNumber}.
func (h *RecordsHandler) Update(w http.ResponseWriter, r *http.Request) {
	systemNumber := chi.URLParam(r, ParamSystemNumber)
	req, ok := h.decodeSubmit(w, r)
	if !ok {
		return
	}
	out, err := h.svc.Update(r.Context(), systemNumber, req.TestResult, req.User.Actor())
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *RecordsHandler) decodeSubmit(w http.ResponseWriter, r *http.Request) (*record.SubmitRequest, bool) {
	var req record.SubmitRequest
	if err := decodeJSON(w, r, h.maxBodyBytes, &req); err != nil {
		writeAppError(w, r, h.logger, err)
		return nil, false
	}
	if err := req.Validate(); err != nil {
		writeAppError(w, r, h.logger, err)
		return nil, false
	}
	return &req, true
}
