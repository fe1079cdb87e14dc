package expiry

import (
	"context"
	"time"

	"github.com/turtacn/vehicle-test-records/internal/domain/dates"
	"github.com/turtacn/vehicle-test-records/internal/domain/testrecord"
	"github.com/turtacn/vehicle-test-records/internal/infrastructure/monitoring/logging"
	apperrors "github.com/turtacn/vehicle-test-records/pkg/errors"
)

// SelectionObserver receives one callback per computed expiry and per failed
// computation. The metrics layer implements it.
type SelectionObserver interface {
	ObserveStrategy(vt testrecord.VehicleType, strategy StrategyName)
	ObserveFailure(vt testrecord.VehicleType, code apperrors.ErrorCode)
}

type nopObserver struct{}

func (nopObserver) ObserveStrategy(testrecord.VehicleType, StrategyName)       {}
func (nopObserver) ObserveFailure(testrecord.VehicleType, apperrors.ErrorCode) {}

// Service computes expiry, certificate and anniversary fields of a record.
type Service interface {
	// ComputeExpiries returns a copy of rec with expiry dates assigned to
	// every eligible test type. rec itself is never modified. Any failure
	// aborts the whole record.
	ComputeExpiries(ctx context.Context, rec *testrecord.TestRecord, now time.Time) (*testrecord.TestRecord, error)
	// Finalize applies the certificate and anniversary rules to rec in place.
	Finalize(rec *testrecord.TestRecord)
	// Process is ComputeExpiries followed by Finalize on the copy.
	Process(ctx context.Context, rec *testrecord.TestRecord, now time.Time) (*testrecord.TestRecord, error)
}

// ServiceOption configures the expiry service.
type ServiceOption func(*serviceImpl)

// WithObserver registers a selection observer.
func WithObserver(o SelectionObserver) ServiceOption {
	return func(s *serviceImpl) {
		if o != nil {
			s.observer = o
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(l logging.Logger) ServiceOption {
	return func(s *serviceImpl) {
		if l != nil {
			s.logger = l
		}
	}
}

type serviceImpl struct {
	selector *Selector
	catalog  *Catalog
	history  testrecord.HistorySource
	observer SelectionObserver
	logger   logging.Logger
}

// NewService wires the selector, capability catalog and history source.
func NewService(selector *Selector, catalog *Catalog, history testrecord.HistorySource, opts ...ServiceOption) Service {
	s := &serviceImpl{
		selector: selector,
		catalog:  catalog,
		history:  history,
		observer: nopObserver{},
		logger:   logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IsExpiryEligible reports whether entry receives an expiry date. Only test
// types the catalog tags annual qualify.
func IsExpiryEligible(catalog *Catalog, entry *testrecord.TestTypeEntry) bool {
	if entry == nil || entry.TestTypeClassification != testrecord.ClassificationAnnualWithCertificate {
		return false
	}
	if !catalog.Has(entry.TestTypeID, CapabilityAnnual) {
		return false
	}
	return entry.TestResult == testrecord.ResultPass || entry.TestResult == testrecord.ResultPRS
}

func (s *serviceImpl) ComputeExpiries(ctx context.Context, rec *testrecord.TestRecord, now time.Time) (*testrecord.TestRecord, error) {
	if rec == nil {
		return nil, apperrors.InvalidParam("record is required")
	}
	out := rec.Clone()
	vt := out.VehicleType.Normalize()
	if out.TestStatus != testrecord.StatusSubmitted || !s.selector.Rules().IsEligible(vt) {
		return out, nil
	}

	var eligible []*testrecord.TestTypeEntry
	for _, tt := range out.TestTypes {
		if IsExpiryEligible(s.catalog, tt) {
			eligible = append(eligible, tt)
		}
	}
	if len(eligible) == 0 {
		return out, nil
	}

	mostRecent, err := s.history.MostRecentExpiry(ctx, out)
	if err != nil {
		s.observer.ObserveFailure(vt, apperrors.ErrCodeDependency)
		return nil, apperrors.FromDependency(err, "failed to read most recent expiry")
	}
	if mostRecent.IsZero() {
		mostRecent = dates.EpochSentinel
	}

	testDate := out.TestDate(now)
	registration := out.RegistrationOrFirstUse()
	log := s.logger.With(
		logging.String("system_number", out.SystemNumber),
		logging.String("vehicle_type", string(vt)),
	)

	for _, tt := range eligible {
		c := NewContext(tt.TestTypeID, vt, testDate, mostRecent, registration)
		strategy, err := s.selector.SelectFor(c)
		if err != nil {
			s.observer.ObserveFailure(vt, apperrors.GetCode(err))
			log.Error("expiry strategy selection failed", append(logging.ErrFields(err), logging.String("test_type_id", tt.TestTypeID))...)
			return nil, err
		}
		expiry, err := strategy.Compute(c)
		if err != nil {
			s.observer.ObserveFailure(vt, apperrors.GetCode(err))
			log.Error("expiry computation failed", append(logging.ErrFields(err),
				logging.String("test_type_id", tt.TestTypeID),
				logging.String("strategy", string(strategy.Name())))...)
			return nil, err
		}
		s.observer.ObserveStrategy(vt, strategy.Name())
		log.Debug("expiry computed",
			logging.String("test_type_id", tt.TestTypeID),
			logging.String("strategy", string(strategy.Name())),
			logging.String("expiry", dates.FormatDate(expiry)),
		)
		tt.TestExpiryDate = testrecord.TimePtr(expiry)
	}
	return out, nil
}

func (s *serviceImpl) Finalize(rec *testrecord.TestRecord) {
	if rec == nil {
		return
	}
	ApplyCertificateNumbers(s.catalog, rec)
	ApplyAnniversaryDates(rec)
}

func (s *serviceImpl) Process(ctx context.Context, rec *testrecord.TestRecord, now time.Time) (*testrecord.TestRecord, error) {
	out, err := s.ComputeExpiries(ctx, rec, now)
	if err != nil {
		return nil, err
	}
	s.Finalize(out)
	return out, nil
}
