package records

import (
	"context"
	"time"

	"github.com/turtacn/vehicle-test-records/internal/domain/testrecord"
	apperrors "github.com/turtacn/vehicle-test-records/pkg/errors"
)

// Query holds the optional filters of a lookup.
type Query struct {
	Status   testrecord.Status
	FromDate *time.Time
	ToDate   *time.Time
	Version  testrecord.VersionFilter
	Limit    int
}

func (q Query) options() ([]testrecord.QueryOption, error) {
	if q.FromDate != nil && q.ToDate != nil && q.FromDate.After(*q.ToDate) {
		return nil, apperrors.NewValidation("fromDateTime must not be after toDateTime").
			WithField("fromDateTime", "after toDateTime")
	}
	switch q.Status {
	case "", testrecord.StatusSubmitted, testrecord.StatusCancelled:
	default:
		return nil, apperrors.NewValidation("unknown status %q", q.Status).WithField("status", "invalid")
	}
	switch q.Version {
	case "", testrecord.VersionFilterCurrent, testrecord.VersionFilterArchived, testrecord.VersionFilterAll:
	default:
		return nil, apperrors.NewValidation("unknown version %q", q.Version).WithField("version", "invalid")
	}

	var opts []testrecord.QueryOption
	if q.Status != "" {
		opts = append(opts, testrecord.WithStatus(q.Status))
	}
	if q.FromDate != nil || q.ToDate != nil {
		opts = append(opts, testrecord.WithDateRange(q.FromDate, q.ToDate))
	}
	if q.Version != "" {
		opts = append(opts, testrecord.WithVersion(q.Version))
	}
	if q.Limit > 0 {
		opts = append(opts, testrecord.WithLimit(q.Limit))
	}
	return opts, nil
}

type lookupFunc func(ctx context.Context, id string, opts ...testrecord.QueryOption) ([]*testrecord.TestRecord, error)

func (s *serviceImpl) find(ctx context.Context, field, id string, q Query, lookup lookupFunc) (out []*testrecord.TestRecord, err error) {
	start := s.now()
	defer func() { s.observe(OpQuery, start, err) }()

	if id == "" {
		return nil, apperrors.NewValidation("%s is required", field).WithField(field, "required")
	}
	opts, err := q.options()
	if err != nil {
		return nil, err
	}
	records, err := lookup(ctx, id, opts...)
	if err != nil {
		return nil, apperrors.FromDependency(err, "failed to read test records")
	}
	if len(records) == 0 {
		return nil, apperrors.New(apperrors.ErrCodeRecordNotFound, "no test records found").
			WithDetail(field + "=" + id)
	}
	return records, nil
}

func (s *serviceImpl) FindBySystemNumber(ctx context.Context, systemNumber string, q Query) ([]*testrecord.TestRecord, error) {
	return s.find(ctx, "systemNumber", systemNumber, q, s.repo.GetBySystemNumber)
}

func (s *serviceImpl) FindByTesterStaffID(ctx context.Context, staffID string, q Query) ([]*testrecord.TestRecord, error) {
	return s.find(ctx, "testerStaffId", staffID, q, s.repo.GetByTesterStaffID)
}

func (s *serviceImpl) FindByVIN(ctx context.Context, vin string, q Query) ([]*testrecord.TestRecord, error) {
	return s.find(ctx, "vin", vin, q, s.repo.GetByVIN)
}
