package records

import (
	"context"

	"github.com/google/uuid"

	"github.com/turtacn/vehicle-test-records/internal/domain/testrecord"
	"github.com/turtacn/vehicle-test-records/internal/infrastructure/monitoring/logging"
	apperrors "github.com/turtacn/vehicle-test-records/pkg/errors"
)

func (s *serviceImpl) Create(ctx context.Context, rec *testrecord.TestRecord, actor testrecord.Actor) (out *testrecord.TestRecord, err error) {
	start := s.now()
	defer func() { s.observe(OpCreate, start, err) }()

	if err := testrecord.ValidateForCreate(rec); err != nil {
		return nil, err
	}
	r := rec.Clone()
	if r.TestResultID == "" {
		r.TestResultID = uuid.NewString()
	}
	r.TestHistory = nil
	log := s.logger.With(
		logging.String("system_number", r.SystemNumber),
		logging.String("test_result_id", r.TestResultID),
	)

	existing, err := s.repo.GetBySystemNumber(ctx, r.SystemNumber)
	if err != nil {
		return nil, apperrors.FromDependency(err, "failed to read test records")
	}

	if r.TestStatus == testrecord.StatusSubmitted {
		if err := s.issueTestNumbers(ctx, r, len(existing)+1); err != nil {
			log.Error("test number issuance failed", logging.ErrFields(err)...)
			return nil, err
		}
	}
	if err := s.regenerateCodes(ctx, r); err != nil {
		log.Error("classification failed", logging.ErrFields(err)...)
		return nil, err
	}

	now := s.now().UTC()
	r, err = s.expiry.Process(ctx, r, now)
	if err != nil {
		log.Error("expiry computation failed", logging.ErrFields(err)...)
		return nil, err
	}
	testrecord.StampCreated(r, actor, now)

	if err := s.repo.Put(ctx, r); err != nil {
		if apperrors.IsConflict(err) {
			return nil, err
		}
		log.Error("failed to store test record", logging.ErrFields(err)...)
		return nil, apperrors.FromDependency(err, "failed to store test record")
	}

	if s.publisher != nil && r.TestStatus == testrecord.StatusSubmitted {
		if perr := s.publisher.PublishRecordSubmitted(ctx, r); perr != nil {
			log.Warn("failed to publish record submitted event", logging.Err(perr))
		}
	}

	log.Info("test record created", logging.Int("test_types", len(r.TestTypes)))
	return r, nil
}
