package records

import (
	"context"

	"github.com/turtacn/vehicle-test-records/internal/domain/testrecord"
	"github.com/turtacn/vehicle-test-records/internal/infrastructure/monitoring/logging"
	apperrors "github.com/turtacn/vehicle-test-records/pkg/errors"
)

func (s *serviceImpl) Update(ctx context.Context, systemNumber string, incoming *testrecord.TestRecord, actor testrecord.Actor) (out *testrecord.TestRecord, err error) {
	start := s.now()
	defer func() { s.observe(OpUpdate, start, err) }()

	if systemNumber == "" {
		return nil, apperrors.NewValidation("systemNumber is required").WithField("systemNumber", "required")
	}
	if incoming == nil || incoming.TestResultID == "" {
		return nil, apperrors.NewValidation("testResultId is required").WithField("testResultId", "required")
	}
	log := s.logger.With(
		logging.String("system_number", systemNumber),
		logging.String("test_result_id", incoming.TestResultID),
	)

	stored, err := s.repo.GetBySystemNumber(ctx, systemNumber)
	if err != nil {
		return nil, apperrors.FromDependency(err, "failed to read test records")
	}
	old, err := testrecord.FindCurrent(stored, incoming.TestResultID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	baseline := old.Clone()
	archived := old.Clone()
	testrecord.Archive(archived, actor, now)

	payload := incoming.Clone()
	testrecord.SpliceTestTypes(payload, baseline)

	updated := baseline.Clone()
	if err := testrecord.Merge(updated, payload); err != nil {
		return nil, err
	}
	testrecord.StripNonEditable(updated, baseline)

	for _, validate := range []func(*testrecord.TestRecord) error{testrecord.ValidateTestTypes, testrecord.ValidateTemporal} {
		if err := validate(updated); err != nil {
			log.Warn("update rejected", logging.ErrFields(err)...)
			return nil, err
		}
	}

	regenerate := testrecord.NeedsCodeRegeneration(baseline, updated)
	s.observer.ObserveRegeneration(regenerate)
	if regenerate {
		if err := s.regenerateCodes(ctx, updated); err != nil {
			log.Error("code regeneration failed", logging.ErrFields(err)...)
			return nil, err
		}
		for _, tt := range updated.TestTypes {
			tt.TestExpiryDate = nil
			tt.TestAnniversaryDate = nil
		}
		updated, err = s.expiry.Process(ctx, updated, now)
		if err != nil {
			log.Error("expiry recomputation failed", logging.ErrFields(err)...)
			return nil, err
		}
	}

	testrecord.StampCreated(updated, actor, now)
	updated.TestHistory = append(updated.TestHistory, archived)

	if err := s.repo.Update(ctx, updated); err != nil {
		log.Error("failed to persist updated record", logging.ErrFields(err)...)
		return nil, apperrors.FromDependency(err, "failed to persist updated record")
	}

	if s.publisher != nil {
		if perr := s.publisher.PublishRecordUpdated(ctx, updated, archived); perr != nil {
			log.Warn("failed to publish record updated event", logging.Err(perr))
		}
	}

	log.Info("test record updated",
		logging.Bool("codes_regenerated", regenerate),
		logging.Int("history_length", len(updated.TestHistory)),
	)
	return updated, nil
}
