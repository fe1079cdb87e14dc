package records

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/turtacn/vehicle-test-records/internal/domain/testrecord"
	apperrors "github.com/turtacn/vehicle-test-records/pkg/errors"
)

// regenerateCodes re-derives the test code, classification and names of every
// test type of r. Lookups for different entries run concurrently; results are
// written back only when all of them succeed.
func (s *serviceImpl) regenerateCodes(ctx context.Context, r *testrecord.TestRecord) error {
	vehicle := r.Descriptor()
	results := make([]*testrecord.CodeAndClassification, len(r.TestTypes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, tt := range r.TestTypes {
		i, id := i, tt.TestTypeID
		g.Go(func() error {
			res, err := s.classification.GetCodeAndClassification(gctx, id, vehicle)
			if err != nil {
				return apperrors.FromDependency(err, "classification lookup failed for test type "+id)
			}
			if res == nil {
				return apperrors.New(apperrors.ErrCodeClassificationMissing, "classification service returned no result").
					WithDetail("testTypeId=" + id)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	linked := len(r.TestTypes) > 1
	for i, tt := range r.TestTypes {
		res := results[i]
		tt.TestCode = res.DefaultTestCode
		if linked && res.LinkedTestCode != "" {
			tt.TestCode = res.LinkedTestCode
		}
		tt.TestTypeClassification = res.TestTypeClassification
		tt.Name = res.Name
		tt.TestTypeName = res.TestTypeName
	}
	return nil
}

// issueTestNumbers assigns a test number to every entry without one. The
// attempt counter makes a retried create reuse the numbers minted by the
// failed one.
func (s *serviceImpl) issueTestNumbers(ctx context.Context, r *testrecord.TestRecord, attempt int) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, tt := range r.TestTypes {
		if tt.TestNumber != "" {
			continue
		}
		tt := tt
		key := testrecord.IssuanceKey{SystemNumber: r.SystemNumber, TestTypeID: tt.TestTypeID, Attempt: attempt, Entry: i}
		g.Go(func() error {
			number, err := s.numbers.IssueTestNumber(gctx, key)
			if err != nil {
				return apperrors.FromDependency(err, "test number issuance failed for "+key.String())
			}
			if number == "" {
				return apperrors.New(apperrors.ErrCodeTestNumberIssuance, "test number service returned an empty number").
					WithDetail(key.String())
			}
			tt.TestNumber = number
			return nil
		})
	}
	return g.Wait()
}
