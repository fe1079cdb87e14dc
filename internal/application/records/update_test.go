package records

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/vehicle-test-records/internal/domain/dates"
	"github.com/turtacn/vehicle-test-records/internal/domain/testrecord"
	"github.com/turtacn/vehicle-test-records/internal/testutil"
	apperrors "github.com/turtacn/vehicle-test-records/pkg/errors"
)

var admin = testrecord.Actor{ID: "admin-1", Name: "Records Admin"}

func renamePayload(id string) *testrecord.TestRecord {
	return &testrecord.TestRecord{
		TestResultID:       id,
		TesterName:         "Renamed Tester",
		TestStationPNumber: "09-4129632",
	}
}

func TestUpdate_ArchivesAndMerges(t *testing.T) {
	original := testutil.NewPSVRecord()
	repo := newMemoryRepository(original)
	h := newHarness(t, repo)
	h.publisher.On("PublishRecordUpdated", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()

	got, err := h.svc.Update(context.Background(), original.SystemNumber, renamePayload(original.TestResultID), admin)
	require.NoError(t, err)

	wantArchived := original.Clone()
	wantArchived.TestVersion = testrecord.VersionArchived
	wantArchived.LastUpdatedAt = testrecord.TimePtr(fixedNow)
	wantArchived.LastUpdatedByID = admin.ID
	wantArchived.LastUpdatedByName = admin.Name

	wantCurrent := original.Clone()
	wantCurrent.TesterName = "Renamed Tester"
	wantCurrent.TestStationPNumber = "09-4129632"
	wantCurrent.TestVersion = testrecord.VersionCurrent
	wantCurrent.CreatedAt = testrecord.TimePtr(fixedNow)
	wantCurrent.CreatedByID = admin.ID
	wantCurrent.CreatedByName = admin.Name
	wantCurrent.TestHistory = []*testrecord.TestRecord{wantArchived}

	assert.Equal(t, wantCurrent, got)
	assert.Equal(t, wantCurrent, repo.get(original.TestResultID))
	assert.Equal(t, []bool{false}, h.observer.regenerated)
	h.publisher.AssertExpectations(t)
}

func TestUpdate_UnrelatedFieldSkipsClassification(t *testing.T) {
	original := testutil.NewPSVRecord()
	h := newHarness(t, newMemoryRepository(original))
	h.publisher.On("PublishRecordUpdated", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	got, err := h.svc.Update(context.Background(), original.SystemNumber, renamePayload(original.TestResultID), admin)
	require.NoError(t, err)

	h.classification.AssertNotCalled(t, "GetCodeAndClassification", mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, "aas", got.TestTypes[0].TestCode)
	assert.Nil(t, got.TestTypes[0].TestExpiryDate, "dates are preserved, not recomputed")
}

func TestUpdate_TemporalViolationNeverPersists(t *testing.T) {
	original := testutil.NewPSVRecord()
	repo := new(mockRepository)
	repo.On("GetBySystemNumber", mock.Anything, original.SystemNumber).Return([]*testrecord.TestRecord{original}, nil)
	h := newHarness(t, repo)

	edited := original.TestTypes[0].Clone()
	edited.TestTypeStartTimestamp = testrecord.TimePtr(testutil.FixtureTestDate.Add(time.Hour))
	edited.TestTypeEndTimestamp = testrecord.TimePtr(testutil.FixtureTestDate)
	incoming := &testrecord.TestRecord{TestResultID: original.TestResultID, TestTypes: []*testrecord.TestTypeEntry{edited}}

	got, err := h.svc.Update(context.Background(), original.SystemNumber, incoming, admin)
	require.Error(t, err)
	assert.Nil(t, got)
	assert.True(t, apperrors.IsValidation(err))
	assert.Equal(t, 400, apperrors.HTTPStatusForCode(apperrors.GetCode(err)))

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Contains(t, appErr.Fields, "testTypes[0].testTypeStartTimestamp")

	repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	h.classification.AssertNotCalled(t, "GetCodeAndClassification", mock.Anything, mock.Anything, mock.Anything)
	h.publisher.AssertNotCalled(t, "PublishRecordUpdated", mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, 1, h.observer.failures[OpUpdate])
}

func TestUpdate_TwoIdenticalCallsArchiveTwice(t *testing.T) {
	original := testutil.NewPSVRecord()
	repo := newMemoryRepository(original)
	h := newHarness(t, repo)
	h.publisher.On("PublishRecordUpdated", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	_, err := h.svc.Update(context.Background(), original.SystemNumber, renamePayload(original.TestResultID), admin)
	require.NoError(t, err)
	got, err := h.svc.Update(context.Background(), original.SystemNumber, renamePayload(original.TestResultID), admin)
	require.NoError(t, err)

	require.Len(t, got.TestHistory, 2)
	assert.Equal(t, "Dev Tester", got.TestHistory[0].TesterName)
	assert.Equal(t, "Renamed Tester", got.TestHistory[1].TesterName)
	for _, archived := range got.TestHistory {
		assert.Equal(t, testrecord.VersionArchived, archived.TestVersion)
		assert.Nil(t, archived.TestHistory)
	}
	assert.Equal(t, 2, repo.updates)
}

func TestUpdate_TestTypeChangeRegeneratesCodesAndDates(t *testing.T) {
	original := testutil.NewPSVRecord()
	h := newHarness(t, newMemoryRepository(original))
	h.classification.On("GetCodeAndClassification", mock.Anything, "3", mock.Anything).Return(annualPSVClassification(), nil).Once()
	h.publisher.On("PublishRecordUpdated", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	edited := original.TestTypes[0].Clone()
	edited.TestTypeID = "3"
	incoming := &testrecord.TestRecord{TestResultID: original.TestResultID, TestTypes: []*testrecord.TestTypeEntry{edited}}

	got, err := h.svc.Update(context.Background(), original.SystemNumber, incoming, admin)
	require.NoError(t, err)

	tt := got.TestTypes[0]
	assert.Equal(t, "aal", tt.TestCode, "single test type uses the default code")
	assert.Equal(t, "2025-03-09", dates.FormatDate(*tt.TestExpiryDate))
	assert.Equal(t, "2025-01-10", dates.FormatDate(*tt.TestAnniversaryDate))
	assert.Equal(t, tt.TestNumber, tt.CertificateNumber)
	assert.Equal(t, []bool{true}, h.observer.regenerated)
	h.classification.AssertExpectations(t)
}

func TestUpdate_VehicleAttributeChangeRegenerates(t *testing.T) {
	original := testutil.NewPSVRecord()
	h := newHarness(t, newMemoryRepository(original))
	h.classification.On("GetCodeAndClassification", mock.Anything, "1",
		mock.MatchedBy(func(v testrecord.VehicleDescriptor) bool { return v.NoOfAxles == 3 })).
		Return(annualPSVClassification(), nil).Once()
	h.publisher.On("PublishRecordUpdated", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	got, err := h.svc.Update(context.Background(), original.SystemNumber,
		&testrecord.TestRecord{TestResultID: original.TestResultID, NoOfAxles: 3}, admin)
	require.NoError(t, err)
	assert.Equal(t, 3, got.NoOfAxles)
	assert.Equal(t, "aal", got.TestTypes[0].TestCode)
	h.classification.AssertExpectations(t)
}

func TestUpdate_ZeroWheelsDrivenOverwritesAndRegenerates(t *testing.T) {
	original := testutil.NewPSVRecord()
	original.NumberOfWheelsDriven = testrecord.IntPtr(4)
	h := newHarness(t, newMemoryRepository(original))
	h.classification.On("GetCodeAndClassification", mock.Anything, "1",
		mock.MatchedBy(func(v testrecord.VehicleDescriptor) bool {
			return v.NumberOfWheelsDriven != nil && *v.NumberOfWheelsDriven == 0
		})).
		Return(annualPSVClassification(), nil).Once()
	h.publisher.On("PublishRecordUpdated", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	got, err := h.svc.Update(context.Background(), original.SystemNumber,
		&testrecord.TestRecord{TestResultID: original.TestResultID, NumberOfWheelsDriven: testrecord.IntPtr(0)}, admin)
	require.NoError(t, err)

	require.NotNil(t, got.NumberOfWheelsDriven)
	assert.Equal(t, 0, *got.NumberOfWheelsDriven)
	assert.Equal(t, []bool{true}, h.observer.regenerated)
	h.classification.AssertExpectations(t)
}

func TestUpdate_MalformedTestTypesRejected(t *testing.T) {
	original := testutil.NewPSVRecord()

	tests := map[string][]*testrecord.TestTypeEntry{
		"nil entry":      {original.TestTypes[0].Clone(), nil},
		"empty id":       {{TestTypeID: ""}, original.TestTypes[0].Clone()},
		"blank id alone": {{TestTypeID: "  "}},
	}
	for name, entries := range tests {
		t.Run(name, func(t *testing.T) {
			repo := new(mockRepository)
			repo.On("GetBySystemNumber", mock.Anything, original.SystemNumber).Return([]*testrecord.TestRecord{original}, nil)
			h := newHarness(t, repo)

			incoming := &testrecord.TestRecord{TestResultID: original.TestResultID, TestTypes: entries}
			got, err := h.svc.Update(context.Background(), original.SystemNumber, incoming, admin)

			require.Error(t, err)
			assert.Nil(t, got)
			assert.True(t, apperrors.IsValidation(err))
			assert.Equal(t, 400, apperrors.HTTPStatusForCode(apperrors.GetCode(err)))
			h.classification.AssertNotCalled(t, "GetCodeAndClassification", mock.Anything, mock.Anything, mock.Anything)
			repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
		})
	}
}

func TestUpdate_SingleTestTypeEditKeepsSiblings(t *testing.T) {
	original := testutil.NewHGVRecord()
	h := newHarness(t, newMemoryRepository(original))
	h.classification.On("GetCodeAndClassification", mock.Anything, "94", mock.Anything).Return(&testrecord.CodeAndClassification{
		DefaultTestCode:        "aav3",
		LinkedTestCode:         "wdv3",
		TestTypeClassification: testrecord.ClassificationAnnualWithCertificate,
		Name:                   "Annual test",
		TestTypeName:           "Annual test",
	}, nil)
	h.classification.On("GetCodeAndClassification", mock.Anything, "62", mock.Anything).Return(&testrecord.CodeAndClassification{
		DefaultTestCode:        "rpv",
		LinkedTestCode:         "rlv",
		TestTypeClassification: testrecord.ClassificationNonAnnual,
		Name:                   "Paid roadworthiness retest",
		TestTypeName:           "Paid roadworthiness retest",
	}, nil)
	h.publisher.On("PublishRecordUpdated", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	edited := original.TestTypes[1].Clone()
	edited.TestResult = testrecord.ResultFail
	incoming := &testrecord.TestRecord{TestResultID: original.TestResultID, TestTypes: []*testrecord.TestTypeEntry{edited}}

	got, err := h.svc.Update(context.Background(), original.SystemNumber, incoming, admin)
	require.NoError(t, err)

	require.Len(t, got.TestTypes, 2)
	assert.Equal(t, "62", got.TestTypes[0].TestTypeID)
	assert.Equal(t, testrecord.ResultFail, got.TestTypes[0].TestResult)
	assert.Equal(t, "rlv", got.TestTypes[0].TestCode)
	assert.Equal(t, "94", got.TestTypes[1].TestTypeID)
	assert.Equal(t, "wdv3", got.TestTypes[1].TestCode)
	assert.Equal(t, "2025-03-31", dates.FormatDate(*got.TestTypes[1].TestExpiryDate))
	assert.Nil(t, got.TestTypes[0].TestExpiryDate)
}

func TestUpdate_NotFound(t *testing.T) {
	original := testutil.NewPSVRecord()
	archivedOnly := original.Clone()
	archivedOnly.TestVersion = testrecord.VersionArchived

	cases := map[string][]*testrecord.TestRecord{
		"no records":    {},
		"other id":      {testutil.NewHGVRecord()},
		"archived only": {archivedOnly},
		"ambiguous":     {original, original.Clone()},
	}
	for name, stored := range cases {
		t.Run(name, func(t *testing.T) {
			repo := new(mockRepository)
			repo.On("GetBySystemNumber", mock.Anything, original.SystemNumber).Return(stored, nil)
			h := newHarness(t, repo)

			_, err := h.svc.Update(context.Background(), original.SystemNumber, renamePayload(original.TestResultID), admin)
			require.Error(t, err)
			assert.True(t, apperrors.IsNotFound(err))
			repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
		})
	}
}

func TestUpdate_InvalidArguments(t *testing.T) {
	h := newHarness(t, new(mockRepository))

	_, err := h.svc.Update(context.Background(), "", renamePayload("x"), admin)
	assert.True(t, apperrors.IsValidation(err))

	_, err = h.svc.Update(context.Background(), "11000001", &testrecord.TestRecord{}, admin)
	assert.True(t, apperrors.IsValidation(err))

	_, err = h.svc.Update(context.Background(), "11000001", nil, admin)
	assert.True(t, apperrors.IsValidation(err))
}

func TestUpdate_CollaboratorFailures(t *testing.T) {
	original := testutil.NewPSVRecord()
	typeChange := func() *testrecord.TestRecord {
		edited := original.TestTypes[0].Clone()
		edited.TestTypeID = "3"
		return &testrecord.TestRecord{TestResultID: original.TestResultID, TestTypes: []*testrecord.TestTypeEntry{edited}}
	}

	t.Run("lookup failure", func(t *testing.T) {
		repo := new(mockRepository)
		repo.On("GetBySystemNumber", mock.Anything, original.SystemNumber).Return(nil, errors.New("connection refused"))
		h := newHarness(t, repo)

		_, err := h.svc.Update(context.Background(), original.SystemNumber, renamePayload(original.TestResultID), admin)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeDependency))
	})

	t.Run("classification failure", func(t *testing.T) {
		repo := new(mockRepository)
		repo.On("GetBySystemNumber", mock.Anything, original.SystemNumber).Return([]*testrecord.TestRecord{original}, nil)
		h := newHarness(t, repo)
		h.classification.On("GetCodeAndClassification", mock.Anything, "3", mock.Anything).Return(nil, errors.New("503"))

		_, err := h.svc.Update(context.Background(), original.SystemNumber, typeChange(), admin)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeDependency))
		assert.Equal(t, 500, apperrors.HTTPStatusForCode(apperrors.GetCode(err)))
		repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})

	t.Run("classification not found passes through", func(t *testing.T) {
		repo := new(mockRepository)
		repo.On("GetBySystemNumber", mock.Anything, original.SystemNumber).Return([]*testrecord.TestRecord{original}, nil)
		h := newHarness(t, repo)
		h.classification.On("GetCodeAndClassification", mock.Anything, "3", mock.Anything).
			Return(nil, apperrors.NotFound("test type not applicable to vehicle"))

		_, err := h.svc.Update(context.Background(), original.SystemNumber, typeChange(), admin)
		assert.True(t, apperrors.IsNotFound(err))
	})

	t.Run("write failure", func(t *testing.T) {
		repo := new(mockRepository)
		repo.On("GetBySystemNumber", mock.Anything, original.SystemNumber).Return([]*testrecord.TestRecord{original}, nil)
		repo.On("Update", mock.Anything, mock.Anything).Return(errors.New("disk full"))
		h := newHarness(t, repo)

		_, err := h.svc.Update(context.Background(), original.SystemNumber, renamePayload(original.TestResultID), admin)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeDependency))
		h.publisher.AssertNotCalled(t, "PublishRecordUpdated", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("publish failure is not fatal", func(t *testing.T) {
		h := newHarness(t, newMemoryRepository(original))
		h.publisher.On("PublishRecordUpdated", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("broker down"))

		got, err := h.svc.Update(context.Background(), original.SystemNumber, renamePayload(original.TestResultID), admin)
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.True(t, h.logger.HasMessage("warn", "failed to publish record updated event"))
	})
}
