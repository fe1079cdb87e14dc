package records

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/vehicle-test-records/internal/domain/dates"
	"github.com/turtacn/vehicle-test-records/internal/domain/expiry"
	"github.com/turtacn/vehicle-test-records/internal/domain/testrecord"
	"github.com/turtacn/vehicle-test-records/internal/testutil"
	apperrors "github.com/turtacn/vehicle-test-records/pkg/errors"
)

var fixedNow = time.Date(2024, time.March, 12, 9, 0, 0, 0, time.UTC)

// -----------------------------------------------------------------------
// Mock: Repository
// -----------------------------------------------------------------------

type mockRepository struct {
	mock.Mock
}

func (m *mockRepository) GetBySystemNumber(ctx context.Context, systemNumber string, opts ...testrecord.QueryOption) ([]*testrecord.TestRecord, error) {
	args := m.Called(ctx, systemNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*testrecord.TestRecord), args.Error(1)
}

func (m *mockRepository) GetByTesterStaffID(ctx context.Context, staffID string, opts ...testrecord.QueryOption) ([]*testrecord.TestRecord, error) {
	args := m.Called(ctx, staffID, testrecord.ApplyQueryOptions(opts...))
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*testrecord.TestRecord), args.Error(1)
}

func (m *mockRepository) GetByVIN(ctx context.Context, vin string, opts ...testrecord.QueryOption) ([]*testrecord.TestRecord, error) {
	args := m.Called(ctx, vin)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*testrecord.TestRecord), args.Error(1)
}

func (m *mockRepository) Put(ctx context.Context, r *testrecord.TestRecord) error {
	return m.Called(ctx, r).Error(0)
}

func (m *mockRepository) Update(ctx context.Context, r *testrecord.TestRecord) error {
	return m.Called(ctx, r).Error(0)
}

// -----------------------------------------------------------------------
// Mock: collaborators
// -----------------------------------------------------------------------

type mockClassification struct {
	mock.Mock
}

func (m *mockClassification) GetCodeAndClassification(ctx context.Context, testTypeID string, vehicle testrecord.VehicleDescriptor) (*testrecord.CodeAndClassification, error) {
	args := m.Called(ctx, testTypeID, vehicle)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*testrecord.CodeAndClassification), args.Error(1)
}

type mockIssuer struct {
	mock.Mock
}

func (m *mockIssuer) IssueTestNumber(ctx context.Context, key testrecord.IssuanceKey) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishRecordSubmitted(ctx context.Context, r *testrecord.TestRecord) error {
	return m.Called(ctx, r).Error(0)
}

func (m *mockPublisher) PublishRecordUpdated(ctx context.Context, current, archived *testrecord.TestRecord) error {
	return m.Called(ctx, current, archived).Error(0)
}

type sentinelHistory struct{}

func (sentinelHistory) MostRecentExpiry(context.Context, *testrecord.TestRecord) (time.Time, error) {
	return dates.EpochSentinel, nil
}

// -----------------------------------------------------------------------
// In-memory store
// -----------------------------------------------------------------------

// memoryRepository keeps one document per testResultId, like the real store.
type memoryRepository struct {
	mu      sync.Mutex
	docs    map[string]*testrecord.TestRecord
	updates int
}

func newMemoryRepository(records ...*testrecord.TestRecord) *memoryRepository {
	m := &memoryRepository{docs: map[string]*testrecord.TestRecord{}}
	for _, r := range records {
		m.docs[r.TestResultID] = r.Clone()
	}
	return m
}

func (m *memoryRepository) filter(match func(*testrecord.TestRecord) bool, opts []testrecord.QueryOption) []*testrecord.TestRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	o := testrecord.ApplyQueryOptions(opts...)
	var out []*testrecord.TestRecord
	for _, r := range m.docs {
		if match(r) && o.Matches(r) {
			out = append(out, r.Clone())
		}
	}
	return out
}

func (m *memoryRepository) GetBySystemNumber(_ context.Context, id string, opts ...testrecord.QueryOption) ([]*testrecord.TestRecord, error) {
	return m.filter(func(r *testrecord.TestRecord) bool { return r.SystemNumber == id }, opts), nil
}

func (m *memoryRepository) GetByTesterStaffID(_ context.Context, id string, opts ...testrecord.QueryOption) ([]*testrecord.TestRecord, error) {
	return m.filter(func(r *testrecord.TestRecord) bool { return r.TesterStaffID == id }, opts), nil
}

func (m *memoryRepository) GetByVIN(_ context.Context, id string, opts ...testrecord.QueryOption) ([]*testrecord.TestRecord, error) {
	return m.filter(func(r *testrecord.TestRecord) bool { return r.VIN == id }, opts), nil
}

func (m *memoryRepository) Put(_ context.Context, r *testrecord.TestRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[r.TestResultID]; ok {
		return apperrors.New(apperrors.ErrCodeRecordAlreadyExists, "duplicate testResultId")
	}
	m.docs[r.TestResultID] = r.Clone()
	return nil
}

func (m *memoryRepository) Update(_ context.Context, r *testrecord.TestRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[r.TestResultID] = r.Clone()
	m.updates++
	return nil
}

func (m *memoryRepository) get(id string) *testrecord.TestRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.docs[id].Clone()
}

// -----------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------

type recordingObserver struct {
	mu          sync.Mutex
	ops         map[string]int
	failures    map[string]int
	regenerated []bool
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{ops: map[string]int{}, failures: map[string]int{}}
}

func (o *recordingObserver) ObserveOperation(op string, err error, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ops[op]++
	if err != nil {
		o.failures[op]++
	}
}

func (o *recordingObserver) ObserveRegeneration(regenerated bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.regenerated = append(o.regenerated, regenerated)
}

func newExpiryService(t *testing.T) expiry.Service {
	t.Helper()
	rules, err := expiry.LoadRuleTable(expiry.DefaultRulesFS())
	require.NoError(t, err)
	catalog, err := expiry.LoadCatalog(expiry.DefaultRulesFS())
	require.NoError(t, err)
	return expiry.NewService(expiry.NewSelector(rules), catalog, sentinelHistory{})
}

type harness struct {
	repo           testrecord.Repository
	classification *mockClassification
	issuer         *mockIssuer
	publisher      *mockPublisher
	observer       *recordingObserver
	logger         *testutil.MockLogger
	svc            Service
}

func newHarness(t *testing.T, repo testrecord.Repository) *harness {
	t.Helper()
	h := &harness{
		repo:           repo,
		classification: new(mockClassification),
		issuer:         new(mockIssuer),
		publisher:      new(mockPublisher),
		observer:       newRecordingObserver(),
		logger:         testutil.NewMockLogger(),
	}
	h.svc = NewService(Dependencies{
		Repository:     repo,
		Classification: h.classification,
		TestNumbers:    h.issuer,
		Expiry:         newExpiryService(t),
		Publisher:      h.publisher,
	},
		WithLogger(h.logger),
		WithObserver(h.observer),
		WithClock(func() time.Time { return fixedNow }),
	)
	return h
}

func annualPSVClassification() *testrecord.CodeAndClassification {
	return &testrecord.CodeAndClassification{
		DefaultTestCode:        "aal",
		LinkedTestCode:         "wdl",
		TestTypeClassification: testrecord.ClassificationAnnualWithCertificate,
		Name:                   "Annual test",
		TestTypeName:           "Annual test",
	}
}
