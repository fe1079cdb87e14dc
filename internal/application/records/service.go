// Package records is the application service for vehicle test records. It
// coordinates the record store, the classification and test number services,
// the expiry engine and event publication for create, update and query
// requests.
package records

import (
	"context"
	"time"

	"github.com/turtacn/vehicle-test-records/internal/domain/expiry"
	"github.com/turtacn/vehicle-test-records/internal/domain/testrecord"
	"github.com/turtacn/vehicle-test-records/internal/infrastructure/monitoring/logging"
)

// Service defines the test record use cases.
type Service interface {
	// Create validates and stores a new submission.
	Create(ctx context.Context, rec *testrecord.TestRecord, actor testrecord.Actor) (*testrecord.TestRecord, error)
	// Update archives the current version of incoming.TestResultID and stores
	// the merged result as the new current version.
	Update(ctx context.Context, systemNumber string, incoming *testrecord.TestRecord, actor testrecord.Actor) (*testrecord.TestRecord, error)
	FindBySystemNumber(ctx context.Context, systemNumber string, q Query) ([]*testrecord.TestRecord, error)
	FindByTesterStaffID(ctx context.Context, staffID string, q Query) ([]*testrecord.TestRecord, error)
	FindByVIN(ctx context.Context, vin string, q Query) ([]*testrecord.TestRecord, error)
}

// Operation names reported to the Observer.
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpQuery  = "query"
)

// Observer receives the outcome and duration of every operation.
type Observer interface {
	ObserveOperation(op string, err error, elapsed time.Duration)
	ObserveRegeneration(regenerated bool)
}

type nopObserver struct{}

func (nopObserver) ObserveOperation(string, error, time.Duration) {}
func (nopObserver) ObserveRegeneration(bool)                      {}

// Dependencies groups the collaborators of the service.
type Dependencies struct {
	Repository     testrecord.Repository
	Classification testrecord.ClassificationLookup
	TestNumbers    testrecord.TestNumberIssuer
	Expiry         expiry.Service
	Publisher      testrecord.EventPublisher
}

// Option configures the service.
type Option func(*serviceImpl)

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(s *serviceImpl) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithObserver registers an operation observer.
func WithObserver(o Observer) Option {
	return func(s *serviceImpl) {
		if o != nil {
			s.observer = o
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *serviceImpl) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLookupConcurrency caps the parallel collaborator calls made for the test
// types of one record.
func WithLookupConcurrency(n int) Option {
	return func(s *serviceImpl) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

type serviceImpl struct {
	repo           testrecord.Repository
	classification testrecord.ClassificationLookup
	numbers        testrecord.TestNumberIssuer
	expiry         expiry.Service
	publisher      testrecord.EventPublisher
	logger         logging.Logger
	observer       Observer
	now            func() time.Time
	concurrency    int
}

// NewService creates the test record service. A nil publisher disables
// events.
func NewService(deps Dependencies, opts ...Option) Service {
	s := &serviceImpl{
		repo:           deps.Repository,
		classification: deps.Classification,
		numbers:        deps.TestNumbers,
		expiry:         deps.Expiry,
		publisher:      deps.Publisher,
		logger:         logging.NewNopLogger(),
		observer:       nopObserver{},
		now:            time.Now,
		concurrency:    4,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("records")
	return s
}

func (s *serviceImpl) observe(op string, start time.Time, err error) {
	s.observer.ObserveOperation(op, err, s.now().Sub(start))
}
