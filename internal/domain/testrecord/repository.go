package testrecord

import (
	"context"
	"strconv"
	"time"
)

// VersionFilter selects which lifecycle versions a query returns.
type VersionFilter string

const (
	VersionFilterCurrent  VersionFilter = "current"
	VersionFilterArchived VersionFilter = "archived"
	VersionFilterAll      VersionFilter = "all"
)

// QueryOptions filters record lookups.
type QueryOptions struct {
	Status   Status
	FromDate *time.Time
	ToDate   *time.Time
	Version  VersionFilter
	Limit    int
}

// QueryOption is a functional option for record lookups.
type QueryOption func(*QueryOptions)

// WithStatus restricts results to one submission status.
func WithStatus(s Status) QueryOption {
	return func(o *QueryOptions) { o.Status = s }
}

// WithDateRange restricts results to records whose test start falls in
// [from, to]. Nil bounds are open.
func WithDateRange(from, to *time.Time) QueryOption {
	return func(o *QueryOptions) {
		o.FromDate = from
		o.ToDate = to
	}
}

// WithVersion selects current, archived or all versions.
func WithVersion(v VersionFilter) QueryOption {
	return func(o *QueryOptions) { o.Version = v }
}

// WithLimit caps the result size.
func WithLimit(limit int) QueryOption {
	return func(o *QueryOptions) { o.Limit = limit }
}

// ApplyQueryOptions applies opts over the defaults: any status, current
// versions only, at most 500 records.
func ApplyQueryOptions(opts ...QueryOption) QueryOptions {
	options := QueryOptions{
		Version: VersionFilterCurrent,
		Limit:   500,
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.Limit <= 0 || options.Limit > 500 {
		options.Limit = 500
	}
	switch options.Version {
	case VersionFilterCurrent, VersionFilterArchived, VersionFilterAll:
	default:
		options.Version = VersionFilterCurrent
	}
	return options
}

// Matches reports whether r satisfies the version, status and date filters.
// Archived versions nested inside history are considered separately by
// callers that flatten them.
func (o QueryOptions) Matches(r *TestRecord) bool {
	switch o.Version {
	case VersionFilterCurrent:
		if !r.TestVersion.IsCurrent() {
			return false
		}
	case VersionFilterArchived:
		if r.TestVersion != VersionArchived {
			return false
		}
	}
	if o.Status != "" && r.TestStatus != o.Status {
		return false
	}
	if o.FromDate != nil || o.ToDate != nil {
		if r.TestStartTimestamp == nil {
			return false
		}
		if o.FromDate != nil && r.TestStartTimestamp.Before(*o.FromDate) {
			return false
		}
		if o.ToDate != nil && r.TestStartTimestamp.After(*o.ToDate) {
			return false
		}
	}
	return true
}

// ─────────────────────────────────────────────────────────────────────────────
// Collaborator contracts
// ─────────────────────────────────────────────────────────────────────────────

// RecordLookup reads stored records. Implementations return an empty slice,
// not an error, when nothing matches.
type RecordLookup interface {
	GetBySystemNumber(ctx context.Context, systemNumber string, opts ...QueryOption) ([]*TestRecord, error)
	GetByTesterStaffID(ctx context.Context, staffID string, opts ...QueryOption) ([]*TestRecord, error)
	GetByVIN(ctx context.Context, vin string, opts ...QueryOption) ([]*TestRecord, error)
}

// RecordWriter persists records. Put fails with a conflict when the
// testResultId already exists; Update replaces the stored document without an
// optimistic concurrency token.
type RecordWriter interface {
	Put(ctx context.Context, r *TestRecord) error
	Update(ctx context.Context, r *TestRecord) error
}

// Repository combines read and write access.
type Repository interface {
	RecordLookup
	RecordWriter
}

// CodeAndClassification is the answer of the classification service.
type CodeAndClassification struct {
	DefaultTestCode        string         `json:"defaultTestCode"`
	LinkedTestCode         string         `json:"linkedTestCode,omitempty"`
	TestTypeClassification Classification `json:"testTypeClassification"`
	Name                   string         `json:"name"`
	TestTypeName           string         `json:"testTypeName"`
}

// ClassificationLookup resolves test codes for a test type on a vehicle.
type ClassificationLookup interface {
	GetCodeAndClassification(ctx context.Context, testTypeID string, vehicle VehicleDescriptor) (*CodeAndClassification, error)
}

// IssuanceKey identifies one test number request so that a retried call
// returns the number minted by the first one. Entry is the position of the
// test type within the record, so repeated test type ids get distinct keys.
type IssuanceKey struct {
	SystemNumber string
	TestTypeID   string
	Attempt      int
	Entry        int
}

// String renders the key as systemNumber:testTypeId:attempt:entry.
func (k IssuanceKey) String() string {
	return k.SystemNumber + ":" + k.TestTypeID + ":" + strconv.Itoa(k.Attempt) + ":" + strconv.Itoa(k.Entry)
}

// TestNumberIssuer mints globally unique test numbers.
type TestNumberIssuer interface {
	IssueTestNumber(ctx context.Context, key IssuanceKey) (string, error)
}

// HistorySource supplies the most recent expiry for the vehicle of r. It
// returns dates.EpochSentinel, never a zero time, when there is no history.
type HistorySource interface {
	MostRecentExpiry(ctx context.Context, r *TestRecord) (time.Time, error)
}

// EventPublisher announces record lifecycle changes.
type EventPublisher interface {
	PublishRecordSubmitted(ctx context.Context, r *TestRecord) error
	PublishRecordUpdated(ctx context.Context, current *TestRecord, archived *TestRecord) error
}
