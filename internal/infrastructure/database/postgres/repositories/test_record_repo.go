package repositories

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/turtacn/vehicle-test-records/internal/domain/testrecord"
	"github.com/turtacn/vehicle-test-records/internal/infrastructure/database/postgres"
	"github.com/turtacn/vehicle-test-records/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/vehicle-test-records/pkg/errors"
)

// Lookup columns. Never taken from user input.
const (
	columnSystemNumber = "system_number"
	columnTesterStaff  = "tester_staff_id"
	columnVIN          = "vin"
)

// TestRecordRepository stores one JSONB document per testResultId. The
// indexed columns mirror fields of the document for lookups.
type TestRecordRepository struct {
	db  queryExecutor
	log logging.Logger
}

var _ testrecord.Repository = (*TestRecordRepository)(nil)

// NewTestRecordRepository binds the repository to a connection pool.
func NewTestRecordRepository(conn *postgres.Connection, log logging.Logger) *TestRecordRepository {
	return newTestRecordRepository(conn.Pool(), log)
}

func newTestRecordRepository(db queryExecutor, log logging.Logger) *TestRecordRepository {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &TestRecordRepository{db: db, log: log.Named("test_record_repo")}
}

func (r *TestRecordRepository) GetBySystemNumber(ctx context.Context, systemNumber string, opts ...testrecord.QueryOption) ([]*testrecord.TestRecord, error) {
	return r.find(ctx, columnSystemNumber, systemNumber, testrecord.ApplyQueryOptions(opts...))
}

func (r *TestRecordRepository) GetByTesterStaffID(ctx context.Context, staffID string, opts ...testrecord.QueryOption) ([]*testrecord.TestRecord, error) {
	return r.find(ctx, columnTesterStaff, staffID, testrecord.ApplyQueryOptions(opts...))
}

func (r *TestRecordRepository) GetByVIN(ctx context.Context, vin string, opts ...testrecord.QueryOption) ([]*testrecord.TestRecord, error) {
	return r.find(ctx, columnVIN, vin, testrecord.ApplyQueryOptions(opts...))
}

func (r *TestRecordRepository) find(ctx context.Context, column, value string, o testrecord.QueryOptions) ([]*testrecord.TestRecord, error) {
	query, args := buildSelect(column, value, o)
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to query test records")
	}
	docs, err := pgx.CollectRows(rows, pgx.RowTo[[]byte])
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan test records")
	}

	records := make([]*testrecord.TestRecord, 0, len(docs))
	for _, doc := range docs {
		var rec testrecord.TestRecord
		if err := json.Unmarshal(doc, &rec); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode test record document")
		}
		records = append(records, &rec)
	}
	return selectVersions(records, o), nil
}

// Put inserts a new document. A duplicate testResultId is a conflict.
func (r *TestRecordRepository) Put(ctx context.Context, rec *testrecord.TestRecord) error {
	doc, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode test record")
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO test_records (
			test_result_id, system_number, vin, tester_staff_id,
			test_status, test_version, test_start, document
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.TestResultID, rec.SystemNumber, rec.VIN, rec.TesterStaffID,
		string(rec.TestStatus), storedVersion(rec.TestVersion), rec.TestStartTimestamp, doc,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return errors.New(errors.ErrCodeRecordAlreadyExists, "test record already exists").
				WithDetail("testResultId=" + rec.TestResultID)
		}
		r.log.Error("insert failed", logging.String("test_result_id", rec.TestResultID), logging.Err(err))
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to insert test record")
	}
	return nil
}

// Update replaces the stored document of rec.TestResultID. There is no
// version check; the last writer wins.
func (r *TestRecordRepository) Update(ctx context.Context, rec *testrecord.TestRecord) error {
	doc, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode test record")
	}

	tag, err := r.db.Exec(ctx, `
		UPDATE test_records SET
			system_number = $2,
			vin = $3,
			tester_staff_id = $4,
			test_status = $5,
			test_version = $6,
			test_start = $7,
			document = $8,
			updated_at = NOW()
		WHERE test_result_id = $1`,
		rec.TestResultID, rec.SystemNumber, rec.VIN, rec.TesterStaffID,
		string(rec.TestStatus), storedVersion(rec.TestVersion), rec.TestStartTimestamp, doc,
	)
	if err != nil {
		r.log.Error("update failed", logging.String("test_result_id", rec.TestResultID), logging.Err(err))
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to update test record")
	}
	if tag.RowsAffected() == 0 {
		return errors.New(errors.ErrCodeRecordNotFound, "test record not found").
			WithDetail("testResultId=" + rec.TestResultID)
	}
	return nil
}

func storedVersion(v testrecord.Version) string {
	if v.IsCurrent() {
		return string(testrecord.VersionCurrent)
	}
	return string(v)
}

// buildSelect renders the lookup query. Current-only lookups push every
// filter into SQL; archived versions live inside the history of current
// documents, so those lookups load every document for the key and filter
// after flattening.
func buildSelect(column, value string, o testrecord.QueryOptions) (string, []any) {
	var b strings.Builder
	args := []any{value}
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	b.WriteString("SELECT document FROM test_records WHERE ")
	b.WriteString(column)
	b.WriteString(" = $1")

	if o.Version == testrecord.VersionFilterCurrent {
		b.WriteString(" AND test_version = " + arg(string(testrecord.VersionCurrent)))
		if o.Status != "" {
			b.WriteString(" AND test_status = " + arg(string(o.Status)))
		}
		if o.FromDate != nil {
			b.WriteString(" AND test_start >= " + arg(*o.FromDate))
		}
		if o.ToDate != nil {
			b.WriteString(" AND test_start <= " + arg(*o.ToDate))
		}
		b.WriteString(" ORDER BY test_start DESC NULLS LAST, test_result_id")
		b.WriteString(" LIMIT " + arg(o.Limit))
		return b.String(), args
	}

	b.WriteString(" ORDER BY test_start DESC NULLS LAST, test_result_id")
	return b.String(), args
}

// selectVersions flattens history when archived versions are requested and
// applies the filters and the limit.
func selectVersions(docs []*testrecord.TestRecord, o testrecord.QueryOptions) []*testrecord.TestRecord {
	out := make([]*testrecord.TestRecord, 0, len(docs))
	for _, d := range docs {
		if o.Matches(d) {
			out = append(out, d)
		}
		if o.Version == testrecord.VersionFilterCurrent {
			continue
		}
		for _, h := range d.TestHistory {
			if o.Matches(h) {
				out = append(out, h)
			}
		}
	}
	if o.Limit > 0 && len(out) > o.Limit {
		out = out[:o.Limit]
	}
	return out
}
