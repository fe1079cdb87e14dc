package testrecord

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"dario.cat/mergo"

	apperrors "github.com/turtacn/vehicle-test-records/pkg/errors"
)

// Actor identifies who performs a create or update.
type Actor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Locate
// ─────────────────────────────────────────────────────────────────────────────

// FindCurrent returns the single current (or unversioned) record with the
// given testResultId. Zero or several matches are both reported as not found.
func FindCurrent(records []*TestRecord, testResultID string) (*TestRecord, error) {
	var match *TestRecord
	n := 0
	for _, r := range records {
		if r == nil || r.TestResultID != testResultID || !r.TestVersion.IsCurrent() {
			continue
		}
		match = r
		n++
	}
	if n != 1 {
		return nil, apperrors.New(apperrors.ErrCodeRecordNotFound, "no unique current test record").
			WithDetail(fmt.Sprintf("testResultId=%s matches=%d", testResultID, n))
	}
	return match, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Splice and merge
// ─────────────────────────────────────────────────────────────────────────────

// SpliceTestTypes lets a caller edit one test type without resending its
// siblings. When incoming carries exactly one entry whose testTypeId exists in
// baseline, the other baseline entries are appended after it.
func SpliceTestTypes(incoming, baseline *TestRecord) {
	if incoming == nil || baseline == nil || len(incoming.TestTypes) != 1 {
		return
	}
	edited := incoming.TestTypes[0]
	if edited == nil {
		return
	}
	idx := -1
	for i, tt := range baseline.TestTypes {
		if tt != nil && tt.TestTypeID == edited.TestTypeID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}
	for i, tt := range baseline.TestTypes {
		if i == idx {
			continue
		}
		incoming.TestTypes = append(incoming.TestTypes, tt.Clone())
	}
}

var timeType = reflect.TypeOf(time.Time{})

// timeTransformer makes mergo treat time.Time as a scalar; its fields are
// unexported so the default struct walk would never overwrite it.
type timeTransformer struct{}

func (timeTransformer) Transformer(typ reflect.Type) func(dst, src reflect.Value) error {
	if typ != timeType {
		return nil
	}
	return func(dst, src reflect.Value) error {
		if dst.CanSet() && !src.Interface().(time.Time).IsZero() {
			dst.Set(src)
		}
		return nil
	}
}

// pointerTransformer makes a non-nil pointer to a scalar replace the
// destination even when it points at a zero value, so an explicit
// numberOfWheelsDriven of 0 is not mistaken for an absent field.
type pointerTransformer struct{}

func (pointerTransformer) Transformer(typ reflect.Type) func(dst, src reflect.Value) error {
	if typ.Kind() != reflect.Ptr || typ.Elem().Kind() == reflect.Struct {
		return nil
	}
	return func(dst, src reflect.Value) error {
		if dst.CanSet() && !src.IsNil() {
			dst.Set(src)
		}
		return nil
	}
}

// mergeTransformers dispatches to the time and scalar pointer transformers.
type mergeTransformers struct{}

func (mergeTransformers) Transformer(typ reflect.Type) func(dst, src reflect.Value) error {
	if fn := (timeTransformer{}).Transformer(typ); fn != nil {
		return fn
	}
	return pointerTransformer{}.Transformer(typ)
}

// Merge applies incoming onto dst. Non-empty scalars and non-nil scalar
// pointers overwrite; non-empty slices, testTypes included, replace the
// destination slice wholesale.
func Merge(dst, incoming *TestRecord) error {
	if dst == nil || incoming == nil {
		return nil
	}
	if err := mergo.Merge(dst, incoming, mergo.WithOverride, mergo.WithTransformers(mergeTransformers{})); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to merge test record")
	}
	return nil
}

// StripNonEditable restores fields callers may not change from baseline:
// identifiers, audit stamps, the end timestamp, the version tag and history.
func StripNonEditable(r, baseline *TestRecord) {
	r.TestResultID = baseline.TestResultID
	r.SystemNumber = baseline.SystemNumber
	r.TestEndTimestamp = cloneTime(baseline.TestEndTimestamp)
	r.TestVersion = baseline.TestVersion
	r.CreatedAt = cloneTime(baseline.CreatedAt)
	r.CreatedByID = baseline.CreatedByID
	r.CreatedByName = baseline.CreatedByName
	r.LastUpdatedAt = cloneTime(baseline.LastUpdatedAt)
	r.LastUpdatedByID = baseline.LastUpdatedByID
	r.LastUpdatedByName = baseline.LastUpdatedByName
	r.TestHistory = nil
	if baseline.TestHistory != nil {
		r.TestHistory = make([]*TestRecord, len(baseline.TestHistory))
		for i, h := range baseline.TestHistory {
			r.TestHistory[i] = h.Clone()
		}
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Change detection
// ─────────────────────────────────────────────────────────────────────────────

// Equal reports whether two entries are identical, comparing timestamps by
// instant.
func (e *TestTypeEntry) Equal(o *TestTypeEntry) bool {
	if e == nil || o == nil {
		return e == o
	}
	return e.TestTypeID == o.TestTypeID &&
		e.Name == o.Name &&
		e.TestTypeName == o.TestTypeName &&
		e.TestTypeClassification == o.TestTypeClassification &&
		e.TestResult == o.TestResult &&
		e.TestCode == o.TestCode &&
		e.TestNumber == o.TestNumber &&
		e.CertificateNumber == o.CertificateNumber &&
		e.ReasonForAbandoning == o.ReasonForAbandoning &&
		e.AdditionalNotes == o.AdditionalNotes &&
		timeEqual(e.TestTypeStartTimestamp, o.TestTypeStartTimestamp) &&
		timeEqual(e.TestTypeEndTimestamp, o.TestTypeEndTimestamp) &&
		timeEqual(e.TestExpiryDate, o.TestExpiryDate) &&
		timeEqual(e.TestAnniversaryDate, o.TestAnniversaryDate)
}

func timeEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func containsEntry(list []*TestTypeEntry, e *TestTypeEntry) bool {
	for _, x := range list {
		if x.Equal(e) {
			return true
		}
	}
	return false
}

// TestTypesDiffer reports whether the symmetric difference of the two lists
// is non-empty.
func TestTypesDiffer(a, b []*TestTypeEntry) bool {
	for _, e := range a {
		if !containsEntry(b, e) {
			return true
		}
	}
	for _, e := range b {
		if !containsEntry(a, e) {
			return true
		}
	}
	return false
}

// VehicleAttributesDiffer reports a change to any attribute that feeds the
// classification lookup.
func VehicleAttributesDiffer(a, b *TestRecord) bool {
	return a.VehicleType.Normalize() != b.VehicleType.Normalize() ||
		a.EuVehicleCategory != b.EuVehicleCategory ||
		a.VehicleSize != b.VehicleSize ||
		a.VehicleConfiguration != b.VehicleConfiguration ||
		a.NoOfAxles != b.NoOfAxles ||
		!intEqual(a.NumberOfWheelsDriven, b.NumberOfWheelsDriven)
}

func intEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// NeedsCodeRegeneration decides whether test codes must be re-derived after
// an update.
func NeedsCodeRegeneration(old, updated *TestRecord) bool {
	return TestTypesDiffer(old.TestTypes, updated.TestTypes) || VehicleAttributesDiffer(old, updated)
}

// ─────────────────────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────────────────────

// ValidateTemporal checks that no test type starts after it ends. All
// violations are reported together.
func ValidateTemporal(r *TestRecord) error {
	var ae *apperrors.AppError
	for i, tt := range r.TestTypes {
		if tt == nil || tt.TestTypeStartTimestamp == nil || tt.TestTypeEndTimestamp == nil {
			continue
		}
		if tt.TestTypeStartTimestamp.After(*tt.TestTypeEndTimestamp) {
			if ae == nil {
				ae = apperrors.New(apperrors.ErrCodeTemporalConsistency,
					"testTypeStartTimestamp must not be after testTypeEndTimestamp")
			}
			ae = ae.WithField(fmt.Sprintf("testTypes[%d].testTypeStartTimestamp", i), "after testTypeEndTimestamp")
		}
	}
	if ae != nil {
		return ae
	}
	return nil
}

// ValidateTestTypes checks that every entry is present and names its test
// type, so no lookup is made for an empty id.
func ValidateTestTypes(r *TestRecord) error {
	var ae *apperrors.AppError
	for i, tt := range r.TestTypes {
		if tt != nil && strings.TrimSpace(tt.TestTypeID) != "" {
			continue
		}
		if ae == nil {
			ae = apperrors.New(apperrors.ErrCodeMissingField, "every test type entry must carry a testTypeId")
		}
		ae = ae.WithField(fmt.Sprintf("testTypes[%d].testTypeId", i), "required")
	}
	if ae != nil {
		return ae
	}
	return nil
}

// ValidateForCreate checks the fields a new submission must carry.
func ValidateForCreate(r *TestRecord) error {
	if r == nil {
		return apperrors.NewValidation("test record payload is required")
	}
	ae := apperrors.New(apperrors.ErrCodeMissingField, "test record is missing required fields")
	missing := false
	require := func(ok bool, field string) {
		if !ok {
			ae = ae.WithField(field, "required")
			missing = true
		}
	}
	require(r.SystemNumber != "", "systemNumber")
	require(r.VIN != "", "vin")
	require(r.TesterStaffID != "", "testerStaffId")
	require(r.VehicleType != "", "vehicleType")
	require(r.TestStatus != "", "testStatus")
	require(len(r.TestTypes) > 0, "testTypes")
	for i, tt := range r.TestTypes {
		require(tt != nil && tt.TestTypeID != "", fmt.Sprintf("testTypes[%d].testTypeId", i))
	}
	if missing {
		return ae
	}
	if r.TestStatus != StatusSubmitted && r.TestStatus != StatusCancelled {
		return apperrors.NewValidation("unknown testStatus %q", r.TestStatus).WithField("testStatus", "invalid")
	}
	return ValidateTemporal(r)
}

// ─────────────────────────────────────────────────────────────────────────────
// Audit stamps
// ─────────────────────────────────────────────────────────────────────────────

// Archive tags r as archived, drops its nested history and records who
// superseded it.
func Archive(r *TestRecord, actor Actor, now time.Time) {
	r.TestVersion = VersionArchived
	r.TestHistory = nil
	r.LastUpdatedAt = TimePtr(now.UTC())
	r.LastUpdatedByID = actor.ID
	r.LastUpdatedByName = actor.Name
}

// StampCreated tags r as the current version created by actor.
func StampCreated(r *TestRecord, actor Actor, now time.Time) {
	r.TestVersion = VersionCurrent
	r.CreatedAt = TimePtr(now.UTC())
	r.CreatedByID = actor.ID
	r.CreatedByName = actor.Name
}
