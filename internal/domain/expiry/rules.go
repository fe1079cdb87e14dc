package expiry

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/turtacn/vehicle-test-records/internal/domain/testrecord"
	apperrors "github.com/turtacn/vehicle-test-records/pkg/errors"
)

// Rule file names inside a rules directory.
const (
	StrategiesFile = "strategies.yaml"
	TestTypesFile  = "testtypes.yaml"
)

//go:embed rules/*.yaml
var embeddedRules embed.FS

// DefaultRulesFS returns the rule files compiled into the binary.
func DefaultRulesFS() fs.FS {
	sub, err := fs.Sub(embeddedRules, "rules")
	if err != nil {
		panic(err)
	}
	return sub
}

// ─────────────────────────────────────────────────────────────────────────────
// Flag
// ─────────────────────────────────────────────────────────────────────────────

// Flag is a tri-state rule condition.
type Flag int

const (
	FlagAny Flag = iota
	FlagTrue
	FlagFalse
)

// FlagOf converts a bool into a definite Flag.
func FlagOf(b bool) Flag {
	if b {
		return FlagTrue
	}
	return FlagFalse
}

// Matches reports whether the flag admits v.
func (f Flag) Matches(v bool) bool {
	return f == FlagAny || f == FlagOf(v)
}

// overlaps reports whether some input satisfies both flags.
func (f Flag) overlaps(o Flag) bool {
	return f == FlagAny || o == FlagAny || f == o
}

func (f Flag) String() string {
	switch f {
	case FlagTrue:
		return "true"
	case FlagFalse:
		return "false"
	default:
		return "any"
	}
}

// UnmarshalYAML accepts true, false, or any.
func (f *Flag) UnmarshalYAML(node *yaml.Node) error {
	switch strings.ToLower(strings.TrimSpace(node.Value)) {
	case "true":
		*f = FlagTrue
	case "false":
		*f = FlagFalse
	case "any", "*", "":
		*f = FlagAny
	default:
		return fmt.Errorf("line %d: invalid flag %q", node.Line, node.Value)
	}
	return nil
}

// MarshalYAML renders the flag as true, false, or any.
func (f Flag) MarshalYAML() (interface{}, error) {
	switch f {
	case FlagTrue:
		return true, nil
	case FlagFalse:
		return false, nil
	default:
		return "any", nil
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// StrategyRule and RuleTable
// ─────────────────────────────────────────────────────────────────────────────

// StrategyRule is one row of a per-vehicle-type rule table.
type StrategyRule struct {
	History      Flag         `yaml:"history"`
	Registration Flag         `yaml:"registration"`
	TestTypes    []string     `yaml:"test_types"`
	Strategy     StrategyName `yaml:"strategy"`
}

func (r StrategyRule) hasTestType(id string) bool {
	for _, t := range r.TestTypes {
		if t == id {
			return true
		}
	}
	return false
}

// Matches reports whether the row applies to the given inputs.
func (r StrategyRule) Matches(testTypeID string, hasHistory, hasRegistration bool) bool {
	return r.History.Matches(hasHistory) && r.Registration.Matches(hasRegistration) && r.hasTestType(testTypeID)
}

// RuleTable holds the immutable rule rows for every vehicle type.
type RuleTable struct {
	eligible map[testrecord.VehicleType]bool
	tables   map[testrecord.VehicleType][]StrategyRule
}

type ruleFile struct {
	EligibleVehicleTypes []testrecord.VehicleType                  `yaml:"eligible_vehicle_types"`
	IDSets               map[string][]string                       `yaml:"id_sets"`
	Tables               map[testrecord.VehicleType][]StrategyRule `yaml:"tables"`
}

// NewRuleTable builds a table from rows without validating it. eligible lists
// the vehicle types whose records receive expiry dates.
func NewRuleTable(eligible []testrecord.VehicleType, tables map[testrecord.VehicleType][]StrategyRule) *RuleTable {
	rt := &RuleTable{
		eligible: make(map[testrecord.VehicleType]bool, len(eligible)),
		tables:   make(map[testrecord.VehicleType][]StrategyRule, len(tables)),
	}
	for _, vt := range eligible {
		rt.eligible[vt.Normalize()] = true
	}
	for vt, rows := range tables {
		copied := make([]StrategyRule, len(rows))
		for i, row := range rows {
			row.TestTypes = append([]string(nil), row.TestTypes...)
			copied[i] = row
		}
		rt.tables[vt.Normalize()] = copied
	}
	return rt
}

// ParseRuleTable decodes and validates a strategies document.
func ParseRuleTable(data []byte) (*RuleTable, error) {
	var f ruleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeConfigIntegrity, "failed to parse expiry rule table")
	}
	rt := NewRuleTable(f.EligibleVehicleTypes, f.Tables)
	if err := rt.Validate(); err != nil {
		return nil, err
	}
	return rt, nil
}

// LoadRuleTable reads StrategiesFile from fsys.
func LoadRuleTable(fsys fs.FS) (*RuleTable, error) {
	data, err := fs.ReadFile(fsys, StrategiesFile)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeConfigIntegrity, "failed to read expiry rule table")
	}
	return ParseRuleTable(data)
}

// LoadRules reads the rule table and the test type catalog from fsys and
// checks them against each other.
func LoadRules(fsys fs.FS) (*RuleTable, *Catalog, error) {
	rt, err := LoadRuleTable(fsys)
	if err != nil {
		return nil, nil, err
	}
	catalog, err := LoadCatalog(fsys)
	if err != nil {
		return nil, nil, err
	}
	if err := rt.ValidateCatalog(catalog); err != nil {
		return nil, nil, err
	}
	return rt, catalog, nil
}

// Rows returns a copy of the rows for vt and whether a table exists.
func (rt *RuleTable) Rows(vt testrecord.VehicleType) ([]StrategyRule, bool) {
	rows, ok := rt.tables[vt.Normalize()]
	if !ok {
		return nil, false
	}
	return append([]StrategyRule(nil), rows...), true
}

// IsEligible reports whether records of vt receive expiry dates.
func (rt *RuleTable) IsEligible(vt testrecord.VehicleType) bool {
	return rt.eligible[vt.Normalize()]
}

// VehicleTypes lists the vehicle types that have a table, sorted.
func (rt *RuleTable) VehicleTypes() []testrecord.VehicleType {
	out := make([]testrecord.VehicleType, 0, len(rt.tables))
	for vt := range rt.tables {
		out = append(out, vt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Validate checks that every eligible vehicle type has a table, every row
// names a known strategy, and no two rows of a table can match the same
// input.
func (rt *RuleTable) Validate() error {
	for vt := range rt.eligible {
		if _, ok := rt.tables[vt]; !ok {
			return apperrors.New(apperrors.ErrCodeRuleTableMissing, "eligible vehicle type has no rule table").
				WithDetail(string(vt))
		}
	}
	for _, vt := range rt.VehicleTypes() {
		rows := rt.tables[vt]
		for i, row := range rows {
			if _, ok := LookupStrategy(row.Strategy); !ok {
				return apperrors.ConfigIntegrity("unknown expiry strategy").
					WithDetail(fmt.Sprintf("%s row %d: %q", vt, i, row.Strategy))
			}
			if len(row.TestTypes) == 0 {
				return apperrors.ConfigIntegrity("rule row lists no test types").
					WithDetail(fmt.Sprintf("%s row %d", vt, i))
			}
			for j := i + 1; j < len(rows); j++ {
				if id, clash := rowsOverlap(row, rows[j]); clash {
					return apperrors.ConfigIntegrity("Multiple strategies found!").
						WithDetail(fmt.Sprintf("%s rows %d and %d both match test type %s", vt, i, j, id))
				}
			}
		}
	}
	return nil
}

func rowsOverlap(a, b StrategyRule) (string, bool) {
	if !a.History.overlaps(b.History) || !a.Registration.overlaps(b.Registration) {
		return "", false
	}
	for _, id := range a.TestTypes {
		if b.hasTestType(id) {
			return id, true
		}
	}
	return "", false
}

// ValidateCatalog checks that every test type a row lists is tagged annual in
// catalog. Entries without the tag never reach strategy selection, so such a
// row could never fire.
func (rt *RuleTable) ValidateCatalog(catalog *Catalog) error {
	for _, vt := range rt.VehicleTypes() {
		for i, row := range rt.tables[vt] {
			for _, id := range row.TestTypes {
				if !catalog.Has(id, CapabilityAnnual) {
					return apperrors.ConfigIntegrity("rule row lists a test type not tagged annual").
						WithDetail(fmt.Sprintf("%s row %d: test type %s", vt, i, id))
				}
			}
		}
	}
	return nil
}
