package expiry

import (
	"fmt"

	"github.com/turtacn/vehicle-test-records/internal/domain/testrecord"
	apperrors "github.com/turtacn/vehicle-test-records/pkg/errors"
)

// Selector maps (vehicle type, test type, history, registration) onto exactly
// one Strategy using an injected RuleTable.
type Selector struct {
	rules *RuleTable
}

// NewSelector creates a Selector over rules.
func NewSelector(rules *RuleTable) *Selector {
	return &Selector{rules: rules}
}

// Rules returns the table the selector reads.
func (s *Selector) Rules() *RuleTable {
	return s.rules
}

// Select scans every row of the vehicle type's table. A missing table and more
// than one matching row are configuration defects. No matching row yields the
// Unimplemented strategy, which only fails when computed.
func (s *Selector) Select(vt testrecord.VehicleType, testTypeID string, hasHistory, hasRegistration bool) (Strategy, error) {
	rows, ok := s.rules.Rows(vt)
	if !ok {
		return nil, apperrors.New(apperrors.ErrCodeRuleTableMissing, "no expiry rule table for vehicle type").
			WithDetail(string(vt))
	}

	var matched []StrategyRule
	for _, row := range rows {
		if row.Matches(testTypeID, hasHistory, hasRegistration) {
			matched = append(matched, row)
		}
	}

	switch len(matched) {
	case 0:
		return Unimplemented(), nil
	case 1:
		strategy, ok := LookupStrategy(matched[0].Strategy)
		if !ok {
			return nil, apperrors.ConfigIntegrity("unknown expiry strategy").
				WithDetail(string(matched[0].Strategy))
		}
		return strategy, nil
	default:
		return nil, apperrors.ConfigIntegrity("Multiple strategies found!").
			WithDetail(fmt.Sprintf("vehicleType=%s testTypeId=%s hasHistory=%t hasRegistration=%t matches=%d",
				vt, testTypeID, hasHistory, hasRegistration, len(matched)))
	}
}

// SelectFor is Select driven by a Context.
func (s *Selector) SelectFor(c Context) (Strategy, error) {
	return s.Select(c.VehicleType, c.TestTypeID, c.HasHistory, c.HasRegistration)
}
