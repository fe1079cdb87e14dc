package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/vehicle-test-records/internal/domain/expiry"
	"github.com/turtacn/vehicle-test-records/internal/domain/testrecord"
	"github.com/turtacn/vehicle-test-records/pkg/errors"
)

// NewRulesCmd returns the "rules" command group.
func NewRulesCmd() *cobra.Command {
	rulesCmd := &cobra.Command{
		Use:   "rules",
		Short: "Validate and query the expiry rule tables",
	}
	rulesCmd.AddCommand(newRulesValidateCmd(), newRulesSelectCmd(), newRulesShowCmd())
	return rulesCmd
}

func newRulesValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check that the rule table and test type catalog load and never overlap",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			rules, catalog, err := expiry.LoadRules(cliCtx.Rules)
			if err != nil {
				return err
			}

			vts := rules.VehicleTypes()
			rows := 0
			for _, vt := range vts {
				r, _ := rules.Rows(vt)
				rows += len(r)
			}
			PrintSuccess(cmd, fmt.Sprintf("%d rule tables, %d rows, %d test types", len(vts), rows, catalog.Len()))
			return nil
		},
	}
}

// SelectResult is the output of "rules select".
type SelectResult struct {
	VehicleType     testrecord.VehicleType `json:"vehicleType"`
	TestTypeID      string                 `json:"testTypeId"`
	HasHistory      bool                   `json:"hasHistory"`
	HasRegistration bool                   `json:"hasRegistration"`
	Strategy        expiry.StrategyName    `json:"strategy"`
}

func (r *SelectResult) TableHeaders() []string {
	return []string{"VEHICLE TYPE", "TEST TYPE", "HISTORY", "REGISTRATION", "STRATEGY"}
}

func (r *SelectResult) TableRows() [][]string {
	return [][]string{{
		string(r.VehicleType),
		r.TestTypeID,
		strconv.FormatBool(r.HasHistory),
		strconv.FormatBool(r.HasRegistration),
		string(r.Strategy),
	}}
}

func (r *SelectResult) String() string {
	return string(r.Strategy)
}

func newRulesSelectCmd() *cobra.Command {
	var (
		category        string
		testTypeID      string
		hasHistory      bool
		hasRegistration bool
	)
	cmd := &cobra.Command{
		Use:     "select",
		Short:   "Show which strategy the selector picks for one input",
		Example: "  vtrctl rules select --category hgv --test-type 94 --history",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			rules, err := expiry.LoadRuleTable(cliCtx.Rules)
			if err != nil {
				return err
			}
			vt := testrecord.VehicleType(category).Normalize()
			strategy, err := expiry.NewSelector(rules).Select(vt, testTypeID, hasHistory, hasRegistration)
			if err != nil {
				return err
			}
			return PrintResult(cmd, &SelectResult{
				VehicleType:     vt,
				TestTypeID:      testTypeID,
				HasHistory:      hasHistory,
				HasRegistration: hasRegistration,
				Strategy:        strategy.Name(),
			})
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "vehicle type: psv, hgv, trl, lgv (required)")
	cmd.Flags().StringVar(&testTypeID, "test-type", "", "test type id (required)")
	cmd.Flags().BoolVar(&hasHistory, "history", false, "the vehicle has a previous expiry")
	cmd.Flags().BoolVar(&hasRegistration, "registration", false, "the vehicle has a valid registration or first use date")
	_ = cmd.MarkFlagRequired("category")
	_ = cmd.MarkFlagRequired("test-type")
	return cmd
}

// RuleRows is the output of "rules show".
type RuleRows struct {
	VehicleType testrecord.VehicleType `json:"vehicleType"`
	Rows        []expiry.StrategyRule  `json:"rows"`
}

func (r *RuleRows) TableHeaders() []string {
	return []string{"#", "HISTORY", "REGISTRATION", "STRATEGY", "TEST TYPES"}
}

func (r *RuleRows) TableRows() [][]string {
	out := make([][]string, 0, len(r.Rows))
	for i, row := range r.Rows {
		out = append(out, []string{
			strconv.Itoa(i),
			row.History.String(),
			row.Registration.String(),
			string(row.Strategy),
			strings.Join(row.TestTypes, ","),
		})
	}
	return out
}

func newRulesShowCmd() *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the rule rows of one vehicle type",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			rules, err := expiry.LoadRuleTable(cliCtx.Rules)
			if err != nil {
				return err
			}
			vt := testrecord.VehicleType(category).Normalize()
			rows, ok := rules.Rows(vt)
			if !ok {
				return errors.NewNotFound("no rule table for vehicle type %q", vt)
			}
			return PrintResult(cmd, &RuleRows{VehicleType: vt, Rows: rows})
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "vehicle type (required)")
	_ = cmd.MarkFlagRequired("category")
	return cmd
}
