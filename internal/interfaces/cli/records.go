package cli

import (
	"context"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/turtacn/vehicle-test-records/internal/domain/dates"
	"github.com/turtacn/vehicle-test-records/internal/domain/testrecord"
	"github.com/turtacn/vehicle-test-records/pkg/errors"
	"github.com/turtacn/vehicle-test-records/pkg/types/record"
)

// NewRecordsCmd returns the "records" command group.
func NewRecordsCmd() *cobra.Command {
	recordsCmd := &cobra.Command{
		Use:   "records",
		Short: "Query the test record API",
	}
	recordsCmd.AddCommand(newRecordsGetCmd())
	return recordsCmd
}

type recordsGetOptions struct {
	systemNumber string
	vin          string
	testerID     string
	status       string
	version      string
	from         string
	to           string
	limit        int
}

// RecordList is the output of "records get".
type RecordList []*testrecord.TestRecord

func (l RecordList) TableHeaders() []string {
	return []string{"SYSTEM NUMBER", "TEST RESULT ID", "VIN", "STATUS", "VERSION", "TEST DATE", "TEST TYPES"}
}

func (l RecordList) TableRows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, r := range l {
		rows = append(rows, []string{
			r.SystemNumber,
			r.TestResultID,
			r.VIN,
			string(r.TestStatus),
			string(r.TestVersion),
			formatOptionalDate(r.TestEndTimestamp),
			summarizeTestTypes(r.TestTypes),
		})
	}
	return rows
}

// summarizeTestTypes renders "id:result" pairs, coloured by result.
func summarizeTestTypes(entries []*testrecord.TestTypeEntry) string {
	out := ""
	for i, tt := range entries {
		if i > 0 {
			out += " "
		}
		out += tt.TestTypeID + ":" + colorResult(tt.TestResult)
	}
	return out
}

func colorResult(r testrecord.Result) string {
	switch r {
	case testrecord.ResultPass:
		return color.GreenString(string(r))
	case testrecord.ResultFail:
		return color.RedString(string(r))
	case testrecord.ResultPRS:
		return color.YellowString(string(r))
	default:
		return string(r)
	}
}

func newRecordsGetCmd() *cobra.Command {
	opts := &recordsGetOptions{}
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Fetch test records by system number, VIN or tester",
		Example: `  vtrctl records get --system-number 11000001 --version all
  vtrctl records get --tester staff-1 --from 2024-01-01 --to 2024-01-31`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecordsGet(cmd, opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.systemNumber, "system-number", "", "vehicle system number")
	f.StringVar(&opts.vin, "vin", "", "vehicle identification number")
	f.StringVar(&opts.testerID, "tester", "", "tester staff id")
	f.StringVar(&opts.status, "status", "", "submitted or cancelled")
	f.StringVar(&opts.version, "version", "", "current, archived or all (default: current)")
	f.StringVar(&opts.from, "from", "", "earliest test end date (YYYY-MM-DD)")
	f.StringVar(&opts.to, "to", "", "latest test end date (YYYY-MM-DD)")
	f.IntVar(&opts.limit, "limit", 0, "maximum number of records")
	cmd.MarkFlagsMutuallyExclusive("system-number", "vin", "tester")
	cmd.MarkFlagsOneRequired("system-number", "vin", "tester")
	return cmd
}

func (o *recordsGetOptions) query() (record.Query, error) {
	q := record.Query{
		Status:  testrecord.Status(o.status),
		Version: testrecord.VersionFilter(o.version),
		Limit:   o.limit,
	}
	for _, d := range []struct {
		flag  string
		value string
		dst   **time.Time
	}{{"from", o.from, &q.From}, {"to", o.to, &q.To}} {
		if d.value == "" {
			continue
		}
		t, err := dates.ParseDate(d.value)
		if err != nil {
			return q, errors.NewValidation("--%s %q is not a date", d.flag, d.value).WithField(d.flag, "YYYY-MM-DD")
		}
		*d.dst = &t
	}
	// Round-trip through the wire parser so bad filters fail before the call.
	return record.ParseQuery(q.Values())
}

func runRecordsGet(cmd *cobra.Command, opts *recordsGetOptions) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	q, err := opts.query()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cliCtx.Timeout)
	defer cancel()

	var out []*testrecord.TestRecord
	switch {
	case opts.systemNumber != "":
		out, err = cliCtx.Records.GetBySystemNumber(ctx, opts.systemNumber, q)
	case opts.vin != "":
		out, err = cliCtx.Records.GetByVIN(ctx, opts.vin, q)
	default:
		out, err = cliCtx.Records.GetByTesterStaffID(ctx, opts.testerID, q)
	}
	if err != nil {
		return err
	}
	return PrintResult(cmd, RecordList(out))
}
