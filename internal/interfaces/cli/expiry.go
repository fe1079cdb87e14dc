package cli

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/turtacn/vehicle-test-records/internal/domain/dates"
	"github.com/turtacn/vehicle-test-records/internal/domain/expiry"
	"github.com/turtacn/vehicle-test-records/internal/domain/testrecord"
	"github.com/turtacn/vehicle-test-records/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/vehicle-test-records/pkg/errors"
	"github.com/turtacn/vehicle-test-records/pkg/types/record"
)

// NewExpiryCmd returns the "expiry" command group.
func NewExpiryCmd() *cobra.Command {
	var (
		file       string
		testDate   string
		mostRecent string
	)

	expiryCmd := &cobra.Command{
		Use:   "expiry",
		Short: "Evaluate expiry dates without touching the record store",
	}

	computeCmd := &cobra.Command{
		Use:   "compute",
		Short: "Compute expiry, certificate and anniversary fields of a record file",
		Example: `  vtrctl expiry compute --file record.json
  vtrctl expiry compute --file record.json --test-date 2024-03-10 --most-recent-expiry 2024-05-01`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExpiryCompute(cmd, file, testDate, mostRecent)
		},
	}
	computeCmd.Flags().StringVarP(&file, "file", "f", "", `record JSON file, or "-" for stdin (required)`)
	computeCmd.Flags().StringVar(&testDate, "test-date", "", "override the test end date (YYYY-MM-DD)")
	computeCmd.Flags().StringVar(&mostRecent, "most-recent-expiry", "", "expiry of the previous annual test (default: no history)")
	_ = computeCmd.MarkFlagRequired("file")

	expiryCmd.AddCommand(computeCmd)
	return expiryCmd
}

// fixedHistory answers the same most recent expiry for every record.
type fixedHistory struct {
	expiry time.Time
}

func (h fixedHistory) MostRecentExpiry(context.Context, *testrecord.TestRecord) (time.Time, error) {
	return h.expiry, nil
}

// strategyRecorder keeps the strategies in the order they were applied.
type strategyRecorder struct {
	names []expiry.StrategyName
}

func (r *strategyRecorder) ObserveStrategy(_ testrecord.VehicleType, s expiry.StrategyName) {
	r.names = append(r.names, s)
}

func (r *strategyRecorder) ObserveFailure(testrecord.VehicleType, errors.ErrorCode) {}

// ExpiryResult is the output of "expiry compute".
type ExpiryResult struct {
	Record     *testrecord.TestRecord `json:"testResult"`
	Strategies []expiry.StrategyName  `json:"strategies"`

	catalog *expiry.Catalog
}

func (r *ExpiryResult) TableHeaders() []string {
	return []string{"TEST TYPE", "NAME", "RESULT", "STRATEGY", "EXPIRY", "ANNIVERSARY", "CERTIFICATE"}
}

func (r *ExpiryResult) TableRows() [][]string {
	rows := make([][]string, 0, len(r.Record.TestTypes))
	next := 0
	for _, tt := range r.Record.TestTypes {
		strategy := "-"
		if tt.TestExpiryDate != nil && expiry.IsExpiryEligible(r.catalog, tt) && next < len(r.Strategies) {
			strategy = string(r.Strategies[next])
			next++
		}
		rows = append(rows, []string{
			tt.TestTypeID,
			tt.Name,
			string(tt.TestResult),
			strategy,
			formatOptionalDate(tt.TestExpiryDate),
			formatOptionalDate(tt.TestAnniversaryDate),
			orDash(tt.CertificateNumber),
		})
	}
	return rows
}

func formatOptionalDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return dates.FormatDate(*t)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func runExpiryCompute(cmd *cobra.Command, file, testDate, mostRecent string) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}

	rec, err := readRecordFile(cmd, file)
	if err != nil {
		return err
	}
	if testDate != "" {
		d, err := dates.ParseDate(testDate)
		if err != nil {
			return errors.NewValidation("--test-date %q is not a date", testDate).WithField("test-date", "YYYY-MM-DD")
		}
		rec.TestEndTimestamp = &d
	}
	history := fixedHistory{expiry: dates.EpochSentinel}
	if mostRecent != "" {
		d, err := dates.ParseDate(mostRecent)
		if err != nil {
			return errors.NewValidation("--most-recent-expiry %q is not a date", mostRecent).WithField("most-recent-expiry", "YYYY-MM-DD")
		}
		history.expiry = d
	}

	rules, catalog, err := expiry.LoadRules(cliCtx.Rules)
	if err != nil {
		return err
	}

	recorder := &strategyRecorder{}
	svc := expiry.NewService(expiry.NewSelector(rules), catalog, history,
		expiry.WithObserver(recorder),
		expiry.WithLogger(cliCtx.Logger))

	ctx, cancel := context.WithTimeout(cmd.Context(), cliCtx.Timeout)
	defer cancel()

	out, err := svc.Process(ctx, rec, time.Now())
	if err != nil {
		return err
	}
	cliCtx.Logger.Debug("expiry computed",
		logging.String("system_number", out.SystemNumber),
		logging.Int("strategies", len(recorder.names)))

	return PrintResult(cmd, &ExpiryResult{Record: out, Strategies: recorder.names, catalog: catalog})
}

// readRecordFile accepts a bare test record or a submit envelope.
func readRecordFile(cmd *cobra.Command, file string) (*testrecord.TestRecord, error) {
	var (
		data []byte
		err  error
	)
	if file == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(file)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeValidation, "failed to read record file")
	}

	var envelope record.SubmitRequest
	if err := json.Unmarshal(data, &envelope); err == nil && envelope.TestResult != nil {
		return envelope.TestResult, nil
	}
	var rec testrecord.TestRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeValidation, "record file is not valid JSON")
	}
	return &rec, nil
}
