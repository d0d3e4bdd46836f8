package cli

import (
	"encoding/json"
	"time"

	"github.com/spf13/cobra"

	"telegram-diet-diary/internal/report"
	"telegram-diet-diary/internal/storage"
)

var (
	reportUser  int64
	reportTZ    string
	reportDate  string
	reportMonth string
	reportStart string
	reportEnd   string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print calendar, day and period reports as JSON",
}

var reportDayCmd = &cobra.Command{
	Use:   "day",
	Short: "Report of one local day",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReport(cmd, func(a *report.Aggregator, loc *time.Location) (any, error) {
			return a.Day(cmd.Context(), reportUser, reportDate, loc)
		})
	},
}

var reportCalendarCmd = &cobra.Command{
	Use:   "calendar",
	Short: "Days of a month that have meals",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReport(cmd, func(a *report.Aggregator, loc *time.Location) (any, error) {
			return a.Calendar(cmd.Context(), reportUser, reportMonth, loc)
		})
	},
}

var reportPeriodCmd = &cobra.Command{
	Use:   "period",
	Short: "Report of an inclusive range of local days",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReport(cmd, func(a *report.Aggregator, loc *time.Location) (any, error) {
			return a.Period(cmd.Context(), reportUser, reportStart, reportEnd, loc)
		})
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.AddCommand(reportDayCmd, reportCalendarCmd, reportPeriodCmd)

	reportCmd.PersistentFlags().Int64Var(&reportUser, "user", 0, "User row id")
	reportCmd.PersistentFlags().StringVar(&reportTZ, "tz", "", "Timezone (IANA or ±HH:MM); default is the user's own")
	_ = reportCmd.MarkPersistentFlagRequired("user")

	reportDayCmd.Flags().StringVar(&reportDate, "date", "", "Date YYYY-MM-DD")
	_ = reportDayCmd.MarkFlagRequired("date")
	reportCalendarCmd.Flags().StringVar(&reportMonth, "month", "", "Month YYYY-MM")
	_ = reportCalendarCmd.MarkFlagRequired("month")
	reportPeriodCmd.Flags().StringVar(&reportStart, "start", "", "First day YYYY-MM-DD")
	reportPeriodCmd.Flags().StringVar(&reportEnd, "end", "", "Last day YYYY-MM-DD")
	_ = reportPeriodCmd.MarkFlagRequired("start")
	_ = reportPeriodCmd.MarkFlagRequired("end")
}

func runReport(cmd *cobra.Command, build func(*report.Aggregator, *time.Location) (any, error)) error {
	var loc *time.Location
	if reportTZ != "" {
		l, err := report.LoadZone(reportTZ)
		if err != nil {
			return err
		}
		loc = l
	}
	return withStore(func(store storage.Store) error {
		res, err := build(report.New(store, cfg.Zone()), loc)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	})
}
