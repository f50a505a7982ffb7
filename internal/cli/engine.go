package cli

import (
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"
)

// NewEngineCmds создаёт команды управления планировщиком:
// status, start, stop, run, config.
func NewEngineCmds(clientFn func() *Client, outputFn func() *Output) []*cobra.Command {
	return []*cobra.Command{
		newStatusCmd(clientFn, outputFn),
		newStartCmd(clientFn, outputFn),
		newStopCmd(clientFn, outputFn),
		newRunCmd(clientFn, outputFn),
		newConfigCmd(clientFn, outputFn),
	}
}

func newStatusCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show scheduler status",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := clientFn().Status()
			if err != nil {
				return err
			}
			printStatus(outputFn(), st)
			return nil
		},
	}
}

func newStartCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := clientFn().Start()
			if err != nil {
				return err
			}
			out := outputFn()
			printStatus(out, st)
			out.Success("Scheduler started")
			return nil
		},
	}
}

func newStopCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := clientFn().Stop()
			if err != nil {
				return err
			}
			out := outputFn()
			printStatus(out, st)
			out.Success("Scheduler stopped")
			return nil
		},
	}
}

func newRunCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:       "run JOB",
		Short:     "Run a job now (all, full, enrollments, appointments, leads, payments)",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"all", "full", "enrollments", "appointments", "leads", "payments"},
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := clientFn().Run(args[0])
			if err != nil {
				return err
			}

			out := outputFn()
			headers := []string{"PART", "COUNTERS"}
			var rows [][]string
			for _, part := range []struct {
				name   string
				counts map[string]int
			}{
				{"enrollments", report.Enrollments},
				{"appointments", report.Appointments},
				{"leads", report.Leads},
				{"payments", report.Payments},
			} {
				if part.counts != nil {
					rows = append(rows, []string{part.name, formatCounts(part.counts)})
				}
			}
			out.Print(headers, rows, report)

			if report.Error != "" {
				return fmt.Errorf("job %s failed: %s", report.Job, report.Error)
			}
			return nil
		},
	}
}

func newConfigCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var req UpdateConfigRequest
	var enabled, appt, full, apptCron, fullCron, startDelay string
	var batch int

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Update scheduler settings",
		Example: `  engagectl config --appointment-interval 10m
  engagectl config --full-cron "*/30 8-20 * * *" --batch-size 100`,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if flags.Changed("enabled") {
				v, err := strconv.ParseBool(enabled)
				if err != nil {
					return fmt.Errorf("invalid --enabled: %w", err)
				}
				req.Enabled = &v
			}
			setIfChanged(cmd, "appointment-interval", appt, &req.AppointmentInterval)
			setIfChanged(cmd, "full-interval", full, &req.FullInterval)
			setIfChanged(cmd, "appointment-cron", apptCron, &req.AppointmentCron)
			setIfChanged(cmd, "full-cron", fullCron, &req.FullCron)
			setIfChanged(cmd, "start-delay", startDelay, &req.StartDelay)
			if flags.Changed("batch-size") {
				req.BatchSize = &batch
			}

			if req == (UpdateConfigRequest{}) {
				return errors.New("nothing to update: pass at least one flag")
			}

			s, err := clientFn().UpdateConfig(req)
			if err != nil {
				return err
			}

			out := outputFn()
			printSettings(out, s)
			out.Success("Scheduler config updated")
			return nil
		},
	}

	cmd.Flags().StringVar(&enabled, "enabled", "", "Enable or disable the scheduler (true/false)")
	cmd.Flags().StringVar(&appt, "appointment-interval", "", "Appointment reminder interval (e.g. 15m)")
	cmd.Flags().StringVar(&full, "full-interval", "", "Full run interval (e.g. 30m)")
	cmd.Flags().StringVar(&apptCron, "appointment-cron", "", "Cron expression for appointment reminders (empty string clears)")
	cmd.Flags().StringVar(&fullCron, "full-cron", "", "Cron expression for the full run (empty string clears)")
	cmd.Flags().StringVar(&startDelay, "start-delay", "", "Delay before the first run after start")
	cmd.Flags().IntVar(&batch, "batch-size", 0, "Enrollments per tick")

	return cmd
}

func setIfChanged(cmd *cobra.Command, name, value string, dst **string) {
	if cmd.Flags().Changed(name) {
		v := value
		*dst = &v
	}
}

func printStatus(out *Output, st *EngineStatus) {
	headers := []string{"JOB", "RUNS", "FAILURES", "LAST_RUN", "NEXT_RUN"}

	jobs := make([]string, 0, len(st.Jobs))
	for job := range st.Jobs {
		jobs = append(jobs, job)
	}
	sort.Strings(jobs)

	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		js := st.Jobs[job]
		rows = append(rows, []string{
			job, strconv.Itoa(js.Runs), strconv.Itoa(js.Failures), js.LastRun, js.NextRun,
		})
	}

	if out.jsonMode {
		out.JSON(st)
		return
	}

	out.Table([]string{"RUNNING", "ENABLED", "APPOINTMENTS", "FULL", "BATCH", "UPTIME"}, [][]string{{
		strconv.FormatBool(st.Running),
		strconv.FormatBool(st.Enabled),
		st.AppointmentEvery,
		st.FullEvery,
		strconv.Itoa(st.BatchSize),
		strconv.FormatInt(st.UptimeSec, 10) + "s",
	}})
	if len(rows) > 0 {
		fmt.Fprintln(out.w)
		out.Table(headers, rows)
	}
	if len(st.Errors) > 0 {
		fmt.Fprintln(out.w)
		errRows := make([][]string, len(st.Errors))
		for i, e := range st.Errors {
			errRows[i] = []string{e.At, e.Job, e.Error}
		}
		out.Table([]string{"AT", "JOB", "ERROR"}, errRows)
	}
}

func printSettings(out *Output, s *Settings) {
	headers := []string{"ENABLED", "APPOINTMENTS", "FULL", "APPOINTMENT_CRON", "FULL_CRON", "START_DELAY", "BATCH"}
	rows := [][]string{{
		strconv.FormatBool(s.Enabled),
		s.AppointmentInterval,
		s.FullInterval,
		s.AppointmentCron,
		s.FullCron,
		s.StartDelay,
		strconv.Itoa(s.BatchSize),
	}}
	out.Print(headers, rows, s)
}

// formatCounts печатает ненулевые счётчики в стабильном порядке.
func formatCounts(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for k, v := range counts {
		if v != 0 {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	if len(keys) == 0 {
		return "-"
	}
	s := ""
	for i, k := range keys {
		if i > 0 {
			s += " "
		}
		s += k + "=" + strconv.Itoa(counts[k])
	}
	return s
}
