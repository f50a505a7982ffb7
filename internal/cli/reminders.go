package cli

import (
	"strconv"

	"github.com/spf13/cobra"
)

// NewRemindersCmd создаёт группу команд для напоминаний.
func NewRemindersCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reminders",
		Short: "Inspect reminders",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Reminders sent in the last 7 days, per kind",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := clientFn().ReminderStats()
			if err != nil {
				return err
			}

			headers := []string{"ENTITY", "KIND", "COUNT", "LAST_SENT"}
			rows := make([][]string, len(st.Stats))
			for i, s := range st.Stats {
				rows[i] = []string{s.EntityType, s.Kind, strconv.Itoa(s.Count), s.LastSentAt}
			}

			out := outputFn()
			out.Print(headers, rows, st)
			if !out.jsonMode {
				out.Success("Total since " + st.Since + ": " + strconv.Itoa(st.Total))
			}
			return nil
		},
	})

	return cmd
}
