package cli

import (
	"errors"
	"strconv"

	"github.com/spf13/cobra"
)

// NewEnrollmentCmd создаёт группу команд для управления enrollments.
func NewEnrollmentCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "enrollment",
		Aliases: []string{"enrollments", "en"},
		Short:   "Manage sequence enrollments",
	}

	cmd.AddCommand(
		newEnrollCmd(clientFn, outputFn),
		newEnrollmentGetCmd(clientFn, outputFn),
		newEnrollmentListCmd(clientFn, outputFn),
		newEnrollmentPauseCmd(clientFn, outputFn),
		newEnrollmentTransitionCmd("resume", "Resume a paused enrollment", "Enrollment resumed", clientFn, outputFn, (*Client).ResumeEnrollment),
		newEnrollmentTransitionCmd("cancel", "Cancel an enrollment", "Enrollment cancelled", clientFn, outputFn, (*Client).CancelEnrollment),
	)

	return cmd
}

func newEnrollCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var req EnrollRequest
	var contact ContactArgs

	cmd := &cobra.Command{
		Use:   "enroll SEQUENCE_ID",
		Short: "Enroll a lead, customer or contact into a sequence",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.SequenceID = args[0]
			if contact != (ContactArgs{}) {
				req.Contact = &contact
			}
			if req.LeadID == "" && req.CustomerID == "" && req.Contact == nil {
				return errors.New("one of --lead, --customer, --email or --phone is required")
			}

			e, err := clientFn().Enroll(req)
			if err != nil {
				return err
			}

			out := outputFn()
			printEnrollments(out, []EnrollmentResponse{*e}, e)
			out.Success("Enrolled: " + e.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.LeadID, "lead", "", "Lead ID")
	cmd.Flags().StringVar(&req.CustomerID, "customer", "", "Customer ID")
	cmd.Flags().StringVar(&contact.Email, "email", "", "Contact email")
	cmd.Flags().StringVar(&contact.Phone, "phone", "", "Contact phone")
	cmd.Flags().StringVar(&contact.Name, "name", "", "Contact name")

	return cmd
}

func newEnrollmentGetCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "get ID",
		Short: "Show an enrollment with its step history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := clientFn().GetEnrollment(args[0])
			if err != nil {
				return err
			}

			out := outputFn()
			if out.jsonMode {
				out.JSON(e)
				return nil
			}

			printEnrollments(out, []EnrollmentResponse{*e}, e)

			rows := make([][]string, len(e.StepHistory))
			for i, h := range e.StepHistory {
				rows[i] = []string{h.ExecutedAt, strconv.Itoa(h.StepIndex), h.ActionType, h.Outcome, h.Detail}
			}
			if len(rows) > 0 {
				out.Table([]string{"AT", "STEP", "ACTION", "OUTCOME", "DETAIL"}, rows)
			}
			return nil
		},
	}
}

func newEnrollmentListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list SEQUENCE_ID",
		Short: "List enrollments of a sequence",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := clientFn().ListEnrollments(args[0], limit)
			if err != nil {
				return err
			}
			printEnrollments(outputFn(), list, list)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Max enrollments to return")

	return cmd
}

func newEnrollmentPauseCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "pause ID",
		Short: "Pause an active enrollment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := clientFn().PauseEnrollment(args[0], reason)
			if err != nil {
				return err
			}
			out := outputFn()
			printEnrollments(out, []EnrollmentResponse{*e}, e)
			out.Success("Enrollment paused")
			return nil
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "Pause reason")

	return cmd
}

func newEnrollmentTransitionCmd(
	use, short, done string,
	clientFn func() *Client,
	outputFn func() *Output,
	call func(*Client, string) (*EnrollmentResponse, error),
) *cobra.Command {
	return &cobra.Command{
		Use:   use + " ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := call(clientFn(), args[0])
			if err != nil {
				return err
			}
			out := outputFn()
			printEnrollments(out, []EnrollmentResponse{*e}, e)
			out.Success(done)
			return nil
		},
	}
}

func printEnrollments(out *Output, list []EnrollmentResponse, jsonData any) {
	headers := []string{"ID", "SEQUENCE_ID", "CONTACT", "STEP", "STATUS", "NEXT_ACTION"}
	rows := make([][]string, len(list))
	for i, e := range list {
		contact := e.Contact.Email
		if contact == "" {
			contact = e.Contact.Phone
		}
		status := e.Status
		if e.PauseReason != "" {
			status += " (" + e.PauseReason + ")"
		}
		rows[i] = []string{e.ID, e.SequenceID, contact, strconv.Itoa(e.CurrentStep), status, e.NextActionAt}
	}
	out.Print(headers, rows, jsonData)
}
