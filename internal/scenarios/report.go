package scenarios

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"
)

// WriteReport prints a human readable summary of report to w.
func WriteReport(w io.Writer, report *RunReport) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "Run %s (%s)\n", report.RunID, report.Duration.Round(time.Millisecond))
	for _, sc := range report.Scenarios {
		fmt.Fprintf(tw, "\n%s: %s\n", sc.ID, sc.Title)
		fmt.Fprintf(tw, "expected: %s\n", sc.Expectation)
		fmt.Fprintln(tw, "STEP\tENDPOINT\tTXN\tMSG\tSTATUS\tHTTP\tACK\tCODE\tMESSAGE\tDURATION")
		for _, s := range sc.Steps {
			fmt.Fprintf(tw, "%d %s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				s.Step, s.Name,
				s.Endpoint,
				dash(s.TransactionID),
				dash(s.MessageID),
				s.Status,
				httpStatus(s.HTTPStatus),
				dash(s.Ack),
				dash(s.ErrorCode),
				dash(detail(s)),
				s.Duration.Round(time.Millisecond),
			)
		}
		for _, s := range sc.Steps {
			if s.Response != "" {
				fmt.Fprintf(tw, "response %d: %s\n", s.Step, s.Response)
			}
		}
	}

	counts := report.Counts()
	fmt.Fprintf(tw, "\n%d scenario(s): %d ack, %d nack, %d transport error, %d failed, %d skipped\n",
		len(report.Scenarios),
		counts[StatusAcknowledged],
		counts[StatusRejected],
		counts[StatusTransportError],
		counts[StatusFailed],
		counts[StatusSkipped],
	)

	return tw.Flush()
}

// WriteCatalog lists the scenarios with their steps.
func WriteCatalog(w io.Writer, scenarios []Scenario) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tSTEPS\tEXPECTED")

	preview := NewParams(Identity{ReceiverAppID: "receiver"}, defaultPreviewOptions)
	for _, sc := range scenarios {
		steps := sc.Steps(preview)
		names := make([]string, 0, len(steps))
		for _, st := range steps {
			names = append(names, stepLabel(st))
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", sc.ID, sc.Title, strings.Join(names, " -> "), sc.Expectation)
	}
	return tw.Flush()
}

func stepLabel(st Step) string {
	label := string(st.Endpoint) + ":" + st.Name
	switch st.Wait {
	case WaitResubmit:
		label = "wait(resubmit) " + label
	case WaitReconcile:
		label = "wait(reconcile) " + label
	}
	if st.Auth != AuthSigned {
		label += " [" + st.Auth.String() + "]"
	}
	return label
}

func detail(s StepResult) string {
	switch {
	case s.TransportError != "":
		return s.TransportError
	case s.SkipReason != "":
		return s.SkipReason
	default:
		return s.ErrorMessage
	}
}

func httpStatus(code int) string {
	if code == 0 {
		return "-"
	}
	return strconv.Itoa(code)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
