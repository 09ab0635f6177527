package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/samber/lo"

	"github.com/celerix-dev/wardledger/internal/engine"
	"github.com/celerix-dev/wardledger/pkg/schema"
)

// Color styles for table format
var (
	upcomingStyle  = color.New(color.FgCyan)
	ongoingStyle   = color.New(color.FgYellow)
	cancelledStyle = color.New(color.FgRed)
	completedStyle = color.New(color.FgGreen)
	faintStyle     = color.New(color.Faint)
	headerStyle    = color.New(color.Bold)
)

func statusText(s schema.Status) string {
	switch s {
	case schema.Upcoming:
		return upcomingStyle.Sprint(s)
	case schema.Ongoing:
		return ongoingStyle.Sprint(s)
	case schema.Cancelled:
		return cancelledStyle.Sprint(s)
	case schema.Completed:
		return completedStyle.Sprint(s)
	default:
		return s.String()
	}
}

func orDash(s string) string {
	return lo.Ternary(s == "", faintStyle.Sprint("-"), s)
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

func renderRecord(rec schema.Record) func(io.Writer) {
	return func(w io.Writer) {
		t := newTable(w)
		t.AppendRows([]table.Row{
			{"ID", rec.ID},
			{"Status", statusText(rec.Status)},
			{"Proposal", rec.ProposalURI},
			{"Report", orDash(rec.ReportURI)},
			{"Next", nextStatuses(rec.Status)},
		})
		t.Render()
	}
}

func nextStatuses(s schema.Status) string {
	if engine.IsTerminal(s) {
		return faintStyle.Sprint("- (terminal)")
	}
	names := lo.Map(engine.Successors(s), func(next schema.Status, _ int) string { return next.String() })
	return strings.Join(names, ", ")
}

func renderPage(page schema.Page, pageNumber uint64) func(io.Writer) {
	return func(w io.Writer) {
		t := newTable(w)
		t.AppendHeader(table.Row{"ID", "STATUS", "PROPOSAL", "REPORT"})
		for _, rec := range page.Records() {
			t.AppendRow(table.Row{rec.ID, statusText(rec.Status), rec.ProposalURI, orDash(rec.ReportURI)})
		}
		t.Render()
		fmt.Fprintln(w, faintStyle.Sprintf("page %d, %d records", pageNumber, page.Len()))
	}
}

func renderEvents(events []schema.Event) func(io.Writer) {
	return func(w io.Writer) {
		if len(events) == 0 {
			fmt.Fprintln(w, "No events found")
			return
		}
		t := newTable(w)
		t.AppendHeader(table.Row{"SEQ", "KIND", "RECORD", "STATUS", "URI", "ACTOR", "AT"})
		for _, ev := range events {
			t.AppendRow(table.Row{
				ev.Seq,
				ev.Kind,
				ev.RecordID,
				statusText(ev.Status),
				orDash(ev.URI),
				ev.Actor,
				ev.At.UTC().Format(time.RFC3339),
			})
		}
		t.Render()
	}
}

func renderLine(format string, args ...any) func(io.Writer) {
	return func(w io.Writer) {
		fmt.Fprintln(w, fmt.Sprintf(format, args...))
	}
}

func renderHeading(title, value string) func(io.Writer) {
	return func(w io.Writer) {
		fmt.Fprintf(w, "%s %s\n", headerStyle.Sprint(title), value)
	}
}
