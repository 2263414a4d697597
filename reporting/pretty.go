package reporting

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/acarl005/stripansi"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ethereum-optimism/infra/op-scripttest/types"
	"github.com/ethereum-optimism/infra/op-scripttest/ui"
)

var _ Reporter = (*PrettyReporter)(nil)

// PrettyConfig holds configuration for the human readable reporter
type PrettyConfig struct {
	// Writer defaults to os.Stdout.
	Writer          io.Writer
	NoColor         bool
	HideStacktraces bool
}

// PrettyReporter renders a run for a terminal: one line per test and step,
// script output framed between markers, and a summary table per report.
type PrettyReporter struct {
	out             *bufio.Writer
	noColor         bool
	hideStacktraces bool

	summary types.Summary
	// pending is the test whose "name ..." line is waiting for its result.
	pending  *types.ID
	inOutput bool
}

// NewPrettyReporter creates a new human readable reporter
func NewPrettyReporter(cfg PrettyConfig) *PrettyReporter {
	if cfg.Writer == nil {
		cfg.Writer = os.Stdout
	}
	return &PrettyReporter{
		out:             bufio.NewWriter(cfg.Writer),
		noColor:         cfg.NoColor,
		hideStacktraces: cfg.HideStacktraces,
	}
}

func (p *PrettyReporter) color(s string, colors ...text.Color) string {
	if p.noColor {
		return s
	}
	return text.Colors(colors).Sprint(s)
}

// breakLine terminates a pending "name ..." line before other text is written.
func (p *PrettyReporter) breakLine() {
	if p.pending != nil {
		p.out.WriteString("\n")
		p.pending = nil
	}
}

func (p *PrettyReporter) endOutput() {
	if p.inOutput {
		p.out.WriteString(p.color("----- output end -----", text.Faint) + "\n")
		p.inOutput = false
	}
}

func (p *PrettyReporter) ReportRegister(*types.TestDescription) {}

func (p *PrettyReporter) ReportPlan(plan *types.Plan) {
	p.summary.AddPlan(plan)
	noun := "tests"
	if plan.Total == 1 {
		noun = "test"
	}
	fmt.Fprintf(p.out, "%s\n", p.color(fmt.Sprintf("running %d %s from %s", plan.Total, noun, displayOrigin(plan.Origin)), text.Faint))
}

func (p *PrettyReporter) ReportWait(desc *types.TestDescription) {
	p.breakLine()
	fmt.Fprintf(p.out, "%s ...", desc.Name)
	id := desc.ID
	p.pending = &id
}

func (p *PrettyReporter) ReportOutput(data []byte) {
	if len(data) == 0 {
		return
	}
	p.breakLine()
	if !p.inOutput {
		p.out.WriteString(p.color("------- output -------", text.Faint) + "\n")
		p.inOutput = true
	}
	if p.noColor {
		data = []byte(stripansi.Strip(string(data)))
	}
	p.out.Write(data)
	if data[len(data)-1] != '\n' {
		p.out.WriteString("\n")
	}
}

func (p *PrettyReporter) ReportSlow(desc *types.TestDescription, elapsed time.Duration) {
	p.breakLine()
	p.endOutput()
	fmt.Fprintf(p.out, "%s\n", p.color(fmt.Sprintf("'%s' has been running for over %s", desc.Name, formatDuration(elapsed)), text.FgYellow))
}

func (p *PrettyReporter) ReportResult(desc *types.TestDescription, result *types.TestResult, elapsed time.Duration) {
	p.summary.AddResult(desc, result)
	p.endOutput()
	if p.pending == nil || *p.pending != desc.ID {
		p.breakLine()
		fmt.Fprintf(p.out, "%s ...", desc.Name)
	}
	p.pending = nil
	fmt.Fprintf(p.out, " %s %s\n", p.status(result.Status), p.color(fmt.Sprintf("(%s)", formatDuration(elapsed)), text.Faint))
}

func (p *PrettyReporter) ReportUncaughtError(origin string, err *types.JSError) {
	p.summary.AddUncaughtError(origin, err)
	p.breakLine()
	p.endOutput()
	fmt.Fprintf(p.out, "Uncaught error from %s %s\n", displayOrigin(origin), p.color("FAILED", text.FgRed))
}

func (p *PrettyReporter) ReportStepRegister(*types.StepDescription) {}

func (p *PrettyReporter) ReportStepWait(*types.StepDescription) {}

func (p *PrettyReporter) ReportStepResult(desc *types.StepDescription, result *types.StepResult, elapsed time.Duration,
	_ *types.TestDescriptions, _ *types.StepDescriptions) {
	p.summary.AddStepResult(desc, result)
	p.breakLine()
	p.endOutput()
	fmt.Fprintf(p.out, "%s%s ... %s %s\n", ui.StepPrefix(desc.Level), desc.Name, p.status(result.Status),
		p.color(fmt.Sprintf("(%s)", formatDuration(elapsed)), text.Faint))
	if result.Status == types.TestStatusFailed && result.Failure != nil && result.Failure.Kind != types.FailureFailedSteps {
		fmt.Fprintf(p.out, "%s%s\n", ui.StepIndent(desc.Level), p.color(result.Failure.String(), text.FgRed))
	}
}

func (p *PrettyReporter) ReportCompleted() {
	p.breakLine()
	p.endOutput()
}

func (p *PrettyReporter) ReportSigint(unresolved []types.ID, tests *types.TestDescriptions, steps *types.StepDescriptions) {
	p.breakLine()
	p.endOutput()
	var lines []string
	for _, id := range unresolved {
		if desc, ok := tests.Get(id); ok {
			lines = append(lines, fmt.Sprintf("%s => %s", desc.Name, desc.Location))
		} else if desc, ok := steps.Get(id); ok {
			lines = append(lines, fmt.Sprintf("%s ... %s => %s", desc.RootName, desc.Name, desc.Location))
		}
	}
	box := ui.Box("SIGINT: the following tests were interrupted", lines)
	p.out.WriteString(p.color(box, text.FgRed))
}

func (p *PrettyReporter) ReportSummary(elapsed time.Duration, _ *types.TestDescriptions, _ *types.StepDescriptions) {
	p.breakLine()
	p.endOutput()
	s := p.summary
	p.summary = types.Summary{}

	if len(s.UncaughtErrors) > 0 || len(s.Failures) > 0 {
		fmt.Fprintf(p.out, "\n%s\n\n", p.color(" ERRORS ", text.BgRed, text.FgWhite, text.Bold))
		for _, f := range s.Failures {
			fmt.Fprintf(p.out, "%s => %s\n", f.Description.Name, f.Description.Location)
			fmt.Fprintf(p.out, "%s\n\n", p.color(p.failureDetail(f.Failure), text.FgRed))
		}
		for _, u := range s.UncaughtErrors {
			fmt.Fprintf(p.out, "%s (uncaught error)\n", displayOrigin(u.Origin))
			fmt.Fprintf(p.out, "%s\n\n", p.color(p.errorDetail(u.Error), text.FgRed))
		}

		fmt.Fprintf(p.out, "%s\n\n", p.color(" FAILURES ", text.BgRed, text.FgWhite, text.Bold))
		for _, f := range s.Failures {
			fmt.Fprintf(p.out, "%s => %s\n", f.Description.Name, f.Description.Location)
		}
		for _, u := range s.UncaughtErrors {
			fmt.Fprintf(p.out, "%s (uncaught error)\n", displayOrigin(u.Origin))
		}
	}

	verdict := "ok"
	if s.HasFailed() {
		verdict = "FAILED"
	}

	t := table.NewWriter()
	t.SetOutputMirror(p.out)
	t.SetTitle(fmt.Sprintf("Test Results (%s)", formatDuration(elapsed)))
	t.AppendHeader(table.Row{"", "Passed", "Failed", "Ignored", "Filtered Out"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Passed", Align: text.AlignRight},
		{Name: "Failed", Align: text.AlignRight},
		{Name: "Ignored", Align: text.AlignRight},
		{Name: "Filtered Out", Align: text.AlignRight},
	})
	t.AppendRow(table.Row{"Tests", s.Passed, s.Failed, s.Ignored, s.FilteredOut})
	if s.PassedSteps+s.FailedSteps+s.IgnoredSteps > 0 {
		t.AppendRow(table.Row{"Steps", s.PassedSteps, s.FailedSteps, s.IgnoredSteps, ""})
	}
	t.AppendFooter(table.Row{"Verdict", verdict, "", "", ""})

	switch {
	case p.noColor:
		t.SetStyle(table.StyleLight)
	case s.HasFailed():
		t.SetStyle(table.StyleColoredBlackOnRedWhite)
	default:
		t.SetStyle(table.StyleColoredBlackOnGreenWhite)
	}
	p.out.WriteString("\n")
	t.Render()
}

func (p *PrettyReporter) FlushReport(time.Duration, *types.TestDescriptions, *types.StepDescriptions) error {
	return p.out.Flush()
}

func (p *PrettyReporter) status(status types.TestStatus) string {
	switch status {
	case types.TestStatusOk:
		return p.color("ok", text.FgGreen)
	case types.TestStatusIgnored:
		return p.color("ignored", text.FgYellow)
	case types.TestStatusCancelled:
		return p.color("cancelled", text.FgRed)
	default:
		return p.color("FAILED", text.FgRed)
	}
}

func (p *PrettyReporter) failureDetail(f *types.TestFailure) string {
	if f.Kind == types.FailureJSError && f.Error != nil {
		return p.errorDetail(f.Error)
	}
	return f.String()
}

func (p *PrettyReporter) errorDetail(err *types.JSError) string {
	if err == nil {
		return "Error"
	}
	if p.hideStacktraces {
		return err.Error()
	}
	return err.Trace()
}

// displayOrigin turns a file URL into a path.
func displayOrigin(origin string) string {
	return strings.TrimPrefix(origin, "file://")
}

// formatDuration formats a duration for display
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return d.Truncate(time.Millisecond).String()
}
