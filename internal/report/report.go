// Package report renders inspections, evaluations, sweeps and alerts as
// styled console text for the CLI.
package report

import (
	"fmt"
	"io"
	"strings"

	"coopquality/internal/core"
	"coopquality/pkg/domain"

	"github.com/charmbracelet/lipgloss"
)

// Printer writes styled output to one writer. Colour is dropped
// automatically when the writer is not a terminal.
type Printer struct {
	w      io.Writer
	title  lipgloss.Style
	label  lipgloss.Style
	good   lipgloss.Style
	warn   lipgloss.Style
	bad    lipgloss.Style
	muted  lipgloss.Style
	column lipgloss.Style
}

// New builds a Printer for w.
func New(w io.Writer) *Printer {
	r := lipgloss.NewRenderer(w)
	return &Printer{
		w:      w,
		title:  r.NewStyle().Bold(true).Underline(true),
		label:  r.NewStyle().Foreground(lipgloss.Color("12")).Width(14),
		good:   r.NewStyle().Foreground(lipgloss.Color("10")).Bold(true),
		warn:   r.NewStyle().Foreground(lipgloss.Color("11")).Bold(true),
		bad:    r.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		muted:  r.NewStyle().Foreground(lipgloss.Color("8")),
		column: r.NewStyle().Width(12),
	}
}

func (p *Printer) verdictStyle(v string) lipgloss.Style {
	switch v {
	case string(domain.VerdictOptimal), string(domain.VerdictAcceptable), string(domain.FinalApproved):
		return p.good
	case string(domain.FinalConditional), string(domain.InspectionCompleted):
		return p.warn
	case "":
		return p.muted
	default:
		return p.bad
	}
}

func (p *Printer) severityStyle(c domain.Criticality) lipgloss.Style {
	switch c {
	case domain.CriticalityCritical, domain.CriticalityHigh:
		return p.bad
	case domain.CriticalityMedium:
		return p.warn
	default:
		return p.muted
	}
}

func (p *Printer) line(label, value string) {
	fmt.Fprintf(p.w, "%s %s\n", p.label.Render(label), value)
}

// Inspection prints the header of an inspection and one row per result.
// codes maps definition IDs to display codes; missing entries fall back to
// the ID.
func (p *Printer) Inspection(insp domain.Inspection, results []domain.EvaluationResult, codes map[string]string) {
	name := insp.Code
	if name == "" {
		name = insp.ID
	}
	fmt.Fprintln(p.w, p.title.Render("Inspection "+name))
	p.line("state", p.verdictStyle(string(insp.State)).Render(string(insp.State)))
	if insp.LotID != "" {
		p.line("lot", insp.LotID)
	}
	if insp.Verdict != "" {
		p.line("verdict", p.verdictStyle(string(insp.Verdict)).Render(string(insp.Verdict)))
		p.line("score", insp.Score.StringFixed(2)+"%")
		p.line("items", fmt.Sprintf("%d evaluated, %d approved, %d critical", insp.EvaluatedCount, insp.ApprovedCount, insp.CriticalCount))
	}
	if insp.RequiresCorrectiveAction {
		p.line("action", p.warn.Render("corrective action required"))
	}
	if insp.Observations != "" {
		p.line("notes", insp.Observations)
	}
	if len(results) == 0 {
		return
	}
	fmt.Fprintln(p.w)
	fmt.Fprintln(p.w, p.muted.Render(strings.Join([]string{
		p.column.Render("item"), p.column.Render("value"), p.column.Render("verdict"), p.column.Render("deviation"), "score",
	}, "")))
	for _, r := range results {
		code := codes[r.DefinitionID]
		if code == "" {
			code = r.DefinitionID
		}
		if r.Mandatory {
			code += "*"
		}
		fmt.Fprintln(p.w, strings.Join([]string{
			p.column.Render(code),
			p.column.Render(resultValue(r)),
			p.column.Render(p.verdictStyle(string(r.Verdict)).Render(string(r.Verdict))),
			p.column.Render(r.Deviation.String()),
			resultScore(r),
		}, ""))
	}
}

// Evaluation prints a single ad-hoc evaluation.
func (p *Printer) Evaluation(label string, r domain.EvaluationResult) {
	fmt.Fprintln(p.w, p.title.Render("Evaluation "+label))
	p.line("value", resultValue(r))
	p.line("verdict", p.verdictStyle(string(r.Verdict)).Render(string(r.Verdict)))
	p.line("deviation", r.Deviation.String())
	if r.NormalizedScore != nil {
		p.line("score", r.NormalizedScore.StringFixed(2))
	}
}

// Sweep prints the outcome of a certification sweep.
func (p *Printer) Sweep(rep core.SweepReport) {
	fmt.Fprintln(p.w, p.title.Render("Certification sweep"))
	p.line("checked", fmt.Sprint(rep.Checked))
	p.line("expiring", p.warn.Render(fmt.Sprint(rep.Expiring)))
	p.line("expired", p.bad.Render(fmt.Sprint(rep.Expired)))
	if len(rep.Alerts) > 0 {
		fmt.Fprintln(p.w)
		p.Alerts(rep.Alerts)
	}
}

// Alerts prints one line per alert.
func (p *Printer) Alerts(alerts []domain.Alert) {
	if len(alerts) == 0 {
		fmt.Fprintln(p.w, p.muted.Render("no alerts"))
		return
	}
	for _, a := range alerts {
		fmt.Fprintf(p.w, "%s %s %s\n", p.severityStyle(a.Severity).Render(fmt.Sprintf("[%s]", a.Severity)), a.Title, p.muted.Render(a.Message))
	}
}

func resultValue(r domain.EvaluationResult) string {
	switch {
	case r.MeasuredValue != nil:
		return r.MeasuredValue.String()
	case r.AssignedScore != nil:
		return fmt.Sprintf("score %d", *r.AssignedScore)
	default:
		return "-"
	}
}

func resultScore(r domain.EvaluationResult) string {
	if r.NormalizedScore == nil {
		return "-"
	}
	return r.NormalizedScore.StringFixed(1)
}
