package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"hyperdrive/pkg/jobs"
)

// View renders the dashboard
func (m *Model) View() string {
	var b strings.Builder

	header := titleStyle.Render("HYPERDRIVE") + " " + m.spinner.View()
	if m.snapshot != nil {
		header += dimStyle.Render(" updated " + m.snapshot.At.Format("15:04:05"))
	}
	b.WriteString(header + "\n\n")

	if m.err != nil {
		b.WriteString(errorStyle.Render("refresh failed: "+m.err.Error()) + "\n\n")
	}

	if m.snapshot == nil {
		b.WriteString(dimStyle.Render("Loading queue...") + "\n")
		b.WriteString(m.renderHelp())
		return b.String()
	}

	b.WriteString(m.renderStats() + "\n")
	b.WriteString(panelStyle.Render(m.renderJobs()) + "\n")
	b.WriteString(panelStyle.Render(m.renderWorkers()) + "\n")
	b.WriteString(m.renderHelp())
	return b.String()
}

func (m *Model) renderStats() string {
	counts := m.counts()
	stat := func(label string, v interface{}) string {
		return statsLabelStyle.Render(label+":") + " " + statsValueStyle.Render(fmt.Sprint(v))
	}
	return strings.Join([]string{
		stat("Queued", m.snapshot.QueueLength),
		stat("Running", counts[jobs.StatusRunning]),
		stat("Completed", counts[jobs.StatusCompleted]),
		stat("Failed", counts[jobs.StatusFailed]),
	}, "  ")
}

func (m *Model) renderJobs() string {
	lines := []string{statsLabelStyle.Render("Jobs")}
	if len(m.snapshot.Jobs) == 0 {
		return lipgloss.JoinVertical(lipgloss.Left, append(lines, dimStyle.Render("no jobs"))...)
	}

	for _, job := range m.snapshot.Jobs {
		line := fmt.Sprintf("%-8s %-16s %s %s",
			job.ID,
			"@"+job.Username,
			statusStyle(job.Status).Render(fmt.Sprintf("%-9s", job.Status)),
			m.bar.ViewAs(float64(job.Progress)/100))
		lines = append(lines, line)

		detail := job.CurrentStep
		if job.Status == jobs.StatusFailed && job.Error != "" {
			detail = errorStyle.Render(job.Error)
		} else if job.Status == jobs.StatusCompleted {
			detail = fmt.Sprintf("%d tweets, %d retweets", job.TweetsScraped, job.RetweetsScraped)
		}
		if detail != "" {
			lines = append(lines, "  "+dimStyle.Render("└ ")+detail)
		}
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (m *Model) renderWorkers() string {
	lines := []string{statsLabelStyle.Render("Workers")}
	if len(m.snapshot.Workers) == 0 {
		return lipgloss.JoinVertical(lipgloss.Left, append(lines, dimStyle.Render("no workers registered"))...)
	}

	for _, hb := range m.snapshot.Workers {
		state := hb.State
		if hb.CurrentJob != "" {
			state += " " + hb.CurrentJob
		}
		age := m.snapshot.At.Sub(hb.Timestamp).Truncate(time.Second)
		line := fmt.Sprintf("%-12s %-18s %s ago", hb.WorkerID, state, age)
		if m.stale(hb) {
			line += " " + warningStyle.Render("stale")
		}
		lines = append(lines, line)
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (m *Model) renderHelp() string {
	if !m.showHelp {
		return helpStyle.Render("? help • q quit")
	}
	return helpStyle.Render(strings.Join([]string{
		"r      refresh now",
		"?      toggle help",
		"q/esc  quit",
	}, "\n"))
}
