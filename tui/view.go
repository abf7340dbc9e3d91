package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/GoCodeAlone/ratchetwatch/agent"
)

// headerLines is the height of everything above the task panel.
const headerLines = 7

const barWidth = 30

// View implements tea.Model.
func (m Model) View() string {
	if m.picking {
		return m.pickerView()
	}
	if !m.hasView {
		return m.styles.header.Render(m.spinner.View() + " starting…")
	}

	var b strings.Builder
	b.WriteString(m.headerView())
	b.WriteString("\n")
	b.WriteString(m.styles.panel.Render(m.tasks.View()))
	b.WriteString("\n")
	b.WriteString(m.footerView())

	screen := b.String()
	if m.view.Modal != nil {
		return m.modalView(screen)
	}
	return screen
}

func (m Model) label(raw string) string {
	return m.title.String(strings.ReplaceAll(raw, "_", " "))
}

func (m Model) headerView() string {
	var b strings.Builder
	v := m.view

	switch {
	case !v.Selected():
		b.WriteString(m.styles.title.Render("ratchetwatch"))
		b.WriteString(m.styles.muted.Render("  no project selected, press / to search"))
		b.WriteString(strings.Repeat("\n", headerLines-1))
		return m.styles.header.Render(b.String())
	case v.Project == nil:
		b.WriteString(m.styles.title.Render(v.ProjectID))
	default:
		b.WriteString(m.styles.title.Render(v.Project.Name))
		b.WriteString("  ")
		status := string(v.Project.Status)
		b.WriteString(m.styles.status(status).Render(m.label(status)))
	}
	if !v.Connected {
		b.WriteString("  " + m.spinner.View() + m.styles.warn.Render(" Connecting…"))
	}
	b.WriteString("\n")

	b.WriteString(m.progressBar(v.Progress))
	b.WriteString(fmt.Sprintf("  %3d%%", v.Progress))
	if v.Project != nil {
		b.WriteString(m.styles.muted.Render(fmt.Sprintf("  %d/%d tasks, %d failed",
			v.Project.CompletedTasks, v.Project.TotalTasks, v.Project.FailedTasks)))
		if eta := v.Project.EstimatedTimeRemainingSeconds; eta > 0 && !v.Project.Status.IsTerminal() {
			b.WriteString(m.styles.muted.Render(fmt.Sprintf("  eta %s", time.Duration(eta)*time.Second)))
		}
	}
	b.WriteString("\n")

	b.WriteString(m.styles.muted.Render(fmt.Sprintf("completion rate %d%%", v.CompletionRate)))
	if v.Metrics != nil {
		mt := v.Metrics
		health := m.styles.ok
		if !mt.Healthy(70) {
			health = m.styles.bad
		}
		b.WriteString(m.styles.muted.Render(fmt.Sprintf("  cpu %.0f%%  mem %.0f%%  agents %d  tasks %d  avg %.1fs  ",
			mt.CPUUsagePercent, mt.MemoryUsagePercent, mt.ActiveAgents, mt.ActiveTasks, mt.AverageTaskDurationSeconds)))
		b.WriteString(health.Render(fmt.Sprintf("health %.0f", mt.SystemHealthScore)))
	}
	b.WriteString("\n")

	b.WriteString(m.rosterView(v.Agents, v.AgentsDegraded))
	b.WriteString("\n")

	if n := len(v.Activity); n > 0 {
		ev := v.Activity[n-1]
		b.WriteString(m.styles.muted.Render(fmt.Sprintf("latest: %s %s %s", activityName(ev), ev.Type, ev.Message)))
	}
	b.WriteString("\n")

	if v.PollError != "" {
		b.WriteString(m.styles.bad.Render("poll failed: " + v.PollError))
	} else if !v.LastPollAt.IsZero() {
		b.WriteString(m.styles.muted.Render("updated " + v.LastPollAt.Format("15:04:05")))
	}
	b.WriteString("\n")
	if m.statusLine != "" {
		b.WriteString(m.styles.bad.Render(m.statusLine))
	}
	return m.styles.header.Render(b.String())
}

func activityName(ev agent.ActivityEvent) string {
	if ev.AgentName != "" {
		return ev.AgentName
	}
	return ev.AgentID
}

func (m Model) progressBar(pct int) string {
	filled := pct * barWidth / 100
	return m.styles.barFull.Render(strings.Repeat("█", filled)) +
		m.styles.barEmpty.Render(strings.Repeat("░", barWidth-filled))
}

func (m Model) rosterView(agents []agent.Agent, degraded bool) string {
	if len(agents) == 0 {
		return m.styles.muted.Render("no agents")
	}
	parts := make([]string, 0, len(agents))
	for _, a := range agents {
		status := string(a.Status)
		parts = append(parts, a.Name+" "+m.styles.status(status).Render(m.label(status)))
	}
	line := "agents: " + strings.Join(parts, ", ")
	if degraded {
		line += m.styles.muted.Render(" (latest activity)")
	}
	return line
}

func (m Model) taskLines() string {
	if len(m.view.Tasks) == 0 {
		if m.view.Selected() {
			return m.styles.muted.Render("no tasks observed yet")
		}
		return ""
	}
	var b strings.Builder
	for i, t := range m.view.Tasks {
		if i > 0 {
			b.WriteString("\n")
		}
		status := string(t.Status)
		title := t.Title
		if title == "" {
			title = t.ID
		}
		b.WriteString(fmt.Sprintf("%-12s %3d%%  %s", m.styles.status(status).Render(m.label(status)), t.Progress, title))
		if t.AgentName != "" {
			b.WriteString(m.styles.muted.Render("  @" + t.AgentName))
		}
	}
	return b.String()
}

func (m Model) footerView() string {
	return m.styles.footer.Render("/ search  x stop watching  j/k scroll  pgup/pgdn page  q quit")
}

func (m Model) modalView(background string) string {
	md := m.view.Modal
	var b strings.Builder
	if md.IsFailure {
		b.WriteString(m.styles.bad.Render("Project failed"))
	} else {
		b.WriteString(m.styles.ok.Render("Project completed"))
	}
	b.WriteString("\n\n")
	b.WriteString(md.ProjectName)
	b.WriteString("\n\n")
	box := "[ ]"
	if m.dontShowAgain {
		box = "[x]"
	}
	b.WriteString(m.styles.checkbox.Render(box) + " don't show again (d)")
	b.WriteString("\n\n")
	b.WriteString(m.styles.selected.Render("v") + " view project   " + m.styles.selected.Render("s") + " stay here")

	dialog := m.styles.modal.Render(b.String())
	if m.width == 0 || m.height == 0 {
		return background + "\n" + dialog
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, dialog)
}

func (m Model) pickerView() string {
	var b strings.Builder
	b.WriteString(m.styles.title.Render("Select project"))
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n\n")
	if m.searchErr != "" {
		b.WriteString(m.styles.bad.Render(m.searchErr))
		b.WriteString("\n")
	}
	limit := 10
	if m.height > 8 {
		limit = m.height - 8
	}
	for i, p := range m.ranked {
		if i >= limit {
			break
		}
		line := fmt.Sprintf("%s  %s", p.Name, m.styles.muted.Render(p.ID+" · "+m.label(string(p.Status))))
		if i == m.cursor {
			b.WriteString(m.styles.selected.Render("> ") + line)
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}
	if len(m.ranked) == 0 && m.searchErr == "" {
		b.WriteString(m.styles.muted.Render("no matches"))
		b.WriteString("\n")
	}
	b.WriteString(m.styles.footer.Render("enter select  esc cancel"))
	return m.styles.header.Render(b.String())
}
