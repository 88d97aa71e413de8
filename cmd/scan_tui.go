// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/seaport/pkg/scanner"
)

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

// scanModel is the Bubble Tea model for the scan TUI
type scanModel struct {
	ports   []string
	status  []scanner.PortStatus
	results []scanner.ScanResult
	started time.Time

	table   table.Model
	spinner spinner.Model

	width    int
	height   int
	done     bool
	quitting bool
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type scanStatusMsg []scanner.PortStatus

type scanResultMsg scanner.ScanResult

type scanDoneMsg struct{}

//////////////////////////////////////////////////////////////
// Styles
//////////////////////////////////////////////////////////////

var (
	scanTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			Background(lipgloss.Color("235")).
			Padding(0, 1)

	scanHeaderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	scanLabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12")).
			Bold(true)

	scanValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))

	scanErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)

	scanBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)
)

//////////////////////////////////////////////////////////////
// Model
//////////////////////////////////////////////////////////////

func scanColumns() []table.Column {
	return []table.Column{
		{Title: "Port", Width: 18},
		{Title: "State", Width: 10},
		{Title: "Framing", Width: 9},
		{Title: "Elapsed", Width: 8},
		{Title: "Tries", Width: 5},
		{Title: "Fingerprint", Width: 30},
	}
}

func newScanModel(ports []string) scanModel {
	t := table.New(
		table.WithColumns(scanColumns()),
		table.WithHeight(len(ports)+1),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	styles.Selected = styles.Selected.
		Foreground(lipgloss.Color("12")).
		Bold(false)
	t.SetStyles(styles)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))

	m := scanModel{
		ports:   ports,
		started: time.Now(),
		table:   t,
		spinner: s,
		width:   80,
		height:  24,
	}
	m.table.SetRows(m.rows())
	return m
}

func (m scanModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m scanModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case scanStatusMsg:
		m.status = msg
		m.table.SetHeight(len(m.status) + 1)
		m.table.SetRows(m.rows())
		return m, nil

	case scanResultMsg:
		m.results = append(m.results, scanner.ScanResult(msg))
		return m, nil

	case scanDoneMsg:
		m.done = true
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m scanModel) rows() []table.Row {
	if len(m.status) == 0 {
		rows := make([]table.Row, 0, len(m.ports))
		for _, p := range m.ports {
			rows = append(rows, table.Row{p, scanner.Unstarted.String(), "", "", "", ""})
		}
		return rows
	}

	rows := make([]table.Row, 0, len(m.status))
	for _, st := range m.status {
		state := st.State.String()
		if st.Excluded {
			state = "excluded"
		}
		framing := ""
		if st.Probed != scanner.Unknown {
			framing = st.Probed.String()
		}
		elapsed := ""
		if st.State == scanner.Probing {
			elapsed = st.Elapsed.Truncate(100 * time.Millisecond).String()
		}
		rows = append(rows, table.Row{
			st.Port,
			state,
			framing,
			elapsed,
			strconv.Itoa(st.Attempts),
			strings.Join(st.Fingerprint, " "),
		})
	}
	return rows
}

func (m scanModel) View() string {
	if m.quitting {
		return "Stopping scan...\n"
	}

	var s strings.Builder
	s.WriteString(scanTitleStyle.Render("SEAPORT - PORT SCAN"))
	s.WriteString("\n")
	s.WriteString(scanHeaderStyle.Render(fmt.Sprintf("%d ports | running %s | Press 'q' to stop",
		len(m.ports), time.Since(m.started).Truncate(time.Second))))
	s.WriteString("\n\n")

	if m.done {
		s.WriteString(scanValueStyle.Render("✓ Every port classified"))
	} else {
		s.WriteString(m.spinner.View() + " " + scanHeaderStyle.Render("Fingerprinting..."))
	}
	s.WriteString("\n\n")

	s.WriteString(scanBoxStyle.Render(m.table.View()))
	s.WriteString("\n\n")

	s.WriteString(scanLabelStyle.Render("Classified:"))
	s.WriteString("\n")
	content := strings.Builder{}
	if len(m.results) == 0 {
		content.WriteString(scanHeaderStyle.Render("  (none yet)"))
	} else {
		namer := scanner.NewNamer()
		for _, r := range m.results {
			name := namer.Name(r)
			if r.Resolved() {
				content.WriteString(fmt.Sprintf("%s %s %s\n",
					scanLabelStyle.Render(fmt.Sprintf("%-10s", name)),
					scanValueStyle.Render(r.Port),
					scanHeaderStyle.Render(r.PortType.String())))
			} else {
				content.WriteString(fmt.Sprintf("%s %s %s\n",
					scanLabelStyle.Render(fmt.Sprintf("%-10s", name)),
					scanValueStyle.Render(r.Port),
					scanErrorStyle.Render("unresolved, seen as "+r.Probed.String())))
			}
		}
	}
	s.WriteString(scanBoxStyle.Width(m.width - 4).Render(content.String()))

	for _, st := range m.status {
		if st.LastError != nil && st.State != scanner.Matched {
			s.WriteString("\n")
			s.WriteString(scanErrorStyle.Render(fmt.Sprintf("✗ %s: %v", st.Port, st.LastError)))
		}
	}
	return s.String()
}
