package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"yt-transcriber/internal/config"
	"yt-transcriber/internal/model"
	"yt-transcriber/internal/queue"
)

var (
	dashTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	dashMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	dashErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	dashPanelStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	dashLabelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Bold(true)
)

const dashRefreshInterval = time.Second

type dashCountsMsg struct {
	counts model.QueueCounts
	err    error
}

type dashTickMsg struct{}

type dashboardModel struct {
	q        queue.Queue
	backend  string
	spin     spinner.Model
	counts   model.QueueCounts
	loaded   bool
	lastErr  error
	refresh  time.Time
	quitting bool
}

func runDashboard(args []string) error {
	fs := flag.NewFlagSet("dashboard", flag.ContinueOnError)
	configPath := fs.String("config", "", "config file path")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !stdinIsTTY() {
		return errors.New("dashboard requires an interactive terminal (TTY)")
	}

	cfg, err := config.Load(strings.TrimSpace(*configPath))
	if err != nil {
		return err
	}
	q, closeQueue, err := openQueue(cfg)
	if err != nil {
		return err
	}
	if closeQueue != nil {
		defer func() {
			_ = closeQueue()
		}()
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	m := dashboardModel{q: q, backend: cfg.Queue.Backend, spin: sp}

	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err = p.Run()
	return err
}

func (m dashboardModel) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, m.fetchCounts())
}

func (m dashboardModel) fetchCounts() tea.Cmd {
	q := m.q
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		counts, err := q.Counts(ctx)
		return dashCountsMsg{counts: counts, err: err}
	}
}

func dashTick() tea.Cmd {
	return tea.Tick(dashRefreshInterval, func(time.Time) tea.Msg {
		return dashTickMsg{}
	})
}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}
	case dashCountsMsg:
		m.lastErr = msg.err
		if msg.err == nil {
			m.counts = msg.counts
			m.loaded = true
			m.refresh = time.Now()
		}
		return m, dashTick()
	case dashTickMsg:
		return m, m.fetchCounts()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m dashboardModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(dashTitleStyle.Render("yt-transcriber queue"))
	b.WriteString(dashMutedStyle.Render(fmt.Sprintf("  (%s backend)", m.backend)))
	b.WriteString("\n\n")

	if !m.loaded {
		b.WriteString(m.spin.View())
		b.WriteString(" loading queue counts...\n")
	} else {
		rows := []struct {
			label string
			value int
		}{
			{"waiting", m.counts.Waiting},
			{"active", m.counts.Active},
			{"completed", m.counts.Completed},
			{"failed", m.counts.Failed},
		}
		var panel strings.Builder
		for i, r := range rows {
			if i > 0 {
				panel.WriteString("\n")
			}
			panel.WriteString(fmt.Sprintf("%s %d", dashLabelStyle.Render(fmt.Sprintf("%-10s", r.label)), r.value))
		}
		b.WriteString(dashPanelStyle.Render(panel.String()))
		b.WriteString("\n")
		b.WriteString(dashMutedStyle.Render(fmt.Sprintf("refreshed %s", m.refresh.Format("15:04:05"))))
		b.WriteString("\n")
	}

	if m.lastErr != nil {
		b.WriteString(dashErrorStyle.Render("error: " + m.lastErr.Error()))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(dashMutedStyle.Render("q to quit"))
	b.WriteString("\n")
	return b.String()
}
