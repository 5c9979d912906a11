package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/jobflow-ai/activation-core/internal/app"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Live bot-status dashboard",
	RunE:  runWatch,
}

const watchRefresh = 2 * time.Second

var headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))

type watchModel struct {
	a     *app.App
	table table.Model
}

type tickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(watchRefresh, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func newWatchTable() table.Model {
	cols := []table.Column{
		{Title: "NAME", Width: 24},
		{Title: "STATUS", Width: 12},
		{Title: "ENABLED", Width: 9},
		{Title: "RUNS TODAY", Width: 10},
		{Title: "LAST RUN", Width: 20},
	}
	t := table.New(table.WithColumns(cols), table.WithFocused(false), table.WithHeight(20))
	style := table.DefaultStyles()
	style.Header = style.Header.Bold(true).Foreground(lipgloss.Color("86"))
	style.Selected = style.Selected.Foreground(lipgloss.Color("255"))
	t.SetStyles(style)
	return t
}

func (m watchModel) Init() tea.Cmd {
	return tickCmd()
}

func (m *watchModel) refreshRows() {
	var rows []table.Row
	for _, b := range m.a.Manager.All() {
		lastRun := "-"
		if !b.LastRunAt.IsZero() {
			lastRun = b.LastRunAt.Format(time.RFC3339)
		}
		rows = append(rows, table.Row{b.Name, string(b.Status), fmt.Sprintf("%v", b.Enabled), fmt.Sprintf("%d", b.RunsToday), lastRun})
	}
	m.table.SetRows(rows)
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case tickMsg:
		m.refreshRows()
		return m, tickCmd()
	}
	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m watchModel) View() string {
	return headerStyle.Render("activation-core — bot status") + "\n\n" + m.table.View() + "\n\nq to quit\n"
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Shutdown(ctx)

	go a.Run(ctx)

	m := watchModel{a: a, table: newWatchTable()}
	m.refreshRows()

	p := tea.NewProgram(m)
	_, err = p.Run()
	return err
}
