// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Tetrad Robotics

package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/tetrad-robotics/brainlink/pkg/device"
	"github.com/tetrad-robotics/brainlink/pkg/link"
)

var dashCmd = &cobra.Command{
	Use:   "dash",
	Short: "Live status dashboard",
	Long: `Poll the connected device once a second and render battery, radio,
and program state. Press q to exit.`,
	RunE: runDash,
}

func init() {
	rootCmd.AddCommand(dashCmd)
}

//////////////////////////////////////////////////////////////
// Styles
//////////////////////////////////////////////////////////////

var (
	dashTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("25")).
			Padding(0, 1)

	dashLabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Width(10)

	dashValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	dashErrStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	dashHelpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)

//////////////////////////////////////////////////////////////
// Model
//////////////////////////////////////////////////////////////

type dashFlagsMsg struct {
	flags *device.SystemFlags
	err   error
}

type dashTickMsg time.Time

type dashModel struct {
	conn *link.Connection
	info string

	name    string
	product device.ProductType
	version device.Version

	spin       spinner.Model
	flags      *device.SystemFlags
	pollErr    error
	lastUpdate time.Time
	quitting   bool
}

func newDashModel(conn *link.Connection, info string, name *device.DeviceName, version *device.SystemVersion) dashModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("69"))

	return dashModel{
		conn:    conn,
		info:    info,
		name:    name.Name,
		product: version.Product,
		version: version.Version,
		spin:    s,
	}
}

func dashPoll(conn *link.Connection) tea.Cmd {
	return func() tea.Msg {
		flags := &device.SystemFlags{}
		err := conn.Execute(context.Background(), flags, responseTimeout())
		if err != nil {
			return dashFlagsMsg{err: err}
		}
		return dashFlagsMsg{flags: flags}
	}
}

func dashTick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return dashTickMsg(t)
	})
}

func (m dashModel) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, dashPoll(m.conn), dashTick())
}

func (m dashModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		}

	case dashTickMsg:
		return m, tea.Batch(dashPoll(m.conn), dashTick())

	case dashFlagsMsg:
		m.pollErr = msg.err
		if msg.flags != nil {
			m.flags = msg.flags
			m.lastUpdate = time.Now()
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}
	return m, nil
}

func dashRow(label, value string) string {
	return dashLabelStyle.Render(label) + dashValueStyle.Render(value)
}

func dashMeter(percent int) string {
	filled := percent / 10
	if filled > 10 {
		filled = 10
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", 10-filled)
	return fmt.Sprintf("%s %3d%%", bar, percent)
}

func (m dashModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(dashTitleStyle.Render(fmt.Sprintf("Brainlink  %s", m.info)))
	b.WriteString("\n\n")

	b.WriteString(dashRow("Name", m.name) + "\n")
	b.WriteString(dashRow("Product", m.product.String()) + "\n")
	b.WriteString(dashRow("Firmware", m.version.String()) + "\n\n")

	switch {
	case m.pollErr != nil:
		b.WriteString(dashErrStyle.Render(fmt.Sprintf("poll failed: %v", m.pollErr)) + "\n")
	case m.flags == nil:
		b.WriteString(m.spin.View() + " waiting for first status...\n")
	default:
		b.WriteString(dashRow("Battery", dashMeter(m.flags.BatteryPercent())) + "\n")
		if m.product == device.ProductController {
			b.WriteString(dashRow("Radio", dashMeter(m.flags.RadioQuality())) + "\n")
		}
		program := "stopped"
		if m.flags.CurrentProgram != 0 {
			program = fmt.Sprintf("slot %d", m.flags.CurrentProgram)
		}
		b.WriteString(dashRow("Program", program) + "\n")
		b.WriteString(dashRow("Updated", m.lastUpdate.Format("15:04:05")) + "\n")
	}

	b.WriteString("\n" + dashHelpStyle.Render("q: quit"))
	return b.String()
}

func runDash(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	conn, info, err := openConnection(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	name := &device.DeviceName{}
	if err := conn.Execute(ctx, name, responseTimeout()); err != nil {
		return fmt.Errorf("device name: %w", err)
	}
	version := &device.SystemVersion{}
	if err := conn.Execute(ctx, version, responseTimeout()); err != nil {
		return fmt.Errorf("system version: %w", err)
	}

	program := tea.NewProgram(newDashModel(conn, info, name, version))
	_, err = program.Run()
	return err
}
