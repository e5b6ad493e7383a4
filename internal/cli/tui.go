package cli

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/tbenr/protovis/pkg/graph"
	"github.com/tbenr/protovis/pkg/history"
	"github.com/tbenr/protovis/pkg/source"
)

var (
	styleTitle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	styleDim     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	styleHead    = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	styleWarning = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

// headRows caps the head-candidate table in the status view.
const headRows = 6

// snapshotMsg announces one successful capture to the status view.
type snapshotMsg history.Snapshot

// statusModel is the bubbletea model behind `watch --tui`: a live capture
// counter plus the head candidates of the latest snapshot.
type statusModel struct {
	endpoint string
	format   source.Format
	interval time.Duration

	captures int
	lastAt   time.Time
	lastErr  error
	heads    []graph.Node
	blocks   int
}

func newStatusModel(endpoint string, f source.Format, interval time.Duration) statusModel {
	return statusModel{endpoint: endpoint, format: f, interval: interval}
}

func (m statusModel) Init() tea.Cmd {
	return nil
}

func (m statusModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case snapshotMsg:
		m.captures++
		m.lastAt = history.Snapshot(msg).Time
		m.heads, m.blocks, m.lastErr = headCandidates(history.Snapshot(msg), m.format)
	}
	return m, nil
}

func (m statusModel) View() string {
	var b strings.Builder

	b.WriteString(styleTitle.Render("protovis watch"))
	b.WriteString("\n")
	b.WriteString(styleDim.Render(fmt.Sprintf("%s  every %s  q quit", m.endpoint, m.interval)))
	b.WriteString("\n\n")

	if m.captures == 0 {
		b.WriteString(styleDim.Render("waiting for first capture..."))
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString(fmt.Sprintf("captures: %d   blocks: %d   last: %s\n\n",
		m.captures, m.blocks, m.lastAt.Format("15:04:05")))

	if m.lastErr != nil {
		b.WriteString(styleWarning.Render(fmt.Sprintf("latest snapshot unusable: %v", m.lastErr)))
		b.WriteString("\n")
		return b.String()
	}

	rows := [][]string{}
	for i, h := range m.heads {
		if i >= headRows {
			break
		}
		rows = append(rows, []string{h.Label, fmt.Sprintf("%d", h.Level), h.CumulativeWeight, h.Status})
	}
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(styleDim).
		Headers("Head", "Slot", "Weight", "Status").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == 0 {
				return styleHead
			}
			return lipgloss.NewStyle()
		})
	b.WriteString(t.Render())
	b.WriteString("\n")

	return b.String()
}

// headCandidates rebuilds the latest snapshot's graph and returns its head
// candidates in canonical order, plus the block count.
func headCandidates(s history.Snapshot, f source.Format) ([]graph.Node, int, error) {
	g, err := assemble(s.Data, f, false)
	if err != nil {
		return nil, 0, err
	}

	byID := make(map[string]graph.Node, len(g.Nodes))
	for _, n := range g.Nodes {
		byID[n.ID] = n
	}
	heads := make([]graph.Node, 0, len(g.Heads))
	for _, id := range g.Heads {
		if n, ok := byID[id]; ok {
			heads = append(heads, n)
		}
	}
	return heads, len(g.Nodes), nil
}
