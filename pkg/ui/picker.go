package ui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/risksurface/surf/pkg/api"
)

// PickProjectMsg is sent when the user selects a project in the picker.
type PickProjectMsg struct {
	Project api.Project
}

// ProjectPickerModel is the project selection pane: a filterable table of
// the connected account's repositories with their analysis state.
type ProjectPickerModel struct {
	projects []api.Project
	analyzed func(string) bool // queries the coordinator's analyzed set
	filtered []int             // indices into projects
	cursor   int
	width    int
	height   int
	filter   textinput.Model
	theme    Theme
}

// NewProjectPicker creates a picker over projects.
func NewProjectPicker(projects []api.Project, analyzed func(string) bool, theme Theme) ProjectPickerModel {
	ti := textinput.New()
	ti.Placeholder = "type to filter..."
	ti.CharLimit = 60
	ti.Width = 34
	ti.Focus()

	m := ProjectPickerModel{
		projects: append([]api.Project(nil), projects...),
		analyzed: analyzed,
		filter:   ti,
		theme:    theme,
	}
	m.sortProjects()
	m.applyFilter()
	return m
}

// SetProjects replaces the listing (after a refresh) keeping the filter.
// The slice is copied: the picker sorts its own view of the projects and
// must not reorder the caller's.
func (m *ProjectPickerModel) SetProjects(projects []api.Project) {
	m.projects = append([]api.Project(nil), projects...)
	m.sortProjects()
	m.applyFilter()
}

// SetSize updates the picker dimensions.
func (m *ProjectPickerModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// Selected returns the project under the cursor, or nil.
func (m *ProjectPickerModel) Selected() *api.Project {
	if len(m.filtered) == 0 || m.cursor >= len(m.filtered) {
		return nil
	}
	p := m.projects[m.filtered[m.cursor]]
	return &p
}

// sortProjects orders analyzed projects first, then by recency of update.
func (m *ProjectPickerModel) sortProjects() {
	sort.SliceStable(m.projects, func(i, j int) bool {
		a, b := m.projects[i], m.projects[j]
		aReady := a.AnalysisState == api.StateReady || m.analyzed(a.FullName)
		bReady := b.AnalysisState == api.StateReady || m.analyzed(b.FullName)
		if aReady != bReady {
			return aReady
		}
		return a.UpdatedAt.After(b.UpdatedAt)
	})
}

// Update handles keyboard input for the picker.
func (m ProjectPickerModel) Update(msg tea.Msg) (ProjectPickerModel, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch key.String() {
	case "up", "ctrl+p":
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil
	case "down", "ctrl+n":
		if m.cursor < len(m.filtered)-1 {
			m.cursor++
		}
		return m, nil
	case "enter":
		if selected := m.Selected(); selected != nil {
			project := *selected
			return m, func() tea.Msg {
				return PickProjectMsg{Project: project}
			}
		}
		return m, nil
	default:
		var cmd tea.Cmd
		m.filter, cmd = m.filter.Update(msg)
		m.applyFilter()
		return m, cmd
	}
}

// applyFilter recomputes the visible indices from the filter input.
func (m *ProjectPickerModel) applyFilter() {
	query := strings.ToLower(strings.TrimSpace(m.filter.Value()))

	m.filtered = m.filtered[:0]
	for i, p := range m.projects {
		if query == "" || strings.Contains(strings.ToLower(p.FullName), query) {
			m.filtered = append(m.filtered, i)
		}
	}
	if m.cursor >= len(m.filtered) {
		m.cursor = max(0, len(m.filtered)-1)
	}
}

// stateLabel renders a project's analysis state with the right style.
func (m *ProjectPickerModel) stateLabel(p api.Project) string {
	t := m.theme
	switch {
	case p.AnalysisState == api.StateAnalyzing:
		return t.WarnText.Render("analyzing")
	case p.AnalysisState == api.StateReady || m.analyzed(p.FullName):
		return t.OKText.Render("ready")
	default:
		return t.MutedText.Render("unanalyzed")
	}
}

// View renders the picker pane.
func (m *ProjectPickerModel) View() string {
	t := m.theme
	w := m.width
	if w <= 0 {
		w = 80
	}

	var b strings.Builder
	b.WriteString(t.Header.Render("Select a project"))
	b.WriteString("\n")
	b.WriteString(t.MutedText.Render(" > "))
	b.WriteString(m.filter.View())
	b.WriteString("\n\n")

	if len(m.filtered) == 0 {
		b.WriteString(t.Skeleton.Render("  no projects match"))
		return b.String()
	}

	nameW := 20
	for _, idx := range m.filtered {
		if l := len(m.projects[idx].FullName); l > nameW {
			nameW = l
		}
	}
	if nameW > w-32 && w > 52 {
		nameW = w - 32
	}

	visible := len(m.filtered)
	maxRows := m.height - 4
	if maxRows > 0 && visible > maxRows {
		visible = maxRows
	}

	// Keep the cursor visible.
	start := 0
	if m.cursor >= visible {
		start = m.cursor - visible + 1
	}

	for i := start; i < start+visible && i < len(m.filtered); i++ {
		p := m.projects[m.filtered[i]]

		marker := "  "
		if i == m.cursor {
			marker = t.Header.Render("> ")
		}

		name := truncate(p.FullName, nameW)
		lang := truncate(p.Language, 10)
		row := fmt.Sprintf("%s%s  %s  %s ★%d",
			marker,
			padRight(name, nameW),
			padRight(lang, 10),
			m.stateLabel(p),
			p.Stars,
		)
		if p.Private {
			row += t.MutedText.Render(" (private)")
		}
		b.WriteString(row)
		b.WriteString("\n")
	}

	if hidden := len(m.filtered) - start - visible; hidden > 0 {
		b.WriteString(t.MutedText.Render(fmt.Sprintf("  ... +%d more", hidden)))
	}

	return b.String()
}
