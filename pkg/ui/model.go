// Package ui implements the surf terminal dashboard: a project picker, the
// analytic tab views, the AI Analyst overlay, and the switch/version
// discipline that keeps every view on the currently selected project.
package ui

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/risksurface/surf/pkg/api"
	"github.com/risksurface/surf/pkg/config"
	"github.com/risksurface/surf/pkg/debug"
	"github.com/risksurface/surf/pkg/metrics"
	"github.com/risksurface/surf/pkg/poll"
	"github.com/risksurface/surf/pkg/session"
	"github.com/risksurface/surf/pkg/state"
	"github.com/risksurface/surf/pkg/watcher"
)

// ReadyTimeoutMsg ensures the UI leaves "Initializing" even if the terminal
// is slow to report its size (common in tmux and over SSH).
type ReadyTimeoutMsg struct{}

// ReadyTimeoutCmd returns a command that sends ReadyTimeoutMsg after 100ms.
func ReadyTimeoutCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(time.Time) tea.Msg {
		return ReadyTimeoutMsg{}
	})
}

// Model is the main Bubble Tea model for surf.
type Model struct {
	// Collaborators
	client      *api.Client
	session     *session.Store
	predictions *poll.Cache
	cfgWatcher  *watcher.Watcher
	cfg         config.Config
	cfgPath     string

	// Selection state machine; views key everything on coord.Version().
	coord state.Coordinator

	// Data
	connStatus   api.ConnectionStatus
	connKnown    bool
	projects     []api.Project
	projectsErr  string
	views        map[api.Tab]*tabView

	// UI components
	picker      ProjectPickerModel
	narrativeVP viewport.Model
	renderer    *MarkdownRenderer
	theme       Theme

	// View state
	activeTab     api.Tab
	showPicker    bool
	showNarrative bool
	showHelp      bool
	ready         bool
	width, height int

	// Status bar (transient feedback)
	statusText  string
	statusIsErr bool
	statusID    int
}

// NewModel assembles the root model. predictions and cfgWatcher may be nil
// (disabled polling / no hot-reload), mainly for tests.
func NewModel(client *api.Client, cfg config.Config, cfgPath string, sess *session.Store, predictions *poll.Cache, cfgWatcher *watcher.Watcher) Model {
	theme := DefaultTheme(lipgloss.NewRenderer(os.Stdout))

	coord := state.Restore(sess.Selected(), sess.Analyzed())

	activeTab := api.Tab(cfg.UI.DefaultTab)
	if !activeTab.Valid() {
		activeTab = api.TabDashboard
	}

	m := Model{
		client:       client,
		session:      sess,
		predictions:  predictions,
		cfgWatcher:   cfgWatcher,
		cfg:          cfg,
		cfgPath:      cfgPath,
		coord:        coord,
		views:        make(map[api.Tab]*tabView),
		renderer:     NewMarkdownRenderer(76),
		theme:        theme,
		activeTab:    activeTab,
		showPicker:   coord.Selected() == "",
	}
	m.picker = NewProjectPicker(nil, coord.IsAnalyzed, theme)
	return m
}

// Init starts the initial fetches, the predictions poll, and the config
// watcher wait.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		fetchStatusCmd(m.client),
		fetchProjectsCmd(m.client),
		ReadyTimeoutCmd(),
	}
	if m.predictions != nil {
		cmds = append(cmds, pollPredictionsCmd(&m))
	}
	if m.cfgWatcher != nil {
		cmds = append(cmds, watchConfigCmd(m.cfgWatcher, m.cfgPath))
	}
	// A restored selection is already Ready; fetch its active tab.
	if m.coord.IsReady() && m.coord.Selected() != "" {
		cmds = append(cmds, fetchAnalysisCmd(m.client, m.activeTab, m.coord.Selected(), m.coord.Version()))
		if view, ok := m.views[m.activeTab]; !ok || view.phase == viewIdle {
			m.views[m.activeTab] = &tabView{phase: viewLoading}
		}
	}
	return tea.Batch(cmds...)
}

// Update is the single-threaded event loop: every async result passes the
// version and identity guards here before touching state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.picker.SetSize(msg.Width, msg.Height-6)
		m.narrativeVP = viewport.New(msg.Width-4, max(6, msg.Height-8))
		if msg.Width > 24 {
			m.renderer = NewMarkdownRenderer(msg.Width - 8)
		}
		return m, nil

	case ReadyTimeoutMsg:
		if !m.ready {
			m.ready = true
			if m.width == 0 {
				m.width, m.height = 80, 24
				m.picker.SetSize(80, 18)
				m.narrativeVP = viewport.New(76, 16)
			}
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case connStatusMsg:
		if msg.err == nil {
			m.connStatus = msg.status
			m.connKnown = true
		}
		return m, nil

	case projectsMsg:
		return m.handleProjects(msg)

	case PickProjectMsg:
		return m.selectProject(msg.Project)

	case selectSettledMsg:
		return m.handleSelectSettled(msg)

	case analysisMsg:
		return m.handleAnalysis(msg)

	case analysisRetryMsg:
		if !m.coord.Current(msg.version) || !m.coord.IsReady() {
			return m, nil // switch moved on; the retry dies here
		}
		return m, fetchAnalysisCmd(m.client, msg.tab, m.coord.Selected(), msg.version)

	case interpretationMsg:
		return m.handleInterpretation(msg)

	case predictionsTickMsg:
		if m.predictions == nil {
			return m, nil
		}
		return m, pollPredictionsCmd(&m)

	case predictionsUpdatedMsg:
		if m.predictions == nil {
			return m, nil
		}
		return m, predictionsTickCmd(m.cfg.PollInterval)

	case exportDoneMsg:
		if msg.err != nil {
			return m.setStatus(fmt.Sprintf("export failed: %v", msg.err), true)
		}
		return m.setStatus("exported to "+msg.path, false)

	case disconnectDoneMsg:
		if msg.err != nil {
			debug.Log("ui: disconnect: %v", msg.err)
		}
		return m, nil

	case configChangedMsg:
		return m.handleConfigChanged(msg)

	case clearStatusMsg:
		if msg.id == m.statusID {
			m.statusText = ""
		}
		return m, nil
	}

	return m, nil
}

// handleKey routes keyboard input.
func (m Model) handleKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	// The picker owns most keys while visible (it hosts a text input).
	if m.showPicker {
		switch key.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "esc":
			if m.coord.Selected() != "" {
				m.showPicker = false
				return m, nil
			}
			return m, tea.Quit
		}
		var cmd tea.Cmd
		m.picker, cmd = m.picker.Update(key)
		return m, cmd
	}

	if m.showNarrative {
		switch key.String() {
		case "esc", "a", "q":
			m.showNarrative = false
			return m, nil
		case "y":
			return m.copyNarrative()
		}
		var cmd tea.Cmd
		m.narrativeVP, cmd = m.narrativeVP.Update(key)
		return m, cmd
	}

	if m.showHelp {
		m.showHelp = false
		return m, nil
	}

	switch key.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "?":
		m.showHelp = true
		return m, nil
	case "p":
		m.showPicker = true
		m.picker.SetProjects(m.projects)
		return m, nil
	case "tab", "right", "l":
		return m.switchTab(1)
	case "shift+tab", "left", "h":
		return m.switchTab(-1)
	case "1", "2", "3", "4", "5", "6", "7", "8", "9":
		return m.selectFavorite(int(key.String()[0] - '0'))
	case "a":
		return m.openNarrative()
	case "r":
		return m.refreshCurrent()
	case "e":
		return m.exportCurrent(api.ExportJSON)
	case "E":
		return m.exportCurrent(api.ExportPDF)
	case "L":
		return m.logout(false)
	case "D":
		return m.logout(true)
	}
	return m, nil
}

// handleProjects commits the fetched listing and syncs the analyzed set.
func (m Model) handleProjects(msg projectsMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.projectsErr = "project list unavailable, retry with r"
		if errors.Is(msg.err, api.ErrRateLimited) {
			m.projectsErr = "rate limited, retry shortly"
		}
		return m, nil
	}
	m.projectsErr = ""
	m.projects = msg.projects
	for _, p := range msg.projects {
		if p.AnalysisState == api.StateReady {
			m.coord.MarkAnalyzed(p.FullName)
		}
	}
	m.picker.SetProjects(msg.projects)
	return m, nil
}

// selectProject runs the synchronous half of a switch: invalidate, bump the
// version, drop every view, then start the backend call.
func (m Model) selectProject(project api.Project) (tea.Model, tea.Cmd) {
	version := m.coord.SelectProject(project.FullName)

	// Remount-by-version: all view state belongs to the old project.
	m.views = make(map[api.Tab]*tabView)
	m.showPicker = false
	m.showNarrative = false

	if err := m.session.SetSelected(project.FullName); err != nil {
		debug.Log("ui: persisting selection: %v", err)
	}

	analyzed := project.AnalysisState == api.StateReady || m.coord.IsAnalyzed(project.FullName)
	debug.Log("ui: switch to %s v%d (analyzed=%v)", project.FullName, version, analyzed)
	return m, selectProjectCmd(m.client, project, version, analyzed)
}

// handleSelectSettled finishes a switch. Failures are soft: the project
// stays selected with an "analysis missing" affordance instead of blocking.
func (m Model) handleSelectSettled(msg selectSettledMsg) (tea.Model, tea.Cmd) {
	if !m.coord.Current(msg.version) {
		debug.Log("ui: dropping stale settlement v%d (now v%d)", msg.version, m.coord.Version())
		return m, nil
	}

	m.coord.SelectionSettled(msg.version, msg.analyzed)
	if err := m.session.SetAnalyzed(m.coord.AnalyzedProjects()); err != nil {
		debug.Log("ui: persisting analyzed set: %v", err)
	}

	var cmds []tea.Cmd
	if msg.err != nil {
		// Logged and swallowed: which project is shown is enforced
		// strictly, whether its analysis succeeded is best-effort.
		debug.Log("ui: select/analyze %s: %v", msg.project, msg.err)
		next, cmd := m.setStatus("analysis missing for "+msg.project, true)
		m = next.(Model)
		cmds = append(cmds, cmd)
	}

	m.views[m.activeTab] = &tabView{phase: viewLoading}
	cmds = append(cmds, fetchAnalysisCmd(m.client, m.activeTab, m.coord.Selected(), m.coord.Version()))
	return m, tea.Batch(cmds...)
}

// handleAnalysis applies the two commit guards (version stamp, project
// identity echo) before committing a tab payload.
func (m Model) handleAnalysis(msg analysisMsg) (tea.Model, tea.Cmd) {
	if !m.coord.Current(msg.version) {
		debug.Log("ui: dropping stale %s payload v%d", msg.tab, msg.version)
		return m, nil
	}

	view := m.views[msg.tab]
	if view == nil {
		view = &tabView{}
		m.views[msg.tab] = view
	}

	if msg.err != nil {
		view.phase = viewFailed
		view.errMsg = "unavailable, press r to retry"
		if errors.Is(msg.err, api.ErrRateLimited) {
			view.errMsg = "rate limited, retry shortly"
		}
		return m, nil
	}

	if msg.env.Project.FullName != msg.expected {
		// Backend race: its selection pointer hasn't settled. Retry once
		// after the backoff; a second mismatch renders as unavailable.
		if !view.retried {
			view.retried = true
			debug.Log("ui: %s echoed %q, expected %q; retrying", msg.tab, msg.env.Project.FullName, msg.expected)
			return m, retryAnalysisCmd(msg.tab, msg.version, m.cfg.RetryBackoff)
		}
		view.phase = viewFailed
		view.errMsg = "unavailable, press r to retry"
		return m, nil
	}

	payload, err := decodePayload(msg.tab, msg.env.Analysis)
	if err != nil {
		view.phase = viewFailed
		view.errMsg = "unavailable, press r to retry"
		debug.Log("ui: decoding %s payload: %v", msg.tab, err)
		return m, nil
	}

	view.phase = viewReady
	view.payload = payload
	view.errMsg = ""
	return m, nil
}

// switchTab cycles the active tab and lazily fetches its slice.
func (m Model) switchTab(delta int) (tea.Model, tea.Cmd) {
	idx := 0
	for i, tab := range api.Tabs {
		if tab == m.activeTab {
			idx = i
			break
		}
	}
	idx = (idx + delta + len(api.Tabs)) % len(api.Tabs)
	m.activeTab = api.Tabs[idx]
	m.showNarrative = false
	return m, m.ensureTabFetched()
}

// ensureTabFetched issues the active tab's fetch if it has no data yet.
func (m *Model) ensureTabFetched() tea.Cmd {
	if !m.coord.IsReady() || m.coord.Selected() == "" {
		return nil
	}
	if view, ok := m.views[m.activeTab]; ok && view.phase != viewIdle {
		return nil
	}
	m.views[m.activeTab] = &tabView{phase: viewLoading}
	return fetchAnalysisCmd(m.client, m.activeTab, m.coord.Selected(), m.coord.Version())
}

// selectFavorite switches to the project bound to a number key.
func (m Model) selectFavorite(n int) (tea.Model, tea.Cmd) {
	fullName := m.cfg.FavoriteProject(n)
	if fullName == "" {
		return m, nil
	}
	for _, p := range m.projects {
		if p.FullName == fullName {
			return m.selectProject(p)
		}
	}
	return m.setStatus(fmt.Sprintf("favorite %d (%s) not in project list", n, fullName), true)
}

// openNarrative shows the AI Analyst overlay for the active tab, asking the
// backend proxy when a provider is configured and falling back locally.
func (m Model) openNarrative() (tea.Model, tea.Cmd) {
	view, ok := m.views[m.activeTab]
	if !ok || view.phase != viewReady {
		return m.setStatus("no data to interpret yet", true)
	}

	m.showNarrative = true
	if view.narrative != "" {
		m.narrativeVP.SetContent(m.renderer.Render(view.narrative))
		return m, nil
	}

	fallback := localNarrative(m.activeTab, view.payload)
	provider := m.session.Provider()
	if provider == "" {
		provider = m.cfg.AI.Provider
	}
	if provider == "" {
		view.narrative = fallback
		m.narrativeVP.SetContent(m.renderer.Render(fallback))
		return m, nil
	}

	m.narrativeVP.SetContent(m.theme.Skeleton.Render("consulting AI Analyst..."))
	return m, fetchInterpretationCmd(m.client, m.activeTab, m.coord.Selected(), provider, fallback, m.coord.Version())
}

// handleInterpretation commits a narrative, still subject to the version guard.
func (m Model) handleInterpretation(msg interpretationMsg) (tea.Model, tea.Cmd) {
	if !m.coord.Current(msg.version) {
		return m, nil
	}
	view, ok := m.views[msg.tab]
	if !ok {
		return m, nil
	}
	view.narrative = msg.text
	view.narrativeAI = msg.fromAI
	view.narrativeWarn = msg.warning
	if m.showNarrative && msg.tab == m.activeTab {
		m.narrativeVP.SetContent(m.renderer.Render(msg.text))
	}
	return m, nil
}

// copyNarrative puts the visible narrative on the system clipboard.
func (m Model) copyNarrative() (tea.Model, tea.Cmd) {
	view, ok := m.views[m.activeTab]
	if !ok || view.narrative == "" {
		return m, nil
	}
	if err := clipboard.WriteAll(view.narrative); err != nil {
		return m.setStatus("clipboard unavailable", true)
	}
	return m.setStatus("narrative copied", false)
}

// refreshCurrent refetches the active tab, the project list, and forces an
// unconditional predictions fetch.
func (m Model) refreshCurrent() (tea.Model, tea.Cmd) {
	cmds := []tea.Cmd{fetchProjectsCmd(m.client)}
	if m.coord.IsReady() && m.coord.Selected() != "" {
		m.views[m.activeTab] = &tabView{phase: viewLoading}
		cmds = append(cmds, fetchAnalysisCmd(m.client, m.activeTab, m.coord.Selected(), m.coord.Version()))
	}
	if m.predictions != nil {
		cmds = append(cmds, refetchPredictionsCmd(&m))
	}
	return m, tea.Batch(cmds...)
}

// exportCurrent downloads the active tab's report into the working directory.
func (m Model) exportCurrent(format api.ExportFormat) (tea.Model, tea.Cmd) {
	if !m.coord.IsReady() || m.coord.Selected() == "" {
		return m.setStatus("select a project first", true)
	}
	next, cmd := m.setStatus(fmt.Sprintf("exporting %s...", format), false)
	m = next.(Model)
	dir, err := os.Getwd()
	if err != nil {
		dir = "."
	}
	return m, tea.Batch(cmd, exportCmd(m.client, m.activeTab, m.coord.Selected(), format, dir))
}

// logout resets every piece of client state and returns to the picker.
// When disconnect is true the backend connection is torn down too.
func (m Model) logout(disconnect bool) (tea.Model, tea.Cmd) {
	m.coord.Reset()
	// Reset swaps the coordinator's analyzed map; the picker's bound lookup
	// would keep reading the old one.
	m.picker.analyzed = m.coord.IsAnalyzed
	m.views = make(map[api.Tab]*tabView)
	m.showPicker = true
	m.showNarrative = false
	if err := m.session.Clear(); err != nil {
		debug.Log("ui: clearing session: %v", err)
	}

	cmds := []tea.Cmd{fetchProjectsCmd(m.client)}
	if disconnect {
		m.projects = nil
		m.connKnown = false
		m.picker.SetProjects(nil)
		cmds = []tea.Cmd{disconnectCmd(m.client), fetchStatusCmd(m.client)}
	}
	m.picker.SetProjects(m.projects)
	return m, tea.Batch(cmds...)
}

// handleConfigChanged applies a hot-reloaded config and keeps watching.
func (m Model) handleConfigChanged(msg configChangedMsg) (tea.Model, tea.Cmd) {
	oldBase := m.cfg.BaseURL
	m.cfg = msg.cfg
	var cmds []tea.Cmd
	if msg.cfg.BaseURL != oldBase {
		m.client = api.New(msg.cfg.BaseURL)
		next, cmd := m.setStatus("backend changed to "+msg.cfg.BaseURL, false)
		m = next.(Model)
		cmds = append(cmds, cmd, fetchStatusCmd(m.client), fetchProjectsCmd(m.client))
	}
	cmds = append(cmds, watchConfigCmd(m.cfgWatcher, m.cfgPath))
	return m, tea.Batch(cmds...)
}

// setStatus shows a transient status-bar message.
func (m Model) setStatus(text string, isErr bool) (tea.Model, tea.Cmd) {
	m.statusText = text
	m.statusIsErr = isErr
	m.statusID++
	return m, expireStatusCmd(m.statusID)
}

// --- View ---

// View renders the whole shell.
func (m Model) View() string {
	defer metrics.Timer(metrics.UIRender)()
	if !m.ready {
		return "Initializing..."
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")

	switch {
	case m.showHelp:
		b.WriteString(m.renderHelp())
	case m.showPicker:
		if m.projectsErr != "" {
			b.WriteString(m.theme.ErrorText.Render(m.projectsErr))
			b.WriteString("\n\n")
		}
		b.WriteString(m.picker.View())
	case m.showNarrative:
		b.WriteString(m.renderNarrative())
	default:
		b.WriteString(m.renderTabBar())
		b.WriteString("\n\n")
		b.WriteString(m.renderBody())
	}

	b.WriteString("\n")
	b.WriteString(m.renderFooter())
	return b.String()
}

func (m Model) renderHeader() string {
	t := m.theme

	conn := t.MutedText.Render("connecting...")
	if m.connKnown {
		if m.connStatus.IsConnected {
			who := m.connStatus.Username
			if m.connStatus.Organization != "" {
				who += "/" + m.connStatus.Organization
			}
			conn = t.OKText.Render(fmt.Sprintf("%s (%d repos)", who, m.connStatus.RepoCount))
		} else {
			conn = t.ErrorText.Render("not connected")
		}
	}

	project := t.MutedText.Render("no project")
	switch m.coord.Phase() {
	case state.Switching:
		project = t.WarnText.Render("analyzing " + m.coord.Analyzing() + "...")
	case state.Ready:
		project = t.Header.Render(m.coord.Selected())
	}

	left := t.Header.Render("RiskSurface") + "  " + project
	right := conn
	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + right
}

func (m Model) renderTabBar() string {
	t := m.theme
	parts := make([]string, 0, len(api.Tabs))
	for _, tab := range api.Tabs {
		label := string(tab)
		if tab == m.activeTab {
			parts = append(parts, t.TabActive.Render(label))
		} else {
			parts = append(parts, t.TabIdle.Render(label))
		}
	}
	return strings.Join(parts, t.MutedText.Render(" | "))
}

func (m Model) renderBody() string {
	t := m.theme

	if m.coord.Selected() == "" {
		return t.Skeleton.Render("press p to pick a project")
	}
	if m.coord.Phase() == state.Switching {
		return t.Skeleton.Render(fmt.Sprintf("analyzing %s, views will refresh when ready...", m.coord.Analyzing()))
	}

	view, ok := m.views[m.activeTab]
	if !ok || view.phase == viewIdle || view.phase == viewLoading {
		return t.Skeleton.Render("loading " + string(m.activeTab) + "...")
	}
	if view.phase == viewFailed {
		return renderUnavailable(t, view.errMsg)
	}
	return renderTab(t, m.activeTab, view.payload, m.width)
}

func (m Model) renderNarrative() string {
	t := m.theme
	title := "AI Analyst"
	if view, ok := m.views[m.activeTab]; ok {
		if !view.narrativeAI && view.narrative != "" {
			title = "Local interpretation"
		}
		if view.narrativeWarn != "" {
			title += "  " + t.WarnText.Render(view.narrativeWarn)
		}
	}
	return t.Header.Render(title) + "\n" + m.narrativeVP.View()
}

func (m Model) renderHelp() string {
	t := m.theme
	rows := []struct{ key, desc string }{
		{"p", "project picker"},
		{"tab / shift+tab", "next / previous view"},
		{"1-9", "favorite projects"},
		{"a", "AI Analyst narrative"},
		{"y", "copy narrative (in overlay)"},
		{"r", "refresh current view"},
		{"e / E", "export json / pdf"},
		{"L", "logout (clear session)"},
		{"D", "disconnect GitHub"},
		{"q", "quit"},
	}
	var b strings.Builder
	b.WriteString(t.Header.Render("Keys"))
	b.WriteString("\n")
	for _, row := range rows {
		fmt.Fprintf(&b, "  %s %s\n", padRight(t.OKText.Render(row.key), 24), row.desc)
	}
	return b.String()
}

func (m Model) renderFooter() string {
	t := m.theme

	status := t.MutedText.Render("? help")
	if m.statusText != "" {
		if m.statusIsErr {
			status = t.ErrorText.Render(m.statusText)
		} else {
			status = t.OKText.Render(m.statusText)
		}
	}

	preds := ""
	if m.predictions != nil {
		snap := m.predictions.Snapshot()
		switch {
		case snap.ErrMessage != "":
			preds = t.WarnText.Render("predictions: " + snap.ErrMessage)
		case snap.Loading:
			preds = t.MutedText.Render("predictions: refreshing...")
		case len(snap.Data) > 0:
			preds = t.MutedText.Render("predictions: updated " + FormatTimeRel(snap.LastUpdated))
		}
	}

	gap := m.width - lipgloss.Width(status) - lipgloss.Width(preds)
	if gap < 1 {
		gap = 1
	}
	return status + strings.Repeat(" ", gap) + preds
}
