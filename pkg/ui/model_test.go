package ui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/goccy/go-json"

	"github.com/risksurface/surf/pkg/api"
	"github.com/risksurface/surf/pkg/config"
	"github.com/risksurface/surf/pkg/session"
	"github.com/risksurface/surf/pkg/state"
)

// newTestModel builds a model whose commands are never executed, so the
// client can point at nothing.
func newTestModel(t *testing.T) Model {
	t.Helper()
	sess := session.Open(t.TempDir())
	m := NewModel(api.New("http://127.0.0.1:1"), config.DefaultConfig(), "", sess, nil, nil)
	m.ready = true
	m.width, m.height = 100, 30
	return m
}

func project(fullName string, analyzed bool) api.Project {
	st := api.StateUnanalyzed
	if analyzed {
		st = api.StateReady
	}
	return api.Project{FullName: fullName, AnalysisState: st}
}

func dashboardEnvelope(fullName string) api.Envelope {
	analysis, _ := json.Marshal(api.DashboardPayload{HealthScore: 72, FragilityScore: 0.3, ModuleCount: 12})
	return api.Envelope{
		Selected: true,
		Project:  api.Project{FullName: fullName},
		Analysis: analysis,
	}
}

func asModel(t *testing.T, tm tea.Model) Model {
	t.Helper()
	m, ok := tm.(Model)
	if !ok {
		t.Fatalf("Update returned %T, want Model", tm)
	}
	return m
}

func TestSelectProjectInvalidatesViews(t *testing.T) {
	m := newTestModel(t)
	m.views[api.TabDashboard] = &tabView{phase: viewReady, payload: &api.DashboardPayload{HealthScore: 99}}

	next, cmd := m.selectProject(project("acme/api", true))
	m = asModel(t, next)

	if cmd == nil {
		t.Fatal("expected a select command")
	}
	if len(m.views) != 0 {
		t.Errorf("expected views dropped on switch, %d remain", len(m.views))
	}
	if m.coord.Phase() != state.Switching {
		t.Errorf("phase = %v, want Switching", m.coord.Phase())
	}
	if m.coord.Analyzing() != "acme/api" {
		t.Errorf("analyzing = %q, want acme/api", m.coord.Analyzing())
	}
	if m.session.Selected() != "acme/api" {
		t.Errorf("session selected = %q, want acme/api", m.session.Selected())
	}
}

// Two rapid switches: the first settlement arrives late and must be dropped;
// the second commits. The UI must end on the second project with no trace of
// the first.
func TestDoubleSelectKeepsLatestProject(t *testing.T) {
	m := newTestModel(t)

	next, _ := m.selectProject(project("a/b", true))
	m = asModel(t, next)
	v1 := m.coord.Version()

	next, _ = m.selectProject(project("c/d", true))
	m = asModel(t, next)
	v2 := m.coord.Version()
	if v2 != v1+1 {
		t.Fatalf("version = %d, want %d", v2, v1+1)
	}

	// Stale settlement for a/b.
	next, _ = m.Update(selectSettledMsg{version: v1, project: "a/b", analyzed: true})
	m = asModel(t, next)
	if m.coord.Phase() != state.Switching {
		t.Fatalf("stale settlement changed phase to %v", m.coord.Phase())
	}

	// Current settlement for c/d.
	next, _ = m.Update(selectSettledMsg{version: v2, project: "c/d", analyzed: true})
	m = asModel(t, next)
	if m.coord.Phase() != state.Ready {
		t.Fatalf("phase = %v, want Ready", m.coord.Phase())
	}
	if m.coord.Selected() != "c/d" {
		t.Errorf("selected = %q, want c/d", m.coord.Selected())
	}

	// A stale a/b payload must not commit either.
	next, _ = m.Update(analysisMsg{tab: api.TabDashboard, version: v1, expected: "a/b", env: dashboardEnvelope("a/b")})
	m = asModel(t, next)
	if view := m.views[api.TabDashboard]; view != nil && view.phase == viewReady {
		if p := view.payload.(*api.DashboardPayload); p.HealthScore == 72 {
			t.Error("stale a/b payload committed after switch to c/d")
		}
	}
}

func TestAnalysisCommitRequiresIdentityEcho(t *testing.T) {
	m := newTestModel(t)
	next, _ := m.selectProject(project("acme/api", true))
	m = asModel(t, next)
	v := m.coord.Version()
	next, _ = m.Update(selectSettledMsg{version: v, project: "acme/api", analyzed: true})
	m = asModel(t, next)

	// Backend echoes the previously selected project: retry, don't commit.
	next, cmd := m.Update(analysisMsg{tab: api.TabDashboard, version: v, expected: "acme/api", env: dashboardEnvelope("old/project")})
	m = asModel(t, next)
	if cmd == nil {
		t.Fatal("expected a retry command on identity mismatch")
	}
	view := m.views[api.TabDashboard]
	if view == nil || !view.retried {
		t.Fatal("expected the retry flag set")
	}
	if view.phase == viewReady {
		t.Error("mismatched payload committed")
	}

	// Second mismatch: give up, render unavailable.
	next, _ = m.Update(analysisMsg{tab: api.TabDashboard, version: v, expected: "acme/api", env: dashboardEnvelope("old/project")})
	m = asModel(t, next)
	if m.views[api.TabDashboard].phase != viewFailed {
		t.Errorf("phase = %v after second mismatch, want viewFailed", m.views[api.TabDashboard].phase)
	}

	// Matching echo commits.
	m.views[api.TabDashboard] = &tabView{phase: viewLoading}
	next, _ = m.Update(analysisMsg{tab: api.TabDashboard, version: v, expected: "acme/api", env: dashboardEnvelope("acme/api")})
	m = asModel(t, next)
	view = m.views[api.TabDashboard]
	if view.phase != viewReady {
		t.Fatalf("phase = %v, want viewReady", view.phase)
	}
	if p, ok := view.payload.(*api.DashboardPayload); !ok || p.HealthScore != 72 {
		t.Errorf("payload = %#v, want decoded dashboard", view.payload)
	}
}

func TestAnalysisRateLimitedMessage(t *testing.T) {
	m := newTestModel(t)
	next, _ := m.selectProject(project("acme/api", true))
	m = asModel(t, next)
	v := m.coord.Version()
	next, _ = m.Update(selectSettledMsg{version: v, project: "acme/api", analyzed: true})
	m = asModel(t, next)

	next, _ = m.Update(analysisMsg{tab: api.TabDashboard, version: v, expected: "acme/api", err: api.ErrRateLimited})
	m = asModel(t, next)
	view := m.views[api.TabDashboard]
	if view.phase != viewFailed || view.errMsg != "rate limited, retry shortly" {
		t.Errorf("got phase %v message %q", view.phase, view.errMsg)
	}
}

func TestSettledWithErrorStaysOnProject(t *testing.T) {
	m := newTestModel(t)
	next, _ := m.selectProject(project("acme/api", false))
	m = asModel(t, next)
	v := m.coord.Version()

	next, _ = m.Update(selectSettledMsg{version: v, project: "acme/api", analyzed: false, err: api.ErrUnavailable})
	m = asModel(t, next)
	if m.coord.Phase() != state.Ready {
		t.Fatalf("phase = %v, want Ready even on analyze failure", m.coord.Phase())
	}
	if m.coord.Selected() != "acme/api" {
		t.Errorf("selected = %q, want acme/api", m.coord.Selected())
	}
	if m.statusText == "" || !m.statusIsErr {
		t.Error("expected an error status message")
	}
}

func TestStaleRetryDies(t *testing.T) {
	m := newTestModel(t)
	next, _ := m.selectProject(project("a/b", true))
	m = asModel(t, next)
	v1 := m.coord.Version()
	next, _ = m.selectProject(project("c/d", true))
	m = asModel(t, next)

	_, cmd := m.Update(analysisRetryMsg{tab: api.TabDashboard, version: v1})
	if cmd != nil {
		t.Error("stale retry produced a fetch command")
	}
}

func TestLogoutClearsEverything(t *testing.T) {
	m := newTestModel(t)
	next, _ := m.selectProject(project("acme/api", true))
	m = asModel(t, next)
	v := m.coord.Version()
	next, _ = m.Update(selectSettledMsg{version: v, project: "acme/api", analyzed: true})
	m = asModel(t, next)

	next, _ = m.logout(false)
	m = asModel(t, next)
	if m.coord.Phase() != state.Idle || m.coord.Selected() != "" {
		t.Errorf("coord after logout: phase=%v selected=%q", m.coord.Phase(), m.coord.Selected())
	}
	if m.session.Selected() != "" || len(m.session.Analyzed()) != 0 {
		t.Errorf("session after logout: selected=%q analyzed=%v", m.session.Selected(), m.session.Analyzed())
	}
	if !m.showPicker {
		t.Error("expected picker shown after logout")
	}
	if len(m.views) != 0 {
		t.Error("expected views dropped after logout")
	}
}

func TestLogoutResetsPickerAnalyzedLookup(t *testing.T) {
	m := newTestModel(t)
	next, _ := m.selectProject(project("acme/api", true))
	m = asModel(t, next)
	v := m.coord.Version()
	next, _ = m.Update(selectSettledMsg{version: v, project: "acme/api", analyzed: true})
	m = asModel(t, next)

	if !m.picker.analyzed("acme/api") {
		t.Fatal("picker does not see the analyzed project before logout")
	}

	next, _ = m.logout(false)
	m = asModel(t, next)
	if m.picker.analyzed("acme/api") {
		t.Error("picker still reports acme/api analyzed after logout")
	}

	// New analyses after the reset must be visible through the rebound lookup.
	m.coord.MarkAnalyzed("other/repo")
	if !m.picker.analyzed("other/repo") {
		t.Error("picker does not see analyses marked after logout")
	}
}

func TestRestoredSessionStartsReady(t *testing.T) {
	dir := t.TempDir()
	sess := session.Open(dir)
	if err := sess.SetSelected("acme/api"); err != nil {
		t.Fatalf("seed session: %v", err)
	}
	if err := sess.SetAnalyzed([]string{"acme/api"}); err != nil {
		t.Fatalf("seed analyzed: %v", err)
	}

	reopened := session.Open(dir)
	m := NewModel(api.New("http://127.0.0.1:1"), config.DefaultConfig(), "", reopened, nil, nil)
	if m.coord.Phase() != state.Ready || m.coord.Selected() != "acme/api" {
		t.Fatalf("restored coord: phase=%v selected=%q", m.coord.Phase(), m.coord.Selected())
	}
	if m.showPicker {
		t.Error("picker shown despite restored selection")
	}
	if cmd := m.Init(); cmd == nil {
		t.Error("expected initial commands")
	}
}

func TestTabSwitchFetchesLazily(t *testing.T) {
	m := newTestModel(t)
	next, _ := m.selectProject(project("acme/api", true))
	m = asModel(t, next)
	v := m.coord.Version()
	next, _ = m.Update(selectSettledMsg{version: v, project: "acme/api", analyzed: true})
	m = asModel(t, next)

	next, cmd := m.switchTab(1)
	m = asModel(t, next)
	if m.activeTab != api.TabTopology {
		t.Fatalf("active tab = %v, want topology", m.activeTab)
	}
	if cmd == nil {
		t.Error("expected a fetch for the unvisited tab")
	}
	if m.views[api.TabTopology].phase != viewLoading {
		t.Errorf("topology phase = %v, want viewLoading", m.views[api.TabTopology].phase)
	}

	// Returning to an already-loaded tab must not refetch.
	m.views[api.TabDashboard] = &tabView{phase: viewReady, payload: &api.DashboardPayload{}}
	next, cmd = m.switchTab(-1)
	m = asModel(t, next)
	if m.activeTab != api.TabDashboard {
		t.Fatalf("active tab = %v, want dashboard", m.activeTab)
	}
	if cmd != nil {
		t.Error("unexpected refetch for loaded tab")
	}
}

func TestFavoriteSelectsKnownProject(t *testing.T) {
	m := newTestModel(t)
	m.cfg.SetFavorite(1, "acme/api")
	next, _ := m.Update(projectsMsg{projects: []api.Project{project("acme/api", true), project("other/repo", false)}})
	m = asModel(t, next)
	m.showPicker = false

	next, cmd := m.handleKey(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'1'}})
	m = asModel(t, next)
	if cmd == nil {
		t.Fatal("expected select command for favorite")
	}
	if m.coord.Analyzing() != "acme/api" {
		t.Errorf("analyzing = %q, want acme/api", m.coord.Analyzing())
	}

	// Unknown favorite slot is a quiet no-op.
	next, cmd = m.handleKey(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'9'}})
	_ = next
	if cmd != nil {
		t.Error("unbound favorite produced a command")
	}
}

func TestProjectsErrorSurfacesInPicker(t *testing.T) {
	m := newTestModel(t)
	next, _ := m.Update(projectsMsg{err: api.ErrRateLimited})
	m = asModel(t, next)
	if m.projectsErr != "rate limited, retry shortly" {
		t.Errorf("projectsErr = %q", m.projectsErr)
	}

	next, _ = m.Update(projectsMsg{projects: []api.Project{project("acme/api", true)}})
	m = asModel(t, next)
	if m.projectsErr != "" {
		t.Errorf("projectsErr not cleared: %q", m.projectsErr)
	}
	if !m.coord.IsAnalyzed("acme/api") {
		t.Error("ready project not marked analyzed")
	}
}
