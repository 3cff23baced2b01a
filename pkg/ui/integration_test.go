package ui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/risksurface/surf/pkg/api"
	"github.com/risksurface/surf/pkg/config"
	"github.com/risksurface/surf/pkg/session"
	"github.com/risksurface/surf/pkg/state"
	"github.com/risksurface/surf/pkg/testutil"
)

// drive executes commands against the model until the queue drains,
// feeding every produced message back through Update. Tick-based commands
// (the mismatch retry) block until they fire, so tests keep backoffs short.
func drive(t *testing.T, m Model, cmds ...tea.Cmd) Model {
	t.Helper()
	queue := cmds
	for steps := 0; len(queue) > 0; steps++ {
		if steps > 200 {
			t.Fatal("command queue did not drain after 200 steps")
		}
		cmd := queue[0]
		queue = queue[1:]
		if cmd == nil {
			continue
		}
		msg := cmd()
		if msg == nil {
			continue
		}
		if batch, ok := msg.(tea.BatchMsg); ok {
			queue = append(queue, batch...)
			continue
		}
		next, nextCmd := m.Update(msg)
		m = next.(Model)
		queue = append(queue, nextCmd)
	}
	return m
}

func newIntegrationModel(t *testing.T, backend *testutil.Backend) Model {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.BaseURL = backend.URL()
	cfg.RetryBackoff = 10 * time.Millisecond
	m := NewModel(api.New(backend.URL()), cfg, "", session.Open(t.TempDir()), nil, nil)
	m.ready = true
	m.width, m.height = 100, 30
	return m
}

func TestSelectUnanalyzedProjectEndToEnd(t *testing.T) {
	backend := testutil.NewBackend(testutil.GenProjects(4))
	defer backend.Close()

	m := newIntegrationModel(t, backend)
	m = drive(t, m, m.Init())

	if !m.connKnown || !m.connStatus.IsConnected {
		t.Fatal("status fetch did not land")
	}
	if len(m.projects) != 4 {
		t.Fatalf("got %d projects, want 4", len(m.projects))
	}

	// repo-1 is unanalyzed: selecting it must trigger an analyze call and
	// end with the dashboard committed for it.
	next, cmd := m.Update(PickProjectMsg{Project: m.projects[1]})
	m = drive(t, next.(Model), cmd)

	if m.coord.Phase() != state.Ready || m.coord.Selected() != "fix/repo-1" {
		t.Fatalf("coord: phase=%v selected=%q", m.coord.Phase(), m.coord.Selected())
	}
	if backend.AnalyzeCalls() != 1 {
		t.Errorf("analyze calls = %d, want 1", backend.AnalyzeCalls())
	}
	view := m.views[api.TabDashboard]
	if view == nil || view.phase != viewReady {
		t.Fatalf("dashboard not committed: %+v", view)
	}
	want := testutil.GenDashboard("fix/repo-1")
	if got := view.payload.(*api.DashboardPayload); got.HealthScore != want.HealthScore {
		t.Errorf("health = %d, want %d", got.HealthScore, want.HealthScore)
	}
	if !m.coord.IsAnalyzed("fix/repo-1") {
		t.Error("repo-1 not marked analyzed after settle")
	}
	if m.session.Selected() != "fix/repo-1" {
		t.Errorf("session selected = %q", m.session.Selected())
	}
}

func TestSelectAnalyzedProjectSkipsAnalyze(t *testing.T) {
	backend := testutil.NewBackend(testutil.GenProjects(4))
	defer backend.Close()

	m := newIntegrationModel(t, backend)
	m = drive(t, m, m.Init())

	next, cmd := m.Update(PickProjectMsg{Project: m.projects[0]}) // repo-0 is ready
	m = drive(t, next.(Model), cmd)

	if backend.AnalyzeCalls() != 0 {
		t.Errorf("analyze calls = %d, want 0 for already-analyzed project", backend.AnalyzeCalls())
	}
	if backend.SelectCalls() != 1 {
		t.Errorf("select calls = %d, want 1", backend.SelectCalls())
	}
	if m.coord.Selected() != "fix/repo-0" {
		t.Errorf("selected = %q", m.coord.Selected())
	}
}

// The backend's selection pointer can lag right after a switch: the first
// analysis response echoes the previous project. The single retry must
// recover and commit the new project's data.
func TestEchoLagRecoversViaRetry(t *testing.T) {
	backend := testutil.NewBackend(testutil.GenProjects(4))
	defer backend.Close()

	m := newIntegrationModel(t, backend)
	m = drive(t, m, m.Init())

	next, cmd := m.Update(PickProjectMsg{Project: m.projects[0]})
	m = drive(t, next.(Model), cmd)

	backend.SetEchoLag(1)
	next, cmd = m.Update(PickProjectMsg{Project: m.projects[2]})
	m = drive(t, next.(Model), cmd)

	view := m.views[api.TabDashboard]
	if view == nil || view.phase != viewReady {
		t.Fatalf("dashboard not committed after retry: %+v", view)
	}
	if !view.retried {
		t.Error("expected the retry path to have been taken")
	}
	want := testutil.GenDashboard("fix/repo-2")
	if got := view.payload.(*api.DashboardPayload); got.HealthScore != want.HealthScore {
		t.Errorf("committed wrong project's data: health = %d, want %d", got.HealthScore, want.HealthScore)
	}
}

func TestRateLimitedTabShowsRetryHint(t *testing.T) {
	backend := testutil.NewBackend(testutil.GenProjects(4))
	defer backend.Close()

	m := newIntegrationModel(t, backend)
	m = drive(t, m, m.Init())

	next, cmd := m.Update(PickProjectMsg{Project: m.projects[0]})
	m = drive(t, next.(Model), cmd)

	backend.SetRateLimited(true)
	next, cmd = m.switchTab(1)
	m = drive(t, next.(Model), cmd)

	view := m.views[api.TabTopology]
	if view == nil || view.phase != viewFailed {
		t.Fatalf("topology view = %+v, want failed", view)
	}
	if view.errMsg != "rate limited, retry shortly" {
		t.Errorf("errMsg = %q", view.errMsg)
	}

	// Dashboard data from before the limit stays rendered.
	if m.views[api.TabDashboard].phase != viewReady {
		t.Error("previously loaded dashboard lost on rate limit")
	}

	// Recovery: limit lifts, refresh reloads the now-active tab.
	backend.SetRateLimited(false)
	next, cmd = m.refreshCurrent()
	m = drive(t, next.(Model), cmd)
	if m.views[api.TabTopology].phase != viewReady {
		t.Errorf("topology phase = %v after recovery, want viewReady", m.views[api.TabTopology].phase)
	}
}

func TestDependenciesViewRendersHierarchy(t *testing.T) {
	backend := testutil.NewBackend(testutil.GenProjects(2))
	defer backend.Close()

	m := newIntegrationModel(t, backend)
	m = drive(t, m, m.Init())

	next, cmd := m.Update(PickProjectMsg{Project: m.projects[0]})
	m = drive(t, next.(Model), cmd)

	m.activeTab = api.TabDependencies
	cmd = m.ensureTabFetched()
	m = drive(t, m, cmd)

	view := m.views[api.TabDependencies]
	if view == nil || view.phase != viewReady {
		t.Fatalf("dependencies view = %+v", view)
	}
	out := renderTab(m.theme, api.TabDependencies, view.payload, 100)
	for _, want := range []string{"cmd", "main.go", "go.mod"} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered tree missing %q:\n%s", want, out)
		}
	}
}
