package testutil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/risksurface/surf/pkg/api"
)

// Backend is an in-process fake of the RiskSurface backend for integration
// tests. It serves the project listing, the select/analyze flow, every
// analysis tab, and the conditional-GET predictions endpoint.
//
// The selection pointer behaves like the real backend's: analysis responses
// echo whatever is selected at response time. SetEchoLag makes the first n
// analysis responses after a selection echo the previously selected project,
// reproducing the settle race the client must survive.
type Backend struct {
	srv *httptest.Server

	mu           sync.Mutex
	projects     []api.Project
	selected     string
	prevSelected string
	echoLag      int
	rateLimited  bool
	lastModified time.Time

	selectCalls  int
	analyzeCalls int
}

// NewBackend starts a fake backend serving the given projects.
func NewBackend(projects []api.Project) *Backend {
	b := &Backend{
		projects:     projects,
		lastModified: time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/github/status", b.handleStatus)
	mux.HandleFunc("/api/projects", b.handleProjects)
	mux.HandleFunc("/api/github/disconnect", b.handleDisconnect)
	mux.HandleFunc("/api/projects/selected", b.handleSelect)
	mux.HandleFunc("/api/projects/", b.handleAnalyze)
	mux.HandleFunc("/api/analysis/predictions", b.handlePredictions)
	mux.HandleFunc("/api/analysis/", b.handleAnalysis)
	b.srv = httptest.NewServer(mux)
	return b
}

// URL returns the backend's base URL.
func (b *Backend) URL() string { return b.srv.URL }

// Close shuts the server down.
func (b *Backend) Close() { b.srv.Close() }

// SetEchoLag makes the next n analysis responses echo the previously
// selected project instead of the current one.
func (b *Backend) SetEchoLag(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.echoLag = n
}

// SetRateLimited makes every endpoint answer 429 until turned off.
func (b *Backend) SetRateLimited(limited bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rateLimited = limited
}

// Selected returns the backend's current selection pointer.
func (b *Backend) Selected() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.selected
}

// SelectCalls returns how many select requests were served.
func (b *Backend) SelectCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.selectCalls
}

// AnalyzeCalls returns how many analyze requests were served.
func (b *Backend) AnalyzeCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.analyzeCalls
}

// Touch advances the predictions Last-Modified stamp so the next
// conditional GET returns a fresh body.
func (b *Backend) Touch() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastModified = b.lastModified.Add(time.Minute)
}

func (b *Backend) limited(w http.ResponseWriter) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.rateLimited {
		w.WriteHeader(http.StatusTooManyRequests)
		return true
	}
	return false
}

func (b *Backend) handleStatus(w http.ResponseWriter, _ *http.Request) {
	if b.limited(w) {
		return
	}
	b.mu.Lock()
	count := len(b.projects)
	b.mu.Unlock()
	writeJSON(w, api.ConnectionStatus{IsConnected: true, Username: "fixture", RepoCount: count})
}

func (b *Backend) handleProjects(w http.ResponseWriter, _ *http.Request) {
	if b.limited(w) {
		return
	}
	b.mu.Lock()
	projects := b.projects
	b.mu.Unlock()
	writeJSON(w, projects)
}

func (b *Backend) handleDisconnect(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	b.selected = ""
	b.prevSelected = ""
	b.mu.Unlock()
	writeJSON(w, map[string]bool{"success": true})
}

func (b *Backend) handleSelect(w http.ResponseWriter, r *http.Request) {
	if b.limited(w) {
		return
	}
	var body struct {
		FullName string `json:"fullName"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	b.mu.Lock()
	b.prevSelected = b.selected
	b.selected = body.FullName
	b.selectCalls++
	b.mu.Unlock()
	writeJSON(w, map[string]bool{"success": true})
}

// handleAnalyze serves /api/projects/{owner}/{repo}/analyze and moves the
// selection pointer, as the real backend does.
func (b *Backend) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if b.limited(w) {
		return
	}
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/projects/"), "/")
	if len(parts) != 3 || parts[2] != "analyze" {
		http.NotFound(w, r)
		return
	}
	fullName := parts[0] + "/" + parts[1]

	b.mu.Lock()
	b.prevSelected = b.selected
	b.selected = fullName
	b.analyzeCalls++
	for i := range b.projects {
		if b.projects[i].FullName == fullName {
			b.projects[i].AnalysisState = api.StateReady
		}
	}
	b.mu.Unlock()
	writeJSON(w, api.AnalyzeResult{Success: true})
}

func (b *Backend) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	if b.limited(w) {
		return
	}
	tab := api.Tab(strings.TrimPrefix(r.URL.Path, "/api/analysis/"))
	if !tab.Valid() {
		http.NotFound(w, r)
		return
	}

	b.mu.Lock()
	echo := b.selected
	if b.echoLag > 0 && b.prevSelected != "" {
		echo = b.prevSelected
		b.echoLag--
	}
	b.mu.Unlock()

	var payload any
	switch tab {
	case api.TabDashboard:
		payload = GenDashboard(echo)
	case api.TabTopology:
		payload = GenTopology(echo, 20)
	case api.TabTrajectory:
		payload = GenTrajectory(echo, 12, 0.01)
	case api.TabImpact:
		payload = api.ImpactPayload{Modules: []api.ImpactModule{{Path: "pkg/core", BlastRadius: 14, Fragility: 0.6}}}
	case api.TabDependencies:
		payload = GenDependencies(echo)
	case api.TabConcentration:
		payload = api.ConcentrationPayload{BusFactor: 2, Contributors: []api.ContributorShare{{Login: "alice", Share: 0.7}, {Login: "bob", Share: 0.3}}}
	case api.TabTemporal:
		payload = api.TemporalPayload{Buckets: []api.TemporalBucket{{Period: "2026-08", Commits: 42, Authors: 3}}, Churn: 0.2}
	}
	analysis, _ := json.Marshal(payload)
	writeJSON(w, api.Envelope{
		Selected: echo != "",
		Project:  api.Project{FullName: echo},
		Analysis: analysis,
	})
}

func (b *Backend) handlePredictions(w http.ResponseWriter, r *http.Request) {
	if b.limited(w) {
		return
	}
	b.mu.Lock()
	selected := b.selected
	lastModified := b.lastModified
	b.mu.Unlock()

	if ims := r.Header.Get("If-Modified-Since"); ims != "" {
		if t, err := http.ParseTime(ims); err == nil && !lastModified.After(t) {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}

	predictions, _ := json.Marshal(map[string]any{"hotspots": 3, "horizon": "30d"})
	w.Header().Set("Last-Modified", lastModified.UTC().Format(http.TimeFormat))
	writeJSON(w, api.Predictions{
		Selected:    selected != "",
		Project:     api.Project{FullName: selected},
		Predictions: predictions,
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
