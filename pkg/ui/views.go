package ui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/goccy/go-json"

	"github.com/risksurface/surf/pkg/api"
	"github.com/risksurface/surf/pkg/hierarchy"
	"github.com/risksurface/surf/pkg/metrics"
	"github.com/risksurface/surf/pkg/narrative"
)

// viewPhase is one tab view's lifecycle.
type viewPhase int

const (
	viewIdle viewPhase = iota
	viewLoading
	viewReady
	viewFailed
)

// tabView holds one analytic view's fetched slice. Views are version-scoped:
// the root model drops every tabView when the switch version bumps, so a
// view can never carry data across a project switch.
type tabView struct {
	phase   viewPhase
	payload any    // one of the api.*Payload types, set when phase == viewReady
	errMsg  string // set when phase == viewFailed
	retried bool   // the single identity-mismatch retry was used

	// AI Analyst overlay
	narrative     string
	narrativeAI   bool
	narrativeWarn string
}

// decodePayload turns the raw analysis JSON into the tab's typed payload.
func decodePayload(tab api.Tab, raw json.RawMessage) (any, error) {
	defer metrics.Timer(metrics.PayloadDecode)()
	switch tab {
	case api.TabDashboard:
		var p api.DashboardPayload
		return &p, json.Unmarshal(raw, &p)
	case api.TabTopology:
		var p api.TopologyPayload
		return &p, json.Unmarshal(raw, &p)
	case api.TabTrajectory:
		var p api.TrajectoryPayload
		return &p, json.Unmarshal(raw, &p)
	case api.TabImpact:
		var p api.ImpactPayload
		return &p, json.Unmarshal(raw, &p)
	case api.TabDependencies:
		var p api.DependenciesPayload
		return &p, json.Unmarshal(raw, &p)
	case api.TabConcentration:
		var p api.ConcentrationPayload
		return &p, json.Unmarshal(raw, &p)
	case api.TabTemporal:
		var p api.TemporalPayload
		return &p, json.Unmarshal(raw, &p)
	default:
		return nil, fmt.Errorf("unknown tab %q", tab)
	}
}

// localNarrative produces the fallback interpretation for a committed
// payload. It mirrors the AI Analyst's tab kinds exactly.
func localNarrative(tab api.Tab, payload any) string {
	switch p := payload.(type) {
	case *api.DashboardPayload:
		return narrative.Dashboard(*p)
	case *api.TopologyPayload:
		return narrative.Topology(*p)
	case *api.TrajectoryPayload:
		return narrative.Trajectory(*p)
	case *api.ImpactPayload:
		return narrative.Impact(*p)
	case *api.DependenciesPayload:
		return narrative.Dependencies(*p)
	case *api.ConcentrationPayload:
		return narrative.Concentration(*p)
	case *api.TemporalPayload:
		return narrative.Temporal(*p)
	default:
		return ""
	}
}

// renderTab dispatches rendering for a committed payload.
func renderTab(t Theme, tab api.Tab, payload any, width int) string {
	switch p := payload.(type) {
	case *api.DashboardPayload:
		return renderDashboard(t, p, width)
	case *api.TopologyPayload:
		return renderTopology(t, p, width)
	case *api.TrajectoryPayload:
		return renderTrajectory(t, p, width)
	case *api.ImpactPayload:
		return renderImpact(t, p, width)
	case *api.DependenciesPayload:
		return renderDependencies(t, p, width)
	case *api.ConcentrationPayload:
		return renderConcentration(t, p, width)
	case *api.TemporalPayload:
		return renderTemporal(t, p, width)
	default:
		return t.Skeleton.Render("no data")
	}
}

// renderUnavailable is the shared explicit empty state: the backend had too
// little data and said why.
func renderUnavailable(t Theme, reason string) string {
	if reason == "" {
		reason = "no data for this view"
	}
	return t.WarnText.Render("Unavailable") + "\n" + t.MutedText.Render(reason)
}

func renderDashboard(t Theme, p *api.DashboardPayload, width int) string {
	if p.Unavailable.Unavailable {
		return renderUnavailable(t, p.Reason)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s\n",
		padRight("Health", 14),
		t.HealthStyle(p.HealthScore).Render(fmt.Sprintf("%3d/100 %s", p.HealthScore, bar(float64(p.HealthScore)/100, 20))))
	fmt.Fprintf(&b, "%s  %s\n",
		padRight("Fragility", 14),
		t.RiskStyle(p.FragilityScore).Render(fmt.Sprintf("%.2f    %s", p.FragilityScore, bar(p.FragilityScore, 20))))
	fmt.Fprintf(&b, "%s  %d\n", padRight("Modules", 14), p.ModuleCount)
	fmt.Fprintf(&b, "%s  %s\n", padRight("Hotspots", 14), t.WarnText.Render(fmt.Sprintf("%d", p.HotspotCount)))

	busStyle := t.OKText
	if p.BusFactor <= 2 {
		busStyle = t.ErrorText
	}
	fmt.Fprintf(&b, "%s  %s\n", padRight("Bus factor", 14), busStyle.Render(fmt.Sprintf("%d", p.BusFactor)))
	fmt.Fprintf(&b, "%s  %d\n", padRight("Open alerts", 14), p.OpenAlerts)
	return b.String()
}

func renderTopology(t Theme, p *api.TopologyPayload, width int) string {
	if p.Unavailable.Unavailable {
		return renderUnavailable(t, p.Reason)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d modules, %d edges, %d clusters, density %.2f\n\n",
		len(p.Nodes), len(p.Edges), p.ClusterCount, p.Density)

	// Top modules by centrality.
	nodes := make([]api.TopologyNode, len(p.Nodes))
	copy(nodes, p.Nodes)
	sort.Slice(nodes, func(i, j int) bool {
		return nodes[i].Centrality > nodes[j].Centrality
	})
	limit := 10
	if len(nodes) < limit {
		limit = len(nodes)
	}
	b.WriteString(t.Header.Render("Most central modules"))
	b.WriteString("\n")
	for _, n := range nodes[:limit] {
		fmt.Fprintf(&b, "  %s %s  c=%.2f\n",
			t.RiskStyle(n.Fragility).Render(bar(n.Centrality, 12)),
			padRight(truncate(n.Label, 36), 36),
			n.Centrality)
	}
	return b.String()
}

func renderTrajectory(t Theme, p *api.TrajectoryPayload, width int) string {
	if p.Unavailable.Unavailable {
		return renderUnavailable(t, p.Reason)
	}
	if len(p.Points) == 0 {
		return renderUnavailable(t, "no trajectory samples")
	}

	maxScore := p.Points[0].Score
	for _, pt := range p.Points {
		if pt.Score > maxScore {
			maxScore = pt.Score
		}
	}

	var b strings.Builder
	label := p.Label
	if label == "" {
		label = "unlabeled"
	}
	fmt.Fprintf(&b, "Trend: %s (slope %+.3f)\n\n", t.RiskStyle(trendRisk(p.Slope)).Render(label), p.Slope)
	for _, pt := range p.Points {
		norm := 0.0
		if maxScore > 0 {
			norm = pt.Score / maxScore
		}
		fmt.Fprintf(&b, "  %s %s %.2f\n", padRight(pt.Date, 12), bar(norm, 24), pt.Score)
	}
	return b.String()
}

// trendRisk maps a slope to a 0..1 risk value for styling.
func trendRisk(slope float64) float64 {
	switch {
	case slope > 0.05:
		return 0.9
	case slope < -0.05:
		return 0.1
	default:
		return 0.5
	}
}

func renderImpact(t Theme, p *api.ImpactPayload, width int) string {
	if p.Unavailable.Unavailable {
		return renderUnavailable(t, p.Reason)
	}
	if len(p.Modules) == 0 {
		return renderUnavailable(t, "no impact data")
	}

	maxRadius := 0
	for _, m := range p.Modules {
		if m.BlastRadius > maxRadius {
			maxRadius = m.BlastRadius
		}
	}

	var b strings.Builder
	b.WriteString(t.Header.Render("Blast radius by module"))
	b.WriteString("\n")
	limit := 15
	if len(p.Modules) < limit {
		limit = len(p.Modules)
	}
	for _, m := range p.Modules[:limit] {
		norm := 0.0
		if maxRadius > 0 {
			norm = float64(m.BlastRadius) / float64(maxRadius)
		}
		fmt.Fprintf(&b, "  %s %s %3d downstream\n",
			padRight(truncate(m.Path, 36), 36),
			t.RiskStyle(m.Fragility).Render(bar(norm, 16)),
			m.BlastRadius)
	}
	return b.String()
}

func renderDependencies(t Theme, p *api.DependenciesPayload, width int) string {
	if p.Unavailable.Unavailable {
		return renderUnavailable(t, p.Reason)
	}

	entries := make([]hierarchy.Entry, len(p.Entries))
	for i, e := range p.Entries {
		entries[i] = hierarchy.Entry{Path: e.Path, Type: hierarchy.EntryType(e.Type), Size: e.Size}
	}
	roots := hierarchy.Build(entries)

	var b strings.Builder
	fmt.Fprintf(&b, "%d entries, %d external dependencies\n\n", hierarchy.Count(roots), len(p.External))

	lines := 0
	const maxLines = 30
	hierarchy.Walk(roots, func(n *hierarchy.Node) {
		if lines >= maxLines {
			return
		}
		indent := strings.Repeat("  ", n.Depth)
		if n.IsFolder() {
			fmt.Fprintf(&b, "  %s%s\n", indent, t.Header.Render(n.Name+"/"))
		} else {
			fmt.Fprintf(&b, "  %s%s %s\n", indent, n.Name, t.MutedText.Render(formatSize(n.Size)))
		}
		lines++
	})
	if total := hierarchy.Count(roots); total > maxLines {
		fmt.Fprintf(&b, "  %s\n", t.MutedText.Render(fmt.Sprintf("... +%d more", total-maxLines)))
	}
	return b.String()
}

// formatSize renders a byte count compactly.
func formatSize(size int64) string {
	switch {
	case size >= 1<<20:
		return fmt.Sprintf("%.1fMB", float64(size)/(1<<20))
	case size >= 1<<10:
		return fmt.Sprintf("%.1fKB", float64(size)/(1<<10))
	case size > 0:
		return fmt.Sprintf("%dB", size)
	default:
		return ""
	}
}

func renderConcentration(t Theme, p *api.ConcentrationPayload, width int) string {
	if p.Unavailable.Unavailable {
		return renderUnavailable(t, p.Reason)
	}

	busStyle := t.OKText
	if p.BusFactor <= 2 {
		busStyle = t.ErrorText
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Bus factor: %s\n\n", busStyle.Render(fmt.Sprintf("%d", p.BusFactor)))
	b.WriteString(t.Header.Render("Ownership shares"))
	b.WriteString("\n")
	for _, c := range p.Contributors {
		fmt.Fprintf(&b, "  %s %s %4.0f%%\n",
			padRight(truncate(c.Login, 20), 20),
			bar(c.Share, 24),
			c.Share*100)
	}
	return b.String()
}

func renderTemporal(t Theme, p *api.TemporalPayload, width int) string {
	if p.Unavailable.Unavailable {
		return renderUnavailable(t, p.Reason)
	}
	if len(p.Buckets) == 0 {
		return renderUnavailable(t, "too little commit history")
	}

	maxCommits := 0
	for _, bucket := range p.Buckets {
		if bucket.Commits > maxCommits {
			maxCommits = bucket.Commits
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Churn: %.2f\n\n", p.Churn)
	for _, bucket := range p.Buckets {
		norm := 0.0
		if maxCommits > 0 {
			norm = float64(bucket.Commits) / float64(maxCommits)
		}
		fmt.Fprintf(&b, "  %s %s %3d commits, %d authors\n",
			padRight(bucket.Period, 10), bar(norm, 24), bucket.Commits, bucket.Authors)
	}
	return b.String()
}
