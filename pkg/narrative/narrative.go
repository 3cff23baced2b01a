// Package narrative generates deterministic, template-based interpretations
// of analysis metrics. It is the fallback for the AI Analyst layer: used
// when no provider is configured or the backend interpretation call fails.
//
// Wording is banded on metric thresholds so the same payload always yields
// the same text. Output is markdown, rendered by the narrative overlay.
package narrative

import (
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/risksurface/surf/pkg/api"
)

// FallbackNotice prefixes every locally generated narrative so it is never
// mistaken for an AI Analyst response.
const FallbackNotice = "_Generated locally; AI Analyst unavailable._"

// Dashboard summarizes the overall health slice.
func Dashboard(p api.DashboardPayload) string {
	if p.Unavailable.Unavailable {
		return unavailableText(p.Reason)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## Health overview\n\n")

	switch {
	case p.HealthScore >= 80:
		fmt.Fprintf(&b, "Overall health is **strong** at %d/100. ", p.HealthScore)
	case p.HealthScore >= 50:
		fmt.Fprintf(&b, "Overall health is **moderate** at %d/100. ", p.HealthScore)
	default:
		fmt.Fprintf(&b, "Overall health is **weak** at %d/100 and needs attention. ", p.HealthScore)
	}

	switch {
	case p.FragilityScore >= 0.7:
		fmt.Fprintf(&b, "The composite fragility score of %.2f is high: small changes are likely to ripple widely.\n\n", p.FragilityScore)
	case p.FragilityScore >= 0.4:
		fmt.Fprintf(&b, "The composite fragility score of %.2f is elevated but manageable.\n\n", p.FragilityScore)
	default:
		fmt.Fprintf(&b, "The composite fragility score of %.2f is low; the codebase absorbs change well.\n\n", p.FragilityScore)
	}

	fmt.Fprintf(&b, "Across %d modules, %d are flagged as hotspots", p.ModuleCount, p.HotspotCount)
	if p.BusFactor > 0 {
		if p.BusFactor <= 2 {
			fmt.Fprintf(&b, " and knowledge is concentrated in just %d contributor(s)", p.BusFactor)
		} else {
			fmt.Fprintf(&b, " and knowledge is spread across %d key contributors", p.BusFactor)
		}
	}
	fmt.Fprintf(&b, ".\n\n%s\n", FallbackNotice)
	return b.String()
}

// Topology describes the module graph's shape.
func Topology(p api.TopologyPayload) string {
	if p.Unavailable.Unavailable {
		return unavailableText(p.Reason)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## Topology interpretation\n\n")

	n := len(p.Nodes)
	switch {
	case n > 50:
		fmt.Fprintf(&b, "This is a **large graph** of %d modules; expect navigation by cluster rather than by individual node. ", n)
	case n > 15:
		fmt.Fprintf(&b, "A mid-sized graph of %d modules. ", n)
	default:
		fmt.Fprintf(&b, "A compact graph of %d modules, small enough to review node by node. ", n)
	}

	if p.ClusterCount > 1 {
		fmt.Fprintf(&b, "The backend identified %d clusters. ", p.ClusterCount)
	}
	switch {
	case p.Density >= 0.5:
		fmt.Fprintf(&b, "Edge density of %.2f is high: modules are tightly interwoven, so isolated changes are rare.\n", p.Density)
	case p.Density >= 0.2:
		fmt.Fprintf(&b, "Edge density of %.2f suggests moderate coupling.\n", p.Density)
	default:
		fmt.Fprintf(&b, "Edge density of %.2f is low: the architecture is well partitioned.\n", p.Density)
	}

	if central := topCentral(p.Nodes); central != nil {
		fmt.Fprintf(&b, "\nThe most central module is `%s` (centrality %.2f); changes there have the widest reach.\n", central.Label, central.Centrality)
	}

	fmt.Fprintf(&b, "\n%s\n", FallbackNotice)
	return b.String()
}

// topCentral returns the node with the highest centrality, or nil.
func topCentral(nodes []api.TopologyNode) *api.TopologyNode {
	var best *api.TopologyNode
	for i := range nodes {
		if best == nil || nodes[i].Centrality > best.Centrality {
			best = &nodes[i]
		}
	}
	return best
}

// Trajectory describes the risk trend.
func Trajectory(p api.TrajectoryPayload) string {
	if p.Unavailable.Unavailable {
		return unavailableText(p.Reason)
	}
	if len(p.Points) < 2 {
		return unavailableText("not enough history to establish a trend")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## Risk trajectory\n\n")

	scores := make([]float64, len(p.Points))
	for i, pt := range p.Points {
		scores[i] = pt.Score
	}
	mean, std := stat.MeanStdDev(scores, nil)

	switch {
	case p.Slope > 0.05:
		fmt.Fprintf(&b, "Risk is **degrading**: the fitted slope of %+.3f per period points upward. ", p.Slope)
	case p.Slope < -0.05:
		fmt.Fprintf(&b, "Risk is **improving**: the fitted slope of %+.3f per period points downward. ", p.Slope)
	default:
		fmt.Fprintf(&b, "Risk is **stable** (slope %+.3f per period). ", p.Slope)
	}

	fmt.Fprintf(&b, "Over %d samples the score averaged %.2f", len(scores), mean)
	if std > 0.15*mean && mean > 0 {
		fmt.Fprintf(&b, " with noticeable volatility (σ %.2f)", std)
	} else {
		fmt.Fprintf(&b, " with little volatility (σ %.2f)", std)
	}
	fmt.Fprintf(&b, ".\n\n%s\n", FallbackNotice)
	return b.String()
}

// Impact describes the blast-radius ranking.
func Impact(p api.ImpactPayload) string {
	if p.Unavailable.Unavailable {
		return unavailableText(p.Reason)
	}
	if len(p.Modules) == 0 {
		return unavailableText("no impact data for this project")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## Change impact\n\n")

	top := p.Modules[0]
	for _, m := range p.Modules[1:] {
		if m.BlastRadius > top.BlastRadius {
			top = m
		}
	}

	switch {
	case top.BlastRadius > 20:
		fmt.Fprintf(&b, "`%s` has a **very wide blast radius**: %d downstream modules are affected by any change to it. Treat edits there as release events.\n", top.Path, top.BlastRadius)
	case top.BlastRadius > 5:
		fmt.Fprintf(&b, "`%s` leads with a blast radius of %d downstream modules; coordinate changes there.\n", top.Path, top.BlastRadius)
	default:
		fmt.Fprintf(&b, "No module exceeds a blast radius of %d; change impact is well contained.\n", top.BlastRadius)
	}

	fmt.Fprintf(&b, "\n%s\n", FallbackNotice)
	return b.String()
}

// Concentration describes ownership concentration and bus factor.
func Concentration(p api.ConcentrationPayload) string {
	if p.Unavailable.Unavailable {
		return unavailableText(p.Reason)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## Ownership concentration\n\n")

	switch {
	case p.BusFactor <= 1:
		fmt.Fprintf(&b, "Bus factor is **1**: a single contributor's absence would critically impair this project.\n\n")
	case p.BusFactor <= 3:
		fmt.Fprintf(&b, "Bus factor is **%d**, on the risky side; key knowledge sits with a small group.\n\n", p.BusFactor)
	default:
		fmt.Fprintf(&b, "Bus factor is **%d**; knowledge is reasonably distributed.\n\n", p.BusFactor)
	}

	if len(p.Contributors) > 0 {
		shares := make([]float64, len(p.Contributors))
		for i, c := range p.Contributors {
			shares[i] = c.Share
		}
		sort.Float64s(shares)
		topShare := shares[len(shares)-1]
		mean := stat.Mean(shares, nil)

		if topShare >= 0.5 {
			fmt.Fprintf(&b, "The top contributor owns %.0f%% of the code, well above the %.0f%% average share.\n", topShare*100, mean*100)
		} else {
			fmt.Fprintf(&b, "No contributor owns a majority (top share %.0f%%, average %.0f%%).\n", topShare*100, mean*100)
		}
	}

	fmt.Fprintf(&b, "\n%s\n", FallbackNotice)
	return b.String()
}

// Temporal describes commit-activity patterns.
func Temporal(p api.TemporalPayload) string {
	if p.Unavailable.Unavailable {
		return unavailableText(p.Reason)
	}
	if len(p.Buckets) == 0 {
		return unavailableText("too little commit history")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## Temporal activity\n\n")

	commits := make([]float64, len(p.Buckets))
	total := 0
	for i, bucket := range p.Buckets {
		commits[i] = float64(bucket.Commits)
		total += bucket.Commits
	}
	mean, std := stat.MeanStdDev(commits, nil)

	fmt.Fprintf(&b, "%d commits across %d periods (%.1f per period). ", total, len(p.Buckets), mean)
	if mean > 0 && std > mean {
		fmt.Fprintf(&b, "Activity is **bursty**: variation between periods exceeds the average itself. ")
	} else {
		fmt.Fprintf(&b, "Activity is steady from period to period. ")
	}

	switch {
	case p.Churn >= 0.6:
		fmt.Fprintf(&b, "Churn of %.2f is high; much of the recent work rewrites existing code.\n", p.Churn)
	case p.Churn >= 0.3:
		fmt.Fprintf(&b, "Churn of %.2f is moderate.\n", p.Churn)
	default:
		fmt.Fprintf(&b, "Churn of %.2f is low; recent work is mostly additive.\n", p.Churn)
	}

	fmt.Fprintf(&b, "\n%s\n", FallbackNotice)
	return b.String()
}

// Dependencies describes the file/dependency listing.
func Dependencies(p api.DependenciesPayload) string {
	if p.Unavailable.Unavailable {
		return unavailableText(p.Reason)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## Dependencies\n\n")

	files := 0
	for _, e := range p.Entries {
		if e.Type == "file" {
			files++
		}
	}
	fmt.Fprintf(&b, "The project tree lists %d entries (%d files). ", len(p.Entries), files)

	switch {
	case len(p.External) > 100:
		fmt.Fprintf(&b, "With %d external dependencies the supply-chain surface is **large**.\n", len(p.External))
	case len(p.External) > 20:
		fmt.Fprintf(&b, "%d external dependencies is typical for a project of this size.\n", len(p.External))
	default:
		fmt.Fprintf(&b, "Only %d external dependencies; the supply-chain surface is small.\n", len(p.External))
	}

	fmt.Fprintf(&b, "\n%s\n", FallbackNotice)
	return b.String()
}

// unavailableText is the explicit empty-state narrative.
func unavailableText(reason string) string {
	if reason == "" {
		reason = "the backend reported no data for this view"
	}
	return fmt.Sprintf("## Unavailable\n\nNo interpretation: %s.\n\n%s\n", reason, FallbackNotice)
}
