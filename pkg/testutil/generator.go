// Package testutil provides deterministic backend fixtures for tests.
// All generators are seeded by the project name so repeated runs produce
// identical payloads.
package testutil

import (
	"fmt"
	"hash/fnv"
	"math/rand"
	"time"

	"github.com/risksurface/surf/pkg/api"
)

func seeded(fullName string) *rand.Rand {
	h := fnv.New64a()
	h.Write([]byte(fullName))
	return rand.New(rand.NewSource(int64(h.Sum64())))
}

// GenProjects returns n projects named fix/repo-0..n-1. Even-indexed
// projects come back already analyzed.
func GenProjects(n int) []api.Project {
	projects := make([]api.Project, 0, n)
	for i := 0; i < n; i++ {
		st := api.StateUnanalyzed
		if i%2 == 0 {
			st = api.StateReady
		}
		projects = append(projects, api.Project{
			FullName:      fmt.Sprintf("fix/repo-%d", i),
			Owner:         "fix",
			Name:          fmt.Sprintf("repo-%d", i),
			DefaultBranch: "main",
			Language:      "Go",
			Stars:         i * 10,
			AnalysisState: st,
			UpdatedAt:     time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(i) * time.Hour),
		})
	}
	return projects
}

// GenDashboard returns a dashboard payload derived from the project name.
func GenDashboard(fullName string) api.DashboardPayload {
	r := seeded(fullName)
	return api.DashboardPayload{
		HealthScore:    30 + r.Intn(70),
		FragilityScore: r.Float64(),
		ModuleCount:    5 + r.Intn(200),
		HotspotCount:   r.Intn(20),
		BusFactor:      1 + r.Intn(8),
		OpenAlerts:     r.Intn(10),
	}
}

// GenTopology returns a topology payload with nodeCount modules.
func GenTopology(fullName string, nodeCount int) api.TopologyPayload {
	r := seeded(fullName)
	nodes := make([]api.TopologyNode, 0, nodeCount)
	for i := 0; i < nodeCount; i++ {
		nodes = append(nodes, api.TopologyNode{
			ID:         fmt.Sprintf("n%d", i),
			Label:      fmt.Sprintf("pkg/mod%d", i),
			Cluster:    i % 4,
			Centrality: r.Float64(),
			Fragility:  r.Float64(),
		})
	}
	// A ring plus one random chord per node keeps the graph connected and
	// deterministic.
	edges := make([]api.TopologyEdge, 0, nodeCount*2)
	for i := 0; i < nodeCount; i++ {
		edges = append(edges, api.TopologyEdge{
			From: nodes[i].ID,
			To:   nodes[(i+1)%nodeCount].ID,
		})
		edges = append(edges, api.TopologyEdge{
			From: nodes[i].ID,
			To:   nodes[r.Intn(nodeCount)].ID,
		})
	}
	return api.TopologyPayload{
		Nodes:        nodes,
		Edges:        edges,
		ClusterCount: 4,
		Density:      r.Float64() * 0.5,
	}
}

// GenTrajectory returns a trajectory payload with pointCount points trending
// by slope.
func GenTrajectory(fullName string, pointCount int, slope float64) api.TrajectoryPayload {
	r := seeded(fullName)
	points := make([]api.TrajectoryPoint, 0, pointCount)
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < pointCount; i++ {
		points = append(points, api.TrajectoryPoint{
			Date:  start.AddDate(0, 0, i*7).Format("2006-01-02"),
			Score: 0.5 + slope*float64(i) + r.Float64()*0.01,
		})
	}
	label := "stable"
	switch {
	case slope > 0.05:
		label = "degrading"
	case slope < -0.05:
		label = "improving"
	}
	return api.TrajectoryPayload{Points: points, Slope: slope, Label: label}
}

// GenDependencies returns a flat listing that exercises the hierarchy
// builder: folders and files in shuffled order.
func GenDependencies(fullName string) api.DependenciesPayload {
	r := seeded(fullName)
	entries := []api.DependencyEntry{
		{Path: "cmd", Type: "folder"},
		{Path: "cmd/app", Type: "folder"},
		{Path: "cmd/app/main.go", Type: "file", Size: 2048},
		{Path: "pkg", Type: "folder"},
		{Path: "pkg/core", Type: "folder"},
		{Path: "pkg/core/core.go", Type: "file", Size: 8192},
		{Path: "pkg/core/core_test.go", Type: "file", Size: 4096},
		{Path: "go.mod", Type: "file", Size: 512},
	}
	r.Shuffle(len(entries), func(i, j int) {
		entries[i], entries[j] = entries[j], entries[i]
	})
	external := []string{
		"github.com/goccy/go-json",
		"golang.org/x/sync",
		"gonum.org/v1/gonum",
	}
	return api.DependenciesPayload{Entries: entries, External: external}
}
