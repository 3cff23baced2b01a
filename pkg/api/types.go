package api

import (
	"time"

	"github.com/goccy/go-json"
)

// AnalysisState tracks whether a project has been analyzed by the backend.
type AnalysisState string

const (
	StateUnanalyzed AnalysisState = "unanalyzed"
	StateAnalyzing  AnalysisState = "analyzing"
	StateReady      AnalysisState = "ready"
)

// Project is a repository reference as listed by the backend.
// Identity key is FullName ("owner/repo").
type Project struct {
	FullName      string        `json:"fullName"`
	Owner         string        `json:"owner"`
	Name          string        `json:"name"`
	DefaultBranch string        `json:"defaultBranch"`
	Language      string        `json:"language"`
	Stars         int           `json:"stars"`
	Private       bool          `json:"private"`
	AnalysisState AnalysisState `json:"analysisState"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// ConnectionStatus describes the GitHub connection owned by the backend.
type ConnectionStatus struct {
	IsConnected  bool   `json:"isConnected"`
	Username     string `json:"username"`
	Organization string `json:"organization,omitempty"`
	RepoCount    int    `json:"repoCount"`
}

// Tab identifies one analytic view slice served by the backend.
type Tab string

const (
	TabDashboard     Tab = "dashboard"
	TabTopology      Tab = "topology"
	TabTrajectory    Tab = "trajectory"
	TabImpact        Tab = "impact"
	TabDependencies  Tab = "dependencies"
	TabConcentration Tab = "concentration"
	TabTemporal      Tab = "temporal"
)

// Tabs lists all analytic tabs in display order.
var Tabs = []Tab{
	TabDashboard,
	TabTopology,
	TabTrajectory,
	TabImpact,
	TabDependencies,
	TabConcentration,
	TabTemporal,
}

// Valid reports whether t names a known analysis tab.
func (t Tab) Valid() bool {
	for _, tab := range Tabs {
		if t == tab {
			return true
		}
	}
	return false
}

// Envelope is the common wrapper around every per-tab analysis response.
// Analysis stays raw until the view decodes it into its tab-specific type,
// so the project-identity guard can run before any payload interpretation.
type Envelope struct {
	Selected bool            `json:"selected"`
	Project  Project         `json:"project"`
	Analysis json.RawMessage `json:"analysis"`
}

// Unavailable is the explicit empty-state variant shared by all tab payloads.
// The backend sets Reason when it has too little data (e.g. short commit
// history) rather than omitting fields.
type Unavailable struct {
	Unavailable bool   `json:"unavailable,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// DashboardPayload is the summary slice shown on the dashboard tab.
type DashboardPayload struct {
	Unavailable
	HealthScore    int     `json:"healthScore"`
	FragilityScore float64 `json:"fragilityScore"`
	ModuleCount    int     `json:"moduleCount"`
	HotspotCount   int     `json:"hotspotCount"`
	BusFactor      int     `json:"busFactor"`
	OpenAlerts     int     `json:"openAlerts"`
}

// TopologyNode is one module in the dependency topology.
type TopologyNode struct {
	ID         string  `json:"id"`
	Label      string  `json:"label"`
	Cluster    int     `json:"cluster"`
	Centrality float64 `json:"centrality"`
	Fragility  float64 `json:"fragility"`
}

// TopologyEdge is one directed dependency between modules.
type TopologyEdge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// TopologyPayload is the module-graph slice.
type TopologyPayload struct {
	Unavailable
	Nodes        []TopologyNode `json:"nodes"`
	Edges        []TopologyEdge `json:"edges"`
	ClusterCount int            `json:"clusterCount"`
	Density      float64        `json:"density"`
}

// TrajectoryPoint is one sample of the risk trajectory time series.
type TrajectoryPoint struct {
	Date  string  `json:"date"`
	Score float64 `json:"score"`
}

// TrajectoryPayload is the risk-over-time slice.
type TrajectoryPayload struct {
	Unavailable
	Points []TrajectoryPoint `json:"points"`
	Slope  float64           `json:"slope"`
	Label  string            `json:"label"` // improving, stable, degrading
}

// ImpactModule is one module ranked by blast radius.
type ImpactModule struct {
	Path        string  `json:"path"`
	BlastRadius int     `json:"blastRadius"`
	Fragility   float64 `json:"fragility"`
}

// ImpactPayload is the change-impact slice.
type ImpactPayload struct {
	Unavailable
	Modules []ImpactModule `json:"modules"`
}

// DependencyEntry is one file or folder in the dependency tree listing.
type DependencyEntry struct {
	Path string `json:"path"`
	Type string `json:"type"` // file | folder
	Size int64  `json:"size"`
}

// DependenciesPayload is the flat file/dependency listing; the client
// reconstructs the display tree with pkg/hierarchy.
type DependenciesPayload struct {
	Unavailable
	Entries  []DependencyEntry `json:"entries"`
	External []string          `json:"external"`
}

// ContributorShare is one contributor's ownership share.
type ContributorShare struct {
	Login string  `json:"login"`
	Share float64 `json:"share"`
}

// ConcentrationPayload is the ownership-concentration slice.
type ConcentrationPayload struct {
	Unavailable
	BusFactor    int                `json:"busFactor"`
	Contributors []ContributorShare `json:"contributors"`
}

// TemporalBucket is commit activity within one period.
type TemporalBucket struct {
	Period  string `json:"period"`
	Commits int    `json:"commits"`
	Authors int    `json:"authors"`
}

// TemporalPayload is the temporal-activity slice.
type TemporalPayload struct {
	Unavailable
	Buckets []TemporalBucket `json:"buckets"`
	Churn   float64          `json:"churn"`
}

// Interpretation is the AI Analyst response from the backend proxy.
type Interpretation struct {
	Success        bool     `json:"success"`
	Interpretation string   `json:"interpretation,omitempty"`
	Warnings       []string `json:"warnings,omitempty"`
	Error          string   `json:"error,omitempty"`
}

// Predictions is the polled live-predictions slice.
type Predictions struct {
	Selected    bool            `json:"selected"`
	Project     Project         `json:"project"`
	Predictions json.RawMessage `json:"predictions"`
}

// AnalyzeResult acknowledges a triggered analysis.
type AnalyzeResult struct {
	Success bool `json:"success"`
}

// ExportFormat names a backend export format.
type ExportFormat string

const (
	ExportPDF  ExportFormat = "pdf"
	ExportCSV  ExportFormat = "csv"
	ExportJSON ExportFormat = "json"
)
