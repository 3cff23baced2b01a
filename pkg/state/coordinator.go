// Package state implements the project-switch coordinator: the invalidation
// and versioning discipline that guarantees no view ever renders analysis
// data belonging to a previously selected project.
//
// The coordinator is a plain value type driven by explicit transitions, with
// no dependency on the UI framework or the network layer. The root UI model
// applies transitions synchronously; async results carry the version they
// were issued under and are checked with Current before committing.
package state

// Phase is the coordinator's lifecycle phase.
type Phase int

const (
	// Idle means no selection change is in flight.
	Idle Phase = iota
	// Switching means a selection was made and its select-or-analyze call
	// has not settled yet. Views render loading skeletons.
	Switching
	// Ready means the current selection's switch has settled and views may
	// fetch and render.
	Ready
)

func (p Phase) String() string {
	switch p {
	case Switching:
		return "switching"
	case Ready:
		return "ready"
	default:
		return "idle"
	}
}

// Coordinator holds the selection state shared by every analytic view.
//
// Invariant: Version strictly increases on every SelectProject call. Every
// async fetch is stamped with the version current at issue time; a result
// whose stamp no longer matches must be discarded, never rendered.
type Coordinator struct {
	phase            Phase
	selectedProject  string // fullName, "" when none
	analyzingProject string // fullName while a select/analyze call is in flight
	version          uint64
	analyzed         map[string]bool // fullNames with completed analysis
}

// New returns a coordinator in Idle with no selection.
func New() Coordinator {
	return Coordinator{analyzed: make(map[string]bool)}
}

// Restore returns a coordinator seeded from a persisted session: a prior
// selection (may be "") and the set of already-analyzed projects.
func Restore(selected string, analyzed []string) Coordinator {
	c := New()
	for _, name := range analyzed {
		c.analyzed[name] = true
	}
	if selected != "" {
		c.selectedProject = selected
		c.phase = Ready
	}
	return c
}

// Phase returns the current lifecycle phase.
func (c Coordinator) Phase() Phase { return c.phase }

// Selected returns the currently selected project fullName, or "".
func (c Coordinator) Selected() string { return c.selectedProject }

// Analyzing returns the project a select/analyze call is in flight for, or "".
func (c Coordinator) Analyzing() string { return c.analyzingProject }

// Version returns the current switch version. Views key their state on it.
func (c Coordinator) Version() uint64 { return c.version }

// IsReady reports whether views may fetch and render analysis data.
func (c Coordinator) IsReady() bool { return c.phase == Ready }

// Current reports whether a result stamped with version may still commit.
func (c Coordinator) Current(version uint64) bool { return version == c.version }

// IsAnalyzed reports whether fullName has a completed analysis.
func (c Coordinator) IsAnalyzed(fullName string) bool { return c.analyzed[fullName] }

// AnalyzedProjects returns the analyzed set for persistence.
func (c Coordinator) AnalyzedProjects() []string {
	names := make([]string, 0, len(c.analyzed))
	for name := range c.analyzed {
		names = append(names, name)
	}
	return names
}

// SelectProject begins a switch to fullName. It runs synchronously, before
// any network call: readiness drops, the version bumps, and the target
// becomes both selected and analyzing. Calling it again while Switching
// simply re-enters Switching under a fresh version; the older call's
// eventual settlement is then ignored by SelectionSettled.
//
// The returned version stamps the select-or-analyze call for this switch.
func (c *Coordinator) SelectProject(fullName string) uint64 {
	c.phase = Switching
	c.version++
	c.selectedProject = fullName
	c.analyzingProject = fullName
	return c.version
}

// SelectionSettled records that the switch stamped with version finished,
// successfully or not. Settlement of a superseded switch is a no-op: a newer
// SelectProject already owns the state. On the current switch it clears the
// analyzing marker and restores readiness; analyzed marks the project as
// having completed analysis.
func (c *Coordinator) SelectionSettled(version uint64, analyzed bool) {
	if version != c.version || c.phase != Switching {
		return
	}
	if analyzed && c.selectedProject != "" {
		c.analyzed[c.selectedProject] = true
	}
	c.analyzingProject = ""
	c.phase = Ready
}

// MarkAnalyzed records a completed analysis for fullName without touching
// the switch lifecycle (used when the project list reports state "ready").
func (c *Coordinator) MarkAnalyzed(fullName string) {
	if fullName != "" {
		c.analyzed[fullName] = true
	}
}

// Reset clears every piece of selection state and returns to Idle with no
// project. Legal in any phase; used by both disconnect and logout.
func (c *Coordinator) Reset() {
	c.phase = Idle
	c.selectedProject = ""
	c.analyzingProject = ""
	c.analyzed = make(map[string]bool)
	// Version keeps increasing across resets so stale in-flight results
	// from before the reset can never match again.
	c.version++
}
