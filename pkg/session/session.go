// Package session persists the selected project, the set of analyzed
// projects, and the AI provider id across restarts.
//
// State lives in a single JSON file under the XDG state directory. The file
// is read once at startup and rewritten on every change; corruption or a
// missing file degrades to an empty session. The provider id deliberately
// survives Clear: it is longer-lived than the GitHub session.
//
// File format (JSON):
//
//	{
//	  "version": 1,
//	  "selectedProject": "acme/payments",
//	  "analyzedProjects": ["acme/payments", "acme/web"],
//	  "provider": "openai"
//	}
package session

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/goccy/go-json"

	"github.com/risksurface/surf/pkg/debug"
)

// SchemaVersion is the current session file schema version.
const SchemaVersion = 1

// stateFileName is the filename for the persisted session.
const stateFileName = "session.json"

// State is the persisted session content.
type State struct {
	Version          int      `json:"version"`
	SelectedProject  string   `json:"selectedProject,omitempty"`
	AnalyzedProjects []string `json:"analyzedProjects,omitempty"`
	Provider         string   `json:"provider,omitempty"`
}

// Store reads and writes the session file.
type Store struct {
	path  string
	state State
}

// Path returns the session file path inside stateDir.
func Path(stateDir string) string {
	return filepath.Join(stateDir, stateFileName)
}

// Open loads the session from stateDir, returning an empty session when the
// file is missing or unreadable.
func Open(stateDir string) *Store {
	s := &Store{state: State{Version: SchemaVersion}}
	if stateDir == "" {
		return s // No persistence directory configured.
	}
	s.path = Path(stateDir)

	data, err := os.ReadFile(s.path)
	if err != nil {
		return s // First run, use defaults.
	}
	var loaded State
	if err := json.Unmarshal(data, &loaded); err != nil {
		debug.Log("session: invalid state file, using defaults: %v", err)
		return s
	}
	loaded.Version = SchemaVersion
	s.state = loaded
	return s
}

// Selected returns the persisted project selection, or "".
func (s *Store) Selected() string { return s.state.SelectedProject }

// Analyzed returns the persisted analyzed-projects set.
func (s *Store) Analyzed() []string { return s.state.AnalyzedProjects }

// Provider returns the persisted AI provider id, or "".
func (s *Store) Provider() string { return s.state.Provider }

// SetSelected records the current selection and saves.
func (s *Store) SetSelected(fullName string) error {
	s.state.SelectedProject = fullName
	return s.save()
}

// SetAnalyzed records the analyzed set (sorted for stable files) and saves.
func (s *Store) SetAnalyzed(fullNames []string) error {
	sorted := make([]string, len(fullNames))
	copy(sorted, fullNames)
	sort.Strings(sorted)
	s.state.AnalyzedProjects = sorted
	return s.save()
}

// SetProvider records the AI provider id and saves.
func (s *Store) SetProvider(provider string) error {
	s.state.Provider = provider
	return s.save()
}

// Clear wipes the session on logout. The provider id survives.
func (s *Store) Clear() error {
	s.state.SelectedProject = ""
	s.state.AnalyzedProjects = nil
	return s.save()
}

// save writes the session file, creating the state directory if needed.
func (s *Store) save() error {
	if s.path == "" {
		return nil // No persistence directory configured.
	}
	data, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling session: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("writing session: %w", err)
	}
	return nil
}
