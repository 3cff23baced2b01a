package ui

import (
	"github.com/risksurface/surf/pkg/api"
	"github.com/risksurface/surf/pkg/config"
)

// connStatusMsg carries the GitHub connection status.
type connStatusMsg struct {
	status api.ConnectionStatus
	err    error
}

// projectsMsg carries the fetched project list.
type projectsMsg struct {
	projects []api.Project
	err      error
}

// selectSettledMsg reports that the select-or-analyze call stamped with
// version finished. analyzed is true when the backend confirmed analysis.
type selectSettledMsg struct {
	version  uint64
	project  string
	analyzed bool
	err      error
}

// analysisMsg carries one tab's analysis response. expected is the project
// captured at request-issue time; version stamps the switch the request
// belongs to. The Update loop enforces both guards before committing.
type analysisMsg struct {
	tab      api.Tab
	version  uint64
	expected string
	env      api.Envelope
	err      error
}

// analysisRetryMsg fires after the identity-mismatch backoff to reissue a
// tab fetch.
type analysisRetryMsg struct {
	tab     api.Tab
	version uint64
}

// predictionsTickMsg drives the conditional-GET predictions poll.
type predictionsTickMsg struct{}

// predictionsUpdatedMsg reports a completed poll cycle.
type predictionsUpdatedMsg struct{}

// interpretationMsg carries the AI Analyst (or local fallback) narrative.
type interpretationMsg struct {
	tab     api.Tab
	version uint64
	text    string
	fromAI  bool
	warning string
}

// exportDoneMsg reports a finished report download.
type exportDoneMsg struct {
	path string
	err  error
}

// disconnectDoneMsg reports the backend disconnect call settling.
type disconnectDoneMsg struct {
	err error
}

// configChangedMsg carries a freshly reloaded config after the config file
// changed on disk.
type configChangedMsg struct {
	cfg config.Config
}

// clearStatusMsg expires a transient status-bar message.
type clearStatusMsg struct {
	id int
}
