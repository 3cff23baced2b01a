package ui

import (
	"context"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/risksurface/surf/pkg/api"
	"github.com/risksurface/surf/pkg/config"
	"github.com/risksurface/surf/pkg/export"
	"github.com/risksurface/surf/pkg/watcher"
)

// requestTimeout bounds every command-issued backend call.
const requestTimeout = 30 * time.Second

func fetchStatusCmd(client *api.Client) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		status, err := client.Status(ctx)
		return connStatusMsg{status: status, err: err}
	}
}

func fetchProjectsCmd(client *api.Client) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		projects, err := client.Projects(ctx)
		return projectsMsg{projects: projects, err: err}
	}
}

// selectProjectCmd performs the backend half of a switch: a cheap selection
// for already-analyzed projects, a full analyze otherwise. The result is
// stamped with the switch version so a superseded call settles harmlessly.
func selectProjectCmd(client *api.Client, project api.Project, version uint64, alreadyAnalyzed bool) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		if alreadyAnalyzed {
			err := client.SelectProject(ctx, project.FullName)
			return selectSettledMsg{version: version, project: project.FullName, analyzed: err == nil && alreadyAnalyzed, err: err}
		}
		result, err := client.Analyze(ctx, project.Owner, project.Name)
		return selectSettledMsg{version: version, project: project.FullName, analyzed: err == nil && result.Success, err: err}
	}
}

// fetchAnalysisCmd fetches one tab's slice, stamped with the expected
// project and switch version for the commit guards.
func fetchAnalysisCmd(client *api.Client, tab api.Tab, expected string, version uint64) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		env, err := client.Analysis(ctx, tab)
		return analysisMsg{tab: tab, version: version, expected: expected, env: env, err: err}
	}
}

// retryAnalysisCmd schedules the single identity-mismatch retry. The delay
// covers the backend settling its own selection pointer; it is a tunable,
// not a contract.
func retryAnalysisCmd(tab api.Tab, version uint64, backoff time.Duration) tea.Cmd {
	return tea.Tick(backoff, func(time.Time) tea.Msg {
		return analysisRetryMsg{tab: tab, version: version}
	})
}

// fetchInterpretationCmd asks the backend AI proxy for a narrative. Any
// failure, and the unconfigured-provider case, falls back to the local
// generator (handled by the caller via localNarrative).
func fetchInterpretationCmd(client *api.Client, tab api.Tab, project, provider, fallback string, version uint64) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		interp, err := client.Interpretation(ctx, tab, project, provider)
		if err != nil || !interp.Success || interp.Interpretation == "" {
			return interpretationMsg{tab: tab, version: version, text: fallback, fromAI: false}
		}
		return interpretationMsg{
			tab:     tab,
			version: version,
			text:    interp.Interpretation,
			fromAI:  true,
			warning: strings.Join(interp.Warnings, "; "),
		}
	}
}

func disconnectCmd(client *api.Client) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return disconnectDoneMsg{err: client.Disconnect(ctx)}
	}
}

func exportCmd(client *api.Client, tab api.Tab, project string, format api.ExportFormat, dir string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		path, err := export.Download(ctx, client, tab, project, format, dir)
		return exportDoneMsg{path: path, err: err}
	}
}

// predictionsTickCmd schedules the next predictions poll.
func predictionsTickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(time.Time) tea.Msg {
		return predictionsTickMsg{}
	})
}

// pollPredictionsCmd runs one conditional poll cycle off the UI thread.
func pollPredictionsCmd(m *Model) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		m.predictions.Tick(ctx)
		return predictionsUpdatedMsg{}
	}
}

// refetchPredictionsCmd forces an unconditional predictions fetch.
func refetchPredictionsCmd(m *Model) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		m.predictions.Refetch(ctx)
		return predictionsUpdatedMsg{}
	}
}

// watchConfigCmd waits for the next config-file change and reloads.
func watchConfigCmd(w *watcher.Watcher, path string) tea.Cmd {
	if w == nil {
		return nil
	}
	return func() tea.Msg {
		<-w.Changed()
		cfg, err := config.LoadFrom(path)
		if err != nil {
			return nil
		}
		return configChangedMsg{cfg: cfg}
	}
}

// expireStatusCmd clears a transient status message after a short delay.
func expireStatusCmd(id int) tea.Cmd {
	return tea.Tick(4*time.Second, func(time.Time) tea.Msg {
		return clearStatusMsg{id: id}
	})
}
