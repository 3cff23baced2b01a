package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/risksurface/surf/internal/respcache"
	"github.com/risksurface/surf/pkg/api"
	"github.com/risksurface/surf/pkg/config"
	"github.com/risksurface/surf/pkg/debug"
	"github.com/risksurface/surf/pkg/export"
	"github.com/risksurface/surf/pkg/metrics"
	"github.com/risksurface/surf/pkg/poll"
	"github.com/risksurface/surf/pkg/session"
	"github.com/risksurface/surf/pkg/ui"
	"github.com/risksurface/surf/pkg/version"
	"github.com/risksurface/surf/pkg/watcher"
)

func main() {
	baseURL := flag.String("base-url", "", "Backend base URL (overrides config and SURF_BASE_URL)")
	projectFlag := flag.String("project", "", "Select a project on startup (owner/name)")
	tabFlag := flag.String("tab", "", "Open on this view (dashboard, topology, trajectory, impact, dependencies, concentration, temporal)")
	exportFlag := flag.String("export", "", "Export the chosen view and exit (pdf, csv, json); requires --project")
	robotFlag := flag.Bool("robot", false, "Print all views for --project as JSON and exit (implied when stdout is not a TTY)")
	setupFlag := flag.Bool("setup", false, "Run the interactive setup form")
	clearCacheFlag := flag.Bool("clear-cache", false, "Drop the cached poll responses and exit")
	versionFlag := flag.Bool("version", false, "Show version")
	help := flag.Bool("help", false, "Show help")
	flag.Parse()

	if *help {
		fmt.Println("Usage: surf [options]")
		fmt.Println("\nA terminal dashboard for RiskSurface repository analytics.")
		flag.PrintDefaults()
		os.Exit(0)
	}

	if *versionFlag {
		fmt.Printf("surf %s\n", version.Version)
		os.Exit(0)
	}

	cfg, cfgErr := config.Load()
	if cfgErr != nil {
		// Non-fatal: continue with defaults.
		debug.Log("main: loading config: %v", cfgErr)
		cfg = config.DefaultConfig()
	}
	if *baseURL != "" {
		cfg.BaseURL = *baseURL
	}

	if *setupFlag {
		if err := runSetup(&cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Setup failed: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	stateDir := config.StateDir()
	if *clearCacheFlag {
		if err := clearCache(stateDir); err != nil {
			fmt.Fprintf(os.Stderr, "Error clearing cache: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Cache cleared.")
		os.Exit(0)
	}

	if *tabFlag != "" && !api.Tab(*tabFlag).Valid() {
		fmt.Fprintf(os.Stderr, "Unknown view %q\n", *tabFlag)
		os.Exit(2)
	}

	client := api.New(cfg.BaseURL)

	if *exportFlag != "" {
		if err := runExport(client, *projectFlag, *tabFlag, *exportFlag); err != nil {
			fmt.Fprintf(os.Stderr, "Export failed: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	if *robotFlag || !term.IsTerminal(int(os.Stdout.Fd())) {
		if err := runRobot(client, *projectFlag, *tabFlag); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	sess := session.Open(stateDir)
	if *projectFlag != "" {
		_ = sess.SetSelected(*projectFlag)
	}
	if *tabFlag != "" {
		cfg.UI.DefaultTab = *tabFlag
	}

	// Persistent response cache keeps the predictions panel warm across
	// restarts and carries the conditional-GET validator.
	var store *respcache.Store
	if stateDir != "" {
		if s, err := respcache.Open(filepath.Join(stateDir, "responses.db")); err == nil {
			store = s
			defer store.Close()
		} else {
			debug.Log("main: opening response cache: %v", err)
		}
	}

	predictions := poll.New("/api/analysis/predictions", predictionsFetch(client),
		poll.WithStore(store))

	var cfgWatcher *watcher.Watcher
	cfgPath := config.ConfigPath()
	if cfgErr == nil && cfgPath != "" {
		if w, err := watcher.New(cfgPath); err == nil && w.Start() == nil {
			cfgWatcher = w
			defer w.Stop()
		}
	}

	m := ui.NewModel(client, cfg, cfgPath, sess, predictions, cfgWatcher)
	if err := runTUIProgram(m); err != nil {
		fmt.Fprintf(os.Stderr, "Error running surf: %v\n", err)
		os.Exit(1)
	}
}

// predictionsFetch adapts the predictions endpoint to the poll cache's
// conditional-fetch shape.
func predictionsFetch(client *api.Client) poll.Fetch {
	return func(ctx context.Context, ifModifiedSince string) ([]byte, string, error) {
		preds, lastModified, err := client.Predictions(ctx, ifModifiedSince)
		if err != nil {
			if errors.Is(err, api.ErrNotModified) {
				metrics.PredictionsNotModified.Hit()
			}
			return nil, "", err
		}
		metrics.PredictionsNotModified.Miss()
		body, err := json.Marshal(preds)
		return body, lastModified, err
	}
}

func clearCache(stateDir string) error {
	if stateDir == "" {
		return nil
	}
	path := filepath.Join(stateDir, "responses.db")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	store, err := respcache.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.Clear()
}

// runSetup walks through backend, default view, and AI provider choices and
// writes the config file.
func runSetup(cfg *config.Config) error {
	tabs := make([]huh.Option[string], 0, len(api.Tabs))
	for _, tab := range api.Tabs {
		tabs = append(tabs, huh.NewOption(string(tab), string(tab)))
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Backend URL").
				Description("Where the RiskSurface backend listens.").
				Value(&cfg.BaseURL).
				Validate(func(s string) error {
					if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
						return fmt.Errorf("must start with http:// or https://")
					}
					return nil
				}),
			huh.NewSelect[string]().
				Title("Default view").
				Options(tabs...).
				Value(&cfg.UI.DefaultTab),
			huh.NewSelect[string]().
				Title("AI Analyst provider").
				Description("Used for narrative interpretations; 'none' falls back to local summaries.").
				Options(
					huh.NewOption("none (local summaries)", ""),
					huh.NewOption("anthropic", "anthropic"),
					huh.NewOption("openai", "openai"),
				).
				Value(&cfg.AI.Provider),
		),
	).WithTheme(huh.ThemeDracula())
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		form = form.WithAccessible(true)
	}

	if err := form.Run(); err != nil {
		return err
	}
	if err := config.Save(*cfg); err != nil {
		return err
	}
	fmt.Printf("Saved %s\n", config.ConfigPath())
	return nil
}

// runExport selects the project and streams one report to the working
// directory.
func runExport(client *api.Client, project, tab, format string) error {
	if project == "" {
		return fmt.Errorf("--export requires --project")
	}
	f := api.ExportFormat(format)
	switch f {
	case api.ExportPDF, api.ExportCSV, api.ExportJSON:
	default:
		return fmt.Errorf("unknown format %q (want pdf, csv or json)", format)
	}
	t := api.Tab(tab)
	if tab == "" {
		t = api.TabDashboard
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := client.SelectProject(ctx, project); err != nil {
		return fmt.Errorf("selecting %s: %w", project, err)
	}
	path, err := export.Download(ctx, client, t, project, f, ".")
	if err != nil {
		return err
	}
	fmt.Println(path)
	return nil
}

// runRobot prints analytics as JSON for scripting: every view (or just
// --tab) for --project, fetched concurrently.
func runRobot(client *api.Client, project, tab string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if project == "" {
		projects, err := client.Projects(ctx)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(projects)
	}

	if err := client.SelectProject(ctx, project); err != nil {
		return fmt.Errorf("selecting %s: %w", project, err)
	}

	tabs := api.Tabs
	if tab != "" {
		tabs = []api.Tab{api.Tab(tab)}
	}

	var mu sync.Mutex
	result := make(map[string]json.RawMessage, len(tabs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, t := range tabs {
		g.Go(func() error {
			env, err := client.Analysis(gctx, t)
			if err != nil {
				return fmt.Errorf("%s: %w", t, err)
			}
			if env.Project.FullName != project {
				return fmt.Errorf("%s: backend returned %q, expected %q", t, env.Project.FullName, project)
			}
			mu.Lock()
			result[string(t)] = env.Analysis
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	out := struct {
		Project string                     `json:"project"`
		Views   map[string]json.RawMessage `json:"views"`
	}{Project: project, Views: result}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func runTUIProgram(m ui.Model) error {
	p := tea.NewProgram(
		m,
		tea.WithAltScreen(),
		tea.WithoutSignalHandler(),
	)

	runDone := make(chan struct{})

	// Graceful shutdown on SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-runDone:
			return
		case <-sigCh:
		}

		p.Quit()

		select {
		case <-runDone:
			return
		case <-sigCh:
		case <-time.After(5 * time.Second):
		}

		p.Kill()
	}()

	// Optional auto-quit for automated smoke tests: set SURF_TUI_AUTOCLOSE_MS.
	if v := os.Getenv("SURF_TUI_AUTOCLOSE_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			go func() {
				timer := time.NewTimer(time.Duration(ms) * time.Millisecond)
				defer timer.Stop()

				select {
				case <-runDone:
					return
				case <-timer.C:
				}

				p.Quit()

				select {
				case <-runDone:
					return
				case <-time.After(2 * time.Second):
				}

				p.Kill()
			}()
		}
	}

	_, err := p.Run()
	close(runDone)
	return err
}
