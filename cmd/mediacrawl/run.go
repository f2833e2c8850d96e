package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"mediacrawl/internal/downloader"
	"mediacrawl/pkg/auth"
	"mediacrawl/pkg/browser"
	"mediacrawl/pkg/browser/chrome"
	"mediacrawl/pkg/checkpoint"
	"mediacrawl/pkg/config"
	"mediacrawl/pkg/crawler"
	"mediacrawl/pkg/fetcher"
	"mediacrawl/pkg/history"
	"mediacrawl/pkg/logger"
	"mediacrawl/pkg/ratelimit"
	"mediacrawl/pkg/retry"
	"mediacrawl/pkg/session"
	"mediacrawl/pkg/storage"
	"mediacrawl/pkg/supervisor"
	"mediacrawl/pkg/ui"
	"mediacrawl/pkg/ui/tui"
)

var (
	downloadDir string
	startPage   int
	headless    bool
	keepHistory bool
	useTUI      bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Crawl the configured thread (default command)",
	Long: `Log in, then walk the thread from the saved page onward, downloading every
image and video. The crawl never gives up on its own: when a page has no
posts or the browser breaks, the session is torn down and restarted.

Stop it with Ctrl+C. The next run resumes from the last completed page.`,
	Example: `  # Resume the crawl described by ./config.yaml
  mediacrawl

  # Start over from page 1 with a visible browser
  mediacrawl run --start-page 1 --headless=false

  # Full-screen dashboard
  mediacrawl run --tui`,
	Args: cobra.NoArgs,
	RunE: runCrawl,
}

func init() {
	addRunFlags(runCmd)
	rootCmd.AddCommand(runCmd)
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&downloadDir, "download-dir", "o", "", "base download directory (overrides download_dir)")
	cmd.Flags().IntVar(&startPage, "start-page", 0, "restart the crawl from this page, rewriting last_page")
	cmd.Flags().BoolVar(&headless, "headless", true, "run the browser without a window")
	cmd.Flags().BoolVar(&keepHistory, "history", false, "record every download attempt in the history journal")
	cmd.Flags().BoolVar(&useTUI, "tui", false, "show the full-screen dashboard")
}

// overridesFromFlags collects only the flags the user actually set
func overridesFromFlags(cmd *cobra.Command) config.Overrides {
	o := config.Overrides{
		DownloadDir: downloadDir,
		LogLevel:    logLevel,
	}
	if cmd.Flags().Changed("headless") {
		o.Headless = &headless
	}
	if cmd.Flags().Changed("history") {
		o.History = &keepHistory
	}
	return o
}

func runCrawl(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	path, err := resolveConfigPath()
	if err != nil {
		return err
	}

	// the store owns the document from here on
	store := checkpoint.NewStore(path, nil)
	doc, err := store.Load()
	if err != nil {
		return err
	}

	cfg := doc.Clone()
	cfg.MergeCommandLineFlags(overridesFromFlags(cmd))
	if notifications {
		cfg.Notifications.Enabled = true
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration in %s:\n%w", path, err)
	}

	var dashboard *tui.TUI
	if useTUI {
		dashboard = tui.NewTUI(cfg.PageURLPattern)
		if err := initTUILogger(cfg, dashboard); err != nil {
			return err
		}
	} else if err := logger.Initialize(&cfg.Logging); err != nil {
		return err
	}
	log := logger.GetLogger()
	store = checkpoint.NewStore(path, log.WithField("component", "checkpoint"))

	if startPage > 0 {
		if err := store.Backup(); err != nil {
			return err
		}
		doc.LastPage = startPage
		if err := store.Reset(doc); err != nil {
			return err
		}
	}

	credentials, err := auth.NewDefaultManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}
	password, err := credentials.ResolvePassword(cfg)
	if err != nil {
		if errors.Is(err, auth.ErrCredentialsNotFound) {
			auth.ShowCredentialHelp(os.Stderr, cfg.Username)
		}
		return err
	}

	app, err := assemble(cfg, password, store, log)
	if err != nil {
		return err
	}
	defer app.close()

	ui.PrintInfo("Thread", cfg.PageURLPattern)
	ui.PrintInfo("Downloads", app.ledger.Dir())
	ui.PrintInfo("Resume page", fmt.Sprint(mustLastPage(store, cfg)))

	if dashboard == nil {
		display := ui.NewProgressDisplay(ui.Output, cfg.PageURLPattern, verbose)
		app.observe(display, cfg)
		err = app.supervisor(cfg).Run(ctx)
		display.Complete()
		return ignoreInterrupt(err)
	}

	app.observeTUI(dashboard)
	return runWithDashboard(ctx, stop, dashboard, app.supervisor(cfg))
}

// runWithDashboard runs the crawl in the background and the dashboard in the
// foreground. Quitting the dashboard stops the crawl.
func runWithDashboard(ctx context.Context, stop context.CancelFunc, dashboard *tui.TUI, sup *supervisor.Supervisor) error {
	crawlDone := make(chan error, 1)
	go func() {
		crawlDone <- sup.Run(ctx)
	}()

	tuiDone := make(chan error, 1)
	go func() {
		tuiDone <- dashboard.Start()
	}()

	select {
	case err := <-crawlDone:
		dashboard.Stop()
		<-tuiDone
		return ignoreInterrupt(err)
	case err := <-tuiDone:
		stop()
		<-crawlDone
		return err
	}
}

func ignoreInterrupt(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func mustLastPage(store *checkpoint.Store, fallback *config.Config) int {
	doc, err := store.Load()
	if err != nil {
		return fallback.LastPage
	}
	return doc.LastPage
}

// crawlApp holds the process-wide components. The ledger and queue are built
// once and shared by every supervisor cycle.
type crawlApp struct {
	runID   string
	log     logger.Logger
	ledger  *storage.Manager
	client  *fetcher.Client
	queue   *downloader.Queue
	session *session.Manager
	store   *checkpoint.Store
	pacer   *ratelimit.Pacer
	journal *history.Journal

	onResult     []func(context.Context, downloader.Result)
	onTransition []func(from, to crawler.State, page int)
	onCycleStart []func(number int, id string)
	onCycleEnd   []func(supervisor.Cycle)
}

func assemble(cfg *config.Config, password string, store *checkpoint.Store, log logger.Logger) (*crawlApp, error) {
	ledger, err := storage.NewManagerWithLogger(cfg.DownloadPath(), log.WithField("component", "storage"))
	if err != nil {
		return nil, err
	}

	userAgent := cfg.Fetch.UserAgent
	if userAgent == "" {
		userAgent = cfg.Browser.UserAgent
	}
	client, err := fetcher.NewClient(userAgent, log.WithField("component", "fetcher"))
	if err != nil {
		return nil, err
	}

	app := &crawlApp{
		runID:  uuid.NewString(),
		log:    log,
		ledger: ledger,
		client: client,
		store:  store,
		pacer:  ratelimit.NewPacer(cfg.Timing.PageDelay),
	}

	if cfg.History.Enabled {
		journal, err := history.Open(cfg.HistoryPath())
		if err != nil {
			return nil, err
		}
		app.journal = journal
		app.onResult = append(app.onResult, app.recordAttempt)
	}

	app.queue = downloader.NewQueue(downloader.Config{
		Ledger:   ledger,
		Fetcher:  client,
		Failures: downloader.NewFailureLog(cfg.FailedLog),
		Timeout:  cfg.Timing.DownloadTimeout,
		Logger:   log.WithField("component", "downloader"),
		OnResult: app.result,
	})

	app.session = session.NewManager(session.Credentials{
		LoginURL: cfg.LoginURL,
		Username: cfg.Username,
		Password: password,
	}, session.Options{
		FormWait:   cfg.Timing.LoginFormWait,
		Settle:     cfg.Timing.LoginSettle,
		RetryDelay: cfg.Timing.LoginRetry,
		Layout:     session.VBulletinLayout(),
	}, log.WithField("component", "session"))
	if cfg.Fetch.ShareSessionCookies {
		app.session.SetCookieSink(client)
	}

	logger.LogComponentStart(log, "crawl", map[string]interface{}{
		"run_id":   app.runID,
		"existing": ledger.Count(),
		"history":  cfg.History.Enabled,
	})
	return app, nil
}

func (a *crawlApp) close() {
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			a.log.WithError(err).Warn("Failed to close history journal")
		}
	}
	logger.LogComponentStop(a.log, "crawl", "shutdown")
}

func (a *crawlApp) result(ctx context.Context, r downloader.Result) {
	for _, fn := range a.onResult {
		fn(ctx, r)
	}
}

func (a *crawlApp) recordAttempt(ctx context.Context, r downloader.Result) {
	err := a.journal.Record(ctx, history.Attempt{
		RunID:    a.runID,
		URL:      r.SourceURL,
		Filename: r.Filename,
		Outcome:  string(r.Outcome),
		Reason:   r.Reason,
		Bytes:    r.Bytes,
		Duration: r.Duration,
	})
	if err != nil {
		a.log.WithError(err).Debug("History record failed")
	}
}

// observe wires the line-mode progress display
func (a *crawlApp) observe(display *ui.ProgressDisplay, cfg *config.Config) {
	a.onResult = append(a.onResult, func(_ context.Context, r downloader.Result) {
		display.Record(r)
	})
	a.onTransition = append(a.onTransition, func(_, to crawler.State, page int) {
		// links are enqueued before the drain transition fires
		if to == crawler.StateEnqueueDrain {
			display.StartPage(page, a.queue.Len())
		}
	})
	a.onCycleEnd = append(a.onCycleEnd, func(c supervisor.Cycle) {
		page := 0
		if c.Halt != nil {
			page = c.Halt.Page
		}
		display.Halted(page, c.Reason(), cfg.Timing.RestartDelay)
	})
}

func (a *crawlApp) observeTUI(dashboard *tui.TUI) {
	a.onResult = append(a.onResult, dashboard.Result)
	a.onTransition = append(a.onTransition, dashboard.Transition, func(_, to crawler.State, page int) {
		if to == crawler.StateEnqueueDrain {
			dashboard.PageQueued(page, a.queue.Len())
		}
	})
	a.onCycleStart = append(a.onCycleStart, dashboard.CycleStarted)
	a.onCycleEnd = append(a.onCycleEnd, func(c supervisor.Cycle) {
		dashboard.CycleEnded(c.Reason())
	})
}

func (a *crawlApp) supervisor(cfg *config.Config) *supervisor.Supervisor {
	var notifier supervisor.Notifier
	if cfg.Notifications.Enabled {
		notifier = ui.NewNotifier(true)
	}

	return supervisor.New(supervisor.Config{
		NewRenderer: chromeFactory(cfg, a.log.WithField("component", "browser")),
		Session:     a.session,
		Queue:       a.queue,
		Store:       a.store,
		Pacer:       a.pacer,

		SelectorWait: cfg.Timing.SelectorWait,
		Backoff: retry.ClassifiedBackoff{
			Transient: cfg.Timing.DriverRetry,
			Other:     cfg.Timing.UnexpectedRetry,
		},
		RestartDelay: cfg.Timing.RestartDelay,

		Notifier: notifier,
		Logger:   a.log.WithField("component", "supervisor"),

		OnCycleStart: func(number int, id string) {
			for _, fn := range a.onCycleStart {
				fn(number, id)
			}
		},
		OnCycleEnd: func(c supervisor.Cycle) {
			for _, fn := range a.onCycleEnd {
				fn(c)
			}
		},
		OnTransition: func(from, to crawler.State, page int) {
			for _, fn := range a.onTransition {
				fn(from, to, page)
			}
		},
	})
}

func chromeFactory(cfg *config.Config, log logger.Logger) browser.Factory {
	opts := chrome.Options{
		Headless:        cfg.Browser.Headless,
		ExecPath:        cfg.Browser.ExecPath,
		UserAgent:       cfg.Browser.UserAgent,
		NavigateTimeout: cfg.Timing.NavigateTimeout,
	}
	return func(ctx context.Context) (browser.Renderer, error) {
		r, err := chrome.New(ctx, opts, log)
		if err != nil {
			return nil, err
		}
		return r, nil
	}
}
