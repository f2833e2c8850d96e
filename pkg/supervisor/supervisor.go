package supervisor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"mediacrawl/pkg/browser"
	"mediacrawl/pkg/crawler"
	errs "mediacrawl/pkg/errors"
	"mediacrawl/pkg/logger"
	"mediacrawl/pkg/ratelimit"
	"mediacrawl/pkg/retry"
)

// Notifier receives lifecycle events worth surfacing to the operator
type Notifier interface {
	Notify(title, message string)
}

// Cycle describes one renderer lifetime
type Cycle struct {
	ID      string
	Number  int
	Started time.Time
	Ended   time.Time
	Halt    *crawler.Halt
	Err     error
}

// Reason summarizes why the cycle ended
func (c Cycle) Reason() string {
	switch {
	case c.Halt != nil:
		return c.Halt.Reason.Error()
	case c.Err != nil:
		return c.Err.Error()
	default:
		return "stopped"
	}
}

// Config wires a Supervisor. Queue, Store and Pacer outlive cycles; a fresh
// renderer is created for every cycle.
type Config struct {
	NewRenderer browser.Factory
	Session     crawler.SessionKeeper
	Queue       crawler.Queue
	Store       crawler.Store
	Pacer       ratelimit.Limiter

	SelectorWait time.Duration
	Backoff      retry.ClassifiedBackoff
	RestartDelay time.Duration

	Notifier Notifier
	Logger   logger.Logger

	OnCycleStart func(number int, id string)
	OnCycleEnd   func(Cycle)
	OnTransition func(from, to crawler.State, page int)
}

// Supervisor restarts the whole session whenever a crawl halts or fails
type Supervisor struct {
	cfg    Config
	logger logger.Logger
}

// New creates a supervisor
func New(cfg Config) *Supervisor {
	log := cfg.Logger
	if log == nil {
		log = logger.GetLogger()
	}
	return &Supervisor{cfg: cfg, logger: log}
}

// Run loops until ctx is cancelled, which is the only error it returns
func (s *Supervisor) Run(ctx context.Context) error {
	logger.LogComponentStart(s.logger, "supervisor", map[string]interface{}{
		"restart_delay": s.cfg.RestartDelay,
	})

	for n := 1; ; n++ {
		if err := ctx.Err(); err != nil {
			logger.LogComponentStop(s.logger, "supervisor", "shutdown")
			return err
		}

		cycle := s.runCycle(ctx, n)
		if err := ctx.Err(); err != nil {
			logger.LogComponentStop(s.logger, "supervisor", "shutdown")
			return err
		}

		s.report(cycle)
		if s.cfg.OnCycleEnd != nil {
			s.cfg.OnCycleEnd(cycle)
		}

		if err := retry.Wait(ctx, s.cfg.RestartDelay); err != nil {
			logger.LogComponentStop(s.logger, "supervisor", "shutdown")
			return err
		}
	}
}

// runCycle opens a renderer, logs in and crawls until a halt or error. The
// renderer is always closed before it returns.
func (s *Supervisor) runCycle(ctx context.Context, n int) (cycle Cycle) {
	cycle = Cycle{ID: uuid.NewString(), Number: n, Started: time.Now()}
	log := s.logger.WithFields(map[string]interface{}{
		"cycle":    n,
		"cycle_id": cycle.ID,
	})

	defer func() {
		if r := recover(); r != nil {
			cycle.Err = errs.New(errs.ErrorTypeUnknown, fmt.Sprintf("panic: %v", r))
		}
		cycle.Ended = time.Now()
	}()

	if s.cfg.OnCycleStart != nil {
		s.cfg.OnCycleStart(n, cycle.ID)
	}
	log.Info("Starting session cycle")

	r, err := s.cfg.NewRenderer(ctx)
	if err != nil {
		cycle.Err = errs.Wrap(errs.ErrorTypeDriver, err, "start renderer")
		return cycle
	}
	defer func() {
		if err := r.Close(); err != nil {
			log.WithError(err).Warn("Failed to close renderer")
		}
	}()

	if err := s.cfg.Session.Establish(ctx, r); err != nil {
		cycle.Err = err
		return cycle
	}

	c := crawler.New(crawler.Config{
		Renderer:     r,
		Session:      s.cfg.Session,
		Queue:        s.cfg.Queue,
		Store:        s.cfg.Store,
		Pacer:        s.cfg.Pacer,
		SelectorWait: s.cfg.SelectorWait,
		Backoff:      s.cfg.Backoff,
		Logger:       log,
		OnTransition: s.cfg.OnTransition,
	})
	cycle.Halt, cycle.Err = c.Run(ctx)
	return cycle
}

func (s *Supervisor) report(cycle Cycle) {
	fields := map[string]interface{}{
		"cycle":         cycle.Number,
		"cycle_id":      cycle.ID,
		"duration":      cycle.Ended.Sub(cycle.Started),
		"restart_delay": s.cfg.RestartDelay,
	}

	var title, message string
	switch {
	case cycle.Halt != nil:
		fields["page"] = cycle.Halt.Page
		fields["pages"] = cycle.Halt.Pages
		fields["downloaded"] = cycle.Halt.Summary.Downloaded
		fields["failed"] = cycle.Halt.Summary.Failed
		s.logger.InfoWithFields("Crawl halted, restarting session", fields)

		title = "Crawl halted"
		message = fmt.Sprintf("page %d: %s", cycle.Halt.Page, cycle.Halt.Reason)
		if errors.Is(cycle.Halt.Reason, crawler.ErrNoContainers) {
			message = fmt.Sprintf("no content on page %d, restarting", cycle.Halt.Page)
		}
	default:
		s.logger.WithError(cycle.Err).ErrorWithFields("Session cycle failed, restarting", fields)
		title = "Crawl restarting"
		message = cycle.Reason()
	}

	if s.cfg.Notifier != nil {
		s.cfg.Notifier.Notify(title, message)
	}
}
