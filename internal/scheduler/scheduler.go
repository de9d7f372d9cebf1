// Package scheduler keeps the caches warm on cron schedules, archives each
// fresh value and sends the daily digest.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"FlowSentinel/internal/errs"
	"FlowSentinel/internal/notifier"
	"FlowSentinel/internal/recorder"
	"FlowSentinel/internal/service"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const sendRetries = 3

// Notifier delivers a formatted message.
type Notifier interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

// Crons holds the six-field cron specs of each job.
type Crons struct {
	Snapshot string
	Burn     string
	RichList string
	Digest   string
}

// Scheduler manages all cron tasks.
type Scheduler struct {
	cron     *cron.Cron
	svc      *service.Service
	recorder recorder.Recorder
	notifier Notifier
	periods  []string
	logger   *zap.SugaredLogger
	ctx      context.Context
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct{ l *zap.SugaredLogger }

func (c cronLogger) Info(msg string, kv ...interface{}) { c.l.Debugw(msg, kv...) }

func (c cronLogger) Error(err error, msg string, kv ...interface{}) {
	c.l.Errorw(msg, append(kv, "error", err)...)
}

// New creates a Scheduler. n may be nil, which disables the digest.
// periods orders the burn periods in messages.
func New(ctx context.Context, svc *service.Service, rec recorder.Recorder, n Notifier, periods []string, logger *zap.SugaredLogger) *Scheduler {
	cl := cronLogger{logger}
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		svc:      svc,
		recorder: rec,
		notifier: n,
		periods:  periods,
		logger:   logger,
		ctx:      ctx,
	}
}

// Register adds a job for every enabled feature.
func (s *Scheduler) Register(c Crons) error {
	enabled := s.svc.Enabled()
	jobs := []struct {
		name string
		spec string
		on   bool
		fn   func()
	}{
		{"snapshot", c.Snapshot, true, s.warmSnapshot},
		{"burn", c.Burn, enabled[service.BucketBurn], s.warmBurn},
		{"richlist", c.RichList, enabled[service.BucketRichList], s.warmRichList},
		{"digest", c.Digest, s.notifier != nil, s.sendDigest},
	}
	for _, j := range jobs {
		if !j.on {
			s.logger.Infow("job not scheduled, feature disabled", "job", j.name)
			continue
		}
		if _, err := s.cron.AddFunc(j.spec, j.fn); err != nil {
			return fmt.Errorf("register %s job: %w", j.name, err)
		}
		s.logger.Infow("job scheduled", "job", j.name, "cron", j.spec)
	}
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started")
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// WarmUp runs every enabled warm-up job once.
func (s *Scheduler) WarmUp() {
	enabled := s.svc.Enabled()
	s.warmSnapshot()
	if enabled[service.BucketBurn] {
		s.warmBurn()
	}
	if enabled[service.BucketRichList] {
		s.warmRichList()
	}
}

func (s *Scheduler) warmSnapshot() {
	start := time.Now()
	res, err := s.svc.RefreshSnapshot(s.ctx)
	if err != nil {
		s.logger.Errorw("snapshot warm-up failed", "error", err)
		return
	}
	s.logger.Infow("snapshot warmed", "records", res.RecordCount(), "errors", len(res.Errors),
		"stale", res.Stale, "took", time.Since(start))
	if res.Stale {
		return
	}
	if err := s.recorder.RecordSnapshot(s.ctx, &res); err != nil {
		s.logger.Errorw("record snapshot failed", "error", err)
	}
}

func (s *Scheduler) warmBurn() {
	rep, err := s.svc.RefreshBurn(s.ctx)
	if err != nil {
		s.logger.Errorw("burn warm-up failed", "error", err)
		return
	}
	s.logger.Infow("burn warmed", "ledger", rep.LedgerIndex, "stale", rep.Stale)
	if rep.Stale {
		return
	}
	if err := s.recorder.RecordBurn(s.ctx, &rep); err != nil {
		s.logger.Errorw("record burn failed", "error", err)
	}
}

func (s *Scheduler) warmRichList() {
	list, err := s.svc.RefreshRichList(s.ctx)
	if err != nil {
		s.logger.Errorw("rich list warm-up failed", "error", err)
		return
	}
	s.logger.Infow("rich list warmed", "accounts", list.Stats.AccountCount, "stale", list.Stale)
	if list.Stale {
		return
	}
	if err := s.recorder.RecordRichList(s.ctx, &list); err != nil {
		s.logger.Errorw("record rich list failed", "error", err)
	}
}

// Digest builds the daily message from the cached paths.
func (s *Scheduler) Digest(ctx context.Context) string {
	d := notifier.Digest{AsOf: time.Now(), Periods: s.periods}

	if res, err := s.svc.Snapshot(ctx); err != nil {
		d.Failures = append(d.Failures, "snapshot: "+err.Error())
	} else {
		d.Snapshot = &res
	}
	if rep, err := s.svc.Burn(ctx); err == nil {
		d.Burn = &rep
	} else if !errors.Is(err, errs.ErrConfigurationMissing) {
		d.Failures = append(d.Failures, "burn: "+err.Error())
	}
	if list, err := s.svc.RichList(ctx); err == nil {
		d.RichList = &list
	} else if !errors.Is(err, errs.ErrConfigurationMissing) {
		d.Failures = append(d.Failures, "rich list: "+err.Error())
	}
	return notifier.FormatDigest(d)
}

func (s *Scheduler) sendDigest() {
	s.logger.Info("sending daily digest")
	s.trySend(s.Digest(s.ctx))
}

const help = "Commands:\n/etf - ETF volume snapshot\n/burn - XRP burned per period\n/richlist - rich list statistics"

// HandleCommand answers a chat command from the cached service paths.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	cmd, _, _ := strings.Cut(command, " ")
	cmd, _, _ = strings.Cut(cmd, "@")

	switch strings.ToLower(cmd) {
	case "/etf":
		res, err := s.svc.Snapshot(ctx)
		if err != nil {
			return failure("ETF snapshot", err)
		}
		return notifier.FormatSnapshot(&res)
	case "/burn":
		rep, err := s.svc.Burn(ctx)
		if err != nil {
			return failure("burn report", err)
		}
		return notifier.FormatBurn(&rep, s.periods)
	case "/richlist":
		list, err := s.svc.RichList(ctx)
		if err != nil {
			return failure("rich list", err)
		}
		return notifier.FormatRichList(&list)
	default:
		return help
	}
}

func failure(what string, err error) string {
	if errors.Is(err, errs.ErrConfigurationMissing) {
		return fmt.Sprintf("%s is not configured", what)
	}
	return fmt.Sprintf("❌ %s unavailable: %s", what, html.EscapeString(err.Error()))
}

func (s *Scheduler) trySend(text string) {
	if err := s.notifier.SendWithRetry(s.ctx, text, sendRetries); err != nil {
		s.logger.Errorw("send notification failed", "error", err)
	}
}
