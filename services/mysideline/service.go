package mysideline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"

	"oldmanfooty-backend/lib/carnivalstore"
	"oldmanfooty-backend/lib/timezone"
	"oldmanfooty-backend/services/mysideline/db"
)

var tracer = otel.Tracer("services/mysideline")

// Service owns the MySideline ingestion pipeline: the cron schedule,
// the scraping client and the reconciliation against the carnival
// store. One instance per process.
type Service struct {
	cfg       Config
	carnivals carnivalstore.Store
	runs      db.RunStore
	fetcher   *Fetcher

	cron *cron.Cron
	ctx  context.Context
	wg   sync.WaitGroup
}

func NewService(ctx context.Context, cfg Config, database *sql.DB) *Service {
	return &Service{
		cfg:       cfg,
		carnivals: carnivalstore.NewStore(database),
		runs:      db.NewRunStore(database),
		fetcher:   NewFetcher(cfg),
		ctx:       ctx,
	}
}

// TriggerResult reports the outcome of a manual trigger. When another
// run already holds the reservation, Accepted is false and
// CorrelationId carries the running run's id so the operator can
// follow it instead.
type TriggerResult struct {
	Accepted      bool   `json:"accepted"`
	Reason        string `json:"reason,omitempty"`
	CorrelationId string `json:"correlationId"`
}

// TriggerRunNow starts an ingestion run unless one is already in
// flight. The run itself proceeds asynchronously.
func (s *Service) TriggerRunNow(ctx context.Context) (TriggerResult, error) {
	if !s.cfg.SyncEnabled {
		return TriggerResult{Reason: ReasonSyncDisabled}, nil
	}

	cid := uuid.NewString()
	err := s.runs.Begin(ctx, cid, timezone.Now())
	if errors.Is(err, db.ErrRunInProgress) {
		running, lookupErr := s.runs.RunningCorrelationId(ctx)
		if lookupErr != nil {
			return TriggerResult{}, lookupErr
		}
		return TriggerResult{
			Reason:        ReasonRunInProgress,
			CorrelationId: running,
		}, nil
	}
	if err != nil {
		return TriggerResult{}, err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runPipeline(s.ctx, cid)
	}()
	return TriggerResult{Accepted: true, CorrelationId: cid}, nil
}

func (s *Service) GetRunStatus(ctx context.Context, correlationId string) (db.Run, bool, error) {
	return s.runs.Get(ctx, correlationId)
}

func (s *Service) ListRecentRuns(ctx context.Context, limit int) ([]db.Run, error) {
	return s.runs.ListRecent(ctx, limit)
}

func (s *Service) GetStats(ctx context.Context, windowDays int) (db.Stats, error) {
	return s.runs.Stats(ctx, windowDays, timezone.Now())
}

// Start recovers any run abandoned by a previous process, then
// installs the cron schedule and kicks off the startup run.
func (s *Service) Start() error {
	released, err := s.runs.ReleaseStale(s.ctx, timezone.Now())
	if err != nil {
		return fmt.Errorf("failed to release stale runs: %w", err)
	}
	if released > 0 {
		slog.WarnContext(s.ctx, "released abandoned runs from previous process",
			"count", released)
	}

	if !s.cfg.SyncEnabled {
		slog.InfoContext(s.ctx, "mysideline sync disabled, scheduler not started")
		return nil
	}

	s.cron = cron.New(
		cron.WithLocation(timezone.Location),
		cron.WithLogger(cronLogger{}),
	)
	_, err = s.cron.AddFunc(s.cfg.Schedule, func() {
		result, err := s.TriggerRunNow(s.ctx)
		if err != nil {
			slog.ErrorContext(s.ctx, "scheduled run failed to start", "err", err)
			return
		}
		if !result.Accepted {
			slog.WarnContext(s.ctx, "scheduled run overlapped a running run",
				"running_correlation_id", result.CorrelationId)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to install schedule %q: %w", s.cfg.Schedule, err)
	}
	s.cron.Start()
	slog.InfoContext(s.ctx, "mysideline scheduler started",
		"schedule", s.cfg.Schedule, "timezone", timezone.Location.String())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		select {
		case <-s.ctx.Done():
			return
		case <-time.After(s.cfg.StartupDelay):
		}
		result, err := s.TriggerRunNow(s.ctx)
		if err != nil {
			slog.ErrorContext(s.ctx, "startup run failed to start", "err", err)
			return
		}
		if result.Accepted {
			slog.InfoContext(s.ctx, "startup run triggered",
				"correlation_id", result.CorrelationId)
		}
	}()
	return nil
}

// Stop halts the scheduler and waits for any in-flight run to write
// its terminal record.
func (s *Service) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
	s.wg.Wait()
}

type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	slog.Info("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	slog.Error("cron: "+msg, append([]any{"err", err}, keysAndValues...)...)
}
