package mysideline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"oldmanfooty-backend/lib/timezone"
	"oldmanfooty-backend/services/mysideline/db"
)

// runPipeline executes one full ingestion run. The caller has already
// inserted the running IngestionRun row (the single-flight lock); this
// function owns the run until it writes the terminal status, on every
// exit path including panic.
func (s *Service) runPipeline(ctx context.Context, cid string) {
	ctx, span := tracer.Start(ctx, "mysideline:run")
	span.SetAttributes(attribute.String("correlation_id", cid))
	defer span.End()

	log := slog.With("correlation_id", cid)
	start := timezone.Now()
	counters := db.Counters{}
	sampler := newErrorSampler(s.cfg.ErrorSampleLimit)
	status := db.StatusFailed

	defer func() {
		if r := recover(); r != nil {
			status = db.StatusFailed
			sampler.add(fmt.Sprintf("panic: %v", r))
			span.SetStatus(codes.Error, fmt.Sprintf("panic: %v", r))
		}
		s.finishRun(cid, status, counters, sampler.summary())
		log.InfoContext(ctx, "run finished",
			"status", status,
			"scanned", counters.Scanned,
			"created", counters.Created,
			"updated", counters.Updated,
			"blocked", counters.Blocked,
			"skipped", counters.Skipped,
			"errored", counters.Errored,
		)
	}()

	if !s.cfg.ScrapingEnabled {
		log.InfoContext(ctx, "scraping disabled, run is a no-op")
		status = db.StatusOk
		return
	}

	log.InfoContext(ctx, "run started", "listing_url", s.cfg.ListingUrl)

	listing, err := s.fetcher.FetchListing(ctx)
	if err != nil {
		log.ErrorContext(ctx, "listing fetch failed", "err", err)
		sampler.add(fmt.Sprintf("listing fetch: %v", err))
		return
	}

	raws, warnings, err := ParseListing(listing)
	if err != nil {
		log.ErrorContext(ctx, "listing parse failed", "err", err)
		sampler.add(fmt.Sprintf("listing parse: %v", err))
		return
	}
	for _, w := range warnings {
		log.WarnContext(ctx, "listing parser warning", "warning", w)
	}
	counters.Scanned = int64(len(raws))

	enrichedList := s.enrichCandidates(ctx, raws)
	cands := make([]Candidate, len(enrichedList))
	for i, e := range enrichedList {
		cands[i] = normalize(e, s.cfg)
	}

	rows, err := s.carnivals.Snapshot(ctx)
	if err != nil {
		log.ErrorContext(ctx, "store snapshot failed", "err", err)
		sampler.add(fmt.Sprintf("store snapshot: %v", err))
		return
	}
	snap := indexSnapshot(rows)

	// phase 1: classify everything against the snapshot
	var actions []Action
	classified := 0
	for _, c := range cands {
		if ctx.Err() != nil {
			break
		}
		actions = append(actions, classify(c, snap, s.cfg, start))
		classified++
	}

	// phase 2: persist in listing order
	persisted := 0
	for _, a := range actions {
		if ctx.Err() != nil {
			break
		}
		switch a.Kind {
		case ActionBlocked:
			counters.Blocked++
			log.InfoContext(ctx, "candidate blocked",
				"source_id", a.Candidate.SourceId, "reason", a.Reason)
		case ActionSkip:
			counters.Skipped++
			log.DebugContext(ctx, "candidate skipped",
				"source_id", a.Candidate.SourceId, "reason", a.Reason)
		case ActionCreate, ActionUpdate:
			err := s.persistAction(ctx, a, timezone.Now())
			if err != nil {
				counters.Errored++
				log.ErrorContext(ctx, "persist failed",
					"source_id", a.Candidate.SourceId, "kind", a.Kind.String(), "err", err)
				sampler.add(fmt.Sprintf("%s %s: %v", a.Kind, a.Candidate.SourceId, err))
				break
			}
			if a.Kind == ActionCreate {
				counters.Created++
			} else {
				counters.Updated++
			}
		}
		persisted++
	}

	// anything never classified or never persisted was cancelled
	remaining := int64(len(cands) - persisted)
	if remaining > 0 {
		counters.Skipped += remaining
		log.WarnContext(ctx, "run cancelled before completion",
			"remaining", remaining, "reason", ReasonCancelled)
	}

	status = terminalStatus(ctx.Err() != nil, classified, counters.Errored)
}

// terminalStatus decides the run's final state. A cancelled run is
// partial when reconciliation got anywhere, failed when the signal
// arrived before anything was classified. Errored candidates degrade
// an otherwise clean run to partial.
func terminalStatus(cancelled bool, classified int, errored int64) string {
	switch {
	case cancelled:
		if classified > 0 {
			return db.StatusPartial
		}
		return db.StatusFailed
	case errored > 0:
		return db.StatusPartial
	default:
		return db.StatusOk
	}
}

// finishRun writes the terminal audit record. Audit failures never
// propagate: a broken audit store costs us the record, not the run.
func (s *Service) finishRun(cid, status string, counters db.Counters, errorSummary string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := s.runs.Finish(ctx, cid, status, counters, errorSummary, timezone.Now())
	if err != nil {
		fmt.Fprintf(os.Stderr, "mysideline: failed to record run %s: %v\n", cid, err)
		return
	}
	err = s.runs.Prune(ctx, s.cfg.RunHistoryLimit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mysideline: failed to prune run history: %v\n", err)
	}
}
