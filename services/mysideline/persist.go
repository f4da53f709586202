package mysideline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"oldmanfooty-backend/lib/carnivalstore"
)

// persistAction applies one classified candidate to the store. Creates
// and updates each run in their own transaction so one bad record
// can't take down the batch.
//
// A unique violation on source_id means another writer got there
// between snapshot and persist; the row is re-read and the write
// retried once as an update. A second violation surfaces as an error
// and the candidate is counted as errored by the caller.
func (s *Service) persistAction(ctx context.Context, a Action, now time.Time) error {
	switch a.Kind {
	case ActionCreate:
		_, err := s.carnivals.Create(ctx, asCarnival(a.Candidate, now))
		if errors.Is(err, carnivalstore.ErrDuplicateSourceId) {
			return s.retryAsUpdate(ctx, a.Candidate, now)
		}
		return err

	case ActionUpdate:
		err := s.carnivals.ApplyImport(ctx, a.TargetId, a.Patch, a.AdoptSourceId, now)
		if errors.Is(err, carnivalstore.ErrDuplicateSourceId) {
			// the adopted source id got claimed by a racing run
			return s.retryAsUpdate(ctx, a.Candidate, now)
		}
		return err
	}

	// blocked and skip never write
	return nil
}

func (s *Service) retryAsUpdate(ctx context.Context, c Candidate, now time.Time) error {
	stored, ok, err := s.carnivals.GetBySourceId(ctx, c.SourceId)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("source id %s conflicted but no row owns it", c.SourceId)
	}
	if stored.IsManuallyEntered {
		// the racing row is hand-owned, leave it alone
		return nil
	}
	patch, _ := computePatch(c, stored)
	if len(patch) == 0 {
		return nil
	}
	return s.carnivals.ApplyImport(ctx, stored.Id, patch, "", now)
}
