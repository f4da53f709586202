package mysideline

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"oldmanfooty-backend/lib/carnivalstore"
	"oldmanfooty-backend/lib/testutil"
	"oldmanfooty-backend/services/mysideline/db"
)

// fakeMySideline serves a listing page and per-entity detail pages the
// same shape as the production site.
type fakeMySideline struct {
	cards   []fakeCard
	details map[string]fakeDetail
}

type fakeCard struct {
	SourceId string
	Title    string
	Venue    string
	Date     string
}

type fakeDetail struct {
	Title       string
	Date        string
	Venue       string
	Email       string
	Description string
}

func newFakeMySideline() *fakeMySideline {
	return &fakeMySideline{
		details: map[string]fakeDetail{},
	}
}

func (f *fakeMySideline) add(card fakeCard, detail fakeDetail) {
	f.cards = append(f.cards, card)
	f.details[card.SourceId] = detail
}

func (f *fakeMySideline) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/listing", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><div class="search-results">`)
		for _, c := range f.cards {
			fmt.Fprintf(w, `<div data-entity-id="%s">
				<h3 class="card-title">%s</h3>
				<p class="card-venue">%s</p>
				<p class="card-date">%s</p>
				<a class="card-link" href="/detail?entity=%s">Register</a>
			</div>`, c.SourceId, c.Title, c.Venue, c.Date, c.SourceId)
		}
		fmt.Fprint(w, `</div></body></html>`)
	})
	mux.HandleFunc("/detail", func(w http.ResponseWriter, r *http.Request) {
		d, ok := f.details[r.URL.Query().Get("entity")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprintf(w, `<html><body><div class="event-detail">
			<h1 class="event-title">%s</h1>
			<p class="event-date">%s</p>
			<p class="event-venue">%s</p>
			<a href="mailto:%s">contact</a>
			<div class="event-description">%s</div>
		</div></body></html>`, d.Title, d.Date, d.Venue, d.Email, d.Description)
	})
	return mux
}

func setupPipeline(t *testing.T) (*Service, *fakeMySideline, func()) {
	res, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "services/mysideline",
		DbSchema: carnivalstore.Schema + "\n" + db.Schema,
	})

	fake := newFakeMySideline()
	server := httptest.NewServer(fake.handler())

	cfg := DefaultConfig()
	cfg.ListingUrl = server.URL + "/listing"
	cfg.DetailUrl = server.URL + "/detail"
	cfg.RequestSpacing = time.Millisecond
	cfg.StaleDays = 36500

	service := NewService(context.Background(), cfg, res.DB)
	return service, fake, func() {
		server.Close()
		cleanup()
	}
}

// runOnce drives a full pipeline run synchronously and returns its
// audit record.
func runOnce(t *testing.T, s *Service) db.Run {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*30)
	defer cancel()

	result, err := s.TriggerRunNow(ctx)
	if err != nil {
		t.Fatal(err)
	}
	require.True(t, result.Accepted)
	s.wg.Wait()

	run, found, err := s.runs.Get(ctx, result.CorrelationId)
	if err != nil {
		t.Fatal(err)
	}
	require.True(t, found)
	return run
}

func TestPipelineCreatesAndConverges(t *testing.T) {
	service, fake, cleanup := setupPipeline(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*30)
	defer cancel()

	fake.add(
		fakeCard{SourceId: "abc123", Title: "Sydney Masters", Venue: "Sydney NSW", Date: "20/06/2026"},
		fakeDetail{
			Title:       "Sydney Masters Carnival",
			Date:        "20/06/2026",
			Venue:       "North Sydney Oval, Sydney NSW 2060",
			Email:       "Jo@Example.com",
			Description: "Annual carnival.",
		},
	)
	fake.add(
		fakeCard{SourceId: "def456", Title: "Brisbane Masters", Venue: "West End QLD", Date: "11/07/2026"},
		fakeDetail{
			Title: "Brisbane Masters",
			Date:  "11/07/2026",
			Venue: "Davies Park, West End QLD 4101",
		},
	)

	{
		run := runOnce(t, service)
		require.Equal(t, db.StatusOk, run.Status)
		require.Equal(t, db.Counters{Scanned: 2, Created: 2}, run.Counters)
		require.Empty(t, run.ErrorSummary)

		c, found, err := service.carnivals.GetBySourceId(ctx, "abc123")
		if err != nil {
			t.Fatal(err)
		}
		require.True(t, found)
		// detail page content supersedes the listing card
		require.Equal(t, "Sydney Masters Carnival", c.Title)
		require.Equal(t, "North Sydney Oval, Sydney NSW 2060", c.LocationAddress)
		require.Equal(t, "2026-06-20", c.Date)
		require.Equal(t, "NSW", c.State)
		require.Equal(t, "jo@example.com", c.OrganiserContactEmail)
		require.False(t, c.IsManuallyEntered)
		require.False(t, c.LastImportedAt.IsZero())
	}

	{
		// second run against the same pages changes nothing
		run := runOnce(t, service)
		require.Equal(t, db.StatusOk, run.Status)
		require.Equal(t, db.Counters{Scanned: 2, Skipped: 2}, run.Counters)
	}

	{
		// the source edits a venue: exactly one update flows through
		fake.details["abc123"] = fakeDetail{
			Title: "Sydney Masters Carnival",
			Date:  "20/06/2026",
			Venue: "Leichhardt Oval, Lilyfield NSW 2040",
			Email: "jo@example.com",
		}
		run := runOnce(t, service)
		require.Equal(t, db.StatusOk, run.Status)
		require.Equal(t, db.Counters{Scanned: 2, Updated: 1, Skipped: 1}, run.Counters)

		c, _, err := service.carnivals.GetBySourceId(ctx, "abc123")
		if err != nil {
			t.Fatal(err)
		}
		require.Equal(t, "Leichhardt Oval, Lilyfield NSW 2040", c.LocationAddress)
		// absent detail fields never blank stored data
		require.Equal(t, "Annual carnival.", c.Description)
	}
}

func TestPipelineRespectsManualRecords(t *testing.T) {
	service, fake, cleanup := setupPipeline(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*30)
	defer cancel()

	_, err := service.carnivals.Create(ctx, carnivalstore.Carnival{
		SourceId:          "abc123",
		Title:             "Hand Entered Carnival",
		Date:              "2026-06-20",
		State:             "NSW",
		IsManuallyEntered: true,
		IsActive:          true,
	})
	if err != nil {
		t.Fatal(err)
	}

	fake.add(
		fakeCard{SourceId: "abc123", Title: "Sydney Masters", Venue: "Sydney NSW", Date: "20/06/2026"},
		fakeDetail{Title: "Sydney Masters", Date: "20/06/2026", Venue: "Sydney NSW"},
	)

	run := runOnce(t, service)
	require.Equal(t, db.StatusOk, run.Status)
	require.Equal(t, db.Counters{Scanned: 1, Blocked: 1}, run.Counters)

	c, _, err := service.carnivals.GetBySourceId(ctx, "abc123")
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, "Hand Entered Carnival", c.Title)
}

func TestPipelineAdoptsUnlinkedRecord(t *testing.T) {
	service, fake, cleanup := setupPipeline(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*30)
	defer cancel()

	// a record the website created before the import existed
	id, err := service.carnivals.Create(ctx, carnivalstore.Carnival{
		Title:    "Sydney Masters Carnival",
		Date:     "2026-06-20",
		State:    "NSW",
		IsActive: true,
	})
	if err != nil {
		t.Fatal(err)
	}

	fake.add(
		fakeCard{SourceId: "abc123", Title: "Sydney Masters Carnival", Venue: "Sydney NSW", Date: "20/06/2026"},
		fakeDetail{
			Title: "Sydney Masters Carnival",
			Date:  "20/06/2026",
			Venue: "North Sydney Oval, Sydney NSW 2060",
		},
	)

	run := runOnce(t, service)
	require.Equal(t, db.StatusOk, run.Status)
	require.Equal(t, db.Counters{Scanned: 1, Updated: 1}, run.Counters)

	c, found, err := service.carnivals.GetBySourceId(ctx, "abc123")
	if err != nil {
		t.Fatal(err)
	}
	require.True(t, found)
	require.Equal(t, id, c.Id)

	// no duplicate row was created
	snap, err := service.carnivals.Snapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	require.Len(t, snap, 1)
}

func TestPipelineSkipsUnusableCandidates(t *testing.T) {
	service, fake, cleanup := setupPipeline(t)
	defer cleanup()

	fake.add(
		fakeCard{SourceId: "nostate", Title: "Mystery Venue", Venue: "Somewhere Oval", Date: "20/06/2026"},
		fakeDetail{Title: "Mystery Venue", Date: "20/06/2026", Venue: "Somewhere Oval"},
	)
	fake.add(
		fakeCard{SourceId: "nodate", Title: "Mystery Date", Venue: "Sydney NSW", Date: "TBC"},
		fakeDetail{Title: "Mystery Date", Date: "TBC", Venue: "Sydney NSW"},
	)

	run := runOnce(t, service)
	require.Equal(t, db.StatusOk, run.Status)
	require.Equal(t, db.Counters{Scanned: 2, Skipped: 2}, run.Counters)
}

func TestPipelineMalformedListingFails(t *testing.T) {
	res, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "services/mysideline:malformed",
		DbSchema: carnivalstore.Schema + "\n" + db.Schema,
	})
	defer cleanup()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><p>504 Gateway Time-out</p></body></html>`)
	}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.ListingUrl = server.URL + "/listing"
	cfg.DetailUrl = server.URL + "/detail"
	cfg.RequestSpacing = time.Millisecond

	service := NewService(context.Background(), cfg, res.DB)

	run := runOnce(t, service)
	require.Equal(t, db.StatusFailed, run.Status)
	require.Contains(t, run.ErrorSummary, "listing parse")
	require.Equal(t, db.Counters{}, run.Counters)
}

func TestPipelineDegradedDetail(t *testing.T) {
	service, fake, cleanup := setupPipeline(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*30)
	defer cancel()

	// listing knows the card but the detail page 404s; the
	// listing-derived fields still import
	fake.cards = append(fake.cards, fakeCard{
		SourceId: "abc123",
		Title:    "Sydney Masters",
		Venue:    "North Sydney Oval, Sydney NSW",
		Date:     "20/06/2026",
	})

	run := runOnce(t, service)
	require.Equal(t, db.StatusOk, run.Status)
	require.Equal(t, db.Counters{Scanned: 1, Created: 1}, run.Counters)

	c, found, err := service.carnivals.GetBySourceId(ctx, "abc123")
	if err != nil {
		t.Fatal(err)
	}
	require.True(t, found)
	require.Equal(t, "Sydney Masters", c.Title)
	require.Equal(t, "NSW", c.State)
}

func TestTriggerSingleFlight(t *testing.T) {
	service, _, cleanup := setupPipeline(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*30)
	defer cancel()

	// occupy the reservation directly, as if a run were mid-flight
	err := service.runs.Begin(ctx, "winner", time.Now())
	if err != nil {
		t.Fatal(err)
	}

	result, err := service.TriggerRunNow(ctx)
	if err != nil {
		t.Fatal(err)
	}
	require.False(t, result.Accepted)
	require.Equal(t, ReasonRunInProgress, result.Reason)
	// the loser learns who holds the reservation
	require.Equal(t, "winner", result.CorrelationId)

	// release and the next trigger goes through
	err = service.runs.Finish(ctx, "winner", db.StatusOk, db.Counters{}, "", time.Now())
	if err != nil {
		t.Fatal(err)
	}
	result, err = service.TriggerRunNow(ctx)
	if err != nil {
		t.Fatal(err)
	}
	require.True(t, result.Accepted)
	service.wg.Wait()
}

func TestTriggerSyncDisabled(t *testing.T) {
	service, _, cleanup := setupPipeline(t)
	defer cleanup()
	service.cfg.SyncEnabled = false

	result, err := service.TriggerRunNow(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	require.False(t, result.Accepted)
	require.Equal(t, ReasonSyncDisabled, result.Reason)
	require.Empty(t, result.CorrelationId)
}

func TestRunScrapingDisabled(t *testing.T) {
	service, fake, cleanup := setupPipeline(t)
	defer cleanup()
	service.cfg.ScrapingEnabled = false

	fake.add(
		fakeCard{SourceId: "abc123", Title: "Sydney Masters", Venue: "Sydney NSW", Date: "20/06/2026"},
		fakeDetail{Title: "Sydney Masters", Date: "20/06/2026", Venue: "Sydney NSW"},
	)

	run := runOnce(t, service)
	require.Equal(t, db.StatusOk, run.Status)
	require.Equal(t, db.Counters{}, run.Counters)

	ctx := context.Background()
	snap, err := service.carnivals.Snapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	require.Empty(t, snap)
}
