package mysideline

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/url"
	"sync"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"

	"oldmanfooty-backend/lib/telemetry"
)

type FetchErrorKind string

const (
	FetchTimeout    FetchErrorKind = "timeout"
	FetchNetwork    FetchErrorKind = "network"
	FetchHttpStatus FetchErrorKind = "httpStatus"
	FetchDecode     FetchErrorKind = "decode"
)

type FetchError struct {
	Kind       FetchErrorKind
	Attempts   int
	LastStatus int
}

func (e *FetchError) Error() string {
	if e.LastStatus != 0 {
		return fmt.Sprintf("fetch failed (%s) after %d attempt(s), last status %d",
			e.Kind, e.Attempts, e.LastStatus)
	}
	return fmt.Sprintf("fetch failed (%s) after %d attempt(s)", e.Kind, e.Attempts)
}

const (
	backoffBase = 500 * time.Millisecond
	backoffCap  = 8 * time.Second
)

// Fetcher retrieves raw MySideline pages. It does no parsing, no
// persistence, and never logs page contents.
type Fetcher struct {
	http *resty.Client
	cfg  Config

	mu          sync.Mutex
	lastRequest time.Time
}

func NewFetcher(cfg Config) *Fetcher {
	client := resty.New()
	client.SetTimeout(cfg.RequestTimeout)
	client.SetHeader("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36")
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	telemetry.InstrumentResty(client, "mysideline/http")

	return &Fetcher{
		http: client,
		cfg:  cfg,
	}
}

func (f *Fetcher) FetchListing(ctx context.Context) ([]byte, error) {
	return f.get(ctx, f.cfg.ListingUrl)
}

func (f *Fetcher) FetchDetail(ctx context.Context, sourceId string) ([]byte, error) {
	link, err := url.Parse(f.cfg.DetailUrl)
	if err != nil {
		return nil, fmt.Errorf("detail url template: %w", err)
	}
	query := link.Query()
	query.Set("entity", sourceId)
	link.RawQuery = query.Encode()

	return f.get(ctx, link.String())
}

func (f *Fetcher) get(ctx context.Context, link string) ([]byte, error) {
	attempts := 0
	lastStatus := 0
	lastKind := FetchNetwork

	for attempts <= f.cfg.RetryAttempts {
		if attempts > 0 {
			err := f.sleep(ctx, backoffDelay(attempts))
			if err != nil {
				return nil, err
			}
		}
		err := f.waitSpacing(ctx)
		if err != nil {
			return nil, err
		}
		attempts++

		res, err := f.http.R().SetContext(ctx).Get(link)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastKind = FetchNetwork
			var netErr interface{ Timeout() bool }
			if errors.As(err, &netErr) && netErr.Timeout() || errors.Is(err, context.DeadlineExceeded) {
				lastKind = FetchTimeout
			}
			continue
		}

		status := res.StatusCode()
		if status >= 200 && status < 300 {
			body := res.Body()
			if len(body) == 0 {
				return nil, &FetchError{Kind: FetchDecode, Attempts: attempts, LastStatus: status}
			}
			return body, nil
		}

		lastStatus = status
		lastKind = FetchHttpStatus
		if status == 429 || status >= 500 {
			continue
		}
		// other 4xx will not get better by retrying
		break
	}

	return nil, &FetchError{Kind: lastKind, Attempts: attempts, LastStatus: lastStatus}
}

// backoffDelay is exponential from the base with full jitter, capped.
// attempt is 1-based (the retry about to be made).
func backoffDelay(attempt int) time.Duration {
	return time.Duration(rand.Int63n(int64(backoffCeiling(attempt)) + 1))
}

func backoffCeiling(attempt int) time.Duration {
	ceiling := backoffBase << (attempt - 1)
	if ceiling > backoffCap || ceiling <= 0 {
		ceiling = backoffCap
	}
	return ceiling
}

// waitSpacing enforces the minimum gap between distinct requests so a
// run doesn't hammer the source.
func (f *Fetcher) waitSpacing(ctx context.Context) error {
	f.mu.Lock()
	wait := f.cfg.RequestSpacing - time.Since(f.lastRequest)
	f.lastRequest = time.Now().Add(max(wait, 0))
	f.mu.Unlock()

	if wait <= 0 {
		return nil
	}
	return f.sleep(ctx, wait)
}

func (f *Fetcher) sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
