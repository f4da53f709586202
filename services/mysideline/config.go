package mysideline

import (
	"os"
	"strconv"
	"time"
)

// Config carries every knob the pipeline reads. Values come from the
// MYSIDELINE_* environment but tests construct the struct directly.
type Config struct {
	// listing page with every registerable carnival
	ListingUrl string
	// per-record detail page; the source id is appended as a query parameter
	DetailUrl string

	// master enable of the scheduler (cron and manual triggers)
	SyncEnabled bool
	// when false a triggered run is a no-op that touches no network
	ScrapingEnabled bool

	RequestTimeout time.Duration
	RetryAttempts  int
	// minimum spacing between distinct requests within one run
	RequestSpacing time.Duration

	// cron expression for scheduled runs, evaluated in Sydney time
	Schedule string
	// delay before the first run after boot
	StartupDelay time.Duration

	// candidates dated further in the past than this are skipped as stale
	StaleDays int
	// cap on parallel detail fetches
	DetailConcurrency int
	DescriptionMaxLen int
	// number of error messages sampled into the run's audit record
	ErrorSampleLimit int
	// terminal runs kept in the audit table
	RunHistoryLimit int
}

func DefaultConfig() Config {
	return Config{
		ListingUrl:        "https://profile.mysideline.com.au/register/clubsearch?activity=masters",
		DetailUrl:         "https://profile.mysideline.com.au/register/clubsearch",
		SyncEnabled:       true,
		ScrapingEnabled:   true,
		RequestTimeout:    10 * time.Second,
		RetryAttempts:     3,
		RequestSpacing:    250 * time.Millisecond,
		Schedule:          "0 3 * * *",
		StartupDelay:      time.Second,
		StaleDays:         365,
		DetailConcurrency: 4,
		DescriptionMaxLen: 4000,
		ErrorSampleLimit:  10,
		RunHistoryLimit:   100,
	}
}

// ConfigFromEnv layers the MYSIDELINE_* environment over the defaults.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()

	if v := os.Getenv("MYSIDELINE_URL"); v != "" {
		cfg.ListingUrl = v
	}
	if v := os.Getenv("MYSIDELINE_EVENT_URL"); v != "" {
		cfg.DetailUrl = v
	}
	cfg.SyncEnabled = envBool("MYSIDELINE_SYNC_ENABLED", cfg.SyncEnabled)
	cfg.ScrapingEnabled = envBool("MYSIDELINE_ENABLE_SCRAPING", cfg.ScrapingEnabled)
	if ms, ok := envInt("MYSIDELINE_REQUEST_TIMEOUT"); ok {
		cfg.RequestTimeout = time.Duration(ms) * time.Millisecond
	}
	if n, ok := envInt("MYSIDELINE_RETRY_ATTEMPTS"); ok {
		cfg.RetryAttempts = n
	}
	if v := os.Getenv("MYSIDELINE_SCHEDULE"); v != "" {
		cfg.Schedule = v
	}
	if n, ok := envInt("MYSIDELINE_STALE_DAYS"); ok {
		cfg.StaleDays = n
	}
	if n, ok := envInt("MYSIDELINE_DETAIL_CONCURRENCY"); ok && n > 0 {
		cfg.DetailConcurrency = n
	}

	return cfg
}

func envBool(name string, fallback bool) bool {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func envInt(name string) (int, bool) {
	v := os.Getenv(name)
	if v == "" {
		return 0, false
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return parsed, true
}
