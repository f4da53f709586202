package timezone

import (
	"os"
	"time"
)

// DefaultName is the zone used when TZ is unset. Carnival dates and
// the cron schedule are defined in local Australian time.
const DefaultName = "Australia/Sydney"

var Location *time.Location

func init() {
	Location = load(os.Getenv("TZ"))
}

func load(name string) *time.Location {
	if name == "" {
		name = DefaultName
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

// force the timezone regardless of where the host ends up, dates
// drift if we trust the server's own zone when manipulating them
// based on <time.Time>.Year()/Month()/Day()
func Now() time.Time {
	return time.Now().In(Location)
}

// Date builds midnight of the given calendar day in the configured zone.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, Location)
}
