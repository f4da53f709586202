package mysideline

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const listingPage = `
<html><body>
<div class="search-results">
	<div data-entity-id="abc123">
		<h3 class="card-title">  Sydney  Masters Carnival </h3>
		<p class="card-venue">North Sydney Oval, Sydney NSW</p>
		<p class="card-date">20/06/2026</p>
		<a class="card-link" href="/register/clubsearch?entity=abc123">Register</a>
	</div>
	<div data-entity-id="def456">
		<h3 class="card-title">Brisbane Masters</h3>
		<p class="card-venue">Davies Park, West End QLD</p>
		<p class="card-date">11/07/2026</p>
		<a class="card-link" href="/register/clubsearch?entity=def456">Register</a>
	</div>
</div>
</body></html>`

func TestParseListing(t *testing.T) {
	raws, warnings, err := ParseListing([]byte(listingPage))
	if err != nil {
		t.Fatal(err)
	}
	require.Empty(t, warnings)
	require.Len(t, raws, 2)

	require.Equal(t, RawCandidate{
		SourceId:    "abc123",
		TitleRaw:    "Sydney Masters Carnival",
		LocationRaw: "North Sydney Oval, Sydney NSW",
		DateRaw:     "20/06/2026",
		DetailUrl:   "/register/clubsearch?entity=abc123",
	}, raws[0])
	require.Equal(t, "def456", raws[1].SourceId)
}

func TestParseListingMalformed(t *testing.T) {
	_, _, err := ParseListing([]byte(`<html><body><p>504 Gateway Time-out</p></body></html>`))
	require.Error(t, err)

	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	require.Equal(t, "listing", parseErr.Page)
}

func TestParseListingEmptyId(t *testing.T) {
	page := `
	<div class="search-results">
		<div data-entity-id="">
			<h3 class="card-title">No Identity Carnival</h3>
		</div>
		<div data-entity-id="ok1">
			<h3 class="card-title">Fine Carnival</h3>
		</div>
	</div>`

	raws, warnings, err := ParseListing([]byte(page))
	if err != nil {
		t.Fatal(err)
	}
	require.Len(t, warnings, 1)
	require.Len(t, raws, 1)
	require.Equal(t, "ok1", raws[0].SourceId)
}

func TestParseListingDuplicateId(t *testing.T) {
	page := `
	<div class="search-results">
		<div data-entity-id="dup"><h3 class="card-title">First Occurrence</h3></div>
		<div data-entity-id="other"><h3 class="card-title">Unrelated</h3></div>
		<div data-entity-id="dup"><h3 class="card-title">Second Occurrence</h3></div>
	</div>`

	raws, _, err := ParseListing([]byte(page))
	if err != nil {
		t.Fatal(err)
	}
	require.Len(t, raws, 2)
	// later occurrence wins but keeps the first position
	require.Equal(t, "dup", raws[0].SourceId)
	require.Equal(t, "Second Occurrence", raws[0].TitleRaw)
	require.Equal(t, "other", raws[1].SourceId)
}

const detailPage = `
<html><body>
<div class="event-detail">
	<h1 class="event-title">Sydney Masters Carnival 2026</h1>
	<p class="event-date">20-22 June 2026</p>
	<p class="event-venue">North Sydney Oval, 2 Miller St, North Sydney NSW 2060</p>
	<a class="register-button" href="/register/entry?entity=abc123">Register now</a>
	<img class="event-logo" src="/assets/logos/sydney-masters.png">
	<div class="contacts">
		<span class="contact-name">Jo Bloggs</span>
		<span class="contact-phone">0400 000 000</span>
		<a href="mailto:Jo.Bloggs@example.com">email the organiser</a>
	</div>
	<div class="event-description">Annual  masters carnival,
		all  welcome.</div>
</div>
</body></html>`

func TestParseDetail(t *testing.T) {
	det, err := ParseDetail([]byte(detailPage), "https://profile.mysideline.com.au/register/clubsearch")
	if err != nil {
		t.Fatal(err)
	}

	require.Equal(t, "Sydney Masters Carnival 2026", det.Title)
	require.Equal(t, "20-22 June 2026", det.DateRaw)
	require.Equal(t, "North Sydney Oval, 2 Miller St, North Sydney NSW 2060", det.LocationAddress)
	require.Equal(t, "https://profile.mysideline.com.au/register/entry?entity=abc123", det.RegistrationLink)
	require.Equal(t, "https://profile.mysideline.com.au/assets/logos/sydney-masters.png", det.LogoUrl)
	require.Equal(t, "Jo Bloggs", det.ContactName)
	require.Equal(t, "0400 000 000", det.ContactPhone)
	// mailto fallback, case preserved here, lowered during normalize
	require.Equal(t, "Jo.Bloggs@example.com", det.ContactEmail)
	require.Equal(t, "Annual masters carnival, all welcome.", det.Description)
}

func TestParseDetailMalformed(t *testing.T) {
	_, err := ParseDetail([]byte(`<html><body>nothing here</body></html>`), "")
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	require.Equal(t, "detail", parseErr.Page)
}
