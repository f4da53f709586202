package mysideline

import (
	"bytes"
	"context"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/semaphore"

	"oldmanfooty-backend/lib/htmlutil"
	"oldmanfooty-backend/lib/textutil"
)

// enriched pairs a listing candidate with whatever its detail page
// yielded. Degraded means the detail fetch or parse failed and only
// the listing-derived fields are usable.
type enriched struct {
	Raw      RawCandidate
	Detail   Detail
	Degraded bool
}

// ParseDetail extracts the per-record fields from a detail page. All
// fields are best-effort; an unrecognizable page returns a ParseError.
func ParseDetail(body []byte, pageUrl string) (Detail, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return Detail{}, &ParseError{Page: "detail", Detail: err.Error()}
	}

	root := doc.Find("div.event-detail")
	if root.Length() == 0 {
		return Detail{}, &ParseError{Page: "detail", Detail: "no event-detail container"}
	}

	base, _ := url.Parse(pageUrl)

	det := Detail{
		Title:           htmlutil.CleanText(root.Find(".event-title").First()),
		DateRaw:         htmlutil.CleanText(root.Find(".event-date").First()),
		LocationAddress: htmlutil.CleanText(root.Find(".event-venue").First()),
		ContactName:     htmlutil.CleanText(root.Find(".contact-name").First()),
		ContactPhone:    htmlutil.CleanText(root.Find(".contact-phone").First()),
		Description:     htmlutil.CleanText(root.Find(".event-description").First()),
	}

	det.RegistrationLink = htmlutil.ResolveHref(base,
		root.Find("a.register-button").First().AttrOr("href", ""))

	if logo, ok := root.Find("img.event-logo").First().Attr("src"); ok {
		det.LogoUrl = htmlutil.ResolveHref(base, logo)
	}

	email := htmlutil.CleanText(root.Find(".contact-email").First())
	if email == "" {
		// some pages only expose the organiser through a mailto link
		if href, ok := root.Find(`a[href^="mailto:"]`).First().Attr("href"); ok {
			email = strings.TrimPrefix(href, "mailto:")
		}
	}
	det.ContactEmail = textutil.Collapse(email)

	return det, nil
}

// enrichCandidates fetches the detail page of every candidate with a
// bounded number of in-flight requests. Output order always matches
// input order regardless of fetch completion order. A failed fetch
// degrades its candidate rather than failing the run.
func (s *Service) enrichCandidates(ctx context.Context, raws []RawCandidate) []enriched {
	out := make([]enriched, len(raws))
	sem := semaphore.NewWeighted(int64(s.cfg.DetailConcurrency))
	wg := sync.WaitGroup{}

	for i, raw := range raws {
		out[i] = enriched{Raw: raw, Degraded: true}

		err := sem.Acquire(ctx, 1)
		if err != nil {
			// cancelled: everything not yet started stays degraded
			break
		}

		wg.Add(1)
		go func(i int, raw RawCandidate) {
			defer wg.Done()
			defer sem.Release(1)

			body, err := s.fetcher.FetchDetail(ctx, raw.SourceId)
			if err != nil {
				slog.WarnContext(ctx, "detail fetch failed, using listing fields",
					"source_id", raw.SourceId, "err", err)
				return
			}
			det, err := ParseDetail(body, s.cfg.DetailUrl)
			if err != nil {
				slog.WarnContext(ctx, "detail parse failed, using listing fields",
					"source_id", raw.SourceId, "err", err)
				return
			}
			out[i] = enriched{Raw: raw, Detail: det}
		}(i, raw)
	}

	wg.Wait()
	return out
}
