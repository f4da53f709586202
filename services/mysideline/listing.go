package mysideline

import (
	"bytes"
	"fmt"

	"github.com/PuerkitoBio/goquery"

	"oldmanfooty-backend/lib/htmlutil"
	"oldmanfooty-backend/lib/textutil"
)

// ParseError means a page didn't look like MySideline at all. A
// malformed listing aborts the run; a malformed detail page only
// degrades its candidate.
type ParseError struct {
	Page   string
	Detail string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed %s page: %s", e.Page, e.Detail)
}

// ParseListing converts the listing body into candidates in document
// order. It is a pure function of its input: no network, no store.
//
// Entries without a data-entity-id attribute are unusable (there is no
// stable identity to reconcile on) and come back as warnings. When the
// same id appears twice the later occurrence wins.
func ParseListing(body []byte) ([]RawCandidate, []string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, nil, &ParseError{Page: "listing", Detail: err.Error()}
	}

	results := doc.Find("div.search-results")
	if results.Length() == 0 {
		return nil, nil, &ParseError{Page: "listing", Detail: "no search-results container"}
	}

	var order []string
	byId := map[string]RawCandidate{}
	var warnings []string

	results.Find("div[data-entity-id]").Each(func(i int, card *goquery.Selection) {
		sourceId := textutil.Collapse(card.AttrOr("data-entity-id", ""))
		if sourceId == "" {
			warnings = append(warnings, fmt.Sprintf("listing entry %d has an empty entity id, dropped", i))
			return
		}

		raw := RawCandidate{
			SourceId:    sourceId,
			TitleRaw:    htmlutil.CleanText(card.Find(".card-title").First()),
			LocationRaw: htmlutil.CleanText(card.Find(".card-venue").First()),
			DateRaw:     htmlutil.CleanText(card.Find(".card-date").First()),
			DetailUrl:   card.Find("a.card-link").First().AttrOr("href", ""),
		}

		if _, seen := byId[sourceId]; !seen {
			order = append(order, sourceId)
		}
		// later occurrence wins but keeps its first position
		byId[sourceId] = raw
	})

	out := make([]RawCandidate, 0, len(order))
	for _, id := range order {
		out = append(out, byId[id])
	}
	return out, warnings, nil
}
