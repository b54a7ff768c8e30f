package tracker

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Resolver turns a flight number into playback links for past legs of that
// flight on the tracker site.
type Resolver struct {
	fetcher *Fetcher
	baseURL string
}

// NewResolver builds a Resolver against the given tracker base URL.
func NewResolver(baseURL, cacheDir string) *Resolver {
	return &Resolver{
		fetcher: NewFetcher(cacheDir),
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

// FlightPageURL is the flight-history page for a flight number.
func (r *Resolver) FlightPageURL(flightNumber string) string {
	return r.baseURL + "/data/flights/" + strings.ToLower(flightNumber)
}

// Resolve fetches the flight-history page and returns the absolute
// playback links found in its static HTML, page order preserved.
func (r *Resolver) Resolve(ctx context.Context, flightNumber string) ([]string, error) {
	pageURL := r.FlightPageURL(flightNumber)
	body, _, err := r.fetcher.FetchPage(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	links, err := extractPlaybackLinks(r.baseURL, body)
	if err != nil {
		return nil, fmt.Errorf("tracker: %s: %w", flightNumber, err)
	}
	return links, nil
}

// extractPlaybackLinks pulls playback anchors out of a flight-history page.
func extractPlaybackLinks(baseURL string, body []byte) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	links := make([]string, 0)
	doc.Find(`a[href*="/playback/"]`).Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok || href == "" {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref).String()
		if !seen[abs] {
			seen[abs] = true
			links = append(links, abs)
		}
	})

	return links, nil
}
