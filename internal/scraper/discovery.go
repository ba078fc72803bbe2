// Package scraper turns raw site documents into candidate URLs and
// validated product signals. All markup knowledge lives here.
package scraper

import (
	"bytes"
	"context"
	"log/slog"
	"net/url"
	"regexp"
	"sort"

	"github.com/PuerkitoBio/goquery"

	"github.com/Amar-Sai/firstcry-hw-tracker-v2/internal/fetcher"
	"github.com/Amar-Sai/firstcry-hw-tracker-v2/internal/pkg/metrics"
)

// productDetailRe matches the canonical product-detail path and captures the
// numeric product id.
var productDetailRe = regexp.MustCompile(`/(\d+)/product-detail`)

// Discoverer aggregates candidate product URLs from a fixed set of listing
// surfaces.
type Discoverer struct {
	fetcher  fetcher.Fetcher
	baseURL  string
	surfaces map[string]string
	logger   *slog.Logger
}

// NewDiscoverer creates a discovery aggregator over the given surfaces
// (surface name -> path relative to baseURL).
func NewDiscoverer(f fetcher.Fetcher, baseURL string, surfaces map[string]string, logger *slog.Logger) *Discoverer {
	return &Discoverer{
		fetcher:  f,
		baseURL:  baseURL,
		surfaces: surfaces,
		logger:   logger,
	}
}

// Discover fetches every surface independently and returns the deduplicated
// union of product-detail links, sorted for deterministic processing.
//
// A surface that fails to fetch or parse is logged and skipped; discovery
// itself never fails and may return an empty set.
func (d *Discoverer) Discover(ctx context.Context) []string {
	candidates := make(map[string]struct{})

	// Sorted surface order keeps logs and pacing stable across runs.
	names := make([]string, 0, len(d.surfaces))
	for name := range d.surfaces {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if ctx.Err() != nil {
			break
		}
		surfaceURL := d.baseURL + d.surfaces[name]
		d.logger.Info("scanning discovery surface", slog.String("surface", name))

		body, err := d.fetcher.Fetch(ctx, surfaceURL)
		if err != nil {
			d.logger.Warn("surface fetch failed, skipping",
				slog.String("surface", name),
				slog.String("error", err.Error()))
			metrics.SurfaceFetchFailures.WithLabelValues(name).Inc()
			continue
		}

		found := d.scanSurface(body, candidates)
		d.logger.Info("surface scanned",
			slog.String("surface", name),
			slog.Int("links", found))
	}

	result := make([]string, 0, len(candidates))
	for u := range candidates {
		result = append(result, u)
	}
	sort.Strings(result)

	metrics.CandidatesDiscovered.Add(float64(len(result)))
	d.logger.Info("discovery complete", slog.Int("unique_candidates", len(result)))
	return result
}

// scanSurface collects product-detail anchors from one surface document into
// the shared candidate set and returns how many matching links it saw.
func (d *Discoverer) scanSurface(body []byte, candidates map[string]struct{}) int {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		d.logger.Warn("surface parse failed", slog.String("error", err.Error()))
		return 0
	}

	found := 0
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok || !productDetailRe.MatchString(href) {
			return
		}
		resolved := d.resolveURL(href)
		if resolved == "" {
			return
		}
		found++
		candidates[resolved] = struct{}{}
	})
	return found
}

// resolveURL resolves a possibly relative link against the site origin.
func (d *Discoverer) resolveURL(href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if ref.IsAbs() {
		return ref.String()
	}
	base, err := url.Parse(d.baseURL)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}
