package scraper

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
)

// fakeFetcher serves canned bodies by URL; unknown URLs fail.
type fakeFetcher struct {
	pages map[string][]byte
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	body, ok := f.pages[url]
	if !ok {
		return nil, fmt.Errorf("fetch %s: %w", url, errors.New("not found"))
	}
	return body, nil
}

func listingPage(links ...string) []byte {
	html := "<html><body>"
	for _, l := range links {
		html += fmt.Sprintf(`<a href="%s">item</a>`, l)
	}
	html += `<a href="/hot-wheels/0/0/113">brand page</a></body></html>`
	return []byte(html)
}

func TestDiscover_UnionAcrossSurfaces(t *testing.T) {
	const base = "https://www.firstcry.com"
	f := &fakeFetcher{pages: map[string][]byte{
		base + "/surface-a": listingPage("/x/1/product-detail", "/x/2/product-detail"),
		base + "/surface-b": listingPage("/x/2/product-detail", "https://www.firstcry.com/x/3/product-detail"),
	}}

	d := NewDiscoverer(f, base, map[string]string{
		"a": "/surface-a",
		"b": "/surface-b",
	}, discardLogger())

	got := d.Discover(context.Background())
	expected := []string{
		base + "/x/1/product-detail",
		base + "/x/2/product-detail",
		base + "/x/3/product-detail",
	}
	if !reflect.DeepEqual(got, expected) {
		t.Errorf("Discover() = %v, expected %v", got, expected)
	}
}

func TestDiscover_FailedSurfaceIsSkipped(t *testing.T) {
	const base = "https://www.firstcry.com"
	f := &fakeFetcher{pages: map[string][]byte{
		base + "/surface-a": listingPage("/x/1/product-detail"),
		// surface-b is absent and fails to fetch
	}}

	d := NewDiscoverer(f, base, map[string]string{
		"a": "/surface-a",
		"b": "/surface-b",
	}, discardLogger())

	got := d.Discover(context.Background())
	expected := []string{base + "/x/1/product-detail"}
	if !reflect.DeepEqual(got, expected) {
		t.Errorf("Discover() = %v, expected %v", got, expected)
	}
}

func TestDiscover_AllSurfacesFailing(t *testing.T) {
	f := &fakeFetcher{pages: map[string][]byte{}}
	d := NewDiscoverer(f, "https://www.firstcry.com", map[string]string{
		"a": "/surface-a",
	}, discardLogger())

	if got := d.Discover(context.Background()); len(got) != 0 {
		t.Errorf("expected empty candidate set, got %v", got)
	}
}

func TestDiscover_IgnoresNonProductLinks(t *testing.T) {
	const base = "https://www.firstcry.com"
	f := &fakeFetcher{pages: map[string][]byte{
		base + "/s": []byte(`<html><body>
<a href="/about-us">about</a>
<a href="/x/55/product-detail">car</a>
<a>no href</a>
</body></html>`),
	}}

	d := NewDiscoverer(f, base, map[string]string{"s": "/s"}, discardLogger())
	got := d.Discover(context.Background())
	expected := []string{base + "/x/55/product-detail"}
	if !reflect.DeepEqual(got, expected) {
		t.Errorf("Discover() = %v, expected %v", got, expected)
	}
}
