package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/Amar-Sai/firstcry-hw-tracker-v2/internal/config"
	"github.com/Amar-Sai/firstcry-hw-tracker-v2/internal/model"
	"github.com/Amar-Sai/firstcry-hw-tracker-v2/internal/pkg/notify"
	"github.com/Amar-Sai/firstcry-hw-tracker-v2/internal/reconcile"
	"github.com/Amar-Sai/firstcry-hw-tracker-v2/internal/scraper"
)

const (
	testBase       = "https://www.firstcry.com"
	testSurface    = testBase + "/hot-wheels/0/0/113"
	testProductURL = testBase + "/x/9123456/product-detail"
)

// siteFixture serves mutable canned pages, standing in for the whole site.
type siteFixture struct {
	mu    sync.Mutex
	pages map[string]string
}

func (s *siteFixture) Fetch(_ context.Context, url string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	body, ok := s.pages[url]
	if !ok {
		return nil, fmt.Errorf("fetch %s: status 404", url)
	}
	return []byte(body), nil
}

func (s *siteFixture) set(url, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[url] = body
}

func (s *siteFixture) remove(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pages, url)
}

const listingWithProduct = `<html><body><a href="/x/9123456/product-detail">car</a></body></html>`
const emptyListing = `<html><body><p>no results</p></body></html>`

const buyableProductPage = `<html><body>
<h1 class="prod-name">Hot Wheels Monster Trucks Die Cast Car</h1>
<span class="prod-price">₹349</span>
<button>ADD TO CART</button>
</body></html>`

const outOfStockProductPage = `<html><body>
<h1 class="prod-name">Hot Wheels Monster Trucks Die Cast Car</h1>
<span class="out-of-stock">OUT OF STOCK</span>
<button>Notify Me</button>
</body></html>`

// memStore backs both the engine and the orchestrator in tests.
type memStore struct {
	mu          sync.Mutex
	products    map[string]model.Product
	transitions []model.Transition
}

func newMemStore() *memStore {
	return &memStore{products: make(map[string]model.Product)}
}

func (m *memStore) GetProduct(_ context.Context, productID string) (*model.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[productID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *memStore) Commit(_ context.Context, product *model.Product, transition *model.Transition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[product.ProductID] = *product
	if transition != nil {
		m.transitions = append(m.transitions, *transition)
	}
	return nil
}

func (m *memStore) ListProducts(_ context.Context) ([]model.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Product, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, p)
	}
	return out, nil
}

func (m *memStore) CountProducts(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.products)), nil
}

func (m *memStore) state(productID string) model.ProductState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.products[productID].State
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []notify.Kind
	err   error
}

func (n *recordingNotifier) Send(_ context.Context, _ *model.Product, kind notify.Kind) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.calls = append(n.calls, kind)
	return nil
}

func (n *recordingNotifier) kinds() []notify.Kind {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.Kind(nil), n.calls...)
}

func newTestMonitor(site *siteFixture, st *memStore, sink notify.Notifier) *Monitor {
	l := slog.New(slog.DiscardHandler)
	discoverer := scraper.NewDiscoverer(site, testBase, map[string]string{
		"brand_listing": "/hot-wheels/0/0/113",
	}, l)
	validator := scraper.NewValidator(site, "hot wheels", l)
	engine := reconcile.New(st, sink, nil, l)
	cfg := &config.AppConfig{
		RequestDelay:    0,
		RevalidateKnown: true,
	}
	return New(discoverer, validator, engine, st, nil, cfg, l)
}

func TestRunScan_ProductLifecycle(t *testing.T) {
	site := &siteFixture{pages: map[string]string{
		testSurface:    listingWithProduct,
		testProductURL: buyableProductPage,
	}}
	st := newMemStore()
	sink := &recordingNotifier{}
	mon := newTestMonitor(site, st, sink)
	ctx := context.Background()

	// First sight, buyable: one NEW alert.
	notified, err := mon.RunScan(ctx)
	if err != nil {
		t.Fatalf("scan 1: %v", err)
	}
	if notified != 1 {
		t.Fatalf("scan 1 notified = %d, expected 1", notified)
	}
	if got := st.state("9123456"); got != model.StateBuyable {
		t.Fatalf("scan 1 state = %s, expected BUYABLE", got)
	}

	// Sells out: transition recorded, no alert.
	site.set(testProductURL, outOfStockProductPage)
	notified, err = mon.RunScan(ctx)
	if err != nil {
		t.Fatalf("scan 2: %v", err)
	}
	if notified != 0 {
		t.Fatalf("scan 2 notified = %d, expected 0", notified)
	}
	if got := st.state("9123456"); got != model.StateOutOfStock {
		t.Fatalf("scan 2 state = %s, expected OUT_OF_STOCK", got)
	}

	// Comes back: one RESTOCK alert.
	site.set(testProductURL, buyableProductPage)
	notified, err = mon.RunScan(ctx)
	if err != nil {
		t.Fatalf("scan 3: %v", err)
	}
	if notified != 1 {
		t.Fatalf("scan 3 notified = %d, expected 1", notified)
	}

	expected := []notify.Kind{notify.KindNew, notify.KindRestock}
	got := sink.kinds()
	if len(got) != len(expected) {
		t.Fatalf("alerts = %v, expected %v", got, expected)
	}
	for i := range expected {
		if got[i] != expected[i] {
			t.Errorf("alert[%d] = %s, expected %s", i, got[i], expected[i])
		}
	}
}

func TestRunScan_DelistedProductGoesHidden(t *testing.T) {
	site := &siteFixture{pages: map[string]string{
		testSurface:    listingWithProduct,
		testProductURL: buyableProductPage,
	}}
	st := newMemStore()
	sink := &recordingNotifier{}
	mon := newTestMonitor(site, st, sink)
	ctx := context.Background()

	if _, err := mon.RunScan(ctx); err != nil {
		t.Fatalf("scan 1: %v", err)
	}

	// Product page and listing entry both disappear.
	site.set(testSurface, emptyListing)
	site.remove(testProductURL)
	if _, err := mon.RunScan(ctx); err != nil {
		t.Fatalf("scan 2: %v", err)
	}
	if got := st.state("9123456"); got != model.StateHidden {
		t.Fatalf("state = %s, expected HIDDEN", got)
	}

	// It resurfaces in the listing, buyable: RESTOCK alert.
	site.set(testSurface, listingWithProduct)
	site.set(testProductURL, buyableProductPage)
	notified, err := mon.RunScan(ctx)
	if err != nil {
		t.Fatalf("scan 3: %v", err)
	}
	if notified != 1 {
		t.Fatalf("scan 3 notified = %d, expected 1", notified)
	}
	kinds := sink.kinds()
	if kinds[len(kinds)-1] != notify.KindRestock {
		t.Errorf("last alert = %s, expected RESTOCK", kinds[len(kinds)-1])
	}
}

func TestRunScan_MissingProductStillListedIsRevalidated(t *testing.T) {
	site := &siteFixture{pages: map[string]string{
		testSurface:    listingWithProduct,
		testProductURL: outOfStockProductPage,
	}}
	st := newMemStore()
	sink := &recordingNotifier{}
	mon := newTestMonitor(site, st, sink)
	ctx := context.Background()

	if _, err := mon.RunScan(ctx); err != nil {
		t.Fatalf("scan 1: %v", err)
	}
	if got := st.state("9123456"); got != model.StateOutOfStock {
		t.Fatalf("state = %s, expected OUT_OF_STOCK", got)
	}

	// Gone from the listing but the page itself still validates and is now
	// buyable: re-validation must pick the restock up.
	site.set(testSurface, emptyListing)
	site.set(testProductURL, buyableProductPage)
	notified, err := mon.RunScan(ctx)
	if err != nil {
		t.Fatalf("scan 2: %v", err)
	}
	if notified != 1 {
		t.Fatalf("scan 2 notified = %d, expected 1", notified)
	}
	if got := st.state("9123456"); got != model.StateBuyable {
		t.Errorf("state = %s, expected BUYABLE", got)
	}
}

func TestRunScan_WrongBrandNeverTracked(t *testing.T) {
	site := &siteFixture{pages: map[string]string{
		testSurface: listingWithProduct,
		testProductURL: `<html><body>
<h1 class="prod-name">Majorette Street Car</h1>
<span class="prod-price">₹299</span>
<button>ADD TO CART</button>
</body></html>`,
	}}
	st := newMemStore()
	sink := &recordingNotifier{}
	mon := newTestMonitor(site, st, sink)

	notified, err := mon.RunScan(context.Background())
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if notified != 0 {
		t.Errorf("notified = %d, expected 0", notified)
	}
	if count, _ := st.CountProducts(context.Background()); count != 0 {
		t.Errorf("tracked products = %d, expected 0", count)
	}
}

func TestRunScan_BrokenCandidateDoesNotAbortCycle(t *testing.T) {
	goodURL := testBase + "/x/777/product-detail"
	site := &siteFixture{pages: map[string]string{
		testSurface: `<html><body>
<a href="/x/9123456/product-detail">broken</a>
<a href="/x/777/product-detail">good</a>
</body></html>`,
		// 9123456 is listed but its page 404s; 777 is healthy.
		goodURL: buyableProductPage,
	}}
	st := newMemStore()
	sink := &recordingNotifier{}
	mon := newTestMonitor(site, st, sink)

	notified, err := mon.RunScan(context.Background())
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if notified != 1 {
		t.Errorf("notified = %d, expected 1 from the healthy candidate", notified)
	}
	if got := st.state("777"); got != model.StateBuyable {
		t.Errorf("state(777) = %s, expected BUYABLE", got)
	}
}

func TestRunScan_CancelledContext(t *testing.T) {
	site := &siteFixture{pages: map[string]string{
		testSurface:    listingWithProduct,
		testProductURL: buyableProductPage,
	}}
	st := newMemStore()
	mon := newTestMonitor(site, st, &recordingNotifier{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := mon.RunScan(ctx); err != nil && !errors.Is(err, context.Canceled) {
		t.Errorf("expected nil or context.Canceled, got %v", err)
	}
}
