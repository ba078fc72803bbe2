package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"

	"github.com/Amar-Sai/firstcry-hw-tracker-v2/internal/fetcher"
)

var (
	// ErrNoProductID means the URL carries no numeric product-detail id.
	ErrNoProductID = errors.New("no product id in url")
	// ErrNoName means no product name element was found; an unnamed product
	// cannot be tracked.
	ErrNoName = errors.New("no product name element")

	addToCartRe = regexp.MustCompile(`(?i)add\s+to\s+cart`)
	priceNumRe  = regexp.MustCompile(`[0-9]+(?:\.[0-9]+)?`)
)

// Signal is the validated extraction result for one product page. It lives
// for a single scan cycle and is consumed by the reconciliation engine.
type Signal struct {
	ProductID     string
	Name          string
	URL           string
	Price         decimal.NullDecimal
	Buyable       bool
	BrandVerified bool
}

// PageSignals is the normalized document-signal bundle: everything the
// buyability decision needs, already reduced to booleans. Keeping the
// reduction separate from the vote makes both sides independently testable
// and leaves one place to adjust when the site markup drifts.
type PageSignals struct {
	HasCartButton   bool // an "add to cart" control is present
	HasStockWarning bool // an out-of-stock indicator is present
	HasPriceShown   bool // a price element is present
	HasNotifyMe     bool // a "notify me" control is present
}

// buyable is the four-signal majority vote: a product counts as purchasable
// iff at least 3 of the 4 heuristics agree. One broken selector therefore
// cannot flip the verdict.
func buyable(s PageSignals) bool {
	votes := 0
	if s.HasCartButton {
		votes++
	}
	if !s.HasStockWarning {
		votes++
	}
	if s.HasPriceShown {
		votes++
	}
	if !s.HasNotifyMe {
		votes++
	}
	return votes >= 3
}

// IsExtractionError reports whether err came from the document itself rather
// than from transport.
func IsExtractionError(err error) bool {
	return errors.Is(err, ErrNoProductID) || errors.Is(err, ErrNoName)
}

// ExtractProductID returns the numeric id segment preceding /product-detail,
// or "" when the URL does not match the product-detail pattern.
func ExtractProductID(pageURL string) string {
	m := productDetailRe.FindStringSubmatch(pageURL)
	if m == nil {
		return ""
	}
	return m[1]
}

// Validator fetches candidate URLs and derives a Signal per product page.
type Validator struct {
	fetcher fetcher.Fetcher
	brand   string
	logger  *slog.Logger
}

// NewValidator creates a validator for the given brand (matched
// case-insensitively).
func NewValidator(f fetcher.Fetcher, brand string, logger *slog.Logger) *Validator {
	return &Validator{
		fetcher: f,
		brand:   strings.ToLower(strings.TrimSpace(brand)),
		logger:  logger,
	}
}

// Validate fetches pageURL and extracts its Signal.
//
// A fetch failure or a page missing the required id/name fields returns an
// error; the caller treats any error as "drop this candidate", not as a
// cycle failure.
func (v *Validator) Validate(ctx context.Context, pageURL string) (*Signal, error) {
	body, err := v.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", pageURL, err)
	}

	return v.extract(doc, pageURL)
}

// extract reduces a parsed document to a Signal. Split from Validate so
// fixture documents can exercise it without HTTP.
func (v *Validator) extract(doc *goquery.Document, pageURL string) (*Signal, error) {
	productID := ExtractProductID(pageURL)
	if productID == "" {
		return nil, fmt.Errorf("%s: %w", pageURL, ErrNoProductID)
	}

	name := extractName(doc)
	if name == "" {
		return nil, fmt.Errorf("%s: %w", pageURL, ErrNoName)
	}

	sig := &Signal{
		ProductID:     productID,
		Name:          name,
		URL:           pageURL,
		Price:         extractPrice(doc),
		BrandVerified: v.verifyBrand(doc, name),
	}
	sig.Buyable = buyable(readPageSignals(doc))
	return sig, nil
}

// extractName returns the first matching designated name element.
func extractName(doc *goquery.Document) string {
	if name := strings.TrimSpace(doc.Find("h1.prod-name").First().Text()); name != "" {
		return name
	}
	return strings.TrimSpace(doc.Find("span[itemprop='name']").First().Text())
}

// verifyBrand reports whether the page positively matches the target brand:
// either the name mentions it (with or without spaces) or a designated brand
// element does.
func (v *Validator) verifyBrand(doc *goquery.Document, name string) bool {
	lowerName := strings.ToLower(name)
	collapsed := strings.ReplaceAll(v.brand, " ", "")
	if strings.Contains(lowerName, v.brand) || strings.Contains(lowerName, collapsed) {
		return true
	}

	if brand := strings.ToLower(strings.TrimSpace(doc.Find("span[itemprop='brand']").First().Text())); brand != "" {
		if strings.Contains(brand, v.brand) {
			return true
		}
	}

	brandSlug := "/" + strings.ReplaceAll(v.brand, " ", "-")
	matched := false
	doc.Find("a[href*='" + brandSlug + "']").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if strings.Contains(strings.ToLower(strings.TrimSpace(sel.Text())), v.brand) {
			matched = true
			return false
		}
		return true
	})
	return matched
}

// readPageSignals reduces the document to the buyability signal bundle.
func readPageSignals(doc *goquery.Document) PageSignals {
	bodyText := strings.ToLower(doc.Find("body").Text())

	hasCart := false
	doc.Find("button").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if addToCartRe.MatchString(sel.Text()) {
			hasCart = true
			return false
		}
		return true
	})

	return PageSignals{
		HasCartButton:   hasCart,
		HasStockWarning: strings.Contains(bodyText, "out of stock") || doc.Find("span.out-of-stock").Length() > 0,
		HasPriceShown:   findPriceElement(doc).Length() > 0,
		HasNotifyMe:     strings.Contains(bodyText, "notify me"),
	}
}

// findPriceElement returns the designated price element selection (possibly
// empty).
func findPriceElement(doc *goquery.Document) *goquery.Selection {
	if sel := doc.Find("span.prod-price").First(); sel.Length() > 0 {
		return sel
	}
	return doc.Find("span[itemprop='price']").First()
}

// extractPrice parses the price element text. Unparsable or absent prices
// yield an invalid NullDecimal, never an error.
func extractPrice(doc *goquery.Document) decimal.NullDecimal {
	sel := findPriceElement(doc)
	if sel.Length() == 0 {
		return decimal.NullDecimal{}
	}
	return ParsePrice(sel.Text())
}

// ParsePrice strips currency symbols and thousands separators from txt and
// parses the first number it finds. The zero NullDecimal is returned when no
// number survives.
func ParsePrice(txt string) decimal.NullDecimal {
	cleaned := strings.NewReplacer("₹", "", "Rs.", "", "Rs", "", ",", "").Replace(txt)
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return decimal.NullDecimal{}
	}

	match := priceNumRe.FindString(cleaned)
	if match == "" {
		return decimal.NullDecimal{}
	}

	d, err := decimal.NewFromString(match)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}
}
