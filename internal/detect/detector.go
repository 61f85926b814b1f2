// Package detect answers questions about the current page. Every predicate
// takes a fresh URL/snapshot reading on each call; facts are computed on
// demand and never cached, so callers can trust them across navigations.
package detect

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/xm4dn355x/webpilot/api/schemas"
	"github.com/xm4dn355x/webpilot/internal/browser"
	"github.com/xm4dn355x/webpilot/internal/normalize"
	"github.com/xm4dn355x/webpilot/internal/resolve"
)

// Markers are the URL fragments that identify sensitive page states.
type Markers struct {
	// LoginURLMarker flags an authentication context when present in the URL.
	LoginURLMarker string
	// CheckoutPathMarker and CheckoutSPCMarker must BOTH appear in the URL
	// path, and PipelineParam must equal PipelineValue in the query, for a
	// page to count as the irreversible checkout stage. All three conditions
	// are required; near-misses are not checkout.
	CheckoutPathMarker string
	CheckoutSPCMarker  string
	PipelineParam      string
	PipelineValue      string
}

// Selectors are the candidate lists each predicate inspects.
type Selectors struct {
	UsernameField  schemas.CandidateList
	PasswordField  schemas.CandidateList
	DashboardMark  schemas.CandidateList
	TransferMark   schemas.CandidateList
	BalanceAmount  schemas.CandidateList
	SigninMark     schemas.CandidateList
	CaptchaMark    schemas.CandidateList
}

// Detector evaluates named page-state predicates for one page.
type Detector struct {
	page    browser.Page
	markers Markers
	sel     Selectors
	logger  *zap.Logger
}

// New builds a detector over the given page.
func New(page browser.Page, markers Markers, sel Selectors, logger *zap.Logger) *Detector {
	return &Detector{page: page, markers: markers, sel: sel, logger: logger.Named("detect")}
}

func (d *Detector) has(doc *html.Node, list schemas.CandidateList) bool {
	if len(list) == 0 {
		return false
	}
	_, err := resolve.Resolve(doc, list, nil)
	return err == nil
}

// LoginContext reports whether the page is an authentication context. The
// three signals (URL marker, username field, password field) are ORed: any
// one of them is sufficient.
func (d *Detector) LoginContext(ctx context.Context) (bool, error) {
	current, err := d.page.CurrentURL(ctx)
	if err != nil {
		return false, err
	}
	if d.markers.LoginURLMarker != "" &&
		strings.Contains(strings.ToLower(current), strings.ToLower(d.markers.LoginURLMarker)) {
		return true, nil
	}
	doc, err := d.page.Snapshot(ctx)
	if err != nil {
		return false, err
	}
	return d.has(doc, d.sel.UsernameField) || d.has(doc, d.sel.PasswordField), nil
}

// Dashboard reports whether the authenticated landing page is visible.
func (d *Detector) Dashboard(ctx context.Context) (bool, error) {
	doc, err := d.page.Snapshot(ctx)
	if err != nil {
		return false, err
	}
	return d.has(doc, d.sel.DashboardMark), nil
}

// TransferPage reports whether the funds-transfer page is visible.
func (d *Detector) TransferPage(ctx context.Context) (bool, error) {
	doc, err := d.page.Snapshot(ctx)
	if err != nil {
		return false, err
	}
	return d.has(doc, d.sel.TransferMark), nil
}

// Interstitial identifies blocking interstitials on storefront pages.
type Interstitial string

const (
	InterstitialNone    Interstitial = ""
	InterstitialSignin  Interstitial = "signin"
	InterstitialCaptcha Interstitial = "captcha"
)

// SigninOrCaptcha reports whether a sign-in wall or a captcha challenge is
// blocking the page. Sign-in is checked first.
func (d *Detector) SigninOrCaptcha(ctx context.Context) (Interstitial, error) {
	doc, err := d.page.Snapshot(ctx)
	if err != nil {
		return InterstitialNone, err
	}
	if d.has(doc, d.sel.SigninMark) {
		return InterstitialSignin, nil
	}
	if d.has(doc, d.sel.CaptchaMark) {
		return InterstitialCaptcha, nil
	}
	return InterstitialNone, nil
}

// CheckoutSPC reports whether the page is the final single-page-checkout
// stage. The predicate is a strict conjunction over the URL: both path
// markers present and the pipeline query parameter equal to the expected
// value. A page matching only some of the conditions is NOT checkout.
func (d *Detector) CheckoutSPC(ctx context.Context) (bool, error) {
	current, err := d.page.CurrentURL(ctx)
	if err != nil {
		return false, err
	}
	parsed, err := url.Parse(current)
	if err != nil {
		return false, nil
	}
	// Marker comparison is case-insensitive; sites vary the casing of
	// checkout path segments and pipeline values.
	path := strings.ToLower(parsed.Path)
	if !strings.Contains(path, strings.ToLower(d.markers.CheckoutPathMarker)) {
		return false, nil
	}
	if !strings.Contains(path, strings.ToLower(d.markers.CheckoutSPCMarker)) {
		return false, nil
	}
	return strings.EqualFold(parsed.Query().Get(d.markers.PipelineParam), d.markers.PipelineValue), nil
}

// Balance resolves the account-balance element and parses its amount. The
// raw text is always returned when the element exists; a value that fails
// currency parsing reports known=false rather than an error.
func (d *Detector) Balance(ctx context.Context) (raw string, value float64, known bool, err error) {
	doc, err := d.page.Snapshot(ctx)
	if err != nil {
		return "", 0, false, err
	}
	el, rerr := resolve.Resolve(doc, d.sel.BalanceAmount, nil)
	if rerr != nil {
		return "", 0, false, rerr
	}
	raw = normalize.Text(el.Text())
	value, known = normalize.Currency(raw)
	return raw, value, known, nil
}

// ResultCard is one product listing scraped from a results page.
type ResultCard struct {
	Index int
	Title string
	Price float64
	// PriceKnown is false when the card showed no parseable price.
	PriceKnown bool
	LinkSelector schemas.Target
}

// ScanResults walks product cards on a results page. cardSel selects the
// card containers, titleSel/priceSel/linkSel are relative CSS selectors
// within a card. Cards without a link are skipped.
func (d *Detector) ScanResults(ctx context.Context, cardSel, titleSel, priceSel, linkSel string) ([]ResultCard, error) {
	doc, err := d.page.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	gdoc := goquery.NewDocumentFromNode(doc)

	var cards []ResultCard
	gdoc.Find(cardSel).Each(func(i int, s *goquery.Selection) {
		link := s.Find(linkSel).First()
		if link.Length() == 0 {
			return
		}
		card := ResultCard{
			Index: i,
			Title: normalize.Text(s.Find(titleSel).First().Text()),
		}
		priceText := normalize.Text(s.Find(priceSel).First().Text())
		card.Price, card.PriceKnown = normalize.Currency(priceText)

		// Re-address the link by href so the executor can find it again in
		// a fresh snapshot.
		if href, ok := link.Attr("href"); ok && href != "" {
			card.LinkSelector = schemas.Target{
				Strategy: schemas.StrategyCSS,
				Selector: `a[href="` + href + `"]`,
			}
		} else {
			card.LinkSelector = schemas.Target{
				Strategy: schemas.StrategyXPath,
				Selector: "(" + cssToCountedXPath(cardSel) + ")[" + strconv.Itoa(i+1) + "]//a",
			}
		}
		cards = append(cards, card)
	})

	d.logger.Debug("Scanned results page.", zap.Int("cards", len(cards)))
	return cards, nil
}

// FindText locates visible occurrences of needle in the page body and
// reports the 1-based index of the first hit plus the total count.
func (d *Detector) FindText(ctx context.Context, needle string) (first, total int, err error) {
	doc, err := d.page.Snapshot(ctx)
	if err != nil {
		return 0, 0, err
	}
	gdoc := goquery.NewDocumentFromNode(doc)
	lowNeedle := strings.ToLower(needle)

	index := 0
	gdoc.Find("body *").Each(func(_ int, s *goquery.Selection) {
		if s.Children().Length() > 0 {
			return
		}
		text := normalize.Text(s.Text())
		if text == "" {
			return
		}
		index++
		if strings.Contains(strings.ToLower(text), lowNeedle) {
			total++
			if first == 0 {
				first = index
			}
		}
	})
	return first, total, nil
}

// cssToCountedXPath builds a crude positional XPath for simple class, tag
// and single-attribute card selectors. Only used when a card link carries
// no href.
func cssToCountedXPath(cardSel string) string {
	sel := strings.TrimSpace(cardSel)
	if strings.HasPrefix(sel, ".") {
		return `//*[contains(@class,"` + sel[1:] + `")]`
	}
	if i := strings.Index(sel, "["); i >= 0 {
		tag := sel[:i]
		if tag == "" {
			tag = "*"
		}
		return "//" + tag + "[@" + sel[i+1:]
	}
	return "//" + sel
}
