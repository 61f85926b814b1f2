package browser

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/antchfx/htmlquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/xm4dn355x/webpilot/api/schemas"
	"github.com/xm4dn355x/webpilot/internal/resolve"
)

const maxRedirects = 10

// HTMLPage is a pure-Go Page implementation: an HTTP client plus a stateful
// parsed DOM. It understands anchors, forms and basic input state, which is
// enough to drive server-rendered sites and the test fixtures without a
// Chrome process. Layout-dependent operations (scrolling, global key
// events) are ignored by design.
type HTMLPage struct {
	client *http.Client
	logger *zap.Logger

	mu         sync.RWMutex
	currentURL *url.URL
	doc        *html.Node
	history    []string

	closed    atomic.Bool
	closeOnce sync.Once
}

var _ Page = (*HTMLPage)(nil)

// NewHTMLPage builds a driverless page with its own cookie jar.
func NewHTMLPage(logger *zap.Logger, timeout time.Duration) *HTMLPage {
	jar, _ := cookiejar.New(nil)
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTMLPage{
		client: &http.Client{
			Jar:     jar,
			Timeout: timeout,
			// Redirects are followed manually so every hop updates page state.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger: logger.Named("html_page"),
	}
}

func (p *HTMLPage) CurrentURL(ctx context.Context) (string, error) {
	if p.Closed() {
		return "", ErrSessionTerminated
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.currentURL == nil {
		return "", nil
	}
	return p.currentURL.String(), nil
}

func (p *HTMLPage) Snapshot(ctx context.Context) (*html.Node, error) {
	if p.Closed() {
		return nil, ErrSessionTerminated
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.doc == nil {
		empty, _ := html.Parse(strings.NewReader("<html><head></head><body></body></html>"))
		return empty, nil
	}
	return p.doc, nil
}

func (p *HTMLPage) Navigate(ctx context.Context, target string) error {
	if p.Closed() {
		return ErrSessionTerminated
	}

	resolved, err := p.resolveURL(target)
	if err != nil {
		return fmt.Errorf("failed to resolve URL '%s': %w", target, err)
	}
	p.logger.Info("Navigating", zap.String("url", resolved.String()))

	p.mu.Lock()
	if p.currentURL != nil {
		p.history = append(p.history, p.currentURL.String())
	}
	p.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, resolved.String(), nil)
	if err != nil {
		return err
	}
	return p.executeRequest(ctx, req)
}

func (p *HTMLPage) Back(ctx context.Context) error {
	if p.Closed() {
		return ErrSessionTerminated
	}
	p.mu.Lock()
	if len(p.history) == 0 {
		p.mu.Unlock()
		return fmt.Errorf("no history to go back to")
	}
	prev := p.history[len(p.history)-1]
	p.history = p.history[:len(p.history)-1]
	p.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, prev, nil)
	if err != nil {
		return err
	}
	return p.executeRequest(ctx, req)
}

// executeRequest sends the request, follows redirects and updates state.
func (p *HTMLPage) executeRequest(ctx context.Context, req *http.Request) error {
	currentReq := req
	for i := 0; i < maxRedirects; i++ {
		resp, err := p.client.Do(currentReq)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}

		if resp.StatusCode >= 300 && resp.StatusCode < 400 {
			location := resp.Header.Get("Location")
			resp.Body.Close()
			if location == "" {
				return fmt.Errorf("redirect response missing Location header")
			}
			nextURL, err := currentReq.URL.Parse(location)
			if err != nil {
				return fmt.Errorf("failed to parse redirect Location '%s': %w", location, err)
			}
			nextReq, err := http.NewRequestWithContext(ctx, http.MethodGet, nextURL.String(), nil)
			if err != nil {
				return err
			}
			nextReq.Header.Set("Referer", currentReq.URL.String())
			currentReq = nextReq
			continue
		}

		return p.processResponse(resp)
	}
	return fmt.Errorf("maximum number of redirects (%d) exceeded", maxRedirects)
}

func (p *HTMLPage) processResponse(resp *http.Response) error {
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		p.logger.Warn("Request resulted in error status code",
			zap.Int("status", resp.StatusCode), zap.String("url", resp.Request.URL.String()))
	}

	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	if contentType != "" && !strings.Contains(contentType, "text/html") {
		p.logger.Debug("Response is not HTML, skipping DOM parsing.", zap.String("content_type", contentType))
		io.Copy(io.Discard, resp.Body)
		p.updateState(resp.Request.URL, nil)
		return nil
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		p.updateState(resp.Request.URL, nil)
		return fmt.Errorf("failed to parse HTML response from '%s': %w", resp.Request.URL.String(), err)
	}
	p.updateState(resp.Request.URL, doc)
	return nil
}

func (p *HTMLPage) updateState(newURL *url.URL, doc *html.Node) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.currentURL = newURL
	p.doc = doc
	p.logger.Debug("Page state updated", zap.String("url", newURL.String()))
}

func (p *HTMLPage) resolveURL(target string) (*url.URL, error) {
	p.mu.RLock()
	current := p.currentURL
	p.mu.RUnlock()

	parsed, err := url.Parse(target)
	if err != nil {
		return nil, err
	}
	if parsed.IsAbs() {
		return parsed, nil
	}
	if current == nil {
		return nil, fmt.Errorf("cannot resolve relative URL '%s' without a base URL", target)
	}
	return current.ResolveReference(parsed), nil
}

// findNode re-locates a target within the current DOM.
func (p *HTMLPage) findNode(t schemas.Target) (*html.Node, error) {
	p.mu.RLock()
	doc := p.doc
	p.mu.RUnlock()
	node := resolve.QueryOne(doc, t.Strategy, t.Selector)
	if node == nil {
		return nil, fmt.Errorf("element not found matching selector '%s'", t.Selector)
	}
	return node, nil
}

func (p *HTMLPage) NativeClick(ctx context.Context, t schemas.Target) error {
	if p.Closed() {
		return ErrSessionTerminated
	}
	node, err := p.findNode(t)
	if err != nil {
		return err
	}
	return p.clickConsequence(ctx, node)
}

// DispatchClick has no separate event path without a script engine; it
// shares the native click consequence logic.
func (p *HTMLPage) DispatchClick(ctx context.Context, t schemas.Target) error {
	return p.NativeClick(ctx, t)
}

func (p *HTMLPage) ScrollIntoView(ctx context.Context, t schemas.Target) error {
	p.logger.Debug("ScrollIntoView ignored in pure-Go mode.")
	return nil
}

func (p *HTMLPage) ScrollBy(ctx context.Context, pixels int) error {
	if p.Closed() {
		return ErrSessionTerminated
	}
	p.logger.Debug("ScrollBy ignored in pure-Go mode.", zap.Int("pixels", pixels))
	return nil
}

func (p *HTMLPage) Clear(ctx context.Context, t schemas.Target) error {
	if p.Closed() {
		return ErrSessionTerminated
	}
	node, err := p.findNode(t)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if strings.ToLower(node.Data) == "textarea" {
		removeChildren(node)
	} else {
		setAttr(node, "value", "")
	}
	return nil
}

func (p *HTMLPage) Type(ctx context.Context, t schemas.Target, text string) error {
	if p.Closed() {
		return ErrSessionTerminated
	}
	node, err := p.findNode(t)
	if err != nil {
		return err
	}

	tag := strings.ToLower(node.Data)
	if tag != "input" && tag != "textarea" {
		return fmt.Errorf("element '%s' is not a supported text input type", t.Selector)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if tag == "textarea" {
		removeChildren(node)
		node.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	} else {
		setAttr(node, "value", htmlquery.SelectAttr(node, "value")+text)
	}
	return nil
}

// SendEnter submits the form enclosing the target, which is the document
// semantics of pressing Enter inside a field.
func (p *HTMLPage) SendEnter(ctx context.Context, t schemas.Target) error {
	if p.Closed() {
		return ErrSessionTerminated
	}
	node, err := p.findNode(t)
	if err != nil {
		return err
	}
	form := findParentForm(node)
	if form == nil {
		return fmt.Errorf("element '%s' is not associated with a form", t.Selector)
	}
	return p.submitForm(ctx, form)
}

func (p *HTMLPage) KeyPress(ctx context.Context, chord string) error {
	if p.Closed() {
		return ErrSessionTerminated
	}
	// Global key events have no observable effect without focus tracking.
	p.logger.Debug("Global key event ignored in pure-Go mode.", zap.String("chord", chord))
	return nil
}

func (p *HTMLPage) Close(ctx context.Context) error {
	p.closeOnce.Do(func() {
		p.logger.Info("Closing page.")
		p.closed.Store(true)
		p.client.CloseIdleConnections()
	})
	return nil
}

func (p *HTMLPage) Closed() bool {
	return p.closed.Load()
}

// clickConsequence determines the navigation or state change a click causes.
func (p *HTMLPage) clickConsequence(ctx context.Context, node *html.Node) error {
	tag := strings.ToLower(node.Data)

	if tag == "a" {
		href := htmlquery.SelectAttr(node, "href")
		if href != "" && !strings.HasPrefix(strings.ToLower(href), "javascript:") {
			return p.Navigate(ctx, href)
		}
		return nil
	}

	inputType := strings.ToLower(htmlquery.SelectAttr(node, "type"))
	isSubmit := (tag == "button" && (inputType == "submit" || inputType == "")) ||
		(tag == "input" && inputType == "submit")
	if isSubmit {
		if form := findParentForm(node); form != nil {
			return p.submitForm(ctx, form)
		}
		return nil
	}

	if tag == "input" && inputType == "checkbox" {
		p.mu.Lock()
		if htmlquery.SelectAttr(node, "checked") != "" {
			removeAttr(node, "checked")
		} else {
			setAttr(node, "checked", "checked")
		}
		p.mu.Unlock()
		return nil
	}

	p.logger.Debug("Click had no navigation or submission consequence.", zap.String("tag", tag))
	return nil
}

// submitForm serializes the form controls and issues the request.
func (p *HTMLPage) submitForm(ctx context.Context, form *html.Node) error {
	action := htmlquery.SelectAttr(form, "action")
	method := strings.ToUpper(htmlquery.SelectAttr(form, "method"))
	if method != http.MethodPost {
		method = http.MethodGet
	}

	targetURL, err := p.resolveURL(action)
	if err != nil || action == "" {
		p.mu.RLock()
		targetURL = p.currentURL
		p.mu.RUnlock()
		if targetURL == nil {
			return fmt.Errorf("failed to determine form submission URL")
		}
	}

	p.mu.RLock()
	inputs, qerr := htmlquery.QueryAll(form, ".//input | .//textarea | .//select")
	p.mu.RUnlock()
	if qerr != nil {
		return fmt.Errorf("failed to query form elements: %w", qerr)
	}

	formData := url.Values{}
	for _, input := range inputs {
		name := htmlquery.SelectAttr(input, "name")
		if name == "" {
			continue
		}
		tag := strings.ToLower(input.Data)
		inputType := strings.ToLower(htmlquery.SelectAttr(input, "type"))

		switch tag {
		case "input":
			switch inputType {
			case "checkbox", "radio":
				if htmlquery.SelectAttr(input, "checked") != "" {
					value := htmlquery.SelectAttr(input, "value")
					if value == "" {
						value = "on"
					}
					formData.Add(name, value)
				}
			case "submit", "button", "image", "reset", "file":
				// Not serialized.
			default:
				formData.Add(name, htmlquery.SelectAttr(input, "value"))
			}
		case "textarea":
			formData.Add(name, htmlquery.InnerText(input))
		case "select":
			selected, _ := htmlquery.QueryAll(input, ".//option[@selected]")
			for _, opt := range selected {
				value := htmlquery.SelectAttr(opt, "value")
				if value == "" {
					value = htmlquery.InnerText(opt)
				}
				formData.Add(name, value)
			}
		}
	}

	var req *http.Request
	if method == http.MethodPost {
		req, err = http.NewRequestWithContext(ctx, method, targetURL.String(), strings.NewReader(formData.Encode()))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		submitURL := *targetURL
		if encoded := formData.Encode(); encoded != "" {
			if submitURL.RawQuery == "" {
				submitURL.RawQuery = encoded
			} else {
				submitURL.RawQuery += "&" + encoded
			}
		}
		req, err = http.NewRequestWithContext(ctx, method, submitURL.String(), nil)
		if err != nil {
			return err
		}
	}

	p.mu.Lock()
	if p.currentURL != nil {
		req.Header.Set("Referer", p.currentURL.String())
		p.history = append(p.history, p.currentURL.String())
	}
	p.mu.Unlock()

	return p.executeRequest(ctx, req)
}

// DOM attribute helpers.

func setAttr(n *html.Node, key, val string) {
	for i, attr := range n.Attr {
		if attr.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func removeAttr(n *html.Node, key string) {
	for i, attr := range n.Attr {
		if attr.Key == key {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return
		}
	}
}

func removeChildren(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
}

func findParentForm(node *html.Node) *html.Node {
	for form := node.Parent; form != nil; form = form.Parent {
		if form.Type == html.ElementNode && strings.ToLower(form.Data) == "form" {
			return form
		}
	}
	return nil
}
