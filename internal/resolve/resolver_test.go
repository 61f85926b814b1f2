package resolve

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/xm4dn355x/webpilot/api/schemas"
)

func parse(t *testing.T, src string) *html.Node {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(src))
	require.NoError(t, err)
	return doc
}

const loginPage = `<html><body>
  <a id="gnav_login" href="/login">Sign in</a>
  <input id="user" name="username" type="email">
  <input id="pass" name="password" type="password">
  <button type="submit" id="login-submit">Log in</button>
  <table><tr><td data-date="2026-09-01">1</td></tr></table>
</body></html>`

func TestResolveDeclaredOrder(t *testing.T) {
	doc := parse(t, loginPage)

	// Both candidates match; the first declared one must win.
	list := schemas.CandidateList{
		schemas.CSS("input#user"),
		schemas.CSS("input#pass"),
	}
	el, err := Resolve(doc, list, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, el.StrategyIndex)
	assert.Equal(t, "input#user", el.Target.Selector)

	// Reordering the same candidates changes which one wins.
	reordered := schemas.CandidateList{list[1], list[0]}
	el, err = Resolve(doc, reordered, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, el.StrategyIndex)
	assert.Equal(t, "input#pass", el.Target.Selector)
}

func TestResolveFallsThroughStrategies(t *testing.T) {
	doc := parse(t, loginPage)
	list := schemas.CandidateList{
		schemas.CSS("input#does-not-exist"),
		schemas.XPath("//button[@id='login-submit']"),
	}
	el, err := Resolve(doc, list, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, el.StrategyIndex)
	assert.Equal(t, schemas.StrategyXPath, el.Target.Strategy)
	assert.Equal(t, "Log in", el.Text())
}

func TestResolveNotFound(t *testing.T) {
	doc := parse(t, loginPage)
	list := schemas.CandidateList{
		schemas.CSS(".missing"),
		schemas.XPath("//div[@id='absent']"),
	}
	_, err := Resolve(doc, list, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveInvalidSelectorSkipped(t *testing.T) {
	doc := parse(t, loginPage)
	list := schemas.CandidateList{
		schemas.CSS("input[unclosed"),
		schemas.CSS("input#pass"),
	}
	el, err := Resolve(doc, list, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, el.StrategyIndex)
}

func TestRender(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		params  map[string]string
		want    string
	}{
		{"no placeholders", "input#user", map[string]string{"date": "x"}, "input#user"},
		{"substituted", "//td[@data-date='{date}']", map[string]string{"date": "2026-09-01"}, "//td[@data-date='2026-09-01']"},
		{"missing param keeps literal", "//td[@data-date='{date}']", nil, "//td[@data-date='{date}']"},
		{"partial params keep literal", "//a[@x='{a}'][@y='{b}']", map[string]string{"a": "1"}, "//a[@x='{a}'][@y='{b}']"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Render(tc.pattern, tc.params)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("Render mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestResolveTemplatedCandidate(t *testing.T) {
	doc := parse(t, loginPage)
	list := schemas.CandidateList{
		schemas.XPath("//td[@data-date='{date}']"),
	}

	el, err := Resolve(doc, list, map[string]string{"date": "2026-09-01"})
	require.NoError(t, err)
	assert.Equal(t, "1", el.Text())

	// Without the parameter the literal pattern matches nothing.
	_, err = Resolve(doc, list, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}
