package tools

import (
	"github.com/xm4dn355x/webpilot/api/schemas"
	"github.com/xm4dn355x/webpilot/internal/detect"
)

// Candidate tables for each site family. Order is preference order: the
// first structurally matching entry wins, so site-specific selectors come
// before generic fallbacks.

var bankSelectors = struct {
	HeaderLogin    schemas.CandidateList
	LoginUsername  schemas.CandidateList
	LoginPassword  schemas.CandidateList
	LoginSubmit    schemas.CandidateList
	DashboardMark  schemas.CandidateList
	BalanceValue   schemas.CandidateList
	NavTransfer    schemas.CandidateList
	TransferMark   schemas.CandidateList
	CookieAccept   schemas.CandidateList
}{
	HeaderLogin: schemas.CandidateList{
		schemas.CSS("a[id='gnav_login'], a[href*='login'], button[data-testid='login']"),
		schemas.XPath("//a[contains(@href,'login')][contains(.,'Sign in') or contains(.,'Log in') or contains(.,'Sign In')]"),
		schemas.XPath("//button[contains(.,'Sign in') or contains(.,'Log in')]"),
	},
	LoginUsername: schemas.CandidateList{
		schemas.CSS("input[id='eliloUserID']"),
		schemas.XPath("//input[@id='userid' or @name='username' or @type='email']"),
	},
	LoginPassword: schemas.CandidateList{
		schemas.CSS("input[id='eliloPassword']"),
		schemas.XPath("//input[@id='password' or @name='password' or @type='password']"),
	},
	LoginSubmit: schemas.CandidateList{
		schemas.CSS("button#login-submit, button[type='submit'], button[data-testid='login-submit']"),
		schemas.XPath("//button[@type='submit' or @id='login-submit' or @data-testid='login-submit']"),
	},
	DashboardMark: schemas.CandidateList{
		schemas.CSS("[data-testid='dashboard'], .dashboard, main[aria-label*='Dashboard']"),
		schemas.XPath("//*[contains(@class,'dashboard') or @data-testid='dashboard' or contains(@aria-label,'Dashboard')]"),
	},
	BalanceValue: schemas.CandidateList{
		schemas.CSS("#account-balance .amount, [data-testid='account-balance-amount'], .balance-amount"),
		schemas.XPath("//*[@id='account-balance']//*[contains(@class,'amount') or @data-testid='account-balance-amount']"),
		schemas.XPath("//*[contains(@class,'balance')]//*[contains(@class,'amount') or contains(@class,'value')][1]"),
	},
	NavTransfer: schemas.CandidateList{
		schemas.CSS("a[href*='transfer'], a[data-testid='nav-transfer'], button[data-testid='nav-transfer']"),
		schemas.XPath("//a[contains(@href,'transfer') or contains(.,'Transfer')] | //button[contains(.,'Transfer')]"),
	},
	TransferMark: schemas.CandidateList{
		schemas.CSS("[data-testid='transfer-page'], .transfer-form, form[action*='transfer']"),
		schemas.XPath("//*[@data-testid='transfer-page' or contains(@class,'transfer-form')] | //form[contains(@action,'transfer')]"),
	},
	CookieAccept: schemas.CandidateList{
		schemas.CSS("button[aria-label*='Accept'][aria-label*='cookies'], #onetrust-accept-btn-handler"),
		schemas.XPath("//button[contains(.,'Accept') and contains(.,'cookie')]"),
	},
}

var shopSelectors = struct {
	CookieAccept   schemas.CandidateList
	PopoverClose   schemas.CandidateList
	ResultsReady   schemas.CandidateList
	NextPage       schemas.CandidateList
	ProductLink    schemas.CandidateList
	AddToCart      schemas.CandidateList
	Checkout       schemas.CandidateList
	PlaceOrder     schemas.CandidateList
	WarrantyDecline schemas.CandidateList
}{
	CookieAccept: schemas.CandidateList{
		schemas.CSS("input#sp-cc-accept"),
		schemas.CSS("input[name='accept']"),
	},
	PopoverClose: schemas.CandidateList{
		schemas.CSS("button[data-action='a-popover-close']"),
		schemas.CSS("button[aria-label='Close']"),
	},
	ResultsReady: schemas.CandidateList{
		schemas.CSS("[data-component-type='s-search-result']"),
		schemas.CSS("div.s-main-slot"),
	},
	NextPage: schemas.CandidateList{
		schemas.CSS("a.s-pagination-next"),
	},
	ProductLink: schemas.CandidateList{
		schemas.CSS("h2 a.a-link-normal"),
		schemas.CSS("img.s-image"),
	},
	AddToCart: schemas.CandidateList{
		schemas.CSS("input#add-to-cart-button"),
		schemas.CSS("button[name='submit.addToCart']"),
		schemas.XPath("//*[@id='add-to-cart-button']"),
	},
	Checkout: schemas.CandidateList{
		schemas.CSS("input[name='proceedToRetailCheckout']"),
		schemas.CSS("a#attach-sidesheet-checkout-button"),
		schemas.CSS("a[name='sc-byc-ptc-button']"),
	},
	PlaceOrder: schemas.CandidateList{
		schemas.CSS("input[id='placeOrder'], #submitOrderButtonId"),
		schemas.CSS("input[name='placeYourOrder1']"),
	},
	WarrantyDecline: schemas.CandidateList{
		schemas.CSS("input#attachSiNoCoverage"),
		schemas.CSS("button[aria-labelledby='attachSiNoCoverage-announce']"),
	},
}

var shopInterstitial = struct {
	Signin  schemas.CandidateList
	Captcha schemas.CandidateList
}{
	Signin: schemas.CandidateList{
		schemas.CSS("#ap_email"),
		schemas.CSS("#ap_password"),
	},
	Captcha: schemas.CandidateList{
		schemas.CSS("form[action*='validateCaptcha']"),
		schemas.CSS("img[src*='captcha']"),
	},
}

var hotelSelectors = struct {
	CookieAccept    schemas.CandidateList
	DestInput       schemas.CandidateList
	Autocomplete    schemas.CandidateList
	DateCell        schemas.CandidateList
	SearchSubmit    schemas.CandidateList
	GuestToggle     schemas.CandidateList
	AdultsPlus      schemas.CandidateList
	AdultsMinus     schemas.CandidateList
	RoomsPlus       schemas.CandidateList
	StarFilter      schemas.CandidateList
	FirstResultLink schemas.CandidateList
	ReserveCTA      schemas.CandidateList
}{
	CookieAccept: schemas.CandidateList{
		schemas.XPath(`//button[.//span[contains(., "Accept")]]`),
		schemas.CSS("button[aria-label*='Accept'][aria-label*='cookie']"),
	},
	DestInput: schemas.CandidateList{
		schemas.CSS("input[name='ss']"),
		schemas.CSS("input[placeholder*='Where are you going']"),
		schemas.XPath("//input[@name='ss']"),
	},
	Autocomplete: schemas.CandidateList{
		schemas.XPath("//ul[@role='listbox']//li[.//div[contains(., '{city}')] or .//span[contains(., '{city}')] or .//button[contains(., '{city}')]]"),
		schemas.XPath("//div[@data-testid='autocomplete-results']//button[contains(normalize-space(.), '{city}')]"),
		schemas.XPath("(//ul[@role='listbox']//li//button)[1]"),
		schemas.XPath("(//div[@data-testid='autocomplete-results']//button)[1]"),
	},
	DateCell: schemas.CandidateList{
		schemas.XPath("//td[@data-date='{date}']"),
		schemas.CSS("[data-date='{date}']"),
	},
	SearchSubmit: schemas.CandidateList{
		schemas.CSS("button[type='submit'][data-testid='searchbox-submit-button']"),
		schemas.XPath("//button[contains(., 'Search')]"),
	},
	GuestToggle: schemas.CandidateList{
		schemas.CSS("[data-testid='occupancy-config'] button"),
	},
	AdultsPlus: schemas.CandidateList{
		schemas.CSS("button[aria-label*='Increase number of Adults']"),
	},
	AdultsMinus: schemas.CandidateList{
		schemas.CSS("button[aria-label*='Decrease number of Adults']"),
	},
	RoomsPlus: schemas.CandidateList{
		schemas.CSS("button[aria-label*='Increase number of Rooms']"),
	},
	StarFilter: schemas.CandidateList{
		schemas.XPath("//*[contains(.,'{stars} stars')]/ancestor::label"),
	},
	FirstResultLink: schemas.CandidateList{
		schemas.CSS("[data-testid='title-link']"),
		schemas.XPath("(//a[@data-testid='title-link'])[1]"),
	},
	ReserveCTA: schemas.CandidateList{
		schemas.CSS("span[class='bui-button__text']"),
		schemas.XPath(`//button[contains(.,"I'll reserve")]`),
		schemas.XPath(`//button[contains(.,"Reserve")]`),
		schemas.XPath(`//button[contains(.,"Book now") or contains(.,"Continue")]`),
	},
}

// DetectorSelectors assembles the detector's candidate lists from the
// catalog tables, keeping all selectors in one place.
func DetectorSelectors() detect.Selectors {
	return detect.Selectors{
		UsernameField: bankSelectors.LoginUsername,
		PasswordField: bankSelectors.LoginPassword,
		DashboardMark: bankSelectors.DashboardMark,
		TransferMark:  bankSelectors.TransferMark,
		BalanceAmount: bankSelectors.BalanceValue,
		SigninMark:    shopInterstitial.Signin,
		CaptchaMark:   shopInterstitial.Captcha,
	}
}

// PlaceOrderProbe is the place-order control list the checkout guard uses
// for its diagnostic presence check.
func PlaceOrderProbe() schemas.CandidateList {
	return shopSelectors.PlaceOrder
}

// listOf wraps a single rendered target into a one-entry candidate list.
func listOf(strategy schemas.Strategy, selector string) schemas.CandidateList {
	return schemas.CandidateList{{Strategy: strategy, Pattern: selector}}
}
