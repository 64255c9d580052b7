package amazon

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"rtx-finder/pkg/driver"
	"rtx-finder/pkg/driver/webshop"
	"rtx-finder/pkg/structs"
)

const (
	accountSelector    = "#nav-link-accountList-nav-line-1"
	emailSelector      = "#ap_email"
	continueSelector   = "#continue"
	passwordSelector   = "#ap_password"
	signInSelector     = "#signInSubmit"
	buyNowSelector     = "#buy-now-button"
	checkoutSelector   = "#turbo-checkout-pyo-button"
	priceSelector      = "#priceblock_ourprice"
	DefaultWaitTimeout = 5 * time.Second
	DefaultSettleDelay = 3 * time.Second
)

var priceRegexp = regexp.MustCompile(`^\d+(\.\d+)?$`)

type locale struct {
	homeURL      string
	currency     string
	decimalComma bool
}

var locales = map[structs.Webshop]locale{
	structs.WEBSHOP_AMAZONUK: {homeURL: "https://www.amazon.co.uk/", currency: "£"},
	structs.WEBSHOP_AMAZON:   {homeURL: "https://www.amazon.com/", currency: "$"},
	structs.WEBSHOP_AMAZONDE: {homeURL: "https://www.amazon.de/", currency: "€", decimalComma: true},
	structs.WEBSHOP_AMAZONFR: {homeURL: "https://www.amazon.fr/", currency: "€", decimalComma: true},
	structs.WEBSHOP_AMAZONIT: {homeURL: "https://www.amazon.it/", currency: "€", decimalComma: true},
	structs.WEBSHOP_AMAZONNL: {homeURL: "https://www.amazon.nl/", currency: "€", decimalComma: true},
}

// Webshop represents an instance of this webshop driver for one Amazon storefront
type Webshop struct {
	locale locale
	// WaitTimeout bounds every wait for the next control during login and checkout
	WaitTimeout time.Duration
	// SettleDelay is slept after a purchase so the next navigation does not race Amazon's page transition
	SettleDelay time.Duration
}

// New instantiates a new instance of this driver. Unknown kinds fall back to amazon.co.uk
func New(kind structs.Webshop) *Webshop {
	l, ok := locales[kind]
	if !ok {
		l = locales[structs.WEBSHOP_AMAZONUK]
	}
	return &Webshop{
		locale:      l,
		WaitTimeout: DefaultWaitTimeout,
		SettleDelay: DefaultSettleDelay,
	}
}

// Currency returns the currency symbol of this storefront
func (shop *Webshop) Currency() string {
	return shop.locale.currency
}

// LogIn opens the storefront and signs in. Each step waits for its control to become visible and
// any failure aborts the whole sequence
func (shop *Webshop) LogIn(ctx context.Context, session driver.Session, username, password string) error {
	if err := session.Navigate(ctx, shop.locale.homeURL); err != nil {
		return err
	}

	if err := click(session, accountSelector); err != nil {
		return fmt.Errorf("Failed to open sign in (%w)", err)
	}
	if err := shop.typeInto(ctx, session, emailSelector, username); err != nil {
		return fmt.Errorf("Failed to enter username (%w)", err)
	}
	if err := click(session, continueSelector); err != nil {
		return fmt.Errorf("Failed to submit username (%w)", err)
	}
	if err := shop.typeInto(ctx, session, passwordSelector, password); err != nil {
		return fmt.Errorf("Failed to enter password (%w)", err)
	}
	if err := click(session, signInSelector); err != nil {
		return fmt.Errorf("Failed to submit password (%w)", err)
	}
	return nil
}

// IsAvailable checks for a buy now button. Its visibility does not matter, only that it exists
func (shop *Webshop) IsAvailable(session driver.Session) (bool, error) {
	elements, err := session.FindAll(buyNowSelector)
	if err != nil {
		return false, err
	}
	return len(elements) > 0, nil
}

// GetPrice reads the price block. A missing or hidden price block and text that is not a number
// all give ok == false
func (shop *Webshop) GetPrice(session driver.Session) (float64, bool) {
	element, err := session.FindOne(priceSelector)
	if err != nil {
		return 0, false
	}
	text, err := driver.TextOf(element)
	if err != nil {
		return 0, false
	}
	return ParsePrice(text, shop.locale.currency, shop.locale.decimalComma)
}

// ParsePrice turns displayed price text like "£1,299.99" into a number.
// With decimalComma the separators are swapped ("1.299,99 €")
func ParsePrice(text, currency string, decimalComma bool) (float64, bool) {
	text = strings.ReplaceAll(text, currency, "")
	text = strings.ReplaceAll(text, " ", "")
	text = strings.ReplaceAll(text, "\u00a0", "")
	text = strings.TrimSpace(text)

	if decimalComma {
		text = strings.ReplaceAll(text, ".", "")
		text = strings.ReplaceAll(text, ",", ".")
	} else {
		text = strings.ReplaceAll(text, ",", "")
	}
	if !priceRegexp.MatchString(text) {
		return 0, false
	}

	price, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, false
	}
	return price, true
}

// Buy clicks buy now and then confirms the order, as long as the budget has room left.
// Nothing is clicked once the budget is exhausted
func (shop *Webshop) Buy(ctx context.Context, session driver.Session, budget *structs.PurchaseBudget) (webshop.PurchaseResult, error) {
	attempted, err := budget.Spend(func() error {
		if err := click(session, buyNowSelector); err != nil {
			return fmt.Errorf("Failed to click buy now (%w)", err)
		}
		if err := session.WaitVisible(ctx, checkoutSelector, shop.WaitTimeout); err != nil {
			return fmt.Errorf("Checkout confirmation did not show up (%w)", err)
		}
		if err := click(session, checkoutSelector); err != nil {
			return fmt.Errorf("Failed to place order (%w)", err)
		}
		return nil
	})
	if !attempted {
		return webshop.BudgetExhausted, nil
	}
	if err != nil {
		return webshop.PurchaseFailed, err
	}

	// a cancelled settle is picked up by the caller's next blocking step
	_ = session.Sleep(ctx, shop.SettleDelay)
	return webshop.Purchased, nil
}

func (shop *Webshop) typeInto(ctx context.Context, session driver.Session, selector, text string) error {
	if err := session.WaitVisible(ctx, selector, shop.WaitTimeout); err != nil {
		return err
	}
	element, err := session.FindOne(selector)
	if err != nil {
		return err
	}
	return element.SendKeys(text)
}

func click(session driver.Session, selector string) error {
	element, err := session.FindOne(selector)
	if err != nil {
		return err
	}
	return element.Click()
}
