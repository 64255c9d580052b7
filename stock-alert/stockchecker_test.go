package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"rtx-finder/pkg/driver"
	"rtx-finder/pkg/driver/drivertest"
	"rtx-finder/pkg/driver/webshop/amazon"
	"rtx-finder/pkg/helperfuncs"
	"rtx-finder/pkg/notify"
	"rtx-finder/pkg/structs"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	cardURL       = "https://www.amazon.co.uk/dp/B08HR7SV3M"
	otherCardURL  = "https://www.amazon.co.uk/dp/B08KWLMZV4"
	homeURL       = "https://www.amazon.co.uk/"
	buyNow        = "#buy-now-button"
	checkout      = "#turbo-checkout-pyo-button"
	priceBlock    = "#priceblock_ourprice"
	settleDelay   = amazon.DefaultSettleDelay
	interCycleGap = 30 * time.Second
)

var fixedNow = time.Date(2020, time.September, 17, 14, 30, 0, 0, time.Local)

type recorder struct {
	notifications []string
	opened        []string
}

type fixture struct {
	handler  *StockAlertHandler
	session  *drivertest.Session
	recorder *recorder
	card     structs.Card
}

func newFixture(t *testing.T, settings structs.Settings, page drivertest.Page) *fixture {
	t.Helper()

	var logs bytes.Buffer
	helperfuncs.SetLogOutput(&logs)
	t.Cleanup(func() { helperfuncs.SetLogOutput(os.Stdout) })

	if len(settings.Cards) == 0 {
		settings.Cards = []structs.Card{{Name: "RTX 3080 FE", URL: cardURL}}
	}

	rec := &recorder{}
	handler, err := NewStockAlertHandler(&settings, notify.Func(func(title, message string) error {
		assert.Equal(t, notify.Title, title)
		rec.notifications = append(rec.notifications, message)
		return nil
	}))
	require.NoError(t, err)
	handler.Open = func(url string) error {
		rec.opened = append(rec.opened, url)
		return nil
	}
	handler.ScreenshotDir = filepath.Join(t.TempDir(), "screenshots")
	handler.Now = func() time.Time { return fixedNow }

	pages := map[string]drivertest.Page{}
	for _, card := range settings.Cards {
		pages[card.URL] = page
	}
	return &fixture{
		handler:  handler,
		session:  drivertest.New(pages),
		recorder: rec,
		card:     settings.Cards[0],
	}
}

func (f *fixture) check(t *testing.T, maxPrice float64, budget *structs.PurchaseBudget) structs.CheckOutcome {
	t.Helper()
	outcome, err := f.handler.checkProduct(context.Background(), f.session, f.handler.Webshops[f.card.URL], f.card, maxPrice, budget)
	require.NoError(t, err)
	return outcome
}

func (f *fixture) screenshotCount(t *testing.T) int {
	t.Helper()
	entries, err := os.ReadDir(f.handler.ScreenshotDir)
	if os.IsNotExist(err) {
		return 0
	}
	require.NoError(t, err)
	return len(entries)
}

func inStockPage(price string) drivertest.Page {
	return drivertest.Page{
		buyNow:     {{}},
		checkout:   {{}},
		priceBlock: {{Value: price}},
	}
}

func autobuySettings(limit int) structs.Settings {
	return structs.Settings{
		Login:           true,
		AmazonUsername:  "me@example.com",
		AmazonPassword:  "hunter2",
		Autobuy:         true,
		AutobuyLimit:    limit,
		TakeScreenshots: true,
	}
}

func TestCheckProductNotAvailable(t *testing.T) {
	f := newFixture(t, autobuySettings(5), drivertest.Page{priceBlock: {{Value: "£499.99"}}})

	outcome := f.check(t, 500, structs.NewPurchaseBudget(5))

	assert.Equal(t, structs.CheckOutcome{Kind: structs.NotAvailable}, outcome)
	assert.Equal(t, []string{cardURL}, f.session.Navigations)
	assert.Empty(t, f.recorder.notifications)
	assert.Empty(t, f.recorder.opened)
	assert.Empty(t, f.session.Clicks)
	assert.Equal(t, 0, f.session.Screenshots)
	assert.Equal(t, 0, f.screenshotCount(t))
}

func TestCheckProductWithinBudget(t *testing.T) {
	tests := []struct {
		name            string
		autobuy         bool
		takeScreenshots bool
		limit           int
		maxPrice        float64
		wantBought      int
	}{
		{name: "autobuy and screenshots", autobuy: true, takeScreenshots: true, limit: 1, maxPrice: 500, wantBought: 1},
		{name: "notify only", autobuy: false, takeScreenshots: false, limit: 1, maxPrice: 500},
		{name: "screenshots without autobuy", autobuy: false, takeScreenshots: true, limit: 1, maxPrice: 500},
		{name: "budget already empty", autobuy: true, takeScreenshots: true, limit: 0, maxPrice: 500},
		{name: "zero max price means no limit", autobuy: true, takeScreenshots: false, limit: 1, maxPrice: 0, wantBought: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := autobuySettings(tt.limit)
			settings.Autobuy = tt.autobuy
			settings.TakeScreenshots = tt.takeScreenshots
			f := newFixture(t, settings, inStockPage("£499.99"))
			budget := structs.NewPurchaseBudget(tt.limit)

			outcome := f.check(t, tt.maxPrice, budget)

			assert.Equal(t, structs.CheckOutcome{Kind: structs.AvailableWithinBudget, Price: 499.99}, outcome)
			assert.Equal(t, []string{"Found card RTX 3080 FE for £499.99"}, f.recorder.notifications)
			assert.Equal(t, []string{cardURL}, f.recorder.opened)
			assert.Equal(t, tt.wantBought, budget.Bought())
			assert.Equal(t, tt.wantBought, f.session.ClickCount(checkout))

			wantScreenshots := 0
			if tt.takeScreenshots {
				wantScreenshots = 1
			}
			assert.Equal(t, wantScreenshots, f.screenshotCount(t))
			if tt.takeScreenshots {
				assert.FileExists(t, filepath.Join(f.handler.ScreenshotDir, "17-09-2020_14-30-00.png"))
			}
		})
	}
}

func TestCheckProductAboveLimit(t *testing.T) {
	f := newFixture(t, autobuySettings(5), inStockPage("£499.99"))
	budget := structs.NewPurchaseBudget(5)

	outcome := f.check(t, 400, budget)

	assert.Equal(t, structs.CheckOutcome{Kind: structs.AvailableAboveLimit, Price: 499.99}, outcome)
	assert.Empty(t, f.recorder.notifications)
	assert.Empty(t, f.session.Clicks)
	assert.Equal(t, 0, budget.Bought())
	assert.Equal(t, 0, f.screenshotCount(t))
}

func TestCheckProductPriceEqualToLimitIsWithinBudget(t *testing.T) {
	f := newFixture(t, structs.Settings{}, inStockPage("£500.00"))

	outcome := f.check(t, 500, structs.NewPurchaseBudget(0))
	assert.Equal(t, structs.AvailableWithinBudget, outcome.Kind)
}

func TestCheckProductUnparsablePrice(t *testing.T) {
	pages := map[string]drivertest.Page{
		"price block missing": {buyNow: {{}}, checkout: {{}}},
		"price block hidden":  {buyNow: {{}}, checkout: {{}}, priceBlock: {{Hidden: true, Value: "£499.99"}}},
		"price text garbage":  {buyNow: {{}}, checkout: {{}}, priceBlock: {{Value: "See all buying options"}}},
	}

	for name, page := range pages {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, autobuySettings(5), page)
			budget := structs.NewPurchaseBudget(5)

			outcome := f.check(t, 500, budget)

			assert.Equal(t, structs.CheckOutcome{Kind: structs.AvailableUnparsablePrice}, outcome)
			assert.Equal(t, []string{"Found card RTX 3080 FE but could not read the price"}, f.recorder.notifications)
			assert.Empty(t, f.session.Clicks, "no purchase without a price")
			assert.Equal(t, 0, budget.Bought())
			assert.Equal(t, 0, f.screenshotCount(t))
		})
	}
}

func TestCheckProductBudgetExhaustedOnSecondMatch(t *testing.T) {
	f := newFixture(t, autobuySettings(1), inStockPage("£499.99"))
	budget := structs.NewPurchaseBudget(1)

	f.check(t, 500, budget)
	assert.Equal(t, 1, budget.Bought())
	assert.Equal(t, 1, f.session.ClickCount(buyNow))

	f.check(t, 500, budget)
	assert.Equal(t, 1, budget.Bought())
	assert.Equal(t, 1, f.session.ClickCount(buyNow), "no second click sequence")
	assert.Equal(t, 1, f.session.ClickCount(checkout))
	assert.Len(t, f.recorder.notifications, 2)
	assert.Equal(t, []time.Duration{settleDelay}, f.session.Sleeps)
}

func TestCheckProductFailedPurchaseStillCapturesEvidence(t *testing.T) {
	page := drivertest.Page{buyNow: {{}}, priceBlock: {{Value: "£499.99"}}}
	f := newFixture(t, autobuySettings(1), page)
	budget := structs.NewPurchaseBudget(1)

	outcome := f.check(t, 500, budget)

	assert.Equal(t, structs.AvailableWithinBudget, outcome.Kind)
	assert.Equal(t, 0, budget.Bought())
	assert.Equal(t, 1, f.screenshotCount(t))
}

func TestCheckProductErrors(t *testing.T) {
	t.Run("navigation failure is returned", func(t *testing.T) {
		f := newFixture(t, structs.Settings{}, inStockPage("£499.99"))
		boom := errors.New("invalid session id")
		f.session.NavigateErr = boom

		_, err := f.handler.checkProduct(context.Background(), f.session, f.handler.Webshops[cardURL], f.card, 500, structs.NewPurchaseBudget(0))
		assert.ErrorIs(t, err, boom)
		assert.Empty(t, f.recorder.notifications)
	})

	t.Run("screenshot failure is returned", func(t *testing.T) {
		settings := structs.Settings{TakeScreenshots: true}
		f := newFixture(t, settings, inStockPage("£499.99"))
		boom := errors.New("screenshot failed")
		f.session.ScreenshotErr = boom

		outcome, err := f.handler.checkProduct(context.Background(), f.session, f.handler.Webshops[cardURL], f.card, 500, structs.NewPurchaseBudget(0))
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, structs.AvailableWithinBudget, outcome.Kind)
		assert.Len(t, f.recorder.notifications, 1)
	})
}

func TestAlertOpensOnlyWhenEnabled(t *testing.T) {
	disabled := false
	f := newFixture(t, structs.Settings{OpenOnNotify: &disabled}, inStockPage("£499.99"))

	f.check(t, 500, structs.NewPurchaseBudget(0))
	assert.Len(t, f.recorder.notifications, 1)
	assert.Empty(t, f.recorder.opened)
}

func TestAlertSurvivesNotifierFailure(t *testing.T) {
	f := newFixture(t, structs.Settings{}, inStockPage("£499.99"))
	f.handler.Notifier = notify.Func(func(string, string) error { return errors.New("no notification daemon") })

	outcome := f.check(t, 500, structs.NewPurchaseBudget(0))
	assert.Equal(t, structs.AvailableWithinBudget, outcome.Kind)
	assert.Equal(t, []string{cardURL}, f.recorder.opened)
}

// cancellingSession stops the monitor after a number of full passes
type cancellingSession struct {
	*drivertest.Session
	cancel     context.CancelFunc
	passes     int
	stopAfter  int
	interCycle time.Duration
}

func (s *cancellingSession) Sleep(ctx context.Context, d time.Duration) error {
	if d == s.interCycle {
		s.passes++
		if s.passes >= s.stopAfter {
			s.cancel()
		}
	}
	return s.Session.Sleep(ctx, d)
}

func TestMonitor(t *testing.T) {
	override := 400.0
	settings := autobuySettings(1)
	settings.TakeScreenshots = false
	settings.MaxPrice = 500
	settings.SleepTime = interCycleGap.Seconds()
	settings.Cards = []structs.Card{
		{Name: "RTX 3080 FE", URL: cardURL},
		{Name: "RTX 3070", URL: otherCardURL, MaxPrice: &override},
	}
	f := newFixture(t, settings, inStockPage("£450.00"))
	f.session.Pages[homeURL] = drivertest.Page{
		"#nav-link-accountList-nav-line-1": {{}},
		"#ap_email":                        {{}},
		"#continue":                        {{}},
		"#ap_password":                     {{}},
		"#signInSubmit":                    {{}},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	session := &cancellingSession{Session: f.session, cancel: cancel, stopAfter: 2, interCycle: interCycleGap}

	err := f.handler.monitor(ctx, session)
	assert.ErrorIs(t, err, context.Canceled)

	wantNavigations := []string{homeURL, cardURL, otherCardURL, cardURL, otherCardURL}
	if diff := cmp.Diff(wantNavigations, f.session.Navigations); diff != "" {
		t.Errorf("navigations mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{
		"Found card RTX 3080 FE for £450.00",
		"Found card RTX 3080 FE for £450.00",
	}, f.recorder.notifications, "the 3070 override of 400 keeps it quiet")
	assert.Equal(t, 1, f.session.ClickCount(checkout), "autobuy limit of 1")
	assert.Equal(t, []time.Duration{settleDelay, interCycleGap, interCycleGap}, f.session.Sleeps)
	assert.Equal(t, "hunter2", f.session.Typed["#ap_password"])
}

func TestMonitorStopsOnSessionFailure(t *testing.T) {
	f := newFixture(t, structs.Settings{}, inStockPage("£450.00"))
	boom := errors.New("chrome not reachable")
	f.session.NavigateErr = boom

	err := f.handler.monitor(context.Background(), f.session)
	assert.ErrorIs(t, err, boom)
}

func TestMonitorLogin(t *testing.T) {
	t.Run("aborts when the login form never shows up", func(t *testing.T) {
		f := newFixture(t, autobuySettings(1), inStockPage("£450.00"))
		f.session.Pages[homeURL] = drivertest.Page{"#nav-link-accountList-nav-line-1": {{}}}

		err := f.handler.monitor(context.Background(), f.session)
		assert.ErrorIs(t, err, driver.ErrTimeout)
		assert.Equal(t, []string{homeURL}, f.session.Navigations, "no product is checked")
	})

	t.Run("retries the configured number of times", func(t *testing.T) {
		settings := autobuySettings(1)
		settings.LoginRetries = 2
		f := newFixture(t, settings, inStockPage("£450.00"))
		f.session.Pages[homeURL] = drivertest.Page{"#nav-link-accountList-nav-line-1": {{}}}

		err := f.handler.monitor(context.Background(), f.session)
		assert.ErrorIs(t, err, driver.ErrTimeout)
		assert.Equal(t, []string{homeURL, homeURL, homeURL}, f.session.Navigations)
	})
}

func TestNewStockAlertHandlerRejectsUnknownWebshop(t *testing.T) {
	settings := &structs.Settings{Cards: []structs.Card{{Name: "3080", URL: "https://www.scan.co.uk/3080"}}}
	_, err := NewStockAlertHandler(settings, notify.Func(func(string, string) error { return nil }))
	assert.Error(t, err)
}

func TestServeClosesSessionOnEveryExit(t *testing.T) {
	loginPage := drivertest.Page{"#nav-link-accountList-nav-line-1": {{}}}

	tests := []struct {
		name     string
		settings structs.Settings
		page     drivertest.Page
		setup    func(t *testing.T, f *fixture) (context.Context, driver.Session)
		want     int
	}{
		{
			name:     "login timeout",
			settings: autobuySettings(1),
			page:     inStockPage("£450.00"),
			setup: func(t *testing.T, f *fixture) (context.Context, driver.Session) {
				f.session.Pages[homeURL] = loginPage
				return context.Background(), f.session
			},
			want: 1,
		},
		{
			name: "session failure",
			page: inStockPage("£450.00"),
			setup: func(t *testing.T, f *fixture) (context.Context, driver.Session) {
				f.session.NavigateErr = errors.New("chrome not reachable")
				return context.Background(), f.session
			},
			want: 1,
		},
		{
			name:     "screenshot write failure",
			settings: structs.Settings{TakeScreenshots: true},
			page:     inStockPage("£450.00"),
			setup: func(t *testing.T, f *fixture) (context.Context, driver.Session) {
				blocker := filepath.Join(t.TempDir(), "not-a-dir")
				require.NoError(t, os.WriteFile(blocker, nil, 0o644))
				f.handler.ScreenshotDir = filepath.Join(blocker, "screenshots")
				return context.Background(), f.session
			},
			want: 1,
		},
		{
			name:     "cancelled while sleeping",
			settings: structs.Settings{SleepTime: interCycleGap.Seconds()},
			page:     drivertest.Page{},
			setup: func(t *testing.T, f *fixture) (context.Context, driver.Session) {
				ctx, cancel := context.WithCancel(context.Background())
				t.Cleanup(cancel)
				return ctx, &cancellingSession{Session: f.session, cancel: cancel, stopAfter: 1, interCycle: interCycleGap}
			},
			want: 0,
		},
		{
			name: "cancelled before the first check",
			page: inStockPage("£450.00"),
			setup: func(t *testing.T, f *fixture) (context.Context, driver.Session) {
				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				return ctx, f.session
			},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.settings, tt.page)
			ctx, session := tt.setup(t, f)

			opened := 0
			status := serve(ctx, f.handler, func(settings *structs.Settings) (driver.Session, error) {
				assert.Same(t, f.handler.Settings, settings)
				opened++
				return session, nil
			})

			assert.Equal(t, tt.want, status)
			assert.Equal(t, 1, opened)
			assert.Equal(t, 1, f.session.CloseCalls)
		})
	}
}

func TestServeSessionStartFailure(t *testing.T) {
	f := newFixture(t, structs.Settings{}, inStockPage("£450.00"))

	status := serve(context.Background(), f.handler, func(*structs.Settings) (driver.Session, error) {
		return nil, errors.New("chromedriver not found")
	})

	assert.Equal(t, 1, status)
	assert.Empty(t, f.session.Navigations)
	assert.Equal(t, 0, f.session.CloseCalls)
}
