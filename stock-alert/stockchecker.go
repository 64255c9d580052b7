package main

import (
	"context"
	"fmt"
	"time"

	"rtx-finder/pkg/driver"
	"rtx-finder/pkg/driver/webshop"
	"rtx-finder/pkg/helperfuncs"
	"rtx-finder/pkg/notify"
	"rtx-finder/pkg/structs"
)

// checkProduct runs one check of one card: load the page, look for the buy button, read the price and react.
// Out of stock and unreadable prices are outcomes, not errors. Only session failures and failed
// screenshot writes are returned as errors
func (handler *StockAlertHandler) checkProduct(ctx context.Context, session driver.Session, shop webshop.Webshop, card structs.Card, maxPrice float64, budget *structs.PurchaseBudget) (structs.CheckOutcome, error) {
	helperfuncs.Log("Checking %s", card.Name)

	if err := session.Navigate(ctx, card.URL); err != nil {
		return structs.CheckOutcome{}, fmt.Errorf("Failed to load %s (%w)", card.Name, err)
	}

	inStock, err := shop.IsAvailable(session)
	if err != nil {
		return structs.CheckOutcome{}, fmt.Errorf("Failed to check stock for %s (%w)", card.Name, err)
	}
	if !inStock {
		helperfuncs.Log("%s sold out", card.Name)
		return handler.record(card, structs.CheckOutcome{Kind: structs.NotAvailable}), nil
	}

	price, ok := shop.GetPrice(session)
	if !ok {
		helperfuncs.Warn("%s is in stock but the price could not be read", card.Name)
		handler.alert(card, fmt.Sprintf("Found card %s but could not read the price", card.Name))
		return handler.record(card, structs.CheckOutcome{Kind: structs.AvailableUnparsablePrice}), nil
	}

	if maxPrice != 0 && price > maxPrice {
		helperfuncs.Log("Found %s for %s%.2f, above the limit of %s%.2f", card.Name, shop.Currency(), price, shop.Currency(), maxPrice)
		return handler.record(card, structs.CheckOutcome{Kind: structs.AvailableAboveLimit, Price: price}), nil
	}

	outcome := handler.record(card, structs.CheckOutcome{Kind: structs.AvailableWithinBudget, Price: price})
	handler.alert(card, fmt.Sprintf("Found card %s for %s%.2f", card.Name, shop.Currency(), price))

	if handler.Settings.Autobuy {
		result, err := shop.Buy(ctx, session, budget)
		switch {
		case err != nil:
			helperfuncs.Error("Failed to buy %s (%v)", card.Name, err)
		case result == webshop.BudgetExhausted:
			helperfuncs.Warn("Not buying %s, autobuy limit of %d reached", card.Name, budget.Limit())
		default:
			helperfuncs.Log("Bought %s for %s%.2f (%d of %d)", card.Name, shop.Currency(), price, budget.Bought(), budget.Limit())
		}
	}

	path, err := helperfuncs.SaveScreenshot(handler.Settings.TakeScreenshots, session, handler.ScreenshotDir, handler.Now())
	if err != nil {
		return outcome, fmt.Errorf("Failed to save screenshot of %s (%w)", card.Name, err)
	}
	if path != "" {
		helperfuncs.Log("Saved screenshot %s", path)
	}

	return outcome, nil
}

// alert notifies the user and then opens the product page. Opening is best effort and only happens
// after the notification call returned
func (handler *StockAlertHandler) alert(card structs.Card, message string) {
	if err := handler.Notifier.Notify(notify.Title, message); err != nil {
		helperfuncs.Warn("%v", err)
	}
	helperfuncs.Log("%s", message)

	if handler.Open == nil || !handler.Settings.ShouldOpenOnNotify() {
		return
	}
	if err := handler.Open(card.URL); err != nil {
		helperfuncs.Warn("Failed to open %s (%v)", card.URL, err)
	}
}

// logIn signs in on the storefront of the first card, retrying up to LoginRetries times
func (handler *StockAlertHandler) logIn(ctx context.Context, session driver.Session) error {
	shop := handler.Webshops[handler.Settings.Cards[0].URL]
	attempts := handler.Settings.LoginRetries + 1

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		helperfuncs.Log("Logging in")
		err = shop.LogIn(ctx, session, handler.Settings.AmazonUsername, handler.Settings.AmazonPassword)
		if err == nil {
			helperfuncs.Log("Completed login")
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		helperfuncs.Warn("Login attempt %d of %d failed (%v)", attempt, attempts, err)
	}
	return fmt.Errorf("Failed to log in (%w)", err)
}

// monitor logs in if asked to and then checks every card in order, forever, sleeping SleepTime seconds
// after each full pass. It only returns on a session failure or when ctx is cancelled
func (handler *StockAlertHandler) monitor(ctx context.Context, session driver.Session) error {
	budget := structs.NewPurchaseBudget(handler.Settings.AutobuyLimit)
	handler.mutex.Lock()
	handler.budget = budget
	handler.mutex.Unlock()

	if handler.Settings.Login {
		if err := handler.logIn(ctx, session); err != nil {
			return err
		}
	}

	interval := time.Duration(handler.Settings.SleepTime * float64(time.Second))
	for {
		for _, card := range handler.Settings.Cards {
			maxPrice := handler.Settings.EffectiveMaxPrice(card)
			_, err := handler.checkProduct(ctx, session, handler.Webshops[card.URL], card, maxPrice, budget)
			if err != nil {
				// a cancelled context makes whatever step was running fail, report the cancellation instead
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				return err
			}
			helperfuncs.Debug("Finished checking %s", card.Name)
		}

		helperfuncs.Log("Finished checking all cards; sleeping for %v seconds", handler.Settings.SleepTime)
		if err := session.Sleep(ctx, interval); err != nil {
			return err
		}
	}
}
