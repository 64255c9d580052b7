package webshop

import (
	"context"

	"rtx-finder/pkg/driver"
	"rtx-finder/pkg/structs"
)

// PurchaseResult tells whether Buy went through with the checkout
type PurchaseResult int

const (
	Purchased PurchaseResult = iota
	BudgetExhausted
	// PurchaseFailed means the checkout sequence was started but did not complete. It is not counted
	PurchaseFailed
)

func (result PurchaseResult) String() string {
	switch result {
	case Purchased:
		return "purchased"
	case BudgetExhausted:
		return "budget exhausted"
	}
	return "purchase failed"
}

// Webshop knows where things are on one retailer's pages
type Webshop interface {
	// LogIn runs the retailer's sign in sequence
	LogIn(ctx context.Context, session driver.Session, username, password string) error
	// IsAvailable reports whether the loaded product page offers a purchase action
	IsAvailable(session driver.Session) (bool, error)
	// GetPrice reads the displayed price of the loaded product page. ok is false when it cannot be read
	GetPrice(session driver.Session) (price float64, ok bool)
	// Buy runs the checkout sequence if the budget still allows a purchase
	Buy(ctx context.Context, session driver.Session, budget *structs.PurchaseBudget) (PurchaseResult, error)
	// Currency is the symbol prices are displayed with
	Currency() string
}
