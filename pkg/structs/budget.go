package structs

import (
	"sync"
	"sync/atomic"
)

// PurchaseBudget counts automated purchases against a fixed ceiling for the lifetime of the process
type PurchaseBudget struct {
	// mutex serialises Spend, bought is atomic so readers never wait for a checkout in progress
	mutex  sync.Mutex
	limit  int
	bought atomic.Int64
}

// NewPurchaseBudget creates a budget that allows up to limit purchases
func NewPurchaseBudget(limit int) *PurchaseBudget {
	return &PurchaseBudget{limit: limit}
}

// Spend runs purchase only while the ceiling has not been reached and counts it once it returns nil.
// The check, the purchase and the increment happen under one lock so the count can never pass the limit.
// The first return value is false when the budget was already exhausted and purchase was not called
func (budget *PurchaseBudget) Spend(purchase func() error) (bool, error) {
	budget.mutex.Lock()
	defer budget.mutex.Unlock()

	if budget.Exhausted() {
		return false, nil
	}
	if err := purchase(); err != nil {
		return true, err
	}
	budget.bought.Add(1)
	return true, nil
}

// Bought returns how many purchases have been made so far
func (budget *PurchaseBudget) Bought() int {
	return int(budget.bought.Load())
}

// Limit returns the purchase ceiling
func (budget *PurchaseBudget) Limit() int {
	return budget.limit
}

// Exhausted reports whether no further purchase is allowed
func (budget *PurchaseBudget) Exhausted() bool {
	return budget.Bought() >= budget.limit
}
