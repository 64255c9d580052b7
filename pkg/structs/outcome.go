package structs

import "fmt"

// OutcomeKind says how far a single product check got
type OutcomeKind int

const (
	NotAvailable OutcomeKind = iota
	AvailableUnparsablePrice
	AvailableWithinBudget
	AvailableAboveLimit
)

func (kind OutcomeKind) String() string {
	switch kind {
	case NotAvailable:
		return "not available"
	case AvailableUnparsablePrice:
		return "available, price unreadable"
	case AvailableWithinBudget:
		return "available within budget"
	case AvailableAboveLimit:
		return "available above limit"
	}
	return fmt.Sprintf("OutcomeKind(%d)", int(kind))
}

// CheckOutcome is the result of one check of one card. Price is only meaningful for
// AvailableWithinBudget and AvailableAboveLimit
type CheckOutcome struct {
	Kind  OutcomeKind
	Price float64
}
