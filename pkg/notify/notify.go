// Package notify delivers stock alerts to the user
package notify

import (
	"fmt"

	"github.com/gen2brain/beeep"
)

// Title is used for every notification the monitor sends
const Title = "RTX Finder"

// Notifier sends a single alert
type Notifier interface {
	Notify(title, message string) error
}

// Desktop shows alerts as native desktop notifications
type Desktop struct {
	// Icon is an optional path to an image shown next to the alert
	Icon string
}

func (d Desktop) Notify(title, message string) error {
	if err := beeep.Notify(title, message, d.Icon); err != nil {
		return fmt.Errorf("Failed to show desktop notification (%w)", err)
	}
	return nil
}

// Func adapts a plain function to a Notifier
type Func func(title, message string) error

func (f Func) Notify(title, message string) error {
	return f(title, message)
}
