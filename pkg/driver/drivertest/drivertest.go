// Package drivertest provides a scripted driver.Session for tests that should not need a browser
package drivertest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"rtx-finder/pkg/driver"
)

// Page maps CSS selectors to the elements a fake page contains
type Page map[string][]*Element

// Element is a fake page element
type Element struct {
	Hidden bool
	Value  string
	// Err is returned from Click and SendKeys when set
	Err error

	selector string
	session  *Session
}

// Session replays Pages keyed by URL and records what the code under test did with them
type Session struct {
	mutex sync.Mutex

	Pages map[string]Page
	// Image is returned from Screenshot
	Image []byte
	// NavigateErr is returned from every Navigate when set
	NavigateErr error
	// ScreenshotErr is returned from Screenshot when set
	ScreenshotErr error

	current     Page
	Navigations []string
	Clicks      []string
	Typed       map[string]string
	Sleeps      []time.Duration
	Screenshots int
	CloseCalls  int
}

// New creates a session serving pages
func New(pages map[string]Page) *Session {
	return &Session{
		Pages: pages,
		Image: []byte("\x89PNG fake"),
		Typed: make(map[string]string),
	}
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	s.Navigations = append(s.Navigations, url)
	if s.NavigateErr != nil {
		return s.NavigateErr
	}
	s.current = s.Pages[url]
	return nil
}

func (s *Session) lookup(selector string) []*Element {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	found := s.current[selector]
	for _, element := range found {
		element.selector = selector
		element.session = s
	}
	return found
}

func (s *Session) FindAll(selector string) ([]driver.Element, error) {
	found := s.lookup(selector)
	elements := make([]driver.Element, 0, len(found))
	for _, element := range found {
		elements = append(elements, element)
	}
	return elements, nil
}

func (s *Session) FindOne(selector string) (driver.Element, error) {
	found := s.lookup(selector)
	if len(found) == 0 {
		return nil, fmt.Errorf("%s: %w", selector, driver.ErrElementNotFound)
	}
	return found[0], nil
}

func (s *Session) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, element := range s.lookup(selector) {
		if !element.Hidden {
			return nil
		}
	}
	return fmt.Errorf("%s after %v: %w", selector, timeout, driver.ErrTimeout)
}

func (s *Session) Screenshot() ([]byte, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.ScreenshotErr != nil {
		return nil, s.ScreenshotErr
	}
	s.Screenshots++
	return s.Image, nil
}

// Sleep records d and returns immediately
func (s *Session) Sleep(ctx context.Context, d time.Duration) error {
	s.mutex.Lock()
	s.Sleeps = append(s.Sleeps, d)
	s.mutex.Unlock()
	return ctx.Err()
}

func (s *Session) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.CloseCalls++
	return nil
}

// ClickCount returns how often selector was clicked
func (s *Session) ClickCount(selector string) int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	count := 0
	for _, clicked := range s.Clicks {
		if clicked == selector {
			count++
		}
	}
	return count
}

func (e *Element) Click() error {
	if e.Err != nil {
		return e.Err
	}
	e.session.mutex.Lock()
	e.session.Clicks = append(e.session.Clicks, e.selector)
	e.session.mutex.Unlock()
	return nil
}

func (e *Element) SendKeys(text string) error {
	if e.Err != nil {
		return e.Err
	}
	e.session.mutex.Lock()
	e.session.Typed[e.selector] += text
	e.session.mutex.Unlock()
	return nil
}

func (e *Element) IsDisplayed() (bool, error) {
	return !e.Hidden, nil
}

func (e *Element) Text() (string, error) {
	return e.Value, nil
}
