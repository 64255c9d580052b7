// Package static implements a read-only driver.Session that fetches pages over plain HTTP and
// queries the parsed HTML. It cannot click, type or take screenshots, so it only suits notify-only runs
package static

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"rtx-finder/pkg/driver"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

const hiddenSelector = "[hidden],[style*='display:none'],[style*='display: none'],[style*='visibility:hidden'],[style*='visibility: hidden']"

// DefaultUserAgent is sent when New is given an empty user agent
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

// Session keeps the document of the last page it loaded
type Session struct {
	client    *http.Client
	userAgent string

	mutex sync.RWMutex
	doc   *goquery.Document
}

// New creates a session. A nil client means http.DefaultClient
func New(client *http.Client, userAgent string) *Session {
	if client == nil {
		client = http.DefaultClient
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &Session{client: client, userAgent: userAgent}
}

// Navigate fetches url and parses the body whatever the status code, the way a browser would render it
func (session *Session) Navigate(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("Failed to build request for %s (%w)", url, err)
	}
	req.Header.Set("User-Agent", session.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := session.client.Do(req)
	if err != nil {
		return fmt.Errorf("Failed to make GET request to %s (%w)", url, err)
	}
	defer resp.Body.Close()

	root, err := html.Parse(resp.Body)
	if err != nil {
		return fmt.Errorf("Failed to parse body into a html document (%w)", err)
	}

	session.mutex.Lock()
	session.doc = goquery.NewDocumentFromNode(root)
	session.mutex.Unlock()
	return nil
}

func (session *Session) find(selector string) *goquery.Selection {
	session.mutex.RLock()
	defer session.mutex.RUnlock()
	if session.doc == nil {
		return nil
	}
	return session.doc.Find(selector)
}

func (session *Session) FindAll(selector string) ([]driver.Element, error) {
	selection := session.find(selector)
	if selection == nil {
		return []driver.Element{}, nil
	}

	elements := make([]driver.Element, 0, selection.Length())
	selection.Each(func(_ int, s *goquery.Selection) {
		elements = append(elements, &element{selection: s})
	})
	return elements, nil
}

func (session *Session) FindOne(selector string) (driver.Element, error) {
	selection := session.find(selector)
	if selection == nil || selection.Length() == 0 {
		return nil, fmt.Errorf("%s: %w", selector, driver.ErrElementNotFound)
	}
	return &element{selection: selection.First()}, nil
}

// WaitVisible checks the loaded document once, it never changes without another Navigate
func (session *Session) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	found, err := session.FindOne(selector)
	if err == nil {
		if displayed, _ := found.IsDisplayed(); displayed {
			return nil
		}
	}
	return fmt.Errorf("%s after %v: %w", selector, timeout, driver.ErrTimeout)
}

func (session *Session) Screenshot() ([]byte, error) {
	return nil, fmt.Errorf("screenshot: %w", driver.ErrUnsupported)
}

func (session *Session) Sleep(ctx context.Context, d time.Duration) error {
	return driver.Sleep(ctx, d)
}

func (session *Session) Close() error {
	session.client.CloseIdleConnections()
	return nil
}

type element struct {
	selection *goquery.Selection
}

func (e *element) Click() error {
	return fmt.Errorf("click: %w", driver.ErrUnsupported)
}

func (e *element) SendKeys(string) error {
	return fmt.Errorf("send keys: %w", driver.ErrUnsupported)
}

// IsDisplayed only knows about hidden attributes and inline styles on the element and its ancestors
func (e *element) IsDisplayed() (bool, error) {
	return e.selection.Closest(hiddenSelector).Length() == 0, nil
}

func (e *element) Text() (string, error) {
	return strings.Join(strings.Fields(e.selection.Text()), " "), nil
}
