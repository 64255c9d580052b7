// Package devtools implements driver.Session on top of chromedp, talking to Chrome over the DevTools protocol
package devtools

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"rtx-finder/pkg/driver"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/chromedp"
)

// Session owns one Chrome process and one tab
type Session struct {
	ctx         context.Context
	cancelAlloc context.CancelFunc
	cancelTab   context.CancelFunc
	closeOnce   sync.Once
	closeErr    error
}

// New launches Chrome and opens a tab
func New(headless bool) (*Session, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-crash-reporter", true),
		chromedp.WindowSize(1920, 1080),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)

	// the first Run starts the browser
	if err := chromedp.Run(tabCtx); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, fmt.Errorf("Failed to start chrome (%w)", err)
	}

	return &Session{
		ctx:         tabCtx,
		cancelAlloc: cancelAlloc,
		cancelTab:   cancelTab,
	}, nil
}

// run executes actions on the tab, aborting them when ctx is cancelled
func (session *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(session.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

func (session *Session) Navigate(ctx context.Context, url string) error {
	if err := session.run(ctx, chromedp.Navigate(url)); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("Failed to load %s (%w)", url, err)
	}
	return nil
}

func (session *Session) FindAll(selector string) ([]driver.Element, error) {
	var nodes []*cdp.Node
	err := chromedp.Run(session.ctx, chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0)))
	if err != nil {
		return nil, fmt.Errorf("Failed to look up %s (%w)", selector, err)
	}

	elements := make([]driver.Element, 0, len(nodes))
	for _, node := range nodes {
		elements = append(elements, &element{ctx: session.ctx, node: node})
	}
	return elements, nil
}

func (session *Session) FindOne(selector string) (driver.Element, error) {
	elements, err := session.FindAll(selector)
	if err != nil {
		return nil, err
	}
	if len(elements) == 0 {
		return nil, fmt.Errorf("%s: %w", selector, driver.ErrElementNotFound)
	}
	return elements[0], nil
}

func (session *Session) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := session.run(waitCtx, chromedp.WaitVisible(selector, chromedp.ByQuery))
	return waitError(ctx, waitCtx, selector, timeout, err)
}

// waitError tells a cancelled caller apart from an expired wait and from a broken browser
func waitError(ctx, waitCtx context.Context, selector string, timeout time.Duration, err error) error {
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if waitCtx.Err() != nil {
		return fmt.Errorf("%s after %v: %w", selector, timeout, driver.ErrTimeout)
	}
	return fmt.Errorf("Failed to wait for %s (%w)", selector, err)
}

func (session *Session) Screenshot() ([]byte, error) {
	var buf []byte
	if err := chromedp.Run(session.ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("Failed to take screenshot (%w)", err)
	}
	return buf, nil
}

func (session *Session) Sleep(ctx context.Context, d time.Duration) error {
	return driver.Sleep(ctx, d)
}

// Close shuts the browser down. Only the first call does any work
func (session *Session) Close() error {
	session.closeOnce.Do(func() {
		err := chromedp.Cancel(session.ctx)
		session.cancelTab()
		session.cancelAlloc()
		if err != nil && !errors.Is(err, context.Canceled) {
			session.closeErr = fmt.Errorf("Failed to close chrome (%w)", err)
		}
	})
	return session.closeErr
}

type element struct {
	ctx  context.Context
	node *cdp.Node
}

func (e *element) ids() []cdp.NodeID {
	return []cdp.NodeID{e.node.NodeID}
}

func (e *element) Click() error {
	return chromedp.Run(e.ctx, chromedp.MouseClickNode(e.node))
}

func (e *element) SendKeys(text string) error {
	return chromedp.Run(e.ctx, chromedp.SendKeys(e.ids(), text, chromedp.ByNodeID))
}

// IsDisplayed treats an element without a layout box as hidden
func (e *element) IsDisplayed() (bool, error) {
	displayed := false
	err := chromedp.Run(e.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		model, err := dom.GetBoxModel().WithNodeID(e.node.NodeID).Do(ctx)
		if err != nil {
			return nil
		}
		displayed = model != nil && model.Width > 0 && model.Height > 0
		return nil
	}))
	return displayed, err
}

func (e *element) Text() (string, error) {
	var text string
	if err := chromedp.Run(e.ctx, chromedp.Text(e.ids(), &text, chromedp.ByNodeID)); err != nil {
		return "", err
	}
	return text, nil
}
