package selenium

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"rtx-finder/pkg/driver"

	"github.com/tebeka/selenium"
	"github.com/tebeka/selenium/chrome"
)

// Options configures the chromedriver service and the browser it drives
type Options struct {
	ChromeDriverPath string
	Port             int
	Headless         bool
	// Output receives chromedriver's own logging, discarded when nil
	Output io.Writer
}

// Session is a driver.Session backed by a chromedriver service and a single selenium webdriver
type Session struct {
	service   *selenium.Service
	webdriver selenium.WebDriver
	closeOnce sync.Once
	closeErr  error
}

// New starts chromedriver and opens a Chrome window through it
func New(opts Options) (*Session, error) {
	output := opts.Output
	if output == nil {
		output = io.Discard
	}

	service, err := selenium.NewChromeDriverService(opts.ChromeDriverPath, opts.Port, selenium.Output(output))
	if err != nil {
		return nil, fmt.Errorf("Failed to start chromedriver (%w)", err)
	}

	caps := selenium.Capabilities{"browserName": "chrome"}
	caps.AddChrome(chrome.Capabilities{Args: chromeArgs(opts.Headless)})

	wd, err := selenium.NewRemote(caps, fmt.Sprintf("http://localhost:%d/wd/hub", opts.Port))
	if err != nil {
		service.Stop()
		return nil, fmt.Errorf("Failed to connect to chromedriver (%w)", err)
	}

	return &Session{
		service:   service,
		webdriver: wd,
	}, nil
}

func chromeArgs(headless bool) []string {
	args := []string{
		"--window-size=1920,1080",
		"--disable-gpu",
		"--disable-logging",
		"--log-level=3",
		"--disable-crash-reporter",
		"--disable-in-process-stack-traces",
	}
	if headless {
		args = append(args, "--headless")
	}
	return args
}

// Navigate loads url in the browser
func (session *Session) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := session.webdriver.Get(url); err != nil {
		return fmt.Errorf("Failed to load %s (%w)", url, err)
	}
	return nil
}

// FindAll returns all elements matching the CSS selector
func (session *Session) FindAll(selector string) ([]driver.Element, error) {
	found, err := session.webdriver.FindElements(selenium.ByCSSSelector, selector)
	if err != nil {
		if isNoSuchElement(err) {
			return []driver.Element{}, nil
		}
		return nil, fmt.Errorf("Failed to look up %s (%w)", selector, err)
	}

	elements := make([]driver.Element, 0, len(found))
	for _, element := range found {
		elements = append(elements, element)
	}
	return elements, nil
}

// FindOne returns the first element matching the CSS selector
func (session *Session) FindOne(selector string) (driver.Element, error) {
	element, err := session.webdriver.FindElement(selenium.ByCSSSelector, selector)
	if err != nil {
		if isNoSuchElement(err) {
			return nil, fmt.Errorf("%s: %w", selector, driver.ErrElementNotFound)
		}
		return nil, fmt.Errorf("Failed to look up %s (%w)", selector, err)
	}
	return element, nil
}

// WaitVisible polls until an element matching selector is displayed
func (session *Session) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	condition := func(wd selenium.WebDriver) (bool, error) {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		element, err := wd.FindElement(selenium.ByCSSSelector, selector)
		if err != nil {
			if isNoSuchElement(err) {
				return false, nil
			}
			return false, err
		}
		return element.IsDisplayed()
	}

	err := session.webdriver.WaitWithTimeout(condition, timeout)
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if strings.Contains(err.Error(), "timeout") {
		return fmt.Errorf("%s after %v: %w", selector, timeout, driver.ErrTimeout)
	}
	return fmt.Errorf("Failed to wait for %s (%w)", selector, err)
}

// Screenshot captures the current viewport as PNG
func (session *Session) Screenshot() ([]byte, error) {
	image, err := session.webdriver.Screenshot()
	if err != nil {
		return nil, fmt.Errorf("Failed to take screenshot (%w)", err)
	}
	return image, nil
}

// Sleep pauses without touching the browser
func (session *Session) Sleep(ctx context.Context, d time.Duration) error {
	return driver.Sleep(ctx, d)
}

// Close quits the browser and stops chromedriver. Only the first call does any work
func (session *Session) Close() error {
	session.closeOnce.Do(func() {
		quitErr := session.webdriver.Quit()
		stopErr := session.service.Stop()
		session.closeErr = errors.Join(quitErr, stopErr)
	})
	return session.closeErr
}

func isNoSuchElement(err error) bool {
	var seleniumErr *selenium.Error
	if errors.As(err, &seleniumErr) {
		return seleniumErr.Err == "no such element"
	}
	return strings.Contains(err.Error(), "no such element")
}
