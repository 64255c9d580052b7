package helperfuncs

import (
	"fmt"
	"net/url"

	"github.com/0x434D53/openinbrowser"
)

// OpenInBrowser opens a product page in the default desktop browser
func OpenInBrowser(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return fmt.Errorf("Refusing to open %q in the browser", rawURL)
	}
	openinbrowser.Open(parsed.String())
	return nil
}
