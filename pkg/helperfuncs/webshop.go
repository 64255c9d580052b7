package helperfuncs

import (
	"net/url"
	"strings"

	"rtx-finder/pkg/structs"
)

var storefronts = []struct {
	domain  string
	webshop structs.Webshop
}{
	{"amazon.co.uk", structs.WEBSHOP_AMAZONUK},
	{"amazon.com", structs.WEBSHOP_AMAZON},
	{"amazon.fr", structs.WEBSHOP_AMAZONFR},
	{"amazon.nl", structs.WEBSHOP_AMAZONNL},
	{"amazon.de", structs.WEBSHOP_AMAZONDE},
	{"amazon.it", structs.WEBSHOP_AMAZONIT},
}

// GetWebshopFromString works out which storefront a product URL belongs to
func GetWebshopFromString(rawURL string) structs.Webshop {
	host := rawURL
	if parsed, err := url.Parse(rawURL); err == nil && parsed.Host != "" {
		host = parsed.Hostname()
	}
	host = strings.ToLower(host)

	for _, storefront := range storefronts {
		if host == storefront.domain || strings.HasSuffix(host, "."+storefront.domain) {
			return storefront.webshop
		}
	}
	return structs.WEBSHOP_NONE
}
