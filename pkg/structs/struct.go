package structs

// Card represents a single tracked product page
type Card struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	// MaxPrice overrides Settings.MaxPrice for this card when set. 0 means no ceiling
	MaxPrice *float64 `json:"maxPrice,omitempty"`
}

// Settings is the monitor configuration. It is loaded once and never mutated afterwards
type Settings struct {
	Login           bool    `json:"login"`
	AmazonUsername  string  `json:"amazonUsername"`
	AmazonPassword  string  `json:"amazonPassword"`
	Autobuy         bool    `json:"autobuy"`
	AutobuyLimit    int     `json:"autobuyLimit"`
	MaxPrice        float64 `json:"maxPrice"`
	TakeScreenshots bool    `json:"takeScreenshots"`
	// SleepTime is the pause between two passes over all cards, in seconds
	SleepTime float64 `json:"sleepTime"`
	Cards     []Card  `json:"cards"`

	Driver           string `json:"driver"`
	Headless         *bool  `json:"headless,omitempty"`
	ChromeDriverPath string `json:"chromeDriverPath"`
	DriverPort       int    `json:"driverPort"`
	OpenOnNotify     *bool  `json:"openOnNotify,omitempty"`
	StatusAddr       string `json:"statusAddr"`
	LoginRetries     int    `json:"loginRetries"`
}

// EffectiveMaxPrice returns the card's own ceiling if it has one, the global default otherwise
func (settings *Settings) EffectiveMaxPrice(card Card) float64 {
	if card.MaxPrice != nil {
		return *card.MaxPrice
	}
	return settings.MaxPrice
}

// IsHeadless reports whether the browser should run without a window (defaults to true)
func (settings *Settings) IsHeadless() bool {
	return settings.Headless == nil || *settings.Headless
}

// ShouldOpenOnNotify reports whether the product page is opened after a notification (defaults to true)
func (settings *Settings) ShouldOpenOnNotify() bool {
	return settings.OpenOnNotify == nil || *settings.OpenOnNotify
}

const (
	DRIVER_SELENIUM = "selenium"
	DRIVER_CHROMEDP = "chromedp"
	DRIVER_STATIC   = "static"
)

type Webshop int

const (
	WEBSHOP_NONE     Webshop = 0
	WEBSHOP_AMAZON   Webshop = 1
	WEBSHOP_AMAZONNL Webshop = 2
	WEBSHOP_AMAZONDE Webshop = 3
	WEBSHOP_AMAZONIT Webshop = 4
	WEBSHOP_AMAZONFR Webshop = 5
	WEBSHOP_AMAZONUK Webshop = 6
)
