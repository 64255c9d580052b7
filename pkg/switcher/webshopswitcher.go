package switcher

import (
	"fmt"
	"os"

	"rtx-finder/pkg/driver"
	"rtx-finder/pkg/driver/devtools"
	"rtx-finder/pkg/driver/selenium"
	"rtx-finder/pkg/driver/static"
	"rtx-finder/pkg/driver/webshop"
	"rtx-finder/pkg/driver/webshop/amazon"
	"rtx-finder/pkg/helperfuncs"
	"rtx-finder/pkg/structs"
)

// GetWebshop is a switcher function that gets the correct webshop driver using the given URL
func GetWebshop(URL string) (webshop.Webshop, structs.Webshop, error) {
	kind := helperfuncs.GetWebshopFromString(URL)
	if kind == structs.WEBSHOP_NONE {
		return nil, structs.WEBSHOP_NONE, fmt.Errorf("No webshop interface exists for this website (%s)", URL)
	}
	return amazon.New(kind), kind, nil
}

// GetSession starts the browser session engine named in the settings
func GetSession(settings *structs.Settings) (driver.Session, error) {
	switch settings.Driver {
	case structs.DRIVER_SELENIUM, "":
		session, err := selenium.New(selenium.Options{
			ChromeDriverPath: settings.ChromeDriverPath,
			Port:             settings.DriverPort,
			Headless:         settings.IsHeadless(),
			Output:           os.Stderr,
		})
		if err != nil {
			return nil, err
		}
		return session, nil
	case structs.DRIVER_CHROMEDP:
		session, err := devtools.New(settings.IsHeadless())
		if err != nil {
			return nil, err
		}
		return session, nil
	case structs.DRIVER_STATIC:
		return static.New(nil, ""), nil
	}
	return nil, fmt.Errorf("No session driver named %q", settings.Driver)
}
