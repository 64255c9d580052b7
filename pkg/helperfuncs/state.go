package helperfuncs

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"rtx-finder/pkg/structs"
)

const (
	DefaultSettingsPath      = "settings.json"
	DefaultLocalSettingsPath = "settings.local.json"
	defaultChromeDriverPath  = "chromedriver"
	defaultDriverPort        = 9515
)

// ErrInvalidSettings wraps every validation failure
var ErrInvalidSettings = errors.New("invalid settings")

// LoadSettings reads the settings file, shallowly merges the optional local override file over it
// (every top level field present in the local file wins), applies defaults and validates the result
func LoadSettings(path, localPath string) (*structs.Settings, error) {
	fields, err := readSettingsFields(path)
	if err != nil {
		return nil, err
	}

	if localPath != "" {
		_, err = os.Stat(localPath)
		if err == nil {
			localFields, err := readSettingsFields(localPath)
			if err != nil {
				return nil, err
			}
			for key, value := range localFields {
				fields[key] = value
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("Failed to stat %s (%w)", localPath, err)
		}
	}

	merged, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("Failed to merge settings (%w)", err)
	}
	settings := &structs.Settings{}
	if err := json.Unmarshal(merged, settings); err != nil {
		return nil, fmt.Errorf("Failed to unmarshal json to settings (%w)", err)
	}

	ApplyDefaults(settings)
	if err := ValidateSettings(settings); err != nil {
		return nil, err
	}
	return settings, nil
}

func readSettingsFields(path string) (map[string]json.RawMessage, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("Failed to read %s (%w)", path, err)
	}
	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("Failed to unmarshal json from %s (%w)", path, err)
	}
	return fields, nil
}

// ApplyDefaults fills in the optional engine settings
func ApplyDefaults(settings *structs.Settings) {
	settings.Driver = strings.ToLower(strings.TrimSpace(settings.Driver))
	if settings.Driver == "" {
		settings.Driver = structs.DRIVER_SELENIUM
	}
	if strings.TrimSpace(settings.ChromeDriverPath) == "" {
		settings.ChromeDriverPath = defaultChromeDriverPath
	}
	if settings.DriverPort == 0 {
		settings.DriverPort = defaultDriverPort
	}
	for i := range settings.Cards {
		settings.Cards[i].Name = strings.TrimSpace(settings.Cards[i].Name)
		settings.Cards[i].URL = strings.TrimSpace(settings.Cards[i].URL)
	}
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidSettings, fmt.Sprintf(format, args...))
}

// ValidateSettings rejects configurations the monitor must not start with
func ValidateSettings(settings *structs.Settings) error {
	if settings.Login && (settings.AmazonUsername == "" || settings.AmazonPassword == "") {
		return invalid("Login requested but username or password are empty")
	}
	if settings.Autobuy && (!settings.Login || settings.AmazonUsername == "" || settings.AmazonPassword == "") {
		return invalid("Autobuy requires login to be set as well as your Amazon username and password")
	}
	if settings.AutobuyLimit < 0 {
		return invalid("autobuyLimit cannot be negative")
	}
	if settings.MaxPrice < 0 {
		return invalid("maxPrice cannot be negative")
	}
	if settings.SleepTime < 0 {
		return invalid("sleepTime cannot be negative")
	}
	if settings.LoginRetries < 0 {
		return invalid("loginRetries cannot be negative")
	}

	switch settings.Driver {
	case structs.DRIVER_SELENIUM, structs.DRIVER_CHROMEDP:
	case structs.DRIVER_STATIC:
		if settings.Login || settings.Autobuy || settings.TakeScreenshots {
			return invalid("the static driver cannot log in, buy or take screenshots")
		}
	default:
		return invalid("unknown driver %q (use selenium, chromedp or static)", settings.Driver)
	}

	if len(settings.Cards) == 0 {
		return invalid("no cards to check")
	}
	for i, card := range settings.Cards {
		if card.Name == "" {
			return invalid("card[%d] missing name", i)
		}
		if !strings.HasPrefix(card.URL, "http://") && !strings.HasPrefix(card.URL, "https://") {
			return invalid("card %q url must start with http:// or https://", card.Name)
		}
		if card.MaxPrice != nil && *card.MaxPrice < 0 {
			return invalid("card %q maxPrice cannot be negative", card.Name)
		}
	}
	return nil
}
