package helperfuncs

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ScreenshotDir is where evidence screenshots are written
const ScreenshotDir = "screenshots"

// screenshotLayout renders as DD-MM-YYYY_HH-MM-SS
const screenshotLayout = "02-01-2006_15-04-05"

// Screenshotter is anything that can capture the current page as PNG
type Screenshotter interface {
	Screenshot() ([]byte, error)
}

// ScreenshotName returns the file name used for a screenshot taken at t
func ScreenshotName(t time.Time) string {
	return t.Format(screenshotLayout) + ".png"
}

// SaveScreenshot writes the current page of source to dir, named after the local time now.
// It does nothing and returns "" when enabled is false. An existing dir is fine, a failed write is not
func SaveScreenshot(enabled bool, source Screenshotter, dir string, now time.Time) (string, error) {
	if !enabled {
		return "", nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("Failed to create directory %s (%w)", dir, err)
	}

	imageBytes, err := source.Screenshot()
	if err != nil {
		return "", err
	}

	imagePath := filepath.Join(dir, ScreenshotName(now.Local()))
	if err := os.WriteFile(imagePath, imageBytes, 0644); err != nil {
		return "", fmt.Errorf("Failed to save image (%w)", err)
	}
	return imagePath, nil
}
