package platform

import (
	"fmt"
	"os"
	"os/exec"
)

// ChromeBinaries lists executable names tried, in order, when no explicit
// browser path is configured
var ChromeBinaries = []string{
	"google-chrome",
	"google-chrome-stable",
	"chromium",
	"chromium-browser",
	"chrome",
	"headless-shell",
}

// FindChrome returns the browser executable to drive. A configured path must
// exist; otherwise PATH is searched for the usual names.
func FindChrome(configured string) (string, error) {
	if configured != "" {
		if _, err := os.Stat(configured); err != nil {
			return "", fmt.Errorf("configured browser %s not usable: %w", configured, err)
		}
		return configured, nil
	}

	for _, bin := range ChromeBinaries {
		if path, err := exec.LookPath(bin); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("required dependency: no Chrome/Chromium executable found in PATH (tried %v); set browser.exec_path", ChromeBinaries)
}
