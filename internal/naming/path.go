package naming

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/datallboy/streamgrab/internal/domain"
)

// MaxNameAttempts bounds the " (n)" suffix search: " (1)" through " (10000)" are tried
const MaxNameAttempts = 10000

// UniquePath returns <dir>/<title><ext>, or the first "<title> (n)<ext>" that does not exist yet.
// It never returns a path that exists at call time. It does not reserve the
// name, so two writers racing on the same title may collide.
func UniquePath(dir, title, ext string) (string, error) {
	return uniquePath(dir, title, ext, MaxNameAttempts)
}

func uniquePath(dir, title, ext string, maxSuffix int) (string, error) {
	for counter := 0; counter <= maxSuffix; counter++ {
		candidate := filepath.Join(dir, title+ext)
		if counter > 0 {
			candidate = filepath.Join(dir, fmt.Sprintf("%s (%d)%s", title, counter, ext))
		}

		exists, err := pathExists(candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("%w: %s%s in %s", domain.ErrNameExhausted, title, ext, dir)
}

func pathExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("could not check %s: %w", path, err)
}
