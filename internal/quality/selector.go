// Package quality makes the page's player request the preferred stream variant.
package quality

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/datallboy/streamgrab/internal/browser"
)

// DefaultKey is the localStorage key the player reads its quality from
const DefaultKey = "pljsquality"

var ErrInvalidQuality = errors.New("quality preference must not be empty")

// Selector stores the preference in the page's localStorage and reloads the
// page so the player initialises with it.
type Selector struct {
	key           string
	reloadTimeout time.Duration
}

func NewSelector(key string, reloadTimeout time.Duration) *Selector {
	if key == "" {
		key = DefaultKey
	}
	return &Selector{key: key, reloadTimeout: reloadTimeout}
}

// Apply persists preference, calls beforeReload (may be nil) and reloads.
// beforeReload runs after the value is stored and before the reloaded page can
// request a stream, which is where capturing should be switched on.
func (s *Selector) Apply(ctx context.Context, session browser.Session, preference string, beforeReload func()) error {
	if preference == "" {
		return ErrInvalidQuality
	}

	if err := s.Persist(ctx, session, preference); err != nil {
		return err
	}

	if beforeReload != nil {
		beforeReload()
	}

	if err := session.Reload(ctx, s.reloadTimeout); err != nil {
		return fmt.Errorf("reload after setting quality failed: %w", err)
	}

	return nil
}

// Persist writes the preference without reloading.
func (s *Selector) Persist(ctx context.Context, session browser.Session, preference string) error {
	script, err := setItemScript(s.key, preference)
	if err != nil {
		return err
	}

	var stored bool
	if err := session.Evaluate(ctx, script, &stored); err != nil {
		return fmt.Errorf("failed to store quality %q: %w", preference, err)
	}
	if !stored {
		return fmt.Errorf("page did not keep quality %q under %s", preference, s.key)
	}

	return nil
}

// setItemScript builds a script that stores value and reads it back.
func setItemScript(key, value string) (string, error) {
	k, err := json.Marshal(key)
	if err != nil {
		return "", err
	}
	v, err := json.Marshal(value)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(`(() => { localStorage.setItem(%[1]s, %[2]s); return localStorage.getItem(%[1]s) === %[2]s; })()`, k, v), nil
}
