package livesync

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/desertthunder/recap/internal/shared"
)

// DefaultPushPath is the user-scoped stream appended to the API base URL.
const DefaultPushPath = "/ws/user"

// PushEndpoint derives the push address from the REST base URL: http becomes ws, https
// becomes wss, and pushPath is appended to the base path.
func PushEndpoint(baseURL, pushPath string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("%w: api base url: %v", shared.ErrInvalidConfig, err)
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("%w: unsupported api base url scheme %q", shared.ErrInvalidConfig, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: api base url %q has no host", shared.ErrInvalidConfig, baseURL)
	}

	if pushPath == "" {
		pushPath = DefaultPushPath
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(pushPath, "/")
	u.RawPath = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}
