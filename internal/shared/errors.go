package shared

import "fmt"

var (
	// Configuration errors
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")

	// Authentication errors
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrTokenExpired     = fmt.Errorf("access token expired")
	ErrRefreshFailed    = fmt.Errorf("token refresh failed")

	// API and service errors
	ErrAPIRequest           = fmt.Errorf("API request failed")
	ErrServiceUnavailable   = fmt.Errorf("service unavailable")
	ErrTaskNotFound         = fmt.Errorf("task not found")
	ErrNotificationNotFound = fmt.Errorf("notification not found")

	// Push channel errors
	ErrAuthTimeout      = fmt.Errorf("push channel authentication timed out")
	ErrMalformedMessage = fmt.Errorf("malformed push message")
	ErrApplicationCode  = fmt.Errorf("push message carried an application error")

	// Local state errors
	ErrLocked = fmt.Errorf("another recap instance holds the lock")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)
