package client

import (
	"errors"

	fiber "github.com/gofiber/fiber/v2"
)

// Download is a file returned by one of the backend file endpoints
type Download struct {
	// Filename is taken from Content-Disposition when the backend sends one
	Filename    string
	ContentType string
	Body        []byte
}

// IsNetworkError reports whether err is a transport failure
func IsNetworkError(err error) bool {
	return errors.Is(err, ErrNetwork)
}

// StatusCode returns the HTTP status of a non-success response, or 0 when err
// did not come from one
func StatusCode(err error) int {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return fiberErr.Code
	}
	return 0
}
