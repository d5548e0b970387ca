package handlers

import (
	echo "github.com/labstack/echo/v4"
)

const (
	// MaxPayloadSize is the hard cap on a declared request size. Requests
	// advertising more are rejected before the body is read.
	MaxPayloadSize = 100 * 1024 * 1024

	// Response headers carrying file secret metadata out-of-band; the body
	// of a file retrieval is pure ciphertext. Clients depend on these exact
	// names.
	HeaderIV       = "X-Burn-IV"
	HeaderFilename = "X-Burn-Filename"
)

func errorResponse(c echo.Context, status int, message string) error {
	return c.JSON(status, map[string]string{"error": message})
}
