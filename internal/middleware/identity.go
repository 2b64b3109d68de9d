package middleware

// identity.go defines helper functions shared across middleware files.
// currentUserID resolves the acting user's identifier from the values the
// JWTAuth middleware stored in context; rate-limit keys fall back to "anon"
// for unauthenticated requests so guests still share a bucket per IP.

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// currentUserID returns the authenticated user's id as a string, or "anon"
// when the request carries no usable identity.
func currentUserID(c echo.Context) string {
	switch v := c.Get("user_id").(type) {
	case string:
		if v != "" {
			return v
		}
	case float64:
		return strconv.FormatUint(uint64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case int64:
		return strconv.FormatInt(v, 10)
	}
	return "anon"
}
