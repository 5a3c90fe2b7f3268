package auth

import (
	"crypto/subtle"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"mes.GO/config"
)

// ActorKey holds the authenticated caller's name in the echo context.
const ActorKey = "actor"

// Middleware returns the auth middleware based on AUTH_TYPE env var.
func Middleware() echo.MiddlewareFunc {
	skipper := buildSkipper()
	switch os.Getenv("AUTH_TYPE") {
	case "key":
		return keyAuth(skipper)
	case "none":
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	default:
		return basicAuth(skipper)
	}
}

// Actor returns who is calling, falling back to fallback.
func Actor(c echo.Context, fallback string) string {
	if v, ok := c.Get(ActorKey).(string); ok && v != "" {
		return v
	}
	return fallback
}

func buildSkipper() middleware.Skipper {
	skipPaths := config.GetAuthSkipperPaths()
	return func(c echo.Context) bool {
		path := c.Path()
		for _, skip := range skipPaths {
			if path == skip {
				return true
			}
		}
		return false
	}
}

func basicAuth(skipper middleware.Skipper) echo.MiddlewareFunc {
	return middleware.BasicAuthWithConfig(middleware.BasicAuthConfig{
		Validator: func(username, password string, c echo.Context) (bool, error) {
			ok := secureEqual(username, os.Getenv("API_USER")) && secureEqual(password, os.Getenv("API_PASS"))
			if ok {
				c.Set(ActorKey, username)
			}
			return ok, nil
		},
		Skipper: skipper,
	})
}

func keyAuth(skipper middleware.Skipper) echo.MiddlewareFunc {
	apiKey := os.Getenv("API_KEY")
	return middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
		Validator: func(key string, c echo.Context) (bool, error) {
			if apiKey == "" || !secureEqual(key, apiKey) {
				return false, nil
			}
			c.Set(ActorKey, "api-key")
			return true, nil
		},
		Skipper: skipper,
	})
}

func secureEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
