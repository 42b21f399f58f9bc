package middleware

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/OFFIS-RIT/motifs/internal/queue"
	"github.com/OFFIS-RIT/motifs/pkg/store"
)

type AppUser struct {
	UserID      string
	Role        string
	Permissions []string
}

// App holds the dependencies shared by every request.
type App struct {
	Store store.Storage
	Queue queue.Publisher
	// Keyfunc verifies bearer tokens, usually backed by a JWKS endpoint.
	Keyfunc      jwt.Keyfunc
	MasterAPIKey string
}

type AppContext struct {
	echo.Context
	App  *App
	User *AppUser
}

func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			return next(&AppContext{Context: c, App: app})
		}
	}
}
