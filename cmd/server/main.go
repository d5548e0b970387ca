package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/emberlink/ember/internal/config"
	"github.com/emberlink/ember/internal/handlers"
	"github.com/emberlink/ember/internal/secrets"
	"github.com/emberlink/ember/internal/storage"
	echo "github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// newEcho wires the middleware stack, error handling and routes around the
// handlers. Split from main so the stack itself is covered by tests.
func newEcho(h *handlers.Handler) *echo.Echo {
	e := echo.New()

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType},
		ExposeHeaders: []string{
			handlers.HeaderIV,
			handlers.HeaderFilename,
		},
	}))
	e.Use(middleware.BodyLimit("100M"))
	e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(100)))

	e.HideBanner = true
	e.HidePort = true

	// every failure that escapes a handler still renders the JSON error shape
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		code := http.StatusInternalServerError
		message := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if m, ok := he.Message.(string); ok {
				message = m
			}
		}
		if err := c.JSON(code, map[string]string{"error": message}); err != nil {
			c.Logger().Error(err)
		}
	}

	e.POST("/api/secrets", h.CreateSecret)
	e.GET("/api/secrets/:id", h.RetrieveSecret)

	return e
}

func main() {
	if err := config.LoadAppConfig(); err != nil {
		log.Fatal(err)
	}
	if err := config.LoadStorageConfig(); err != nil {
		log.Fatal(err)
	}

	secretStore, fileStore, err := storage.Initialize()
	if err != nil {
		log.Fatal(err)
	}

	svc := secrets.NewService(secretStore, fileStore)
	e := newEcho(handlers.NewHandler(svc))

	go func() {
		if err := e.Start(config.ListenAddr); err != nil && err != http.ErrServerClosed {
			e.Logger.Fatal("shutting down the server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	e.Logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		e.Logger.Fatal(err)
	}

	e.Logger.Info("Server shutdown complete")
}
