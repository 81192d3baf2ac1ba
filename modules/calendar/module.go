package calendar

import (
	"calendar-sync/core/cache"
	"calendar-sync/core/config"
	"calendar-sync/core/database"
	"calendar-sync/core/middleware"
	"calendar-sync/core/utils"
	auditService "calendar-sync/modules/audit/service"
	"calendar-sync/modules/calendar/controller"
	"calendar-sync/modules/calendar/repository"
	"calendar-sync/modules/calendar/router"
	"calendar-sync/modules/calendar/service"

	"github.com/labstack/echo/v4"
)

// Init registers the calendar connection routes and returns the token manager the sync module uses.
func Init(e *echo.Echo, cfg *config.Config, db database.IDatabase, cache cache.Cache, audit auditService.Recorder, mw *middleware.Middleware) service.TokenManager {
	tmConfig := service.TokenManagerConfig{
		ClientID:       cfg.GoogleAPI.ClientID,
		ClientSecret:   cfg.GoogleAPI.ClientSecret,
		RedirectURI:    cfg.GoogleAPI.RedirectURI,
		RefreshLeeway:  cfg.Sync.RefreshLeeway,
		RequestTimeout: cfg.Sync.RequestTimeout,
		ConnectedTTL:   cfg.Sync.ConnectedCacheTTL,
	}

	repo := repository.NewCredentialRepository(db, utils.NewSecretBox(cfg.Crypto.TokenKey))
	tokens := service.NewTokenManager(service.NewOAuthConfig(tmConfig), tmConfig, repo, audit, cache, service.GoogleClientFactory)
	calendarService := service.NewCalendarService(tokens, repo, audit, cache, cfg.Sync.StateTTL)
	calendarController := controller.NewCalendarController(calendarService)

	router.NewCalendarRouter(calendarController).Setup(e, mw)
	return tokens
}
