package audit

import (
	"calendar-sync/core/database"
	"calendar-sync/core/middleware"
	"calendar-sync/modules/audit/controller"
	"calendar-sync/modules/audit/repository"
	"calendar-sync/modules/audit/router"
	"calendar-sync/modules/audit/service"

	"github.com/labstack/echo/v4"
)

// Init registers the sync log routes and returns the recorder other modules write to.
func Init(e *echo.Echo, db database.IDatabase, mw *middleware.Middleware) service.AuditService {
	repo := repository.NewSyncLogRepository(db)
	auditService := service.NewAuditService(repo)
	auditController := controller.NewAuditController(auditService)

	router.NewAuditRouter(auditController).Setup(e, mw)
	return auditService
}
