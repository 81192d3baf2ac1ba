package sync

import (
	"calendar-sync/core/config"
	"calendar-sync/core/database"
	"calendar-sync/core/middleware"
	coreWorker "calendar-sync/core/worker"
	auditService "calendar-sync/modules/audit/service"
	"calendar-sync/modules/sync/controller"
	"calendar-sync/modules/sync/repository"
	"calendar-sync/modules/sync/router"
	"calendar-sync/modules/sync/service"
	"calendar-sync/modules/sync/worker"

	"github.com/labstack/echo/v4"
)

// Init registers the sync routes and, when a worker server is given, the batch task handler.
func Init(
	e *echo.Echo,
	cfg *config.Config,
	db database.IDatabase,
	clients service.ClientProvider,
	audit auditService.Recorder,
	mw *middleware.Middleware,
	enqueuer coreWorker.Enqueuer,
	workerServer *coreWorker.Server,
) service.SyncService {
	mappingRepo := repository.NewMappingRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	syncService := service.NewSyncService(clients, mappingRepo, assignmentRepo, audit, service.Config{
		DefaultTimezone:     cfg.Sync.DefaultTimezone,
		AdoptOrphanedEvents: cfg.Sync.AdoptOrphanedEvents,
		MaxBatchErrors:      cfg.Sync.MaxBatchErrors,
	})

	if workerServer != nil {
		workerServer.Handle(worker.TypeSyncAll, worker.NewSyncAllHandler(syncService))
	}

	syncController := controller.NewSyncController(syncService, enqueuer)
	router.NewSyncRouter(syncController).Setup(e, mw)
	return syncService
}
