// Package escalations wires the escalation queue module.
package escalations

import (
	"converse_backend/internal/escalations/handler"
	"converse_backend/internal/escalations/repository"
	"converse_backend/internal/escalations/service"
	"converse_backend/platform/events"
	"converse_backend/platform/logger"
	"converse_backend/platform/metrics"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Module bundles the escalation queue components.
type Module struct {
	service *service.Service
	handler *handler.Handler
}

// NewModule assembles the escalation queue.
func NewModule(db *pgxpool.Pool, bus events.Bus, m *metrics.Metrics, log *logger.Logger) *Module {
	svc := service.New(repository.New(db), bus, m, log)
	return &Module{
		service: svc,
		handler: handler.New(svc, log),
	}
}

// Name implements the HTTP module contract.
func (m *Module) Name() string { return "escalations" }

// RegisterRoutes mounts the agent-facing queue endpoints.
func (m *Module) RegisterRoutes(_, api *gin.RouterGroup) {
	tickets := api.Group("/escalations")
	tickets.GET("", m.handler.List)
	tickets.GET("/stats", m.handler.Stats)
	tickets.GET("/:id", m.handler.Get)
	tickets.POST("/:id/accept", m.handler.Accept)
	tickets.POST("/:id/resolve", m.handler.Resolve)
}

// Service exposes the queue to the automation module's ticket port.
func (m *Module) Service() *service.Service { return m.service }
