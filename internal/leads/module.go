// Package leads wires the qualification scorer module.
package leads

import (
	"converse_backend/internal/leads/handler"
	"converse_backend/internal/leads/repository"
	"converse_backend/internal/leads/service"
	"converse_backend/internal/sectors"
	"converse_backend/platform/events"
	"converse_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Module bundles the lead qualification components.
type Module struct {
	service *service.Service
	handler *handler.Handler
}

// NewModule assembles the leads module and subscribes the background cue
// scorer to inbound-message events.
func NewModule(db *pgxpool.Pool, configs *sectors.Store, bus events.Bus, log *logger.Logger) *Module {
	svc := service.New(repository.New(db), configs, bus, log)
	svc.RegisterEventHandlers(bus)
	return &Module{
		service: svc,
		handler: handler.New(svc, log),
	}
}

// Name implements the HTTP module contract.
func (m *Module) Name() string { return "leads" }

// RegisterRoutes mounts the qualification endpoints. The classifier callback
// arrives on the webhook surface; reads are agent-facing.
func (m *Module) RegisterRoutes(webhook, api *gin.RouterGroup) {
	webhook.POST("/qualifications", m.handler.Qualify)

	conversations := api.Group("/conversations")
	conversations.GET("/:id/lead", m.handler.GetLead)
	conversations.GET("/:id/qualifications", m.handler.History)
}

// Service exposes the scorer to other modules.
func (m *Module) Service() *service.Service { return m.service }
