// Package automation wires the session state machine: repository, service
// and HTTP surface.
package automation

import (
	"time"

	"converse_backend/internal/automation/handler"
	"converse_backend/internal/automation/repository"
	"converse_backend/internal/automation/service"
	"converse_backend/internal/sectors"
	"converse_backend/platform/ai/completion"
	"converse_backend/platform/events"
	"converse_backend/platform/logger"
	"converse_backend/platform/metrics"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Module bundles the automation components.
type Module struct {
	repo    *repository.Repository
	service *service.Service
	handler *handler.Handler
}

// NewModule assembles the automation module.
func NewModule(
	db *pgxpool.Pool,
	configs *sectors.Store,
	completionClient completion.Client,
	completionTimeout time.Duration,
	tickets service.TicketOpener,
	slots service.SlotOfferer,
	dispatcher service.Dispatcher,
	bus events.Bus,
	m *metrics.Metrics,
	log *logger.Logger,
) *Module {
	repo := repository.New(db)
	svc := service.New(repo, configs, completionClient, completionTimeout, tickets, slots, dispatcher, bus, m, log)
	svc.RegisterEventHandlers(bus)

	return &Module{
		repo:    repo,
		service: svc,
		handler: handler.New(svc, log),
	}
}

// Name implements the HTTP module contract.
func (m *Module) Name() string { return "automation" }

// RegisterRoutes mounts the webhook entry point and the agent-facing session
// endpoints.
func (m *Module) RegisterRoutes(webhook, api *gin.RouterGroup) {
	webhook.POST("/messages", m.handler.HandleInbound)

	conversations := api.Group("/conversations")
	conversations.GET("/:id/session", m.handler.GetSession)
	conversations.POST("/:id/escalate", m.handler.Escalate)
	conversations.POST("/:id/return-to-ai", m.handler.ReturnToAI)
	conversations.PUT("/:id/review-mode", m.handler.SetReviewMode)
}

// Service exposes the state machine to other modules and binaries.
func (m *Module) Service() *service.Service { return m.service }

// Repository exposes reply lookups to the dispatch worker.
func (m *Module) Repository() *repository.Repository { return m.repo }
