// Package bookings wires the meeting slot allocator module.
package bookings

import (
	"converse_backend/internal/bookings/handler"
	"converse_backend/internal/bookings/repository"
	"converse_backend/internal/bookings/service"
	"converse_backend/internal/sectors"
	"converse_backend/platform/events"
	"converse_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Module bundles the slot allocator components.
type Module struct {
	service *service.Service
	handler *handler.Handler
}

// NewModule assembles the allocator.
func NewModule(db *pgxpool.Pool, configs *sectors.Store, sender service.MessageSender, bus events.Bus, log *logger.Logger) *Module {
	svc := service.New(repository.New(db), configs, sender, bus, log)
	return &Module{
		service: svc,
		handler: handler.New(svc, log),
	}
}

// Name implements the HTTP module contract.
func (m *Module) Name() string { return "bookings" }

// RegisterRoutes mounts the booking endpoints. Slot confirmation arrives on
// the webhook surface because the end user answers from the conversation.
func (m *Module) RegisterRoutes(webhook, api *gin.RouterGroup) {
	webhook.POST("/slot-confirmations", m.handler.ConfirmSlot)

	api.POST("/conversations/:id/offer-slots", m.handler.OfferSlots)
	api.GET("/conversations/:id/slot-offer", m.handler.GetOffer)
	api.GET("/conversations/:id/bookings", m.handler.ListBookings)
	api.POST("/bookings/:id/cancel", m.handler.Cancel)
	api.POST("/bookings/:id/reschedule", m.handler.Reschedule)
}

// Service exposes the allocator to the automation module's slot port and to
// the scheduler's expiry sweep.
func (m *Module) Service() *service.Service { return m.service }
