// Package handler exposes the slot allocator over HTTP.
package handler

import (
	"converse_backend/internal/bookings/service"
	"converse_backend/internal/bookings/transport"
	"converse_backend/platform/httpkit"
	"converse_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler serves offer and booking endpoints.
type Handler struct {
	svc *service.Service
	log *logger.Logger
}

// New creates a bookings handler.
func New(svc *service.Service, log *logger.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// OfferSlots generates and stores a fresh slot offer for a conversation.
func (h *Handler) OfferSlots(c *gin.Context) {
	conversationID := c.Param("id")
	var req transport.OfferSlotsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, 400, "invalid offer request", err.Error())
		return
	}

	offer, err := h.svc.OfferSlots(c.Request.Context(), conversationID, req.SectorID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.NewOfferResponse(offer))
}

// GetOffer returns the conversation's active offer.
func (h *Handler) GetOffer(c *gin.Context) {
	offer, err := h.svc.ActiveOffer(c.Request.Context(), c.Param("id"))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.NewOfferResponse(offer))
}

// ConfirmSlot books the selected slot from the active offer. Expired offers
// return 410 after a fresh offer has been sent; lost races return 409.
func (h *Handler) ConfirmSlot(c *gin.Context) {
	var req transport.ConfirmSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, 400, "invalid confirmation", err.Error())
		return
	}

	booking, err := h.svc.Confirm(c.Request.Context(), req.ConversationID, req.SlotIndex)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.NewBookingResponse(booking))
}

// ListBookings returns a conversation's bookings.
func (h *Handler) ListBookings(c *gin.Context) {
	bookings, err := h.svc.ListBookings(c.Request.Context(), c.Param("id"))
	if httpkit.HandleError(c, err) {
		return
	}
	out := make([]transport.BookingResponse, 0, len(bookings))
	for i := range bookings {
		out = append(out, transport.NewBookingResponse(&bookings[i]))
	}
	httpkit.OK(c, gin.H{"bookings": out})
}

// Cancel marks a booking cancelled.
func (h *Handler) Cancel(c *gin.Context) {
	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, 400, "invalid booking id", nil)
		return
	}
	booking, err := h.svc.Cancel(c.Request.Context(), bookingID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.NewBookingResponse(booking))
}

// Reschedule moves a booking to a new start, keeping its duration.
func (h *Handler) Reschedule(c *gin.Context) {
	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, 400, "invalid booking id", nil)
		return
	}
	var req transport.RescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, 400, "invalid reschedule request", err.Error())
		return
	}

	booking, err := h.svc.Reschedule(c.Request.Context(), bookingID, req.StartsAt)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.NewBookingResponse(booking))
}
