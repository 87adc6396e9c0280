// Package handler exposes the escalation queue over HTTP.
package handler

import (
	"time"

	"converse_backend/internal/escalations/domain"
	"converse_backend/internal/escalations/repository"
	"converse_backend/internal/escalations/service"
	"converse_backend/internal/escalations/transport"
	"converse_backend/platform/httpkit"
	"converse_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler serves the queue endpoints.
type Handler struct {
	svc *service.Service
	log *logger.Logger
}

// New creates a queue handler.
func New(svc *service.Service, log *logger.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// List returns tickets in queue order, filtered by status and sector.
func (h *Handler) List(c *gin.Context) {
	var q transport.ListTicketsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		httpkit.Error(c, 400, "invalid ticket filter", err.Error())
		return
	}

	filter := repository.ListFilter{SectorID: q.SectorID, Limit: q.Limit}
	if q.Status != "" {
		status := domain.Status(q.Status)
		filter.Status = &status
	}

	tickets, err := h.svc.List(c.Request.Context(), filter)
	if httpkit.HandleError(c, err) {
		return
	}

	now := time.Now()
	out := make([]transport.TicketResponse, 0, len(tickets))
	for i := range tickets {
		out = append(out, transport.NewTicketResponse(&tickets[i], now))
	}
	httpkit.OK(c, gin.H{"tickets": out})
}

// Get returns one ticket.
func (h *Handler) Get(c *gin.Context) {
	ticketID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, 400, "invalid ticket id", nil)
		return
	}
	ticket, err := h.svc.Get(c.Request.Context(), ticketID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.NewTicketResponse(ticket, time.Now()))
}

// Accept claims a pending ticket for the authenticated agent. A lost race
// returns 409 so the client refreshes its queue view.
func (h *Handler) Accept(c *gin.Context) {
	ticketID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, 400, "invalid ticket id", nil)
		return
	}
	agentID, ok := httpkit.CurrentUserID(c)
	if !ok {
		httpkit.Error(c, 401, "authentication required", nil)
		return
	}

	ticket, err := h.svc.Accept(c.Request.Context(), ticketID, agentID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.NewTicketResponse(ticket, time.Now()))
}

// Resolve closes a ticket.
func (h *Handler) Resolve(c *gin.Context) {
	ticketID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, 400, "invalid ticket id", nil)
		return
	}
	ticket, err := h.svc.Resolve(c.Request.Context(), ticketID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.NewTicketResponse(ticket, time.Now()))
}

// Stats returns the wait-time report.
func (h *Handler) Stats(c *gin.Context) {
	var sectorID *uuid.UUID
	if raw := c.Query("sector_id"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			httpkit.Error(c, 400, "invalid sector id", nil)
			return
		}
		sectorID = &parsed
	}

	stats, err := h.svc.Stats(c.Request.Context(), sectorID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.NewStatsResponse(stats))
}
