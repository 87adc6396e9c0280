// Package handler exposes the automation module over HTTP.
package handler

import (
	"time"

	"converse_backend/internal/automation/domain"
	"converse_backend/internal/automation/service"
	"converse_backend/internal/automation/transport"
	"converse_backend/platform/httpkit"
	"converse_backend/platform/logger"

	"github.com/gin-gonic/gin"
)

// Handler serves the automation endpoints.
type Handler struct {
	svc *service.Service
	log *logger.Logger
}

// New creates an automation handler.
func New(svc *service.Service, log *logger.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// HandleInbound is the webhook entry point for inbound customer messages.
func (h *Handler) HandleInbound(c *gin.Context) {
	var req transport.InboundMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, 400, "invalid inbound message payload", err.Error())
		return
	}
	if req.ReceivedAt.IsZero() {
		req.ReceivedAt = time.Now()
	}

	decision, err := h.svc.HandleInboundMessage(c.Request.Context(), req.ConversationID, req.SectorID, service.InboundMessage{
		Text:       req.Text,
		Sentiment:  req.Sentiment,
		ReceivedAt: req.ReceivedAt,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.NewDecisionResponse(decision))
}

// GetSession returns the automation state of a conversation.
func (h *Handler) GetSession(c *gin.Context) {
	session, err := h.svc.GetSession(c.Request.Context(), c.Param("id"))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.NewSessionResponse(session))
}

// Escalate hands a conversation to a human on agent request.
func (h *Handler) Escalate(c *gin.Context) {
	var req transport.EscalateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, 400, "invalid escalation payload", err.Error())
		return
	}
	reason := domain.ReasonManual
	if req.Reason != "" {
		reason = domain.EscalationReason(req.Reason)
	}

	decision, err := h.svc.Escalate(c.Request.Context(), c.Param("id"), reason)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.NewDecisionResponse(decision))
}

// ReturnToAI hands a conversation back to automation.
func (h *Handler) ReturnToAI(c *gin.Context) {
	if err := h.svc.ReturnToAI(c.Request.Context(), c.Param("id")); httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"status": "ok"})
}

// SetReviewMode toggles hybrid handling for a conversation.
func (h *Handler) SetReviewMode(c *gin.Context) {
	var req transport.ReviewModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, 400, "invalid review mode payload", err.Error())
		return
	}
	if err := h.svc.SetReviewMode(c.Request.Context(), c.Param("id"), *req.Enabled); httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"status": "ok"})
}
