// Package handler exposes the leads module over HTTP.
package handler

import (
	"encoding/json"

	"converse_backend/internal/leads/domain"
	"converse_backend/internal/leads/service"
	"converse_backend/internal/leads/transport"
	"converse_backend/platform/httpkit"
	"converse_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler serves the lead qualification endpoints.
type Handler struct {
	svc *service.Service
	log *logger.Logger
}

// New creates a leads handler.
func New(svc *service.Service, log *logger.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// Qualify accepts a structured analysis from an external classifier. A
// malformed body degrades to a zero-confidence run so the conversation is
// still logged; only a missing conversation identity is rejected.
func (h *Handler) Qualify(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		httpkit.Error(c, 400, "unreadable request body", nil)
		return
	}

	var envelope struct {
		ConversationID string    `json:"conversation_id"`
		SectorID       uuid.UUID `json:"sector_id"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil || envelope.ConversationID == "" || envelope.SectorID == uuid.Nil {
		httpkit.Error(c, 400, "conversation_id and sector_id are required", nil)
		return
	}

	analysis := domain.Analysis{}
	var req transport.QualifyRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		h.log.Warn("malformed qualification payload, falling back to zero confidence",
			"conversation_id", envelope.ConversationID, "error", err.Error())
	} else {
		analysis = req.ToAnalysis()
	}

	result, err := h.svc.QualifyFromAnalysis(c.Request.Context(), envelope.ConversationID, envelope.SectorID, analysis)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.QualifyResponse{
		LeadID:         result.LeadID,
		PreviousScore:  result.PreviousScore,
		Score:          result.Score,
		Status:         string(result.Status),
		LeadCreated:    result.LeadCreated,
		NewlyQualified: result.NewlyQualified,
	})
}

// GetLead returns the lead attached to a conversation.
func (h *Handler) GetLead(c *gin.Context) {
	lead, err := h.svc.GetLead(c.Request.Context(), c.Param("id"))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.NewLeadResponse(lead))
}

// History returns a conversation's qualification log, newest first.
func (h *Handler) History(c *gin.Context) {
	logs, err := h.svc.History(c.Request.Context(), c.Param("id"), 50)
	if httpkit.HandleError(c, err) {
		return
	}
	out := make([]transport.LogEntryResponse, 0, len(logs))
	for _, entry := range logs {
		out = append(out, transport.LogEntryResponse{
			ID:            entry.ID,
			LeadID:        entry.LeadID,
			PreviousScore: entry.PreviousScore,
			NewScore:      entry.NewScore,
			Analysis:      entry.Analysis,
			CreatedAt:     entry.CreatedAt,
		})
	}
	httpkit.OK(c, gin.H{"entries": out})
}
