// README: Advisory priority suggestion endpoint, metered per donor.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"seva/internal/ai"
	"seva/internal/modules/aiquota"
	"seva/internal/modules/donation"
)

type AIHandler struct {
	suggester ai.PrioritySuggester
	quota     *aiquota.Service
}

func NewAIHandler(suggester ai.PrioritySuggester, quota *aiquota.Service) *AIHandler {
	return &AIHandler{suggester: suggester, quota: quota}
}

type suggestReq struct {
	DonorID     string         `json:"donor_id" binding:"required"`
	Items       map[string]int `json:"items"`
	Description string         `json:"description"`
}

func (h *AIHandler) SuggestPriority(c *gin.Context) {
	if h.suggester == nil {
		writeError(c, http.StatusServiceUnavailable, "unavailable", "priority suggestion not configured")
		return
	}
	var req suggestReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "validation", "invalid json")
		return
	}
	if h.quota != nil {
		if err := h.quota.Consume(c.Request.Context(), req.DonorID); err != nil {
			if errors.Is(err, aiquota.ErrQuotaExhausted) {
				writeError(c, http.StatusTooManyRequests, "quota", "monthly suggestion quota exhausted")
				return
			}
			writeError(c, http.StatusInternalServerError, "internal", "internal error")
			return
		}
	}
	items := donation.Items{}
	for k, v := range req.Items {
		items[donation.ItemCategory(k)] = v
	}
	out, err := h.suggester.SuggestPriority(c.Request.Context(), items, req.Description)
	if err != nil {
		writeError(c, http.StatusBadGateway, "transient", "suggestion unavailable")
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"priority": out.Priority, "rationale": out.Rationale})
}
