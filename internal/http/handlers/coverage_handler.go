package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"seva/internal/modules/coverage"
)

type CoverageHandler struct {
	coverage *coverage.Service
}

func NewCoverageHandler(svc *coverage.Service) *CoverageHandler {
	return &CoverageHandler{coverage: svc}
}

func (h *CoverageHandler) Snapshot(c *gin.Context) {
	snap, err := h.coverage.Snapshot(c.Request.Context())
	if err != nil {
		writeDomainError(c, err)
		return
	}
	out := make([]gin.H, 0, len(snap.Districts))
	for _, d := range snap.Districts {
		out = append(out, gin.H{
			"district":        d.District,
			"open_donations":  d.OpenDonations,
			"in_progress":     d.InProgress,
			"delivered":       d.Delivered,
			"ngo_count":       d.NGOCount,
			"volunteer_count": d.VolunteerCount,
			"avg_ngo_rating":  d.AvgNGORating,
		})
	}
	writeJSON(c, http.StatusOK, gin.H{"generated_at": snap.GeneratedAt, "districts": out})
}
