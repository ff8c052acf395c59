// README: NGO handlers: pending queue, capacity probe, approve, reject.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"seva/internal/modules/ngo"
	"seva/internal/types"
)

type NGOHandler struct {
	ngos *ngo.Service
}

func NewNGOHandler(svc *ngo.Service) *NGOHandler {
	return &NGOHandler{ngos: svc}
}

func (h *NGOHandler) Pending(c *gin.Context) {
	ngoID := c.Param("id")
	if !isValidID(ngoID) {
		writeError(c, http.StatusBadRequest, "validation", "invalid ngo id")
		return
	}
	list, err := h.ngos.Pending(c.Request.Context(), types.ID(ngoID))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	out := make([]gin.H, 0, len(list))
	for _, d := range list {
		out = append(out, donationView(d))
	}
	writeJSON(c, http.StatusOK, gin.H{"donations": out})
}

func (h *NGOHandler) CanApprove(c *gin.Context) {
	ngoID := c.Param("id")
	donationID := c.Query("donation_id")
	if !isValidID(ngoID) || !isValidID(donationID) {
		writeError(c, http.StatusBadRequest, "validation", "invalid id")
		return
	}
	dec, err := h.ngos.CanApprove(c.Request.Context(), types.ID(ngoID), types.ID(donationID))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{
		"can_approve": dec.CanApprove,
		"reason":      dec.Reason,
		"remaining":   dec.Remaining,
		"is_critical": dec.IsCritical,
	})
}

func (h *NGOHandler) Approve(c *gin.Context) {
	ngoID := c.Param("id")
	donationID := c.Param("donation_id")
	if !isValidID(ngoID) || !isValidID(donationID) {
		writeError(c, http.StatusBadRequest, "validation", "invalid id")
		return
	}
	res, err := h.ngos.Approve(c.Request.Context(), ngo.ApproveCommand{
		NGOID:      types.ID(ngoID),
		DonationID: types.ID(donationID),
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{
		"success":     true,
		"match_type":  res.MatchType,
		"is_critical": res.IsCritical,
		"remaining":   res.Remaining,
	})
}

func (h *NGOHandler) Reject(c *gin.Context) {
	ngoID := c.Param("id")
	donationID := c.Param("donation_id")
	if !isValidID(ngoID) || !isValidID(donationID) {
		writeError(c, http.StatusBadRequest, "validation", "invalid id")
		return
	}
	err := h.ngos.Reject(c.Request.Context(), ngo.RejectCommand{
		NGOID:      types.ID(ngoID),
		DonationID: types.ID(donationID),
		Reason:     c.Query("reason"),
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"success": true})
}
