// README: Volunteer handlers: browse, accept, pickup, transit, deliver,
// trust score, live position.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"seva/internal/modules/assignment"
	"seva/internal/modules/donation"
	"seva/internal/modules/geo"
	"seva/internal/modules/trust"
	"seva/internal/types"
)

type VolunteerHandler struct {
	assignments *assignment.Service
	donations   *donation.Service
	trust       *trust.Service
	geo         *geo.Service
}

func NewVolunteerHandler(assignments *assignment.Service, donations *donation.Service, trustSvc *trust.Service, geoSvc *geo.Service) *VolunteerHandler {
	return &VolunteerHandler{assignments: assignments, donations: donations, trust: trustSvc, geo: geoSvc}
}

func (h *VolunteerHandler) ListAvailable(c *gin.Context) {
	district := c.Query("district")
	if district == "" {
		writeError(c, http.StatusBadRequest, "validation", "missing district")
		return
	}
	list, err := h.assignments.ListAvailable(c.Request.Context(), district)
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

func (h *VolunteerHandler) Accept(c *gin.Context) {
	donationID := c.Param("id")
	volunteerID := c.Query("volunteer_id")
	if !isValidID(donationID) || !isValidID(volunteerID) {
		writeError(c, http.StatusBadRequest, "validation", "invalid id")
		return
	}
	assignmentID, err := h.assignments.Accept(c.Request.Context(), assignment.AcceptCommand{
		DonationID:  types.ID(donationID),
		VolunteerID: types.ID(volunteerID),
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"success": true, "assignment_id": assignmentID})
}

func (h *VolunteerHandler) Pickup(c *gin.Context) {
	donationID := c.Param("id")
	volunteerID := c.Query("volunteer_id")
	if !isValidID(donationID) || !isValidID(volunteerID) {
		writeError(c, http.StatusBadRequest, "validation", "invalid id")
		return
	}
	err := h.assignments.Pickup(c.Request.Context(), assignment.PickupCommand{
		DonationID:  types.ID(donationID),
		VolunteerID: types.ID(volunteerID),
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": donation.StatusPickedUp})
}

func (h *VolunteerHandler) Transit(c *gin.Context) {
	donationID := c.Param("id")
	volunteerID := c.Query("volunteer_id")
	if !isValidID(donationID) || !isValidID(volunteerID) {
		writeError(c, http.StatusBadRequest, "validation", "invalid id")
		return
	}
	err := h.donations.MarkInTransit(c.Request.Context(), donation.TransitCommand{
		DonationID:  types.ID(donationID),
		VolunteerID: types.ID(volunteerID),
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": donation.StatusInTransit})
}

func (h *VolunteerHandler) Deliver(c *gin.Context) {
	donationID := c.Param("id")
	volunteerID := c.Query("volunteer_id")
	if !isValidID(donationID) || !isValidID(volunteerID) {
		writeError(c, http.StatusBadRequest, "validation", "invalid id")
		return
	}
	var ngoID *types.ID
	if v := c.Query("ngo_id"); v != "" {
		if !isValidID(v) {
			writeError(c, http.StatusBadRequest, "validation", "invalid ngo id")
			return
		}
		id := types.ID(v)
		ngoID = &id
	}
	err := h.assignments.Deliver(c.Request.Context(), assignment.DeliverCommand{
		DonationID:  types.ID(donationID),
		VolunteerID: types.ID(volunteerID),
		NGOID:       ngoID,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": donation.StatusDelivered})
}

func (h *VolunteerHandler) TrustScore(c *gin.Context) {
	volunteerID := c.Param("id")
	if !isValidID(volunteerID) {
		writeError(c, http.StatusBadRequest, "validation", "invalid volunteer id")
		return
	}
	sc, err := h.trust.GetScore(c.Request.Context(), types.ID(volunteerID))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"volunteer_id": sc.VolunteerID, "score": sc.Score, "tier": sc.Tier})
}

func (h *VolunteerHandler) TrustActivities(c *gin.Context) {
	volunteerID := c.Param("id")
	if !isValidID(volunteerID) {
		writeError(c, http.StatusBadRequest, "validation", "invalid volunteer id")
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	acts, err := h.trust.ListActivities(c.Request.Context(), types.ID(volunteerID), limit)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	out := make([]gin.H, 0, len(acts))
	for _, a := range acts {
		out = append(out, gin.H{
			"activity_type": a.ActivityType,
			"score_change":  a.ScoreChange,
			"description":   a.Description,
			"created_at":    a.CreatedAt,
		})
	}
	writeJSON(c, http.StatusOK, gin.H{"activities": out})
}

type positionReq struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (h *VolunteerHandler) UpdatePosition(c *gin.Context) {
	volunteerID := c.Param("id")
	if !isValidID(volunteerID) {
		writeError(c, http.StatusBadRequest, "validation", "invalid volunteer id")
		return
	}
	var req positionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "validation", "invalid json")
		return
	}
	if err := h.geo.UpdatePosition(c.Request.Context(), types.ID(volunteerID), types.Point{Lat: req.Lat, Lng: req.Lng}); err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"success": true})
}

// Distance reports the live route estimate from a volunteer to a donation.
func (h *VolunteerHandler) Distance(c *gin.Context) {
	volunteerID := c.Param("id")
	donationID := c.Query("donation_id")
	if !isValidID(volunteerID) || !isValidID(donationID) {
		writeError(c, http.StatusBadRequest, "validation", "invalid id")
		return
	}
	d, err := h.donations.Get(c.Request.Context(), types.ID(donationID))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	if d.Position == nil {
		writeJSON(c, http.StatusOK, gin.H{"available": false, "reason": "coordinates unavailable"})
		return
	}
	area := geo.AreaType(c.DefaultQuery("area", string(geo.AreaUrban)))
	mode := geo.TravelMode(c.DefaultQuery("mode", string(geo.ModeBike)))
	est, err := h.geo.DistanceToPoint(c.Request.Context(), types.ID(volunteerID), *d.Position, area, mode)
	if err == geo.ErrNoPosition {
		writeJSON(c, http.StatusOK, gin.H{"available": false, "reason": "no live position"})
		return
	}
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{
		"available":   true,
		"straight_km": est.StraightKm,
		"route_km":    est.RouteKm,
		"travel_min":  est.TravelMin,
		"category":    est.Category,
		"cost_paise":  est.CostPaise,
		"currency":    est.Currency,
		"approximate": est.Approximate,
	})
}
