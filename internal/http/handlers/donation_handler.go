// README: Donor-facing handlers: submit, inspect, cancel, complete.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"seva/internal/modules/assignment"
	"seva/internal/modules/donation"
	"seva/internal/modules/geo"
	"seva/internal/types"
)

type DonationHandler struct {
	donations   *donation.Service
	assignments *assignment.Service
	geo         *geo.Service
}

func NewDonationHandler(donations *donation.Service, assignments *assignment.Service, geoSvc *geo.Service) *DonationHandler {
	return &DonationHandler{donations: donations, assignments: assignments, geo: geoSvc}
}

type createDonationReq struct {
	DonorID    string         `json:"donor_id"`
	Items      map[string]int `json:"items"`
	CustomItem string         `json:"custom_item"`
	CustomQty  int            `json:"custom_qty"`
	Priority   string         `json:"priority"`
	City       string         `json:"city"`
	Address    string         `json:"address"`
	Lat        *float64       `json:"lat"`
	Lng        *float64       `json:"lng"`
}

func (h *DonationHandler) Create(c *gin.Context) {
	var req createDonationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "validation", "invalid json")
		return
	}

	items := donation.Items{}
	for k, v := range req.Items {
		items[donation.ItemCategory(k)] = v
	}

	var pos *types.Point
	if req.Lat != nil && req.Lng != nil {
		pos = &types.Point{Lat: *req.Lat, Lng: *req.Lng}
	} else if req.Address != "" && h.geo != nil {
		if p, ok := h.geo.ResolveAddress(c.Request.Context(), req.Address); ok {
			pos = &p
		}
	}

	id, err := h.donations.Create(c.Request.Context(), donation.CreateCommand{
		DonorID:    types.ID(req.DonorID),
		Items:      items,
		CustomItem: req.CustomItem,
		CustomQty:  req.CustomQty,
		Priority:   donation.Priority(req.Priority),
		City:       req.City,
		Position:   pos,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, gin.H{"donation_id": id, "status": donation.StatusPendingApproval})
}

func (h *DonationHandler) Get(c *gin.Context) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "validation", "invalid donation id")
		return
	}
	d, err := h.donations.Get(c.Request.Context(), types.ID(id))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, donationView(d))
}

func (h *DonationHandler) Cancel(c *gin.Context) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "validation", "invalid donation id")
		return
	}
	actorID := c.Query("actor_id")
	err := h.assignments.Cancel(c.Request.Context(), assignment.CancelCommand{
		DonationID: types.ID(id),
		ActorType:  "donor",
		ActorID:    types.ID(actorID),
		Reason:     c.Query("reason"),
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": donation.StatusCancelled})
}

func (h *DonationHandler) Complete(c *gin.Context) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "validation", "invalid donation id")
		return
	}
	err := h.donations.Complete(c.Request.Context(), donation.CompleteCommand{
		DonationID: types.ID(id),
		ActorType:  "ngo",
		ActorID:    types.ID(c.Query("actor_id")),
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": donation.StatusCompleted})
}

// Nearby lists volunteers with a live position close to the donation's
// coordinates, for NGO dispatch dashboards.
func (h *DonationHandler) Nearby(c *gin.Context) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "validation", "invalid donation id")
		return
	}
	d, err := h.donations.Get(c.Request.Context(), types.ID(id))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	if d.Position == nil {
		writeError(c, http.StatusConflict, "state", "donation has no coordinates")
		return
	}
	radius, _ := strconv.ParseFloat(c.Query("radius_km"), 64)
	ids, err := h.geo.NearbyVolunteers(c.Request.Context(), *d.Position, radius)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "internal", "internal error")
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"volunteer_ids": ids, "count": len(ids)})
}

func donationView(d *donation.Donation) gin.H {
	v := gin.H{
		"donation_id":     d.ID,
		"status":          d.Status,
		"approval_status": d.ApprovalStatus,
		"priority":        d.Priority,
		"is_universal":    d.IsUniversal,
		"city":            d.City,
		"district":        d.District,
		"items":           d.Items,
		"created_at":      d.CreatedAt,
	}
	if d.CustomItem != "" {
		v["custom_item"] = d.CustomItem
		v["custom_qty"] = d.CustomQty
	}
	if d.NGOID != nil {
		v["ngo_id"] = *d.NGOID
	}
	if d.VolunteerID != nil {
		v["volunteer_id"] = *d.VolunteerID
		if d.VolunteerName != nil {
			v["volunteer_name"] = *d.VolunteerName
		}
		if d.VolunteerPhone != nil {
			v["volunteer_phone"] = *d.VolunteerPhone
		}
	}
	if d.AssignedAt != nil {
		v["assigned_at"] = *d.AssignedAt
	}
	if d.Position != nil {
		v["lat"] = d.Position.Lat
		v["lng"] = d.Position.Lng
	}
	return v
}
