// README: HTTP router registration.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"seva/internal/ai"
	"seva/internal/http/handlers"
	"seva/internal/http/middleware"
	"seva/internal/modules/aiquota"
	"seva/internal/modules/assignment"
	"seva/internal/modules/coverage"
	"seva/internal/modules/donation"
	"seva/internal/modules/geo"
	"seva/internal/modules/ngo"
	"seva/internal/modules/trust"
)

type RouterDeps struct {
	Donations   *donation.Service
	NGOs        *ngo.Service
	Assignments *assignment.Service
	Trust       *trust.Service
	Geo         *geo.Service
	Coverage    *coverage.Service
	Suggester   ai.PrioritySuggester
	Quota       *aiquota.Service
}

func NewRouter(deps RouterDeps) http.Handler {
	r := gin.New()
	r.Use(middleware.Logging(), middleware.Recovery())

	donationHandler := handlers.NewDonationHandler(deps.Donations, deps.Assignments, deps.Geo)
	r.POST("/api/donations", donationHandler.Create)
	r.GET("/api/donations/:id", donationHandler.Get)
	r.POST("/api/donations/:id/cancel", donationHandler.Cancel)
	r.POST("/api/donations/:id/complete", donationHandler.Complete)
	r.GET("/api/donations/:id/nearby-volunteers", donationHandler.Nearby)

	ngoHandler := handlers.NewNGOHandler(deps.NGOs)
	r.GET("/api/ngos/:id/donations", ngoHandler.Pending)
	r.GET("/api/ngos/:id/can-approve", ngoHandler.CanApprove)
	r.POST("/api/ngos/:id/donations/:donation_id/approve", ngoHandler.Approve)
	r.POST("/api/ngos/:id/donations/:donation_id/reject", ngoHandler.Reject)

	volunteerHandler := handlers.NewVolunteerHandler(deps.Assignments, deps.Donations, deps.Trust, deps.Geo)
	r.GET("/api/volunteers/donations", volunteerHandler.ListAvailable)
	r.POST("/api/volunteers/donations/:id/accept", volunteerHandler.Accept)
	r.POST("/api/volunteers/donations/:id/pickup", volunteerHandler.Pickup)
	r.POST("/api/volunteers/donations/:id/transit", volunteerHandler.Transit)
	r.POST("/api/volunteers/donations/:id/deliver", volunteerHandler.Deliver)
	r.GET("/api/volunteers/:id/trust", volunteerHandler.TrustScore)
	r.GET("/api/volunteers/:id/trust/activities", volunteerHandler.TrustActivities)
	r.PUT("/api/volunteers/:id/location", volunteerHandler.UpdatePosition)
	r.GET("/api/volunteers/:id/distance", volunteerHandler.Distance)

	aiHandler := handlers.NewAIHandler(deps.Suggester, deps.Quota)
	r.POST("/api/ai/suggest-priority", aiHandler.SuggestPriority)

	coverageHandler := handlers.NewCoverageHandler(deps.Coverage)
	r.GET("/api/coverage", coverageHandler.Snapshot)

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	return r
}
