// README: Entry point; loads config, wires services, starts HTTP server and the reconciler.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"seva/internal/ai"
	"seva/internal/config"
	httptransport "seva/internal/http"
	"seva/internal/infra"
	"seva/internal/maps"
	"seva/internal/modules/aiquota"
	"seva/internal/modules/assignment"
	"seva/internal/modules/coverage"
	"seva/internal/modules/donation"
	"seva/internal/modules/geo"
	"seva/internal/modules/ngo"
	"seva/internal/modules/trust"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		log.Fatal(err)
	}
	defer dbPool.Close()

	redisClient := infra.NewRedis(cfg.Redis.Addr)

	var geocoder geo.Geocoder
	if cfg.Maps.APIKey != "" {
		g, err := maps.NewGeocodeService(cfg.Maps.APIKey, cfg.Maps.Region)
		if err != nil {
			log.Fatalf("maps init: %v", err)
		}
		geocoder = g
	}

	var suggester ai.PrioritySuggester
	if cfg.AI.GeminiKey != "" {
		s, err := ai.NewGeminiSuggester(ctx, cfg.AI.GeminiKey)
		if err != nil {
			log.Fatalf("gemini init: %v", err)
		}
		defer s.Close()
		suggester = s
	}

	donationStore := donation.NewStore(dbPool)
	donationSvc := donation.NewService(donationStore)

	trustStore := trust.NewStore(dbPool)
	trustSvc := trust.NewService(trustStore)

	ngoStore := ngo.NewStore(dbPool)
	ngoSvc := ngo.NewService(dbPool, ngoStore, donationStore)

	assignmentStore := assignment.NewStore(dbPool)
	assignmentSvc := assignment.NewService(dbPool, assignmentStore, donationStore, trustSvc)

	geoStore := geo.NewStore(redisClient)
	geoSvc := geo.NewService(geoStore, geocoder)

	coverageSvc := coverage.NewService(coverage.NewStore(dbPool))
	quotaSvc := aiquota.NewService(aiquota.NewStore(dbPool))

	handler := httptransport.NewRouter(httptransport.RouterDeps{
		Donations:   donationSvc,
		NGOs:        ngoSvc,
		Assignments: assignmentSvc,
		Trust:       trustSvc,
		Geo:         geoSvc,
		Coverage:    coverageSvc,
		Suggester:   suggester,
		Quota:       quotaSvc,
	})

	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: handler}

	go assignmentSvc.RunReconciler(ctx, assignment.ReconcilerConfig{
		Interval: time.Duration(cfg.Reconciler.IntervalMinutes) * time.Minute,
		Timeout:  time.Duration(cfg.Reconciler.TimeoutHours) * time.Hour,
	})

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Printf("listening on %s", cfg.HTTP.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
}
