// README: HTTP router registration: middleware chain, route groups, and role
// guards.
package http

import (
	"context"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"sharetray/internal/http/handlers"
	"sharetray/internal/http/middleware"
	"sharetray/internal/modules/activity"
	"sharetray/internal/modules/donation"
	"sharetray/internal/modules/matching"
	"sharetray/internal/modules/pickup"
	"sharetray/internal/modules/recipient"
	"sharetray/internal/modules/tracking"
	"sharetray/internal/modules/user"
	"sharetray/internal/report"
	"sharetray/internal/roles"
	"sharetray/internal/seed"
	"sharetray/internal/types"
)

type RouterDeps struct {
	Users      *user.Service
	Recipients *recipient.Service
	Donations  *donation.Service
	Matching   *matching.Service
	Pickups    *pickup.Service
	Tracking   *tracking.Service
	Activity   *activity.Service
	Reports    *report.Service
	Roles      *roles.Manager
	Log        *logrus.Logger

	CORSOrigins  []string
	RateLimitRPM int

	// Seeder, when set, mounts POST /seed/demo. Only the dev backend
	// provides one.
	Seeder func(ctx context.Context) (seed.Result, error)
}

func NewRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(deps.Log))
	r.Use(middleware.Logging(deps.Log))
	r.Use(cors.New(corsConfig(deps.CORSOrigins)))
	r.Use(middleware.NewRateLimiter(deps.RateLimitRPM).Handler())

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	if deps.Seeder != nil {
		r.POST("/seed/demo", func(c *gin.Context) {
			res, err := deps.Seeder(c.Request.Context())
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusCreated, res)
		})
	}

	authHandler := handlers.NewAuthHandler(deps.Users)
	donationHandler := handlers.NewDonationHandler(deps.Donations)
	recipientHandler := handlers.NewRecipientHandler(deps.Recipients)
	matchingHandler := handlers.NewMatchingHandler(deps.Matching)
	pickupHandler := handlers.NewPickupHandler(deps.Pickups)
	trackingHandler := handlers.NewTrackingHandler(deps.Tracking)
	reportHandler := handlers.NewReportHandler(deps.Reports)
	rolesHandler := handlers.NewRolesHandler(deps.Roles)

	api := r.Group("/api")
	api.Use(middleware.RecordActivity(deps.Activity))

	api.POST("/auth/register", authHandler.Register)
	api.POST("/auth/login", authHandler.Login)

	authed := api.Group("")
	authed.Use(middleware.RequireAuth(deps.Users))

	authed.GET("/auth/me", authHandler.Me)

	donorOnly := middleware.RequireRole(types.RoleDonor, types.RoleAdmin)
	adminOnly := middleware.RequireRole(types.RoleAdmin)
	volunteerOnly := middleware.RequireRole(types.RoleVolunteer, types.RoleAdmin)
	recipientOnly := middleware.RequireRole(types.RoleRecipient, types.RoleAdmin)

	authed.POST("/donations", donorOnly, donationHandler.Create)
	authed.GET("/donations", donationHandler.List)
	authed.GET("/donations/:id", donationHandler.Get)
	authed.GET("/donations/:id/audit", donationHandler.AuditTrail)
	authed.POST("/donations/:id/transition", donationHandler.Transition)

	authed.POST("/recipients", adminOnly, recipientHandler.Create)
	authed.GET("/recipients", recipientHandler.List)
	authed.GET("/recipients/:id", recipientHandler.Get)
	authed.PUT("/recipients/:id/capacity", recipientOnly, recipientHandler.SetCapacity)

	authed.POST("/matching/run", adminOnly, matchingHandler.Run)

	authed.POST("/pickups", volunteerOnly, pickupHandler.Schedule)
	authed.POST("/pickups/plan", volunteerOnly, pickupHandler.PlanRoute)
	authed.GET("/pickups/:id", pickupHandler.Get)

	authed.POST("/tracking/location", volunteerOnly, trackingHandler.Record)
	authed.GET("/tracking/nearby", trackingHandler.Nearby)

	authed.GET("/reports/summary", adminOnly, reportHandler.Summary)
	authed.GET("/reports/activity", adminOnly, reportHandler.Activity)
	authed.GET("/reports/export.xlsx", adminOnly, reportHandler.ExportWorkbook)
	authed.GET("/reports/export.csv", adminOnly, reportHandler.ExportCSV)

	authed.GET("/roles/criteria", rolesHandler.List)
	authed.GET("/roles/:role/criteria", rolesHandler.Get)
	authed.PUT("/roles/:role/criteria", adminOnly, rolesHandler.Set)

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowHeaders = append(cfg.AllowHeaders, "Authorization")
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	return cfg
}
