// README: Entry point; loads config, wires services, starts the HTTP server
// and background schedulers.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bsm/redislock"

	"sharetray/internal/config"
	httptransport "sharetray/internal/http"
	"sharetray/internal/infra"
	"sharetray/internal/logging"
	mapssvc "sharetray/internal/maps"
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
	"sharetray/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New("info").WithError(err).Fatal("load config")
	}
	log := logging.New(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rolesManager := roles.NewManager(cfg.Roles.File)
	if err := rolesManager.Load(); err != nil {
		log.WithError(err).Fatal("load role criteria")
	}

	var (
		userRepo        user.Repository
		recipientRepo   recipient.Repository
		donationRepo    donation.Repository
		pickupRepo      pickup.Repository
		snapshotRepo    tracking.SnapshotStore
		activityRepo    activity.Repository
		reportDonations report.DonationSource
	)
	var mem *store.Memory
	switch cfg.Store.Backend {
	case config.StoreBackendMemory:
		mem = store.NewMemory()
		userRepo = mem.Users()
		recipientRepo = mem.Recipients()
		donationRepo = mem.Donations()
		pickupRepo = mem.Pickups()
		snapshotRepo = mem.Snapshots()
		activityRepo = mem.Events()
		reportDonations = mem.Donations()
		log.Warn("using in-memory store, data is lost on restart")
	default:
		pool, err := infra.NewDB(ctx, cfg.DB.DSN)
		if err != nil {
			log.WithError(err).Fatal("connect postgres")
		}
		defer pool.Close()
		if err := infra.EnsureSchema(ctx, pool, log); err != nil {
			log.WithError(err).Fatal("ensure schema")
		}
		donationStore := donation.NewStore(pool)
		userRepo = user.NewStore(pool)
		recipientRepo = recipient.NewStore(pool)
		donationRepo = donationStore
		pickupRepo = pickup.NewStore(pool)
		snapshotRepo = tracking.NewStore(pool)
		activityRepo = activity.NewStore(pool)
		reportDonations = donationStore
	}

	var locker *redislock.Client
	var geoIndex tracking.GeoIndex
	if cfg.Redis.Addr != "" {
		redisClient := infra.NewRedis(cfg.Redis.Addr)
		locker = redislock.New(redisClient)
		geoIndex = tracking.NewRedisIndex(redisClient)
	}

	var estimator pickup.DriveEstimator
	if cfg.Maps.APIKey != "" {
		routeService, err := mapssvc.NewRouteService(cfg.Maps.APIKey)
		if err != nil {
			log.WithError(err).Fatal("init maps client")
		}
		estimator = routeService
	}

	userSvc := user.NewService(userRepo, cfg.Auth.JWTSecret, time.Duration(cfg.Auth.TokenTTLMinutes)*time.Minute)
	recipientSvc := recipient.NewService(recipientRepo)
	donationSvc := donation.NewService(donationRepo, recipientSvc, userSvc, log)
	matchingSvc := matching.NewService(donationSvc, recipientSvc, locker, cfg.Matching, log)
	pickupSvc := pickup.NewService(pickupRepo, donationSvc, userSvc, estimator)
	trackingSvc := tracking.NewService(userSvc, snapshotRepo, geoIndex)
	activitySvc := activity.NewService(activityRepo)
	reportSvc := report.NewService(reportDonations, recipientSvc, activitySvc, rolesManager)

	deps := httptransport.RouterDeps{
		Users:        userSvc,
		Recipients:   recipientSvc,
		Donations:    donationSvc,
		Matching:     matchingSvc,
		Pickups:      pickupSvc,
		Tracking:     trackingSvc,
		Activity:     activitySvc,
		Reports:      reportSvc,
		Roles:        rolesManager,
		Log:          log,
		CORSOrigins:  cfg.HTTP.CORSOrigins,
		RateLimitRPM: cfg.HTTP.RateLimitRPM,
	}
	if mem != nil {
		deps.Seeder = func(ctx context.Context) (seed.Result, error) {
			return seed.Seed(ctx, userSvc, recipientSvc, donationSvc)
		}
	}

	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: httptransport.NewRouter(deps)}

	go matchingSvc.RunScheduler(ctx)
	go donationSvc.RunExpiryMonitor(ctx, time.Duration(cfg.Expiry.TickSeconds)*time.Second)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.WithField("addr", cfg.HTTP.Addr).Info("sharetray api listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Fatal("server error")
	}
}
