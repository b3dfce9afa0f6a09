package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"carevoice-backend/config"
	"carevoice-backend/internal/api"
	"carevoice-backend/internal/auth"
	"carevoice-backend/internal/db"
	"carevoice-backend/internal/device"
	"carevoice-backend/internal/emergency"
	"carevoice-backend/internal/logging"
	"carevoice-backend/internal/model"
	"carevoice-backend/internal/notification"
	"carevoice-backend/internal/orgtime"
	"carevoice-backend/internal/schedule"
	"carevoice-backend/internal/store"
	"carevoice-backend/internal/sweeper"
)

func usage() {
	fmt.Fprintf(os.Stderr, `usage: carevoiced [command]

commands:
  serve                                   run the HTTP service (default)
  bootstrap -name NAME -timezone TZ       create an organization and print an OWNER token
  token -org ID [-user ID] [-role ROLE]   print a token for an existing organization
`)
}

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration from %s: %v\n", configPath, err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, "carevoiced")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	logger.Info("configuration loaded", zap.String("path", configPath))

	cmd, args := "serve", os.Args[1:]
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "serve":
		err = serve(cfg, logger)
	case "bootstrap":
		err = bootstrap(cfg, logger, args)
	case "token":
		err = token(cfg, logger, args)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		logger.Fatal("command failed", zap.String("command", cmd), zap.Error(err))
	}
}

func tokenManager(cfg *config.Config) (*auth.Manager, error) {
	return auth.NewManager(cfg.Server.JWTSecret, time.Duration(cfg.Server.TokenTTLHours)*time.Hour)
}

func serve(cfg *config.Config, logger *zap.Logger) error {
	gormDB, err := db.Init(&cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	tokens, err := tokenManager(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appStore := store.NewGormStore(gormDB)
	clock := orgtime.SystemClock{}

	var webpushOptions *webpush.Options
	var notifier emergency.Notifier
	if cfg.Push.PublicKey == "" || cfg.Push.PrivateKey == "" {
		logger.Warn("VAPID keys are not configured, emergency push alerts are disabled")
	} else {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
		pool := notification.NewWorkerPool(cfg.WorkerPool.Size, gormDB, webpushOptions, logger)
		pool.Start(ctx)
		notifier = pool
	}

	sweeperSvc := sweeper.NewService(&cfg.Sweeper, appStore, clock, logger)
	go sweeperSvc.Run(ctx)

	handler := api.NewHandler(api.Deps{
		Store:     appStore,
		Resolver:  schedule.NewResolver(appStore),
		Devices:   device.NewService(appStore, clock, cfg.Billing.MaxDevices, logger),
		Emergency: emergency.NewChannel(appStore, clock, notifier, logger),
		WebPush:   webpushOptions,
		Clock:     clock,
		Billing:   cfg.Billing,
		Log:       logger,
	})
	router := api.NewRouter(handler, &cfg.Server, tokens)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("HTTP server starting", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server ListenAndServe", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Info("shutdown signal received, stopping services")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server Shutdown: %w", err)
	}

	logger.Info("server gracefully stopped")
	return nil
}

func bootstrap(cfg *config.Config, logger *zap.Logger, args []string) error {
	fs := flag.NewFlagSet("bootstrap", flag.ExitOnError)
	name := fs.String("name", "", "organization name")
	timezone := fs.String("timezone", "America/New_York", "IANA timezone of the organization")
	user := fs.String("user", "", "owner user id (generated when empty)")
	_ = fs.Parse(args)

	if *name == "" {
		return errors.New("-name is required")
	}
	if _, err := orgtime.Location(*timezone); err != nil {
		return err
	}
	if *user == "" {
		*user = uuid.NewString()
	}

	tokens, err := tokenManager(cfg)
	if err != nil {
		return err
	}
	gormDB, err := db.Init(&cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	org := model.Organization{Name: *name, Timezone: *timezone, SubscriptionStatus: model.SubscriptionTrial}
	if err := store.NewGormStore(gormDB).CreateOrganization(context.Background(), &org); err != nil {
		return err
	}
	signed, err := tokens.Issue(org.ID, *user, auth.RoleOwner)
	if err != nil {
		return err
	}

	logger.Info("organization created", zap.String("org_id", org.ID), zap.String("timezone", org.Timezone))
	fmt.Printf("organization: %s\nowner token: %s\n", org.ID, signed)
	return nil
}

func token(cfg *config.Config, logger *zap.Logger, args []string) error {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	orgID := fs.String("org", "", "organization id")
	user := fs.String("user", "", "user id (generated when empty)")
	role := fs.String("role", string(auth.RoleAdmin), "OWNER, ADMIN or STAFF")
	_ = fs.Parse(args)

	if *orgID == "" {
		return errors.New("-org is required")
	}
	if *user == "" {
		*user = uuid.NewString()
	}

	tokens, err := tokenManager(cfg)
	if err != nil {
		return err
	}
	gormDB, err := db.Init(&cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	if _, err := store.NewGormStore(gormDB).GetOrganization(context.Background(), *orgID); err != nil {
		return err
	}

	signed, err := tokens.Issue(*orgID, *user, auth.Role(*role))
	if err != nil {
		return err
	}
	fmt.Println(signed)
	return nil
}
