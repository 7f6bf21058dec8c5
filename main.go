package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"gorm.io/gorm"

	"pricetracker/analytics"
	"pricetracker/catalog"
	"pricetracker/config"
	"pricetracker/controllers"
	"pricetracker/database"
	"pricetracker/history"
	"pricetracker/logger"
	"pricetracker/middleware"
	"pricetracker/models"
	"pricetracker/pricing"
	"pricetracker/routes"
	"pricetracker/scheduler"
	"pricetracker/tracking"
)

const usage = `usage: pricetracker [-config path] <command> [flags]

commands:
  serve                      run the HTTP API (default)
  track --all                track prices for all published products
  track --product 1,2        track prices for specific products
  seed                       insert demo products and 30 days of history
`

type app struct {
	cfg     *config.Config
	log     *logger.Log
	db      *gorm.DB
	store   history.Store
	catalog catalog.Catalog
	source  pricing.Source
	tracker *tracking.Coordinator
}

func main() {
	log := logger.GetLogger()

	configPath := flag.String("config", "config.yml", "Path to configuration file")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}
	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	command, args := "serve", flag.Args()
	if len(args) > 0 {
		command, args = args[0], args[1:]
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(cfg, log)
	if err != nil {
		log.WithError(err).Error("Failed to initialise")
		os.Exit(1)
	}

	switch command {
	case "serve":
		err = a.serve(ctx)
	case "track":
		err = a.track(ctx, args)
	case "seed":
		err = a.seed(ctx)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		log.WithError(err).Error("command failed")
		os.Exit(1)
	}
}

func newApp(cfg *config.Config, log *logger.Log) (*app, error) {
	db, err := database.Connect(cfg.Database, log)
	if err != nil {
		return nil, err
	}
	source, err := newSource(cfg.Tracking)
	if err != nil {
		return nil, err
	}
	epsilon, err := cfg.EpsilonValue()
	if err != nil {
		return nil, err
	}

	store := history.NewGormStore(db)
	return &app{
		cfg:     cfg,
		log:     log,
		db:      db,
		store:   store,
		catalog: catalog.NewGormCatalog(db),
		source:  source,
		tracker: tracking.New(source, store,
			tracking.WithDetector(pricing.NewDetector(epsilon)),
			tracking.WithWorkers(cfg.Tracking.Workers),
			tracking.WithLogger(log),
		),
	}, nil
}

func newRand(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

func newSource(cfg config.TrackingConfig) (pricing.Source, error) {
	switch cfg.Source {
	case config.SourceFeed:
		return pricing.NewFeedSource(cfg.Feed, nil)
	default:
		return pricing.NewSimulatedSource(cfg.Bounds, newRand(cfg.Seed))
	}
}

func (a *app) serve(ctx context.Context) error {
	if created, err := database.EnsureAdmin(ctx, a.db, a.cfg.Auth.AdminUsername, a.cfg.Auth.AdminPassword); err != nil {
		return err
	} else if created {
		a.log.WithFields(logger.Fields{"username": a.cfg.Auth.AdminUsername}).Info("admin user created")
	}

	server := fiber.New(fiber.Config{DisableStartupMessage: true})
	server.Use(cors.New(cors.Config{
		AllowOrigins: a.cfg.Server.AllowOrigins,
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
		AllowHeaders: "Content-Type, Authorization",
	}))
	server.Use(fiberlogger.New())

	secret := []byte(a.cfg.Auth.JWTSecret)
	routes.RegisterAuthRoutes(server, &controllers.AuthController{
		DB:       a.db,
		Secret:   secret,
		TokenTTL: a.cfg.Auth.TokenTTL,
		Clock:    pricing.SystemClock,
		Log:      a.log,
	})
	routes.RegisterPriceTrackerRoutes(server, &controllers.PriceTrackerController{
		Catalog:   a.catalog,
		Store:     a.store,
		Tracker:   a.tracker,
		Analytics: analytics.New(a.store, a.catalog, pricing.SystemClock, analytics.WithLogger(a.log)),
		Source:    a.source,
		Clock:     pricing.SystemClock,
		Log:       a.log,
	}, middleware.JWTAdmin(secret, a.log), routes.Limits{
		Read:  a.cfg.Server.ReadLimit,
		Track: a.cfg.Server.TrackLimit,
	})

	server.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"message": "Price tracker is running"})
	})

	if a.cfg.Tracking.Schedule {
		go scheduler.New(a.tracker, a.catalog, a.cfg.Tracking.Interval, a.log).Start(ctx)
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.ShutdownWithContext(shutdownCtx); err != nil {
			a.log.WithError(err).Error("server shutdown failed")
		}
	}()

	a.log.WithFields(logger.Fields{"port": a.cfg.Server.Port}).Info("server running")
	return server.Listen(":" + a.cfg.Server.Port)
}

// parseIDs accepts repeated and comma separated ids.
func parseIDs(values []string) ([]uint, error) {
	var ids []uint
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseUint(part, 10, 64)
			if err != nil || id == 0 {
				return nil, fmt.Errorf("invalid product id %q", part)
			}
			ids = append(ids, uint(id))
		}
	}
	return ids, nil
}

type idList []string

func (l *idList) String() string     { return strings.Join(*l, ",") }
func (l *idList) Set(v string) error { *l = append(*l, v); return nil }

func (a *app) track(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("track", flag.ContinueOnError)
	all := fs.Bool("all", false, "Track all published products")
	var productFlags idList
	fs.Var(&productFlags, "product", "Product ID to track (repeatable, comma separated)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ids, err := parseIDs(productFlags)
	if err != nil {
		return err
	}

	var products []models.Product
	switch {
	case len(ids) > 0:
		products, err = a.catalog.GetMany(ctx, ids)
	case *all:
		products, err = a.catalog.ListPublished(ctx)
	default:
		return fmt.Errorf("please specify either --product=ID or --all")
	}
	if err != nil {
		return err
	}
	if len(products) == 0 {
		a.log.Warn("no products found to track")
		return nil
	}

	batch := a.tracker.TrackMany(ctx, products)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for i, res := range batch.Results {
		switch res.Outcome {
		case tracking.Persisted:
			fmt.Fprintf(w, "✓\t%s\t%s\tchange %s\n", products[i].Name, res.NewPrice.StringFixed(2), res.Delta.StringFixed(2))
		case tracking.Skipped:
			fmt.Fprintf(w, "-\t%s\t%s\tno price change detected\n", products[i].Name, res.NewPrice.StringFixed(2))
		default:
			fmt.Fprintf(w, "✗\t%s\t\t%s\n", products[i].Name, res.Error)
		}
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Products Processed\t%d\n", batch.Total)
	fmt.Fprintf(w, "Successfully Tracked\t%d\n", batch.Tracked)
	fmt.Fprintf(w, "Unchanged\t%d\n", batch.Unchanged)
	fmt.Fprintf(w, "Errors\t%d\n", batch.Errors)
	return w.Flush()
}

func (a *app) seed(ctx context.Context) error {
	seeder := &database.Seeder{
		DB:    a.db,
		Store: a.store,
		Rand:  newRand(a.cfg.Tracking.Seed),
		Clock: pricing.SystemClock,
	}
	n, err := seeder.Seed(ctx)
	if err != nil {
		return err
	}
	if _, err := database.EnsureAdmin(ctx, a.db, a.cfg.Auth.AdminUsername, a.cfg.Auth.AdminPassword); err != nil {
		return err
	}
	a.log.WithFields(logger.Fields{"samples": n}).Info("demo data seeded")
	return nil
}
