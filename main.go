package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"dietcoach/internal/api"
	"dietcoach/internal/auth"
	"dietcoach/internal/clock"
	"dietcoach/internal/coach"
	"dietcoach/internal/config"
	"dietcoach/internal/database"
	"dietcoach/internal/llm"
	"dietcoach/internal/logger"
	"dietcoach/internal/notify"
	"dietcoach/internal/reminder"
	"dietcoach/internal/state"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
)

// photos arrive as data URIs in the JSON body
const bodyLimit = 12 * 1024 * 1024

func main() {
	configFile := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatal("Failed to load config: ", err)
	}
	logger.Init(cfg.Log)

	clk, err := clock.NewSystem(cfg.Timezone)
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// sqlite always holds auth and push subscriptions
	db, err := database.Initialize(cfg.Database.Path, cfg.Database.EncryptionKey)
	if err != nil {
		log.Fatal("Failed to initialize database: ", err)
	}
	defer db.Close()

	var blobs state.Persister = database.NewSQLiteBlobs(db)
	if cfg.Storage.Driver == "redis" {
		rdb, err := database.ConnectRedis(ctx, cfg.Storage.RedisURI)
		if err != nil {
			log.Fatal("Failed to connect to redis: ", err)
		}
		defer rdb.Close()
		blobs = database.NewRedisBlobs(rdb)
	}
	logger.Info("state storage ready", "driver", cfg.Storage.Driver)

	st := state.Open(ctx, clk, blobs)

	issuer, err := auth.NewIssuer(cfg.Auth)
	if err != nil {
		log.Fatal(err)
	}

	push := notify.NewWebPush(db, notify.Options{
		PublicKey:  cfg.Push.VAPIDPublicKey,
		PrivateKey: cfg.Push.VAPIDPrivateKey,
		Subject:    cfg.Push.Subject,
		TTL:        cfg.Push.TTL,
		HTTPClient: &http.Client{Timeout: cfg.Reminders.NotifyTimeout},
		Clock:      clk,
	})
	if !push.Configured() {
		logger.Warn("web push not configured, reminders stay in the transcript only")
	}

	var model coach.ModelClient
	var images coach.ImageGenerator
	if cfg.Model.APIKey != "" {
		model = llm.NewChatClient(cfg.Model.BaseURL, cfg.Model.APIKey, cfg.Model.Name, cfg.Model.Temperature, cfg.Model.Timeout, clk)
		images = llm.NewImageClient(cfg.Model.BaseURL, cfg.Model.APIKey, cfg.Model.ImageName, cfg.Model.Timeout)
	} else {
		logger.Warn("MODEL_API_KEY not set, the coach will answer with the offline fallback")
	}
	co := coach.New(st, clk, model, images, cfg.Model.HistoryWindow)

	if cfg.Workers.Enabled {
		logger.Info("starting reminder worker", "interval", cfg.Reminders.Interval.String())
		engine := reminder.NewEngine(st, clk, push, reminder.Settings{
			Window:            cfg.Reminders.Window,
			HydrationGap:      cfg.Reminders.HydrationGap,
			HydrationCooldown: cfg.Reminders.HydrationCooldown,
			AwakeOnly:         cfg.Reminders.AwakeOnly,
			NotifyTimeout:     cfg.Reminders.NotifyTimeout,
		})
		go engine.Run(ctx, cfg.Reminders.Interval)
	} else {
		logger.Info("background workers disabled (set ENABLE_WORKERS=true to enable)")
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: api.ErrorHandler,
		BodyLimit:    bodyLimit,
	})

	app.Use(fiberlogger.New())

	allowedOrigins := strings.Join(cfg.Server.AllowedOrigins, ",")
	logger.Info("CORS configured", "origins", allowedOrigins)
	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true, // refresh cookie
	}))

	api.SetupRoutes(app, api.Deps{
		Issuer: issuer,
		Tokens: auth.NewStore(db),
		State:  st,
		Coach:  co,
		Push:   push,
	})

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			logger.Error("shutdown failed", "error", err)
		}
	}()

	logger.Info("server starting", "addr", cfg.Addr())
	if err := app.Listen(cfg.Addr()); err != nil {
		log.Fatal(err)
	}
}
