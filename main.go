package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AleksanderGPL/pao/handlers"
	"github.com/AleksanderGPL/pao/models"
	"github.com/AleksanderGPL/pao/realtime"
	"github.com/AleksanderGPL/pao/services"
	"github.com/AleksanderGPL/pao/utils"
	"github.com/AleksanderGPL/pao/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.UserSession{},
		&models.Game{},
		&models.Player{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	natsURL := os.Getenv("NATS_URL")
	if natsURL == "" {
		natsURL = nats.DefaultURL
	}
	nc, err := nats.Connect(natsURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		log.Fatal("failed to connect to NATS:", err)
	}
	defer nc.Close()

	if err := utils.InitS3(); err != nil {
		log.Printf("⚠️  Object storage disabled: %v", err)
	}

	authService := services.NewAuthService(db)
	eventService := services.NewEventService(nc)
	gameService := services.NewGameService(db, eventService)

	registry := realtime.NewRegistry()
	relay := realtime.NewRelay(nc, registry)
	if err := relay.Start(); err != nil {
		log.Fatal("failed to start event relay:", err)
	}
	defer relay.Stop()

	workers.StartReaper(db)

	app := fiber.New(fiber.Config{
		BodyLimit: 20 * 1024 * 1024, // kill photos
	})

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		allowedOrigins = "http://localhost:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: allowedOrigins,
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	handlers.SetupAuthRoutes(app, authService)
	handlers.SetupGameRoutes(app, authService, gameService)
	handlers.SetupWebsocketRoutes(app, authService, gameService, registry)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8000"
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := app.Listen(":" + port); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Server running on http://localhost:%s", port)
	log.Printf("✅ Event relay subscribed on %s", natsURL)

	<-ctx.Done()
	log.Println("Shutting down server...")
	_ = app.Shutdown()
}
