package main

import (
	"context"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/joho/godotenv"

	"chatsync/internal/config"
	"chatsync/internal/handlers"
	"chatsync/internal/relay"
	"chatsync/internal/routes"
	"chatsync/internal/store"
	"chatsync/internal/utils"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg := config.Load()
	utils.SetJWTSecret(cfg.JWTSecret)

	// Pick the storage backend: postgres when DATABASE_URL is set,
	// in-memory otherwise.
	var st *store.Store
	if cfg.DatabaseURL != "" {
		pool, err := store.Connect(context.Background(), cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer pool.Close()
		st = store.NewPostgres(pool)
		log.Println("Using postgres storage")
	} else {
		st = store.NewMemory()
		log.Println("Using in-memory storage")
	}

	// Start the websocket hub
	hub := relay.NewHub(st)
	go hub.Run()

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		AppName: "chatsync relay",
	})

	// Middleware
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSOrigins(),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	// Setup routes
	routes.SetupRoutes(app, handlers.New(st, hub))

	log.Printf("Relay starting on port %s", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatal(err)
	}
}
