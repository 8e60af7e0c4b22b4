// Package app builds the Fiber application: global middleware, database and
// Redis connections, and every route group.
package app

import (
	"net/http"

	"souq-backend/internal/auth"
	"souq-backend/internal/categories"
	"souq-backend/internal/chat"
	"souq-backend/internal/config"
	"souq-backend/internal/database"
	"souq-backend/internal/listings"
	"souq-backend/internal/middleware"
	"souq-backend/internal/packages"
	"souq-backend/internal/pkg/response"
	"souq-backend/internal/uploads"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// CreateApp builds the Fiber app with all global middleware and route
// registration. The DB and Redis clients are returned so entrypoints can ping
// them and background jobs can share them.
func CreateApp(cfg *config.Config) (*fiber.App, *gorm.DB, *redis.Client, error) {
	app := fiber.New(fiber.Config{
		DisableStartupMessage:   true,
		ErrorHandler:            middleware.ErrorHandler,
		EnableTrustedProxyCheck: true,
	})

	// CORS (before session)
	app.Use(middleware.CORS(middleware.CORSConfig{
		AllowedSuffix: cfg.FrontendURLEndsWith,
		DevPassword:   cfg.DevPassword,
	}))

	// Session (Redis)
	sessionCfg := middleware.SessionConfig{
		Secret:            cfg.SessionSecret,
		RedisURL:          cfg.RedisURL,
		AllowCrossSiteDev: cfg.AllowCrossSiteDev,
		IsProduction:      cfg.Env == "production",
	}
	sessionHandler, rdb, err := middleware.Session(sessionCfg)
	if err != nil {
		return nil, nil, nil, err
	}
	app.Use(sessionHandler)

	// Response formatter, tracing, route logger
	app.Use(middleware.ResponseFormatter())
	app.Use(middleware.Tracing())
	app.Use(middleware.RouteLogger())

	app.Get("/health/json", func(c *fiber.Ctx) error {
		return response.Success(c, "OK", fiber.Map{"env": cfg.Env}, nil)
	})

	var db *gorm.DB
	if cfg.DatabaseURL != "" {
		db, err = database.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, err
		}
	}

	// Auth (no auth middleware): POST login, GET me, DELETE logout
	var userFinder auth.UserFinder
	if db != nil {
		userFinder = &auth.GormUserFinder{DB: db}
	}
	authHandlers := &auth.Handlers{
		UserFinder: userFinder,
		Rdb:        rdb,
		Config:     sessionCfg,
	}
	authGroup := app.Group("/api/v1/auth")
	authGroup.Post("/login", authHandlers.Login)
	authGroup.Get("/me", authHandlers.Me)
	authGroup.Delete("/logout", authHandlers.Logout)

	if db != nil && rdb != nil {
		// Categories (public: browse tree)
		categoryService := &categories.Service{DB: db}
		categoryHandlers := &categories.Handlers{Service: categoryService}
		app.Get("/api/v1/categories/tree", categoryHandlers.Tree)

		// Listings: public browse, protected mutations
		uploadService := &uploads.Service{
			Client: &uploads.SupabaseClient{
				BaseURL:   cfg.SupabaseURL,
				SecretKey: cfg.SupabaseSecretKey,
			},
			Bucket: cfg.ListingImagesBucket,
		}
		listingService := &listings.Service{
			DB:         db,
			Categories: categoryService,
			Uploader:   uploadService,
		}
		listingHandlers := &listings.Handlers{Service: listingService}
		listingGroup := app.Group("/api/v1/listings")
		listingGroup.Get("/get-all-active-listings", listingHandlers.GetAllActiveListings)
		listingGroup.Get("/get-listing/:slug", listingHandlers.GetListingBySlug)
		listingGroup.Post("/create-listing", middleware.RequireAuth(), listingHandlers.CreateListing)
		listingGroup.Get("/get-my-listings", middleware.RequireAuth(), listingHandlers.GetMyListings)
		listingGroup.Put("/edit-listing", middleware.RequireAuth(), listingHandlers.EditListing)
		listingGroup.Post("/deactivate-listing", middleware.RequireAuth(), listingHandlers.DeactivateListing)
		listingGroup.Get("/get-listing-events/:slug", middleware.RequireAuth(), listingHandlers.GetListingEvents)

		// Packages: public catalog, protected balance operations
		packageService := &packages.Service{DB: db}
		packageHandlers := &packages.Handlers{Service: packageService}
		packageGroup := app.Group("/api/v1/packages")
		packageGroup.Get("/catalog", packageHandlers.Catalog)
		packageGroup.Get("/my-packages", middleware.RequireAuth(), packageHandlers.MyPackages)
		packageGroup.Post("/purchase", middleware.RequireAuth(), packageHandlers.Purchase)
		packageGroup.Get("/check-availability", middleware.RequireAuth(), packageHandlers.CheckAvailability)

		// Chat: REST + websocket change feed, all behind auth
		bus := &chat.RedisBus{Rdb: rdb}
		chatService := &chat.Service{DB: db, Events: bus}
		chatHandlers := &chat.Handlers{Service: chatService, Hub: chat.NewHub(bus)}
		chatGroup := app.Group("/api/v1/chat", middleware.RequireAuth())
		chatGroup.Get("/conversations", chatHandlers.Conversations)
		chatGroup.Post("/conversations", chatHandlers.StartConversation)
		chatGroup.Get("/conversations/:conversation_id/messages", chatHandlers.Messages)
		chatGroup.Post("/conversations/:conversation_id/messages", chatHandlers.SendMessage)
		chatGroup.Post("/conversations/:conversation_id/read", chatHandlers.MarkAsRead)
		chatGroup.Get("/ws", chatHandlers.WebSocket)
	}

	return app, db, rdb, nil
}

// Handler returns an http.Handler for serverless deployment.
func Handler(app *fiber.App) http.Handler {
	return adaptor.FiberApp(app)
}
