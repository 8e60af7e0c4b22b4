package main

import (
	"context"
	"fmt"

	"souq-backend/internal/app"
	"souq-backend/internal/config"
	"souq-backend/internal/database"
	"souq-backend/internal/emails"
	"souq-backend/internal/notifier"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("config load: " + err.Error())
	}
	fiberApp, db, rdb, err := app.CreateApp(cfg)
	if err != nil {
		panic("app create: " + err.Error())
	}

	if db != nil {
		sqlDB, err := db.DB()
		if err != nil {
			panic("postgres: get DB: " + err.Error())
		}
		if err := sqlDB.Ping(); err != nil {
			panic("postgres connection failed: " + err.Error())
		}
		if err := database.AutoMigrate(db); err != nil {
			panic("migrate: " + err.Error())
		}
		fmt.Println("Postgres connected")
	}
	if rdb != nil {
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			panic("Redis connection failed: " + err.Error())
		}
		fmt.Println("Redis connected")
	}

	// Unread-message digest sweep, long-running deployments only.
	if db != nil {
		digest := &notifier.Service{
			DB:     db,
			Emails: &emails.BrevoClient{APIKey: cfg.BrevoAPIKey, MailFrom: cfg.MailFrom},
			After:  cfg.UnreadDigestAfter,
			Every:  cfg.UnreadDigestEvery,
		}
		go digest.Run(context.Background())
	}

	port := cfg.Port
	if port == "" {
		port = "8888"
	}
	fmt.Printf("Server running at http://localhost:%s\n", port)
	fmt.Printf("Health check: http://localhost:%s/health/json\n", port)
	fmt.Println("---")

	if err := fiberApp.Listen(":" + port); err != nil {
		panic(err)
	}
}
