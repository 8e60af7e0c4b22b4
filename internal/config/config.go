package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration (env + Viper).
type Config struct {
	Env                 string
	Port                string
	SessionSecret       string
	DatabaseURL         string
	RedisURL            string
	SupabaseURL         string // e.g. https://xyz.supabase.co — storage collaborator for listing images / chat attachments
	SupabaseSecretKey   string // must be the service_role key, not the anon key
	ListingImagesBucket string
	FrontendURLEndsWith string
	DevPassword         string
	AllowCrossSiteDev   bool
	BrevoAPIKey         string // BREVO_API_KEY for unread-message digest emails
	MailFrom            string // MAIL_FROM sender email (default noreply@souq.app)
	UnreadDigestAfter   time.Duration
	UnreadDigestEvery   time.Duration
}

// Load loads config from env and optional .env file.
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	_ = viper.ReadInConfig()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	port := viper.GetString("PORT")
	if port == "" {
		port = "8080"
	}
	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	dbURL := viper.GetString("DATABASE_URL_DEV")
	if env == "production" {
		dbURL = viper.GetString("DATABASE_URL_PROD")
	} else if env == "test" {
		dbURL = viper.GetString("DATABASE_URL_TEST")
	}
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL_DEV")
	}

	bucket := viper.GetString("LISTING_IMAGES_BUCKET")
	if bucket == "" {
		bucket = "listing-images"
	}

	return &Config{
		Env:                 env,
		Port:                port,
		SessionSecret:       viper.GetString("SESSION_SECRET"),
		DatabaseURL:         dbURL,
		RedisURL:            viper.GetString("REDIS_URL"),
		SupabaseURL:         viper.GetString("SUPABASE_URL"),
		SupabaseSecretKey:   viper.GetString("SUPABASE_SECRET_KEY"),
		ListingImagesBucket: bucket,
		FrontendURLEndsWith: viper.GetString("FRONTEND_URL_ENDS_WITH"),
		DevPassword:         viper.GetString("DEV_PASSWORD"),
		AllowCrossSiteDev:   strings.EqualFold(viper.GetString("ALLOW_CROSS_SITE_DEV"), "true"),
		BrevoAPIKey:         viper.GetString("BREVO_API_KEY"),
		MailFrom:            viper.GetString("MAIL_FROM"),
		UnreadDigestAfter:   minutesOr("UNREAD_DIGEST_AFTER", 15),
		UnreadDigestEvery:   minutesOr("UNREAD_DIGEST_EVERY", 10),
	}, nil
}

func minutesOr(key string, fallback int) time.Duration {
	n := viper.GetInt(key)
	if n <= 0 {
		n = fallback
	}
	return time.Duration(n) * time.Minute
}
