package utils

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"go-marketplace/models"
	"go-marketplace/pricing"
)

// Config holds every setting the server reads from the environment.
type Config struct {
	Port          string
	Env           string
	MongoURI      string
	MongoDB       string
	Store         string
	JWTSecret     []byte
	Pricing       pricing.Config
	Coupons       pricing.Coupons
	AllowBackward bool
	MailProvider  string
	PostmarkToken string
	SendgridKey   string
	EmailSender   string
}

// LoadConfig loads .env (if present) and reads the environment.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()
	return ConfigFromEnv(os.Getenv)
}

// ConfigFromEnv builds a Config from getenv.
func ConfigFromEnv(getenv func(string) string) (*Config, error) {
	get := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}
	money := func(key, def string) (models.Money, error) {
		m, err := models.ParseMoney(get(key, def))
		if err != nil {
			return 0, fmt.Errorf("%s: %w", key, err)
		}
		return m, nil
	}

	cfg := &Config{
		Port:          get("PORT", "8000"),
		Env:           get("APP_ENV", "production"),
		MongoURI:      get("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:       get("MONGO_DB", "marketplace"),
		Store:         strings.ToLower(get("STORE", "mongo")),
		JWTSecret:     []byte(getenv("JWT_SECRET")),
		MailProvider:  strings.ToLower(get("MAIL_PROVIDER", "none")),
		PostmarkToken: getenv("POSTMARK_API_TOKEN"),
		SendgridKey:   getenv("SENDGRID_API_KEY"),
		EmailSender:   getenv("EMAIL_SENDER"),
	}

	var err error
	if cfg.Pricing.DeliveryThreshold, err = money("DELIVERY_THRESHOLD", "999"); err != nil {
		return nil, err
	}
	if cfg.Pricing.DeliveryFee, err = money("DELIVERY_FEE", "49"); err != nil {
		return nil, err
	}
	if cfg.Pricing.CODSurcharge, err = money("COD_SURCHARGE", "40"); err != nil {
		return nil, err
	}
	if cfg.Coupons, err = pricing.ParseCoupons(get("COUPONS", "SAVE10:percent:10,FLAT100:flat:100")); err != nil {
		return nil, fmt.Errorf("COUPONS: %w", err)
	}
	if cfg.AllowBackward, err = strconv.ParseBool(get("ALLOW_BACKWARD_STATUS", "false")); err != nil {
		return nil, fmt.Errorf("ALLOW_BACKWARD_STATUS: %w", err)
	}

	if len(cfg.JWTSecret) == 0 {
		return nil, fmt.Errorf("JWT_SECRET is not set")
	}
	switch cfg.Store {
	case "mongo", "memory":
	default:
		return nil, fmt.Errorf("STORE must be mongo or memory, got %q", cfg.Store)
	}
	return cfg, nil
}
