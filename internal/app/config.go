package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ashbolt/coursebot/core/bootstrap"
	coreconfig "github.com/ashbolt/coursebot/core/config"
	coredatabase "github.com/ashbolt/coursebot/core/database"
	"github.com/ashbolt/coursebot/internal/course"
)

var validate = validator.New()

// CourseConfig holds the opaque values rendered by the course flow.
type CourseConfig struct {
	BotTitle       string `yaml:"bot_title" envconfig:"BOT_TITLE"`
	BotUsername    string `yaml:"bot_username" envconfig:"BOT_USERNAME"`
	PaymentID      string `yaml:"payment_id" envconfig:"UPI_ID" validate:"required"`
	QRImageURL     string `yaml:"qr_image_url" envconfig:"QR_IMAGE_URL"`
	PromoImageURL  string `yaml:"promo_image_url" envconfig:"PROMO_IMAGE_URL"`
	SupportContact string `yaml:"support_contact" envconfig:"SUPPORT_CONTACT" validate:"max=64"`
}

// Settings converts the config into flow settings.
func (c CourseConfig) Settings() course.Settings {
	return course.Settings{
		BotTitle:       c.BotTitle,
		BotUsername:    c.BotUsername,
		PaymentID:      c.PaymentID,
		QRImageURL:     c.QRImageURL,
		PromoImageURL:  c.PromoImageURL,
		SupportContact: c.SupportContact,
	}
}

// StoreConfig selects and tunes the participant state backend.
type StoreConfig struct {
	Backend   string `yaml:"backend" envconfig:"STORE_BACKEND" validate:"oneof=memory badger postgres"`
	BadgerDir string `yaml:"badger_dir" envconfig:"STORE_BADGER_DIR"`
	// IdleTTL evicts participants untouched for this long; 0 keeps them forever.
	IdleTTL       time.Duration `yaml:"idle_ttl" envconfig:"STORE_IDLE_TTL"`
	SweepInterval time.Duration `yaml:"sweep_interval" envconfig:"STORE_SWEEP_INTERVAL"`
}

// Config is the full application configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Course   CourseConfig        `yaml:"course"`
	Store    StoreConfig         `yaml:"store"`
	Database coredatabase.Config `yaml:"database"`
}

// CoreConfig exposes the embedded core configuration.
func (c *Config) CoreConfig() *coreconfig.Config {
	return &c.Config
}

// LoadConfig reads path, overlays env and validates the result.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.LoadInto(path, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize applies defaults and validates everything beyond the core config.
func (c *Config) Normalize() error {
	if err := coreconfig.Normalize(&c.Config); err != nil {
		return err
	}

	c.Store.Backend = strings.ToLower(strings.TrimSpace(c.Store.Backend))
	if c.Store.Backend == "" {
		c.Store.Backend = bootstrap.BackendMemory
	}
	if c.Store.Backend == bootstrap.BackendBadger && strings.TrimSpace(c.Store.BadgerDir) == "" {
		c.Store.BadgerDir = "data/state"
	}
	if c.Store.IdleTTL < 0 || c.Store.SweepInterval < 0 {
		return fmt.Errorf("store.idle_ttl and store.sweep_interval must be >= 0")
	}
	if c.Store.Backend == bootstrap.BackendPostgres {
		if c.Database.Host == "" || c.Database.Name == "" {
			return fmt.Errorf("database.host and database.name are required for the postgres backend")
		}
		if c.Database.Port == "" {
			c.Database.Port = "5432"
		}
	}

	if err := validate.Struct(c.Course); err != nil {
		return fmt.Errorf("invalid course config: %w", err)
	}
	if err := validate.Struct(c.Store); err != nil {
		return fmt.Errorf("invalid store config: %w", err)
	}
	return nil
}
