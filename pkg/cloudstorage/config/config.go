package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/tendant/simple-cloudstorage/pkg/cloudstorage"
	"github.com/tendant/simple-cloudstorage/pkg/cloudstorage/signing"
	fsstorage "github.com/tendant/simple-cloudstorage/pkg/cloudstorage/storage/fs"
	"github.com/tendant/simple-cloudstorage/pkg/cloudstorage/storage/local"
	memorystorage "github.com/tendant/simple-cloudstorage/pkg/cloudstorage/storage/memory"
	miniostorage "github.com/tendant/simple-cloudstorage/pkg/cloudstorage/storage/minio"
	s3storage "github.com/tendant/simple-cloudstorage/pkg/cloudstorage/storage/s3"
)

// StoragePath is where cmd/server mounts the presigned handlers of the
// memory and fs drivers.
const StoragePath = "/storage"

// Driver types
const (
	TypeMemory = "memory"
	TypeFS     = "fs"
	TypeS3     = "s3"
	TypeMinio  = "minio"
)

// Option applies configuration to a Config instance.
type Option func(*Config) error

// Load constructs a Config by applying the supplied options on top of library defaults.
func Load(opts ...Option) (*Config, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() Config {
	return Config{
		Port:          "8080",
		Environment:   "development",
		PublicURL:     "http://localhost:8080",
		DefaultDriver: TypeMemory,
		Drivers: []DriverConfig{
			{
				Name:   TypeMemory,
				Type:   TypeMemory,
				Config: map[string]interface{}{},
			},
		},
	}
}

// Config represents the configuration of the storage service and server
type Config struct {
	Port        string
	Environment string // development, production, testing

	// PublicURL is the externally reachable base URL of cmd/server. Memory
	// and fs drivers sign descriptors for PublicURL + StoragePath.
	PublicURL string

	// ApiKeySHA256 protects the JSON API. Empty disables the check.
	ApiKeySHA256 string

	DefaultDriver string
	Drivers       []DriverConfig
}

// DriverConfig represents configuration for one named driver
type DriverConfig struct {
	Name   string
	Type   string // "memory", "fs", "s3", "minio"
	Config map[string]interface{}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}
	if len(c.Drivers) == 0 {
		return errors.New("at least one driver is required")
	}

	found := false
	seen := make(map[string]bool, len(c.Drivers))
	for _, d := range c.Drivers {
		if d.Name == "" {
			return errors.New("driver name is required")
		}
		if seen[d.Name] {
			return fmt.Errorf("driver %q configured twice", d.Name)
		}
		seen[d.Name] = true

		switch d.Type {
		case TypeMemory, TypeFS:
			if !strings.HasPrefix(c.PublicURL, "http://") && !strings.HasPrefix(c.PublicURL, "https://") {
				return fmt.Errorf("public url %q must be an absolute http(s) URL for driver %q", c.PublicURL, d.Name)
			}
		case TypeS3:
		case TypeMinio:
			if getString(d.Config, "endpoint", "") == "" {
				return fmt.Errorf("endpoint is required for minio driver %q", d.Name)
			}
		default:
			return fmt.Errorf("unsupported driver type: %s", d.Type)
		}
		if d.Name == c.DefaultDriver {
			found = true
		}
	}
	if !found {
		return fmt.Errorf("default driver '%s' not found in configured drivers", c.DefaultDriver)
	}
	return nil
}

// LocalEndpoint is the URL the presigned handlers are reachable at.
func (c *Config) LocalEndpoint() string {
	return strings.TrimSuffix(c.PublicURL, "/") + StoragePath
}

// BuildService creates a Service with every configured driver registered
// under its name.
func (c *Config) BuildService(logger *slog.Logger) (cloudstorage.Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	options := []cloudstorage.Option{
		cloudstorage.WithDefaultDriver(c.DefaultDriver),
		cloudstorage.WithLogger(logger),
	}
	for _, dc := range c.Drivers {
		driver, err := c.buildDriver(dc, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to build driver %s: %w", dc.Name, err)
		}
		options = append(options, cloudstorage.WithDriver(dc.Name, driver))
	}
	return cloudstorage.New(options...)
}

// buildDriver creates a Driver based on the driver configuration
func (c *Config) buildDriver(dc DriverConfig, logger *slog.Logger) (cloudstorage.Driver, error) {
	switch dc.Type {
	case TypeMemory:
		return c.buildLocal(dc, memorystorage.New(), logger)

	case TypeFS:
		store, err := fsstorage.New(fsstorage.Config{
			BaseDir: getString(dc.Config, "base_dir", "./data/storage"),
		})
		if err != nil {
			return nil, err
		}
		return c.buildLocal(dc, store, logger)

	case TypeS3:
		return s3storage.New(s3storage.Config{
			Region:          getString(dc.Config, "region", "us-east-1"),
			AccessKeyID:     getString(dc.Config, "access_key_id", ""),
			SecretAccessKey: getString(dc.Config, "secret_access_key", ""),
			Endpoint:        getString(dc.Config, "endpoint", ""),
			UseSSL:          getBool(dc.Config, "use_ssl", true),
			UsePathStyle:    getBool(dc.Config, "use_path_style", false),
			Logger:          logger,
		})

	case TypeMinio:
		return miniostorage.New(miniostorage.Config{
			Endpoint:        getString(dc.Config, "endpoint", ""),
			AccessKeyID:     getString(dc.Config, "access_key_id", ""),
			SecretAccessKey: getString(dc.Config, "secret_access_key", ""),
			Region:          getString(dc.Config, "region", "us-east-1"),
			UseSSL:          getBool(dc.Config, "use_ssl", false),
			Logger:          logger,
		})

	default:
		return nil, fmt.Errorf("unsupported driver type: %s", dc.Type)
	}
}

func (c *Config) buildLocal(dc DriverConfig, store cloudstorage.ObjectStore, logger *slog.Logger) (cloudstorage.Driver, error) {
	return local.New(local.Config{
		Store:    store,
		Endpoint: c.LocalEndpoint() + "/" + dc.Name,
		Credentials: signing.Credentials{
			Key:    getString(dc.Config, "access_key_id", "local-access-key"),
			Secret: getString(dc.Config, "secret_access_key", "local-secret-key"),
			Region: getString(dc.Config, "region", "local"),
		},
		Logger: logger,
	})
}

func getString(config map[string]interface{}, key string, defaultValue string) string {
	if value, exists := config[key]; exists {
		if str, ok := value.(string); ok && str != "" {
			return str
		}
	}
	return defaultValue
}

func getBool(config map[string]interface{}, key string, defaultValue bool) bool {
	if value, exists := config[key]; exists {
		if b, ok := value.(bool); ok {
			return b
		}
		if str, ok := value.(string); ok {
			if b, err := strconv.ParseBool(str); err == nil {
				return b
			}
		}
	}
	return defaultValue
}
