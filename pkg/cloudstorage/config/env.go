package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
)

type envConfig struct {
	Port            string `env:"PORT"`
	Environment     string `env:"ENVIRONMENT"`
	PublicURL       string `env:"PUBLIC_URL"`
	ApiKeySHA256    string `env:"API_KEY_SHA256"`
	StorageURL      string `env:"STORAGE_URL"`
	AccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
	Region          string `env:"AWS_REGION"`
	LocalAccessKey  string `env:"LOCAL_ACCESS_KEY_ID"`
	LocalSecretKey  string `env:"LOCAL_SECRET_ACCESS_KEY"`
}

// WithEnv applies environment variable overrides.
//
//	PORT, ENVIRONMENT, PUBLIC_URL, API_KEY_SHA256 - server settings
//	AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY, AWS_REGION - s3 and minio credentials
//	LOCAL_ACCESS_KEY_ID, LOCAL_SECRET_ACCESS_KEY - keys of the memory and fs drivers
//	STORAGE_URL - the default driver, one of:
//	  memory://                                  in-memory, served under /storage
//	  file:///path/to/data                       filesystem, served under /storage
//	  s3://us-west-2?endpoint=...&path_style=1   Amazon S3 or an S3 compatible service
//	  minio://localhost:9000?secure=false        MinIO
func WithEnv() Option {
	return func(c *Config) error {
		var env envConfig
		if err := cleanenv.ReadEnv(&env); err != nil {
			return fmt.Errorf("failed to read environment: %w", err)
		}

		if env.Port != "" {
			c.Port = env.Port
		}
		if env.Environment != "" {
			c.Environment = env.Environment
		}
		if env.PublicURL != "" {
			c.PublicURL = env.PublicURL
		}
		if env.ApiKeySHA256 != "" {
			c.ApiKeySHA256 = env.ApiKeySHA256
		}
		return applyStorageEnv(env, c)
	}
}

// applyStorageEnv selects the default driver from STORAGE_URL
func applyStorageEnv(env envConfig, c *Config) error {
	raw := env.StorageURL

	// AWS_* credentials belong to s3 and minio only.
	local := map[string]interface{}{}
	if env.LocalAccessKey != "" {
		local["access_key_id"] = env.LocalAccessKey
	}
	if env.LocalSecretKey != "" {
		local["secret_access_key"] = env.LocalSecretKey
	}

	credentials := map[string]interface{}{
		"access_key_id":     env.AccessKeyID,
		"secret_access_key": env.SecretAccessKey,
	}
	if env.Region != "" {
		credentials["region"] = env.Region
	}

	switch {
	case raw == "" || raw == "memory" || raw == "memory://":
		return setDefault(c, DriverConfig{Name: TypeMemory, Type: TypeMemory, Config: local})

	case strings.HasPrefix(raw, "file://"):
		path := strings.TrimPrefix(raw, "file://")
		if path == "" {
			return fmt.Errorf("filesystem path cannot be empty in STORAGE_URL")
		}
		local["base_dir"] = path
		return setDefault(c, DriverConfig{Name: TypeFS, Type: TypeFS, Config: local})

	case strings.HasPrefix(raw, "s3://"):
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("invalid STORAGE_URL: %w", err)
		}
		q := u.Query()
		if u.Host != "" {
			credentials["region"] = u.Host
		}
		if region := q.Get("region"); region != "" {
			credentials["region"] = region
		}
		credentials["endpoint"] = q.Get("endpoint")
		if err := boolParam(q, "path_style", "use_path_style", credentials); err != nil {
			return err
		}
		if err := boolParam(q, "secure", "use_ssl", credentials); err != nil {
			return err
		}
		return setDefault(c, DriverConfig{Name: TypeS3, Type: TypeS3, Config: credentials})

	case strings.HasPrefix(raw, "minio://"):
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("invalid STORAGE_URL: %w", err)
		}
		if u.Host == "" {
			return fmt.Errorf("minio endpoint cannot be empty in STORAGE_URL")
		}
		q := u.Query()
		credentials["endpoint"] = u.Host
		if region := q.Get("region"); region != "" {
			credentials["region"] = region
		}
		if err := boolParam(q, "secure", "use_ssl", credentials); err != nil {
			return err
		}
		return setDefault(c, DriverConfig{Name: TypeMinio, Type: TypeMinio, Config: credentials})
	}

	return fmt.Errorf("unsupported STORAGE_URL format: %s (use 'memory://', 'file://...', 's3://...' or 'minio://...')", raw)
}

func boolParam(q url.Values, param, key string, config map[string]interface{}) error {
	raw := q.Get(param)
	if raw == "" {
		return nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return fmt.Errorf("invalid boolean for %s in STORAGE_URL: %w", param, err)
	}
	config[key] = b
	return nil
}

func setDefault(c *Config, driver DriverConfig) error {
	c.DefaultDriver = driver.Name
	c.Drivers = upsertDriver(c.Drivers, driver)
	return nil
}
