package config

import (
	"fmt"
)

// WithPort sets the server port
func WithPort(port string) Option {
	return func(c *Config) error {
		if port == "" {
			return fmt.Errorf("port cannot be empty")
		}
		c.Port = port
		return nil
	}
}

// WithPublicURL sets the externally reachable base URL of the server
func WithPublicURL(publicURL string) Option {
	return func(c *Config) error {
		if publicURL == "" {
			return fmt.Errorf("public url cannot be empty")
		}
		c.PublicURL = publicURL
		return nil
	}
}

// WithDefaultDriver sets the driver used when a request names none
func WithDefaultDriver(name string) Option {
	return func(c *Config) error {
		if name == "" {
			return fmt.Errorf("default driver name cannot be empty")
		}
		c.DefaultDriver = name
		return nil
	}
}

// WithMemoryDriver adds an in-memory driver served by the presigned handlers.
// If name is empty, defaults to "memory"
func WithMemoryDriver(name, accessKey, secretKey string) Option {
	return func(c *Config) error {
		if name == "" {
			name = TypeMemory
		}
		c.Drivers = upsertDriver(c.Drivers, DriverConfig{
			Name: name,
			Type: TypeMemory,
			Config: map[string]interface{}{
				"access_key_id":     accessKey,
				"secret_access_key": secretKey,
			},
		})
		return nil
	}
}

// WithFilesystemDriver adds a filesystem driver served by the presigned handlers.
// If name is empty, defaults to "fs"
func WithFilesystemDriver(name, baseDir, accessKey, secretKey string) Option {
	return func(c *Config) error {
		if name == "" {
			name = TypeFS
		}
		if baseDir == "" {
			return fmt.Errorf("filesystem base directory cannot be empty")
		}
		c.Drivers = upsertDriver(c.Drivers, DriverConfig{
			Name: name,
			Type: TypeFS,
			Config: map[string]interface{}{
				"base_dir":          baseDir,
				"access_key_id":     accessKey,
				"secret_access_key": secretKey,
			},
		})
		return nil
	}
}

// S3Options configures an S3 driver
type S3Options struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string
	UseSSL          bool
	UsePathStyle    bool
}

// WithS3Driver adds an S3 driver. If name is empty, defaults to "s3"
func WithS3Driver(name string, opts S3Options) Option {
	return func(c *Config) error {
		if name == "" {
			name = TypeS3
		}
		if opts.Region == "" {
			opts.Region = "us-east-1"
		}
		c.Drivers = upsertDriver(c.Drivers, DriverConfig{
			Name: name,
			Type: TypeS3,
			Config: map[string]interface{}{
				"region":            opts.Region,
				"access_key_id":     opts.AccessKeyID,
				"secret_access_key": opts.SecretAccessKey,
				"endpoint":          opts.Endpoint,
				"use_ssl":           opts.UseSSL,
				"use_path_style":    opts.UsePathStyle,
			},
		})
		return nil
	}
}

// MinioOptions configures a MinIO driver
type MinioOptions struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	UseSSL          bool
}

// WithMinioDriver adds a MinIO driver. If name is empty, defaults to "minio"
func WithMinioDriver(name string, opts MinioOptions) Option {
	return func(c *Config) error {
		if name == "" {
			name = TypeMinio
		}
		if opts.Endpoint == "" {
			return fmt.Errorf("minio endpoint cannot be empty")
		}
		c.Drivers = upsertDriver(c.Drivers, DriverConfig{
			Name: name,
			Type: TypeMinio,
			Config: map[string]interface{}{
				"endpoint":          opts.Endpoint,
				"access_key_id":     opts.AccessKeyID,
				"secret_access_key": opts.SecretAccessKey,
				"region":            opts.Region,
				"use_ssl":           opts.UseSSL,
			},
		})
		return nil
	}
}

func upsertDriver(drivers []DriverConfig, driver DriverConfig) []DriverConfig {
	if driver.Config == nil {
		driver.Config = map[string]interface{}{}
	}
	for i := range drivers {
		if drivers[i].Name == driver.Name {
			drivers[i] = driver
			return drivers
		}
	}
	return append(drivers, driver)
}
