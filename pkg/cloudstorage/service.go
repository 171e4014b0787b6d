package cloudstorage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// Service routes calls to the registered drivers and resolves the target
// container or blob before any descriptor is signed.
type Service interface {
	RegisterDriver(name string, driver Driver)
	GetDriver(name string) (Driver, error)
	Drivers() []string
	DefaultDriver() string

	ValidateCredentials(ctx context.Context, driver string) error
	GenerateUploadURL(ctx context.Context, req UploadURLRequest) (*FormPost, error)
	GenerateDownloadURL(ctx context.Context, req DownloadURLRequest) (string, error)

	// PurgeContainers deletes every container whose name starts with prefix,
	// emptying it first. It returns the number of containers removed.
	PurgeContainers(ctx context.Context, driver, prefix string) (int, error)
}

type service struct {
	mu            sync.RWMutex
	drivers       map[string]Driver
	defaultDriver string
	logger        *slog.Logger
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithDriver registers a driver under name
func WithDriver(name string, driver Driver) Option {
	return func(s *service) {
		s.drivers[name] = driver
	}
}

// WithDefaultDriver selects the driver used when a request leaves Driver empty
func WithDefaultDriver(name string) Option {
	return func(s *service) {
		s.defaultDriver = name
	}
}

// WithLogger sets the structured logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a Service. When exactly one driver is registered it becomes the default.
func New(options ...Option) (Service, error) {
	s := &service{
		drivers: make(map[string]Driver),
		logger:  slog.Default(),
	}
	for _, option := range options {
		option(s)
	}

	if len(s.drivers) == 0 {
		return nil, errors.New("at least one driver is required")
	}
	if s.defaultDriver == "" && len(s.drivers) == 1 {
		for name := range s.drivers {
			s.defaultDriver = name
		}
	}
	if _, ok := s.drivers[s.defaultDriver]; !ok {
		return nil, fmt.Errorf("default driver %q is not registered", s.defaultDriver)
	}
	return s, nil
}

func (s *service) RegisterDriver(name string, driver Driver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drivers[name] = driver
}

func (s *service) GetDriver(name string) (Driver, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if name == "" {
		name = s.defaultDriver
	}
	driver, ok := s.drivers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDriverNotFound, name)
	}
	return driver, nil
}

func (s *service) Drivers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.drivers))
	for name := range s.drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *service) DefaultDriver() string {
	return s.defaultDriver
}

func (s *service) ValidateCredentials(ctx context.Context, name string) error {
	driver, err := s.GetDriver(name)
	if err != nil {
		return err
	}
	if err := driver.ValidateCredentials(ctx); err != nil {
		s.logger.Warn("Credential validation failed", "driver", driver.Name(), "error", err)
		return err
	}
	return nil
}

func (s *service) GenerateUploadURL(ctx context.Context, req UploadURLRequest) (*FormPost, error) {
	driver, err := s.GetDriver(req.Driver)
	if err != nil {
		return nil, err
	}
	if err := ValidateBlobName(req.BlobName); err != nil {
		return nil, err
	}
	if _, err := driver.GetContainer(ctx, req.Container); err != nil {
		return nil, err
	}

	post, err := driver.GenerateContainerUploadURL(ctx, req.Container, req.BlobName, req.Options)
	if err != nil {
		s.logger.Error("Failed to generate upload URL", "driver", driver.Name(),
			"container", req.Container, "blob", req.BlobName, "error", err)
		return nil, err
	}
	s.logger.Debug("Generated upload URL", "driver", driver.Name(),
		"container", req.Container, "blob", req.BlobName, "expires_at", post.Expiration)
	return post, nil
}

func (s *service) GenerateDownloadURL(ctx context.Context, req DownloadURLRequest) (string, error) {
	driver, err := s.GetDriver(req.Driver)
	if err != nil {
		return "", err
	}
	if _, err := driver.GetBlob(ctx, req.Container, req.BlobName); err != nil {
		return "", err
	}

	url, err := driver.GenerateBlobDownloadURL(ctx, req.Container, req.BlobName, req.Options)
	if err != nil {
		s.logger.Error("Failed to generate download URL", "driver", driver.Name(),
			"container", req.Container, "blob", req.BlobName, "error", err)
		return "", err
	}
	s.logger.Debug("Generated download URL", "driver", driver.Name(),
		"container", req.Container, "blob", req.BlobName)
	return url, nil
}

func (s *service) PurgeContainers(ctx context.Context, name, prefix string) (int, error) {
	driver, err := s.GetDriver(name)
	if err != nil {
		return 0, err
	}
	containers, err := driver.ListContainers(ctx)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, container := range containers {
		if !strings.HasPrefix(container.Name, prefix) {
			continue
		}
		blobs, err := driver.ListBlobs(ctx, container.Name, "")
		if err != nil {
			return removed, err
		}
		for _, blob := range blobs {
			if err := driver.DeleteBlob(ctx, container.Name, blob.Name); err != nil && !errors.Is(err, ErrNotFound) {
				return removed, err
			}
		}
		if err := driver.DeleteContainer(ctx, container.Name); err != nil && !errors.Is(err, ErrNotFound) {
			return removed, err
		}
		removed++
		s.logger.Info("Purged container", "driver", driver.Name(), "container", container.Name, "blobs", len(blobs))
	}
	return removed, nil
}
