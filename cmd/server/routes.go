package main

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/tendant/chi-demo/middleware"

	"github.com/tendant/simple-cloudstorage/internal/api"
	"github.com/tendant/simple-cloudstorage/pkg/cloudstorage"
	"github.com/tendant/simple-cloudstorage/pkg/cloudstorage/config"
	"github.com/tendant/simple-cloudstorage/pkg/cloudstorage/presigned"
)

// Routes mounts the JSON API under /api/v1 and the presigned endpoints of
// every locally served driver under config.StoragePath/{driver}.
func Routes(r chi.Router, cfg *config.Config, svc cloudstorage.Service, logger *slog.Logger) error {
	storageHandler := api.NewStorageHandler(svc, logger)

	useAPIKey := func(chi.Router) {}
	if cfg.ApiKeySHA256 != "" {
		apiKeyMiddleware, err := middleware.ApiKeyMiddleware(middleware.ApiKeyConfig{
			APIKeys: map[string]string{
				"key1": cfg.ApiKeySHA256,
			},
		})
		if err != nil {
			return err
		}
		useAPIKey = func(r chi.Router) {
			r.Use(apiKeyMiddleware)
		}
	}

	r.Route("/api/v1", func(r chi.Router) {
		useAPIKey(r)
		r.Mount("/", storageHandler.Routes())
	})

	for _, name := range svc.Drivers() {
		driver, err := svc.GetDriver(name)
		if err != nil {
			return err
		}
		backend, ok := driver.(presigned.Backend)
		if !ok {
			continue
		}
		handlers := presigned.ForBackend(backend, presigned.WithLogger(logger))
		r.Route(config.StoragePath+"/"+name, handlers.Mount)
		logger.Info("Serving presigned endpoint", "driver", name, "path", config.StoragePath+"/"+name)
	}
	return nil
}
