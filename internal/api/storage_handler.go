package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/tendant/simple-cloudstorage/pkg/cloudstorage"
)

const metaHeaderPrefix = "X-Amz-Meta-"

// StorageHandler exposes a cloudstorage.Service as a JSON API
type StorageHandler struct {
	service cloudstorage.Service
	logger  *slog.Logger
}

// NewStorageHandler creates a new storage handler
func NewStorageHandler(service cloudstorage.Service, logger *slog.Logger) *StorageHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StorageHandler{
		service: service,
		logger:  logger,
	}
}

// Routes returns the API routes. Container routes exist twice: under
// /containers for the default driver and under /drivers/{driver}/containers.
func (h *StorageHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/drivers", h.ListDrivers)
	r.Post("/drivers/{driver}/validate", h.ValidateCredentials)
	r.Route("/drivers/{driver}/containers", h.containerRoutes)
	r.Route("/containers", h.containerRoutes)

	return r
}

func (h *StorageHandler) containerRoutes(r chi.Router) {
	r.Get("/", h.ListContainers)
	r.Post("/", h.CreateContainer)
	r.Route("/{container}", func(r chi.Router) {
		r.Get("/", h.GetContainer)
		r.Delete("/", h.DeleteContainer)
		r.Put("/cdn", h.SetCDN)
		r.Post("/upload-url", h.GenerateUploadURL)
		r.Post("/download-url", h.GenerateDownloadURL)
		r.Get("/blobs", h.ListBlobs)
		r.Put("/blobs/*", h.UploadBlob)
		r.Get("/blobs/*", h.GetBlob)
		r.Delete("/blobs/*", h.DeleteBlob)
	})
}

// DriversResponse is the response body for the driver listing
type DriversResponse struct {
	Drivers []string `json:"drivers"`
	Default string   `json:"default"`
}

// CreateContainerRequest is the request body for creating a container
type CreateContainerRequest struct {
	Name string `json:"name"`
}

// CDNRequest toggles public exposure of a container
type CDNRequest struct {
	Enabled bool `json:"enabled"`
}

// CDNResponse reports the outcome of a CDN toggle
type CDNResponse struct {
	Changed bool   `json:"changed"`
	URL     string `json:"url"`
}

// SignedURLRequest is the request body for descriptor generation. Options
// accepts the keys content_type, content_disposition, cache_control,
// meta_data, expires and content_length_range.
type SignedURLRequest struct {
	BlobName string         `json:"blob_name"`
	Options  map[string]any `json:"options"`
}

// DownloadURLResponse carries a presigned GET URL
type DownloadURLResponse struct {
	URL string `json:"url"`
}

// ErrorResponse is the body of every failed API call
type ErrorResponse struct {
	Error string `json:"error"`
}

func (h *StorageHandler) ListDrivers(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, DriversResponse{
		Drivers: h.service.Drivers(),
		Default: h.service.DefaultDriver(),
	})
}

func (h *StorageHandler) ValidateCredentials(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ValidateCredentials(r.Context(), chi.URLParam(r, "driver")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *StorageHandler) ListContainers(w http.ResponseWriter, r *http.Request) {
	driver, ok := h.driver(w, r)
	if !ok {
		return
	}
	containers, err := driver.ListContainers(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	render.JSON(w, r, containers)
}

func (h *StorageHandler) CreateContainer(w http.ResponseWriter, r *http.Request) {
	driver, ok := h.driver(w, r)
	if !ok {
		return
	}
	var req CreateContainerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, cloudstorage.NewValidationError("body", "%v", err))
		return
	}
	container, err := driver.CreateContainer(r.Context(), req.Name)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, container)
}

func (h *StorageHandler) GetContainer(w http.ResponseWriter, r *http.Request) {
	driver, ok := h.driver(w, r)
	if !ok {
		return
	}
	container, err := driver.GetContainer(r.Context(), chi.URLParam(r, "container"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	render.JSON(w, r, container)
}

func (h *StorageHandler) DeleteContainer(w http.ResponseWriter, r *http.Request) {
	driver, ok := h.driver(w, r)
	if !ok {
		return
	}
	if err := driver.DeleteContainer(r.Context(), chi.URLParam(r, "container")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *StorageHandler) SetCDN(w http.ResponseWriter, r *http.Request) {
	driver, ok := h.driver(w, r)
	if !ok {
		return
	}
	var req CDNRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, cloudstorage.NewValidationError("body", "%v", err))
		return
	}

	ctx := r.Context()
	container := chi.URLParam(r, "container")
	var changed bool
	var err error
	if req.Enabled {
		changed, err = driver.EnableContainerCDN(ctx, container)
	} else {
		changed, err = driver.DisableContainerCDN(ctx, container)
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	cdnURL, err := driver.ContainerCDNURL(ctx, container)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	render.JSON(w, r, CDNResponse{Changed: changed, URL: cdnURL})
}

func (h *StorageHandler) GenerateUploadURL(w http.ResponseWriter, r *http.Request) {
	var req SignedURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, cloudstorage.NewValidationError("body", "%v", err))
		return
	}
	opts, err := cloudstorage.ParseUploadURLOptions(req.Options)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	post, err := h.service.GenerateUploadURL(r.Context(), cloudstorage.UploadURLRequest{
		Driver:    chi.URLParam(r, "driver"),
		Container: chi.URLParam(r, "container"),
		BlobName:  req.BlobName,
		Options:   opts,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	render.JSON(w, r, post)
}

func (h *StorageHandler) GenerateDownloadURL(w http.ResponseWriter, r *http.Request) {
	var req SignedURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, cloudstorage.NewValidationError("body", "%v", err))
		return
	}
	opts, err := cloudstorage.ParseDownloadURLOptions(req.Options)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	signed, err := h.service.GenerateDownloadURL(r.Context(), cloudstorage.DownloadURLRequest{
		Driver:    chi.URLParam(r, "driver"),
		Container: chi.URLParam(r, "container"),
		BlobName:  req.BlobName,
		Options:   opts,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	render.JSON(w, r, DownloadURLResponse{URL: signed})
}

func (h *StorageHandler) ListBlobs(w http.ResponseWriter, r *http.Request) {
	driver, ok := h.driver(w, r)
	if !ok {
		return
	}
	blobs, err := driver.ListBlobs(r.Context(), chi.URLParam(r, "container"), r.URL.Query().Get("prefix"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if blobs == nil {
		blobs = []*cloudstorage.Blob{}
	}
	render.JSON(w, r, blobs)
}

// UploadBlob stores the request body. Attributes come from the
// Content-Type, Content-Disposition, Cache-Control and X-Amz-Meta-* headers.
func (h *StorageHandler) UploadBlob(w http.ResponseWriter, r *http.Request) {
	driver, ok := h.driver(w, r)
	if !ok {
		return
	}
	name, err := blobName(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	attrs := cloudstorage.BlobAttributes{
		ContentType:        r.Header.Get("Content-Type"),
		ContentDisposition: r.Header.Get("Content-Disposition"),
		CacheControl:       r.Header.Get("Cache-Control"),
	}
	for key, values := range r.Header {
		if !strings.HasPrefix(key, metaHeaderPrefix) || len(values) == 0 {
			continue
		}
		if attrs.Metadata == nil {
			attrs.Metadata = make(map[string]string)
		}
		attrs.Metadata[strings.ToLower(strings.TrimPrefix(key, metaHeaderPrefix))] = values[0]
	}

	blob, err := driver.UploadBlob(r.Context(), chi.URLParam(r, "container"), name, r.Body, attrs)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, blob)
}

func (h *StorageHandler) GetBlob(w http.ResponseWriter, r *http.Request) {
	driver, ok := h.driver(w, r)
	if !ok {
		return
	}
	name, err := blobName(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	blob, err := driver.GetBlob(r.Context(), chi.URLParam(r, "container"), name)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	render.JSON(w, r, blob)
}

func (h *StorageHandler) DeleteBlob(w http.ResponseWriter, r *http.Request) {
	driver, ok := h.driver(w, r)
	if !ok {
		return
	}
	name, err := blobName(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := driver.DeleteBlob(r.Context(), chi.URLParam(r, "container"), name); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *StorageHandler) driver(w http.ResponseWriter, r *http.Request) (cloudstorage.Driver, bool) {
	driver, err := h.service.GetDriver(chi.URLParam(r, "driver"))
	if err != nil {
		h.writeError(w, r, err)
		return nil, false
	}
	return driver, true
}

func (h *StorageHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, cloudstorage.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, cloudstorage.ErrCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, cloudstorage.ErrNotFound), errors.Is(err, cloudstorage.ErrDriverNotFound):
		return http.StatusNotFound
	case errors.Is(err, cloudstorage.ErrNotEmpty):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// blobName returns the unescaped wildcard. chi matches on RawPath when the
// request path contains escapes, leaving the parameter escaped.
func blobName(r *http.Request) (string, error) {
	name := chi.URLParam(r, "*")
	if r.URL.RawPath == "" {
		return name, nil
	}
	unescaped, err := url.PathUnescape(name)
	if err != nil {
		return "", cloudstorage.NewValidationError("blob_name", "%v", fmt.Errorf("invalid escape: %w", err))
	}
	return unescaped, nil
}
