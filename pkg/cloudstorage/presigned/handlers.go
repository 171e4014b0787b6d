package presigned

import (
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/tendant/simple-cloudstorage/pkg/cloudstorage"
	"github.com/tendant/simple-cloudstorage/pkg/cloudstorage/signing"
)

const (
	defaultMaxUploadSize = 5 << 30 // 5 GiB, the S3 single POST limit
	maxMemory            = 32 << 20
	formFileField        = "file"
)

// Handlers serves S3 style POST form uploads and presigned GET downloads for
// an ObjectStore held by this process.
//
// Routes, relative to the mount point:
//
//	POST /{container}    multipart form upload, 204 on success
//	GET  /{container}/*  presigned download, 200 on success
//	HEAD /{container}/*  presigned metadata
//
// Expired descriptors, signature mismatches and policy violations are all
// answered with 403 Forbidden.
type Handlers struct {
	store         cloudstorage.ObjectStore
	verifier      *signing.Verifier
	public        PublicFunc
	logger        *slog.Logger
	maxUploadSize int64
}

// HandlerOption is a functional option for configuring Handlers
type HandlerOption func(*Handlers)

// WithPublicContainers allows unsigned reads of the containers public approves
func WithPublicContainers(public PublicFunc) HandlerOption {
	return func(h *Handlers) {
		h.public = public
	}
}

// WithLogger sets the structured logger
func WithLogger(logger *slog.Logger) HandlerOption {
	return func(h *Handlers) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithMaxUploadSize caps the request body of a form upload
func WithMaxUploadSize(n int64) HandlerOption {
	return func(h *Handlers) {
		if n > 0 {
			h.maxUploadSize = n
		}
	}
}

// NewHandlers creates presigned handlers over store. verifier must accept the
// credentials the descriptors were signed with.
func NewHandlers(store cloudstorage.ObjectStore, verifier *signing.Verifier, opts ...HandlerOption) *Handlers {
	h := &Handlers{
		store:         store,
		verifier:      verifier,
		logger:        slog.Default(),
		maxUploadSize: defaultMaxUploadSize,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Backend is the part of the local driver the handlers depend on.
type Backend interface {
	Store() cloudstorage.ObjectStore
	Verifier() *signing.Verifier
	IsPublic(container string) bool
}

// ForBackend wires handlers to a local driver so its CDN switch controls unsigned reads.
func ForBackend(b Backend, opts ...HandlerOption) *Handlers {
	opts = append([]HandlerOption{WithPublicContainers(b.IsPublic)}, opts...)
	return NewHandlers(b.Store(), b.Verifier(), opts...)
}

// Mount mounts the presigned handlers on a chi router
func (h *Handlers) Mount(r chi.Router) {
	verify := VerifyDownloadMiddleware(h.verifier, h.public, h.logger)
	r.Post("/{container}", h.HandleUpload)
	r.With(verify).Get("/{container}/*", h.HandleDownload)
	r.With(verify).Head("/{container}/*", h.HandleDownload)
}

// HandleUpload handles multipart POST uploads signed with a policy document.
// The "file" part must come with the form fields the policy covers.
func (h *Handlers) HandleUpload(w http.ResponseWriter, r *http.Request) {
	container := chi.URLParam(r, "container")

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		writeError(w, r, http.StatusBadRequest, "MalformedPOSTRequest", "request body is not a valid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File[formFileField]
	if len(files) != 1 {
		writeError(w, r, http.StatusBadRequest, "InvalidArgument", "exactly one file part is required")
		return
	}
	file := files[0]

	fields := make(map[string]string, len(r.MultipartForm.Value))
	for name, values := range r.MultipartForm.Value {
		if len(values) > 0 {
			fields[name] = values[0]
		}
	}

	if _, err := h.verifier.VerifyForm(container, fields, file.Size); err != nil {
		status, code := statusFor(err)
		h.logger.Warn("Presigned upload rejected", "container", container, "status", status, "error", err)
		writeError(w, r, status, code, err.Error())
		return
	}

	key, attrs := uploadTarget(fields, file)
	blob, err := h.putFile(r, container, key, file, attrs)
	if err != nil {
		status, code := statusFor(err)
		h.logger.Error("Presigned upload failed", "container", container, "blob", key, "error", err)
		writeError(w, r, status, code, err.Error())
		return
	}

	h.logger.Info("Presigned upload succeeded", "container", container, "blob", key, "size", blob.Size)
	w.Header().Set("ETag", strconv.Quote(blob.ETag))
	w.Header().Set("Location", r.URL.EscapedPath()+"/"+signing.EscapeKey(key))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) putFile(r *http.Request, container, key string, file *multipart.FileHeader, attrs cloudstorage.BlobAttributes) (*cloudstorage.Blob, error) {
	if err := cloudstorage.ValidateBlobName(key); err != nil {
		return nil, err
	}
	f, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return h.store.PutObject(r.Context(), container, key, f, attrs)
}

// HandleDownload streams a blob after VerifyDownloadMiddleware accepted the request.
func (h *Handlers) HandleDownload(w http.ResponseWriter, r *http.Request) {
	container := chi.URLParam(r, "container")
	key, err := objectKey(r)
	if err != nil || key == "" {
		writeError(w, r, http.StatusBadRequest, "InvalidArgument", "object key is required in URL path")
		return
	}

	rc, blob, err := h.store.GetObject(r.Context(), container, key)
	if err != nil {
		status, code := statusFor(err)
		writeError(w, r, status, code, err.Error())
		return
	}
	defer rc.Close()

	header := w.Header()
	header.Set("Content-Type", blob.ContentType)
	header.Set("Content-Length", strconv.FormatInt(blob.Size, 10))
	header.Set("ETag", strconv.Quote(blob.ETag))
	header.Set("Last-Modified", blob.ModifiedAt.UTC().Format(http.TimeFormat))
	if blob.CacheControl != "" {
		header.Set("Cache-Control", blob.CacheControl)
	}
	disposition := blob.ContentDisposition
	if override := r.URL.Query().Get(signing.QueryContentDisposition); override != "" {
		disposition = override
	}
	if disposition != "" {
		header.Set("Content-Disposition", disposition)
	}
	for k, v := range blob.Metadata {
		header.Set(signing.MetaPrefix+k, v)
	}

	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Error("Presigned download copy error", "container", container, "blob", key, "error", err)
	}
}

// objectKey returns the unescaped key matched by the route wildcard. chi
// routes on the escaped path when one is present.
func objectKey(r *http.Request) (string, error) {
	key := chi.URLParam(r, "*")
	if r.URL.RawPath == "" {
		return key, nil
	}
	unescaped, err := url.PathUnescape(key)
	if err != nil {
		return "", fmt.Errorf("invalid object key: %w", err)
	}
	return unescaped, nil
}

// uploadTarget resolves the stored key and attributes from the verified form.
func uploadTarget(fields map[string]string, file *multipart.FileHeader) (string, cloudstorage.BlobAttributes) {
	var key string
	attrs := cloudstorage.BlobAttributes{}
	for name, value := range fields {
		switch lower := strings.ToLower(name); {
		case lower == signing.FieldKey:
			key = value
		case lower == strings.ToLower(signing.FieldContentType):
			attrs.ContentType = value
		case lower == strings.ToLower(signing.FieldContentDisposition):
			attrs.ContentDisposition = value
		case lower == strings.ToLower(signing.FieldCacheControl):
			attrs.CacheControl = value
		case strings.HasPrefix(lower, signing.MetaPrefix):
			if attrs.Metadata == nil {
				attrs.Metadata = make(map[string]string)
			}
			attrs.Metadata[lower[len(signing.MetaPrefix):]] = value
		}
	}
	key = strings.ReplaceAll(key, signing.FilenamePlaceholder, file.Filename)
	return key, attrs
}
