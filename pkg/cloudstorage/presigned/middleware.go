package presigned

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tendant/simple-cloudstorage/pkg/cloudstorage/signing"
)

// PublicFunc reports whether a container may be read without a signature.
type PublicFunc func(container string) bool

// VerifyDownloadMiddleware rejects GET requests whose query signature is
// missing, invalid or expired. Requests to public containers that carry no
// signature pass through unchecked.
//
// Example:
//
//	r.With(presigned.VerifyDownloadMiddleware(verifier, nil, slog.Default())).Get("/{container}/*", handler)
func VerifyDownloadMiddleware(verifier *signing.Verifier, public PublicFunc, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			container := chi.URLParam(r, "container")
			signed := r.URL.Query().Has(signing.QuerySignature)
			if !signed {
				if public != nil && public(container) {
					next.ServeHTTP(w, r)
					return
				}
				writeError(w, r, http.StatusForbidden, "AccessDenied", "request is not signed")
				return
			}

			if err := verifier.VerifyDownload(r); err != nil {
				status, code := statusFor(err)
				logger.Warn("Presigned download rejected", "container", container, "path", r.URL.Path,
					"status", status, "error", err)
				writeError(w, r, status, code, err.Error())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
