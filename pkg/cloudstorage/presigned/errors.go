package presigned

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"
	"github.com/tendant/simple-cloudstorage/pkg/cloudstorage"
	"github.com/tendant/simple-cloudstorage/pkg/cloudstorage/signing"
)

// ErrorResponse is the JSON body of every failed presigned request.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody carries an S3 style error code and a readable message.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: ErrorBody{Code: code, Message: message}})
}

// statusFor maps verification and storage errors to an HTTP status and error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, signing.ErrExpired):
		return http.StatusForbidden, "AccessDenied"
	case errors.Is(err, signing.ErrInvalidSignature):
		return http.StatusForbidden, "SignatureDoesNotMatch"
	case errors.Is(err, signing.ErrUnknownAccessKey):
		return http.StatusForbidden, "InvalidAccessKeyId"
	case errors.Is(err, signing.ErrPolicyViolation):
		return http.StatusForbidden, "AccessDenied"
	case errors.Is(err, signing.ErrMissingField),
		errors.Is(err, signing.ErrUnsupportedAlgorithm),
		errors.Is(err, signing.ErrMalformedCredential),
		errors.Is(err, signing.ErrMalformedPolicy):
		return http.StatusBadRequest, "InvalidArgument"
	case errors.Is(err, cloudstorage.ErrNotFound):
		var nf *cloudstorage.NotFoundError
		if errors.As(err, &nf) && nf.Kind == "container" {
			return http.StatusNotFound, "NoSuchBucket"
		}
		return http.StatusNotFound, "NoSuchKey"
	case errors.Is(err, cloudstorage.ErrValidation):
		return http.StatusBadRequest, "InvalidArgument"
	default:
		return http.StatusInternalServerError, "InternalError"
	}
}
