package cloudstorage

import (
	"errors"
	"fmt"
)

// Error kinds. Typed errors below match these through errors.Is.
var (
	// ErrCloudStorage is the root of every error produced by a driver.
	ErrCloudStorage = errors.New("cloud storage error")

	// ErrValidation indicates malformed input such as a bad name or option
	ErrValidation = errors.New("validation failed")

	// ErrCredentials indicates the access key and secret do not match
	ErrCredentials = errors.New("invalid credentials")

	// ErrNotFound indicates a container or blob does not exist
	ErrNotFound = errors.New("not found")

	// ErrNotEmpty indicates a container still holds blobs
	ErrNotEmpty = errors.New("container is not empty")

	// ErrDriverNotFound indicates no driver is registered under the requested name
	ErrDriverNotFound = errors.New("driver not found")
)

// ValidationError reports malformed input to policy construction or CRUD calls.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation || target == ErrCloudStorage
}

// NewValidationError builds a ValidationError for field.
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// CredentialsError reports a key/secret mismatch. Message is always non-empty.
type CredentialsError struct {
	Message string
	Err     error
}

func (e *CredentialsError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *CredentialsError) Unwrap() error {
	return e.Err
}

func (e *CredentialsError) Is(target error) bool {
	return target == ErrCredentials || target == ErrCloudStorage
}

// NewCredentialsError wraps err with a human readable message.
func NewCredentialsError(message string, err error) *CredentialsError {
	if message == "" {
		message = "invalid credentials"
	}
	return &CredentialsError{Message: message, Err: err}
}

// NotFoundError reports a missing container or blob.
type NotFoundError struct {
	Kind string // "container" or "blob"
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.Name)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound || target == ErrCloudStorage
}

// ContainerNotFound returns a NotFoundError for a container.
func ContainerNotFound(name string) *NotFoundError {
	return &NotFoundError{Kind: "container", Name: name}
}

// BlobNotFound returns a NotFoundError for a blob inside container.
func BlobNotFound(container, name string) *NotFoundError {
	return &NotFoundError{Kind: "blob", Name: container + "/" + name}
}

// IsNotEmptyError reports an attempt to delete a container that still holds blobs.
type IsNotEmptyError struct {
	Container string
}

func (e *IsNotEmptyError) Error() string {
	return fmt.Sprintf("container %s is not empty", e.Container)
}

func (e *IsNotEmptyError) Is(target error) bool {
	return target == ErrNotEmpty || target == ErrCloudStorage
}

// CloudStorageError wraps any other provider failure.
type CloudStorageError struct {
	Driver string
	Op     string
	Err    error
}

func (e *CloudStorageError) Error() string {
	return fmt.Sprintf("%s: %s failed: %v", e.Driver, e.Op, e.Err)
}

func (e *CloudStorageError) Unwrap() error {
	return e.Err
}

func (e *CloudStorageError) Is(target error) bool {
	return target == ErrCloudStorage
}

// Wrap returns err unchanged when it already belongs to the cloudstorage
// taxonomy and wraps it in a CloudStorageError otherwise.
func Wrap(driver, op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrCloudStorage) {
		return err
	}
	return &CloudStorageError{Driver: driver, Op: op, Err: err}
}
