package presigned

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"sort"
	"strings"
	"time"

	"github.com/tendant/simple-cloudstorage/pkg/cloudstorage"
)

// Client consumes signed descriptors: it POSTs upload forms and GETs download URLs.
// Descriptor use is never retried; an expired or rejected descriptor fails fast.
type Client struct {
	httpClient   *http.Client
	progressFunc ProgressFunc
}

// ProgressFunc is called during upload to report progress
// It receives the number of bytes uploaded so far
type ProgressFunc func(bytesUploaded int64)

// ClientOption is a functional option for configuring a Client
type ClientOption func(*Client)

// NewClient creates a new descriptor client
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Minute, // Long timeout for large uploads
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithProgress sets a progress callback function
func WithProgress(fn ProgressFunc) ClientOption {
	return func(c *Client) {
		c.progressFunc = fn
	}
}

// StatusError is returned when the provider answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("request failed with status: %s", e.Status)
	}
	return fmt.Sprintf("request failed with status: %s: %s", e.Status, e.Body)
}

// Upload POSTs data as the "file" part of the descriptor's form and returns
// the provider's status code.
//
// Example:
//
//	client := presigned.NewClient()
//	status, err := client.Upload(ctx, post, "image.png", file)
func (c *Client) Upload(ctx context.Context, post *cloudstorage.FormPost, filename string, data io.Reader) (int, error) {
	if c.progressFunc != nil {
		data = &progressReader{reader: data, callback: c.progressFunc}
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeForm(mw, post.Fields, filename, data))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, post.URL, pr)
	if err != nil {
		pr.Close()
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("upload failed: %w", err)
	}
	defer resp.Body.Close()
	return resp.StatusCode, checkStatus(resp)
}

// Download GETs a presigned URL into w and returns the response headers.
func (c *Client) Download(ctx context.Context, presignedURL string, w io.Writer) (http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, presignedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return resp.Header, err
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return resp.Header, fmt.Errorf("download failed: %w", err)
	}
	return resp.Header, nil
}

// writeForm writes the fields in sorted order followed by the file part,
// which S3 requires to be last.
func writeForm(mw *multipart.Writer, fields map[string]string, filename string, data io.Reader) error {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := mw.WriteField(name, fields[name]); err != nil {
			return err
		}
	}

	contentType := "application/octet-stream"
	for name, value := range fields {
		if strings.EqualFold(name, "Content-Type") {
			contentType = value
		}
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, formFileField, filename))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, data); err != nil {
		return err
	}
	return mw.Close()
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &StatusError{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       strings.TrimSpace(string(body)),
	}
}

// progressReader wraps an io.Reader to track upload progress
type progressReader struct {
	reader    io.Reader
	bytesRead int64
	callback  ProgressFunc
}

func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.reader.Read(p)
	pr.bytesRead += int64(n)
	if pr.callback != nil && n > 0 {
		pr.callback(pr.bytesRead)
	}
	return n, err
}
