// Command s3check exercises signed upload and download descriptors against
// a live provider. The driver comes from the environment, see
// config.WithEnv; for example:
//
//	STORAGE_URL=minio://localhost:9000 AWS_ACCESS_KEY_ID=minioadmin \
//	AWS_SECRET_ACCESS_KEY=minioadmin go run ./cmd/s3check
package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tendant/simple-cloudstorage/pkg/cloudstorage"
	"github.com/tendant/simple-cloudstorage/pkg/cloudstorage/config"
	"github.com/tendant/simple-cloudstorage/pkg/cloudstorage/presigned"
)

const disposition = `attachment; filename="image.png"`

type check struct {
	name string
	want int
	run  func(ctx context.Context) (int, error)
}

func main() {
	prefix := flag.String("prefix", "cloudstorage-check-", "Prefix of the temporary container")
	keep := flag.Bool("keep", false, "Keep the container after the run")
	timeout := flag.Duration("timeout", 2*time.Minute, "Overall timeout")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	cfg, err := config.Load(config.WithEnv())
	if err != nil {
		slog.Error("Failed to read configuration", "err", err)
		os.Exit(1)
	}
	svc, err := cfg.BuildService(slog.Default())
	if err != nil {
		slog.Error("Failed to build storage service", "err", err)
		os.Exit(1)
	}

	if err := svc.ValidateCredentials(ctx, ""); err != nil {
		slog.Error("Credentials rejected", "driver", cfg.DefaultDriver, "err", err)
		os.Exit(1)
	}

	failed, err := run(ctx, svc, *prefix, *keep)
	if err != nil {
		slog.Error("Check aborted", "err", err)
		os.Exit(1)
	}
	if failed > 0 {
		slog.Error("Checks failed", "failed", failed)
		os.Exit(1)
	}
	slog.Info("All checks passed", "driver", cfg.DefaultDriver)
}

func run(ctx context.Context, svc cloudstorage.Service, prefix string, keep bool) (int, error) {
	driver, err := svc.GetDriver("")
	if err != nil {
		return 0, err
	}
	container := prefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	if _, err := driver.CreateContainer(ctx, container); err != nil {
		return 0, fmt.Errorf("failed to create container %s: %w", container, err)
	}
	slog.Info("Created container", "container", container)
	if !keep {
		defer func() {
			if _, err := svc.PurgeContainers(context.Background(), "", container); err != nil {
				slog.Warn("Failed to remove container", "container", container, "err", err)
			}
		}()
	}

	client := presigned.NewClient()
	payload := []byte("not really a png")

	upload := func(expires time.Duration) func(ctx context.Context) (int, error) {
		return func(ctx context.Context) (int, error) {
			post, err := svc.GenerateUploadURL(ctx, cloudstorage.UploadURLRequest{
				Container: container,
				BlobName:  "image.png",
				Options: cloudstorage.UploadURLOptions{
					BlobAttributes: cloudstorage.BlobAttributes{ContentType: "image/png"},
					Expires:        cloudstorage.Expires(expires),
				},
			})
			if err != nil {
				return 0, err
			}
			return client.Upload(ctx, post, "image.png", bytes.NewReader(payload))
		}
	}
	download := func(expires time.Duration) func(ctx context.Context) (int, error) {
		return func(ctx context.Context) (int, error) {
			signed, err := svc.GenerateDownloadURL(ctx, cloudstorage.DownloadURLRequest{
				Container: container,
				BlobName:  "image.png",
				Options: cloudstorage.DownloadURLOptions{
					ContentDisposition: disposition,
					Expires:            cloudstorage.Expires(expires),
				},
			})
			if err != nil {
				return 0, err
			}
			var buf bytes.Buffer
			header, err := client.Download(ctx, signed, &buf)
			var statusErr *presigned.StatusError
			if errors.As(err, &statusErr) {
				return statusErr.StatusCode, nil
			}
			if err != nil {
				return 0, err
			}
			if got := header.Get("Content-Disposition"); got != disposition {
				return http.StatusOK, fmt.Errorf("content-disposition %q, want %q", got, disposition)
			}
			if !bytes.Equal(buf.Bytes(), payload) {
				return http.StatusOK, errors.New("downloaded content differs")
			}
			return http.StatusOK, nil
		}
	}

	checks := []check{
		{"expired upload", http.StatusForbidden, upload(-10 * time.Second)},
		{"upload", http.StatusNoContent, upload(time.Hour)},
		{"download", http.StatusOK, download(time.Hour)},
		{"expired download", http.StatusForbidden, download(-10 * time.Second)},
	}

	failed := 0
	for _, c := range checks {
		status, err := c.run(ctx)
		var statusErr *presigned.StatusError
		if errors.As(err, &statusErr) {
			status, err = statusErr.StatusCode, nil
		}
		if err != nil || status != c.want {
			failed++
			slog.Error("Check failed", "check", c.name, "status", status, "want", c.want, "err", err)
			continue
		}
		slog.Info("Check passed", "check", c.name, "status", status)
	}
	return failed, nil
}
