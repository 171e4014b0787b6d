// Package cloudstorage provides a driver-agnostic client for object storage
// providers. Containers hold blobs; every driver supports container and blob
// CRUD, CDN exposure and time-limited signed descriptors for uploads (S3 POST
// form policies) and downloads (query-signed GET URLs).
//
// # Basic Usage
//
//	driver, _ := s3storage.New(s3storage.Config{Region: "us-east-1", AccessKeyID: key, SecretAccessKey: secret})
//	svc, _ := cloudstorage.New(cloudstorage.WithDriver("s3", driver))
//
//	post, err := svc.GenerateUploadURL(ctx, cloudstorage.UploadURLRequest{
//	    Container: "photos",
//	    BlobName:  "image.png",
//	    Options: cloudstorage.UploadURLOptions{
//	        BlobAttributes: cloudstorage.BlobAttributes{ContentType: "image/png"},
//	        Expires:        cloudstorage.Expires(10 * time.Minute),
//	    },
//	})
//
// The descriptor is consumed by a multipart form POST of post.Fields plus a
// "file" part to post.URL. Providers answer 204 No Content on success and
// 403 Forbidden once the descriptor has expired or a field breaks the policy.
//
// # Errors
//
// Every driver error matches ErrCloudStorage. Use errors.Is with
// ErrValidation, ErrCredentials, ErrNotFound or ErrNotEmpty to classify,
// and errors.As for the typed details.
package cloudstorage
