// Package presigned serves and consumes signed storage descriptors over HTTP.
//
// Handlers implement the provider side for the local driver: S3 style POST
// form uploads verified against their policy document, and query-signed GET
// downloads. Client implements the consumer side and works against the local
// handlers and real S3 alike.
//
// # Server
//
//	driver, _ := local.New(local.Config{Store: memory.New(), Endpoint: "http://localhost:8080/storage", Credentials: creds})
//	r := chi.NewRouter()
//	r.Route("/storage", presigned.ForBackend(driver).Mount)
//
// # Client
//
//	client := presigned.NewClient()
//	status, err := client.Upload(ctx, post, "image.png", file) // 204 on success
//	header, err := client.Download(ctx, url, w)                 // 200 on success
//
// Rejected descriptors surface as *StatusError; expired ones carry 403.
package presigned
