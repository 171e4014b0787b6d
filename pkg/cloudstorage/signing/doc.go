// Package signing produces and verifies credential-scoped, time-bounded
// descriptors for object storage: S3 POST policy uploads and query-signed
// GET downloads, both using AWS Signature Version 4.
//
// # Uploads
//
//	signer := signing.New()
//	policy, err := signing.BuildUploadPolicy("photos", "image.png", cloudstorage.UploadURLOptions{
//	    BlobAttributes: cloudstorage.BlobAttributes{ContentType: "image/png"},
//	})
//	sig, err := signer.SignPolicy(policy, creds)
//	post, err := signing.AssembleFormPost("https://photos.s3.us-east-1.amazonaws.com/", policy, sig)
//
// Policy conditions are serialized in a fixed order (bucket, key,
// Cache-Control, Content-Disposition, Content-Type, x-amz-meta-* sorted by
// name, content-length-range, then the signature fields), so equal inputs
// and an equal clock always produce byte-identical policies.
//
// # Downloads
//
//	objectURL, _ := signing.ObjectURL(endpoint, "image.png")
//	url, expiration, err := signer.PresignDownload(ctx, signing.DownloadRequest{
//	    ObjectURL:          objectURL,
//	    ContentDisposition: "attachment; filename=image.png",
//	    ExpiresIn:          time.Hour,
//	}, creds)
//
// # Expiry
//
// A non-positive lifetime is not an error. The descriptor is generated with an
// expiration in the past and the party serving it answers 403 Forbidden.
// Verifier performs that check for providers served by this repository.
package signing
