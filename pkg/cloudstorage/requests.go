package cloudstorage

// UploadURLRequest contains parameters for generating an upload descriptor.
// An empty Driver selects the service default.
type UploadURLRequest struct {
	Driver    string
	Container string
	BlobName  string
	Options   UploadURLOptions
}

// DownloadURLRequest contains parameters for generating a download URL.
type DownloadURLRequest struct {
	Driver    string
	Container string
	BlobName  string
	Options   DownloadURLOptions
}
