package s3

// Config is a structure to store S3 backend configuration.
type Config struct {
	Bucket    string
	Prefix    string
	Region    string
	Endpoint  string // custom endpoint, e.g. MinIO
	PathStyle bool
	Key       string
	Secret    string
}
