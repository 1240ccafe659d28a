package gcs

// Config is a structure to store Cloud Storage backend configuration.
type Config struct {
	Bucket          string
	Prefix          string
	CredentialsFile string
	// Endpoint points at an emulator; authentication is skipped when set.
	Endpoint string
}
