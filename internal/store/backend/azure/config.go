package azure

// Config is a structure to store Azure Blob Storage backend configuration.
type Config struct {
	AccountName string
	// AccountKey selects shared key auth; without it the default Azure
	// credential chain (env, managed identity, CLI) is used.
	AccountKey    string
	ContainerName string
	Prefix        string
	// ServiceURL overrides https://<account>.blob.core.windows.net/, e.g. Azurite.
	ServiceURL string
}
