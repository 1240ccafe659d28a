package rtdb

import "net/http"

// Config is the Firebase Realtime Database backend configuration.
type Config struct {
	// URL of the database, e.g. https://my-app-default-rtdb.firebaseio.com
	URL string
	// Auth is a legacy database secret or a Firebase ID token sent as ?auth=.
	Auth string
	// CredentialsFile is a Google service account JSON used for OAuth2
	// access tokens. Ignored when Auth is set.
	CredentialsFile string
	// HTTPClient overrides the transport; tests and emulators use it.
	HTTPClient *http.Client
}
