// Package common holds what every store backend and the bridge agree on.
package common

import "errors"

// ErrNotFound is returned when nothing has been written at a path yet.
var ErrNotFound = errors.New("record not found")

// ObjectKey maps a store path onto an object/blob key: "/backgroundConfig"
// with prefix "displays/" becomes "displays/backgroundConfig.json".
func ObjectKey(prefix, path string) string {
	for len(path) > 0 && path[0] == '/' {
		path = path[1:]
	}
	return prefix + path + ".json"
}
