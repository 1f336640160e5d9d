package id

import "github.com/oklog/ulid/v2"

// New returns a ULID string. Trade journal records are keyed by these;
// sorting by ID is sorting by creation time.
func New() string {
	return ulid.Make().String()
}
