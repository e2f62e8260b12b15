package schema

import (
	"fmt"

	"golang.org/x/mod/semver"
)

// Version is the record schema version written into payloads and stores.
// Schema changes are additive only: a minor bump adds collections, indexes or
// optional fields; a major bump would break older readers.
const Version = "v1.0.0"

// CheckVersion reports whether data written at version v can be read by this
// build. An empty version is treated as current.
func CheckVersion(v string) error {
	if v == "" {
		return nil
	}
	if !semver.IsValid(v) {
		return fmt.Errorf("%w: %q is not a semantic version", ErrUnsupportedVersion, v)
	}
	if semver.Compare(semver.Major(v), semver.Major(Version)) > 0 {
		return fmt.Errorf("%w: %s is newer than %s", ErrUnsupportedVersion, v, Version)
	}
	return nil
}
