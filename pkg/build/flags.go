// SPDX-License-Identifier: MIT
//
// Package build holds the version metadata of the spectre binary. Release
// builds stamp it with the linker:
//
//	go build -ldflags "\
//	  -X spectre/pkg/build.version=v0.3.0 \
//	  -X spectre/pkg/build.commit=$(git rev-parse --short HEAD) \
//	  -X spectre/pkg/build.date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
//
// Development builds run with the defaults in Get.
package build

import (
	"errors"
	"fmt"
	"strings"
)

const (
	Name        = "spectre"
	Description = "Real-time audio spectrum analyzer"
)

// Set with -ldflags -X.
var (
	version string
	commit  string
	date    string
)

// ErrUnstamped is returned by Initialize when the linker left any value empty.
var ErrUnstamped = errors.New("build metadata not stamped")

// Info describes the running binary.
type Info struct {
	Name        string
	Description string
	Version     string
	Commit      string
	Date        string
}

var info = Info{
	Name:        Name,
	Description: Description,
	Version:     "dev",
	Commit:      "unknown",
	Date:        "unknown",
}

// Initialize adopts the stamped metadata. Unless every value is present it
// keeps the development defaults and returns ErrUnstamped naming the gaps.
func Initialize() error {
	var missing []string
	for _, v := range []struct{ name, value string }{
		{"version", version},
		{"commit", commit},
		{"date", date},
	} {
		if v.value == "" {
			missing = append(missing, v.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrUnstamped, strings.Join(missing, ", "))
	}

	info.Version = version
	info.Commit = commit
	info.Date = date
	return nil
}

// Get returns the current metadata.
func Get() Info {
	return info
}

// String formats the metadata for --version.
func (i Info) String() string {
	return fmt.Sprintf("%s (commit %s, built %s)", i.Version, i.Commit, i.Date)
}
