// Where: internal/version/version.go
// What: Version information retrieval and comparison.
// Why: Provide build-time version info to the CLI and back the minversion check.
package version

import (
	"fmt"
	"runtime/debug"
	"strconv"
	"strings"
)

// Release is the semantic version of this build. The minversion key in the
// [tox] section is compared against it.
const Release = "1.3.0"

// GetVersion returns the version information derived from build info.
// It returns the release alone if build info is not available. Otherwise
// it appends the VCS revision, marked "(dirty)" if the tree was modified.
func GetVersion() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return Release
	}

	var revision string
	var modified bool

	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
			// Shorten revision to 7 chars if possible
			if len(revision) > 7 {
				revision = revision[:7]
			}
		case "vcs.modified":
			if setting.Value == "true" {
				modified = true
			}
		}
	}

	if revision == "" {
		return Release
	}

	if modified {
		return fmt.Sprintf("%s (%s dirty)", Release, revision)
	}
	return fmt.Sprintf("%s (%s)", Release, revision)
}

// AtLeast reports whether the running release satisfies the given minimum
// version. Versions are dotted integer sequences; missing segments count as
// zero. Malformed segments compare as zero rather than erroring, matching
// the lenient handling expected from config input.
func AtLeast(minimum string) bool {
	return compare(Release, minimum) >= 0
}

func compare(a, b string) int {
	as := strings.Split(strings.TrimSpace(a), ".")
	bs := strings.Split(strings.TrimSpace(b), ".")
	for i := 0; i < len(as) || i < len(bs); i++ {
		av, bv := 0, 0
		if i < len(as) {
			av, _ = strconv.Atoi(strings.TrimSpace(as[i]))
		}
		if i < len(bs) {
			bv, _ = strconv.Atoi(strings.TrimSpace(bs[i]))
		}
		if av != bv {
			if av < bv {
				return -1
			}
			return 1
		}
	}
	return 0
}
