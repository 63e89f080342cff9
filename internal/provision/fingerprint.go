// Where: internal/provision/fingerprint.go
// What: Environment fingerprint computation and storage.
// Why: Detect when deps or interpreter changed so stale envs get recreated.
package provision

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"sort"
	"strings"

	"github.com/crucible-dev/crucible/internal/config"
	"github.com/crucible-dev/crucible/internal/hashfile"
	"github.com/crucible-dev/crucible/internal/meta"
)

// fingerprintEntry names the checksum entry inside the fingerprint file.
const fingerprintEntry = "env"

// Fingerprint hashes everything that forces an environment rebuild when it
// changes: the resolved interpreter, the dependency set, the install command,
// and the runner configuration. Deps are sorted so reordering them in the
// config does not invalidate the environment.
func Fingerprint(env *config.Env, interpreter string) string {
	deps := append([]string(nil), env.Deps...)
	sort.Strings(deps)

	parts := []string{
		strings.TrimSpace(interpreter),
		strings.Join(deps, "\n"),
		env.InstallCommand,
		env.Runner,
		env.ContainerImage,
	}
	if env.SkipInstall {
		parts = append(parts, "skip_install")
	}
	if env.UseDevelop {
		parts = append(parts, "usedevelop")
	}

	sum := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(sum[:])
}

// fingerprintFile returns the checksum file holding an env's fingerprint.
func fingerprintFile(env *config.Env) (*hashfile.File, error) {
	path := filepath.Join(env.EnvDir, meta.EnvStateDirName, meta.FingerprintName)
	return hashfile.Open(path, hashfile.DefaultAlgorithm)
}

// storedFingerprint reads the recorded fingerprint. Any defect in the file,
// malformed entries or a digest from another algorithm, reads as "no
// fingerprint" so the environment is treated as stale rather than erroring.
func storedFingerprint(env *config.Env) string {
	file, err := fingerprintFile(env)
	if err != nil {
		return ""
	}
	entry, found, err := file.Lookup(fingerprintEntry)
	if err != nil || !found {
		return ""
	}
	if len(entry.Digest) != sha256.Size*2 {
		return ""
	}
	return entry.Digest
}

// RecordedFingerprint exposes the stored fingerprint for reporting. Empty
// when the environment has never been provisioned.
func RecordedFingerprint(env *config.Env) string {
	return storedFingerprint(env)
}

// writeFingerprint records the fingerprint through the checksum file,
// updating in place when an entry already exists.
func writeFingerprint(env *config.Env, digest string) error {
	file, err := fingerprintFile(env)
	if err != nil {
		return err
	}
	return file.Update(hashfile.Entry{Digest: digest, Name: fingerprintEntry})
}
