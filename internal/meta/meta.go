// Where: internal/meta/meta.go
// What: CLI-local metadata constants.
// Why: Keep naming and layout decisions in one place.
package meta

const (
	// Project Identity
	AppName   = "crucible"
	Slug      = "crucible"
	EnvPrefix = "CRUCIBLE"

	// Configuration Files
	ConfigName         = "crucible.ini"
	FallbackConfigName = "tox.ini"
	GlobalConfigEnvVar = "CRUCIBLE_CONFIG_DIR"

	// Directory Layout
	WorkDirName     = ".crucible"
	EnvStateDirName = ".crucible"
	EnvLogDirName   = "log"
	FingerprintName = "fingerprint"
	HistoryDBName   = "history.db"

	// Container Runner
	ContainerWorkspace = "/workspace"
	ContainerLabel     = "dev.crucible.env"
)
