package devstore

import (
	"os"
	"path/filepath"
)

const dataDirName = "xbdev_devstoreSDK"

// dataDir returns the SDK's per-user data directory, creating it on
// first use. Falls back to the working directory when the OS config
// dir cannot be resolved, so the SDK keeps working in sandboxed hosts.
func dataDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		base = "."
	}
	dir := filepath.Join(base, dataDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "."
	}
	return dir
}
