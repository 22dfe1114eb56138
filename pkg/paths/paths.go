package paths

import (
	"os"
	"path/filepath"
)

// GetConfigDir returns the user's config directory for voice-agent.
//
// If the home directory cannot be determined, it falls back to a directory
// under the system temporary directory.
func GetConfigDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Clean(filepath.Join(os.TempDir(), ".voice-agent-config"))
	}
	return filepath.Clean(filepath.Join(homeDir, ".config", "voice-agent"))
}

// GetDataDir returns the user's data directory for voice-agent (logs).
func GetDataDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Clean(filepath.Join(os.TempDir(), ".voice-agent"))
	}
	return filepath.Clean(filepath.Join(homeDir, ".voice-agent"))
}

// GetHomeDir returns the user's home directory, or "" if it is unknown.
func GetHomeDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Clean(homeDir)
}
