package helper

import (
	"os"
	"path/filepath"
)

// ConfigDirEnv overrides the directory searched for configuration files.
const ConfigDirEnv = "MEDLINKX_CONFIG_DIR"

// GetCfgPath returns the path to the configuration file.
//
// Priority:
// 1. If filename is an absolute path, return it directly.
// 2. $MEDLINKX_CONFIG_DIR/{filename} when the variable is set and the file exists
// 3. Check ./{filename} and ./configs/{filename}
// 4. Otherwise, fallback to /etc/medlinkx/{filename}
func GetCfgPath(filename string) string {
	if filename == "" {
		panic("filename cannot be empty")
	}

	if filepath.IsAbs(filename) {
		return filename
	}

	if dir := os.Getenv(ConfigDirEnv); dir != "" {
		candidate := filepath.Join(dir, filename)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}

	currentDir := getCurrentDir(filename)
	if currentDir != "" {
		return currentDir
	}

	// fallback
	return filepath.Join("/etc/medlinkx", filename)
}

func getCurrentDir(filename string) string {
	currentDir, err := os.Getwd()
	if err != nil || currentDir == "" {
		return ""
	}

	for _, candidatePath := range []string{
		filepath.Join(currentDir, filename),
		filepath.Join(currentDir, "configs", filename),
	} {
		if _, err := os.Stat(candidatePath); err != nil {
			continue
		}
		if absPath, err := filepath.Abs(candidatePath); err == nil {
			return absPath
		}
	}
	return ""
}
