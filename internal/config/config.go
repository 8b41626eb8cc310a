// Package config exposes viper-backed settings for the aictx CLI.
package config

import "github.com/spf13/viper"

// SetDefaults registers default values. Called once from the root command
// before the config file is read.
func SetDefaults() {
	viper.SetDefault("storage.dir", ".ai-context")
	viper.SetDefault("snapshot.mode", "auto")
	viper.SetDefault("snapshot.strict_dirty", false)
	viper.SetDefault("retention.keep", 10)
	viper.SetDefault("task.brief_dir", "docs/task-briefs")
	viper.SetDefault("task.checks_file", "checks.yaml")
}

// GetStorageDir returns the snapshot storage directory, relative to the
// project root unless absolute.
func GetStorageDir() string {
	return viper.GetString("storage.dir")
}

// GetCaptureMode returns the configured capture mode: auto, native or filecopy.
func GetCaptureMode() string {
	return viper.GetString("snapshot.mode")
}

// GetStrictDirty reports whether a dirty working tree escalates the
// dirty-tree warning to a fatal error at snapshot time.
func GetStrictDirty() bool {
	return viper.GetBool("snapshot.strict_dirty")
}

// GetRetentionKeep returns how many snapshots cleanup retains by default.
func GetRetentionKeep() int {
	return viper.GetInt("retention.keep")
}

// GetBriefDir returns the directory holding the active task brief.
func GetBriefDir() string {
	return viper.GetString("task.brief_dir")
}

// GetChecksFile returns the validation checks file name inside the storage dir.
func GetChecksFile() string {
	return viper.GetString("task.checks_file")
}
