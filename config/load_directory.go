package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// LoadDirectory loads all YAML and JSON files from a directory and combines
// them into a single Config. Files are loaded in lexicographical order.
// Later files can override values from earlier files.
func LoadDirectory(dirPath string) (*Config, error) {
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var configFiles []string
	for _, entry := range entries {
		if !entry.IsDir() && isConfigFile(entry.Name()) {
			configFiles = append(configFiles, filepath.Join(dirPath, entry.Name()))
		}
	}

	// Consider an empty directory an error
	if len(configFiles) == 0 {
		return nil, fmt.Errorf("no yaml or json files found in directory: %s", dirPath)
	}
	return loadFiles(configFiles)
}

// LoadGlob loads and merges every config file matching the pattern, which
// may use doublestar wildcards ("conf.d/**/*.yaml"). Matches merge in
// lexicographical order.
func LoadGlob(pattern string) (*Config, error) {
	matches, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to expand pattern %s: %w", pattern, err)
	}
	var configFiles []string
	for _, match := range matches {
		if isConfigFile(match) {
			configFiles = append(configFiles, match)
		}
	}
	if len(configFiles) == 0 {
		return nil, fmt.Errorf("no yaml or json files match pattern: %s", pattern)
	}
	return loadFiles(configFiles)
}

func loadFiles(paths []string) (*Config, error) {
	// Sort files for deterministic loading order
	sort.Strings(paths)

	var merged *Config
	for _, path := range paths {
		config, err := ParseFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to parse file %s: %w", path, err)
		}
		if merged == nil {
			merged = config
		} else {
			merged = Merge(merged, config)
		}
	}
	return merged, nil
}

func isConfigFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yml" || ext == ".yaml" || ext == ".json"
}
