// Package config decodes configuration files. The format follows the file
// extension: .yaml and .yml are YAML, .toml is TOML.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v2"
)

// Load reads path and decodes it into out, which must be a pointer.
func Load(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return Decode(filepath.Ext(path), data, out)
}

// Decode decodes data in the format named by ext.
func Decode(ext string, data []byte, out interface{}) error {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "yaml", "yml":
		if err := yaml.UnmarshalStrict(data, out); err != nil {
			return fmt.Errorf("config: yaml: %w", err)
		}
	case "toml":
		md, err := toml.Decode(string(data), out)
		if err != nil {
			return fmt.Errorf("config: toml: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return fmt.Errorf("config: toml: unknown keys %v", undecoded)
		}
	default:
		return fmt.Errorf("config: unsupported format %q", ext)
	}
	return nil
}
