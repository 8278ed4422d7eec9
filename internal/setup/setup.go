// Package setup registers the clinvar-query MCP server in a desktop MCP
// client's configuration file.
package setup

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/afero"
)

// DefaultServerName is the key the server is registered under
const DefaultServerName = "clinvar-query"

// ClientConfig is the part of the client configuration file we manage.
// Other top-level keys in the file are preserved.
type ClientConfig struct {
	MCPServers map[string]ServerEntry `json:"mcpServers"`
	extra      map[string]json.RawMessage
}

// ServerEntry launches one MCP server
type ServerEntry struct {
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// DesktopConfigPath returns the per-OS location of claude_desktop_config.json
func DesktopConfigPath() (string, error) {
	var dir string
	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(home, "Library", "Application Support", "Claude")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", errors.New("APPDATA environment variable not set")
		}
		dir = filepath.Join(appData, "Claude")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			dir = filepath.Join(xdg, "Claude")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			dir = filepath.Join(home, ".config", "Claude")
		}
	}
	return filepath.Join(dir, "claude_desktop_config.json"), nil
}

// Load reads the client configuration. A missing file yields an empty config.
func Load(afs afero.Fs, path string) (*ClientConfig, error) {
	cfg := &ClientConfig{MCPServers: map[string]ServerEntry{}, extra: map[string]json.RawMessage{}}

	data, err := afero.ReadFile(afs, path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read client config: %w", err)
	}

	if err := json.Unmarshal(data, &cfg.extra); err != nil {
		return nil, fmt.Errorf("failed to parse client config %s: %w", path, err)
	}
	if raw, ok := cfg.extra["mcpServers"]; ok {
		if err := json.Unmarshal(raw, &cfg.MCPServers); err != nil {
			return nil, fmt.Errorf("failed to parse mcpServers in %s: %w", path, err)
		}
		delete(cfg.extra, "mcpServers")
	}
	if cfg.MCPServers == nil {
		cfg.MCPServers = map[string]ServerEntry{}
	}
	return cfg, nil
}

// Save writes the configuration back, creating the directory if needed
func Save(afs afero.Fs, path string, cfg *ClientConfig) error {
	out := make(map[string]interface{}, len(cfg.extra)+1)
	for k, v := range cfg.extra {
		out[k] = v
	}
	out["mcpServers"] = cfg.MCPServers

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal client config: %w", err)
	}
	if err := afs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := afero.WriteFile(afs, path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write client config: %w", err)
	}
	return nil
}

// Register adds or replaces the named server entry. It reports whether an
// existing entry was replaced.
func Register(afs afero.Fs, path, name string, entry ServerEntry) (bool, error) {
	if entry.Command == "" {
		return false, errors.New("server command is required")
	}
	cfg, err := Load(afs, path)
	if err != nil {
		return false, err
	}
	_, replaced := cfg.MCPServers[name]
	cfg.MCPServers[name] = entry
	return replaced, Save(afs, path, cfg)
}

// Unregister removes the named server entry; it reports whether one existed
func Unregister(afs afero.Fs, path, name string) (bool, error) {
	cfg, err := Load(afs, path)
	if err != nil {
		return false, err
	}
	if _, ok := cfg.MCPServers[name]; !ok {
		return false, nil
	}
	delete(cfg.MCPServers, name)
	return true, Save(afs, path, cfg)
}

// EntryFor builds the launch entry for this binary. An empty configFile lets
// the server search its default locations.
func EntryFor(binary, configFile string) ServerEntry {
	args := []string{"mcp"}
	if configFile != "" {
		if abs, err := filepath.Abs(configFile); err == nil {
			configFile = abs
		}
		args = append(args, "--config", configFile)
	}
	return ServerEntry{Command: binary, Args: args}
}
