package transport

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// ServerConfig describes how to launch the tool-server process.
type ServerConfig struct {
	Command string            `json:"command"`
	Args    []string          `json:"args"`
	Env     map[string]string `json:"env,omitempty"`
}

// LoadServerConfig reads a single-server JSON config file.
func LoadServerConfig(path string) (*ServerConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg ServerConfig
	if err := json.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse server config %s: %w", path, err)
	}
	if cfg.Command == "" {
		return nil, fmt.Errorf("server config %s: command is required", path)
	}

	return &cfg, nil
}

// ConfigFromScript infers a launch command from a server script path:
// .py runs under python, .js under node.
func ConfigFromScript(path string) (*ServerConfig, error) {
	switch {
	case strings.HasSuffix(path, ".py"):
		return &ServerConfig{Command: "python", Args: []string{path}}, nil
	case strings.HasSuffix(path, ".js"):
		return &ServerConfig{Command: "node", Args: []string{path}}, nil
	default:
		return nil, fmt.Errorf("server script must be a .py or .js file, got %q", path)
	}
}
