package config

// ServerConfig is the optional YAML overlay cmd/server reads before
// applying CLI flags on top. The core engine (pkg/kernel, pkg/mailcenter,
// pkg/ioloop, ...) never reads this type directly — only cmd/server
// consults it, matching spec.md §1's framing of configuration loading as
// an external collaborator to the core engine.
type ServerConfig struct {
	Port    int    `yaml:"port"`
	Runners int    `yaml:"runners"`
	Target  string `yaml:"target"`
}

// DefaultServerConfig returns the baseline values cmd/server falls back
// to when neither a config file nor a flag supplies a setting. Port has no
// default (0): cmd/server requires it from a flag or the config file.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{Port: 0, Runners: 1, Target: "echo"}
}

// LoadServerConfig loads a ServerConfig overlay from a YAML file at path,
// starting from DefaultServerConfig so a partial file only overrides the
// fields it sets.
func LoadServerConfig(path string) (ServerConfig, error) {
	cfg := DefaultServerConfig()
	if path == "" {
		return cfg, nil
	}
	if err := LoadYAML(path, &cfg); err != nil {
		return ServerConfig{}, err
	}
	return cfg, nil
}
