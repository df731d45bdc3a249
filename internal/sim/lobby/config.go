package lobby

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	DefaultSession string        `yaml:"default_session"`
	Sessions       []SessionSpec `yaml:"sessions"`
}

type SessionSpec struct {
	Name  string `yaml:"name"`
	Seed  int64  `yaml:"seed"`
	Debug bool   `yaml:"debug"`
	// MaxPlayers overrides the tuned cap when > 0.
	MaxPlayers int `yaml:"max_players,omitempty"`
}

func Load(path string) (Config, error) {
	cfg := defaults()
	if strings.TrimSpace(path) == "" {
		cfg.Normalize()
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	cfg = Config{}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("sessions.yaml: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("sessions.yaml: %w", err)
	}
	return cfg, nil
}

func defaults() Config {
	return Config{
		DefaultSession: "main",
		Sessions:       []SessionSpec{{Name: "main", Seed: 1337}},
	}
}

func (c *Config) Normalize() {
	if c == nil {
		return
	}
	for i := range c.Sessions {
		c.Sessions[i].Name = strings.TrimSpace(c.Sessions[i].Name)
	}
	if strings.TrimSpace(c.DefaultSession) == "" && len(c.Sessions) > 0 {
		c.DefaultSession = c.Sessions[0].Name
	}
}

func (c Config) Validate() error {
	if len(c.Sessions) == 0 {
		return fmt.Errorf("sessions must not be empty")
	}
	seen := map[string]bool{}
	for _, s := range c.Sessions {
		if s.Name == "" {
			return fmt.Errorf("session name must not be empty")
		}
		if seen[s.Name] {
			return fmt.Errorf("duplicate session name: %s", s.Name)
		}
		seen[s.Name] = true
		if s.MaxPlayers < 0 {
			return fmt.Errorf("session %s max_players must be >= 0", s.Name)
		}
	}
	if !seen[c.DefaultSession] {
		return fmt.Errorf("default_session %q not found in sessions", c.DefaultSession)
	}
	return nil
}
