package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const configDir = ".preface"
const configFile = "config.json"

const (
	DefaultTypingSpeedMS = 23
	DefaultIdlePollMS    = 50
)

type Config struct {
	Server        string `json:"server"`
	OpenID        string `json:"openid,omitempty"`
	TypingSpeedMS int    `json:"typing_speed_ms,omitempty"`
	IdlePollMS    int    `json:"idle_poll_ms,omitempty"`
	LastPromptID  string `json:"last_prompt_id,omitempty"`
	Profile       string `json:"-"`
}

// Dir is the directory holding profiles and the client log.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot find home directory: %w", err)
	}
	return filepath.Join(home, configDir), nil
}

func configPath(profile string) (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	filename := configFile
	if profile != "" {
		filename = fmt.Sprintf("config-%s.json", profile)
	}
	return filepath.Join(dir, filename), nil
}

func Load(profile string) (*Config, error) {
	path, err := configPath(profile)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{Profile: profile}, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.Profile = profile
	return &cfg, nil
}

func (c *Config) Save() error {
	path, err := configPath(c.Profile)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

func (c *Config) profileFlag() string {
	if c.Profile == "" {
		return ""
	}
	return " --profile " + c.Profile
}

func (c *Config) Validate() error {
	pf := c.profileFlag()
	if c.Server == "" {
		return fmt.Errorf("server not set. Run: preface%s set server <url>", pf)
	}
	if c.OpenID == "" {
		return fmt.Errorf("openid not set. Run: preface%s set openid <id>", pf)
	}
	return nil
}

// TypingPeriod is the delay between typed characters.
func (c *Config) TypingPeriod() time.Duration {
	if c.TypingSpeedMS <= 0 {
		return DefaultTypingSpeedMS * time.Millisecond
	}
	return time.Duration(c.TypingSpeedMS) * time.Millisecond
}

// IdlePeriod is how often the typewriter polls an empty queue while the
// generation is still running.
func (c *Config) IdlePeriod() time.Duration {
	if c.IdlePollMS <= 0 {
		return DefaultIdlePollMS * time.Millisecond
	}
	return time.Duration(c.IdlePollMS) * time.Millisecond
}

func ListProfiles() ([]string, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading config directory: %w", err)
	}
	var profiles []string
	for _, e := range entries {
		name := e.Name()
		if name == configFile {
			profiles = append(profiles, "default")
			continue
		}
		if strings.HasPrefix(name, "config-") && strings.HasSuffix(name, ".json") {
			profiles = append(profiles, strings.TrimSuffix(strings.TrimPrefix(name, "config-"), ".json"))
		}
	}
	return profiles, nil
}

func ProfileName(profile string) string {
	if profile == "" {
		return "default"
	}
	return profile
}
