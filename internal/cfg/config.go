package cfg

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/pelletier/go-toml"

	"github.com/simplesurance/automerger/internal/amerr"
)

const (
	DefLogFormat  = "logfmt"
	DefLogTimeKey = "time"
	DefLogLevel   = "info"
)

// Config is the automerger configuration.
// Values can be defined in an optional TOML file, values that are provided
// by the CI environment (see ApplyEnv) override them.
type Config struct {
	GithubAPIToken   string `toml:"github_api_token"`
	GithubAPIURL     string `toml:"github_api_url"`
	GithubGraphQLURL string `toml:"github_graphql_url"`
	// Repository is the repository in the format "owner/name".
	Repository string `toml:"repository"`

	EventName   string `toml:"event_name"`
	EventPath   string `toml:"event_path"`
	EventFilter string `toml:"event_filter"`

	DryRun bool `toml:"dry_run"`

	MetricsPushGatewayURL string `toml:"metrics_pushgateway_url"`

	LogFormat  string `toml:"log_format"`
	LogTimeKey string `toml:"log_time_key"`
	LogLevel   string `toml:"log_level"`
}

// Default returns a Config with all optional settings set to their defaults.
func Default() *Config {
	return &Config{
		LogFormat:  DefLogFormat,
		LogTimeKey: DefLogTimeKey,
		LogLevel:   DefLogLevel,
	}
}

// Load reads a TOML configuration from reader.
// Settings that are not defined in the file have their default value.
func Load(reader io.Reader) (*Config, error) {
	result := Default()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}

	if err := toml.Unmarshal(data, result); err != nil {
		return nil, err
	}

	return result, nil
}

func (c *Config) Marshal(writer io.Writer) error {
	return toml.NewEncoder(writer).Encode(c)
}

// RepositoryOwnerAndName splits the Repository field into the owner and the
// repository name.
func (c *Config) RepositoryOwnerAndName() (owner, name string, err error) {
	owner, name, found := strings.Cut(c.Repository, "/")
	if !found || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", "", fmt.Errorf("repository %q is not in the format <owner>/<name>", c.Repository)
	}

	return owner, name, nil
}

// Validate returns an amerr.ConfigError if a required setting is missing or
// invalid.
func (c *Config) Validate() error {
	if c.GithubAPIToken == "" {
		return amerr.NewConfigError(errors.New("github api token is not set, provide it via the github-token input"))
	}

	if _, _, err := c.RepositoryOwnerAndName(); err != nil {
		return amerr.NewConfigError(err)
	}

	switch c.LogFormat {
	case "logfmt", "console", "json":
	default:
		return amerr.NewConfigErrorf("unsupported log_format: %q", c.LogFormat)
	}

	return nil
}
