package cfg

import (
	"fmt"
	"strconv"
)

// Environment variables that are set by the GitHub Actions runner.
// Action inputs are passed as INPUT_<NAME> variables, the name is uppercased
// but dashes are kept.
const (
	EnvEventName        = "GITHUB_EVENT_NAME"
	EnvEventPath        = "GITHUB_EVENT_PATH"
	EnvRepository       = "GITHUB_REPOSITORY"
	EnvGithubAPIURL     = "GITHUB_API_URL"
	EnvGithubGraphQLURL = "GITHUB_GRAPHQL_URL"
	EnvRunnerDebug      = "RUNNER_DEBUG"

	EnvInputGithubToken    = "INPUT_GITHUB-TOKEN"
	EnvInputGithubTokenAlt = "INPUT_GITHUB_TOKEN"
	EnvInputDryRun         = "INPUT_DRY-RUN"
	EnvInputEventFilter    = "INPUT_EVENT-FILTER"
)

// LookupEnvFunc has the same signature then os.LookupEnv.
type LookupEnvFunc func(key string) (string, bool)

// ApplyEnv overwrites settings with the values of the environment variables
// that are set to non-empty values.
func (c *Config) ApplyEnv(lookup LookupEnvFunc) error {
	str := func(key string, dest *string) {
		if val, ok := lookup(key); ok && val != "" {
			*dest = val
		}
	}

	str(EnvEventName, &c.EventName)
	str(EnvEventPath, &c.EventPath)
	str(EnvRepository, &c.Repository)
	str(EnvGithubAPIURL, &c.GithubAPIURL)
	str(EnvGithubGraphQLURL, &c.GithubGraphQLURL)
	str(EnvInputGithubTokenAlt, &c.GithubAPIToken)
	str(EnvInputGithubToken, &c.GithubAPIToken)
	str(EnvInputEventFilter, &c.EventFilter)

	if val, ok := lookup(EnvInputDryRun); ok && val != "" {
		b, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("parsing value of environment variable %s failed: %w", EnvInputDryRun, err)
		}

		c.DryRun = b
	}

	if val, ok := lookup(EnvRunnerDebug); ok && val == "1" {
		c.LogLevel = "debug"
	}

	return nil
}
