package config

import (
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/dkoosis/verifyapi/internal/history"
	"github.com/dkoosis/verifyapi/pkg/generate"
	"github.com/dkoosis/verifyapi/pkg/render"
	"github.com/dkoosis/verifyapi/pkg/suite"
)

// FileName is the config file looked up in the working directory and in
// the user config dir.
const FileName = ".verifyapi.yaml"

// HistoryOff disables the run history when used as history_db.
const HistoryOff = "off"

// FormatAuto picks terminal or plain output by whether stdout is a TTY.
const FormatAuto = "auto"

// APIKeys are provider credentials. They are never printed.
type APIKeys struct {
	Anthropic string `yaml:"anthropic" env:"ANTHROPIC_API_KEY"`
	OpenAI    string `yaml:"openai" env:"OPENAI_API_KEY"`
	Gemini    string `yaml:"gemini" env:"GEMINI_API_KEY"`
}

// Config is the effective configuration of one invocation.
type Config struct {
	// Generation
	Provider    string        `yaml:"provider" env:"VERIFYAPI_PROVIDER" env-default:"anthropic"`
	Model       string        `yaml:"model" env:"VERIFYAPI_MODEL"`
	APIBaseURL  string        `yaml:"api_base_url" env:"VERIFYAPI_API_BASE_URL"`
	MaxTokens   int           `yaml:"max_tokens" env:"VERIFYAPI_MAX_TOKENS" env-default:"4096"`
	Temperature float64       `yaml:"temperature" env:"VERIFYAPI_TEMPERATURE"`
	Attempts    int           `yaml:"attempts" env:"VERIFYAPI_ATTEMPTS" env-default:"1"`
	ReplayPath  string        `yaml:"replay_path" env:"VERIFYAPI_REPLAY_PATH"`
	Timeout     time.Duration `yaml:"timeout" env:"VERIFYAPI_TIMEOUT" env-default:"10m"`
	APIKeys     APIKeys       `yaml:"api_keys"`

	// Suite and execution
	Kind            string   `yaml:"kind" env:"VERIFYAPI_KIND" env-default:"pytest"`
	BaseURL         string   `yaml:"base_url" env:"VERIFYAPI_BASE_URL"`
	PytestRunner    []string `yaml:"pytest_runner" env:"VERIFYAPI_PYTEST_RUNNER" env-separator:" "`
	RobotRunner     []string `yaml:"robot_runner" env:"VERIFYAPI_ROBOT_RUNNER" env-separator:" "`
	KeywordResource string   `yaml:"keyword_resource" env:"VERIFYAPI_KEYWORD_RESOURCE"`
	KeywordDocs     string   `yaml:"keyword_docs" env:"VERIFYAPI_KEYWORD_DOCS"`
	SupportFiles    []string `yaml:"support_files" env:"VERIFYAPI_SUPPORT_FILES" env-separator:","`
	WorkRoot        string   `yaml:"work_root" env:"VERIFYAPI_WORK_ROOT"`
	OutputRoot      string   `yaml:"output_root" env:"VERIFYAPI_OUTPUT_ROOT" env-default:"verifyapi-runs"`
	KeepSuite       bool     `yaml:"keep_suite" env:"VERIFYAPI_KEEP_SUITE"`
	Parallel        int      `yaml:"parallel" env:"VERIFYAPI_PARALLEL" env-default:"2"`

	// Output
	HistoryDB string `yaml:"history_db" env:"VERIFYAPI_HISTORY_DB"`
	Format    string `yaml:"format" env:"VERIFYAPI_FORMAT" env-default:"auto"`
	Theme     string `yaml:"theme" env:"VERIFYAPI_THEME" env-default:"default"`

	// Path is the file the config was read from; empty when none was found.
	Path string `yaml:"-"`
}

// Load reads the config file at path, or the first one found by
// getConfigPath when path is empty, then the environment. The result is not
// validated; ApplyFlags does that once flags are merged.
func Load(path string) (*Config, error) {
	var cfg Config
	if path == "" {
		path = getConfigPath()
	}
	if path == "" {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, errors.Wrap(err, "read config from environment")
		}
	} else {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
		cfg.Path = path
	}
	set, err := temperatureSet(path)
	if err != nil {
		return nil, err
	}
	if !set {
		cfg.Temperature = generate.DefaultTemperature
	}
	return &cfg, nil
}

// temperatureSet reports whether the environment or the file at path sets
// temperature. cleanenv cannot tell an explicit 0 from an unset value.
func temperatureSet(path string) (bool, error) {
	if _, ok := os.LookupEnv("VERIFYAPI_TEMPERATURE"); ok {
		return true, nil
	}
	if path == "" {
		return false, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return false, errors.Wrapf(err, "read config %s", path)
	}
	var raw struct {
		Temperature *float64 `yaml:"temperature"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return false, errors.Wrapf(err, "read config %s", path)
	}
	return raw.Temperature != nil, nil
}

// getConfigPath determines the path to the config file.
// It checks the working directory first, then the user config dir.
func getConfigPath() string {
	if _, err := os.Stat(FileName); err == nil {
		return FileName
	}
	configHome, err := os.UserConfigDir()
	// An empty or root config dir is not usable.
	if err != nil || configHome == "" || configHome == "/" {
		return ""
	}
	userPath := filepath.Join(configHome, "verifyapi", FileName)
	if _, err := os.Stat(userPath); err == nil {
		return userPath
	}
	return ""
}

// Validate rejects values no stage could work with.
func (c *Config) Validate() error {
	providers := []string{generate.ProviderAnthropic, generate.ProviderOpenAI, generate.ProviderGemini, generate.ProviderReplay}
	if !slices.Contains(providers, c.Provider) {
		return errors.Errorf("invalid provider %q (must be one of %v)", c.Provider, providers)
	}
	if _, err := suite.Parse(c.Kind); err != nil {
		return err
	}
	formats := []string{FormatAuto, render.FormatTerminal, render.FormatPlain, render.FormatJSON}
	if !slices.Contains(formats, c.Format) {
		return errors.Errorf("invalid format %q (must be one of %v)", c.Format, formats)
	}
	if !slices.Contains(render.Themes, c.Theme) {
		return errors.Errorf("invalid theme %q (must be one of %v)", c.Theme, render.Themes)
	}
	if c.MaxTokens <= 0 {
		return errors.Errorf("max_tokens must be positive, got: %d", c.MaxTokens)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return errors.Errorf("temperature must be within [0, 2], got: %g", c.Temperature)
	}
	if c.Timeout < 0 {
		return errors.Errorf("timeout must not be negative, got: %s", c.Timeout)
	}
	if c.Attempts < 1 {
		return errors.Errorf("attempts must be at least 1, got: %d", c.Attempts)
	}
	if c.Parallel < 1 {
		return errors.Errorf("parallel must be at least 1, got: %d", c.Parallel)
	}
	if c.Provider == generate.ProviderReplay && c.ReplayPath == "" {
		return errors.New("provider replay needs replay_path")
	}
	return nil
}

// SuiteKind is the validated suite kind.
func (c *Config) SuiteKind() suite.Kind {
	k, _ := suite.Parse(c.Kind)
	return k
}

// Runner is the configured runner command for kind; nil means the kind's
// default.
func (c *Config) Runner(kind suite.Kind) []string {
	switch kind {
	case suite.Pytest:
		return c.PytestRunner
	case suite.Robot:
		return c.RobotRunner
	default:
		return nil
	}
}

// APIKey is the credential for the configured provider.
func (c *Config) APIKey() string {
	switch c.Provider {
	case generate.ProviderAnthropic:
		return c.APIKeys.Anthropic
	case generate.ProviderOpenAI:
		return c.APIKeys.OpenAI
	case generate.ProviderGemini:
		return c.APIKeys.Gemini
	default:
		return ""
	}
}

// HistoryPath is where runs are recorded; empty when history is off.
func (c *Config) HistoryPath() string {
	switch c.HistoryDB {
	case HistoryOff:
		return ""
	case "":
		return filepath.Join(c.OutputRoot, history.DefaultFile)
	default:
		return c.HistoryDB
	}
}

// Redacted returns a copy safe to print.
func (c *Config) Redacted() Config {
	out := *c
	redact := func(s *string) {
		if *s != "" {
			*s = "<redacted>"
		}
	}
	redact(&out.APIKeys.Anthropic)
	redact(&out.APIKeys.OpenAI)
	redact(&out.APIKeys.Gemini)
	return out
}

// YAML renders the redacted configuration.
func (c *Config) YAML() ([]byte, error) {
	data, err := yaml.Marshal(c.Redacted())
	return data, errors.Wrap(err, "marshal config")
}
