package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/moby/sys/atomicwriter"
	"gopkg.in/yaml.v3"

	"github.com/openfroyo/vnflcm/pkg/telemetry"
	"github.com/openfroyo/vnflcm/pkg/transports/ssh"
)

// DefaultPath is the workspace file looked up when no --config is given.
const DefaultPath = "vnflcm.yaml"

// Environment variables applied over the file.
const (
	EnvDatabase = "VNFLCM_DB"
	EnvLogLevel = "LOG_LEVEL"
)

// Policy modes.
const (
	PolicyAdvisory  = "advisory"
	PolicyEnforcing = "enforcing"
)

// Actuator kinds.
const (
	ActuatorDryRun = "dry-run"
	ActuatorHook   = "hook"
	ActuatorSSH    = "ssh"
)

// Config is the workspace configuration.
type Config struct {
	// DataDir holds the database and generated keys.
	DataDir string `yaml:"data_dir" validate:"required"`

	// Context is the model context used when --context is not given.
	Context string `yaml:"context" validate:"required"`

	Database  DatabaseConfig   `yaml:"database"`
	Telemetry telemetry.Config `yaml:"telemetry"`
	Policy    PolicyConfig     `yaml:"policy"`
	Actuator  ActuatorConfig   `yaml:"actuator"`
	Render    RenderConfig     `yaml:"render"`
}

// DatabaseConfig locates the SQLite database.
type DatabaseConfig struct {
	Path string `yaml:"path" validate:"required"`
}

// PolicyConfig selects the policy sources and how violations are treated.
type PolicyConfig struct {
	// Paths are .rego files or directories loaded next to the built-in
	// policies.
	Paths []string `yaml:"paths,omitempty"`

	// Mode is advisory (report only) or enforcing (error violations block
	// execution).
	Mode string `yaml:"mode" validate:"oneof=advisory enforcing"`
}

// ActuatorConfig configures plan execution.
type ActuatorConfig struct {
	Kind    string `yaml:"kind" validate:"oneof=dry-run hook ssh"`
	Command string `yaml:"command,omitempty" validate:"required_unless=Kind dry-run"`

	// SSH locates the actuation host of the ssh kind.
	SSH        ssh.Config `yaml:"ssh,omitempty"`
	StagingDir string     `yaml:"staging_dir,omitempty"`

	MaxParallel int           `yaml:"max_parallel" validate:"gte=1"`
	MaxRetries  int           `yaml:"max_retries" validate:"gte=0"`
	Timeout     time.Duration `yaml:"timeout" validate:"gte=0"`
	BaseBackoff time.Duration `yaml:"base_backoff" validate:"gte=0"`
	FailFast    bool          `yaml:"fail_fast"`
}

// RenderConfig locates Starlark templates and rendered output.
type RenderConfig struct {
	TemplateDir string        `yaml:"template_dir"`
	OutputDir   string        `yaml:"output_dir"`
	Timeout     time.Duration `yaml:"timeout" validate:"gte=0"`
}

// Default returns the configuration used when no workspace file exists.
func Default() *Config {
	tcfg := telemetry.DefaultConfig()
	tcfg.Metrics.ListenAddress = ":9464"

	return &Config{
		DataDir: "./data",
		Context: "default",
		Database: DatabaseConfig{
			Path: filepath.Join("data", "vnflcm.db"),
		},
		Telemetry: *tcfg,
		Policy: PolicyConfig{
			Mode: PolicyAdvisory,
		},
		Actuator: ActuatorConfig{
			Kind:        ActuatorDryRun,
			MaxParallel: 4,
			MaxRetries:  2,
			Timeout:     5 * time.Minute,
			BaseBackoff: time.Second,
		},
		Render: RenderConfig{
			TemplateDir: "templates",
			OutputDir:   ".",
			Timeout:     30 * time.Second,
		},
	}
}

// Workspace profiles accepted by ForProfile.
const (
	ProfileDefault     = "default"
	ProfileDevelopment = "development"
	ProfileProduction  = "production"
)

// ForProfile returns the defaults with the telemetry preset of profile.
// The production profile also enforces policies.
func ForProfile(profile string) (*Config, error) {
	cfg := Default()

	var tcfg *telemetry.Config
	switch profile {
	case "", ProfileDefault:
		return cfg, nil
	case ProfileDevelopment:
		tcfg = telemetry.DevelopmentConfig()
	case ProfileProduction:
		tcfg = telemetry.ProductionConfig()
		cfg.Policy.Mode = PolicyEnforcing
	default:
		return nil, fmt.Errorf("unknown profile: %s (must be default, development or production)", profile)
	}

	tcfg.Metrics.ListenAddress = cfg.Telemetry.Metrics.ListenAddress
	cfg.Telemetry = *tcfg
	return cfg, nil
}

// Load reads the workspace file at path over the defaults. A missing file
// yields the defaults. Environment overrides are applied before validation.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	default:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if db := os.Getenv(EnvDatabase); db != "" {
		c.Database.Path = db
	}
	if level := os.Getenv(EnvLogLevel); level != "" {
		c.Telemetry.Logging.Level = level
	}
}

// Save writes the configuration to path atomically.
func (c *Config) Save(path string) error {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := atomicwriter.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write config %s: %w", path, err)
	}
	return nil
}

// Validate checks the struct tags and the telemetry settings.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fieldMessage(fe))
			}
			return errors.New(strings.Join(msgs, "; "))
		}
		return err
	}
	if c.Actuator.Kind == ActuatorSSH {
		sshCfg := c.Actuator.SSH.WithDefaults()
		if err := sshCfg.Validate(); err != nil {
			return fmt.Errorf("actuator.ssh: %w", err)
		}
	}
	return c.Telemetry.Validate()
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// fieldMessage renders a failed check with the dotted yaml key.
func fieldMessage(fe validator.FieldError) string {
	key := fe.Namespace()
	if i := strings.Index(key, "."); i >= 0 {
		key = key[i+1:]
	}

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", key)
	case "required_if":
		return fmt.Sprintf("%s is required when %s", key, strings.Replace(fe.Param(), " ", " is ", 1))
	case "required_unless":
		return fmt.Sprintf("%s is required unless %s", key, strings.Replace(fe.Param(), " ", " is ", 1))
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", key, fe.Param(), fe.Value())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", key, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", key, fe.Tag())
	}
}
