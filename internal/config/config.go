// Package config loads grouparchive settings.
//
// Values are layered: built-in defaults, then an optional YAML file, then
// the environment (a .env file fills in variables the process environment
// does not set), then command-line flags applied by the caller. The merged
// result is checked against an embedded CUE schema by Validate.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/roach88/grouparchive/internal/groupme"
	"github.com/roach88/grouparchive/internal/render"
)

//go:embed schema.cue
var schemaSource []byte

// Environment variables read by Load.
const (
	EnvToken    = "GROUPME_TOKEN"
	EnvTimezone = "GROUPARCHIVE_TIMEZONE"
	EnvAPIURL   = "GROUPARCHIVE_API_URL"
)

// Config holds every tunable setting.
type Config struct {
	APIURL            string  `yaml:"api_url" json:"api_url"`
	Token             string  `yaml:"token" json:"token"`
	PageSize          int     `yaml:"page_size" json:"page_size"`
	Workers           int     `yaml:"workers" json:"workers"`
	RequestsPerSecond float64 `yaml:"requests_per_second" json:"requests_per_second"`
	Burst             int     `yaml:"burst" json:"burst"`
	TimeoutSeconds    int     `yaml:"timeout_seconds" json:"timeout_seconds"`
	SystemSender      string  `yaml:"system_sender" json:"system_sender"`
	Timezone          string  `yaml:"timezone" json:"timezone"`
	UseGlobalAvatar   bool    `yaml:"use_global_avatar" json:"use_global_avatar"`
	AvatarSuffix      string  `yaml:"avatar_suffix" json:"avatar_suffix"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		APIURL:            groupme.DefaultBaseURL,
		PageSize:          20,
		Workers:           4,
		RequestsPerSecond: 5,
		Burst:             1,
		TimeoutSeconds:    30,
		SystemSender:      render.DefaultSystemSender,
		AvatarSuffix:      ".avatar",
	}
}

// LookupFunc reads one environment variable.
type LookupFunc func(key string) (string, bool)

// Environ returns a lookup over the process environment backed by the
// variables in dotenv. A missing dotenv file is not an error.
func Environ(dotenv string) (LookupFunc, error) {
	file := map[string]string{}
	if dotenv != "" {
		vars, err := godotenv.Read(dotenv)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read %s: %w", dotenv, err)
		default:
			file = vars
		}
	}
	return func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := file[key]
		return v, ok
	}, nil
}

// Load returns the defaults overlaid with the YAML file at path (skipped
// when path is empty) and then the environment. The result is not
// validated; callers apply flags first and then call Validate.
func Load(path string, env LookupFunc) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, fmt.Errorf("failed to parse YAML: %w", err)
		}
	}
	if env != nil {
		cfg.applyEnv(env)
	}
	return cfg, nil
}

func (c *Config) applyEnv(env LookupFunc) {
	if v, ok := env(EnvToken); ok && v != "" {
		c.Token = v
	}
	if v, ok := env(EnvTimezone); ok && v != "" {
		c.Timezone = v
	}
	if v, ok := env(EnvAPIURL); ok && v != "" {
		c.APIURL = v
	}
}

// Validate checks c against the schema and resolves the timezone.
func (c Config) Validate() error {
	ctx := cuecontext.New()
	schema := ctx.CompileBytes(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}
	v := schema.LookupPath(cue.ParsePath("#Config")).Unify(ctx.Encode(c))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Location resolves Timezone. Empty means the local zone.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Timeout is the per-request HTTP timeout. Zero means none.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ClientOptions maps the API settings onto a GroupMe client.
func (c Config) ClientOptions() groupme.Options {
	return groupme.Options{
		BaseURL:           c.APIURL,
		Token:             c.Token,
		Timeout:           c.Timeout(),
		RequestsPerSecond: c.RequestsPerSecond,
		Burst:             c.Burst,
	}
}
