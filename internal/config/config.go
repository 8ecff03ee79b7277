package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"sort"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"

	"github.com/dyluth/bbs/internal/engine"
	"github.com/dyluth/bbs/internal/lockstring"
	"github.com/dyluth/bbs/internal/options"
	"github.com/dyluth/bbs/pkg/bbs"
)

// Defaults applied by Validate.
const (
	DefaultInstance      = "default"
	DefaultRedisURL      = "redis://localhost:6379/0"
	DefaultAdminOverride = "admin:perm(Admin) or perm(Developer)"
	DefaultListen        = ":8080"
	DefaultFile          = "bbs.yml"

	// MaxInstanceLength keeps instance names usable as hostnames.
	MaxInstanceLength = 63
)

// InstancePattern matches lowercase alphanumeric names with inner hyphens.
var InstancePattern = regexp.MustCompile(`^[a-z0-9]([-a-z0-9]*[a-z0-9])?$`)

// ValidateInstance checks an instance name. Instance names prefix every
// Redis key and pub/sub channel.
func ValidateInstance(name string) error {
	if name == "" {
		return fmt.Errorf("instance name cannot be empty")
	}
	if len(name) > MaxInstanceLength {
		return fmt.Errorf("instance name too long: %d characters (max: %d)", len(name), MaxInstanceLength)
	}
	if !InstancePattern.MatchString(name) {
		return fmt.Errorf("invalid instance name '%s': must be lowercase alphanumeric with hyphens (not at start/end)", name)
	}
	return nil
}

// Config represents the bbs.yml configuration
type Config struct {
	Instance      string        `yaml:"instance" env:"BBS_INSTANCE"`
	RedisURL      string        `yaml:"redis_url" env:"REDIS_URL"`
	AdminOverride string        `yaml:"admin_override" env:"BBS_ADMIN_OVERRIDE"`
	PostsPerPage  int           `yaml:"posts_per_page" env:"BBS_POSTS_PER_PAGE"`
	Listen        string        `yaml:"listen" env:"BBS_LISTEN"`
	MaxTxRetries  int           `yaml:"max_tx_retries" env:"BBS_MAX_TX_RETRIES"`
	Options       OptionsConfig `yaml:"options,omitempty"`
}

// OptionsConfig holds option declaration overrides per entity kind.
type OptionsConfig struct {
	Collection map[string]OptionConfig `yaml:"collection,omitempty"`
	Board      map[string]OptionConfig `yaml:"board,omitempty"`
}

// OptionConfig declares or overrides one option.
type OptionConfig struct {
	Description string `yaml:"description"`
	Type        string `yaml:"type"` // Boolean, Text or Lock
	Default     string `yaml:"default"`
}

// Validate applies defaults and checks the configuration
func (c *Config) Validate() error {
	if c.Instance == "" {
		c.Instance = DefaultInstance
	}
	if c.RedisURL == "" {
		c.RedisURL = DefaultRedisURL
	}
	if c.AdminOverride == "" {
		c.AdminOverride = DefaultAdminOverride
	}
	if c.Listen == "" {
		c.Listen = DefaultListen
	}

	if err := ValidateInstance(c.Instance); err != nil {
		return err
	}

	if c.PostsPerPage < 0 {
		return fmt.Errorf("posts_per_page must be >= 1, got %d", c.PostsPerPage)
	}
	if c.PostsPerPage == 0 {
		c.PostsPerPage = engine.DefaultPostsPerPage
	}
	if c.MaxTxRetries < 0 {
		return fmt.Errorf("max_tx_retries must be >= 1, got %d", c.MaxTxRetries)
	}
	if c.MaxTxRetries == 0 {
		c.MaxTxRetries = bbs.DefaultMaxTxRetries
	}

	if _, err := redis.ParseURL(c.RedisURL); err != nil {
		return fmt.Errorf("invalid redis_url: %w", err)
	}

	locks := lockstring.New()
	if err := locks.Validate(c.AdminOverride); err != nil {
		return fmt.Errorf("invalid admin_override: %w", err)
	}

	if _, err := c.CollectionOptions(); err != nil {
		return fmt.Errorf("options.collection: %w", err)
	}
	if _, err := c.BoardOptions(); err != nil {
		return fmt.Errorf("options.board: %w", err)
	}
	return nil
}

// CollectionOptions returns the built-in collection options with the
// configured overrides applied.
func (c *Config) CollectionOptions() ([]options.Declaration, error) {
	return declarations(options.DefaultCollectionDeclarations(), c.Options.Collection)
}

// BoardOptions returns the built-in board options with the configured
// overrides applied.
func (c *Config) BoardOptions() ([]options.Declaration, error) {
	return declarations(options.DefaultBoardDeclarations(), c.Options.Board)
}

func declarations(defaults []options.Declaration, overrides map[string]OptionConfig) ([]options.Declaration, error) {
	keys := make([]string, 0, len(overrides))
	for key := range overrides {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	extra := make([]options.Declaration, 0, len(keys))
	for _, key := range keys {
		o := overrides[key]
		kind, err := options.ParseKind(o.Type)
		if err != nil {
			return nil, fmt.Errorf("option '%s': %w", key, err)
		}
		extra = append(extra, options.Declaration{Key: key, Description: o.Description, Kind: kind, Default: o.Default})
	}

	decls := options.Merge(defaults, extra)
	if _, err := options.NewTable(decls, lockstring.New().Validate); err != nil {
		return nil, err
	}
	return decls, nil
}

// RedisOptions parses redis_url.
func (c *Config) RedisOptions() (*redis.Options, error) {
	return redis.ParseURL(c.RedisURL)
}

// Engine returns the engine settings carried by this configuration.
func (c *Config) Engine() (engine.Config, error) {
	collectionOptions, err := c.CollectionOptions()
	if err != nil {
		return engine.Config{}, err
	}
	boardOptions, err := c.BoardOptions()
	if err != nil {
		return engine.Config{}, err
	}
	return engine.Config{
		InstanceName:      c.Instance,
		AdminOverride:     c.AdminOverride,
		PostsPerPage:      c.PostsPerPage,
		CollectionOptions: collectionOptions,
		BoardOptions:      boardOptions,
	}, nil
}

// Load reads bbs.yml from path, overlays the environment and validates the
// result. A missing file is only an error when path was given explicitly;
// an empty path means "use bbs.yml if it exists". envFile, if it exists, is
// loaded into the process environment first.
func Load(path, envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	var config Config

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	case explicit || !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := cleanenv.ReadEnv(&config); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}
