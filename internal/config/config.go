// Package config handles reroller configuration
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/ayusman/reroller/internal/grouping"
	"github.com/ayusman/reroller/internal/matcher"
	"github.com/ayusman/reroller/internal/victory"
)

// ErrInvalid is returned by Validate for out-of-range settings.
var ErrInvalid = errors.New("invalid config")

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "REROLLER_"

type Config struct {
	MinFiveStarCards   int
	MatchThreshold     float64
	CharacterThreshold float64 // target character lookups, independent of MatchThreshold
	RollDelay          time.Duration
	RetryDelay         time.Duration
	RollJitter         time.Duration
	MoveMin            time.Duration // pointer travel time per click is drawn from [MoveMin, MoveMax)
	MoveMax            time.Duration
	ClusterRadius      float64 // pixels; empirical, tune per layout
	Overlap            float64
	StarsPerCard       int
	ColumnTolerance    float64 // pixels, x axis only

	StarPattern   string
	ButtonPattern string
	TargetDir     string
	DebugDir      string
	DBPath        string
	HTTPAddr      string
	PluginDir     string
	ClickPlugin   string
	MaxAttempts   int // 0 runs until stopped
	Debug         bool
}

// DefaultConfig returns the stock settings.
func DefaultConfig() *Config {
	return &Config{
		MinFiveStarCards:   victory.DefaultMinFiveStarCards,
		MatchThreshold:     0.80,
		CharacterThreshold: victory.DefaultCharacterThreshold,
		RollDelay:          3 * time.Second,
		RetryDelay:         2 * time.Second,
		RollJitter:         time.Second,
		MoveMin:            400 * time.Millisecond,
		MoveMax:            800 * time.Millisecond,
		ClusterRadius:      grouping.DefaultRadius,
		Overlap:            matcher.DefaultOverlap,
		StarsPerCard:       victory.DefaultStarsPerCard,
		ColumnTolerance:    victory.DefaultColumnTolerance,
		StarPattern:        "star_template*.png",
		ButtonPattern:      "recruit_button*.png",
		TargetDir:          "target_characters",
		DebugDir:           "debug_logs",
		DBPath:             filepath.Join("debug_logs", "history.db"),
		HTTPAddr:           ":8080",
		PluginDir:          "plugins",
		ClickPlugin:        "clicker",
	}
}

// Load returns the defaults overridden by REROLLER_* environment variables.
// Unparseable values fall back to the default.
func Load() *Config {
	d := DefaultConfig()
	return &Config{
		MinFiveStarCards:   getEnvInt("MIN_5_STAR_CARDS", d.MinFiveStarCards),
		MatchThreshold:     getEnvFloat("MATCH_THRESHOLD", d.MatchThreshold),
		CharacterThreshold: getEnvFloat("CHARACTER_THRESHOLD", d.CharacterThreshold),
		RollDelay:          getEnvDuration("ROLL_DELAY", d.RollDelay),
		RetryDelay:         getEnvDuration("RETRY_DELAY", d.RetryDelay),
		RollJitter:         getEnvDuration("ROLL_JITTER", d.RollJitter),
		MoveMin:            getEnvDuration("MOVE_MIN", d.MoveMin),
		MoveMax:            getEnvDuration("MOVE_MAX", d.MoveMax),
		ClusterRadius:      getEnvFloat("CLUSTER_RADIUS", d.ClusterRadius),
		Overlap:            getEnvFloat("OVERLAP", d.Overlap),
		StarsPerCard:       getEnvInt("STARS_PER_CARD", d.StarsPerCard),
		ColumnTolerance:    getEnvFloat("COLUMN_TOLERANCE", d.ColumnTolerance),
		StarPattern:        getEnv("STAR_PATTERN", d.StarPattern),
		ButtonPattern:      getEnv("BUTTON_PATTERN", d.ButtonPattern),
		TargetDir:          getEnv("TARGET_DIR", d.TargetDir),
		DebugDir:           getEnv("DEBUG_DIR", d.DebugDir),
		DBPath:             getEnv("DB_PATH", d.DBPath),
		HTTPAddr:           getEnv("HTTP_ADDR", d.HTTPAddr),
		PluginDir:          getEnv("PLUGIN_DIR", d.PluginDir),
		ClickPlugin:        getEnv("CLICK_PLUGIN", d.ClickPlugin),
		MaxAttempts:        getEnvInt("MAX_ATTEMPTS", d.MaxAttempts),
		Debug:              getEnvBool("DEBUG", d.Debug),
	}
}

// Validate checks that every setting is in range.
func (c *Config) Validate() error {
	switch {
	case c.MinFiveStarCards <= 0:
		return fmt.Errorf("%w: min 5* cards must be positive, got %d", ErrInvalid, c.MinFiveStarCards)
	case c.MatchThreshold <= 0 || c.MatchThreshold > 1:
		return fmt.Errorf("%w: match threshold must be in (0,1], got %g", ErrInvalid, c.MatchThreshold)
	case c.CharacterThreshold <= 0 || c.CharacterThreshold > 1:
		return fmt.Errorf("%w: character threshold must be in (0,1], got %g", ErrInvalid, c.CharacterThreshold)
	case c.RollDelay < 0 || c.RetryDelay < 0 || c.RollJitter < 0:
		return fmt.Errorf("%w: delays must not be negative", ErrInvalid)
	case c.MoveMin < 0 || c.MoveMax < c.MoveMin:
		return fmt.Errorf("%w: pointer travel range [%v, %v) is invalid", ErrInvalid, c.MoveMin, c.MoveMax)
	case c.ClusterRadius <= 0:
		return fmt.Errorf("%w: cluster radius must be positive, got %g", ErrInvalid, c.ClusterRadius)
	case c.Overlap < 0 || c.Overlap > 1:
		return fmt.Errorf("%w: overlap must be in [0,1], got %g", ErrInvalid, c.Overlap)
	case c.StarsPerCard <= 0:
		return fmt.Errorf("%w: stars per card must be positive, got %d", ErrInvalid, c.StarsPerCard)
	case c.ColumnTolerance <= 0:
		return fmt.Errorf("%w: column tolerance must be positive, got %g", ErrInvalid, c.ColumnTolerance)
	case c.MaxAttempts < 0:
		return fmt.Errorf("%w: max attempts must not be negative, got %d", ErrInvalid, c.MaxAttempts)
	case c.StarPattern == "" || c.ButtonPattern == "":
		return fmt.Errorf("%w: star and button patterns are required", ErrInvalid)
	}
	return nil
}

// TargetPattern is the glob for target character templates.
func (c *Config) TargetPattern() string {
	return filepath.Join(c.TargetDir, "*.png")
}

// MatcherOptions returns the scale sweep settings with the configured overlap.
func (c *Config) MatcherOptions() matcher.Options {
	opts := matcher.DefaultOptions()
	opts.Overlap = c.Overlap
	return opts
}

// VictoryConfig returns the evaluator settings logging through logger.
func (c *Config) VictoryConfig(logger zerolog.Logger) victory.Config {
	return victory.Config{
		MinFiveStarCards:   c.MinFiveStarCards,
		StarsPerCard:       c.StarsPerCard,
		ClusterRadius:      c.ClusterRadius,
		ColumnTolerance:    c.ColumnTolerance,
		CharacterThreshold: c.CharacterThreshold,
		Logger:             logger,
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		return v == "true" || v == "1"
	}
	return def
}

// getEnvDuration accepts Go durations ("2.5s") or bare seconds ("2.5").
func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		if d, err := ParseSeconds(v); err == nil {
			return d
		}
	}
	return def
}

// ParseSeconds parses a Go duration string or a bare number of seconds.
func ParseSeconds(s string) (time.Duration, error) {
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", s, err)
	}
	return time.Duration(f * float64(time.Second)), nil
}
