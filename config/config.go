package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/StardustXR/protostar/utils"
	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
)

// Duration wraps time.Duration so TOML files and environment overrides can
// write values as strings like "200ms" or "2s".
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the wrapped stdlib duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// EngineConfig holds the interaction policy constants. The grab and click
// thresholds are deliberately configuration, not code: they need calibration
// against real hand-tracking noise.
type EngineConfig struct {
	TickRate             int      `toml:"tick_rate" envconfig:"PROTOSTAR_TICK_RATE"`
	GrabThreshold        float64  `toml:"grab_threshold" envconfig:"PROTOSTAR_GRAB_THRESHOLD"`
	ReleaseThreshold     float64  `toml:"release_threshold" envconfig:"PROTOSTAR_RELEASE_THRESHOLD"`
	HoverDistance        float64  `toml:"hover_distance" envconfig:"PROTOSTAR_HOVER_DISTANCE"`
	ClickMaxDisplacement float64  `toml:"click_max_displacement" envconfig:"PROTOSTAR_CLICK_MAX_DISPLACEMENT"`
	ClickMaxDuration     Duration `toml:"click_max_duration" envconfig:"PROTOSTAR_CLICK_MAX_DURATION"`
}

// GridConfig controls hexagonal layout geometry.
type GridConfig struct {
	TileSize         float64 `toml:"tile_size" envconfig:"PROTOSTAR_TILE_SIZE"`
	Padding          float64 `toml:"padding" envconfig:"PROTOSTAR_PADDING"`
	SnapSearchRadius int     `toml:"snap_search_radius" envconfig:"PROTOSTAR_SNAP_SEARCH_RADIUS"`
}

// CompositorConfig locates the scene-graph server.
type CompositorConfig struct {
	URL              string   `toml:"url" envconfig:"PROTOSTAR_COMPOSITOR_URL"`
	ReconnectBackoff Duration `toml:"reconnect_backoff" envconfig:"PROTOSTAR_RECONNECT_BACKOFF"`
}

// ControlConfig configures the local JSON-RPC control plane.
type ControlConfig struct {
	Listen     string `toml:"listen" envconfig:"PROTOSTAR_CONTROL_LISTEN"`
	EnableCORS bool   `toml:"cors" envconfig:"PROTOSTAR_CONTROL_CORS"`
}

// AppsConfig configures the application descriptor source.
type AppsConfig struct {
	ExtraDirs []string `toml:"extra_dirs" envconfig:"PROTOSTAR_APPS_EXTRA_DIRS"`
	Limit     int      `toml:"limit" envconfig:"PROTOSTAR_APPS_LIMIT"`
	IconSize  int      `toml:"icon_size" envconfig:"PROTOSTAR_ICON_SIZE"`
}

// ResourceConfig is consumed by the excluded rendering subsystems; the engine
// only carries these paths through.
type ResourceConfig struct {
	ResourcePrefixes []string `toml:"resource_prefixes" envconfig:"STARDUST_RES_PREFIXES"`
	CacheDir         string   `toml:"cache_dir" envconfig:"PROTOSTAR_CACHE_DIR"`
}

type Config struct {
	Engine     EngineConfig     `toml:"engine"`
	Grid       GridConfig       `toml:"grid"`
	Compositor CompositorConfig `toml:"compositor"`
	Control    ControlConfig    `toml:"control"`
	Apps       AppsConfig       `toml:"apps"`
	Resources  ResourceConfig   `toml:"resources"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			TickRate:             90,
			GrabThreshold:        0.70,
			ReleaseThreshold:     0.40,
			HoverDistance:        0.05,
			ClickMaxDisplacement: 0.015,
			ClickMaxDuration:     Duration(350 * time.Millisecond),
		},
		Grid: GridConfig{
			TileSize:         0.06,
			Padding:          0.01,
			SnapSearchRadius: 8,
		},
		Compositor: CompositorConfig{
			URL:              "ws://localhost:20000/scene",
			ReconnectBackoff: Duration(2 * time.Second),
		},
		Control: ControlConfig{
			Listen: "localhost:21000",
		},
		Apps: AppsConfig{
			Limit:    300,
			IconSize: 128,
		},
	}
}

// DefaultPath returns the user config file location.
func DefaultPath() string {
	if base := os.Getenv("XDG_CONFIG_HOME"); base != "" {
		return filepath.Join(base, "protostar", "config.toml")
	}
	return utils.ExpandPath("~/.config/protostar/config.toml")
}

// Load reads the TOML file at path (if it exists) over the defaults, then
// applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case os.IsNotExist(err):
		utils.Verbose("No config file at %s, using defaults", path)
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if c.Engine.TickRate <= 0 {
		return fmt.Errorf("engine.tick_rate must be positive, got %d", c.Engine.TickRate)
	}
	if c.Engine.GrabThreshold <= c.Engine.ReleaseThreshold {
		return fmt.Errorf("engine.grab_threshold (%.2f) must exceed engine.release_threshold (%.2f)",
			c.Engine.GrabThreshold, c.Engine.ReleaseThreshold)
	}
	if c.Engine.GrabThreshold > 1 || c.Engine.ReleaseThreshold < 0 {
		return fmt.Errorf("activation thresholds must stay within [0,1]")
	}
	if c.Grid.TileSize <= 0 {
		return fmt.Errorf("grid.tile_size must be positive, got %f", c.Grid.TileSize)
	}
	if c.Grid.SnapSearchRadius < 1 {
		return fmt.Errorf("grid.snap_search_radius must be at least 1, got %d", c.Grid.SnapSearchRadius)
	}
	return nil
}

// TickInterval converts the configured rate to a tick period.
func (c *Config) TickInterval() time.Duration {
	return time.Second / time.Duration(c.Engine.TickRate)
}
