package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/tagweave/internal/builder"
	"github.com/starford/tagweave/internal/layout"
	"github.com/starford/tagweave/internal/similarity"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Vault   VaultConfig       `yaml:"vault"`
	SQLite  SQLiteConfig      `yaml:"sqlite"`
	Auth    AuthConfig        `yaml:"auth"`
	Graph   GraphConfig       `yaml:"graph"`
	Layout  LayoutConfig      `yaml:"layout"`
	Rebuild RebuildConfig     `yaml:"rebuild"`
	Metrics MetricsConfig     `yaml:"metrics"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	for _, v := range []validation.Validatable{
		&c.App, &c.Vault, &c.SQLite, &c.Auth, &c.Graph, &c.Layout, &c.Rebuild, &c.Metrics,
	} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// VaultConfig holds the path to the directory of Markdown entity files.
type VaultConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// GraphConfig holds the edge-generation thresholds.
type GraphConfig struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	FactorFloor         float64 `yaml:"factor_floor"`
	SharedRootWeight    float64 `yaml:"shared_root_weight"`
	GeoMaxDistanceM     float64 `yaml:"geo_max_distance_m"`
	RootTagKey          string  `yaml:"root_tag_key"`
}

// Validate validates the graph configuration.
func (c *GraphConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.SimilarityThreshold, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&c.FactorFloor, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&c.SharedRootWeight, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&c.GeoMaxDistanceM, validation.Required, validation.Min(0.0)),
		validation.Field(&c.RootTagKey, validation.Required),
	)
}

// BuilderConfig converts the section into builder thresholds.
func (c *GraphConfig) BuilderConfig() builder.Config {
	return builder.Config{
		SimilarityThreshold: c.SimilarityThreshold,
		SharedRootWeight:    c.SharedRootWeight,
		GeoMaxDistance:      c.GeoMaxDistanceM,
		RootTagKey:          c.RootTagKey,
	}
}

// Scorer returns the entity scorer with the configured factor floor.
func (c *GraphConfig) Scorer() similarity.Scorer {
	s := similarity.DefaultScorer()
	s.Floor = c.FactorFloor
	return s
}

// LayoutConfig holds the force simulation constants. Width and Height are
// the initial canvas; clients resize it at runtime.
type LayoutConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Width          float64       `yaml:"width"`
	Height         float64       `yaml:"height"`
	TickInterval   time.Duration `yaml:"tick_interval"`
	NodeRadius     float64       `yaml:"node_radius"`
	Padding        float64       `yaml:"padding"`
	Seed           uint64        `yaml:"seed"`
	CenterStrength float64       `yaml:"center_strength"`
	Repulsion      float64       `yaml:"repulsion"`
	SpringLength   float64       `yaml:"spring_length"`
	SpringStrength float64       `yaml:"spring_strength"`
	Damping        float64       `yaml:"damping"`
	FrameRate      float64       `yaml:"frame_rate"`
}

// Validate validates the layout configuration.
func (c *LayoutConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Width, validation.Min(0.0)),
		validation.Field(&c.Height, validation.Min(0.0)),
		validation.Field(&c.TickInterval, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.NodeRadius, validation.Min(0.0)),
		validation.Field(&c.Padding, validation.Min(0.0)),
		validation.Field(&c.Damping, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&c.FrameRate, validation.Min(0.0)),
	)
}

// EngineConfig converts the section into simulator constants.
func (c *LayoutConfig) EngineConfig() layout.Config {
	cfg := layout.DefaultConfig()
	cfg.Canvas = layout.Size{Width: c.Width, Height: c.Height}
	cfg.TickInterval = c.TickInterval
	cfg.NodeRadius = c.NodeRadius
	cfg.Padding = c.Padding
	cfg.Seed = c.Seed
	cfg.CenterStrength = c.CenterStrength
	cfg.Repulsion = c.Repulsion
	cfg.SpringLength = c.SpringLength
	cfg.SpringStrength = c.SpringStrength
	cfg.Damping = c.Damping
	return cfg
}

// RebuildConfig controls how change notifications turn into rebuilds.
type RebuildConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

// Validate validates the rebuild configuration.
func (c *RebuildConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Debounce, validation.Min(time.Duration(0))),
	)
}

// MetricsConfig holds Prometheus exposition settings.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// Validate validates the metrics configuration.
func (c *MetricsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Namespace, validation.When(c.Enabled, validation.Required)),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	lc := layout.DefaultConfig()
	bc := builder.DefaultConfig()
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Vault: VaultConfig{
			Path: "./vault",
		},
		SQLite: SQLiteConfig{
			Path: "./tagweave.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Graph: GraphConfig{
			SimilarityThreshold: bc.SimilarityThreshold,
			FactorFloor:         similarity.FactorFloor,
			SharedRootWeight:    bc.SharedRootWeight,
			GeoMaxDistanceM:     bc.GeoMaxDistance,
			RootTagKey:          bc.RootTagKey,
		},
		Layout: LayoutConfig{
			Enabled:        true,
			Width:          lc.Canvas.Width,
			Height:         lc.Canvas.Height,
			TickInterval:   lc.TickInterval,
			NodeRadius:     lc.NodeRadius,
			Padding:        lc.Padding,
			Seed:           lc.Seed,
			CenterStrength: lc.CenterStrength,
			Repulsion:      lc.Repulsion,
			SpringLength:   lc.SpringLength,
			SpringStrength: lc.SpringStrength,
			Damping:        lc.Damping,
			FrameRate:      10,
		},
		Rebuild: RebuildConfig{
			Debounce: 250 * time.Millisecond,
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "tagweave",
		},
	}
}
