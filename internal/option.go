package internal

// Mode selects the surface the application serves.
type Mode int

const (
	// ModeServe runs the HTTP API, SSE stream and layout engine.
	ModeServe Mode = iota
	// ModeMCP serves graph tools over stdio.
	ModeMCP
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config  *Config
	mode    Mode
	version string
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithMode selects the serving mode. The default is ModeServe.
func WithMode(m Mode) Option {
	return func(a *application) {
		a.mode = m
	}
}

// WithVersion sets the version reported by the MCP server.
func WithVersion(v string) Option {
	return func(a *application) {
		a.version = v
	}
}
