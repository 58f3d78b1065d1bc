package internal

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config *Config
	// mcpOnly switches Run into MCP stdio mode: no HTTP server, no
	// spool watcher, no sweeper.
	mcpOnly bool
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithMCPMode makes Run serve the MCP stdio transport instead of the
// long-running capture service.
func WithMCPMode() Option {
	return func(a *application) {
		a.mcpOnly = true
	}
}
