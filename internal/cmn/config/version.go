package config

var (
	// Version is the application version, set at build time via ldflags
	Version = "dev"
	// AppName is the human-readable application name
	AppName = "EDD License"
	// AppSlug is the lowercase application identifier used in paths, env
	// prefixes and commands
	AppSlug = "eddlicense"
)
