package config

const (
	defaultConfigLocation = "~/.config/labtrace/config.toml"
	defaultDataDir        = "~/.local/share/labtrace/data"
	defaultLogDir         = "~/.local/share/labtrace/logs"
	defaultOperator       = "system"
	defaultPriority       = "normal"
	defaultLogFormat      = "console"
	defaultLogLevel       = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Audit: Audit{
			Operator: defaultOperator,
		},
		Workflow: Workflow{
			DefaultPriority: defaultPriority,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
