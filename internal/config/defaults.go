package config

const (
	defaultDataDir                = "~/.local/share/bindery"
	defaultLogDir                 = "~/.local/share/bindery/logs"
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
	defaultFileServiceTimeout     = 30
	defaultLocalityRequestTimeout = 5
	defaultLauncherEnabled        = true
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		FileService: FileService{
			RequestTimeout: defaultFileServiceTimeout,
		},
		Locality: Locality{
			RequestTimeout: defaultLocalityRequestTimeout,
		},
		Launcher: Launcher{
			Enabled: defaultLauncherEnabled,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
