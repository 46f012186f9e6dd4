package config

import "github.com/spf13/pflag"

// CliConfig holds the command line arguments.
type CliConfig struct {
	ConfigFile string
	EnvFile    string
	Debug      bool
}

// RegisterFlags binds the command line arguments to fs.
func (c *CliConfig) RegisterFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.ConfigFile, "config", "", "Path to a YAML config file")
	fs.StringVar(&c.EnvFile, "env-file", ".env", "Path to a dotenv file; ignored if missing")
	fs.BoolVarP(&c.Debug, "debug", "d", false, "Enable debug mode")
}
