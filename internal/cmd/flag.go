package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type commandLineFlag struct {
	name, shorthand, defaultValue, usage string
	// viperKey binds the flag to a configuration key.
	viperKey string
	isBool   bool
	required bool
}

var (
	configFlag = commandLineFlag{
		name:      "config",
		shorthand: "c",
		usage:     "config file (default is $XDG_CONFIG_HOME/eddlicense/config.yaml)",
	}
	envFileFlag = commandLineFlag{
		name:  "env-file",
		usage: "dotenv file loaded before the environment is read",
	}
	homeFlag = commandLineFlag{
		name:  "home",
		usage: "application home directory holding config and data",
	}
	quietFlag = commandLineFlag{
		name:      "quiet",
		shorthand: "q",
		usage:     "suppress log output",
		isBool:    true,
	}
	debugFlag = commandLineFlag{
		name:     "debug",
		usage:    "enable debug logging",
		viperKey: "debug",
		isBool:   true,
	}
	hostFlag = commandLineFlag{
		name:      "host",
		shorthand: "s",
		usage:     "admin server host (default 127.0.0.1)",
		viperKey:  "server.host",
	}
	portFlag = commandLineFlag{
		name:      "port",
		shorthand: "p",
		usage:     "admin server port (default 8080)",
		viperKey:  "server.port",
	}
	refreshFlag = commandLineFlag{
		name:   "refresh",
		usage:  "drop cached update checks first",
		isBool: true,
	}
)

var commonFlags = []commandLineFlag{configFlag, envFileFlag, homeFlag, quietFlag, debugFlag}

func initFlags(cmd *cobra.Command, addFlags ...commandLineFlag) {
	for _, flag := range append(commonFlags, addFlags...) {
		if flag.isBool {
			cmd.Flags().BoolP(flag.name, flag.shorthand, flag.defaultValue == "true", flag.usage)
		} else {
			cmd.Flags().StringP(flag.name, flag.shorthand, flag.defaultValue, flag.usage)
		}
		if flag.required {
			if err := cmd.MarkFlagRequired(flag.name); err != nil {
				fmt.Printf("failed to mark flag %s as required: %v\n", flag.name, err)
			}
		}
	}
}

// bindFlags binds the flags carrying a configuration key to v. Unset flags
// leave the file, environment and default values in place.
func bindFlags(v *viper.Viper, cmd *cobra.Command, flags ...commandLineFlag) error {
	for _, flag := range append(commonFlags, flags...) {
		if flag.viperKey == "" {
			continue
		}
		if err := v.BindPFlag(flag.viperKey, cmd.Flags().Lookup(flag.name)); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", flag.name, err)
		}
	}
	return nil
}
