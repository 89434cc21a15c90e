package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sellcomet/eddlicense/internal/cmn/config"
	"github.com/sellcomet/eddlicense/internal/cmn/logger"
	"github.com/sellcomet/eddlicense/internal/cmn/logger/tag"
)

// Context holds the configuration for a command.
type Context struct {
	context.Context

	Command *cobra.Command
	Flags   []commandLineFlag
	Config  *config.Config
	Quiet   bool
}

// Out is where command results are printed.
func (c *Context) Out() io.Writer {
	return c.Command.OutOrStdout()
}

// NewContext loads the configuration, sets up the logger and logs any
// warnings collected while loading.
func NewContext(cmd *cobra.Command, flags []commandLineFlag) (*Context, error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	v := viper.New()
	if err := bindFlags(v, cmd, flags...); err != nil {
		return nil, err
	}

	quiet, err := cmd.Flags().GetBool(quietFlag.name)
	if err != nil {
		return nil, fmt.Errorf("failed to get quiet flag: %w", err)
	}

	var loaderOpts []config.ConfigLoaderOption
	if cfgPath, _ := cmd.Flags().GetString(configFlag.name); cfgPath != "" {
		loaderOpts = append(loaderOpts, config.WithConfigFile(cfgPath))
	}
	if envFile, _ := cmd.Flags().GetString(envFileFlag.name); envFile != "" {
		loaderOpts = append(loaderOpts, config.WithEnvFile(envFile))
	}
	if home, _ := cmd.Flags().GetString(homeFlag.name); home != "" {
		loaderOpts = append(loaderOpts, config.WithAppHomeDir(home))
	}

	cfg, err := config.NewConfigLoader(v, loaderOpts...).Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	var opts []logger.Option
	if cfg.Core.Debug {
		opts = append(opts, logger.WithDebug())
	}
	if quiet {
		opts = append(opts, logger.WithQuiet())
	}
	if cfg.Core.LogFormat != "" {
		opts = append(opts, logger.WithFormat(cfg.Core.LogFormat))
	}
	ctx = logger.WithLogger(ctx, logger.NewLogger(opts...))

	for _, w := range cfg.Warnings {
		logger.Warn(ctx, w)
	}
	if cfg.Paths.ConfigFileUsed != "" {
		logger.Debug(ctx, "Configuration loaded", tag.File(cfg.Paths.ConfigFileUsed))
	}

	return &Context{
		Context: ctx,
		Command: cmd,
		Flags:   flags,
		Config:  cfg,
		Quiet:   quiet,
	}, nil
}

// NewCommand wires flags and the shared Context into cmd.
func NewCommand(cmd *cobra.Command, flags []commandLineFlag, runFunc func(ctx *Context, args []string) error) *cobra.Command {
	initFlags(cmd, flags...)
	cmd.SilenceUsage = true

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		ctx, err := NewContext(cmd, flags)
		if err != nil {
			return fmt.Errorf("initialization error: %w", err)
		}
		if err := runFunc(ctx, args); err != nil {
			logger.Error(ctx, "Command failed", tag.Error(err))
			return err
		}
		return nil
	}
	return cmd
}
