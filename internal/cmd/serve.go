package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sellcomet/eddlicense/internal/cmn/logger"
	"github.com/sellcomet/eddlicense/internal/cmn/logger/tag"
	"github.com/sellcomet/eddlicense/internal/extensions"
	"github.com/sellcomet/eddlicense/internal/host"
	"github.com/sellcomet/eddlicense/internal/scheduler"
	"github.com/sellcomet/eddlicense/internal/service/admin"
)

func Serve() *cobra.Command {
	return NewCommand(
		&cobra.Command{
			Use:   "serve [flags]",
			Short: "Run the admin server and the weekly license check",
			Long: `Start the admin HTTP server hosting the license screens and, unless
scheduler.enabled is false, the cron job running the weekly license check.

Flags:
  --host string   Host address to bind the admin server to (default: 127.0.0.1)
  --port int      Port number for the admin server to listen on (default: 8080)

Example:
  eddlicense serve --host=0.0.0.0 --port=8080

This process runs in the foreground until terminated.
`,
			Args: cobra.NoArgs,
		}, []commandLineFlag{hostFlag, portFlag}, runServe,
	)
}

func runServe(ctx *Context, _ []string) error {
	rt, err := ctx.NewRuntime()
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	signalCtx, stop := signal.NotifyContext(ctx.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := admin.New(signalCtx, ctx.Config, rt.Loader, rt.Tokens,
		admin.WithMetrics(rt.Registry),
		admin.WithUpdates(rt.Updaters),
	)

	var sched *scheduler.Scheduler
	if ctx.Config.Scheduler.Enabled {
		sched, err = scheduler.New(registrySource(rt.Loader), ctx.Config.Scheduler.WeeklyCheck)
		if err != nil {
			return fmt.Errorf("failed to initialize scheduler: %w", err)
		}
	}

	var wg sync.WaitGroup
	errCh := make(chan error, 2)
	serviceCtx, cancel := context.WithCancel(signalCtx)
	defer cancel()

	if sched != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Info(serviceCtx, "Scheduler initialization", tag.Schedule(ctx.Config.Scheduler.WeeklyCheck))
			if err := sched.Start(serviceCtx); err != nil {
				errCh <- fmt.Errorf("scheduler failed: %w", err)
				cancel()
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info(serviceCtx, "Server initialization", tag.Addr(fmt.Sprintf("%s:%d", ctx.Config.Server.Host, ctx.Config.Server.Port)))
		if err := server.Serve(serviceCtx); err != nil {
			errCh <- fmt.Errorf("server failed: %w", err)
			cancel()
		}
	}()

	wg.Wait()
	close(errCh)
	return <-errCh
}

// registrySource loads fresh license clients for every scheduled run.
func registrySource(loader *extensions.Loader) scheduler.Source {
	return func(ctx context.Context) (*host.Registry, error) {
		set, err := loader.Load(ctx)
		if err != nil {
			return nil, err
		}
		return set.Registry, nil
	}
}
