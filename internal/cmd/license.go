package cmd

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/sellcomet/eddlicense/internal/host"
	"github.com/sellcomet/eddlicense/internal/license"
)

func Activate() *cobra.Command {
	return NewCommand(
		&cobra.Command{
			Use:   "activate [flags] <product> <license-key>",
			Short: "Activate a license key for a product",
			Long: `Activate a license key with the licensing server and store the answer.

The product is named by its identity (e.g. edd-stripe-pro) or by its item name.
A product whose stored license is already valid is left untouched.

Example:
  eddlicense activate edd-stripe-pro 3f1c0e2a9b
`,
			Args: cobra.ExactArgs(2),
		}, nil, runActivate,
	)
}

func runActivate(ctx *Context, args []string) error {
	rt, err := ctx.NewRuntime()
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	set, err := rt.Loader.Load(ctx)
	if err != nil {
		return err
	}
	client, err := set.Lookup(args[0])
	if err != nil {
		return err
	}

	req, err := rt.cliRequest(client.ShortName(), url.Values{license.KeyField(client.ShortName()): {args[1]}})
	if err != nil {
		return err
	}
	outcome, err := client.ActivateLicense(ctx, req)
	if err != nil {
		return err
	}
	return report(ctx, client, outcome, req)
}

func Deactivate() *cobra.Command {
	return NewCommand(
		&cobra.Command{
			Use:   "deactivate [flags] <product>",
			Short: "Deactivate the stored license of a product",
			Long: `Deactivate the stored license key with the licensing server.

After the server answered, the stored key and status are removed whatever
the answer was.

Example:
  eddlicense deactivate edd-stripe-pro
`,
			Args: cobra.ExactArgs(1),
		}, nil, runDeactivate,
	)
}

func runDeactivate(ctx *Context, args []string) error {
	rt, err := ctx.NewRuntime()
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	set, err := rt.Loader.Load(ctx)
	if err != nil {
		return err
	}
	client, err := set.Lookup(args[0])
	if err != nil {
		return err
	}

	req, err := rt.cliRequest(client.ShortName(), nil)
	if err != nil {
		return err
	}
	outcome, err := client.DeactivateLicense(ctx, req)
	if err != nil {
		return err
	}
	return report(ctx, client, outcome, req)
}

func Check() *cobra.Command {
	return NewCommand(
		&cobra.Command{
			Use:   "check [flags] [product]",
			Short: "Refresh the stored license status from the licensing server",
			Long: `Run the weekly license check now, for one product or for all of them.

Products without a stored key are skipped.

Example:
  eddlicense check
  eddlicense check edd-stripe-pro
`,
			Args: cobra.MaximumNArgs(1),
		}, nil, runCheck,
	)
}

func runCheck(ctx *Context, args []string) error {
	rt, err := ctx.NewRuntime()
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	set, err := rt.Loader.Load(ctx)
	if err != nil {
		return err
	}
	clients := set.Clients
	if len(args) == 1 {
		client, err := set.Lookup(args[0])
		if err != nil {
			return err
		}
		clients = []*license.Client{client}
	}

	var failed int
	for _, client := range clients {
		outcome, err := client.WeeklyLicenseCheck(ctx)
		if err != nil {
			return err
		}
		if outcomeError(outcome) != nil {
			failed++
		}
		rec, err := client.Record(ctx)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(ctx.Out(), "%s: %s %s\n", client.ShortName(), outcome, statusOf(rec))
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d checks failed", failed, len(clients))
	}
	return nil
}

// report prints the outcome and the server answer, if any.
func report(ctx *Context, client *license.Client, outcome license.Outcome, req *host.Request) error {
	_, _ = fmt.Fprintf(ctx.Out(), "%s: %s\n", client.ShortName(), outcome)
	if req.Terminated() {
		_, _ = fmt.Fprintf(ctx.Out(), "%s\n", req.Output())
	}
	return outcomeError(outcome)
}
