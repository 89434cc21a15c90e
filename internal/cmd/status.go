package cmd

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/sellcomet/eddlicense/internal/license"
)

func Status() *cobra.Command {
	return NewCommand(
		&cobra.Command{
			Use:   "status [flags]",
			Short: "List the configured products and their stored license state",
			Long: `Print one line per configured product: identity, version, the stored key
(masked), the last status reported by the licensing server and whether beta
releases are enabled. No request is sent to the licensing server.
`,
			Args: cobra.NoArgs,
		}, nil, runStatus,
	)
}

func runStatus(ctx *Context, _ []string) error {
	rt, err := ctx.NewRuntime()
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	set, err := rt.Loader.Load(ctx)
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(ctx.Out())
	t.AppendHeader(statusHeader)
	for _, client := range set.Clients {
		rec, err := client.Record(ctx)
		if err != nil {
			return err
		}
		beta, err := license.HasBetaSupport(ctx, rt.Store, client.ShortName())
		if err != nil {
			return err
		}
		t.AppendRow(table.Row{client.ShortName(), client.ItemName(), client.Version(), maskKey(rec.Key), statusOf(rec), beta})
	}
	t.Render()
	return nil
}

var statusHeader = table.Row{"Product", "Name", "Version", "Key", "Status", "Beta"}

func Updates() *cobra.Command {
	return NewCommand(
		&cobra.Command{
			Use:   "updates [flags]",
			Short: "Check the licensing server for new versions",
			Long: `Ask the licensing server for the latest version of every configured product.

Answers are cached; pass --refresh to drop the cache first. The license key is
only sent for products whose last known status is valid.
`,
			Args: cobra.NoArgs,
		}, []commandLineFlag{refreshFlag}, runUpdates,
	)
}

func runUpdates(ctx *Context, _ []string) error {
	rt, err := ctx.NewRuntime()
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	if refresh, _ := ctx.Command.Flags().GetBool(refreshFlag.name); refresh {
		if err := rt.Updaters.Invalidate(ctx); err != nil {
			return err
		}
	}

	set, err := rt.Loader.Load(ctx)
	if err != nil {
		return err
	}
	for _, client := range set.Clients {
		if err := client.AutoUpdater(ctx); err != nil {
			return err
		}
	}

	t := table.NewWriter()
	t.SetOutputMirror(ctx.Out())
	t.AppendHeader(updatesHeader)
	var failed int
	for _, u := range rt.Updaters.Updaters() {
		args := u.Args()
		entry, err := u.Check(ctx)
		if err != nil {
			failed++
			t.AppendRow(table.Row{args.ItemName, args.Version, "-", "error: " + err.Error()})
			continue
		}
		t.AppendRow(table.Row{args.ItemName, args.Version, entry.Info.NewVersion, entry.UpdateAvailable})
	}
	t.Render()
	if failed > 0 {
		return fmt.Errorf("%d update checks failed", failed)
	}
	return nil
}

var updatesHeader = table.Row{"Product", "Current", "Latest", "Update"}

func Beta() *cobra.Command {
	return NewCommand(
		&cobra.Command{
			Use:   "beta [flags] <product> <on|off>",
			Short: "Opt a product in or out of beta releases",
			Args:  cobra.ExactArgs(2),
		}, nil, runBeta,
	)
}

func runBeta(ctx *Context, args []string) error {
	var enabled bool
	switch strings.ToLower(args[1]) {
	case "on", "true", "yes":
		enabled = true
	case "off", "false", "no":
	default:
		return fmt.Errorf("expected on or off, got %q", args[1])
	}

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
	if err := license.SetBetaSupport(ctx, rt.Store, client.ShortName(), enabled); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(ctx.Out(), "%s: beta %t\n", client.ShortName(), enabled)
	return nil
}

func statusOf(rec license.Record) string {
	if s := rec.Details.Status(); s != "" {
		return s
	}
	if rec.Key == "" {
		return "inactive"
	}
	return "unknown"
}

// maskKey keeps the last four characters of key.
func maskKey(key string) string {
	if key == "" {
		return "-"
	}
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return strings.Repeat("*", len(key)-4) + key[len(key)-4:]
}
