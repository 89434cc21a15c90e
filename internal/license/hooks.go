package license

import (
	"context"
	"io"

	"github.com/sellcomet/eddlicense/internal/host"
)

// Register binds the client's callbacks to the host events.
//
// A plain settings save runs admin_init for every extension on the page, so
// deactivation on admin_init only runs when the form carries this product's
// deactivate button.
func (c *Client) Register(reg *host.Registry) {
	name := func(cb string) string { return c.shortName + "." + cb }

	reg.Add(host.EventAdminInit, 0, name("auto_updater"), func(ctx context.Context, _ *host.Event) error {
		return c.AutoUpdater(ctx)
	})

	activate := func(ctx context.Context, ev *host.Event) error {
		_, err := c.ActivateLicense(ctx, ev.Request)
		return err
	}
	reg.Add(host.EventAdminInit, host.DefaultPriority, name("activate_license"), activate)
	reg.Add(host.EventAjaxActivate, host.DefaultPriority, name("activate_license"), activate)

	deactivate := func(ctx context.Context, ev *host.Event) error {
		_, err := c.DeactivateLicense(ctx, ev.Request)
		return err
	}
	reg.Add(host.EventAdminInit, host.DefaultPriority, name("deactivate_license"), func(ctx context.Context, ev *host.Event) error {
		if ev.Request == nil || !ev.Request.Form.Has(DeactivateField(c.shortName)) {
			return nil
		}
		return deactivate(ctx, ev)
	})
	reg.Add(host.EventAjaxDeactivate, host.DefaultPriority, name("deactivate_license"), deactivate)

	reg.Add(host.EventWeeklyScheduled, host.DefaultPriority, name("weekly_license_check"), func(ctx context.Context, _ *host.Event) error {
		_, err := c.WeeklyLicenseCheck(ctx)
		return err
	})

	reg.Add(host.EventAdminNotices, host.DefaultPriority, name("notices"), func(ctx context.Context, ev *host.Event) error {
		if ev.Render == nil {
			return nil
		}
		return c.Notices(ctx, ev.Request, ev.Render, writer(ev))
	})

	reg.Add(host.PluginUpdateMessageEvent(c.shortName), host.DefaultPriority, name("plugin_row_license_missing"), func(ctx context.Context, ev *host.Event) error {
		if ev.Render == nil {
			return nil
		}
		return c.PluginRowLicenseMissing(ctx, ev.Render, writer(ev))
	})

	reg.Add(host.EventSettingsTabTop, host.DefaultPriority, name("license_help_text"), func(_ context.Context, ev *host.Event) error {
		if ev.Render == nil {
			return nil
		}
		return c.HelpText(ev.Render, ev.Tab, writer(ev))
	})
}

func writer(ev *host.Event) io.Writer {
	if ev.Out == nil {
		return io.Discard
	}
	return ev.Out
}
