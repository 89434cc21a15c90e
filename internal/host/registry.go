package host

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/sellcomet/eddlicense/internal/cmn/logger"
	"github.com/sellcomet/eddlicense/internal/cmn/logger/tag"
)

// Event names dispatched by the admin host.
const (
	EventAdminInit         = "admin_init"
	EventAdminNotices      = "admin_notices"
	EventWeeklyScheduled   = "edd_weekly_scheduled_events"
	EventSettingsTabTop    = "edd_settings_tab_top"
	EventAjaxActivate      = "wp_ajax_sellcomet_activate_license"
	EventAjaxDeactivate    = "wp_ajax_sellcomet_deactivate_license"
	pluginUpdateMessageTag = "in_plugin_update_message-"
)

// DefaultPriority is the priority hooks get unless they ask otherwise.
const DefaultPriority = 10

// PluginUpdateMessageEvent returns the event fired while rendering the
// plugin row of plugin.
func PluginUpdateMessageEvent(plugin string) string {
	return pluginUpdateMessageTag + plugin
}

// AjaxEvent returns the event fired for an admin-ajax action.
func AjaxEvent(action string) string {
	return "wp_ajax_" + action
}

// Event is the payload handed to hooks. Request is nil for scheduled events;
// Render and Out are only set while a page is being rendered.
type Event struct {
	Name    string
	Request *Request
	Render  *RenderContext
	Out     io.Writer
	// Tab is the active settings tab for EventSettingsTabTop.
	Tab string
}

// Hook is a callback bound to an event.
type Hook func(ctx context.Context, ev *Event) error

type hookEntry struct {
	name     string
	priority int
	seq      int
	fn       Hook
}

// Registry binds hooks to event names. It is built per request and is not
// safe for concurrent registration.
type Registry struct {
	hooks map[string][]hookEntry
	seq   int
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{hooks: make(map[string][]hookEntry)}
}

// Add binds fn to event. Lower priorities run first; equal priorities run in
// the order they were added.
func (r *Registry) Add(event string, priority int, name string, fn Hook) {
	r.seq++
	r.hooks[event] = append(r.hooks[event], hookEntry{
		name:     name,
		priority: priority,
		seq:      r.seq,
		fn:       fn,
	})
	sort.SliceStable(r.hooks[event], func(i, j int) bool {
		a, b := r.hooks[event][i], r.hooks[event][j]
		if a.priority != b.priority {
			return a.priority < b.priority
		}
		return a.seq < b.seq
	})
}

// Has reports whether any hook is bound to event.
func (r *Registry) Has(event string) bool {
	return len(r.hooks[event]) > 0
}

// Do runs the hooks bound to ev.Name. A failing hook does not keep the
// others from running; their errors are joined. Dispatch stops once a hook
// terminates the request.
func (r *Registry) Do(ctx context.Context, ev *Event) error {
	var errs []error
	for _, h := range r.hooks[ev.Name] {
		if ev.Request != nil && ev.Request.Terminated() {
			break
		}
		logger.Debug(ctx, "Running hook", tag.Event(ev.Name), tag.Hook(h.name))
		if err := h.fn(ctx, ev); err != nil {
			logger.Warn(ctx, "Hook failed", tag.Event(ev.Name), tag.Hook(h.name), tag.Error(err))
			errs = append(errs, fmt.Errorf("hook %s on %s: %w", h.name, ev.Name, err))
		}
	}
	return errors.Join(errs...)
}
