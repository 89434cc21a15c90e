package admin

import (
	"bytes"
	"html/template"
	"net/http"
	"net/url"

	"github.com/sellcomet/eddlicense/internal/cmn/logger"
	"github.com/sellcomet/eddlicense/internal/cmn/logger/tag"
	"github.com/sellcomet/eddlicense/internal/extensions"
	"github.com/sellcomet/eddlicense/internal/host"
	"github.com/sellcomet/eddlicense/internal/license"
)

// newRequest converts r into a hook request for the authenticated user.
func (s *Server) newRequest(r *http.Request) (*host.Request, error) {
	if err := r.ParseForm(); err != nil {
		return nil, err
	}
	user, _, _ := r.BasicAuth()
	req := host.NewRequest(user, r.PostForm, r.URL.Query())
	req.Language = s.language(r)
	return req, nil
}

// begin parses the request, loads the clients and runs admin_init.
func (s *Server) begin(w http.ResponseWriter, r *http.Request) (*host.Request, *extensions.Set, bool) {
	ctx := r.Context()
	req, err := s.newRequest(r)
	if err != nil {
		http.Error(w, "malformed request", http.StatusBadRequest)
		return nil, nil, false
	}
	set, err := s.loader.Load(ctx)
	if err != nil {
		logger.Error(ctx, "Failed to load licensed extensions", tag.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return nil, nil, false
	}
	if err := set.Registry.Do(ctx, &host.Event{Name: host.EventAdminInit, Request: req}); err != nil {
		logger.Error(ctx, "admin_init failed", tag.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return nil, nil, false
	}
	return req, set, true
}

// writeTerminated writes the JSON output of a request a hook has claimed.
func writeTerminated(w http.ResponseWriter, req *host.Request) bool {
	if !req.Terminated() {
		return false
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_, _ = w.Write(req.Output())
	return true
}

func (s *Server) handleAjax(w http.ResponseWriter, r *http.Request) {
	req, set, ok := s.begin(w, r)
	if !ok {
		return
	}
	if writeTerminated(w, req) {
		return
	}

	ctx := r.Context()
	if action := req.Value("action"); action != "" {
		if err := set.Registry.Do(ctx, &host.Event{Name: host.AjaxEvent(action), Request: req}); err != nil {
			logger.Error(ctx, "Ajax action failed", tag.Action(action), tag.Error(err))
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
	}
	if writeTerminated(w, req) {
		return
	}
	// Unhandled ajax actions answer "0".
	_, _ = w.Write([]byte("0"))
}

func (s *Server) handleSettingsSave(w http.ResponseWriter, r *http.Request) {
	req, _, ok := s.begin(w, r)
	if !ok {
		return
	}
	if writeTerminated(w, req) {
		return
	}

	q := url.Values{}
	q.Set("page", valueOr(req.Value("page"), s.config.Core.AdminPage))
	q.Set("tab", valueOr(req.Value("tab"), licensesTab))
	q.Set("settings-updated", "true")
	http.Redirect(w, r, adminPath+"?"+q.Encode(), http.StatusSeeOther)
}

func (s *Server) handleAdminPage(w http.ResponseWriter, r *http.Request) {
	req, set, ok := s.begin(w, r)
	if !ok {
		return
	}
	if writeTerminated(w, req) {
		return
	}

	ctx := r.Context()
	rc := host.NewRenderContext(req.Language)
	notices, err := s.render(r, set, &host.Event{Name: host.EventAdminNotices, Request: req, Render: rc})
	if err != nil {
		s.fail(w, r, err)
		return
	}

	page := adminPageData{
		Title:   s.config.Core.AdminPage,
		Notices: notices,
		Updated: req.Value("settings-updated") == "true",
	}
	if req.Value("page") == s.config.Core.AdminPage {
		tab := valueOr(req.Value("tab"), licensesTab)
		page.Tab = tab
		page.Help, err = s.render(r, set, &host.Event{Name: host.EventSettingsTabTop, Request: req, Render: rc, Tab: tab})
		if err != nil {
			s.fail(w, r, err)
			return
		}
		if tab == licensesTab {
			for _, c := range set.Clients {
				form, err := s.licenseForm(r, req, c, tab)
				if err != nil {
					s.fail(w, r, err)
					return
				}
				page.Forms = append(page.Forms, form)
			}
		}
	}

	logger.Debug(ctx, "Rendering admin page", tag.Count(len(page.Forms)))
	s.execute(w, r, adminPageTemplate, page)
}

func (s *Server) licenseForm(r *http.Request, req *host.Request, c *license.Client, tab string) (licenseForm, error) {
	rec, err := c.Record(r.Context())
	if err != nil {
		return licenseForm{}, err
	}
	id := c.ShortName()
	nonce, err := s.tokens.Issue(license.NonceField(id), req.User)
	if err != nil {
		return licenseForm{}, err
	}
	status := rec.Details.Status()
	if status == "" {
		status = "inactive"
	}
	return licenseForm{
		Action:          adminPath + "?" + url.Values{"page": {s.config.Core.AdminPage}, "tab": {tab}}.Encode(),
		ItemName:        c.ItemName(),
		Version:         c.Version(),
		KeyField:        license.KeyField(id),
		Key:             rec.Key,
		NonceField:      license.NonceField(id),
		Nonce:           nonce,
		DeactivateField: license.DeactivateField(id),
		Status:          status,
		Valid:           rec.Details.IsValid(),
	}, nil
}

func (s *Server) handlePlugins(w http.ResponseWriter, r *http.Request) {
	req, set, ok := s.begin(w, r)
	if !ok {
		return
	}
	if writeTerminated(w, req) {
		return
	}

	ctx := r.Context()
	rc := host.NewRenderContext(req.Language)
	notices, err := s.render(r, set, &host.Event{Name: host.EventAdminNotices, Request: req, Render: rc})
	if err != nil {
		s.fail(w, r, err)
		return
	}

	page := pluginsPageData{Notices: notices}
	for _, c := range set.Clients {
		row := pluginRow{ItemName: c.ItemName(), Version: c.Version()}
		if s.updates != nil {
			if u, ok := s.updates.Get(c.ShortName()); ok {
				entry, err := u.Check(ctx)
				if err != nil {
					logger.Warn(ctx, "Update check failed", tag.Product(c.ShortName()), tag.Error(err))
				} else if entry.UpdateAvailable {
					row.NewVersion = entry.Info.NewVersion
				}
			}
		}
		// The update message hook only runs on rows offering an update.
		if row.NewVersion != "" {
			row.Message, err = s.render(r, set, &host.Event{
				Name:    host.PluginUpdateMessageEvent(c.ShortName()),
				Request: req,
				Render:  rc,
			})
			if err != nil {
				s.fail(w, r, err)
				return
			}
		}
		page.Rows = append(page.Rows, row)
	}
	s.execute(w, r, pluginsPageTemplate, page)
}

// render runs ev and returns what its hooks wrote.
func (s *Server) render(r *http.Request, set *extensions.Set, ev *host.Event) (template.HTML, error) {
	var buf bytes.Buffer
	ev.Out = &buf
	if err := set.Registry.Do(r.Context(), ev); err != nil {
		return "", err
	}
	// Hook output is HTML built with escaped values.
	return template.HTML(buf.String()), nil //nolint:gosec
}

func (s *Server) execute(w http.ResponseWriter, r *http.Request, tmpl *template.Template, data any) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	logger.Error(r.Context(), "Failed to render admin page", tag.URL(r.URL.Path), tag.Error(err))
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
