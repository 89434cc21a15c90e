package license

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/sellcomet/eddlicense/internal/host"
	"github.com/sellcomet/eddlicense/internal/updater"
)

const (
	testItemName  = "Easy Digital Downloads - Stripe Pro"
	testShortName = "edd-stripe-pro"
	testNonce     = "good-nonce"
	testUser      = "admin"
)

type fakeTokens struct {
	actions []string
}

func (f *fakeTokens) Verify(token, action, user string) bool {
	f.actions = append(f.actions, action)
	return token == testNonce && user == testUser
}

type fakeUpdates struct {
	invalidated int
	err         error
}

func (f *fakeUpdates) Invalidate(context.Context) error {
	f.invalidated++
	return f.err
}

type fakeUpdaters struct {
	apiURL string
	args   []updater.Args
}

func (f *fakeUpdaters) Register(_ context.Context, apiURL string, args updater.Args) error {
	f.apiURL = apiURL
	f.args = append(f.args, args)
	return nil
}

type recordingRemote struct {
	calls  []RemoteRequest
	answer string
	err    error
}

func (r *recordingRemote) Call(_ context.Context, req RemoteRequest) (Details, error) {
	r.calls = append(r.calls, req)
	if r.err != nil {
		return nil, r.err
	}
	return DecodeDetails([]byte(r.answer)), nil
}

type testEnv struct {
	store    *MemoryStore
	remote   *recordingRemote
	tokens   *fakeTokens
	updates  *fakeUpdates
	updaters *fakeUpdaters
	deps     Dependencies
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		store:    NewMemoryStore(),
		remote:   &recordingRemote{answer: `{"success":true,"license":"valid"}`},
		tokens:   &fakeTokens{},
		updates:  &fakeUpdates{},
		updaters: &fakeUpdaters{},
	}
	env.deps = Dependencies{
		Store:      env.store,
		Remote:     env.remote,
		Authorizer: host.Capabilities{testUser: {host.CapabilityManageShopSettings}, "editor": {"edit_posts"}},
		Tokens:     env.tokens,
		Site:       host.StaticSite{Home: "https://shop.example.com", Admin: "https://shop.example.com/wp-admin/"},
		Updates:    env.updates,
		Updaters:   env.updaters,
		APIURL:     "https://sellcomet.com/edd-sl-api/",
		Author:     "Sell Comet",
		AdminPage:  "sellcomet",
	}
	return env
}

func (e *testEnv) seed(t *testing.T, key, details string) {
	t.Helper()
	ctx := context.Background()
	if key != "" {
		raw, _ := json.Marshal(key)
		require.NoError(t, e.store.Set(ctx, Namespace(testShortName), fieldKey, raw))
	}
	if details != "" {
		require.NoError(t, e.store.Set(ctx, Namespace(testShortName), fieldDetails, json.RawMessage(details)))
	}
}

func (e *testEnv) client(t *testing.T) *Client {
	t.Helper()
	c, err := New(context.Background(), Product{Name: testItemName, Version: "1.0.0", File: "edd-stripe-pro/edd-stripe-pro.php"}, e.deps)
	require.NoError(t, err)
	return c
}

func activationRequest(fields map[string]string) *host.Request {
	form := url.Values{}
	for k, v := range fields {
		form.Set(k, v)
	}
	return host.NewRequest(testUser, form, nil)
}

func validActivation(key string) map[string]string {
	return map[string]string{
		NonceField(testShortName): testNonce,
		KeyField(testShortName):   key,
	}
}

func TestShortName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		want string
	}{
		{"Easy Digital Downloads - Stripe Pro", "edd-stripe-pro"},
		{"Easy Digital Downloads - PDF Invoices", "edd-pdf-invoices"},
		{"Sell Comet Widgets", "sell-comet-widgets"},
		{"edd-already-short", "edd-already-short"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := ShortName(tt.name)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, ShortName(tt.name), "derivation is deterministic")
			assert.Equal(t, got, ShortName(got), "derivation is idempotent")
			assert.NotContains(t, got, " ")
		})
	}
}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("LoadsStoredKeyWithoutNetwork", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		env.seed(t, " KEY-1 ", "")
		c := env.client(t)

		assert.Equal(t, "KEY-1", c.License())
		assert.Equal(t, testShortName, c.ShortName())
		assert.Empty(t, env.remote.calls)
	})

	t.Run("DefaultsToEmptyKey", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		assert.Empty(t, env.client(t).License())
	})

	t.Run("RequiresName", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		_, err := New(context.Background(), Product{Name: "  "}, env.deps)
		assert.Error(t, err)
	})
}

func TestActivateLicense(t *testing.T) {
	t.Parallel()

	t.Run("Success", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		c := env.client(t)
		req := activationRequest(validActivation("ABC123"))

		outcome, err := c.ActivateLicense(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, OutcomeActivated, outcome)

		require.Len(t, env.remote.calls, 1)
		assert.Equal(t, RemoteRequest{
			Action:   ActionActivate,
			License:  "ABC123",
			ItemName: testShortName,
			URL:      "https://shop.example.com",
		}, env.remote.calls[0])

		rec, err := c.Record(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "ABC123", rec.Key)
		assert.Equal(t, StatusValid, rec.Details.Status())
		assert.Equal(t, 1, env.updates.invalidated)
		assert.True(t, req.Terminated())
		assert.JSONEq(t, `{"success":true,"license":"valid"}`, string(req.Output()))
		assert.Equal(t, []string{NonceField(testShortName)}, env.tokens.actions)
	})

	t.Run("InvalidNonceLeavesStoreUntouched", func(t *testing.T) {
		t.Parallel()

		for _, fields := range []map[string]string{
			{KeyField(testShortName): "ABC123"},
			{KeyField(testShortName): "ABC123", NonceField(testShortName): "forged"},
		} {
			env := newTestEnv(t)
			env.seed(t, "OLD", `{"license":"expired"}`)
			before := env.store.Snapshot()

			outcome, err := env.client(t).ActivateLicense(context.Background(), activationRequest(fields))
			require.NoError(t, err)
			assert.Equal(t, OutcomeUnauthorized, outcome)
			assert.Equal(t, before, env.store.Snapshot())
			assert.Empty(t, env.remote.calls)
		}
	})

	t.Run("MissingCapabilityIsSilent", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		env.deps.Authorizer = host.Capabilities{}
		req := activationRequest(validActivation("ABC123"))

		outcome, err := env.client(t).ActivateLicense(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, OutcomeUnauthorized, outcome)
		assert.Empty(t, env.remote.calls)
		assert.False(t, req.Terminated())
	})

	t.Run("EmptyKeyClearsDetails", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		env.seed(t, "OLD", `{"license":"valid"}`)

		outcome, err := env.client(t).ActivateLicense(context.Background(), activationRequest(validActivation("")))
		require.NoError(t, err)
		assert.Equal(t, OutcomeCleared, outcome)

		rec, err := LoadRecord(context.Background(), env.store, testShortName)
		require.NoError(t, err)
		assert.Nil(t, rec.Details)
		assert.Equal(t, "OLD", rec.Key)
		assert.Empty(t, env.remote.calls)
	})

	t.Run("KeyEmptyAfterSanitizingKeepsDetails", func(t *testing.T) {
		t.Parallel()

		for _, key := range []string{"<b></b>", "   "} {
			env := newTestEnv(t)
			env.seed(t, "OLD", `{"license":"expired"}`)
			before := env.store.Snapshot()

			outcome, err := env.client(t).ActivateLicense(context.Background(), activationRequest(validActivation(key)))
			require.NoError(t, err)
			assert.Equal(t, OutcomeNoKey, outcome, key)
			assert.Equal(t, before, env.store.Snapshot(), key)
			assert.Empty(t, env.remote.calls, key)
		}
	})

	t.Run("DeactivationIntentAborts", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		fields := validActivation("ABC123")
		fields["edd-pdf-invoices_license_key_deactivate"] = "Deactivate"

		outcome, err := env.client(t).ActivateLicense(context.Background(), activationRequest(fields))
		require.NoError(t, err)
		assert.Equal(t, OutcomeDeactivationIntent, outcome)
		assert.Empty(t, env.remote.calls)
	})

	t.Run("AlreadyValidIsNoop", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		env.seed(t, "OLD", `{"license":"valid"}`)
		before := env.store.Snapshot()

		outcome, err := env.client(t).ActivateLicense(context.Background(), activationRequest(validActivation("NEW")))
		require.NoError(t, err)
		assert.Equal(t, OutcomeAlreadyValid, outcome)
		assert.Empty(t, env.remote.calls)
		assert.Equal(t, before, env.store.Snapshot())
	})

	t.Run("TransportFailureKeepsState", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		env.seed(t, "OLD", `{"license":"expired"}`)
		env.remote.err = errors.New("connection refused")
		before := env.store.Snapshot()
		req := activationRequest(validActivation("NEW"))

		outcome, err := env.client(t).ActivateLicense(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, OutcomeTransportFailed, outcome)
		assert.Equal(t, before, env.store.Snapshot())
		assert.Zero(t, env.updates.invalidated)
		assert.False(t, req.Terminated())
	})

	t.Run("SanitizesKey", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		_, err := env.client(t).ActivateLicense(context.Background(), activationRequest(validActivation(" <b>ABC</b>\t123\n")))
		require.NoError(t, err)
		require.Len(t, env.remote.calls, 1)
		assert.Equal(t, "ABC 123", env.remote.calls[0].License)
	})

	t.Run("NonJSONAnswerIsStoredAsNull", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		env.remote.answer = "<html>oops</html>"
		req := activationRequest(validActivation("ABC123"))

		outcome, err := env.client(t).ActivateLicense(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, OutcomeActivated, outcome)
		assert.Equal(t, "null", string(req.Output()))

		rec, err := LoadRecord(context.Background(), env.store, testShortName)
		require.NoError(t, err)
		assert.False(t, rec.Details.IsValid())
	})
}

func TestActivateLicense_EndToEnd(t *testing.T) {
	t.Parallel()

	var posted url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		posted = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"license":"valid"}`))
	}))
	t.Cleanup(server.Close)

	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	env := newTestEnv(t)
	env.deps.Remote = NewRemoteClient(server.URL, WithMetrics(metrics))
	env.deps.Metrics = metrics
	c := env.client(t)

	outcome, err := c.ActivateLicense(context.Background(), activationRequest(validActivation("ABC123")))
	require.NoError(t, err)
	assert.Equal(t, OutcomeActivated, outcome)

	assert.Equal(t, "activate_license", posted.Get("edd_action"))
	assert.Equal(t, "ABC123", posted.Get("license"))
	assert.Equal(t, testShortName, posted.Get("item_name"))
	assert.Equal(t, "https://shop.example.com", posted.Get("url"))

	rec, err := c.Record(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ABC123", rec.Key)
	assert.Equal(t, StatusValid, rec.Details.Status())
	assert.Equal(t, 1, env.updates.invalidated)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.requests.WithLabelValues("activate_license", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.outcomes.WithLabelValues("activate", "activated")))
}

func TestDeactivateLicense(t *testing.T) {
	t.Parallel()

	t.Run("SendsStoredKeyAndClearsRecord", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		env.seed(t, "STORED", `{"license":"valid"}`)
		env.remote.answer = `{"license":"failed"}`
		fields := validActivation("SUBMITTED")
		req := activationRequest(fields)

		outcome, err := env.client(t).DeactivateLicense(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, OutcomeDeactivated, outcome)

		require.Len(t, env.remote.calls, 1)
		assert.Equal(t, ActionDeactivate, env.remote.calls[0].Action)
		assert.Equal(t, "STORED", env.remote.calls[0].License)
		assert.Empty(t, env.store.Snapshot())
		assert.JSONEq(t, `{"license":"failed"}`, string(req.Output()))
	})

	t.Run("TransportFailureKeepsKeyAndDetails", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		env.seed(t, "STORED", `{"license":"valid"}`)
		env.remote.err = errors.New("connection reset by peer")
		before := env.store.Snapshot()
		req := activationRequest(validActivation(""))

		outcome, err := env.client(t).DeactivateLicense(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, OutcomeTransportFailed, outcome)
		assert.Equal(t, before, env.store.Snapshot())
		assert.False(t, req.Terminated())
	})

	t.Run("Unauthorized", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		env.seed(t, "STORED", `{"license":"valid"}`)
		req := host.NewRequest("editor", url.Values{NonceField(testShortName): {testNonce}}, nil)

		outcome, err := env.client(t).DeactivateLicense(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, OutcomeUnauthorized, outcome)
		assert.Empty(t, env.remote.calls)
	})
}

func TestWeeklyLicenseCheck(t *testing.T) {
	t.Parallel()

	t.Run("NoKeyMakesNoCall", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		outcome, err := env.client(t).WeeklyLicenseCheck(context.Background())
		require.NoError(t, err)
		assert.Equal(t, OutcomeNoKey, outcome)
		assert.Empty(t, env.remote.calls)
	})

	t.Run("OverwritesOnlyDetails", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		env.seed(t, "STORED", `{"license":"valid"}`)
		env.remote.answer = `{"license":"expired","expires":"2026-01-01 00:00:00"}`

		outcome, err := env.client(t).WeeklyLicenseCheck(context.Background())
		require.NoError(t, err)
		assert.Equal(t, OutcomeChecked, outcome)
		require.Len(t, env.remote.calls, 1)
		assert.Equal(t, ActionCheck, env.remote.calls[0].Action)
		assert.Equal(t, "STORED", env.remote.calls[0].License)

		rec, err := LoadRecord(context.Background(), env.store, testShortName)
		require.NoError(t, err)
		assert.Equal(t, "STORED", rec.Key)
		assert.Equal(t, StatusExpired, rec.Details.Status())
	})

	t.Run("ErrorStatusAnswersAreStored", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			name   string
			code   int
			body   string
			status string
			stored string
		}{
			{"Forbidden", http.StatusForbidden, `{"license":"disabled"}`, "disabled", `{"license":"disabled"}`},
			{"InternalServerError", http.StatusInternalServerError, "<html>fatal error</html>", "", "null"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				t.Parallel()

				server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
					w.WriteHeader(tt.code)
					_, _ = w.Write([]byte(tt.body))
				}))
				t.Cleanup(server.Close)

				metrics := NewMetrics(prometheus.NewRegistry())
				env := newTestEnv(t)
				env.seed(t, "STORED", `{"license":"valid"}`)
				env.deps.Remote = NewRemoteClient(server.URL, WithMetrics(metrics))

				outcome, err := env.client(t).WeeklyLicenseCheck(context.Background())
				require.NoError(t, err)
				assert.Equal(t, OutcomeChecked, outcome)

				rec, err := LoadRecord(context.Background(), env.store, testShortName)
				require.NoError(t, err)
				assert.Equal(t, "STORED", rec.Key)
				assert.Equal(t, tt.status, rec.Details.Status())
				assert.False(t, rec.Details.IsValid())
				assert.JSONEq(t, tt.stored, env.store.Snapshot()[Namespace(testShortName)][fieldDetails])
				assert.Equal(t, 1.0, testutil.ToFloat64(metrics.requests.WithLabelValues("check_license", "http_error")))
			})
		}
	})

	t.Run("TransportFailureKeepsDetails", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		env.seed(t, "STORED", `{"license":"valid"}`)
		env.remote.err = errors.New("timeout")
		before := env.store.Snapshot()

		outcome, err := env.client(t).WeeklyLicenseCheck(context.Background())
		require.NoError(t, err)
		assert.Equal(t, OutcomeTransportFailed, outcome)
		assert.Equal(t, before, env.store.Snapshot())
	})
}

func TestAutoUpdater(t *testing.T) {
	t.Parallel()

	t.Run("ValidLicenseIsPassedOn", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		env.seed(t, "KEY", `{"license":"valid"}`)
		require.NoError(t, SetBetaSupport(context.Background(), env.store, testShortName, true))

		require.NoError(t, env.client(t).AutoUpdater(context.Background()))
		require.Len(t, env.updaters.args, 1)
		assert.Equal(t, "https://sellcomet.com/edd-sl-api/", env.updaters.apiURL)
		assert.Equal(t, updater.Args{
			Version:    "1.0.0",
			License:    "KEY",
			Author:     "Sell Comet",
			WPOverride: true,
			Beta:       true,
			ItemName:   testShortName,
			File:       "edd-stripe-pro/edd-stripe-pro.php",
		}, env.updaters.args[0])
	})

	t.Run("LicenseZeroedUnlessValid", func(t *testing.T) {
		t.Parallel()

		for _, details := range []string{"", `{"license":"expired"}`, `"valid"`, `null`} {
			env := newTestEnv(t)
			env.seed(t, "KEY", details)

			require.NoError(t, env.client(t).AutoUpdater(context.Background()))
			require.Len(t, env.updaters.args, 1)
			assert.Empty(t, env.updaters.args[0].License, "details %q", details)
			assert.False(t, env.updaters.args[0].Beta)
		}
	})
}

func TestNotices(t *testing.T) {
	t.Parallel()

	dashboard := host.NewRequest(testUser, nil, url.Values{})

	t.Run("ExpiredRendersOnce", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		env.seed(t, "KEY", `{"license":"expired"}`)
		c := env.client(t)
		rc := host.NewRenderContext(language.English)

		var first, second bytes.Buffer
		require.NoError(t, c.Notices(context.Background(), dashboard, rc, &first))
		require.NoError(t, c.Notices(context.Background(), dashboard, rc, &second))

		assert.Equal(t, 1, strings.Count(first.String(), `<div class="error">`))
		assert.Contains(t, first.String(), `href="https://shop.example.com/wp-admin/admin.php?page=sellcomet"`)
		assert.Contains(t, first.String(), "<strong>Easy Digital Downloads - Stripe Pro</strong>")
		assert.Empty(t, second.String())
	})

	t.Run("SharedAcrossExtensions", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		env.seed(t, "KEY", `{"license":"expired"}`)
		raw, _ := json.Marshal("OTHER")
		require.NoError(t, env.store.Set(context.Background(), Namespace("edd-pdf-invoices"), fieldKey, raw))

		a := env.client(t)
		b, err := New(context.Background(), Product{Name: "Easy Digital Downloads - PDF Invoices"}, env.deps)
		require.NoError(t, err)

		rc := host.NewRenderContext(language.English)
		var out bytes.Buffer
		require.NoError(t, a.Notices(context.Background(), dashboard, rc, &out))
		require.NoError(t, b.Notices(context.Background(), dashboard, rc, &out))
		assert.Equal(t, 1, strings.Count(out.String(), `<div class="error">`))
	})

	t.Run("SuppressedCases", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			name    string
			key     string
			details string
			req     *host.Request
		}{
			{"NoKey", "", `{"license":"expired"}`, dashboard},
			{"ValidLicense", "KEY", `{"license":"valid"}`, dashboard},
			{"LicenseScreen", "KEY", `{"license":"expired"}`, host.NewRequest(testUser, nil, url.Values{"page": {"sellcomet"}})},
			{"NoCapability", "KEY", `{"license":"expired"}`, host.NewRequest("editor", nil, nil)},
		}
		for _, tt := range tests {
			env := newTestEnv(t)
			env.seed(t, tt.key, tt.details)
			var out bytes.Buffer
			require.NoError(t, env.client(t).Notices(context.Background(), tt.req, host.NewRenderContext(language.English), &out), tt.name)
			assert.Empty(t, out.String(), tt.name)
		}
	})

	t.Run("German", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		env.seed(t, "KEY", "")
		var out bytes.Buffer
		require.NoError(t, env.client(t).Notices(context.Background(), dashboard, host.NewRenderContext(language.German), &out))
		assert.Contains(t, out.String(), "registrieren")
	})
}

func TestPluginRowLicenseMissing(t *testing.T) {
	t.Parallel()

	t.Run("OncePerProduct", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		c := env.client(t)
		rc := host.NewRenderContext(language.English)

		var out bytes.Buffer
		require.NoError(t, c.PluginRowLicenseMissing(context.Background(), rc, &out))
		require.NoError(t, c.PluginRowLicenseMissing(context.Background(), rc, &out))

		assert.Equal(t, 1, strings.Count(out.String(), "Enter valid license key for automatic updates."))
		assert.True(t, rc.MissingKeyShown[testShortName])
	})

	t.Run("ValidLicenseShowsNothing", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		env.seed(t, "KEY", `{"license":"valid"}`)
		var out bytes.Buffer
		require.NoError(t, env.client(t).PluginRowLicenseMissing(context.Background(), host.NewRenderContext(language.English), &out))
		assert.Empty(t, out.String())
	})
}

func TestHelpText(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	c := env.client(t)
	rc := host.NewRenderContext(language.English)

	var out bytes.Buffer
	require.NoError(t, c.HelpText(rc, "general", &out))
	assert.Empty(t, out.String())

	require.NoError(t, c.HelpText(rc, "licenses", &out))
	require.NoError(t, c.HelpText(rc, "licenses", &out))
	assert.Equal(t, 1, strings.Count(out.String(), "renew your license"))
	assert.Contains(t, out.String(), RenewalURL)
}

func TestRegister(t *testing.T) {
	t.Parallel()

	t.Run("AdminInitRunsUpdaterBeforeActivation", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		reg := host.NewRegistry()
		env.client(t).Register(reg)

		req := activationRequest(validActivation("ABC123"))
		require.NoError(t, reg.Do(context.Background(), &host.Event{Name: host.EventAdminInit, Request: req}))

		require.Len(t, env.updaters.args, 1)
		assert.Empty(t, env.updaters.args[0].License)
		require.Len(t, env.remote.calls, 1)
		assert.Equal(t, ActionActivate, env.remote.calls[0].Action)
		assert.True(t, req.Terminated())
	})

	t.Run("AdminInitDeactivatesOnlyWithButton", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		env.seed(t, "KEY", `{"license":"valid"}`)
		reg := host.NewRegistry()
		env.client(t).Register(reg)

		plain := activationRequest(validActivation("KEY"))
		require.NoError(t, reg.Do(context.Background(), &host.Event{Name: host.EventAdminInit, Request: plain}))
		assert.Empty(t, env.remote.calls)

		fields := validActivation("KEY")
		fields[DeactivateField(testShortName)] = "Deactivate License"
		withButton := activationRequest(fields)
		require.NoError(t, reg.Do(context.Background(), &host.Event{Name: host.EventAdminInit, Request: withButton}))
		require.Len(t, env.remote.calls, 1)
		assert.Equal(t, ActionDeactivate, env.remote.calls[0].Action)
		assert.True(t, withButton.Terminated())
	})

	t.Run("WeeklyEvent", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		env.seed(t, "KEY", "")
		reg := host.NewRegistry()
		env.client(t).Register(reg)

		require.NoError(t, reg.Do(context.Background(), &host.Event{Name: host.EventWeeklyScheduled}))
		require.Len(t, env.remote.calls, 1)
		assert.Equal(t, ActionCheck, env.remote.calls[0].Action)
	})

	t.Run("PluginRowEvent", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		reg := host.NewRegistry()
		env.client(t).Register(reg)

		var out bytes.Buffer
		ev := &host.Event{
			Name:   host.PluginUpdateMessageEvent(testShortName),
			Render: host.NewRenderContext(language.English),
			Out:    &out,
		}
		require.NoError(t, reg.Do(context.Background(), ev))
		assert.Contains(t, out.String(), "Enter valid license key")
	})
}
