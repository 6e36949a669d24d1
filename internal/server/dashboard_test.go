package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"ec-dashboard/internal/constants"
	"ec-dashboard/internal/domain"
	"ec-dashboard/internal/mode"
	"ec-dashboard/internal/service"
	"ec-dashboard/internal/session"
	"ec-dashboard/internal/telemetry"

	"connectrpc.com/connect"
	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	mu            sync.Mutex
	mode          domain.RuntimeMode
	authenticated bool
	responses     map[string]string
	failures      map[string]error
}

func (f *fakeSession) Mode() domain.RuntimeMode {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mode
}

func (f *fakeSession) Authenticated() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.authenticated
}

func (f *fakeSession) SetMode(_ context.Context, kind domain.ModeKind) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if kind != domain.ModeUnknown && !kind.IsHost() {
		f.mode.Kind = f.mode.Kind.Customer()
	}
	return nil
}

func (f *fakeSession) Login(_ context.Context, username, password string) error {
	if password != "hunter2" {
		return &domain.CallError{Kind: domain.KindAuthFailure, Message: "Unauthorized - Please log in"}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.authenticated = true
	return nil
}

func (f *fakeSession) Logout(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.authenticated = false
	return nil
}

func (f *fakeSession) Fetch(_ context.Context, ep session.Endpoint, _ any) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failures[ep.Path]; ok {
		return nil, err
	}
	if res, ok := f.responses[ep.Path]; ok {
		return json.RawMessage(res), nil
	}
	return json.RawMessage("null"), nil
}

type fakeSink struct {
	msgs []mode.HostStatus
}

func (f *fakeSink) Deliver(msg mode.HostStatus) bool {
	f.msgs = append(f.msgs, msg)
	return msg.Type == constants.HostStatusMessage
}

type harness struct {
	url     string
	client  *http.Client
	session *fakeSession
	sink    *fakeSink
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := zerolog.Nop()

	sess := &fakeSession{
		mode:      domain.RuntimeMode{Kind: domain.ModeHostWeb, WebAccess: true},
		responses: map[string]string{},
		failures:  map[string]error{},
	}
	players := service.NewPlayerService(sess, logger)
	moderation := service.NewModerationService(sess, logger)
	whitelist := service.NewWhitelistService(sess, logger)
	data := service.NewServerDataService(sess, logger)
	overview := service.NewOverviewService(sess, players, moderation, data, clock.NewMock(), logger)

	reg := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(reg)
	metrics.PollRun(constants.OverviewPollKey)

	sink := &fakeSink{}
	mux := http.NewServeMux()
	NewDashboardServer(sess, players, moderation, whitelist, data, overview, logger).Mount(mux)
	MountOps(mux, sink, sess, reg, logger)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return &harness{url: srv.URL, client: srv.Client(), session: sess, sink: sink}
}

func rpc[Req, Res any](t *testing.T, h *harness, name string, msg *Req) (*Res, error) {
	t.Helper()
	client := connect.NewClient[Req, Res](h.client, h.url+DashboardPath+name, connect.WithCodec(Codec{}))
	res, err := client.CallUnary(context.Background(), connect.NewRequest(msg))
	if err != nil {
		return nil, err
	}
	return res.Msg, nil
}

func TestGetMode(t *testing.T) {
	h := newHarness(t)

	res, err := rpc[Empty, ModeResponse](t, h, "GetMode", &Empty{})
	require.NoError(t, err)
	assert.Equal(t, domain.ModeHostWeb, res.Mode)
	assert.True(t, res.WebAccess)
	assert.False(t, res.Authenticated)
}

func TestSetMode(t *testing.T) {
	h := newHarness(t)

	_, err := rpc[SetModeRequest, ModeResponse](t, h, "SetMode", &SetModeRequest{Mode: "superuser"})
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))

	res, err := rpc[SetModeRequest, ModeResponse](t, h, "SetMode", &SetModeRequest{Mode: "customer-web"})
	require.NoError(t, err)
	assert.Equal(t, domain.ModeCustomerWeb, res.Mode)
}

func TestLoginLogout(t *testing.T) {
	h := newHarness(t)

	_, err := rpc[LoginRequest, ModeResponse](t, h, "Login", &LoginRequest{Username: "admin"})
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))

	_, err = rpc[LoginRequest, ModeResponse](t, h, "Login", &LoginRequest{Username: "admin", Password: "nope"})
	assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))
	var cerr *connect.Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "Unauthorized - Please log in", cerr.Message())

	res, err := rpc[LoginRequest, ModeResponse](t, h, "Login", &LoginRequest{Username: "admin", Password: "hunter2"})
	require.NoError(t, err)
	assert.True(t, res.Authenticated)

	res, err = rpc[Empty, ModeResponse](t, h, "Logout", &Empty{})
	require.NoError(t, err)
	assert.False(t, res.Authenticated)
}

func TestListPlayers(t *testing.T) {
	h := newHarness(t)
	h.session.responses["/api/players"] = `[{"id":4,"name":"Mika","ping":31}]`

	res, err := rpc[Empty, ListResponse[domain.Player]](t, h, "ListPlayers", &Empty{})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "Mika", res.Items[0].Name)
}

func TestEmptyListIsNotNull(t *testing.T) {
	h := newHarness(t)

	req, err := http.NewRequest(http.MethodPost, h.url+DashboardPath+"ListJobs", strings.NewReader(`{}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := h.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"items":[]}`, string(body))
}

func TestErrorCodes(t *testing.T) {
	h := newHarness(t)
	h.session.failures["/api/host/resources"] = domain.ErrAccessDenied
	h.session.failures["/api/moderation/bans"] = &domain.CallError{Kind: domain.KindRateLimited, Message: "Rate limited - Please wait before trying again"}
	h.session.failures["/api/jobs"] = domain.ErrBridgeUnavailable

	_, err := rpc[Empty, ListResponse[domain.Resource]](t, h, "ListResources", &Empty{})
	assert.Equal(t, connect.CodePermissionDenied, connect.CodeOf(err))

	_, err = rpc[Empty, ListResponse[domain.Ban]](t, h, "ListBans", &Empty{})
	assert.Equal(t, connect.CodeResourceExhausted, connect.CodeOf(err))

	_, err = rpc[Empty, ListResponse[domain.Job]](t, h, "ListJobs", &Empty{})
	assert.Equal(t, connect.CodeUnavailable, connect.CodeOf(err))

	_, err = rpc[KickRequest, Empty](t, h, "KickPlayer", &KickRequest{ID: 0})
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
}

func TestGetOverviewRefreshesWithoutSnapshot(t *testing.T) {
	h := newHarness(t)
	h.session.responses["/api/players"] = `[{"id":1},{"id":2}]`

	res, err := rpc[Empty, domain.Overview](t, h, "GetOverview", &Empty{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.PlayersOnline)
}

func TestSettingsRoundTrip(t *testing.T) {
	h := newHarness(t)
	h.session.responses["/api/host/settings"] = `{"maxPlayers":64,"locale":"en"}`

	res, err := rpc[Empty, SettingsMessage](t, h, "GetSettings", &Empty{})
	require.NoError(t, err)
	assert.Equal(t, "en", res.Settings["locale"])

	_, err = rpc[SettingsMessage, SettingsMessage](t, h, "UpdateSettings", &SettingsMessage{})
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
}

func TestNUIMessageRoute(t *testing.T) {
	h := newHarness(t)

	resp, err := h.client.Post(h.url+NUIMessagePath, "application/json", strings.NewReader(`{"type":"EC_HOST_STATUS","isHost":true}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.JSONEq(t, `{"delivered":true}`, string(body))
	require.Len(t, h.sink.msgs, 1)
	assert.True(t, h.sink.msgs[0].IsHost)

	bad, err := h.client.Post(h.url+NUIMessagePath, "application/json", strings.NewReader(`not json`))
	require.NoError(t, err)
	bad.Body.Close()
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)

	get, err := h.client.Get(h.url + NUIMessagePath)
	require.NoError(t, err)
	get.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, get.StatusCode)
}

func TestHealthAndMetrics(t *testing.T) {
	h := newHarness(t)

	resp, err := h.client.Get(h.url + HealthPath)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.JSONEq(t, `{"status":"ok","mode":"host-web"}`, string(body))

	resp, err = h.client.Get(h.url + MetricsPath)
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), `ec_dashboard_poll_runs_total{key="overview"} 1`)
}
