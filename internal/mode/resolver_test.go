package mode

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"ec-dashboard/internal/constants"
	"ec-dashboard/internal/domain"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProber struct {
	calls atomic.Int32
	probe domain.ModeProbe
	err   error
}

func (f *fakeProber) DetectMode(context.Context) (domain.ModeProbe, error) {
	f.calls.Add(1)
	return f.probe, f.err
}

func settings(port int) Settings {
	return Settings{
		Port:          port,
		HostPort:      3019,
		CustomerPorts: []int{3018, 3000},
		StatusTimeout: constants.HostStatusTimeout,
	}
}

func boolPtr(b bool) *bool { return &b }

func TestHostPortSkipsNetwork(t *testing.T) {
	prober := &fakeProber{}
	r := NewResolver(settings(3019), prober, clock.NewMock(), zerolog.Nop())

	m := r.Resolve(context.Background())
	assert.Equal(t, domain.ModeHostWeb, m.Kind)
	assert.True(t, m.WebAccess)
	assert.Zero(t, prober.calls.Load())
}

func TestCustomerPortsSkipNetwork(t *testing.T) {
	for _, port := range []int{3018, 3000} {
		prober := &fakeProber{}
		r := NewResolver(settings(port), prober, clock.NewMock(), zerolog.Nop())

		m := r.Resolve(context.Background())
		assert.Equal(t, domain.ModeCustomerWeb, m.Kind, "port %d", port)
		assert.Zero(t, prober.calls.Load())
	}
}

func TestHostPortWinsOverEmbeddedMarker(t *testing.T) {
	s := settings(3019)
	s.Embedded = true
	r := NewResolver(s, nil, clock.NewMock(), zerolog.Nop())

	assert.Equal(t, domain.ModeHostWeb, r.Resolve(context.Background()).Kind)
	assert.False(t, r.Pending())
}

func TestProbe(t *testing.T) {
	tests := []struct {
		name  string
		probe domain.ModeProbe
		err   error
		want  domain.ModeKind
	}{
		{"isHost", domain.ModeProbe{IsHost: boolPtr(true)}, nil, domain.ModeHostWeb},
		{"mode host", domain.ModeProbe{Mode: "host"}, nil, domain.ModeHostWeb},
		{"customer", domain.ModeProbe{IsHost: boolPtr(false), Mode: "customer"}, nil, domain.ModeCustomerWeb},
		{"empty", domain.ModeProbe{}, nil, domain.ModeCustomerWeb},
		{"failure", domain.ModeProbe{}, errors.New("connection refused"), domain.ModeCustomerWeb},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			prober := &fakeProber{probe: tc.probe, err: tc.err}
			r := NewResolver(settings(8080), prober, clock.NewMock(), zerolog.Nop())

			m := r.Resolve(context.Background())
			assert.Equal(t, tc.want, m.Kind)
			assert.True(t, m.WebAccess)
			assert.EqualValues(t, 1, prober.calls.Load())
		})
	}
}

func TestResolveIsCachedUntilReset(t *testing.T) {
	prober := &fakeProber{probe: domain.ModeProbe{Mode: "host"}}
	r := NewResolver(settings(8080), prober, clock.NewMock(), zerolog.Nop())

	_, ok := r.Current()
	assert.False(t, ok)

	first := r.Resolve(context.Background())
	prober.probe = domain.ModeProbe{Mode: "customer"}
	second := r.Resolve(context.Background())

	assert.Equal(t, first, second)
	assert.EqualValues(t, 1, prober.calls.Load())

	r.Reset()
	third := r.Resolve(context.Background())
	assert.Equal(t, domain.ModeCustomerWeb, third.Kind)
	assert.EqualValues(t, 2, prober.calls.Load())
}

func startInGame(t *testing.T, clk *clock.Mock) (*Resolver, <-chan domain.RuntimeMode) {
	t.Helper()
	s := settings(8080)
	s.Embedded = true
	r := NewResolver(s, nil, clk, zerolog.Nop())

	out := make(chan domain.RuntimeMode, 1)
	go func() { out <- r.Resolve(context.Background()) }()
	require.Eventually(t, r.Pending, time.Second, time.Millisecond)
	return r, out
}

func TestInGameMessageBeforeTimeout(t *testing.T) {
	clk := clock.NewMock()
	r, out := startInGame(t, clk)

	assert.False(t, r.Deliver(HostStatus{Type: "OTHER", IsHost: true}))
	assert.True(t, r.Deliver(HostStatus{Type: constants.HostStatusMessage, IsHost: true}))

	m := <-out
	assert.Equal(t, domain.ModeInGameHost, m.Kind)
	assert.False(t, m.WebAccess)

	// the timeout firing afterwards cannot downgrade the settled status
	clk.Add(constants.HostStatusTimeout)
	current, ok := r.Current()
	require.True(t, ok)
	assert.Equal(t, domain.ModeInGameHost, current.Kind)
}

func TestInGameTimeoutDefaultsToCustomer(t *testing.T) {
	clk := clock.NewMock()
	r, out := startInGame(t, clk)

	clk.Add(constants.HostStatusTimeout)
	m := <-out
	assert.Equal(t, domain.ModeInGameCustomer, m.Kind)

	assert.False(t, r.Deliver(HostStatus{Type: constants.HostStatusMessage, IsHost: true}))
	current, _ := r.Current()
	assert.Equal(t, domain.ModeInGameCustomer, current.Kind)
}

func TestInGameJustBeforeTimeout(t *testing.T) {
	clk := clock.NewMock()
	r, out := startInGame(t, clk)

	clk.Add(constants.HostStatusTimeout - time.Millisecond)
	assert.True(t, r.Deliver(HostStatus{Type: constants.HostStatusMessage, IsHost: true}))
	assert.Equal(t, domain.ModeInGameHost, (<-out).Kind)
}

func TestStatusCellSingleAssignment(t *testing.T) {
	c := newStatusCell()
	assert.True(t, c.set(true, true))
	assert.False(t, c.set(false, false))

	isHost, fromMessage := c.get()
	assert.True(t, isHost)
	assert.True(t, fromMessage)
}
