// Package testutil provides fakes and mocks for viewer tests.
package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/photosphere/internal/provisioning"
	"github.com/GriffinCanCode/photosphere/internal/viewer"
	"github.com/GriffinCanCode/photosphere/internal/viewer/bridge"
)

// Recorder keeps an ordered log of lifecycle calls shared by fakes
type Recorder struct {
	mu     sync.Mutex
	events []string
}

// Add appends an entry
func (r *Recorder) Add(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

// Events returns a copy of the log
func (r *Recorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

// MockNavigator is a mock implementation of viewer.Navigator.
type MockNavigator struct {
	mock.Mock
}

// SetTitle mocks the SetTitle method.
func (m *MockNavigator) SetTitle(title string) {
	m.Called(title)
}

// NewMockNavigator accepts any title by default.
func NewMockNavigator(t *testing.T) *MockNavigator {
	t.Helper()
	m := new(MockNavigator)
	m.On("SetTitle", mock.Anything).Return().Maybe()
	return m
}

// Mounted is one recorded surface mount
type Mounted struct {
	Mount     viewer.Mount
	Injection bridge.Injection
	Instance  *FakeInstance
}

// FakeSurface records mounts and takes each injection
type FakeSurface struct {
	Recorder *Recorder
	// MountErr fails every mount when set
	MountErr error
	// OnMount runs after the injection is taken, before Mount returns
	OnMount func(m viewer.Mount)

	mu     sync.Mutex
	mounts []Mounted
}

// NewFakeSurface creates a surface logging into rec
func NewFakeSurface(rec *Recorder) *FakeSurface {
	return &FakeSurface{Recorder: rec}
}

// Name implements viewer.Surface
func (s *FakeSurface) Name() string { return "fake" }

// Mount implements viewer.Surface
func (s *FakeSurface) Mount(ctx context.Context, m viewer.Mount) (viewer.Instance, error) {
	injection, err := m.Inbound.Take()
	if err != nil {
		return nil, err
	}
	if s.Recorder != nil {
		s.Recorder.Add("mount:" + injection.ImageURL)
	}
	if s.MountErr != nil {
		return nil, s.MountErr
	}
	if s.OnMount != nil {
		s.OnMount(m)
	}

	inst := &FakeInstance{recorder: s.Recorder, ref: injection.ImageURL, outbound: m.Outbound}
	s.mu.Lock()
	s.mounts = append(s.mounts, Mounted{Mount: m, Injection: injection, Instance: inst})
	s.mu.Unlock()
	return inst, nil
}

// Mounts returns every successful mount so far
func (s *FakeSurface) Mounts() []Mounted {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Mounted(nil), s.mounts...)
}

// FakeInstance emits a loaded event when triggered
type FakeInstance struct {
	recorder *Recorder
	ref      string
	outbound *bridge.Outbound

	mu       sync.Mutex
	triggers int
	closed   bool
}

// Trigger implements viewer.Instance
func (i *FakeInstance) Trigger(ctx context.Context) error {
	i.mu.Lock()
	i.triggers++
	i.mu.Unlock()
	i.outbound.Emit(bridge.Loaded())
	return nil
}

// Close implements viewer.Instance
func (i *FakeInstance) Close() error {
	i.mu.Lock()
	i.closed = true
	i.mu.Unlock()
	if i.recorder != nil {
		i.recorder.Add("close:" + i.ref)
	}
	return nil
}

// Triggers returns how often Trigger ran
func (i *FakeInstance) Triggers() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.triggers
}

// Closed reports whether Close ran
func (i *FakeInstance) Closed() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.closed
}

// ResolveFunc produces a provisioning result
type ResolveFunc func(ctx context.Context, ref string) (provisioning.Resolved, error)

// FakeProvisioner opens FakeProvisions that log resolve and stop calls
type FakeProvisioner struct {
	Recorder *Recorder
	// Require decides Required; nil requires everything
	Require func(ref string) bool
	// Resolve defaults to serving ref under http://assets.test/
	Resolve ResolveFunc

	mu     sync.Mutex
	opened []*FakeProvision
}

// Required implements viewer.Provisioner
func (p *FakeProvisioner) Required(ref string) bool {
	if p.Require == nil {
		return true
	}
	return p.Require(ref)
}

// Open implements viewer.Provisioner
func (p *FakeProvisioner) Open() provisioning.Provision {
	fp := &FakeProvision{parent: p}
	p.mu.Lock()
	p.opened = append(p.opened, fp)
	p.mu.Unlock()
	return fp
}

// Opened returns every provision opened so far
func (p *FakeProvisioner) Opened() []*FakeProvision {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*FakeProvision(nil), p.opened...)
}

// FakeProvision is one session's provisioning lifecycle
type FakeProvision struct {
	parent *FakeProvisioner

	mu    sync.Mutex
	ref   string
	stops int
}

// Resolve implements provisioning.Provision
func (fp *FakeProvision) Resolve(ctx context.Context, ref string) (provisioning.Resolved, error) {
	fp.mu.Lock()
	fp.ref = ref
	fp.mu.Unlock()
	fp.record("serve:" + ref)

	if fp.parent.Resolve != nil {
		return fp.parent.Resolve(ctx, ref)
	}
	return provisioning.Resolved{URL: "http://assets.test/" + ref, Original: ref, Width: 4096, Served: true}, nil
}

// Stop implements provisioning.Provision
func (fp *FakeProvision) Stop(ctx context.Context) error {
	fp.mu.Lock()
	fp.stops++
	ref := fp.ref
	fp.mu.Unlock()
	fp.record("stop:" + ref)
	return nil
}

// Stops returns how often Stop ran
func (fp *FakeProvision) Stops() int {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	return fp.stops
}

func (fp *FakeProvision) record(event string) {
	if fp.parent.Recorder != nil {
		fp.parent.Recorder.Add(event)
	}
}

// WaitPhase waits until the controller reports phase
func WaitPhase(t *testing.T, c *viewer.Controller, phase viewer.Phase) viewer.Snapshot {
	t.Helper()
	var snap viewer.Snapshot
	require.Eventually(t, func() bool {
		snap = c.Snapshot()
		return snap.Phase == phase
	}, 2*time.Second, 5*time.Millisecond, "phase %s never reached", phase)
	return snap
}
