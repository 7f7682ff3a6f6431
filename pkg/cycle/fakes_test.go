// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cycle

import (
	"errors"
	"sync"
	"time"

	"github.com/Thermoquad/binwarden/pkg/usage"
	"github.com/Thermoquad/binwarden/pkg/wire"
	"github.com/rs/zerolog"
)

var errStore = errors.New("store unavailable")

func testTiming() Timing {
	return Timing{
		ActiveWindow:   60 * time.Millisecond,
		DownlinkWait:   5 * time.Millisecond,
		SleepTimer:     time.Hour,
		CleanupSettle:  time.Millisecond,
		DeniedCooldown: time.Millisecond,
		PollInterval:   time.Millisecond,
		Heartbeat:      20 * time.Millisecond,
		JoinTimeout:    50 * time.Millisecond,
		JoinAttempts:   3,
	}
}

func testSettings() Settings {
	name, _ := wire.ParseDeviceName("LX-001")
	return Settings{Name: name, EmptyDepthCm: 30, UplinkPort: 1, Timing: testTiming()}
}

// fakeLink records every call made by the controller
type fakeLink struct {
	joinErr  error
	sendErrs []error
	testErr  error
	joined   bool

	tests   int
	joins   int
	sends   [][]byte
	ports   []int
	listens []time.Duration
	polls   int
}

func (l *fakeLink) Test() error {
	l.tests++
	return l.testErr
}

func (l *fakeLink) Join(attempts int, timeout time.Duration) error {
	l.joins++
	if l.joinErr != nil {
		return l.joinErr
	}
	l.joined = true
	return nil
}

func (l *fakeLink) Send(frame []byte, port int) error {
	l.sends = append(l.sends, append([]byte(nil), frame...))
	l.ports = append(l.ports, port)
	if len(l.sendErrs) > 0 {
		err := l.sendErrs[0]
		l.sendErrs = l.sendErrs[1:]
		return err
	}
	return nil
}

func (l *fakeLink) Listen(d time.Duration) { l.listens = append(l.listens, d) }
func (l *fakeLink) Poll()                  { l.polls++ }
func (l *fakeLink) Joined() bool           { return l.joined }

// fakeTags presents each UID once, after skipping the given number of polls
type fakeTags struct {
	skip  int
	uids  [][]byte
	polls int
}

func (r *fakeTags) PollTag() ([]byte, bool) {
	r.polls++
	if r.polls <= r.skip || len(r.uids) == 0 {
		return nil, false
	}
	uid := r.uids[0]
	r.uids = r.uids[1:]
	return uid, true
}

type fakeAuth struct {
	mu      sync.Mutex
	users   map[string]wire.Role
	err     error
	lookups []string
	upserts []string
	removes []string
}

func newFakeAuth(tags ...string) *fakeAuth {
	a := &fakeAuth{users: map[string]wire.Role{}}
	for _, t := range tags {
		a.users[t] = wire.RoleWorker
	}
	return a
}

func (a *fakeAuth) IsAuthorized(tag string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lookups = append(a.lookups, tag)
	if a.err != nil {
		return true, a.err
	}
	_, ok := a.users[tag]
	return ok, nil
}

func (a *fakeAuth) Upsert(tag string, role wire.Role) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.upserts = append(a.upserts, tag)
	a.users[tag] = role
	return nil
}

func (a *fakeAuth) Remove(tag string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.removes = append(a.removes, tag)
	delete(a.users, tag)
	return nil
}

type fakeDistance struct {
	cm float64
	ok bool
}

func (d fakeDistance) ReadDistanceCm() (float64, bool) { return d.cm, d.ok }

type fakeMotion bool

func (m fakeMotion) MotionActive() bool { return bool(m) }

type fakeSleeper struct {
	calls []time.Duration
	at    time.Time
}

func (s *fakeSleeper) Sleep(timer time.Duration) error {
	s.calls = append(s.calls, timer)
	s.at = time.Now()
	return nil
}

// memStore is an in-memory usage.Store with failure injection
type memStore struct {
	value    uint32
	failGet  bool
	failSet  bool
	setCalls int
}

func (m *memStore) GetCounter() (uint32, error) {
	if m.failGet {
		return 0, errStore
	}
	return m.value, nil
}

func (m *memStore) SetCounter(v uint32) error {
	m.setCalls++
	if m.failSet {
		return errStore
	}
	m.value = v
	return nil
}

type rig struct {
	link     *fakeLink
	tags     *fakeTags
	auth     *fakeAuth
	store    *memStore
	sleeper  *fakeSleeper
	distance fakeDistance
}

func newRig() *rig {
	return &rig{
		link:     &fakeLink{},
		tags:     &fakeTags{},
		auth:     newFakeAuth(),
		store:    &memStore{},
		sleeper:  &fakeSleeper{},
		distance: fakeDistance{cm: 15, ok: true},
	}
}

func (r *rig) controller() *Controller {
	counter := usage.New(r.store, usage.Policy{Attempts: 2, Backoff: time.Millisecond}, zerolog.Nop())
	return NewController(testSettings(), Deps{
		Link:     r.link,
		Tags:     r.tags,
		Auth:     r.auth,
		Distance: r.distance,
		Motion:   fakeMotion(false),
		Sleeper:  r.sleeper,
		Counter:  counter,
	}, zerolog.Nop())
}
