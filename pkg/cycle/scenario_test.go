// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cycle

import (
	"strings"
	"testing"
	"time"

	"github.com/Thermoquad/binwarden/pkg/radio"
	"github.com/Thermoquad/binwarden/pkg/radio/radiotest"
	"github.com/Thermoquad/binwarden/pkg/usage"
	"github.com/Thermoquad/binwarden/pkg/wire"
	"github.com/rs/zerolog"
)

// These scenarios run the controller against the real transaction engine and
// a scripted modem.

func scenarioEngine(respond radiotest.Responder) (*radio.Engine, *radiotest.Modem) {
	modem := radiotest.NewModem(respond)
	timing := radio.Timing{
		ProbeTimeout: 50 * time.Millisecond,
		SendTimeout:  100 * time.Millisecond,
		PostAckWait:  40 * time.Millisecond,
		JoinSettle:   time.Millisecond,
		JoinBackoff:  2 * time.Millisecond,
		PollTimeout:  2 * time.Millisecond,
	}
	return radio.NewEngine(modem, timing, zerolog.Nop()), modem
}

func scenarioController(engine *radio.Engine, auth *fakeAuth, tags *fakeTags, store *memStore, sleeper *fakeSleeper) *Controller {
	engine.SetFrameHandler(NewDispatcher(auth, zerolog.Nop()))
	return NewController(testSettings(), Deps{
		Link:     engine,
		Tags:     tags,
		Auth:     auth,
		Distance: fakeDistance{cm: 15, ok: true},
		Motion:   fakeMotion(true),
		Sleeper:  sleeper,
		Counter:  usage.New(store, usage.DefaultPolicy(), zerolog.Nop()),
	}, zerolog.Nop())
}

func sends(modem *radiotest.Modem) []string {
	var out []string
	for _, w := range modem.Writes() {
		if strings.HasPrefix(w, radio.CmdSend) {
			out = append(out, w)
		}
	}
	return out
}

func TestScenario_TimerWakeReport(t *testing.T) {
	engine, modem := scenarioEngine(radiotest.Reply(map[string][]radiotest.Step{
		radio.CmdJoin: {{After: 2 * time.Millisecond, Data: "+JOIN: Network joined\r\nJOINED\r\n"}},
		radio.CmdSend: {{After: 5 * time.Millisecond, Data: "OK\r\n"}},
	}))
	store := &memStore{value: 3}
	sleeper := &fakeSleeper{}

	rep := scenarioController(engine, newFakeAuth(), &fakeTags{}, store, sleeper).Run(TimerWake)

	got := sends(modem)
	if len(got) != 1 || got[0] != "AT+SENDB=1:024C582D3030313203" {
		t.Fatalf("sends = %v", got)
	}
	if store.value != 0 || !rep.CounterCleared {
		t.Errorf("counter = %d, report %+v", store.value, rep)
	}
	if len(sleeper.calls) != 1 {
		t.Error("did not sleep")
	}
}

func TestScenario_PiggybackedInsertUser(t *testing.T) {
	engine, modem := scenarioEngine(radiotest.Reply(map[string][]radiotest.Step{
		radio.CmdJoin: {{After: 2 * time.Millisecond, Data: "JOINED\r\n"}},
		radio.CmdSend: {
			{After: 5 * time.Millisecond, Data: "OK\r\n"},
			{After: 15 * time.Millisecond, Data: "RX:0104A1B2C3D401:1:-80:7\r\n"},
		},
	}))
	auth := newFakeAuth()

	scenarioController(engine, auth, &fakeTags{}, &memStore{}, &fakeSleeper{}).Run(TimerWake)

	if len(sends(modem)) != 1 {
		t.Fatalf("sends = %v", sends(modem))
	}
	if len(auth.upserts) != 1 || auth.upserts[0] != "04 A1 B2 C3" {
		t.Fatalf("upserts = %v", auth.upserts)
	}
	if auth.users["04 A1 B2 C3"] != wire.RoleAdmin {
		t.Errorf("role = %v", auth.users["04 A1 B2 C3"])
	}
	if engine.Stats().FramesCaptured != 1 {
		t.Errorf("frames captured = %d", engine.Stats().FramesCaptured)
	}
}

func TestScenario_InvalidRoleNotApplied(t *testing.T) {
	engine, _ := scenarioEngine(radiotest.Reply(map[string][]radiotest.Step{
		radio.CmdJoin: {{After: 2 * time.Millisecond, Data: "JOINED\r\n"}},
		radio.CmdSend: {{After: 5 * time.Millisecond, Data: "OK\r\nRX:0104A1B2C3D403:1\r\n"}},
	}))
	auth := newFakeAuth()

	scenarioController(engine, auth, &fakeTags{}, &memStore{}, &fakeSleeper{}).Run(TimerWake)

	if len(auth.upserts) != 0 || len(auth.removes) != 0 {
		t.Errorf("store mutated by invalid frame: %v %v", auth.upserts, auth.removes)
	}
}

func TestScenario_DeleteUserDuringWindow(t *testing.T) {
	engine, modem := scenarioEngine(radiotest.Reply(map[string][]radiotest.Step{
		radio.CmdJoin: {{After: 2 * time.Millisecond, Data: "JOINED\r\n"}},
		radio.CmdSend: {{After: 5 * time.Millisecond, Data: "OK\r\n"}},
	}))
	auth := newFakeAuth("21 47 C2 4C")
	// arrives while the active window polls the modem
	modem.Inject(90*time.Millisecond, "RX:022147C24C:1:-95:-3\r\n")

	scenarioController(engine, auth, &fakeTags{}, &memStore{}, &fakeSleeper{}).Run(MotionWake)

	if len(auth.removes) != 1 || auth.removes[0] != "21 47 C2 4C" {
		t.Fatalf("removes = %v", auth.removes)
	}
	if ok, _ := auth.IsAuthorized("21 47 C2 4C"); ok {
		t.Error("tag still authorized")
	}
}

func TestScenario_JoinTimeoutsThenLocalAdmission(t *testing.T) {
	// modem never answers AT+JOIN
	engine, modem := scenarioEngine(func(cmd string) []radiotest.Step {
		if cmd == radio.CmdProbe {
			return []radiotest.Step{{After: time.Millisecond, Data: "OK\r\n"}}
		}
		return nil
	})
	auth := newFakeAuth("04 A1 B2 C3")
	tags := &fakeTags{skip: 5, uids: [][]byte{{0x04, 0xA1, 0xB2, 0xC3}}}
	store := &memStore{value: 1}

	rep := scenarioController(engine, auth, tags, store, &fakeSleeper{}).Run(MotionWake)

	joins := 0
	for _, w := range modem.Writes() {
		if w == radio.CmdJoin {
			joins++
		}
	}
	if joins != 3 {
		t.Errorf("join attempts = %d, want 3", joins)
	}
	if rep.Joined || engine.Joined() {
		t.Error("session joined")
	}
	if got := sends(modem); len(got) != 0 {
		t.Errorf("sent while unjoined: %v", got)
	}
	if rep.Admitted != "04 A1 B2 C3" {
		t.Errorf("local admission failed: %+v", rep)
	}
	if store.value != 1 {
		t.Errorf("counter = %d, want unchanged 1", store.value)
	}
}
