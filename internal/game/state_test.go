package game_test

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"quizroom-backend/api"
	"quizroom-backend/internal/game"
)

func newTestController() (*game.Controller, *game.NameRegistry) {
	registry := game.NewNameRegistry()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return game.NewController(registry, logger), registry
}

func TestStartReleasesWaitingRoom(t *testing.T) {
	controller, _ := newTestController()

	if !controller.TryAdmit("alice") || !controller.TryAdmit("bob") {
		t.Fatal("admission failed while NOT_STARTED")
	}

	if !controller.Start() {
		t.Fatal("first start rejected")
	}
	if got := controller.Phase(); got != game.PhaseStarted {
		t.Fatalf("phase = %s, want STARTED", got)
	}

	for _, p := range controller.ActivePlayers() {
		if p.Status != game.StatusInQuiz {
			t.Fatalf("player %s has status %s, want in_quiz", p.Name, p.Status)
		}
	}
}

func TestPhaseMonotonicity(t *testing.T) {
	controller, _ := newTestController()

	if !controller.Start() {
		t.Fatal("first start rejected")
	}
	if controller.Start() {
		t.Fatal("second start should be a rejected no-op")
	}

	if !controller.Stop() {
		t.Fatal("first stop rejected")
	}
	if controller.Stop() {
		t.Fatal("second stop should be a rejected no-op")
	}
	if got := controller.Phase(); got != game.PhaseNotStarted {
		t.Fatalf("phase = %s, want NOT_STARTED", got)
	}
}

func TestAdmissionRacingStart(t *testing.T) {
	controller, _ := newTestController()

	const players = 50
	admitted := make([]bool, players)
	var wg sync.WaitGroup

	for i := 0; i < players; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			admitted[i] = controller.TryAdmit(fmt.Sprintf("player-%d", i))
		}()
		if i == players/2 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				controller.Start()
			}()
		}
	}
	wg.Wait()

	status := map[string]game.Status{}
	for _, p := range controller.ActivePlayers() {
		status[p.Name] = p.Status
	}

	for i := 0; i < players; i++ {
		name := fmt.Sprintf("player-%d", i)
		got, tracked := status[name]
		if admitted[i] {
			// Admitted before the flip: must have been released.
			if !tracked || got != game.StatusInQuiz {
				t.Fatalf("admitted player %s has status %q, want in_quiz", name, got)
			}
		} else if tracked {
			t.Fatalf("rejected player %s silently tracked with status %q", name, got)
		}
	}
}

func TestLateAdmissionRejected(t *testing.T) {
	controller, _ := newTestController()
	controller.Start()
	if controller.TryAdmit("late") {
		t.Fatal("admission accepted while STARTED")
	}
}

func TestStopBroadcastsToRegisteredConns(t *testing.T) {
	controller, registry := newTestController()

	conns := []*fakeConn{{}, {}}
	registry.Add("alice", conns[0])
	registry.Add("bob", conns[1])

	controller.Start()
	controller.Stop()

	for i, conn := range conns {
		lines := conn.received()
		if len(lines) != 1 || lines[0] != api.MsgStop {
			t.Fatalf("conn %d received %v, want single STOP", i, lines)
		}
	}
}

func TestPauseOrResumeTogglesServingOnly(t *testing.T) {
	controller, _ := newTestController()

	if !controller.Serving() {
		t.Fatal("admissions should start open")
	}
	if controller.PauseOrResume() {
		t.Fatal("first toggle should pause")
	}
	if controller.Serving() {
		t.Fatal("serving still true after pause")
	}
	if got := controller.Phase(); got != game.PhaseNotStarted {
		t.Fatalf("pause changed phase to %s", got)
	}
	if !controller.PauseOrResume() {
		t.Fatal("second toggle should resume")
	}
}

func TestResetClearsPlayersButNotPhase(t *testing.T) {
	controller, _ := newTestController()
	controller.TryAdmit("alice")
	controller.Start()

	controller.Reset()

	if len(controller.ActivePlayers()) != 0 {
		t.Fatal("players survive reset")
	}
	online, started := controller.Counts()
	if online != 0 || started != 0 {
		t.Fatalf("counts after reset = (%d,%d), want (0,0)", online, started)
	}
	if got := controller.Phase(); got != game.PhaseStarted {
		t.Fatalf("reset changed phase to %s", got)
	}
}
