package game

import (
	"log/slog"
	"sort"
	"sync"

	"quizroom-backend/api"

	"golang.org/x/sync/errgroup"
)

// Phase is the two-valued global game state.
type Phase int

const (
	PhaseNotStarted Phase = iota
	PhaseStarted
)

var phaseToString = map[Phase]string{
	PhaseNotStarted: "NOT_STARTED",
	PhaseStarted:    "STARTED",
}

func (p Phase) String() string {
	if s, ok := phaseToString[p]; ok {
		return s
	}
	return "unknown"
}

// Status describes where a player is in their session lifecycle.
type Status string

const (
	StatusWaiting    Status = "waiting"
	StatusInQuiz     Status = "in_quiz"
	StatusDone       Status = "done"
	StatusTimeout    Status = "timeout"
	StatusIncomplete Status = "incomplete"
	StatusError      Status = "error"
)

// PlayerInfo pairs a player name with its current status.
type PlayerInfo struct {
	Name   string `json:"name"`
	Status Status `json:"status"`
}

// Controller is the single shared game-state machine. Admission and
// phase transitions execute under one lock so a handshake can never
// race a start() into a waiting room that is being drained.
//
// Multiple goroutines may invoke methods on a Controller
// simultaneously.
type Controller struct {
	registry *NameRegistry
	logger   *slog.Logger

	mu          sync.Mutex
	phase       Phase
	serving     bool
	waitingRoom map[string]struct{}
	players     map[string]Status
	started     map[string]struct{}
}

// NewController returns a controller in NOT_STARTED phase with
// admissions open.
func NewController(registry *NameRegistry, logger *slog.Logger) *Controller {
	return &Controller{
		registry:    registry,
		logger:      logger,
		phase:       PhaseNotStarted,
		serving:     true,
		waitingRoom: map[string]struct{}{},
		players:     map[string]Status{},
		started:     map[string]struct{}{},
	}
}

// Phase returns the current phase.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Serving reports whether the operator admission gate is open.
func (c *Controller) Serving() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.serving
}

// TryAdmit atomically checks the phase and, only while NOT_STARTED,
// adds the player to the waiting room with status waiting. The check
// and the add share the phase lock so a concurrent Start cannot slip
// between them.
func (c *Controller) TryAdmit(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase != PhaseNotStarted {
		return false
	}
	c.waitingRoom[name] = struct{}{}
	c.players[name] = StatusWaiting
	c.started[name] = struct{}{}
	return true
}

// Start transitions NOT_STARTED to STARTED, releasing every waiting
// room member into the quiz. A start while already running is
// rejected and logged, not applied.
func (c *Controller) Start() bool {
	c.mu.Lock()
	if c.phase == PhaseStarted {
		c.mu.Unlock()
		c.logger.Warn("cannot start, game already running")
		return false
	}

	c.phase = PhaseStarted
	released := len(c.waitingRoom)
	for name := range c.waitingRoom {
		c.players[name] = StatusInQuiz
	}
	c.waitingRoom = map[string]struct{}{}
	c.mu.Unlock()

	c.logger.Info("game started", slog.Int("released", released))
	return true
}

// Stop transitions STARTED back to NOT_STARTED and broadcasts STOP to
// every registered connection. The broadcast happens outside the lock
// so a slow socket cannot stall unrelated sessions. A stop while not
// running is rejected and logged.
func (c *Controller) Stop() bool {
	c.mu.Lock()
	if c.phase == PhaseNotStarted {
		c.mu.Unlock()
		c.logger.Warn("cannot stop, game not started yet")
		return false
	}
	c.phase = PhaseNotStarted
	c.mu.Unlock()

	c.logger.Info("game stopped, broadcasting to connected clients")
	c.Broadcast(api.MsgStop)
	return true
}

// PauseOrResume toggles the admission gate and returns the new
// serving value. It never touches the phase.
func (c *Controller) PauseOrResume() bool {
	c.mu.Lock()
	c.serving = !c.serving
	serving := c.serving
	c.mu.Unlock()

	if serving {
		c.logger.Info("admissions resumed")
	} else {
		c.logger.Info("admissions paused")
	}
	return serving
}

// SetPlayerStatus records a player's lifecycle status.
func (c *Controller) SetPlayerStatus(name string, status Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.players[name] = status
}

// ActivePlayers returns every tracked player with its status, sorted
// by name.
func (c *Controller) ActivePlayers() []PlayerInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	players := make([]PlayerInfo, 0, len(c.players))
	for name, status := range c.players {
		players = append(players, PlayerInfo{Name: name, Status: status})
	}
	sort.Slice(players, func(i, j int) bool { return players[i].Name < players[j].Name })
	return players
}

// Counts returns the online player count and the number of distinct
// names ever admitted this cycle.
func (c *Controller) Counts() (online, started int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.players), len(c.started)
}

// Reset clears the waiting room, the player status map and the
// admission history. The phase is left untouched; callers wanting a
// full stop issue Stop first.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.waitingRoom = map[string]struct{}{}
	c.players = map[string]Status{}
	c.started = map[string]struct{}{}
}

// Broadcast writes a protocol line to every registered connection
// concurrently, outside any state lock. Write failures are logged and
// otherwise ignored; a dead connection cleans itself up in its own
// session.
func (c *Controller) Broadcast(line string) {
	errs := errgroup.Group{}
	for _, conn := range c.registry.AllConnections() {
		errs.Go(func() error {
			return conn.WriteLine(line)
		})
	}
	if err := errs.Wait(); err != nil {
		c.logger.Warn("broadcast delivery incomplete", slog.Any("error", err))
	}
}
