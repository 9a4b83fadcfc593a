// Package control exposes the operator-facing surface of the quiz
// server: start/stop/pause/reset, statistics and scoreboard queries,
// and the HTTP/websocket API the dashboard consumes.
package control

import (
	"log/slog"
	"math"

	"quizroom-backend/api"
	"quizroom-backend/internal/game"
	"quizroom-backend/internal/logging"
)

const (
	msgGamePaused = "Game paused by the operator."
)

// Surface bundles the control operations mutating the shared game
// state. Safe for concurrent use; it owns no state of its own.
type Surface struct {
	state    *game.Controller
	registry *game.NameRegistry
	scores   *game.Scoreboard
	logs     *logging.RingHandler
	logger   *slog.Logger
}

// NewSurface wires the control surface to the shared components.
func NewSurface(state *game.Controller, registry *game.NameRegistry, scores *game.Scoreboard, logs *logging.RingHandler, logger *slog.Logger) *Surface {
	return &Surface{
		state:    state,
		registry: registry,
		scores:   scores,
		logs:     logs,
		logger:   logger,
	}
}

// Start releases the waiting room into the quiz. Returns false on a
// rejected no-op (already running).
func (s *Surface) Start() bool {
	return s.state.Start()
}

// Stop halts the quiz and broadcasts STOP to every registered
// connection. Returns false on a rejected no-op.
func (s *Surface) Stop() bool {
	return s.state.Stop()
}

// PauseOrResume toggles the admission gate and returns the new
// serving value. Pausing also notifies in-progress sessions.
func (s *Surface) PauseOrResume() bool {
	serving := s.state.PauseOrResume()
	if !serving {
		s.state.Broadcast(api.GamePaused(msgGamePaused))
	}
	return serving
}

// ResetScoresAndNames clears the scoreboard, the player map and the
// name registry, freeing every name for reuse. The phase is left
// untouched.
func (s *Surface) ResetScoresAndNames() {
	s.scores.Reset()
	s.state.Reset()
	s.registry.ClearAll()
	s.logger.Info("scores and names reset by operator")
}

// ScoreboardRows returns the ranked scoreboard.
func (s *Surface) ScoreboardRows() []game.Entry {
	return s.scores.Rows()
}

// ActivePlayers returns every tracked player with its status.
func (s *Surface) ActivePlayers() []game.PlayerInfo {
	return s.state.ActivePlayers()
}

// DrainLogs removes and returns up to max buffered log lines.
func (s *Surface) DrainLogs(max int) []string {
	return s.logs.Drain(max)
}

// BroadcastLeaderboard pushes the current ranking to every registered
// connection and returns the broadcast rows.
func (s *Surface) BroadcastLeaderboard() []api.LeaderboardRow {
	entries := s.scores.Rows()
	rows := make([]api.LeaderboardRow, 0, len(entries))
	for _, entry := range entries {
		rows = append(rows, api.LeaderboardRow{Name: entry.Name, Score: entry.Score})
	}
	s.state.Broadcast(api.Leaderboard(rows))
	return rows
}

// Statistics is the derived dashboard snapshot. Nothing here is
// stored separately, so it cannot diverge from the scoreboard.
type Statistics struct {
	Phase          string  `json:"phase"`
	Serving        bool    `json:"serving"`
	Online         int     `json:"online"`
	TotalStarted   int     `json:"totalStarted"`
	Finished       int     `json:"finished"`
	CompletionRate float64 `json:"completionRate"`
	HighScore      *int    `json:"highScore"`
	LowScore       *int    `json:"lowScore"`
	TopPlayer      string  `json:"topPlayer,omitempty"`
	TopScore       int     `json:"topScore"`
}

// Statistics derives the current snapshot.
func (s *Surface) Statistics() Statistics {
	online, started := s.state.Counts()
	rows := s.scores.Rows()

	stats := Statistics{
		Phase:        s.state.Phase().String(),
		Serving:      s.state.Serving(),
		Online:       online,
		TotalStarted: started,
		Finished:     len(rows),
	}
	if started > 0 {
		stats.CompletionRate = math.Round(float64(len(rows))/float64(started)*1000) / 10
	}
	if len(rows) > 0 {
		high, low := rows[0].Score, rows[0].Score
		for _, row := range rows {
			if row.Score > high {
				high = row.Score
			}
			if row.Score < low {
				low = row.Score
			}
		}
		stats.HighScore = &high
		stats.LowScore = &low
		stats.TopPlayer = rows[0].Name
		stats.TopScore = rows[0].Score
	}
	return stats
}
