// Package session drives the per-connection quiz lifecycle: handshake
// against the name registry and admission gate, the lobby wait, the
// timed question loop and the terminal outcome write.
package session

import (
	"log/slog"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"quizroom-backend/api"
	"quizroom-backend/internal/game"
	"quizroom-backend/internal/quiz"

	"github.com/lithammer/shortuuid/v3"
)

// Operator-facing rejection texts. Clients display these verbatim.
const (
	msgReady      = "Server is ready, please send your name."
	msgPaused     = "Server is paused, please try again later."
	msgStarted    = "Game already started, late join refused."
	msgClosed     = "Server is closing, please come back later."
	msgExpectName = "Expected a NAME|<displayName> line."
)

// Options carries the shared collaborators and tunables of a session.
type Options struct {
	Registry     *game.NameRegistry
	State        *game.Controller
	Scores       *game.Scoreboard
	Pool         *quiz.Pool
	Logger       *slog.Logger
	ShuttingDown func() bool

	MaxQuestions  int
	AnswerTimeout time.Duration
	WaitInterval  time.Duration
	PollInterval  time.Duration

	// Rand seeds the per-session shuffles; nil means a time-seeded
	// source.
	Rand *rand.Rand
}

// Session is one player's connection lifecycle. Not safe for
// concurrent use; exactly one goroutine runs a session.
type Session struct {
	conn *Conn
	opts Options
	rng  *rand.Rand
	log  *slog.Logger

	name      string
	gen       uint64
	score     int
	attempted int
	finalized bool
}

// New prepares a session for an accepted connection.
func New(conn *Conn, opts Options) *Session {
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	logger := opts.Logger.With(
		slog.String("session_id", shortuuid.New()[:5]),
		slog.String("remote", conn.RemoteAddr()),
	)
	return &Session{conn: conn, opts: opts, rng: rng, log: logger}
}

// Run drives the session to a terminal outcome. The socket is closed
// and the outcome logged on every exit path; a panic inside the quiz
// loop finalizes the player with the credit accumulated so far and
// never escapes to the acceptor.
func (s *Session) Run() {
	defer s.conn.Close()
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("session fault", slog.Any("panic", r))
			s.finalize(game.StatusError, s.score, max(s.attempted, 1), true)
		}
	}()

	if err := s.conn.WriteLine(api.ServerReady(msgReady)); err != nil {
		return
	}

	if !s.handshake() {
		return
	}
	if !s.waitInLobby() {
		return
	}
	s.runQuiz()
}

// handshake reads lines until a NAME declaration passes every gate:
// the operator pause flag, the phase, name uniqueness and the atomic
// waiting-room admission. Only a duplicate name keeps the loop alive;
// other rejections close the connection.
func (s *Session) handshake() bool {
	for {
		line, res := s.conn.ReadLine(0)
		if res != ReadOK {
			s.log.Info("client left during handshake")
			return false
		}

		msg, err := api.ParseClientLine(line)
		if err != nil {
			s.conn.WriteLine(api.Error(msgExpectName))
			continue
		}
		name, ok := msg.(api.NameMessage)
		if !ok {
			s.conn.WriteLine(api.Error(msgExpectName))
			continue
		}

		if !s.opts.State.Serving() {
			s.conn.WriteLine(api.ServerPaused(msgPaused))
			s.log.Info("handshake rejected, admissions paused", slog.String("name", name.Name))
			return false
		}
		if s.opts.State.Phase() == game.PhaseStarted {
			s.conn.WriteLine(api.GameStarted(msgStarted))
			s.log.Info("handshake rejected, quiz running", slog.String("name", name.Name))
			return false
		}
		if !s.opts.Registry.Reserve(name.Name, s.conn) {
			s.conn.WriteLine(api.MsgNameTaken)
			continue
		}
		if !s.opts.State.TryAdmit(name.Name) {
			// The phase flipped between the gate check and admission.
			s.opts.Registry.Remove(name.Name)
			s.conn.WriteLine(api.GameStarted(msgStarted))
			s.log.Info("handshake lost admission race", slog.String("name", name.Name))
			return false
		}

		s.name = name.Name
		s.gen = s.opts.Scores.Generation()
		s.log = s.log.With(slog.String("player", name.Name))

		if err := s.conn.WriteLine(api.MsgNameOK); err != nil {
			return false
		}
		s.log.Info("player admitted to waiting room")
		return true
	}
}

// waitInLobby polls until the operator starts the game, emitting WAIT
// heartbeats. Lobby phase flips are rare operator events, so a
// bounded poll keeps the synchronization simple.
func (s *Session) waitInLobby() bool {
	lastWait := time.Now()
	for {
		if s.opts.ShuttingDown != nil && s.opts.ShuttingDown() {
			s.conn.WriteLine(api.ServerClosed(msgClosed))
			s.log.Info("lobby aborted, server closing")
			return false
		}
		if s.opts.State.Phase() == game.PhaseStarted {
			if err := s.conn.WriteLine(api.MsgStart); err != nil {
				return false
			}
			s.log.Info("released from waiting room")
			return true
		}
		if time.Since(lastWait) >= s.opts.WaitInterval {
			if err := s.conn.WriteLine(api.MsgWait); err != nil {
				s.log.Info("client left the waiting room")
				return false
			}
			lastWait = time.Now()
		}
		time.Sleep(s.opts.PollInterval)
	}
}

// runQuiz walks the session's shuffled question sequence and settles
// the terminal outcome.
func (s *Session) runQuiz() {
	seq := quiz.NewSequence(s.opts.Pool, s.opts.MaxQuestions, s.rng)
	total := len(seq)

	for i, item := range seq {
		// A STOP lands at the next question boundary, not instantly.
		if s.opts.State.Phase() != game.PhaseStarted {
			s.log.Info("game stopped mid-quiz")
			s.finalize(game.StatusIncomplete, s.score, s.attempted, s.attempted > 0)
			return
		}

		if err := s.conn.WriteLine(api.Question(i, item.Text, item.Options[:])); err != nil {
			s.finalize(game.StatusIncomplete, s.score, s.attempted, s.attempted > 0)
			return
		}

		line, res := s.conn.ReadLine(s.opts.AnswerTimeout)
		switch res {
		case ReadTimedOut:
			attempted := max(i, 1)
			s.conn.WriteLine(api.Score(s.score, attempted))
			s.finalize(game.StatusTimeout, s.score, attempted, true)
			return

		case ReadClosed:
			// No scoreboard entry for a player who never answered.
			s.finalize(game.StatusIncomplete, s.score, i, i > 0)
			return
		}

		if s.evaluate(i, item, line) {
			s.score++
		}
		s.attempted = i + 1
	}

	s.conn.WriteLine(api.Score(s.score, total))
	s.finalize(game.StatusDone, s.score, total, true)
}

// evaluate scores one answer line. A malformed line or a stale
// question id counts as wrong; the correct option is never revealed.
func (s *Session) evaluate(questionID int, item quiz.SequenceItem, line string) bool {
	msg, err := api.ParseClientLine(line)
	if err != nil {
		s.conn.WriteLine(api.Eval(false, strings.TrimSpace(line)))
		return false
	}
	answer, ok := msg.(api.AnswerMessage)
	if !ok {
		s.conn.WriteLine(api.Eval(false, strings.TrimSpace(line)))
		return false
	}

	if answer.QuestionID != strconv.Itoa(questionID) {
		s.conn.WriteLine(api.Eval(false, answer.Letter))
		return false
	}

	correct := strings.EqualFold(answer.Letter, item.Correct)
	s.conn.WriteLine(api.Eval(correct, answer.Letter))
	return correct
}

// finalize settles the player's terminal status and, when warranted,
// the single authoritative scoreboard write. Idempotent: only the
// first call takes effect.
func (s *Session) finalize(status game.Status, score, total int, writeRow bool) {
	if s.finalized || s.name == "" {
		return
	}
	s.finalized = true

	s.opts.State.SetPlayerStatus(s.name, status)
	if writeRow {
		if !s.opts.Scores.RecordOutcome(s.gen, s.name, score, total, status) {
			s.log.Info("outcome dropped, scoreboard was reset")
		}
	}
	s.log.Info("session finished",
		slog.String("status", string(status)),
		slog.Int("score", score),
		slog.Int("total", total))
}
