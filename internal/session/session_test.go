package session_test

import (
	"bufio"
	"io"
	"log/slog"
	"math/rand"
	"net"
	"strings"
	"testing"
	"time"

	"quizroom-backend/api"
	"quizroom-backend/internal/game"
	"quizroom-backend/internal/quiz"
	"quizroom-backend/internal/session"
)

type env struct {
	registry *game.NameRegistry
	state    *game.Controller
	scores   *game.Scoreboard
	pool     *quiz.Pool
}

func newEnv(t *testing.T, questions []quiz.Question) *env {
	t.Helper()
	pool, err := quiz.NewPool(questions)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	registry := game.NewNameRegistry()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &env{
		registry: registry,
		state:    game.NewController(registry, logger),
		scores:   game.NewScoreboard(),
		pool:     pool,
	}
}

func fourOptions(correct string) []quiz.Question {
	return []quiz.Question{
		{Text: "pick", Options: [4]string{"alpha", "beta", "gamma", "delta"}, Answer: correct},
	}
}

// client drives the player side of a piped session.
type client struct {
	conn net.Conn
	r    *bufio.Reader
	t    *testing.T
}

func startSession(t *testing.T, e *env, answerTimeout time.Duration) *client {
	t.Helper()
	serverSide, clientSide := net.Pipe()

	sess := session.New(session.NewConn(serverSide), session.Options{
		Registry:      e.registry,
		State:         e.state,
		Scores:        e.scores,
		Pool:          e.pool,
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		MaxQuestions:  10,
		AnswerTimeout: answerTimeout,
		WaitInterval:  50 * time.Millisecond,
		PollInterval:  2 * time.Millisecond,
		Rand:          rand.New(rand.NewSource(1)),
	})
	go sess.Run()

	t.Cleanup(func() { clientSide.Close() })
	return &client{conn: clientSide, r: bufio.NewReader(clientSide), t: t}
}

func (c *client) send(line string) {
	c.t.Helper()
	c.conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
	if _, err := c.conn.Write([]byte(line + "\n")); err != nil {
		c.t.Fatalf("send %q: %v", line, err)
	}
}

func (c *client) readLine() string {
	c.t.Helper()
	c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := c.r.ReadString('\n')
	if err != nil {
		c.t.Fatalf("read: %v", err)
	}
	return strings.TrimRight(line, "\n")
}

// readSkippingWait reads the next line that is not a WAIT heartbeat.
func (c *client) readSkippingWait() string {
	c.t.Helper()
	for {
		line := c.readLine()
		if line != api.MsgWait {
			return line
		}
	}
}

func (c *client) expect(want string) {
	c.t.Helper()
	if got := c.readSkippingWait(); got != want {
		c.t.Fatalf("got line %q, want %q", got, want)
	}
}

// handshakeAndStart registers a player, starts the game and consumes
// the START release.
func (c *client) handshakeAndStart(e *env, name string) {
	c.t.Helper()
	c.expectPrefix("SERVER_READY|")
	c.send(api.Name(name))
	c.expect(api.MsgNameOK)
	e.state.Start()
	c.expect(api.MsgStart)
}

func (c *client) expectPrefix(prefix string) {
	c.t.Helper()
	if got := c.readSkippingWait(); !strings.HasPrefix(got, prefix) {
		c.t.Fatalf("got line %q, want prefix %q", got, prefix)
	}
}

// parseQuestion splits a QUESTION line into id-text-options parts.
func parseQuestion(t *testing.T, line string) (text string, options []string) {
	t.Helper()
	payload, ok := strings.CutPrefix(line, "QUESTION:")
	if !ok {
		t.Fatalf("not a question line: %q", line)
	}
	parts := strings.SplitN(payload, "|", 3)
	if len(parts) != 3 {
		t.Fatalf("bad question line: %q", line)
	}
	return parts[1], strings.Split(parts[2], ",")
}

// letterFor finds the display letter of the wanted option text.
func letterFor(t *testing.T, options []string, text string) string {
	t.Helper()
	for i, opt := range options {
		if opt == text {
			return string(quiz.Letters[i])
		}
	}
	t.Fatalf("option %q not in %v", text, options)
	return ""
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestScoringRoundTrip(t *testing.T) {
	e := newEnv(t, fourOptions("C"))
	c := startSession(t, e, time.Second)

	c.handshakeAndStart(e, "alice")

	q := c.readSkippingWait()
	_, options := parseQuestion(t, q)
	letter := letterFor(t, options, "gamma")

	c.send("ANSWER:0|" + strings.ToLower(letter))
	c.expect("EVAL|RIGHT|" + strings.ToLower(letter))
	c.expect(api.Score(1, 1))

	waitFor(t, "scoreboard row", func() bool { return e.scores.Len() == 1 })
	row := e.scores.Rows()[0]
	if row.Name != "alice" || row.Score != 1 || row.Total != 1 || row.Status != game.StatusDone {
		t.Fatalf("unexpected row: %+v", row)
	}
}

func TestWrongAnswerDoesNotRevealCorrect(t *testing.T) {
	e := newEnv(t, fourOptions("C"))
	c := startSession(t, e, time.Second)

	c.handshakeAndStart(e, "bob")

	_, options := parseQuestion(t, c.readSkippingWait())
	right := letterFor(t, options, "gamma")
	wrong := "A"
	if right == "A" {
		wrong = "B"
	}

	c.send("ANSWER:0|" + wrong)
	c.expect("EVAL|WRONG|" + wrong)
	c.expect(api.Score(0, 1))
}

func TestMismatchedQuestionIDCountsWrong(t *testing.T) {
	e := newEnv(t, fourOptions("A"))
	c := startSession(t, e, time.Second)

	c.handshakeAndStart(e, "carol")
	c.readSkippingWait() // question 0

	c.send("ANSWER:7|A")
	c.expect("EVAL|WRONG|A")
	c.expect(api.Score(0, 1))
}

func TestMalformedAnswerCountsWrong(t *testing.T) {
	e := newEnv(t, fourOptions("A"))
	c := startSession(t, e, time.Second)

	c.handshakeAndStart(e, "dave")
	c.readSkippingWait()

	c.send("gibberish")
	c.expect("EVAL|WRONG|gibberish")
	c.expect(api.Score(0, 1))
}

func TestTimeoutFinalizesPartialScore(t *testing.T) {
	questions := []quiz.Question{
		{Text: "q1", Options: [4]string{"a", "b", "c", "d"}, Answer: "A"},
		{Text: "q2", Options: [4]string{"a", "b", "c", "d"}, Answer: "A"},
		{Text: "q3", Options: [4]string{"a", "b", "c", "d"}, Answer: "A"},
	}
	e := newEnv(t, questions)
	c := startSession(t, e, 150*time.Millisecond)

	c.handshakeAndStart(e, "eve")

	// Answer the first two questions, then go silent on the third.
	for i := 0; i < 2; i++ {
		c.readSkippingWait()
		c.send(api.Answer(i, "A"))
		c.expectPrefix("EVAL|")
	}
	c.readSkippingWait() // question 2, never answered

	c.expect(api.Score(2, 2))

	waitFor(t, "timeout row", func() bool { return e.scores.Len() == 1 })
	row := e.scores.Rows()[0]
	if row.Status != game.StatusTimeout || row.Total != 2 {
		t.Fatalf("unexpected row: %+v", row)
	}
}

func TestDisconnectBeforeAnsweringLeavesNoRow(t *testing.T) {
	e := newEnv(t, fourOptions("A"))
	c := startSession(t, e, time.Second)

	c.handshakeAndStart(e, "frank")
	c.readSkippingWait() // question 0 delivered

	c.conn.Close()

	waitFor(t, "incomplete status", func() bool {
		for _, p := range e.state.ActivePlayers() {
			if p.Name == "frank" && p.Status == game.StatusIncomplete {
				return true
			}
		}
		return false
	})
	if e.scores.Len() != 0 {
		t.Fatalf("player who never answered has a row: %v", e.scores.Rows())
	}
}

func TestDisconnectMidQuizWritesPartialRow(t *testing.T) {
	questions := []quiz.Question{
		{Text: "q1", Options: [4]string{"a", "b", "c", "d"}, Answer: "A"},
		{Text: "q2", Options: [4]string{"a", "b", "c", "d"}, Answer: "A"},
	}
	e := newEnv(t, questions)
	c := startSession(t, e, time.Second)

	c.handshakeAndStart(e, "grace")

	c.readSkippingWait()
	c.send(api.Answer(0, "A"))
	c.expectPrefix("EVAL|")
	c.readSkippingWait() // question 1 delivered

	c.conn.Close()

	waitFor(t, "incomplete row", func() bool { return e.scores.Len() == 1 })
	row := e.scores.Rows()[0]
	if row.Status != game.StatusIncomplete || row.Total != 1 {
		t.Fatalf("unexpected row: %+v", row)
	}
}

func TestDuplicateNameKeepsHandshakeAlive(t *testing.T) {
	e := newEnv(t, fourOptions("A"))

	first := startSession(t, e, time.Second)
	first.expectPrefix("SERVER_READY|")
	first.send(api.Name("alice"))
	first.expect(api.MsgNameOK)

	second := startSession(t, e, time.Second)
	second.expectPrefix("SERVER_READY|")
	second.send(api.Name("alice"))
	second.expect(api.MsgNameTaken)

	// The handshake stays open for a new name.
	second.send(api.Name("alice2"))
	second.expect(api.MsgNameOK)
}

func TestPausedServerRejectsHandshake(t *testing.T) {
	e := newEnv(t, fourOptions("A"))
	e.state.PauseOrResume()

	c := startSession(t, e, time.Second)
	c.expectPrefix("SERVER_READY|")
	c.send(api.Name("late"))
	c.expectPrefix("SERVER_PAUSED|")
}

func TestLateJoinRejectedAfterStart(t *testing.T) {
	e := newEnv(t, fourOptions("A"))
	e.state.Start()

	c := startSession(t, e, time.Second)
	c.expectPrefix("SERVER_READY|")
	c.send(api.Name("late"))
	c.expectPrefix("GAME_STARTED|")
}
