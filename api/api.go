// Package api defines the newline-delimited text protocol spoken
// between the quiz server and its players, plus the error payloads
// served to the operator dashboard.
//
// Every record is a single UTF-8 line. Client lines are parsed into a
// closed set of message variants; anything else is malformed.
package api

import (
	"errors"
	"fmt"
	"strings"
)

// Server to client lines without payload.
const (
	MsgNameOK    = "NAME_OK"
	MsgNameTaken = "NAME_TAKEN"
	MsgWait      = "WAIT"
	MsgStart     = "START"
	MsgStop      = "STOP"
)

// Prefixes of server to client lines carrying a payload.
const (
	prefixServerReady  = "SERVER_READY|"
	prefixServerPaused = "SERVER_PAUSED|"
	prefixServerClosed = "SERVER_CLOSED|"
	prefixGameStarted  = "GAME_STARTED|"
	prefixGamePaused   = "GAME_PAUSED|"
	prefixError        = "ERROR|"
	prefixQuestion     = "QUESTION:"
	prefixEval         = "EVAL|"
	prefixScore        = "SCORE|"
	prefixLeaderboard  = "LEADERBOARD|"
)

// Client to server message prefixes.
const (
	prefixName   = "NAME|"
	prefixAnswer = "ANSWER:"
)

// ErrMalformed reports a client line outside the protocol's closed
// message set.
var ErrMalformed = errors.New("malformed protocol line")

// ClientMessage is one of the client to server message variants:
// NameMessage or AnswerMessage.
type ClientMessage interface {
	isClientMessage()
}

// NameMessage is the handshake declaration: NAME|<displayName>.
type NameMessage struct {
	Name string
}

// AnswerMessage answers the most recently sent question:
// ANSWER:<questionId>|<letter-or-SKIP>.
type AnswerMessage struct {
	QuestionID string
	Letter     string
}

func (NameMessage) isClientMessage()   {}
func (AnswerMessage) isClientMessage() {}

// ParseClientLine turns a raw client line into one of the closed set
// of client message variants. The returned error wraps ErrMalformed
// for anything unparseable.
func ParseClientLine(line string) (ClientMessage, error) {
	line = strings.TrimSpace(line)

	switch {
	case strings.HasPrefix(line, prefixName):
		name := strings.TrimSpace(strings.TrimPrefix(line, prefixName))
		if name == "" {
			return nil, fmt.Errorf("%w: empty name", ErrMalformed)
		}
		return NameMessage{Name: name}, nil

	case strings.HasPrefix(line, prefixAnswer):
		payload := strings.TrimPrefix(line, prefixAnswer)
		id, letter, ok := strings.Cut(payload, "|")
		if !ok {
			return nil, fmt.Errorf("%w: answer without letter", ErrMalformed)
		}
		return AnswerMessage{
			QuestionID: strings.TrimSpace(id),
			Letter:     strings.TrimSpace(letter),
		}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrMalformed, line)
	}
}

// Name builds the handshake line sent by clients.
func Name(name string) string {
	return prefixName + name
}

// Answer builds the answer line sent by clients.
func Answer(questionID int, letter string) string {
	return fmt.Sprintf("%s%d|%s", prefixAnswer, questionID, letter)
}

// ServerReady prompts a freshly accepted connection for a name.
func ServerReady(message string) string {
	return prefixServerReady + message
}

// ServerPaused rejects a handshake while the operator paused admissions.
func ServerPaused(message string) string {
	return prefixServerPaused + message
}

// ServerClosed notifies a lobby that the server is shutting down.
func ServerClosed(message string) string {
	return prefixServerClosed + message
}

// GameStarted rejects a late join while a quiz is running.
func GameStarted(message string) string {
	return prefixGameStarted + message
}

// GamePaused notifies an in-progress session of an operator pause.
func GamePaused(message string) string {
	return prefixGamePaused + message
}

// Error builds a generic rejection line, e.g. for an invalid handshake.
func Error(message string) string {
	return prefixError + message
}

// Question builds the question line. Options are rendered in the
// given order; clients display them exactly as received.
func Question(questionID int, text string, options []string) string {
	return fmt.Sprintf("%s%d|%s|%s", prefixQuestion, questionID, text, strings.Join(options, ","))
}

// Eval builds the per-answer feedback line. It echoes the letter the
// player submitted and never reveals the correct option.
func Eval(correct bool, given string) string {
	tag := "WRONG"
	if correct {
		tag = "RIGHT"
	}
	return prefixEval + tag + "|" + given
}

// Score builds the terminal score line for a session.
func Score(points, total int) string {
	return fmt.Sprintf("%s%d/%d", prefixScore, points, total)
}

// LeaderboardRow is one name:score pair of a leaderboard broadcast.
type LeaderboardRow struct {
	Name  string
	Score int
}

// Leaderboard builds the optional leaderboard broadcast line,
// semicolon-delimited name:score pairs.
func Leaderboard(rows []LeaderboardRow) string {
	parts := make([]string, 0, len(rows))
	for _, row := range rows {
		parts = append(parts, fmt.Sprintf("%s:%d", row.Name, row.Score))
	}
	return prefixLeaderboard + strings.Join(parts, ";")
}
