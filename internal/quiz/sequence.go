package quiz

import (
	"math/rand"
	"strings"
)

// SequenceItem is one entry of a per-session question sequence: the
// options are in shuffled display order and Correct is the remapped
// letter pointing at the original correct text.
type SequenceItem struct {
	Text    string
	Options [4]string
	Correct string
}

// NewSequence derives a session-local question sequence: a random
// permutation of the pool truncated to max, with each question's
// options independently reshuffled. The result is owned solely by the
// calling session.
func NewSequence(pool *Pool, max int, rng *rand.Rand) []SequenceItem {
	questions := pool.Questions()
	rng.Shuffle(len(questions), func(i, j int) {
		questions[i], questions[j] = questions[j], questions[i]
	})
	if max > 0 && len(questions) > max {
		questions = questions[:max]
	}

	seq := make([]SequenceItem, 0, len(questions))
	for _, q := range questions {
		seq = append(seq, shuffleOptions(q, rng))
	}
	return seq
}

// shuffleOptions reshuffles a question's options and re-derives the
// correct letter by locating the original correct text in the
// shuffled order.
func shuffleOptions(q Question, rng *rand.Rand) SequenceItem {
	correctText := q.CorrectText()

	opts := q.Options
	rng.Shuffle(len(opts), func(i, j int) {
		opts[i], opts[j] = opts[j], opts[i]
	})

	item := SequenceItem{
		Text:    q.Text,
		Options: opts,
		Correct: "A",
	}
	for i, text := range opts {
		if text == correctText {
			item.Correct = string(Letters[i])
			break
		}
	}
	return item
}

// LetterIndex maps an option letter (case-insensitive) to its
// position, or -1 if it is not one of A..D.
func LetterIndex(letter string) int {
	if len(letter) != 1 {
		return -1
	}
	return strings.Index(Letters, strings.ToUpper(letter))
}
