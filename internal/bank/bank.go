// internal/bank/bank.go
//
// Loads and validates the static question bank + prize ladder.
//
// Sources (Load):
//   1. If path is non-empty, read that JSON file (QUESTIONS_FILE).
//   2. Otherwise fall back to the embedded assets/bank.json.
//
// Document shape:
//   {"questions":[{"prompt","options":[4],"answer","difficulty"}...],
//    "ladder":[...], "safeLevels":[...]}
//
// Constraints:
//   • At least one question; ladder index-aligned with questions.
//   • Ladder strictly increasing and positive.
//   • Exactly four non-empty options, answer 0..3, difficulty easy|medium|hard.
//   • Safe levels in range and unique.
//   • The embedded default is parsed once (sync.Once).

package bank

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/kbcquiz/assets"
	"github.com/robalobadob/kbcquiz/internal/quiz"
)

var (
	defaultOnce sync.Once
	defaultBank *quiz.Bank
	defaultErr  error
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid question bank")

// Load returns the bank from path, or the embedded default when path is empty.
func Load(path string) (*quiz.Bank, error) {
	if path == "" {
		return Default()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	b, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	log.Info().Str("file", path).Int("questions", len(b.Questions)).Msg("question bank loaded")
	return b, nil
}

// Default returns the embedded bank, parsed once and shared.
func Default() (*quiz.Bank, error) {
	defaultOnce.Do(func() {
		defaultBank, defaultErr = Parse(assets.BankJSON())
	})
	return defaultBank, defaultErr
}

// Parse decodes and validates a bank document.
func Parse(raw []byte) (*quiz.Bank, error) {
	var b quiz.Bank
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("decode bank: %w", err)
	}
	if err := Validate(&b); err != nil {
		return nil, err
	}
	return &b, nil
}

// Validate checks the structural rules listed in the package comment.
func Validate(b *quiz.Bank) error {
	if len(b.Questions) == 0 {
		return fmt.Errorf("%w: no questions", ErrInvalid)
	}
	if len(b.Ladder) != len(b.Questions) {
		return fmt.Errorf("%w: ladder has %d steps for %d questions", ErrInvalid, len(b.Ladder), len(b.Questions))
	}
	prev := 0
	for i, amt := range b.Ladder {
		if amt <= prev {
			return fmt.Errorf("%w: ladder[%d]=%d not above %d", ErrInvalid, i, amt, prev)
		}
		prev = amt
	}
	for i, q := range b.Questions {
		if strings.TrimSpace(q.Prompt) == "" {
			return fmt.Errorf("%w: question %d has empty prompt", ErrInvalid, i)
		}
		for j, opt := range q.Options {
			if strings.TrimSpace(opt) == "" {
				return fmt.Errorf("%w: question %d option %d is empty", ErrInvalid, i, j)
			}
		}
		if q.Answer < 0 || q.Answer >= quiz.OptionCount {
			return fmt.Errorf("%w: question %d answer %d out of range", ErrInvalid, i, q.Answer)
		}
		if !q.Difficulty.Valid() {
			return fmt.Errorf("%w: question %d difficulty %q", ErrInvalid, i, q.Difficulty)
		}
	}
	seen := make(map[int]struct{}, len(b.SafeLevels))
	for _, s := range b.SafeLevels {
		if s < 0 || s >= len(b.Questions) {
			return fmt.Errorf("%w: safe level %d out of range", ErrInvalid, s)
		}
		if _, dup := seen[s]; dup {
			return fmt.Errorf("%w: safe level %d repeated", ErrInvalid, s)
		}
		seen[s] = struct{}{}
	}
	return nil
}

// Counts tallies questions per difficulty.
func Counts(b *quiz.Bank) map[quiz.Difficulty]int {
	out := make(map[quiz.Difficulty]int, 3)
	for _, q := range b.Questions {
		out[q.Difficulty]++
	}
	return out
}
