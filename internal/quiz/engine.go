// internal/quiz/engine.go
//
// Core quiz engine for a single game.
// Responsibilities:
//   - Walk a fixed question sequence, one question at a time.
//   - Validate and resolve answers (correct / forgiven / lost).
//   - Bank winnings at safe checkpoints.
//   - Apply the three single-use lifelines (50-50, assist, extra life).
//   - Track state transitions: playing → won/lost.
//
// Notes:
//   - The engine performs no I/O and holds no presentation references. Callers
//     render from State() after every operation.
//   - Advance() is always caller-issued; any reveal delay belongs to the caller.
//   - A Game is not safe for concurrent use; callers serialize access per game.
package quiz

import (
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"
)

// assistConfidence is the weight (percent) the assist puts on the correct option.
var assistConfidence = map[Difficulty]int{
	DifficultyEasy:   75,
	DifficultyMedium: 60,
	DifficultyHard:   50,
}

// Game holds the mutable state of a single quiz run.
type Game struct {
	ID string

	bank *Bank
	rng  *rand.Rand

	current int
	total   int
	safe    int

	lifelines  map[Lifeline]bool
	extraArmed bool
	eliminated [OptionCount]bool

	// pending is set after a correct or forgiven answer until Advance is called.
	pending bool

	status Status
	final  int
}

// New constructs a game over bank. rng drives the 50-50 elimination; pass a
// seeded source for deterministic play. A nil rng is seeded from the clock.
//
// The bank is assumed valid (see package bank); it is shared, never mutated.
func New(bank *Bank, rng *rand.Rand) *Game {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Game{
		ID:   uuid.NewString(),
		bank: bank,
		rng:  rng,
		lifelines: map[Lifeline]bool{
			LifelineFiftyFifty: true,
			LifelineAssist:     true,
			LifelineExtraLife:  true,
		},
		status: StatusNone,
	}
}

// SubmitAnswer resolves option against the current question.
//
// Validation rules:
//   - Game must not be finished.
//   - The previous answer must have been advanced past.
//   - option must be 0..3 and not eliminated by 50-50.
//
// State transitions:
//   - Correct → total = ladder[i]; at a checkpoint safe = total. Advance pending.
//   - Wrong with extra life armed → armed consumed, no penalty. Advance pending.
//   - Wrong otherwise → total = safe, game lost.
func (g *Game) SubmitAnswer(option int) (AnswerResult, error) {
	if g.Finished() {
		return AnswerResult{}, fmt.Errorf("submit answer: %w", ErrGameAlreadyTerminal)
	}
	if g.pending {
		return AnswerResult{}, fmt.Errorf("submit answer: %w", ErrAwaitingAdvance)
	}
	if option < 0 || option >= OptionCount {
		return AnswerResult{}, fmt.Errorf("option %d out of range: %w", option, ErrInvalidOptionIndex)
	}
	if g.eliminated[option] {
		return AnswerResult{}, fmt.Errorf("option %d was eliminated: %w", option, ErrInvalidOptionIndex)
	}

	q := g.question()
	if option == q.Answer {
		g.total = g.bank.Ladder[g.current]
		if g.bank.IsSafeLevel(g.current) {
			g.safe = g.total
		}
		g.pending = true
		return AnswerResult{Outcome: OutcomeCorrect, Reveal: q.Answer}, nil
	}

	if g.extraArmed {
		g.extraArmed = false
		g.pending = true
		return AnswerResult{Outcome: OutcomeForgiven, Reveal: q.Answer}, nil
	}

	g.total = g.safe
	g.finish(StatusLost)
	return AnswerResult{Outcome: OutcomeLost, Reveal: q.Answer, FinalAmount: g.final}, nil
}

// Advance moves past an answered question. After the last question the game
// is won with the current total.
func (g *Game) Advance() error {
	if g.Finished() {
		return fmt.Errorf("advance: %w", ErrGameAlreadyTerminal)
	}
	if !g.pending {
		return fmt.Errorf("advance: %w", ErrNothingToAdvance)
	}
	g.pending = false
	if g.current+1 == len(g.bank.Questions) {
		g.finish(StatusWon)
		return nil
	}
	g.current++
	g.eliminated = [OptionCount]bool{}
	return nil
}

// ActivateLifeline consumes lifeline id for the current question.
// A used, unknown, or post-game lifeline fails with ErrInvalidLifelineState.
func (g *Game) ActivateLifeline(id Lifeline) (LifelineResult, error) {
	if g.Finished() {
		return LifelineResult{}, fmt.Errorf("lifeline %s: %w: %w", id, ErrInvalidLifelineState, ErrGameAlreadyTerminal)
	}
	if available, known := g.lifelines[id]; !known || !available {
		return LifelineResult{}, fmt.Errorf("lifeline %s: %w", id, ErrInvalidLifelineState)
	}
	if g.pending {
		return LifelineResult{}, fmt.Errorf("lifeline %s: %w", id, ErrAwaitingAdvance)
	}

	res := LifelineResult{Lifeline: id}
	switch id {
	case LifelineFiftyFifty:
		res.Eliminated = g.fiftyFifty()
	case LifelineAssist:
		h := g.assist()
		res.Hint = &h
	case LifelineExtraLife:
		g.extraArmed = true
		res.Armed = true
	}
	g.lifelines[id] = false
	return res, nil
}

// fiftyFifty eliminates two of the three wrong options, chosen uniformly.
func (g *Game) fiftyFifty() []int {
	answer := g.question().Answer
	wrong := make([]int, 0, OptionCount-1)
	for i := 0; i < OptionCount; i++ {
		if i != answer {
			wrong = append(wrong, i)
		}
	}
	g.rng.Shuffle(len(wrong), func(i, j int) { wrong[i], wrong[j] = wrong[j], wrong[i] })

	removed := wrong[:2]
	sort.Ints(removed)
	for _, i := range removed {
		g.eliminated[i] = true
	}
	return removed
}

// assist weights the correct option by difficulty and spreads the rest
// evenly. The suggestion is the heaviest option, which is always the answer.
func (g *Game) assist() AssistHint {
	q := g.question()
	pct, ok := assistConfidence[q.Difficulty]
	if !ok {
		pct = assistConfidence[DifficultyHard]
	}
	base := float64(pct) / 100
	h := AssistHint{Suggestion: q.Answer, Confidence: pct}
	for i := range h.Weights {
		h.Weights[i] = (1 - base) / float64(OptionCount-1)
	}
	h.Weights[q.Answer] = base
	return h
}

// finish records the terminal outcome.
func (g *Game) finish(s Status) {
	g.status = s
	g.final = g.total
}

func (g *Game) question() *Question { return &g.bank.Questions[g.current] }

// Finished reports whether the game has been won or lost.
func (g *Game) Finished() bool { return g.status != StatusNone }

// Status reports the terminal outcome (none while playing).
func (g *Game) Status() Status { return g.status }

// FinalAmount is the take-home amount once finished, zero before.
func (g *Game) FinalAmount() int { return g.final }

// Cleared is the number of questions answered correctly or forgiven so far.
func (g *Game) Cleared() int {
	switch {
	case g.status == StatusWon:
		return len(g.bank.Questions)
	case g.pending:
		return g.current + 1
	}
	return g.current
}

// LifelinesUsed counts consumed lifelines.
func (g *Game) LifelinesUsed() int {
	n := 0
	for _, ok := range g.lifelines {
		if !ok {
			n++
		}
	}
	return n
}

// State returns a snapshot safe to hand to presentation layers.
func (g *Game) State() State {
	q := g.question()
	lifelines := make(map[Lifeline]bool, len(g.lifelines))
	for k, v := range g.lifelines {
		lifelines[k] = v
	}
	elim := []int{}
	for i, gone := range g.eliminated {
		if gone {
			elim = append(elim, i)
		}
	}
	return State{
		ID:             g.ID,
		CurrentIndex:   g.current,
		TotalAmount:    g.total,
		SafeAmount:     g.safe,
		Lifelines:      lifelines,
		ExtraLifeArmed: g.extraArmed,
		AwaitAdvance:   g.pending,
		Status:         g.status,
		FinalAmount:    g.final,
		Question: QuestionView{
			Number:     g.current + 1,
			Prompt:     q.Prompt,
			Options:    q.Options,
			Difficulty: q.Difficulty,
			Prize:      g.bank.Ladder[g.current],
			Eliminated: elim,
		},
	}
}
