// internal/quiz/types.go
//
// Core type definitions for the quiz engine.
// Defines:
//   - Question / Bank: static question sequence, prize ladder, safe checkpoints.
//   - Lifeline, Outcome, Status: string enums shared with presentation layers.
//   - AnswerResult / LifelineResult: payloads returned by engine operations.
//   - State / QuestionView: read-only snapshot for rendering.

package quiz

// Difficulty labels a question's tier. It drives the assist confidence.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Valid reports whether d is one of the known tiers.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// OptionCount is the number of answer options per question.
const OptionCount = 4

// Question is an immutable quiz record. Options keep their authored order.
type Question struct {
	Prompt     string              `json:"prompt"`
	Options    [OptionCount]string `json:"options"`
	Answer     int                 `json:"answer"` // index of the correct option (0..3)
	Difficulty Difficulty          `json:"difficulty"`
}

// Bank is the static configuration a game is built from.
// Questions[i] is worth Ladder[i]; SafeLevels holds 0-based checkpoint indices.
type Bank struct {
	Questions  []Question `json:"questions"`
	Ladder     []int      `json:"ladder"`
	SafeLevels []int      `json:"safeLevels"`
}

// IsSafeLevel reports whether index i is a safe checkpoint.
func (b *Bank) IsSafeLevel(i int) bool {
	for _, s := range b.SafeLevels {
		if s == i {
			return true
		}
	}
	return false
}

// Lifeline identifies a single-use assistive action.
type Lifeline string

const (
	LifelineFiftyFifty Lifeline = "fifty_fifty"
	LifelineAssist     Lifeline = "assist"
	LifelineExtraLife  Lifeline = "extra_life"
)

// Lifelines lists every lifeline in display order.
var Lifelines = []Lifeline{LifelineFiftyFifty, LifelineAssist, LifelineExtraLife}

// Outcome is the result of a single SubmitAnswer call.
type Outcome string

const (
	OutcomeCorrect  Outcome = "correct"
	OutcomeForgiven Outcome = "forgiven"
	OutcomeLost     Outcome = "lost"
)

// Status is the terminal outcome of the game as a whole.
type Status string

const (
	StatusNone Status = "none"
	StatusWon  Status = "won"
	StatusLost Status = "lost"
)

// AnswerResult is returned by SubmitAnswer.
// FinalAmount is only meaningful when Outcome is OutcomeLost.
type AnswerResult struct {
	Outcome     Outcome `json:"outcome"`
	Reveal      int     `json:"reveal"`
	FinalAmount int     `json:"finalAmount,omitempty"`
}

// LifelineResult is returned by ActivateLifeline. Only the fields relevant
// to the activated lifeline are populated.
type LifelineResult struct {
	Lifeline Lifeline `json:"lifeline"`

	// fifty_fifty
	Eliminated []int `json:"eliminated,omitempty"`

	// assist
	Hint *AssistHint `json:"hint,omitempty"`

	// extra_life
	Armed bool `json:"armed,omitempty"`
}

// AssistHint is the computer-assist suggestion for the current question.
// Weights is the displayed probability per option and sums to 1.
type AssistHint struct {
	Suggestion int                  `json:"suggestion"`
	Confidence int                  `json:"confidence"` // percent
	Weights    [OptionCount]float64 `json:"weights"`
}

// QuestionView is the player-facing projection of the current question.
// It never carries the correct answer.
type QuestionView struct {
	Number     int                 `json:"number"` // 1-based
	Prompt     string              `json:"prompt"`
	Options    [OptionCount]string `json:"options"`
	Difficulty Difficulty          `json:"difficulty"`
	Prize      int                 `json:"prize"`
	Eliminated []int               `json:"eliminated"`
}

// State is a read-only snapshot of a game for presentation layers.
type State struct {
	ID             string            `json:"id"`
	CurrentIndex   int               `json:"currentIndex"`
	TotalAmount    int               `json:"totalAmount"`
	SafeAmount     int               `json:"safeAmount"`
	Lifelines      map[Lifeline]bool `json:"lifelines"`
	ExtraLifeArmed bool              `json:"extraLifeArmed"`
	AwaitAdvance   bool              `json:"awaitAdvance"`
	Status         Status            `json:"status"`
	FinalAmount    int               `json:"finalAmount"`
	Question       QuestionView      `json:"question"`
}
