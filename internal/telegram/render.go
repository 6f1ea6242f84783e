package telegram

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/robalobadob/kbcquiz/internal/quiz"
)

const helpText = `Kaun Banega Crorepati quiz

/play starts a game of 20 questions, each worth more than the last.
A wrong answer ends the game and you take home your last safe checkpoint.
/ladder shows the prize ladder.

Each game has three lifelines, usable once:
  50-50: removes two wrong options
  Assist: a hint with a confidence level
  Extra life: your next wrong answer is forgiven`

var optionLetters = [quiz.OptionCount]string{"A", "B", "C", "D"}

var lifelineLabels = map[quiz.Lifeline]string{
	quiz.LifelineFiftyFifty: "50-50",
	quiz.LifelineAssist:     "Assist",
	quiz.LifelineExtraLife:  "Extra life",
}

// formatRupees renders n with thousands separators: ₹100,000.
func formatRupees(n int) string {
	return message.NewPrinter(language.English).Sprintf("₹%d", n)
}

func renderLadder(bank *quiz.Bank) string {
	var b strings.Builder
	b.WriteString("Prize ladder\n")
	for i := len(bank.Ladder) - 1; i >= 0; i-- {
		mark := ""
		if bank.IsSafeLevel(i) {
			mark = "  (safe)"
		}
		fmt.Fprintf(&b, "%02d. %s%s\n", i+1, formatRupees(bank.Ladder[i]), mark)
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderQuestion(st quiz.State, total int) string {
	q := st.Question
	var b strings.Builder
	fmt.Fprintf(&b, "Question %d/%d for %s (%s)\n\n%s\n\n", q.Number, total, formatRupees(q.Prize), q.Difficulty, q.Prompt)
	gone := eliminatedSet(q.Eliminated)
	for i, opt := range q.Options {
		if gone[i] {
			continue
		}
		fmt.Fprintf(&b, "%s. %s\n", optionLetters[i], opt)
	}
	fmt.Fprintf(&b, "\nBanked: %s  Safe: %s", formatRupees(st.TotalAmount), formatRupees(st.SafeAmount))
	if st.ExtraLifeArmed {
		b.WriteString("\nExtra life armed")
	}
	return b.String()
}

func eliminatedSet(el []int) [quiz.OptionCount]bool {
	var out [quiz.OptionCount]bool
	for _, i := range el {
		if i >= 0 && i < quiz.OptionCount {
			out[i] = true
		}
	}
	return out
}

// questionKeyboard lays out the remaining options two per row, then one
// button per unused lifeline.
func questionKeyboard(st quiz.State) *tgbotapi.InlineKeyboardMarkup {
	gone := eliminatedSet(st.Question.Eliminated)
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for i := range st.Question.Options {
		if gone[i] {
			continue
		}
		a := action{kind: actAnswer, gameID: st.ID, option: i}
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(optionLetters[i], a.data()))
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}

	var ll []tgbotapi.InlineKeyboardButton
	for _, l := range quiz.Lifelines {
		if !st.Lifelines[l] {
			continue
		}
		a := action{kind: actLifeline, gameID: st.ID, lifeline: l}
		ll = append(ll, tgbotapi.NewInlineKeyboardButtonData(lifelineLabels[l], a.data()))
	}
	if len(ll) > 0 {
		rows = append(rows, ll)
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &kb
}

func nextKeyboard(gameID string, last bool) *tgbotapi.InlineKeyboardMarkup {
	label := "Next question"
	if last {
		label = "Collect prize"
	}
	a := action{kind: actNext, gameID: gameID}
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(label, a.data())),
	)
	return &kb
}

func playKeyboard() *tgbotapi.InlineKeyboardMarkup {
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("Play", actPlay)),
	)
	return &kb
}

func renderAnswer(res quiz.AnswerResult, q quiz.Question, st quiz.State) string {
	reveal := optionLetters[res.Reveal] + ". " + q.Options[res.Reveal]
	switch res.Outcome {
	case quiz.OutcomeCorrect:
		return fmt.Sprintf("Correct! %s\nYou have %s.", reveal, formatRupees(st.TotalAmount))
	case quiz.OutcomeForgiven:
		return fmt.Sprintf("Wrong, but your extra life saved you. The answer was %s\nYou keep %s.", reveal, formatRupees(st.TotalAmount))
	}
	return fmt.Sprintf("Wrong answer. The answer was %s", reveal)
}

func renderLifeline(res quiz.LifelineResult) string {
	switch res.Lifeline {
	case quiz.LifelineFiftyFifty:
		gone := make([]string, 0, len(res.Eliminated))
		for _, i := range res.Eliminated {
			gone = append(gone, optionLetters[i])
		}
		return "50-50: removed " + strings.Join(gone, " and ") + "."
	case quiz.LifelineAssist:
		if res.Hint == nil {
			return "Assist has nothing to say."
		}
		h := res.Hint
		var b strings.Builder
		fmt.Fprintf(&b, "Assist: %d%% sure it is %s.\n", h.Confidence, optionLetters[h.Suggestion])
		for i, w := range h.Weights {
			fmt.Fprintf(&b, "%s %.0f%%  ", optionLetters[i], w*100)
		}
		return strings.TrimRight(b.String(), " ")
	case quiz.LifelineExtraLife:
		return "Extra life armed: your next wrong answer will be forgiven."
	}
	return string(res.Lifeline)
}

func renderEnd(st quiz.State) string {
	if st.Status == quiz.StatusWon {
		return fmt.Sprintf("Congratulations! You answered every question.\nTotal winnings: %s", formatRupees(st.FinalAmount))
	}
	return fmt.Sprintf("Game over. You take home %s.", formatRupees(st.FinalAmount))
}
