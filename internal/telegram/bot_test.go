package telegram

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/robalobadob/kbcquiz/assets"
	"github.com/robalobadob/kbcquiz/internal/bank"
	"github.com/robalobadob/kbcquiz/internal/database"
	"github.com/robalobadob/kbcquiz/internal/quiz"
	"github.com/robalobadob/kbcquiz/internal/results"
	"github.com/robalobadob/kbcquiz/internal/store"
)

type fakeAPI struct {
	sent     []tgbotapi.MessageConfig
	requests int
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, m)
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.requests++
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) last(t *testing.T) tgbotapi.MessageConfig {
	t.Helper()
	if len(f.sent) == 0 {
		t.Fatal("nothing sent")
	}
	return f.sent[len(f.sent)-1]
}

func buttons(t *testing.T, m tgbotapi.MessageConfig) []tgbotapi.InlineKeyboardButton {
	t.Helper()
	kb, ok := m.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	if !ok {
		t.Fatalf("no inline keyboard on %q", m.Text)
	}
	var out []tgbotapi.InlineKeyboardButton
	for _, row := range kb.InlineKeyboard {
		out = append(out, row...)
	}
	return out
}

const chat = int64(42)

func command(name string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Text:     "/" + name,
		Chat:     &tgbotapi.Chat{ID: chat},
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(name) + 1}},
	}}
}

func press(a action) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb",
		Data:    a.data(),
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: chat}},
	}}
}

func newTestBot(t *testing.T, res *results.Store) (*Bot, *fakeAPI) {
	t.Helper()
	b, err := bank.Default()
	if err != nil {
		t.Fatal(err)
	}
	api := &fakeAPI{}
	return newBot(api, b, store.NewMemoryStore(), res), api
}

func TestParseCallback(t *testing.T) {
	tests := []struct {
		data string
		want action
		ok   bool
	}{
		{"p", action{kind: actPlay}, true},
		{"a:g1:2", action{kind: actAnswer, gameID: "g1", option: 2}, true},
		{"l:g1:assist", action{kind: actLifeline, gameID: "g1", lifeline: quiz.LifelineAssist}, true},
		{"n:g1", action{kind: actNext, gameID: "g1"}, true},
		{"a:g1:x", action{}, false},
		{"a::1", action{}, false},
		{"n:", action{}, false},
		{"zzz", action{}, false},
		{"", action{}, false},
	}
	for _, tt := range tests {
		got, err := parseCallback(tt.data)
		if (err == nil) != tt.ok || got != tt.want {
			t.Errorf("parseCallback(%q) = %+v, %v", tt.data, got, err)
		}
		if tt.ok && got.data() != tt.data {
			t.Errorf("data() = %q, want %q", got.data(), tt.data)
		}
	}
}

func TestFormatRupees(t *testing.T) {
	for n, want := range map[int]string{
		0:         "₹0",
		999:       "₹999",
		1000:      "₹1,000",
		100000:    "₹100,000",
		100000000: "₹100,000,000",
		1234567:   "₹1,234,567",
	} {
		if got := formatRupees(n); got != want {
			t.Errorf("formatRupees(%d) = %q, want %q", n, got, want)
		}
	}
}

func TestQuestionKeyboardHidesEliminatedAndUsedLifelines(t *testing.T) {
	b, _ := bank.Default()
	g := quiz.New(b, nil)
	res, err := g.ActivateLifeline(quiz.LifelineFiftyFifty)
	if err != nil {
		t.Fatal(err)
	}
	st := g.State()
	kb := questionKeyboard(st)

	var answers, lifelines int
	for _, row := range kb.InlineKeyboard {
		for _, btn := range row {
			a, err := parseCallback(*btn.CallbackData)
			if err != nil {
				t.Fatal(err)
			}
			switch a.kind {
			case actAnswer:
				answers++
				for _, e := range res.Eliminated {
					if a.option == e {
						t.Fatalf("eliminated option %d offered", e)
					}
				}
			case actLifeline:
				lifelines++
				if a.lifeline == quiz.LifelineFiftyFifty {
					t.Fatal("used lifeline offered")
				}
			}
		}
	}
	if answers != 2 || lifelines != 2 {
		t.Fatalf("answers %d lifelines %d", answers, lifelines)
	}
	text := renderQuestion(st, len(b.Questions))
	if !strings.Contains(text, "Question 1/20 for ₹1,000") {
		t.Fatalf("render = %q", text)
	}
}

func TestPlayWinThenStaleButtons(t *testing.T) {
	ctx := context.Background()
	bot, api := newTestBot(t, nil)

	bot.handleUpdate(ctx, command("play"))
	id := bot.current(chat)
	if id == "" {
		t.Fatal("no live game")
	}
	if n := len(buttons(t, api.last(t))); n != 7 {
		t.Fatalf("question keyboard has %d buttons, want 4 options + 3 lifelines", n)
	}

	for i, q := range bot.bank.Questions {
		bot.handleUpdate(ctx, press(action{kind: actAnswer, gameID: id, option: q.Answer}))
		if m := api.last(t); !strings.HasPrefix(m.Text, "Correct!") {
			t.Fatalf("q%d: %q", i+1, m.Text)
		}
		bot.handleUpdate(ctx, press(action{kind: actNext, gameID: id}))
	}
	if m := api.last(t); !strings.Contains(m.Text, "Total winnings: ₹100,000,000") {
		t.Fatalf("end message %q", m.Text)
	}
	if bot.current(chat) != "" {
		t.Fatal("finished game still live")
	}
	if api.requests != 40 {
		t.Fatalf("answered %d callbacks, want 40", api.requests)
	}

	bot.handleUpdate(ctx, press(action{kind: actAnswer, gameID: id, option: 0}))
	if m := api.last(t); !strings.HasPrefix(m.Text, "That game has ended") {
		t.Fatalf("stale press: %q", m.Text)
	}
}

func TestLossIsRecorded(t *testing.T) {
	ctx := context.Background()
	db, err := database.Open(filepath.Join(t.TempDir(), "quiz.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := database.Migrate(db, assets.Migrations()); err != nil {
		t.Fatal(err)
	}
	bot, api := newTestBot(t, results.NewStore(db))

	bot.handleUpdate(ctx, command("play"))
	id := bot.current(chat)
	q := bot.bank.Questions[0]

	bot.handleUpdate(ctx, press(action{kind: actLifeline, gameID: id, lifeline: quiz.LifelineAssist}))
	if m := api.last(t); !strings.HasPrefix(m.Text, "Assist: 75% sure it is "+optionLetters[q.Answer]) {
		t.Fatalf("assist: %q", m.Text)
	}

	bot.handleUpdate(ctx, press(action{kind: actAnswer, gameID: id, option: (q.Answer + 1) % quiz.OptionCount}))
	m := api.last(t)
	if !strings.Contains(m.Text, "Game over. You take home ₹0.") {
		t.Fatalf("loss: %q", m.Text)
	}
	if btn := buttons(t, m); len(btn) != 1 || *btn[0].CallbackData != actPlay {
		t.Fatalf("end keyboard %+v", btn)
	}

	var status, owner string
	var lifelines int
	if err := db.QueryRow(`SELECT status, anonymous_id, lifelines_used FROM games WHERE id=?`, id).Scan(&status, &owner, &lifelines); err != nil {
		t.Fatal(err)
	}
	if status != "lost" || owner != "tg:42" || lifelines != 1 {
		t.Fatalf("row = %s %s %d", status, owner, lifelines)
	}
}

func TestReplayDropsAbandonedGame(t *testing.T) {
	ctx := context.Background()
	bot, api := newTestBot(t, nil)

	bot.handleUpdate(ctx, command("play"))
	first := bot.current(chat)
	bot.handleUpdate(ctx, command("play"))
	second := bot.current(chat)
	if second == "" || second == first {
		t.Fatalf("replay kept %q", second)
	}
	if _, err := bot.store.Get(ctx, first); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("abandoned game still stored: %v", err)
	}

	// evicted behind the bot's back
	if err := bot.store.Delete(ctx, second); err != nil {
		t.Fatal(err)
	}
	bot.handleUpdate(ctx, press(action{kind: actAnswer, gameID: second, option: 0}))
	if m := api.last(t); !strings.HasPrefix(m.Text, "That game no longer exists") {
		t.Fatalf("evicted answer: %q", m.Text)
	}
	if bot.current(chat) != "" {
		t.Fatal("chat still pinned to evicted game")
	}
}

func TestCommands(t *testing.T) {
	ctx := context.Background()
	bot, api := newTestBot(t, nil)

	bot.handleUpdate(ctx, command("ladder"))
	if m := api.last(t); !strings.HasPrefix(m.Text, "Prize ladder\n20. ₹100,000,000") || !strings.Contains(m.Text, "05. ₹10,000  (safe)") {
		t.Fatalf("ladder: %q", m.Text)
	}
	bot.handleUpdate(ctx, command("help"))
	if m := api.last(t); m.Text != helpText {
		t.Fatalf("help: %q", m.Text)
	}
	bot.handleUpdate(ctx, command("dance"))
	if m := api.last(t); !strings.HasPrefix(m.Text, "Unknown command") {
		t.Fatalf("unknown: %q", m.Text)
	}
	bot.handleUpdate(ctx, press(action{kind: actNext, gameID: "nope"}))
	if m := api.last(t); !strings.HasPrefix(m.Text, "That game has ended") {
		t.Fatalf("stale: %q", m.Text)
	}
}
