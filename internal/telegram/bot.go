// internal/telegram/bot.go
//
// Telegram frontend for the quiz engine.
//   - /start, /help → instructions
//   - /play         → start a new classic game for the chat
//   - /ladder       → prize ladder with safe checkpoints
//
// Play is driven by inline keyboards: option buttons (eliminated ones hidden),
// one button per unused lifeline, and a "Next" button after a correct or
// forgiven answer. Games live in the session store, one per chat: /play drops
// the chat's previous game, and idle ones are pruned by the store janitor.
// Finished games are written to the results ledger under the anonymous owner
// "tg:<chat id>".

package telegram

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/kbcquiz/internal/quiz"
	"github.com/robalobadob/kbcquiz/internal/results"
	"github.com/robalobadob/kbcquiz/internal/store"
)

// sender is the subset of *tgbotapi.BotAPI the handlers use.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Bot serves quiz games over the Telegram Bot API.
type Bot struct {
	tg      *tgbotapi.BotAPI // nil in tests; only Run needs it
	api     sender
	bank    *quiz.Bank
	store   store.Store
	results *results.Store // optional
	now     func() time.Time
	newRand func() *rand.Rand

	mu    sync.Mutex
	games map[int64]string // chat ID → live game ID
}

// New authorises against the Bot API with token.
// res may be nil, in which case finished games are only logged.
func New(token string, debug bool, bank *quiz.Bank, st store.Store, res *results.Store) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}
	api.Debug = debug
	log.Info().Str("account", api.Self.UserName).Msg("telegram authorised")

	b := newBot(api, bank, st, res)
	b.tg = api
	return b, nil
}

func newBot(api sender, bank *quiz.Bank, st store.Store, res *results.Store) *Bot {
	return &Bot{
		api:     api,
		bank:    bank,
		store:   st,
		results: res,
		now:     time.Now,
		newRand: func() *rand.Rand { return rand.New(rand.NewSource(time.Now().UnixNano())) },
		games:   make(map[int64]string),
	}
}

// Run long-polls for updates until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	if b.tg == nil {
		return errors.New("telegram: bot not authorised")
	}
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.tg.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.tg.StopReceivingUpdates()
			return ctx.Err()
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(ctx, upd)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, upd tgbotapi.Update) {
	switch {
	case upd.Message != nil:
		b.handleMessage(ctx, upd.Message)
	case upd.CallbackQuery != nil:
		b.handleCallback(ctx, upd.CallbackQuery)
	}
}

func (b *Bot) handleMessage(ctx context.Context, m *tgbotapi.Message) {
	chatID := m.Chat.ID
	switch m.Command() {
	case "start", "help":
		b.send(chatID, helpText, playKeyboard())
	case "play":
		b.startGame(ctx, chatID)
	case "ladder":
		b.send(chatID, renderLadder(b.bank), nil)
	default:
		b.send(chatID, "Unknown command. Try /help.", nil)
	}
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		log.Warn().Err(err).Msg("answer callback")
	}
	if cb.Message == nil {
		return
	}
	chatID := cb.Message.Chat.ID

	act, err := parseCallback(cb.Data)
	if err != nil {
		log.Debug().Err(err).Str("data", cb.Data).Msg("bad callback")
		return
	}
	if act.kind == actPlay {
		b.startGame(ctx, chatID)
		return
	}
	if b.current(chatID) != act.gameID {
		b.send(chatID, "That game has ended. Tap Play for a new one.", playKeyboard())
		return
	}

	switch act.kind {
	case actAnswer:
		b.answer(ctx, chatID, act.gameID, act.option)
	case actLifeline:
		b.lifeline(ctx, chatID, act.gameID, act.lifeline)
	case actNext:
		b.advance(ctx, chatID, act.gameID)
	}
}

// ------------------------------- game flow ---------------------------------

func ownerID(chatID int64) string { return "tg:" + strconv.FormatInt(chatID, 10) }

func (b *Bot) current(chatID int64) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.games[chatID]
}

// startGame replaces any live game for the chat with a fresh one.
func (b *Bot) startGame(ctx context.Context, chatID int64) {
	g := quiz.New(b.bank, b.newRand())
	sess := &store.Session{
		Game:      g,
		OwnerID:   ownerID(chatID),
		Anonymous: true,
		Mode:      store.ModeClassic,
		StartedAt: b.now(),
	}
	if err := b.store.Save(ctx, sess); err != nil {
		log.Error().Err(err).Int64("chat", chatID).Msg("save game")
		b.send(chatID, "Could not start a game, try again.", nil)
		return
	}
	if b.results != nil {
		if err := b.results.StartGame(ctx, g.ID, results.Owner{AnonID: sess.OwnerID}, sess.Mode, sess.StartedAt); err != nil {
			log.Warn().Err(err).Str("gameId", g.ID).Msg("insert game row")
		}
	}
	b.mu.Lock()
	prev := b.games[chatID]
	b.games[chatID] = g.ID
	b.mu.Unlock()
	if prev != "" {
		// abandoned mid-game; nothing else can reach it
		if err := b.store.Delete(ctx, prev); err != nil && !errors.Is(err, store.ErrNotFound) {
			log.Warn().Err(err).Str("gameId", prev).Msg("drop replaced game")
		}
	}

	st := g.State()
	b.send(chatID, renderQuestion(st, len(b.bank.Questions)), questionKeyboard(st))
}

func (b *Bot) answer(ctx context.Context, chatID int64, id string, option int) {
	var (
		res quiz.AnswerResult
		st  quiz.State
		fin *results.Finish
	)
	err := b.store.Update(ctx, id, func(sess *store.Session) error {
		out, err := sess.Game.SubmitAnswer(option)
		if err != nil {
			return err
		}
		res, st = out, sess.Game.State()
		fin = takeFinished(sess)
		return nil
	})
	if err != nil {
		b.fail(chatID, id, err)
		return
	}

	q := b.bank.Questions[st.CurrentIndex]
	text := renderAnswer(res, q, st)
	if res.Outcome == quiz.OutcomeLost {
		b.finish(ctx, chatID, fin)
		b.send(chatID, text+"\n\n"+renderEnd(st), playKeyboard())
		return
	}
	last := st.CurrentIndex == len(b.bank.Questions)-1
	b.send(chatID, text, nextKeyboard(id, last))
}

func (b *Bot) advance(ctx context.Context, chatID int64, id string) {
	var (
		st  quiz.State
		fin *results.Finish
	)
	err := b.store.Update(ctx, id, func(sess *store.Session) error {
		if err := sess.Game.Advance(); err != nil {
			return err
		}
		st = sess.Game.State()
		fin = takeFinished(sess)
		return nil
	})
	if err != nil {
		b.fail(chatID, id, err)
		return
	}
	if st.Status == quiz.StatusWon {
		b.finish(ctx, chatID, fin)
		b.send(chatID, renderEnd(st), playKeyboard())
		return
	}
	b.send(chatID, renderQuestion(st, len(b.bank.Questions)), questionKeyboard(st))
}

func (b *Bot) lifeline(ctx context.Context, chatID int64, id string, l quiz.Lifeline) {
	var (
		res quiz.LifelineResult
		st  quiz.State
	)
	err := b.store.Update(ctx, id, func(sess *store.Session) error {
		out, err := sess.Game.ActivateLifeline(l)
		if err != nil {
			return err
		}
		res, st = out, sess.Game.State()
		return nil
	})
	if err != nil {
		b.fail(chatID, id, err)
		return
	}
	b.send(chatID, renderLifeline(res)+"\n\n"+renderQuestion(st, len(b.bank.Questions)), questionKeyboard(st))
}

// takeFinished marks a newly finished session as recorded and returns its
// ledger entry. Must run under the store lock.
func takeFinished(sess *store.Session) *results.Finish {
	g := sess.Game
	if !g.Finished() || sess.Recorded {
		return nil
	}
	sess.Recorded = true
	return &results.Finish{
		GameID:        g.ID,
		Status:        string(g.Status()),
		FinalAmount:   g.FinalAmount(),
		Cleared:       g.Cleared(),
		LifelinesUsed: g.LifelinesUsed(),
	}
}

// finish drops the chat's live game and writes the ledger row.
func (b *Bot) finish(ctx context.Context, chatID int64, f *results.Finish) {
	b.mu.Lock()
	delete(b.games, chatID)
	b.mu.Unlock()
	if f == nil {
		return
	}
	log.Info().
		Int64("chat", chatID).
		Str("gameId", f.GameID).
		Str("status", f.Status).
		Int("amount", f.FinalAmount).
		Msg("telegram game finished")
	if b.results == nil {
		return
	}
	f.FinishedAt = b.now()
	if err := b.results.FinishGame(ctx, results.Owner{AnonID: ownerID(chatID)}, *f); err != nil {
		log.Warn().Err(err).Str("gameId", f.GameID).Msg("finish game")
	}
}

// fail reports err to the chat. A game the store no longer holds is
// forgotten so the chat is not pinned to it.
func (b *Bot) fail(chatID int64, id string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		b.mu.Lock()
		if b.games[chatID] == id {
			delete(b.games, chatID)
		}
		b.mu.Unlock()
	}
	b.send(chatID, errorText(err), nil)
}

func (b *Bot) send(chatID int64, text string, kb *tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	if kb != nil {
		msg.ReplyMarkup = *kb
	}
	if _, err := b.api.Send(msg); err != nil {
		log.Warn().Err(err).Int64("chat", chatID).Msg("send message")
	}
}

func errorText(err error) string {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return "That game no longer exists. Tap Play for a new one."
	case errors.Is(err, quiz.ErrGameAlreadyTerminal):
		return "This game is over."
	case errors.Is(err, quiz.ErrInvalidLifelineState):
		return "That lifeline has already been used."
	case errors.Is(err, quiz.ErrInvalidOptionIndex):
		return "That option is not available."
	case errors.Is(err, quiz.ErrAwaitingAdvance):
		return "Tap Next to continue."
	case errors.Is(err, quiz.ErrNothingToAdvance):
		return "Answer the question first."
	}
	log.Error().Err(err).Msg("telegram game operation")
	return "Something went wrong."
}

// ------------------------------- callbacks ---------------------------------

const (
	actPlay     = "p"
	actAnswer   = "a"
	actLifeline = "l"
	actNext     = "n"
)

// action is a decoded inline-button payload. Game-bound payloads carry the
// game ID so buttons from an old game cannot act on a newer one.
type action struct {
	kind     string
	gameID   string
	option   int
	lifeline quiz.Lifeline
}

func (a action) data() string {
	switch a.kind {
	case actAnswer:
		return actAnswer + ":" + a.gameID + ":" + strconv.Itoa(a.option)
	case actLifeline:
		return actLifeline + ":" + a.gameID + ":" + string(a.lifeline)
	case actNext:
		return actNext + ":" + a.gameID
	}
	return actPlay
}

func parseCallback(data string) (action, error) {
	parts := strings.Split(data, ":")
	switch {
	case len(parts) == 1 && parts[0] == actPlay:
		return action{kind: actPlay}, nil
	case len(parts) == 2 && parts[0] == actNext && parts[1] != "":
		return action{kind: actNext, gameID: parts[1]}, nil
	case len(parts) == 3 && parts[0] == actAnswer && parts[1] != "":
		n, err := strconv.Atoi(parts[2])
		if err != nil {
			return action{}, fmt.Errorf("callback %q: %w", data, err)
		}
		return action{kind: actAnswer, gameID: parts[1], option: n}, nil
	case len(parts) == 3 && parts[0] == actLifeline && parts[1] != "":
		return action{kind: actLifeline, gameID: parts[1], lifeline: quiz.Lifeline(parts[2])}, nil
	}
	return action{}, fmt.Errorf("callback %q: unknown payload", data)
}
