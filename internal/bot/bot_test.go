package bot

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"referral-bot/internal/models"
	"referral-bot/internal/services"
	"referral-bot/internal/store"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	mu      sync.Mutex
	sent    []tgbotapi.Chattable
	sendErr error
	updates chan tgbotapi.Update
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{updates: make(chan tgbotapi.Update, 16)}
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return tgbotapi.Message{}, f.sendErr
	}
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updates
}

func (f *fakeAPI) StopReceivingUpdates() {}

func (f *fakeAPI) messages() []tgbotapi.MessageConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []tgbotapi.MessageConfig
	for _, c := range f.sent {
		if m, ok := c.(tgbotapi.MessageConfig); ok {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeAPI) edits() []tgbotapi.EditMessageTextConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []tgbotapi.EditMessageTextConfig
	for _, c := range f.sent {
		if m, ok := c.(tgbotapi.EditMessageTextConfig); ok {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeAPI) lastText(t *testing.T) string {
	t.Helper()
	msgs := f.messages()
	require.NotEmpty(t, msgs)
	return msgs[len(msgs)-1].Text
}

func newTestBot(t *testing.T) (*Bot, *fakeAPI, *services.Engine, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	engine := services.NewEngine(st, services.NewLinkBuilder("", "refbot"), services.DefaultRules(), zerolog.Nop(),
		services.WithBonusDrawer(func(lo, hi int) int { return 9 }))
	api := newFakeAPI()
	b := New(api, engine, zerolog.Nop())
	engine.SetNotifier(b)
	return b, api, engine, st
}

func command(userID int64, text string) tgbotapi.Update {
	name := strings.Fields(text)[0]
	return tgbotapi.Update{Message: &tgbotapi.Message{
		From:     &tgbotapi.User{ID: userID, FirstName: "Ann", UserName: "ann"},
		Chat:     &tgbotapi.Chat{ID: userID, Type: "private"},
		Text:     text,
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(name)}},
	}}
}

func text(userID int64, body string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		From: &tgbotapi.User{ID: userID, FirstName: "Ann"},
		Chat: &tgbotapi.Chat{ID: userID, Type: "private"},
		Text: body,
	}}
}

func callback(userID int64, data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:   "cb",
		From: &tgbotapi.User{ID: userID, FirstName: "Ann"},
		Data: data,
		Message: &tgbotapi.Message{
			MessageID: 77,
			Chat:      &tgbotapi.Chat{ID: userID, Type: "private"},
		},
	}}
}

func TestStartWithReferralNotifiesReferrer(t *testing.T) {
	b, api, _, st := newTestBot(t)
	ctx := context.Background()

	b.HandleUpdate(ctx, command(1, "/start"))
	b.HandleUpdate(ctx, command(2, "/start 1"))

	msgs := api.messages()
	require.Len(t, msgs, 3)
	require.Contains(t, msgs[0].Text, "Welcome, Ann!")
	require.Equal(t, int64(1), msgs[1].ChatID)
	require.Contains(t, msgs[1].Text, "earned 15")
	require.Equal(t, int64(2), msgs[2].ChatID)

	acc, err := st.Get(ctx, 1)
	require.NoError(t, err)
	require.True(t, acc.Balance.Equal(decimal.NewFromInt(15)))
}

func TestNotifyReferralReturnsSendError(t *testing.T) {
	b, api, engine, _ := newTestBot(t)
	ctx := context.Background()

	_, err := engine.Start(ctx, 1, "", "")
	require.NoError(t, err)

	api.sendErr = errors.New("forbidden: bot was blocked by the user")
	require.Error(t, b.NotifyReferral(ctx, 1, 2, decimal.NewFromInt(15)))
}

func TestWithdrawConversation(t *testing.T) {
	b, api, _, st := newTestBot(t)
	ctx := context.Background()

	_, _, err := st.GetOrCreate(ctx, 5, "")
	require.NoError(t, err)
	_, err = st.Credit(ctx, 5, decimal.NewFromInt(200), models.ReasonReferral)
	require.NoError(t, err)

	b.HandleUpdate(ctx, command(5, "/withdraw"))
	require.Contains(t, api.lastText(t), "withdraw up to 200")

	b.HandleUpdate(ctx, text(5, "abc"))
	require.Equal(t, "⚠️ Please enter a valid number.", api.lastText(t))

	// The flow ended, so free text is ignored now.
	count := len(api.messages())
	b.HandleUpdate(ctx, text(5, "200"))
	require.Len(t, api.messages(), count)

	b.HandleUpdate(ctx, command(5, "/withdraw"))
	b.HandleUpdate(ctx, text(5, "200"))
	require.Contains(t, api.lastText(t), "new balance is 0")
}

func TestNonTextKeepsWithdrawalPending(t *testing.T) {
	b, api, engine, st := newTestBot(t)
	ctx := context.Background()

	_, _, err := st.GetOrCreate(ctx, 4, "")
	require.NoError(t, err)
	_, err = st.Credit(ctx, 4, decimal.NewFromInt(200), models.ReasonReferral)
	require.NoError(t, err)

	b.HandleUpdate(ctx, command(4, "/withdraw"))
	require.True(t, engine.AwaitingAmount(4))
	count := len(api.messages())

	sticker := text(4, "")
	sticker.Message.Sticker = &tgbotapi.Sticker{FileID: "sticker-id"}
	b.HandleUpdate(ctx, sticker)

	photo := text(4, "")
	photo.Message.Photo = []tgbotapi.PhotoSize{{FileID: "photo-id"}}
	b.HandleUpdate(ctx, photo)

	require.Len(t, api.messages(), count)
	require.True(t, engine.AwaitingAmount(4))

	b.HandleUpdate(ctx, text(4, "150"))
	require.Contains(t, api.lastText(t), "new balance is 50")
	require.False(t, engine.AwaitingAmount(4))
}

func TestCancelCommand(t *testing.T) {
	b, api, engine, st := newTestBot(t)
	ctx := context.Background()

	_, _, err := st.GetOrCreate(ctx, 6, "")
	require.NoError(t, err)
	_, err = st.Credit(ctx, 6, decimal.NewFromInt(300), models.ReasonReferral)
	require.NoError(t, err)

	b.HandleUpdate(ctx, command(6, "/withdraw"))
	require.True(t, engine.AwaitingAmount(6))

	b.HandleUpdate(ctx, command(6, "/cancel"))
	require.Equal(t, "Operation cancelled.", api.lastText(t))
	require.False(t, engine.AwaitingAmount(6))
}

func TestCallbacksEditMessage(t *testing.T) {
	b, api, _, _ := newTestBot(t)
	ctx := context.Background()

	b.HandleUpdate(ctx, callback(8, cbDailyBonus))
	b.HandleUpdate(ctx, callback(8, cbDailyBonus))
	b.HandleUpdate(ctx, callback(8, cbCheckBalance))
	b.HandleUpdate(ctx, callback(8, cbWithdraw))

	edits := api.edits()
	require.Len(t, edits, 4)
	require.Equal(t, 77, edits[0].MessageID)
	require.Contains(t, edits[0].Text, "daily bonus of 9")
	require.Contains(t, edits[1].Text, "already claimed")
	require.Contains(t, edits[2].Text, "current balance: 9")
	require.Contains(t, edits[3].Text, "below the minimum")
	require.NotNil(t, edits[3].ReplyMarkup)
}

func TestGroupChatsIgnored(t *testing.T) {
	b, api, _, _ := newTestBot(t)

	upd := command(9, "/start")
	upd.Message.Chat.Type = "group"
	b.HandleUpdate(context.Background(), upd)
	require.Empty(t, api.messages())
}

func TestRunStopsOnCancel(t *testing.T) {
	b, api, _, _ := newTestBot(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		b.Run(ctx)
		close(done)
	}()

	api.updates <- command(10, "/help")
	require.Eventually(t, func() bool { return len(api.messages()) == 1 }, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestWithdrawResultText(t *testing.T) {
	minimum := decimal.NewFromInt(150)
	require.Contains(t, withdrawResultText(models.WithdrawResult{Status: models.WithdrawBelowMinimum, Minimum: &minimum}), "150")
	require.Contains(t, withdrawResultText(models.WithdrawResult{Status: models.WithdrawExceedsBalance, Balance: decimal.NewFromInt(12)}), "(12)")
	require.Contains(t, withdrawResultText(models.WithdrawResult{Status: models.WithdrawNoPending}), "/withdraw")
}
