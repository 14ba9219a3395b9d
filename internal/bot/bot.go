// Package bot is the Telegram front end. It turns updates into engine
// intents and renders the results; all ledger rules live in the engine.
package bot

import (
	"context"
	"fmt"
	"strings"

	"referral-bot/internal/models"
	"referral-bot/internal/services"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// API is the subset of *tgbotapi.BotAPI the bot uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

type Bot struct {
	api     API
	engine  *services.Engine
	logger  zerolog.Logger
	workers int
}

func New(api API, engine *services.Engine, logger zerolog.Logger) *Bot {
	return &Bot{
		api:     api,
		engine:  engine,
		logger:  logger,
		workers: 16,
	}
}

// Run long-polls for updates until ctx is cancelled. Updates are handled
// concurrently, at most workers at a time.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	var g errgroup.Group
	g.SetLimit(b.workers)
	defer g.Wait()
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			b.logger.Info().Msg("Bot polling stopped")
			return
		case upd, ok := <-updates:
			if !ok {
				return
			}
			g.Go(func() error {
				b.HandleUpdate(ctx, upd)
				return nil
			})
		}
	}
}

func (b *Bot) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().Interface("panic", r).Int("update_id", upd.UpdateID).Msg("Panic while handling update")
		}
	}()

	if upd.CallbackQuery != nil {
		b.handleCallback(ctx, upd.CallbackQuery)
		return
	}

	msg := upd.Message
	if msg == nil || msg.From == nil || msg.Chat == nil || !msg.Chat.IsPrivate() {
		return
	}

	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}

	// Only text is an amount entry; photos, stickers and the like leave the
	// flow pending.
	if msg.Text != "" && b.engine.AwaitingAmount(msg.From.ID) {
		res, err := b.engine.WithdrawAmount(ctx, msg.From.ID, msg.Text)
		if err != nil {
			b.replyFailure(msg.Chat.ID)
			return
		}
		b.reply(msg.Chat.ID, withdrawResultText(res), backMenu())
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID
	chatID := msg.Chat.ID
	rules := b.engine.Rules()

	switch msg.Command() {
	case "start":
		token := ""
		if args := strings.Fields(msg.CommandArguments()); len(args) > 0 {
			token = args[0]
		}
		info, err := b.engine.Start(ctx, userID, msg.From.UserName, token)
		if err != nil {
			b.replyFailure(chatID)
			return
		}
		b.logger.Debug().Int64("user_id", userID).Str("link", info.ReferralLink).Msg("Start handled")
		b.reply(chatID, welcomeText(msg.From.FirstName, rules, false), mainMenu())

	case "help":
		b.reply(chatID, helpText(), nil)

	case "balance":
		info, err := b.engine.CheckBalance(ctx, userID, msg.From.UserName)
		if err != nil {
			b.replyFailure(chatID)
			return
		}
		b.reply(chatID, balanceText(info, rules), nil)

	case "referral":
		b.reply(chatID, referralText(b.engine.ReferralLink(userID), rules), nil)

	case "bonus":
		res, err := b.engine.ClaimBonus(ctx, userID, msg.From.UserName, b.engine.Today())
		if err != nil {
			b.replyFailure(chatID)
			return
		}
		b.reply(chatID, bonusText(res), nil)

	case "withdraw":
		res, err := b.engine.WithdrawStart(ctx, userID, msg.From.UserName)
		if err != nil {
			b.replyFailure(chatID)
			return
		}
		b.reply(chatID, withdrawStartText(res, rules), nil)

	case "cancel":
		b.reply(chatID, withdrawResultText(b.engine.WithdrawCancel(ctx, userID)), backMenu())

	default:
		b.reply(chatID, "Unknown command. Send /help for the list.", nil)
	}
}

func (b *Bot) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) {
	if _, err := b.api.Request(tgbotapi.NewCallback(q.ID, "")); err != nil {
		b.logger.Warn().Err(err).Msg("Failed to answer callback")
	}
	if q.Message == nil || q.Message.Chat == nil || q.From == nil {
		return
	}

	userID := q.From.ID
	rules := b.engine.Rules()
	back := backMenu()

	var (
		text   string
		markup *tgbotapi.InlineKeyboardMarkup
	)

	switch q.Data {
	case cbCheckBalance:
		info, err := b.engine.CheckBalance(ctx, userID, q.From.UserName)
		if err != nil {
			b.replyFailure(q.Message.Chat.ID)
			return
		}
		text, markup = balanceText(info, rules), &back

	case cbReferralLink:
		text, markup = referralText(b.engine.ReferralLink(userID), rules), &back

	case cbDailyBonus:
		res, err := b.engine.ClaimBonus(ctx, userID, q.From.UserName, b.engine.Today())
		if err != nil {
			b.replyFailure(q.Message.Chat.ID)
			return
		}
		text, markup = bonusText(res), &back

	case cbWithdraw:
		res, err := b.engine.WithdrawStart(ctx, userID, q.From.UserName)
		if err != nil {
			b.replyFailure(q.Message.Chat.ID)
			return
		}
		text = withdrawStartText(res, rules)
		if res.Status != models.WithdrawPromptForAmount {
			markup = &back
		}

	case cbHowToEarn:
		text, markup = howToEarnText(rules), &back

	case cbBackToMenu:
		menu := mainMenu()
		text, markup = welcomeText(q.From.FirstName, rules, true), &menu

	default:
		return
	}

	b.edit(q.Message.Chat.ID, q.Message.MessageID, text, markup)
}

// NotifyReferral implements services.Notifier. Private chat ids equal user
// ids, so the referrer is messaged directly.
func (b *Bot) NotifyReferral(_ context.Context, referrerID, newUserID int64, reward decimal.Decimal) error {
	if _, err := b.api.Send(tgbotapi.NewMessage(referrerID, referralNotice(reward))); err != nil {
		return fmt.Errorf("notify referrer %d about %d: %w", referrerID, newUserID, err)
	}
	return nil
}

// reply sends a new message; markup is a keyboard value or nil.
func (b *Bot) reply(chatID int64, text string, markup interface{}) {
	msg := tgbotapi.NewMessage(chatID, text)
	if markup != nil {
		msg.ReplyMarkup = markup
	}
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send message")
	}
}

func (b *Bot) edit(chatID int64, messageID int, text string, markup *tgbotapi.InlineKeyboardMarkup) {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ReplyMarkup = markup
	if _, err := b.api.Send(edit); err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to edit message")
	}
}

func (b *Bot) replyFailure(chatID int64) {
	b.reply(chatID, "❌ Something went wrong, please try again later.", nil)
}
