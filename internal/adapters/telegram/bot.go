// Package telegram renders resolver prompts as Telegram messages and turns
// updates back into resolver and confirmation calls.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/kirillkom/bookbot/internal/core/domain"
	"github.com/kirillkom/bookbot/internal/core/ports"
)

// Sender is the subset of *tgbotapi.BotAPI the bot writes through.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type Bot struct {
	api         Sender
	resolver    ports.ReviewResolver
	flow        ports.ConfirmationFlow
	isbn        ports.ISBNLookup
	hashtag     string
	adminChatID int64
}

type Options struct {
	// Hashtag marks a plain message as a review, e.g. "#review".
	Hashtag     string
	AdminChatID int64
}

func New(api Sender, resolver ports.ReviewResolver, flow ports.ConfirmationFlow, isbn ports.ISBNLookup, options Options) *Bot {
	hashtag := strings.ToLower(strings.TrimSpace(options.Hashtag))
	if hashtag == "" {
		hashtag = "#review"
	}
	return &Bot{
		api:         api,
		resolver:    resolver,
		flow:        flow,
		isbn:        isbn,
		hashtag:     hashtag,
		adminChatID: options.AdminChatID,
	}
}

// HandleUpdate dispatches one update. Button presses win over commands,
// commands over replies to an open session, and those over new reviews.
func (b *Bot) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.CallbackQuery != nil {
		b.handleCallback(ctx, upd.CallbackQuery)
		return
	}
	msg := upd.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return
	}
	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}

	userID := userKey(msg.From.ID)
	text := strings.TrimSpace(msg.Text)
	if session, ok := b.flow.Active(ctx, userID); ok && expectsText(session, text) {
		prompt, err := b.flow.HandleText(ctx, userID, manualValue(session, text))
		b.logFlowError("handle_text", userID, err)
		b.render(msg.Chat.ID, prompt)
		return
	}
	if strings.Contains(strings.ToLower(text), b.hashtag) {
		b.resolve(ctx, msg, text, "")
	}
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		slog.Warn("telegram_callback_ack_failed", "error", err)
	}
	if cb.From == nil || cb.Message == nil || cb.Message.Chat == nil {
		return
	}
	chatID := cb.Message.Chat.ID
	userID := userKey(cb.From.ID)

	var (
		prompt domain.Prompt
		err    error
	)
	switch data := cb.Data; {
	case strings.HasPrefix(data, callbackPick):
		idx, convErr := strconv.Atoi(strings.TrimPrefix(data, callbackPick))
		if convErr != nil {
			return
		}
		prompt, err = b.flow.SelectCandidate(ctx, userID, idx)
	case data == callbackISBN:
		prompt, err = b.flow.RequestISBN(ctx, userID)
	case data == callbackManual:
		prompt, err = b.flow.RequestManual(ctx, userID)
	case data == callbackCancel:
		prompt, err = b.flow.Cancel(ctx, userID)
	default:
		return
	}
	b.logFlowError("callback", userID, err)

	if prompt.Kind != domain.PromptError {
		edit := tgbotapi.NewEditMessageReplyMarkup(chatID, cb.Message.MessageID, tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}})
		if _, err := b.api.Request(edit); err != nil {
			slog.Debug("telegram_clear_keyboard_failed", "error", err)
		}
	}
	b.render(chatID, prompt)
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	userID := userKey(msg.From.ID)
	args := strings.TrimSpace(msg.CommandArguments())

	switch msg.Command() {
	case "start", "help":
		b.send(chatID, helpText(b.hashtag))
	case "cancel":
		prompt, err := b.flow.Cancel(ctx, userID)
		b.logFlowError("cancel", userID, err)
		b.render(chatID, prompt)
	case "manual":
		prompt, err := b.flow.RequestManual(ctx, userID)
		b.logFlowError("manual", userID, err)
		b.render(chatID, prompt)
	case "isbn":
		b.handleISBNCommand(ctx, chatID, userID, args)
	case "review":
		text, hint := args, ""
		if reply := msg.ReplyToMessage; reply != nil && strings.TrimSpace(reply.Text) != "" {
			text, hint = reply.Text, args
		}
		if strings.TrimSpace(text) == "" {
			b.send(chatID, "Send /review as a reply to your review, or put the review text after the command.")
			return
		}
		b.resolve(ctx, msg, text, hint)
	default:
		b.send(chatID, "Unknown command. Try /help.")
	}
}

// handleISBNCommand switches an open session to ISBN entry, or looks the
// code up directly when no session is open.
func (b *Bot) handleISBNCommand(ctx context.Context, chatID int64, userID, code string) {
	if _, ok := b.flow.Active(ctx, userID); ok {
		prompt, err := b.flow.RequestISBN(ctx, userID)
		b.logFlowError("isbn", userID, err)
		if code != "" && prompt.Kind == domain.PromptAskISBN {
			prompt, err = b.flow.HandleText(ctx, userID, code)
			b.logFlowError("isbn", userID, err)
		}
		b.render(chatID, prompt)
		return
	}
	if code == "" {
		b.send(chatID, "Usage: /isbn 978-0-7475-3269-9")
		return
	}
	meta, err := b.isbn.LookupISBN(ctx, code)
	switch {
	case err == nil:
		b.send(chatID, formatMetadata(*meta))
	case domain.IsKind(err, domain.ErrInvalidInput):
		b.send(chatID, "That does not look like a valid ISBN.")
	case domain.IsKind(err, domain.ErrProviderMiss):
		b.send(chatID, "No book found for that ISBN.")
	case domain.IsKind(err, domain.ErrRateLimited):
		b.send(chatID, "The book search service is busy right now. Please try again in a minute.")
	default:
		slog.Error("isbn_lookup_failed", "user_id", userID, "error", err)
		b.send(chatID, "The ISBN lookup failed. Please try again.")
	}
}

func (b *Bot) resolve(ctx context.Context, msg *tgbotapi.Message, text, hint string) {
	userID := userKey(msg.From.ID)
	review := domain.Review{
		UserID:    userID,
		ChatID:    msg.Chat.ID,
		MessageID: msg.MessageID,
		Text:      text,
		Hint:      hint,
	}
	outcome, err := b.resolver.Resolve(ctx, review)
	if err != nil {
		if domain.IsKind(err, domain.ErrSessionActive) {
			b.render(msg.Chat.ID, domain.Prompt{Kind: domain.PromptBusy, UserID: userID})
			return
		}
		slog.Error("review_resolve_failed", "user_id", userID, "error", err)
		b.render(msg.Chat.ID, domain.Prompt{Kind: domain.PromptError, UserID: userID, Message: "Could not process the review. Please try again later."})
		return
	}
	b.render(msg.Chat.ID, outcome.Prompt(userID))
}

// ForwardAlert posts an operational alert to the admin chat, if configured.
func (b *Bot) ForwardAlert(_ context.Context, alert domain.Alert) error {
	if b.adminChatID == 0 {
		return nil
	}
	text := fmt.Sprintf("⚠️ %s from %s: %s", alert.Kind, alert.Source, alert.Message)
	if _, err := b.api.Send(tgbotapi.NewMessage(b.adminChatID, text)); err != nil {
		return fmt.Errorf("send alert: %w", err)
	}
	return nil
}

func (b *Bot) logFlowError(action, userID string, err error) {
	if err == nil {
		return
	}
	if errors.Is(err, context.Canceled) {
		return
	}
	slog.Error("confirmation_event_failed", "action", action, "user_id", userID, "error", err)
}

func userKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

// expectsText reports whether free text belongs to the open session. While
// options are shown only a number counts; any other text is left to the
// review path, which refuses it because a session is open.
func expectsText(session *domain.ConfirmationSession, text string) bool {
	if session.State != domain.StateShowingOptions {
		return true
	}
	_, err := strconv.Atoi(text)
	return err == nil
}

// manualValue maps a lone "-" to an empty value for manual title and author
// entry.
func manualValue(session *domain.ConfirmationSession, text string) string {
	if text == "-" && (session.State == domain.StateAwaitingTitle || session.State == domain.StateAwaitingAuthor) {
		return ""
	}
	return text
}
