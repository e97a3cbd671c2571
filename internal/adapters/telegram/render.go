package telegram

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/kirillkom/bookbot/internal/core/domain"
)

const (
	callbackPick   = "pick:"
	callbackISBN   = "isbn"
	callbackManual = "manual"
	callbackCancel = "cancel"
)

func (b *Bot) render(chatID int64, prompt domain.Prompt) {
	if prompt.Kind == "" {
		return
	}
	msg := tgbotapi.NewMessage(chatID, promptText(prompt))
	switch prompt.Kind {
	case domain.PromptPresentOptions:
		msg.ReplyMarkup = optionsKeyboard(len(prompt.Candidates))
	case domain.PromptAskISBN:
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("Enter manually", callbackManual),
				tgbotapi.NewInlineKeyboardButtonData("Cancel", callbackCancel),
			),
		)
	case domain.PromptAskTitle:
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("I have an ISBN", callbackISBN),
				tgbotapi.NewInlineKeyboardButtonData("Cancel", callbackCancel),
			),
		)
	case domain.PromptAskAuthor:
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("Cancel", callbackCancel)),
		)
	}
	b.sendMessage(msg)
}

func promptText(prompt domain.Prompt) string {
	switch prompt.Kind {
	case domain.PromptPresentOptions:
		return formatCandidates(prompt.Candidates)
	case domain.PromptAskISBN:
		return "Send the book's ISBN (10 or 13 digits, hyphens are fine)."
	case domain.PromptAskTitle:
		return "I could not identify the book. Send its title (or \"-\" to leave it empty)."
	case domain.PromptAskAuthor:
		return "Now send the author's name (or \"-\" to leave it empty)."
	case domain.PromptFinalized:
		if prompt.Entry == nil {
			return "Review saved."
		}
		return "Review saved for " + describe(prompt.Entry.Title, prompt.Entry.Author) + "."
	case domain.PromptExpired:
		return orDefault(prompt.Message, "There is no open book selection. Send your review again to start over.")
	case domain.PromptCancelled:
		return orDefault(prompt.Message, "Cancelled. Nothing was saved.")
	case domain.PromptBusy:
		return orDefault(prompt.Message, "Please finish choosing the book for your previous review first, or send /cancel.")
	default:
		return orDefault(prompt.Message, "Something went wrong. Please try again.")
	}
}

func formatCandidates(candidates []domain.BookCandidate) string {
	var sb strings.Builder
	sb.WriteString("Which book is it? Reply with a number or tap a button.\n")
	for i, c := range candidates {
		sb.WriteString("\n")
		sb.WriteString(strconv.Itoa(i + 1))
		sb.WriteString(". ")
		sb.WriteString(describe(c.Title, c.Author))
		if c.Source == domain.SourceLocal {
			sb.WriteString(" (already in the catalog)")
		}
	}
	return sb.String()
}

func optionsKeyboard(n int) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for i := 0; i < n; i++ {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(strconv.Itoa(i+1), callbackPick+strconv.Itoa(i)))
		if len(row) == 5 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("ISBN", callbackISBN),
		tgbotapi.NewInlineKeyboardButtonData("Enter manually", callbackManual),
		tgbotapi.NewInlineKeyboardButtonData("Cancel", callbackCancel),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func formatMetadata(meta domain.BookMetadata) string {
	var sb strings.Builder
	sb.WriteString(describe(meta.Title, meta.Author))
	if meta.PublicationYear > 0 {
		fmt.Fprintf(&sb, ", %d", meta.PublicationYear)
	}
	if meta.ISBN != "" {
		sb.WriteString("\nISBN: " + meta.ISBN)
	}
	if len(meta.Genres) > 0 {
		sb.WriteString("\nGenres: " + strings.Join(meta.Genres, ", "))
	}
	return sb.String()
}

func describe(title, author string) string {
	if title == "" {
		title = "(untitled)"
	}
	out := "«" + title + "»"
	if author != "" {
		out += " by " + author
	}
	return out
}

func helpText(hashtag string) string {
	return "Post a book review with " + hashtag + " and I will find the book for it.\n\n" +
		"/review <hint> as a reply to a message resolves that message\n" +
		"/isbn <code> looks up a book by ISBN\n" +
		"/manual enters the title and author yourself\n" +
		"/cancel drops the current book selection"
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func (b *Bot) send(chatID int64, text string) {
	b.sendMessage(tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) sendMessage(msg tgbotapi.MessageConfig) {
	if _, err := b.api.Send(msg); err != nil {
		slog.Error("telegram_send_failed", "chat_id", msg.ChatID, "error", err)
	}
}
