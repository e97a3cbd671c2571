package telegram

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/errgroup"
)

// UpdateSource is the long-polling half of *tgbotapi.BotAPI.
type UpdateSource interface {
	GetUpdates(config tgbotapi.UpdateConfig) ([]tgbotapi.Update, error)
}

const (
	pollTimeoutSeconds = 30
	pollBaseDelay      = time.Second
	pollMaxDelay       = 15 * time.Second
	maxConcurrentUsers = 8
)

// Poll reads updates until ctx is done. Updates of one user are handled in
// arrival order; different users are served concurrently.
func (b *Bot) Poll(ctx context.Context, source UpdateSource) error {
	offset := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		cfg := tgbotapi.NewUpdate(offset)
		cfg.Timeout = pollTimeoutSeconds

		updates, err := source.GetUpdates(cfg)
		if err != nil {
			d := retryDelayFromError(err)
			slog.Warn("telegram_poll_failed", "error", err, "retry_in_ms", d.Milliseconds())
			if !sleepContext(ctx, d) {
				return nil
			}
			continue
		}

		for _, upd := range updates {
			if upd.UpdateID >= offset {
				offset = upd.UpdateID + 1
			}
		}
		b.dispatch(ctx, updates)
	}
}

func (b *Bot) dispatch(ctx context.Context, updates []tgbotapi.Update) {
	byUser := make(map[int64][]tgbotapi.Update)
	var order []int64
	for _, upd := range updates {
		id := updateUserID(upd)
		if _, seen := byUser[id]; !seen {
			order = append(order, id)
		}
		byUser[id] = append(byUser[id], upd)
	}

	var g errgroup.Group
	g.SetLimit(maxConcurrentUsers)
	for _, id := range order {
		batch := byUser[id]
		g.Go(func() error {
			for _, upd := range batch {
				b.HandleUpdate(ctx, upd)
			}
			return nil
		})
	}
	_ = g.Wait()
}

func updateUserID(upd tgbotapi.Update) int64 {
	switch {
	case upd.CallbackQuery != nil && upd.CallbackQuery.From != nil:
		return upd.CallbackQuery.From.ID
	case upd.Message != nil && upd.Message.From != nil:
		return upd.Message.From.ID
	default:
		return 0
	}
}

var reRetryAfter = regexp.MustCompile(`(?i)retry after\s+(\d+)`)

func retryDelayFromError(err error) time.Duration {
	d := pollBaseDelay
	s := strings.ToLower(err.Error())
	var ne net.Error
	switch {
	case strings.Contains(s, "too many requests"):
		d = 3 * time.Second
		if m := reRetryAfter.FindStringSubmatch(s); len(m) == 2 {
			if n, _ := strconv.Atoi(m[1]); n > 0 {
				d = time.Duration(n) * time.Second
			}
		}
	case errors.As(err, &ne) && ne.Timeout():
		d = 2 * time.Second
	}
	if d > pollMaxDelay {
		d = pollMaxDelay
	}
	return d
}

func sleepContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
