package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kirillkom/bookbot/internal/core/domain"
)

type ReviewRepository struct {
	db *sql.DB
}

func NewReviewRepository(db *sql.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

// Save stores the review. Saving the same review again re-points it at the
// given book.
func (r *ReviewRepository) Save(ctx context.Context, review *domain.Review) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO reviews (id, user_id, chat_id, message_id, text, hint, book_id, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (id) DO UPDATE SET book_id = EXCLUDED.book_id
`, review.ID, review.UserID, review.ChatID, review.MessageID, review.Text, review.Hint, review.BookID, review.CreatedAt)
	if err != nil {
		return fmt.Errorf("save review: %w", err)
	}
	return nil
}

