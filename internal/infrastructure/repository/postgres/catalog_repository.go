package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kirillkom/bookbot/internal/core/domain"
)

type CatalogRepository struct {
	db *sql.DB
}

func NewCatalogRepository(db *sql.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

const bookColumns = `id, title, author, external_id, isbn, cover_url, genres, publication_year, description, page_count, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *CatalogRepository) List(ctx context.Context) ([]domain.CatalogEntry, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+bookColumns+` FROM books ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	defer rows.Close()

	out := make([]domain.CatalogEntry, 0)
	for rows.Next() {
		entry, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate books: %w", err)
	}
	return out, nil
}

func (r *CatalogRepository) GetByID(ctx context.Context, id string) (*domain.CatalogEntry, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+bookColumns+` FROM books WHERE id = $1`, id)
	return scanOne(row, "book "+id)
}

func (r *CatalogRepository) GetByExternalID(ctx context.Context, externalID string) (*domain.CatalogEntry, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+bookColumns+` FROM books WHERE external_id = $1`, externalID)
	return scanOne(row, "book external "+externalID)
}

// Create inserts entry. With a non-empty external id an existing row wins and
// is returned instead.
func (r *CatalogRepository) Create(ctx context.Context, entry *domain.CatalogEntry) (*domain.CatalogEntry, error) {
	genres := entry.Genres
	if genres == nil {
		genres = []string{}
	}
	genresJSON, err := json.Marshal(genres)
	if err != nil {
		return nil, fmt.Errorf("marshal genres: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO books (`+bookColumns+`)
VALUES ($1,$2,$3,NULLIF($4,''),$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (external_id) DO NOTHING
`,
		entry.ID, entry.Title, entry.Author, entry.ExternalID, entry.ISBN, entry.CoverURL, genresJSON,
		entry.PublicationYear, entry.Description, entry.PageCount, entry.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert book: %w", err)
	}

	if entry.ExternalID != "" {
		return r.GetByExternalID(ctx, entry.ExternalID)
	}
	stored := *entry
	stored.Genres = genres
	return &stored, nil
}

func scanOne(row *sql.Row, what string) (*domain.CatalogEntry, error) {
	entry, err := scanBook(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get book", fmt.Errorf("%s not found", what))
		}
		return nil, err
	}
	return &entry, nil
}

func scanBook(row rowScanner) (domain.CatalogEntry, error) {
	var entry domain.CatalogEntry
	var externalID sql.NullString
	var genresRaw []byte

	err := row.Scan(
		&entry.ID, &entry.Title, &entry.Author, &externalID, &entry.ISBN, &entry.CoverURL, &genresRaw,
		&entry.PublicationYear, &entry.Description, &entry.PageCount, &entry.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.CatalogEntry{}, err
		}
		return domain.CatalogEntry{}, fmt.Errorf("scan book: %w", err)
	}
	entry.ExternalID = externalID.String
	entry.Genres = []string{}
	if len(genresRaw) > 0 {
		if err := json.Unmarshal(genresRaw, &entry.Genres); err != nil {
			return domain.CatalogEntry{}, fmt.Errorf("unmarshal genres: %w", err)
		}
	}
	return entry, nil
}
