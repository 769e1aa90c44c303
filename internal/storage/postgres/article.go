package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"readlater/internal/domain"
)

const uniqueViolation = "23505"

type ArticleStore struct {
	db *sqlx.DB
}

func NewArticleStore(db *sqlx.DB) *ArticleStore {
	return &ArticleStore{db: db}
}

type articleRow struct {
	ID            int64          `db:"id"`
	UniqueID      string         `db:"unique_id"`
	UserID        int64          `db:"user_id"`
	URL           string         `db:"url"`
	CanonicalURL  string         `db:"canonical_url"`
	Slug          string         `db:"slug"`
	Title         *string        `db:"title"`
	Author        *string        `db:"author"`
	Excerpt       *string        `db:"excerpt"`
	DatePublished *time.Time     `db:"date_published"`
	Content       string         `db:"content"`
	CreatedOn     time.Time      `db:"created_on"`
	RefreshedAt   time.Time      `db:"refreshed_at"`
	TimeToFetch   int64          `db:"time_to_fetch"`
	TimeToParse   int64          `db:"time_to_parse"`
	SizeInBytes   int64          `db:"size_in_bytes"`
	Tags          pq.StringArray `db:"tags"`
}

const articleColumns = `
	id, unique_id, user_id, url, canonical_url, slug, title, author, excerpt,
	date_published, content, created_on, refreshed_at, time_to_fetch,
	time_to_parse, size_in_bytes, tags`

func (r *articleRow) toDomain() domain.Article {
	return domain.Article{
		ID:            r.ID,
		UniqueID:      r.UniqueID,
		UserID:        r.UserID,
		URL:           r.URL,
		CanonicalURL:  r.CanonicalURL,
		Slug:          r.Slug,
		Title:         r.Title,
		Author:        r.Author,
		Excerpt:       r.Excerpt,
		DatePublished: r.DatePublished,
		Content:       r.Content,
		CreatedOn:     r.CreatedOn,
		RefreshedAt:   r.RefreshedAt,
		TimeToFetch:   r.TimeToFetch,
		TimeToParse:   r.TimeToParse,
		SizeInBytes:   r.SizeInBytes,
		Tags:          []string(r.Tags),
	}
}

func (s *ArticleStore) Insert(ctx context.Context, article *domain.Article) (int64, error) {
	query := `
		INSERT INTO articles (
			unique_id, user_id, url, canonical_url, slug, title, author,
			excerpt, date_published, content, created_on, refreshed_at,
			time_to_fetch, time_to_parse, size_in_bytes, tags
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16
		)
		RETURNING id`

	var id int64
	err := GetExecutor(ctx, s.db).QueryRowxContext(ctx, query,
		article.UniqueID,
		article.UserID,
		article.URL,
		article.CanonicalURL,
		article.Slug,
		article.Title,
		article.Author,
		article.Excerpt,
		article.DatePublished,
		article.Content,
		article.CreatedOn,
		article.RefreshedAt,
		article.TimeToFetch,
		article.TimeToParse,
		article.SizeInBytes,
		pq.Array(article.Tags),
	).Scan(&id)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
		return 0, domain.ErrAlreadyExists
	}
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (s *ArticleStore) FindByURL(ctx context.Context, userID int64, url string) (*domain.Article, error) {
	query := `SELECT` + articleColumns + `
		FROM articles
		WHERE user_id = $1 AND (url = $2 OR canonical_url = $2)
		LIMIT 1`

	var row articleRow
	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &row, query, userID, url)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	article := row.toDomain()
	return &article, nil
}

func (s *ArticleStore) FindByUniqueID(ctx context.Context, userID int64, uniqueID string) (*domain.Article, error) {
	query := `SELECT` + articleColumns + `
		FROM articles
		WHERE user_id = $1 AND unique_id = $2`

	var row articleRow
	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &row, query, userID, uniqueID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	article := row.toDomain()
	return &article, nil
}

func (s *ArticleStore) ListByUser(ctx context.Context, userID int64) ([]domain.Article, error) {
	query := `SELECT` + articleColumns + `
		FROM articles
		WHERE user_id = $1
		ORDER BY created_on DESC`

	return s.list(ctx, query, userID)
}

func (s *ArticleStore) ListByTag(ctx context.Context, userID int64, tag string) ([]domain.Article, error) {
	query := `SELECT` + articleColumns + `
		FROM articles
		WHERE user_id = $1 AND $2 = ANY(tags)
		ORDER BY created_on DESC`

	return s.list(ctx, query, userID, tag)
}

func (s *ArticleStore) ListStale(ctx context.Context, olderThan time.Time, limit int) ([]domain.Article, error) {
	query := `SELECT` + articleColumns + `
		FROM articles
		WHERE refreshed_at < $1
		ORDER BY refreshed_at ASC
		LIMIT $2`

	return s.list(ctx, query, olderThan, limit)
}

func (s *ArticleStore) list(ctx context.Context, query string, args ...any) ([]domain.Article, error) {
	var rows []articleRow
	if err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &rows, query, args...); err != nil {
		return nil, err
	}

	articles := make([]domain.Article, len(rows))
	for i := range rows {
		articles[i] = rows[i].toDomain()
	}
	return articles, nil
}

// updatableColumns bounds partial updates: identity and creation-time
// columns can never be touched through UpdateFields.
var updatableColumns = map[string]bool{
	"url": true, "canonical_url": true, "slug": true, "title": true,
	"author": true, "excerpt": true, "date_published": true, "content": true,
	"refreshed_at": true, "time_to_fetch": true, "time_to_parse": true,
	"size_in_bytes": true, "tags": true,
}

// UpdateFields persists only the given columns, leaving everything else
// alone so concurrent unrelated changes are not clobbered.
func (s *ArticleStore) UpdateFields(ctx context.Context, id int64, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}

	assignments := make([]string, 0, len(fields))
	args := make([]any, 0, len(fields)+1)

	for column, value := range fields {
		if !updatableColumns[column] {
			return fmt.Errorf("column %q is not updatable", column)
		}
		if tags, ok := value.([]string); ok {
			value = pq.Array(tags)
		}
		args = append(args, value)
		assignments = append(assignments, column+" = $"+strconv.Itoa(len(args)))
	}

	args = append(args, id)
	query := "UPDATE articles SET " + strings.Join(assignments, ", ") +
		" WHERE id = $" + strconv.Itoa(len(args))

	result, err := GetExecutor(ctx, s.db).ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ReplaceDerived overwrites every pipeline-derived column of an existing
// record. unique_id, user_id and created_on stay as inserted.
func (s *ArticleStore) ReplaceDerived(ctx context.Context, article *domain.Article) error {
	query := `
		UPDATE articles SET
			canonical_url = $1,
			slug = $2,
			title = $3,
			author = $4,
			excerpt = $5,
			date_published = $6,
			content = $7,
			refreshed_at = $8,
			time_to_fetch = $9,
			time_to_parse = $10,
			size_in_bytes = $11
		WHERE id = $12`

	result, err := GetExecutor(ctx, s.db).ExecContext(ctx, query,
		article.CanonicalURL,
		article.Slug,
		article.Title,
		article.Author,
		article.Excerpt,
		article.DatePublished,
		article.Content,
		article.RefreshedAt,
		article.TimeToFetch,
		article.TimeToParse,
		article.SizeInBytes,
		article.ID,
	)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *ArticleStore) Delete(ctx context.Context, userID int64, url string) (bool, error) {
	result, err := GetExecutor(ctx, s.db).ExecContext(ctx,
		`DELETE FROM articles WHERE user_id = $1 AND (url = $2 OR canonical_url = $2)`,
		userID, url,
	)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (s *ArticleStore) DeleteAll(ctx context.Context) error {
	_, err := GetExecutor(ctx, s.db).ExecContext(ctx, `DELETE FROM articles`)
	return err
}
