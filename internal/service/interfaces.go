package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"time"

	"readlater/internal/domain"
)

type ArticleStore interface {
	// FindByURL matches url against both the submitted and the canonical URL,
	// scoped to one user. Returns nil, nil when nothing matches.
	FindByURL(ctx context.Context, userID int64, url string) (*domain.Article, error)
	FindByUniqueID(ctx context.Context, userID int64, uniqueID string) (*domain.Article, error)
	ListByUser(ctx context.Context, userID int64) ([]domain.Article, error)
	ListByTag(ctx context.Context, userID int64, tag string) ([]domain.Article, error)
	ListStale(ctx context.Context, olderThan time.Time, limit int) ([]domain.Article, error)
	// Insert returns domain.ErrAlreadyExists when the user already has a
	// record for the article's canonical URL.
	Insert(ctx context.Context, article *domain.Article) (int64, error)
	// UpdateFields persists only the given columns, never the whole record.
	UpdateFields(ctx context.Context, id int64, fields map[string]any) error
	// ReplaceDerived overwrites every pipeline-derived field of an existing
	// record, leaving unique_id, user_id and created_on untouched.
	ReplaceDerived(ctx context.Context, article *domain.Article) error
	Delete(ctx context.Context, userID int64, url string) (bool, error)
	DeleteAll(ctx context.Context) error
}

type UserStore interface {
	// Create returns domain.ErrAlreadyExists for a duplicate email.
	Create(ctx context.Context, user *domain.User) (int64, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	// FindBySession resolves an unexpired session token; nil, nil otherwise.
	FindBySession(ctx context.Context, token string) (*domain.User, error)
	SetSession(ctx context.Context, userID int64, token string, expires time.Time) error
}

type Fetcher interface {
	Page(ctx context.Context, url string) ([]byte, error)
}

type Extractor interface {
	Extract(pageURL string, html []byte) (*domain.ExtractedArticle, error)
}

type Publisher interface {
	Publish(ctx context.Context, action string, article *domain.Article) error
	Close() error
}

type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
