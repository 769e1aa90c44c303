package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"readlater/internal/config"
	"readlater/internal/domain"
	"readlater/internal/sanitize"
	"readlater/internal/urlutil"
)

// ArticleService runs the extraction pipeline and owns the article lifecycle.
// Each invocation is a single serial chain (sanitize depends on fetch,
// extraction on sanitize, filtering on extraction); nothing is persisted
// until every step has succeeded.
type ArticleService struct {
	store     ArticleStore
	fetcher   Fetcher
	extractor Extractor
	txManager TransactionManager
	publisher Publisher
	logger    *slog.Logger
	config    config.RefreshConfig
}

func NewArticleService(
	store ArticleStore,
	fetcher Fetcher,
	extractor Extractor,
	txManager TransactionManager,
	publisher Publisher,
	logger *slog.Logger,
	cfg config.RefreshConfig,
) *ArticleService {
	return &ArticleService{
		store:     store,
		fetcher:   fetcher,
		extractor: extractor,
		txManager: txManager,
		publisher: publisher,
		logger:    logger.With("component", "articles"),
		config:    cfg,
	}
}

// derived holds everything one pipeline run produces.
type derived struct {
	canonicalURL  string
	slug          string
	title         *string
	author        *string
	excerpt       *string
	datePublished *time.Time
	content       string
	timeToFetch   int64
	timeToParse   int64
	sizeInBytes   int64
}

// runPipeline executes fetch → sanitize → canonical resolution → extraction
// → tag filtering for one URL. Step order is fixed: no step observes a
// partial result from a later one.
func (s *ArticleService) runPipeline(ctx context.Context, rawURL string) (*derived, error) {
	fetchStart := time.Now()
	raw, err := s.fetcher.Page(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	timeToFetch := time.Since(fetchStart).Milliseconds()

	// The parse window opens as soon as the fetch ends: sanitize, canonical
	// resolution and extraction are all parse work.
	parseStart := time.Now()

	clean := sanitize.Document(string(raw), sanitize.Options{})
	canonical := sanitize.CanonicalURL(clean)
	if canonical == "" {
		canonical = rawURL
	}

	extracted, err := s.extractor.Extract(rawURL, []byte(clean))
	if err != nil {
		return nil, err
	}
	timeToParse := time.Since(parseStart).Milliseconds()

	return &derived{
		canonicalURL:  canonical,
		slug:          urlutil.ExtractSlug(rawURL),
		title:         optional(extracted.Title),
		author:        optional(extracted.Author),
		excerpt:       optional(extracted.Excerpt),
		datePublished: extracted.DatePublished,
		content:       sanitize.FilterTags(extracted.Content, sanitize.ContentTags),
		timeToFetch:   timeToFetch,
		timeToParse:   timeToParse,
		sizeInBytes:   int64(len(clean)),
	}, nil
}

// SaveArticle implements the save request: a fresh URL goes through the
// creation path, a URL the user already has triggers a content refresh of
// the existing record instead.
func (s *ArticleService) SaveArticle(ctx context.Context, userID int64, rawURL string) (*domain.Article, error) {
	if !urlutil.IsURL(rawURL) {
		return nil, domain.ErrInvalidURL
	}

	existing, err := s.store.FindByURL(ctx, userID, rawURL)
	if err != nil {
		return nil, fmt.Errorf("find article: %w", err)
	}
	if existing != nil {
		return s.refresh(ctx, existing, rawURL)
	}

	d, err := s.runPipeline(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	article := &domain.Article{
		UniqueID:    uuid.NewString(),
		UserID:      userID,
		URL:         rawURL,
		CreatedOn:   now,
		RefreshedAt: now,
		Tags:        []string{},
	}
	applyDerived(article, d)

	id, err := s.store.Insert(ctx, article)
	if errors.Is(err, domain.ErrAlreadyExists) {
		// Lost a create race on (user, canonical URL): fall back to the
		// update path against whichever record won.
		winner, findErr := s.store.FindByURL(ctx, userID, d.canonicalURL)
		if findErr != nil || winner == nil {
			return nil, fmt.Errorf("resolve create conflict: %w", err)
		}
		return s.refresh(ctx, winner, rawURL)
	}
	if err != nil {
		return nil, fmt.Errorf("insert article: %w", err)
	}
	article.ID = id

	s.publish(ctx, "create", article)
	s.logger.Info("article created",
		"unique_id", article.UniqueID,
		"canonical_url", article.CanonicalURL,
		"fetch_ms", article.TimeToFetch,
		"parse_ms", article.TimeToParse,
		"size_bytes", article.SizeInBytes,
	)

	return article, nil
}

// refresh re-runs the whole pipeline for an existing record and replaces its
// derived fields. UniqueID, UserID and CreatedOn are preserved.
func (s *ArticleService) refresh(ctx context.Context, existing *domain.Article, rawURL string) (*domain.Article, error) {
	d, err := s.runPipeline(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	updated := *existing
	applyDerived(&updated, d)
	updated.RefreshedAt = time.Now().UTC()

	if err := s.store.ReplaceDerived(ctx, &updated); err != nil {
		return nil, fmt.Errorf("replace derived fields: %w", err)
	}

	s.publish(ctx, "refresh", &updated)
	s.logger.Info("article refreshed", "unique_id", updated.UniqueID, "canonical_url", updated.CanonicalURL)

	return &updated, nil
}

// ApplyPatch applies an explicit tagged update. A refresh runs first and
// replaces derived fields; any other provided fields are merged afterwards.
// Both writes land in one transaction.
func (s *ArticleService) ApplyPatch(ctx context.Context, userID int64, uniqueID string, patch domain.Patch) (*domain.Article, error) {
	article, err := s.store.FindByUniqueID(ctx, userID, uniqueID)
	if err != nil {
		return nil, fmt.Errorf("find article: %w", err)
	}
	if article == nil {
		return nil, domain.ErrNotFound
	}

	// Tags obey the same rules everywhere; checked before the refresh so an
	// invalid patch never triggers a fetch.
	var trimmedTags []string
	if patch.Tags != nil {
		trimmedTags = make([]string, 0, len(patch.Tags))
		for _, tag := range patch.Tags {
			tag = strings.TrimSpace(tag)
			if !domain.IsValidTag(tag) {
				return nil, domain.ErrInvalidTags
			}
			trimmedTags = append(trimmedTags, tag)
		}
	}

	refreshed := false
	if patch.RefreshURL != "" {
		if !urlutil.IsURL(patch.RefreshURL) {
			return nil, domain.ErrInvalidURL
		}
		d, err := s.runPipeline(ctx, patch.RefreshURL)
		if err != nil {
			return nil, err
		}
		applyDerived(article, d)
		article.RefreshedAt = time.Now().UTC()
		refreshed = true
	}

	fields := make(map[string]any)
	if patch.Title != nil {
		article.Title = patch.Title
		fields["title"] = *patch.Title
	}
	if patch.Author != nil {
		article.Author = patch.Author
		fields["author"] = *patch.Author
	}
	if patch.Tags != nil {
		article.Tags = domain.MergeTags(article.Tags, trimmedTags)
		fields["tags"] = article.Tags
	}

	if !refreshed && len(fields) == 0 {
		return article, nil
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if refreshed {
			if err := s.store.ReplaceDerived(txCtx, article); err != nil {
				return fmt.Errorf("replace derived fields: %w", err)
			}
		}
		if len(fields) > 0 {
			if err := s.store.UpdateFields(txCtx, article.ID, fields); err != nil {
				return fmt.Errorf("update fields: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if refreshed {
		s.publish(ctx, "refresh", article)
	} else {
		s.publish(ctx, "update", article)
	}

	return article, nil
}

// AddTags merges the incoming tags into the article's existing ones:
// trimmed, de-duplicated and stored sorted. Tags must be alphanumeric and
// at most domain.MaxTagLength characters; articleID must be a well-formed
// uuid.
func (s *ArticleService) AddTags(ctx context.Context, userID int64, articleID string, tags []string) ([]string, error) {
	if _, err := uuid.Parse(articleID); err != nil {
		return nil, domain.ErrInvalidTags
	}

	trimmed := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if !domain.IsValidTag(tag) {
			return nil, domain.ErrInvalidTags
		}
		trimmed = append(trimmed, tag)
	}

	article, err := s.store.FindByUniqueID(ctx, userID, articleID)
	if err != nil {
		return nil, fmt.Errorf("find article: %w", err)
	}
	if article == nil {
		return nil, domain.ErrNotFound
	}

	merged := domain.MergeTags(article.Tags, trimmed)
	if err := s.store.UpdateFields(ctx, article.ID, map[string]any{"tags": merged}); err != nil {
		return nil, fmt.Errorf("update tags: %w", err)
	}
	article.Tags = merged

	s.publish(ctx, "update", article)

	return merged, nil
}

// ListArticles returns the user's articles, newest first.
func (s *ArticleService) ListArticles(ctx context.Context, userID int64) ([]domain.Article, error) {
	articles, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	return articles, nil
}

// SearchByTag returns the user's articles carrying the given tag.
func (s *ArticleService) SearchByTag(ctx context.Context, userID int64, tag string) ([]domain.Article, error) {
	articles, err := s.store.ListByTag(ctx, userID, tag)
	if err != nil {
		return nil, fmt.Errorf("search articles: %w", err)
	}
	return articles, nil
}

// DeleteArticle removes the user's record for url. It reports false, nil for
// a URL the user never saved.
func (s *ArticleService) DeleteArticle(ctx context.Context, userID int64, url string) (bool, error) {
	article, err := s.store.FindByURL(ctx, userID, url)
	if err != nil {
		return false, fmt.Errorf("find article: %w", err)
	}
	if article == nil {
		return false, nil
	}

	deleted, err := s.store.Delete(ctx, userID, url)
	if err != nil {
		return false, fmt.Errorf("delete article: %w", err)
	}
	if deleted {
		s.publish(ctx, "delete", article)
	}
	return deleted, nil
}

// DeleteAll wipes every article. Administrative, not user-facing.
func (s *ArticleService) DeleteAll(ctx context.Context) error {
	if err := s.store.DeleteAll(ctx); err != nil {
		return fmt.Errorf("delete all articles: %w", err)
	}
	s.logger.Warn("all articles deleted")
	return nil
}

// RefreshStale re-extracts articles that have not been refreshed within the
// configured window. Failures are counted and logged, never fatal for the
// pass as a whole.
func (s *ArticleService) RefreshStale(ctx context.Context) (*domain.RefreshStats, error) {
	start := time.Now()
	cutoff := start.Add(-s.config.StaleAfter)

	stale, err := s.store.ListStale(ctx, cutoff, s.config.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("list stale articles: %w", err)
	}

	stats := &domain.RefreshStats{Checked: len(stale)}
	for i := range stale {
		article := &stale[i]
		if _, err := s.refresh(ctx, article, article.CanonicalURL); err != nil {
			s.logger.Warn("stale refresh failed", "unique_id", article.UniqueID, "error", err)
			stats.Errors++
			continue
		}
		stats.Refreshed++
	}
	stats.Duration = time.Since(start)

	s.logger.Info("stale refresh pass completed",
		"checked", stats.Checked,
		"refreshed", stats.Refreshed,
		"errors", stats.Errors,
		"duration", stats.Duration,
	)

	return stats, nil
}

// publish is best-effort: a broken event bus must not fail a user request.
func (s *ArticleService) publish(ctx context.Context, action string, article *domain.Article) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, action, article); err != nil {
		s.logger.Warn("publish failed", "action", action, "unique_id", article.UniqueID, "error", err)
	}
}

func applyDerived(article *domain.Article, d *derived) {
	article.CanonicalURL = d.canonicalURL
	article.Slug = d.slug
	article.Title = d.title
	article.Author = d.author
	article.Excerpt = d.excerpt
	article.DatePublished = d.datePublished
	article.Content = d.content
	article.TimeToFetch = d.timeToFetch
	article.TimeToParse = d.timeToParse
	article.SizeInBytes = d.sizeInBytes
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
