package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"readlater/internal/config"
	"readlater/internal/domain"
	"readlater/internal/service/mocks"
)

const samplePage = `<html><head>
<title>Sample</title>
<link rel="canonical" href="https://example.com/posts/sample">
</head><body>
<article><p>Hello world</p><script>evil()</script></article>
</body></html>`

type ArticleServiceTestSuite struct {
	suite.Suite
	ctrl *gomock.Controller

	store     *mocks.MockArticleStore
	fetcher   *mocks.MockFetcher
	extractor *mocks.MockExtractor
	txManager *mocks.MockTransactionManager
	publisher *mocks.MockPublisher

	service *ArticleService
	cfg     config.RefreshConfig
	logger  *slog.Logger
}

func (s *ArticleServiceTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())

	s.store = mocks.NewMockArticleStore(s.ctrl)
	s.fetcher = mocks.NewMockFetcher(s.ctrl)
	s.extractor = mocks.NewMockExtractor(s.ctrl)
	s.txManager = mocks.NewMockTransactionManager(s.ctrl)
	s.publisher = mocks.NewMockPublisher(s.ctrl)

	s.cfg = config.RefreshConfig{
		Interval:   time.Hour,
		StaleAfter: 7 * 24 * time.Hour,
		BatchSize:  20,
	}

	s.logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	s.service = NewArticleService(
		s.store,
		s.fetcher,
		s.extractor,
		s.txManager,
		s.publisher,
		s.logger,
		s.cfg,
	)
}

func (s *ArticleServiceTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestArticleServiceTestSuite(t *testing.T) {
	suite.Run(t, new(ArticleServiceTestSuite))
}

// expectPipeline wires one full fetch + extract round for url.
func (s *ArticleServiceTestSuite) expectPipeline(ctx context.Context, url string) {
	s.fetcher.EXPECT().Page(ctx, url).Return([]byte(samplePage), nil)
	s.extractor.EXPECT().Extract(url, gomock.Any()).Return(&domain.ExtractedArticle{
		Title:   "Sample",
		Author:  "Jane Roe",
		Excerpt: "Hello world",
		Content: "<article><p>Hello world</p></article>",
	}, nil)
}

func (s *ArticleServiceTestSuite) TestSaveArticle_InvalidURL() {
	ctx := context.Background()

	for _, raw := range []string{"", "not a url", "example.com/no-scheme", "https://"} {
		article, err := s.service.SaveArticle(ctx, 1, raw)

		s.ErrorIs(err, domain.ErrInvalidURL)
		s.Nil(article)
	}
}

func (s *ArticleServiceTestSuite) TestSaveArticle_Create() {
	ctx := context.Background()
	url := "https://example.com/posts/sample?ref=feed"

	s.store.EXPECT().FindByURL(ctx, int64(1), url).Return(nil, nil)
	s.expectPipeline(ctx, url)
	s.store.EXPECT().Insert(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, article *domain.Article) (int64, error) {
			s.Equal("https://example.com/posts/sample", article.CanonicalURL)
			s.Equal("/sample", article.Slug)
			s.Equal("Sample", *article.Title)
			s.Equal("Jane Roe", *article.Author)
			s.Equal([]string{}, article.Tags)
			s.NotEmpty(article.Content)
			s.NotContains(article.Content, "<script>")
			s.Positive(article.SizeInBytes)
			return 42, nil
		},
	)
	s.publisher.EXPECT().Publish(ctx, "create", gomock.Any()).Return(nil)

	article, err := s.service.SaveArticle(ctx, 1, url)

	s.NoError(err)
	s.Equal(int64(42), article.ID)
	s.Equal(int64(1), article.UserID)
	s.Equal(url, article.URL)
	_, parseErr := uuid.Parse(article.UniqueID)
	s.NoError(parseErr)
	s.False(article.CreatedOn.IsZero())
}

func (s *ArticleServiceTestSuite) TestSaveArticle_TimeToParseCoversExtraction() {
	ctx := context.Background()
	url := "https://example.com/posts/sample"

	s.store.EXPECT().FindByURL(ctx, int64(1), url).Return(nil, nil)
	s.fetcher.EXPECT().Page(ctx, url).Return([]byte(samplePage), nil)
	s.extractor.EXPECT().Extract(url, gomock.Any()).DoAndReturn(
		func(string, []byte) (*domain.ExtractedArticle, error) {
			time.Sleep(30 * time.Millisecond)
			return &domain.ExtractedArticle{
				Title:   "Sample",
				Author:  "Jane Roe",
				Excerpt: "Hello world",
				Content: "<article><p>Hello world</p></article>",
			}, nil
		},
	)
	s.store.EXPECT().Insert(ctx, gomock.Any()).Return(int64(42), nil)
	s.publisher.EXPECT().Publish(ctx, "create", gomock.Any()).Return(nil)

	article, err := s.service.SaveArticle(ctx, 1, url)

	s.NoError(err)
	// The parse window runs from the end of the fetch through extraction,
	// so the extractor's delay must show up in the measurement.
	s.GreaterOrEqual(article.TimeToParse, int64(30))
}

func (s *ArticleServiceTestSuite) TestSaveArticle_ExistingRefreshes() {
	ctx := context.Background()
	url := "https://example.com/posts/sample"
	created := time.Now().Add(-48 * time.Hour).UTC()
	existing := &domain.Article{
		ID:        7,
		UniqueID:  "f6a7f297-85b2-4060-9e04-b83f16ed6e72",
		UserID:    1,
		URL:       url,
		CreatedOn: created,
		Tags:      []string{"go"},
	}

	s.store.EXPECT().FindByURL(ctx, int64(1), url).Return(existing, nil)
	s.expectPipeline(ctx, url)
	s.store.EXPECT().ReplaceDerived(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, article *domain.Article) error {
			s.Equal(int64(7), article.ID)
			s.Equal("https://example.com/posts/sample", article.CanonicalURL)
			return nil
		},
	)
	s.publisher.EXPECT().Publish(ctx, "refresh", gomock.Any()).Return(nil)

	article, err := s.service.SaveArticle(ctx, 1, url)

	s.NoError(err)
	s.Equal(existing.UniqueID, article.UniqueID)
	s.Equal(created, article.CreatedOn)
	s.True(article.RefreshedAt.After(created))
	s.Equal([]string{"go"}, article.Tags)
}

func (s *ArticleServiceTestSuite) TestSaveArticle_ConflictFallsBackToRefresh() {
	ctx := context.Background()
	url := "https://example.com/posts/sample"
	winner := &domain.Article{
		ID:       9,
		UniqueID: "0b431a55-99bc-4c48-9cfa-f04fbbdedbbd",
		UserID:   1,
		URL:      url,
	}

	s.store.EXPECT().FindByURL(ctx, int64(1), url).Return(nil, nil)
	s.expectPipeline(ctx, url)
	s.store.EXPECT().Insert(ctx, gomock.Any()).Return(int64(0), domain.ErrAlreadyExists)
	s.store.EXPECT().FindByURL(ctx, int64(1), "https://example.com/posts/sample").Return(winner, nil)
	s.expectPipeline(ctx, url)
	s.store.EXPECT().ReplaceDerived(ctx, gomock.Any()).Return(nil)
	s.publisher.EXPECT().Publish(ctx, "refresh", gomock.Any()).Return(nil)

	article, err := s.service.SaveArticle(ctx, 1, url)

	s.NoError(err)
	s.Equal(winner.UniqueID, article.UniqueID)
}

func (s *ArticleServiceTestSuite) TestSaveArticle_FetchError() {
	ctx := context.Background()
	url := "https://example.com/gone"

	s.store.EXPECT().FindByURL(ctx, int64(1), url).Return(nil, nil)
	s.fetcher.EXPECT().Page(ctx, url).Return(nil, domain.ErrFetchTimeout)

	article, err := s.service.SaveArticle(ctx, 1, url)

	s.ErrorIs(err, domain.ErrFetchTimeout)
	s.Nil(article)
}

func (s *ArticleServiceTestSuite) TestSaveArticle_ExtractionError() {
	ctx := context.Background()
	url := "https://example.com/empty"

	s.store.EXPECT().FindByURL(ctx, int64(1), url).Return(nil, nil)
	s.fetcher.EXPECT().Page(ctx, url).Return([]byte("<html><body></body></html>"), nil)
	s.extractor.EXPECT().Extract(url, gomock.Any()).Return(nil, domain.ErrExtractionFailed)

	article, err := s.service.SaveArticle(ctx, 1, url)

	s.ErrorIs(err, domain.ErrExtractionFailed)
	s.Nil(article)
}

func (s *ArticleServiceTestSuite) TestSaveArticle_PublisherNil() {
	ctx := context.Background()
	url := "https://example.com/posts/sample"

	service := NewArticleService(s.store, s.fetcher, s.extractor, s.txManager, nil, s.logger, s.cfg)

	s.store.EXPECT().FindByURL(ctx, int64(1), url).Return(nil, nil)
	s.expectPipeline(ctx, url)
	s.store.EXPECT().Insert(ctx, gomock.Any()).Return(int64(1), nil)

	article, err := service.SaveArticle(ctx, 1, url)

	s.NoError(err)
	s.NotNil(article)
}

func (s *ArticleServiceTestSuite) TestAddTags_MergesSortedDeduped() {
	ctx := context.Background()
	articleID := "f6a7f297-85b2-4060-9e04-b83f16ed6e72"
	existing := &domain.Article{ID: 7, UniqueID: articleID, UserID: 1, Tags: []string{"B", "a"}}

	s.store.EXPECT().FindByUniqueID(ctx, int64(1), articleID).Return(existing, nil)
	s.store.EXPECT().UpdateFields(ctx, int64(7), map[string]any{
		"tags": []string{"B", "a", "c"},
	}).Return(nil)
	s.publisher.EXPECT().Publish(ctx, "update", gomock.Any()).Return(nil)

	tags, err := s.service.AddTags(ctx, 1, articleID, []string{" c ", "a"})

	s.NoError(err)
	s.Equal([]string{"B", "a", "c"}, tags)
}

func (s *ArticleServiceTestSuite) TestAddTags_RejectsInvalidTags() {
	ctx := context.Background()
	articleID := "f6a7f297-85b2-4060-9e04-b83f16ed6e72"

	cases := [][]string{
		{"has space"},
		{"semi;colon"},
		{"thistagiswaytoolongtobeaccepted"},
		{""},
	}
	for _, tags := range cases {
		_, err := s.service.AddTags(ctx, 1, articleID, tags)
		s.ErrorIs(err, domain.ErrInvalidTags)
	}
}

func (s *ArticleServiceTestSuite) TestAddTags_RejectsMalformedArticleID() {
	_, err := s.service.AddTags(context.Background(), 1, "not-a-uuid", []string{"go"})
	s.ErrorIs(err, domain.ErrInvalidTags)
}

func (s *ArticleServiceTestSuite) TestAddTags_UnknownArticle() {
	ctx := context.Background()
	articleID := "f6a7f297-85b2-4060-9e04-b83f16ed6e72"

	s.store.EXPECT().FindByUniqueID(ctx, int64(1), articleID).Return(nil, nil)

	_, err := s.service.AddTags(ctx, 1, articleID, []string{"go"})
	s.ErrorIs(err, domain.ErrNotFound)
}

func (s *ArticleServiceTestSuite) TestApplyPatch_FieldsOnly() {
	ctx := context.Background()
	articleID := "f6a7f297-85b2-4060-9e04-b83f16ed6e72"
	existing := &domain.Article{ID: 7, UniqueID: articleID, UserID: 1, Tags: []string{"go"}}
	title := "New title"

	s.store.EXPECT().FindByUniqueID(ctx, int64(1), articleID).Return(existing, nil)
	s.txManager.EXPECT().WithTransaction(ctx, gomock.Any()).DoAndReturn(
		func(ctx context.Context, fn func(context.Context) error) error {
			return fn(ctx)
		},
	)
	s.store.EXPECT().UpdateFields(ctx, int64(7), map[string]any{"title": title}).Return(nil)
	s.publisher.EXPECT().Publish(ctx, "update", gomock.Any()).Return(nil)

	article, err := s.service.ApplyPatch(ctx, 1, articleID, domain.Patch{Title: &title})

	s.NoError(err)
	s.Equal(title, *article.Title)
}

func (s *ArticleServiceTestSuite) TestApplyPatch_RefreshThenFields() {
	ctx := context.Background()
	articleID := "f6a7f297-85b2-4060-9e04-b83f16ed6e72"
	url := "https://example.com/posts/sample"
	existing := &domain.Article{ID: 7, UniqueID: articleID, UserID: 1, Tags: []string{"go"}}

	s.store.EXPECT().FindByUniqueID(ctx, int64(1), articleID).Return(existing, nil)
	s.expectPipeline(ctx, url)
	s.txManager.EXPECT().WithTransaction(ctx, gomock.Any()).DoAndReturn(
		func(ctx context.Context, fn func(context.Context) error) error {
			return fn(ctx)
		},
	)
	gomock.InOrder(
		s.store.EXPECT().ReplaceDerived(ctx, gomock.Any()).Return(nil),
		s.store.EXPECT().UpdateFields(ctx, int64(7), map[string]any{
			"tags": []string{"go", "reading"},
		}).Return(nil),
	)
	s.publisher.EXPECT().Publish(ctx, "refresh", gomock.Any()).Return(nil)

	article, err := s.service.ApplyPatch(ctx, 1, articleID, domain.Patch{
		RefreshURL: url,
		Tags:       []string{"reading"},
	})

	s.NoError(err)
	s.Equal([]string{"go", "reading"}, article.Tags)
	s.Equal("https://example.com/posts/sample", article.CanonicalURL)
}

func (s *ArticleServiceTestSuite) TestApplyPatch_RejectsInvalidTags() {
	ctx := context.Background()
	articleID := "f6a7f297-85b2-4060-9e04-b83f16ed6e72"
	existing := &domain.Article{ID: 7, UniqueID: articleID, UserID: 1, Tags: []string{"go"}}

	cases := [][]string{
		{"has space"},
		{"semi;colon"},
		{"thistagiswaytoolongtobeaccepted"},
		{""},
	}
	for _, tags := range cases {
		s.store.EXPECT().FindByUniqueID(ctx, int64(1), articleID).Return(existing, nil)

		// RefreshURL set on purpose: an invalid patch must fail before any
		// fetch happens, so no fetcher expectation is registered.
		_, err := s.service.ApplyPatch(ctx, 1, articleID, domain.Patch{
			RefreshURL: "https://example.com/posts/sample",
			Tags:       tags,
		})
		s.ErrorIs(err, domain.ErrInvalidTags)
	}
}

func (s *ArticleServiceTestSuite) TestApplyPatch_TrimsTags() {
	ctx := context.Background()
	articleID := "f6a7f297-85b2-4060-9e04-b83f16ed6e72"
	existing := &domain.Article{ID: 7, UniqueID: articleID, UserID: 1, Tags: []string{"go"}}

	s.store.EXPECT().FindByUniqueID(ctx, int64(1), articleID).Return(existing, nil)
	s.txManager.EXPECT().WithTransaction(ctx, gomock.Any()).DoAndReturn(
		func(ctx context.Context, fn func(context.Context) error) error {
			return fn(ctx)
		},
	)
	s.store.EXPECT().UpdateFields(ctx, int64(7), map[string]any{
		"tags": []string{"api", "go"},
	}).Return(nil)
	s.publisher.EXPECT().Publish(ctx, "update", gomock.Any()).Return(nil)

	article, err := s.service.ApplyPatch(ctx, 1, articleID, domain.Patch{Tags: []string{" api "}})

	s.NoError(err)
	s.Equal([]string{"api", "go"}, article.Tags)
}

func (s *ArticleServiceTestSuite) TestApplyPatch_EmptyPatchIsNoop() {
	ctx := context.Background()
	articleID := "f6a7f297-85b2-4060-9e04-b83f16ed6e72"
	existing := &domain.Article{ID: 7, UniqueID: articleID, UserID: 1}

	s.store.EXPECT().FindByUniqueID(ctx, int64(1), articleID).Return(existing, nil)

	article, err := s.service.ApplyPatch(ctx, 1, articleID, domain.Patch{})

	s.NoError(err)
	s.Equal(existing, article)
}

func (s *ArticleServiceTestSuite) TestApplyPatch_NotFound() {
	ctx := context.Background()

	s.store.EXPECT().FindByUniqueID(ctx, int64(1), "missing").Return(nil, nil)

	_, err := s.service.ApplyPatch(ctx, 1, "missing", domain.Patch{})
	s.ErrorIs(err, domain.ErrNotFound)
}

func (s *ArticleServiceTestSuite) TestDeleteArticle_Missing() {
	ctx := context.Background()

	s.store.EXPECT().FindByURL(ctx, int64(1), "https://example.com/gone").Return(nil, nil)

	deleted, err := s.service.DeleteArticle(ctx, 1, "https://example.com/gone")

	s.NoError(err)
	s.False(deleted)
}

func (s *ArticleServiceTestSuite) TestDeleteArticle_Found() {
	ctx := context.Background()
	url := "https://example.com/posts/sample"
	existing := &domain.Article{ID: 7, UserID: 1, URL: url}

	s.store.EXPECT().FindByURL(ctx, int64(1), url).Return(existing, nil)
	s.store.EXPECT().Delete(ctx, int64(1), url).Return(true, nil)
	s.publisher.EXPECT().Publish(ctx, "delete", existing).Return(nil)

	deleted, err := s.service.DeleteArticle(ctx, 1, url)

	s.NoError(err)
	s.True(deleted)
}

func (s *ArticleServiceTestSuite) TestDeleteAll() {
	ctx := context.Background()

	s.store.EXPECT().DeleteAll(ctx).Return(nil)

	s.NoError(s.service.DeleteAll(ctx))
}

func (s *ArticleServiceTestSuite) TestDeleteAll_Error() {
	ctx := context.Background()

	s.store.EXPECT().DeleteAll(ctx).Return(errors.New("db down"))

	err := s.service.DeleteAll(ctx)
	s.Error(err)
	s.Contains(err.Error(), "delete all articles")
}

func (s *ArticleServiceTestSuite) TestRefreshStale_CountsFailures() {
	ctx := context.Background()
	stale := []domain.Article{
		{ID: 1, UniqueID: "a", CanonicalURL: "https://example.com/posts/one"},
		{ID: 2, UniqueID: "b", CanonicalURL: "https://example.com/posts/two"},
	}

	s.store.EXPECT().ListStale(ctx, gomock.Any(), s.cfg.BatchSize).Return(stale, nil)

	s.expectPipeline(ctx, "https://example.com/posts/one")
	s.store.EXPECT().ReplaceDerived(ctx, gomock.Any()).Return(nil)
	s.publisher.EXPECT().Publish(ctx, "refresh", gomock.Any()).Return(nil)

	s.fetcher.EXPECT().Page(ctx, "https://example.com/posts/two").Return(nil, domain.ErrFetchFailed)

	stats, err := s.service.RefreshStale(ctx)

	s.NoError(err)
	s.Equal(2, stats.Checked)
	s.Equal(1, stats.Refreshed)
	s.Equal(1, stats.Errors)
}

func (s *ArticleServiceTestSuite) TestListArticles() {
	ctx := context.Background()
	articles := []domain.Article{{ID: 1}, {ID: 2}}

	s.store.EXPECT().ListByUser(ctx, int64(1)).Return(articles, nil)

	got, err := s.service.ListArticles(ctx, 1)

	s.NoError(err)
	s.Equal(articles, got)
}

func (s *ArticleServiceTestSuite) TestSearchByTag() {
	ctx := context.Background()
	articles := []domain.Article{{ID: 1, Tags: []string{"go"}}}

	s.store.EXPECT().ListByTag(ctx, int64(1), "go").Return(articles, nil)

	got, err := s.service.SearchByTag(ctx, 1, "go")

	s.NoError(err)
	s.Equal(articles, got)
}
