package fixtures

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/osintwatch/conflict-ingest/internal/domain/article"
)

// ArticleBuilder builds test Article entities.
type ArticleBuilder struct {
	t           *testing.T
	url         string
	headline    string
	body        string
	publishedAt time.Time
	sourceID    uuid.UUID
	sourceName  string
	round       int
	query       string
}

// NewArticleBuilder creates an ArticleBuilder with defaults.
func NewArticleBuilder(t *testing.T) *ArticleBuilder {
	t.Helper()
	return &ArticleBuilder{
		t:           t,
		url:         fmt.Sprintf("https://news.example.com/%s", uuid.New().String()[:8]),
		headline:    "Missile strike reported near frontline city",
		body:        "Artillery shelling and missile fire were reported as fighting continued in Kharkiv.",
		publishedAt: time.Now().UTC().Add(-time.Hour),
		sourceID:    uuid.New(),
		sourceName:  "reuters_world",
		round:       1,
		query:       "Ukraine military conflict today",
	}
}

func (b *ArticleBuilder) WithURL(url string) *ArticleBuilder {
	b.url = url
	return b
}

func (b *ArticleBuilder) WithHeadline(headline string) *ArticleBuilder {
	b.headline = headline
	return b
}

func (b *ArticleBuilder) WithBody(body string) *ArticleBuilder {
	b.body = body
	return b
}

func (b *ArticleBuilder) WithPublishedAt(at time.Time) *ArticleBuilder {
	b.publishedAt = at
	return b
}

func (b *ArticleBuilder) WithSource(id uuid.UUID, name string) *ArticleBuilder {
	b.sourceID = id
	b.sourceName = name
	return b
}

func (b *ArticleBuilder) WithRound(round int, query string) *ArticleBuilder {
	b.round = round
	b.query = query
	return b
}

// Build constructs the Article, failing the test on invalid input.
func (b *ArticleBuilder) Build() *article.Article {
	b.t.Helper()
	a, err := article.New(b.url, b.headline, b.body, b.publishedAt, b.sourceID, b.round, b.query)
	require.NoError(b.t, err)
	a.SourceName = b.sourceName
	return a
}
