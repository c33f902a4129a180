package article

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Article is a single fetched news item, pre-extraction. Identity is the
// content hash; rows are immutable after insert and duplicates collapse
// across runs.
type Article struct {
	ID          uuid.UUID `json:"id"`
	URL         string    `json:"url"` // canonicalized
	ContentHash string    `json:"content_hash"`
	Headline    string    `json:"headline"`
	Body        string    `json:"body"`
	PublishedAt time.Time `json:"published_at"`
	SourceID    uuid.UUID `json:"source_id"`
	SourceName  string    `json:"source_name"`
	Language    string    `json:"language"`

	// Discovery provenance
	Round int    `json:"round"` // 1 = broad, 2 = targeted
	Query string `json:"query"`

	CreatedAt time.Time `json:"created_at"`
}

var (
	whitespaceRe    = regexp.MustCompile(`\s+`)
	trackingParamRe = regexp.MustCompile(`^(utm_.*|fbclid|gclid)$`)
)

// New builds an article candidate, canonicalizing the URL and computing
// the content hash over URL and body.
func New(rawURL, headline, body string, publishedAt time.Time, sourceID uuid.UUID, round int, query string) (*Article, error) {
	canonical, err := CanonicalizeURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid article url: %w", err)
	}
	if strings.TrimSpace(headline) == "" && strings.TrimSpace(body) == "" {
		return nil, fmt.Errorf("article has neither headline nor body")
	}

	return &Article{
		ID:          uuid.New(),
		URL:         canonical,
		ContentHash: ContentHash(canonical, body),
		Headline:    strings.TrimSpace(headline),
		Body:        body,
		PublishedAt: publishedAt.UTC(),
		SourceID:    sourceID,
		Round:       round,
		Query:       query,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// CanonicalizeURL lowercases scheme and host, strips the fragment and
// known tracking parameters, and collapses trailing slashes. The
// operation is idempotent: canonicalize(canonicalize(u)) == canonicalize(u).
func CanonicalizeURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("url %q missing scheme or host", raw)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	q := u.Query()
	for key := range q {
		if trackingParamRe.MatchString(strings.ToLower(key)) {
			q.Del(key)
		}
	}
	u.RawQuery = q.Encode()

	if u.Path != "/" {
		u.Path = strings.TrimRight(u.Path, "/")
	}

	return u.String(), nil
}

// NormalizeBody lowercases and whitespace-collapses body text; the hash
// is stable under whitespace changes.
func NormalizeBody(body string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(strings.ToLower(body), " "))
}

// ContentHash is SHA-256 over canonicalized URL and normalized body,
// the cross-run dedup key.
func ContentHash(canonicalURL, body string) string {
	h := sha256.New()
	h.Write([]byte(canonicalURL))
	h.Write([]byte{0})
	h.Write([]byte(NormalizeBody(body)))
	return hex.EncodeToString(h.Sum(nil))
}
