package textproc

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/abadojack/whatlanggo"
	"go.uber.org/zap"
)

// Mention is a surface string with extraction confidence.
type Mention struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Entities is the annotation bundle attached to each relevant article.
type Entities struct {
	Persons       []Mention `json:"persons"`
	Organizations []Mention `json:"organizations"`
	Locations     []Mention `json:"locations"`
	Weapons       []Mention `json:"weapons"`
	Casualties    []Mention `json:"casualties"`
}

// EntityRecall is the optional LLM assist that boosts entity recall on
// top of the deterministic patterns. Errors are swallowed; the regex
// baseline always stands.
type EntityRecall interface {
	RecallEntities(ctx context.Context, text string) (*Entities, error)
}

// Processor annotates article text: language, entities, temporal
// expressions, relevance, pairwise similarity.
type Processor struct {
	recall EntityRecall // may be nil
	logger *zap.Logger
}

func NewProcessor(recall EntityRecall, logger *zap.Logger) *Processor {
	return &Processor{recall: recall, logger: logger}
}

// iso6391 maps whatlanggo's ISO 639-3 output onto the two-letter codes
// the source catalog uses.
var iso6391 = map[string]string{
	"eng": "en", "rus": "ru", "ukr": "uk", "ara": "ar", "fra": "fr",
	"deu": "de", "spa": "es", "por": "pt", "heb": "he", "pes": "fa",
	"tur": "tr", "zho": "zh", "jpn": "ja", "kor": "ko", "pol": "pl",
	"ita": "it", "nld": "nl", "hin": "hi", "urd": "ur",
}

// DetectLanguage returns the ISO-639-1 code, defaulting to en on
// failure or low confidence.
func (p *Processor) DetectLanguage(text string) string {
	if strings.TrimSpace(text) == "" {
		return "en"
	}
	info := whatlanggo.Detect(text)
	if !info.IsReliable() {
		return "en"
	}
	if code, ok := iso6391[whatlanggo.LangToString(info.Lang)]; ok {
		return code
	}
	return "en"
}

var (
	killedRe  = regexp.MustCompile(`(?i)(\d+)\s*(?:people|persons?|civilians?|soldiers?|troops?)?\s*(?:were\s+)?(?:killed|dead|died)`)
	woundedRe = regexp.MustCompile(`(?i)(\d+)\s*(?:people|persons?|civilians?|soldiers?|troops?)?\s*(?:were\s+)?(?:wounded|injured|hurt)`)
	missingRe = regexp.MustCompile(`(?i)(\d+)\s*(?:people|persons?|civilians?|soldiers?|troops?)?\s*(?:are\s+|were\s+|remain\s+)?(?:missing|unaccounted)`)

	properNounRe  = regexp.MustCompile(`\b([A-Z][a-z]+(?:[-' ][A-Z][a-z]+)*)\b`)
	locationCueRe = regexp.MustCompile(`(?i)\b(?:in|at|near|outside|around)\s+([A-Z][a-z]+(?:[-' ][A-Z][a-z]+)*)`)

	tokenRe = regexp.MustCompile(`[a-z0-9]+`)
	wordRe  = regexp.MustCompile(`[a-zA-Z]+`)
)

// ExtractEntities combines the regex patterns with the optional LLM
// recall pass. Results are merged and deduplicated by surface string.
func (p *Processor) ExtractEntities(ctx context.Context, text string) *Entities {
	entities := p.extractPatternEntities(text)

	if p.recall != nil {
		recalled, err := p.recall.RecallEntities(ctx, text)
		if err != nil {
			p.logger.Debug("entity recall unavailable", zap.Error(err))
		} else if recalled != nil {
			entities.Persons = mergeMentions(entities.Persons, recalled.Persons)
			entities.Organizations = mergeMentions(entities.Organizations, recalled.Organizations)
			entities.Locations = mergeMentions(entities.Locations, recalled.Locations)
			entities.Weapons = mergeMentions(entities.Weapons, recalled.Weapons)
			entities.Casualties = mergeMentions(entities.Casualties, recalled.Casualties)
		}
	}

	return entities
}

func (p *Processor) extractPatternEntities(text string) *Entities {
	e := &Entities{}
	lower := strings.ToLower(text)

	for _, w := range weaponLexicon {
		if strings.Contains(lower, w) {
			e.Weapons = append(e.Weapons, Mention{Text: w, Confidence: 0.9})
		}
	}

	for _, m := range killedRe.FindAllString(text, -1) {
		e.Casualties = append(e.Casualties, Mention{Text: m, Confidence: 0.85})
	}
	for _, m := range woundedRe.FindAllString(text, -1) {
		e.Casualties = append(e.Casualties, Mention{Text: m, Confidence: 0.85})
	}

	// Locations: proper nouns behind prepositional cues.
	seenLoc := map[string]bool{}
	for _, m := range locationCueRe.FindAllStringSubmatch(text, -1) {
		name := m[1]
		if seenLoc[name] {
			continue
		}
		seenLoc[name] = true
		e.Locations = append(e.Locations, Mention{Text: name, Confidence: 0.7})
	}

	// Known actors and unit-suffixed chunks become organizations.
	seenOrg := map[string]bool{}
	for _, actor := range knownActors {
		if containsWord(lower, strings.ToLower(actor)) && !seenOrg[actor] {
			seenOrg[actor] = true
			e.Organizations = append(e.Organizations, Mention{Text: actor, Confidence: 0.8})
		}
	}
	for _, m := range properNounRe.FindAllString(text, -1) {
		ml := strings.ToLower(m)
		if seenOrg[m] || seenLoc[m] {
			continue
		}
		for _, unit := range unitLexicon {
			if strings.Contains(ml, unit) {
				seenOrg[m] = true
				e.Organizations = append(e.Organizations, Mention{Text: m, Confidence: 0.65})
				break
			}
		}
	}

	// Persons: capitalized chunks following a title cue.
	seenPerson := map[string]bool{}
	for _, title := range personTitles {
		re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(title) + `\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+)?)`)
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			name := m[1]
			if seenPerson[name] {
				continue
			}
			seenPerson[name] = true
			e.Persons = append(e.Persons, Mention{Text: name, Confidence: 0.7})
		}
	}

	return e
}

func containsWord(haystack, word string) bool {
	idx := strings.Index(haystack, word)
	for idx >= 0 {
		before := idx == 0 || !isAlnum(haystack[idx-1])
		afterIdx := idx + len(word)
		after := afterIdx >= len(haystack) || !isAlnum(haystack[afterIdx])
		if before && after {
			return true
		}
		next := strings.Index(haystack[idx+1:], word)
		if next < 0 {
			return false
		}
		idx = idx + 1 + next
	}
	return false
}

func isAlnum(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

func mergeMentions(base, extra []Mention) []Mention {
	seen := map[string]bool{}
	for _, m := range base {
		seen[strings.ToLower(m.Text)] = true
	}
	for _, m := range extra {
		key := strings.ToLower(strings.TrimSpace(m.Text))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		base = append(base, m)
	}
	return base
}

// ParseCasualties pulls killed/wounded/missing counts out of text; nil
// means unreported.
func ParseCasualties(text string) (killed, wounded, missing *int) {
	if m := killedRe.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n >= 0 {
			killed = &n
		}
	}
	if m := woundedRe.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n >= 0 {
			wounded = &n
		}
	}
	if m := missingRe.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n >= 0 {
			missing = &n
		}
	}
	return
}

// TemporalConfidence grades how precisely the event time was resolved.
type TemporalConfidence string

const (
	TemporalHigh   TemporalConfidence = "high"
	TemporalMedium TemporalConfidence = "medium"
	TemporalLow    TemporalConfidence = "low"
)

var (
	hoursAgoRe = regexp.MustCompile(`(?i)\b(\d+)\s+hours?\s+ago\b`)
	daysAgoRe  = regexp.MustCompile(`(?i)\b(\d+)\s+days?\s+ago\b`)
)

// ExtractTemporal resolves relative time expressions against the
// article date. Without an explicit expression the article date stands
// with low confidence.
func (p *Processor) ExtractTemporal(text string, articleDate time.Time) (time.Time, TemporalConfidence) {
	lower := strings.ToLower(text)

	if m := hoursAgoRe.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return articleDate.Add(-time.Duration(n) * time.Hour), TemporalHigh
		}
	}
	if m := daysAgoRe.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return articleDate.AddDate(0, 0, -n), TemporalMedium
		}
	}

	switch {
	case strings.Contains(lower, "this morning"),
		strings.Contains(lower, "this afternoon"),
		strings.Contains(lower, "tonight"),
		strings.Contains(lower, "overnight"),
		strings.Contains(lower, "today"):
		return articleDate, TemporalHigh
	case strings.Contains(lower, "yesterday"):
		return articleDate.AddDate(0, 0, -1), TemporalMedium
	case strings.Contains(lower, "last week"):
		return articleDate.AddDate(0, 0, -7), TemporalLow
	case strings.Contains(lower, "last month"):
		return articleDate.AddDate(0, -1, 0), TemporalLow
	}

	return articleDate, TemporalLow
}

// ScoreRelevance scores conflict relevance in [0,1]:
// 0.7·min(hits/8, 1) + 0.3·min(len/1000, 1).
func (p *Processor) ScoreRelevance(text string) float64 {
	if text == "" {
		return 0
	}

	lower := strings.ToLower(text)
	words := map[string]int{}
	for _, w := range wordRe.FindAllString(lower, -1) {
		words[w]++
	}

	hits := 0
	for _, kw := range conflictKeywords {
		hits += words[kw]
	}

	keywordScore := math.Min(float64(hits)/8.0, 1.0)
	lengthScore := math.Min(float64(len(text))/1000.0, 1.0)

	return 0.7*keywordScore + 0.3*lengthScore
}

// Similarity is cosine similarity over lowercase token bags, the
// language-agnostic fallback the clusterer uses for actor-free text.
func (p *Processor) Similarity(a, b string) float64 {
	va := tokenBag(a)
	vb := tokenBag(b)
	if len(va) == 0 || len(vb) == 0 {
		return 0
	}

	var dot, na, nb float64
	for tok, ca := range va {
		if cb, ok := vb[tok]; ok {
			dot += float64(ca * cb)
		}
		na += float64(ca * ca)
	}
	for _, cb := range vb {
		nb += float64(cb * cb)
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func tokenBag(text string) map[string]int {
	bag := map[string]int{}
	for _, tok := range tokenRe.FindAllString(strings.ToLower(text), -1) {
		bag[tok]++
	}
	return bag
}

// SalientKeywords returns non-generic tokens (stopword-filtered, longer
// than minLen) ranked by frequency; feeds round-2 query mining.
func SalientKeywords(text string, minLen, limit int) []string {
	counts := map[string]int{}
	for _, tok := range tokenRe.FindAllString(strings.ToLower(text), -1) {
		if len(tok) <= minLen || IsStopword(tok) {
			continue
		}
		counts[tok]++
	}

	type kv struct {
		token string
		count int
	}
	ranked := make([]kv, 0, len(counts))
	for t, c := range counts {
		ranked = append(ranked, kv{t, c})
	}
	// Stable order: count desc, then lexicographic.
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].token < ranked[j].token
	})

	out := make([]string, 0, limit)
	for _, r := range ranked {
		if len(out) == limit {
			break
		}
		out = append(out, r.token)
	}
	return out
}
