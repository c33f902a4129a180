package registry

import (
	"github.com/osintwatch/conflict-ingest/internal/domain/source"
)

type seedDef struct {
	display     string
	endpoint    string
	kind        source.Kind
	language    string
	regions     []string
	reliability float64
	rateLimit   int
}

// Seed catalog. Feed URLs rot; the registry never trusts this list —
// health decay and deactivation prune what no longer answers, and
// reactivation is the way back in.
var seedDefs = []seedDef{
	{"Reuters World", "https://feeds.reuters.com/reuters/worldNews", source.KindRSS, "en",
		[]string{"global"}, 92, 120},
	{"BBC World", "http://feeds.bbci.co.uk/news/world/rss.xml", source.KindRSS, "en",
		[]string{"global"}, 90, 120},
	{"Al Jazeera English", "https://www.aljazeera.com/xml/rss/all.xml", source.KindRSS, "en",
		[]string{"middle_east", "africa"}, 82, 60},
	{"Kyiv Independent", "https://kyivindependent.com/feed", source.KindRSS, "en",
		[]string{"ukraine", "eastern_europe"}, 78, 60},
	{"AP Top News", "https://rsshub.app/apnews/topics/apf-topnews", source.KindRSS, "en",
		[]string{"global"}, 91, 120},
	{"France 24", "https://www.france24.com/en/rss", source.KindRSS, "en",
		[]string{"global", "africa"}, 80, 60},
	{"Times of Israel", "https://www.timesofisrael.com/feed", source.KindRSS, "en",
		[]string{"middle_east"}, 75, 60},
	{"Google Custom Search", "https://www.googleapis.com/customsearch/v1", source.KindSearchAPI, "en",
		[]string{"global"}, 70, 100},
	{"NewsAPI", "https://newsapi.org/v2/everything", source.KindNewsAPI, "en",
		[]string{"global"}, 70, 100},
}

// SeedSources builds the seed catalog entries.
func SeedSources() []*source.Source {
	out := make([]*source.Source, 0, len(seedDefs))
	for _, d := range seedDefs {
		s, err := source.NewSource(d.display, d.endpoint, d.kind)
		if err != nil {
			continue
		}
		s.Language = d.language
		s.Regions = d.regions
		s.Reliability = d.reliability
		s.RateLimitPerHour = d.rateLimit
		out = append(out, s)
	}
	return out
}
