package ingestion

import (
	"fmt"
	"sort"
	"strings"

	"github.com/osintwatch/conflict-ingest/internal/domain/event"
	"github.com/osintwatch/conflict-ingest/internal/service/textproc"
)

const (
	maxBroadQueries    = 20
	maxTargetedQueries = 10

	minedLocations        = 3
	minedActorsPerPlace   = 2
	minedKeywords         = 5
	minedKeywordMinLength = 5
)

var broadTemplates = []string{
	"%s military conflict today",
	"%s casualties killed wounded",
	"%s missile strike bombing latest",
}

// broadQueries crosses the configured conflict zones with the query
// templates, capped at 20.
func broadQueries(zones []string) []string {
	out := make([]string, 0, maxBroadQueries)
	for _, zone := range zones {
		zone = strings.TrimSpace(zone)
		if zone == "" {
			continue
		}
		for _, tmpl := range broadTemplates {
			if len(out) == maxBroadQueries {
				return out
			}
			out = append(out, fmt.Sprintf(tmpl, zone))
		}
	}
	return out
}

// minedEntities is the round-1 harvest feeding targeted query
// generation.
type minedEntities struct {
	// locations ordered by frequency, each with its co-occurring actors
	locations []minedLocation
	keywords  []string
}

type minedLocation struct {
	name   string
	actors []string
}

// mineEntities collects the top locations, the actors seen alongside
// each, and the salient non-generic keywords from round-1 events.
func mineEntities(events []*event.Event) minedEntities {
	locCounts := map[string]int{}
	locDisplay := map[string]string{}
	locActors := map[string]map[string]string{}
	var corpus strings.Builder

	for _, ev := range events {
		corpus.WriteString(ev.EnhancedHeadline)
		corpus.WriteString(" ")

		if ev.Location == nil || ev.Location.Name == "" {
			continue
		}
		key := strings.ToLower(ev.Location.Name)
		locCounts[key]++
		locDisplay[key] = ev.Location.Name
		if locActors[key] == nil {
			locActors[key] = map[string]string{}
		}
		for _, actor := range ev.PrimaryActors {
			locActors[key][strings.ToLower(actor)] = actor
		}
	}

	ranked := rankByCount(locCounts)
	if len(ranked) > minedLocations {
		ranked = ranked[:minedLocations]
	}

	mined := minedEntities{
		keywords: textproc.SalientKeywords(corpus.String(), minedKeywordMinLength, minedKeywords),
	}
	for _, key := range ranked {
		loc := minedLocation{name: locDisplay[key]}
		for _, display := range locActors[key] {
			loc.actors = append(loc.actors, display)
			if len(loc.actors) == minedActorsPerPlace {
				break
			}
		}
		mined.locations = append(mined.locations, loc)
	}
	return mined
}

// targetedQueries forms round-2 queries from the mined entities,
// deduplicated against the round-1 set and capped at 10.
func targetedQueries(mined minedEntities, round1 []string) []string {
	seen := make(map[string]bool, len(round1))
	for _, q := range round1 {
		seen[strings.ToLower(q)] = true
	}

	var out []string
	add := func(q string) {
		if len(out) == maxTargetedQueries {
			return
		}
		key := strings.ToLower(q)
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, q)
	}

	for _, loc := range mined.locations {
		for _, actor := range loc.actors {
			add(fmt.Sprintf("%s %s military operations latest", loc.name, actor))
		}
	}
	for _, kw := range mined.keywords {
		add(fmt.Sprintf("%s conflict military latest", kw))
	}
	return out
}

func rankByCount(counts map[string]int) []string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	// Count desc, then lexicographic for determinism.
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	return keys
}
