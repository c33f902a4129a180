package geo

import (
	"context"
	"math"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/osintwatch/conflict-ingest/internal/domain/event"
)

// Geocoder is an external forward-geocoding service, the last-resort
// strategy. A nil Geocoder simply disables that tier.
type Geocoder interface {
	Geocode(ctx context.Context, name string) (lat, lng float64, country string, err error)
}

// Resolver turns a location hint plus article text into coordinates.
// Strategies run in fixed order; the first hit wins and carries that
// strategy's confidence.
type Resolver struct {
	geocoder Geocoder
	logger   *zap.Logger
}

func NewResolver(geocoder Geocoder, logger *zap.Logger) *Resolver {
	return &Resolver{geocoder: geocoder, logger: logger}
}

var spaceRe = regexp.MustCompile(`\s+`)

func normalizeName(name string) string {
	return spaceRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), " ")
}

// Resolve returns nil when no strategy produces valid coordinates; the
// caller decides whether a locationless event survives.
func (r *Resolver) Resolve(ctx context.Context, text, hintName, hintCountry string) *event.Location {
	name := normalizeName(hintName)
	if name == "" {
		return nil
	}
	lowerText := strings.ToLower(text)

	if p, ok := verifiedHotspots[name]; ok {
		return locationFrom(hintName, p, event.MethodVerifiedMatch, 1.0)
	}

	if opts, ok := ambiguousCities[name]; ok {
		if p, picked := disambiguate(opts, lowerText, hintCountry); picked {
			return locationFrom(hintName, p, event.MethodVerifiedCorrection, 0.9)
		}
		// No cue fired: fall through rather than guess a country.
	}

	if p, ok := enhancedMappings[name]; ok {
		return locationFrom(hintName, p, event.MethodEnhancedMapping, 0.9)
	}

	if p, ok := baseMappings[name]; ok {
		return locationFrom(hintName, p, event.MethodBaseMapping, 0.8)
	}

	if loc := r.resolveRelative(text); loc != nil {
		return loc
	}

	return r.resolveExternal(ctx, name, hintName, lowerText, hintCountry)
}

func disambiguate(opts []ambiguousOption, lowerText, hintCountry string) (place, bool) {
	hint := normalizeName(hintCountry)
	best := -1
	bestVotes := 0
	for i, opt := range opts {
		votes := 0
		if hint != "" && normalizeName(opt.Country) == hint {
			votes += 2
		}
		for _, cue := range opt.cues {
			if strings.Contains(lowerText, cue) {
				votes++
			}
		}
		if votes > bestVotes {
			bestVotes = votes
			best = i
		}
	}
	if best < 0 {
		return place{}, false
	}
	return opts[best].place, true
}

var relativeRe = regexp.MustCompile(`(?i)\b(\d+)\s*km\s+(north|south|east|west)\s+of\s+([A-Z][A-Za-z' -]+)`)

const kmPerDegreeLat = 111.32

// resolveRelative parses "N km {direction} of X" and offsets from a
// curated anchor. Unknown anchors yield nothing.
func (r *Resolver) resolveRelative(text string) *event.Location {
	m := relativeRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	km, err := strconv.Atoi(m[1])
	if err != nil || km <= 0 || km > 1000 {
		return nil
	}

	anchorName := normalizeName(m[3])
	anchor, ok := lookupCurated(anchorName)
	if !ok {
		return nil
	}

	lat, lng := anchor.Lat, anchor.Lng
	switch strings.ToLower(m[2]) {
	case "north":
		lat += float64(km) / kmPerDegreeLat
	case "south":
		lat -= float64(km) / kmPerDegreeLat
	case "east":
		lng += float64(km) / (kmPerDegreeLat * math.Cos(lat*math.Pi/180))
	case "west":
		lng -= float64(km) / (kmPerDegreeLat * math.Cos(lat*math.Pi/180))
	}

	loc := &event.Location{
		Lat:        lat,
		Lng:        lng,
		Name:       strings.TrimSpace(m[0]),
		Country:    anchor.Country,
		Region:     anchor.Region,
		Method:     event.MethodRelative,
		Confidence: 0.7,
	}
	if !loc.Valid() {
		return nil
	}
	return loc
}

func lookupCurated(name string) (place, bool) {
	if p, ok := verifiedHotspots[name]; ok {
		return p, true
	}
	if p, ok := enhancedMappings[name]; ok {
		return p, true
	}
	if p, ok := baseMappings[name]; ok {
		return p, true
	}
	return place{}, false
}

// resolveExternal runs the geocoding API tier and enforces the verified
// post-condition: if a disambiguation rule would place this name in a
// particular country and the geocoder disagrees by 0.1 degrees or more,
// the verified coordinates win.
func (r *Resolver) resolveExternal(ctx context.Context, name, displayName, lowerText, hintCountry string) *event.Location {
	if r.geocoder == nil {
		return nil
	}

	lat, lng, country, err := r.geocoder.Geocode(ctx, displayName)
	if err != nil {
		r.logger.Debug("geocoding api failed",
			zap.String("name", displayName), zap.Error(err))
		return nil
	}

	loc := &event.Location{
		Lat:        lat,
		Lng:        lng,
		Name:       strings.TrimSpace(displayName),
		Country:    country,
		Method:     event.MethodGeocodingAPI,
		Confidence: 0.6,
	}
	if !loc.Valid() {
		return nil
	}

	if opts, ok := ambiguousCities[name]; ok {
		if p, picked := disambiguate(opts, lowerText, hintCountry); picked {
			if math.Abs(p.Lat-lat) >= 0.1 || math.Abs(p.Lng-lng) >= 0.1 {
				loc.Lat, loc.Lng = p.Lat, p.Lng
				loc.Country, loc.Region = p.Country, p.Region
				loc.Method = event.MethodVerifiedCorrection
				loc.Confidence = 0.9
			}
		}
	}
	return loc
}

// Haversine returns the great-circle distance between two points in
// kilometers.
func Haversine(lat1, lng1, lat2, lng2 float64) float64 {
	const earthRadiusKM = 6371.0
	rad := math.Pi / 180

	dLat := (lat2 - lat1) * rad
	dLng := (lng2 - lng1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKM * math.Asin(math.Sqrt(a))
}

func locationFrom(displayName string, p place, method event.Method, confidence float64) *event.Location {
	return &event.Location{
		Lat:        p.Lat,
		Lng:        p.Lng,
		Name:       strings.TrimSpace(displayName),
		Country:    p.Country,
		Region:     p.Region,
		Method:     method,
		Confidence: confidence,
	}
}
