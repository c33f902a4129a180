package textproc

// Conflict lexicon driving relevance scoring. Hits are counted
// case-insensitively against whole words.
var conflictKeywords = []string{
	"military", "strike", "strikes", "killed", "wounded", "attack",
	"attacks", "bombing", "shelling", "missile", "missiles", "drone",
	"drones", "artillery", "offensive", "troops", "soldiers", "forces",
	"clashes", "fighting", "airstrike", "airstrikes", "casualties",
	"invasion", "ambush", "insurgent", "insurgents", "militant",
	"militants", "ceasefire", "frontline", "mortar", "rocket", "rockets",
	"bombardment", "siege", "skirmish", "combat", "warfare", "gunfire",
	"explosion", "detonated", "raid",
}

// Weapon lexicon, matched as substrings of lowercased text.
var weaponLexicon = []string{
	"artillery", "missile", "rocket", "drone", "tank", "mortar",
	"airstrike", "helicopter", "fighter jet", "warship", "submarine",
	"ballistic missile", "cruise missile", "hypersonic",
	"cluster munition", "landmine", "ied", "car bomb", "suicide bomb",
	"small arms", "machine gun", "sniper", "grenade", "rpg",
	"nuclear", "tactical nuclear", "chemical", "biological",
	"radiological", "nerve agent", "white phosphorus", "thermobaric",
}

// Military-unit lexicon used for organization chunk classification.
var unitLexicon = []string{
	"army", "brigade", "battalion", "regiment", "division", "corps",
	"forces", "militia", "guard", "command", "ministry of defense",
	"ministry of defence", "air force", "navy", "marines", "wagner",
	"idf", "nato",
}

// Known state and non-state actors for actor extraction.
var knownActors = []string{
	"Russia", "Ukraine", "Israel", "IDF", "Hamas", "Hezbollah", "Iran",
	"United States", "NATO", "Wagner", "Taliban", "ISIS", "Houthi",
	"Houthis", "RSF", "Sudanese Army", "Myanmar Junta", "Azerbaijan",
	"Armenia", "Boko Haram", "Al-Shabaab", "Russian Forces",
	"Ukrainian Forces", "Lebanese Army",
}

// Person title cues; a capitalized chunk after one of these is treated
// as a person mention.
var personTitles = []string{
	"president", "general", "minister", "colonel", "commander",
	"chancellor", "prime minister", "spokesman", "spokeswoman",
	"secretary", "admiral", "sergeant", "captain",
}

// Stopwords excluded from keyword mining; matches the round-2 mining
// contract (salient keywords are stopword-filtered and longer than 5).
var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "that": true, "with": true,
	"this": true, "from": true, "have": true, "has": true, "was": true,
	"were": true, "been": true, "are": true, "after": true, "before": true,
	"their": true, "there": true, "where": true, "which": true, "while": true,
	"would": true, "could": true, "should": true, "about": true, "against": true,
	"between": true, "during": true, "into": true, "over": true, "under": true,
	"reported": true, "reports": true, "according": true, "officials": true,
	"others": true, "since": true, "because": true, "people": true,
	"monday": true, "tuesday": true, "wednesday": true, "thursday": true,
	"friday": true, "saturday": true, "sunday": true,
}

// IsStopword reports whether a lowercased token is filtered from mining.
func IsStopword(token string) bool {
	return stopwords[token]
}
