package geo

// place is a curated coordinate entry. All tables are keyed by
// normalized (lowercased, space-collapsed) place name.
type place struct {
	Lat     float64
	Lng     float64
	Country string
	Region  string
}

// verifiedHotspots are locations of active or recent conflict where
// misplacement would be worst. An exact name match here wins the whole
// resolution with full confidence.
var verifiedHotspots = map[string]place{
	"bakhmut":       {48.5956, 38.0003, "Ukraine", "Donetsk Oblast"},
	"avdiivka":      {48.1394, 37.7497, "Ukraine", "Donetsk Oblast"},
	"kharkiv":       {49.9935, 36.2304, "Ukraine", "Kharkiv Oblast"},
	"saltivka":      {50.0360, 36.3223, "Ukraine", "Kharkiv Oblast"},
	"mariupol":      {47.0971, 37.5434, "Ukraine", "Donetsk Oblast"},
	"kherson":       {46.6354, 32.6169, "Ukraine", "Kherson Oblast"},
	"zaporizhzhia":  {47.8388, 35.1396, "Ukraine", "Zaporizhzhia Oblast"},
	"kramatorsk":    {48.7389, 37.5848, "Ukraine", "Donetsk Oblast"},
	"sevastopol":    {44.6166, 33.5254, "Ukraine", "Crimea"},
	"belgorod":      {50.5997, 36.5983, "Russia", "Belgorod Oblast"},
	"gaza city":     {31.5017, 34.4668, "Palestine", "Gaza Strip"},
	"rafah":         {31.2968, 34.2435, "Palestine", "Gaza Strip"},
	"khan younis":   {31.3402, 34.3063, "Palestine", "Gaza Strip"},
	"jabalia":       {31.5272, 34.4830, "Palestine", "Gaza Strip"},
	"khartoum":      {15.5007, 32.5599, "Sudan", "Khartoum State"},
	"omdurman":      {15.6445, 32.4777, "Sudan", "Khartoum State"},
	"el fasher":     {13.6288, 25.3493, "Sudan", "North Darfur"},
	"sanaa":         {15.3694, 44.1910, "Yemen", "Amanat Al Asimah"},
	"hodeidah":      {14.7978, 42.9545, "Yemen", "Al Hudaydah"},
	"aleppo":        {36.2021, 37.1343, "Syria", "Aleppo Governorate"},
	"idlib":         {35.9306, 36.6339, "Syria", "Idlib Governorate"},
	"mogadishu":     {2.0469, 45.3182, "Somalia", "Banadir"},
	"stepanakert":   {39.8265, 46.7656, "Azerbaijan", "Nagorno-Karabakh"},
	"sittwe":        {20.1527, 92.8671, "Myanmar", "Rakhine State"},
}

// ambiguousCities share a name across countries. Contextual cues pick
// the right one; without a cue the resolution falls through to the next
// strategy rather than guess.
type ambiguousOption struct {
	place
	// cues are lowercase substrings whose presence in the article text
	// votes for this option: country names, nationality adjectives,
	// regional qualifiers, strongly associated actors.
	cues []string
}

var ambiguousCities = map[string][]ambiguousOption{
	"tripoli": {
		{place{34.4346, 35.8362, "Lebanon", "North Governorate"},
			[]string{"lebanon", "lebanese", "hezbollah", "beirut", "northern lebanon"}},
		{place{32.8872, 13.1913, "Libya", "Tripolitania"},
			[]string{"libya", "libyan", "benghazi", "haftar", "gnu", "misrata"}},
	},
	"hyderabad": {
		{place{17.3850, 78.4867, "India", "Telangana"},
			[]string{"india", "indian", "telangana", "delhi"}},
		{place{25.3960, 68.3578, "Pakistan", "Sindh"},
			[]string{"pakistan", "pakistani", "sindh", "karachi"}},
	},
	"santiago": {
		{place{-33.4489, -70.6693, "Chile", "Santiago Metropolitan"},
			[]string{"chile", "chilean"}},
		{place{19.4517, -70.6970, "Dominican Republic", "Cibao"},
			[]string{"dominican", "cibao"}},
	},
	"san jose": {
		{place{9.9281, -84.0907, "Costa Rica", "San José Province"},
			[]string{"costa rica", "costa rican"}},
		{place{37.3382, -121.8863, "United States", "California"},
			[]string{"california", "silicon valley", "united states"}},
	},
}

// enhancedMappings are landmarks and facilities that appear in conflict
// reporting under their own names.
var enhancedMappings = map[string]place{
	"zaporizhzhia nuclear power plant": {47.5119, 34.5863, "Ukraine", "Zaporizhzhia Oblast"},
	"kerch bridge":                     {45.3078, 36.5131, "Ukraine", "Crimea"},
	"al-shifa hospital":                {31.5240, 34.4430, "Palestine", "Gaza Strip"},
	"engels air base":                  {51.4800, 46.2100, "Russia", "Saratov Oblast"},
	"snake island":                     {45.2555, 30.2041, "Ukraine", "Odesa Oblast"},
	"rafah crossing":                   {31.2446, 34.2654, "Egypt", "North Sinai"},
	"incirlik air base":                {37.0017, 35.4259, "Turkey", "Adana Province"},
	"bab al-mandeb strait":             {12.5833, 43.3333, "Yemen", "Red Sea"},
}

// baseMappings cover major cities and capitals; lowest-confidence
// curated tier before external geocoding.
var baseMappings = map[string]place{
	"kyiv":        {50.4501, 30.5234, "Ukraine", "Kyiv Oblast"},
	"kiev":        {50.4501, 30.5234, "Ukraine", "Kyiv Oblast"},
	"moscow":      {55.7558, 37.6173, "Russia", "Central Federal District"},
	"odesa":       {46.4825, 30.7233, "Ukraine", "Odesa Oblast"},
	"lviv":        {49.8397, 24.0297, "Ukraine", "Lviv Oblast"},
	"donetsk":     {48.0159, 37.8028, "Ukraine", "Donetsk Oblast"},
	"tel aviv":    {32.0853, 34.7818, "Israel", "Tel Aviv District"},
	"jerusalem":   {31.7683, 35.2137, "Israel", "Jerusalem District"},
	"beirut":      {33.8938, 35.5018, "Lebanon", "Beirut Governorate"},
	"damascus":    {33.5138, 36.2765, "Syria", "Damascus Governorate"},
	"baghdad":     {33.3152, 44.3661, "Iraq", "Baghdad Governorate"},
	"tehran":      {35.6892, 51.3890, "Iran", "Tehran Province"},
	"cairo":       {30.0444, 31.2357, "Egypt", "Cairo Governorate"},
	"ankara":      {39.9334, 32.8597, "Turkey", "Central Anatolia"},
	"istanbul":    {41.0082, 28.9784, "Turkey", "Marmara"},
	"kabul":       {34.5553, 69.2075, "Afghanistan", "Kabul Province"},
	"islamabad":   {33.6844, 73.0479, "Pakistan", "Islamabad Capital Territory"},
	"yangon":      {16.8661, 96.1951, "Myanmar", "Yangon Region"},
	"naypyidaw":   {19.7633, 96.0785, "Myanmar", "Naypyidaw Union Territory"},
	"bamako":      {12.6392, -8.0029, "Mali", "Bamako District"},
	"ouagadougou": {12.3714, -1.5197, "Burkina Faso", "Centre Region"},
	"niamey":      {13.5116, 2.1254, "Niger", "Niamey Region"},
	"addis ababa": {9.0320, 38.7469, "Ethiopia", "Addis Ababa"},
	"nairobi":     {-1.2921, 36.8219, "Kenya", "Nairobi County"},
	"yerevan":     {40.1792, 44.4991, "Armenia", "Yerevan"},
	"baku":        {40.4093, 49.8671, "Azerbaijan", "Absheron"},
	"taipei":      {25.0330, 121.5654, "Taiwan", "Northern Taiwan"},
	"seoul":       {37.5665, 126.9780, "South Korea", "Seoul Capital Area"},
	"pyongyang":   {39.0392, 125.7625, "North Korea", "Pyongan"},
}
