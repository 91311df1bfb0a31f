package lyrics

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var regionalPattern = regexp.MustCompile(`(?i)hindi|punjabi|bollywood|tamil|telugu|kannada|malayalam|bengali|marathi|bhojpuri|gujarati|urdu|arijit|arjit|shreya|sonu|atif|neha|kumar sanu|alka|udit|lata|kishore|rafi|asha|himesh|darshan|yo yo|badshah|diljit|jubin|dhvani|tulsi|vishal|shankar|pritam|sid sriram|mohit|sunidhi|kanika|tum hi ho|raabta|kaise hua|raatan lambiyan|moh moh ke|chaiyya|kun faya kun|channa mereya|gerua|kesariya|malhari|ae dil hai mushkil|deewani mastani|agar tum saath ho|zaalima|bulleya|hawayein|bekhayali|kalank|shayad|thodi jagah`)

var regionalArtistPattern = regexp.MustCompile(`(?i)arijit|shreya|sonu|atif|neha|kumar|alka|udit|lata|kishore|rafi|asha|himesh|darshan|badshah|diljit|jubin|dhvani|tulsi|vishal|pritam|bollywood|hindi`)

var regionalTitlePattern = regexp.MustCompile(`(?i)hindi|bollywood|punjabi|tamil|telugu|urdu|aashiqui|kabir singh|shershaah`)

// popularOneWord maps one-word titles to artists, most likely first.
var popularOneWord = map[string][]string{
	"blue":        {"Eiffel 65", "Beyoncé", "LeAnn Rimes", "Marina", "Blue"},
	"perfect":     {"Ed Sheeran", "One Direction", "Simple Plan"},
	"hello":       {"Adele", "Lionel Richie", "OMFG"},
	"titanium":    {"David Guetta", "Sia"},
	"believer":    {"Imagine Dragons"},
	"havana":      {"Camila Cabello"},
	"chandelier":  {"Sia"},
	"radioactive": {"Imagine Dragons"},
	"unstoppable": {"Sia"},
	"royals":      {"Lorde"},
	"happy":       {"Pharrell Williams"},
	"shallow":     {"Lady Gaga", "Bradley Cooper"},
	"photograph":  {"Ed Sheeran", "Nickelback"},
	"dynamite":    {"BTS", "Taio Cruz"},
	"lose":        {"Eminem"},
	"closer":      {"The Chainsmokers"},
	"thunder":     {"Imagine Dragons"},
	"shape":       {"Ed Sheeran"},
	"happier":     {"Marshmello", "Ed Sheeran"},
	"demons":      {"Imagine Dragons"},
}

// regionalHints pins frequently searched regional titles to a specific
// recording.
var regionalHints = []struct {
	keys  []string
	query string
}{
	{keys: []string{"tum hi ho", "tumhiho"}, query: "Arijit Singh Tum Hi Ho Aashiqui 2"},
	{keys: []string{"moh moh ke dhaage", "mohmohkedhaage"}, query: "Papon Moh Moh Ke Dhaage"},
	{keys: []string{"kaise hua", "kaisehua"}, query: "Vishal Mishra Kaise Hua Kabir Singh"},
	{keys: []string{"raatan lambiyan", "raataan lambiyan"}, query: "Jubin Nautiyal Raatan Lambiyan Shershaah"},
	{keys: []string{"chaiyya chaiyya", "chaiyyachaiyya"}, query: "Sukhwinder Singh Chaiyya Chaiyya"},
	{keys: []string{"kun faya kun", "kunfayakun"}, query: "AR Rahman Kun Faya Kun"},
	{keys: []string{"tumse hi", "tumsehi"}, query: "Mohit Chauhan Tumse Hi Jab We Met"},
	{keys: []string{"kesariya"}, query: "Arijit Singh Kesariya Brahmastra"},
	{keys: []string{"gerua"}, query: "Arijit Singh Gerua Dilwale"},
	{keys: []string{"agar tum saath ho", "agartum"}, query: "Arijit Singh Alka Yagnik Agar Tum Saath Ho Tamasha"},
	{keys: []string{"channa mereya", "channamereya"}, query: "Arijit Singh Channa Mereya Ae Dil Hai Mushkil"},
}

// IsRegional reports whether query most likely names an Indian-language
// song, either by keyword or by a non-Latin first character.
func IsRegional(query string) bool {
	if regionalPattern.MatchString(query) {
		return true
	}

	first, _ := utf8.DecodeRuneInString(strings.TrimSpace(query))
	return first != utf8.RuneError && first > unicode.MaxASCII
}

// EnhanceQuery adds artist context to bare titles to improve search hits.
func EnhanceQuery(query string) string {
	simplified := strings.ToLower(strings.TrimSpace(query))

	if IsRegional(query) {
		for _, hint := range regionalHints {
			for _, key := range hint.keys {
				if simplified == key {
					return hint.query
				}
			}
		}
		if strings.Contains(simplified, "lambiyan") {
			return "Jubin Nautiyal Raatan Lambiyan Shershaah"
		}
		return query
	}

	if !strings.Contains(simplified, " ") {
		if artists, ok := popularOneWord[simplified]; ok {
			return artists[0] + " " + simplified
		}
	}

	return query
}

// searchQuery builds a web search query for lyrics pages.
func searchQuery(query string) string {
	enhanced := EnhanceQuery(query)
	if !strings.Contains(strings.ToLower(enhanced), "lyrics") {
		enhanced += " lyrics"
	}
	if IsRegional(query) {
		enhanced += " bollywood song"
	}

	return enhanced
}
