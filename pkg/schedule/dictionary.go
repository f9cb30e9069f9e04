package schedule

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// Dictionary translates schedule labels scraped from Italian and Spanish
// sites. All lookups are case-insensitive.
type Dictionary struct {
	Sports       map[string]string `yaml:"sports"`
	Competitions map[string]string `yaml:"competitions"`
	Words        map[string]string `yaml:"words"`
	Channels     []RenameRule      `yaml:"channels"`

	maxPhrase int
}

var wordPattern = regexp.MustCompile(`[\p{L}\p{N}]+`)

func DefaultDictionary() *Dictionary {
	d := &Dictionary{
		Sports: map[string]string{
			"calcio":             "Football",
			"fútbol":             "Football",
			"futbol":             "Football",
			"soccer":             "Football",
			"pallacanestro":      "Basketball",
			"basket":             "Basketball",
			"baloncesto":         "Basketball",
			"pallavolo":          "Volleyball",
			"voleibol":           "Volleyball",
			"balonmano":          "Handball",
			"pallamano":          "Handball",
			"ciclismo":           "Cycling",
			"motociclismo":       "MotoGP",
			"automovilismo":      "Motorsport",
			"automobilismo":      "Motorsport",
			"formula 1":          "Formula 1",
			"fórmula 1":          "Formula 1",
			"boxeo":              "Boxing",
			"pugilato":           "Boxing",
			"tenis":              "Tennis",
			"tennis":             "Tennis",
			"rugby":              "Rugby",
			"hockey hielo":       "Ice Hockey",
			"hockey su ghiaccio": "Ice Hockey",
		},
		Competitions: map[string]string{
			"primera división":  "LaLiga",
			"primera division":  "LaLiga",
			"segunda división":  "LaLiga 2",
			"segunda division":  "LaLiga 2",
			"liga de campeones": "Champions League",
			"champions":         "Champions League",
			"coppa italia":      "Coppa Italia",
			"copa del rey":      "Copa del Rey",
			"serie a":           "Serie A",
			"serie b":           "Serie B",
			"liga europa":       "Europa League",
			"conference league": "Conference League",
		},
		Words: map[string]string{
			"en vivo":    "live",
			"en directo": "live",
			"diretta":    "live",
			"partido":    "match",
			"partita":    "match",
			"hoy":        "today",
			"oggi":       "today",
			"mañana":     "tomorrow",
			"domani":     "tomorrow",
			"jornada":    "matchday",
			"giornata":   "matchday",
			"contra":     "vs",
			"contro":     "vs",
		},
		Channels: DefaultRenameRules(),
	}
	d.normalize()
	return d
}

// LoadDictionary reads a YAML dictionary and merges it over the defaults.
// An empty path returns the defaults.
func LoadDictionary(path string) (*Dictionary, error) {
	d := DefaultDictionary()
	if path == "" {
		return d, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dictionary %s: %w", path, err)
	}

	var loaded Dictionary
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("failed to parse dictionary %s: %w", path, err)
	}

	for k, v := range loaded.Sports {
		d.Sports[normalizeKey(k)] = v
	}
	for k, v := range loaded.Competitions {
		d.Competitions[normalizeKey(k)] = v
	}
	for k, v := range loaded.Words {
		d.Words[normalizeKey(k)] = v
	}
	if len(loaded.Channels) > 0 {
		d.Channels = append(loaded.Channels, d.Channels...)
	}

	d.normalize()
	return d, nil
}

func (d *Dictionary) normalize() {
	d.Sports = lowerKeys(d.Sports)
	d.Competitions = lowerKeys(d.Competitions)
	d.Words = lowerKeys(d.Words)

	d.maxPhrase = 1
	for key := range d.Words {
		if n := len(strings.Fields(key)); n > d.maxPhrase {
			d.maxPhrase = n
		}
	}
}

func lowerKeys(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[normalizeKey(k)] = v
	}
	return out
}

func normalizeKey(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Sport returns the canonical sport name, or the word-translated input.
func (d *Dictionary) Sport(name string) string {
	if v, ok := d.Sports[normalizeKey(name)]; ok {
		return v
	}
	return d.Translate(name)
}

// Competition returns the canonical competition name, or the word-translated input.
func (d *Dictionary) Competition(name string) string {
	if v, ok := d.Competitions[normalizeKey(name)]; ok {
		return v
	}
	return d.Translate(name)
}

// Translate replaces known words and phrases, longest phrase first, keeping
// everything else as written. A capitalised source keeps a capitalised
// translation.
func (d *Dictionary) Translate(text string) string {
	spans := wordPattern.FindAllStringIndex(text, -1)
	if len(spans) == 0 {
		return strings.TrimSpace(text)
	}

	var b strings.Builder
	last := 0
	for i := 0; i < len(spans); {
		matched := false
		for n := min(d.maxPhrase, len(spans)-i); n >= 1; n-- {
			if !whitespaceBetween(text, spans[i:i+n]) {
				continue
			}
			start, end := spans[i][0], spans[i+n-1][1]
			translation, ok := d.Words[normalizeKey(text[start:end])]
			if !ok {
				continue
			}

			b.WriteString(text[last:start])
			b.WriteString(matchCase(text[start:end], translation))
			last = end
			i += n
			matched = true
			break
		}
		if !matched {
			i++
		}
	}
	b.WriteString(text[last:])
	return strings.TrimSpace(b.String())
}

func whitespaceBetween(text string, spans [][]int) bool {
	for i := 1; i < len(spans); i++ {
		if strings.TrimSpace(text[spans[i-1][1]:spans[i][0]]) != "" {
			return false
		}
	}
	return true
}

func matchCase(source, translation string) string {
	first, _ := utf8.DecodeRuneInString(source)
	if !unicode.IsUpper(first) || translation == "" {
		return translation
	}
	r, size := utf8.DecodeRuneInString(translation)
	return string(unicode.ToUpper(r)) + translation[size:]
}

// ChannelName applies the channel rename rules.
func (d *Dictionary) ChannelName(name string) string {
	return Rename(d.Channels, name)
}
