package schedule

import (
	"strings"
)

// RenameRule maps any of its keywords to a canonical channel name.
type RenameRule struct {
	Keywords []string `yaml:"keywords"`
	Name     string   `yaml:"name"`
}

func DefaultRenameRules() []RenameRule {
	return []RenameRule{
		{Keywords: []string{"1", "uno"}, Name: "Sky Sport Uno"},
		{Keywords: []string{"calcio"}, Name: "Sky Sport Calcio"},
		{Keywords: []string{"mix"}, Name: "Sky Sport Mix"},
		{Keywords: []string{"max"}, Name: "Sky Sport Max"},
		{Keywords: []string{"arena"}, Name: "Sky Sport Arena"},
		{Keywords: []string{"24"}, Name: "Sky Sport 24"},
		{Keywords: []string{"tennis"}, Name: "Sky Sport Tennis"},
		{Keywords: []string{"motogp", "moto gp"}, Name: "Sky Sport MotoGP"},
		{Keywords: []string{"f1", "formula"}, Name: "Sky Sport Formula 1"},
		{Keywords: []string{"dazn"}, Name: "Dazn 1"},
	}
}

// Rename returns the name of the rule whose keyword matches the most text
// among the words of name; on a tie the earlier rule wins, so "Formula 1"
// beats the bare "1" of Uno. Unmatched names are returned trimmed.
func Rename(rules []RenameRule, name string) string {
	padded := " " + strings.Join(wordPattern.FindAllString(strings.ToLower(name), -1), " ") + " "
	best, bestLen := "", 0
	for _, rule := range rules {
		for _, keyword := range rule.Keywords {
			keyword = strings.Join(wordPattern.FindAllString(strings.ToLower(keyword), -1), " ")
			if keyword != "" && len(keyword) > bestLen && strings.Contains(padded, " "+keyword+" ") {
				best, bestLen = rule.Name, len(keyword)
			}
		}
	}
	if best != "" {
		return best
	}
	return strings.TrimSpace(name)
}

// BaseName strips quality and backup suffixes so mirrors of one channel share
// a cache key.
func BaseName(name string) string {
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, " hd", "")
	name = strings.ReplaceAll(name, " (backup)", "")
	name = strings.ReplaceAll(name, "(backup)", "")
	return strings.TrimSpace(name)
}
