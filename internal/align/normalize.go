package align

import (
	"regexp"
	"strings"
)

// Dose statements arrive in wildly different notations for the same
// regimen: "10mg" vs "10 mg" vs "10 milligrams", "QD" vs "once daily",
// "p.o." vs "oral". Purely lexical similarity under-matches these, so
// dose texts go through a canonicalization pass before scoring.

var numberUnitRe = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(mg|mcg|g|ml|iu)\b`)

// Phrase substitutions applied before token mapping; multi-word forms must
// be collapsed first or the token pass would never see them.
var dosePhrases = [][2]string{
	{"once a day", "once daily"},
	{"once per day", "once daily"},
	{"twice a day", "twice daily"},
	{"twice per day", "twice daily"},
	{"three times a day", "three times daily"},
	{"four times a day", "four times daily"},
	{"every other week", "every 2 weeks"},
	{"every two weeks", "every 2 weeks"},
	{"once weekly", "once weekly"},
	{"once a week", "once weekly"},
	{"by mouth", "oral"},
	{"as needed", "as needed"},
}

var doseTokens = map[string]string{
	"milligram":      "mg",
	"milligrams":     "mg",
	"mgs":            "mg",
	"microgram":      "mcg",
	"micrograms":     "mcg",
	"µg":             "mcg",
	"ug":             "mcg",
	"gram":           "g",
	"grams":          "g",
	"milliliter":     "ml",
	"milliliters":    "ml",
	"millilitre":     "ml",
	"millilitres":    "ml",
	"po":             "oral",
	"p.o":            "oral",
	"p.o.":           "oral",
	"orally":         "oral",
	"iv":             "intravenous",
	"i.v":            "intravenous",
	"i.v.":           "intravenous",
	"intravenously":  "intravenous",
	"sc":             "subcutaneous",
	"s.c":            "subcutaneous",
	"s.c.":           "subcutaneous",
	"subcutaneously": "subcutaneous",
	"im":             "intramuscular",
	"i.m":            "intramuscular",
	"i.m.":           "intramuscular",
	"qd":             "once daily",
	"q.d":            "once daily",
	"q.d.":           "once daily",
	"od":             "once daily",
	"bid":            "twice daily",
	"b.i.d":          "twice daily",
	"b.i.d.":         "twice daily",
	"tid":            "three times daily",
	"t.i.d":          "three times daily",
	"t.i.d.":         "three times daily",
	"qid":            "four times daily",
	"q.i.d":          "four times daily",
	"q.i.d.":         "four times daily",
	"qw":             "once weekly",
	"weekly":         "once weekly",
	"q2w":            "every 2 weeks",
	"prn":            "as needed",
}

// NormalizeDose canonicalizes strength notation, route abbreviations, and
// frequency shorthand so that semantically equal regimens written
// differently score as equal.
func NormalizeDose(text string) string {
	s := strings.ToLower(strings.TrimSpace(text))
	// Separators carry no meaning between regimen parts.
	s = strings.NewReplacer("/", " ", ",", " ", ";", " ", "(", " ", ")", " ").Replace(s)
	s = numberUnitRe.ReplaceAllString(s, "$1 $2")
	s = strings.Join(strings.Fields(s), " ")
	for _, phrase := range dosePhrases {
		s = strings.ReplaceAll(s, phrase[0], phrase[1])
	}
	tokens := strings.Fields(s)
	out := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if canonical, ok := doseTokens[token]; ok {
			out = append(out, canonical)
			continue
		}
		out = append(out, token)
	}
	return strings.Join(out, " ")
}
