package news

import "strings"

type tagRule struct {
	term     string
	category Category
}

// tagRules maps feed tag terms onto the taxonomy. Order matters for the substring pass.
var tagRules = []tagRule{
	{"politik", CategoryPolitics},
	{"politics", CategoryPolitics},
	{"pemerintah", CategoryPolitics},
	{"ekonomi", CategoryEconomy},
	{"economy", CategoryEconomy},
	{"bisnis", CategoryBusiness},
	{"business", CategoryBusiness},
	{"market", CategoryBusiness},
	{"keuangan", CategoryBusiness},
	{"teknologi", CategoryTechnology},
	{"technology", CategoryTechnology},
	{"tech", CategoryTechnology},
	{"sains", CategoryTechnology},
	{"olahraga", CategorySports},
	{"sport", CategorySports},
	{"hiburan", CategoryEntertainment},
	{"entertainment", CategoryEntertainment},
	{"seleb", CategoryEntertainment},
	{"kesehatan", CategoryHealth},
	{"health", CategoryHealth},
	{"internasional", CategoryInternational},
	{"world", CategoryInternational},
	{"dunia", CategoryInternational},
	{"nasional", CategoryNational},
	{"indonesia", CategoryNational},
}

type titleRule struct {
	category Category
	keywords []string
}

// titleRules is evaluated top to bottom; the first rule with any keyword in the title wins.
// Economy keywords fold into business, as the source feeds do.
var titleRules = []titleRule{
	{CategoryPolitics, []string{"pemerintah", "politik", "pilpres", "pemilu", "menteri", "dpr", "presiden"}},
	{CategoryBusiness, []string{
		"ekonomi", "bisnis", "pasar", "market", "saham", "rupiah", "harga", "investasi", "apbn", "pajak",
	}},
	{CategoryTechnology, []string{"teknologi", "ai", "gadget", "aplikasi", "software", "internet", "startup"}},
	{CategorySports, []string{"olahraga", "sport", "liga", "sepak bola", "badminton", "basket", "turnamen"}},
	{CategoryEntertainment, []string{"hiburan", "artis", "film", "musik", "konser", "seleb"}},
	{CategoryHealth, []string{"kesehatan", "vaksin", "rumah sakit", "dokter", "gizi"}},
	{CategoryInternational, []string{"dunia", "internasional", "global", "asing", "luar negeri"}},
	{CategoryNational, []string{"indonesia", "nasional", "jakarta", "provinsi", "kabupaten", "kota"}},
}

// CategoryFromTags resolves the first feed tag that maps onto the taxonomy.
// Each tag is tried as an exact term first, then by substring against the rule table.
func CategoryFromTags(tags []string) (Category, bool) {
	for _, tag := range tags {
		term := strings.ToLower(strings.TrimSpace(tag))
		if term == "" {
			continue
		}
		for _, r := range tagRules {
			if r.term == term {
				return r.category, true
			}
		}
		for _, r := range tagRules {
			if strings.Contains(term, r.term) {
				return r.category, true
			}
		}
	}
	return "", false
}

// GuessCategory infers a category from keywords in the title.
func GuessCategory(title string) (Category, bool) {
	s := strings.ToLower(title)
	if strings.TrimSpace(s) == "" {
		return "", false
	}
	for _, r := range titleRules {
		for _, kw := range r.keywords {
			if strings.Contains(s, kw) {
				return r.category, true
			}
		}
	}
	return "", false
}

// Categorize prefers feed tags and falls back to the title guess.
func Categorize(tags []string, title string) Category {
	if c, ok := CategoryFromTags(tags); ok {
		return c
	}
	c, _ := GuessCategory(title)
	return c
}
