package news

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCategoryFromTags(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		tags []string
		want Category
		ok   bool
	}{
		{"exact", []string{"Politik"}, CategoryPolitics, true},
		{"exact english", []string{"World"}, CategoryInternational, true},
		{"substring", []string{"Berita Ekonomi Terkini"}, CategoryEconomy, true},
		{"first usable tag wins", []string{"", "opini", "sport"}, CategorySports, true},
		{"tech substring", []string{"fintech"}, CategoryTechnology, true},
		{"unknown", []string{"opini", "gaya hidup"}, "", false},
		{"none", nil, "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, ok := CategoryFromTags(tc.tags)
			require.Equal(t, tc.ok, ok)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestGuessCategoryOrder(t *testing.T) {
	t.Parallel()

	cases := map[string]Category{
		"Presiden resmikan pasar baru":      CategoryPolitics,
		"Harga saham naik tajam":            CategoryBusiness,
		"Startup lokal rilis aplikasi":      CategoryTechnology,
		"Liga Inggris: hasil pekan ini":     CategorySports,
		"Konser musik akhir pekan":          CategoryEntertainment,
		"Dokter ingatkan pentingnya gizi":   CategoryHealth,
		"Krisis global di luar negeri":      CategoryInternational,
		"Banjir melanda kabupaten Bogor":    CategoryNational,
		"Economy grows in second quarter":   "",
	}
	for title, want := range cases {
		got, ok := GuessCategory(title)
		require.Equal(t, want, got, title)
		require.Equal(t, want != "", ok, title)
	}
}

func TestCategorizePrefersTags(t *testing.T) {
	t.Parallel()

	require.Equal(t, CategoryHealth, Categorize([]string{"kesehatan"}, "Presiden bertemu menteri"))
	require.Equal(t, CategoryPolitics, Categorize([]string{"opini"}, "Presiden bertemu menteri"))
	require.Equal(t, Category(""), Categorize(nil, "Cuaca cerah"))
}

func TestParseCategory(t *testing.T) {
	t.Parallel()

	c, ok := ParseCategory(" Sports ")
	require.True(t, ok)
	require.Equal(t, CategorySports, c)
	_, ok = ParseCategory("weather")
	require.False(t, ok)
}
