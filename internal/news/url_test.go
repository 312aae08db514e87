package news

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveURL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		base string
		href string
		want string
	}{
		{"absolute", "", "https://news.example.com/a?x=1#top", "https://news.example.com/a?x=1"},
		{"relative path", "https://example.com/news/", "story-1.html", "https://example.com/news/story-1.html"},
		{"root relative", "https://example.com/news/", "/politik/123", "https://example.com/politik/123"},
		{"protocol relative", "https://example.com/", "//cdn.example.com/x", "https://cdn.example.com/x"},
		{"uppercase host", "", "HTTPS://Example.COM/Path", "https://example.com/Path"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := ResolveURL(tc.base, tc.href)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestResolveURLRejects(t *testing.T) {
	t.Parallel()

	for _, href := range []string{"", "   ", "#comments", "javascript:void(0)", "JavaScript:alert(1)", "mailto:a@b.c"} {
		_, err := ResolveURL("https://example.com/", href)
		require.Error(t, err, href)
		require.True(t, errors.Is(err, ErrInvalidURL), href)
	}
}

func TestSameSite(t *testing.T) {
	t.Parallel()

	require.True(t, SameSite("https://www.kompas.com/read/1", "kompas.com"))
	require.True(t, SameSite("https://news.kompas.com/read/1", "www.kompas.com"))
	require.False(t, SameSite("https://notkompas.com/read/1", "kompas.com"))
	require.False(t, SameSite("https://detik.com/x", "kompas.com"))
	require.False(t, SameSite("::bad::", "kompas.com"))
}
