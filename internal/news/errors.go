package news

import "errors"

var (
	// ErrNotFound is returned by stores when no item matches the id.
	ErrNotFound = errors.New("item not found")
	// ErrNoContent means the article page has no extractable text.
	ErrNoContent = errors.New("no extractable content")
	// ErrPageGone means the article page answered with a permanent client error.
	ErrPageGone = errors.New("article page gone")
	// ErrUnusableSummary means the summarizer answered with nothing worth storing.
	ErrUnusableSummary = errors.New("unusable summary")
	// ErrInvalidURL is returned by ResolveURL for hrefs that cannot name an article.
	ErrInvalidURL = errors.New("invalid url")
)

// Unusable reports whether err means the item can never be summarized and should be deleted.
func Unusable(err error) bool {
	return errors.Is(err, ErrNoContent) || errors.Is(err, ErrPageGone) || errors.Is(err, ErrUnusableSummary)
}
