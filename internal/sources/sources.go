// Package sources holds the catalog of news domains and the feed URLs tried for each.
package sources

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/JakeFAU/newsdigest/internal/news"
)

// Source is one news domain and its feeds in preference order.
type Source struct {
	Domain string   `yaml:"domain"`
	Feeds  []string `yaml:"feeds"`
}

// Catalog is an ordered list of sources.
type Catalog struct {
	sources []Source
	byName  map[string]int
}

type catalogFile struct {
	Sources []Source `yaml:"sources"`
}

// Default returns the built-in catalog.
func Default() *Catalog {
	return mustCatalog([]Source{
		{Domain: "kompas.com", Feeds: []string{
			"https://news.kompas.com/rss",
			"https://indeks.kompas.com/rss",
		}},
		{Domain: "detik.com", Feeds: []string{
			"https://rss.detik.com/index.php",
			"https://rss.detik.com/index.php/detikcom",
		}},
		{Domain: "tempo.co", Feeds: []string{
			"https://rss.tempo.co/",
		}},
		{Domain: "antaranews.com", Feeds: []string{
			"https://www.antaranews.com/rss/terkini",
			"https://www.antaranews.com/rss/nasional",
		}},
		{Domain: "bbc.com", Feeds: []string{
			"http://feeds.bbci.co.uk/news/world/rss.xml",
			"http://feeds.bbci.co.uk/news/rss.xml",
		}},
		{Domain: "cnbcindonesia.com", Feeds: []string{
			"https://www.cnbcindonesia.com/rss/",
		}},
		{Domain: "republika.co.id", Feeds: []string{
			"https://www.republika.co.id/rss",
			"https://www.republika.co.id/rss/nasional",
		}},
		{Domain: "katadata.co.id", Feeds: []string{
			"https://katadata.co.id/rss",
		}},
		{Domain: "theguardian.com", Feeds: []string{
			"https://www.theguardian.com/world/rss",
			"https://www.theguardian.com/international/rss",
		}},
		{Domain: "nytimes.com", Feeds: []string{
			"https://rss.nytimes.com/services/xml/rss/nyt/World.xml",
			"https://rss.nytimes.com/services/xml/rss/nyt/HomePage.xml",
		}},
	})
}

// Load reads a catalog from a YAML file of the form
//
//	sources:
//	  - domain: kompas.com
//	    feeds: [https://news.kompas.com/rss]
func Load(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources file: %w", err)
	}
	var file catalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("decode sources file: %w", err)
	}
	return New(file.Sources)
}

// New validates and indexes sources. Domains are normalized and must be unique.
func New(list []Source) (*Catalog, error) {
	if len(list) == 0 {
		return nil, fmt.Errorf("sources: catalog is empty")
	}
	c := &Catalog{byName: make(map[string]int, len(list))}
	for _, s := range list {
		domain := news.BareDomain(s.Domain)
		if domain == "" {
			return nil, fmt.Errorf("sources: empty domain")
		}
		if _, dup := c.byName[domain]; dup {
			return nil, fmt.Errorf("sources: duplicate domain %q", domain)
		}
		feeds := make([]string, 0, len(s.Feeds))
		for _, f := range s.Feeds {
			if f = strings.TrimSpace(f); f != "" {
				feeds = append(feeds, f)
			}
		}
		c.byName[domain] = len(c.sources)
		c.sources = append(c.sources, Source{Domain: domain, Feeds: feeds})
	}
	return c, nil
}

func mustCatalog(list []Source) *Catalog {
	c, err := New(list)
	if err != nil {
		panic(err)
	}
	return c
}

// Domains lists every domain in catalog order.
func (c *Catalog) Domains() []string {
	out := make([]string, len(c.sources))
	for i, s := range c.sources {
		out[i] = s.Domain
	}
	return out
}

// Feeds returns the configured feed URLs for domain. Unknown domains have none.
func (c *Catalog) Feeds(domain string) []string {
	idx, ok := c.byName[news.BareDomain(domain)]
	if !ok {
		return nil
	}
	return append([]string(nil), c.sources[idx].Feeds...)
}

// Restrict returns a catalog holding only the named domains, in catalog order.
// An empty list returns the catalog unchanged.
func (c *Catalog) Restrict(domains []string) (*Catalog, error) {
	if len(domains) == 0 {
		return c, nil
	}
	keep := make(map[string]bool, len(domains))
	for _, d := range domains {
		d = news.BareDomain(d)
		if _, ok := c.byName[d]; !ok {
			return nil, fmt.Errorf("sources: unknown domain %q", d)
		}
		keep[d] = true
	}
	out := make([]Source, 0, len(keep))
	for _, s := range c.sources {
		if keep[s.Domain] {
			out = append(out, s)
		}
	}
	return New(out)
}
