// Package news holds the article model and the contracts shared by the crawl, prioritize and summarize stages.
//
// Everything in this package is pure: URL canonicalization, text cleaning and category lookup tables. Concrete
// stores, queues, fetchers and summarizers live in their own packages and satisfy the interfaces declared here.
package news
