// Package fingerprint derives a technology fingerprint from raw HTML.
package fingerprint

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/siteiq/siteiq/internal/insight"
)

// Extractor implements insight.Extractor over goquery. The underlying
// html parser is permissive and degrades to partial documents on
// malformed markup, so extraction never fails outright.
type Extractor struct{}

// New constructs an Extractor.
func New() *Extractor {
	return &Extractor{}
}

// Extract parses html and collects meta tags and script sources.
//
// Meta elements are keyed by their name attribute, falling back to
// property; elements missing a key or a content attribute are skipped.
// Keys are lower-cased, values stored verbatim, last write wins. Script
// src values are appended in document order with duplicates preserved.
// Empty input yields an empty Fingerprint.
func (Extractor) Extract(html string) insight.Fingerprint {
	fp := insight.Fingerprint{
		MetaTags: map[string]string{},
		Scripts:  []string{},
	}
	if strings.TrimSpace(html) == "" {
		return fp
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return fp
	}

	doc.Find("meta").Each(func(_ int, sel *goquery.Selection) {
		key, ok := sel.Attr("name")
		if !ok {
			key, ok = sel.Attr("property")
		}
		if !ok || key == "" {
			return
		}
		content, ok := sel.Attr("content")
		if !ok {
			return
		}
		fp.MetaTags[strings.ToLower(key)] = content
	})

	doc.Find("script").Each(func(_ int, sel *goquery.Selection) {
		if src, ok := sel.Attr("src"); ok {
			fp.Scripts = append(fp.Scripts, src)
		}
	})

	return fp
}
