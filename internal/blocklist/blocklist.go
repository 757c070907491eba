// Package blocklist classifies hosts that can never be a seller's own
// website: marketplaces, directories, press-release wires, site-builder
// root domains, and multi-tenant platforms. The list is static
// configuration; false negatives are corrected by confidence
// thresholding downstream, never here.
package blocklist

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
)

// ExtractDomain normalizes a raw URL to a bare host: lower-cased, one
// leading "www." stripped. Returns "" for unparsable or hostless input;
// it never fails, because a bad URL is a filtered-out candidate, not a
// pipeline error.
func ExtractDomain(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(host, "www.")
}

// Blocklist holds an exact-match host set and compiled patterns.
// Immutable after construction; Extend returns a new value.
type Blocklist struct {
	exact    map[string]struct{}
	patterns []*regexp.Regexp
}

// New compiles a blocklist from host names and regex pattern sources.
func New(hosts []string, patterns []string) (*Blocklist, error) {
	b := &Blocklist{
		exact:    make(map[string]struct{}, len(hosts)),
		patterns: make([]*regexp.Regexp, 0, len(patterns)),
	}
	for _, h := range hosts {
		h = strings.ToLower(strings.TrimSpace(h))
		if h != "" {
			b.exact[h] = struct{}{}
		}
	}
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, eris.Wrapf(err, "blocklist: compile pattern %q", p)
		}
		b.patterns = append(b.patterns, re)
	}
	return b, nil
}

// Default returns the built-in blocklist.
func Default() *Blocklist {
	b := &Blocklist{
		exact:    make(map[string]struct{}, len(defaultHosts)),
		patterns: defaultPatterns,
	}
	for _, h := range defaultHosts {
		b.exact[h] = struct{}{}
	}
	return b
}

// Extend returns a new Blocklist with additional hosts and patterns
// merged onto the receiver. The receiver is not modified.
func (b *Blocklist) Extend(hosts []string, patterns []string) (*Blocklist, error) {
	nb := &Blocklist{
		exact:    make(map[string]struct{}, len(b.exact)+len(hosts)),
		patterns: make([]*regexp.Regexp, len(b.patterns), len(b.patterns)+len(patterns)),
	}
	for h := range b.exact {
		nb.exact[h] = struct{}{}
	}
	copy(nb.patterns, b.patterns)
	for _, h := range hosts {
		h = strings.ToLower(strings.TrimSpace(h))
		if h != "" {
			nb.exact[h] = struct{}{}
		}
	}
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, eris.Wrapf(err, "blocklist: compile pattern %q", p)
		}
		nb.patterns = append(nb.patterns, re)
	}
	return nb, nil
}

// Blocked reports whether host can never be a seller's own site. The
// host is normalized (trimmed, lower-cased, leading "www." stripped)
// before matching; an empty host is always blocked.
func (b *Blocklist) Blocked(host string) bool {
	_, blocked := b.Match(host)
	return blocked
}

// Match returns the rule that blocked the host, for diagnostics.
// The rule is "empty", "exact:<host>", or "pattern:<regex>"; ok is
// false when nothing matched.
func (b *Blocklist) Match(host string) (rule string, ok bool) {
	host = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(host)), "www.")
	if host == "" {
		return "empty", true
	}
	if _, found := b.exact[host]; found {
		return "exact:" + host, true
	}
	for _, re := range b.patterns {
		if re.MatchString(host) {
			return "pattern:" + re.String(), true
		}
	}
	return "", false
}

// Size returns the number of exact hosts and patterns, for logging.
func (b *Blocklist) Size() (hosts, patterns int) {
	return len(b.exact), len(b.patterns)
}

// defaultHosts are marketplaces, big-box retail, link-in-bio services,
// large tech brands that dominate noisy results, business directories,
// press-release wires, and e-commerce platform root domains.
var defaultHosts = []string{
	"amazon.com", "walmart.com", "ebay.com", "etsy.com", "alibaba.com",
	"aliexpress.com", "target.com", "costco.com", "bestbuy.com",
	"homedepot.com", "lowes.com", "wayfair.com",
	"about.me", "linktree.com", "linktr.ee", "carrd.co", "bio.link",
	"aa.com", "yeti.com", "zones.com", "apple.com", "google.com",
	"microsoft.com", "facebook.com", "meta.com",
	"dnb.com", "bloomberg.com", "crunchbase.com", "zoominfo.com",
	"linkedin.com", "yellowpages.com", "yelp.com", "bbb.org",
	"abnewswire.com", "prnewswire.com", "businesswire.com", "globenewswire.com",
	"shopify.com", "bigcommerce.com", "wix.com", "squarespace.com",
	"wordpress.com", "weebly.com",
}

// defaultPatterns cover multi-tenant platform subdomains and
// international mirrors that the exact set cannot enumerate.
var defaultPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\.myshopify\.com$`),
	regexp.MustCompile(`\.wordpress\.com$`),
	regexp.MustCompile(`\.wixsite\.com$`),
	regexp.MustCompile(`\.blogspot\.com$`),
	regexp.MustCompile(`\.tumblr\.com$`),
	regexp.MustCompile(`^[a-f0-9]{6,}\.myshopify\.com$`),
	regexp.MustCompile(`\.godaddysites\.com$`),
	regexp.MustCompile(`(^|\.)amazon\.com$`),
	regexp.MustCompile(`(^|\.)amazon\.[a-z]{2,3}$`), // amazon.co.uk, amazon.de, ...
	regexp.MustCompile(`(^|\.)ubuy\.`),              // ubuy.com, ubuy.co.in, ...
	regexp.MustCompile(`(^|\.)archive\.`),           // archive.org, archive.is, ...
	regexp.MustCompile(`(^|\.)alibaba\.com$`),
	regexp.MustCompile(`(^|\.)aliexpress\.`),
}
