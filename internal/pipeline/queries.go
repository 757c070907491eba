package pipeline

import (
	"fmt"
	"strings"

	"github.com/sells-group/enrich-cli/internal/model"
)

// buildQueries returns the web queries for one entity in priority
// order: quoted brand name alone, brand name with category context,
// then the legal business name when it differs. Storefront domains
// track the consumer-facing brand far more often than the legal
// entity, so the brand queries run first and win the candidate cap.
// Queries over empty fields are skipped; duplicates (case-insensitive)
// are dropped.
func buildQueries(e model.Entity) []string {
	var queries []string
	seen := make(map[string]struct{}, 3)
	add := func(q string) {
		q = strings.TrimSpace(q)
		if q == "" {
			return
		}
		key := strings.ToLower(q)
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		queries = append(queries, q)
	}

	seller := strings.TrimSpace(e.SellerName)
	business := strings.TrimSpace(e.BusinessName)

	if seller != "" {
		add(quote(seller))
		if cat := firstNonEmpty(e.Category, e.Subcategory); cat != "" {
			add(quote(seller) + " " + cat)
		}
	}
	if business != "" && !strings.EqualFold(business, seller) {
		add(quote(business))
	}

	return queries
}

func quote(s string) string { return `"` + s + `"` }

// linkedInQuery returns the secondary-signal query for an entity, or ""
// when the entity has no usable name. The legal business name is
// preferred; site-restricting keeps the hits to company pages.
func linkedInQuery(e model.Entity) string {
	name := firstNonEmpty(e.BusinessName, e.SellerName)
	if name == "" {
		return ""
	}
	return fmt.Sprintf("%s site:linkedin.com/company", quote(name))
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
