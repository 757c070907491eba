package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/sells-group/enrich-cli/internal/model"
	"github.com/sells-group/enrich-cli/internal/search"
	"github.com/sells-group/enrich-cli/pkg/anthropic"
)

// Compile-time interface checks.
var (
	_ search.Backend   = (*StubBackend)(nil)
	_ anthropic.Client = (*StubArbiterClient)(nil)
)

// StubBackend fabricates deterministic hits from the query text so the
// whole pipeline can run offline. The fabricated official-site domain
// is the alphanumeric slug of the quoted name; an amazon.com storefront
// hit rides along to exercise blocklist filtering.
type StubBackend struct{}

// Name implements search.Backend.
func (s *StubBackend) Name() string { return "stub" }

// Search implements search.Backend.
func (s *StubBackend) Search(_ context.Context, query string, _ int) ([]model.SearchHit, error) {
	name := quotedName(query)
	slug := slugify(name)
	if slug == "" {
		return nil, nil
	}

	if strings.Contains(query, "site:linkedin.com/company") {
		return []model.SearchHit{{
			Title:   name + " | LinkedIn",
			URL:     "https://www.linkedin.com/company/" + slug,
			Snippet: name + " company page.",
			Source:  "stub",
		}}, nil
	}

	return []model.SearchHit{
		{
			Title:   name + " - Official Site",
			URL:     "https://www." + slug + ".com",
			Snippet: "Official website of " + name + ".",
			Source:  "stub",
		},
		{
			Title:   name + " on Amazon",
			URL:     "https://www.amazon.com/stores/" + slug,
			Snippet: "Shop " + name + " products on Amazon.",
			Source:  "stub",
		},
	}, nil
}

// quotedName extracts the text between the first pair of double quotes,
// falling back to the whole query.
func quotedName(query string) string {
	first := strings.Index(query, `"`)
	if first < 0 {
		return strings.TrimSpace(query)
	}
	rest := query[first+1:]
	second := strings.Index(rest, `"`)
	if second < 0 {
		return strings.TrimSpace(query)
	}
	return rest[:second]
}

func slugify(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// StubArbiterClient answers arbitration prompts offline by accepting
// the first candidate of every company block at high confidence.
type StubArbiterClient struct{}

// CreateMessage implements anthropic.Client.
func (s *StubArbiterClient) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	prompt := ""
	for _, m := range req.Messages {
		prompt += m.Content
	}

	sections := strings.Split(prompt, "--- COMPANY ")[1:]
	decisions := make([]string, len(sections))
	for i, sec := range sections {
		if domain := firstPromptDomain(sec); domain != "" {
			decisions[i] = fmt.Sprintf(`{"company": %d, "domain": %q, "confidence": "high"}`, i+1, domain)
		} else {
			decisions[i] = fmt.Sprintf(`{"company": %d, "domain": null, "confidence": "none"}`, i+1)
		}
	}

	return &anthropic.MessageResponse{
		ID:         "stub-msg-001",
		Model:      req.Model,
		Content:    []anthropic.ContentBlock{{Type: "text", Text: "[" + strings.Join(decisions, ", ") + "]"}},
		StopReason: "end_turn",
		Usage:      anthropic.TokenUsage{InputTokens: 200, OutputTokens: 40},
	}, nil
}

// firstPromptDomain pulls the first serialized candidate domain out of
// one company section. LinkedIn evidence serializes with a "link" key,
// so it never matches here.
func firstPromptDomain(section string) string {
	const marker = `"domain": "`
	idx := strings.Index(section, marker)
	if idx < 0 {
		return ""
	}
	rest := section[idx+len(marker):]
	end := strings.Index(rest, `"`)
	if end < 0 {
		return ""
	}
	return rest[:end]
}
