package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/enrich-cli/internal/config"
	"github.com/sells-group/enrich-cli/internal/model"
	"github.com/sells-group/enrich-cli/internal/monitoring"
	"github.com/sells-group/enrich-cli/pkg/anthropic"
)

// arbiterSystemPrompt is identical for every batch, so it is sent as a
// cached system block and consecutive batches read it from the prompt
// cache.
const arbiterSystemPrompt = `You are finding official website domains for Amazon marketplace sellers. You will be given a numbered list of companies, each with its seller name, legal business name, product category, region, and pre-filtered web search results (and sometimes LinkedIn search results as extra evidence).

RULES:
1. PRIORITIZE domains that match the Seller/Brand Name over the legal Business Name (e.g., seller "Comfier" -> comfier.com)
2. The brand name may appear ON the website even if the domain is different (e.g., "Swanoo Store" brand on thestrollerorganizer.com)
3. Look for the brand name mentioned in page titles or snippets - this often reveals the official site
4. Be skeptical of generic business names matching Fortune 500 domains - a small seller probably does not own one
5. The website should relate to their product category
6. Never return: marketplace sites (amazon, ebay), placeholder sites (about.me, linktr.ee), news sites
7. Use LinkedIn results only as supporting evidence; never return a linkedin.com URL as the domain
8. Grade every decision: "high" = the domain clearly belongs to this company, "medium" = strong match with minor doubt, "low" = weak guess, "none" = no plausible candidate. Only high and medium answers are kept; when unsure between low and null, return null.

Respond with ONLY a JSON array, one object per company in input order:
[
    {"company": 1, "domain": "example.com" or null, "confidence": "high" | "medium" | "low" | "none"},
    {"company": 2, "domain": null, "confidence": "none"},
    ...
]
No prose, no markdown fences.`

// promptCandidate is the candidate shape serialized into the prompt.
type promptCandidate struct {
	Title   string `json:"title"`
	Domain  string `json:"domain"`
	Snippet string `json:"snippet"`
}

// promptHit is the LinkedIn-evidence shape serialized into the prompt.
type promptHit struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// wireDecision is the strict response element schema. The "company"
// index the model echoes back is ignored: alignment is positional.
type wireDecision struct {
	Domain     *string `json:"domain"`
	Confidence string  `json:"confidence"`
}

// BadResponseError reports an arbiter reply that could not be used:
// malformed JSON or a decision count that does not match the batch.
// The whole batch degrades to no-match when this surfaces.
type BadResponseError struct {
	Reason string
	Raw    string
}

func (e *BadResponseError) Error() string {
	return "arbiter: bad response: " + e.Reason
}

// Arbiter submits evidence batches to the model and parses its
// verdicts.
type Arbiter struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewArbiter builds an Arbiter from the anthropic section of config.
func NewArbiter(client anthropic.Client, cfg config.AnthropicConfig) *Arbiter {
	m := cfg.Model
	if m == "" {
		m = "claude-haiku-4-5-20251001"
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1500
	}
	return &Arbiter{client: client, model: m, maxTokens: maxTokens}
}

// Arbitrate decides one batch with a single model call. Returned
// decisions align positionally with batch.Items and already honor the
// confidence floor. Any error means no decision was usable; the caller
// degrades the whole batch rather than zipping partial results.
func (a *Arbiter) Arbitrate(ctx context.Context, batch model.Batch) ([]model.MatchDecision, error) {
	if batch.Len() == 0 {
		return nil, nil
	}

	temp := 0.0
	req := anthropic.MessageRequest{
		Model:       a.model,
		MaxTokens:   a.maxTokens,
		System:      anthropic.CachedSystemBlocks(arbiterSystemPrompt),
		Messages:    []anthropic.Message{{Role: "user", Content: buildBatchPrompt(batch)}},
		Temperature: &temp,
	}

	resp, err := a.client.CreateMessage(ctx, req)
	if err != nil {
		monitoring.LLMCallsTotal.WithLabelValues("error").Inc()
		return nil, eris.Wrap(err, "arbiter: create message")
	}
	resp.Usage.LogCost(a.model, "arbitration")

	decisions, err := parseDecisions(resp.Text(), batch.Len())
	if err != nil {
		monitoring.LLMCallsTotal.WithLabelValues("bad_response").Inc()
		return nil, err
	}
	monitoring.LLMCallsTotal.WithLabelValues("ok").Inc()

	return decisions, nil
}

// buildBatchPrompt renders one --- COMPANY n --- block per entity with
// its identifying fields and serialized evidence.
func buildBatchPrompt(batch model.Batch) string {
	var b strings.Builder

	for i, item := range batch.Items {
		e := item.Entity
		fmt.Fprintf(&b, "--- COMPANY %d ---\n", i+1)
		fmt.Fprintf(&b, "Seller Name: %s\n", e.SellerName)
		fmt.Fprintf(&b, "Business Name: %s\n", e.BusinessName)
		fmt.Fprintf(&b, "Category: %s\n", e.Category)
		fmt.Fprintf(&b, "Subcategory: %s\n", e.Subcategory)
		fmt.Fprintf(&b, "State: %s\n", e.Region)

		b.WriteString("\nSearch Results:\n")
		b.WriteString(marshalEvidence(candidateLines(item.Candidates)))
		b.WriteString("\n")

		if len(item.LinkedIn) > 0 {
			b.WriteString("\nLinkedIn Results:\n")
			b.WriteString(marshalEvidence(linkedInLines(item.LinkedIn)))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Respond with the JSON array of exactly %d objects.", batch.Len())
	return b.String()
}

func candidateLines(cands []model.Candidate) []promptCandidate {
	out := make([]promptCandidate, len(cands))
	for i, c := range cands {
		out[i] = promptCandidate{Title: c.Title, Domain: c.Domain, Snippet: c.Snippet}
	}
	return out
}

func linkedInLines(hits []model.SearchHit) []promptHit {
	out := make([]promptHit, len(hits))
	for i, h := range hits {
		out[i] = promptHit{Title: h.Title, Link: h.URL, Snippet: h.Snippet}
	}
	return out
}

func marshalEvidence(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "[]"
	}
	return string(data)
}

// parseDecisions parses the model reply into exactly n decisions. Any
// deviation from the schema is a BadResponseError, never a partial
// result: a response that cannot be aligned positionally is worthless.
func parseDecisions(text string, n int) ([]model.MatchDecision, error) {
	cleaned := cleanJSONArray(text)

	var wire []wireDecision
	if err := json.Unmarshal([]byte(cleaned), &wire); err != nil {
		return nil, &BadResponseError{Reason: "invalid json: " + err.Error(), Raw: rawSnippet(text)}
	}
	if len(wire) != n {
		return nil, &BadResponseError{
			Reason: fmt.Sprintf("got %d decisions for %d companies", len(wire), n),
			Raw:    rawSnippet(text),
		}
	}

	out := make([]model.MatchDecision, n)
	for i, w := range wire {
		d := model.MatchDecision{Confidence: model.ParseConfidence(w.Confidence)}
		if w.Domain != nil {
			if domain := normalizeDomain(*w.Domain); domain != "" {
				d.Domain = &domain
			}
		}
		out[i] = d.ApplyFloor()
	}
	return out, nil
}

// cleanJSONArray strips markdown code fences and any prose around the
// array, keeping first "[" through last "]".
func cleanJSONArray(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}

// normalizeDomain reduces a model-returned domain to a bare host: the
// model occasionally answers with a full URL or a www-prefixed host.
func normalizeDomain(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.TrimPrefix(s, "http://")
	s = strings.TrimPrefix(s, "https://")
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimPrefix(s, "www.")
}

// rawSnippet truncates model output for error reporting.
func rawSnippet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
