// Package model defines the core types flowing through the enrichment
// pipeline: input entities, search hits, filtered candidates, batches,
// and arbiter decisions.
package model

// Entity is one input record to resolve. Field values are copied out of
// the source row at parse time; Row keeps every original cell verbatim so
// the output file round-trips columns the pipeline never looks at.
type Entity struct {
	SellerName   string
	BusinessName string
	Category     string
	Subcategory  string
	Region       string

	// Row is the original record, preserved verbatim.
	Row []string
	// Index is the row's position in the input file (0 = first data row).
	// Output ordering and checkpoint merging key off this.
	Index int
}

// DisplayName returns the best human-readable name for logging.
func (e Entity) DisplayName() string {
	if e.SellerName != "" {
		return e.SellerName
	}
	return e.BusinessName
}

// SearchHit is one raw result from a search backend. Ephemeral; never
// persisted.
type SearchHit struct {
	Title   string
	URL     string
	Snippet string
	// Source names the backend that produced the hit.
	Source string
}

// Candidate is a SearchHit whose URL yielded a non-empty, non-blocked
// domain. Within one entity's candidate set, Domain values are unique
// (first-seen wins).
type Candidate struct {
	SearchHit
	Domain string
}

// Batch is an ordered group of entities submitted to the arbiter in one
// call, each paired with its filtered candidates and optional secondary
// evidence. The arbiter's response array must align positionally with
// Items.
type Batch struct {
	Items []BatchItem
}

// BatchItem pairs an entity with the evidence gathered for it.
type BatchItem struct {
	Entity     Entity
	Candidates []Candidate
	// LinkedIn holds secondary-signal hits (site:linkedin.com/company
	// results). Evidence only; never candidates.
	LinkedIn []SearchHit
}

// Len returns the number of entities in the batch.
func (b Batch) Len() int { return len(b.Items) }

// Confidence grades an arbiter decision.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
	ConfidenceNone   Confidence = "none"
)

// ParseConfidence maps a raw string to a Confidence. Unknown or empty
// values parse to ConfidenceNone so they fail the acceptance floor.
func ParseConfidence(s string) Confidence {
	switch Confidence(s) {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
		return Confidence(s)
	default:
		return ConfidenceNone
	}
}

// Acceptable reports whether a decision at this confidence may carry a
// non-null domain. Only high and medium pass the floor.
func (c Confidence) Acceptable() bool {
	return c == ConfidenceHigh || c == ConfidenceMedium
}

// MatchDecision is the arbiter's verdict for one entity. A nil Domain
// means no acceptable match. Invariant: Domain is nil whenever Confidence
// is below the acceptance floor; ApplyFloor enforces this.
type MatchDecision struct {
	Domain     *string
	Confidence Confidence
}

// ApplyFloor coerces the decision to null when its confidence does not
// meet the acceptance floor. Low-confidence guesses are never recorded.
func (d MatchDecision) ApplyFloor() MatchDecision {
	if d.Domain == nil {
		return d
	}
	if !d.Confidence.Acceptable() {
		d.Domain = nil
	}
	return d
}

// NoMatch returns the degraded decision used for parse failures and
// arbiter errors.
func NoMatch() MatchDecision {
	return MatchDecision{Domain: nil, Confidence: ConfidenceNone}
}

// NotFoundMarker is written to the output column when no domain was
// accepted. A non-empty output cell (marker included) is the resume
// marker: the row is terminal and later runs skip it.
const NotFoundMarker = "NOT FOUND"
