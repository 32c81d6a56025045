package pipeline

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/ayushmap/ayushmap/internal/platform/icd"
)

const (
	simpleTranslateMaxTokens   = 10
	detailedTranslateMaxTokens = 30
	enrichMaxTokens            = 50

	// enrichLimit caps how many prioritized results without a description
	// get an LLM match judgment.
	enrichLimit = 5

	// Candidate scores by origin.
	scoreICDDefault   = 0.8
	scoreICDBoosted   = 0.9
	scoreCSVDefault   = 0.8
	scoreCSVAmbiguous = 0.6
)

var (
	whitespace = regexp.MustCompile(`\s+`)
	// Dosha-prefix synonym canonicalizations.
	vataJwara  = regexp.MustCompile(`(?i)\bVata\s+Jwara\b`)
	pittaJwara = regexp.MustCompile(`(?i)\bPitta\s+Jwara\b`)
	kaphaJwara = regexp.MustCompile(`(?i)\bKapha\s+Jwara\b`)

	parenthetical = regexp.MustCompile(`\([^)]*\)`)
	doshaPrefix   = regexp.MustCompile(`(?i)^(Vataja|Pittaja|Kaphaja|Vata|Pitta|Kapha)\s+`)
	nonAlpha      = regexp.MustCompile(`[^a-zA-Z]`)

	genericKeywords = []string{"unspecified", "nos", "not elsewhere classified", "other or unknown"}
	titleStopWords  = []string{"acute", "chronic", "unspecified", "other or unknown", "disorder", "illness", "disease"}
)

// normalizeTerm collapses whitespace and canonicalizes the known dosha-prefix
// spelling variants. Idempotent.
func normalizeTerm(term string) string {
	n := whitespace.ReplaceAllString(strings.TrimSpace(term), " ")
	n = vataJwara.ReplaceAllString(n, "Vataja Jwara")
	n = pittaJwara.ReplaceAllString(n, "Pittaja Jwara")
	n = kaphaJwara.ReplaceAllString(n, "Kaphaja Jwara")
	return n
}

// extractBaseTerm strips parenthetical qualifiers and dosha prefixes to get
// the root term used as a fallback search key.
func extractBaseTerm(term string) string {
	base := parenthetical.ReplaceAllString(term, "")
	base = doshaPrefix.ReplaceAllString(strings.TrimSpace(base), "")
	base = whitespace.ReplaceAllString(strings.TrimSpace(base), " ")
	if base == "" {
		return term
	}
	return base
}

// simpleTermFromTitle derives a one-word search key from a deterministic
// match title: lower-case, drop parenthetical content and classification
// filler words, take the first remaining alphabetic token.
func simpleTermFromTitle(title string) string {
	t := strings.ToLower(parenthetical.ReplaceAllString(title, ""))
	for _, w := range titleStopWords {
		t = strings.ReplaceAll(t, w, " ")
	}
	for _, tok := range strings.Fields(t) {
		tok = nonAlpha.ReplaceAllString(tok, "")
		if tok != "" {
			return tok
		}
	}
	return ""
}

// translateSimple asks the LLM for the single simplest English medical word
// for the term. The reply is reduced to its first purely-alphabetic token.
func (p *Pipeline) translateSimple(ctx context.Context, term string) string {
	prompt := fmt.Sprintf(`Translate this Ayurvedic term to the SIMPLEST English medical word that ICD-11 would recognize.

Return ONLY a single, simple medical word (e.g., "fever", "cough", "diarrhea").
Do NOT use phrases.

Examples:
- "Vataja Jwara" → "fever"
- "Kaphaja Kasa" → "cough"
- "Pandu" → "anaemia"

Term: %s

Simple word:`, term)

	resp, err := p.complete(ctx, prompt, simpleTranslateMaxTokens)
	if err != nil {
		p.log.Warn().Err(err).Str("term", term).Msg("simple translation failed")
		return ""
	}
	fields := strings.Fields(resp)
	if len(fields) == 0 {
		return ""
	}
	word := nonAlpha.ReplaceAllString(fields[0], "")
	if word == "" {
		return ""
	}
	return strings.ToLower(word)
}

// translateDetailed asks the LLM for a descriptive English medical phrase
// used for description matching. Absence is tolerated.
func (p *Pipeline) translateDetailed(ctx context.Context, term string) string {
	prompt := fmt.Sprintf(`Translate this Ayurvedic term to a descriptive English medical phrase that ICD-11 would recognize.

Examples:
- "Vataja Jwara" → "fever with chills"
- "Kaphaja Kasa" → "productive cough"
- "Pittaja Jwara" → "fever with sweating"

Return ONLY the medical phrase, nothing else.

Term: %s

Medical phrase:`, term)

	resp, err := p.complete(ctx, prompt, detailedTranslateMaxTokens)
	if err != nil {
		p.log.Warn().Err(err).Str("term", term).Msg("detailed translation failed")
		return ""
	}
	phrase := resp
	if idx := strings.IndexByte(phrase, '\n'); idx >= 0 {
		phrase = phrase[:idx]
	}
	phrase = strings.TrimSpace(parenthetical.ReplaceAllString(phrase, ""))
	return strings.ToLower(phrase)
}

// isBaseCode reports whether the code has no sub-classification separator.
func isBaseCode(code string) bool {
	head := code
	if idx := strings.IndexByte(head, '/'); idx >= 0 {
		head = head[:idx]
	}
	return head != "" && !strings.Contains(head, ".")
}

// prioritizeResults partitions search results into four tiers, first match
// wins: description contains the detailed term, description contains the
// simple term, generic/unspecified codes, everything else.
func prioritizeResults(results []icd.Entity, simpleTerm, detailedTerm string) []icd.Entity {
	if len(results) == 0 {
		return results
	}

	var detailedMatches, simpleMatches, generic, others []icd.Entity
	for _, r := range results {
		title := strings.ToLower(r.Title)
		desc := strings.ToLower(r.Description)

		if detailedTerm != "" && desc != "" && strings.Contains(desc, strings.ToLower(detailedTerm)) {
			detailedMatches = append(detailedMatches, r)
			continue
		}
		if simpleTerm != "" && desc != "" && strings.Contains(desc, strings.ToLower(simpleTerm)) {
			simpleMatches = append(simpleMatches, r)
			continue
		}

		isGeneric := false
		for _, kw := range genericKeywords {
			if strings.Contains(title, kw) {
				isGeneric = true
				break
			}
		}
		if isGeneric || isBaseCode(r.Code) {
			generic = append(generic, r)
		} else {
			others = append(others, r)
		}
	}

	out := make([]icd.Entity, 0, len(results))
	out = append(out, detailedMatches...)
	out = append(out, simpleMatches...)
	out = append(out, generic...)
	out = append(out, others...)
	return out
}

// enrichCandidate asks the LLM whether a code matches the translated term.
// Expected reply: "yes/no - reason".
func (p *Pipeline) enrichCandidate(ctx context.Context, cand *Candidate, translatedTerm string) {
	prompt := fmt.Sprintf(`Does this ICD-11 code match the medical term?

ICD Code: %s
ICD Title: %s
Medical Term: %s

Answer with ONLY "yes" or "no" and a brief reason (one sentence).

Format: yes/no - reason`, cand.Code, cand.Title, translatedTerm)

	resp, err := p.complete(ctx, prompt, enrichMaxTokens)
	if err != nil {
		p.log.Warn().Err(err).Str("code", cand.Code).Msg("llm enrichment failed")
		return
	}

	isMatch := strings.HasPrefix(strings.ToLower(resp), "yes")
	reason := ""
	if idx := strings.Index(resp, "-"); idx >= 0 {
		reason = strings.TrimSpace(resp[idx+1:])
	}

	cand.LLMEnriched = true
	cand.LLMMatch = &isMatch
	cand.LLMReason = reason
	if isMatch {
		cand.Score = scoreICDBoosted
	}
}

// mapTerm turns the extracted AYUSH term into an ordered candidate list:
// deterministic lookup, a translation strategy chain for the external search
// key, the external search with tier prioritization and LLM enrichment, and
// finally the source merge.
func (p *Pipeline) mapTerm(ctx context.Context, st *State) {
	defer func() {
		if r := recover(); r != nil {
			st.Candidates = nil
			st.MappingSource = SourceError
			st.forceReview()
			st.addReviewReason("Mapping stage failed; manual review required.")
			st.addProvenanceError("mapping", fmt.Errorf("panic: %v", r))
		}
	}()

	normalized := normalizeTerm(st.AyushTerm)
	baseTerm := extractBaseTerm(normalized)
	p.log.Debug().Str("term", st.AyushTerm).Str("normalized", normalized).Str("base", baseTerm).Msg("mapping term")

	// Deterministic lookup against the seed table.
	det := p.terms.Lookup(normalized)
	var csvCandidates []Candidate
	if det != nil {
		score := scoreCSVDefault
		if det.NeedsReview {
			score = scoreCSVAmbiguous
		}
		for _, m := range det.Matches {
			csvCandidates = append(csvCandidates, Candidate{
				Code:       m.ICDCode,
				Title:      m.ICDTitle,
				Score:      score,
				Source:     CandidateSourceCSV,
				SourceTerm: m.AyushTerm,
			})
		}
	}

	// Strategy chain for the external search key.
	simpleTerm := p.translateSimple(ctx, normalized)
	if simpleTerm == "" && baseTerm != normalized {
		simpleTerm = p.translateSimple(ctx, baseTerm)
	}
	if simpleTerm == "" && det != nil && det.Primary != nil {
		simpleTerm = simpleTermFromTitle(det.Primary.ICDTitle)
	}
	if simpleTerm == "" {
		simpleTerm = strings.ToLower(strings.TrimSpace(baseTerm))
	}

	detailedTerm := p.translateDetailed(ctx, normalized)

	// External terminology search.
	var icdCandidates []Candidate
	if simpleTerm != "" {
		results, err := p.search(ctx, simpleTerm)
		if err != nil {
			p.log.Warn().Err(err).Str("query", simpleTerm).Msg("icd search failed")
		} else if len(results) > 0 {
			prioritized := prioritizeResults(results, simpleTerm, detailedTerm)
			for _, r := range prioritized {
				icdCandidates = append(icdCandidates, Candidate{
					Code:         r.Code,
					Title:        r.Title,
					Description:  r.Description,
					Score:        scoreICDDefault,
					Source:       CandidateSourceICDAPI,
					EnglishTerm:  simpleTerm,
					DetailedTerm: detailedTerm,
				})
			}

			judgeTerm := detailedTerm
			if judgeTerm == "" {
				judgeTerm = simpleTerm
			}
			for i := 0; i < len(icdCandidates) && i < enrichLimit; i++ {
				if icdCandidates[i].Description == "" {
					p.enrichCandidate(ctx, &icdCandidates[i], judgeTerm)
				}
			}
		}
	}

	// Merge: external results are primary; deterministic rows are appended
	// only when their code is not already present. Zero external results
	// falls back entirely to deterministic.
	candidates := append([]Candidate(nil), icdCandidates...)
	for _, cc := range csvCandidates {
		dup := false
		for _, existing := range candidates {
			if existing.Code == cc.Code {
				dup = true
				break
			}
		}
		if !dup {
			candidates = append(candidates, cc)
		}
	}

	switch {
	case len(icdCandidates) > 0:
		st.MappingSource = SourceICDSearch
		st.EnglishTranslation = simpleTerm
	case len(candidates) > 0:
		st.MappingSource = SourceDeterministic
	default:
		st.MappingSource = SourceUnknown
	}
	st.Candidates = candidates
	st.DetailedTranslation = detailedTerm

	// Review signals.
	needsReview := len(candidates) > 1 || (det != nil && det.NeedsReview)
	if len(candidates) > 1 {
		st.addReviewReason(fmt.Sprintf("ICD API returned %d results. Please select the most appropriate ICD-11 code.", len(icdCandidates)))
	} else if det != nil && det.NeedsReview {
		reason := det.ReviewReason
		if reason == "" {
			reason = "API returned 0 results; deterministic mapping requires review."
		}
		st.addReviewReason(reason)
	} else if det != nil && det.ReviewReason != "" {
		// Alternate-spelling note: recorded without forcing review.
		st.addReviewReason(det.ReviewReason)
	}
	if needsReview {
		st.forceReview()
		st.ManualReviewCandidates = append([]Candidate(nil), candidates...)
	}

	st.addProvenance("mapping", map[string]interface{}{
		"mapping_source": st.MappingSource,
		"candidates":     len(candidates),
		"icd_results":    len(icdCandidates),
		"english_term":   simpleTerm,
		"detailed_term":  detailedTerm,
		"needs_review":   needsReview,
	})
}
