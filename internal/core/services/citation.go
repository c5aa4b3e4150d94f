package services

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/custodia-labs/finsight/internal/core/domain"
	"github.com/custodia-labs/finsight/internal/logger"
)

// Default citation resolver values.
const (
	DefaultCitationThreshold = 0.35
	DefaultMaxCitations      = 3
	DefaultCitationScorer    = "ochiai"
)

var (
	// tokenPattern keeps decimals and thousands separators inside numbers
	// so "$180.2" and "1,234" survive as single tokens.
	tokenPattern = regexp.MustCompile(`[a-z0-9]+(?:[.,][0-9]+)*`)

	// markerPattern strips inline references the model was asked to emit.
	markerPattern = regexp.MustCompile(`(?i)\[(?:chunk\s*)?\d+(?:\s*[,|]\s*[^\]]*)?\]|\((?:p\.|pp\.|page|pages)\s*[\d\s,\-–]+\)`)

	// bulletPattern matches list markers at the start of a line.
	bulletPattern = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s+`)

	// sentenceEnd splits after terminal punctuation followed by space,
	// unless the period ends a single-letter abbreviation such as "U.S.".
	sentenceEnd = regexp.MustCompile(`([.!?]["')\]]?)\s+|;\s+`)
)

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "by": {},
	"for": {}, "from": {}, "has": {}, "have": {}, "in": {}, "is": {}, "it": {}, "its": {},
	"of": {}, "on": {}, "or": {}, "that": {}, "the": {}, "this": {}, "to": {}, "was": {},
	"were": {}, "which": {}, "with": {}, "we": {}, "our": {}, "their": {}, "than": {},
}

// tokenSet is a set of normalised content tokens.
type tokenSet map[string]struct{}

func tokenize(text string) tokenSet {
	set := make(tokenSet)
	for _, tok := range tokenPattern.FindAllString(strings.ToLower(text), -1) {
		tok = strings.ReplaceAll(tok, ",", "")
		if _, stop := stopwords[tok]; stop {
			continue
		}
		set[tok] = struct{}{}
	}
	return set
}

func intersection(a, b tokenSet) int {
	if len(b) < len(a) {
		a, b = b, a
	}
	n := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			n++
		}
	}
	return n
}

// Scorer measures how well a chunk supports a sentence, in [0, 1].
type Scorer func(sentence, chunk tokenSet) float64

// OchiaiScore is |S∩C| / sqrt(|S|·|C|).
func OchiaiScore(s, c tokenSet) float64 {
	if len(s) == 0 || len(c) == 0 {
		return 0
	}
	return float64(intersection(s, c)) / math.Sqrt(float64(len(s))*float64(len(c)))
}

// JaccardScore is |S∩C| / |S∪C|.
func JaccardScore(s, c tokenSet) float64 {
	inter := intersection(s, c)
	union := len(s) + len(c) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// ContainmentScore is |S∩C| / |S|: the share of the sentence found in the chunk.
func ContainmentScore(s, c tokenSet) float64 {
	if len(s) == 0 {
		return 0
	}
	return float64(intersection(s, c)) / float64(len(s))
}

var citationScorers = map[string]Scorer{
	"ochiai":      OchiaiScore,
	"jaccard":     JaccardScore,
	"containment": ContainmentScore,
}

// CitationResolver attributes answer sentences to context chunks by token overlap.
type CitationResolver struct {
	scorer         Scorer
	threshold      float64
	maxPerSentence int
}

// NewCitationResolver creates a resolver from settings. Unknown scorers
// are a validation error.
func NewCitationResolver(settings domain.CitationSettings) (*CitationResolver, error) {
	name := settings.Scorer
	if name == "" {
		name = DefaultCitationScorer
	}
	scorer, ok := citationScorers[name]
	if !ok {
		return nil, domain.NewValidationError("unknown citation scorer %q", name)
	}
	if settings.Threshold < 0 || settings.Threshold > 1 {
		return nil, domain.NewValidationError("citation threshold must be within [0, 1], got %v", settings.Threshold)
	}
	maxPer := settings.MaxPerSentence
	if maxPer <= 0 {
		maxPer = DefaultMaxCitations
	}
	return &CitationResolver{scorer: scorer, threshold: settings.Threshold, maxPerSentence: maxPer}, nil
}

// Resolve attributes each sentence of answer to the context chunks that
// support it. Only chunks in context can be cited. A sentence with no chunk
// at or above the threshold is returned as a gap. Citations for a sentence
// are ordered by descending score with ties in context order.
//
// A chunk is scored by the run of its lines that best matches the
// sentence, and the citation reports that run.
func (r *CitationResolver) Resolve(answer string, context []domain.ScoredChunk) ([]domain.Citation, []domain.CitationGap) {
	sentences := SplitSentences(answer)
	if len(sentences) == 0 {
		return nil, nil
	}

	chunks := make([]chunkLines, len(context))
	for i := range context {
		chunks[i] = newChunkLines(&context[i].Chunk)
	}

	type candidate struct {
		idx  int
		span lineSpan
	}

	var citations []domain.Citation
	var gaps []domain.CitationGap
	for si, sentence := range sentences {
		tokens := tokenize(sentence)
		best := 0.0
		var qualifying []candidate
		for ci := range context {
			span := r.bestSpan(tokens, chunks[ci])
			if span.score > best {
				best = span.score
			}
			if span.score >= r.threshold && span.score > 0 {
				qualifying = append(qualifying, candidate{idx: ci, span: span})
			}
		}

		if len(qualifying) == 0 {
			gaps = append(gaps, domain.CitationGap{SentenceIndex: si, Sentence: sentence, BestScore: best})
			continue
		}

		sort.SliceStable(qualifying, func(a, b int) bool {
			return qualifying[a].span.score > qualifying[b].span.score
		})
		if len(qualifying) > r.maxPerSentence {
			qualifying = qualifying[:r.maxPerSentence]
		}
		for _, c := range qualifying {
			chunk := &context[c.idx].Chunk
			if c.span.from < 0 {
				citations = append(citations, domain.NewCitation(chunk, si, c.span.score))
				continue
			}
			citations = append(citations, domain.NewSpanCitation(chunk,
				chunk.StartLine+c.span.from, chunk.StartLine+c.span.to, si, c.span.score))
		}
	}

	logger.Debug("Citations: %d across %d sentences, %d uncited", len(citations), len(sentences), len(gaps))
	return citations, gaps
}

// chunkLines holds the tokens of a chunk and of each of its lines. lines
// is nil when the text cannot be mapped back to the chunk's line range.
type chunkLines struct {
	all   tokenSet
	lines []tokenSet
}

func newChunkLines(c *domain.Chunk) chunkLines {
	cl := chunkLines{all: tokenize(c.Text)}
	if texts, ok := c.Lines(); ok {
		cl.lines = make([]tokenSet, len(texts))
		for i, t := range texts {
			cl.lines[i] = tokenize(t)
		}
	}
	return cl
}

// lineSpan is a run of chunk lines [from, to] (0-based, inclusive) and
// its score. from is -1 for the whole chunk.
type lineSpan struct {
	from, to int
	score    float64
}

// bestSpan scores the sentence against every run of lines that starts and
// ends on a line sharing a token with it. The highest score wins; ties go
// to the shorter run, then the earlier one. The whole chunk is the
// baseline, so narrowing never lowers a chunk's score.
func (r *CitationResolver) bestSpan(sentence tokenSet, cl chunkLines) lineSpan {
	best := lineSpan{from: -1, to: -1, score: r.scorer(sentence, cl.all)}
	if cl.lines == nil || best.score == 0 {
		return best
	}
	best.from, best.to = 0, len(cl.lines)-1

	for i := range cl.lines {
		if intersection(sentence, cl.lines[i]) == 0 {
			continue
		}
		window := make(tokenSet)
		for j := i; j < len(cl.lines); j++ {
			for tok := range cl.lines[j] {
				window[tok] = struct{}{}
			}
			if intersection(sentence, cl.lines[j]) == 0 {
				continue
			}
			score := r.scorer(sentence, window)
			if score > best.score || (score == best.score && j-i < best.to-best.from) {
				best = lineSpan{from: i, to: j, score: score}
			}
		}
	}
	return best
}

// SplitSentences breaks an answer into claim-sized sentences. Inline chunk
// and page markers are removed, list bullets are dropped, and sentences
// with no content tokens are skipped.
func SplitSentences(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = bulletPattern.ReplaceAllString(line, "")
		line = markerPattern.ReplaceAllString(line, "")
		for _, s := range splitLine(line) {
			s = strings.Join(strings.Fields(s), " ")
			if len(tokenize(s)) == 0 {
				continue
			}
			out = append(out, s)
		}
	}
	return out
}

// splitLine splits a single line at sentence terminators and semicolons.
func splitLine(line string) []string {
	var parts []string
	start := 0
	for _, loc := range sentenceEnd.FindAllStringSubmatchIndex(line, -1) {
		end := loc[1]
		if loc[2] >= 0 {
			end = loc[3]
			if line[loc[2]] == '.' && isAbbreviation(line[start:loc[2]]) {
				continue
			}
		} else {
			end = loc[0]
		}
		parts = append(parts, line[start:end])
		start = loc[1]
	}
	return append(parts, line[start:])
}

// isAbbreviation reports whether text ends in a dotted letter sequence,
// as in "U.S". A lone letter such as "segment A" ends a sentence.
func isAbbreviation(text string) bool {
	n := len(text)
	if n < 2 {
		return false
	}
	c := text[n-1]
	isLetter := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
	return isLetter && text[n-2] == '.'
}
