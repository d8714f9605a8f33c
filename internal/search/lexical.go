package search

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/notelens/notelens-backend/internal/platform/logger"
	"github.com/notelens/notelens-backend/internal/types"
)

// Lexical is a TF-IDF searcher over the reference corpus. It backs the
// degradation path when the vector backend is down: lower quality than
// dense retrieval, but it never depends on an external service.
type Lexical struct {
	log *logger.Logger

	mu           sync.RWMutex
	vocabulary   map[string]int
	idf          []float64
	docVectors   [][]float64
	docIDs       []uuid.UUID
	prepared     bool
	tokenPattern *regexp.Regexp
	stopwords    map[string]struct{}
}

func NewLexical(log *logger.Logger) *Lexical {
	return &Lexical{
		log:          log.With("service", "LexicalSearcher"),
		vocabulary:   make(map[string]int),
		tokenPattern: regexp.MustCompile(`\p{L}\p{M}*(?:[\p{L}\p{M}\p{N}'’-]*\p{L}\p{M}*)?|\p{N}+`),
		stopwords:    defaultStopwords(),
	}
}

// Prepare builds the vocabulary, IDF table, and per-document vectors from
// the corpus. Re-preparing replaces the previous state wholesale.
func (l *Lexical) Prepare(refs []types.ReferenceDocument) error {
	df := make(map[string]int)
	tokenized := make([][]string, len(refs))
	for i, ref := range refs {
		tokens := l.tokenize(ref.Text)
		tokenized[i] = tokens
		seen := make(map[string]struct{})
		for _, tok := range tokens {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			df[tok]++
		}
	}

	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	vocabulary := make(map[string]int, len(terms))
	idf := make([]float64, len(terms))
	n := float64(len(refs))
	for i, term := range terms {
		vocabulary[term] = i
		// Smoothed IDF, same shape as the usual sklearn formulation.
		idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1.0
	}

	docVectors := make([][]float64, len(refs))
	docIDs := make([]uuid.UUID, len(refs))
	for i, ref := range refs {
		docVectors[i] = vectorize(tokenized[i], vocabulary, idf)
		docIDs[i] = ref.ID
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.vocabulary = vocabulary
	l.idf = idf
	l.docVectors = docVectors
	l.docIDs = docIDs
	l.prepared = true
	l.log.Debug("lexical index prepared", "documents", len(refs), "vocabulary", len(terms))
	return nil
}

func (l *Lexical) Search(ctx context.Context, text string, topK int) ([]Match, error) {
	if topK <= 0 {
		topK = 5
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	if !l.prepared || len(l.docVectors) == 0 {
		return nil, nil
	}

	query := vectorize(l.tokenize(text), l.vocabulary, l.idf)
	matches := make([]Match, 0, len(l.docVectors))
	for i, doc := range l.docVectors {
		score := dot(query, doc)
		if score <= 0 {
			continue
		}
		matches = append(matches, Match{ReferenceID: l.docIDs[i], Score: score})
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ReferenceID.String() < matches[j].ReferenceID.String()
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (l *Lexical) tokenize(text string) []string {
	lower := strings.ToLower(text)
	raw := l.tokenPattern.FindAllString(lower, -1)
	out := make([]string, 0, len(raw))
	for _, t := range raw {
		if _, isStop := l.stopwords[t]; isStop {
			continue
		}
		out = append(out, t)
	}
	return out
}

// vectorize produces an L2-normalized TF-IDF vector so dot products are
// cosine similarities.
func vectorize(tokens []string, vocabulary map[string]int, idf []float64) []float64 {
	vec := make([]float64, len(idf))
	tf := make(map[int]int)
	total := 0
	for _, tok := range tokens {
		if idx, ok := vocabulary[tok]; ok {
			tf[idx]++
			total++
		}
	}
	if total == 0 {
		return vec
	}
	for idx, count := range tf {
		vec[idx] = (float64(count) / float64(total)) * idf[idx]
	}
	norm := 0.0
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec
}

func dot(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to",
		"of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were",
		"be", "been", "being", "it", "this", "that", "these", "those", "from",
		"so", "such", "into", "about", "between", "through", "can", "will", "just",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
