package summarizer

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

var sentenceRe = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`)

// FrequencySummarizer ranks sentences against a question, breaking ties by
// word frequency (stopwords filtered).
type FrequencySummarizer struct {
	tokenPattern *regexp.Regexp
	stopwords    map[string]struct{}
}

// NewFrequencySummarizer creates a frequency-based sentence ranker.
func NewFrequencySummarizer() *FrequencySummarizer {
	return &FrequencySummarizer{
		tokenPattern: regexp.MustCompile(`[\p{L}\p{N}]+(?:['’]\p{L}+)*`),
		stopwords:    defaultStopwords(),
	}
}

// Sentences splits text on terminal punctuation. Trailing text without
// punctuation is kept as a final sentence.
func Sentences(text string) []string {
	var out []string
	rest := text
	for _, loc := range sentenceRe.FindAllStringIndex(text, -1) {
		if s := strings.TrimSpace(text[loc[0]:loc[1]]); s != "" {
			out = append(out, s)
		}
		rest = text[loc[1]:]
	}
	if s := strings.TrimSpace(rest); s != "" {
		out = append(out, s)
	}
	return out
}

// Rank returns up to maxSentences sentences of text sharing at least one
// content word with query, best first by overlap then by word frequency,
// emitted in their original order.
func (s *FrequencySummarizer) Rank(text, query string, maxSentences int) []string {
	if maxSentences <= 0 {
		maxSentences = 3
	}
	q := s.contentSet(query)
	if len(q) == 0 {
		return nil
	}
	sentences := Sentences(text)
	freq := s.frequencies(sentences)
	var scores []scored
	for i, sent := range sentences {
		overlap := 0
		for tok := range s.contentSet(sent) {
			if _, ok := q[tok]; ok {
				overlap++
			}
		}
		if overlap == 0 {
			continue
		}
		// Overlap dominates; frequency only breaks ties.
		scores = append(scores, scored{idx: i, score: float64(overlap) + s.frequencyScore(freq, sent)/100})
	}
	if len(scores) == 0 {
		return nil
	}
	return pick(sentences, scores, maxSentences)
}

type scored struct {
	idx   int
	score float64
}

// pick keeps the n best scores and returns their sentences in text order.
func pick(sentences []string, scores []scored, n int) []string {
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })
	if n > len(scores) {
		n = len(scores)
	}
	selected := make([]int, n)
	for i := 0; i < n; i++ {
		selected[i] = scores[i].idx
	}
	sort.Ints(selected)
	out := make([]string, 0, n)
	for _, idx := range selected {
		out = append(out, sentences[idx])
	}
	return out
}

// frequencies counts content words across sentences, normalized to [0,1].
func (s *FrequencySummarizer) frequencies(sentences []string) map[string]float64 {
	freq := map[string]float64{}
	for _, sent := range sentences {
		for _, tok := range s.tokens(sent) {
			if _, ok := s.stopwords[tok]; ok {
				continue
			}
			freq[tok]++
		}
	}
	maxF := 0.0
	for _, v := range freq {
		if v > maxF {
			maxF = v
		}
	}
	if maxF > 0 {
		for k, v := range freq {
			freq[k] = v / maxF
		}
	}
	return freq
}

func (s *FrequencySummarizer) frequencyScore(freq map[string]float64, sentence string) float64 {
	toks := s.tokens(sentence)
	score := 0.0
	for _, tok := range toks {
		score += freq[tok]
	}
	// Normalize by sentence length to avoid bias
	if l := float64(len(toks)); l > 0 {
		score /= math.Sqrt(l)
	}
	return score
}

func (s *FrequencySummarizer) contentSet(text string) map[string]struct{} {
	set := map[string]struct{}{}
	for _, tok := range s.tokens(text) {
		if _, ok := s.stopwords[tok]; ok {
			continue
		}
		set[tok] = struct{}{}
	}
	return set
}

func (s *FrequencySummarizer) tokens(text string) []string {
	return s.tokenPattern.FindAllString(strings.ToLower(text), -1)
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
		"what", "who", "whom", "which", "where", "when", "why", "how", "do", "does", "did", "he", "she", "they", "his", "her", "their", "its", "i", "you", "we", "me", "my", "your",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
