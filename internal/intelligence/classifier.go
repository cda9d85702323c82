package intelligence

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
)

const maxCacheEntries = 100

// Classifier assigns a ProductType by counting keyword occurrences.
type Classifier struct {
	rules      []ProductRule
	cache      map[string]Classification
	cacheMutex sync.RWMutex
}

// NewClassifier creates a classifier with the default product rules.
func NewClassifier() *Classifier {
	return &Classifier{
		rules: defaultRules(),
		cache: make(map[string]Classification),
	}
}

// Classify returns the best-scoring product type of text. The highest score
// wins outright; ties go to the earlier rule, so text without any keyword is
// Injectable.
func (c *Classifier) Classify(text string) ProductType {
	return c.Analyze(text).Type
}

// Scores returns the per-type tallies in rule order.
func (c *Classifier) Scores(text string) []Score {
	return c.Analyze(text).Scores
}

// Analyze classifies text and reports the scores behind the decision.
// Results are cached by content hash.
func (c *Classifier) Analyze(text string) Classification {
	key := cacheKey(text)
	c.cacheMutex.RLock()
	cached, ok := c.cache[key]
	c.cacheMutex.RUnlock()
	if ok {
		return cached
	}

	lower := strings.ToLower(text)
	result := Classification{Scores: make([]Score, 0, len(c.rules))}
	best, total := -1, 0
	for _, rule := range c.rules {
		s := Score{Type: rule.Type}
		for _, kw := range rule.Keywords {
			if n := strings.Count(lower, kw); n > 0 {
				if s.Matches == nil {
					s.Matches = make(map[string]int)
				}
				s.Matches[kw] = n
				s.Score += n
			}
		}
		total += s.Score
		if s.Score > best {
			best = s.Score
			result.Type = rule.Type
		}
		result.Scores = append(result.Scores, s)
	}
	if total > 0 {
		result.Confidence = float64(best) / float64(total)
	}

	c.cacheMutex.Lock()
	if len(c.cache) >= maxCacheEntries {
		for k := range c.cache {
			delete(c.cache, k)
			break
		}
	}
	c.cache[key] = result
	c.cacheMutex.Unlock()

	return result
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
