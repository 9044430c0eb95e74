package processors

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"transcriptSummarize/core"
)

// DefaultDedupThreshold is the token-set Jaccard similarity at or above which
// two entries are treated as near-duplicates.
const DefaultDedupThreshold = 0.82

// MergeEngine combines the per-chunk summaries of one transcript into one
// unified summary: chronological concatenation, near-duplicate removal, and a
// synthesis pass over the chunk summaries.
type MergeEngine struct {
	Threshold  float64
	summarizer Summarizer
	log        *logrus.Logger
}

// NewMergeEngine creates a merge engine. threshold <= 0 selects the default.
func NewMergeEngine(threshold float64, summarizer Summarizer, log *logrus.Logger) *MergeEngine {
	if threshold <= 0 {
		threshold = DefaultDedupThreshold
	}
	return &MergeEngine{Threshold: threshold, summarizer: summarizer, log: log}
}

// Merge unifies the ordered chunk results. A single result is returned
// unchanged. The merge is deterministic for identical ordered input and
// threshold, given a deterministic synthesis provider.
func (m *MergeEngine) Merge(ctx context.Context, results []*core.SummaryData, language string) (*core.SummaryData, error) {
	if len(results) == 0 {
		return nil, &core.MergeError{Message: "no chunk results to merge"}
	}
	if len(results) == 1 {
		return results[0], nil
	}

	var insights, moments, partSummaries []string
	var frameworks []core.Framework
	for _, r := range results {
		insights = append(insights, r.KeyInsights...)
		moments = append(moments, r.KeyMoments...)
		frameworks = append(frameworks, r.Frameworks...)
		partSummaries = append(partSummaries, r.Summary)
	}

	unified := &core.SummaryData{
		KeyInsights: m.dedupStrings(insights),
		KeyMoments:  m.dedupStrings(moments),
		Frameworks:  dedupFrameworks(frameworks),
	}

	synthesis, err := m.summarizer.Synthesize(ctx, partSummaries, language)
	if err != nil {
		return nil, &core.MergeError{Message: "synthesis of chunk summaries failed", Err: err}
	}
	unified.Summary = synthesis

	m.log.WithFields(logrus.Fields{
		"chunks":   len(results),
		"insights": len(unified.KeyInsights),
		"moments":  len(unified.KeyMoments),
		"language": language,
	}).Info("merged chunk summaries")
	return unified, nil
}

// dedupStrings removes near-duplicates, keeping the earliest occurrence.
func (m *MergeEngine) dedupStrings(entries []string) []string {
	kept := make([]string, 0, len(entries))
	keptTokens := make([]map[string]struct{}, 0, len(entries))
	for _, entry := range entries {
		tokens := tokenSet(entry)
		duplicate := false
		for _, prev := range keptTokens {
			if jaccard(tokens, prev) >= m.Threshold {
				duplicate = true
				break
			}
		}
		if !duplicate {
			kept = append(kept, entry)
			keptTokens = append(keptTokens, tokens)
		}
	}
	return kept
}

// dedupFrameworks keys frameworks by normalized name. When the same framework
// appears in several chunks the version with more steps wins; ties keep the
// earliest chunk's version.
func dedupFrameworks(frameworks []core.Framework) []core.Framework {
	byName := make(map[string]int)
	kept := make([]core.Framework, 0, len(frameworks))
	for _, fw := range frameworks {
		name := normalizeText(fw.Name)
		if i, ok := byName[name]; ok {
			if len(fw.Steps) > len(kept[i].Steps) {
				kept[i] = fw
			}
			continue
		}
		byName[name] = len(kept)
		kept = append(kept, fw)
	}
	return kept
}

// normalizeText lower-cases, strips punctuation and collapses whitespace.
func normalizeText(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r >= 0x80:
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.Fields(normalizeText(s)) {
		set[tok] = struct{}{}
	}
	return set
}

// jaccard computes |a∩b| / |a∪b| over token sets. Two empty sets count as
// identical.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	inter := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
