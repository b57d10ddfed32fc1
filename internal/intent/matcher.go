// Package intent classifies free-form user text into tracking-number
// candidates, FAQ topics, or a no-match outcome.
package intent

import (
	"regexp"
	"sort"
	"strings"
	"sync"

	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"

	"parcelbot/internal/knowledge"
)

// Kind discriminates classification outcomes.
type Kind int

const (
	// KindNoMatch means no topic scored above the lower threshold.
	KindNoMatch Kind = iota
	// KindTracking means the text looks like a tracking number.
	KindTracking
	// KindConfident means exactly one answer should be shown.
	KindConfident
	// KindAmbiguous means a short list of candidate topics should be offered.
	KindAmbiguous
)

// Candidate is a scored topic suggestion.
type Candidate struct {
	Topic string
	Score int
}

// Classification is the tagged result of Classify. Exactly the fields
// relevant to Kind are populated.
type Classification struct {
	Kind       Kind
	Tracking   string
	Topic      string
	Candidates []Candidate
}

const maxCandidates = 3

// trackingPattern accepts carrier codes: 8+ chars of A-Z, digits and dashes.
var trackingPattern = regexp.MustCompile(`^[A-Z0-9-]{8,}$`)

// Corpus supplies matchable FAQ entries.
type Corpus interface {
	Corpus() []knowledge.CorpusEntry
}

// Options tunes the matcher.
type Options struct {
	Language      string
	HighThreshold int
	LowThreshold  int
}

// Matcher scores user text against the knowledge corpus.
type Matcher struct {
	corpus Corpus
	opts   Options

	prepOnce sync.Once
	prepped  []preparedEntry
}

type preparedEntry struct {
	topic string
	text  string
}

// NewMatcher builds a matcher over the given corpus.
func NewMatcher(corpus Corpus, opts Options) *Matcher {
	if opts.Language == "" {
		opts.Language = "english"
	}
	if opts.HighThreshold <= 0 {
		opts.HighThreshold = 70
	}
	if opts.LowThreshold <= 0 {
		opts.LowThreshold = 45
	}
	return &Matcher{corpus: corpus, opts: opts}
}

func (m *Matcher) prepare() []preparedEntry {
	m.prepOnce.Do(func() {
		for _, e := range m.corpus.Corpus() {
			m.prepped = append(m.prepped, preparedEntry{
				topic: e.Topic,
				text:  Normalize(e.MatchText, m.opts.Language),
			})
		}
	})
	return m.prepped
}

// IsTrackingCandidate reports whether the text looks like a tracking number.
func IsTrackingCandidate(text string) (string, bool) {
	code := strings.ToUpper(strings.TrimSpace(text))
	if trackingPattern.MatchString(code) {
		return code, true
	}
	return "", false
}

// Classify maps raw user text to an intent. Tracking-number shape wins over
// any fuzzy topic score.
func (m *Matcher) Classify(raw string) Classification {
	if code, ok := IsTrackingCandidate(raw); ok {
		return Classification{Kind: KindTracking, Tracking: code}
	}

	query := Normalize(raw, m.opts.Language)
	if query == "" {
		return Classification{Kind: KindNoMatch}
	}

	var scored []Candidate
	for _, e := range m.prepare() {
		if e.text == "" {
			continue
		}
		score := fuzzy.TokenSetRatio(query, e.text)
		if score >= m.opts.LowThreshold {
			scored = append(scored, Candidate{Topic: e.topic, Score: score})
		}
	}
	if len(scored) == 0 {
		return Classification{Kind: KindNoMatch}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Topic < scored[j].Topic
	})

	if scored[0].Score >= m.opts.HighThreshold {
		return Classification{Kind: KindConfident, Topic: scored[0].Topic}
	}

	if len(scored) > maxCandidates {
		scored = scored[:maxCandidates]
	}
	return Classification{Kind: KindAmbiguous, Candidates: scored}
}
