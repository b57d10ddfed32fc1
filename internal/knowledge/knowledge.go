// Package knowledge loads the FAQ corpus used for free-text intent matching.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"parcelbot/core/logger"
)

// ErrNotFound indicates the topic is absent from the corpus.
var ErrNotFound = errors.New("knowledge: topic not found")

// Entry is one answerable topic.
type Entry struct {
	Topic    string
	Title    string   `yaml:"title"`
	Answer   string   `yaml:"answer"`
	Link     string   `yaml:"link"`
	Keywords []string `yaml:"keywords"`
}

// CorpusEntry pairs a topic with the raw text the matcher scores against.
type CorpusEntry struct {
	Topic     string
	MatchText string
}

type document struct {
	Topics map[string]Entry `yaml:"topics"`
}

// Base serves answers from a YAML document. The file is read once on first
// use; a missing or corrupt file degrades to an empty corpus so the bot
// keeps answering commands.
type Base struct {
	path string

	once    sync.Once
	entries map[string]Entry
	corpus  []CorpusEntry
}

// New creates a Base reading from path.
func New(path string) *Base {
	return &Base{path: path}
}

func (b *Base) load() {
	b.once.Do(func() {
		b.entries = make(map[string]Entry)

		data, err := os.ReadFile(b.path)
		if err != nil {
			logger.Warn(context.Background(), "knowledge", "corpus.load_failed",
				slog.String("path", b.path),
				slog.String("err", err.Error()),
			)
			return
		}
		var doc document
		if err := yaml.Unmarshal(data, &doc); err != nil {
			logger.Warn(context.Background(), "knowledge", "corpus.parse_failed",
				slog.String("path", b.path),
				slog.String("err", err.Error()),
			)
			return
		}

		topics := make([]string, 0, len(doc.Topics))
		for topic, e := range doc.Topics {
			e.Topic = topic
			b.entries[topic] = e
			topics = append(topics, topic)
		}
		sort.Strings(topics)

		for _, topic := range topics {
			e := b.entries[topic]
			parts := append([]string{strings.ReplaceAll(topic, "_", " ")}, e.Keywords...)
			b.corpus = append(b.corpus, CorpusEntry{
				Topic:     topic,
				MatchText: strings.Join(parts, " "),
			})
		}

		logger.Info(context.Background(), "knowledge", "corpus.loaded",
			slog.String("path", b.path),
			slog.Int("topics", len(b.corpus)),
		)
	})
}

// Corpus returns matchable entries in stable (topic-sorted) order.
func (b *Base) Corpus() []CorpusEntry {
	b.load()
	return b.corpus
}

// Answer returns the entry for a topic or ErrNotFound.
func (b *Base) Answer(topic string) (Entry, error) {
	b.load()
	e, ok := b.entries[topic]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, topic)
	}
	return e, nil
}

// Len returns the number of loaded topics.
func (b *Base) Len() int {
	b.load()
	return len(b.corpus)
}
