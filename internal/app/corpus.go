package app

import (
	"context"
	"fmt"

	"trivia-quiz-bot/internal/domain"
)

// CorpusLoader moves a corpus from a source into every configured sink.
type CorpusLoader struct {
	source CorpusSource
	sinks  []CorpusSink
}

func NewCorpusLoader(source CorpusSource, sinks ...CorpusSink) *CorpusLoader {
	return &CorpusLoader{source: source, sinks: sinks}
}

// Load reads the corpus and writes it to each sink in order, failing fast.
func (l *CorpusLoader) Load(ctx context.Context) (domain.Corpus, error) {
	corpus, err := l.source.LoadCorpus(ctx)
	if err != nil {
		return nil, fmt.Errorf("load corpus: %w", err)
	}
	if len(corpus) == 0 {
		return nil, domain.ErrEmptyCorpus
	}
	for _, sink := range l.sinks {
		if err := sink.SaveCorpus(ctx, corpus); err != nil {
			return nil, fmt.Errorf("save corpus: %w", err)
		}
	}
	return corpus, nil
}
