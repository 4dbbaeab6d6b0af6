// Package quizfile reads trivia corpora stored as blank-line separated
// question and answer blocks.
package quizfile

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/transform"
	"trivia-quiz-bot/internal/domain"
)

const (
	questionMarker = "Вопрос"
	answerMarker   = "Ответ:"
)

// DefaultEncoding is the charset of the published quiz archives.
const DefaultEncoding = "KOI8-R"

// Options configures a Loader.
type Options struct {
	// Encoding is an IANA charset name; empty means DefaultEncoding.
	Encoding string
	// Strict turns an answer with no preceding question into ErrMalformedQuiz
	// instead of dropping it.
	Strict bool
}

// Loader parses quiz files into a domain.Corpus.
type Loader struct {
	encoding encoding.Encoding
	strict   bool
}

func NewLoader(opts Options) (*Loader, error) {
	enc, err := lookupEncoding(opts.Encoding)
	if err != nil {
		return nil, err
	}
	return &Loader{encoding: enc, strict: opts.Strict}, nil
}

func lookupEncoding(name string) (encoding.Encoding, error) {
	if name == "" {
		name = DefaultEncoding
	}
	if strings.EqualFold(name, DefaultEncoding) {
		return charmap.KOI8R, nil
	}
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil || enc == nil {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedEncoding, name)
	}
	return enc, nil
}

// Parse splits already-decoded text into records.
func (l *Loader) Parse(text string) (domain.Corpus, error) {
	corpus := domain.Corpus{}
	text = strings.ReplaceAll(text, "\r\n", "\n")

	pending := ""
	for i, block := range strings.Split(text, "\n\n") {
		block = strings.TrimSpace(block)
		switch {
		case strings.HasPrefix(block, questionMarker):
			pending = blockBody(block)
		case strings.HasPrefix(block, answerMarker):
			answer := blockBody(block)
			if pending == "" || answer == "" {
				if l.strict {
					return nil, fmt.Errorf("%w (block %d)", domain.ErrMalformedQuiz, i+1)
				}
				continue
			}
			corpus.Add(pending, answer)
		}
	}
	return corpus, nil
}

// blockBody drops the marker line and joins the remaining lines with spaces.
func blockBody(block string) string {
	_, body, found := strings.Cut(block, "\n")
	if !found {
		return ""
	}
	return strings.TrimSpace(strings.ReplaceAll(body, "\n", " "))
}

// Read decodes r with the configured charset and parses it.
func (l *Loader) Read(r io.Reader) (domain.Corpus, error) {
	data, err := io.ReadAll(transform.NewReader(r, l.encoding.NewDecoder()))
	if err != nil {
		return nil, fmt.Errorf("decode quiz: %w", err)
	}
	return l.Parse(string(data))
}

// LoadFile parses a single quiz file.
func (l *Loader) LoadFile(path string) (domain.Corpus, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open quiz file: %w", err)
	}
	defer f.Close()

	corpus, err := l.Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return corpus, nil
}

// LoadDir aggregates every regular file in dir. Files are read in name order,
// so a later file wins only when the question text is identical.
func (l *Loader) LoadDir(dir string) (domain.Corpus, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read quiz dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	corpus := domain.Corpus{}
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		fileCorpus, err := l.LoadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		corpus.Merge(fileCorpus)
	}
	return corpus, nil
}

// DirSource loads a corpus from a directory on every call.
type DirSource struct {
	loader *Loader
	dir    string
}

func NewDirSource(loader *Loader, dir string) *DirSource {
	return &DirSource{loader: loader, dir: dir}
}

// LoadCorpus reads the directory and fails if it yields no records.
func (s *DirSource) LoadCorpus(_ context.Context) (domain.Corpus, error) {
	corpus, err := s.loader.LoadDir(s.dir)
	if err != nil {
		return nil, err
	}
	if len(corpus) == 0 {
		return nil, fmt.Errorf("%s: %w", s.dir, domain.ErrEmptyCorpus)
	}
	return corpus, nil
}
