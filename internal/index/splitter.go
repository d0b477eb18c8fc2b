package index

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultSeparators are tried in order when choosing where to cut a chunk.
// The empty separator means a hard cut at the size limit.
var DefaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

var errInvalidSplitter = errors.New("chunk overlap must be smaller than chunk size")

// Chunk is a slice of the source text. Offset is the byte offset of Text
// within the source, so source[Offset:Offset+len(Text)] == Text.
type Chunk struct {
	Text   string
	Source string
	Offset int
}

// Splitter cuts text into overlapping chunks of at most Size runes,
// preferring the earliest separator in Separators that yields a cut.
type Splitter struct {
	Size       int
	Overlap    int
	Separators []string
}

// NewSplitter creates a Splitter with the default separators.
func NewSplitter(size, overlap int) (Splitter, error) {
	s := Splitter{Size: size, Overlap: overlap, Separators: DefaultSeparators}
	if err := s.validate(); err != nil {
		return Splitter{}, err
	}
	return s, nil
}

func (s Splitter) validate() error {
	if s.Size <= 0 || s.Overlap < 0 || s.Overlap >= s.Size {
		return errInvalidSplitter
	}
	return nil
}

// Split returns the chunks of text tagged with source. Whitespace-only
// chunks are dropped.
func (s Splitter) Split(text, source string) []Chunk {
	if s.validate() != nil {
		return nil
	}

	var chunks []Chunk
	start := 0

	for start < len(text) {
		end := advance(text, start, s.Size)
		cut := end
		if end < len(text) {
			cut = s.boundary(text, start, end)
		}

		if c, ok := trimmed(text, start, cut, source); ok {
			chunks = append(chunks, c)
		}

		if cut >= len(text) {
			break
		}

		next := retreat(text, cut, s.Overlap)
		if next <= start {
			next = cut
		}
		start = next
	}

	return chunks
}

// boundary finds the cut position in text[start:end] using the first
// separator that leaves a chunk longer than the overlap, so every
// iteration makes progress.
func (s Splitter) boundary(text string, start, end int) int {
	window := text[start:end]
	for _, sep := range s.Separators {
		if sep == "" {
			break
		}
		i := strings.LastIndex(window, sep)
		if i < 0 {
			continue
		}
		cut := start + i + len(sep)
		if utf8.RuneCountInString(text[start:cut]) > s.Overlap {
			return cut
		}
	}
	return end
}

// advance returns the byte position n runes after pos, capped at len(text).
func advance(text string, pos, n int) int {
	for n > 0 && pos < len(text) {
		_, size := utf8.DecodeRuneInString(text[pos:])
		pos += size
		n--
	}
	return pos
}

// retreat returns the byte position n runes before pos, floored at 0.
func retreat(text string, pos, n int) int {
	for n > 0 && pos > 0 {
		_, size := utf8.DecodeLastRuneInString(text[:pos])
		pos -= size
		n--
	}
	return pos
}

func trimmed(text string, start, end int, source string) (Chunk, bool) {
	seg := text[start:end]
	lead := len(seg) - len(strings.TrimLeftFunc(seg, unicode.IsSpace))
	body := strings.TrimRightFunc(seg[lead:], unicode.IsSpace)
	if body == "" {
		return Chunk{}, false
	}
	return Chunk{Text: body, Source: source, Offset: start + lead}, true
}
