package ingestion_engine

import (
	"fmt"
	"maps"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/SiegfredLorelle/iskobot-api/internal/models"
)

// ChunkSeparators are tried in order; the first one present in an oversize
// piece decides where it is cut.
var ChunkSeparators = []string{"\n\n", "\n", ".", "!", "?", ",", " "}

// Chunker splits document text into overlapping, size-bounded chunks.
//
// The splitter cuts the text into pieces of at most size-overlap-1 runes.
// Every chunk after the first is the tail of its predecessor (at least
// overlap runes) followed by the next piece.
type Chunker struct {
	splitter textsplitter.RecursiveCharacter
	size     int
	overlap  int
}

// validChunking reports whether size and overlap leave room for new text in
// every chunk.
func validChunking(size, overlap int) bool {
	if size <= 0 || overlap < 0 {
		return false
	}
	return overlap == 0 || overlap+1 < size
}

func NewChunker(size, overlap int) (*Chunker, error) {
	if !validChunking(size, overlap) {
		return nil, fmt.Errorf("invalid chunking: size=%d overlap=%d", size, overlap)
	}
	body := size
	if overlap > 0 {
		body = size - overlap - 1
	}
	return &Chunker{
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithSeparators(ChunkSeparators),
			textsplitter.WithChunkSize(body),
			textsplitter.WithChunkOverlap(0),
			textsplitter.WithLenFunc(utf8.RuneCountInString),
			textsplitter.WithKeepSeparator(true),
		),
		size:    size,
		overlap: overlap,
	}, nil
}

// Split returns the chunks of text in order. Each chunk carries a copy of
// metadata with "chunk_index" set to its position. Chunks never exceed the
// configured size unless a single run of text has no separator in it.
func (c *Chunker) Split(text string, metadata map[string]any) ([]models.Chunk, error) {
	if text == "" {
		return nil, nil
	}
	parts, err := c.splitter.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("split text: %w", err)
	}

	out := make([]models.Chunk, 0, len(parts))
	var prev string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if prev != "" && c.overlap > 0 {
			room := c.size - utf8.RuneCountInString(p) - 1
			p = overlapTail(prev, c.overlap, room) + " " + p
		}
		prev = p

		md := make(map[string]any, len(metadata)+1)
		maps.Copy(md, metadata)
		md["chunk_index"] = len(out)
		out = append(out, models.Chunk{Text: p, Metadata: md, Index: len(out)})
	}
	return out, nil
}

// overlapTail returns the last n runes of prev (all of prev if shorter),
// widened back to the start of a word while it stays within room runes.
func overlapTail(prev string, n, room int) string {
	r := []rune(prev)
	if len(r) <= n {
		return prev
	}
	start := len(r) - n
	for start > 0 && len(r)-start < room && (unicode.IsSpace(r[start]) || !unicode.IsSpace(r[start-1])) {
		start--
	}
	return string(r[start:])
}
