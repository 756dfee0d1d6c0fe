package pipeline

import (
	"strings"

	"vecdb/internal/domain"
	"vecdb/internal/text"
)

// charsPerToken is the rough token estimate used for size budgeting.
const charsPerToken = 4

// Chunker turns one extracted content into embeddable chunk payloads
// according to a chunking strategy. Implementations are deterministic:
// the same content and strategy always produce the same chunks, which is
// what makes retried chunk stages converge on the same chunk ids.
type Chunker interface {
	Chunk(content []byte, strategy *domain.ChunkingStrategy) ([][]byte, error)
}

// ChunkerFor resolves the concrete chunker for a strategy's behavior.
func ChunkerFor(behavior domain.ChunkingBehavior) (Chunker, error) {
	switch behavior {
	case domain.BehaviorSplit:
		return &SplitChunker{}, nil
	case domain.BehaviorPassthrough:
		return &PassthroughChunker{}, nil
	default:
		return nil, &domain.ValidationError{Msg: "no chunker registered for behavior " + string(behavior)}
	}
}

// SplitChunker splits text into token-budgeted chunks with overlap,
// preferring paragraph then line then word boundaries.
type SplitChunker struct{}

func (c *SplitChunker) Chunk(content []byte, strategy *domain.ChunkingStrategy) ([][]byte, error) {
	body := strings.TrimSpace(string(content))
	if body == "" {
		return nil, nil
	}
	maxChars := strategy.ChunkSizeTokens * charsPerToken
	overlapChars := strategy.ChunkOverlapTokens * charsPerToken

	pieces := splitText(body, maxChars)
	pieces = applyOverlap(pieces, overlapChars)

	minChars := strategy.MinChunkSizeTokens * charsPerToken
	out := make([][]byte, 0, len(pieces))
	for _, p := range pieces {
		if minChars > 0 && len(p) < minChars {
			continue
		}
		// A document small enough to be a single chunk is indexed
		// as-is; noise filtering only prunes pieces of larger ones.
		if len(pieces) > 1 && text.IsNoise(p) {
			continue
		}
		out = append(out, []byte(p))
	}
	return out, nil
}

func splitText(body string, maxChars int) []string {
	if len(body) <= maxChars {
		return []string{body}
	}

	var chunks []string
	var current strings.Builder
	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
		}
	}

	for _, para := range strings.Split(body, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if current.Len()+len(para)+2 <= maxChars {
			if current.Len() > 0 {
				current.WriteString("\n\n")
			}
			current.WriteString(para)
			continue
		}
		flush()
		if len(para) <= maxChars {
			current.WriteString(para)
			continue
		}
		for _, line := range strings.Split(para, "\n") {
			if current.Len()+len(line)+1 <= maxChars {
				if current.Len() > 0 {
					current.WriteString("\n")
				}
				current.WriteString(line)
				continue
			}
			flush()
			if len(line) <= maxChars {
				current.WriteString(line)
				continue
			}
			for _, word := range strings.Fields(line) {
				if current.Len()+len(word)+1 > maxChars {
					flush()
				}
				if current.Len() > 0 {
					current.WriteString(" ")
				}
				current.WriteString(word)
			}
		}
	}
	flush()
	return chunks
}

// applyOverlap prefixes each chunk after the first with the tail of its
// predecessor.
func applyOverlap(chunks []string, overlapChars int) []string {
	if overlapChars <= 0 || len(chunks) < 2 {
		return chunks
	}
	out := make([]string, len(chunks))
	out[0] = chunks[0]
	for i := 1; i < len(chunks); i++ {
		prev := chunks[i-1]
		tail := prev
		if len(prev) > overlapChars {
			tail = prev[len(prev)-overlapChars:]
			// Snap to a word boundary so the overlap does not begin
			// mid-word.
			if idx := strings.IndexAny(tail, " \n"); idx >= 0 && idx < len(tail)-1 {
				tail = tail[idx+1:]
			}
		}
		out[i] = tail + "\n" + chunks[i]
	}
	return out
}

// PassthroughChunker emits the content as a single chunk, enforcing the
// strategy's size limit. Used for images, which embed whole.
type PassthroughChunker struct{}

func (c *PassthroughChunker) Chunk(content []byte, strategy *domain.ChunkingStrategy) ([][]byte, error) {
	if len(content) == 0 {
		return nil, nil
	}
	if strategy.MaxContentSizeBytes > 0 && len(content) > strategy.MaxContentSizeBytes {
		return nil, &domain.ValidationError{Msg: "content exceeds passthrough size limit"}
	}
	return [][]byte{content}, nil
}
