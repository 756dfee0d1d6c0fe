package domain

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// Namespaces for deterministic (UUID v5) identity. Chunk and embedding ids
// are derived from their semantic inputs so that retried pipeline stages
// recompute the same id instead of minting a new one.
var (
	chunkNamespace     = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	embeddingNamespace = uuid.MustParse("6ba7b811-9dad-11d1-80b4-00c04fd430c8")
	strategyNamespace  = uuid.MustParse("00000000-0000-0000-0000-000000000000")
)

// ContentHash is a SHA-1 hex digest of content.
type ContentHash string

func HashContent(content []byte) ContentHash {
	sum := sha1.Sum(content)
	return ContentHash(hex.EncodeToString(sum[:]))
}

func HashString(content string) ContentHash {
	return HashContent([]byte(content))
}

type (
	LibraryID             string
	DocumentID            string
	FragmentID            string
	ExtractedContentID    string
	ChunkID               string
	EmbeddingID           string
	ChunkingStrategyID    string
	EmbeddingStrategyID   string
	VectorizationConfigID string
)

// NewChunkID derives a chunk's identity from its semantic inputs. Same
// library, document, strategy and content always yield the same id.
func NewChunkID(libraryID LibraryID, documentID DocumentID, strategyID ChunkingStrategyID, content []byte) ChunkID {
	composite := fmt.Sprintf("%s:%s:%s:%s", libraryID, documentID, strategyID, content)
	hash := HashString(composite)
	return ChunkID(uuid.NewSHA1(chunkNamespace, []byte(hash)).String())
}

// NewEmbeddingID derives an embedding's identity from its chunk and
// strategy. One embedding per (chunk, strategy) by construction.
func NewEmbeddingID(chunkID ChunkID, strategyID EmbeddingStrategyID) EmbeddingID {
	composite := fmt.Sprintf("%s:%s", chunkID, strategyID)
	hash := HashString(composite)
	return EmbeddingID(uuid.NewSHA1(embeddingNamespace, []byte(hash)).String())
}

// NewChunkingStrategyID derives a strategy id from its model key, making
// registration idempotent.
func NewChunkingStrategyID(modelKey string) ChunkingStrategyID {
	return ChunkingStrategyID(uuid.NewSHA1(strategyNamespace, []byte("chunking:"+modelKey)).String())
}

func NewEmbeddingStrategyID(modelKey string) EmbeddingStrategyID {
	return EmbeddingStrategyID(uuid.NewSHA1(strategyNamespace, []byte("embedding:"+modelKey)).String())
}
