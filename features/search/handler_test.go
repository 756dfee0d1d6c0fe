package search_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	featsearch "vecdb/features/search"
	"vecdb/internal/domain"
	"vecdb/internal/search"
	"vecdb/internal/uow"
)

type stubEmbedder struct {
	vector []float32
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return s.vector, nil
}

func seedLibraryAndConfig(t *testing.T, starter *uow.MemStarter) (domain.LibraryID, *domain.VectorizationConfig) {
	t.Helper()
	chunker, err := domain.NewChunkingStrategy("split", "sentence-split-256", domain.ModalityText, domain.BehaviorSplit,
		domain.WithSplitParams(256, 0))
	require.NoError(t, err)
	embedder, err := domain.NewEmbeddingStrategy("gemini", "gemini-embedding-001", "gemini-embedding-001", domain.ModalityText, 2,
		domain.WithMaxTokens(2048))
	require.NoError(t, err)
	cfg, err := domain.NewVectorizationConfig("default", []*domain.ChunkingStrategy{chunker}, embedder, "", "")
	require.NoError(t, err)

	var libID domain.LibraryID
	err = uow.Do(context.Background(), starter, nil, func(ctx context.Context, u uow.UnitOfWork) error {
		lib, lerr := domain.NewLibrary("papers")
		if lerr != nil {
			return lerr
		}
		libID = lib.ID
		lib.AddConfig(cfg.ID)
		if aerr := u.Libraries().Add(ctx, lib); aerr != nil {
			return aerr
		}
		return u.Configs().Add(ctx, cfg)
	})
	require.NoError(t, err)
	return libID, cfg
}

func newTestServer(t *testing.T, svc *search.Service) *httptest.Server {
	t.Helper()
	h := featsearch.NewHandler(svc)
	mux := http.NewServeMux()
	mux.HandleFunc("POST /libraries/{id}/search", h.Search)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func TestHandler_Search(t *testing.T) {
	starter := uow.NewMemStarter()
	libID, cfg := seedLibraryAndConfig(t, starter)

	idx := search.NewMemIndex()
	chunk, err := domain.NewChunk(libID, "doc-1", "ec-1", domain.ModalityText, []byte("vectors are fun"), "cs-1")
	require.NoError(t, err)
	emb, err := domain.NewEmbedding(chunk.ID(), cfg.EmbeddingStrategy.ID, []float32{1, 0}, libID, cfg.ID)
	require.NoError(t, err)
	require.NoError(t, idx.Add(context.Background(), emb))

	svc := search.NewService(starter, &stubEmbedder{vector: []float32{1, 0}}, idx, nil, nil)
	ts := newTestServer(t, svc)

	payload := `{"config_id":"` + string(cfg.ID) + `","query":"fun","top_k":5}`
	res, err := http.Post(ts.URL+"/libraries/"+string(libID)+"/search", "application/json",
		bytes.NewBufferString(payload))
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	var body struct {
		Data []search.SearchResult `json:"data"`
		Meta map[string]int        `json:"meta"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	require.Len(t, body.Data, 1)
	assert.Equal(t, chunk.ID(), body.Data[0].ChunkID)
	assert.Equal(t, 1, body.Meta["count"])
}

func TestHandler_SearchMissingConfigID(t *testing.T) {
	starter := uow.NewMemStarter()
	libID, _ := seedLibraryAndConfig(t, starter)
	svc := search.NewService(starter, &stubEmbedder{}, search.NewMemIndex(), nil, nil)
	ts := newTestServer(t, svc)

	res, err := http.Post(ts.URL+"/libraries/"+string(libID)+"/search", "application/json",
		bytes.NewBufferString(`{"query":"q"}`))
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestHandler_SearchEmptyQuery(t *testing.T) {
	starter := uow.NewMemStarter()
	libID, cfg := seedLibraryAndConfig(t, starter)
	svc := search.NewService(starter, &stubEmbedder{}, search.NewMemIndex(), nil, nil)
	ts := newTestServer(t, svc)

	payload := `{"config_id":"` + string(cfg.ID) + `","query":""}`
	res, err := http.Post(ts.URL+"/libraries/"+string(libID)+"/search", "application/json",
		bytes.NewBufferString(payload))
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)
}

func TestHandler_SearchUnknownLibrary(t *testing.T) {
	svc := search.NewService(uow.NewMemStarter(), &stubEmbedder{}, search.NewMemIndex(), nil, nil)
	ts := newTestServer(t, svc)

	res, err := http.Post(ts.URL+"/libraries/missing/search", "application/json",
		bytes.NewBufferString(`{"config_id":"cfg","query":"q"}`))
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}
