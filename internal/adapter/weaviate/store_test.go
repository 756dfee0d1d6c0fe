package weaviate_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"

	adapter "vecdb/internal/adapter/weaviate"
	"vecdb/internal/domain"
	"vecdb/internal/vector"
)

func mockWeaviate(t *testing.T, handler http.HandlerFunc) (*weaviate.Client, *httptest.Server) {
	ts := httptest.NewServer(handler)
	cfg := weaviate.Config{Host: ts.Listener.Addr().String(), Scheme: "http"}
	client, err := weaviate.NewClient(cfg)
	assert.NoError(t, err)
	return client, ts
}

func testEmbedding(t *testing.T) domain.Embedding {
	t.Helper()
	chunkID := domain.NewChunkID("lib-1", "doc-1", "cs-1", []byte("test content"))
	e, err := domain.NewEmbedding(chunkID, "es-1", []float32{0.1, 0.2}, "lib-1", "cfg-1")
	require.NoError(t, err)
	return e
}

func TestIndex_Add(t *testing.T) {
	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/meta" {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"version": "1.19.0"}`))
			return
		}
		assert.Equal(t, "/v1/batch/objects", r.URL.Path)
		assert.Equal(t, "POST", r.Method)

		var body map[string]interface{}
		json.NewDecoder(r.Body).Decode(&body)
		objects := body["objects"].([]interface{})
		assert.Len(t, objects, 1)
		obj := objects[0].(map[string]interface{})
		assert.Equal(t, vector.ClassNameFor("cfg-1"), obj["class"])
		props := obj["properties"].(map[string]interface{})
		assert.Equal(t, "lib-1", props["libraryId"])

		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode([]map[string]interface{}{{"id": obj["id"]}})
	})
	defer ts.Close()

	index := adapter.NewIndex(client)
	err := index.Add(context.Background(), testEmbedding(t))
	assert.NoError(t, err)
}

func TestIndex_Remove(t *testing.T) {
	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/meta" {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"version": "1.19.0"}`))
			return
		}
		assert.Equal(t, "DELETE", r.Method)
		assert.Contains(t, r.URL.Path, vector.ClassNameFor("cfg-1"))
		w.WriteHeader(http.StatusNoContent)
	})
	defer ts.Close()

	index := adapter.NewIndex(client)
	err := index.Remove(context.Background(), "cfg-1", domain.EmbeddingID("6a1f0b7e-0000-1111-2222-333344445555"))
	assert.NoError(t, err)
}

func TestIndex_Search(t *testing.T) {
	className := vector.ClassNameFor("cfg-1")
	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/meta" {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"version": "1.19.0"}`))
			return
		}
		assert.Equal(t, "/v1/graphql", r.URL.Path)
		w.WriteHeader(http.StatusOK)
		resp := map[string]interface{}{
			"data": map[string]interface{}{
				"Get": map[string]interface{}{
					className: []interface{}{
						map[string]interface{}{
							"chunkId": "chunk-1",
							"_additional": map[string]interface{}{
								"id":       "emb-1",
								"distance": 0.05,
							},
						},
					},
				},
			},
		}
		json.NewEncoder(w).Encode(resp)
	})
	defer ts.Close()

	index := adapter.NewIndex(client)
	hits, err := index.Search(context.Background(), "lib-1", "cfg-1", []float32{0.1, 0.2}, 10, domain.SimilarityCosine)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, domain.ChunkID("chunk-1"), hits[0].ChunkID)
	assert.Equal(t, domain.EmbeddingID("emb-1"), hits[0].EmbeddingID)
	assert.InDelta(t, 0.95, hits[0].Score, 0.0001)
}

func TestIndex_CountEmbeddings(t *testing.T) {
	className := vector.ClassNameFor("cfg-1")
	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/meta" {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"version": "1.19.0"}`))
			return
		}
		assert.Equal(t, "/v1/graphql", r.URL.Path)
		w.WriteHeader(http.StatusOK)
		resp := map[string]interface{}{
			"data": map[string]interface{}{
				"Aggregate": map[string]interface{}{
					className: []interface{}{
						map[string]interface{}{
							"meta": map[string]interface{}{
								"count": 42.0,
							},
						},
					},
				},
			},
		}
		json.NewEncoder(w).Encode(resp)
	})
	defer ts.Close()

	index := adapter.NewIndex(client)
	count, err := index.CountEmbeddings(context.Background(), "cfg-1")
	require.NoError(t, err)
	assert.Equal(t, 42, count)
}
