// Package weaviate implements the vector index over a Weaviate instance,
// one class per vectorization config.
package weaviate

import (
	"context"
	"fmt"

	"github.com/go-openapi/strfmt"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"vecdb/internal/domain"
	"vecdb/internal/pipeline"
	"vecdb/internal/vector"
)

type Index struct {
	client *weaviate.Client
}

func NewIndex(client *weaviate.Client) *Index {
	return &Index{client: client}
}

// Add upserts one embedding into its config's class. The batch API
// overwrites objects by id, which is what makes redelivered
// embedding_created events converge.
func (s *Index) Add(ctx context.Context, e domain.Embedding) error {
	obj := &models.Object{
		ID:    strfmt.UUID(string(e.ID())),
		Class: vector.ClassNameFor(e.ConfigID),
		Properties: map[string]interface{}{
			"chunkId":    string(e.ChunkID),
			"libraryId":  string(e.LibraryID),
			"configId":   string(e.ConfigID),
			"strategyId": string(e.EmbeddingStrategyID),
		},
		Vector: e.Vector,
	}
	res, err := s.client.Batch().ObjectsBatcher().WithObjects(obj).Do(ctx)
	if err != nil {
		return err
	}
	for _, r := range res {
		if r.Result != nil && r.Result.Errors != nil && len(r.Result.Errors.Error) > 0 {
			return fmt.Errorf("batch add %s: %s", e.ID(), r.Result.Errors.Error[0].Message)
		}
	}
	return nil
}

func (s *Index) Remove(ctx context.Context, configID domain.VectorizationConfigID, id domain.EmbeddingID) error {
	return s.client.Data().Deleter().
		WithClassName(vector.ClassNameFor(configID)).
		WithID(string(id)).
		Do(ctx)
}

// CountEmbeddings aggregates the object count of one config's class.
func (s *Index) CountEmbeddings(ctx context.Context, configID domain.VectorizationConfigID) (int, error) {
	className := vector.ClassNameFor(configID)
	meta := graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}}
	res, err := s.client.GraphQL().Aggregate().
		WithClassName(className).
		WithFields(meta).
		Do(ctx)
	if err != nil {
		return 0, err
	}
	if len(res.Errors) > 0 {
		return 0, fmt.Errorf("graphql error: %v", res.Errors)
	}

	if data, ok := res.Data["Aggregate"].(map[string]interface{}); ok {
		if objects, ok := data[className].([]interface{}); ok && len(objects) > 0 {
			if first, ok := objects[0].(map[string]interface{}); ok {
				if meta, ok := first["meta"].(map[string]interface{}); ok {
					if count, ok := meta["count"].(float64); ok {
						return int(count), nil
					}
				}
			}
		}
	}
	return 0, nil
}

// Search runs a nearVector query in the config's class, filtered to one
// library. The class's distance setting carries the config's similarity
// metric, so the metric argument only matters to in-process indexes.
func (s *Index) Search(ctx context.Context, libraryID domain.LibraryID, configID domain.VectorizationConfigID, query []float32, k int, metric domain.SimilarityMetric) ([]pipeline.SearchHit, error) {
	nearVector := s.client.GraphQL().NearVectorArgBuilder().
		WithVector(query)

	where := filters.Where().
		WithPath([]string{"libraryId"}).
		WithOperator(filters.Equal).
		WithValueString(string(libraryID))

	fields := []graphql.Field{
		{Name: "chunkId"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "id"}, {Name: "distance"}}},
	}

	className := vector.ClassNameFor(configID)
	res, err := s.client.GraphQL().Get().
		WithClassName(className).
		WithNearVector(nearVector).
		WithWhere(where).
		WithLimit(k).
		WithFields(fields...).
		Do(ctx)
	if err != nil {
		return nil, err
	}
	if len(res.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %v", res.Errors)
	}

	var hits []pipeline.SearchHit
	if data, ok := res.Data["Get"].(map[string]interface{}); ok {
		if objects, ok := data[className].([]interface{}); ok {
			for _, o := range objects {
				props, ok := o.(map[string]interface{})
				if !ok {
					continue
				}
				var hit pipeline.SearchHit
				if chunkID, ok := props["chunkId"].(string); ok {
					hit.ChunkID = domain.ChunkID(chunkID)
				}
				if additional, ok := props["_additional"].(map[string]interface{}); ok {
					if id, ok := additional["id"].(string); ok {
						hit.EmbeddingID = domain.EmbeddingID(id)
					}
					if distance, ok := additional["distance"].(float64); ok {
						// Lower distance is better regardless of metric;
						// flip it so higher score wins.
						hit.Score = float32(1 - distance)
					}
				}
				hits = append(hits, hit)
			}
		}
	}
	return hits, nil
}
