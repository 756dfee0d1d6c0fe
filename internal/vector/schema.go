package vector

import (
	"context"
	"strings"

	"github.com/weaviate/weaviate/entities/models"

	"vecdb/internal/domain"
)

// SchemaClient defines the interface for Weaviate schema operations
type SchemaClient interface {
	ClassExists(ctx context.Context, className string) (bool, error)
	CreateClass(ctx context.Context, class *models.Class) error
	GetClass(ctx context.Context, className string) (*models.Class, error)
	AddProperty(ctx context.Context, className string, property *models.Property) error
}

// ClassNameFor maps a config id to its Weaviate class. Each config gets
// its own class because the similarity metric is fixed at class creation.
func ClassNameFor(configID domain.VectorizationConfigID) string {
	return "Embeddings_" + strings.ReplaceAll(string(configID), "-", "")
}

// distanceFor maps the domain similarity metric to Weaviate's distance
// names.
func distanceFor(metric domain.SimilarityMetric) string {
	switch metric {
	case domain.SimilarityDotProduct:
		return "dot"
	case domain.SimilarityEuclidean:
		return "l2-squared"
	default:
		return "cosine"
	}
}

// EnsureClass creates the class for a config if it does not exist, and
// backfills any missing properties if it does.
func EnsureClass(ctx context.Context, client SchemaClient, configID domain.VectorizationConfigID, metric domain.SimilarityMetric) error {
	className := ClassNameFor(configID)
	exists, err := client.ClassExists(ctx, className)
	if err != nil {
		return err
	}

	properties := []*models.Property{
		{
			Name:     "chunkId",
			DataType: []string{"string"}, // UUID as string (exact match)
		},
		{
			Name:     "libraryId",
			DataType: []string{"string"},
		},
		{
			Name:     "configId",
			DataType: []string{"string"},
		},
		{
			Name:     "strategyId",
			DataType: []string{"string"},
		},
	}

	if !exists {
		class := &models.Class{
			Class:       className,
			Description: "Embeddings produced under one vectorization config",
			Vectorizer:  "none",
			Properties:  properties,
			VectorIndexConfig: map[string]interface{}{
				"distance": distanceFor(metric),
			},
		}
		return client.CreateClass(ctx, class)
	}

	// Class exists, check for missing properties
	class, err := client.GetClass(ctx, className)
	if err != nil {
		return err
	}

	existingProps := make(map[string]bool)
	for _, p := range class.Properties {
		existingProps[p.Name] = true
	}

	for _, p := range properties {
		if !existingProps[p.Name] {
			if err := client.AddProperty(ctx, className, p); err != nil {
				return err
			}
		}
	}

	return nil
}
