package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/qdrant/go-client/qdrant"
)

// QdrantStorage wraps the Qdrant client with connection management and the
// versioned-collection rebuild scheme. Readers only ever address the
// collection through AliasName; rebuilds create a fresh physical collection
// and repoint the alias once it is fully populated.
type QdrantStorage struct {
	client *qdrant.Client
	host   string
	port   int
}

// NewQdrantStorage creates a new Qdrant client with health validation.
// It performs a health check with retry on startup and fails fast if Qdrant
// is unreachable.
func NewQdrantStorage(host string, port int) (*QdrantStorage, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	storage := &QdrantStorage{
		client: client,
		host:   host,
		port:   port,
	}

	ctx := context.Background()
	if err := storage.healthCheckWithRetry(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", ErrQdrantUnreachable, err)
	}

	return storage, nil
}

// healthCheckWithRetry performs a health check with exponential backoff.
// Initial interval 500ms, max interval 10s, max elapsed 30s.
func (s *QdrantStorage) healthCheckWithRetry(ctx context.Context) error {
	exponentialBackoff := backoff.NewExponentialBackOff()
	exponentialBackoff.InitialInterval = 500 * time.Millisecond
	exponentialBackoff.MaxInterval = 10 * time.Second
	exponentialBackoff.MaxElapsedTime = 30 * time.Second

	return backoff.Retry(func() error {
		return s.Health(ctx)
	}, backoff.WithContext(exponentialBackoff, ctx))
}

// Health performs a single health check against Qdrant.
func (s *QdrantStorage) Health(ctx context.Context) error {
	result, err := s.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if result == nil || result.Title == "" {
		return fmt.Errorf("health check returned invalid response")
	}
	return nil
}

// Close closes the Qdrant client connection.
func (s *QdrantStorage) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// currentCollection resolves AliasName to the physical collection it points
// at. Returns empty string if the alias does not exist yet.
func (s *QdrantStorage) currentCollection(ctx context.Context) (string, error) {
	aliases, err := s.client.ListAliases(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list aliases: %w", err)
	}
	for _, a := range aliases {
		if a.GetAliasName() == AliasName {
			return a.GetCollectionName(), nil
		}
	}
	return "", nil
}

// IndexReady reports whether a completed rebuild exists, i.e. the alias
// resolves to a physical collection.
func (s *QdrantStorage) IndexReady(ctx context.Context) (bool, error) {
	name, err := s.currentCollection(ctx)
	if err != nil {
		return false, err
	}
	return name != "", nil
}

// CountDocuments returns the number of documents behind the alias, or zero
// if no rebuild has completed yet.
func (s *QdrantStorage) CountDocuments(ctx context.Context) (uint64, error) {
	ready, err := s.IndexReady(ctx)
	if err != nil {
		return 0, err
	}
	if !ready {
		return 0, nil
	}

	count, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: AliasName,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return count, nil
}

// Rebuild replaces the entire index with the given document set.
//
// The new document set is written to a fresh versioned collection first;
// only when every point is stored does the alias move, in a single alias
// operation, so a reader addressing AliasName either sees the complete old
// set or the complete new set. The previous physical collection is dropped
// afterwards.
func (s *QdrantStorage) Rebuild(ctx context.Context, docs []*Document) error {
	for i, doc := range docs {
		if len(doc.Embedding) != VectorDimension {
			return fmt.Errorf("%w: document %d has %d dimensions, expected %d",
				ErrDimensionMismatch, i, len(doc.Embedding), VectorDimension)
		}
	}

	newName := fmt.Sprintf("%s_v%d", AliasName, time.Now().UnixNano())

	err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: newName,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     VectorDimension,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection %s: %w", newName, err)
	}

	if err := s.createPayloadIndexes(ctx, newName); err != nil {
		s.dropCollection(ctx, newName)
		return fmt.Errorf("failed to create payload indexes: %w", err)
	}

	if err := s.upsertAll(ctx, newName, docs); err != nil {
		s.dropCollection(ctx, newName)
		return err
	}

	oldName, err := s.currentCollection(ctx)
	if err != nil {
		s.dropCollection(ctx, newName)
		return err
	}

	if err := s.swapAlias(ctx, oldName, newName); err != nil {
		s.dropCollection(ctx, newName)
		return err
	}

	if oldName != "" {
		s.dropCollection(ctx, oldName)
	}

	return nil
}

// createPayloadIndexes indexes the filterable fields. Without these,
// filtered search degrades to a full payload scan.
func (s *QdrantStorage) createPayloadIndexes(ctx context.Context, collection string) error {
	fields := []string{"release", "doc_type", "source"}

	for _, field := range fields {
		_, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: collection,
			FieldName:      field,
			FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
		})
		if err != nil {
			return fmt.Errorf("failed to create index for field %s: %w", field, err)
		}
	}

	return nil
}

// upsertAll writes every document into the named collection, batched in
// groups of 100 with retry, waiting for each batch to be persisted.
func (s *QdrantStorage) upsertAll(ctx context.Context, collection string, docs []*Document) error {
	batchSize := 100
	for i := 0; i < len(docs); i += batchSize {
		end := min(i+batchSize, len(docs))

		batch := docs[i:end]
		points := make([]*qdrant.PointStruct, len(batch))
		for j, doc := range batch {
			points[j] = &qdrant.PointStruct{
				Id:      qdrant.NewIDUUID(doc.ID),
				Vectors: qdrant.NewVectors(doc.Embedding...),
				Payload: qdrant.NewValueMap(map[string]any{
					"content":    doc.Content,
					"question":   doc.Metadata.Question,
					"source":     doc.Metadata.Source,
					"doc_type":   doc.Metadata.DocType,
					"release":    doc.Metadata.Release,
					"indexed_at": doc.Metadata.IndexedAt.Format(time.RFC3339),
				}),
			}
		}

		if err := s.upsertWithRetry(ctx, collection, points); err != nil {
			return fmt.Errorf("failed to upsert batch %d-%d: %w", i, end, err)
		}
	}

	return nil
}

// upsertWithRetry performs an upsert with exponential backoff retry.
func (s *QdrantStorage) upsertWithRetry(ctx context.Context, collection string, points []*qdrant.PointStruct) error {
	exponentialBackoff := backoff.NewExponentialBackOff()
	exponentialBackoff.InitialInterval = 500 * time.Millisecond
	exponentialBackoff.MaxInterval = 10 * time.Second
	exponentialBackoff.MaxElapsedTime = 30 * time.Second

	operation := func() error {
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: collection,
			Points:         points,
			Wait:           qdrant.PtrOf(true),
		})
		return err
	}

	return backoff.Retry(operation, backoff.WithContext(exponentialBackoff, ctx))
}

// swapAlias repoints AliasName from oldName to newName in one atomic alias
// update. When no alias exists yet the update is a plain create.
func (s *QdrantStorage) swapAlias(ctx context.Context, oldName, newName string) error {
	var actions []*qdrant.AliasOperations
	if oldName != "" {
		actions = append(actions, &qdrant.AliasOperations{
			Action: &qdrant.AliasOperations_DeleteAlias{
				DeleteAlias: &qdrant.DeleteAlias{AliasName: AliasName},
			},
		})
	}
	actions = append(actions, &qdrant.AliasOperations{
		Action: &qdrant.AliasOperations_CreateAlias{
			CreateAlias: &qdrant.CreateAlias{
				AliasName:      AliasName,
				CollectionName: newName,
			},
		},
	})

	if err := s.client.UpdateAliases(ctx, actions); err != nil {
		return fmt.Errorf("failed to swap alias to %s: %w", newName, err)
	}
	return nil
}

// dropCollection deletes a physical collection, ignoring errors; it is only
// used for cleanup where the rebuild outcome is already decided.
func (s *QdrantStorage) dropCollection(ctx context.Context, name string) {
	_ = s.client.DeleteCollection(ctx, name)
}

// Search performs filtered vector similarity search against the alias and
// returns the top-k documents in rank order with scores.
func (s *QdrantStorage) Search(ctx context.Context, embedding []float32, filter SearchFilter, k int) ([]*ScoredDocument, error) {
	if len(embedding) != VectorDimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, expected %d",
			ErrDimensionMismatch, len(embedding), VectorDimension)
	}

	ready, err := s.IndexReady(ctx)
	if err != nil {
		return nil, err
	}
	if !ready {
		return nil, ErrNoCollection
	}

	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: AliasName,
		Query:          qdrant.NewQuery(embedding...),
		Filter:         filter.qdrantFilter(),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search documents: %w", err)
	}

	docs := make([]*ScoredDocument, 0, len(results))
	for _, result := range results {
		payload := result.Payload

		indexedAt, err := time.Parse(time.RFC3339, payload["indexed_at"].GetStringValue())
		if err != nil {
			indexedAt = time.Time{}
		}

		docs = append(docs, &ScoredDocument{
			Document: &Document{
				ID:      result.Id.GetUuid(),
				Content: payload["content"].GetStringValue(),
				Metadata: DocumentMetadata{
					Source:    payload["source"].GetStringValue(),
					DocType:   payload["doc_type"].GetStringValue(),
					Release:   payload["release"].GetStringValue(),
					Question:  payload["question"].GetStringValue(),
					IndexedAt: indexedAt,
				},
			},
			Score: float64(result.Score),
		})
	}

	return docs, nil
}
