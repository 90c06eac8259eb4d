package qdrant

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"

	"ragchat/internal/domain"
	"ragchat/internal/vectorstore"
)

// pointNamespace scopes the deterministic point IDs derived from chunk IDs.
var pointNamespace = uuid.MustParse("6f1c9a52-3c1e-4d8e-9a57-2b7d0f4e8c11")

// Storage keeps one Qdrant collection per store ID.
// It assumes cosine distance and treats an existing collection as a built store.
type Storage struct {
	client *qdrant.Client
	logger *zap.Logger
}

type Config struct {
	Host   string
	Port   int
	APIKey string
	UseTLS bool
}

func NewStorage(cfg Config, logger *zap.Logger) (*Storage, error) {
	if cfg.Host == "" {
		return nil, errors.New("qdrant: host is required")
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to qdrant %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return &Storage{client: client, logger: logger}, nil
}

func (s *Storage) Exists(ctx context.Context, storeID string) (bool, error) {
	return s.client.CollectionExists(ctx, storeID)
}

func (s *Storage) Create(ctx context.Context, storeID string, chunks []domain.Chunk, vectors [][]float32) (err error) {
	if len(chunks) != len(vectors) {
		return errors.New("chunks and vectors length mismatch")
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return errors.New("invalid dimension")
	}
	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: storeID,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(len(vectors[0])),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("creating collection %s: %w", storeID, err)
	}
	defer func() {
		// A collection without points would pass Exists on the next run.
		if err != nil {
			_ = s.client.DeleteCollection(context.WithoutCancel(ctx), storeID)
		}
	}()

	points := make([]*qdrant.PointStruct, len(chunks))
	for i, ch := range chunks {
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(PointID(ch.ChunkID)),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: payload(ch),
		}
	}
	_, err = s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: storeID,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("upserting points to collection %s: %w", storeID, err)
	}
	s.logger.Info("created qdrant collection", zap.String("store", storeID), zap.Int("points", len(points)))
	return nil
}

func (s *Storage) Search(ctx context.Context, storeID string, vector []float32, topK int) ([]domain.SearchResult, error) {
	if topK <= 0 {
		topK = 5
	}
	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: storeID,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("searching collection %s: %w", storeID, err)
	}
	results := make([]domain.SearchResult, 0, len(points))
	for _, p := range points {
		results = append(results, domain.SearchResult{Chunk: chunkFromPayload(p.GetPayload()), Score: float64(p.GetScore())})
	}
	return results, nil
}

func (s *Storage) Delete(ctx context.Context, storeID string) error {
	exists, err := s.client.CollectionExists(ctx, storeID)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}
	return s.client.DeleteCollection(ctx, storeID)
}

// Close releases the gRPC connection.
func (s *Storage) Close() error {
	return s.client.Close()
}

// PointID derives a stable Qdrant point UUID from a chunk ID.
func PointID(chunkID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(chunkID)).String()
}

func payload(ch domain.Chunk) map[string]*qdrant.Value {
	p := make(map[string]*qdrant.Value, len(ch.Metadata)+5)
	for k, v := range ch.Metadata {
		p[k] = qdrant.NewValueString(v)
	}
	p["document_id"] = qdrant.NewValueString(ch.DocumentID)
	p["chunk_id"] = qdrant.NewValueString(ch.ChunkID)
	p["index"] = qdrant.NewValueInt(int64(ch.Index))
	p["text"] = qdrant.NewValueString(ch.Text)
	p["source"] = qdrant.NewValueString(ch.Source)
	return p
}

func chunkFromPayload(p map[string]*qdrant.Value) domain.Chunk {
	chunk := domain.Chunk{Metadata: map[string]string{}}
	for k, v := range p {
		switch k {
		case "document_id":
			chunk.DocumentID = v.GetStringValue()
		case "chunk_id":
			chunk.ChunkID = v.GetStringValue()
		case "index":
			chunk.Index = int(v.GetIntegerValue())
		case "text":
			chunk.Text = v.GetStringValue()
		case "source":
			chunk.Source = v.GetStringValue()
			chunk.Metadata[k] = chunk.Source
		default:
			switch kind := v.GetKind().(type) {
			case *qdrant.Value_StringValue:
				chunk.Metadata[k] = kind.StringValue
			case *qdrant.Value_IntegerValue:
				chunk.Metadata[k] = strconv.FormatInt(kind.IntegerValue, 10)
			}
		}
	}
	return chunk
}

var _ vectorstore.Storage = (*Storage)(nil)
