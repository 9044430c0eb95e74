package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"transcriptSummarize/core"
)

// MilvusSummaryStore keeps summary insights in a Milvus collection with an
// HNSW cosine index.
type MilvusSummaryStore struct {
	mc    client.Client
	coll  string
	oa    embedder
	model string
	dim   int
}

func newMilvusSummaryStore(ctx context.Context, opts Options, oa embedder) (*MilvusSummaryStore, error) {
	if opts.MilvusAddr == "" {
		return nil, fmt.Errorf("milvus address not configured")
	}
	coll := opts.MilvusCollection
	if coll == "" {
		coll = "summary_insights"
	}
	dim := opts.EmbeddingDim
	if dim <= 0 {
		dim = 1536
	}

	mc, err := client.NewClient(ctx, client.Config{Address: opts.MilvusAddr})
	if err != nil {
		return nil, fmt.Errorf("connect milvus: %w", err)
	}

	s := &MilvusSummaryStore{mc: mc, coll: coll, oa: oa, model: opts.EmbeddingModel, dim: dim}
	if err := s.ensureSchemaAndIndex(ctx); err != nil {
		mc.Close()
		return nil, err
	}
	return s, nil
}

func (s *MilvusSummaryStore) ensureSchemaAndIndex(ctx context.Context) error {
	has, err := s.mc.HasCollection(ctx, s.coll)
	if err != nil {
		return err
	}
	if !has {
		schema := entity.NewSchema()
		schema.WithField(entity.NewField().WithName("id").WithIsAutoID(true).WithIsPrimaryKey(true).WithDataType(entity.FieldTypeInt64))
		schema.WithField(entity.NewField().WithName("video_id").WithDataType(entity.FieldTypeVarChar).WithMaxLength(512))
		schema.WithField(entity.NewField().WithName("language").WithDataType(entity.FieldTypeVarChar).WithMaxLength(16))
		schema.WithField(entity.NewField().WithName("insight").WithDataType(entity.FieldTypeVarChar).WithMaxLength(8192))
		schema.WithField(entity.NewField().WithName("vector").WithDataType(entity.FieldTypeFloatVector).WithDim(int64(s.dim)))

		if err := s.mc.CreateCollection(ctx, schema, int32(2)); err != nil {
			return fmt.Errorf("create collection: %w", err)
		}
	}
	idx, err := entity.NewIndexHNSW(entity.COSINE, 8, 200)
	if err != nil {
		return fmt.Errorf("new hnsw index: %w", err)
	}
	if err := s.mc.CreateIndex(ctx, s.coll, "vector", idx, false, client.WithIndexName("idx_vector")); err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	if err := s.mc.LoadCollection(ctx, s.coll, false); err != nil {
		return fmt.Errorf("load collection: %w", err)
	}
	return nil
}

// Upsert inserts the summary's insights for (videoID, language), replacing
// any previous rows.
func (s *MilvusSummaryStore) Upsert(ctx context.Context, videoID, language string, summary *core.SummaryData) (int, error) {
	texts := indexableTexts(summary)
	if len(texts) == 0 {
		return 0, nil
	}

	expr := fmt.Sprintf("video_id == \"%s\" && language == \"%s\"",
		strings.ReplaceAll(videoID, "\"", "\\\""), language)
	if err := s.mc.Delete(ctx, s.coll, "", expr); err != nil {
		return 0, fmt.Errorf("clear previous insights: %w", err)
	}

	videoIDs := make([]string, 0, len(texts))
	languages := make([]string, 0, len(texts))
	insights := make([]string, 0, len(texts))
	vectors := make([][]float32, 0, len(texts))
	for _, text := range texts {
		v, err := embedText(ctx, s.oa, s.model, strings.ToLower(text))
		if err != nil {
			return 0, err
		}
		videoIDs = append(videoIDs, videoID)
		languages = append(languages, language)
		insights = append(insights, text)
		vectors = append(vectors, v)
	}

	if _, err := s.mc.Insert(ctx, s.coll, "",
		entity.NewColumnVarChar("video_id", videoIDs),
		entity.NewColumnVarChar("language", languages),
		entity.NewColumnVarChar("insight", insights),
		entity.NewColumnFloatVector("vector", s.dim, vectors),
	); err != nil {
		return 0, fmt.Errorf("insert insights: %w", err)
	}
	return len(vectors), nil
}

// Search returns the topK insights closest to the query.
func (s *MilvusSummaryStore) Search(ctx context.Context, query string, topK int) ([]InsightHit, error) {
	if topK <= 0 {
		topK = 5
	}
	v, err := embedText(ctx, s.oa, s.model, strings.ToLower(query))
	if err != nil {
		return nil, err
	}

	sp, _ := entity.NewIndexHNSWSearchParam(74)
	res, err := s.mc.Search(ctx, s.coll, []string{}, "",
		[]string{"video_id", "language", "insight"},
		[]entity.Vector{entity.FloatVector(v)}, "vector", entity.COSINE, topK, sp)
	if err != nil {
		return nil, fmt.Errorf("search insights: %w", err)
	}

	var hits []InsightHit
	for _, r := range res {
		cols := map[string]entity.Column{}
		for _, c := range r.Fields {
			cols[c.Name()] = c
		}
		for i := 0; i < r.ResultCount; i++ {
			var h InsightHit
			if c, ok := cols["video_id"].(*entity.ColumnVarChar); ok {
				if data := c.Data(); i < len(data) {
					h.VideoID = data[i]
				}
			}
			if c, ok := cols["language"].(*entity.ColumnVarChar); ok {
				if data := c.Data(); i < len(data) {
					h.Language = data[i]
				}
			}
			if c, ok := cols["insight"].(*entity.ColumnVarChar); ok {
				if data := c.Data(); i < len(data) {
					h.Insight = data[i]
				}
			}
			h.Score = float64(r.Scores[i])
			hits = append(hits, h)
		}
	}
	return hits, nil
}

func (s *MilvusSummaryStore) Close(context.Context) error { return s.mc.Close() }
