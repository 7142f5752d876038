package searchindex

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pgvector/pgvector-go"
	"github.com/xxxsen/papercast/internal/db"
	"github.com/xxxsen/papercast/internal/model"
	"github.com/xxxsen/papercast/internal/pkg/dbutil"
	"github.com/xxxsen/papercast/internal/pkg/errors"
)

// rrfK damps the reciprocal rank fusion so neither ranking dominates on rank 1 alone.
const rrfK = 60

const documentTable = "paper_documents"

var documentColumns = []string{"id", "doc_type", "title", "content", "url"}

type pgvectorConfig struct {
	db.Config
	SkipMigrations bool `json:"skip_migrations"`
}

type pgvectorIndex struct {
	db *sqlx.DB
}

type hitRow struct {
	ID      string  `db:"id"`
	Content string  `db:"content"`
	Score   float64 `db:"score"`
}

func NewPgvectorIndex(conn *sqlx.DB) Index {
	return &pgvectorIndex{db: conn}
}

func (p *pgvectorIndex) Name() string {
	return "pgvector"
}

func (p *pgvectorIndex) Get(ctx context.Context, id string) (*model.PaperDocument, error) {
	where := map[string]interface{}{"id": id}
	sqlStr, args, err := dbutil.Select(documentTable, where, documentColumns)
	if err != nil {
		return nil, err
	}
	doc := &model.PaperDocument{}
	if err := p.db.GetContext(ctx, doc, sqlStr, args...); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.ErrNotFound
		}
		return nil, fmt.Errorf("%w: get document: %v", errors.ErrUpstream, err)
	}
	return doc, nil
}

func (p *pgvectorIndex) Upload(ctx context.Context, docs ...*model.PaperDocument) error {
	if len(docs) == 0 {
		return nil
	}
	now := time.Now().Unix()
	rows := make([]map[string]interface{}, 0, len(docs))
	for _, doc := range docs {
		docType := doc.Type
		if docType == "" {
			docType = model.DocumentTypePaper
		}
		var vec interface{}
		if len(doc.ContentVector) > 0 {
			vec = pgvector.NewVector(doc.ContentVector)
		}
		rows = append(rows, map[string]interface{}{
			"id":             doc.ID,
			"doc_type":       docType,
			"title":          doc.Title,
			"content":        doc.Content,
			"url":            doc.URL,
			"content_vector": vec,
			"ctime":          now,
		})
	}
	sqlStr, args, err := dbutil.Upsert(documentTable, "id", rows)
	if err != nil {
		return err
	}
	if _, err := p.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("%w: upload documents: %v", errors.ErrUpstream, err)
	}
	return nil
}

const hybridQuery = `
	WITH semantic AS (
		SELECT id, ROW_NUMBER() OVER (ORDER BY content_vector <=> ?) AS rnk
		FROM paper_documents
		WHERE doc_type = ? AND content_vector IS NOT NULL
		ORDER BY content_vector <=> ?
		LIMIT ?
	), lexical AS (
		SELECT id, ROW_NUMBER() OVER (ORDER BY ts_rank(content_tsv, plainto_tsquery('english', ?)) DESC) AS rnk
		FROM paper_documents
		WHERE doc_type = ? AND content_tsv @@ plainto_tsquery('english', ?)
		ORDER BY ts_rank(content_tsv, plainto_tsquery('english', ?)) DESC
		LIMIT ?
	)
	SELECT d.id, d.content,
		COALESCE(1.0 / (? + s.rnk), 0) + COALESCE(1.0 / (? + l.rnk), 0) AS score
	FROM semantic s
	FULL OUTER JOIN lexical l ON s.id = l.id
	JOIN paper_documents d ON d.id = COALESCE(s.id, l.id)
	ORDER BY score DESC
	LIMIT ?
`

// HybridSearch fuses the k nearest vectors with the best lexical matches by reciprocal rank.
func (p *pgvectorIndex) HybridSearch(ctx context.Context, text string, vector []float32, k int, top int) ([]model.SearchHit, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: query vector is required", errors.ErrInvalid)
	}
	sqlStr, args := hybridSearchSQL(text, vector, k, top)
	var rows []hitRow
	if err := p.db.SelectContext(ctx, &rows, sqlStr, args...); err != nil {
		return nil, fmt.Errorf("%w: hybrid search: %v", errors.ErrUpstream, err)
	}
	hits := make([]model.SearchHit, 0, len(rows))
	for _, r := range rows {
		hits = append(hits, model.SearchHit{ID: r.ID, Content: r.Content, Score: r.Score})
	}
	return hits, nil
}

// hybridSearchSQL only ranks paper documents; cached question sets share the table.
func hybridSearchSQL(text string, vector []float32, k int, top int) (string, []interface{}) {
	vec := pgvector.NewVector(vector)
	args := []interface{}{
		vec, model.DocumentTypePaper, vec, k,
		text, model.DocumentTypePaper, text, text, top,
		rrfK, rrfK, top,
	}
	return dbutil.Rebind(hybridQuery, args)
}

func createPgvectorIndex(ctx context.Context, args interface{}) (Index, error) {
	cfg := &pgvectorConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	conn, err := db.Open(ctx, cfg.Config)
	if err != nil {
		return nil, fmt.Errorf("open pgvector database: %w", err)
	}
	if !cfg.SkipMigrations {
		if err := db.ApplyMigrations(ctx, conn); err != nil {
			conn.Close()
			return nil, fmt.Errorf("apply migrations: %w", err)
		}
	}
	return NewPgvectorIndex(conn), nil
}

func init() {
	Register("pgvector", createPgvectorIndex)
}
