package db

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yourorg/calibr8/internal/models"
)

// TagRow is one tag parsed from a masterlist, with the rest of its source row.
type TagRow struct {
	Name string            `json:"name"`
	Data map[string]string `json:"data,omitempty"`
}

// TagWriter persists parsed masterlist tags under an existing masterlist file.
type TagWriter interface {
	WriteTags(ctx context.Context, fileID int64, rows []TagRow) (int64, error)
}

const tagBatchSize = 500

// GormTagWriter inserts tags in batches through gorm.
type GormTagWriter struct{ db *gorm.DB }

func NewGormTagWriter(db *gorm.DB) *GormTagWriter { return &GormTagWriter{db: db} }

func (w *GormTagWriter) WriteTags(ctx context.Context, fileID int64, rows []TagRow) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	tags := make([]models.Tag, 0, len(rows))
	for _, r := range rows {
		tags = append(tags, models.Tag{
			FileID:  fileID,
			TagName: r.Name,
			TagType: "default",
			TagData: tagData(r.Data),
		})
	}
	res := w.db.WithContext(ctx).CreateInBatches(&tags, tagBatchSize)
	if res.Error != nil {
		return 0, mapGormErr(res.Error, "tags")
	}
	return res.RowsAffected, nil
}

// WriteTags performs a COPY into the tags table; much faster than INSERTs
// for masterlists with tens of thousands of rows.
func (p *Pool) WriteTags(ctx context.Context, fileID int64, rows []TagRow) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	vals := make([][]any, 0, len(rows))
	for _, r := range rows {
		var data any
		if len(r.Data) > 0 {
			b, err := json.Marshal(r.Data)
			if err != nil {
				return 0, err
			}
			data = string(b)
		}
		vals = append(vals, []any{fileID, r.Name, "default", data})
	}
	n, err := p.CopyFrom(ctx,
		pgx.Identifier{"tags"},
		[]string{"file_id", "tag_name", "tag_type", "tag_data"},
		pgx.CopyFromRows(vals),
	)
	if err != nil {
		return 0, mapPgErr(err)
	}
	return n, nil
}

func tagData(m map[string]string) datatypes.JSON {
	if len(m) == 0 {
		return nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil
	}
	return datatypes.JSON(b)
}
