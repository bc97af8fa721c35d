package activities

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
	"go.uber.org/zap"

	"github.com/yourorg/calibr8/internal/db"
	"github.com/yourorg/calibr8/internal/iopkg"
	"github.com/yourorg/calibr8/internal/masterlist"
	"github.com/yourorg/calibr8/internal/metrics"
	"github.com/yourorg/calibr8/internal/storage"
	"github.com/yourorg/calibr8/internal/types"
)

// Config wires the activities to their collaborators.
type Config struct {
	Store       storage.ObjectStore
	Masterlists db.MasterlistRepository
	// Tags writes parsed rows: COPY on postgres, batched inserts on sqlite.
	Tags db.TagWriter
	Log  *zap.Logger
}

type Activities struct {
	cfg Config
}

func New(cfg Config) *Activities {
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}
	return &Activities{cfg: cfg}
}

// ParseMasterlistFile reads the archived file and extracts its tags.
func (a *Activities) ParseMasterlistFile(ctx context.Context, p types.MasterlistImportParams) (types.ParsedMasterlist, error) {
	activity.GetLogger(ctx).Info("parsing masterlist", "uri", p.FileURI, "file", p.FileName)
	if !masterlist.Supported(p.FileName) {
		return types.ParsedMasterlist{}, temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("unsupported masterlist %q", p.FileName), "InvalidMasterlist", masterlist.ErrUnsupportedType)
	}

	rc, size, err := a.cfg.Store.Get(ctx, p.FileURI)
	if errors.Is(err, iopkg.ErrUnsupportedScheme) || errors.Is(err, storage.ErrInvalidURI) {
		return types.ParsedMasterlist{}, temporal.NewNonRetryableApplicationError(err.Error(), "InvalidMasterlist", err)
	}
	if err != nil {
		return types.ParsedMasterlist{}, fmt.Errorf("open %s: %w", p.FileURI, err)
	}
	defer rc.Close()

	rows, err := masterlist.Parse(p.FileName, rc)
	if err != nil {
		if errors.Is(err, masterlist.ErrNoTagsColumn) || errors.Is(err, masterlist.ErrNoTags) {
			return types.ParsedMasterlist{}, temporal.NewNonRetryableApplicationError(err.Error(), "InvalidMasterlist", err)
		}
		return types.ParsedMasterlist{}, fmt.Errorf("parse %s: %w", p.FileName, err)
	}
	staged := rowsURI(p.FileURI)
	if err := a.stageRows(ctx, staged, rows); err != nil {
		return types.ParsedMasterlist{}, fmt.Errorf("stage rows to %s: %w", staged, err)
	}
	a.cfg.Log.Info("masterlist parsed",
		zap.String("file", p.FileName),
		zap.Int64("bytes", size),
		zap.Int("tags", len(rows)),
		zap.String("rows_uri", staged))
	return types.ParsedMasterlist{FileName: p.FileName, FileURI: p.FileURI, RowsURI: staged, TagCount: len(rows)}, nil
}

// SaveMasterlistTags records the masterlist file and writes its tags. A
// retry after a lost result finds the imported file by its archive URI and
// returns it again; a failed write removes the file it created.
func (a *Activities) SaveMasterlistTags(ctx context.Context, parsed types.ParsedMasterlist) (types.MasterlistImportResult, error) {
	ml, err := a.cfg.Masterlists.ByArchiveURI(ctx, parsed.FileURI)
	switch {
	case err == nil:
		n, err := a.cfg.Masterlists.TagCount(ctx, ml.FileID)
		if err != nil {
			return types.MasterlistImportResult{}, fmt.Errorf("count tags for file %d: %w", ml.FileID, err)
		}
		if n > 0 {
			a.cfg.Log.Info("masterlist already imported", zap.Int64("file_id", ml.FileID), zap.Int64("tags", n))
			return types.MasterlistImportResult{FileID: ml.FileID, FileName: ml.FileName, TagsImported: n}, nil
		}
	case errors.Is(err, db.ErrNotFound):
		ml, err = a.cfg.Masterlists.CreateFile(ctx, parsed.FileName, parsed.FileURI)
		if err != nil {
			return types.MasterlistImportResult{}, fmt.Errorf("create masterlist: %w", err)
		}
	default:
		return types.MasterlistImportResult{}, fmt.Errorf("find masterlist: %w", err)
	}
	activity.RecordHeartbeat(ctx, ml.FileID)

	rows, err := a.loadRows(ctx, parsed.RowsURI)
	if err != nil {
		a.discard(ctx, ml.FileID)
		return types.MasterlistImportResult{}, fmt.Errorf("load rows from %s: %w", parsed.RowsURI, err)
	}
	n, err := a.cfg.Tags.WriteTags(ctx, ml.FileID, rows)
	if err != nil {
		a.discard(ctx, ml.FileID)
		return types.MasterlistImportResult{}, fmt.Errorf("write tags for file %d: %w", ml.FileID, err)
	}
	metrics.TagsImported.Add(float64(n))
	a.cfg.Log.Info("masterlist tags saved", zap.Int64("file_id", ml.FileID), zap.Int64("tags", n))
	return types.MasterlistImportResult{FileID: ml.FileID, FileName: ml.FileName, TagsImported: n}, nil
}

// discard drops a masterlist whose tags could not be written.
func (a *Activities) discard(ctx context.Context, fileID int64) {
	if err := a.cfg.Masterlists.Delete(context.WithoutCancel(ctx), fileID); err != nil {
		a.cfg.Log.Warn("could not remove empty masterlist", zap.Int64("file_id", fileID), zap.Error(err))
	}
}

// rowsURI is where parsed rows wait for the save activity, next to the archive.
func rowsURI(fileURI string) string { return fileURI + ".tags.jsonl" }

// stageRows writes rows as JSON lines to uri.
func (a *Activities) stageRows(ctx context.Context, uri string, rows []db.TagRow) error {
	pr, pw := io.Pipe()
	go func() {
		enc := json.NewEncoder(pw)
		for _, r := range rows {
			if err := enc.Encode(r); err != nil {
				pw.CloseWithError(err)
				return
			}
		}
		pw.Close()
	}()
	_, err := a.cfg.Store.Put(ctx, uri, pr)
	// unblocks the encoder when Put stopped reading early
	pr.CloseWithError(err)
	return err
}

const heartbeatEvery = 5000

func (a *Activities) loadRows(ctx context.Context, uri string) ([]db.TagRow, error) {
	rc, _, err := a.cfg.Store.Get(ctx, uri)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var rows []db.TagRow
	dec := json.NewDecoder(rc)
	for {
		var r db.TagRow
		err := dec.Decode(&r)
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", len(rows)+1, err)
		}
		rows = append(rows, r)
		if len(rows)%heartbeatEvery == 0 {
			activity.RecordHeartbeat(ctx, len(rows))
		}
	}
}
