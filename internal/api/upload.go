package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourorg/calibr8/internal/masterlist"
	"github.com/yourorg/calibr8/internal/metrics"
)

// DefaultMaxUploadBytes bounds a masterlist upload request unless
// Deps.MaxUploadBytes says otherwise.
const DefaultMaxUploadBytes int64 = 32 << 20

// UploadMasterlist parses an uploaded CSV/XLSX/XLS file, archives the
// original when an archive is configured, and stores its tags.
func (h *Handler) UploadMasterlist(c *gin.Context) {
	if c.Request.ContentLength > h.maxUpload {
		h.uploadTooLarge(c)
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			h.uploadTooLarge(c)
			return
		}
		detail(c, http.StatusBadRequest, "File upload error: "+err.Error())
		return
	}
	defer file.Close()

	if !masterlist.Supported(header.Filename) {
		detail(c, http.StatusBadRequest, "Invalid file type")
		return
	}
	content, err := io.ReadAll(file)
	if err != nil {
		detail(c, http.StatusBadRequest, "File upload error: "+err.Error())
		return
	}

	rows, err := masterlist.Parse(header.Filename, bytes.NewReader(content))
	if err != nil {
		if !errors.Is(err, masterlist.ErrNoTagsColumn) && !errors.Is(err, masterlist.ErrNoTags) {
			err = errors.New("file parsing error: " + err.Error())
		}
		detail(c, http.StatusBadRequest, err.Error())
		return
	}

	ctx := c.Request.Context()
	var archiveURI string
	if h.archive.Enabled() {
		archiveURI, err = h.archive.Save(ctx, header.Filename, bytes.NewReader(content))
		if err != nil {
			// the tags are still worth keeping without the archived copy
			h.log.Warn("archive masterlist failed", zap.String("file", header.Filename), zap.Error(err))
			archiveURI = ""
		}
	}

	ml, n, err := h.lists.Create(ctx, header.Filename, archiveURI, rows)
	if err != nil {
		fail(c, err)
		return
	}
	metrics.TagsImported.Add(float64(n))
	h.log.Info("masterlist uploaded", zap.Int64("file_id", ml.FileID), zap.Int64("tags", n), zap.String("archive", archiveURI))

	c.JSON(http.StatusOK, gin.H{
		"message":       "Masterlist uploaded successfully",
		"file_id":       ml.FileID,
		"file_name":     ml.FileName,
		"tags_imported": n,
		"archive_uri":   archiveURI,
	})
}

func (h *Handler) uploadTooLarge(c *gin.Context) {
	h.log.Warn("masterlist upload rejected", zap.Int64("content_length", c.Request.ContentLength), zap.Int64("limit", h.maxUpload))
	detail(c, http.StatusRequestEntityTooLarge, fmt.Sprintf("File too large: limit is %d bytes", h.maxUpload))
}

func (h *Handler) TagsByFile(c *gin.Context) {
	fileID, err := strconv.ParseInt(c.Query("file_id"), 10, 64)
	if err != nil {
		detail(c, http.StatusBadRequest, "file_id query parameter is required")
		return
	}
	tags, err := h.lists.Tags(c.Request.Context(), fileID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, tags)
}

func (h *Handler) ListMasterlists(c *gin.Context) {
	list, err := h.lists.List(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) LatestMasterlist(c *gin.Context) {
	ml, err := h.lists.Latest(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ml)
}

func (h *Handler) GetMasterlist(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	ml, err := h.lists.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ml)
}
