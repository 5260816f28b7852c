package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourorg/table-export/internal/bridge"
	"github.com/yourorg/table-export/internal/rowsource"
	"github.com/yourorg/table-export/internal/types"
)

// MaxUploadBytes bounds the spreadsheet accepted by UploadFile.
const MaxUploadBytes = 64 << 20

type UploadRequest struct {
	FileName string `form:"fileName"`
	Title    string `form:"title"`
	// Columns is an optional JSON array of column descriptors; without it
	// every header cell becomes a plain column.
	Columns string `form:"columns"`
}

// UploadFile exports a multipart "file" (json, csv, tsv, xlsx or xls) and
// streams progress the same way CreateExport does.
func (h *ExportHandler) UploadFile(c *gin.Context) {
	var req UploadRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file upload error: " + err.Error()})
		return
	}
	defer file.Close()

	b, err := io.ReadAll(io.LimitReader(file, MaxUploadBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(b) > MaxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}

	tbl, err := rowsource.Parse(header.Filename, b)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, rowsource.ErrUnsupported) {
			status = http.StatusUnsupportedMediaType
		}
		c.JSON(status, gin.H{"error": "file parsing error: " + err.Error()})
		return
	}

	cols := tbl.Columns()
	if req.Columns != "" {
		var given []types.ColumnDescriptor
		if err := decodeJSONBytes([]byte(req.Columns), &given); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "columns: " + err.Error()})
			return
		}
		cols = given
	}

	h.stream(c, bridge.Request{
		Data:     tbl.Rows,
		Columns:  cols,
		FileName: firstNonEmpty(req.FileName, tbl.FileName),
		Title:    firstNonEmpty(req.Title, tbl.Title),
	})
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
