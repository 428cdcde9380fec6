package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Veraticus/spice-sorter/internal/importer"
	"github.com/Veraticus/spice-sorter/internal/model"
)

// importStatement accepts a multipart "file" field. The format comes from
// the "format" form value or the file extension; dry_run=true previews
// without writing.
func (s *Server) importStatement(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		badRequest(c, fmt.Errorf("missing statement file: %w", err))
		return
	}

	format, err := resolveFormat(c.PostForm("format"), c.Query("format"), header.Filename)
	if err != nil {
		writeError(c, err)
		return
	}
	dryRun, _ := strconv.ParseBool(c.Query("dry_run"))

	f, err := header.Open()
	if err != nil {
		writeError(c, fmt.Errorf("failed to open upload: %w", err))
		return
	}
	defer func() { _ = f.Close() }()

	ctx := c.Request.Context()
	rows, err := importer.Parse(ctx, f, format)
	if err != nil {
		writeError(c, err)
		return
	}

	if dryRun {
		preview, err := s.importer.Preview(ctx, rows)
		if err != nil {
			writeError(c, err)
			return
		}
		out := make([]previewRowJSON, len(preview))
		for i := range preview {
			out[i] = previewRowJSON{
				Transaction: toJSON(&preview[i].Transaction),
				Line:        preview[i].Line,
				Duplicate:   preview[i].Duplicate,
			}
		}
		c.JSON(http.StatusOK, gin.H{"rows": out})
		return
	}

	report, err := s.importer.Commit(ctx, rows)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, importResponse{
		Inserted:   toJSONList(report.Inserted),
		Duplicates: nonNil(report.Duplicates),
		Failed:     toFailureJSON(report.Failed),
		Total:      report.Total,
	})
}

func resolveFormat(form, query, filename string) (importer.Format, error) {
	for _, name := range []string{form, query} {
		if name != "" {
			return importer.ParseFormat(name)
		}
	}
	return importer.DetectFormat(filename)
}

func (s *Server) listOverrides(c *gin.Context) {
	entries, err := s.store.ListOverrides(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOverrideJSON(entries))
}

func (s *Server) listCategories(c *gin.Context) {
	custom, err := s.store.ListCustomCategories(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	builtin := model.BuiltinCategories()
	names := make([]string, len(builtin))
	for i, cat := range builtin {
		names[i] = cat.String()
	}
	c.JSON(http.StatusOK, gin.H{
		"builtin": names,
		"custom":  nonNil(custom),
	})
}

func (s *Server) addCategory(c *gin.Context) {
	var req categoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	name, err := s.store.AddCustomCategory(c.Request.Context(), req.Name)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"name": name})
}

func (s *Server) removeCategory(c *gin.Context) {
	removed, err := s.store.RemoveCustomCategory(c.Request.Context(), c.Param("name"))
	if err != nil {
		writeError(c, err)
		return
	}
	if !removed {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) reclassifyDryRun(c *gin.Context) {
	changes, err := s.reclassifier.DryRun(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"changes": toChangeJSON(changes)})
}

func (s *Server) reclassifyApply(c *gin.Context) {
	var req applyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	report, err := s.reclassifier.Apply(c.Request.Context(), req.IDs)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, applyResponse{
		Applied:   nonNil(report.Applied),
		Unchanged: nonNil(report.Unchanged),
		Failed:    toFailureJSON(report.Failed),
	})
}
