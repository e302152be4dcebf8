package routes

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"

	"finrag-backend/internal/config"
	"finrag-backend/internal/logger"
	"finrag-backend/models"
	"finrag-backend/services"
	"finrag-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SetupUploadRoutes registers the document upload endpoint. Uploaded files
// are spooled to a per-request scratch directory, indexed synchronously and
// removed regardless of outcome; the index is the only state that survives
// the request.
func SetupUploadRoutes(router *gin.Engine, cfg *config.Config, indexer *services.Indexer) {
	router.POST("/upload", func(c *gin.Context) {
		form, err := c.MultipartForm()
		if err != nil {
			utils.RespondWithBadRequest(c, "Invalid multipart form", gin.H{"error": err.Error()})
			return
		}

		files := form.File["files"]
		if len(files) == 0 {
			utils.RespondWithBadRequest(c, "No files were uploaded or files were empty.", nil)
			return
		}

		// Files from one request share a scratch subdirectory so original
		// filenames survive as source labels without colliding across
		// concurrent uploads.
		batchDir := filepath.Join(cfg.UploadScratchDir, uuid.NewString())
		if err := os.MkdirAll(batchDir, 0o755); err != nil {
			utils.RespondWithInternalError(c, "Failed to prepare upload directory", nil)
			return
		}
		defer func() {
			if err := os.RemoveAll(batchDir); err != nil {
				logger.Warn("Upload cleanup failed", "dir", batchDir, "error", err)
			}
		}()

		var paths []string
		var names []string
		for _, file := range files {
			if file.Filename == "" || file.Size == 0 {
				continue
			}
			if file.Size > cfg.MaxFileSize {
				utils.RespondWithBadRequest(c, "File exceeds maximum allowed size", gin.H{"filename": file.Filename})
				return
			}
			dest := filepath.Join(batchDir, filepath.Base(file.Filename))
			if err := c.SaveUploadedFile(file, dest); err != nil {
				utils.RespondWithInternalError(c, "Failed to store uploaded file", gin.H{"filename": file.Filename})
				return
			}
			paths = append(paths, dest)
			names = append(names, filepath.Base(file.Filename))
		}

		if len(paths) == 0 {
			utils.RespondWithBadRequest(c, "No files were uploaded or files were empty.", nil)
			return
		}

		message, err := indexer.Rebuild(c.Request.Context(), paths)
		if err != nil {
			switch {
			case errors.Is(err, services.ErrIndexBusy):
				utils.RespondWithConflict(c, "An index rebuild is already in progress. Please retry shortly.")
			case errors.Is(err, services.ErrNoContent):
				utils.RespondWithInternalError(c, "No valid text found in any uploaded PDF.", nil)
			default:
				logger.Error("Index rebuild failed", "error", err)
				utils.RespondWithInternalError(c, err.Error(), nil)
			}
			return
		}

		c.JSON(http.StatusOK, models.UploadResponse{
			Message:   message,
			Filenames: names,
		})
	})
}
