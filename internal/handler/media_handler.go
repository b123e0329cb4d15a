package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	appErrors "github.com/agrisetu/agrisetu-api/pkg/errors"
	"github.com/agrisetu/agrisetu-api/pkg/response"
	"github.com/agrisetu/agrisetu-api/pkg/storage"
)

// MediaHandler streams stored course media behind signed URLs.
type MediaHandler struct {
	store  *storage.MediaStore
	signer *storage.SignedURLSigner
}

// NewMediaHandler creates a new handler.
func NewMediaHandler(store *storage.MediaStore, signer *storage.SignedURLSigner) *MediaHandler {
	return &MediaHandler{store: store, signer: signer}
}

// Download godoc
// @Summary Download course media
// @Description Stream a media file referenced by a signed URL token
// @Tags Media
// @Produce octet-stream
// @Param path path string true "Relative media path"
// @Param token query string true "Signed URL token"
// @Success 200 {file} binary
// @Failure 401 {object} response.Envelope
// @Router /media/{path} [get]
func (h *MediaHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "media token required"))
		return
	}

	_, relPath, _, err := h.signer.Parse(token)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, http.StatusUnauthorized, "invalid media token"))
		return
	}

	// The token authorizes exactly the path it was minted for.
	requested := strings.TrimPrefix(c.Param("path"), "/")
	if requested != relPath {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "token does not match requested file"))
		return
	}

	file, err := h.store.Open(relPath)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "media file not found"))
		return
	}
	defer file.Close() //nolint:errcheck

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stat media file"))
		return
	}

	c.Header("Cache-Control", "private, max-age=300")
	http.ServeContent(c.Writer, c.Request, info.Name(), info.ModTime(), file)
}
