package server

import (
	"bytes"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/cyberxapi/gdrive-storage-api/internal/apperr"
	"github.com/cyberxapi/gdrive-storage-api/internal/database"
	"github.com/cyberxapi/gdrive-storage-api/pkg/gdrive"
	"github.com/labstack/echo/v4"
)

const (
	defaultLimit        = 10
	defaultHistoryLimit = database.DefaultHistoryLimit
)

func (s *Server) root(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "Google Drive Storage API",
		"version": s.config.Version,
		"endpoints": map[string]string{
			"list":          "/files?api_key=YOUR_API_KEY",
			"upload":        "POST /upload?api_key=YOUR_API_KEY",
			"download":      "/download/{file_id}?api_key=YOUR_API_KEY",
			"delete":        "DELETE /files/{file_id}?api_key=YOUR_API_KEY",
			"info":          "/files/{file_id}?api_key=YOUR_API_KEY",
			"update":        "PUT /files/{file_id}?name=NEW_NAME&api_key=YOUR_API_KEY",
			"create_folder": "POST /folders?folder_name=NAME&api_key=YOUR_API_KEY",
			"search":        "/search?q=QUERY&api_key=YOUR_API_KEY",
			"history":       "/history?api_key=YOUR_API_KEY",
			"health":        "/health",
		},
	})
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339Nano),
	})
}

func (s *Server) listFiles(c echo.Context) error {
	apiKey := c.QueryParam("api_key")
	limit, err := intParam(c, "limit", defaultLimit)
	if err != nil {
		return s.rejectInvalid(apiKey, err)
	}

	result, err := s.relay.List(c.Request().Context(), apiKey, c.QueryParam("folder_id"), int64(limit))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) getFileInfo(c echo.Context) error {
	result, err := s.relay.GetInfo(c.Request().Context(), c.QueryParam("api_key"), c.Param("file_id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// uploadFile streams the multipart "file" part straight into the provider
func (s *Server) uploadFile(c echo.Context) error {
	req := gdrive.UploadRequest{FolderID: c.QueryParam("folder_id")}

	part, err := filePart(c.Request())
	if err != nil {
		return s.rejectInvalid(c.QueryParam("api_key"), err)
	}
	if part != nil {
		defer part.Close()
		req.Name = part.FileName()
		req.MimeType = part.Header.Get(echo.HeaderContentType)
		req.Content = part
	}

	result, err := s.relay.Upload(c.Request().Context(), c.QueryParam("api_key"), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// filePart advances the multipart body to the part carrying the upload. A request
// without one returns a nil part.
func filePart(r *http.Request) (*multipart.Part, error) {
	reader, err := r.MultipartReader()
	if err != nil {
		return nil, nil
	}

	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		if err != nil {
			return nil, apperr.Invalid("file: malformed multipart body: %v", err)
		}
		if part.FormName() == "file" && part.FileName() != "" {
			return part, nil
		}
		part.Close()
	}
}

// downloadFile buffers the whole file so that a failed transfer can still be reported
func (s *Server) downloadFile(c echo.Context) error {
	var buf bytes.Buffer
	result, err := s.relay.Download(c.Request().Context(), c.QueryParam("api_key"), c.Param("file_id"), &buf)
	if err != nil {
		return err
	}

	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": result.Name})
	if disposition == "" {
		disposition = "attachment"
	}
	header := c.Response().Header()
	header.Set(echo.HeaderContentDisposition, disposition)
	header.Set(echo.HeaderContentLength, strconv.Itoa(buf.Len()))
	return c.Blob(http.StatusOK, result.MimeType, buf.Bytes())
}

func (s *Server) deleteFile(c echo.Context) error {
	result, err := s.relay.Delete(c.Request().Context(), c.QueryParam("api_key"), c.Param("file_id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) updateFile(c echo.Context) error {
	result, err := s.relay.Update(c.Request().Context(), c.QueryParam("api_key"), c.Param("file_id"), c.QueryParam("name"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) createFolder(c echo.Context) error {
	result, err := s.relay.CreateFolder(c.Request().Context(), c.QueryParam("api_key"), c.QueryParam("folder_name"), c.QueryParam("parent_id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) searchFiles(c echo.Context) error {
	apiKey := c.QueryParam("api_key")
	limit, err := intParam(c, "limit", defaultLimit)
	if err != nil {
		return s.rejectInvalid(apiKey, err)
	}

	result, err := s.relay.Search(c.Request().Context(), apiKey, c.QueryParam("q"), int64(limit))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) history(c echo.Context) error {
	apiKey := c.QueryParam("api_key")
	limit, err := intParam(c, "limit", defaultHistoryLimit)
	if err != nil {
		return s.rejectInvalid(apiKey, err)
	}
	offset, err := intParam(c, "offset", 0)
	if err != nil {
		return s.rejectInvalid(apiKey, err)
	}

	result, err := s.relay.History(c.Request().Context(), apiKey, limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// rejectInvalid reports a malformed parameter, unless the key is wrong
func (s *Server) rejectInvalid(apiKey string, err error) error {
	if authErr := s.relay.Authorize(apiKey); authErr != nil {
		return authErr
	}
	return err
}

func intParam(c echo.Context, name string, fallback int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.Invalid("%s: value is not a valid integer", name)
	}
	return value, nil
}
