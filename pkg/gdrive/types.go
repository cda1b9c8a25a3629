package gdrive

import (
	"fmt"
	"io"
	"strings"

	"google.golang.org/api/googleapi"
)

// FolderMimeType marks a Drive item as a folder
const FolderMimeType = "application/vnd.google-apps.folder"

// DefaultDownloadChunkSize is the number of bytes requested per ranged download call
const DefaultDownloadChunkSize int64 = 100 * 1024 * 1024

// Field selectors requested from Drive for each operation
const (
	listFields     googleapi.Field = "files(id, name, mimeType, createdTime, modifiedTime, size, owners, webViewLink)"
	searchFields   googleapi.Field = "files(id, name, mimeType, createdTime)"
	infoFields     googleapi.Field = "id, name, mimeType, createdTime, modifiedTime, size, owners, webViewLink, parents, description"
	uploadFields   googleapi.Field = "id, name, webViewLink"
	downloadFields googleapi.Field = "name, mimeType"
	updateFields   googleapi.Field = "id, name, modifiedTime"
	folderFields   googleapi.Field = "id, name"
)

// UploadRequest describes a file to create in Google Drive
type UploadRequest struct {
	Name     string
	MimeType string
	FolderID string
	Content  io.Reader
}

// escapeQueryValue escapes a literal for use inside single quotes in a Drive query
func escapeQueryValue(value string) string {
	value = strings.ReplaceAll(value, `\`, `\\`)
	return strings.ReplaceAll(value, `'`, `\'`)
}

// ListQuery builds the query for non-trashed items, optionally restricted to a parent folder
func ListQuery(folderID string) string {
	query := "trashed=false"
	if folderID != "" {
		query = fmt.Sprintf("%s and '%s' in parents", query, escapeQueryValue(folderID))
	}
	return query
}

// SearchQuery builds the query for non-trashed items whose name contains text
func SearchQuery(text string) string {
	return fmt.Sprintf("name contains '%s' and trashed=false", escapeQueryValue(text))
}
