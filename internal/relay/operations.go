package relay

import (
	"context"
	"errors"
	"io"

	"github.com/cyberxapi/gdrive-storage-api/internal/apperr"
	"github.com/cyberxapi/gdrive-storage-api/internal/database"
	"github.com/cyberxapi/gdrive-storage-api/internal/tracing"
	"github.com/cyberxapi/gdrive-storage-api/pkg/gdrive"
	"google.golang.org/api/drive/v3"
)

// StatusSuccess is the status of every successful envelope
const StatusSuccess = "success"

const defaultMimeType = "application/octet-stream"

var errHistoryDisabled = errors.New("operation history is disabled")

// ListResult is the envelope for List
type ListResult struct {
	Status string        `json:"status"`
	Count  int           `json:"count"`
	Files  []*drive.File `json:"files"`
}

// SearchResult is the envelope for Search
type SearchResult struct {
	Status string        `json:"status"`
	Query  string        `json:"query"`
	Count  int           `json:"count"`
	Files  []*drive.File `json:"files"`
}

// FileResult is the envelope for GetInfo, Upload and Update
type FileResult struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	File    *drive.File `json:"file"`
}

// FolderResult is the envelope for CreateFolder
type FolderResult struct {
	Status  string      `json:"status"`
	Message string      `json:"message"`
	Folder  *drive.File `json:"folder"`
}

// MessageResult is the envelope for Delete
type MessageResult struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// HistoryResult is the envelope for History
type HistoryResult struct {
	Status     string                      `json:"status"`
	Count      int                         `json:"count"`
	Total      int64                       `json:"total"`
	Operations []database.OperationHistory `json:"operations"`
}

// DownloadResult describes content written by Download
type DownloadResult struct {
	Name     string
	MimeType string
	Size     int64
}

// List returns non-trashed items, optionally only those inside folderID
func (r *Relay) List(ctx context.Context, apiKey, folderID string, limit int64) (*ListResult, error) {
	ctx, op := r.begin(ctx, OpList)
	op.fileID = folderID
	if err := r.gate.Check(apiKey); err != nil {
		return nil, r.finish(op, err)
	}

	files, err := r.provider.ListFiles(ctx, folderID, limit)
	if err != nil {
		return nil, r.finish(op, err)
	}

	files = nonNil(files)
	return &ListResult{Status: StatusSuccess, Count: len(files), Files: files}, r.finish(op, nil)
}

// GetInfo returns one item's metadata
func (r *Relay) GetInfo(ctx context.Context, apiKey, fileID string) (*FileResult, error) {
	ctx, op := r.begin(ctx, OpGetInfo)
	op.fileID = fileID
	if err := r.gate.Check(apiKey); err != nil {
		return nil, r.finish(op, err)
	}

	file, err := r.provider.GetFileInfo(ctx, fileID)
	if err != nil {
		return nil, r.finish(op, err)
	}

	op.fileName = file.Name
	return &FileResult{Status: StatusSuccess, File: file}, r.finish(op, nil)
}

// Upload streams req.Content into a new item. A nil Content means the request carried no file.
func (r *Relay) Upload(ctx context.Context, apiKey string, req gdrive.UploadRequest) (*FileResult, error) {
	ctx, op := r.begin(ctx, OpUpload)
	op.fileName = req.Name
	if err := r.gate.Check(apiKey); err != nil {
		return nil, r.finish(op, err)
	}
	if req.Content == nil {
		return nil, r.finish(op, apperr.Invalid("file: field required"))
	}

	counter := &countingReader{r: req.Content}
	req.Content = counter

	file, err := r.provider.UploadFile(ctx, req)
	op.bytes = counter.n
	r.metrics.AddUploadedBytes(counter.n)
	if err != nil {
		return nil, r.finish(op, err)
	}

	op.fileID = file.Id
	op.fileName = file.Name
	op.link = file.WebViewLink
	return &FileResult{
		Status:  StatusSuccess,
		Message: "File uploaded successfully",
		File:    file,
	}, r.finish(op, nil)
}

// Download writes an item's content to w. Nothing should be sent to the client
// until it returns, since a failure part way through is reported as an error.
func (r *Relay) Download(ctx context.Context, apiKey, fileID string, w io.Writer) (*DownloadResult, error) {
	ctx, op := r.begin(ctx, OpDownload)
	op.fileID = fileID
	if err := r.gate.Check(apiKey); err != nil {
		return nil, r.finish(op, err)
	}

	file, n, err := r.provider.DownloadFile(ctx, fileID, w)
	op.bytes = n
	r.metrics.AddDownloadedBytes(n)
	if err != nil {
		return nil, r.finish(op, err)
	}

	result := &DownloadResult{Name: file.Name, MimeType: file.MimeType, Size: n}
	if result.MimeType == "" {
		result.MimeType = defaultMimeType
	}
	op.fileName = file.Name
	return result, r.finish(op, nil)
}

// Delete removes one item
func (r *Relay) Delete(ctx context.Context, apiKey, fileID string) (*MessageResult, error) {
	ctx, op := r.begin(ctx, OpDelete)
	op.fileID = fileID
	if err := r.gate.Check(apiKey); err != nil {
		return nil, r.finish(op, err)
	}

	if err := r.provider.DeleteFile(ctx, fileID); err != nil {
		return nil, r.finish(op, err)
	}

	return &MessageResult{
		Status:  StatusSuccess,
		Message: "File " + fileID + " deleted successfully",
	}, r.finish(op, nil)
}

// Update renames an item. An empty name sends an empty patch.
func (r *Relay) Update(ctx context.Context, apiKey, fileID, name string) (*FileResult, error) {
	ctx, op := r.begin(ctx, OpUpdate)
	op.fileID = fileID
	op.fileName = name
	if err := r.gate.Check(apiKey); err != nil {
		return nil, r.finish(op, err)
	}

	file, err := r.provider.UpdateFile(ctx, fileID, name)
	if err != nil {
		return nil, r.finish(op, err)
	}

	op.fileName = file.Name
	return &FileResult{
		Status:  StatusSuccess,
		Message: "File updated successfully",
		File:    file,
	}, r.finish(op, nil)
}

// CreateFolder creates a folder, inside parentID when given
func (r *Relay) CreateFolder(ctx context.Context, apiKey, name, parentID string) (*FolderResult, error) {
	ctx, op := r.begin(ctx, OpCreateFolder)
	op.fileName = name
	if err := r.gate.Check(apiKey); err != nil {
		return nil, r.finish(op, err)
	}
	if name == "" {
		return nil, r.finish(op, apperr.Invalid("folder_name: field required"))
	}

	folder, err := r.provider.CreateFolder(ctx, name, parentID)
	if err != nil {
		return nil, r.finish(op, err)
	}

	op.fileID = folder.Id
	op.link = folder.WebViewLink
	return &FolderResult{
		Status:  StatusSuccess,
		Message: "Folder created successfully",
		Folder:  folder,
	}, r.finish(op, nil)
}

// Search returns non-trashed items whose name contains query
func (r *Relay) Search(ctx context.Context, apiKey, query string, limit int64) (*SearchResult, error) {
	ctx, op := r.begin(ctx, OpSearch)
	if err := r.gate.Check(apiKey); err != nil {
		return nil, r.finish(op, err)
	}
	if query == "" {
		return nil, r.finish(op, apperr.Invalid("q: field required"))
	}

	files, err := r.provider.SearchFiles(ctx, query, limit)
	if err != nil {
		return nil, r.finish(op, err)
	}

	files = nonNil(files)
	return &SearchResult{Status: StatusSuccess, Query: query, Count: len(files), Files: files}, r.finish(op, nil)
}

// History returns recorded operations, newest first. Reading history is not itself recorded.
func (r *Relay) History(ctx context.Context, apiKey string, limit, offset int) (*HistoryResult, error) {
	if err := r.gate.Check(apiKey); err != nil {
		return nil, err
	}
	if r.history == nil {
		return nil, apperr.Internal(errHistoryDisabled)
	}

	_, span := tracing.Start(ctx, "relay.history")
	defer span.End()

	operations, err := r.history.GetOperationHistory(limit, offset)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	total, err := r.history.CountOperations()
	if err != nil {
		return nil, apperr.Internal(err)
	}

	if operations == nil {
		operations = []database.OperationHistory{}
	}
	return &HistoryResult{
		Status:     StatusSuccess,
		Count:      len(operations),
		Total:      total,
		Operations: operations,
	}, nil
}

func nonNil(files []*drive.File) []*drive.File {
	if files == nil {
		return []*drive.File{}
	}
	return files
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
