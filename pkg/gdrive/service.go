package gdrive

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// ClientProvider supplies an authorized HTTP client for one request
type ClientProvider interface {
	GetClient(ctx context.Context) (*http.Client, error)
}

// Service handles Google Drive operations
type Service struct {
	authService       ClientProvider
	clientOptions     []option.ClientOption
	uploadChunkSize   int
	downloadChunkSize int64
}

// Option configures the Drive service
type Option func(*Service)

// WithClientOptions appends options passed to every drive.NewService call
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(s *Service) {
		s.clientOptions = append(s.clientOptions, opts...)
	}
}

// WithUploadChunkSize sets the resumable upload chunk size. Non-positive sizes keep the default.
func WithUploadChunkSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.uploadChunkSize = size
		}
	}
}

// WithDownloadChunkSize sets the number of bytes fetched per ranged download call
func WithDownloadChunkSize(size int64) Option {
	return func(s *Service) {
		if size > 0 {
			s.downloadChunkSize = size
		}
	}
}

// NewService creates a new Google Drive service
func NewService(authService ClientProvider, opts ...Option) *Service {
	s := &Service{
		authService:       authService,
		uploadChunkSize:   googleapi.DefaultUploadChunkSize,
		downloadChunkSize: DefaultDownloadChunkSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// newDriveService builds a fresh Drive client bound to the caller's context.
// Clients are never shared between requests.
func (s *Service) newDriveService(ctx context.Context) (*drive.Service, error) {
	client, err := s.authService.GetClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get authenticated client: %w", err)
	}

	opts := append([]option.ClientOption{option.WithHTTPClient(client)}, s.clientOptions...)
	driveService, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}
	return driveService, nil
}

// ListFiles lists non-trashed files, optionally inside one folder
func (s *Service) ListFiles(ctx context.Context, folderID string, limit int64) ([]*drive.File, error) {
	files, err := s.list(ctx, ListQuery(folderID), listFields, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	return files, nil
}

// SearchFiles lists non-trashed files whose name contains text
func (s *Service) SearchFiles(ctx context.Context, text string, limit int64) ([]*drive.File, error) {
	files, err := s.list(ctx, SearchQuery(text), searchFields, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search files: %w", err)
	}
	return files, nil
}

func (s *Service) list(ctx context.Context, query string, fields googleapi.Field, limit int64) ([]*drive.File, error) {
	driveService, err := s.newDriveService(ctx)
	if err != nil {
		return nil, err
	}

	call := driveService.Files.List().
		Q(query).
		Spaces("drive").
		Fields(fields).
		Context(ctx)

	if limit > 0 {
		call = call.PageSize(limit)
	}

	res, err := call.Do()
	if err != nil {
		return nil, err
	}

	if res.Files == nil {
		return []*drive.File{}, nil
	}
	return res.Files, nil
}

// GetFileInfo gets information about a file
func (s *Service) GetFileInfo(ctx context.Context, fileID string) (*drive.File, error) {
	driveService, err := s.newDriveService(ctx)
	if err != nil {
		return nil, err
	}

	file, err := driveService.Files.Get(fileID).
		Fields(infoFields).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get file info: %w", err)
	}

	return file, nil
}

// UploadFile streams req.Content into a new Drive file as a resumable upload holding
// at most one chunk in memory.
func (s *Service) UploadFile(ctx context.Context, req UploadRequest) (*drive.File, error) {
	driveService, err := s.newDriveService(ctx)
	if err != nil {
		return nil, err
	}

	driveFile := &drive.File{
		Name:     req.Name,
		MimeType: req.MimeType,
	}

	// Set parent folder if provided
	if req.FolderID != "" {
		driveFile.Parents = []string{req.FolderID}
	}

	mediaOptions := []googleapi.MediaOption{googleapi.ChunkSize(s.uploadChunkSize)}
	if req.MimeType != "" {
		mediaOptions = append(mediaOptions, googleapi.ContentType(req.MimeType))
	}

	res, err := driveService.Files.Create(driveFile).
		Media(req.Content, mediaOptions...).
		Fields(uploadFields).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to upload file to drive: %w", err)
	}

	return res, nil
}

// DownloadFile writes the content of a file to w using ranged requests and returns the
// file's name and MIME type together with the number of bytes written
func (s *Service) DownloadFile(ctx context.Context, fileID string, w io.Writer) (*drive.File, int64, error) {
	driveService, err := s.newDriveService(ctx)
	if err != nil {
		return nil, 0, err
	}

	file, err := driveService.Files.Get(fileID).
		Fields(downloadFields).
		Context(ctx).
		Do()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get file info: %w", err)
	}

	downloader := newChunkDownloader(driveService.Files, fileID, s.downloadChunkSize)
	for !downloader.Done() {
		if err := downloader.NextChunk(ctx, w); err != nil {
			return nil, downloader.Progress(), fmt.Errorf("failed to download file: %w", err)
		}
	}

	return file, downloader.Progress(), nil
}

// DeleteFile deletes a file from Google Drive
func (s *Service) DeleteFile(ctx context.Context, fileID string) error {
	driveService, err := s.newDriveService(ctx)
	if err != nil {
		return err
	}

	err = driveService.Files.Delete(fileID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}

	return nil
}

// UpdateFile patches the metadata of a file. An empty name sends an empty patch.
func (s *Service) UpdateFile(ctx context.Context, fileID, name string) (*drive.File, error) {
	driveService, err := s.newDriveService(ctx)
	if err != nil {
		return nil, err
	}

	patch := &drive.File{}
	if name != "" {
		patch.Name = name
	}

	res, err := driveService.Files.Update(fileID, patch).
		Fields(updateFields).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to update file: %w", err)
	}

	return res, nil
}

// CreateFolder creates a folder in Google Drive
func (s *Service) CreateFolder(ctx context.Context, name, parentFolderID string) (*drive.File, error) {
	driveService, err := s.newDriveService(ctx)
	if err != nil {
		return nil, err
	}

	folder := &drive.File{
		Name:     name,
		MimeType: FolderMimeType,
	}

	// Set parent folder if provided
	if parentFolderID != "" {
		folder.Parents = []string{parentFolderID}
	}

	res, err := driveService.Files.Create(folder).
		Fields(folderFields).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to create folder: %w", err)
	}

	return res, nil
}

// CheckAccess makes a cheap API call to confirm the credentials are accepted and returns
// the account's email address
func (s *Service) CheckAccess(ctx context.Context) (string, error) {
	driveService, err := s.newDriveService(ctx)
	if err != nil {
		return "", err
	}

	about, err := driveService.About.Get().Fields("user").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("credential validation failed: %w", err)
	}

	if about.User == nil {
		return "", nil
	}
	return about.User.EmailAddress, nil
}
