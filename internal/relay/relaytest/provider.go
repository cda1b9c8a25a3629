// Package relaytest provides an in-memory provider for exercising the relay and
// the HTTP server without a Drive endpoint.
package relaytest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/cyberxapi/gdrive-storage-api/pkg/gdrive"
	"google.golang.org/api/drive/v3"
)

// Provider stores items in memory. Its zero value is not usable; call NewProvider.
type Provider struct {
	mu      sync.Mutex
	order   []string
	files   map[string]*drive.File
	content map[string][]byte
	nextID  int
	calls   []string

	// Err, when set, is returned by every call
	Err error
}

// NewProvider creates an empty provider
func NewProvider() *Provider {
	return &Provider{
		files:   make(map[string]*drive.File),
		content: make(map[string][]byte),
	}
}

// Add stores an item and returns its id
func (p *Provider) Add(name, mimeType string, content []byte, parents ...string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.add(name, mimeType, content, parents)
}

// Trash marks an item trashed so list and search skip it
func (p *Provider) Trash(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if f, ok := p.files[id]; ok {
		f.Trashed = true
	}
}

// Calls returns the names of provider methods invoked so far
func (p *Provider) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

func (p *Provider) add(name, mimeType string, content []byte, parents []string) string {
	p.nextID++
	id := fmt.Sprintf("file-%d", p.nextID)
	now := time.Now().UTC().Format(time.RFC3339)
	p.files[id] = &drive.File{
		Id:           id,
		Name:         name,
		MimeType:     mimeType,
		Parents:      parents,
		Size:         int64(len(content)),
		CreatedTime:  now,
		ModifiedTime: now,
		WebViewLink:  "https://drive.google.com/file/d/" + id + "/view",
	}
	p.content[id] = content
	p.order = append(p.order, id)
	return id
}

func (p *Provider) begin(call string) error {
	p.calls = append(p.calls, call)
	return p.Err
}

func (p *Provider) get(id string) (*drive.File, error) {
	f, ok := p.files[id]
	if !ok {
		return nil, fmt.Errorf("googleapi: Error 404: File not found: %s., notFound", id)
	}
	return f, nil
}

func (p *Provider) filter(limit int64, keep func(*drive.File) bool) []*drive.File {
	var out []*drive.File
	for _, id := range p.order {
		f := p.files[id]
		if f.Trashed || !keep(f) {
			continue
		}
		copied := *f
		out = append(out, &copied)
		if limit > 0 && int64(len(out)) == limit {
			break
		}
	}
	return out
}

func (p *Provider) ListFiles(ctx context.Context, folderID string, limit int64) ([]*drive.File, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.begin("ListFiles"); err != nil {
		return nil, err
	}

	return p.filter(limit, func(f *drive.File) bool {
		if folderID == "" {
			return true
		}
		for _, parent := range f.Parents {
			if parent == folderID {
				return true
			}
		}
		return false
	}), nil
}

func (p *Provider) SearchFiles(ctx context.Context, text string, limit int64) ([]*drive.File, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.begin("SearchFiles"); err != nil {
		return nil, err
	}

	return p.filter(limit, func(f *drive.File) bool {
		return strings.Contains(f.Name, text)
	}), nil
}

func (p *Provider) GetFileInfo(ctx context.Context, fileID string) (*drive.File, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.begin("GetFileInfo"); err != nil {
		return nil, err
	}

	f, err := p.get(fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to get file info: %w", err)
	}
	copied := *f
	return &copied, nil
}

func (p *Provider) UploadFile(ctx context.Context, req gdrive.UploadRequest) (*drive.File, error) {
	content, readErr := io.ReadAll(req.Content)

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.begin("UploadFile"); err != nil {
		return nil, err
	}
	if readErr != nil {
		return nil, fmt.Errorf("failed to upload file to drive: %w", readErr)
	}

	var parents []string
	if req.FolderID != "" {
		parents = []string{req.FolderID}
	}
	id := p.add(req.Name, req.MimeType, content, parents)
	f := p.files[id]
	return &drive.File{Id: f.Id, Name: f.Name, WebViewLink: f.WebViewLink}, nil
}

func (p *Provider) DownloadFile(ctx context.Context, fileID string, w io.Writer) (*drive.File, int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.begin("DownloadFile"); err != nil {
		return nil, 0, err
	}

	f, err := p.get(fileID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get file info: %w", err)
	}
	n, err := io.Copy(w, bytes.NewReader(p.content[fileID]))
	if err != nil {
		return nil, n, fmt.Errorf("failed to download file: %w", err)
	}
	return &drive.File{Name: f.Name, MimeType: f.MimeType}, n, nil
}

func (p *Provider) DeleteFile(ctx context.Context, fileID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.begin("DeleteFile"); err != nil {
		return err
	}

	if _, err := p.get(fileID); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	delete(p.files, fileID)
	delete(p.content, fileID)
	for i, id := range p.order {
		if id == fileID {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
	return nil
}

func (p *Provider) UpdateFile(ctx context.Context, fileID, name string) (*drive.File, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.begin("UpdateFile"); err != nil {
		return nil, err
	}

	f, err := p.get(fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to update file: %w", err)
	}
	if name != "" {
		f.Name = name
	}
	f.ModifiedTime = time.Now().UTC().Format(time.RFC3339Nano)
	return &drive.File{Id: f.Id, Name: f.Name, ModifiedTime: f.ModifiedTime}, nil
}

func (p *Provider) CreateFolder(ctx context.Context, name, parentFolderID string) (*drive.File, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.begin("CreateFolder"); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, errors.New("failed to create folder: name is required")
	}

	var parents []string
	if parentFolderID != "" {
		parents = []string{parentFolderID}
	}
	id := p.add(name, gdrive.FolderMimeType, nil, parents)
	return &drive.File{Id: id, Name: name}, nil
}
