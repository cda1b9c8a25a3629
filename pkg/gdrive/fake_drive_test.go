package gdrive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// fakeDrive emulates the subset of the Drive v3 REST surface the service uses
type fakeDrive struct {
	mu       sync.Mutex
	server   *httptest.Server
	files    map[string]map[string]interface{}
	content  map[string][]byte
	nextID   int
	requests []*http.Request
	queries  []string
	ranges   []string
}

func newFakeDrive() *fakeDrive {
	f := &fakeDrive{
		files:   make(map[string]map[string]interface{}),
		content: make(map[string][]byte),
	}
	f.server = httptest.NewServer(http.HandlerFunc(f.handle))
	return f
}

func (f *fakeDrive) Close() {
	f.server.Close()
}

func (f *fakeDrive) URL() string {
	return f.server.URL + "/"
}

// GetClient satisfies ClientProvider with an unauthenticated client
func (f *fakeDrive) GetClient(ctx context.Context) (*http.Client, error) {
	return f.server.Client(), nil
}

func (f *fakeDrive) put(name, mimeType string, body []byte, parents ...string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.putLocked(name, mimeType, body, parents)
}

func (f *fakeDrive) putLocked(name, mimeType string, body []byte, parents []string) string {
	f.nextID++
	id := fmt.Sprintf("file-%d", f.nextID)
	now := time.Now().UTC().Format(time.RFC3339)
	meta := map[string]interface{}{
		"id":           id,
		"name":         name,
		"mimeType":     mimeType,
		"createdTime":  now,
		"modifiedTime": now,
		"size":         fmt.Sprintf("%d", len(body)),
		"webViewLink":  "https://drive.google.com/file/d/" + id + "/view",
	}
	if len(parents) > 0 {
		meta["parents"] = parents
	}
	f.files[id] = meta
	f.content[id] = body
	return id
}

func (f *fakeDrive) handle(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, r)

	path := r.URL.Path
	switch {
	case strings.HasSuffix(path, "/about"):
		writeJSON(w, http.StatusOK, map[string]interface{}{"user": map[string]string{"emailAddress": "relay@test.iam.gserviceaccount.com"}})
	case strings.HasSuffix(path, "/files"):
		switch r.Method {
		case http.MethodGet:
			f.queries = append(f.queries, r.URL.Query().Get("q"))
			files := make([]map[string]interface{}, 0, len(f.files))
			for _, meta := range f.files {
				files = append(files, meta)
			}
			writeJSON(w, http.StatusOK, map[string]interface{}{"files": files})
		case http.MethodPost:
			f.create(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	case strings.Contains(path, "/files/"):
		id := path[strings.LastIndex(path, "/")+1:]
		meta, ok := f.files[id]
		if !ok {
			writeNotFound(w, id)
			return
		}
		switch r.Method {
		case http.MethodGet:
			if r.URL.Query().Get("alt") == "media" {
				f.ranges = append(f.ranges, r.Header.Get("Range"))
				http.ServeContent(w, r, meta["name"].(string), time.Time{}, bytes.NewReader(f.content[id]))
				return
			}
			writeJSON(w, http.StatusOK, meta)
		case http.MethodPatch:
			var patch map[string]interface{}
			_ = json.NewDecoder(r.Body).Decode(&patch)
			if name, ok := patch["name"].(string); ok {
				meta["name"] = name
			}
			meta["modifiedTime"] = time.Now().UTC().Format(time.RFC3339)
			writeJSON(w, http.StatusOK, meta)
		case http.MethodDelete:
			delete(f.files, id)
			delete(f.content, id)
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeDrive) create(w http.ResponseWriter, r *http.Request) {
	var meta struct {
		Name     string   `json:"name"`
		MimeType string   `json:"mimeType"`
		Parents  []string `json:"parents"`
	}
	var body []byte

	mediaType, params, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if strings.HasPrefix(mediaType, "multipart/") {
		reader := multipart.NewReader(r.Body, params["boundary"])
		metaPart, err := reader.NextPart()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		_ = json.NewDecoder(metaPart).Decode(&meta)
		mediaPart, err := reader.NextPart()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if meta.MimeType == "" {
			meta.MimeType = mediaPart.Header.Get("Content-Type")
		}
		body, _ = io.ReadAll(mediaPart)
	} else {
		_ = json.NewDecoder(r.Body).Decode(&meta)
	}

	id := f.putLocked(meta.Name, meta.MimeType, body, meta.Parents)
	writeJSON(w, http.StatusOK, f.files[id])
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeNotFound(w http.ResponseWriter, id string) {
	message := fmt.Sprintf("File not found: %s.", id)
	writeJSON(w, http.StatusNotFound, map[string]interface{}{
		"error": map[string]interface{}{
			"code":    http.StatusNotFound,
			"message": message,
			"errors": []map[string]string{
				{"domain": "global", "reason": "notFound", "message": message},
			},
		},
	})
}
