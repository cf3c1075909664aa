// Package storage archives raw statement uploads on the local filesystem so
// a parse can be replayed after a parser config change.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// UploadInfo is the metadata kept alongside an archived upload.
type UploadInfo struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Ext        string    `json:"ext"`
	Size       int64     `json:"size"`
	BankCode   string    `json:"bank_code,omitempty"`
	Path       string    `json:"path"`
	ReceivedAt time.Time `json:"received_at"`
}

// Archive stores raw uploads for replay and audit.
type Archive interface {
	Save(ctx context.Context, name, ext, bankCode string, r io.Reader) (*UploadInfo, error)
	Open(ctx context.Context, id uuid.UUID) (io.ReadCloser, *UploadInfo, error)
	List(ctx context.Context) ([]*UploadInfo, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// LocalArchive implements Archive on the local filesystem, one directory per
// day with JSON metadata sidecars.
type LocalArchive struct {
	basePath string
}

// NewLocalArchive creates the archive directory if needed.
func NewLocalArchive(basePath string) (*LocalArchive, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}
	return &LocalArchive{basePath: basePath}, nil
}

// Save stores one upload and its metadata sidecar.
func (a *LocalArchive) Save(_ context.Context, name, ext, bankCode string, r io.Reader) (*UploadInfo, error) {
	id := uuid.New()
	day := time.Now().UTC().Format("2006-01-02")

	dir := filepath.Join(a.basePath, day)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive day directory: %w", err)
	}

	stored := fmt.Sprintf("%s_%s", id.String()[:8], sanitizeFilename(name))
	if stored == id.String()[:8]+"_" {
		stored += "statement" + ext
	}
	path := filepath.Join(dir, stored)

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create archive file: %w", err)
	}
	defer f.Close()

	size, err := io.Copy(f, r)
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to write archive file: %w", err)
	}

	info := &UploadInfo{
		ID:         id,
		Name:       name,
		Ext:        ext,
		Size:       size,
		BankCode:   bankCode,
		Path:       filepath.Join(day, stored),
		ReceivedAt: time.Now().UTC(),
	}
	if err := a.saveMetadata(info); err != nil {
		os.Remove(path)
		return nil, err
	}
	return info, nil
}

// Open returns the archived bytes and metadata for one upload.
func (a *LocalArchive) Open(_ context.Context, id uuid.UUID) (io.ReadCloser, *UploadInfo, error) {
	info, err := a.getInfo(id)
	if err != nil {
		return nil, nil, err
	}

	f, err := os.Open(filepath.Join(a.basePath, info.Path))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open archived upload: %w", err)
	}
	return f, info, nil
}

// List returns metadata for every archived upload.
func (a *LocalArchive) List(_ context.Context) ([]*UploadInfo, error) {
	metaDir := filepath.Join(a.basePath, ".meta")
	entries, err := os.ReadDir(metaDir)
	if os.IsNotExist(err) {
		return []*UploadInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list archive metadata: %w", err)
	}

	infos := make([]*UploadInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		id, err := uuid.Parse(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			continue
		}
		info, err := a.getInfo(id)
		if err != nil {
			continue
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// Delete removes an archived upload and its metadata.
func (a *LocalArchive) Delete(_ context.Context, id uuid.UUID) error {
	info, err := a.getInfo(id)
	if err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(a.basePath, info.Path)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete archived upload: %w", err)
	}
	os.Remove(filepath.Join(a.basePath, ".meta", id.String()+".json"))
	return nil
}

func (a *LocalArchive) getInfo(id uuid.UUID) (*UploadInfo, error) {
	data, err := os.ReadFile(filepath.Join(a.basePath, ".meta", id.String()+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("upload not found: %s", id)
		}
		return nil, fmt.Errorf("failed to read archive metadata: %w", err)
	}

	var info UploadInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("failed to parse archive metadata: %w", err)
	}
	return &info, nil
}

func (a *LocalArchive) saveMetadata(info *UploadInfo) error {
	metaDir := filepath.Join(a.basePath, ".meta")
	if err := os.MkdirAll(metaDir, 0755); err != nil {
		return fmt.Errorf("failed to create metadata directory: %w", err)
	}

	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(metaDir, info.ID.String()+".json"), data, 0644); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	return nil
}

// sanitizeFilename removes unsafe characters from filenames
func sanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		"..", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
	)
	return replacer.Replace(name)
}
