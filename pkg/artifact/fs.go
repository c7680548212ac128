package artifact

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	versionPrefix = "v"
	dataFile      = "data"
	metaFile      = "metadata.json"
)

// FSStore keeps artifact versions as directories below a root:
// <root>/<name>/v<N>/{data,metadata.json}. Versions are append-only.
type FSStore struct {
	root string
}

func NewFSStore(root string) (*FSStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact root: %w", err)
	}
	return &FSStore{root: root}, nil
}

func (s *FSStore) UseLatest(_ context.Context, name string) (*Version, error) {
	latest, err := s.latestVersion(name)
	if err != nil {
		return nil, err
	}
	if latest == 0 {
		return nil, ErrNotFound
	}
	return s.readVersion(name, latest)
}

func (s *FSStore) Download(_ context.Context, v *Version) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.versionDir(v.Name, v.Version), dataFile))
	if err != nil {
		return nil, fmt.Errorf("download %s:v%d: %w", v.Name, v.Version, err)
	}
	return data, nil
}

func (s *FSStore) Upload(_ context.Context, name string, data []byte, metadata map[string]string) (*Version, error) {
	latest, err := s.latestVersion(name)
	if err != nil {
		return nil, err
	}
	v := &Version{
		Name:      name,
		Version:   latest + 1,
		CreatedAt: time.Now().UTC(),
		Metadata:  metadata,
	}

	dir := s.versionDir(name, v.Version)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("upload %s: %w", name, err)
	}
	if err := os.WriteFile(filepath.Join(dir, dataFile), data, 0o644); err != nil {
		return nil, fmt.Errorf("upload %s: %w", name, err)
	}
	meta, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(dir, metaFile), meta, 0o644); err != nil {
		return nil, fmt.Errorf("upload %s: %w", name, err)
	}
	return v, nil
}

func (s *FSStore) versionDir(name string, version int) string {
	return filepath.Join(s.root, name, versionPrefix+strconv.Itoa(version))
}

func (s *FSStore) latestVersion(name string) (int, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, name))
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("scan versions of %s: %w", name, err)
	}
	latest := 0
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), versionPrefix) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimPrefix(entry.Name(), versionPrefix))
		if err != nil {
			continue
		}
		if n > latest {
			latest = n
		}
	}
	return latest, nil
}

func (s *FSStore) readVersion(name string, version int) (*Version, error) {
	meta, err := os.ReadFile(filepath.Join(s.versionDir(name, version), metaFile))
	if err != nil {
		return nil, fmt.Errorf("read metadata of %s:v%d: %w", name, version, err)
	}
	v := &Version{}
	if err := json.Unmarshal(meta, v); err != nil {
		return nil, fmt.Errorf("parse metadata of %s:v%d: %w", name, version, err)
	}
	return v, nil
}
