package exporter

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"nsecli/pkg/contracts/domain"
)

// Artifacts is an id-addressed store of finished artifacts on disk. Each
// artifact lives in its own directory next to a meta.json describing it, so
// artifacts survive process restarts.
type Artifacts struct {
	dir string
}

// NewArtifacts creates an artifact store rooted at dir.
func NewArtifacts(dir string) *Artifacts {
	return &Artifacts{dir: dir}
}

// Save persists data under a fresh artifact id and returns its reference.
func (a *Artifacts) Save(filename, contentKind string, data []byte) (domain.ArtifactRef, error) {
	id := uuid.New().String()
	artifactDir := filepath.Join(a.dir, id)
	if err := os.MkdirAll(artifactDir, 0o755); err != nil {
		return domain.ArtifactRef{}, fmt.Errorf("create artifact dir: %w", err)
	}

	path := filepath.Join(artifactDir, filename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return domain.ArtifactRef{}, fmt.Errorf("write artifact: %w", err)
	}

	ref := domain.ArtifactRef{
		ID:          id,
		Filename:    filename,
		ContentKind: contentKind,
		Path:        path,
	}
	meta, err := json.Marshal(ref)
	if err != nil {
		return domain.ArtifactRef{}, err
	}
	if err := os.WriteFile(filepath.Join(artifactDir, "meta.json"), meta, 0o644); err != nil {
		return domain.ArtifactRef{}, fmt.Errorf("write artifact meta: %w", err)
	}
	return ref, nil
}

// Get resolves an artifact id back to its reference.
func (a *Artifacts) Get(id string) (domain.ArtifactRef, error) {
	// Reject ids that could escape the artifacts directory.
	if id == "" || id != filepath.Base(id) {
		return domain.ArtifactRef{}, os.ErrNotExist
	}
	meta, err := os.ReadFile(filepath.Join(a.dir, id, "meta.json"))
	if err != nil {
		return domain.ArtifactRef{}, err
	}
	var ref domain.ArtifactRef
	if err := json.Unmarshal(meta, &ref); err != nil {
		return domain.ArtifactRef{}, fmt.Errorf("parse artifact meta: %w", err)
	}
	return ref, nil
}

// Open returns the artifact's reference and its content.
func (a *Artifacts) Open(id string) (domain.ArtifactRef, []byte, error) {
	ref, err := a.Get(id)
	if err != nil {
		return domain.ArtifactRef{}, nil, err
	}
	data, err := os.ReadFile(ref.Path)
	if err != nil {
		return domain.ArtifactRef{}, nil, err
	}
	return ref, data, nil
}
