// RetailRec - Retail Purchase Recommendations from Transaction History
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailrec

package storage

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/tomtom215/retailrec/internal/recommend"
)

// FormatVersion is the payload layout written by Save.
const FormatVersion = 1

const (
	modelExt    = ".gob.gz"
	manifestExt = ".json"
)

var (
	// ErrModelNotFound is returned when no file exists for a name and version.
	ErrModelNotFound = errors.New("storage: model not found")

	// ErrChecksumMismatch is returned when a payload does not match its recorded checksum.
	ErrChecksumMismatch = errors.New("storage: checksum mismatch")

	// ErrUnsupportedFormat is returned for a payload with an unknown format version.
	ErrUnsupportedFormat = errors.New("storage: unsupported model format")

	// ErrInvalidName is returned for model names that are empty or contain path elements.
	ErrInvalidName = errors.New("storage: invalid model name")
)

// ModelMetadata contains information about a stored model.
type ModelMetadata struct {
	// Name is the artifact name (e.g., "svd_model").
	Name string `json:"name"`

	// Version is the model version (monotonically increasing per name).
	Version int `json:"version"`

	// FormatVersion is the payload layout version.
	FormatVersion int `json:"format_version"`

	// RunID identifies the training run that produced the model.
	RunID string `json:"run_id,omitempty"`

	// TrainedAt is when the model was trained.
	TrainedAt time.Time `json:"trained_at"`

	// SavedAt is when the model was saved.
	SavedAt time.Time `json:"saved_at"`

	Rank      int `json:"rank"`
	UserCount int `json:"user_count"`
	ItemCount int `json:"item_count"`

	// RMSE is the in-sample reconstruction error on the training matrix.
	RMSE float64 `json:"rmse"`

	// Checksum is the SHA-256 checksum of the uncompressed payload.
	Checksum string `json:"checksum"`

	// SizeBytes is the compressed payload size in bytes.
	SizeBytes int64 `json:"size_bytes"`

	// TrainingDurationMS is how long training took.
	TrainingDurationMS int64 `json:"training_duration_ms"`
}

// payload is the versioned, data-only model layout.
type payload struct {
	FormatVersion  int
	Rank           int
	UserIDs        []int64
	ItemIDs        []string
	UserFactors    []float64
	ItemFactors    []float64
	SingularValues []float64
}

// storedFile is the on-disk format for model files.
type storedFile struct {
	Metadata       ModelMetadata
	CompressedData []byte
}

// Store manages model persistence in a single directory.
type Store struct {
	baseDir string
	mu      sync.RWMutex

	// latest version per model name
	versions map[string]int
}

// NewStore creates a new model store at the given directory.
func NewStore(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0o750); err != nil { //nolint:gosec // 0750 is acceptable for model storage
		return nil, fmt.Errorf("create storage directory: %w", err)
	}

	s := &Store{
		baseDir:  baseDir,
		versions: make(map[string]int),
	}

	if err := s.scanModels(); err != nil {
		return nil, fmt.Errorf("scan existing models: %w", err)
	}

	return s, nil
}

// Dir returns the storage directory.
func (s *Store) Dir() string {
	return s.baseDir
}

// Refresh rescans the directory for versions written by other processes.
func (s *Store) Refresh() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scanModels()
}

// scanModels rebuilds the latest-version table from the directory.
func (s *Store) scanModels() error {
	all, err := s.listVersions()
	if err != nil {
		return err
	}

	s.versions = make(map[string]int, len(all))
	for name, versions := range all {
		s.versions[name] = versions[0]
	}
	return nil
}

// listVersions returns every stored version per name, newest first.
func (s *Store) listVersions() (map[string][]int, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, err
	}

	out := make(map[string][]int)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), modelExt) {
			continue
		}

		name, version := parseModelFilename(strings.TrimSuffix(entry.Name(), modelExt))
		if name == "" {
			continue
		}
		out[name] = append(out[name], version)
	}

	for name := range out {
		sort.Sort(sort.Reverse(sort.IntSlice(out[name])))
	}
	return out, nil
}

// parseModelFilename splits "svd_model_v3" into "svd_model" and 3.
func parseModelFilename(base string) (name string, version int) {
	idx := strings.LastIndex(base, "_v")
	if idx <= 0 {
		return "", 0
	}

	version, err := strconv.Atoi(base[idx+2:])
	if err != nil || version < 1 {
		return "", 0
	}

	return base[:idx], version
}

func validateName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// NextVersion returns the version the next Save of name should use.
func (s *Store) NextVersion(name string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.versions[name] + 1
}

// GetLatestVersion returns the latest version number for a model.
func (s *Store) GetLatestVersion(name string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	version, ok := s.versions[name]
	return version, ok
}

// Save writes state as version of name and returns the completed metadata.
// Name, Version, FormatVersion, Rank, counts, Checksum, SizeBytes and SavedAt
// in meta are filled in by Save.
//
//nolint:gocritic // meta passed by value is acceptable for this write operation
func (s *Store) Save(ctx context.Context, name string, version int, state *recommend.ModelState, meta ModelMetadata) (*ModelMetadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateName(name); err != nil {
		return nil, err
	}
	if version < 1 {
		return nil, fmt.Errorf("storage: version must be positive, got %d", version)
	}
	if err := state.Validate(); err != nil {
		return nil, fmt.Errorf("save %s_v%d: %w", name, version, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(payload{
		FormatVersion:  FormatVersion,
		Rank:           state.Rank,
		UserIDs:        state.UserIDs,
		ItemIDs:        state.ItemIDs,
		UserFactors:    state.UserFactors,
		ItemFactors:    state.ItemFactors,
		SingularValues: state.SingularValues,
	}); err != nil {
		return nil, fmt.Errorf("encode model: %w", err)
	}
	rawData := buf.Bytes()

	hash := sha256.Sum256(rawData)
	meta.Checksum = hex.EncodeToString(hash[:])

	var compressed bytes.Buffer
	gzw := gzip.NewWriter(&compressed)
	if _, err := gzw.Write(rawData); err != nil {
		return nil, fmt.Errorf("compress model: %w", err)
	}
	if err := gzw.Close(); err != nil {
		return nil, fmt.Errorf("finalize compression: %w", err)
	}

	meta.Name = name
	meta.Version = version
	meta.FormatVersion = FormatVersion
	meta.Rank = state.Rank
	meta.UserCount = len(state.UserIDs)
	meta.ItemCount = len(state.ItemIDs)
	meta.SizeBytes = int64(compressed.Len())
	meta.SavedAt = time.Now().UTC()

	var file bytes.Buffer
	if err := gob.NewEncoder(&file).Encode(storedFile{
		Metadata:       meta,
		CompressedData: compressed.Bytes(),
	}); err != nil {
		return nil, fmt.Errorf("encode model file: %w", err)
	}

	manifest, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}

	modelPath := s.modelPath(name, version)
	if err := writeFileAtomic(modelPath, file.Bytes()); err != nil {
		return nil, fmt.Errorf("write model file: %w", err)
	}
	if err := writeFileAtomic(s.manifestPath(name, version), manifest); err != nil {
		_ = os.Remove(modelPath) //nolint:errcheck // best-effort rollback of the model file
		return nil, fmt.Errorf("write manifest: %w", err)
	}

	if current, ok := s.versions[name]; !ok || version > current {
		s.versions[name] = version
	}

	return &meta, nil
}

// writeFileAtomic writes data to a temporary file in the target directory
// and renames it over path.
func writeFileAtomic(path string, data []byte) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()           //nolint:errcheck // already failing
			_ = os.Remove(tmp.Name()) //nolint:errcheck // best-effort cleanup
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Load reads a model by name and version. Version 0 loads the latest.
func (s *Store) Load(ctx context.Context, name string, version int) (*recommend.ModelState, *ModelMetadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if err := validateName(name); err != nil {
		return nil, nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if version == 0 {
		var ok bool
		version, ok = s.versions[name]
		if !ok {
			return nil, nil, fmt.Errorf("%w: no versions of %s in %s", ErrModelNotFound, name, s.baseDir)
		}
	}

	sf, err := s.readStoredFile(name, version)
	if err != nil {
		return nil, nil, err
	}
	if sf.Metadata.FormatVersion != FormatVersion {
		return nil, nil, fmt.Errorf("%w: version %d", ErrUnsupportedFormat, sf.Metadata.FormatVersion)
	}

	gzr, err := gzip.NewReader(bytes.NewReader(sf.CompressedData))
	if err != nil {
		return nil, nil, fmt.Errorf("decompress model: %w", err)
	}
	defer func() { _ = gzr.Close() }() //nolint:errcheck // error on gzip close after read is not actionable

	rawData, err := io.ReadAll(gzr)
	if err != nil {
		return nil, nil, fmt.Errorf("read decompressed data: %w", err)
	}

	hash := sha256.Sum256(rawData)
	if checksum := hex.EncodeToString(hash[:]); checksum != sf.Metadata.Checksum {
		return nil, nil, fmt.Errorf("%w: expected %s, got %s", ErrChecksumMismatch, sf.Metadata.Checksum, checksum)
	}

	var p payload
	if err := gob.NewDecoder(bytes.NewReader(rawData)).Decode(&p); err != nil {
		return nil, nil, fmt.Errorf("decode model: %w", err)
	}
	if p.FormatVersion != FormatVersion {
		return nil, nil, fmt.Errorf("%w: payload version %d", ErrUnsupportedFormat, p.FormatVersion)
	}

	state := &recommend.ModelState{
		Rank:           p.Rank,
		UserIDs:        p.UserIDs,
		ItemIDs:        p.ItemIDs,
		UserFactors:    p.UserFactors,
		ItemFactors:    p.ItemFactors,
		SingularValues: p.SingularValues,
	}
	if err := state.Validate(); err != nil {
		return nil, nil, fmt.Errorf("load %s_v%d: %w", name, version, err)
	}

	return state, &sf.Metadata, nil
}

func (s *Store) readStoredFile(name string, version int) (*storedFile, error) {
	f, err := os.Open(s.modelPath(name, version))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrModelNotFound, s.modelPath(name, version))
		}
		return nil, fmt.Errorf("open model file: %w", err)
	}
	defer func() { _ = f.Close() }() //nolint:errcheck // error on close after read is not actionable

	var sf storedFile
	if err := gob.NewDecoder(f).Decode(&sf); err != nil {
		return nil, fmt.Errorf("read model file: %w", err)
	}
	return &sf, nil
}

// Metadata returns the metadata of one stored version without decoding the
// factors. The JSON manifest is used when present.
func (s *Store) Metadata(ctx context.Context, name string, version int) (*ModelMetadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateName(name); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if version == 0 {
		var ok bool
		if version, ok = s.versions[name]; !ok {
			return nil, fmt.Errorf("%w: no versions of %s", ErrModelNotFound, name)
		}
	}
	return s.metadata(name, version)
}

func (s *Store) metadata(name string, version int) (*ModelMetadata, error) {
	if data, err := os.ReadFile(s.manifestPath(name, version)); err == nil {
		var meta ModelMetadata
		if err := json.Unmarshal(data, &meta); err == nil {
			return &meta, nil
		}
	}

	sf, err := s.readStoredFile(name, version)
	if err != nil {
		return nil, err
	}
	return &sf.Metadata, nil
}

// ListModels returns metadata for every stored version, ordered by name and
// then newest version first. Unreadable files are skipped.
func (s *Store) ListModels(ctx context.Context) ([]ModelMetadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	all, err := s.listVersions()
	if err != nil {
		return nil, fmt.Errorf("read directory: %w", err)
	}

	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	sort.Strings(names)

	var models []ModelMetadata
	for _, name := range names {
		for _, version := range all[name] {
			meta, err := s.metadata(name, version)
			if err != nil {
				continue
			}
			models = append(models, *meta)
		}
	}

	return models, nil
}

// Delete removes a specific model version and its manifest.
func (s *Store) Delete(ctx context.Context, name string, version int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateName(name); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.modelPath(name, version)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s_v%d", ErrModelNotFound, name, version)
		}
		return fmt.Errorf("delete model: %w", err)
	}
	_ = os.Remove(s.manifestPath(name, version)) //nolint:errcheck // manifest may be absent

	return s.scanModels()
}

// Prune removes old versions of name, keeping the newest keepVersions.
// It returns the removed versions.
func (s *Store) Prune(ctx context.Context, name string, keepVersions int) ([]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if keepVersions < 1 {
		keepVersions = 1
	}

	all, err := s.listVersions()
	if err != nil {
		return nil, fmt.Errorf("read directory: %w", err)
	}

	versions := all[name]
	if len(versions) <= keepVersions {
		return nil, nil
	}

	var removed []int
	for _, v := range versions[keepVersions:] {
		if err := os.Remove(s.modelPath(name, v)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return removed, fmt.Errorf("prune %s_v%d: %w", name, v, err)
		}
		_ = os.Remove(s.manifestPath(name, v)) //nolint:errcheck // manifest may be absent
		removed = append(removed, v)
	}

	return removed, s.scanModels()
}

// modelPath returns the file path for a model.
func (s *Store) modelPath(name string, version int) string {
	return filepath.Join(s.baseDir, fmt.Sprintf("%s_v%d%s", name, version, modelExt))
}

// manifestPath returns the file path for a model's JSON manifest.
func (s *Store) manifestPath(name string, version int) string {
	return filepath.Join(s.baseDir, fmt.Sprintf("%s_v%d%s", name, version, manifestExt))
}
