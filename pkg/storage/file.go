package storage

import (
	"compress/gzip"
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/tiercache/tiercache/pkg/errors"
	"github.com/tiercache/tiercache/pkg/retry"
)

const (
	// DefaultIndexFile is the index file name used when FileConfig leaves
	// IndexFile empty.
	DefaultIndexFile = "index.json"

	// DefaultSyncInterval is the background index save cadence used when
	// FileConfig leaves SyncInterval at zero.
	DefaultSyncInterval = time.Minute
)

// FileConfig configures a FileStore.
type FileConfig struct {
	// Directory holds the content files and the index. It is created if
	// missing. Required.
	Directory string `yaml:"directory" json:"directory"`

	// MaxBytes bounds the total on-disk size of content files. When the
	// bound is exceeded the oldest entries are evicted, in insertion
	// order. Non-positive disables the bound.
	MaxBytes int64 `yaml:"max_bytes" json:"max_bytes"`

	// Compression gzips content files on disk.
	Compression bool `yaml:"compression" json:"compression"`

	// IndexFile is the index file name within Directory. Defaults to
	// DefaultIndexFile.
	IndexFile string `yaml:"index_file" json:"index_file"`

	// SyncInterval is how often the index is written to disk in the
	// background. Zero selects DefaultSyncInterval; a negative value
	// disables background sync. The index is always written on Close.
	SyncInterval time.Duration `yaml:"sync_interval" json:"sync_interval"`
}

// fileItem is an index entry describing one content file.
type fileItem struct {
	Key        string    `json:"key"`
	Path       string    `json:"path"`
	Size       int64     `json:"size"`
	StoredAt   time.Time `json:"stored_at"`
	Seq        uint64    `json:"seq"`
	Compressed bool      `json:"compressed"`
	Checksum   string    `json:"checksum"`
}

// FileStore is a disk-backed Store: one content file per key plus a JSON
// index. Content files carry SHA-256 checksums and are optionally
// gzipped. The index is saved atomically (tmp file + rename) by a
// background goroutine and on Close, and is reloaded on construction so
// entries survive restarts.
//
// Entries whose content file is missing or fails its checksum are
// dropped and reported as absent rather than failing the read.
type FileStore struct {
	mu           sync.RWMutex
	directory    string
	indexPath    string
	maxBytes     int64
	currentBytes int64
	compression  bool
	index        map[string]*fileItem
	seq          uint64

	retryer *retry.Retryer
	logger  *zap.SugaredLogger

	stopCh chan struct{}
	closed bool
}

// NewFile creates a FileStore rooted at cfg.Directory, loading any index
// left by a previous run. A nil logger disables logging.
func NewFile(cfg *FileConfig, logger *zap.SugaredLogger) (*FileStore, error) {
	if cfg == nil || cfg.Directory == "" {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "file store requires a directory").
			WithComponent("filestore")
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	indexFile := cfg.IndexFile
	if indexFile == "" {
		indexFile = DefaultIndexFile
	}
	indexPath := filepath.Join(cfg.Directory, indexFile)
	if !strings.HasPrefix(filepath.Clean(indexPath), filepath.Clean(cfg.Directory)) {
		return nil, errors.Newf(errors.ErrCodeInvalidConfig, "index file %q escapes store directory", indexFile).
			WithComponent("filestore")
	}

	syncInterval := cfg.SyncInterval
	if syncInterval == 0 {
		syncInterval = DefaultSyncInterval
	}

	if err := os.MkdirAll(cfg.Directory, 0o750); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStorageWrite, "create store directory").
			WithComponent("filestore").
			WithContext("directory", cfg.Directory)
	}

	s := &FileStore{
		directory:   cfg.Directory,
		indexPath:   indexPath,
		maxBytes:    cfg.MaxBytes,
		compression: cfg.Compression,
		index:       make(map[string]*fileItem),
		retryer: retry.New(retry.Config{
			MaxAttempts:  3,
			InitialDelay: 50 * time.Millisecond,
			MaxDelay:     time.Second,
			Multiplier:   2.0,
			Jitter:       true,
		}),
		logger: logger,
		stopCh: make(chan struct{}),
	}

	s.loadIndex()

	if syncInterval > 0 {
		go s.syncLoop(syncInterval)
	}

	return s, nil
}

// GetItem reads the content file for key and returns its bytes, or
// (nil, nil) when the key is absent. Unreadable entries are removed
// from the index and reported as absent.
func (s *FileStore) GetItem(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	item, ok := s.index[key]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	data, err := s.readFile(item)
	if err != nil {
		s.dropEntry(key, item)
		s.logger.Warnw("dropping unreadable cache entry",
			"key", key,
			"path", item.Path,
			"error", err)
		return nil, nil
	}
	return data, nil
}

// SetItem writes data to a content file and records it in the index.
// Storing an existing key overwrites its content file in place. A value
// larger than MaxBytes is rejected outright; the size check precedes
// compression.
func (s *FileStore) SetItem(_ context.Context, key string, data []byte) error {
	size := int64(len(data))
	if s.maxBytes > 0 && size > s.maxBytes {
		return errors.Newf(errors.ErrCodeLimitExceeded, "value of %d bytes exceeds store capacity of %d bytes", size, s.maxBytes).
			WithComponent("filestore").
			WithContext("key", key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.index[key]; ok {
		s.currentBytes -= existing.Size
	}

	item := &fileItem{
		Key:        key,
		Path:       s.contentPath(key),
		StoredAt:   time.Now(),
		Compressed: s.compression,
		Checksum:   checksum(data),
	}

	actualSize, err := s.writeFile(item.Path, data)
	if err != nil {
		delete(s.index, key)
		return errors.Wrap(err, errors.ErrCodeStorageWrite, "write content file").
			WithComponent("filestore").
			WithContext("key", key)
	}
	item.Size = actualSize

	s.seq++
	item.Seq = s.seq
	s.index[key] = item
	s.currentBytes += actualSize

	s.evictLocked()
	return nil
}

// RemoveItem deletes the content file and index entry for key. Removing
// an absent key is not an error.
func (s *FileStore) RemoveItem(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.index[key]
	if !ok {
		return nil
	}
	_ = os.Remove(item.Path)
	delete(s.index, key)
	s.currentBytes -= item.Size
	return nil
}

// Keys returns all indexed keys carrying prefix, sorted lexicographically.
func (s *FileStore) Keys(_ context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.index))
	for key := range s.index {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// HealthCheck verifies the store directory is accessible.
func (s *FileStore) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(s.directory); err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageRead, "store directory not accessible").
			WithComponent("filestore").
			WithContext("directory", s.directory)
	}
	return nil
}

// Len returns the number of indexed entries.
func (s *FileStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.index)
}

// Bytes returns the total on-disk size of content files.
func (s *FileStore) Bytes() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentBytes
}

// Close stops the background sync and writes the index a final time.
// It is idempotent. Content files stay on disk for the next run.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	close(s.stopCh)

	return s.saveIndex()
}

// dropEntry removes an entry discovered to be unreadable. The identity
// check keeps a concurrent overwrite of the same key intact.
func (s *FileStore) dropEntry(key string, item *fileItem) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if current, ok := s.index[key]; ok && current == item {
		_ = os.Remove(item.Path)
		delete(s.index, key)
		s.currentBytes -= item.Size
	}
}

// contentPath derives the content file path for a key from its hash.
func (s *FileStore) contentPath(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(s.directory, fmt.Sprintf("%x.cache", sum[:8]))
}

// checksum returns the hex SHA-256 digest of data.
func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%x", sum)
}

// writeFile writes data to path, gzipped when compression is enabled,
// and returns the on-disk size. A failed write removes the partial file.
func (s *FileStore) writeFile(path string, data []byte) (int64, error) {
	file, err := os.Create(path)
	if err != nil {
		return 0, err
	}

	var writer io.Writer = file
	var gz *gzip.Writer
	if s.compression {
		gz = gzip.NewWriter(file)
		writer = gz
	}

	if _, err := writer.Write(data); err != nil {
		if gz != nil {
			_ = gz.Close()
		}
		_ = file.Close()
		_ = os.Remove(path)
		return 0, err
	}
	if gz != nil {
		// Flush the gzip footer before measuring the file.
		if err := gz.Close(); err != nil {
			_ = file.Close()
			_ = os.Remove(path)
			return 0, err
		}
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(path)
		return 0, err
	}

	stat, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return stat.Size(), nil
}

// readFile reads and verifies one content file.
func (s *FileStore) readFile(item *fileItem) ([]byte, error) {
	file, err := os.Open(item.Path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()

	var reader io.Reader = file
	if item.Compressed {
		gz, err := gzip.NewReader(file)
		if err != nil {
			return nil, err
		}
		defer func() { _ = gz.Close() }()
		reader = gz
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}

	if checksum(data) != item.Checksum {
		return nil, errors.New(errors.ErrCodeStorageCorrupt, "content checksum mismatch").
			WithComponent("filestore").
			WithContext("key", item.Key)
	}
	return data, nil
}

// loadIndex restores the index left by a previous run. Entries whose
// content file has disappeared are skipped. An unreadable index starts
// the store empty; cached data is reproducible by definition.
func (s *FileStore) loadIndex() {
	file, err := os.Open(s.indexPath)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warnw("cache index unreadable, starting empty", "path", s.indexPath, "error", err)
		}
		return
	}
	defer func() { _ = file.Close() }()

	var items map[string]*fileItem
	if err := json.NewDecoder(file).Decode(&items); err != nil {
		s.logger.Warnw("cache index corrupt, starting empty", "path", s.indexPath, "error", err)
		return
	}

	for key, item := range items {
		if _, err := os.Stat(item.Path); err != nil {
			continue
		}
		s.index[key] = item
		s.currentBytes += item.Size
		if item.Seq > s.seq {
			s.seq = item.Seq
		}
	}
}

// saveIndex writes the index atomically via a temp file and rename.
// Caller must hold mu.
func (s *FileStore) saveIndex() error {
	tmpPath := s.indexPath + ".tmp"

	file, err := os.Create(tmpPath)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageWrite, "create index temp file").
			WithComponent("filestore")
	}
	if err := json.NewEncoder(file).Encode(s.index); err != nil {
		_ = file.Close()
		_ = os.Remove(tmpPath)
		return errors.Wrap(err, errors.ErrCodeStorageWrite, "encode index").
			WithComponent("filestore")
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return errors.Wrap(err, errors.ErrCodeStorageWrite, "close index temp file").
			WithComponent("filestore")
	}

	if err := os.Rename(tmpPath, s.indexPath); err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageWrite, "replace index").
			WithComponent("filestore")
	}
	return nil
}

// syncLoop periodically saves the index until Close.
func (s *FileStore) syncLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			err := s.retryer.Do(func() error {
				s.mu.RLock()
				defer s.mu.RUnlock()
				return s.saveIndex()
			})
			if err != nil {
				s.logger.Warnw("index sync failed", "path", s.indexPath, "error", err)
			}
		}
	}
}

// evictLocked drops the oldest entries until the store fits its bound.
// Caller must hold the write lock.
func (s *FileStore) evictLocked() {
	if s.maxBytes <= 0 {
		return
	}
	for s.currentBytes > s.maxBytes && len(s.index) > 0 {
		var oldestKey string
		var oldest *fileItem
		for key, item := range s.index {
			if oldest == nil || item.Seq < oldest.Seq {
				oldestKey = key
				oldest = item
			}
		}
		_ = os.Remove(oldest.Path)
		delete(s.index, oldestKey)
		s.currentBytes -= oldest.Size
	}
}
