package cache

import (
	"encoding/gob"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"karolbroda.com/skald/internal/lyrics"
	"karolbroda.com/skald/internal/track"
)

const (
	candidateVersion = 1
	prefsVersion     = 1
	defaultTTLDays   = 30
	cacheDirName     = "skald"
	lyricsDirName    = "lyrics"
	prefsDirName     = "prefs"
)

var (
	ErrCacheMiss    = errors.New("cache miss")
	ErrCacheExpired = errors.New("cache expired")
	ErrCacheCorrupt = errors.New("cache corrupt")
)

// candidateRecord is the on-disk envelope for one provider's answer.
type candidateRecord struct {
	Version   uint8
	Candidate lyrics.Candidate
	ExpiresAt int64
}

// Prefs stores per-track user decisions and the resolved race outcome.
// Prefs never expire.
type Prefs struct {
	Version      uint8
	SelectedLine string
	SelectedWord string
	PinnedLine   string
	PinnedWord   string
	OffsetMs     int64
	Instrumental bool
	ArtworkURL   string
	UpdatedAt    int64
}

// Store is a two-level cache: memory in front, gob files behind.
// Candidates live at lyrics/<keyhash>/<provider>.bin, prefs at
// prefs/<keyhash>.bin. An empty base path means memory only.
type Store struct {
	basePath string
	mu       sync.RWMutex
	memCand  map[string]map[string]*candidateRecord
	memPrefs map[string]*Prefs
}

func Open(basePath string) (*Store, error) {
	if basePath == "" {
		dir, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		basePath = dir
	}

	for _, sub := range []string{lyricsDirName, prefsDirName} {
		if err := os.MkdirAll(filepath.Join(basePath, sub), 0755); err != nil {
			return nil, err
		}
	}

	return &Store{
		basePath: basePath,
		memCand:  make(map[string]map[string]*candidateRecord),
		memPrefs: make(map[string]*Prefs),
	}, nil
}

// NewMemory returns a store that never touches disk.
func NewMemory() *Store {
	return &Store{
		memCand:  make(map[string]map[string]*candidateRecord),
		memPrefs: make(map[string]*Prefs),
	}
}

func DefaultDir() (string, error) {
	// xdg cache home takes priority
	xdgCache := os.Getenv("XDG_CACHE_HOME")
	if xdgCache != "" {
		return filepath.Join(xdgCache, cacheDirName), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(homeDir, ".cache", cacheDirName), nil
}

func (s *Store) candidatePath(keyHash, provider string) string {
	if s.basePath == "" {
		return ""
	}
	return filepath.Join(s.basePath, lyricsDirName, keyHash, provider+".bin")
}

func (s *Store) prefsPath(keyHash string) string {
	if s.basePath == "" {
		return ""
	}
	return filepath.Join(s.basePath, prefsDirName, keyHash+".bin")
}

// Put stores one provider's candidate for a track. Writing the same
// candidate twice is harmless; concurrent writers race to an atomic
// rename and the last one wins.
func (s *Store) Put(key track.Key, cand *lyrics.Candidate) error {
	if key.IsZero() || cand == nil || cand.Provider == "" {
		return errors.New("invalid cache entry")
	}

	now := time.Now().Unix()
	record := &candidateRecord{
		Version:   candidateVersion,
		Candidate: *cand.Clone(),
		ExpiresAt: now + int64(defaultTTLDays*24*60*60),
	}
	record.Candidate.CachedAt = now

	keyHash := key.Hash()

	s.mu.Lock()
	if s.memCand[keyHash] == nil {
		s.memCand[keyHash] = make(map[string]*candidateRecord)
	}
	s.memCand[keyHash][cand.Provider] = record
	s.mu.Unlock()

	if s.basePath == "" {
		return nil
	}

	path := s.candidatePath(keyHash, cand.Provider)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return writeGob(path, record)
}

// Get returns one provider's cached candidate for a track.
func (s *Store) Get(key track.Key, provider string) (*lyrics.Candidate, error) {
	if key.IsZero() || provider == "" {
		return nil, ErrCacheMiss
	}

	keyHash := key.Hash()
	now := time.Now().Unix()

	s.mu.RLock()
	record := s.memCand[keyHash][provider]
	s.mu.RUnlock()

	if record != nil {
		if record.ExpiresAt > now {
			return record.Candidate.Clone(), nil
		}
		s.mu.Lock()
		delete(s.memCand[keyHash], provider)
		s.mu.Unlock()
	}

	if s.basePath == "" {
		return nil, ErrCacheMiss
	}

	path := s.candidatePath(keyHash, provider)
	record, err := readCandidate(path)
	if err != nil {
		return nil, err
	}

	if record.ExpiresAt <= now {
		_ = os.Remove(path)
		return nil, ErrCacheExpired
	}

	s.mu.Lock()
	if s.memCand[keyHash] == nil {
		s.memCand[keyHash] = make(map[string]*candidateRecord)
	}
	s.memCand[keyHash][provider] = record
	s.mu.Unlock()

	return record.Candidate.Clone(), nil
}

// Candidates returns every cached candidate for a track, ordered by
// provider name.
func (s *Store) Candidates(key track.Key) ([]*lyrics.Candidate, error) {
	if key.IsZero() {
		return nil, nil
	}

	keyHash := key.Hash()
	found := make(map[string]*lyrics.Candidate)
	now := time.Now().Unix()

	if s.basePath != "" {
		dir := filepath.Join(s.basePath, lyricsDirName, keyHash)
		entries, err := os.ReadDir(dir)
		if err != nil && !os.IsNotExist(err) {
			return nil, err
		}
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".bin") {
				continue
			}
			record, err := readCandidate(filepath.Join(dir, entry.Name()))
			if err != nil || record.ExpiresAt <= now {
				continue
			}
			found[record.Candidate.Provider] = record.Candidate.Clone()
		}
	}

	s.mu.RLock()
	for provider, record := range s.memCand[keyHash] {
		if record.ExpiresAt > now {
			found[provider] = record.Candidate.Clone()
		}
	}
	s.mu.RUnlock()

	providers := make([]string, 0, len(found))
	for provider := range found {
		providers = append(providers, provider)
	}
	sort.Strings(providers)

	result := make([]*lyrics.Candidate, 0, len(found))
	for _, provider := range providers {
		result = append(result, found[provider])
	}
	return result, nil
}

// Prefs returns the stored preferences for a track, or zero prefs when
// none were saved yet.
func (s *Store) Prefs(key track.Key) (Prefs, error) {
	if key.IsZero() {
		return Prefs{}, nil
	}

	keyHash := key.Hash()

	s.mu.RLock()
	stored := s.memPrefs[keyHash]
	s.mu.RUnlock()

	if stored != nil {
		return *stored, nil
	}

	if s.basePath == "" {
		return Prefs{}, nil
	}

	prefs, err := readPrefs(s.prefsPath(keyHash))
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return Prefs{}, nil
		}
		return Prefs{}, err
	}

	s.mu.Lock()
	s.memPrefs[keyHash] = prefs
	s.mu.Unlock()

	return *prefs, nil
}

// UpdatePrefs applies a partial update under the store lock so two
// writers cannot lose each other's fields.
func (s *Store) UpdatePrefs(key track.Key, update func(*Prefs)) (Prefs, error) {
	if key.IsZero() {
		return Prefs{}, errors.New("invalid track key")
	}

	current, err := s.Prefs(key)
	if err != nil {
		return Prefs{}, err
	}

	s.mu.Lock()
	update(&current)
	current.Version = prefsVersion
	current.UpdatedAt = time.Now().Unix()
	keyHash := key.Hash()
	stored := current
	s.memPrefs[keyHash] = &stored
	s.mu.Unlock()

	if s.basePath == "" {
		return current, nil
	}

	if err := writeGob(s.prefsPath(keyHash), &current); err != nil {
		return current, err
	}
	return current, nil
}

// Invalidate drops all cached candidates for a track but keeps prefs.
func (s *Store) Invalidate(key track.Key) error {
	if key.IsZero() {
		return nil
	}

	keyHash := key.Hash()

	s.mu.Lock()
	delete(s.memCand, keyHash)
	s.mu.Unlock()

	if s.basePath == "" {
		return nil
	}

	err := os.RemoveAll(filepath.Join(s.basePath, lyricsDirName, keyHash))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Delete removes candidates and prefs for a track.
func (s *Store) Delete(key track.Key) error {
	if err := s.Invalidate(key); err != nil {
		return err
	}

	keyHash := key.Hash()

	s.mu.Lock()
	delete(s.memPrefs, keyHash)
	s.mu.Unlock()

	if s.basePath == "" {
		return nil
	}

	err := os.Remove(s.prefsPath(keyHash))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Clear drops all cached candidates. Prefs survive, they encode user
// decisions rather than fetched data.
func (s *Store) Clear() error {
	s.mu.Lock()
	s.memCand = make(map[string]map[string]*candidateRecord)
	s.mu.Unlock()

	if s.basePath == "" {
		return nil
	}

	dir := filepath.Join(s.basePath, lyricsDirName)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() {
			_ = os.RemoveAll(filepath.Join(dir, entry.Name()))
		}
	}
	return nil
}

// Prune removes expired and unreadable candidate files, returning how
// many were dropped.
func (s *Store) Prune() (int, error) {
	if s.basePath == "" {
		return 0, nil
	}

	dir := filepath.Join(s.basePath, lyricsDirName)
	keyDirs, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}

	pruned := 0
	now := time.Now().Unix()

	for _, keyDir := range keyDirs {
		if !keyDir.IsDir() {
			continue
		}
		keyPath := filepath.Join(dir, keyDir.Name())
		files, err := os.ReadDir(keyPath)
		if err != nil {
			continue
		}
		remaining := 0
		for _, file := range files {
			if file.IsDir() || !strings.HasSuffix(file.Name(), ".bin") {
				continue
			}
			path := filepath.Join(keyPath, file.Name())
			record, err := readCandidate(path)
			if err != nil || record.ExpiresAt <= now {
				_ = os.Remove(path)
				pruned++
				continue
			}
			remaining++
		}
		if remaining == 0 {
			_ = os.Remove(keyPath)
		}
	}

	s.mu.Lock()
	s.memCand = make(map[string]map[string]*candidateRecord)
	s.mu.Unlock()

	return pruned, nil
}

// Entry summarizes everything cached for one track.
type Entry struct {
	KeyHash    string
	Artist     string
	Title      string
	Providers  []string
	WordSynced bool
	SizeBytes  int64
}

// Entries lists the cache contents for the CLI.
func (s *Store) Entries() ([]Entry, error) {
	if s.basePath == "" {
		return nil, nil
	}

	dir := filepath.Join(s.basePath, lyricsDirName)
	keyDirs, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var result []Entry
	for _, keyDir := range keyDirs {
		if !keyDir.IsDir() {
			continue
		}
		keyPath := filepath.Join(dir, keyDir.Name())
		files, err := os.ReadDir(keyPath)
		if err != nil {
			continue
		}

		entry := Entry{KeyHash: keyDir.Name()}
		for _, file := range files {
			if file.IsDir() || !strings.HasSuffix(file.Name(), ".bin") {
				continue
			}
			info, err := file.Info()
			if err == nil {
				entry.SizeBytes += info.Size()
			}
			record, err := readCandidate(filepath.Join(keyPath, file.Name()))
			if err != nil {
				continue
			}
			entry.Providers = append(entry.Providers, record.Candidate.Provider)
			if record.Candidate.WordSynced() {
				entry.WordSynced = true
			}
			if entry.Artist == "" {
				entry.Artist = record.Candidate.Artist
				entry.Title = record.Candidate.Title
			}
		}
		if len(entry.Providers) == 0 {
			continue
		}
		sort.Strings(entry.Providers)
		result = append(result, entry)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Artist != result[j].Artist {
			return result[i].Artist < result[j].Artist
		}
		return result[i].Title < result[j].Title
	})
	return result, nil
}

// Stats reports candidate count and total size on disk.
func (s *Store) Stats() (count int, sizeBytes int64, err error) {
	if s.basePath == "" {
		return 0, 0, nil
	}

	dir := filepath.Join(s.basePath, lyricsDirName)
	keyDirs, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, 0, nil
		}
		return 0, 0, err
	}

	for _, keyDir := range keyDirs {
		if !keyDir.IsDir() {
			continue
		}
		files, err := os.ReadDir(filepath.Join(dir, keyDir.Name()))
		if err != nil {
			continue
		}
		for _, file := range files {
			if file.IsDir() || !strings.HasSuffix(file.Name(), ".bin") {
				continue
			}
			info, err := file.Info()
			if err != nil {
				continue
			}
			count++
			sizeBytes += info.Size()
		}
	}

	return count, sizeBytes, nil
}

func readCandidate(path string) (*candidateRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrCacheMiss
		}
		return nil, err
	}
	defer file.Close()

	var record candidateRecord
	if err := gob.NewDecoder(file).Decode(&record); err != nil {
		return nil, ErrCacheCorrupt
	}

	// version mismatch means stale format
	if record.Version != candidateVersion {
		_ = os.Remove(path)
		return nil, ErrCacheCorrupt
	}

	return &record, nil
}

func readPrefs(path string) (*Prefs, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrCacheMiss
		}
		return nil, err
	}
	defer file.Close()

	var prefs Prefs
	if err := gob.NewDecoder(file).Decode(&prefs); err != nil {
		return nil, ErrCacheCorrupt
	}
	if prefs.Version != prefsVersion {
		_ = os.Remove(path)
		return nil, ErrCacheCorrupt
	}

	return &prefs, nil
}

// writeGob writes to a private temp file first, then renames. Readers
// never observe a partial record.
func writeGob(path string, value any) error {
	file, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpPath := file.Name()

	if err := gob.NewEncoder(file).Encode(value); err != nil {
		file.Close()
		_ = os.Remove(tmpPath)
		return err
	}

	if err := file.Sync(); err != nil {
		file.Close()
		_ = os.Remove(tmpPath)
		return err
	}

	if err := file.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}

	return os.Rename(tmpPath, path)
}
