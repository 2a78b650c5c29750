package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/conclave-ai/conclave/internal/council"
	"github.com/conclave-ai/conclave/internal/errors"
)

// Subdirectories under the data dir, one per entity kind.
const (
	councilsDir = "councils"
	projectsDir = "projects"
	launchesDir = "launches"
	sessionsDir = "sessions"
	messagesDir = "messages"
	logsDir     = "logs"
)

// FileStore is a file-backed Store. Every entity is a JSON document written
// atomically (temp file + rename); discussion messages and log entries are
// append-ordered arrays, one file per launch.
type FileStore struct {
	baseDir string
	mu      sync.RWMutex
}

// NewFileStore creates a FileStore rooted at baseDir, creating the per-entity
// subdirectories if needed.
func NewFileStore(baseDir string) (*FileStore, error) {
	for _, sub := range []string{councilsDir, projectsDir, launchesDir, sessionsDir, messagesDir, logsDir} {
		if err := os.MkdirAll(filepath.Join(baseDir, sub), 0755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}
	return &FileStore{baseDir: baseDir}, nil
}

// BaseDir returns the root of the data directory.
func (fs *FileStore) BaseDir() string {
	return fs.baseDir
}

// -----------------------------------------------------------------------------
// Councils
// -----------------------------------------------------------------------------

// SaveCouncil persists a council definition.
func (fs *FileStore) SaveCouncil(ctx context.Context, c *council.Council) error {
	if c.ID == "" {
		return fmt.Errorf("council ID cannot be empty")
	}
	return fs.saveDoc(councilsDir, c.ID, c)
}

// LoadCouncil retrieves a council by ID.
func (fs *FileStore) LoadCouncil(ctx context.Context, id string) (*council.Council, error) {
	var c council.Council
	if err := fs.loadDoc(councilsDir, id, &c); err != nil {
		return nil, notFoundOr(err, "council", id, errors.ErrCouncilNotFound)
	}
	return &c, nil
}

// ListCouncils returns all councils ordered by creation time.
func (fs *FileStore) ListCouncils(ctx context.Context) ([]*council.Council, error) {
	var out []*council.Council
	err := fs.eachDoc(councilsDir, func(data []byte) error {
		var c council.Council
		if err := json.Unmarshal(data, &c); err != nil {
			return err
		}
		out = append(out, &c)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Created.Equal(out[j].Created) {
			return out[i].ID < out[j].ID
		}
		return out[i].Created.Before(out[j].Created)
	})
	return out, nil
}

// DeleteCouncil removes a council definition.
func (fs *FileStore) DeleteCouncil(ctx context.Context, id string) error {
	if err := fs.deleteDoc(councilsDir, id); err != nil {
		return notFoundOr(err, "council", id, errors.ErrCouncilNotFound)
	}
	return nil
}

// -----------------------------------------------------------------------------
// Projects
// -----------------------------------------------------------------------------

// SaveProject persists a project.
func (fs *FileStore) SaveProject(ctx context.Context, p *council.Project) error {
	if p.ID == "" {
		return fmt.Errorf("project ID cannot be empty")
	}
	return fs.saveDoc(projectsDir, p.ID, p)
}

// LoadProject retrieves a project by ID.
func (fs *FileStore) LoadProject(ctx context.Context, id string) (*council.Project, error) {
	var p council.Project
	if err := fs.loadDoc(projectsDir, id, &p); err != nil {
		return nil, notFoundOr(err, "project", id, errors.ErrProjectNotFound)
	}
	return &p, nil
}

// ListProjects returns all projects ordered by creation time.
func (fs *FileStore) ListProjects(ctx context.Context) ([]*council.Project, error) {
	var out []*council.Project
	err := fs.eachDoc(projectsDir, func(data []byte) error {
		var p council.Project
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		out = append(out, &p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Created.Equal(out[j].Created) {
			return out[i].ID < out[j].ID
		}
		return out[i].Created.Before(out[j].Created)
	})
	return out, nil
}

// DeleteProject removes a project.
func (fs *FileStore) DeleteProject(ctx context.Context, id string) error {
	if err := fs.deleteDoc(projectsDir, id); err != nil {
		return notFoundOr(err, "project", id, errors.ErrProjectNotFound)
	}
	return nil
}

// -----------------------------------------------------------------------------
// Launches
// -----------------------------------------------------------------------------

// SaveLaunch persists a launch document.
func (fs *FileStore) SaveLaunch(ctx context.Context, l *council.Launch) error {
	if l.ID == "" {
		return fmt.Errorf("launch ID cannot be empty")
	}
	return fs.saveDoc(launchesDir, l.ID, l)
}

// LoadLaunch retrieves a launch by ID.
func (fs *FileStore) LoadLaunch(ctx context.Context, id string) (*council.Launch, error) {
	var l council.Launch
	if err := fs.loadDoc(launchesDir, id, &l); err != nil {
		return nil, notFoundOr(err, "launch", id, errors.ErrLaunchNotFound)
	}
	return &l, nil
}

// ListLaunches returns all launches ordered by creation time.
func (fs *FileStore) ListLaunches(ctx context.Context) ([]*council.Launch, error) {
	var out []*council.Launch
	err := fs.eachDoc(launchesDir, func(data []byte) error {
		var l council.Launch
		if err := json.Unmarshal(data, &l); err != nil {
			return err
		}
		out = append(out, &l)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Created.Equal(out[j].Created) {
			return out[i].ID < out[j].ID
		}
		return out[i].Created.Before(out[j].Created)
	})
	return out, nil
}

// -----------------------------------------------------------------------------
// Sessions
// -----------------------------------------------------------------------------

// SaveSession persists a worker session record.
func (fs *FileStore) SaveSession(ctx context.Context, s *council.Session) error {
	if s.ID == "" {
		return fmt.Errorf("session ID cannot be empty")
	}
	return fs.saveDoc(sessionsDir, s.ID, s)
}

// LoadSession retrieves a session by ID.
func (fs *FileStore) LoadSession(ctx context.Context, id string) (*council.Session, error) {
	var s council.Session
	if err := fs.loadDoc(sessionsDir, id, &s); err != nil {
		return nil, notFoundOr(err, "session", id, errors.ErrSessionNotFound)
	}
	return &s, nil
}

// ListSessionsByLaunch returns a launch's sessions ordered by creation time.
func (fs *FileStore) ListSessionsByLaunch(ctx context.Context, launchID string) ([]*council.Session, error) {
	var out []*council.Session
	err := fs.eachDoc(sessionsDir, func(data []byte) error {
		var s council.Session
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s.LaunchID == launchID {
			out = append(out, &s)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Created.Equal(out[j].Created) {
			return out[i].ID < out[j].ID
		}
		return out[i].Created.Before(out[j].Created)
	})
	return out, nil
}

// -----------------------------------------------------------------------------
// Discussion messages
// -----------------------------------------------------------------------------

// AppendMessage appends a discussion message to the launch's transcript.
func (fs *FileStore) AppendMessage(ctx context.Context, m *council.DiscussionMessage) error {
	if m.LaunchID == "" {
		return fmt.Errorf("message launch ID cannot be empty")
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	var msgs []*council.DiscussionMessage
	path := fs.docPath(messagesDir, m.LaunchID)
	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, &msgs); err != nil {
			return fmt.Errorf("failed to parse transcript: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to read transcript: %w", err)
	}

	msgs = append(msgs, m)
	data, err := json.MarshalIndent(msgs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal transcript: %w", err)
	}
	return atomicWriteFile(path, data, 0644)
}

// ListMessagesByLaunch returns the launch's transcript in append order.
func (fs *FileStore) ListMessagesByLaunch(ctx context.Context, launchID string) ([]*council.DiscussionMessage, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	data, err := os.ReadFile(fs.docPath(messagesDir, launchID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read transcript: %w", err)
	}

	var msgs []*council.DiscussionMessage
	if err := json.Unmarshal(data, &msgs); err != nil {
		return nil, fmt.Errorf("failed to parse transcript: %w", err)
	}
	return msgs, nil
}

// -----------------------------------------------------------------------------
// Launch logs
// -----------------------------------------------------------------------------

// AppendLog appends an entry to the launch's log.
func (fs *FileStore) AppendLog(ctx context.Context, e *council.LogEntry) error {
	if e.LaunchID == "" {
		return fmt.Errorf("log entry launch ID cannot be empty")
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	var entries []*council.LogEntry
	path := fs.docPath(logsDir, e.LaunchID)
	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, &entries); err != nil {
			return fmt.Errorf("failed to parse launch log: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to read launch log: %w", err)
	}

	entries = append(entries, e)
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal launch log: %w", err)
	}
	return atomicWriteFile(path, data, 0644)
}

// ListLogsByLaunch returns the launch's log entries in append order.
func (fs *FileStore) ListLogsByLaunch(ctx context.Context, launchID string) ([]*council.LogEntry, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	data, err := os.ReadFile(fs.docPath(logsDir, launchID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read launch log: %w", err)
	}

	var entries []*council.LogEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse launch log: %w", err)
	}
	return entries, nil
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

// docPath returns the JSON document path for an entity.
func (fs *FileStore) docPath(sub, id string) string {
	return filepath.Join(fs.baseDir, sub, id+".json")
}

// saveDoc marshals v and writes it atomically.
func (fs *FileStore) saveDoc(sub, id string, v any) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", strings.TrimSuffix(sub, "s"), err)
	}
	return atomicWriteFile(fs.docPath(sub, id), data, 0644)
}

// loadDoc reads and unmarshals a document into v.
func (fs *FileStore) loadDoc(sub, id string, v any) error {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	data, err := os.ReadFile(fs.docPath(sub, id))
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// deleteDoc removes a document.
func (fs *FileStore) deleteDoc(sub, id string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	return os.Remove(fs.docPath(sub, id))
}

// eachDoc invokes fn with the raw bytes of every document in a subdirectory.
func (fs *FileStore) eachDoc(sub string, fn func(data []byte) error) error {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	dir := filepath.Join(fs.baseDir, sub)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read store directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return fmt.Errorf("failed to read document: %w", err)
		}
		if err := fn(data); err != nil {
			return fmt.Errorf("failed to decode %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// notFoundOr converts a missing-file error into the entity's NotFound error,
// passing through anything else wrapped.
func notFoundOr(err error, resource, id string, sentinel error) error {
	if os.IsNotExist(err) {
		return errors.NewNotFoundError(resource, id).WithCause(sentinel)
	}
	return errors.Wrapf(err, "failed to load %s '%s'", resource, id)
}

// atomicWriteFile writes data to a file atomically by writing to a temporary
// file first, then renaming. This ensures the target file is never in a
// partially-written state.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)

	// Create temp file in same directory to ensure atomic rename
	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	// Clean up temp file on any error
	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}

	// Atomic rename
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}
