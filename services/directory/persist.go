package directory

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"crafterDirectory/crafter"

	"github.com/cespare/xxhash/v2"
	"github.com/gofrs/flock"
	"github.com/rs/zerolog/log"
)

// Backup keeps an off-host copy of the directory file.
type Backup interface {
	Upload(ctx context.Context, name string, data []byte) error
	// Restore returns fs.ErrNotExist when there is no copy.
	Restore(ctx context.Context, name string) ([]byte, error)
}

const (
	filePerm      = 0o644
	dirPerm       = 0o755
	backupTimeout = 2 * time.Minute
)

// persister writes snapshots to the directory file on its own goroutine.
// Requests coalesce: only the latest snapshot is written.
type persister struct {
	path   string
	lock   *flock.Flock
	backup Backup

	mu        sync.Mutex
	latest    *indices
	version   uint64
	written   uint64
	attempts  uint64
	lastErr   error
	lastWrite time.Time
	changed   chan struct{}

	// fileMu orders file access within the process; the flock guards
	// against other processes.
	fileMu   sync.Mutex
	lastHash atomic.Uint64

	wake    chan struct{}
	done    chan struct{}
	stopped chan struct{}
}

func newPersister(path string, backup Backup) *persister {
	return &persister{
		path:    path,
		lock:    flock.New(path + ".lock"),
		backup:  backup,
		changed: make(chan struct{}),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

func (p *persister) start() {
	go p.loop()
}

// read returns the directory file content. A missing local file is restored
// from the backup when one is configured; with neither, read returns nil.
func (p *persister) read(ctx context.Context) ([]byte, error) {
	data, err := p.readLocal()
	if err == nil {
		p.lastHash.Store(xxhash.Sum64(data))
		return data, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	if p.backup == nil {
		log.Info().Str("path", p.path).Msg("no directory file yet, starting empty")
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, backupTimeout)
	defer cancel()
	data, err = p.backup.Restore(ctx, filepath.Base(p.path))
	if errors.Is(err, fs.ErrNotExist) {
		log.Info().Str("path", p.path).Msg("no directory file or backup yet, starting empty")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to restore directory file: %w", err)
	}
	log.Info().Str("path", p.path).Int("bytes", len(data)).Msg("restored directory file from backup")
	if err := p.writeFile(data); err != nil {
		return nil, err
	}
	p.lastHash.Store(xxhash.Sum64(data))
	return data, nil
}

func (p *persister) readLocal() ([]byte, error) {
	if err := os.MkdirAll(filepath.Dir(p.path), dirPerm); err != nil {
		return nil, err
	}
	p.fileMu.Lock()
	defer p.fileMu.Unlock()
	if err := p.lock.RLock(); err != nil {
		return nil, fmt.Errorf("failed to lock directory file: %w", err)
	}
	defer p.lock.Unlock()
	return os.ReadFile(p.path)
}

// request schedules ix to be written.
func (p *persister) request(ix *indices) {
	p.mu.Lock()
	p.latest = ix
	p.version++
	p.mu.Unlock()
	p.signal()
}

func (p *persister) signal() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// flush waits until everything requested before the call is on disk. It
// returns the error of a failed write attempt made after the call.
func (p *persister) flush(ctx context.Context) error {
	p.mu.Lock()
	target := p.version
	attempts := p.attempts
	p.mu.Unlock()
	p.signal()

	for {
		p.mu.Lock()
		if p.written >= target {
			p.mu.Unlock()
			return nil
		}
		if p.attempts > attempts && p.lastErr != nil {
			err := p.lastErr
			p.mu.Unlock()
			return err
		}
		changed := p.changed
		p.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (p *persister) loop() {
	defer close(p.stopped)
	for {
		select {
		case <-p.wake:
			p.writeLatest()
		case <-p.done:
			p.writeLatest()
			return
		}
	}
}

func (p *persister) writeLatest() {
	p.mu.Lock()
	ix, version := p.latest, p.version
	p.mu.Unlock()
	if ix == nil || version == p.writtenVersion() {
		return
	}

	err := p.write(ix)
	if err != nil {
		log.Error().Err(err).Str("path", p.path).Msg("failed to persist directory file")
	}

	p.mu.Lock()
	p.attempts++
	if err == nil {
		p.written = version
		p.lastErr = nil
		p.lastWrite = time.Now()
	} else {
		p.lastErr = err
	}
	close(p.changed)
	p.changed = make(chan struct{})
	p.mu.Unlock()
}

func (p *persister) writtenVersion() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written
}

func (p *persister) write(ix *indices) error {
	var buf bytes.Buffer
	if err := crafter.WriteDirectoryFile(&buf, ix.ownerEntries()); err != nil {
		return err
	}
	data := buf.Bytes()
	sum := xxhash.Sum64(data)
	if sum == p.lastHash.Load() {
		return nil
	}
	if err := p.writeFile(data); err != nil {
		return err
	}
	p.lastHash.Store(sum)
	log.Debug().Str("path", p.path).Int("bytes", len(data)).Msg("directory file written")

	if p.backup != nil {
		ctx, cancel := context.WithTimeout(context.Background(), backupTimeout)
		defer cancel()
		if err := p.backup.Upload(ctx, filepath.Base(p.path), data); err != nil {
			log.Warn().Err(err).Msg("failed to upload directory file backup")
		}
	}
	return nil
}

// writeFile replaces the directory file through a temp file in the same
// directory, so readers see either the old or the new content in full.
func (p *persister) writeFile(data []byte) error {
	dir := filepath.Dir(p.path)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return err
	}
	p.fileMu.Lock()
	defer p.fileMu.Unlock()
	if err := p.lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock directory file: %w", err)
	}
	defer p.lock.Unlock()

	tmpFile, err := os.CreateTemp(dir, filepath.Base(p.path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmpFile.Name()
	defer func() {
		if _, statErr := os.Stat(tmpName); statErr == nil {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		return err
	}
	if err := tmpFile.Sync(); err != nil {
		_ = tmpFile.Close()
		return err
	}
	if err := tmpFile.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, filePerm); err != nil {
		return err
	}
	return os.Rename(tmpName, p.path)
}

// stats reports the last successful write and the error of the last attempt.
func (p *persister) stats() (time.Time, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastWrite, p.lastErr
}

// close writes whatever is pending and stops the loop.
func (p *persister) close() {
	close(p.done)
	<-p.stopped
}
