package input

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/pikarelay/pkg/log"
)

// DefaultRescanInterval is how often Follow rereads the file without an event.
const DefaultRescanInterval = time.Second

// Follower tails a file that another process appends commands to.
type Follower struct {
	path   string
	fn     Handler
	logger log.Logger

	rescan  time.Duration
	offset  int64
	partial []byte
	lines   int
	handled int
}

// NewFollower creates a follower for path. Lines already in the file are
// handled first.
func NewFollower(path string, fn Handler, logger log.Logger) *Follower {
	return &Follower{
		path:   filepath.Clean(path),
		fn:     fn,
		logger: logger.With(log.String("input", path)),
		rescan: DefaultRescanInterval,
	}
}

// Handled returns the number of commands passed to the handler so far.
func (f *Follower) Handled() int {
	return f.handled
}

// Run handles every complete line appended to the file until ctx ends.
//
// The directory is watched so the file may be created after Run starts or
// be replaced by rotation. A file that shrinks is read again from the
// start. Lines with a syntax error are logged and skipped; a handler error
// stops Run.
func (f *Follower) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(f.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(f.path), err)
	}

	if err := f.drain(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(f.rescan)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != f.path {
				continue
			}
			if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				f.logger.Info("input file moved away, waiting for a new one")
				f.reset()
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := f.drain(ctx); err != nil {
				return err
			}

		case <-ticker.C:
			if err := f.drain(ctx); err != nil {
				return err
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			f.logger.Warn("watcher error", log.Err(err))
		}
	}
}

func (f *Follower) reset() {
	f.offset = 0
	f.partial = nil
}

// drain handles everything appended since the last call.
func (f *Follower) drain(ctx context.Context) error {
	file, err := os.Open(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("stat input: %w", err)
	}
	if info.Size() < f.offset {
		f.logger.Info("input file truncated, reading from start",
			log.Int64("size", info.Size()), log.Int64("offset", f.offset))
		f.reset()
	}
	if info.Size() == f.offset {
		return nil
	}

	if _, err := file.Seek(f.offset, io.SeekStart); err != nil {
		return fmt.Errorf("seek input: %w", err)
	}
	data, err := io.ReadAll(io.LimitReader(file, info.Size()-f.offset))
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	f.offset += int64(len(data))

	buf := append(f.partial, data...)
	for {
		i := bytes.IndexByte(buf, '\n')
		if i < 0 {
			break
		}
		line := string(buf[:i])
		buf = buf[i+1:]
		f.lines++

		handled, err := handleLine(ctx, line, f.fn)
		if errors.Is(err, ErrSyntax) {
			f.logger.Warn("skipping line", log.Int("line", f.lines), log.Err(err))
			continue
		}
		if err != nil {
			return err
		}
		if handled {
			f.handled++
		}
	}

	if len(buf) > MaxLineSize {
		f.logger.Warn("dropping oversized partial line", log.Int("bytes", len(buf)))
		buf = nil
	}
	f.partial = append([]byte(nil), buf...)
	return nil
}
