package filetail

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"rlog/internal/queue"
	"rlog/internal/shipperconfig"
	"rlog/internal/wire"
)

// ConfigLookup returns the current parse config for path, or ok=false if
// the path is no longer configured: the tailer exits if its path
// disappears from configuration on reload.
type ConfigLookup func(path string) (cfg *shipperconfig.FileParseConfig, ok bool)

// Tailer follows one file with tail -F semantics: it reopens the file on
// truncation or rotation (remove+recreate), parses each new line with the
// currently configured pattern, and pushes the result onto out. A partial
// trailing line is held in buf until a newline completes it.
type Tailer struct {
	path   string
	lookup ConfigLookup
	out    *queue.Queue[*wire.LogLine]
	log    *logrus.Entry

	f      *os.File
	offset int64
	buf    []byte

	errorCount   int64
	droppedCount int64
}

// New builds a tailer for path.
func New(path string, lookup ConfigLookup, out *queue.Queue[*wire.LogLine], log *logrus.Entry) *Tailer {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Tailer{path: path, lookup: lookup, out: out, log: log.WithField("component", "files_in").WithField("file", path)}
}

// Run tails the file until ctx is canceled, the path is no longer
// configured, or an unrecoverable error occurs.
func (t *Tailer) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "create fsnotify watcher")
	}
	defer watcher.Close()

	dir := filepath.Dir(t.path)
	if err := watcher.Add(dir); err != nil {
		return errors.Wrapf(err, "watch directory %s", dir)
	}

	if err := t.openAtEnd(); err != nil {
		return err
	}
	defer t.f.Close()

	t.log.Info("watching new lines")
	t.drain()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(t.path) {
				continue
			}
			if _, ok := t.lookup(t.path); !ok {
				t.log.Info("config changed: file is not monitored anymore")
				return nil
			}

			switch {
			case ev.Has(fsnotify.Write):
				t.handleWrite()
			case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename), ev.Has(fsnotify.Create):
				t.handleRotate()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			t.log.WithError(err).Error("fsnotify watcher error")
		}
	}
}

// handleWrite reopens the file if it shrank (truncated in place, e.g. by
// logrotate's copytruncate) and then drains whatever is newly available.
func (t *Tailer) handleWrite() {
	info, err := t.f.Stat()
	if err == nil && info.Size() < t.offset {
		t.log.Debug("file truncated, reopening from start")
		t.f.Close()
		f, openErr := os.Open(t.path)
		if openErr != nil {
			t.log.WithError(openErr).Error("unable to reopen truncated file")
			return
		}
		t.f = f
		t.offset = 0
		t.buf = t.buf[:0]
	}
	t.drain()
}

// handleRotate reopens the path after a remove/rename event (logrotate's
// default create mode), tolerating a brief window where the path does not
// yet exist: the create event for the new file calls it again.
func (t *Tailer) handleRotate() {
	t.f.Close()
	if err := t.openAtEnd(); err != nil {
		t.log.WithError(err).Debug("file removed, waiting for it to reappear")
		return
	}
	t.buf = t.buf[:0]
	t.drain()
}

// drain reads every complete line currently available and hands it to
// handleLine, keeping any trailing partial line buffered for next time.
func (t *Tailer) drain() {
	chunk := make([]byte, 64*1024)
	for {
		n, err := t.f.ReadAt(chunk, t.offset)
		if n > 0 {
			t.offset += int64(n)
			t.buf = append(t.buf, chunk[:n]...)
		}
		if n > 0 {
			t.consumeLines()
		}
		if err == io.EOF || n == 0 {
			return
		}
		if err != nil {
			t.log.WithError(err).Error("unable to read file")
			return
		}
	}
}

func (t *Tailer) consumeLines() {
	for {
		idx := bytes.IndexByte(t.buf, '\n')
		if idx < 0 {
			return
		}
		line := string(bytes.TrimRight(t.buf[:idx], "\r"))
		t.buf = t.buf[idx+1:]
		t.handleLine(line)
	}
}

func (t *Tailer) handleLine(line string) {
	if line == "" {
		return
	}
	cfg, ok := t.lookup(t.path)
	if !ok {
		return
	}

	ll, err := ParseLine(cfg, line, t.path)
	if err != nil {
		t.errorCount++
		t.log.WithError(err).Error("unable to parse file line")
		return
	}
	if t.out.TrySend(ll) == queue.Full {
		t.droppedCount++
		t.log.Warn("file_in queue full, dropping record")
	}
}

func (t *Tailer) openAtEnd() error {
	f, err := os.Open(t.path)
	if err != nil {
		return errors.Wrapf(err, "open %s", t.path)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return errors.Wrapf(err, "stat %s", t.path)
	}
	t.f = f
	t.offset = info.Size()
	t.buf = t.buf[:0]
	return nil
}

func (t *Tailer) ErrorCount() int64   { return t.errorCount }
func (t *Tailer) DroppedCount() int64 { return t.droppedCount }
