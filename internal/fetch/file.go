package fetch

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
)

// fileCache is the durable half of a Cache: one flat text file whose
// modification time is the only staleness signal.
type fileCache struct {
	fs   afero.Fs
	path string
	ttl  time.Duration
}

// fresh reports whether the file exists, is non-empty and
// modTime+ttl is not before now. ttl <= 0 means always stale.
func (f fileCache) fresh(now time.Time) (time.Time, bool) {
	if f.path == "" || f.ttl <= 0 {
		return time.Time{}, false
	}
	fi, err := f.fs.Stat(f.path)
	if err != nil || fi.Size() == 0 {
		return time.Time{}, false
	}
	mod := fi.ModTime()
	if mod.Add(f.ttl).Before(now) {
		return mod, false
	}
	return mod, true
}

// read returns the file contents regardless of age.
func (f fileCache) read() (string, time.Time, error) {
	if f.path == "" {
		return "", time.Time{}, os.ErrNotExist
	}
	fi, err := f.fs.Stat(f.path)
	if err != nil {
		return "", time.Time{}, err
	}
	b, err := afero.ReadFile(f.fs, f.path)
	if err != nil {
		return "", time.Time{}, err
	}
	return string(b), fi.ModTime(), nil
}

// write replaces the file contents through a temp file and rename so a
// reader never sees a partial payload.
func (f fileCache) write(text string) error {
	if f.path == "" {
		return nil
	}
	if dir := filepath.Dir(f.path); dir != "" && dir != "." {
		if err := f.fs.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := f.path + ".tmp"
	if err := afero.WriteFile(f.fs, tmp, []byte(text), 0o644); err != nil {
		return err
	}
	return f.fs.Rename(tmp, f.path)
}
