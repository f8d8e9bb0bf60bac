package settings

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// storeKey is the viper key of the enable flag inside the settings file.
const storeKey = "settings." + Key

// FileStore persists preferences to a YAML file and watches it for edits
// made by other processes.
type FileStore struct {
	path   string
	logger *slog.Logger

	mu       sync.Mutex
	last     Settings
	watching bool
	watchers watchers
}

// NewFileStore returns a store backed by path. The file is created on the
// first Save.
func NewFileStore(path string, logger *slog.Logger) *FileStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileStore{path: path, logger: logger, last: Defaults()}
}

// DefaultPath returns $HOME/.config/findclose/settings.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("settings: home directory: %w", err)
	}
	return filepath.Join(home, ".config", "findclose", "settings.yaml"), nil
}

// Path returns the backing file.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigFile(s.path)
	v.SetConfigType("yaml")
	v.SetDefault(storeKey, Defaults().IsFindCloseEnabled)
	return v
}

// Load implements Store. A missing file yields the defaults.
func (s *FileStore) Load(ctx context.Context) (Settings, error) {
	if err := ctx.Err(); err != nil {
		return Defaults(), err
	}
	out, err := s.read()
	if err != nil {
		return out, err
	}
	s.mu.Lock()
	s.last = out
	s.mu.Unlock()
	return out, nil
}

func (s *FileStore) read() (Settings, error) {
	v := s.newViper()
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			return Defaults(), nil
		}
		return Defaults(), fmt.Errorf("settings: read %s: %w", s.path, err)
	}
	return Settings{IsFindCloseEnabled: v.GetBool(storeKey)}, nil
}

// Save implements Store. Watchers registered on this store are notified
// when the value changes.
func (s *FileStore) Save(ctx context.Context, next Settings) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("settings: create dir: %w", err)
	}
	// Write then rename so a watcher never reads a truncated file.
	tmp := s.path + ".tmp.yaml"
	v := s.newViper()
	v.Set(storeKey, next.IsFindCloseEnabled)
	if err := v.WriteConfigAs(tmp); err != nil {
		return fmt.Errorf("settings: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("settings: replace %s: %w", s.path, err)
	}
	s.publish(next)
	return nil
}

// Watch implements Store. The first call starts a file watcher; edits that
// change the enable flag are delivered to every callback.
func (s *FileStore) Watch(fn func(Change)) func() {
	cancel := s.watchers.add(fn)

	s.mu.Lock()
	start := !s.watching
	s.watching = true
	s.mu.Unlock()
	if start {
		s.startWatcher()
	}
	return cancel
}

func (s *FileStore) startWatcher() {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		s.logger.Warn("settings watch disabled", "path", s.path, "error", err)
		return
	}
	v := s.newViper()
	v.OnConfigChange(func(e fsnotify.Event) {
		next, err := s.read()
		if err != nil {
			s.logger.Warn("settings reload failed", "path", e.Name, "error", err)
			return
		}
		s.publish(next)
	})
	v.WatchConfig()
	s.logger.Debug("watching settings", "path", s.path)
}

// publish records next and notifies watchers if it differs from the last
// published value.
func (s *FileStore) publish(next Settings) {
	s.mu.Lock()
	old := s.last
	s.last = next
	s.mu.Unlock()
	if old != next {
		s.watchers.notify(Change{Old: old, New: next})
	}
}
