//go:build !darwin

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

func xdgDir(env string, fallback ...string) string {
	if dir := os.Getenv(env); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(append([]string{home}, fallback...)...)
}

func defaultDataDir() string {
	return filepath.Join(xdgDir("XDG_DATA_HOME", ".local", "share"), "folio")
}

func configFilePath() string {
	return filepath.Join(xdgDir("XDG_CONFIG_HOME", ".config"), "folio", "config.json")
}

func secretsFilePath() string {
	return filepath.Join(defaultDataDir(), "secrets.json")
}

func apiKeyHint(account string) string {
	return fmt.Sprintf(" or %s (service: %s, account: %s)", secretsFilePath(), keychainService, account)
}

// jsonFile is a small JSON document on disk, rewritten whole on every change.
type jsonFile struct {
	path string
}

// read decodes the file into v. A missing file leaves v untouched.
func (f jsonFile) read(v any) error {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parsing %s: %w", f.path, err)
	}
	return nil
}

// write replaces the file through a temp file and rename so readers never
// see a partial document.
func (f jsonFile) write(v any) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".folio-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), f.path)
}

// fileBackend keeps settings as a flat JSON object under $XDG_CONFIG_HOME.
type fileBackend struct {
	file jsonFile
	data map[string]any
}

func newPlatformBackend() Backend {
	b := &fileBackend{file: jsonFile{path: configFilePath()}, data: map[string]any{}}
	if err := b.file.read(&b.data); err != nil {
		slog.Warn("ignoring unreadable config file", "path", b.file.path, "error", err)
		b.data = nil
	}
	if b.data == nil {
		b.data = map[string]any{}
	}
	return b
}

// Get returns the stored value as text. Numbers written by hand into the
// file come back in their JSON form.
func (b *fileBackend) Get(key string) (string, bool, error) {
	v, ok := b.data[key]
	if !ok || v == nil {
		return "", false, nil
	}
	switch val := v.(type) {
	case string:
		return val, true, nil
	case float64, bool:
		out, _ := json.Marshal(val)
		return string(out), true, nil
	default:
		return "", true, fmt.Errorf("unsupported value type %T for %s", v, key)
	}
}

func (b *fileBackend) Set(key, val string) error {
	b.data[key] = val
	return b.file.write(b.data)
}

func (b *fileBackend) Delete(key string) error {
	if _, ok := b.data[key]; !ok {
		return nil
	}
	delete(b.data, key)
	return b.file.write(b.data)
}
