package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Policy is the operator-tunable part of the pipeline: destination
// priorities and per-action score thresholds. It lives next to the
// process and can be edited while running.
type Policy struct {
	// Destinations maps a destination name to a priority: critical,
	// high, medium, low or disabled.
	Destinations map[string]string `yaml:"destinations"`
	// Thresholds overrides the execution threshold per action type.
	Thresholds map[string]float64 `yaml:"thresholds"`
	// MaxEngagementsPerHour caps per-user engagement; zero keeps the
	// built-in default.
	MaxEngagementsPerHour int `yaml:"max_engagements_per_hour"`
}

// LoadPolicy reads and parses the policy file. A missing file is not an
// error; it yields an empty policy.
func LoadPolicy(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Policy{}, nil
		}
		return nil, fmt.Errorf("read policy: %w", err)
	}
	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse policy: %w", err)
	}
	return &p, nil
}

// WatchPolicy reloads the policy on file changes and hands each valid
// reload to onChange. Malformed edits are logged and skipped so a typo
// never kills a running process. Blocks until ctx is done.
func WatchPolicy(ctx context.Context, path string, log zerolog.Logger, onChange func(*Policy)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: editors replace files, which drops a watch
	// on the file itself.
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	var debounce *time.Timer
	reload := func() {
		p, err := LoadPolicy(path)
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("policy reload skipped")
			return
		}
		log.Info().Str("path", path).Msg("policy reloaded")
		onChange(p)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			// Editors fire several events per save; collapse them.
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(200*time.Millisecond, reload)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("policy watcher error")
		}
	}
}
