package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"taskwatch/pkg/logx"
)

// Watch follows the config file and calls onChange with each valid new
// config. Invalid candidates are logged and dropped; the running config stays
// in effect. Used only in daemon mode; single-pass runs read the file once.
//
// Watching the directory rather than the file survives the rename dance most
// editors and config management tools do on save.
func Watch(ctx context.Context, path string, log logx.Logger, onChange func(*Config)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	dir := filepath.Dir(path)
	file := filepath.Base(path)
	if err := w.Add(dir); err != nil {
		return err
	}

	// Debounce: editors fire several events per save, and a half-written
	// file must not be parsed.
	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	reload := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(250*time.Millisecond, func() {
			cfg, err := Parse(path)
			if err != nil {
				log.Warn("config reload rejected", logx.String("path", path), logx.Err(err))
				return
			}
			cfg.applyEnv()
			cfg.applyDefaults()
			if err := cfg.Validate(); err != nil {
				log.Warn("config reload rejected", logx.String("path", path), logx.Err(err))
				return
			}
			log.Info("config reloaded", logx.String("path", path))
			onChange(cfg)
		})
	}

	for {
		select {
		case <-ctx.Done():
			timerMu.Lock()
			if timer != nil {
				timer.Stop()
			}
			timerMu.Unlock()
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != file {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				reload()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("config watch error", logx.Err(err))
		}
	}
}
