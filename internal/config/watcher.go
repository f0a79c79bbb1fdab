package config

import (
	"github.com/fsnotify/fsnotify"
)

// Watch starts live reload: write or create events on the configuration
// file trigger a Load, and change subscribers run on success. Watch is a
// no-op when no path is configured.
func (c *Config) Watch() error {
	if c.path == "" {
		return nil
	}

	c.watchMu.Lock()
	defer c.watchMu.Unlock()
	if c.watchrun {
		return ErrWatcherRunning
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(c.path); err != nil {
		w.Close()
		return err
	}

	c.watchrun = true
	c.stop = make(chan struct{})
	c.done = make(chan struct{})

	go c.watchLoop(w)
	return nil
}

// Close stops the watcher, if running.
func (c *Config) Close() {
	c.watchMu.Lock()
	defer c.watchMu.Unlock()
	if !c.watchrun {
		return
	}
	close(c.stop)
	<-c.done
	c.watchrun = false
}

func (c *Config) watchLoop(w *fsnotify.Watcher) {
	defer close(c.done)
	defer w.Close()

	for {
		select {
		case <-c.stop:
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) {
				continue
			}
			if err := c.Load(); err != nil {
				c.log.Warn("config reload failed: %v", err)
				continue
			}
			c.log.Info("config reloaded from %s", c.path)
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			c.log.Warn("config watcher error: %v", err)
		}
	}
}
