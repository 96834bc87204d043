package courier

import (
	"log"
	"path/filepath"

	"ferry/pkg/protocol"

	"github.com/fsnotify/fsnotify"
)

// watch returns a channel that fires when the responses or failed stage
// changes, so Await can re-check before its next tick. If fsnotify is
// unavailable the channel simply never fires and Await degrades to pure
// polling; the ticker is the correctness mechanism either way.
func (c *Courier) watch() (<-chan struct{}, func()) {
	wake := make(chan struct{}, 1)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("courier: fsnotify unavailable, polling only: %v", err)
		return wake, func() {}
	}

	for _, stage := range []protocol.Stage{protocol.StageResponses, protocol.StageFailed} {
		if err := watcher.Add(filepath.Join(c.box.Root(), string(stage))); err != nil {
			log.Printf("courier: watch %s failed, polling only: %v", stage, err)
			_ = watcher.Close()
			return wake, func() {}
		}
	}

	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case _, ok := <-watcher.Events:
				if !ok {
					return
				}
				select {
				case wake <- struct{}{}:
				default: // a wake-up is already queued
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				if err != nil {
					log.Printf("courier: watcher error: %v", err)
				}
			}
		}
	}()

	return wake, func() {
		close(done)
		_ = watcher.Close()
	}
}
