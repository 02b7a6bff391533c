package generation

import (
	"os"
	"sync"

	"go.uber.org/zap"
)

// Cleaner deletes artifact files after they have been served. Deletion is
// deferred through a channel so the HTTP response is fully flushed before
// the file disappears.
type Cleaner struct {
	ch        chan string
	wg        sync.WaitGroup
	closeOnce sync.Once
	onCleanup func()
	logger    *zap.Logger
}

// NewCleaner starts the deletion worker. onCleanup may be nil; when set it
// runs once per successful removal.
func NewCleaner(onCleanup func(), logger *zap.Logger) *Cleaner {
	c := &Cleaner{
		ch:        make(chan string, 64),
		onCleanup: onCleanup,
		logger:    logger.With(zap.String("component", "cleaner")),
	}
	c.wg.Add(1)
	go c.loop()
	return c
}

// Schedule queues path for deletion. It never blocks the caller: when the
// queue is full the path is dropped and logged, leaving the file on disk.
func (c *Cleaner) Schedule(path string) {
	select {
	case c.ch <- path:
	default:
		c.logger.Warn("cleanup queue full, skipping", zap.String("path", path))
	}
}

// Close stops the worker after draining queued deletions.
func (c *Cleaner) Close() {
	c.closeOnce.Do(func() { close(c.ch) })
	c.wg.Wait()
}

func (c *Cleaner) loop() {
	defer c.wg.Done()
	for path := range c.ch {
		err := os.Remove(path)
		switch {
		case err == nil:
			c.logger.Info("artifact removed after serving", zap.String("path", path))
			if c.onCleanup != nil {
				c.onCleanup()
			}
		case os.IsNotExist(err):
			c.logger.Debug("artifact already gone", zap.String("path", path))
		default:
			c.logger.Warn("artifact cleanup failed", zap.String("path", path), zap.Error(err))
		}
	}
}
