// Package tmpfile hands out scratch files that are removed when the process
// is done with them, whichever way it gets there.
package tmpfile

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	log "github.com/sirupsen/logrus"
)

type Registry struct {
	lock  sync.Mutex
	dir   string
	paths []string
}

// New creates scratch files under dir, or the system temp dir when dir is empty.
func New(dir string) *Registry {
	return &Registry{dir: dir}
}

// Create makes an empty file named after pattern (see os.CreateTemp),
// closes it and registers it for removal.
func (r *Registry) Create(pattern string) (string, error) {
	f, err := os.CreateTemp(r.dir, pattern)
	if err != nil {
		return "", fmt.Errorf("creating scratch file: %w", err)
	}
	path := f.Name()
	r.lock.Lock()
	r.paths = append(r.paths, path)
	r.lock.Unlock()

	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing scratch file: %w", err)
	}
	return path, nil
}

// Paths lists the files currently registered.
func (r *Registry) Paths() []string {
	r.lock.Lock()
	defer r.lock.Unlock()
	return append([]string(nil), r.paths...)
}

// Cleanup removes every registered file. Safe to call more than once.
func (r *Registry) Cleanup() error {
	r.lock.Lock()
	paths := r.paths
	r.paths = nil
	r.lock.Unlock()

	var errs []error
	for _, path := range paths {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	if len(paths) > 0 {
		log.Printf("Removed %d scratch files", len(paths))
	}
	return errors.Join(errs...)
}

// CleanupOnSignal removes the registered files and exits when the process
// is interrupted or terminated. The returned func stops listening.
func (r *Registry) CleanupOnSignal() (stop func()) {
	sigs := make(chan os.Signal, 1)
	done := make(chan struct{})
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	go func() {
		select {
		case sig := <-sigs:
			log.Printf("Got %s, removing scratch files", sig)
			r.Cleanup()
			os.Exit(1)
		case <-done:
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			signal.Stop(sigs)
			close(done)
		})
	}
}
