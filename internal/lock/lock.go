// Package lock provides the whole-repository advisory lock taken by every
// mutating operation.
package lock

import (
	"fmt"
	"os"

	gerrors "gible/internal/errors"

	"github.com/go-git/go-billy/v5"
	"go.uber.org/zap"
)

const FileName = "lock"

// Lock is a held repository lock.
type Lock struct {
	file   billy.File
	logger *zap.Logger
}

// Acquire opens the lock file under the repository dir and takes an
// exclusive lock on it. On POSIX filesystems this is flock, which blocks
// until another holder releases it.
func Acquire(fs billy.Filesystem, logger *zap.Logger) (*Lock, error) {
	f, err := fs.OpenFile(FileName, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, gerrors.Locked(fmt.Sprintf("opening lock file: %v", err))
	}
	if err := f.Lock(); err != nil {
		f.Close()
		return nil, gerrors.Locked(fmt.Sprintf("locking repository: %v", err))
	}
	logger.Debug("repository lock acquired")
	return &Lock{file: f, logger: logger}, nil
}

// Release unlocks and closes the lock file. It is safe to call on nil.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	f := l.file
	l.file = nil
	if err := f.Unlock(); err != nil {
		f.Close()
		return fmt.Errorf("unlocking repository: %w", err)
	}
	l.logger.Debug("repository lock released")
	return f.Close()
}
