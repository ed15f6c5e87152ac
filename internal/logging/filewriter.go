package logging

import (
	"fmt"
	"os"
	"sync"
)

// FileWriter appends log lines to a file and rotates it by size.
// Rotated files are named path.1 (newest) through path.N (oldest).
type FileWriter struct {
	path       string
	maxBytes   int64
	maxBackups int

	mu     sync.Mutex
	file   *os.File
	size   int64
	closed bool
}

// NewFileWriter opens path for appending.
// A maxSizeMB of zero disables rotation.
func NewFileWriter(path string, maxSizeMB, maxBackups int) (*FileWriter, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat log file %s: %w", path, err)
	}

	return &FileWriter{
		path:       path,
		maxBytes:   int64(maxSizeMB) * 1024 * 1024,
		maxBackups: maxBackups,
		file:       file,
		size:       info.Size(),
	}, nil
}

// Write implements io.Writer. The file is rotated before a write that
// would push it past the size limit.
func (fw *FileWriter) Write(p []byte) (int, error) {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if fw.closed {
		return 0, fmt.Errorf("file writer is closed")
	}

	if fw.maxBytes > 0 && fw.size > 0 && fw.size+int64(len(p)) > fw.maxBytes {
		if err := fw.rotate(); err != nil {
			// Keep writing to the current file
			fmt.Fprintf(os.Stderr, "[ERROR] Failed to rotate log file: %v\n", err)
		}
	}

	n, err := fw.file.Write(p)
	fw.size += int64(n)
	return n, err
}

// rotate shifts backups and reopens a fresh file. Caller must hold the mutex.
func (fw *FileWriter) rotate() error {
	if err := fw.file.Close(); err != nil {
		return fmt.Errorf("failed to close file before rotation: %w", err)
	}

	renameErr := fw.shiftBackups()

	file, err := os.OpenFile(fw.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to reopen file after rotation: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("failed to stat reopened file: %w", err)
	}

	fw.file = file
	fw.size = info.Size()
	return renameErr
}

// shiftBackups renames path.N-1 → path.N down to path → path.1 and drops the oldest
func (fw *FileWriter) shiftBackups() error {
	if fw.maxBackups <= 0 {
		if err := os.Remove(fw.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove current log file: %w", err)
		}
		return nil
	}

	oldest := fmt.Sprintf("%s.%d", fw.path, fw.maxBackups)
	if err := os.Remove(oldest); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete oldest backup %s: %w", oldest, err)
	}

	for i := fw.maxBackups - 1; i >= 1; i-- {
		from := fmt.Sprintf("%s.%d", fw.path, i)
		to := fmt.Sprintf("%s.%d", fw.path, i+1)
		if err := os.Rename(from, to); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to rename backup %s to %s: %w", from, to, err)
		}
	}

	if err := os.Rename(fw.path, fw.path+".1"); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to rename current log %s: %w", fw.path, err)
	}
	return nil
}

// Close closes the underlying file
func (fw *FileWriter) Close() error {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if fw.closed {
		return nil
	}
	fw.closed = true

	if err := fw.file.Close(); err != nil {
		return fmt.Errorf("failed to close log file: %w", err)
	}
	return nil
}
