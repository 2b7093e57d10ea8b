// SPDX-License-Identifier: GPL-3.0-or-later

package mindbridge

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// File sink defaults.
const (
	// DefaultOutputFilename is used when the output path names a directory.
	DefaultOutputFilename = "mindwave-output.csv"

	// OutputExtension is the recognized output file extension.
	OutputExtension = ".csv"
)

// ResolveOutputPath returns the directory and the file name for path.
//
// A path ending in lowercase [OutputExtension] names the file; any other path names
// the directory that will contain [DefaultOutputFilename].
func ResolveOutputPath(path string) (dir, file string) {
	if strings.HasSuffix(path, OutputExtension) {
		return filepath.Dir(path), filepath.Base(path)
	}
	return filepath.Clean(path), DefaultOutputFilename
}

// NewFileSink returns a new [*FileSink] appending to the given path.
//
// The logger argument is the [SLogger] to use for structured logging.
func NewFileSink(path string, logger SLogger) *FileSink {
	return &FileSink{
		DirMode:  0755,
		FileMode: 0644,
		Logger:   logger,
		Path:     path,
	}
}

// FileSink appends samples as comma-separated lines to a text file.
//
// The first line written by [*FileSink.Setup] holds the field names.
// Missing values are written as "nan".
type FileSink struct {
	// DirMode is the mode of created parent directories.
	//
	// Set by [NewFileSink] to 0755.
	DirMode os.FileMode

	// FileMode is the mode of the created file.
	//
	// Set by [NewFileSink] to 0644.
	FileMode os.FileMode

	// Logger is the [SLogger] to use.
	//
	// Set by [NewFileSink] to the user-provided logger.
	Logger SLogger

	// Path is the configured output path. See [ResolveOutputPath].
	//
	// Set by [NewFileSink] to the user-provided path.
	Path string

	file   *os.File
	mu     sync.Mutex
	writer *bufio.Writer
}

var _ Sink = &FileSink{}

// Name implements [Sink].
func (s *FileSink) Name() string {
	return "file"
}

// Setup implements [Sink].
//
// An empty channel list fails with [ErrSetup] before anything is created.
func (s *FileSink) Setup(channels []Channel) error {
	if len(channels) == 0 {
		return fmt.Errorf("%w: file sink needs a non-empty header", ErrSetup)
	}
	header := make([]string, 0, len(channels))
	for _, ch := range channels {
		header = append(header, ch.Metric)
	}

	dir, name := ResolveOutputPath(s.Path)
	if err := os.MkdirAll(dir, s.DirMode); err != nil {
		return fmt.Errorf("%w: cannot create %s: %w", ErrSetup, dir, err)
	}
	fullpath := filepath.Join(dir, name)
	file, err := os.OpenFile(fullpath, os.O_WRONLY|os.O_APPEND|os.O_CREATE, s.FileMode)
	if err != nil {
		return fmt.Errorf("%w: cannot open %s: %w", ErrSetup, fullpath, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.file = file
	s.writer = bufio.NewWriter(file)
	if err := s.writeLine(header); err != nil {
		file.Close()
		s.file, s.writer = nil, nil
		return fmt.Errorf("%w: cannot write header to %s: %w", ErrSetup, fullpath, err)
	}
	s.Logger.Info("fileSinkSetup", slog.String("path", fullpath), slog.Int("columns", len(header)))
	return nil
}

// Push implements [Sink].
//
// Each sample is flushed to the file before Push returns.
func (s *FileSink) Push(sample Sample) error {
	record := make([]string, 0, len(sample))
	for _, v := range sample {
		record = append(record, FormatValue(v))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writer == nil {
		return fmt.Errorf("%w: file sink not set up", ErrNotStarted)
	}
	return s.writeLine(record)
}

// writeLine must be called with the mutex held.
func (s *FileSink) writeLine(record []string) error {
	if _, err := s.writer.WriteString(strings.Join(record, ",") + "\n"); err != nil {
		return err
	}
	return s.writer.Flush()
}

// Close implements [Sink].
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	ferr := s.writer.Flush()
	cerr := s.file.Close()
	s.file, s.writer = nil, nil
	if ferr != nil {
		return ferr
	}
	return cerr
}

// FormatValue formats v using the shortest decimal representation.
//
// The [Missing] sentinel is formatted as "nan".
func FormatValue(v float64) string {
	if IsMissing(v) {
		return "nan"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
