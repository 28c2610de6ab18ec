package logging

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// levelWriter writes one level's entries to Director/<level>.log, rotated by lumberjack.
type levelWriter struct {
	config Config
	level  string

	mu     sync.Mutex
	writer *lumberjack.Logger
}

func newLevelWriter(config Config, level string) *levelWriter {
	return &levelWriter{
		config: config,
		level:  level,
	}
}

// Write implements io.Writer. The file is opened lazily on first write.
func (w *levelWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.writer == nil {
		if err := os.MkdirAll(w.config.Director, 0o755); err != nil {
			return 0, err
		}
		w.writer = &lumberjack.Logger{
			Filename:   filepath.Join(w.config.Director, w.level+".log"),
			MaxSize:    w.config.MaxSize,
			MaxBackups: w.config.MaxBackups,
			MaxAge:     w.config.MaxAge,
			Compress:   w.config.Compress,
			LocalTime:  true,
		}
	}
	return w.writer.Write(p)
}

// Sync implements zapcore.WriteSyncer. lumberjack writes through, so there is nothing to flush.
func (w *levelWriter) Sync() error {
	return nil
}

// Close closes the underlying file, if any.
func (w *levelWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.writer == nil {
		return nil
	}
	err := w.writer.Close()
	w.writer = nil
	return err
}

var (
	writerRegistry   []*levelWriter
	writerRegistryMu sync.Mutex
)

// CloseAllWriters closes every file writer created by NewLogger.
func CloseAllWriters() error {
	writerRegistryMu.Lock()
	defer writerRegistryMu.Unlock()

	var lastErr error
	for _, w := range writerRegistry {
		if err := w.Close(); err != nil {
			lastErr = err
		}
	}
	writerRegistry = nil
	return lastErr
}

// getWriteSyncer combines stderr and the level file according to config.
func getWriteSyncer(config Config, level string) zapcore.WriteSyncer {
	var syncers []zapcore.WriteSyncer
	if config.LogInTerminal {
		syncers = append(syncers, zapcore.Lock(os.Stderr))
	}
	if config.Director != "" {
		fw := newLevelWriter(config, level)
		writerRegistryMu.Lock()
		writerRegistry = append(writerRegistry, fw)
		writerRegistryMu.Unlock()
		syncers = append(syncers, zapcore.AddSync(fw))
	}

	switch len(syncers) {
	case 0:
		return zapcore.AddSync(io.Discard)
	case 1:
		return syncers[0]
	default:
		return zapcore.NewMultiWriteSyncer(syncers...)
	}
}

var _ io.WriteCloser = (*levelWriter)(nil)
