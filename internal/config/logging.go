package config

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LogWriter returns the destination for diagnostic logs: a rotating file
// when log.file is set, stderr otherwise. Each call opens a new writer;
// callers open one per process, share it between loggers and close it.
func (c *Config) LogWriter() io.Writer {
	if c.Log.File == "" {
		return os.Stderr
	}
	return &lumberjack.Logger{
		Filename:   expandHome(c.Log.File),
		MaxSize:    c.Log.MaxSizeMB,
		MaxBackups: c.Log.MaxBackups,
		Compress:   true,
	}
}

// Logger returns a component logger writing to w, prefixed like "[store] ".
func Logger(w io.Writer, component string) *log.Logger {
	return log.New(w, "["+component+"] ", log.LstdFlags)
}
