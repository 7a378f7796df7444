package logger

import "gopkg.in/natefinch/lumberjack.v2"

// RotatingFile returns an io.Writer backed by a size-rotated log file
// under path. Old files are gzip-compressed and pruned once maxBackups
// is exceeded. It can be passed to New in place of a plain os.File;
// cmd/voicecore does not use it and writes -log-file as a plain
// appended file.
func RotatingFile(path string, maxSizeMB, maxBackups, maxAgeDays int) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAgeDays,
		Compress:   true,
	}
}
