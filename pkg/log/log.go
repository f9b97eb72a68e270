// Copyright The Somas Authors. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package log provides leveled logging with a klog backend. Messages are
// produced through per-source Loggers. Debugging can be toggled per source
// at runtime, from the environment, or through a configuration update.
package log

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"

	"k8s.io/klog/v2"
)

// Level describes the severity of a log message.
type Level int

const (
	// LevelDebug is the severity of debug messages.
	LevelDebug Level = iota
	// LevelInfo is the severity of informational messages.
	LevelInfo
	// LevelWarn is the severity of warnings.
	LevelWarn
	// LevelError is the severity of errors.
	LevelError
)

// Logger is the interface for producing log messages for a source.
type Logger interface {
	// Debug formats and emits a debug message.
	Debug(format string, args ...interface{})
	// Info formats and emits an informational message.
	Info(format string, args ...interface{})
	// Warn formats and emits a warning message.
	Warn(format string, args ...interface{})
	// Error formats and emits an error message.
	Error(format string, args ...interface{})
	// Fatal formats and emits a fatal error and exits.
	Fatal(format string, args ...interface{})
	// Panic formats and emits an error message and panics with the same.
	Panic(format string, args ...interface{})

	// DebugBlock formats and emits a multiline debug message.
	DebugBlock(prefix string, format string, args ...interface{})
	// InfoBlock formats and emits a multiline informational message.
	InfoBlock(prefix string, format string, args ...interface{})
	// WarnBlock formats and emits a multiline warning.
	WarnBlock(prefix string, format string, args ...interface{})
	// ErrorBlock formats and emits a multiline error message.
	ErrorBlock(prefix string, format string, args ...interface{})

	// EnableDebug enables or disables debug messages for this Logger,
	// returning the previous setting.
	EnableDebug(bool) bool
	// DebugEnabled checks if debug messages are enabled for this Logger.
	DebugEnabled() bool
	// Source returns the source name of this Logger.
	Source() string
	// SlogHandler returns an slog.Handler emitting through this Logger.
	SlogHandler() slog.Handler
}

// logger implements Logger as a handle into the logging runtime state.
type logger int

// logging is the runtime state of all loggers.
type logging struct {
	sync.RWMutex
	level   Level
	prefix  bool
	forced  bool
	dbgmap  srcmap
	sources map[string]logger
	infos   []*sourceinfo
}

// sourceinfo is the per-source state of a Logger.
type sourceinfo struct {
	source string
	debug  bool
}

const (
	// defaultSource is the source of the default Logger.
	defaultSource = "default"
)

var (
	log = &logging{
		sources: make(map[string]logger),
	}
	deflog = log.get(defaultSource)
)

// Get returns the named Logger, creating it if necessary.
func Get(source string) Logger {
	return log.get(source)
}

// NewLogger creates the named Logger. It is an alias for Get.
func NewLogger(source string) Logger {
	return Get(source)
}

// Default returns the default Logger.
func Default() Logger {
	return deflog
}

// SetLevel sets the minimum severity of emitted messages.
func SetLevel(level Level) {
	log.Lock()
	defer log.Unlock()
	log.level = level
}

// EnableDebug enables or disables debugging for the given sources. The
// pseudo-source "*" toggles sources without an explicit setting.
func EnableDebug(enabled bool, sources ...string) {
	log.Lock()
	defer log.Unlock()
	if log.dbgmap == nil {
		log.dbgmap = make(srcmap)
	}
	for _, src := range sources {
		log.dbgmap[src] = enabled
	}
	log.applyDbgMap()
}

// Flush flushes any pending log messages.
func Flush() {
	klog.Flush()
}

// SetupDebugToggleSignal sets up a signal handler to toggle debug
// logging of all sources on the given signal. Toggling it back restores
// the configured per-source settings.
func SetupDebugToggleSignal(sig os.Signal) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, sig)
	go func() {
		for range sigs {
			log.Lock()
			log.forced = !log.forced
			log.applyDbgMap()
			state := "restored to configuration"
			if log.forced {
				state = "forced on for all sources"
			}
			log.Unlock()
			deflog.Info("debug logging %s", state)
		}
	}()
}

// get returns the handle for the given source, creating it if necessary.
func (l *logging) get(source string) logger {
	l.Lock()
	defer l.Unlock()

	if handle, ok := l.sources[source]; ok {
		return handle
	}

	handle := logger(len(l.infos))
	l.infos = append(l.infos, &sourceinfo{
		source: source,
		debug:  l.forced || l.dbgmap.enabled(source),
	})
	l.sources[source] = handle
	return handle
}

// setDbgMap replaces the debug settings. Caller holds the lock.
func (l *logging) setDbgMap(m srcmap) {
	l.dbgmap = m
	l.applyDbgMap()
}

// applyDbgMap reapplies the debug settings to all sources. Caller holds
// the lock.
func (l *logging) applyDbgMap() {
	for _, info := range l.infos {
		info.debug = l.forced || l.dbgmap.enabled(info.source)
	}
}

// setPrefix controls prefixing messages with their source. Caller holds
// the lock.
func (l *logging) setPrefix(prefix bool) {
	l.prefix = prefix
}

// enabled checks the effective debug setting for a source.
func (m srcmap) enabled(source string) bool {
	if state, ok := m[source]; ok {
		return state
	}
	if state, ok := m["*"]; ok {
		return state
	}
	return false
}

// info returns the per-source state for a handle.
func (l logger) info() *sourceinfo {
	log.RLock()
	defer log.RUnlock()
	return log.infos[l]
}

// format prepends the source prefix when source prefixing is on.
func (l logger) format(format string) string {
	if !log.prefix {
		return format
	}
	return fmt.Sprintf("%s: %s", log.infos[l].source, format)
}

func (l logger) Debug(format string, args ...interface{}) {
	info := l.info()
	if !info.debug || log.level > LevelDebug {
		return
	}
	klog.InfoDepth(1, fmt.Sprintf("D: "+l.format(format), args...))
}

func (l logger) Info(format string, args ...interface{}) {
	if log.level > LevelInfo {
		return
	}
	klog.InfoDepth(1, fmt.Sprintf(l.format(format), args...))
}

func (l logger) Warn(format string, args ...interface{}) {
	if log.level > LevelWarn {
		return
	}
	klog.WarningDepth(1, fmt.Sprintf(l.format(format), args...))
}

func (l logger) Error(format string, args ...interface{}) {
	klog.ErrorDepth(1, fmt.Sprintf(l.format(format), args...))
}

func (l logger) Fatal(format string, args ...interface{}) {
	klog.ExitDepth(1, fmt.Sprintf(l.format(format), args...))
}

func (l logger) Panic(format string, args ...interface{}) {
	msg := fmt.Sprintf(l.format(format), args...)
	klog.ErrorDepth(1, msg)
	panic(msg)
}

func (l logger) DebugBlock(prefix string, format string, args ...interface{}) {
	info := l.info()
	if !info.debug || log.level > LevelDebug {
		return
	}
	l.block(klogDebug, prefix, format, args...)
}

func (l logger) InfoBlock(prefix string, format string, args ...interface{}) {
	if log.level > LevelInfo {
		return
	}
	l.block(klogInfo, prefix, format, args...)
}

func (l logger) WarnBlock(prefix string, format string, args ...interface{}) {
	if log.level > LevelWarn {
		return
	}
	l.block(klogWarn, prefix, format, args...)
}

func (l logger) ErrorBlock(prefix string, format string, args ...interface{}) {
	l.block(klogError, prefix, format, args...)
}

// block emits a formatted message line by line with a common prefix.
func (l logger) block(emit func(string), prefix string, format string, args ...interface{}) {
	for _, line := range strings.Split(fmt.Sprintf(format, args...), "\n") {
		emit(l.format(prefix + line))
	}
}

func klogDebug(msg string) { klog.InfoDepth(3, "D: "+msg) }
func klogInfo(msg string)  { klog.InfoDepth(3, msg) }
func klogWarn(msg string)  { klog.WarningDepth(3, msg) }
func klogError(msg string) { klog.ErrorDepth(3, msg) }

func (l logger) EnableDebug(enabled bool) bool {
	log.Lock()
	defer log.Unlock()
	info := log.infos[l]
	old := info.debug
	info.debug = enabled
	return old
}

func (l logger) DebugEnabled() bool {
	return l.info().debug
}

func (l logger) Source() string {
	return l.info().source
}

// loggerError returns a package-specific formatted error.
func loggerError(format string, args ...interface{}) error {
	return fmt.Errorf("log: "+format, args...)
}
