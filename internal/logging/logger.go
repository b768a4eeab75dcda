// Package logging provides config-driven categorized logging for pagebrain.
// Every category is a named zap logger sharing one core. Until Initialize is
// called all loggers are no-ops, so nothing is ever written over the terminal UI.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot     Category = "boot"     // Startup, config loading
	CategorySession  Category = "session"  // Turn handling, navigation
	CategoryAPI      Category = "api"      // Chat-completion and models HTTP calls
	CategoryStore    Category = "store"    // Key-value persistence
	CategoryBrowser  Category = "browser"  // Page loading (HTTP, Chrome, files)
	CategoryCommands Category = "commands" // Slash-command dispatch
	CategoryResearch Category = "research" // Research agent verdicts
	CategoryOverview Category = "overview" // Overview map-reduce
)

// Options mirrors config.LoggingConfig to avoid an import cycle.
type Options struct {
	Level      string          // debug, info, warn, error
	Format     string          // json or console
	File       string          // empty disables logging
	Categories map[string]bool // nil enables every category
}

var (
	mu         sync.RWMutex
	base       = zap.NewNop()
	categories map[string]bool
	loggers    = make(map[Category]*zap.SugaredLogger)
	closer     func() error
)

// Initialize builds the shared core from opts. An empty File leaves logging
// disabled; calling Initialize again replaces the previous core.
func Initialize(opts Options) error {
	if opts.File == "" {
		reset(zap.NewNop(), nil, nil)
		return nil
	}

	level := zapcore.InfoLevel
	if opts.Level != "" {
		parsed, err := zapcore.ParseLevel(opts.Level)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
		level = parsed
	}

	if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	file, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var enc zapcore.Encoder
	if opts.Format == "console" {
		enc = zapcore.NewConsoleEncoder(encCfg)
	} else {
		enc = zapcore.NewJSONEncoder(encCfg)
	}

	core := zapcore.NewCore(enc, zapcore.AddSync(file), zap.NewAtomicLevelAt(level))
	reset(zap.New(core), opts.Categories, file.Close)

	Get(CategoryBoot).Infow("logging initialized", "file", opts.File, "level", level.String())
	return nil
}

// UseLogger installs an already built zap logger. Tests use it with
// zaptest/observer to assert on emitted entries.
func UseLogger(l *zap.Logger, cats map[string]bool) {
	reset(l, cats, nil)
}

func reset(l *zap.Logger, cats map[string]bool, c func() error) {
	mu.Lock()
	defer mu.Unlock()
	if closer != nil {
		_ = base.Sync()
		_ = closer()
	}
	base = l
	categories = cats
	closer = c
	loggers = make(map[Category]*zap.SugaredLogger)
}

// IsCategoryEnabled returns whether a specific category is enabled
func IsCategoryEnabled(category Category) bool {
	mu.RLock()
	defer mu.RUnlock()
	return categoryEnabledLocked(category)
}

func categoryEnabledLocked(category Category) bool {
	if categories == nil {
		return true
	}
	enabled, ok := categories[string(category)]
	if !ok {
		return true
	}
	return enabled
}

// Get returns (or creates) the logger for a category. Disabled categories
// get a no-op logger.
func Get(category Category) *zap.SugaredLogger {
	mu.RLock()
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}
	var l *zap.SugaredLogger
	if categoryEnabledLocked(category) {
		l = base.Named(string(category)).Sugar()
	} else {
		l = zap.NewNop().Sugar()
	}
	loggers[category] = l
	return l
}

// CloseAll flushes and closes the log file.
func CloseAll() {
	reset(zap.NewNop(), nil, nil)
}

// =============================================================================
// CONVENIENCE FUNCTIONS
// =============================================================================

func Boot(format string, args ...interface{}) {
	Get(CategoryBoot).Infof(format, args...)
}

func BootWarn(format string, args ...interface{}) {
	Get(CategoryBoot).Warnf(format, args...)
}

func Session(format string, args ...interface{}) {
	Get(CategorySession).Infof(format, args...)
}

func SessionDebug(format string, args ...interface{}) {
	Get(CategorySession).Debugf(format, args...)
}

func SessionError(format string, args ...interface{}) {
	Get(CategorySession).Errorf(format, args...)
}

func API(format string, args ...interface{}) {
	Get(CategoryAPI).Infof(format, args...)
}

func APIDebug(format string, args ...interface{}) {
	Get(CategoryAPI).Debugf(format, args...)
}

func APIError(format string, args ...interface{}) {
	Get(CategoryAPI).Errorf(format, args...)
}

func Store(format string, args ...interface{}) {
	Get(CategoryStore).Infof(format, args...)
}

func StoreDebug(format string, args ...interface{}) {
	Get(CategoryStore).Debugf(format, args...)
}

func Browser(format string, args ...interface{}) {
	Get(CategoryBrowser).Infof(format, args...)
}

func BrowserDebug(format string, args ...interface{}) {
	Get(CategoryBrowser).Debugf(format, args...)
}

func BrowserWarn(format string, args ...interface{}) {
	Get(CategoryBrowser).Warnf(format, args...)
}

func Commands(format string, args ...interface{}) {
	Get(CategoryCommands).Infof(format, args...)
}

func CommandsDebug(format string, args ...interface{}) {
	Get(CategoryCommands).Debugf(format, args...)
}

func Research(format string, args ...interface{}) {
	Get(CategoryResearch).Infof(format, args...)
}

func ResearchDebug(format string, args ...interface{}) {
	Get(CategoryResearch).Debugf(format, args...)
}

func ResearchWarn(format string, args ...interface{}) {
	Get(CategoryResearch).Warnf(format, args...)
}

func Overview(format string, args ...interface{}) {
	Get(CategoryOverview).Infof(format, args...)
}

func OverviewDebug(format string, args ...interface{}) {
	Get(CategoryOverview).Debugf(format, args...)
}

// =============================================================================
// TIMERS
// =============================================================================

// Timer measures an operation and logs its duration on Stop.
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation
func StartTimer(category Category, operation string) *Timer {
	return &Timer{category: category, op: operation, start: time.Now()}
}

// Stop ends the timer and logs the duration at debug level
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debugw(t.op+" completed", "elapsed", elapsed)
	return elapsed
}

// StopWithThreshold logs a warning if the duration exceeds threshold
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	if elapsed > threshold {
		Get(t.category).Warnw(t.op+" was slow", "elapsed", elapsed, "threshold", threshold)
	} else {
		Get(t.category).Debugw(t.op+" completed", "elapsed", elapsed)
	}
	return elapsed
}
