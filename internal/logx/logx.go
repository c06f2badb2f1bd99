package logx

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// Level is the verbosity of a Logger.
type Level int

const (
	// LevelQuiet shows errors only.
	LevelQuiet Level = iota
	LevelNormal
	// LevelVerbose adds per-stage progress and adapter diagnostics.
	LevelVerbose
	LevelDebug
)

func (l Level) String() string {
	switch l {
	case LevelQuiet:
		return "quiet"
	case LevelNormal:
		return "normal"
	case LevelVerbose:
		return "verbose"
	case LevelDebug:
		return "debug"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// ParseLevel accepts full names and single-letter abbreviations.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "quiet", "q":
		return LevelQuiet, nil
	case "", "normal", "n":
		return LevelNormal, nil
	case "verbose", "v":
		return LevelVerbose, nil
	case "debug", "d":
		return LevelDebug, nil
	default:
		return LevelNormal, fmt.Errorf("unknown log level %q (want quiet|normal|verbose|debug)", s)
	}
}

const (
	colorInfo    = "#5A9BF6"
	colorSuccess = "#04B575"
	colorWarn    = "#E5C07B"
	colorError   = "#FF5F56"
	colorDebug   = "#626262"
)

type styles struct {
	info, success, warn, err, debug lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		info:    r.NewStyle().Foreground(lipgloss.Color(colorInfo)),
		success: r.NewStyle().Foreground(lipgloss.Color(colorSuccess)),
		warn:    r.NewStyle().Foreground(lipgloss.Color(colorWarn)),
		err:     r.NewStyle().Bold(true).Foreground(lipgloss.Color(colorError)),
		debug:   r.NewStyle().Foreground(lipgloss.Color(colorDebug)),
	}
}

// Logger writes leveled, optionally colored lines. Safe for concurrent use.
type Logger struct {
	mu     sync.Mutex
	out    io.Writer
	errOut io.Writer
	level  Level
	color  bool
	st     styles
}

// New returns a Logger writing progress to out and errors to errOut.
// Colors are disabled when NO_COLOR is set or the writer is not a terminal.
func New(out, errOut io.Writer, level Level) *Logger {
	_, noColor := os.LookupEnv("NO_COLOR")
	return &Logger{
		out:    out,
		errOut: errOut,
		level:  level,
		color:  !noColor,
		st:     newStyles(lipgloss.NewRenderer(out)),
	}
}

// Nop discards everything.
func Nop() *Logger { return New(io.Discard, io.Discard, LevelQuiet) }

func (l *Logger) Enabled(level Level) bool { return l.level >= level }

func (l *Logger) Error(format string, args ...any) {
	l.write(l.errOut, l.st.err, "", format, args...)
}

func (l *Logger) Info(format string, args ...any) {
	if l.Enabled(LevelNormal) {
		l.write(l.out, l.st.info, "", format, args...)
	}
}

func (l *Logger) Success(format string, args ...any) {
	if l.Enabled(LevelNormal) {
		l.write(l.out, l.st.success, "", format, args...)
	}
}

func (l *Logger) Warn(format string, args ...any) {
	if l.Enabled(LevelNormal) {
		l.write(l.out, l.st.warn, "", format, args...)
	}
}

func (l *Logger) Verbose(format string, args ...any) {
	if l.Enabled(LevelVerbose) {
		l.write(l.out, l.st.info, "\t", format, args...)
	}
}

func (l *Logger) Debug(format string, args ...any) {
	if l.Enabled(LevelDebug) {
		l.write(l.out, l.st.debug, "\t", format, args...)
	}
}

// Logf is the func(format, args...) handed to adapters; it logs at verbose level.
func (l *Logger) Logf(format string, args ...any) { l.Verbose(format, args...) }

func (l *Logger) write(w io.Writer, st lipgloss.Style, indent, format string, args ...any) {
	msg := strings.TrimRight(fmt.Sprintf(format, args...), "\n")
	if l.color {
		msg = st.Render(msg)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(w, "%s%s\n", indent, msg)
}
