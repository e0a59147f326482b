package confhttpd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"text/template"
	"time"
)

// DefaultLoggerFormat renders each record as a single JSON object. It is a
// text/template, like the rest of the fields rendered into it: callers may
// supply their own format string to NewLogger as long as it parses.
const DefaultLoggerFormat = `{"time":"{{.time_rfc3339}}","level":"{{.level}}"}`

// Logger is used to log information generated at runtime. Each call to a
// level method renders one record through a text/template and writes it to
// Output in a single call, so concurrent writers never interleave partial
// lines.
type Logger struct {
	template   *template.Template
	bufferPool *sync.Pool
	mutex      sync.Mutex

	Output io.Writer
}

type loggerLevel uint8

const (
	lvlDebug loggerLevel = iota
	lvlInfo
	lvlWarn
	lvlError
)

func (l loggerLevel) String() string {
	switch l {
	case lvlDebug:
		return "DEBUG"
	case lvlInfo:
		return "INFO"
	case lvlWarn:
		return "WARN"
	case lvlError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// NewLogger returns a Logger that writes to os.Stdout using format, which
// must be a valid text/template referencing the fields it wants (at least
// "time_rfc3339" and "level" are always provided; callers of the *j methods
// merge additional fields in).
func NewLogger(format string) *Logger {
	return &Logger{
		template: template.Must(template.New("logger").Parse(format)),
		bufferPool: &sync.Pool{
			New: func() interface{} { return new(bytes.Buffer) },
		},
		Output: os.Stdout,
	}
}

// Debugj logs a DEBUG record with fields appended to the rendered template.
func (l *Logger) Debugj(fields map[string]interface{}) { l.logj(lvlDebug, fields) }

// Infoj logs an INFO record with fields appended to the rendered template.
func (l *Logger) Infoj(fields map[string]interface{}) { l.logj(lvlInfo, fields) }

// Warnj logs a WARN record with fields appended to the rendered template.
func (l *Logger) Warnj(fields map[string]interface{}) { l.logj(lvlWarn, fields) }

// Errorj logs an ERROR record with fields appended to the rendered template.
func (l *Logger) Errorj(fields map[string]interface{}) { l.logj(lvlError, fields) }

func (l *Logger) logj(lvl loggerLevel, fields map[string]interface{}) {
	if fields == nil {
		fields = map[string]interface{}{}
	}
	data := map[string]interface{}{
		"time_rfc3339": time.Now().Format(time.RFC3339),
		"level":        lvl.String(),
	}

	buf := l.bufferPool.Get().(*bytes.Buffer)
	buf.Reset()

	if err := l.template.Execute(buf, data); err != nil {
		l.bufferPool.Put(buf)
		return
	}

	extra, _ := json.Marshal(fields)
	innerFields := ""
	if len(extra) > 2 {
		innerFields = string(extra[1 : len(extra)-1])
	}

	l.mutex.Lock()
	defer l.mutex.Unlock()

	out := buf.Bytes()
	if n := len(out); n > 0 && out[n-1] == '}' && innerFields != "" {
		fmt.Fprintf(l.Output, "%s,%s}\n", out[:n-1], innerFields)
	} else if n := len(out); n > 0 && out[n-1] == '}' {
		fmt.Fprintf(l.Output, "%s\n", out)
	} else {
		fmt.Fprintf(l.Output, "%s %s\n", out, extra)
	}

	l.bufferPool.Put(buf)
}
