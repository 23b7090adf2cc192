package auditlog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Fairmint/canton/pkg/shared"
)

const (
	defaultBuffer   = 64
	maxNameAttempts = 1000

	requestPlaceholder  = "[request data]"
	responsePlaceholder = "[response data]"
)

var marshalIndent = json.MarshalIndent

// Entry is one request/response pair.
type Entry struct {
	URL      string
	Request  any
	Response any
}

// Config configures a Writer.
type Config struct {
	Dir    string
	Clock  clockwork.Clock
	Logger *zap.Logger
	// Buffer is the queue length. Entries recorded while the queue is full
	// are written synchronously.
	Buffer int
}

type job struct {
	timestamp time.Time
	entry     Entry
	flushed   chan struct{}
}

// Writer writes audit records asynchronously. A nil Writer discards
// everything.
type Writer struct {
	dir    string
	clock  clockwork.Clock
	logger *zap.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan job
	done   chan struct{}
	nameMu sync.Mutex
}

// New creates the log directory and starts the background writer.
func New(cfg Config) (*Writer, error) {
	dir := strings.TrimSpace(cfg.Dir)
	if dir == "" {
		return nil, errors.New("audit log directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create audit log directory %s", dir)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	buffer := cfg.Buffer
	if buffer <= 0 {
		buffer = defaultBuffer
	}

	w := &Writer{
		dir:    dir,
		clock:  clock,
		logger: shared.LoggerOrNop(cfg.Logger).Named("auditlog"),
		queue:  make(chan job, buffer),
		done:   make(chan struct{}),
	}
	go w.run()
	return w, nil
}

// Dir returns the directory records are written to.
func (w *Writer) Dir() string {
	if w == nil {
		return ""
	}
	return w.dir
}

// Record stamps entry with the current time and queues it.
func (w *Writer) Record(entry Entry) {
	if w == nil {
		return
	}
	item := job{timestamp: w.clock.Now(), entry: entry}

	w.mu.RLock()
	if !w.closed {
		select {
		case w.queue <- item:
			w.mu.RUnlock()
			return
		default:
		}
	}
	w.mu.RUnlock()

	w.write(item)
}

// Flush blocks until every entry queued before the call has been written.
func (w *Writer) Flush() {
	if w == nil {
		return
	}
	w.mu.RLock()
	if w.closed {
		w.mu.RUnlock()
		return
	}
	marker := job{flushed: make(chan struct{})}
	w.queue <- marker
	w.mu.RUnlock()
	<-marker.flushed
}

// Close drains the queue and stops the background goroutine. Entries
// recorded after Close are written synchronously.
func (w *Writer) Close() error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.queue)
	w.mu.Unlock()

	<-w.done
	return nil
}

func (w *Writer) run() {
	defer close(w.done)
	for item := range w.queue {
		if item.flushed != nil {
			close(item.flushed)
			continue
		}
		w.write(item)
	}
}

func (w *Writer) write(item job) {
	payload := encode(item.timestamp, item.entry)
	path, err := w.create(item.timestamp, payload)
	if err != nil {
		w.logger.Warn("failed to write audit log",
			zap.String("url", item.entry.URL),
			zap.Error(err),
		)
		return
	}
	w.logger.Debug("audit log written", zap.String("path", path))
}

func (w *Writer) create(timestamp time.Time, payload []byte) (string, error) {
	w.nameMu.Lock()
	defer w.nameMu.Unlock()

	base := FileStem(timestamp)
	for attempt := 0; attempt < maxNameAttempts; attempt++ {
		name := base + ".json"
		if attempt > 0 {
			name = fmt.Sprintf("%s-%d.json", base, attempt)
		}
		path := filepath.Join(w.dir, name)
		file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", errors.Wrapf(err, "failed to create %s", path)
		}
		_, writeErr := file.Write(payload)
		closeErr := file.Close()
		if writeErr != nil {
			return "", errors.Wrapf(writeErr, "failed to write %s", path)
		}
		if closeErr != nil {
			return "", errors.Wrapf(closeErr, "failed to close %s", path)
		}
		return path, nil
	}
	return "", errors.Errorf("no free audit log name for %s", base)
}

// FileStem returns the file name, without extension, used for a record
// taken at timestamp.
func FileStem(timestamp time.Time) string {
	return "request-" + Stamp(timestamp)
}

// Stamp formats timestamp as UTC ISO-8601 with millisecond precision and
// ':' and '.' replaced by '-'.
func Stamp(timestamp time.Time) string {
	iso := timestamp.UTC().Format("2006-01-02T15:04:05.000Z")
	return strings.NewReplacer(":", "-", ".", "-").Replace(iso)
}

type record struct {
	Timestamp string `json:"timestamp"`
	URL       string `json:"url"`
	Request   any    `json:"request"`
	Response  any    `json:"response"`
}

type fallbackRecord struct {
	Timestamp          string `json:"timestamp"`
	URL                string `json:"url"`
	Request            any    `json:"request"`
	Response           any    `json:"response"`
	SerializationError string `json:"serializationError"`
}

type failureRecord struct {
	Timestamp string `json:"timestamp"`
	URL       string `json:"url"`
	Error     string `json:"error"`
}

func encode(timestamp time.Time, entry Entry) []byte {
	stamp := Stamp(timestamp)
	payload, err := marshalIndent(record{
		Timestamp: stamp,
		URL:       entry.URL,
		Request:   normalize(entry.Request),
		Response:  normalize(entry.Response),
	}, "", "  ")
	if err == nil {
		return payload
	}

	fallback := fallbackRecord{
		Timestamp:          stamp,
		URL:                entry.URL,
		SerializationError: err.Error(),
	}
	if entry.Request != nil {
		fallback.Request = requestPlaceholder
	}
	if entry.Response != nil {
		fallback.Response = responsePlaceholder
	}
	payload, err = marshalIndent(fallback, "", "  ")
	if err == nil {
		return payload
	}

	payload, err = marshalIndent(failureRecord{
		Timestamp: stamp,
		URL:       entry.URL,
		Error:     "Failed to serialize log data",
	}, "", "  ")
	if err != nil {
		return []byte(`{"error":"Failed to serialize log data"}`)
	}
	return payload
}

// ErrorValue is the JSON shape errors are recorded as.
type ErrorValue struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

func normalize(value any) any {
	switch typed := value.(type) {
	case nil:
		return nil
	case error:
		return ErrorValue{Name: fmt.Sprintf("%T", typed), Message: typed.Error()}
	case json.RawMessage:
		if json.Valid(typed) {
			return typed
		}
		return string(typed)
	case []byte:
		if json.Valid(typed) {
			return json.RawMessage(typed)
		}
		return string(typed)
	case map[string]any:
		out := make(map[string]any, len(typed))
		for key, item := range typed {
			out[key] = normalize(item)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for index, item := range typed {
			out[index] = normalize(item)
		}
		return out
	}

	switch reflect.ValueOf(value).Kind() {
	case reflect.Func:
		return "[function]"
	case reflect.Chan:
		return "[channel]"
	case reflect.UnsafePointer:
		return "[pointer]"
	}
	return value
}
