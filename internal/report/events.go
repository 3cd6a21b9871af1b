package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EventType represents the type of event
type EventType string

const (
	EventDetect    EventType = "detect"
	EventStability EventType = "stability"
	EventMetadata  EventType = "metadata"
	EventDedup     EventType = "dedup"
	EventUpload    EventType = "upload"
	EventCatalog   EventType = "catalog"
	EventPublish   EventType = "publish"
	EventRelocate  EventType = "relocate"
	EventState     EventType = "state"
	EventShortcode EventType = "shortcode"
	EventBackup    EventType = "backup"
	EventError     EventType = "error"
)

// EventLevel represents the severity level
type EventLevel string

const (
	LevelDebug   EventLevel = "debug"
	LevelInfo    EventLevel = "info"
	LevelWarning EventLevel = "warning"
	LevelError   EventLevel = "error"
)

var levelPriority = map[EventLevel]int{
	LevelDebug:   0,
	LevelInfo:    1,
	LevelWarning: 2,
	LevelError:   3,
}

// ParseLevel maps a level name to an EventLevel, defaulting to info
func ParseLevel(s string) EventLevel {
	if _, ok := levelPriority[EventLevel(s)]; ok {
		return EventLevel(s)
	}
	return LevelInfo
}

// Event is one line of the JSONL audit log
type Event struct {
	Timestamp    time.Time         `json:"ts"`
	Level        EventLevel        `json:"level"`
	Event        EventType         `json:"event"`
	RunID        string            `json:"run_id,omitempty"`
	SrcPath      string            `json:"src_path,omitempty"`
	DestPath     string            `json:"dest_path,omitempty"`
	RemoteKey    string            `json:"remote_key,omitempty"`
	SongID       string            `json:"song_id,omitempty"`
	State        string            `json:"state,omitempty"`
	Action       string            `json:"action,omitempty"`
	Reason       string            `json:"reason,omitempty"`
	BytesWritten int64             `json:"bytes_written,omitempty"`
	Duration     int64             `json:"duration_ms,omitempty"`
	Error        string            `json:"error,omitempty"`
	Extra        map[string]string `json:"extra,omitempty"`
}

// EventLogger writes events to a JSONL file. A nil *EventLogger is valid
// and discards everything.
type EventLogger struct {
	file     *os.File
	encoder  *json.Encoder
	mu       sync.Mutex
	path     string
	minLevel EventLevel
}

// NewEventLogger creates events-<timestamp>.jsonl in outputDir. Events
// below minLevel are dropped.
func NewEventLogger(outputDir string, minLevel EventLevel) (*EventLogger, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	timestamp := time.Now().Format("20060102-150405")
	path := filepath.Join(outputDir, fmt.Sprintf("events-%s.jsonl", timestamp))

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create event log: %w", err)
	}

	return &EventLogger{
		file:     file,
		encoder:  json.NewEncoder(file),
		path:     path,
		minLevel: minLevel,
	}, nil
}

// Log writes an event to the JSONL file
func (l *EventLogger) Log(event *Event) error {
	if l == nil || l.file == nil {
		return nil
	}
	if levelPriority[event.Level] < levelPriority[l.minLevel] {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if err := l.encoder.Encode(event); err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	return nil
}

// LogState records a pipeline state transition
func (l *EventLogger) LogState(runID, srcPath, state string) error {
	return l.Log(&Event{
		Level:   LevelDebug,
		Event:   EventState,
		RunID:   runID,
		SrcPath: srcPath,
		State:   state,
	})
}

// LogDedup records a remote key rename caused by an existing object
func (l *EventLogger) LogDedup(runID, srcPath, takenKey, newKey string) error {
	return l.Log(&Event{
		Level:     LevelWarning,
		Event:     EventDedup,
		RunID:     runID,
		SrcPath:   srcPath,
		RemoteKey: newKey,
		Reason:    "key exists: " + takenKey,
	})
}

// LogUpload records an upload attempt
func (l *EventLogger) LogUpload(runID, srcPath, key string, bytes int64, duration time.Duration, err error) error {
	level := LevelInfo
	errMsg := ""
	if err != nil {
		level = LevelError
		errMsg = err.Error()
	}
	return l.Log(&Event{
		Level:        level,
		Event:        EventUpload,
		RunID:        runID,
		SrcPath:      srcPath,
		RemoteKey:    key,
		BytesWritten: bytes,
		Duration:     duration.Milliseconds(),
		Error:        errMsg,
	})
}

// LogCatalog records the catalog write that follows an upload. A failure
// here leaves an uploaded object without a catalog entry.
func (l *EventLogger) LogCatalog(runID, srcPath, key, songID string, err error) error {
	ev := &Event{
		Level:     LevelInfo,
		Event:     EventCatalog,
		RunID:     runID,
		SrcPath:   srcPath,
		RemoteKey: key,
		SongID:    songID,
	}
	if err != nil {
		ev.Level = LevelError
		ev.Error = err.Error()
		ev.Reason = "orphaned remote object"
	}
	return l.Log(ev)
}

// LogRelocate records the move of a processed source file
func (l *EventLogger) LogRelocate(runID, srcPath, destPath string, err error) error {
	level := LevelInfo
	errMsg := ""
	if err != nil {
		level = LevelError
		errMsg = err.Error()
	}
	return l.Log(&Event{
		Level:    level,
		Event:    EventRelocate,
		RunID:    runID,
		SrcPath:  srcPath,
		DestPath: destPath,
		Action:   "move",
		Error:    errMsg,
	})
}

// LogShortcode records a shortcode and the message it produced
func (l *EventLogger) LogShortcode(command, verb, result string) error {
	return l.Log(&Event{
		Level:  LevelInfo,
		Event:  EventShortcode,
		Action: verb,
		Reason: result,
		Extra:  map[string]string{"command": command},
	})
}

// LogError logs an error event
func (l *EventLogger) LogError(event EventType, runID, srcPath string, err error) error {
	return l.Log(&Event{
		Level:   LevelError,
		Event:   event,
		RunID:   runID,
		SrcPath: srcPath,
		Error:   err.Error(),
	})
}

// Close closes the event log file
func (l *EventLogger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

// Path returns the path to the event log file
func (l *EventLogger) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// NullLogger returns a no-op event logger
func NullLogger() *EventLogger {
	return nil
}
