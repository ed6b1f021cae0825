package log

import "time"

// Field is a structured key/value pair attached to a log entry.
type Field struct {
	Key   string
	Value interface{}
}

// Str creates a string Field.
func Str(key, value string) Field { return Field{Key: key, Value: value} }

// Int creates an int Field.
func Int(key string, value int) Field { return Field{Key: key, Value: value} }

// Int64 creates an int64 Field.
func Int64(key string, value int64) Field { return Field{Key: key, Value: value} }

// Bool creates a bool Field.
func Bool(key string, value bool) Field { return Field{Key: key, Value: value} }

// Duration creates a time.Duration Field.
func Duration(key string, value time.Duration) Field { return Field{Key: key, Value: value} }

// Any creates a Field from an arbitrary value.
func Any(key string, value interface{}) Field { return Field{Key: key, Value: value} }

// Err creates a Field carrying an error under the conventional "error" key.
func Err(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: nil}
	}
	return Field{Key: "error", Value: err.Error()}
}

// Component creates a Field tagging the emitting component, matching
// ComponentKey so it participates in ContextExtractor lookups.
func Component(name string) Field { return Field{Key: ComponentKey, Value: name} }

// Operation creates a Field tagging the logical operation in progress.
func Operation(name string) Field { return Field{Key: OperationKey, Value: name} }
