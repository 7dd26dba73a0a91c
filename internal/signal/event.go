package signal

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Event carries the named fields of a notification. The registry never
// looks inside it.
type Event map[string]any

// Get returns the field named key.
func (e Event) Get(key string) (any, bool) {
	v, ok := e[key]
	return v, ok
}

// GetString returns the field named key if it is a string.
func (e Event) GetString(key string) string {
	s, _ := e[key].(string)
	return s
}

// GetInt returns the field named key if it holds an integer.
func (e Event) GetInt(key string) int {
	switch v := e[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case int32:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

// Clone returns a shallow copy of e.
func (e Event) Clone() Event {
	if e == nil {
		return nil
	}
	return maps.Clone(e)
}

// Keys returns the field names in sorted order.
func (e Event) Keys() []string {
	return slices.Sorted(maps.Keys(e))
}

// String renders the fields in sorted order, e.g. Event{age=23, name=Ivan}.
func (e Event) String() string {
	var b strings.Builder
	b.WriteString("Event{")
	for i, k := range e.Keys() {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s=%v", k, e[k])
	}
	b.WriteString("}")
	return b.String()
}
