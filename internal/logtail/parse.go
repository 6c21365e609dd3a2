package logtail

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Attr is one key/value pair of a log record.
type Attr struct {
	Key   string
	Value string
}

// Entry is a parsed slog record.
type Entry struct {
	Time    time.Time
	Level   string
	Message string
	Attrs   []Attr
	Raw     string
}

// Attr returns the value of key, if present.
func (e Entry) Attr(key string) (string, bool) {
	for _, a := range e.Attrs {
		if a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}

// Parse reads a line written by slog's text or JSON handler. Lines in any
// other format come back with only Raw and Message set.
func Parse(line string) Entry {
	trimmed := strings.TrimSpace(line)
	if strings.HasPrefix(trimmed, "{") {
		if e, ok := parseJSON(trimmed); ok {
			e.Raw = line
			return e
		}
	}
	pairs, ok := splitPairs(trimmed)
	if !ok {
		return Entry{Message: line, Raw: line}
	}
	e := Entry{Raw: line}
	for _, p := range pairs {
		switch p.Key {
		case "time":
			e.Time, _ = time.Parse(time.RFC3339Nano, p.Value)
		case "level":
			e.Level = strings.ToUpper(p.Value)
		case "msg":
			e.Message = p.Value
		default:
			e.Attrs = append(e.Attrs, p)
		}
	}
	return e
}

func parseJSON(line string) (Entry, bool) {
	var record map[string]any
	if err := json.Unmarshal([]byte(line), &record); err != nil {
		return Entry{}, false
	}
	var e Entry
	keys := make([]string, 0, len(record))
	for k := range record {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		value := stringify(record[k])
		switch k {
		case "time":
			e.Time, _ = time.Parse(time.RFC3339Nano, value)
		case "level":
			e.Level = strings.ToUpper(value)
		case "msg":
			e.Message = value
		default:
			e.Attrs = append(e.Attrs, Attr{Key: k, Value: value})
		}
	}
	return e, true
}

func stringify(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	}
}

// splitPairs tokenizes key=value pairs, honoring Go-quoted values.
func splitPairs(line string) ([]Attr, bool) {
	var out []Attr
	rest := line
	for rest != "" {
		eq := strings.IndexByte(rest, '=')
		if eq <= 0 || strings.ContainsAny(rest[:eq], " \t\"") {
			return nil, false
		}
		key := rest[:eq]
		rest = rest[eq+1:]

		var value string
		if strings.HasPrefix(rest, `"`) {
			end := closingQuote(rest)
			if end < 0 {
				return nil, false
			}
			unquoted, err := strconv.Unquote(rest[:end+1])
			if err != nil {
				return nil, false
			}
			value = unquoted
			rest = rest[end+1:]
		} else {
			sp := strings.IndexByte(rest, ' ')
			if sp < 0 {
				sp = len(rest)
			}
			value = rest[:sp]
			rest = rest[sp:]
		}
		out = append(out, Attr{Key: key, Value: value})
		rest = strings.TrimLeft(rest, " ")
	}
	return out, len(out) > 0
}

func closingQuote(s string) int {
	for i := 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '"':
			return i
		}
	}
	return -1
}

// AtLeast reports whether level is at or above min. Unknown levels pass.
func AtLeast(level, min string) bool {
	rank := map[string]int{"DEBUG": 0, "INFO": 1, "WARN": 2, "ERROR": 3}
	l, ok := rank[strings.ToUpper(level)]
	if !ok {
		return true
	}
	return l >= rank[strings.ToUpper(min)]
}
