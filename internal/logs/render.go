package logs

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

var levelRank = map[string]int{"debug": 0, "info": 1, "warn": 2, "error": 3}

// Record is one decoded JSON log line.
type Record struct {
	Time      string
	Level     string
	Component string
	Message   string
	Fields    map[string]any
}

// Parse decodes a JSON log line. Non-JSON lines are returned as the message
// of an otherwise empty record with ok false.
func Parse(line string) (Record, bool) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return Record{Message: line}, false
	}
	rec := Record{Fields: raw}
	rec.Time = take(raw, "ts")
	rec.Level = take(raw, "level")
	rec.Message = take(raw, "msg")
	rec.Component = take(raw, "component")
	return rec, true
}

// AtLeast reports whether the record's level reaches min. Unknown levels
// always pass.
func (r Record) AtLeast(min string) bool {
	want, ok := levelRank[strings.ToLower(min)]
	if !ok {
		return true
	}
	have, ok := levelRank[strings.ToLower(r.Level)]
	return !ok || have >= want
}

// String renders the record as one console line with sorted fields.
func (r Record) String() string {
	var b strings.Builder
	if r.Time != "" {
		b.WriteString(r.Time)
		b.WriteByte(' ')
	}
	if r.Level != "" {
		b.WriteString(strings.ToUpper(r.Level))
		b.WriteByte(' ')
	}
	if r.Component != "" {
		b.WriteString(r.Component)
		b.WriteString(": ")
	}
	b.WriteString(r.Message)

	keys := make([]string, 0, len(r.Fields))
	for k := range r.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		value := fmt.Sprint(r.Fields[k])
		if strings.ContainsAny(value, " \t\"=") {
			value = fmt.Sprintf("%q", value)
		}
		fmt.Fprintf(&b, " %s=%s", k, value)
	}
	return b.String()
}

func take(fields map[string]any, key string) string {
	v, ok := fields[key]
	if !ok {
		return ""
	}
	delete(fields, key)
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
