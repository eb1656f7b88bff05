package handler

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// FieldSet is the per-endpoint allow-list of client-writable fields. It is
// declared next to the route configuration and checked against the model's
// JSON schema when the handlers are constructed, so a typo in a field name
// fails at startup instead of silently dropping input.
type FieldSet struct {
	allowed map[string]bool
}

// AllowFields builds a FieldSet for model T. Every name must match a JSON
// field declared on T; unknown names panic during wiring.
func AllowFields[T any](names ...string) FieldSet {
	declared := jsonFields(reflect.TypeOf(*new(T)))
	allowed := make(map[string]bool, len(names))
	for _, name := range names {
		if !declared[name] {
			panic(fmt.Sprintf("handler: field %q is not part of %T's schema", name, *new(T)))
		}
		allowed[name] = true
	}
	return FieldSet{allowed: allowed}
}

// Filter keeps only the allow-listed keys of a decoded body.
func (fs FieldSet) Filter(body map[string]json.RawMessage) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(body))
	for k, v := range body {
		if fs.allowed[k] {
			out[k] = v
		}
	}
	return out
}

// Contains reports whether a field is client-writable.
func (fs FieldSet) Contains(name string) bool { return fs.allowed[name] }

// jsonFields collects the JSON field names a struct type declares,
// including write-only fields that are hidden from output.
func jsonFields(t reflect.Type) map[string]bool {
	fields := make(map[string]bool)
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		tag := sf.Tag.Get("json")
		name := strings.Split(tag, ",")[0]
		if name == "" {
			name = sf.Name
		}
		if name != "-" {
			fields[name] = true
		}
		// bson-only fields (e.g. password) stay writable through dedicated
		// endpoints, never through generic updates.
	}
	return fields
}
