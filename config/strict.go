/*
Copyright (c) The Bond Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package config

import (
	"fmt"
	"reflect"
	"strings"

	yaml "gopkg.in/yaml.v2"
)

// RejectUnknownFields parses data as a generic YAML document and walks
// it against schema's struct tags, failing on any mapping key schema
// does not declare. yaml.v2's Decoder has no KnownFields(true) (that
// landed in yaml.v3's Decoder); this reimplements the same guarantee by
// hand so a typo'd config key fails fast instead of silently vanishing
// into a zero-valued field.
func RejectUnknownFields(data []byte, schema interface{}) error {
	var doc map[string]interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parsing for strict field check: %w", err)
	}
	return checkFields("", doc, reflect.TypeOf(schema))
}

// checkFields compares one YAML mapping level against the struct fields
// of t, descending into nested structs and slices-of-structs along the
// way.
func checkFields(prefix string, doc map[string]interface{}, t reflect.Type) error {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}

	known := make(map[string]reflect.StructField, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := f.Tag.Get("yaml")
		name := strings.Split(tag, ",")[0]
		if name == "" {
			name = strings.ToLower(f.Name)
		}
		if name == "-" {
			continue
		}
		known[name] = f
	}

	for key, val := range doc {
		field, ok := known[key]
		if !ok {
			if prefix != "" {
				return fmt.Errorf("unknown field %q under %q", key, prefix)
			}
			return fmt.Errorf("unknown field %q", key)
		}

		path := key
		if prefix != "" {
			path = prefix + "." + key
		}

		switch v := val.(type) {
		case map[string]interface{}:
			if err := checkFields(path, v, field.Type); err != nil {
				return err
			}
		case map[interface{}]interface{}:
			if err := checkFields(path, stringifyKeys(v), field.Type); err != nil {
				return err
			}
		case []interface{}:
			elemType := field.Type
			if elemType.Kind() == reflect.Slice {
				elemType = elemType.Elem()
			}
			for i, item := range v {
				m, err := asStringMap(item)
				if err != nil {
					continue
				}
				if err := checkFields(fmt.Sprintf("%s[%d]", path, i), m, elemType); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func stringifyKeys(m map[interface{}]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[fmt.Sprintf("%v", k)] = v
	}
	return out
}

func asStringMap(v interface{}) (map[string]interface{}, error) {
	switch m := v.(type) {
	case map[string]interface{}:
		return m, nil
	case map[interface{}]interface{}:
		return stringifyKeys(m), nil
	default:
		return nil, fmt.Errorf("not a mapping")
	}
}
