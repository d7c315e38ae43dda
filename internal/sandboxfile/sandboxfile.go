// Package sandboxfile loads sandboxes from YAML, TOML and JSON files and
// encodes sandbox contents back to JSON.
package sandboxfile

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"

	"github.com/GriffinCanCode/contextify/internal/contextify"
)

// Format identifies a sandbox file encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
	FormatJSON Format = "json"
)

// ErrUnknownFormat is returned for file extensions no decoder handles.
var ErrUnknownFormat = errors.New("unknown sandbox file format")

// integers decode as int64 so scripts see the numbers they were given
var jsonAPI = sonic.Config{UseInt64: true}.Froze()

// FormatOf picks the format from the file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, path)
	}
}

// Load reads the file at path into a new sandbox.
func Load(path string) (*contextify.Sandbox, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sandbox file: %w", err)
	}
	sb, err := Decode(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sb, nil
}

// Decode parses data into a new sandbox. The document must be a mapping.
// YAML keeps the document's key order; TOML and JSON keys are sorted.
func Decode(data []byte, format Format) (*contextify.Sandbox, error) {
	switch format {
	case FormatYAML:
		return decodeYAML(data)
	case FormatTOML:
		var m map[string]any
		if err := toml.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("TOML parse error: %w", err)
		}
		return fromMap(m), nil
	case FormatJSON:
		var m map[string]any
		if err := jsonAPI.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("JSON parse error: %w", err)
		}
		return fromMap(m), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

func decodeYAML(data []byte) (*contextify.Sandbox, error) {
	var ms yaml.MapSlice
	if err := yaml.Unmarshal(data, &ms); err != nil {
		return nil, fmt.Errorf("YAML parse error: %w", err)
	}
	sb := contextify.NewSandbox()
	for _, item := range ms {
		sb.Set(fmt.Sprint(item.Key), item.Value)
	}
	return sb, nil
}

func fromMap(m map[string]any) *contextify.Sandbox {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	sb := contextify.NewSandbox()
	for _, k := range keys {
		sb.Set(k, m[k])
	}
	return sb
}

// Encode renders the sandbox's own properties as a JSON object in insertion
// order. Function values are left out the way JSON.stringify leaves them out.
func Encode(sb *contextify.Sandbox) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	first := true
	var err error
	sb.Range(func(name string, value any) bool {
		if isFunc(value) {
			return true
		}
		var k, v []byte
		if k, err = sonic.Marshal(name); err != nil {
			return false
		}
		if v, err = sonic.Marshal(plain(value)); err != nil {
			err = fmt.Errorf("encode %q: %w", name, err)
			return false
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
		return true
	})
	if err != nil {
		return nil, err
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// plain drops functions from exported script objects.
func plain(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			if !isFunc(e) {
				out[k] = plain(e)
			}
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			if !isFunc(e) {
				out[i] = plain(e)
			}
		}
		return out
	default:
		return v
	}
}

func isFunc(v any) bool {
	return v != nil && reflect.TypeOf(v).Kind() == reflect.Func
}
