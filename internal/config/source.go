package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// DefaultNamespace prefixes every environment variable read or projected by quern.
const DefaultNamespace = "quern"

// Source resolves configuration keys from defaults, YAML files and the
// process environment, in increasing order of precedence.
type Source struct {
	namespace string
	layers    []map[string]map[string]string
	environ   map[string]string
}

// NewSource reads the given YAML files and indexes environ ("KEY=value" pairs).
// Files that do not exist are skipped; later files override earlier ones.
func NewSource(namespace string, files []string, environ []string) (*Source, error) {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	src := &Source{
		namespace: namespace,
		environ:   make(map[string]string, len(environ)),
	}

	for _, path := range files {
		layer, err := readLayer(path)
		if err != nil {
			return nil, err
		}
		if layer != nil {
			src.layers = append(src.layers, layer)
		}
	}

	for _, entry := range environ {
		key, value, ok := strings.Cut(entry, "=")
		if !ok || key == "" {
			continue
		}
		src.environ[key] = value
	}

	return src, nil
}

// Namespace returns the environment namespace of the source.
func (s *Source) Namespace() string {
	return s.namespace
}

// EnvName returns the environment variable carrying section.key, e.g.
// QUERN_BUILD_PROFILE for build.profile.
func EnvName(namespace, section, key string) string {
	name := namespace + "_" + section + "." + key
	return strings.ToUpper(strings.ReplaceAll(name, ".", "_"))
}

// Lookup returns the raw value of section.key and whether any layer set it.
func (s *Source) Lookup(section, key string) (string, bool) {
	if value, ok := s.environ[EnvName(s.namespace, section, key)]; ok {
		return value, true
	}
	for i := len(s.layers) - 1; i >= 0; i-- {
		if value, ok := s.layers[i][section][key]; ok {
			return value, true
		}
	}
	return "", false
}

// Decode fills out, a pointer to a struct whose fields carry mapstructure
// tags, with the resolved values of section. Fields fall back to their
// `default` tag.
func (s *Source) Decode(section string, out any) error {
	input := make(map[string]any)
	for _, opt := range optionsOf(out) {
		value, ok := s.Lookup(section, opt.Key)
		if !ok {
			value = opt.Default
		}
		input[opt.Key] = value
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       listHook,
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("create decoder for %s: %w", section, err)
	}
	if err := decoder.Decode(input); err != nil {
		return &ConfigurationError{Option: section, Reason: err.Error(), Err: err}
	}
	return nil
}

// Option describes one key of a configuration section.
type Option struct {
	Key     string
	Default string
	Doc     string
}

func optionsOf(section any) []Option {
	t := reflect.TypeOf(section)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	options := make([]Option, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		key := field.Tag.Get("mapstructure")
		if key == "" || key == "-" {
			continue
		}
		options = append(options, Option{
			Key:     key,
			Default: field.Tag.Get("default"),
			Doc:     field.Tag.Get("doc"),
		})
	}
	return options
}

var stringSliceType = reflect.TypeOf([]string{})

// listHook turns comma-separated strings into trimmed, non-empty items.
func listHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to != stringSliceType {
		return data, nil
	}
	return splitList(data.(string)), nil
}

func splitList(value string) []string {
	items := []string{}
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			items = append(items, part)
		}
	}
	return items
}

func readLayer(path string) (map[string]map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var raw map[string]map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigurationError{Option: path, Reason: fmt.Sprintf("invalid YAML: %v", err)}
	}

	layer := make(map[string]map[string]string, len(raw))
	for section, values := range raw {
		flat := make(map[string]string, len(values))
		for key, value := range values {
			flat[key] = stringify(value)
		}
		layer[section] = flat
	}
	return layer, nil
}

func stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, stringify(item))
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprint(v)
	}
}
