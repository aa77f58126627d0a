package cache

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"go-stats-cache/internal/interfaces"
	"go-stats-cache/internal/models"
)

// Ensure KeyCodecImpl implements interfaces.KeyCodec
var _ interfaces.KeyCodec = (*KeyCodecImpl)(nil)

var timeType = reflect.TypeOf(time.Time{})

// KeyCodecImpl implements the KeyCodec interface
type KeyCodecImpl struct{}

// NewKeyCodec creates a new KeyCodec instance
func NewKeyCodec() interfaces.KeyCodec {
	return &KeyCodecImpl{}
}

// Encode creates the canonical cache key endpoint:{sorted-json-params}
func (kc *KeyCodecImpl) Encode(endpoint string, params map[string]any) (models.CacheKey, error) {
	if err := validateEndpoint(endpoint); err != nil {
		return "", err
	}

	normalized := make(map[string]any, len(params))
	for name, value := range params {
		v, err := normalize(name, reflect.ValueOf(value))
		if err != nil {
			return "", err
		}
		normalized[name] = v
	}

	// encoding/json emits map keys in sorted order at every depth
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(normalized); err != nil {
		return "", fmt.Errorf("%w: failed to serialize params: %v", models.ErrInvalidParameter, err)
	}

	return models.CacheKey(endpoint + ":" + strings.TrimSuffix(buf.String(), "\n")), nil
}

// EncodeBatch creates cache keys for several parameter sets of one endpoint
func (kc *KeyCodecImpl) EncodeBatch(endpoint string, paramSets []map[string]any) ([]models.CacheKey, error) {
	if len(paramSets) == 0 {
		return nil, errors.New("parameter sets slice cannot be empty")
	}

	keys := make([]models.CacheKey, len(paramSets))
	for i, params := range paramSets {
		key, err := kc.Encode(endpoint, params)
		if err != nil {
			return nil, fmt.Errorf("failed to build key for parameter set %d: %w", i, err)
		}
		keys[i] = key
	}
	return keys, nil
}

// Decode splits a key built by Encode back into endpoint and params.
// Numbers are returned as json.Number.
func (kc *KeyCodecImpl) Decode(key models.CacheKey) (string, map[string]any, error) {
	endpoint, raw, ok := strings.Cut(string(key), ":")
	if !ok || endpoint == "" {
		return "", nil, fmt.Errorf("%w: malformed cache key '%s'", models.ErrInvalidParameter, key)
	}

	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()

	var params map[string]any
	if err := dec.Decode(&params); err != nil {
		return "", nil, fmt.Errorf("%w: malformed params in cache key '%s': %v", models.ErrInvalidParameter, key, err)
	}
	if params == nil {
		params = map[string]any{}
	}
	return endpoint, params, nil
}

func validateEndpoint(endpoint string) error {
	if endpoint == "" {
		return fmt.Errorf("%w: endpoint cannot be empty", models.ErrInvalidParameter)
	}
	if strings.Contains(endpoint, ":") {
		return fmt.Errorf("%w: endpoint '%s' cannot contain ':'", models.ErrInvalidParameter, endpoint)
	}
	return nil
}

// normalize converts a parameter value into a JSON-stable form
func normalize(path string, v reflect.Value) (any, error) {
	if !v.IsValid() {
		return nil, nil
	}

	if v.Type() == timeType {
		return v.Interface().(time.Time).UTC().Format(time.RFC3339Nano), nil
	}
	if n, ok := v.Interface().(json.Number); ok {
		if _, err := strconv.ParseFloat(string(n), 64); err != nil {
			return nil, fmt.Errorf("%w: parameter '%s': invalid number '%s'", models.ErrInvalidParameter, path, n)
		}
		return n, nil
	}

	switch v.Kind() {
	case reflect.Bool:
		return v.Bool(), nil
	case reflect.String:
		return v.String(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return json.Number(strconv.FormatInt(v.Int(), 10)), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return json.Number(strconv.FormatUint(v.Uint(), 10)), nil
	case reflect.Float32, reflect.Float64:
		f := v.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("%w: parameter '%s': non-finite number", models.ErrInvalidParameter, path)
		}
		bits := 64
		if v.Kind() == reflect.Float32 {
			bits = 32
		}
		return json.Number(strconv.FormatFloat(f, 'g', -1, bits)), nil
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			return nil, nil
		}
		return normalize(path, v.Elem())
	case reflect.Slice, reflect.Array:
		if v.Kind() == reflect.Slice && v.IsNil() {
			return nil, nil
		}
		out := make([]any, v.Len())
		for i := 0; i < v.Len(); i++ {
			item, err := normalize(fmt.Sprintf("%s[%d]", path, i), v.Index(i))
			if err != nil {
				return nil, err
			}
			out[i] = item
		}
		return out, nil
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("%w: parameter '%s': map keys must be strings, got %s",
				models.ErrInvalidParameter, path, v.Type().Key())
		}
		if v.IsNil() {
			return nil, nil
		}
		out := make(map[string]any, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			name := iter.Key().String()
			item, err := normalize(path+"."+name, iter.Value())
			if err != nil {
				return nil, err
			}
			out[name] = item
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: parameter '%s': unsupported type %s", models.ErrInvalidParameter, path, v.Type())
	}
}
