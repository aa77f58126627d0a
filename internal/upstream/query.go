package upstream

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"

	"go-stats-cache/internal/models"
)

// EncodeQuery renders decoded cache key params as a URL query.
// Lists become repeated keys, nested maps are sent as JSON strings and nil values are dropped.
func EncodeQuery(params map[string]any) (url.Values, error) {
	values := url.Values{}
	for name, value := range params {
		switch v := value.(type) {
		case nil:
			continue
		case []any:
			for i, item := range v {
				s, err := scalar(item)
				if err != nil {
					return nil, fmt.Errorf("%w: param '%s[%d]': %v", models.ErrInvalidParameter, name, i, err)
				}
				values.Add(name, s)
			}
		case map[string]any:
			raw, err := json.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("%w: param '%s': %v", models.ErrInvalidParameter, name, err)
			}
			values.Set(name, string(raw))
		default:
			s, err := scalar(v)
			if err != nil {
				return nil, fmt.Errorf("%w: param '%s': %v", models.ErrInvalidParameter, name, err)
			}
			values.Set(name, s)
		}
	}
	return values, nil
}

func scalar(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case json.Number:
		return v.String(), nil
	case bool:
		return strconv.FormatBool(v), nil
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64), nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("unsupported query value %T", value)
	}
}

// ParamsFromQuery converts an incoming query into cache key params.
// Repeated keys become lists so that EncodeQuery reproduces the query.
func ParamsFromQuery(query url.Values) map[string]any {
	params := make(map[string]any, len(query))
	names := make([]string, 0, len(query))
	for name := range query {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		vals := query[name]
		switch len(vals) {
		case 0:
			continue
		case 1:
			params[name] = vals[0]
		default:
			list := make([]any, len(vals))
			for i, v := range vals {
				list[i] = v
			}
			params[name] = list
		}
	}
	return params
}
