package navigation

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

type param struct {
	key   string
	value *string
}

// MergeQuery merges updates into the raw query string rawQuery. Existing
// keys keep their position and new keys follow in sorted order. A nil
// update value is written as "null"; bare keys come only from rawQuery.
func MergeQuery(rawQuery string, updates map[string]interface{}) string {
	var params []param
	index := make(map[string]int)

	if rawQuery = strings.TrimPrefix(rawQuery, "?"); rawQuery != "" {
		for _, pair := range strings.Split(rawQuery, "&") {
			key, value, hasValue := strings.Cut(pair, "=")
			var v *string
			if hasValue {
				decoded, err := url.PathUnescape(value)
				if err != nil {
					decoded = value
				}
				v = &decoded
			}
			if i, ok := index[key]; ok {
				params[i].value = v
				continue
			}
			index[key] = len(params)
			params = append(params, param{key: key, value: v})
		}
	}

	keys := make([]string, 0, len(updates))
	for k := range updates {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := paramValue(updates[k])
		if i, ok := index[k]; ok {
			params[i].value = v
			continue
		}
		index[k] = len(params)
		params = append(params, param{key: k, value: v})
	}

	parts := make([]string, 0, len(params))
	for _, p := range params {
		if p.value == nil {
			parts = append(parts, p.key)
			continue
		}
		parts = append(parts, p.key+"="+EncodeURIComponent(*p.value))
	}
	return strings.Join(parts, "&")
}

func paramValue(v interface{}) *string {
	var s string
	switch t := v.(type) {
	case nil:
		s = "null"
	case string:
		s = t
	case json.Number:
		s = t.String()
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		s = strconv.FormatBool(t)
	default:
		s = fmt.Sprint(t)
	}
	return &s
}

// EncodeURIComponent escapes s the way JavaScript's encodeURIComponent does
func EncodeURIComponent(s string) string {
	escaped := url.QueryEscape(s)
	return uriComponentFixups.Replace(escaped)
}

var uriComponentFixups = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)
