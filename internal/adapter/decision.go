package adapter

import (
	"errors"
	"strings"

	"github.com/tidwall/gjson"
)

var errInvalidJSON = errors.New("invalid decision json")

// labelValue is one label/value pair from a decision blob.
type labelValue struct {
	Label string
	Value string
}

// normalizeJSON returns valid JSON for a vendor blob. Exports often use
// single quotes and semicolons, so those are rewritten when the raw text
// does not parse.
func normalizeJSON(blob string) (string, error) {
	s := strings.TrimSpace(blob)
	if s == "" {
		return "", errInvalidJSON
	}
	if gjson.Valid(s) {
		return s, nil
	}
	s = strings.ReplaceAll(s, "'", `"`)
	s = strings.ReplaceAll(s, ";", ",")
	if !gjson.Valid(s) {
		return "", errInvalidJSON
	}
	return s, nil
}

// parseDecision extracts label/value pairs from a decision blob. Three
// layouts are recognized: a flat object (extracted), {"labels":["k::v",...]}
// (decision string), and {"is_rejected":..,"response":"{entity:{payload:[{values:{..}}]}}"}.
func parseDecision(blob string, extracted bool) ([]labelValue, error) {
	s, err := normalizeJSON(blob)
	if err != nil {
		return nil, err
	}
	root := gjson.Parse(s)
	if !root.IsObject() {
		return nil, errInvalidJSON
	}
	if extracted {
		return objectPairs(root), nil
	}

	if firstKey(root) == "is_rejected" {
		return parseRejected(root)
	}
	labels := root.Get("labels")
	if !labels.IsArray() {
		return nil, errInvalidJSON
	}
	return splitLabelStrings(labels), nil
}

func parseRejected(root gjson.Result) ([]labelValue, error) {
	resp := root.Get("response")
	var inner gjson.Result
	switch {
	case resp.IsObject():
		inner = resp
	case resp.Type == gjson.String:
		s, err := normalizeJSON(resp.String())
		if err != nil {
			return nil, err
		}
		inner = gjson.Parse(s)
	default:
		return nil, errInvalidJSON
	}

	var entity gjson.Result
	inner.ForEach(func(_, v gjson.Result) bool {
		entity = v
		return false
	})
	if !entity.IsObject() {
		return nil, errInvalidJSON
	}

	var out []labelValue
	entity.Get("payload").ForEach(func(_, item gjson.Result) bool {
		out = append(out, objectPairs(item.Get("values"))...)
		return true
	})
	return out, nil
}

// parseAuditorDecision handles blobs keyed by auditor id:
// {"<auditor_id>": "{\"labels\": [...]}"}.
func parseAuditorDecision(blob string) (string, []labelValue, error) {
	s, err := normalizeJSON(blob)
	if err != nil {
		return "", nil, err
	}
	root := gjson.Parse(s)
	key := firstKey(root)
	if key == "" {
		return "", nil, errInvalidJSON
	}
	if key == "labels" {
		return "", splitLabelStrings(root.Get("labels")), nil
	}

	var nested gjson.Result
	root.ForEach(func(_, v gjson.Result) bool {
		nested = v
		return false
	})
	if nested.Type == gjson.String {
		inner, err := normalizeJSON(nested.String())
		if err != nil {
			return "", nil, err
		}
		nested = gjson.Parse(inner)
	}
	labels := nested.Get("labels")
	if !labels.IsArray() {
		return "", nil, errInvalidJSON
	}
	return key, splitLabelStrings(labels), nil
}

func firstKey(obj gjson.Result) string {
	var key string
	obj.ForEach(func(k, _ gjson.Result) bool {
		key = k.String()
		return false
	})
	return key
}

func objectPairs(obj gjson.Result) []labelValue {
	var out []labelValue
	obj.ForEach(func(k, v gjson.Result) bool {
		out = append(out, labelValue{Label: k.String(), Value: flatten(v)})
		return true
	})
	return out
}

func splitLabelStrings(arr gjson.Result) []labelValue {
	var out []labelValue
	arr.ForEach(func(_, v gjson.Result) bool {
		k, val, ok := strings.Cut(v.String(), "::")
		if ok && strings.TrimSpace(k) != "" {
			out = append(out, labelValue{Label: strings.TrimSpace(k), Value: strings.TrimSpace(val)})
		}
		return true
	})
	return out
}

// flatten renders a JSON value as a response string: arrays become
// comma-joined, objects stay compact JSON.
func flatten(v gjson.Result) string {
	switch {
	case v.IsArray():
		var parts []string
		v.ForEach(func(_, e gjson.Result) bool {
			parts = append(parts, flatten(e))
			return true
		})
		return strings.Join(parts, ",")
	case v.IsObject():
		return v.Raw
	case v.Type == gjson.Null:
		return ""
	}
	return strings.TrimSpace(v.String())
}
