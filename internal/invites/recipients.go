package invites

import (
	"encoding/json"
	"errors"
	"strings"
)

var ErrBadRecipients = errors.New("recipients must be a string or an array of addresses")

var splitSet = func(r rune) bool {
	return r == ',' || r == ';' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

// ParseRecipients accepts the flexible wire forms a batch invite may
// arrive in: a single delimited string, or an arbitrarily nested array
// of strings, flattened in order. Entries are trimmed; empties dropped.
func ParseRecipients(raw json.RawMessage) ([]string, error) {
	var value interface{}
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, ErrBadRecipients
	}

	var out []string
	if err := flatten(value, &out); err != nil {
		return nil, err
	}

	return out, nil
}

func flatten(value interface{}, out *[]string) error {
	switch v := value.(type) {
	case string:
		for _, part := range strings.FieldsFunc(v, splitSet) {
			if addr := strings.TrimSpace(part); addr != "" {
				*out = append(*out, addr)
			}
		}
	case []interface{}:
		for _, item := range v {
			if err := flatten(item, out); err != nil {
				return err
			}
		}
	default:
		return ErrBadRecipients
	}

	return nil
}

// dedupe keeps the first occurrence of each address, compared
// case-insensitively.
func dedupe(addrs []string) []string {
	seen := make(map[string]struct{}, len(addrs))
	out := make([]string, 0, len(addrs))

	for _, addr := range addrs {
		key := strings.ToLower(addr)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, addr)
	}

	return out
}
