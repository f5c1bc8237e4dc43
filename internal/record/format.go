package record

import (
	"fmt"
	"strconv"
	"strings"

	ingesterr "github.com/Aman-CERP/nycingest/internal/errors"
)

const (
	amountMarker = "amount"
	dateMarker   = "date"
)

// Format returns a copy of r prepared for indexing. r is not modified.
//
// Fields whose name contains "amount" are parsed as float64; a non-numeric
// amount is an error. Fields whose name contains "date" are parsed as
// MM/DD/YYYY; a value that does not parse is kept verbatim. Values already
// converted by an earlier Format pass through, so Format is idempotent.
func Format(r Record) (Record, error) {
	out := r.Clone()
	for i, f := range out.fields {
		switch {
		case strings.Contains(f.Name, amountMarker):
			v, err := toFloat(f.Value)
			if err != nil {
				return Record{}, ingesterr.New(ingesterr.ErrCodeInvalidAmount,
					fmt.Sprintf("field %q is not a number: %v", f.Name, f.Value), err).
					WithDetail("field", f.Name)
			}
			out.fields[i].Value = v
		case strings.Contains(f.Name, dateMarker):
			if s, ok := f.Value.(string); ok {
				if d, err := ParseDate(s); err == nil {
					out.fields[i].Value = d
				}
			}
		}
	}
	return out, nil
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(x), 64)
	default:
		return 0, fmt.Errorf("unsupported value type %T", v)
	}
}
