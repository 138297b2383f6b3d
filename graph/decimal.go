package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mmdatafocus/fleet_backend/utils"
	"github.com/shopspring/decimal"
)

// UnmarshalDecimal accepts a JSON number or user-formatted text such as "20,000" or "GBP 1,250.50".
func UnmarshalDecimal(i interface{}) (decimal.Decimal, error) {
	switch v := i.(type) {
	case string:
		s := strings.TrimSpace(v)
		neg := false
		var b strings.Builder
		b.Grow(len(s))
		for _, r := range s {
			switch {
			case r == '-' && b.Len() == 0:
				neg = true
			case (r >= '0' && r <= '9') || r == '.':
				b.WriteRune(r)
			}
		}
		clean := b.String()
		if clean == "" {
			return decimal.Zero, fmt.Errorf("invalid value")
		}
		if neg {
			clean = "-" + clean
		}
		return utils.ParseDecimal(clean)
	case json.Number:
		return utils.ParseDecimal(v.String())
	case int64:
		return decimal.NewFromInt(v), nil
	case float64:
		return decimal.NewFromFloat(v), nil
	default:
		return decimal.Zero, fmt.Errorf("invalid value")
	}
}

// Decimal is a nullable Decimal input; blank text means no value.
type Decimal struct {
	decimal.NullDecimal
}

func (d *Decimal) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if string(data) == "null" {
		d.NullDecimal = decimal.NullDecimal{}
		return nil
	}

	var v interface{}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if strings.TrimSpace(s) == "" {
			d.NullDecimal = decimal.NullDecimal{}
			return nil
		}
		v = s
	} else {
		v = json.Number(data)
	}

	value, err := UnmarshalDecimal(v)
	if err != nil {
		return err
	}
	d.NullDecimal = decimal.NullDecimal{Decimal: value, Valid: true}
	return nil
}
