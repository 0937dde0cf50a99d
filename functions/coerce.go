package functions

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MultiX0/dbgate/constants"
	"github.com/MultiX0/dbgate/errs"
	"github.com/MultiX0/dbgate/utils"
)

const (
	dateLayout     = "2006-01-02"
	timeLayout     = "15:04:05"
	datetimeLayout = "2006-01-02T15:04:05"
)

var patternReplacer = strings.NewReplacer(
	"'T'", "T",
	"yyyy", "2006",
	"MM", "01",
	"dd", "02",
	"HH", "15",
	"mm", "04",
	"ss", "05",
	"SSS", "000",
)

// TimeLayout translates a date pattern of the yyyy-MM-dd family into a Go
// layout, falling back to def when no pattern is given.
func TimeLayout(pattern, def string) string {
	if pattern == "" {
		return def
	}
	return strings.ReplaceAll(patternReplacer.Replace(pattern), "'", "")
}

// Coerce parses a raw JSON value into a typed SQL value for the target type.
// Lists are coerced element-wise.
func Coerce(raw any, target constants.SQLType, format string) (any, error) {
	if raw == nil {
		return nil, nil
	}
	if list, ok := raw.([]any); ok {
		out := make([]any, 0, len(list))
		for _, item := range list {
			v, err := Coerce(item, target, format)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	}

	switch target {
	case constants.TypeVarchar, constants.TypeChar:
		return stringify(raw), nil

	case constants.TypeInteger, constants.TypeBigint:
		n, err := strconv.ParseInt(stringify(raw), 10, 64)
		if err != nil {
			return nil, parseErr(raw, target)
		}
		return n, nil

	case constants.TypeDecimal:
		f, err := strconv.ParseFloat(stringify(raw), 64)
		if err != nil {
			return nil, parseErr(raw, target)
		}
		return f, nil

	case constants.TypeBoolean:
		if b, ok := raw.(bool); ok {
			return b, nil
		}
		switch stringify(raw) {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
		return nil, parseErr(raw, target)

	case constants.TypeDate:
		t, err := time.Parse(TimeLayout(format, dateLayout), stringify(raw))
		if err != nil {
			return nil, parseErr(raw, target)
		}
		return t, nil

	case constants.TypeTime:
		t, err := time.Parse(TimeLayout(format, timeLayout), stringify(raw))
		if err != nil {
			return nil, parseErr(raw, target)
		}
		return t.Format(timeLayout), nil

	case constants.TypeDatetime:
		t, err := time.Parse(TimeLayout(format, datetimeLayout), stringify(raw))
		if err != nil {
			return nil, parseErr(raw, target)
		}
		return t, nil

	case constants.TypeUUID:
		u, err := uuid.Parse(stringify(raw))
		if err != nil {
			return nil, parseErr(raw, target)
		}
		return u.String(), nil

	case constants.TypeJSON, constants.TypeJSONB:
		// stored as raw text, not reparsed at bind time
		if s, ok := raw.(string); ok {
			return s, nil
		}
		b, err := json.Marshal(raw)
		if err != nil {
			return nil, parseErr(raw, target)
		}
		return string(b), nil

	case constants.TypeOther:
		v, _ := GuessValue(raw)
		return v, nil
	}

	return nil, errs.InvalidArgf("unsupported target type: %s", target)
}

// CoerceList coerces raw into a list of typed values, promoting a scalar to a
// one-element list.
func CoerceList(raw any, target constants.SQLType, format string) ([]any, error) {
	list, ok := raw.([]any)
	if !ok {
		list = []any{raw}
	}
	out := make([]any, 0, len(list))
	for _, item := range list {
		v, err := Coerce(item, target, format)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func parseErr(raw any, target constants.SQLType) error {
	return errs.InvalidArgf("failed to parse value '%v' as %s", raw, target)
}

func stringify(raw any) string {
	switch v := raw.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	default:
		return fmt.Sprint(raw)
	}
}

// GuessValue classifies a raw value whose column type is unknown to the
// schema map, so it still binds with a sensible type.
func GuessValue(raw any) (any, constants.SQLType) {
	str, ok := raw.(string)
	if !ok {
		if n, ok := raw.(json.Number); ok {
			if i, err := n.Int64(); err == nil {
				return i, constants.TypeBigint
			}
			if f, err := n.Float64(); err == nil {
				return f, constants.TypeDecimal
			}
		}
		return raw, constants.TypeOther
	}

	if str == "true" || str == "false" {
		return str == "true", constants.TypeBoolean
	}
	if i, err := strconv.ParseInt(str, 10, 64); err == nil {
		return i, constants.TypeBigint
	}
	if _, ok := new(big.Int).SetString(str, 10); ok {
		return str, constants.TypeDecimal
	}
	if f, err := strconv.ParseFloat(str, 64); err == nil {
		return f, constants.TypeDecimal
	}
	if isSimpleDate(str) {
		if t, err := time.Parse(dateLayout, str); err == nil {
			return t, constants.TypeDate
		}
	}
	if isSimpleTime(str) {
		if _, err := time.Parse(timeLayout, str); err == nil {
			return str, constants.TypeTime
		}
	}
	if isSimpleDateTime(str) {
		if t, err := time.Parse(datetimeLayout, str); err == nil {
			return t, constants.TypeDatetime
		}
	}
	if utils.IsValidUUID(str) {
		return str, constants.TypeUUID
	}
	if utils.IsJSON(str) {
		return str, constants.TypeJSONB
	}
	return str, constants.TypeOther
}

func isSimpleDate(s string) bool {
	return len(s) == 10 && s[4] == '-' && s[7] == '-'
}

func isSimpleTime(s string) bool {
	return len(s) == 8 && s[2] == ':' && s[5] == ':'
}

func isSimpleDateTime(s string) bool {
	return len(s) == 19 && s[4] == '-' && s[7] == '-' && s[10] == 'T'
}
