package compiler

import (
	"encoding/base64"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nexuscore/tdbcore/query/argbind"
	"github.com/nexuscore/tdbcore/query/exprtree"
	"github.com/nexuscore/tdbcore/query/predast"
	"github.com/nexuscore/tdbcore/query/schema"
)

// minTimestampYear is the earliest year the storage layer's Timestamp column
// can represent (spec.md §7: "a TIMESTAMP literal before year 1900 fails
// QuerySemantic").
const minTimestampYear = 1900

// compileConstant lowers a predast.Constant literal to a fully-typed
// exprtree.ConstValue. hint is the ColType of the property side of the
// surrounding comparison, if known; it disambiguates a bare CNumber literal
// between Int/Timestamp/Float/Double/Decimal and a CArg reference against an argument
// bound with an ambiguous dynamic type (spec.md §4.2 "constant compilation
// takes a type hint from its sibling operand").
func (c *Compiler) compileConstant(n predast.Constant, hint schema.ColType) (exprtree.ConstValue, error) {
	switch n.Type {
	case predast.CNull:
		return exprtree.ConstValue{Type: hint, IsNull: true}, nil

	case predast.CTrue:
		return exprtree.ConstValue{Type: schema.TypeBool, Value: true}, nil

	case predast.CFalse:
		return exprtree.ConstValue{Type: schema.TypeBool, Value: false}, nil

	case predast.CNumber:
		return c.compileNumber(n.Text, hint)

	case predast.CFloat:
		f, err := strconv.ParseFloat(n.Text, 64)
		if err != nil {
			return exprtree.ConstValue{}, fmt.Errorf("%w: invalid float literal %q: %v", ErrSemantic, n.Text, err)
		}
		if hint == schema.TypeFloat {
			return exprtree.ConstValue{Type: schema.TypeFloat, Value: float32(f)}, nil
		}
		return exprtree.ConstValue{Type: schema.TypeDouble, Value: f}, nil

	case predast.CInfinity:
		v := math.Inf(1)
		if strings.HasPrefix(n.Text, "-") {
			v = math.Inf(-1)
		}
		if hint == schema.TypeFloat {
			return exprtree.ConstValue{Type: schema.TypeFloat, Value: float32(v)}, nil
		}
		return exprtree.ConstValue{Type: schema.TypeDouble, Value: v}, nil

	case predast.CNaN:
		if hint == schema.TypeFloat {
			return exprtree.ConstValue{Type: schema.TypeFloat, Value: float32(math.NaN())}, nil
		}
		return exprtree.ConstValue{Type: schema.TypeDouble, Value: math.NaN()}, nil

	case predast.CString:
		return exprtree.ConstValue{Type: schema.TypeString, Value: stripQuotes(n.Text)}, nil

	case predast.CBase64:
		buf, err := base64.StdEncoding.DecodeString(stripWrapper(n.Text, "B64\"", "\""))
		if err != nil {
			return exprtree.ConstValue{}, fmt.Errorf("%w: invalid base64 literal: %v", ErrSemantic, err)
		}
		c.base64Scratch = append(c.base64Scratch, buf)
		return exprtree.ConstValue{Type: schema.TypeBinary, Value: buf}, nil

	case predast.CTimestamp:
		t, err := parseTimestampLiteral(n.Text)
		if err != nil {
			return exprtree.ConstValue{}, err
		}
		return exprtree.ConstValue{Type: schema.TypeTimestamp, Value: t}, nil

	case predast.CUUID:
		u, err := uuid.Parse(stripWrapper(n.Text, "uuid(", ")"))
		if err != nil {
			return exprtree.ConstValue{}, fmt.Errorf("%w: invalid UUID literal %q: %v", ErrSemantic, n.Text, err)
		}
		return exprtree.ConstValue{Type: schema.TypeUUID, Value: u}, nil

	case predast.COid:
		id, err := parseObjectIDLiteral(stripWrapper(n.Text, "oid(", ")"))
		if err != nil {
			return exprtree.ConstValue{}, err
		}
		return exprtree.ConstValue{Type: schema.TypeObjectID, Value: id}, nil

	case predast.CArg:
		return c.compileArg(n.Text, hint)

	default:
		return exprtree.ConstValue{}, fmt.Errorf("%w: unknown constant type %d", ErrSemantic, n.Type)
	}
}

// compileNumber picks Int, Timestamp (seconds-since-epoch shorthand), Float,
// Double or Decimal representation for a bare integer literal according to
// hint, defaulting to Int when hint gives no guidance.
func (c *Compiler) compileNumber(text string, hint schema.ColType) (exprtree.ConstValue, error) {
	switch hint {
	case schema.TypeDecimal:
		return exprtree.ConstValue{Type: schema.TypeDecimal, Value: text}, nil
	case schema.TypeTimestamp:
		secs, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return exprtree.ConstValue{}, fmt.Errorf("%w: invalid integer literal %q: %v", ErrSemantic, text, err)
		}
		return exprtree.ConstValue{Type: schema.TypeTimestamp, Value: time.Unix(secs, 0).UTC()}, nil
	case schema.TypeFloat:
		v, err := strconv.ParseFloat(text, 32)
		if err != nil {
			return exprtree.ConstValue{}, fmt.Errorf("%w: invalid numeric literal %q: %v", ErrSemantic, text, err)
		}
		return exprtree.ConstValue{Type: schema.TypeFloat, Value: float32(v)}, nil
	case schema.TypeDouble:
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return exprtree.ConstValue{}, fmt.Errorf("%w: invalid numeric literal %q: %v", ErrSemantic, text, err)
		}
		return exprtree.ConstValue{Type: schema.TypeDouble, Value: v}, nil
	default:
		v, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return exprtree.ConstValue{}, fmt.Errorf("%w: invalid integer literal %q: %v", ErrSemantic, text, err)
		}
		return exprtree.ConstValue{Type: schema.TypeInt, Value: v}, nil
	}
}

// parseTimestampLiteral accepts the source engine's "T<seconds>:<nanos>"
// shorthand as well as the readable form parsed by parseReadableTimestamp
// (not RFC3339), and rejects dates before minTimestampYear (spec.md §7).
func parseTimestampLiteral(text string) (time.Time, error) {
	if strings.HasPrefix(text, "T") {
		rest := text[1:]
		parts := strings.SplitN(rest, ":", 2)
		secs, err := strconv.ParseInt(parts[0], 10, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: invalid timestamp literal %q: %v", ErrSemantic, text, err)
		}
		var nanos int64
		if len(parts) == 2 {
			nanos, err = strconv.ParseInt(parts[1], 10, 64)
			if err != nil {
				return time.Time{}, fmt.Errorf("%w: invalid timestamp literal %q: %v", ErrSemantic, text, err)
			}
		}
		if (secs < 0) != (nanos < 0) && secs != 0 && nanos != 0 {
			return time.Time{}, fmt.Errorf("%w: timestamp literal %q mixes signs between seconds and nanoseconds", ErrSemantic, text)
		}
		t := time.Unix(secs, nanos).UTC()
		return t, checkTimestampRange(t, text)
	}
	t, err := parseReadableTimestamp(text)
	if err != nil {
		return time.Time{}, err
	}
	return t, checkTimestampRange(t, text)
}

// parseReadableTimestamp parses the source engine's readable timestamp
// literal syntax: "YYYY-MM-DD<sep>HH:MM:SS[:NANOS]" with sep being '@' or
// 'T' and a colon-separated (not dot-separated) optional nanosecond field —
// distinct from RFC3339, which this literal syntax otherwise resembles.
func parseReadableTimestamp(text string) (time.Time, error) {
	const datePartLen = len("YYYY-MM-DD")
	if len(text) < datePartLen+1 {
		return time.Time{}, fmt.Errorf("%w: invalid timestamp literal %q", ErrSemantic, text)
	}
	sep := text[datePartLen]
	if sep != '@' && sep != 'T' {
		return time.Time{}, fmt.Errorf("%w: invalid timestamp literal %q: expected '@' or 'T' date/time separator", ErrSemantic, text)
	}

	var year, month, day int
	if _, err := fmt.Sscanf(text[:datePartLen], "%04d-%02d-%02d", &year, &month, &day); err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid timestamp literal %q: %v", ErrSemantic, text, err)
	}

	fields := strings.Split(text[datePartLen+1:], ":")
	if len(fields) < 3 || len(fields) > 4 {
		return time.Time{}, fmt.Errorf("%w: invalid timestamp literal %q: expected HH:MM:SS[:NANOS]", ErrSemantic, text)
	}
	hour, err := strconv.Atoi(fields[0])
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid timestamp literal %q: %v", ErrSemantic, text, err)
	}
	minute, err := strconv.Atoi(fields[1])
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid timestamp literal %q: %v", ErrSemantic, text, err)
	}
	second, err := strconv.Atoi(fields[2])
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid timestamp literal %q: %v", ErrSemantic, text, err)
	}
	var nanos int
	if len(fields) == 4 {
		nanos, err = strconv.Atoi(fields[3])
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: invalid timestamp literal %q: %v", ErrSemantic, text, err)
		}
	}

	return time.Date(year, time.Month(month), day, hour, minute, second, nanos, time.UTC), nil
}

// stripQuotes removes a single pair of surrounding double quotes, matching
// spec.md §4.2's STRING literal syntax ("..."). Text that arrives without
// quotes (already-unwrapped test fixtures, or a parser variant that strips
// them itself) passes through unchanged.
func stripQuotes(text string) string {
	if len(text) >= 2 && text[0] == '"' && text[len(text)-1] == '"' {
		return text[1 : len(text)-1]
	}
	return text
}

// stripWrapper removes a literal's wrapper syntax (B64"...", uuid(...),
// oid(...)) down to the inner payload spec.md §4.2 describes for each form.
// Text without the wrapper passes through unchanged.
func stripWrapper(text, prefix, suffix string) string {
	if strings.HasPrefix(text, prefix) && strings.HasSuffix(text, suffix) && len(text) >= len(prefix)+len(suffix) {
		return text[len(prefix) : len(text)-len(suffix)]
	}
	return text
}

func checkTimestampRange(t time.Time, text string) error {
	if t.Year() < minTimestampYear {
		return fmt.Errorf("%w: timestamp literal %q predates year %d", ErrSemantic, text, minTimestampYear)
	}
	return nil
}

func parseObjectIDLiteral(text string) ([12]byte, error) {
	var id [12]byte
	if len(text) != 24 {
		return id, fmt.Errorf("%w: object id literal %q must be 24 hex characters", ErrSemantic, text)
	}
	for i := 0; i < 12; i++ {
		b, err := strconv.ParseUint(text[i*2:i*2+2], 16, 8)
		if err != nil {
			return id, fmt.Errorf("%w: invalid object id literal %q: %v", ErrSemantic, text, err)
		}
		id[i] = byte(b)
	}
	return id, nil
}

// compileArg resolves a "$n" argument reference against c.args. The
// argument's own declared dynamic type (via TypeFor) selects which typed
// accessor to call; hint only types a null argument and triggers the
// Timestamp/ObjectID case below. spec.md §4.2's
// documented Timestamp/ObjectID heuristic: when hint is Timestamp but the
// bound argument's dynamic type is ObjectID (both are commonly passed as
// hex/temporal-looking strings by callers), the ObjectID's embedded creation
// time is used rather than failing the bind — preserved here as the source
// engine's own documented behavior rather than one this rewrite invented.
func (c *Compiler) compileArg(text string, hint schema.ColType) (exprtree.ConstValue, error) {
	idx, err := strconv.Atoi(strings.TrimPrefix(text, "$"))
	if err != nil {
		return exprtree.ConstValue{}, fmt.Errorf("%w: invalid argument reference %q: %v", ErrSemantic, text, err)
	}
	if c.args == nil {
		return exprtree.ConstValue{}, fmt.Errorf("%w: no arguments bound for reference %q", ErrSemantic, text)
	}
	if isNull, err := c.args.IsNull(idx); err != nil {
		return exprtree.ConstValue{}, fmt.Errorf("%w: %v", ErrSemantic, err)
	} else if isNull {
		return exprtree.ConstValue{Type: hint, IsNull: true}, nil
	}

	dynType, err := c.args.TypeFor(idx)
	if err != nil {
		return exprtree.ConstValue{}, fmt.Errorf("%w: %v", ErrSemantic, err)
	}

	if hint == schema.TypeTimestamp && dynType == argbind.TypeObjectID {
		id, err := c.args.ObjectIDFor(idx)
		if err != nil {
			return exprtree.ConstValue{}, fmt.Errorf("%w: %v", ErrSemantic, err)
		}
		secs := int64(id[0])<<24 | int64(id[1])<<16 | int64(id[2])<<8 | int64(id[3])
		return exprtree.ConstValue{Type: schema.TypeTimestamp, Value: time.Unix(secs, 0).UTC()}, nil
	}

	switch dynType {
	case argbind.TypeBool:
		v, err := c.args.BoolFor(idx)
		return exprtree.ConstValue{Type: schema.TypeBool, Value: v}, wrapArgErr(err)
	case argbind.TypeInt:
		v, err := c.args.LongFor(idx)
		return exprtree.ConstValue{Type: schema.TypeInt, Value: v}, wrapArgErr(err)
	case argbind.TypeFloat:
		v, err := c.args.FloatFor(idx)
		return exprtree.ConstValue{Type: schema.TypeFloat, Value: v}, wrapArgErr(err)
	case argbind.TypeDouble:
		v, err := c.args.DoubleFor(idx)
		return exprtree.ConstValue{Type: schema.TypeDouble, Value: v}, wrapArgErr(err)
	case argbind.TypeString:
		v, err := c.args.StringFor(idx)
		return exprtree.ConstValue{Type: schema.TypeString, Value: v}, wrapArgErr(err)
	case argbind.TypeBinary:
		v, err := c.args.BinaryFor(idx)
		return exprtree.ConstValue{Type: schema.TypeBinary, Value: v}, wrapArgErr(err)
	case argbind.TypeTimestamp:
		v, err := c.args.TimestampFor(idx)
		return exprtree.ConstValue{Type: schema.TypeTimestamp, Value: v}, wrapArgErr(err)
	case argbind.TypeObjectID:
		v, err := c.args.ObjectIDFor(idx)
		return exprtree.ConstValue{Type: schema.TypeObjectID, Value: v}, wrapArgErr(err)
	case argbind.TypeUUID:
		v, err := c.args.UUIDFor(idx)
		return exprtree.ConstValue{Type: schema.TypeUUID, Value: v}, wrapArgErr(err)
	case argbind.TypeDecimal:
		v, err := c.args.DecimalFor(idx)
		return exprtree.ConstValue{Type: schema.TypeDecimal, Value: v}, wrapArgErr(err)
	case argbind.TypeObjectIndex:
		v, err := c.args.ObjectIndexFor(idx)
		return exprtree.ConstValue{Type: schema.TypeInt, Value: v}, wrapArgErr(err)
	default:
		return exprtree.ConstValue{}, fmt.Errorf("%w: argument %q has unsupported dynamic type", ErrSemantic, text)
	}
}

func wrapArgErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrSemantic, err)
}
