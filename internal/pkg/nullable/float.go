// Package nullable 提供显式可空的数值类型。
//
// 排序约定：无论升序还是降序，null 永远排在所有有效值之后。
// 算术约定：任一操作数为 null 时结果为 null；除以 0 的结果同样为 null。
package nullable

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Float 是可空的 float64。零值即 null。
type Float struct {
	v     float64
	valid bool
}

// Null 返回 null。
func Null() Float { return Float{} }

// Of 包装一个数值；NaN/Inf 视为 null。
func Of(v float64) Float {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Float{}
	}
	return Float{v: v, valid: true}
}

// FromPtr 将 nil 映射为 null。
func FromPtr(p *float64) Float {
	if p == nil {
		return Float{}
	}
	return Of(*p)
}

func (f Float) IsNull() bool { return !f.valid }

func (f Float) Valid() bool { return f.valid }

// Get 返回值以及是否有效。
func (f Float) Get() (float64, bool) { return f.v, f.valid }

// Or 在 null 时返回 fallback。
func (f Float) Or(fallback float64) float64 {
	if !f.valid {
		return fallback
	}
	return f.v
}

// Ptr 返回指针形式（null 为 nil），便于 gorm/json 持久化。
func (f Float) Ptr() *float64 {
	if !f.valid {
		return nil
	}
	v := f.v
	return &v
}

// Positive 当且仅当值有效且 > 0。
func (f Float) Positive() bool { return f.valid && f.v > 0 }

func (f Float) Add(o Float) Float {
	if !f.valid || !o.valid {
		return Float{}
	}
	return Of(f.v + o.v)
}

func (f Float) Sub(o Float) Float {
	if !f.valid || !o.valid {
		return Float{}
	}
	return Of(f.v - o.v)
}

func (f Float) Mul(o Float) Float {
	if !f.valid || !o.valid {
		return Float{}
	}
	return Of(f.v * o.v)
}

func (f Float) Div(o Float) Float {
	if !f.valid || !o.valid || o.v == 0 {
		return Float{}
	}
	return Of(f.v / o.v)
}

// PctChange 计算 (f - prev) / prev。
func (f Float) PctChange(prev Float) Float {
	return f.Sub(prev).Div(prev)
}

// Equal 两个 null 视为相等。
func (f Float) Equal(o Float) bool {
	if f.valid != o.valid {
		return false
	}
	return !f.valid || f.v == o.v
}

// CompareAsc 返回升序比较结果（-1/0/1），null 排最后。
func CompareAsc(a, b Float) int {
	switch {
	case !a.valid && !b.valid:
		return 0
	case !a.valid:
		return 1
	case !b.valid:
		return -1
	case a.v < b.v:
		return -1
	case a.v > b.v:
		return 1
	default:
		return 0
	}
}

// CompareDesc 返回降序比较结果（-1/0/1），null 同样排最后。
func CompareDesc(a, b Float) int {
	switch {
	case !a.valid && !b.valid:
		return 0
	case !a.valid:
		return 1
	case !b.valid:
		return -1
	case a.v > b.v:
		return -1
	case a.v < b.v:
		return 1
	default:
		return 0
	}
}

func (f Float) String() string {
	if !f.valid {
		return "null"
	}
	return strconv.FormatFloat(f.v, 'f', -1, 64)
}

func (f Float) MarshalJSON() ([]byte, error) {
	if !f.valid {
		return []byte("null"), nil
	}
	return json.Marshal(f.v)
}

func (f *Float) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = Float{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = Of(v)
	return nil
}

// Scan 实现 sql.Scanner。
func (f *Float) Scan(src any) error {
	switch val := src.(type) {
	case nil:
		*f = Float{}
	case float64:
		*f = Of(val)
	case int64:
		*f = Of(float64(val))
	case []byte:
		return f.scanString(string(val))
	case string:
		return f.scanString(val)
	default:
		return fmt.Errorf("nullable: cannot scan %T", src)
	}
	return nil
}

func (f *Float) scanString(s string) error {
	if s == "" {
		*f = Float{}
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("nullable: %w", err)
	}
	*f = Of(v)
	return nil
}

// Value 实现 driver.Valuer。
func (f Float) Value() (driver.Value, error) {
	if !f.valid {
		return nil, nil
	}
	return f.v, nil
}
