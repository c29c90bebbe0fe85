package entity

import (
	"math"
	"strconv"
	"strings"
)

// Vector2 is a two-component vector stored as "x y".
type Vector2 struct{ X, Y float64 }

// Vector3 is a three-component vector stored as "x y z" (origins, angles,
// colours).
type Vector3 struct{ X, Y, Z float64 }

// Vector4 is a four-component vector stored as "x y z w" (e.g. light colour
// plus brightness).
type Vector4 struct{ X, Y, Z, W float64 }

// GetString returns the value of key, or def when key is absent.
func (e *Entity) GetString(key, def string) string {
	if v, ok := e.cache[key]; ok {
		return v
	}
	return def
}

// GetInt returns key parsed as a base-10 integer, or def when key is absent
// or malformed. Fractional values are truncated the way the game does.
func (e *Entity) GetInt(key string, def int) int {
	v, ok := e.cache[key]
	if !ok {
		return def
	}
	v = strings.TrimSpace(v)
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	// Fractional values truncate toward zero. NaN, infinities, and values
	// outside the int range fall back to def.
	if f, err := strconv.ParseFloat(v, 64); err == nil && f >= minIntFloat && f < -minIntFloat {
		return int(f)
	}
	return def
}

// minIntFloat is math.MinInt as a float64. It is a power of two, so it and
// its negation are exact.
const minIntFloat = float64(math.MinInt)

// GetFloat returns key parsed as a float, or def when absent or malformed.
func (e *Entity) GetFloat(key string, def float64) float64 {
	v, ok := e.cache[key]
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return def
	}
	return f
}

// GetBool returns key as a boolean. Integer values are true when non-zero;
// "true" and "false" are accepted as well. Anything else yields def.
func (e *Entity) GetBool(key string, def bool) bool {
	v, ok := e.cache[key]
	if !ok {
		return def
	}
	v = strings.TrimSpace(v)
	if n, err := strconv.Atoi(v); err == nil {
		return n != 0
	}
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	return def
}

// GetVector2 returns key parsed as a [Vector2], or def when absent or malformed.
func (e *Entity) GetVector2(key string, def Vector2) Vector2 {
	c, ok := e.components(key, 2)
	if !ok {
		return def
	}
	return Vector2{c[0], c[1]}
}

// GetVector3 returns key parsed as a [Vector3], or def when absent or malformed.
func (e *Entity) GetVector3(key string, def Vector3) Vector3 {
	c, ok := e.components(key, 3)
	if !ok {
		return def
	}
	return Vector3{c[0], c[1], c[2]}
}

// GetVector4 returns key parsed as a [Vector4], or def when absent or malformed.
func (e *Entity) GetVector4(key string, def Vector4) Vector4 {
	c, ok := e.components(key, 4)
	if !ok {
		return def
	}
	return Vector4{c[0], c[1], c[2], c[3]}
}

// SetInt stores n under key.
func (e *Entity) SetInt(key string, n int) error {
	return e.SetString(key, strconv.Itoa(n))
}

// SetFloat stores f under key without exponent notation.
func (e *Entity) SetFloat(key string, f float64) error {
	return e.SetString(key, formatFloat(f))
}

// SetBool stores b under key as "1" or "0".
func (e *Entity) SetBool(key string, b bool) error {
	if b {
		return e.SetString(key, "1")
	}
	return e.SetString(key, "0")
}

// SetVector3 stores v under key as "x y z".
func (e *Entity) SetVector3(key string, v Vector3) error {
	return e.SetString(key, formatFloat(v.X)+" "+formatFloat(v.Y)+" "+formatFloat(v.Z))
}

// components parses exactly n whitespace-separated floats from key.
func (e *Entity) components(key string, n int) ([]float64, bool) {
	v, ok := e.cache[key]
	if !ok {
		return nil, false
	}
	fields := strings.Fields(v)
	if len(fields) != n {
		return nil, false
	}
	out := make([]float64, n)
	for i, f := range fields {
		x, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, false
		}
		out[i] = x
	}
	return out, true
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
