// Package ir provides the scene description types and the value model used
// for native property values.
//
// All other internal packages import ir; ir imports nothing internal.
//
// Key constraints:
//   - Values are a sealed family (Null, String, Int, Float, Bool, List, Map)
//   - Floats must be finite to serialize
//   - Canonical JSON (RFC 8785) is the only form used for hashing
//   - All JSON tags use snake_case
package ir
