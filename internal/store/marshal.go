package store

import (
	"database/sql"
	"fmt"

	"github.com/roach88/scenesync/internal/ir"
)

// marshalValue converts a property value to canonical JSON TEXT for
// storage. Calls without a value store NULL.
func marshalValue(v ir.Value) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	if _, ok := v.(ir.Null); ok {
		return sql.NullString{}, nil
	}
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshal value: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// unmarshalValue parses stored canonical JSON back into a Value.
// Canonical JSON prints integral floats without a fraction, so they read
// back as Int.
func unmarshalValue(data sql.NullString) (ir.Value, error) {
	if !data.Valid {
		return nil, nil
	}
	v, err := ir.UnmarshalValue([]byte(data.String))
	if err != nil {
		return nil, fmt.Errorf("unmarshal value: %w", err)
	}
	return v, nil
}
