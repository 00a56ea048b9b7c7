package repository

import (
	"context"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
)

// ============================================================================
// Session helpers
// ============================================================================

func readSession(ctx context.Context, driver neo4j.DriverWithContext) neo4j.SessionWithContext {
	return driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
}

func writeSession(ctx context.Context, driver neo4j.DriverWithContext) neo4j.SessionWithContext {
	return driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
}

// collectRecords drains a result inside a transaction function.
func collectRecords(ctx context.Context, result neo4j.ResultWithContext) ([]*neo4j.Record, error) {
	var records []*neo4j.Record
	for result.Next(ctx) {
		records = append(records, result.Record())
	}
	return records, result.Err()
}

// singleRecord returns the first record or nil when the result is empty.
func singleRecord(ctx context.Context, result neo4j.ResultWithContext) (*neo4j.Record, error) {
	if result.Next(ctx) {
		return result.Record(), result.Err()
	}
	return nil, result.Err()
}

// ============================================================================
// Record helpers
// ============================================================================

func getStringFromRecord(record *neo4j.Record, key string) string {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return ""
	}
	if str, ok := val.(string); ok {
		return str
	}
	return ""
}

func getIntFromRecord(record *neo4j.Record, key string) int {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return 0
	}
	if i, ok := val.(int64); ok {
		return int(i)
	}
	if i, ok := val.(int); ok {
		return i
	}
	return 0
}

func getBoolFromRecord(record *neo4j.Record, key string) bool {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return false
	}
	if b, ok := val.(bool); ok {
		return b
	}
	return false
}

func getNodeFromRecord(record *neo4j.Record, key string) (dbtype.Node, bool) {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return dbtype.Node{}, false
	}
	node, ok := val.(dbtype.Node)
	return node, ok
}

func getStringPtrFromRecord(record *neo4j.Record, key string) *string {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return nil
	}
	if str, ok := val.(string); ok && str != "" {
		return &str
	}
	return nil
}

// ============================================================================
// Property map helpers (for RETURN n projections)
// ============================================================================

func getStringSliceFromRecord(record *neo4j.Record, key string) []string {
	value, ok := record.Get(key)
	if !ok || value == nil {
		return []string{}
	}
	items, ok := value.([]interface{})
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func getStringFromMap(m map[string]interface{}, key string) string {
	val, ok := m[key]
	if !ok || val == nil {
		return ""
	}
	if str, ok := val.(string); ok {
		return str
	}
	return ""
}

func getStringPtrFromMap(m map[string]interface{}, key string) *string {
	val, ok := m[key]
	if !ok || val == nil {
		return nil
	}
	if str, ok := val.(string); ok && str != "" {
		return &str
	}
	return nil
}

func getIntFromMap(m map[string]interface{}, key string) int {
	val, ok := m[key]
	if !ok || val == nil {
		return 0
	}
	if i, ok := val.(int64); ok {
		return int(i)
	}
	if i, ok := val.(int); ok {
		return i
	}
	return 0
}

func getBoolFromMap(m map[string]interface{}, key string) bool {
	val, ok := m[key]
	if !ok || val == nil {
		return false
	}
	if b, ok := val.(bool); ok {
		return b
	}
	return false
}

func getStringSliceFromMap(m map[string]interface{}, key string) []string {
	val, ok := m[key]
	if !ok || val == nil {
		return []string{}
	}
	if slice, ok := val.([]interface{}); ok {
		result := make([]string, 0, len(slice))
		for _, v := range slice {
			if str, ok := v.(string); ok {
				result = append(result, str)
			}
		}
		return result
	}
	return []string{}
}

// getTimeFromMap handles both native time.Time values and the driver's
// temporal wrapper types.
func getTimeFromMap(m map[string]interface{}, key string) time.Time {
	val, ok := m[key]
	if !ok || val == nil {
		return time.Time{}
	}
	switch t := val.(type) {
	case time.Time:
		return t
	case dbtype.LocalDateTime:
		return t.Time()
	case dbtype.Date:
		return t.Time()
	}
	return time.Time{}
}

func getTimePtrFromMap(m map[string]interface{}, key string) *time.Time {
	t := getTimeFromMap(m, key)
	if t.IsZero() {
		return nil
	}
	return &t
}

// setOptString adds a key only when the pointer carries a value, keeping
// unset optionals absent from the node.
func setOptString(props map[string]interface{}, key string, v *string) {
	if v != nil {
		props[key] = *v
	}
}
