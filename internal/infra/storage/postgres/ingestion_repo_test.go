package postgres

import (
	"database/sql/driver"
	"testing"
)

func logsDriverValue(t *testing.T, logs []string) driver.Value {
	t.Helper()
	valuer, ok := logsArray(logs).(driver.Valuer)
	if !ok {
		t.Fatal("logsArray must produce a driver.Valuer")
	}
	v, err := valuer.Value()
	if err != nil {
		t.Fatalf("Value failed: %v", err)
	}
	return v
}

func TestLogsArray_NilEncodesEmptyArray(t *testing.T) {
	// Transactions fetched without metadata carry no log lines. They must
	// still insert: the logs column is NOT NULL, so nil has to encode as
	// an empty array, never as SQL NULL.
	v := logsDriverValue(t, nil)
	if v == nil {
		t.Fatal("nil logs encoded as SQL NULL; insert would violate NOT NULL and the transaction would be skipped on every rescan")
	}
	if s, ok := v.(string); !ok || s != "{}" {
		t.Errorf("nil logs = %#v, want empty array literal {}", v)
	}
}

func TestLogsArray_PreservesLines(t *testing.T) {
	v := logsDriverValue(t, []string{"Program log: a", "Program data: b"})
	s, ok := v.(string)
	if !ok || s == "" || s == "{}" {
		t.Errorf("logs = %#v, want a populated array literal", v)
	}
}
