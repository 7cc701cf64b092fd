package poolconn

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestODBCConnection_JoinPushDownAlwaysDisallowed(t *testing.T) {
	c := &odbcConnection{name: "any"}
	if got := c.JoinPushDown(); got.Kind != JoinPushDownDisallow {
		t.Fatalf("expected ODBC join push-down to always be disallowed, got %v", got.Kind)
	}
}

func TestNewODBCPool_RejectsEmptyConnectionString(t *testing.T) {
	if _, err := NewODBCPool(ODBCPoolConfig{Name: "bad"}, zerolog.Nop()); err == nil {
		t.Fatal("expected an error for an empty connection string")
	}
}
