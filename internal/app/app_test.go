package app

import (
	"testing"

	"github.com/vlaship/rex/internal/log"
)

func TestClose_NilSafe(t *testing.T) {
	a := &App{}
	if err := a.Close(); err != nil {
		t.Fatalf("Close on empty app: %v", err)
	}
}

func TestClose_Idempotent(t *testing.T) {
	a := &App{Logger: log.NewNop()}
	if err := a.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
