package db

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
)

func TestWrapNotFound(t *testing.T) {
	if WrapNotFound(nil) != nil {
		t.Fatal("expected nil for nil error")
	}
	if err := WrapNotFound(pgx.ErrNoRows); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	boom := errors.New("boom")
	err := WrapNotFound(boom)
	if !errors.Is(err, boom) || errors.Is(err, ErrNotFound) {
		t.Fatalf("expected wrapped boom, got %v", err)
	}
	if !IsNotFound(pgx.ErrNoRows) || IsNotFound(boom) {
		t.Fatal("IsNotFound misclassified errors")
	}
}
