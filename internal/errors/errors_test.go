package errors

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"testing"
)

func TestErrorIs(t *testing.T) {
	err := fmt.Errorf("insert: %w", PersistError("users", fs.ErrPermission))
	if !stderrors.Is(err, ErrPersist) {
		t.Error("code sentinel not matched")
	}
	if stderrors.Is(err, ErrStorage) {
		t.Error("wrong code matched")
	}
	if !stderrors.Is(err, New(ErrPersist, "other message")) {
		t.Error("*Error with same code not matched")
	}
	if !stderrors.Is(err, fs.ErrPermission) {
		t.Error("wrapped cause not reachable")
	}
}

func TestCodeOf(t *testing.T) {
	if got := CodeOf(TableNotFound("t")); got != ErrTableNotFound {
		t.Errorf("CodeOf = %q", got)
	}
	if got := CodeOf(fmt.Errorf("x: %w", InvalidState("OrWhere", "no where"))); got != ErrInvalidState {
		t.Errorf("CodeOf wrapped = %q", got)
	}
	if got := CodeOf(stderrors.New("plain")); got != "" {
		t.Errorf("CodeOf plain = %q", got)
	}
}

func TestErrorMessage(t *testing.T) {
	err := UnsupportedOperator("~")
	if err.Error() != `operator "~" not supported` {
		t.Errorf("Error() = %q", err.Error())
	}
	if err.Details()["operator"] != "~" {
		t.Errorf("Details() = %v", err.Details())
	}
	wrapped := StorageError("failed to list tables", fs.ErrNotExist)
	if wrapped.Error() != "failed to list tables: file does not exist" {
		t.Errorf("Error() = %q", wrapped.Error())
	}
}
