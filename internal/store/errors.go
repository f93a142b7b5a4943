package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/mattn/go-sqlite3"
	"github.com/matheus3301/crewchat/internal/message"
)

// classify wraps a database error with the message error kind that callers
// react to. Busy and locked databases are transient.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var me *message.Error
	if errors.As(err, &me) {
		return err
	}
	if errors.Is(err, sql.ErrNoRows) {
		return message.E(message.KindNotFound, op, err)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return message.E(message.KindTransient, op, err)
	}
	var se sqlite3.Error
	if errors.As(err, &se) {
		switch se.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked, sqlite3.ErrIoErr:
			return message.E(message.KindTransient, op, err)
		case sqlite3.ErrConstraint:
			if se.ExtendedCode == sqlite3.ErrConstraintForeignKey {
				return message.E(message.KindNotFound, op, err)
			}
		}
	}
	return message.E(message.KindUnknown, op, err)
}
