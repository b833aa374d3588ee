// internal/app/system/txn/txn.go

// Package txn wraps multi-document work in a MongoDB transaction, with a
// guarded fallback for standalone servers that do not support sessions.
package txn

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// WithTransaction runs fn inside a MongoDB transaction. Every store call
// inside fn must use the context passed to fn, or it will escape the
// transaction.
//
// On servers without transaction support (standalone mongod, common in
// development), fn runs directly instead. The individual writes this engine
// performs are idempotent upserts guarded by unique indexes, so the fallback
// degrades atomicity without ever producing duplicates; the degradation is
// logged once per call so it is visible.
func WithTransaction(ctx context.Context, client *mongo.Client, log *zap.Logger, fn func(ctx context.Context) error) error {
	session, err := client.StartSession()
	if err != nil {
		if IsNotSupported(err) {
			logFallback(log, err)
			return fn(ctx)
		}
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	if err != nil && IsNotSupported(err) {
		logFallback(log, err)
		return fn(ctx)
	}
	return err
}

func logFallback(log *zap.Logger, err error) {
	if log != nil {
		log.Warn("mongodb transactions unavailable, running without transaction", zap.Error(err))
	}
}

// Server error codes that indicate the deployment cannot run transactions.
const (
	codeIllegalOperation      = 20
	codeCommandNotSupported   = 51
	codeOperationNotSupported = 263
)

// IsNotSupported reports whether err means the server cannot run
// multi-document transactions (for example a standalone mongod rather than
// a replica set member). It matches both structured command errors and the
// message-only errors older drivers and proxies surface.
func IsNotSupported(err error) bool {
	if err == nil {
		return false
	}

	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		switch cmdErr.Code {
		case codeIllegalOperation, codeCommandNotSupported, codeOperationNotSupported:
			return true
		}
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "transaction") &&
		(strings.Contains(msg, "replica set") ||
			strings.Contains(msg, "session") ||
			strings.Contains(msg, "illegal operation")) {
		return true
	}
	if strings.Contains(msg, "session") && strings.Contains(msg, "not supported") {
		return true
	}
	return false
}
