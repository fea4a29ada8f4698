package service

import (
    "context"
    "errors"
    "log"
    "time"

    "github.com/iliyamo/carpool-reservation/internal/queue"
    "github.com/iliyamo/carpool-reservation/internal/repository"
)

// Notifier receives events after the transaction that produced them has
// committed.  Implementations must not block.
type Notifier interface {
    Notify(ev queue.Event)
}

type nopNotifier struct{}

func (nopNotifier) Notify(queue.Event) {}

// TxPolicy bounds a unit of work.  Timeout applies to each attempt;
// MaxRetries is the number of extra attempts after a transient failure.
type TxPolicy struct {
    MaxRetries int
    Timeout    time.Duration
}

// DefaultTxPolicy is used when a zero TxPolicy is supplied.
var DefaultTxPolicy = TxPolicy{MaxRetries: 3, Timeout: 5 * time.Second}

type txFunc func(ctx context.Context, tx repository.Tx) error

// inTx runs fn in a fresh transaction and retries the whole unit on
// transient store errors.  fn must only publish results through variables
// it assigns on every attempt.
func inTx(ctx context.Context, store repository.Store, p TxPolicy, op string, fn txFunc) error {
    for attempt := 0; ; attempt++ {
        err := runOnce(ctx, store, p.Timeout, fn)
        if err == nil {
            return nil
        }
        if !retryable(err) || attempt >= p.MaxRetries || ctx.Err() != nil {
            return storeError(err)
        }
        log.Printf("%s: transient store error, retrying (%d/%d): %v", op, attempt+1, p.MaxRetries, err)
        select {
        case <-ctx.Done():
            return storeError(err)
        case <-time.After(time.Duration(attempt+1) * 25 * time.Millisecond):
        }
    }
}

func runOnce(ctx context.Context, store repository.Store, timeout time.Duration, fn txFunc) error {
    if timeout > 0 {
        var cancel context.CancelFunc
        ctx, cancel = context.WithTimeout(ctx, timeout)
        defer cancel()
    }
    tx, err := store.Begin(ctx)
    if err != nil {
        return err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()
    if err := fn(ctx, tx); err != nil {
        return err
    }
    if err := tx.Commit(); err != nil {
        return err
    }
    committed = true
    return nil
}

func retryable(err error) bool {
    var e *Error
    if errors.As(err, &e) {
        return false
    }
    return errors.Is(err, repository.ErrTransient)
}
