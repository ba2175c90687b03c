package store

import "fmt"

// Checkpoint is a savepoint-scoped unit of isolation inside a run
// transaction: one candidate, one decision row, one split group. A
// failure rolls back only the checkpoint's work; the surrounding batch
// transaction continues.
type Checkpoint struct {
	tx   *Tx
	name string
	done bool
}

// Savepoint opens a named checkpoint.
func (t *Tx) Savepoint(name string) (*Checkpoint, error) {
	if _, err := t.tx.Exec("SAVEPOINT " + name); err != nil {
		return nil, fmt.Errorf("savepoint %s: %w", name, err)
	}
	return &Checkpoint{tx: t, name: name}, nil
}

// Release commits the checkpoint's work into the surrounding transaction.
func (c *Checkpoint) Release() error {
	if c.done {
		return nil
	}
	c.done = true
	if _, err := c.tx.tx.Exec("RELEASE SAVEPOINT " + c.name); err != nil {
		return fmt.Errorf("release savepoint %s: %w", c.name, err)
	}
	return nil
}

// Rollback discards the checkpoint's work. Safe to defer after Release.
func (c *Checkpoint) Rollback() error {
	if c.done {
		return nil
	}
	c.done = true
	if _, err := c.tx.tx.Exec("ROLLBACK TO SAVEPOINT " + c.name); err != nil {
		return fmt.Errorf("rollback to savepoint %s: %w", c.name, err)
	}
	// Releasing after rollback discards the savepoint itself.
	if _, err := c.tx.tx.Exec("RELEASE SAVEPOINT " + c.name); err != nil {
		return fmt.Errorf("release savepoint %s after rollback: %w", c.name, err)
	}
	return nil
}
