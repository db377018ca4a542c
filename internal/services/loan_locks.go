package services

import "sync"

// loanLocks serializes mutations of one loan inside this process. The loan row lock
// covers other processes.
type loanLocks struct {
	m sync.Map
}

func newLoanLocks() *loanLocks {
	return &loanLocks{}
}

// lock blocks until the loan is free and returns the unlock func
func (l *loanLocks) lock(loanID uint) func() {
	v, _ := l.m.LoadOrStore(loanID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// forget drops the mutex of a deleted loan. Callers still waiting on it find no loan row.
func (l *loanLocks) forget(loanID uint) {
	l.m.Delete(loanID)
}

