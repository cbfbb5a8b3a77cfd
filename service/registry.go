package service

import (
	"sync"

	"github.com/jaller94/andstatus/connector"
)

// AccountRegistry maps account names to their protocol adapters. It
// implements ConnectionSupplier for the executor.
type AccountRegistry struct {
	mu          sync.Mutex
	connections map[string]connector.Connection
}

func NewAccountRegistry() *AccountRegistry {
	return &AccountRegistry{connections: make(map[string]connector.Connection)}
}

func (r *AccountRegistry) Register(accountName string, conn connector.Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connections[accountName] = conn
}

func (r *AccountRegistry) ConnectionFor(accountName string) (connector.Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn, ok := r.connections[accountName]
	if !ok {
		return nil, connector.ErrBadRequest("unknown account %q", accountName)
	}
	return conn, nil
}

func (r *AccountRegistry) AccountNames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.connections))
	for name := range r.connections {
		names = append(names, name)
	}
	return names
}
