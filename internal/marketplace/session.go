package marketplace

import (
	"context"
	"sync"
)

// Session binds a Client to the connected account. It is the only state that lives
// across workflows, and it changes only when a new Session replaces it.
type Session struct {
	client  Client
	account string

	mu           sync.Mutex
	ownerChecked bool
	isOwner      bool
}

// NewSession validates account and binds it to client.
func NewSession(client Client, account string) (*Session, error) {
	addr, err := ParseAddress(account)
	if err != nil {
		return nil, err
	}
	return &Session{client: client, account: addr}, nil
}

func (s *Session) Account() string { return s.account }

func (s *Session) Client() Client { return s.client }

// IsMarketplaceOwner asks the client once per session. A failed lookup is not
// cached so the next call asks again.
func (s *Session) IsMarketplaceOwner(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ownerChecked {
		return s.isOwner, nil
	}
	ok, err := s.client.IsMarketplaceOwner(ctx, s.account)
	if err != nil {
		return false, readFailure("check marketplace owner", err)
	}
	s.ownerChecked = true
	s.isOwner = ok
	return ok, nil
}
