package wallet

import (
	"errors"
	"sync"

	"github.com/safwentrabelsi/voce/chain"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("module", "wallet")

var ErrNotConnected = errors.New("wallet not connected")

// Context holds the connected account shared by every contract service.
type Context struct {
	mu      sync.RWMutex
	account *Account
}

func NewContext() *Context {
	return &Context{}
}

func (c *Context) Connect(account *Account) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.account = account
	log.Infof("Connected account %s", account.Address())
}

func (c *Context) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.account != nil {
		log.Infof("Disconnected account %s", c.account.Address())
	}
	c.account = nil
}

func (c *Context) Account() (*Account, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.account == nil {
		return nil, ErrNotConnected
	}
	return c.account, nil
}

// Signer implements chain.SignerProvider.
func (c *Context) Signer() (chain.Signer, error) {
	account, err := c.Account()
	if err != nil {
		return nil, err
	}
	return account, nil
}

// Address returns the connected address, or false when disconnected.
func (c *Context) Address() (string, bool) {
	account, err := c.Account()
	if err != nil {
		return "", false
	}
	return account.Address(), true
}

func (c *Context) IsConnected() bool {
	_, ok := c.Address()
	return ok
}
