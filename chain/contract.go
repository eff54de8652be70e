package chain

import (
	"context"
	"encoding/json"
	"fmt"
)

// SignerProvider hands out the connected account.
type SignerProvider interface {
	Signer() (Signer, error)
}

// Contract binds a published Move module to the node and the connected wallet.
type Contract struct {
	node    NodeInterface
	wallet  SignerProvider
	address string
	module  string
}

func NewContract(node NodeInterface, wallet SignerProvider, address, module string) *Contract {
	return &Contract{
		node:    node,
		wallet:  wallet,
		address: address,
		module:  module,
	}
}

func (c *Contract) Function(name string) string {
	return FunctionID(c.address, c.module, name)
}

// Submit calls an entry function with the connected account and returns the committed transaction hash.
func (c *Contract) Submit(ctx context.Context, function string, args ...any) (string, error) {
	signer, err := c.wallet.Signer()
	if err != nil {
		return "", err
	}
	if args == nil {
		args = []any{}
	}

	tx, err := c.node.SignAndSubmit(ctx, signer, EntryFunctionPayload{
		Type:          entryFunctionPayloadType,
		Function:      c.Function(function),
		TypeArguments: []string{},
		Arguments:     args,
	})
	if err != nil {
		log.WithError(err).WithField("function", c.Function(function)).Error("Transaction failed")
		return "", fmt.Errorf("%s::%s: %w", c.module, function, err)
	}
	log.WithField("function", c.Function(function)).Infof("Transaction %s committed", tx.Hash)
	return tx.Hash, nil
}

// View calls a view function of the module.
func (c *Contract) View(ctx context.Context, function string, args ...any) ([]json.RawMessage, error) {
	if args == nil {
		args = []any{}
	}
	values, err := c.node.View(ctx, ViewRequest{
		Function:      c.Function(function),
		TypeArguments: []string{},
		Arguments:     args,
	})
	if err != nil {
		return nil, fmt.Errorf("%s::%s: %w", c.module, function, err)
	}
	return values, nil
}

// ViewOne calls a view function returning a single value.
func (c *Contract) ViewOne(ctx context.Context, function string, args ...any) (json.RawMessage, error) {
	values, err := c.View(ctx, function, args...)
	if err != nil {
		return nil, err
	}
	return First(values)
}
