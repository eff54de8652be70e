package chain

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/safwentrabelsi/voce/metrics"
)

// BuildTransaction fills sender, sequence number, gas and expiration around a payload.
func (c *Client) BuildTransaction(ctx context.Context, sender string, payload EntryFunctionPayload) (*RawTransaction, error) {
	account, err := c.GetAccount(ctx, sender)
	if err != nil {
		return nil, fmt.Errorf("error fetching account %s: %w", sender, err)
	}

	if payload.Type == "" {
		payload.Type = entryFunctionPayloadType
	}
	if payload.TypeArguments == nil {
		payload.TypeArguments = []string{}
	}
	if payload.Arguments == nil {
		payload.Arguments = []any{}
	}

	return &RawTransaction{
		Sender:                  sender,
		SequenceNumber:          account.SequenceNumber,
		MaxGasAmount:            U64(c.maxGasAmount),
		GasUnitPrice:            U64(c.gasUnitPrice),
		ExpirationTimestampSecs: U64(c.now().Add(c.expiration).Unix()),
		Payload:                 payload,
	}, nil
}

// EncodeSubmission asks the node for the message to sign for tx.
func (c *Client) EncodeSubmission(ctx context.Context, tx *RawTransaction) ([]byte, error) {
	body, err := c.executeRequest(ctx, http.MethodPost, "/v1/transactions/encode_submission", tx, http.StatusOK)
	if err != nil {
		return nil, fmt.Errorf("error encoding submission: %w", err)
	}

	var encoded string
	if err := json.Unmarshal(body, &encoded); err != nil {
		return nil, fmt.Errorf("error decoding signing message: %w", err)
	}
	msg, err := hex.DecodeString(strings.TrimPrefix(encoded, "0x"))
	if err != nil {
		return nil, fmt.Errorf("error decoding signing message: %w", err)
	}
	return msg, nil
}

func (c *Client) SignTransaction(ctx context.Context, signer Signer, tx *RawTransaction) (*SignedTransaction, error) {
	msg, err := c.EncodeSubmission(ctx, tx)
	if err != nil {
		return nil, err
	}
	return &SignedTransaction{
		RawTransaction: *tx,
		Signature: Signature{
			Type:      ed25519SignatureType,
			PublicKey: signer.PublicKeyHex(),
			Signature: "0x" + hex.EncodeToString(signer.Sign(msg)),
		},
	}, nil
}

func (c *Client) SubmitTransaction(ctx context.Context, tx *SignedTransaction) (*PendingTransaction, error) {
	body, err := c.executeRequest(ctx, http.MethodPost, "/v1/transactions", tx, http.StatusAccepted)
	if err != nil {
		return nil, fmt.Errorf("error submitting transaction: %w", err)
	}

	var pending PendingTransaction
	if err := json.Unmarshal(body, &pending); err != nil {
		return nil, fmt.Errorf("error decoding submitted transaction: %w", err)
	}
	return &pending, nil
}

// WaitForTransaction polls the node until the transaction leaves the mempool.
// A transaction the VM aborted is returned together with a *TxFailedError.
func (c *Client) WaitForTransaction(ctx context.Context, hash string) (*Transaction, error) {
	ctx, cancel := context.WithTimeout(ctx, c.waitTimeout)
	defer cancel()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		tx, err := c.GetTransactionByHash(ctx, hash)
		switch {
		case err == nil && !tx.Pending():
			if !tx.Success {
				return tx, &TxFailedError{Hash: hash, VMStatus: tx.VMStatus}
			}
			return tx, nil
		case err != nil && !isNotFound(err):
			if errors.Is(err, context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w %s", ErrWaitTimeout, hash)
			}
			return nil, err
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w %s", ErrWaitTimeout, hash)
			}
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// SignAndSubmit builds, signs and submits payload, then waits for it to commit.
func (c *Client) SignAndSubmit(ctx context.Context, signer Signer, payload EntryFunctionPayload) (*Transaction, error) {
	tx, err := c.signAndSubmit(ctx, signer, payload)
	if err != nil {
		metrics.TransactionFailedInc(payload.Function)
		return tx, err
	}
	metrics.TransactionSubmittedInc(payload.Function)
	return tx, nil
}

func (c *Client) signAndSubmit(ctx context.Context, signer Signer, payload EntryFunctionPayload) (*Transaction, error) {
	raw, err := c.BuildTransaction(ctx, signer.Address(), payload)
	if err != nil {
		return nil, err
	}

	signed, err := c.SignTransaction(ctx, signer, raw)
	if err != nil {
		return nil, err
	}

	pending, err := c.SubmitTransaction(ctx, signed)
	if err != nil {
		return nil, err
	}
	log.WithField("function", payload.Function).Debugf("Submitted transaction %s", pending.Hash)

	return c.WaitForTransaction(ctx, pending.Hash)
}
