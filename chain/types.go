package chain

import (
	"encoding/json"
	"fmt"
)

const (
	entryFunctionPayloadType = "entry_function_payload"
	ed25519SignatureType     = "ed25519_signature"
	pendingTransactionType   = "pending_transaction"
)

// EntryFunctionPayload calls a public entry function, e.g. 0xabc::secure_voting::commit_vote.
type EntryFunctionPayload struct {
	Type          string   `json:"type"`
	Function      string   `json:"function"`
	TypeArguments []string `json:"type_arguments"`
	Arguments     []any    `json:"arguments"`
}

// ViewRequest calls a #[view] function.
type ViewRequest struct {
	Function      string   `json:"function"`
	TypeArguments []string `json:"type_arguments"`
	Arguments     []any    `json:"arguments"`
}

// RawTransaction is an unsigned user transaction in the node's JSON representation.
type RawTransaction struct {
	Sender                  string               `json:"sender"`
	SequenceNumber          U64                  `json:"sequence_number"`
	MaxGasAmount            U64                  `json:"max_gas_amount"`
	GasUnitPrice            U64                  `json:"gas_unit_price"`
	ExpirationTimestampSecs U64                  `json:"expiration_timestamp_secs"`
	Payload                 EntryFunctionPayload `json:"payload"`
}

type Signature struct {
	Type      string `json:"type"`
	PublicKey string `json:"public_key"`
	Signature string `json:"signature"`
}

type SignedTransaction struct {
	RawTransaction
	Signature Signature `json:"signature"`
}

type PendingTransaction struct {
	Hash string `json:"hash"`
}

type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Transaction is a transaction looked up by hash. Success and VMStatus are only
// meaningful once Type is no longer pending_transaction.
type Transaction struct {
	Type      string  `json:"type"`
	Hash      string  `json:"hash"`
	Version   U64     `json:"version"`
	Success   bool    `json:"success"`
	VMStatus  string  `json:"vm_status"`
	Sender    string  `json:"sender"`
	GasUsed   U64     `json:"gas_used"`
	Timestamp U64     `json:"timestamp"`
	Events    []Event `json:"events"`
}

func (t *Transaction) Pending() bool {
	return t.Type == pendingTransactionType
}

type LedgerInfo struct {
	ChainID         uint8 `json:"chain_id"`
	Epoch           U64   `json:"epoch"`
	LedgerVersion   U64   `json:"ledger_version"`
	BlockHeight     U64   `json:"block_height"`
	LedgerTimestamp U64   `json:"ledger_timestamp"`
}

type AccountInfo struct {
	SequenceNumber    U64    `json:"sequence_number"`
	AuthenticationKey string `json:"authentication_key"`
}

// U64 decodes Move u64 values, which the node renders as decimal strings,
// and renders them back the same way.
type U64 uint64

func (u U64) MarshalJSON() ([]byte, error) {
	return json.Marshal(fmt.Sprintf("%d", uint64(u)))
}

func (u *U64) UnmarshalJSON(data []byte) error {
	v, err := DecodeU64(data)
	if err != nil {
		return err
	}
	*u = U64(v)
	return nil
}
