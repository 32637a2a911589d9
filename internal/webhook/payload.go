// Package webhook receives Chainhook event deliveries. Chainhook pushes
// confirmed blocks the moment they land, giving the projections their
// low-latency path; the poll loop in ingest covers anything dropped.
package webhook

import (
	"bytes"
	"encoding/json"

	"stackspad/internal/chain"
)

// Payload is the top-level Chainhook delivery body.
type Payload struct {
	Apply    []Block `json:"apply"`
	Rollback []Block `json:"rollback"`
}

// Block is one applied (or rolled back) block in a delivery.
type Block struct {
	BlockIdentifier BlockIdentifier `json:"block_identifier"`
	Timestamp       int64           `json:"timestamp"`
	Transactions    []Tx            `json:"transactions"`
}

// BlockIdentifier names a block by height and hash.
type BlockIdentifier struct {
	Index int64  `json:"index"`
	Hash  string `json:"hash"`
}

// Tx is one transaction inside a Chainhook block.
type Tx struct {
	TransactionIdentifier TxIdentifier `json:"transaction_identifier"`
	Status                string       `json:"status"`
	Metadata              TxMetadata   `json:"metadata"`
}

// TxIdentifier names a transaction by hash.
type TxIdentifier struct {
	Hash string `json:"hash"`
}

// TxMetadata carries the execution details of a transaction.
type TxMetadata struct {
	Success bool      `json:"success"`
	Sender  string    `json:"sender"`
	Kind    TxKind    `json:"kind"`
	Receipt TxReceipt `json:"receipt"`
}

// TxKind identifies the transaction sort; only contract calls matter here.
type TxKind struct {
	ContractCall *KindContractCall `json:"ContractCall"`
}

// KindContractCall describes the invoked function.
type KindContractCall struct {
	ContractIdentifier string `json:"contract_identifier"`
	FunctionName       string `json:"function_name"`
}

// TxReceipt holds the events emitted during execution.
type TxReceipt struct {
	Events []ReceiptEvent `json:"events"`
}

// ReceiptEvent is one emitted event. Print events arrive with type
// SmartContractEvent and their tuple already decoded to JSON.
type ReceiptEvent struct {
	Type string           `json:"type"`
	Data ReceiptEventData `json:"data"`
}

// ReceiptEventData carries the decoded print payload.
type ReceiptEventData struct {
	ContractIdentifier string       `json:"contract_identifier"`
	Topic              string       `json:"topic"`
	Value              PayloadValue `json:"value"`
}

// PayloadValue decodes a print payload keeping numbers as json.Number.
// Plain interface{} decoding would go through float64 and corrupt base
// unit amounts above 2^53.
type PayloadValue map[string]interface{}

// UnmarshalJSON implements json.Unmarshaler.
func (v *PayloadValue) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	m := make(map[string]interface{})
	if err := dec.Decode(&m); err != nil {
		return err
	}
	*v = m
	return nil
}

// Transactions flattens the applied blocks of a delivery into normalized
// chain transactions. Statuses are mapped so a successful Chainhook tx
// matches what the poll feed reports. Only the one delivery format
// differs; everything downstream is shared with the poll path.
func (p *Payload) Transactions() []chain.Transaction {
	var txs []chain.Transaction
	for _, block := range p.Apply {
		for _, tx := range block.Transactions {
			txs = append(txs, tx.normalize(block))
		}
	}
	return txs
}

func (t *Tx) normalize(block Block) chain.Transaction {
	status := t.Status
	if status == "" && t.Metadata.Success {
		status = chain.StatusSuccess
	}

	out := chain.Transaction{
		TxID:        t.TransactionIdentifier.Hash,
		Status:      status,
		Sender:      t.Metadata.Sender,
		BlockHeight: block.BlockIdentifier.Index,
		BlockTime:   block.Timestamp,
	}
	if cc := t.Metadata.Kind.ContractCall; cc != nil {
		out.Call = &chain.ContractCall{
			ContractID:   cc.ContractIdentifier,
			FunctionName: cc.FunctionName,
		}
	}
	for _, ev := range t.Metadata.Receipt.Events {
		if ev.Type != "SmartContractEvent" || ev.Data.Value == nil {
			continue
		}
		out.Prints = append(out.Prints, chain.PrintEvent{
			Contract: ev.Data.ContractIdentifier,
			Payload:  chain.Payload(ev.Data.Value),
		})
	}
	return out
}
