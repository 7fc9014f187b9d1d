package nearblocks

// CauseMint is the cause of a token mint in the transactions feed.
const CauseMint = "MINT"

// Txn is one entry of the fungible-token transactions feed.
// The feed is kept as a raw map so every field reaches serialization untouched.
type Txn map[string]any

// Cause returns the txn cause, e.g. "MINT".
func (t Txn) Cause() string {
	s, _ := t["cause"].(string)
	return s
}

// Hash returns the transaction hash.
func (t Txn) Hash() string {
	s, _ := t["transaction_hash"].(string)
	return s
}

// AffectedAccountID returns the account credited by the transfer.
func (t Txn) AffectedAccountID() string {
	s, _ := t["affected_account_id"].(string)
	return s
}

// Unattributed reports whether involved_account_id is null or missing.
// Mints credited by the contract itself carry no counterparty.
func (t Txn) Unattributed() bool {
	v, ok := t["involved_account_id"]
	return !ok || v == nil
}

// IsMintCandidate reports whether t is an unattributed mint.
func (t Txn) IsMintCandidate() bool {
	return t.Cause() == CauseMint && t.Unattributed()
}

// TxnDetail is the body of the transaction-detail feed.
type TxnDetail struct {
	Txns []DetailTxn `json:"txns"`
}

// DetailTxn is a transaction in the detail feed.
type DetailTxn struct {
	Receipts []Receipt `json:"receipts"`
}

// Receipt carries the fungible-token transfers of one receipt.
type Receipt struct {
	FTs []map[string]any `json:"fts"`
}

// FirstFT returns the first fungible-token entry of the first receipt of the first txn.
func (d *TxnDetail) FirstFT() (map[string]any, bool) {
	if d == nil || len(d.Txns) == 0 {
		return nil, false
	}
	receipts := d.Txns[0].Receipts
	if len(receipts) == 0 || len(receipts[0].FTs) == 0 {
		return nil, false
	}
	return receipts[0].FTs[0], true
}

// FT is one token balance from the inventory feed. Amount is a string or json.Number.
type FT struct {
	Contract string `json:"contract"`
	Amount   any    `json:"amount"`
}

type txnsResponse struct {
	Txns []Txn `json:"txns"`
}

type accountResponse struct {
	Account []struct {
		Amount any `json:"amount"`
	} `json:"account"`
}

type inventoryResponse struct {
	Inventory struct {
		FTs []FT `json:"fts"`
	} `json:"inventory"`
}
