package ledger

import (
	"context"
	"fmt"
	"sync"

	"order_payment/internal/model"
)

// Entry records one transfer the memory ledger accepted.
type Entry struct {
	ContractID string // empty for native
	From       string
	To         string
	Amount     model.Amount
	Memo       string
}

// Memory is an in-process stand-in for the external ledger, used in dev mode
// and tests. Transfers debit the service account.
type Memory struct {
	mu      sync.Mutex
	account string
	native  map[string]model.Amount
	tokens  map[string]map[string]model.Amount
	failing map[string]string
	lossy   map[string]bool
	entries []Entry
	seed    model.Amount // service account balance of each new token book

	receipts map[string]Receipt
}

func NewMemory(account string) *Memory {
	return &Memory{
		account: account,
		native:  map[string]model.Amount{},
		tokens:  map[string]map[string]model.Amount{},
		failing: map[string]string{},
		lossy:   map[string]bool{},

		receipts: map[string]Receipt{},
	}
}

// Account is the service account transfers are paid from.
func (m *Memory) Account() string { return m.account }

// Fund credits the service account natively and in every token book, including
// books opened later.
func (m *Memory) Fund(amount model.Amount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seed = amount
	sum, err := m.native[m.account].Add(amount)
	if err != nil {
		return err
	}
	m.native[m.account] = sum
	for _, b := range m.tokens {
		if b[m.account], err = b[m.account].Add(amount); err != nil {
			return err
		}
	}
	return nil
}

func (m *Memory) Credit(accountID string, amount model.Amount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sum, err := m.native[accountID].Add(amount)
	if err != nil {
		return err
	}
	m.native[accountID] = sum
	return nil
}

func (m *Memory) CreditToken(contractID, accountID string, amount model.Amount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	book := m.book(contractID)
	sum, err := book[accountID].Add(amount)
	if err != nil {
		return err
	}
	book[accountID] = sum
	return nil
}

func (m *Memory) Balance(accountID string) model.Amount {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.native[accountID]
}

func (m *Memory) TokenBalance(contractID, accountID string) model.Amount {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.tokens[contractID]
	if !ok && accountID == m.account {
		return m.seed
	}
	return b[accountID]
}

// FailFor makes every transfer to receiverID fail until Heal is called.
func (m *Memory) FailFor(receiverID, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failing[receiverID] = reason
}

func (m *Memory) Heal(receiverID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.failing, receiverID)
	delete(m.lossy, receiverID)
}

// LoseReplies executes transfers to receiverID but answers ErrOutcomeUnknown,
// like a gateway whose connection drops after the ledger settled.
func (m *Memory) LoseReplies(receiverID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lossy[receiverID] = true
}

func (m *Memory) Lookup(ctx context.Context, transferID string) (Receipt, error) {
	if err := ctx.Err(); err != nil {
		return Receipt{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.receipts[transferID], nil
}

// Entries returns a copy of the accepted transfers in order.
func (m *Memory) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

func (m *Memory) TransferNative(ctx context.Context, t NativeTransfer) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrOutcomeUnknown, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if rc, ok := m.receipts[t.TransferID]; ok && t.TransferID != "" {
		return m.replay(t.ReceiverID, rc)
	}
	err := m.failure(t.ReceiverID)
	if err == nil {
		err = move(m.native, m.account, t.ReceiverID, t.Amount)
	}
	if err == nil {
		m.entries = append(m.entries, Entry{From: m.account, To: t.ReceiverID, Amount: t.Amount})
	}
	return m.settle(t.TransferID, t.ReceiverID, err)
}

func (m *Memory) FtTransfer(ctx context.Context, t FtTransfer) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrOutcomeUnknown, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if rc, ok := m.receipts[t.TransferID]; ok && t.TransferID != "" {
		return m.replay(t.ReceiverID, rc)
	}
	err := m.failure(t.ReceiverID)
	// the token standard requires exactly one unit attached
	if err == nil && !t.AttachedDeposit.Equal(model.NewAmount(1)) {
		err = fmt.Errorf("%w: requires attached deposit of exactly 1", ErrRejected)
	}
	if err == nil {
		err = move(m.book(t.ContractID), m.account, t.ReceiverID, t.Amount)
	}
	if err == nil {
		m.entries = append(m.entries, Entry{
			ContractID: t.ContractID, From: m.account, To: t.ReceiverID, Amount: t.Amount, Memo: t.Memo,
		})
	}
	return m.settle(t.TransferID, t.ReceiverID, err)
}

func (m *Memory) failure(receiverID string) error {
	if reason, ok := m.failing[receiverID]; ok {
		return fmt.Errorf("%w: %s", ErrRejected, reason)
	}
	return nil
}

// settle records the receipt of a settled transfer and shapes the reply.
func (m *Memory) settle(transferID, receiverID string, err error) error {
	if transferID != "" {
		switch {
		case err == nil:
			m.receipts[transferID] = Receipt{Status: ReceiptSucceeded}
		case Definitive(err):
			m.receipts[transferID] = Receipt{Status: ReceiptRejected, Reason: err.Error()}
		}
	}
	if m.lossy[receiverID] {
		return fmt.Errorf("%w: reply to %s lost", ErrOutcomeUnknown, receiverID)
	}
	return err
}

// replay answers a repeated transfer id with the recorded outcome.
func (m *Memory) replay(receiverID string, rc Receipt) error {
	if m.lossy[receiverID] {
		return fmt.Errorf("%w: reply to %s lost", ErrOutcomeUnknown, receiverID)
	}
	if rc.Status == ReceiptRejected {
		return fmt.Errorf("%w: %s", ErrRejected, rc.Reason)
	}
	return nil
}

func (m *Memory) book(contractID string) map[string]model.Amount {
	b, ok := m.tokens[contractID]
	if !ok {
		b = map[string]model.Amount{}
		if !m.seed.IsZero() {
			b[m.account] = m.seed
		}
		m.tokens[contractID] = b
	}
	return b
}

func move(book map[string]model.Amount, from, to string, amount model.Amount) error {
	left, err := book[from].Sub(amount)
	if err != nil {
		return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientBalance, from, book[from], amount)
	}
	credited, err := book[to].Add(amount)
	if err != nil {
		return err
	}
	book[from] = left
	book[to] = credited
	return nil
}
