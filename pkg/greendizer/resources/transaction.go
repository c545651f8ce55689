package resources

import (
	"context"
	"time"

	"github.com/greendizer/client-go/pkg/greendizer/dal"
	"github.com/greendizer/client-go/pkg/greendizer/errors"
	"github.com/greendizer/client-go/pkg/greendizer/fields"
	"github.com/shopspring/decimal"
)

// Transaction types and statuses as they travel on the wire.
const (
	TransactionTypePayment    string = "payment"
	TransactionTypeWithdrawal string = "withdrawal"
	TransactionTypeUpload     string = "upload"

	TransactionStatusFailed    string = "failed"
	TransactionStatusPending   string = "pending"
	TransactionStatusCanceled  string = "canceled"
	TransactionStatusProcessed string = "processed"
)

// Transaction is a money movement on a balance.
type Transaction struct {
	*dal.Resource
}

func NewTransaction(session dal.Session, balanceURI string, id string) *Transaction {
	uri := balanceURI + "transactions/" + id + "/"

	return &Transaction{
		Resource: dal.NewResource(session, id, func() string { return uri }),
	}
}

func (t *Transaction) Status(ctx context.Context) (string, error) {
	return TextAttribute(ctx, t.Resource, "status")
}

func (t *Transaction) Type(ctx context.Context) (string, error) {
	return TextAttribute(ctx, t.Resource, "type")
}

func (t *Transaction) Amount(ctx context.Context) (decimal.Decimal, error) {
	return AmountAttribute(ctx, t.Resource, "amount")
}

// ETA estimates when the transaction will settle.
func (t *Transaction) ETA(ctx context.Context) (time.Time, error) {
	return t.DateAttribute(ctx, "eta")
}

// Rank is the position in the processing queue, defined only while the
// transaction is pending.
func (t *Transaction) Rank(ctx context.Context) (int, error) {
	if err := t.requirePending(ctx); err != nil {
		return 0, err
	}

	return IntAttribute(ctx, t.Resource, "rank")
}

// SetRank stages a move in the processing queue. Update commits it.
func (t *Transaction) SetRank(ctx context.Context, rank int) error {
	if err := t.requirePending(ctx); err != nil {
		return err
	}

	t.RegisterUpdate("rank", rank)
	return nil
}

func (t *Transaction) requirePending(ctx context.Context) error {
	status, err := t.Status(ctx)
	if err != nil {
		return err
	}

	if status != TransactionStatusPending {
		return errors.NewValidationError("the rank only exists while a transaction is pending")
	}

	return nil
}

// InvoiceURIs lists the invoices a payment transaction settles, empty for
// the other transaction types.
func (t *Transaction) InvoiceURIs(ctx context.Context) ([]string, error) {
	kind, err := t.Type(ctx)
	if err != nil {
		return nil, err
	}

	if kind != TransactionTypePayment {
		return nil, nil
	}

	return TextListAttribute(ctx, t.Resource, "invoices")
}

// TransactionNode gives access to the movements of one balance.
type TransactionNode struct {
	node *dal.Node[*Transaction]
}

func NewTransactionNode(session dal.Session, balance *Balance) *TransactionNode {
	return &TransactionNode{
		node: dal.NewNode(session, balance.URI()+"transactions/", func(id string) *Transaction {
			return NewTransaction(session, balance.URI(), id)
		}),
	}
}

func (n *TransactionNode) Get(id string) *Transaction { return n.node.Get(id) }

func (n *TransactionNode) All() *dal.Collection[*Transaction] { return n.node.All() }

func (n *TransactionNode) Search(query string) *dal.Collection[*Transaction] {
	return n.node.Search(query)
}

// Pay settles the given invoices from the parent balance.
func (n *TransactionNode) Pay(ctx context.Context, invoiceURIs []string) (*Transaction, error) {
	if len(invoiceURIs) == 0 {
		return nil, errors.NewValidationError("a payment transaction needs at least one invoice")
	}

	return n.node.Create(ctx, fields.New(
		fields.Text("type", TransactionTypePayment),
		fields.TextList("invoices", invoiceURIs),
	))
}

// Withdraw moves money out of the parent balance.
func (n *TransactionNode) Withdraw(ctx context.Context, amount decimal.Decimal) (*Transaction, error) {
	if !amount.IsPositive() {
		return nil, errors.NewValidationError("a withdrawal amount must be positive")
	}

	return n.node.Create(ctx, fields.New(
		fields.Text("type", TransactionTypeWithdrawal),
		fields.Amount("amount", amount),
	))
}
