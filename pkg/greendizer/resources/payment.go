package resources

import (
	"context"
	"strings"
	"time"

	"github.com/greendizer/client-go/pkg/greendizer/dal"
	"github.com/greendizer/client-go/pkg/greendizer/errors"
	"github.com/greendizer/client-go/pkg/greendizer/fields"
	"github.com/shopspring/decimal"
)

// PaymentMethodGreendizer marks payments settled through a Greendizer
// balance rather than declared from outside.
const PaymentMethodGreendizer string = "greendizer"

// Payment records one settlement against an invoice.
type Payment struct {
	*dal.Resource
}

func NewPayment(session dal.Session, invoiceURI string, id string) *Payment {
	uri := invoiceURI + "payments/" + id + "/"

	return &Payment{
		Resource: dal.NewResource(session, id, func() string { return uri }),
	}
}

func (p *Payment) Date(ctx context.Context) (time.Time, error) {
	return p.DateAttribute(ctx, "date")
}

func (p *Payment) Amount(ctx context.Context) (decimal.Decimal, error) {
	return AmountAttribute(ctx, p.Resource, "amount")
}

func (p *Payment) Method(ctx context.Context) (string, error) {
	return TextAttribute(ctx, p.Resource, "method")
}

// Ref points at the balance transaction behind the payment. Only payments
// settled through Greendizer carry one.
func (p *Payment) Ref(ctx context.Context) (string, error) {
	return optionalText(ctx, p.Resource, "ref")
}

// PaymentNode records settlements against one invoice.
type PaymentNode struct {
	invoice *Invoice
	node    *dal.Node[*Payment]
}

func NewPaymentNode(session dal.Session, invoice *Invoice) *PaymentNode {
	return &PaymentNode{
		invoice: invoice,
		node: dal.NewNode(session, invoice.URI()+"payments/", func(id string) *Payment {
			return NewPayment(session, invoice.URI(), id)
		}),
	}
}

func (n *PaymentNode) Get(id string) *Payment { return n.node.Get(id) }

func (n *PaymentNode) All() *dal.Collection[*Payment] { return n.node.All() }

func (n *PaymentNode) Search(query string) *dal.Collection[*Payment] {
	return n.node.Search(query)
}

// Add declares a settlement. A zero amount stands for the full invoice
// total. Settling may flip the paid flag server side, so the invoice is
// reloaded before Add returns.
func (n *PaymentNode) Add(ctx context.Context, date time.Time, method string, amount decimal.Decimal) (*Payment, error) {
	if strings.TrimSpace(method) == "" {
		return nil, errors.NewValidationError("a payment needs a method")
	}

	if amount.IsZero() {
		total, err := n.invoice.Total(ctx)
		if err != nil {
			return nil, err
		}
		amount = total
	}

	if amount.IsNegative() {
		return nil, errors.NewValidationError("a payment amount cannot be negative")
	}

	payment, err := n.node.Create(ctx, fields.New(
		fields.Date("date", date),
		fields.Text("method", method),
		fields.Amount("amount", amount),
	))
	if err != nil {
		return nil, err
	}

	if err := n.invoice.Load(ctx); err != nil {
		return nil, err
	}

	return payment, nil
}
