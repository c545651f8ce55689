package resources

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/greendizer/client-go/pkg/greendizer/dal"
	"github.com/greendizer/client-go/pkg/greendizer/errors"
	"github.com/shopspring/decimal"
)

// Invoices move between three locations. Read, flagged, paid and canceled
// are independent flags.
const (
	LocationInbox    int = 0
	LocationArchived int = 1
	LocationTrashed  int = 2
)

// Party identifies one side of an invoice as denormalized into its
// representation.
type Party struct {
	Name     string
	Email    string
	URI      string
	Address  Address
	Delivery Address
}

func partyFrom(fields map[string]any) Party {
	text := func(name string) string {
		value, _ := fields[name].(string)
		return value
	}
	address := func(name string) Address {
		nested, _ := fields[name].(map[string]any)
		return addressFrom(nested)
	}

	return Party{
		Name:     text("name"),
		Email:    text("email"),
		URI:      text("uri"),
		Address:  address("address"),
		Delivery: address("delivery"),
	}
}

// Invoice lives under an email address, on the seller side the address it
// was sent from and on the buyer side the address it was sent to.
type Invoice struct {
	*dal.Resource

	session  dal.Session
	payments *PaymentNode
}

func NewInvoice(session dal.Session, emailURI string, id string) *Invoice {
	uri := emailURI + "invoices/" + id + "/"

	invoice := &Invoice{
		Resource: dal.NewResource(session, id, func() string { return uri }),
		session:  session,
	}
	invoice.payments = NewPaymentNode(session, invoice)

	return invoice
}

func (i *Invoice) Payments() *PaymentNode { return i.payments }

func (i *Invoice) Name(ctx context.Context) (string, error) {
	return TextAttribute(ctx, i.Resource, "name")
}

func (i *Invoice) Description(ctx context.Context) (string, error) {
	return optionalText(ctx, i.Resource, "description")
}

// Body is the XMLi document the invoice was built from.
func (i *Invoice) Body(ctx context.Context) (string, error) {
	return TextAttribute(ctx, i.Resource, "body")
}

func (i *Invoice) Currency(ctx context.Context) (string, error) {
	return TextAttribute(ctx, i.Resource, "currency")
}

func (i *Invoice) Total(ctx context.Context) (decimal.Decimal, error) {
	return AmountAttribute(ctx, i.Resource, "total")
}

func (i *Invoice) Date(ctx context.Context) (time.Time, error) {
	return i.DateAttribute(ctx, "date")
}

func (i *Invoice) DueDate(ctx context.Context) (time.Time, error) {
	return i.DateAttribute(ctx, "dueDate")
}

// SecretKey authenticates anonymous viewers of the hosted invoice page.
func (i *Invoice) SecretKey(ctx context.Context) (string, error) {
	return TextAttribute(ctx, i.Resource, "secretKey")
}

// CustomID is the identifier the issuer gave the invoice in its own books.
func (i *Invoice) CustomID(ctx context.Context) (string, error) {
	return optionalText(ctx, i.Resource, "customId")
}

func (i *Invoice) Buyer(ctx context.Context) (Party, error) {
	fields, err := MapAttribute(ctx, i.Resource, "buyer")
	if err != nil {
		return Party{}, err
	}

	return partyFrom(fields), nil
}

func (i *Invoice) Seller(ctx context.Context) (Party, error) {
	fields, err := MapAttribute(ctx, i.Resource, "seller")
	if err != nil {
		return Party{}, err
	}

	return partyFrom(fields), nil
}

func (i *Invoice) Location(ctx context.Context) (int, error) {
	return IntAttribute(ctx, i.Resource, "location")
}

// SetLocation stages a move to one of the Location values. Update commits it.
func (i *Invoice) SetLocation(location int) {
	i.RegisterUpdate("location", location)
}

func (i *Invoice) Read(ctx context.Context) (bool, error) {
	return BoolAttribute(ctx, i.Resource, "read")
}

func (i *Invoice) SetRead(read bool) {
	i.RegisterUpdate("read", read)
}

func (i *Invoice) Flagged(ctx context.Context) (bool, error) {
	return BoolAttribute(ctx, i.Resource, "flagged")
}

func (i *Invoice) SetFlagged(flagged bool) {
	i.RegisterUpdate("flagged", flagged)
}

func (i *Invoice) Paid(ctx context.Context) (bool, error) {
	return BoolAttribute(ctx, i.Resource, "paid")
}

func (i *Invoice) SetPaid(paid bool) {
	i.RegisterUpdate("paid", paid)
}

func (i *Invoice) Canceled(ctx context.Context) (bool, error) {
	return BoolAttribute(ctx, i.Resource, "canceled")
}

// Cancel voids the invoice and commits right away.
func (i *Invoice) Cancel(ctx context.Context) error {
	i.RegisterUpdate("canceled", true)
	return i.Update(ctx)
}

// Remaining is the total minus the payments settled so far, zero once the
// invoice is marked paid.
func (i *Invoice) Remaining(ctx context.Context) (decimal.Decimal, error) {
	paid, err := i.Paid(ctx)
	if err != nil {
		return decimal.Zero, err
	}

	if paid {
		return decimal.Zero, nil
	}

	remaining, err := i.Total(ctx)
	if err != nil {
		return decimal.Zero, err
	}

	all := i.payments.All()
	if err := all.Populate(ctx, 0, 0); err != nil {
		return decimal.Zero, err
	}

	eachErr := all.Each(ctx, func(payment *Payment) bool {
		var amount decimal.Decimal
		if amount, err = payment.Amount(ctx); err != nil {
			return false
		}
		remaining = remaining.Sub(amount)
		return true
	})
	if eachErr != nil {
		return decimal.Zero, eachErr
	}
	if err != nil {
		return decimal.Zero, err
	}

	return remaining, nil
}

// PDFLink asks for the PDF rendition and returns the link the API
// redirects to, without following it.
func (i *Invoice) PDFLink(ctx context.Context, locale string) (string, error) {
	if locale == "" {
		locale = "en"
	}

	headers := map[string][]string{
		"Accept":          {"application/pdf"},
		"Accept-Language": {locale},
	}

	response, body, err := i.session.Send(ctx, http.MethodGet, i.URI(), nil, headers)
	if err != nil {
		return "", err
	}

	if response.StatusCode != http.StatusFound {
		return "", errors.NewTransportError(response.StatusCode, body)
	}

	return response.Header.Get("Location"), nil
}

// InvoiceNode gives access to the invoices of one email address.
type InvoiceNode struct {
	node *dal.Node[*Invoice]
}

func NewInvoiceNode(session dal.Session, email *Email) *InvoiceNode {
	return &InvoiceNode{
		node: dal.NewNode(session, email.URI()+"invoices/", func(id string) *Invoice {
			return NewInvoice(session, email.URI(), id)
		}),
	}
}

func (n *InvoiceNode) URI() string { return n.node.URI() }

// Get hands out a proxy without touching the network.
func (n *InvoiceNode) Get(id string) *Invoice { return n.node.Get(id) }

func (n *InvoiceNode) All() *dal.Collection[*Invoice] { return n.node.All() }

func (n *InvoiceNode) Search(query string) *dal.Collection[*Invoice] {
	return n.node.Search(query)
}

func (n *InvoiceNode) Archived() *dal.Collection[*Invoice] {
	return n.Search("location==1")
}

func (n *InvoiceNode) Trashed() *dal.Collection[*Invoice] {
	return n.Search("location==2")
}

func (n *InvoiceNode) Unread() *dal.Collection[*Invoice] {
	return n.Search("read==0|location<<2")
}

func (n *InvoiceNode) Flagged() *dal.Collection[*Invoice] {
	return n.Search("flagged==1|location<<2")
}

// Due selects open invoices, unpaid and not canceled, inbox or archive.
func (n *InvoiceNode) Due() *dal.Collection[*Invoice] {
	return n.Search("paid==0|location<<2|canceled==0")
}

// Overdue narrows Due to invoices whose due date has gone by.
func (n *InvoiceNode) Overdue() *dal.Collection[*Invoice] {
	today := time.Now().UTC().Format("2006-01-02")
	return n.Search("paid==0|location<<2|canceled==0|dueDate<<" + today)
}

// GetByCustomID finds the invoice carrying the identifier the issuer gave
// it, as opposed to the one the API assigned.
func (n *InvoiceNode) GetByCustomID(ctx context.Context, customID string) (*Invoice, error) {
	if strings.TrimSpace(customID) == "" {
		return nil, errors.NewValidationError("a custom id is required to look up an invoice")
	}

	return n.Search("customId==" + customID).First(ctx)
}
