// Package buyers roots the resource tree of an authenticated buyer
// account at buyers/me/.
package buyers

import (
	"context"

	"github.com/greendizer/client-go/pkg/greendizer/currencies"
	"github.com/greendizer/client-go/pkg/greendizer/dal"
	"github.com/greendizer/client-go/pkg/greendizer/resources"
)

const userRoot string = "buyers/me/"

type Option func(*treeConfig)

type treeConfig struct {
	table *currencies.Table
}

// WithCurrencies swaps the table balance lookups validate codes against.
func WithCurrencies(table *currencies.Table) Option {
	return func(cfg *treeConfig) {
		cfg.table = table
	}
}

// Buyer is the account root. All reads stay local until an attribute is
// resolved or a collection is populated.
type Buyer struct {
	*resources.User

	emails  *EmailNode
	threads *resources.ThreadNode
	sellers *SellerNode
}

func New(session dal.Session, options ...Option) *Buyer {
	cfg := treeConfig{}
	for _, option := range options {
		option(&cfg)
	}

	buyer := &Buyer{
		User: resources.NewUser(session, userRoot, cfg.table),
	}
	buyer.emails = newEmailNode(session)
	buyer.threads = resources.NewThreadNode(session, userRoot)
	buyer.sellers = newSellerNode(session)

	return buyer
}

func (b *Buyer) Emails() *EmailNode             { return b.emails }
func (b *Buyer) Threads() *resources.ThreadNode { return b.threads }
func (b *Buyer) Sellers() *SellerNode           { return b.sellers }

// InvoiceFromURI resolves a URI found in a representation, a payment
// transaction for instance, into an invoice proxy.
func (b *Buyer) InvoiceFromURI(uri string) (*resources.Invoice, error) {
	emailID, invoiceID, err := resources.ParseInvoiceURI(userRoot, uri)
	if err != nil {
		return nil, err
	}

	return b.emails.Get(emailID).Invoices().Get(invoiceID), nil
}

// TransactionFromURI resolves a URI into a transaction proxy on the
// matching balance.
func (b *Buyer) TransactionFromURI(uri string) (*resources.Transaction, error) {
	currency, id, err := resources.ParseTransactionURI(userRoot, uri)
	if err != nil {
		return nil, err
	}

	balance, err := b.Balances().Get(currency)
	if err != nil {
		return nil, err
	}

	return balance.Transactions().Get(id), nil
}

// EmailNode gives access to the addresses invoices come in through.
type EmailNode struct {
	node *dal.Node[*Email]
}

func newEmailNode(session dal.Session) *EmailNode {
	return &EmailNode{
		node: dal.NewNode(session, userRoot+"emails/", func(id string) *Email {
			return newEmail(session, id)
		}),
	}
}

// Get accepts either a raw address or an already hashed identifier.
func (n *EmailNode) Get(identifier string) *Email { return n.node.Get(identifier) }

func (n *EmailNode) All() *dal.Collection[*Email] { return n.node.All() }

// Email is an address of the buyer with the invoices received on it.
type Email struct {
	*resources.Email

	invoices *resources.InvoiceNode
}

func newEmail(session dal.Session, identifier string) *Email {
	email := &Email{
		Email: resources.NewEmail(session, userRoot, identifier),
	}
	email.invoices = resources.NewInvoiceNode(session, email.Email)

	return email
}

func (e *Email) Invoices() *resources.InvoiceNode { return e.invoices }

// SellerNode gives access to the per supplier analytics.
type SellerNode struct {
	node *dal.Node[*Seller]
}

func newSellerNode(session dal.Session) *SellerNode {
	return &SellerNode{
		node: dal.NewNode(session, userRoot+"sellers/", func(id string) *Seller {
			return newSeller(session, id)
		}),
	}
}

func (n *SellerNode) Get(id string) *Seller { return n.node.Get(id) }

func (n *SellerNode) All() *dal.Collection[*Seller] { return n.node.All() }

func (n *SellerNode) Search(query string) *dal.Collection[*Seller] {
	return n.node.Search(query)
}

// Seller digests the exchanges with one supplier, sliced by day and hour.
type Seller struct {
	*resources.Analytics

	days  *resources.TimespanDigestNode
	hours *resources.TimespanDigestNode
}

func newSeller(session dal.Session, id string) *Seller {
	uri := userRoot + "sellers/" + id + "/"

	seller := &Seller{
		Analytics: resources.NewAnalytics(session, uri, id),
	}
	seller.days = resources.NewTimespanDigestNode(session, uri+"days/")
	seller.hours = resources.NewTimespanDigestNode(session, uri+"hours/")

	return seller
}

func (s *Seller) Days() *resources.TimespanDigestNode  { return s.days }
func (s *Seller) Hours() *resources.TimespanDigestNode { return s.hours }

func (s *Seller) Address(ctx context.Context) (resources.Address, error) {
	return resources.AddressAttribute(ctx, s.Resource, "address")
}
