// Package sellers roots the resource tree of an authenticated seller
// account at sellers/me/.
package sellers

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/greendizer/client-go/pkg/greendizer/currencies"
	"github.com/greendizer/client-go/pkg/greendizer/dal"
	"github.com/greendizer/client-go/pkg/greendizer/errors"
	"github.com/greendizer/client-go/pkg/greendizer/resources"
)

const userRoot string = "sellers/me/"

// XMLiContentType is the media type of the invoice documents an upload
// carries.
const XMLiContentType string = "application/xmli+xml"

// Upload bounds enforced client side before any byte leaves.
const (
	MaxDocumentsPerSend int = 100
	MaxDocumentLength   int = 512000
)

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

// Seller is the account root. All reads stay local until an attribute is
// resolved or a collection is populated.
type Seller struct {
	*resources.User

	emails  *EmailNode
	threads *resources.ThreadNode
	buyers  *BuyerNode
}

func New(session dal.Session, options ...Option) *Seller {
	cfg := treeConfig{}
	for _, option := range options {
		option(&cfg)
	}

	seller := &Seller{
		User: resources.NewUser(session, userRoot, cfg.table),
	}
	seller.emails = newEmailNode(session)
	seller.threads = resources.NewThreadNode(session, userRoot)
	seller.buyers = newBuyerNode(session)

	return seller
}

func (s *Seller) Emails() *EmailNode             { return s.emails }
func (s *Seller) Threads() *resources.ThreadNode { return s.threads }
func (s *Seller) Buyers() *BuyerNode             { return s.buyers }

// InvoiceFromURI resolves a URI found in a representation, a payment
// transaction for instance, into an invoice proxy.
func (s *Seller) InvoiceFromURI(uri string) (*resources.Invoice, error) {
	emailID, invoiceID, err := resources.ParseInvoiceURI(userRoot, uri)
	if err != nil {
		return nil, err
	}

	return s.emails.Get(emailID).Invoices().Get(invoiceID), nil
}

// TransactionFromURI resolves a URI into a transaction proxy on the
// matching balance.
func (s *Seller) TransactionFromURI(uri string) (*resources.Transaction, error) {
	currency, id, err := resources.ParseTransactionURI(userRoot, uri)
	if err != nil {
		return nil, err
	}

	balance, err := s.Balances().Get(currency)
	if err != nil {
		return nil, err
	}

	return balance.Transactions().Get(id), nil
}

// EmailNode gives access to the addresses invoices go out from.
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

// Email is an address of the seller, with the invoices sent from it and
// the reports of their uploads.
type Email struct {
	*resources.Email

	invoices *InvoiceNode
	reports  *resources.ReportNode
}

func newEmail(session dal.Session, identifier string) *Email {
	email := &Email{
		Email: resources.NewEmail(session, userRoot, identifier),
	}
	email.invoices = newInvoiceNode(session, email.Email)
	email.reports = resources.NewReportNode(session, email.Email)

	return email
}

func (e *Email) Invoices() *InvoiceNode         { return e.invoices }
func (e *Email) Reports() *resources.ReportNode { return e.reports }

// InvoiceNode adds the outgoing side to the shared invoice node, the
// outbox and the upload entry point.
type InvoiceNode struct {
	*resources.InvoiceNode

	session dal.Session
	email   *resources.Email
}

func newInvoiceNode(session dal.Session, email *resources.Email) *InvoiceNode {
	return &InvoiceNode{
		InvoiceNode: resources.NewInvoiceNode(session, email),
		session:     session,
		email:       email,
	}
}

// Outbox lists the invoices still sitting in their origin location.
func (n *InvoiceNode) Outbox() *dal.Collection[*resources.Invoice] {
	return n.Search("location==0")
}

// Send uploads XMLi documents for processing. The API accepts the batch
// and answers with the report tracking it.
func (n *InvoiceNode) Send(ctx context.Context, documents [][]byte) (*resources.Report, error) {
	if len(documents) == 0 {
		return nil, errors.NewValidationError("an upload needs at least one invoice document")
	}

	if len(documents) > MaxDocumentsPerSend {
		return nil, errors.NewValidationError(fmt.Sprintf("an upload carries at most %d invoice documents", MaxDocumentsPerSend))
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	for index, document := range documents {
		if len(document) > MaxDocumentLength {
			return nil, errors.NewValidationError(fmt.Sprintf("invoice document %d exceeds %d bytes", index, MaxDocumentLength))
		}

		header := textproto.MIMEHeader{}
		header.Set("Content-Type", XMLiContentType)

		part, err := writer.CreatePart(header)
		if err != nil {
			return nil, fmt.Errorf("failed to assemble upload: %w", err)
		}

		if _, err := part.Write(document); err != nil {
			return nil, fmt.Errorf("failed to assemble upload: %w", err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to assemble upload: %w", err)
	}

	headers := map[string][]string{
		"Content-Type": {"multipart/mixed; boundary=" + writer.Boundary()},
	}

	response, responseBody, err := n.session.Send(ctx, http.MethodPost, n.URI(), &body, headers)
	if err != nil {
		return nil, err
	}

	if response.StatusCode != http.StatusAccepted {
		contentType := response.Header.Get("Content-Type")
		return nil, errors.NewErrorFromProblemReport(response.StatusCode, contentType, responseBody)
	}

	id := reportIDFromLocation(response.Header.Get("Location"))
	if id == "" {
		return nil, errors.NewFormatError("the accepted upload identifies no report")
	}

	return resources.NewReport(n.session, n.email.URI(), id), nil
}

func reportIDFromLocation(location string) string {
	location = strings.TrimSuffix(location, "/")
	if location == "" {
		return ""
	}

	return location[strings.LastIndex(location, "/")+1:]
}

// BuyerNode gives access to the per customer analytics.
type BuyerNode struct {
	node *dal.Node[*Buyer]
}

func newBuyerNode(session dal.Session) *BuyerNode {
	return &BuyerNode{
		node: dal.NewNode(session, userRoot+"buyers/", func(id string) *Buyer {
			return newBuyer(session, id)
		}),
	}
}

func (n *BuyerNode) Get(id string) *Buyer { return n.node.Get(id) }

func (n *BuyerNode) All() *dal.Collection[*Buyer] { return n.node.All() }

func (n *BuyerNode) Search(query string) *dal.Collection[*Buyer] {
	return n.node.Search(query)
}

// Buyer digests the exchanges with one customer, sliced by day and hour.
type Buyer struct {
	*resources.Analytics

	days  *resources.TimespanDigestNode
	hours *resources.TimespanDigestNode
}

func newBuyer(session dal.Session, id string) *Buyer {
	uri := userRoot + "buyers/" + id + "/"

	buyer := &Buyer{
		Analytics: resources.NewAnalytics(session, uri, id),
	}
	buyer.days = resources.NewTimespanDigestNode(session, uri+"days/")
	buyer.hours = resources.NewTimespanDigestNode(session, uri+"hours/")

	return buyer
}

func (b *Buyer) Days() *resources.TimespanDigestNode  { return b.days }
func (b *Buyer) Hours() *resources.TimespanDigestNode { return b.hours }

func (b *Buyer) BillingAddress(ctx context.Context) (resources.Address, error) {
	return resources.AddressAttribute(ctx, b.Resource, "address")
}

func (b *Buyer) DeliveryAddress(ctx context.Context) (resources.Address, error) {
	return resources.AddressAttribute(ctx, b.Resource, "delivery")
}
