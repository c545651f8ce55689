package resources

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/greendizer/client-go/pkg/greendizer/errors"
)

var (
	invoicePath     = regexp.MustCompile(`^emails/([^/]+)/invoices/([^/]+)/$`)
	transactionPath = regexp.MustCompile(`^balances/([A-Za-z]{3})/transactions/([^/]+)/$`)
)

// ParseInvoiceURI splits an invoice URI below the given account root into
// the email and invoice identifiers it points at. Representations refer
// to invoices by URI, payment transactions for instance.
func ParseInvoiceURI(root, uri string) (emailID, invoiceID string, err error) {
	rest, ok := strings.CutPrefix(strings.TrimPrefix(uri, "/"), root)
	if !ok {
		return "", "", errors.NewValidationError(fmt.Sprintf("%q does not sit below %s", uri, root))
	}

	match := invoicePath.FindStringSubmatch(rest)
	if match == nil {
		return "", "", errors.NewValidationError(fmt.Sprintf("%q points at no invoice", uri))
	}

	return match[1], match[2], nil
}

// ParseTransactionURI splits a transaction URI below the given account
// root into the currency code and transaction identifier it points at.
func ParseTransactionURI(root, uri string) (currency, transactionID string, err error) {
	rest, ok := strings.CutPrefix(strings.TrimPrefix(uri, "/"), root)
	if !ok {
		return "", "", errors.NewValidationError(fmt.Sprintf("%q does not sit below %s", uri, root))
	}

	match := transactionPath.FindStringSubmatch(rest)
	if match == nil {
		return "", "", errors.NewValidationError(fmt.Sprintf("%q points at no transaction", uri))
	}

	return strings.ToUpper(match[1]), match[2], nil
}
