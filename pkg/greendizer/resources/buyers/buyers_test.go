package buyers

import (
	"errors"
	"testing"

	gderrors "github.com/greendizer/client-go/pkg/greendizer/errors"

	"github.com/matryer/is"
)

func TestTheTreeComposesItsURIs(t *testing.T) {
	is := is.New(t)

	buyer := New(nil)

	is.Equal(buyer.URI(), "buyers/me/")
	is.Equal(buyer.Settings().URI(), "buyers/me/settings/")
	is.Equal(buyer.Threads().URI(), "buyers/me/threads/")
	is.Equal(buyer.Emails().Get("a1").Invoices().Get("inv-9").URI(), "buyers/me/emails/a1/invoices/inv-9/")
	is.Equal(buyer.Sellers().Get("abc").Hours().Get("1767225600000").URI(), "buyers/me/sellers/abc/hours/1767225600000/")
}

func TestURIsResolveBackIntoProxies(t *testing.T) {
	is := is.New(t)

	buyer := New(nil)

	invoice, err := buyer.InvoiceFromURI("/buyers/me/emails/a1/invoices/inv-9/")
	is.NoErr(err)
	is.Equal(invoice.ID(), "inv-9")
	is.Equal(invoice.URI(), "buyers/me/emails/a1/invoices/inv-9/")

	transaction, err := buyer.TransactionFromURI("buyers/me/balances/eur/transactions/42/")
	is.NoErr(err)
	is.Equal(transaction.URI(), "buyers/me/balances/EUR/transactions/42/")

	_, err = buyer.InvoiceFromURI("/sellers/me/emails/a1/invoices/inv-9/")
	is.True(errors.Is(err, gderrors.ErrValidation)) // a seller uri has no place here

	_, err = buyer.TransactionFromURI("buyers/me/balances/zzz/transactions/42/")
	is.True(errors.Is(err, gderrors.ErrValidation)) // unknown currency code
}
