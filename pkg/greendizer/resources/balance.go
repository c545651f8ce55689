package resources

import (
	"context"
	"fmt"
	"strings"

	"github.com/greendizer/client-go/pkg/greendizer/currencies"
	"github.com/greendizer/client-go/pkg/greendizer/dal"
	"github.com/greendizer/client-go/pkg/greendizer/errors"
	"github.com/shopspring/decimal"
)

// Balance is the position the account holds in one currency. The currency
// code doubles as the identifier.
type Balance struct {
	*dal.Resource

	transactions *TransactionNode
}

func NewBalance(session dal.Session, baseURI string, code string) *Balance {
	code = strings.ToUpper(code)
	uri := baseURI + code + "/"

	balance := &Balance{
		Resource: dal.NewResource(session, code, func() string { return uri }),
	}
	balance.transactions = NewTransactionNode(session, balance)

	return balance
}

func (b *Balance) Currency() string { return b.ID() }

func (b *Balance) Amount(ctx context.Context) (decimal.Decimal, error) {
	return AmountAttribute(ctx, b.Resource, "amount")
}

func (b *Balance) Transactions() *TransactionNode { return b.transactions }

// BalanceNode hands out the per currency balances of the account,
// refusing codes its currency table does not know.
type BalanceNode struct {
	table *currencies.Table
	node  *dal.Node[*Balance]
}

func NewBalanceNode(session dal.Session, baseURI string, table *currencies.Table) *BalanceNode {
	if table == nil {
		table = currencies.Default()
	}

	return &BalanceNode{
		table: table,
		node: dal.NewNode(session, baseURI, func(code string) *Balance {
			return NewBalance(session, baseURI, code)
		}),
	}
}

// Table exposes the currency table validation runs against.
func (n *BalanceNode) Table() *currencies.Table { return n.table }

func (n *BalanceNode) Get(code string) (*Balance, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if !n.table.Valid(code) {
		return nil, errors.NewValidationError(fmt.Sprintf("%q is not a known currency code", code))
	}

	return n.node.Get(code), nil
}

func (n *BalanceNode) All() *dal.Collection[*Balance] { return n.node.All() }
