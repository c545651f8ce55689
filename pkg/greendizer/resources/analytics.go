package resources

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/greendizer/client-go/pkg/greendizer/dal"
	"github.com/greendizer/client-go/pkg/greendizer/errors"
	"github.com/shopspring/decimal"
)

// Analytics digests the exchanges with one counterpart. Per currency
// figures sit under the uppercase currency code, next to the totals.
type Analytics struct {
	*dal.Resource
}

func NewAnalytics(session dal.Session, uri string, id string) *Analytics {
	return &Analytics{
		Resource: dal.NewResource(session, id, func() string { return uri }),
	}
}

func (a *Analytics) Name(ctx context.Context) (string, error) {
	return TextAttribute(ctx, a.Resource, "name")
}

func (a *Analytics) EmailAddress(ctx context.Context) (string, error) {
	return TextAttribute(ctx, a.Resource, "email")
}

// Currencies lists the codes a digest is available in.
func (a *Analytics) Currencies(ctx context.Context) ([]string, error) {
	return TextListAttribute(ctx, a.Resource, "currencies")
}

func (a *Analytics) InvoicesCount(ctx context.Context) (int, error) {
	return optionalInt(ctx, a.Resource, "invoicesCount")
}

func (a *Analytics) ThreadsCount(ctx context.Context) (int, error) {
	return optionalInt(ctx, a.Resource, "threadsCount")
}

func (a *Analytics) MessagesCount(ctx context.Context) (int, error) {
	return optionalInt(ctx, a.Resource, "messagesCount")
}

// CurrencyMetrics resolves the figures digested in the given currency,
// failing client side when no digest exists in it.
func (a *Analytics) CurrencyMetrics(ctx context.Context, code string) (CurrencyMetrics, error) {
	code = strings.ToUpper(strings.TrimSpace(code))

	available, err := a.Currencies(ctx)
	if err != nil {
		return CurrencyMetrics{}, err
	}

	if !slices.Contains(available, code) {
		return CurrencyMetrics{}, errors.NewValidationError(fmt.Sprintf("no digest is available in %s", code))
	}

	fields, err := MapAttribute(ctx, a.Resource, code)
	if err != nil {
		return CurrencyMetrics{}, err
	}

	return metricsFrom(code, fields)
}

// CurrencyMetrics carries the figures of one digest in one currency.
type CurrencyMetrics struct {
	Currency      string
	Total         decimal.Decimal
	Paid          decimal.Decimal
	Due           decimal.Decimal
	Overdue       decimal.Decimal
	InvoicesCount int
}

func metricsFrom(code string, fields map[string]any) (CurrencyMetrics, error) {
	metrics := CurrencyMetrics{Currency: code}

	amounts := map[string]*decimal.Decimal{
		"total":   &metrics.Total,
		"paid":    &metrics.Paid,
		"due":     &metrics.Due,
		"overdue": &metrics.Overdue,
	}
	for name, into := range amounts {
		raw, ok := fields[name]
		if !ok {
			continue
		}

		amount, err := amountFrom(name, raw)
		if err != nil {
			return CurrencyMetrics{}, err
		}
		*into = amount
	}

	if raw, ok := fields["invoicesCount"].(float64); ok {
		metrics.InvoicesCount = int(raw)
	}

	return metrics, nil
}

// TimespanDigest is an analytics digest covering a single day or hour,
// identified by the epoch milliseconds its span starts at.
type TimespanDigest struct {
	*Analytics
}

func NewTimespanDigest(session dal.Session, nodeURI string, id string) *TimespanDigest {
	return &TimespanDigest{
		Analytics: NewAnalytics(session, nodeURI+id+"/", id),
	}
}

// Time is the start of the span the digest covers.
func (d *TimespanDigest) Time() (time.Time, error) {
	millis, err := strconv.ParseInt(d.ID(), 10, 64)
	if err != nil {
		return time.Time{}, errors.NewFormatError(fmt.Sprintf("digest id %q holds no timestamp", d.ID()))
	}

	return time.UnixMilli(millis).UTC(), nil
}

// TimespanDigestNode gives access to the day or hour slices of a digest.
type TimespanDigestNode struct {
	node *dal.Node[*TimespanDigest]
}

func NewTimespanDigestNode(session dal.Session, baseURI string) *TimespanDigestNode {
	return &TimespanDigestNode{
		node: dal.NewNode(session, baseURI, func(id string) *TimespanDigest {
			return NewTimespanDigest(session, baseURI, id)
		}),
	}
}

func (n *TimespanDigestNode) Get(id string) *TimespanDigest { return n.node.Get(id) }

func (n *TimespanDigestNode) All() *dal.Collection[*TimespanDigest] { return n.node.All() }

func (n *TimespanDigestNode) Search(query string) *dal.Collection[*TimespanDigest] {
	return n.node.Search(query)
}
