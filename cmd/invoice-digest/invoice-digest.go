package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/diwise/service-chassis/pkg/infrastructure/buildinfo"
	"github.com/diwise/service-chassis/pkg/infrastructure/env"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y"
	"github.com/greendizer/client-go/pkg/greendizer"
	"github.com/greendizer/client-go/pkg/greendizer/resources"
	"github.com/greendizer/client-go/pkg/greendizer/resources/sellers"
	"github.com/shopspring/decimal"
)

const (
	appName string = "invoice-digest"
)

func main() {
	appVersion := buildinfo.SourceVersion()

	ctx, log, cleanup := o11y.Init(context.Background(), appName, appVersion, "json")
	defer cleanup()

	cfg := LoadConfiguration(ctx)

	if cfg.accessToken == "" {
		log.Error("no access token configured, set GREENDIZER_ACCESS_TOKEN")
		os.Exit(1)
	}

	if cfg.emailAddress == "" {
		log.Error("no email address configured, set GREENDIZER_EMAIL")
		os.Exit(1)
	}

	log.Debug("begin digesting due invoices", "email", cfg.emailAddress)

	client := greendizer.New(cfg.apiRoot,
		greendizer.AccessToken(cfg.accessToken),
		greendizer.UserAgent(appName+"/"+appVersion),
	)

	seller := sellers.New(client)
	invoices := seller.Emails().Get(cfg.emailAddress).Invoices()

	digest, err := digestDueInvoices(ctx, invoices)
	if err != nil {
		log.Error("failed to digest due invoices", "err", err.Error())
		os.Exit(1)
	}

	for currency, entry := range digest {
		log.Info("outstanding invoices",
			slog.String("currency", currency),
			slog.Int("count", entry.count),
			slog.String("due", entry.due.String()),
			slog.Int("overdue_count", entry.overdueCount),
			slog.String("overdue", entry.overdue.String()),
		)
	}

	log.Info("done", slog.Int("currencies", len(digest)))
}

type Config struct {
	apiRoot      string
	accessToken  string
	emailAddress string
}

func LoadConfiguration(ctx context.Context) Config {
	return Config{
		apiRoot:      env.GetVariableOrDefault(ctx, "GREENDIZER_API_ROOT", greendizer.DefaultAPIRoot),
		accessToken:  env.GetVariableOrDefault(ctx, "GREENDIZER_ACCESS_TOKEN", ""),
		emailAddress: env.GetVariableOrDefault(ctx, "GREENDIZER_EMAIL", ""),
	}
}

type currencyDigest struct {
	count        int
	overdueCount int
	due          decimal.Decimal
	overdue      decimal.Decimal
}

// digestDueInvoices walks the open invoices of one address and sums what is
// still owed per currency, splitting out the share already past its due date.
func digestDueInvoices(ctx context.Context, invoices *sellers.InvoiceNode) (map[string]*currencyDigest, error) {
	digest := map[string]*currencyDigest{}
	now := time.Now().UTC()

	var walkErr error

	err := invoices.Due().Each(ctx, func(invoice *resources.Invoice) bool {
		currency, err := invoice.Currency(ctx)
		if err != nil {
			walkErr = fmt.Errorf("invoice %s: %w", invoice.ID(), err)
			return false
		}

		remaining, err := invoice.Remaining(ctx)
		if err != nil {
			walkErr = fmt.Errorf("invoice %s: %w", invoice.ID(), err)
			return false
		}

		dueDate, err := invoice.DueDate(ctx)
		if err != nil {
			walkErr = fmt.Errorf("invoice %s: %w", invoice.ID(), err)
			return false
		}

		entry, ok := digest[currency]
		if !ok {
			entry = &currencyDigest{}
			digest[currency] = entry
		}

		entry.count++
		entry.due = entry.due.Add(remaining)

		if dueDate.Before(now) {
			entry.overdueCount++
			entry.overdue = entry.overdue.Add(remaining)
		}

		return true
	})
	if err != nil {
		return nil, err
	}
	if walkErr != nil {
		return nil, walkErr
	}

	return digest, nil
}
