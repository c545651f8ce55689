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
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const (
	appName string = "ledger-export"
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

	log.Debug("begin exporting the invoice ledger", "email", cfg.emailAddress)

	p, err := connect(ctx, cfg)
	if err != nil {
		log.Error("failed to connect to database", "err", err.Error())
		os.Exit(1)
	}
	defer p.Close()

	err = initialize(ctx, p)
	if err != nil {
		log.Error("failed to initialize ledger table", "err", err.Error())
		os.Exit(1)
	}

	client := greendizer.New(cfg.apiRoot,
		greendizer.AccessToken(cfg.accessToken),
		greendizer.UserAgent(appName+"/"+appVersion),
	)

	seller := sellers.New(client)
	invoices := seller.Emails().Get(cfg.emailAddress).Invoices()

	rows, err := collectRows(ctx, invoices)
	if err != nil {
		log.Error("failed to collect invoices", "err", err.Error())
		os.Exit(1)
	}

	log.Debug("number of invoices to export", "count", len(rows))

	err = upsertRows(ctx, p, rows)
	if err != nil {
		log.Error("failed to write ledger rows", "err", err.Error())
		os.Exit(1)
	}

	log.Info("done exporting", slog.Int("count", len(rows)))
}

type Config struct {
	apiRoot      string
	accessToken  string
	emailAddress string

	host     string
	user     string
	password string
	port     string
	dbname   string
	sslmode  string
}

func LoadConfiguration(ctx context.Context) Config {
	return Config{
		apiRoot:      env.GetVariableOrDefault(ctx, "GREENDIZER_API_ROOT", greendizer.DefaultAPIRoot),
		accessToken:  env.GetVariableOrDefault(ctx, "GREENDIZER_ACCESS_TOKEN", ""),
		emailAddress: env.GetVariableOrDefault(ctx, "GREENDIZER_EMAIL", ""),

		host:     env.GetVariableOrDefault(ctx, "POSTGRES_HOST", ""),
		user:     env.GetVariableOrDefault(ctx, "POSTGRES_USER", ""),
		password: env.GetVariableOrDefault(ctx, "POSTGRES_PASSWORD", ""),
		port:     env.GetVariableOrDefault(ctx, "POSTGRES_PORT", "5432"),
		dbname:   env.GetVariableOrDefault(ctx, "POSTGRES_DBNAME", "greendizer"),
		sslmode:  env.GetVariableOrDefault(ctx, "POSTGRES_SSLMODE", "disable"),
	}
}

func (c Config) ConnStr() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", c.user, c.password, c.host, c.port, c.dbname, c.sslmode)
}

func connect(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	conn, err := pgxpool.New(ctx, cfg.ConnStr())
	if err != nil {
		return nil, err
	}

	err = conn.Ping(ctx)
	if err != nil {
		return nil, err
	}

	return conn, err
}

func initialize(ctx context.Context, p *pgxpool.Pool) error {
	sql := `
		CREATE TABLE IF NOT EXISTS invoice_ledger (
			uri text PRIMARY KEY,
			id text NOT NULL,
			custom_id text NOT NULL DEFAULT '',
			name text NOT NULL,
			currency text NOT NULL,
			total numeric NOT NULL,
			issued_at timestamptz NOT NULL,
			due_at timestamptz NOT NULL,
			paid boolean NOT NULL,
			canceled boolean NOT NULL,
			location int NOT NULL,
			exported_at timestamptz NOT NULL
		);`

	_, err := p.Exec(ctx, sql)
	return err
}

type ledgerRow struct {
	id       string
	uri      string
	customID string
	name     string
	currency string
	total    decimal.Decimal
	issuedAt time.Time
	dueAt    time.Time
	paid     bool
	canceled bool
	location int
}

// collectRows pages through every invoice of the address and flattens the
// fields the ledger keeps.
func collectRows(ctx context.Context, invoices *sellers.InvoiceNode) ([]ledgerRow, error) {
	rows := make([]ledgerRow, 0, 64)

	var walkErr error

	err := invoices.All().Each(ctx, func(invoice *resources.Invoice) bool {
		row := ledgerRow{
			id:  invoice.ID(),
			uri: invoice.URI(),
		}

		if row.name, walkErr = invoice.Name(ctx); walkErr != nil {
			return false
		}
		if row.customID, walkErr = invoice.CustomID(ctx); walkErr != nil {
			return false
		}
		if row.currency, walkErr = invoice.Currency(ctx); walkErr != nil {
			return false
		}
		if row.total, walkErr = invoice.Total(ctx); walkErr != nil {
			return false
		}
		if row.issuedAt, walkErr = invoice.Date(ctx); walkErr != nil {
			return false
		}
		if row.dueAt, walkErr = invoice.DueDate(ctx); walkErr != nil {
			return false
		}
		if row.paid, walkErr = invoice.Paid(ctx); walkErr != nil {
			return false
		}
		if row.canceled, walkErr = invoice.Canceled(ctx); walkErr != nil {
			return false
		}
		if row.location, walkErr = invoice.Location(ctx); walkErr != nil {
			return false
		}

		rows = append(rows, row)
		return true
	})
	if err != nil {
		return nil, err
	}
	if walkErr != nil {
		return nil, walkErr
	}

	return rows, nil
}

func upsertRows(ctx context.Context, p *pgxpool.Pool, rows []ledgerRow) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := p.Begin(ctx)
	if err != nil {
		return err
	}

	for _, row := range rows {
		sql := `
			INSERT INTO invoice_ledger (uri, id, custom_id, name, currency, total, issued_at, due_at, paid, canceled, location, exported_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now())
			ON CONFLICT (uri) DO UPDATE SET
				custom_id = EXCLUDED.custom_id,
				name = EXCLUDED.name,
				currency = EXCLUDED.currency,
				total = EXCLUDED.total,
				issued_at = EXCLUDED.issued_at,
				due_at = EXCLUDED.due_at,
				paid = EXCLUDED.paid,
				canceled = EXCLUDED.canceled,
				location = EXCLUDED.location,
				exported_at = EXCLUDED.exported_at;`

		_, err := tx.Exec(ctx, sql,
			row.uri, row.id, row.customID, row.name, row.currency, row.total.String(),
			row.issuedAt, row.dueAt, row.paid, row.canceled, row.location,
		)
		if err != nil {
			tx.Rollback(ctx)
			return err
		}
	}

	return tx.Commit(ctx)
}
