package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/greendizer/client-go/internal/pkg/application/simulator"
	"github.com/greendizer/client-go/pkg/greendizer/resources"
)

const (
	sellerAddress string = "billing@reynholm.example"
	buyerAddress  string = "jen@reynholm.example"
)

// seedDemoAccounts fills the simulator with one seller and one buyer
// exchanging invoices, so that a freshly started instance has something
// to serve.
func seedDemoAccounts(app *simulator.Simulator) {
	seedSeller(app)
	seedBuyer(app)
}

func seedSeller(app *simulator.Simulator) {
	app.PutResource("sellers/me/", map[string]any{
		"firstname": "Maurice",
		"lastname":  "Moss",
		"avatar":    "https://cdn.greendizer.example/avatars/moss.png",
		"birthday":  time.Date(1979, time.May, 12, 0, 0, 0, 0, time.UTC).UnixMilli(),
	})
	app.PutResource("sellers/me/company/", map[string]any{
		"name":        "Reynholm Industries",
		"description": "IT support and consulting",
		"smallLogo":   "https://cdn.greendizer.example/logos/reynholm-32.png",
		"largeLogo":   "https://cdn.greendizer.example/logos/reynholm-256.png",
		"address": map[string]any{
			"streetAddress": "123 Carenden Road",
			"city":          "London",
			"zipCode":       "EC1V 9NR",
			"country":       "GB",
		},
	})
	app.PutResource("sellers/me/settings/", map[string]any{
		"language": "en",
		"region":   "GB",
		"currency": "EUR",
	})

	app.PutResource("sellers/me/balances/EUR/", map[string]any{"amount": 1250.75})
	app.Declare("sellers/me/balances/EUR/transactions/")

	emailID := resources.EmailID(sellerAddress)
	app.PutResource("sellers/me/emails/"+emailID+"/", map[string]any{"label": sellerAddress})

	invoicesURI := "sellers/me/emails/" + emailID + "/invoices/"
	app.Declare(invoicesURI, invoicesURI+"reports/")
	seedInvoices(app, invoicesURI, buyerAddress)

	app.Declare("sellers/me/threads/")
	app.Create("sellers/me/threads/", map[string]any{
		"recipient": buyerAddress,
		"subject":   "Your January invoice",
		"message":   "The invoice for January went out this morning.",
	})

	seedAnalytics(app, "sellers/me/buyers/"+resources.EmailID(buyerAddress)+"/", "Jen Barber", buyerAddress)
}

func seedBuyer(app *simulator.Simulator) {
	app.PutResource("buyers/me/", map[string]any{
		"firstname": "Jen",
		"lastname":  "Barber",
		"birthday":  time.Date(1981, time.September, 3, 0, 0, 0, 0, time.UTC).UnixMilli(),
	})
	app.PutResource("buyers/me/company/", map[string]any{
		"name": "Reynholm Industries",
		"address": map[string]any{
			"streetAddress": "123 Carenden Road",
			"city":          "London",
			"zipCode":       "EC1V 9NR",
			"country":       "GB",
		},
	})
	app.PutResource("buyers/me/settings/", map[string]any{
		"language": "en",
		"region":   "GB",
		"currency": "EUR",
	})

	app.PutResource("buyers/me/balances/EUR/", map[string]any{"amount": 320.40})
	app.Declare("buyers/me/balances/EUR/transactions/")

	emailID := resources.EmailID(buyerAddress)
	app.PutResource("buyers/me/emails/"+emailID+"/", map[string]any{"label": buyerAddress})

	invoicesURI := "buyers/me/emails/" + emailID + "/invoices/"
	app.Declare(invoicesURI)
	seedInvoices(app, invoicesURI, buyerAddress)

	app.Declare("buyers/me/threads/")

	seedAnalytics(app, "buyers/me/sellers/"+resources.EmailID(sellerAddress)+"/", "Maurice Moss", sellerAddress)
}

func seedInvoices(app *simulator.Simulator, collectionURI, recipient string) {
	issued := time.Date(2026, time.January, 15, 9, 0, 0, 0, time.UTC)

	for month := 1; month <= 6; month++ {
		date := issued.AddDate(0, month-1, 0)
		id := fmt.Sprintf("inv-2026-%02d", month)

		app.AddMember(collectionURI, id, map[string]any{
			"name":        fmt.Sprintf("Support retainer %s", date.Month()),
			"description": "Monthly IT support retainer",
			"body":        "1x support retainer",
			"currency":    "EUR",
			"total":       961.50,
			"date":        date.UnixMilli(),
			"dueDate":     date.AddDate(0, 1, 0).UnixMilli(),
			"secretKey":   fmt.Sprintf("key-%02d", month),
			"customId":    fmt.Sprintf("PO-2026-%02d", month),
			"location":    0,
			"read":        month < 3,
			"flagged":     month == 2,
			"paid":        month < 4,
			"canceled":    false,
			"buyer": map[string]any{
				"name":  "Jen Barber",
				"email": recipient,
			},
			"seller": map[string]any{
				"name":  "Reynholm Industries",
				"email": sellerAddress,
			},
		})

		app.Declare(collectionURI + id + "/payments/")
	}
}

func seedAnalytics(app *simulator.Simulator, uri, name, address string) {
	app.PutResource(uri, map[string]any{
		"name":          name,
		"email":         address,
		"currencies":    []any{"EUR"},
		"invoicesCount": 6,
		"threadsCount":  1,
		"messagesCount": 1,
		"EUR": map[string]any{
			"total":         5769.0,
			"paid":          2884.5,
			"due":           2884.5,
			"overdue":       961.5,
			"invoicesCount": 6,
		},
		"address": map[string]any{
			"streetAddress": "123 Carenden Road",
			"city":          "London",
			"zipCode":       "EC1V 9NR",
			"country":       "GB",
		},
	})

	day := time.Date(2026, time.January, 15, 0, 0, 0, 0, time.UTC)

	for _, span := range []string{"days/", "hours/"} {
		spanURI := uri + span
		app.Declare(spanURI)

		for offset := 0; offset < 3; offset++ {
			at := day.AddDate(0, 0, offset)
			if span == "hours/" {
				at = day.Add(time.Duration(offset) * time.Hour)
			}

			app.AddMember(spanURI, strconv.FormatInt(at.UnixMilli(), 10), map[string]any{
				"name":          name,
				"email":         address,
				"currencies":    []any{"EUR"},
				"invoicesCount": 1,
				"threadsCount":  0,
				"messagesCount": 0,
				"EUR": map[string]any{
					"total":         961.5,
					"paid":          0.0,
					"due":           961.5,
					"overdue":       0.0,
					"invoicesCount": 1,
				},
			})
		}
	}
}
