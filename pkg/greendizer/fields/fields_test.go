package fields

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/matryer/is"
	"github.com/shopspring/decimal"
)

func TestNewComposesDecorators(t *testing.T) {
	is := is.New(t)

	f := New(
		Text("name", "Support retainer"),
		Number("total", 961.5),
		Int("location", 0),
		Bool("read", true),
		TextList("keywords", []string{"support", "retainer"}),
	)

	is.Equal(f["name"], "Support retainer")
	is.Equal(f["total"], 961.5)
	is.Equal(f["location"], 0)
	is.Equal(f["read"], true)
	is.Equal(f["keywords"], []string{"support", "retainer"})
}

func TestDatesEncodeAsEpochMilliseconds(t *testing.T) {
	is := is.New(t)

	f := New(Date("dueDate", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)))

	is.Equal(f["dueDate"], int64(1767225600000))
}

func TestAmountsEncodeAsExactNumberLiterals(t *testing.T) {
	is := is.New(t)

	f := New(Amount("amount", decimal.RequireFromString("10.5")))

	is.Equal(f["amount"], json.Number("10.5"))

	payload, err := json.Marshal(f)
	is.NoErr(err)
	is.True(strings.Contains(string(payload), `"amount":10.5`)) // no quoting on the wire
}
