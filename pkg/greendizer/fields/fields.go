// Package fields builds the field maps sent on create and commit requests
// in a declarative way.
package fields

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type FieldFunc func(map[string]any)

func New(decorators ...FieldFunc) map[string]any {
	fields := map[string]any{}

	for _, decorate := range decorators {
		decorate(fields)
	}

	return fields
}

func Text(name, value string) FieldFunc {
	return func(fields map[string]any) {
		fields[name] = value
	}
}

func Number(name string, value float64) FieldFunc {
	return func(fields map[string]any) {
		fields[name] = value
	}
}

func Int(name string, value int) FieldFunc {
	return func(fields map[string]any) {
		fields[name] = value
	}
}

func Bool(name string, value bool) FieldFunc {
	return func(fields map[string]any) {
		fields[name] = value
	}
}

func TextList(name string, values []string) FieldFunc {
	return func(fields map[string]any) {
		fields[name] = values
	}
}

// Date encodes a timestamp the way the API stores them, as milliseconds
// since the Unix epoch.
func Date(name string, value time.Time) FieldFunc {
	return func(fields map[string]any) {
		fields[name] = value.UnixMilli()
	}
}

// Amount encodes a money figure as an exact number literal.
func Amount(name string, value decimal.Decimal) FieldFunc {
	return func(fields map[string]any) {
		fields[name] = json.Number(value.String())
	}
}
