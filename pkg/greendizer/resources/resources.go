// Package resources declares the concrete Greendizer resource types as thin
// field mappings over the generic data access layer. Loading, caching and
// commit semantics all live in the dal package; what belongs here is URI
// composition, field names and type coercion.
package resources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/greendizer/client-go/pkg/greendizer/dal"
	gderrors "github.com/greendizer/client-go/pkg/greendizer/errors"
	"github.com/shopspring/decimal"
)

// TextAttribute resolves a field expected to hold text.
func TextAttribute(ctx context.Context, r *dal.Resource, name string) (string, error) {
	raw, err := r.Attribute(ctx, name)
	if err != nil {
		return "", err
	}

	value, ok := raw.(string)
	if !ok {
		return "", gderrors.NewFormatError(fmt.Sprintf("attribute %q holds no text", name))
	}

	return value, nil
}

// BoolAttribute resolves a field expected to hold a flag. Numeric zero and
// one are accepted since the filter dialect writes flags that way.
func BoolAttribute(ctx context.Context, r *dal.Resource, name string) (bool, error) {
	raw, err := r.Attribute(ctx, name)
	if err != nil {
		return false, err
	}

	switch value := raw.(type) {
	case bool:
		return value, nil
	case float64:
		return value != 0, nil
	}

	return false, gderrors.NewFormatError(fmt.Sprintf("attribute %q holds no flag", name))
}

// IntAttribute resolves a field expected to hold an integer.
func IntAttribute(ctx context.Context, r *dal.Resource, name string) (int, error) {
	raw, err := r.Attribute(ctx, name)
	if err != nil {
		return 0, err
	}

	value, ok := raw.(float64)
	if !ok {
		return 0, gderrors.NewFormatError(fmt.Sprintf("attribute %q holds no number", name))
	}

	return int(value), nil
}

// AmountAttribute resolves a field expected to hold a money figure.
func AmountAttribute(ctx context.Context, r *dal.Resource, name string) (decimal.Decimal, error) {
	raw, err := r.Attribute(ctx, name)
	if err != nil {
		return decimal.Zero, err
	}

	return amountFrom(name, raw)
}

func amountFrom(name string, raw any) (decimal.Decimal, error) {
	switch value := raw.(type) {
	case float64:
		return decimal.NewFromFloat(value), nil
	case string:
		amount, err := decimal.NewFromString(value)
		if err != nil {
			return decimal.Zero, gderrors.NewFormatError(fmt.Sprintf("attribute %q holds unparseable amount %q", name, value))
		}
		return amount, nil
	case json.Number:
		amount, err := decimal.NewFromString(value.String())
		if err != nil {
			return decimal.Zero, gderrors.NewFormatError(fmt.Sprintf("attribute %q holds unparseable amount %q", name, value))
		}
		return amount, nil
	}

	return decimal.Zero, gderrors.NewFormatError(fmt.Sprintf("attribute %q holds no amount", name))
}

// TextListAttribute resolves a field expected to hold a list of strings.
func TextListAttribute(ctx context.Context, r *dal.Resource, name string) ([]string, error) {
	raw, err := r.Attribute(ctx, name)
	if err != nil {
		return nil, err
	}

	list, ok := raw.([]any)
	if !ok {
		return nil, gderrors.NewFormatError(fmt.Sprintf("attribute %q holds no list", name))
	}

	values := make([]string, 0, len(list))
	for _, entry := range list {
		value, ok := entry.(string)
		if !ok {
			return nil, gderrors.NewFormatError(fmt.Sprintf("attribute %q holds a non text entry", name))
		}
		values = append(values, value)
	}

	return values, nil
}

// MapAttribute resolves a field expected to hold a nested object.
func MapAttribute(ctx context.Context, r *dal.Resource, name string) (map[string]any, error) {
	raw, err := r.Attribute(ctx, name)
	if err != nil {
		return nil, err
	}

	value, ok := raw.(map[string]any)
	if !ok {
		return nil, gderrors.NewFormatError(fmt.Sprintf("attribute %q holds no object", name))
	}

	return value, nil
}

// optionalText is for fields the API omits when they carry no value.
func optionalText(ctx context.Context, r *dal.Resource, name string) (string, error) {
	value, err := TextAttribute(ctx, r, name)
	if err != nil && r.Loaded() && errors.Is(err, gderrors.ErrNotFound) {
		return "", nil
	}

	return value, err
}

func optionalInt(ctx context.Context, r *dal.Resource, name string) (int, error) {
	value, err := IntAttribute(ctx, r, name)
	if err != nil && r.Loaded() && errors.Is(err, gderrors.ErrNotFound) {
		return 0, nil
	}

	return value, err
}

// Address is the postal address shape nested inside companies, buyers and
// invoices.
type Address struct {
	StreetAddress string
	City          string
	ZipCode       string
	State         string
	Country       string
}

func addressFrom(fields map[string]any) Address {
	text := func(name string) string {
		value, _ := fields[name].(string)
		return value
	}

	return Address{
		StreetAddress: text("streetAddress"),
		City:          text("city"),
		ZipCode:       text("zipCode"),
		State:         text("state"),
		Country:       text("country"),
	}
}

// AddressAttribute resolves a field holding a nested postal address.
func AddressAttribute(ctx context.Context, r *dal.Resource, name string) (Address, error) {
	fields, err := MapAttribute(ctx, r, name)
	if err != nil {
		return Address{}, err
	}

	return addressFrom(fields), nil
}
