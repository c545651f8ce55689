package resources

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"strings"

	"github.com/greendizer/client-go/pkg/greendizer/dal"
)

// EmailID converts a raw address into the identifier the API expects, the
// hex encoded SHA-1 digest of the lowercased address. Values that are
// already identifiers pass through untouched.
func EmailID(identifier string) string {
	if !strings.Contains(identifier, "@") {
		return identifier
	}

	sum := sha1.Sum([]byte(strings.ToLower(identifier)))
	return hex.EncodeToString(sum[:])
}

// Email is an address registered with the account. Invoices hang off it,
// incoming ones on the buyer side and outgoing ones on the seller side.
type Email struct {
	*dal.Resource
}

// NewEmail accepts either a raw address or an already hashed identifier.
func NewEmail(session dal.Session, userRoot string, identifier string) *Email {
	id := EmailID(identifier)
	uri := userRoot + "emails/" + id + "/"

	return &Email{
		Resource: dal.NewResource(session, id, func() string { return uri }),
	}
}

func (e *Email) Label(ctx context.Context) (string, error) {
	return TextAttribute(ctx, e.Resource, "label")
}
