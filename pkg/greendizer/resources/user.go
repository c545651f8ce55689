package resources

import (
	"context"
	"time"

	"github.com/greendizer/client-go/pkg/greendizer/currencies"
	"github.com/greendizer/client-go/pkg/greendizer/dal"
)

// User is the account singleton found at the root of both the seller and
// the buyer trees.
type User struct {
	*dal.Resource

	company  *Company
	settings *Settings
	balances *BalanceNode
}

// NewUser wires the user resource and its sub-resources under the given
// root, sellers/me/ or buyers/me/.
func NewUser(session dal.Session, root string, table *currencies.Table) *User {
	u := &User{
		Resource: dal.NewResource(session, "me", func() string { return root }),
	}

	u.company = &Company{
		Resource: dal.NewResource(session, "company", func() string { return root + "company/" }),
	}
	u.settings = &Settings{
		Resource: dal.NewResource(session, "settings", func() string { return root + "settings/" }),
	}
	u.balances = NewBalanceNode(session, root+"balances/", table)

	return u
}

func (u *User) Company() *Company      { return u.company }
func (u *User) Settings() *Settings    { return u.settings }
func (u *User) Balances() *BalanceNode { return u.balances }

func (u *User) FirstName(ctx context.Context) (string, error) {
	return TextAttribute(ctx, u.Resource, "firstname")
}

func (u *User) LastName(ctx context.Context) (string, error) {
	return TextAttribute(ctx, u.Resource, "lastname")
}

// FullName joins the first and the last name of the user.
func (u *User) FullName(ctx context.Context) (string, error) {
	first, err := u.FirstName(ctx)
	if err != nil {
		return "", err
	}

	last, err := u.LastName(ctx)
	if err != nil {
		return "", err
	}

	return first + " " + last, nil
}

func (u *User) AvatarURL(ctx context.Context) (string, error) {
	return optionalText(ctx, u.Resource, "avatar")
}

func (u *User) Birthday(ctx context.Context) (time.Time, error) {
	return u.DateAttribute(ctx, "birthday")
}

// Settings carries the account preferences, a singleton under the user.
type Settings struct {
	*dal.Resource
}

func (s *Settings) Language(ctx context.Context) (string, error) {
	return TextAttribute(ctx, s.Resource, "language")
}

func (s *Settings) Region(ctx context.Context) (string, error) {
	return TextAttribute(ctx, s.Resource, "region")
}

// Currency is the account level default, distinct from the per invoice
// currency.
func (s *Settings) Currency(ctx context.Context) (string, error) {
	return TextAttribute(ctx, s.Resource, "currency")
}

// Company describes the business the account belongs to, a singleton
// under the user.
type Company struct {
	*dal.Resource
}

func (c *Company) Name(ctx context.Context) (string, error) {
	return TextAttribute(ctx, c.Resource, "name")
}

func (c *Company) Description(ctx context.Context) (string, error) {
	return optionalText(ctx, c.Resource, "description")
}

func (c *Company) SmallLogoURL(ctx context.Context) (string, error) {
	return optionalText(ctx, c.Resource, "smallLogo")
}

func (c *Company) LargeLogoURL(ctx context.Context) (string, error) {
	return optionalText(ctx, c.Resource, "largeLogo")
}

func (c *Company) LegalMentions(ctx context.Context) (string, error) {
	return optionalText(ctx, c.Resource, "legalMentions")
}

func (c *Company) Address(ctx context.Context) (Address, error) {
	return AddressAttribute(ctx, c.Resource, "address")
}
