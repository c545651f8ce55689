package resources

import (
	"context"
	"strings"
	"time"

	"github.com/greendizer/client-go/pkg/greendizer/dal"
	"github.com/greendizer/client-go/pkg/greendizer/errors"
	"github.com/greendizer/client-go/pkg/greendizer/fields"
)

// Thread is a conversation between a seller and a buyer. It moves between
// the same three locations invoices do.
type Thread struct {
	*dal.Resource

	messages *MessageNode
}

func NewThread(session dal.Session, userRoot string, id string) *Thread {
	uri := userRoot + "threads/" + id + "/"

	thread := &Thread{
		Resource: dal.NewResource(session, id, func() string { return uri }),
	}
	thread.messages = NewMessageNode(session, thread)

	return thread
}

func (t *Thread) Messages() *MessageNode { return t.messages }

func (t *Thread) MessagesCount(ctx context.Context) (int, error) {
	return IntAttribute(ctx, t.Resource, "count")
}

func (t *Thread) Subject(ctx context.Context) (string, error) {
	return TextAttribute(ctx, t.Resource, "subject")
}

// Snippet is a short extract of the last message.
func (t *Thread) Snippet(ctx context.Context) (string, error) {
	return optionalText(ctx, t.Resource, "snippet")
}

func (t *Thread) LastMessageDate(ctx context.Context) (time.Time, error) {
	return t.DateAttribute(ctx, "lastMessage")
}

func (t *Thread) Location(ctx context.Context) (int, error) {
	return IntAttribute(ctx, t.Resource, "location")
}

func (t *Thread) SetLocation(location int) {
	t.RegisterUpdate("location", location)
}

func (t *Thread) Read(ctx context.Context) (bool, error) {
	return BoolAttribute(ctx, t.Resource, "read")
}

func (t *Thread) SetRead(read bool) {
	t.RegisterUpdate("read", read)
}

func (t *Thread) Flagged(ctx context.Context) (bool, error) {
	return BoolAttribute(ctx, t.Resource, "flagged")
}

func (t *Thread) SetFlagged(flagged bool) {
	t.RegisterUpdate("flagged", flagged)
}

// ThreadNode gives access to the conversations of the account.
type ThreadNode struct {
	node *dal.Node[*Thread]
}

func NewThreadNode(session dal.Session, userRoot string) *ThreadNode {
	return &ThreadNode{
		node: dal.NewNode(session, userRoot+"threads/", func(id string) *Thread {
			return NewThread(session, userRoot, id)
		}),
	}
}

func (n *ThreadNode) URI() string { return n.node.URI() }

func (n *ThreadNode) Get(id string) *Thread { return n.node.Get(id) }

func (n *ThreadNode) All() *dal.Collection[*Thread] { return n.node.All() }

func (n *ThreadNode) Search(query string) *dal.Collection[*Thread] {
	return n.node.Search(query)
}

func (n *ThreadNode) Inbox() *dal.Collection[*Thread] {
	return n.Search("location==0")
}

func (n *ThreadNode) Archived() *dal.Collection[*Thread] {
	return n.Search("location==1")
}

func (n *ThreadNode) Trashed() *dal.Collection[*Thread] {
	return n.Search("location==2")
}

func (n *ThreadNode) Unread() *dal.Collection[*Thread] {
	return n.Search("read==0|location<<2")
}

func (n *ThreadNode) Flagged() *dal.Collection[*Thread] {
	return n.Search("flagged==1|location<<2")
}

// Open starts a conversation and returns the thread already carrying the
// representation the API answered with.
func (n *ThreadNode) Open(ctx context.Context, recipient, subject, message string) (*Thread, error) {
	if strings.TrimSpace(recipient) == "" {
		return nil, errors.NewValidationError("a thread needs a recipient")
	}

	if strings.TrimSpace(subject) == "" {
		return nil, errors.NewValidationError("a thread needs a subject")
	}

	if strings.TrimSpace(message) == "" {
		return nil, errors.NewValidationError("a thread needs an opening message")
	}

	return n.node.Create(ctx, fields.New(
		fields.Text("recipient", recipient),
		fields.Text("subject", subject),
		fields.Text("message", message),
	))
}

// Message is one entry of a thread.
type Message struct {
	*dal.Resource
}

func NewMessage(session dal.Session, threadURI string, id string) *Message {
	uri := threadURI + "messages/" + id + "/"

	return &Message{
		Resource: dal.NewResource(session, id, func() string { return uri }),
	}
}

func (m *Message) Text(ctx context.Context) (string, error) {
	return TextAttribute(ctx, m.Resource, "text")
}

// SenderURI is empty on messages the account itself sent.
func (m *Message) SenderURI(ctx context.Context) (string, error) {
	return optionalText(ctx, m.Resource, "sender")
}

// MessageNode holds the entries of one thread.
type MessageNode struct {
	node *dal.Node[*Message]
}

func NewMessageNode(session dal.Session, thread *Thread) *MessageNode {
	return &MessageNode{
		node: dal.NewNode(session, thread.URI()+"messages/", func(id string) *Message {
			return NewMessage(session, thread.URI(), id)
		}),
	}
}

func (n *MessageNode) Get(id string) *Message { return n.node.Get(id) }

func (n *MessageNode) All() *dal.Collection[*Message] { return n.node.All() }

// Add replies to the thread.
func (n *MessageNode) Add(ctx context.Context, text string) (*Message, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.NewValidationError("a message needs a text")
	}

	return n.node.Create(ctx, fields.New(
		fields.Text("text", text),
	))
}
