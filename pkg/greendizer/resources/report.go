package resources

import (
	"context"
	"time"

	"github.com/greendizer/client-go/pkg/greendizer/dal"
)

// Report states. Processing an upload is asynchronous, the report tracks
// how far the API got with it.
const (
	ReportStateQueued     int = 0
	ReportStateProcessing int = 1
	ReportStateDone       int = 2
	ReportStateFailed     int = 3
)

// Report describes the processing of one invoice upload.
type Report struct {
	*dal.Resource
}

func NewReport(session dal.Session, emailURI string, id string) *Report {
	uri := emailURI + "invoices/reports/" + id + "/"

	return &Report{
		Resource: dal.NewResource(session, id, func() string { return uri }),
	}
}

func (r *Report) State(ctx context.Context) (int, error) {
	return optionalInt(ctx, r.Resource, "state")
}

// IPAddress is the address the upload came from.
func (r *Report) IPAddress(ctx context.Context) (string, error) {
	return TextAttribute(ctx, r.Resource, "ipAddress")
}

// Hash fingerprints the uploaded payload.
func (r *Report) Hash(ctx context.Context) (string, error) {
	return TextAttribute(ctx, r.Resource, "hash")
}

// Error carries the processing failure, empty while none occurred.
func (r *Report) Error(ctx context.Context) (string, error) {
	return optionalText(ctx, r.Resource, "error")
}

func (r *Report) Start(ctx context.Context) (time.Time, error) {
	return r.DateAttribute(ctx, "startTime")
}

// ElapsedTime is how long the processing took so far.
func (r *Report) ElapsedTime(ctx context.Context) (time.Duration, error) {
	millis, err := IntAttribute(ctx, r.Resource, "elapsedTime")
	if err != nil {
		return 0, err
	}

	return time.Duration(millis) * time.Millisecond, nil
}

func (r *Report) End(ctx context.Context) (time.Time, error) {
	start, err := r.Start(ctx)
	if err != nil {
		return time.Time{}, err
	}

	elapsed, err := r.ElapsedTime(ctx)
	if err != nil {
		return time.Time{}, err
	}

	return start.Add(elapsed), nil
}

func (r *Report) InvoicesCount(ctx context.Context) (int, error) {
	return optionalInt(ctx, r.Resource, "invoicesCount")
}

// ReportNode gives access to the upload reports of one email address.
type ReportNode struct {
	node *dal.Node[*Report]
}

func NewReportNode(session dal.Session, email *Email) *ReportNode {
	return &ReportNode{
		node: dal.NewNode(session, email.URI()+"invoices/reports/", func(id string) *Report {
			return NewReport(session, email.URI(), id)
		}),
	}
}

func (n *ReportNode) Get(id string) *Report { return n.node.Get(id) }

func (n *ReportNode) All() *dal.Collection[*Report] { return n.node.All() }

func (n *ReportNode) Search(query string) *dal.Collection[*Report] {
	return n.node.Search(query)
}
