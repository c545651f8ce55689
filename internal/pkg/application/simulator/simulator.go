// Package simulator keeps an in memory rendition of the Greendizer API,
// serving the same wire contract the hosted service speaks. Integration
// tests and the demo server run against it.
package simulator

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/greendizer/client-go/pkg/greendizer/errors"
)

// Upload bounds mirror the ones the client enforces.
const (
	maxDocumentsPerUpload int = 100
	maxDocumentLength     int = 512000
)

// Record is one stored resource. Fields hold the representation the way
// it travels, dates as epoch milliseconds and money as plain numbers.
type Record struct {
	ID     string
	Etag   string
	Fields map[string]any
}

func (r *Record) clone() *Record {
	fields := make(map[string]any, len(r.Fields))
	for name, value := range r.Fields {
		fields[name] = value
	}

	return &Record{ID: r.ID, Etag: r.Etag, Fields: fields}
}

// Simulator holds the resource tree. Resources are keyed by their URI,
// collections keep their members in insertion order.
type Simulator struct {
	mu          sync.RWMutex
	resources   map[string]*Record
	collections map[string][]string
}

func New() *Simulator {
	return &Simulator{
		resources:   map[string]*Record{},
		collections: map[string][]string{},
	}
}

// Declare registers empty collections so that windows over them answer
// with zero members instead of not found.
func (s *Simulator) Declare(collectionURIs ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, uri := range collectionURIs {
		if _, ok := s.collections[uri]; !ok {
			s.collections[uri] = []string{}
		}
	}
}

// PutResource seeds a singleton, the user or its settings for instance.
// The identifier is the last segment of the URI.
func (s *Simulator) PutResource(uri string, fields map[string]any) *Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	record := &Record{
		ID:     lastSegment(uri),
		Etag:   uuid.NewString(),
		Fields: fields,
	}
	s.resources[uri] = record

	return record.clone()
}

// AddMember seeds one member of a collection. An empty id gets a
// generated one.
func (s *Simulator) AddMember(collectionURI string, id string, fields map[string]any) *Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.addMemberLocked(collectionURI, id, fields).clone()
}

func (s *Simulator) addMemberLocked(collectionURI string, id string, fields map[string]any) *Record {
	if id == "" {
		id = uuid.NewString()
	}

	record := &Record{
		ID:     id,
		Etag:   uuid.NewString(),
		Fields: fields,
	}

	s.resources[collectionURI+id+"/"] = record
	s.collections[collectionURI] = append(s.collections[collectionURI], id)

	return record
}

// IsCollection reports whether the URI names a collection rather than a
// single resource.
func (s *Simulator) IsCollection(uri string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.collections[uri]
	return ok
}

// Retrieve answers a read of a single resource.
func (s *Simulator) Retrieve(uri string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.resources[uri]
	if !ok {
		return nil, errors.NewNotFoundError(fmt.Sprintf("no resource lives at %s", uri))
	}

	return record.clone(), nil
}

// Window answers one page of a collection. The returned count is the
// number of members matching the query before slicing.
func (s *Simulator) Window(collectionURI, query string, offset, limit int) ([]*Record, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids, ok := s.collections[collectionURI]
	if !ok {
		return nil, 0, errors.NewNotFoundError(fmt.Sprintf("no collection lives at %s", collectionURI))
	}

	matching := make([]*Record, 0, len(ids))
	for _, id := range ids {
		record := s.resources[collectionURI+id+"/"]
		if matchesQuery(record.Fields, query) {
			matching = append(matching, record)
		}
	}

	total := len(matching)

	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}

	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}

	window := make([]*Record, 0, end-offset)
	for _, record := range matching[offset:end] {
		window = append(window, record.clone())
	}

	return window, total, nil
}

// Commit applies a partial update behind an etag precondition and bumps
// the etag on success.
func (s *Simulator) Commit(uri, ifMatch string, fields map[string]any) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.resources[uri]
	if !ok {
		return nil, errors.NewNotFoundError(fmt.Sprintf("no resource lives at %s", uri))
	}

	if ifMatch != "" && ifMatch != record.Etag {
		return nil, errors.NewConflictError(fmt.Sprintf("%s changed since the state the update was built on", uri))
	}

	if err := s.gateCommitLocked(uri, record, fields); err != nil {
		return nil, err
	}

	for name, value := range fields {
		record.Fields[name] = value
	}
	record.Etag = uuid.NewString()

	return record.clone(), nil
}

// gateCommitLocked rejects updates the live service refuses.
func (s *Simulator) gateCommitLocked(uri string, record *Record, fields map[string]any) error {
	if _, ok := fields["rank"]; ok && strings.Contains(uri, "/transactions/") {
		if record.Fields["status"] != "pending" {
			return errors.NewValidationError("the rank only exists while a transaction is pending")
		}
	}

	return nil
}

// Create adds a member to a collection, running the side effects the
// collection kind implies.
func (s *Simulator) Create(collectionURI string, fields map[string]any) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.collections[collectionURI]; !ok {
		return nil, errors.NewNotFoundError(fmt.Sprintf("no collection lives at %s", collectionURI))
	}

	switch {
	case strings.HasSuffix(collectionURI, "payments/"):
		return s.createPaymentLocked(collectionURI, fields)
	case strings.HasSuffix(collectionURI, "threads/"):
		return s.createThreadLocked(collectionURI, fields)
	case strings.HasSuffix(collectionURI, "messages/"):
		return s.createMessageLocked(collectionURI, fields)
	case strings.HasSuffix(collectionURI, "transactions/"):
		return s.createTransactionLocked(collectionURI, fields)
	case strings.HasSuffix(collectionURI, "invoices/"):
		return nil, errors.NewValidationError("invoices travel as document uploads, not as JSON members")
	}

	return nil, errors.NewValidationError(fmt.Sprintf("%s does not accept new members", collectionURI))
}

func (s *Simulator) createPaymentLocked(collectionURI string, fields map[string]any) (*Record, error) {
	invoiceURI := strings.TrimSuffix(collectionURI, "payments/")

	invoice, ok := s.resources[invoiceURI]
	if !ok {
		return nil, errors.NewNotFoundError(fmt.Sprintf("no invoice lives at %s", invoiceURI))
	}

	amount, ok := asFloat(fields["amount"])
	if !ok || amount < 0 {
		return nil, errors.NewValidationError("a payment needs a non negative amount")
	}

	if _, ok := fields["method"].(string); !ok {
		return nil, errors.NewValidationError("a payment needs a method")
	}

	payment := s.addMemberLocked(collectionURI, "", fields)

	settled := 0.0
	for _, id := range s.collections[collectionURI] {
		if paid, ok := asFloat(s.resources[collectionURI+id+"/"].Fields["amount"]); ok {
			settled += paid
		}
	}

	if total, ok := asFloat(invoice.Fields["total"]); ok && settled >= total {
		invoice.Fields["paid"] = true
		invoice.Etag = uuid.NewString()
	}

	return payment.clone(), nil
}

func (s *Simulator) createThreadLocked(collectionURI string, fields map[string]any) (*Record, error) {
	message, _ := fields["message"].(string)
	subject, _ := fields["subject"].(string)
	recipient, _ := fields["recipient"].(string)

	if recipient == "" || subject == "" || message == "" {
		return nil, errors.NewValidationError("a thread needs a recipient, a subject and an opening message")
	}

	now := time.Now().UnixMilli()

	thread := s.addMemberLocked(collectionURI, "", map[string]any{
		"subject":     subject,
		"recipient":   recipient,
		"count":       1,
		"snippet":     snippetOf(message),
		"lastMessage": now,
		"location":    0,
		"read":        true,
		"flagged":     false,
	})

	messagesURI := collectionURI + thread.ID + "/messages/"
	s.collections[messagesURI] = []string{}
	s.addMemberLocked(messagesURI, "", map[string]any{"text": message})

	return thread.clone(), nil
}

func (s *Simulator) createMessageLocked(collectionURI string, fields map[string]any) (*Record, error) {
	text, _ := fields["text"].(string)
	if text == "" {
		return nil, errors.NewValidationError("a message needs a text")
	}

	threadURI := strings.TrimSuffix(collectionURI, "messages/")
	thread, ok := s.resources[threadURI]
	if !ok {
		return nil, errors.NewNotFoundError(fmt.Sprintf("no thread lives at %s", threadURI))
	}

	message := s.addMemberLocked(collectionURI, "", fields)

	count, _ := asFloat(thread.Fields["count"])
	thread.Fields["count"] = int(count) + 1
	thread.Fields["snippet"] = snippetOf(text)
	thread.Fields["lastMessage"] = time.Now().UnixMilli()
	thread.Etag = uuid.NewString()

	return message.clone(), nil
}

func (s *Simulator) createTransactionLocked(collectionURI string, fields map[string]any) (*Record, error) {
	balanceURI := strings.TrimSuffix(collectionURI, "transactions/")

	balance, ok := s.resources[balanceURI]
	if !ok {
		return nil, errors.NewNotFoundError(fmt.Sprintf("no balance lives at %s", balanceURI))
	}

	kind, _ := fields["type"].(string)

	switch kind {
	case "payment":
		invoices, ok := fields["invoices"].([]any)
		if !ok || len(invoices) == 0 {
			return nil, errors.NewValidationError("a payment transaction needs at least one invoice")
		}
	case "withdrawal":
		amount, ok := asFloat(fields["amount"])
		if !ok || amount <= 0 {
			return nil, errors.NewValidationError("a withdrawal needs a positive amount")
		}

		if position, ok := asFloat(balance.Fields["amount"]); ok && amount > position {
			return nil, errors.NewValidationError("the balance cannot cover the withdrawal")
		}
	default:
		return nil, errors.NewValidationError(fmt.Sprintf("%q is not a transaction type", kind))
	}

	pending := 0
	for _, id := range s.collections[collectionURI] {
		if s.resources[collectionURI+id+"/"].Fields["status"] == "pending" {
			pending++
		}
	}

	fields["status"] = "pending"
	fields["eta"] = time.Now().Add(72 * time.Hour).UnixMilli()
	fields["rank"] = pending + 1

	return s.addMemberLocked(collectionURI, "", fields).clone(), nil
}

// Upload accepts a batch of invoice documents for one seller address and
// answers with the report tracking it. Documents are not parsed, the
// report simply accounts for them.
func (s *Simulator) Upload(collectionURI string, documentSizes []int) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !strings.HasPrefix(collectionURI, "sellers/") || !strings.HasSuffix(collectionURI, "invoices/") {
		return nil, errors.NewValidationError("only seller addresses accept invoice uploads")
	}

	if _, ok := s.collections[collectionURI]; !ok {
		return nil, errors.NewNotFoundError(fmt.Sprintf("no collection lives at %s", collectionURI))
	}

	if len(documentSizes) == 0 || len(documentSizes) > maxDocumentsPerUpload {
		return nil, errors.NewValidationError(fmt.Sprintf("an upload carries between 1 and %d invoice documents", maxDocumentsPerUpload))
	}

	for index, size := range documentSizes {
		if size > maxDocumentLength {
			return nil, errors.NewValidationError(fmt.Sprintf("invoice document %d exceeds %d bytes", index, maxDocumentLength))
		}
	}

	reportsURI := collectionURI + "reports/"
	if _, ok := s.collections[reportsURI]; !ok {
		s.collections[reportsURI] = []string{}
	}

	report := s.addMemberLocked(reportsURI, "", map[string]any{
		"state":         2,
		"ipAddress":     "127.0.0.1",
		"hash":          uuid.NewString(),
		"startTime":     time.Now().UnixMilli(),
		"elapsedTime":   42,
		"invoicesCount": len(documentSizes),
	})

	return report.clone(), nil
}

// PDFLink answers the redirect target for the PDF rendition of an
// invoice, empty when the URI points at no invoice.
func (s *Simulator) PDFLink(uri string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.resources[uri]
	if !ok || !strings.Contains(uri, "/invoices/") {
		return ""
	}

	link := "https://cdn.greendizer.example/pdf/" + record.ID
	if key, ok := record.Fields["secretKey"].(string); ok {
		link += "?key=" + key
	}

	return link
}

func snippetOf(message string) string {
	if len(message) > 100 {
		return message[:100]
	}

	return message
}

func lastSegment(uri string) string {
	uri = strings.TrimSuffix(uri, "/")
	return uri[strings.LastIndex(uri, "/")+1:]
}
