package api

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"github.com/greendizer/client-go/internal/pkg/application/simulator"
	"github.com/greendizer/client-go/internal/pkg/presentation/api/greendizer/auth"
	gderrors "github.com/greendizer/client-go/pkg/greendizer/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("greendizer-api/handlers")

// NewRetrieveHandler answers reads, a window when the URI names a
// collection and a single representation otherwise.
func NewRetrieveHandler(app *simulator.Simulator, authenticator auth.Enticator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error

		ctx, span := tracer.Start(r.Context(), "retrieve")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		traceID := traceIDFrom(span)

		if err = authenticator.CheckAccess(ctx, r); err != nil {
			gderrors.ReportUnauthorizedRequest(w, "access denied", traceID)
			return
		}

		uri := strings.TrimPrefix(r.URL.Path, "/")

		if app.IsCollection(uri) {
			err = serveWindow(w, r, app, uri, traceID)
			return
		}

		if strings.Contains(r.Header.Get("Accept"), "application/pdf") {
			if link := app.PDFLink(uri); link != "" {
				w.Header().Set("Location", link)
				w.WriteHeader(http.StatusFound)
				return
			}
		}

		var record *simulator.Record
		if record, err = app.Retrieve(uri); err != nil {
			reportProblem(w, err, traceID)
			return
		}

		w.Header().Set("Etag", record.Etag)
		writeJSON(w, http.StatusOK, representation(record, false))
	}
}

func serveWindow(w http.ResponseWriter, r *http.Request, app *simulator.Simulator, uri, traceID string) error {
	query := r.URL.Query()

	offset, ok := boundFrom(query.Get("offset"))
	if !ok {
		gderrors.ReportNewBadRequestData(w, "offset must be a non negative integer", traceID)
		return nil
	}

	limit, ok := boundFrom(query.Get("limit"))
	if !ok {
		gderrors.ReportNewBadRequestData(w, "limit must be a non negative integer", traceID)
		return nil
	}

	records, total, err := app.Window(uri, query.Get("q"), offset, limit)
	if err != nil {
		reportProblem(w, err, traceID)
		return err
	}

	page := make([]map[string]any, 0, len(records))
	for _, record := range records {
		page = append(page, representation(record, true))
	}

	w.Header().Set("X-Result-Count", strconv.Itoa(total))
	writeJSON(w, http.StatusOK, page)

	return nil
}

// NewCommitHandler applies partial updates behind the If-Match
// precondition.
func NewCommitHandler(app *simulator.Simulator, authenticator auth.Enticator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error

		ctx, span := tracer.Start(r.Context(), "commit")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		traceID := traceIDFrom(span)

		if err = authenticator.CheckAccess(ctx, r); err != nil {
			gderrors.ReportUnauthorizedRequest(w, "access denied", traceID)
			return
		}

		uri := strings.TrimPrefix(r.URL.Path, "/")

		if app.IsCollection(uri) {
			gderrors.ReportNewBadRequestData(w, "collections do not take partial updates", traceID)
			return
		}

		var fields map[string]any
		if err = json.NewDecoder(r.Body).Decode(&fields); err != nil {
			gderrors.ReportNewBadRequestData(w, "unable to decode request payload: "+err.Error(), traceID)
			return
		}

		var record *simulator.Record
		if record, err = app.Commit(uri, r.Header.Get("If-Match"), fields); err != nil {
			reportProblem(w, err, traceID)
			return
		}

		w.Header().Set("Etag", record.Etag)
		w.WriteHeader(http.StatusNoContent)
	}
}

// NewCreateHandler adds members to collections. JSON bodies create one
// member, multipart bodies upload invoice documents and answer with the
// report tracking them.
func NewCreateHandler(app *simulator.Simulator, authenticator auth.Enticator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error

		ctx, span := tracer.Start(r.Context(), "create")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		traceID := traceIDFrom(span)

		if err = authenticator.CheckAccess(ctx, r); err != nil {
			gderrors.ReportUnauthorizedRequest(w, "access denied", traceID)
			return
		}

		uri := strings.TrimPrefix(r.URL.Path, "/")

		mediaType, params, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if strings.HasPrefix(mediaType, "multipart/") {
			err = serveUpload(w, r, app, uri, params["boundary"], traceID)
			return
		}

		var fields map[string]any
		if err = json.NewDecoder(r.Body).Decode(&fields); err != nil {
			gderrors.ReportNewBadRequestData(w, "unable to decode request payload: "+err.Error(), traceID)
			return
		}

		var record *simulator.Record
		if record, err = app.Create(uri, fields); err != nil {
			reportProblem(w, err, traceID)
			return
		}

		w.Header().Set("Location", "/"+uri+record.ID+"/")
		w.Header().Set("Etag", record.Etag)
		writeJSON(w, http.StatusCreated, representation(record, false))
	}
}

func serveUpload(w http.ResponseWriter, r *http.Request, app *simulator.Simulator, uri, boundary, traceID string) error {
	if boundary == "" {
		gderrors.ReportNewBadRequestData(w, "a multipart body needs a boundary", traceID)
		return nil
	}

	sizes := []int{}
	reader := multipart.NewReader(r.Body, boundary)

	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			gderrors.ReportNewBadRequestData(w, "unable to read multipart body: "+err.Error(), traceID)
			return nil
		}

		document, err := io.ReadAll(part)
		if err != nil {
			gderrors.ReportNewBadRequestData(w, "unable to read multipart body: "+err.Error(), traceID)
			return nil
		}

		sizes = append(sizes, len(document))
	}

	report, err := app.Upload(uri, sizes)
	if err != nil {
		reportProblem(w, err, traceID)
		return err
	}

	w.Header().Set("Location", "/"+uri+"reports/"+report.ID+"/")
	w.WriteHeader(http.StatusAccepted)

	return nil
}

func reportProblem(w http.ResponseWriter, err error, traceID string) {
	detail := err.Error()

	switch {
	case errors.Is(err, gderrors.ErrNotFound):
		gderrors.ReportNotFoundError(w, detail, traceID)
	case errors.Is(err, gderrors.ErrConflict):
		gderrors.ReportPreconditionFailed(w, detail, traceID)
	case errors.Is(err, gderrors.ErrValidation):
		gderrors.ReportNewBadRequestData(w, detail, traceID)
	default:
		gderrors.ReportNewInternalError(w, detail, traceID)
	}
}

func representation(record *simulator.Record, inlineEtag bool) map[string]any {
	fields := make(map[string]any, len(record.Fields)+2)
	for name, value := range record.Fields {
		fields[name] = value
	}

	fields["id"] = record.ID
	if inlineEtag {
		fields["etag"] = record.Etag
	}

	return fields
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func boundFrom(value string) (int, bool) {
	if value == "" {
		return 0, true
	}

	bound, err := strconv.Atoi(value)
	if err != nil || bound < 0 {
		return 0, false
	}

	return bound, true
}

func traceIDFrom(span trace.Span) string {
	if span.SpanContext().HasTraceID() {
		return span.SpanContext().TraceID().String()
	}

	return ""
}
