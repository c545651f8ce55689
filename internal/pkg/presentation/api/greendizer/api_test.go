package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/greendizer/client-go/internal/pkg/application/simulator"
	"github.com/matryer/is"
)

func TestRetrieveResource(t *testing.T) {
	is, ts, _ := setupTest(t)
	defer ts.Close()

	resp, body := newTestRequest(is, ts, "GET", "/sellers/me/", nil)

	is.Equal(resp.StatusCode, http.StatusOK) // Check status code
	is.True(resp.Header.Get("Etag") != "")

	fields := map[string]any{}
	is.NoErr(json.Unmarshal([]byte(body), &fields))
	is.Equal(fields["firstname"], "Ada")
	is.Equal(fields["id"], "me")
}

func TestRetrieveWithoutTokenIsRejected(t *testing.T) {
	is, ts, _ := setupTest(t)
	defer ts.Close()

	req, _ := http.NewRequest("GET", ts.URL+"/sellers/me/", nil)
	resp, err := http.DefaultClient.Do(req)
	is.NoErr(err) // http request failed
	defer resp.Body.Close()

	is.Equal(resp.StatusCode, http.StatusUnauthorized) // Check status code
}

func TestRetrieveUnknownResourceAnswersNotFound(t *testing.T) {
	is, ts, _ := setupTest(t)
	defer ts.Close()

	resp, _ := newTestRequest(is, ts, "GET", "/sellers/nobody/", nil)

	is.Equal(resp.StatusCode, http.StatusNotFound) // Check status code
	is.True(strings.HasPrefix(resp.Header.Get("Content-Type"), "application/problem+json"))
}

func TestWindowAnswersTheCount(t *testing.T) {
	is, ts, _ := setupTest(t)
	defer ts.Close()

	resp, body := newTestRequest(is, ts, "GET", "/sellers/me/emails/a1/invoices/?offset=0&limit=2", nil)

	is.Equal(resp.StatusCode, http.StatusOK)         // Check status code
	is.Equal(resp.Header.Get("X-Result-Count"), "5") // the count covers the whole collection

	page := []map[string]any{}
	is.NoErr(json.Unmarshal([]byte(body), &page))
	is.Equal(len(page), 2)
	is.True(page[0]["etag"] != "") // members travel with their etag inline
}

func TestWindowRejectsABadOffset(t *testing.T) {
	is, ts, _ := setupTest(t)
	defer ts.Close()

	resp, _ := newTestRequest(is, ts, "GET", "/sellers/me/emails/a1/invoices/?offset=x", nil)

	is.Equal(resp.StatusCode, http.StatusBadRequest) // Check status code
}

func TestCommitBehindThePrecondition(t *testing.T) {
	is, ts, _ := setupTest(t)
	defer ts.Close()

	resp, _ := newTestRequest(is, ts, "GET", "/sellers/me/emails/a1/invoices/1/", nil)
	etag := resp.Header.Get("Etag")
	is.True(etag != "")

	req, _ := http.NewRequest("PATCH", ts.URL+"/sellers/me/emails/a1/invoices/1/", bytes.NewBufferString(`{"read":true}`))
	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("Authorization", "Bearer sometoken")
	req.Header.Add("If-Match", etag)

	patched, err := http.DefaultClient.Do(req)
	is.NoErr(err) // http request failed
	defer patched.Body.Close()

	is.Equal(patched.StatusCode, http.StatusNoContent) // Check status code
	is.True(patched.Header.Get("Etag") != etag)        // the commit moves the etag
}

func TestCommitWithAStaleEtagAnswersPreconditionFailed(t *testing.T) {
	is, ts, _ := setupTest(t)
	defer ts.Close()

	req, _ := http.NewRequest("PATCH", ts.URL+"/sellers/me/emails/a1/invoices/1/", bytes.NewBufferString(`{"read":true}`))
	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("Authorization", "Bearer sometoken")
	req.Header.Add("If-Match", "stale")

	resp, err := http.DefaultClient.Do(req)
	is.NoErr(err) // http request failed
	defer resp.Body.Close()

	is.Equal(resp.StatusCode, http.StatusPreconditionFailed) // Check status code
}

func TestCreateThread(t *testing.T) {
	is, ts, _ := setupTest(t)
	defer ts.Close()

	payload := `{"recipient":"billing@example.com","subject":"hello","message":"there"}`
	resp, body := newTestRequest(is, ts, "POST", "/buyers/me/threads/", bytes.NewBufferString(payload))

	is.Equal(resp.StatusCode, http.StatusCreated) // Check status code
	is.True(strings.HasPrefix(resp.Header.Get("Location"), "/buyers/me/threads/"))
	is.True(resp.Header.Get("Etag") != "")

	fields := map[string]any{}
	is.NoErr(json.Unmarshal([]byte(body), &fields))
	is.Equal(fields["subject"], "hello")
}

func TestCreateWithBadDataReturnsInvalidRequest(t *testing.T) {
	is, ts, _ := setupTest(t)
	defer ts.Close()

	resp, _ := newTestRequest(is, ts, "POST", "/buyers/me/threads/", bytes.NewBufferString("this is not my json"))

	is.Equal(resp.StatusCode, http.StatusBadRequest) // Check status code
}

func TestCreateWithWrongContentTypeReturnsUnsupportedMediaType(t *testing.T) {
	is, ts, _ := setupTest(t)
	defer ts.Close()

	req, _ := http.NewRequest("POST", ts.URL+"/buyers/me/threads/", bytes.NewBufferString("a=b"))
	req.Header.Add("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Add("Authorization", "Bearer sometoken")
	resp, err := http.DefaultClient.Do(req)
	is.NoErr(err) // http request failed
	defer resp.Body.Close()

	is.Equal(resp.StatusCode, http.StatusUnsupportedMediaType) // Check status code
}

func TestUploadIsAcceptedWithAReportLocation(t *testing.T) {
	is, ts, _ := setupTest(t)
	defer ts.Close()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreatePart(textproto.MIMEHeader{"Content-Type": []string{"application/xmli+xml"}})
	is.NoErr(err)
	part.Write([]byte("<invoice/>"))
	is.NoErr(writer.Close())

	req, _ := http.NewRequest("POST", ts.URL+"/sellers/me/emails/a1/invoices/", body)
	req.Header.Add("Content-Type", "multipart/mixed; boundary="+writer.Boundary())
	req.Header.Add("Authorization", "Bearer sometoken")

	resp, err := http.DefaultClient.Do(req)
	is.NoErr(err) // http request failed
	defer resp.Body.Close()

	is.Equal(resp.StatusCode, http.StatusAccepted) // Check status code
	is.True(strings.Contains(resp.Header.Get("Location"), "/invoices/reports/"))
}

func TestPDFRedirect(t *testing.T) {
	is, ts, _ := setupTest(t)
	defer ts.Close()

	req, _ := http.NewRequest("GET", ts.URL+"/sellers/me/emails/a1/invoices/1/", nil)
	req.Header.Add("Accept", "application/pdf")
	req.Header.Add("Authorization", "Bearer sometoken")

	client := &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	resp, err := client.Do(req)
	is.NoErr(err) // http request failed
	defer resp.Body.Close()

	is.Equal(resp.StatusCode, http.StatusFound) // Check status code
	is.True(resp.Header.Get("Location") != "")
}

func newTestRequest(is *is.I, ts *httptest.Server, method, path string, body io.Reader) (*http.Response, string) {
	req, _ := http.NewRequest(method, ts.URL+path, body)
	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("Authorization", "Bearer sometoken")

	resp, err := http.DefaultClient.Do(req)
	is.NoErr(err) // http request failed
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	is.NoErr(err) // failed to read response body

	return resp, string(respBody)
}

func setupTest(t *testing.T) (*is.I, *httptest.Server, *simulator.Simulator) {
	is := is.New(t)
	r := chi.NewRouter()
	ts := httptest.NewServer(r)

	app := simulator.New()
	app.PutResource("sellers/me/", map[string]any{"firstname": "Ada", "lastname": "Lovelace"})
	app.Declare("sellers/me/emails/a1/invoices/", "buyers/me/threads/")

	for i := 1; i <= 5; i++ {
		app.AddMember("sellers/me/emails/a1/invoices/", strings.Repeat("1", i), map[string]any{
			"name":  "Invoice",
			"total": 100.0,
			"read":  false,
		})
	}

	err := RegisterHandlers(context.Background(), r, bytes.NewBufferString(testPolicies), app)
	is.NoErr(err)

	return is, ts, app
}

var testPolicies string = `package greendizer.authz

default allow = false

allow {
    input.token != ""
}
`
