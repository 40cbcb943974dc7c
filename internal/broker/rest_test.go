package broker

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fakeSettings struct {
	url string
}

func (f *fakeSettings) Get(ctx context.Context, name string) (*Settings, error) {
	return &Settings{Name: name, RestURL: f.url, Username: "u", Password: "p"}, nil
}

func TestSendJSONRecord(t *testing.T) {
	var gotPath, gotContentType string
	var gotBody restRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotContentType = r.Header.Get("Content-Type")
		raw, _ := io.ReadAll(r.Body)
		json.Unmarshal(raw, &gotBody)
		w.Write([]byte(`{"offsets":[{"partition":0,"offset":42}]}`))
	}))
	defer srv.Close()

	p := NewRESTProducer(&fakeSettings{url: srv.URL}, 5*time.Second)
	resp, err := p.Send(context.Background(), "main", "orders", "SO-001",
		map[string]any{"id": "SO-001"}, nil, false)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if gotPath != "/topics/orders" {
		t.Errorf("expected /topics/orders, got %s", gotPath)
	}
	if gotContentType != contentTypeJSON {
		t.Errorf("expected json content type, got %s", gotContentType)
	}
	if len(gotBody.Records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(gotBody.Records))
	}
	if gotBody.Records[0].Key != "SO-001" {
		t.Errorf("expected key SO-001, got %v", gotBody.Records[0].Key)
	}
	if resp == "" {
		t.Error("expected broker response captured")
	}
}

func TestSendStructuredBinaryRecord(t *testing.T) {
	var gotContentType string
	var gotBody restRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		raw, _ := io.ReadAll(r.Body)
		json.Unmarshal(raw, &gotBody)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	proto := []byte{0x08, 0x96, 0x01}
	p := NewRESTProducer(&fakeSettings{url: srv.URL}, 5*time.Second)
	_, err := p.Send(context.Background(), "main", "orders", "XYZ",
		map[string]any{"id": "XYZ"}, proto, true)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if gotContentType != contentTypeBinary {
		t.Errorf("expected binary content type, got %s", gotContentType)
	}
	wantValue := base64.StdEncoding.EncodeToString(proto)
	if gotBody.Records[0].Value != wantValue {
		t.Errorf("expected base64 proto value, got %v", gotBody.Records[0].Value)
	}
	wantKey := base64.StdEncoding.EncodeToString([]byte("XYZ"))
	if gotBody.Records[0].Key != wantKey {
		t.Errorf("expected base64 key, got %v", gotBody.Records[0].Key)
	}
}

func TestSendNon2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(500)
		w.Write([]byte(`{"error_code":50002}`))
	}))
	defer srv.Close()

	p := NewRESTProducer(&fakeSettings{url: srv.URL}, 5*time.Second)
	_, err := p.Send(context.Background(), "main", "orders", "", map[string]any{}, nil, false)
	if err == nil {
		t.Fatal("expected error for HTTP 500")
	}
}

func TestSendNoKeyOmitsKey(t *testing.T) {
	var gotBody restRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		json.Unmarshal(raw, &gotBody)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	p := NewRESTProducer(&fakeSettings{url: srv.URL}, 5*time.Second)
	if _, err := p.Send(context.Background(), "main", "orders", "", map[string]any{"a": 1}, nil, false); err != nil {
		t.Fatalf("send: %v", err)
	}
	if gotBody.Records[0].Key != nil {
		t.Errorf("expected no key, got %v", gotBody.Records[0].Key)
	}
}
