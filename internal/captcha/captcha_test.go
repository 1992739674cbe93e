package captcha

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func newServer(t *testing.T, status int, body string) (*httptest.Server, *url.Values) {
	t.Helper()
	seen := &url.Values{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm: %v", err)
		}
		*seen = r.PostForm
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, seen
}

func TestRecaptchaAccepts(t *testing.T) {
	srv, seen := newServer(t, http.StatusOK, `{"success": true, "hostname": "localhost"}`)
	v := &Recaptcha{Secret: "s3cret", Endpoint: srv.URL, Client: srv.Client()}

	if err := v.Verify(context.Background(), "tok", "10.0.0.1"); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if seen.Get("secret") != "s3cret" || seen.Get("response") != "tok" || seen.Get("remoteip") != "10.0.0.1" {
		t.Fatalf("form = %v", *seen)
	}
}

func TestRecaptchaRejects(t *testing.T) {
	srv, _ := newServer(t, http.StatusOK, `{"success": false, "error-codes": ["invalid-input-response"]}`)
	v := &Recaptcha{Secret: "s", Endpoint: srv.URL, Client: srv.Client()}
	if err := v.Verify(context.Background(), "tok", ""); !errors.Is(err, ErrRejected) {
		t.Fatalf("got %v, want ErrRejected", err)
	}
}

func TestRecaptchaUnavailable(t *testing.T) {
	srv, _ := newServer(t, http.StatusBadGateway, `oops`)
	v := &Recaptcha{Secret: "s", Endpoint: srv.URL, Client: srv.Client()}
	if err := v.Verify(context.Background(), "tok", ""); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("got %v, want ErrUnavailable", err)
	}

	bad, _ := newServer(t, http.StatusOK, `not json`)
	v.Endpoint = bad.URL
	if err := v.Verify(context.Background(), "tok", ""); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("got %v, want ErrUnavailable", err)
	}
}

func TestMissingToken(t *testing.T) {
	v := &Recaptcha{Secret: "s", Endpoint: "http://127.0.0.1:1"}
	if err := v.Verify(context.Background(), "  ", ""); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("got %v", err)
	}
}

func TestNewWithoutSecretIsDisabled(t *testing.T) {
	v := New("")
	if _, ok := v.(Disabled); !ok {
		t.Fatalf("New(\"\") = %T", v)
	}
	if err := v.Verify(context.Background(), "", ""); err != nil {
		t.Fatal(err)
	}
	if _, ok := New("x").(*Recaptcha); !ok {
		t.Fatal("New with secret should verify")
	}
}
