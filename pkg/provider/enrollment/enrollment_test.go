package enrollment

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestEnrollments(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/students/kim@example.edu/enrollments" {
				t.Errorf("unexpected path %q", r.URL.Path)
			}
			if r.Header.Get("X-API-Key") != "secret" {
				t.Errorf("expected api key header, got %q", r.Header.Get("X-API-Key"))
			}
			w.Write([]byte(`{"courses":[{"coursename":"Data Analytics"}]}`))
		}))
		defer srv.Close()

		c, err := NewHTTPClient(srv.URL, "secret")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		raw, err := c.Enrollments(context.Background(), "kim@example.edu")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(raw) == 0 {
			t.Fatal("expected non-empty payload")
		}
	})

	t.Run("email is path-escaped", func(t *testing.T) {
		var gotPath string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.EscapedPath()
			w.Write([]byte(`{}`))
		}))
		defer srv.Close()

		c, _ := NewHTTPClient(srv.URL, "")
		if _, err := c.Enrollments(context.Background(), "a/b@example.edu"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if gotPath != "/students/a%2Fb@example.edu/enrollments" {
			t.Errorf("unexpected escaped path %q", gotPath)
		}
	})

	t.Run("not found", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.NotFound(w, r)
		}))
		defer srv.Close()

		c, _ := NewHTTPClient(srv.URL, "")
		_, err := c.Enrollments(context.Background(), "ghost@example.edu")
		if !errors.Is(err, ErrStudentNotFound) {
			t.Fatalf("expected ErrStudentNotFound, got %v", err)
		}
	})

	t.Run("vendor error status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		c, _ := NewHTTPClient(srv.URL, "")
		if _, err := c.Enrollments(context.Background(), "kim@example.edu"); err == nil {
			t.Fatal("expected error for 502")
		}
	})

	t.Run("invalid JSON", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"courses": [`))
		}))
		defer srv.Close()

		c, _ := NewHTTPClient(srv.URL, "")
		if _, err := c.Enrollments(context.Background(), "kim@example.edu"); err == nil {
			t.Fatal("expected error for invalid JSON")
		}
	})

	t.Run("empty email", func(t *testing.T) {
		c, _ := NewHTTPClient("http://localhost", "")
		if _, err := c.Enrollments(context.Background(), ""); err == nil {
			t.Fatal("expected error for empty email")
		}
	})
}

func TestNewHTTPClient_RequiresBaseURL(t *testing.T) {
	if _, err := NewHTTPClient("", "key"); err == nil {
		t.Fatal("expected error for empty base URL")
	}
}
