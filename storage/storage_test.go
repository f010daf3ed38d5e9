package storage

import (
	"bytes"
	"context"
	"errors"
	"testing"
)

func TestLocalStoreRoundTrip(t *testing.T) {
	s, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	ref, err := s.Put(ctx, "documents/GCX-2025-123456/VAT_CERTIFICATE/vat.pdf", []byte("%PDF-1.4"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if ref != "documents/GCX-2025-123456/VAT_CERTIFICATE/vat.pdf" {
		t.Errorf("ref = %q", ref)
	}
	got, err := s.Get(ctx, ref)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(got, []byte("%PDF-1.4")) {
		t.Errorf("Get = %q", got)
	}

	// Overwrite keeps the latest bytes.
	if _, err := s.Put(ctx, ref, []byte("v2")); err != nil {
		t.Fatal(err)
	}
	got, _ = s.Get(ctx, ref)
	if string(got) != "v2" {
		t.Errorf("after overwrite Get = %q", got)
	}
}

func TestLocalStoreRejectsBadKeys(t *testing.T) {
	s, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"", "/etc/passwd", "../outside", "a/../../b", "a\\b", "."} {
		if _, err := s.Put(context.Background(), key, []byte("x")); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("Put(%q) err = %v, want ErrInvalidKey", key, err)
		}
	}
}

func TestLocalStoreMissing(t *testing.T) {
	s, _ := NewLocalStore(t.TempDir())
	if _, err := s.Get(context.Background(), "reports/none.pdf"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestSafeName(t *testing.T) {
	tests := map[string]string{
		"VAT Cert 2024.pdf":     "VAT_Cert_2024.pdf",
		"../../etc/passwd":      "passwd",
		"C:\\Users\\me\\id.png": "id.png",
		"...":                   "file",
		"résumé.pdf":            "rsum.pdf",
	}
	for in, want := range tests {
		if got := SafeName(in); got != want {
			t.Errorf("SafeName(%q) = %q, want %q", in, got, want)
		}
	}
}
