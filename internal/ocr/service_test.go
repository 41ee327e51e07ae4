package ocr

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func TestNormalize(t *testing.T) {
	got := Normalize([]string{"  ROAD Closed ", "", "  ", "Exp:040917"})
	want := []string{"road closed", "exp:040917"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestStatic(t *testing.T) {
	s := NewStatic("fallback")
	s.Set([]byte("image-a"), "stop")

	ctx := context.Background()
	got, err := s.DetectText(ctx, []byte("image-a"))
	if err != nil {
		t.Fatalf("DetectText failed: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"stop"}) {
		t.Errorf("known image: got %q", got)
	}

	got, err = s.DetectText(ctx, []byte("image-b"))
	if err != nil {
		t.Fatalf("DetectText failed: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"fallback"}) {
		t.Errorf("unknown image: got %q", got)
	}

	if s.Calls() != 2 {
		t.Errorf("Calls: got %d, want 2", s.Calls())
	}

	boom := errors.New("boom")
	s.Err = boom
	if _, err := s.DetectText(ctx, []byte("image-a")); !errors.Is(err, boom) {
		t.Errorf("got %v, want wrapped boom", err)
	}
}

func TestFunc(t *testing.T) {
	var svc Service = Func(func(ctx context.Context, image []byte) ([]string, error) {
		return []string{string(image)}, nil
	})
	got, err := svc.DetectText(context.Background(), []byte("x"))
	if err != nil || !reflect.DeepEqual(got, []string{"x"}) {
		t.Errorf("got %q, %v", got, err)
	}
}
