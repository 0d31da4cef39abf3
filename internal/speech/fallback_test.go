package speech

import (
	"context"
	"errors"
	"testing"
)

type brokenEngine struct {
	name        string
	validateErr error
	calls       int
}

func (b *brokenEngine) Name() string { return b.name }
func (b *brokenEngine) Validate() error { return b.validateErr }

func (b *brokenEngine) Synthesize(context.Context, string) ([]byte, error) {
	b.calls++
	return nil, errors.New("exit status 1")
}

func TestFallbackSwitchesAfterFailures(t *testing.T) {
	primary := &brokenEngine{name: "piper"}
	secondary := NewMock()
	f := NewFallback(primary, secondary, 2)

	if _, err := f.Synthesize(context.Background(), "one"); err == nil {
		t.Fatal("expected the first failure to be returned")
	}
	if f.Name() != "piper" {
		t.Fatalf("Name() = %q after one failure, want piper", f.Name())
	}

	clip, err := f.Synthesize(context.Background(), "two")
	if err != nil {
		t.Fatalf("expected fallback to succeed, got %v", err)
	}
	if len(clip) == 0 {
		t.Fatal("expected a clip from the fallback engine")
	}
	if f.Name() != "mock" {
		t.Fatalf("Name() = %q, want mock", f.Name())
	}

	if _, err := f.Synthesize(context.Background(), "three"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if primary.calls != 2 {
		t.Errorf("primary called %d times, want 2", primary.calls)
	}
	if got := len(secondary.Calls()); got != 2 {
		t.Errorf("fallback called %d times, want 2", got)
	}
}

func TestFallbackValidate(t *testing.T) {
	tests := []struct {
		name     string
		primary  error
		fallback error
		wantErr  bool
		wantName string
	}{
		{"primary ok", nil, nil, false, "piper"},
		{"primary missing", errors.New("piper not found"), nil, false, "espeak"},
		{"both missing", errors.New("piper not found"), errors.New("espeak not found"), true, "piper"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFallback(
				&brokenEngine{name: "piper", validateErr: tt.primary},
				&brokenEngine{name: "espeak", validateErr: tt.fallback},
				3,
			)
			err := f.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if f.Name() != tt.wantName {
				t.Errorf("Name() = %q, want %q", f.Name(), tt.wantName)
			}
		})
	}
}
