package export

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

func TestAudioName(t *testing.T) {
	tests := map[string]string{
		"a.pdf":            "a.wav",
		"/docs/report.PDF": "report.wav",
		"notes":            "notes.wav",
		"":                 "audio.wav",
	}
	for in, want := range tests {
		if got := AudioName(in); got != want {
			t.Errorf("AudioName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDirExporter(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	loc, err := DirExporter{Dir: dir}.Export(context.Background(), "a.pdf", []byte("RIFF"))
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if loc != filepath.Join(dir, "a.wav") {
		t.Errorf("Export() = %q", loc)
	}
	data, _ := os.ReadFile(loc)
	if string(data) != "RIFF" {
		t.Errorf("wrote %q", data)
	}
}

type fakeS3 struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = in
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, f.err
}

func TestS3Exporter(t *testing.T) {
	fake := &fakeS3{}
	e := &S3Exporter{Client: fake, Bucket: "bucket", Prefix: "narrations"}

	loc, err := e.Export(context.Background(), "b.pdf", []byte("clip"))
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if loc != "s3://bucket/narrations/b.wav" {
		t.Errorf("Export() = %q", loc)
	}
	if aws.ToString(fake.input.Key) != "narrations/b.wav" || string(fake.body) != "clip" {
		t.Errorf("PutObject got key %q body %q", aws.ToString(fake.input.Key), fake.body)
	}

	fake.err = errors.New("access denied")
	if _, err := e.Export(context.Background(), "b.pdf", []byte("clip")); err == nil {
		t.Error("Export() should fail when PutObject fails")
	}
}

func TestParseTarget(t *testing.T) {
	if _, err := ParseTarget(context.Background(), " "); !errors.Is(err, ErrNoTarget) {
		t.Errorf("ParseTarget(blank) error = %v", err)
	}
	e, err := ParseTarget(context.Background(), "/tmp/audio")
	if err != nil {
		t.Fatal(err)
	}
	if d, ok := e.(DirExporter); !ok || d.Dir != "/tmp/audio" {
		t.Errorf("ParseTarget(dir) = %#v", e)
	}
	if _, err := ParseTarget(context.Background(), "s3:///nobucket"); err == nil {
		t.Error("ParseTarget should reject an S3 target without bucket")
	}
}
