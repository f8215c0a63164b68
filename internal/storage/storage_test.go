package storage

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/vidfriends/videosync/internal/config"
)

type signerStub struct {
	calls int
	err   error
}

func (s *signerStub) Presign(_ context.Context, key string) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return "https://objects.example/" + key + "?sig=" + string(rune('0'+s.calls)), nil
}

func TestCachingSignerCachesResults(t *testing.T) {
	base := &signerStub{}
	signer := NewCachingSigner(base, 8, time.Minute)

	first, err := signer.Presign(context.Background(), "a.mp4")
	if err != nil {
		t.Fatalf("presign: %v", err)
	}
	second, err := signer.Presign(context.Background(), "a.mp4")
	if err != nil {
		t.Fatalf("presign: %v", err)
	}
	if first != second || base.calls != 1 {
		t.Fatalf("expected cached url, got %q and %q after %d calls", first, second, base.calls)
	}

	signer.Purge()
	if _, err := signer.Presign(context.Background(), "a.mp4"); err != nil {
		t.Fatalf("presign: %v", err)
	}
	if base.calls != 2 {
		t.Fatalf("expected purge to force a new signature, calls %d", base.calls)
	}
}

func TestCachingSignerExpires(t *testing.T) {
	base := &signerStub{}
	signer := NewCachingSigner(base, 8, 20*time.Millisecond)

	if _, err := signer.Presign(context.Background(), "a.mp4"); err != nil {
		t.Fatalf("presign: %v", err)
	}
	time.Sleep(60 * time.Millisecond)
	if _, err := signer.Presign(context.Background(), "a.mp4"); err != nil {
		t.Fatalf("presign: %v", err)
	}
	if base.calls != 2 {
		t.Fatalf("expected expired entry to be re-signed, calls %d", base.calls)
	}
}

func TestCachingSignerDoesNotCacheErrors(t *testing.T) {
	base := &signerStub{err: errors.New("no credentials")}
	signer := NewCachingSigner(base, 8, time.Minute)

	for i := 0; i < 2; i++ {
		if _, err := signer.Presign(context.Background(), "a.mp4"); err == nil {
			t.Fatal("expected error")
		}
	}
	if base.calls != 2 {
		t.Fatalf("expected every failure to reach the base signer, calls %d", base.calls)
	}
}

func newTestStorage(prefix string) *S3Storage {
	client := s3.New(s3.Options{
		Region:       "us-east-1",
		BaseEndpoint: aws.String("http://127.0.0.1:9000"),
		UsePathStyle: true,
		Credentials: aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
			return aws.Credentials{AccessKeyID: "test", SecretAccessKey: "test"}, nil
		}),
	})
	return NewS3StorageFromClient(client, config.ObjectStoreConfig{Bucket: "exports", Prefix: prefix, PresignTTL: 5 * time.Minute})
}

func TestS3StoragePresign(t *testing.T) {
	store := newTestStorage("snapshots")

	raw, err := store.Presign(context.Background(), "/clips/a.mp4")
	if err != nil {
		t.Fatalf("presign: %v", err)
	}
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	if u.Host != "127.0.0.1:9000" || u.Path != "/exports/clips/a.mp4" {
		t.Fatalf("unexpected presigned url %s", raw)
	}
	if u.Query().Get("X-Amz-Expires") != "300" || u.Query().Get("X-Amz-Signature") == "" {
		t.Fatalf("expected signed query, got %s", u.RawQuery)
	}

	if _, err := store.Presign(context.Background(), " "); !errors.Is(err, ErrEmptyKey) {
		t.Fatalf("expected ErrEmptyKey, got %v", err)
	}
}

func TestS3StorageObjectKey(t *testing.T) {
	if got := newTestStorage("/snapshots/").ObjectKey("/owner-1/x.json"); got != "snapshots/owner-1/x.json" {
		t.Fatalf("unexpected key %q", got)
	}
	if got := newTestStorage("").ObjectKey("x.json"); got != "x.json" {
		t.Fatalf("unexpected key %q", got)
	}
	if got := newTestStorage("p").ObjectKey("  "); got != "" {
		t.Fatalf("expected empty key, got %q", got)
	}
}

func TestSnapshotName(t *testing.T) {
	at := time.Date(2024, time.March, 5, 14, 7, 9, 0, time.FixedZone("CET", 3600))
	got := SnapshotName("owner-1", at)
	if got != "owner-1/20240305T130709Z.json" {
		t.Fatalf("unexpected snapshot name %q", got)
	}
	if !strings.HasSuffix(got, ".json") {
		t.Fatal("expected json suffix")
	}
}

func TestNewS3StorageRequiresBucket(t *testing.T) {
	if _, err := NewS3Storage(context.Background(), config.ObjectStoreConfig{}); err == nil {
		t.Fatal("expected error without bucket")
	}
}
