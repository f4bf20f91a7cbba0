package storage

import (
	"context"
	"testing"
	"time"
)

func TestNewS3Storage_Defaults(t *testing.T) {
	store, err := NewS3Storage(S3Config{
		Bucket: "outputs",
		Region: "eu-west-1",
	})
	if err != nil {
		t.Fatalf("NewS3Storage() error = %v", err)
	}

	if store.signedTTL != 24*time.Hour {
		t.Errorf("signedTTL = %s, want 24h", store.signedTTL)
	}
	if store.baseBackoff != 1*time.Second {
		t.Errorf("baseBackoff = %s, want 1s", store.baseBackoff)
	}
}

func TestS3Storage_ObjectURL_Public(t *testing.T) {
	t.Run("AWS host form", func(t *testing.T) {
		store := &S3Storage{
			bucket:     "outputs",
			region:     "eu-west-1",
			publicURLs: true,
		}

		url, err := store.ObjectURL(context.Background(), "u1/j1-final.mp4")
		if err != nil {
			t.Fatalf("ObjectURL() error = %v", err)
		}
		want := "https://outputs.s3.eu-west-1.amazonaws.com/u1/j1-final.mp4"
		if url != want {
			t.Errorf("ObjectURL() = %s, want %s", url, want)
		}
	})

	t.Run("custom endpoint form", func(t *testing.T) {
		store := &S3Storage{
			bucket:     "outputs",
			endpoint:   "http://minio:9000",
			publicURLs: true,
		}

		url, err := store.ObjectURL(context.Background(), "u1/j1-final.mp4")
		if err != nil {
			t.Fatalf("ObjectURL() error = %v", err)
		}
		want := "http://minio:9000/outputs/u1/j1-final.mp4"
		if url != want {
			t.Errorf("ObjectURL() = %s, want %s", url, want)
		}
	})
}

func TestS3Storage_ObjectURL_Presigned(t *testing.T) {
	store, err := NewS3Storage(S3Config{
		Bucket:          "outputs",
		Region:          "eu-west-1",
		AccessKeyID:     "test-key",
		SecretAccessKey: "test-secret",
		SignedURLTTL:    time.Hour,
	})
	if err != nil {
		t.Fatalf("NewS3Storage() error = %v", err)
	}

	// Presigning is a local signature computation, no network involved.
	url, err := store.ObjectURL(context.Background(), "u1/j1-final.mp4")
	if err != nil {
		t.Fatalf("ObjectURL() error = %v", err)
	}
	if url == "" {
		t.Error("expected a presigned URL")
	}
}
