package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"

	"cloud.google.com/go/storage"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Backblaze/blazer/b2"
	"google.golang.org/api/option"
)

// GCS fetches gs://bucket/object URLs.
type GCS struct {
	Anonymous       bool
	CredentialsFile string
	Endpoint        string

	once   sync.Once
	client *storage.Client
	err    error
}

func (f *GCS) gcsClient(ctx context.Context) (*storage.Client, error) {
	f.once.Do(func() {
		var opts []option.ClientOption
		switch {
		case f.CredentialsFile != "":
			opts = append(opts, option.WithCredentialsFile(f.CredentialsFile))
		case f.Anonymous:
			opts = append(opts, option.WithoutAuthentication())
		}
		if f.Endpoint != "" {
			opts = append(opts, option.WithEndpoint(f.Endpoint))
		}
		f.client, f.err = storage.NewClient(ctx, opts...)
		if f.err != nil {
			f.err = fmt.Errorf("create gcs client: %w", f.err)
		}
	})
	return f.client, f.err
}

func (f *GCS) Fetch(ctx context.Context, u *url.URL, w io.Writer, progress Progress) error {
	bucket, object, err := bucketKey(u)
	if err != nil {
		return err
	}
	client, err := f.gcsClient(ctx)
	if err != nil {
		return err
	}

	r, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return fmt.Errorf("gcs open %s/%s: %w", bucket, object, err)
	}
	defer r.Close()
	return copyWithProgress(ctx, w, r, r.Attrs.Size, progress)
}

// Azure fetches azblob://account/container/blob URLs from publicly readable
// containers.
type Azure struct {
	// Endpoint overrides https://<account>.blob.core.windows.net/; the
	// account segment is then ignored.
	Endpoint string
}

func (f *Azure) serviceURL(account string) string {
	if f.Endpoint != "" {
		return strings.TrimSuffix(f.Endpoint, "/") + "/"
	}
	return fmt.Sprintf("https://%s.blob.core.windows.net/", account)
}

func (f *Azure) Fetch(ctx context.Context, u *url.URL, w io.Writer, progress Progress) error {
	account, container, blobName, err := azureParts(u)
	if err != nil {
		return err
	}

	client, err := azblob.NewClientWithNoCredential(f.serviceURL(account), nil)
	if err != nil {
		return fmt.Errorf("create azure client: %w", err)
	}
	resp, err := client.DownloadStream(ctx, container, blobName, nil)
	if err != nil {
		return fmt.Errorf("azure download %s/%s: %w", container, blobName, err)
	}
	defer resp.Body.Close()

	total := int64(-1)
	if resp.ContentLength != nil {
		total = *resp.ContentLength
	}
	return copyWithProgress(ctx, w, resp.Body, total, progress)
}

func azureParts(u *url.URL) (account, container, blob string, err error) {
	container, blob, _ = strings.Cut(strings.TrimPrefix(u.Path, "/"), "/")
	if u.Host == "" || container == "" || blob == "" {
		return "", "", "", fmt.Errorf("url %s: expected azblob://account/container/blob", u.Redacted())
	}
	return u.Host, container, blob, nil
}

// B2 fetches b2://bucket/key URLs from Backblaze B2.
type B2 struct {
	Account string
	Key     string

	mu     sync.Mutex
	client *b2.Client
}

func (f *B2) b2Client(ctx context.Context) (*b2.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.client != nil {
		return f.client, nil
	}
	if f.Account == "" || f.Key == "" {
		return nil, errors.New("b2 mirror requires mirror.b2_account and mirror.b2_key")
	}
	c, err := b2.NewClient(ctx, f.Account, f.Key)
	if err != nil {
		return nil, fmt.Errorf("create b2 client: %w", err)
	}
	f.client = c
	return c, nil
}

func (f *B2) Fetch(ctx context.Context, u *url.URL, w io.Writer, progress Progress) error {
	bucketName, key, err := bucketKey(u)
	if err != nil {
		return err
	}
	client, err := f.b2Client(ctx)
	if err != nil {
		return err
	}
	bucket, err := client.Bucket(ctx, bucketName)
	if err != nil {
		return fmt.Errorf("b2 bucket %s: %w", bucketName, err)
	}

	obj := bucket.Object(key)
	total := int64(-1)
	if attrs, err := obj.Attrs(ctx); err == nil {
		total = attrs.Size
	}

	r := obj.NewReader(ctx)
	defer r.Close()
	return copyWithProgress(ctx, w, r, total, progress)
}
