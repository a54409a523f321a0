package fetch

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3 fetches s3://bucket/key URLs. A complete static key pair wins;
// otherwise Anonymous skips signing for public buckets, and without either
// the default AWS credential chain is used.
type S3 struct {
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	Anonymous bool

	once   sync.Once
	client *s3.Client
	err    error
}

func (f *S3) s3Client(ctx context.Context) (*s3.Client, error) {
	f.once.Do(func() {
		opts := []func(*awsconfig.LoadOptions) error{}
		if f.Region != "" {
			opts = append(opts, awsconfig.WithRegion(f.Region))
		}
		switch {
		case f.AccessKey != "" && f.SecretKey != "":
			opts = append(opts, awsconfig.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(f.AccessKey, f.SecretKey, "")))
		case f.Anonymous:
			opts = append(opts, awsconfig.WithCredentialsProvider(aws.AnonymousCredentials{}))
		}

		cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			f.err = fmt.Errorf("load aws config: %w", err)
			return
		}
		f.client = s3.NewFromConfig(cfg, func(o *s3.Options) {
			if f.Endpoint != "" {
				o.BaseEndpoint = aws.String(f.Endpoint)
				o.UsePathStyle = true
			}
		})
	})
	return f.client, f.err
}

func (f *S3) Fetch(ctx context.Context, u *url.URL, w io.Writer, progress Progress) error {
	bucket, key, err := bucketKey(u)
	if err != nil {
		return err
	}
	client, err := f.s3Client(ctx)
	if err != nil {
		return err
	}

	head, err := client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	if err != nil {
		return fmt.Errorf("s3 head %s/%s: %w", bucket, key, err)
	}
	total := int64(-1)
	if head.ContentLength != nil {
		total = *head.ContentLength
	}

	// A single part stream keeps writes sequential so the destination can
	// be a plain io.Writer.
	dl := manager.NewDownloader(client, func(d *manager.Downloader) {
		d.Concurrency = 1
	})
	pw := &progressWriter{ctx: ctx, w: w, total: total, progress: progress}
	progress(0, total)
	if _, err := dl.Download(ctx, &sequentialWriterAt{w: pw}, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("s3 get %s/%s: %w", bucket, key, err)
	}
	return nil
}

// progressWriter reports every write and fails once ctx is done.
type progressWriter struct {
	ctx      context.Context
	w        io.Writer
	received int64
	total    int64
	progress Progress
}

func (p *progressWriter) Write(b []byte) (int, error) {
	if err := p.ctx.Err(); err != nil {
		return 0, err
	}
	n, err := p.w.Write(b)
	p.received += int64(n)
	p.progress(p.received, p.total)
	return n, err
}

// sequentialWriterAt adapts an io.Writer for a downloader that writes parts
// strictly in order.
type sequentialWriterAt struct {
	mu     sync.Mutex
	w      io.Writer
	offset int64
}

func (s *sequentialWriterAt) WriteAt(p []byte, off int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if off != s.offset {
		return 0, fmt.Errorf("out of order write at %d, expected %d", off, s.offset)
	}
	n, err := s.w.Write(p)
	s.offset += int64(n)
	return n, err
}
