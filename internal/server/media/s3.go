package media

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Options configures the object store holding uploaded media.
type S3Options struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	// CacheDir receives downloaded objects.
	CacheDir string
}

type objectGetter interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) objectGetter {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// S3Resolver downloads referenced objects into a local cache so publishers
// keep receiving plain file paths. Objects already cached are not fetched
// again.
type S3Resolver struct {
	opts   S3Options
	client objectGetter
}

func NewS3Resolver(ctx context.Context, opts S3Options) (*S3Resolver, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(opts.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			opts.AccessKey,
			opts.SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Resolver{opts: opts, client: client}, nil
}

func (r *S3Resolver) Resolve(ctx context.Context, refs []string) ([]string, error) {
	out := make([]string, 0, len(refs))
	for _, ref := range refs {
		key, err := cleanRef(ref)
		if err != nil {
			return nil, err
		}
		p, err := r.fetch(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("media %s: %w", ref, err)
		}
		out = append(out, p)
	}
	return out, nil
}

// cachePath keeps the object's base name so content-type fallbacks on the
// extension still work.
func (r *S3Resolver) cachePath(key string) string {
	sum := sha256.Sum256([]byte(r.opts.Bucket + "/" + key))
	return filepath.Join(r.opts.CacheDir, hex.EncodeToString(sum[:8]), path.Base(key))
}

func (r *S3Resolver) fetch(ctx context.Context, key string) (string, error) {
	dst := r.cachePath(key)
	if _, err := os.Stat(dst); err == nil {
		return dst, nil
	}

	obj, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.opts.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", err
	}
	defer obj.Body.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o700); err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".download-*")
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(tmp, obj.Body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return dst, nil
}
