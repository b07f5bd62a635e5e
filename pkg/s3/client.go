// Package s3 implements the remote side of a session over an S3-compatible
// bucket. Keys are "/" separated; a directory is a common prefix, optionally
// backed by an empty "name/" marker object.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/quocson95/ferry/pkg/filesys"
)

const (
	sep = "/"
	// DeleteObjects accepts at most this many keys per call
	deleteBatch = 1000
)

// Config describes the bucket behind the remote pane
type Config struct {
	Endpoint  string // empty for AWS
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
}

// objectAPI is the part of *s3.Client the filesystem uses
type objectAPI interface {
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	CopyObject(ctx context.Context, in *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	DeleteObjects(ctx context.Context, in *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

// Client is a filesys.Filesystem over one bucket
type Client struct {
	api    objectAPI
	bucket string
	logger *slog.Logger
}

var _ filesys.Filesystem = (*Client)(nil)

// NewClient creates a new S3 client
func NewClient(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.Bucket == "" || cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("missing S3 configuration")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
		config.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			// Path-style for S3 implementations such as MinIO
			o.UsePathStyle = true
		}
	})
	return newClient(client, cfg.Bucket, logger), nil
}

func newClient(api objectAPI, bucket string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		api:    api,
		bucket: bucket,
		logger: logger.With("transport", "s3", "bucket", bucket),
	}
}

// objectKey maps "/a/b.txt" to "a/b.txt"
func objectKey(path string) string {
	return strings.TrimPrefix(path, sep)
}

// dirPrefix maps "/a" to "a/" and the root to ""
func dirPrefix(path string) string {
	key := strings.Trim(path, sep)
	if key == "" {
		return ""
	}
	return key + sep
}

// pathOf maps a key or prefix back to a pane path
func pathOf(key string) string {
	return sep + strings.TrimSuffix(key, sep)
}

// copySource builds the URL-encoded "bucket/key" of CopyObject
func copySource(bucket, key string) string {
	parts := strings.Split(key, sep)
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return bucket + sep + strings.Join(parts, sep)
}

func (c *Client) Separator() string {
	return sep
}

func (c *Client) Home(ctx context.Context) (string, error) {
	return sep, nil
}

func (c *Client) List(ctx context.Context, dir string) ([]filesys.FileEntry, error) {
	prefix := dirPrefix(dir)
	paginator := s3.NewListObjectsV2Paginator(c.api, &s3.ListObjectsV2Input{
		Bucket:    aws.String(c.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String(sep),
	})

	var files []filesys.FileEntry
	found := prefix == ""
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, wrap("list", dir, err)
		}
		for _, p := range page.CommonPrefixes {
			key := aws.ToString(p.Prefix)
			found = true
			files = append(files, filesys.FileEntry{
				Name: strings.TrimSuffix(strings.TrimPrefix(key, prefix), sep),
				Kind: filesys.KindDirectory,
				Path: pathOf(key),
			})
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			found = true
			if key == prefix {
				// Directory marker
				continue
			}
			files = append(files, filesys.FileEntry{
				Name:       strings.TrimPrefix(key, prefix),
				Kind:       filesys.KindFile,
				Size:       aws.ToInt64(obj.Size),
				ModifiedAt: aws.ToTime(obj.LastModified),
				Path:       pathOf(key),
			})
		}
	}
	if !found {
		return nil, filesys.NewError("list", dir, filesys.KindNotFound, nil)
	}
	return files, nil
}

// head returns the object at key, ok=false when there is none
func (c *Client) head(ctx context.Context, key string) (*s3.HeadObjectOutput, bool, error) {
	out, err := c.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if filesys.KindOf(wrap("head", key, err)) == filesys.KindNotFound {
			return nil, false, nil
		}
		return nil, false, err
	}
	return out, true, nil
}

// keysUnder returns every key below prefix, the marker included
func (c *Client) keysUnder(ctx context.Context, prefix string) ([]string, error) {
	paginator := s3.NewListObjectsV2Paginator(c.api, &s3.ListObjectsV2Input{
		Bucket: aws.String(c.bucket),
		Prefix: aws.String(prefix),
	})
	var keys []string
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	return keys, nil
}

func (c *Client) isDir(ctx context.Context, path string) (bool, error) {
	prefix := dirPrefix(path)
	if prefix == "" {
		return true, nil
	}
	out, err := c.api.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(c.bucket),
		Prefix:  aws.String(prefix),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return false, err
	}
	return len(out.Contents) > 0 || len(out.CommonPrefixes) > 0, nil
}

func (c *Client) exists(ctx context.Context, path string) (bool, error) {
	if _, ok, err := c.head(ctx, objectKey(path)); err != nil || ok {
		return ok, err
	}
	return c.isDir(ctx, path)
}

func (c *Client) Stat(ctx context.Context, path string) (filesys.Info, error) {
	out, ok, err := c.head(ctx, objectKey(path))
	if err != nil {
		return filesys.Info{}, wrap("stat", path, err)
	}
	if ok {
		return filesys.Info{
			Size:       aws.ToInt64(out.ContentLength),
			ModifiedAt: aws.ToTime(out.LastModified),
			Kind:       filesys.KindFile,
		}, nil
	}
	dir, err := c.isDir(ctx, path)
	if err != nil {
		return filesys.Info{}, wrap("stat", path, err)
	}
	if !dir {
		return filesys.Info{}, filesys.NewError("stat", path, filesys.KindNotFound, nil)
	}
	return filesys.Info{Kind: filesys.KindDirectory}, nil
}

func (c *Client) OpenReader(ctx context.Context, path string) (io.ReadCloser, error) {
	out, err := c.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(objectKey(path)),
	})
	if err != nil {
		return nil, wrap("open", path, err)
	}
	return out.Body, nil
}

// objectWriter spools to a temp file and uploads on Close
type objectWriter struct {
	ctx  context.Context
	c    *Client
	path string
	tmp  *os.File
	done bool
}

func (c *Client) CreateWriter(ctx context.Context, path string) (io.WriteCloser, error) {
	tmp, err := os.CreateTemp("", "ferry-upload-*")
	if err != nil {
		return nil, filesys.Wrap("create", path, err)
	}
	return &objectWriter{ctx: ctx, c: c, path: path, tmp: tmp}, nil
}

func (w *objectWriter) Write(p []byte) (int, error) {
	return w.tmp.Write(p)
}

func (w *objectWriter) cleanup() {
	w.done = true
	w.tmp.Close()
	os.Remove(w.tmp.Name())
}

func (w *objectWriter) Close() error {
	if w.done {
		return nil
	}
	defer w.cleanup()

	size, err := w.tmp.Seek(0, io.SeekCurrent)
	if err != nil {
		return filesys.Wrap("upload", w.path, err)
	}
	if _, err := w.tmp.Seek(0, io.SeekStart); err != nil {
		return filesys.Wrap("upload", w.path, err)
	}
	_, err = w.c.api.PutObject(w.ctx, &s3.PutObjectInput{
		Bucket:        aws.String(w.c.bucket),
		Key:           aws.String(objectKey(w.path)),
		Body:          w.tmp,
		ContentLength: aws.Int64(size),
	})
	return wrap("upload", w.path, err)
}

// Abort drops the spooled data without uploading
func (w *objectWriter) Abort() error {
	if !w.done {
		w.cleanup()
	}
	return nil
}

// Rename copies then deletes. Directories are renamed object by object.
func (c *Client) Rename(ctx context.Context, path, newName string) error {
	target := filesys.Join(sep, filesys.Parent(sep, path), newName)
	taken, err := c.exists(ctx, target)
	if err != nil {
		return wrap("rename", target, err)
	}
	if taken {
		return filesys.NewError("rename", target, filesys.KindConflict, nil)
	}

	if _, ok, err := c.head(ctx, objectKey(path)); err != nil {
		return wrap("rename", path, err)
	} else if ok {
		return wrap("rename", path, c.move(ctx, objectKey(path), objectKey(target)))
	}

	from, to := dirPrefix(path), dirPrefix(target)
	keys, err := c.keysUnder(ctx, from)
	if err != nil {
		return wrap("rename", path, err)
	}
	if len(keys) == 0 {
		return filesys.NewError("rename", path, filesys.KindNotFound, nil)
	}
	for _, key := range keys {
		if err := c.move(ctx, key, to+strings.TrimPrefix(key, from)); err != nil {
			return wrap("rename", pathOf(key), err)
		}
	}
	return nil
}

func (c *Client) move(ctx context.Context, from, to string) error {
	_, err := c.api.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(c.bucket),
		CopySource: aws.String(copySource(c.bucket, from)),
		Key:        aws.String(to),
	})
	if err != nil {
		return err
	}
	_, err = c.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(from),
	})
	return err
}

// Mkdir writes an empty "name/" marker so the directory lists while empty
func (c *Client) Mkdir(ctx context.Context, dir, name string) error {
	path := filesys.Join(sep, dir, name)
	taken, err := c.exists(ctx, path)
	if err != nil {
		return wrap("mkdir", path, err)
	}
	if taken {
		return filesys.NewError("mkdir", path, filesys.KindConflict, nil)
	}
	_, err = c.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(dirPrefix(path)),
		Body:          strings.NewReader(""),
		ContentLength: aws.Int64(0),
	})
	return wrap("mkdir", path, err)
}

func (c *Client) Delete(ctx context.Context, path string, recursive bool) error {
	key := objectKey(path)
	if _, ok, err := c.head(ctx, key); err != nil {
		return wrap("delete", path, err)
	} else if ok {
		_, err := c.api.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(c.bucket),
			Key:    aws.String(key),
		})
		return wrap("delete", path, err)
	}

	prefix := dirPrefix(path)
	if prefix == "" {
		return filesys.NewError("delete", path, filesys.KindPermission, errors.New("refusing to empty the bucket"))
	}
	keys, err := c.keysUnder(ctx, prefix)
	if err != nil {
		return wrap("delete", path, err)
	}
	if len(keys) == 0 {
		return filesys.NewError("delete", path, filesys.KindNotFound, nil)
	}
	if !recursive && (len(keys) > 1 || keys[0] != prefix) {
		return filesys.NewError("delete", path, filesys.KindTransport, errors.New("directory not empty"))
	}

	for start := 0; start < len(keys); start += deleteBatch {
		end := min(start+deleteBatch, len(keys))
		ids := make([]types.ObjectIdentifier, 0, end-start)
		for _, k := range keys[start:end] {
			ids = append(ids, types.ObjectIdentifier{Key: aws.String(k)})
		}
		out, err := c.api.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(c.bucket),
			Delete: &types.Delete{Objects: ids, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return wrap("delete", path, err)
		}
		if len(out.Errors) > 0 {
			first := out.Errors[0]
			c.logger.Error("failed to delete objects", "path", path, "count", len(out.Errors))
			return wrap("delete", pathOf(aws.ToString(first.Key)), &smithy.GenericAPIError{
				Code:    aws.ToString(first.Code),
				Message: aws.ToString(first.Message),
			})
		}
	}
	c.logger.Info("deleted prefix", "path", path, "objects", len(keys))
	return nil
}

// wrap classifies S3 API and HTTP errors before falling back to filesys.Wrap
func wrap(op, path string, err error) error {
	if err == nil {
		return nil
	}
	var fe *filesys.Error
	if errors.As(err, &fe) {
		return err
	}

	var noKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noKey) || errors.As(err, &notFound) {
		return filesys.NewError(op, path, filesys.KindNotFound, err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound", "NoSuchBucket":
			return filesys.NewError(op, path, filesys.KindNotFound, err)
		case "AccessDenied", "Forbidden", "InvalidAccessKeyId", "SignatureDoesNotMatch", "AllAccessDisabled":
			return filesys.NewError(op, path, filesys.KindPermission, err)
		case "EntityTooLarge", "QuotaExceeded":
			return filesys.NewError(op, path, filesys.KindDiskFull, err)
		}
	}

	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.HTTPStatusCode() {
		case http.StatusNotFound:
			return filesys.NewError(op, path, filesys.KindNotFound, err)
		case http.StatusForbidden, http.StatusUnauthorized:
			return filesys.NewError(op, path, filesys.KindPermission, err)
		}
	}
	return filesys.Wrap(op, path, err)
}
