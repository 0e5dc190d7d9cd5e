package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"cloud.google.com/go/storage"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"google.golang.org/api/option"

	"github.com/danielzillmann-hue/transformation-agent/internal/common"
)

var (
	// ErrNotFound is returned when the addressed document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrTooLarge is returned when a document exceeds the fetcher's size cap.
	ErrTooLarge = errors.New("document too large")
)

// DefaultMaxDocumentSize caps a single document. Analysis exports of large
// estates run to tens of megabytes.
const DefaultMaxDocumentSize = 256 << 20

// Options carries credentials for the remote backends. Empty fields fall back
// to each SDK's defaults.
type Options struct {
	GCSCredentialsFile string
	S3Region           string
	S3Endpoint         string
	S3AccessKeyID      string
	S3SecretAccessKey  string
	AzureAccountName   string
	AzureAccountKey    string
	// MaxDocumentSize applies to every scheme. Zero means DefaultMaxDocumentSize.
	MaxDocumentSize int64
}

// OptionsFromEnv reads backend credentials from the conventional variables.
func OptionsFromEnv() Options {
	return Options{
		GCSCredentialsFile: os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),
		S3Region:           os.Getenv("AWS_REGION"),
		S3Endpoint:         os.Getenv("AWS_ENDPOINT_URL"),
		S3AccessKeyID:      os.Getenv("AWS_ACCESS_KEY_ID"),
		S3SecretAccessKey:  os.Getenv("AWS_SECRET_ACCESS_KEY"),
		AzureAccountName:   os.Getenv("AZURE_STORAGE_ACCOUNT"),
		AzureAccountKey:    os.Getenv("AZURE_STORAGE_KEY"),
	}
}

// Fetcher reads whole documents by location.
type Fetcher struct {
	logger *slog.Logger
	opts   Options
}

// NewFetcher creates a fetcher. A nil logger uses the default logger.
func NewFetcher(opts Options, logger *slog.Logger) *Fetcher {
	if opts.MaxDocumentSize <= 0 {
		opts.MaxDocumentSize = DefaultMaxDocumentSize
	}
	return &Fetcher{
		opts:   opts,
		logger: common.LoggerOrDefault(logger),
	}
}

// Fetch returns the contents of the document at uri.
func (f *Fetcher) Fetch(ctx context.Context, uri string) ([]byte, error) {
	loc, err := ParseLocation(uri)
	if err != nil {
		return nil, err
	}

	f.logger.Debug("fetching document", "location", loc.String())

	switch loc.Scheme {
	case SchemeFile:
		return f.fetchFile(loc)
	case SchemeGCS:
		return f.fetchGCS(ctx, loc)
	case SchemeS3:
		return f.fetchS3(ctx, loc)
	case SchemeAzure:
		return f.fetchAzure(ctx, loc)
	default:
		return nil, fmt.Errorf("%w %q", common.ErrUnsupportedScheme, loc.Scheme)
	}
}

func (f *Fetcher) fetchFile(loc Location) ([]byte, error) {
	file, err := os.Open(loc.Key)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, loc)
		}
		return nil, fmt.Errorf("open %s: %w", loc, err)
	}
	defer func() { _ = file.Close() }()

	return f.readAll(file, loc)
}

func (f *Fetcher) fetchGCS(ctx context.Context, loc Location) ([]byte, error) {
	var clientOpts []option.ClientOption
	if f.opts.GCSCredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithAuthCredentialsFile(option.ServiceAccount, f.opts.GCSCredentialsFile))
	}

	client, err := storage.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create GCS client: %w", err)
	}
	defer func() { _ = client.Close() }()

	r, err := client.Bucket(loc.Bucket).Object(loc.Key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, loc)
		}
		return nil, fmt.Errorf("open %s: %w", loc, err)
	}
	defer func() { _ = r.Close() }()

	return f.readAll(r, loc)
}

func (f *Fetcher) fetchS3(ctx context.Context, loc Location) ([]byte, error) {
	region := f.opts.S3Region
	if region == "" {
		region = "us-east-1"
	}

	s3Opts := s3.Options{
		Region: region,
	}
	if f.opts.S3AccessKeyID != "" {
		s3Opts.Credentials = credentials.NewStaticCredentialsProvider(
			f.opts.S3AccessKeyID, f.opts.S3SecretAccessKey, "",
		)
	} else {
		s3Opts.Credentials = aws.AnonymousCredentials{}
	}
	if f.opts.S3Endpoint != "" {
		s3Opts.BaseEndpoint = aws.String(f.opts.S3Endpoint)
		s3Opts.UsePathStyle = true
	}

	client := s3.New(s3Opts)
	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Key),
	})
	if err != nil {
		var noKey *s3types.NoSuchKey
		var noBucket *s3types.NoSuchBucket
		if errors.As(err, &noKey) || errors.As(err, &noBucket) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, loc)
		}
		return nil, fmt.Errorf("get %s: %w", loc, err)
	}
	defer func() { _ = out.Body.Close() }()

	return f.readAll(out.Body, loc)
}

func (f *Fetcher) fetchAzure(ctx context.Context, loc Location) ([]byte, error) {
	if f.opts.AzureAccountName == "" || f.opts.AzureAccountKey == "" {
		return nil, fmt.Errorf("%w: azure account name and key are required for %s", common.ErrMissingConfig, loc)
	}

	cred, err := azblob.NewSharedKeyCredential(f.opts.AzureAccountName, f.opts.AzureAccountKey)
	if err != nil {
		return nil, fmt.Errorf("create shared key credential: %w", err)
	}

	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net", f.opts.AzureAccountName)
	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("create Azure blob client: %w", err)
	}

	resp, err := client.DownloadStream(ctx, loc.Bucket, loc.Key, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, loc)
		}
		return nil, fmt.Errorf("download %s: %w", loc, err)
	}
	defer func() { _ = resp.Body.Close() }()

	return f.readAll(resp.Body, loc)
}

func (f *Fetcher) readAll(r io.Reader, loc Location) ([]byte, error) {
	limit := f.opts.MaxDocumentSize
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", loc, err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrTooLarge, loc, limit)
	}
	return data, nil
}
