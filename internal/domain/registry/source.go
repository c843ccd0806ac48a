package registry

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Format is the tabular encoding of a registry source.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatYAML Format = "yaml"
	FormatXLSX Format = "xlsx"
)

// FormatFromName infers the format from a file name or object key.
// Unknown extensions are treated as CSV.
func FormatFromName(name string) Format {
	switch strings.ToLower(path.Ext(name)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".xlsx":
		return FormatXLSX
	default:
		return FormatCSV
	}
}

// Source is an external registry data source. The engine never sees the
// storage format; sources are decoded by the Loader.
type Source interface {
	Name() string
	Format() Format
	Open(ctx context.Context) (io.ReadCloser, error)
}

// FileSource reads a registry from the local filesystem.
type FileSource struct {
	Path string
}

func (f FileSource) Name() string   { return f.Path }
func (f FileSource) Format() Format { return FormatFromName(f.Path) }

func (f FileSource) Open(_ context.Context) (io.ReadCloser, error) {
	return os.Open(filepath.Clean(f.Path))
}

// S3API is the subset of the S3 client used to fetch registry objects.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source reads a registry object from an S3 bucket.
type S3Source struct {
	Client S3API
	Bucket string
	Key    string
}

func (s S3Source) Name() string   { return "s3://" + s.Bucket + "/" + s.Key }
func (s S3Source) Format() Format { return FormatFromName(s.Key) }

func (s S3Source) Open(ctx context.Context) (io.ReadCloser, error) {
	if s.Client == nil {
		return nil, fmt.Errorf("s3 source %s: no client configured", s.Name())
	}
	out, err := s.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.Key),
	})
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", s.Name(), err)
	}
	return out.Body, nil
}

// IsS3Location reports whether location uses the s3:// scheme.
func IsS3Location(location string) bool {
	return strings.HasPrefix(location, "s3://")
}

// SourceFromLocation resolves a configured location into a Source. Locations
// are either a filesystem path or s3://bucket/key. client may be nil when no
// S3 locations are configured.
func SourceFromLocation(location string, client S3API) (Source, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return nil, fmt.Errorf("empty registry location")
	}
	if !IsS3Location(location) {
		return FileSource{Path: location}, nil
	}
	rest := strings.TrimPrefix(location, "s3://")
	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return nil, fmt.Errorf("invalid s3 location %q: want s3://bucket/key", location)
	}
	return S3Source{Client: client, Bucket: bucket, Key: key}, nil
}
