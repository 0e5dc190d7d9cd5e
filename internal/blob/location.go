// Package blob fetches input documents from local disk or
// object storage (Google Cloud Storage, S3-compatible stores, Azure Blob).
package blob

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/danielzillmann-hue/transformation-agent/internal/common"
)

// Scheme identifies the storage backend of a Location.
type Scheme string

// Supported schemes.
const (
	SchemeFile  Scheme = "file"
	SchemeGCS   Scheme = "gs"
	SchemeS3    Scheme = "s3"
	SchemeAzure Scheme = "az"
)

// Location is a parsed document address.
type Location struct {
	Scheme Scheme
	Bucket string
	Key    string
}

func (l Location) String() string {
	if l.Scheme == SchemeFile {
		return l.Key
	}
	return fmt.Sprintf("%s://%s/%s", l.Scheme, l.Bucket, l.Key)
}

// ParseLocation accepts plain paths, file://, gs://bucket/key, s3://bucket/key,
// az://container/blob and abfss://container@account.dfs.core.windows.net/blob.
func ParseLocation(uri string) (Location, error) {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return Location{}, fmt.Errorf("empty location")
	}
	if !strings.Contains(uri, "://") {
		return Location{Scheme: SchemeFile, Key: uri}, nil
	}

	u, err := url.Parse(uri)
	if err != nil {
		return Location{}, fmt.Errorf("parse location %q: %w", uri, err)
	}

	var loc Location
	switch u.Scheme {
	case "file":
		return Location{Scheme: SchemeFile, Key: u.Host + u.Path}, nil
	case "gs":
		loc = Location{Scheme: SchemeGCS, Bucket: u.Host}
	case "s3":
		loc = Location{Scheme: SchemeS3, Bucket: u.Host}
	case "az":
		loc = Location{Scheme: SchemeAzure, Bucket: u.Host}
	case "abfss":
		if u.User == nil {
			return Location{}, fmt.Errorf("abfss path %q missing container@account component", uri)
		}
		loc = Location{Scheme: SchemeAzure, Bucket: u.User.Username()}
	default:
		return Location{}, fmt.Errorf("%w %q in %q", common.ErrUnsupportedScheme, u.Scheme, uri)
	}

	loc.Key = strings.TrimPrefix(u.Path, "/")
	if loc.Bucket == "" {
		return Location{}, fmt.Errorf("empty bucket in %q", uri)
	}
	if loc.Key == "" {
		return Location{}, fmt.Errorf("empty key in %q", uri)
	}
	return loc, nil
}
