// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package retrieval

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"

	"github.com/cardinalhq/udal-cwd/internal/catalog"
)

const defaultRegion = "us-east-1"

// S3Option configures NewS3Fetcher.
type S3Option func(*s3Settings)

type s3Settings struct {
	accessKeyID     string
	secretAccessKey string
	defaultChain    bool
	sessionName     string
	fetcherOpts     []FetcherOption
}

// WithStaticCredentials signs requests with a fixed key pair.
func WithStaticCredentials(accessKeyID, secretAccessKey string) S3Option {
	return func(s *s3Settings) {
		s.accessKeyID = accessKeyID
		s.secretAccessKey = secretAccessKey
	}
}

// WithDefaultCredentials uses the SDK's default credential chain instead of
// anonymous requests.
func WithDefaultCredentials() S3Option {
	return func(s *s3Settings) {
		s.defaultChain = true
	}
}

// WithAssumeRoleSessionName names sessions created for sources with a role.
func WithAssumeRoleSessionName(name string) S3Option {
	return func(s *s3Settings) {
		s.sessionName = name
	}
}

// WithFetcherOptions passes options through to the underlying fetcher.
func WithFetcherOptions(opts ...FetcherOption) S3Option {
	return func(s *s3Settings) {
		s.fetcherOpts = append(s.fetcherOpts, opts...)
	}
}

// NewS3Fetcher serves datasets from their S3 compatible sources. Requests are
// anonymous unless credentials are configured or the source names a role.
func NewS3Fetcher(ctx context.Context, cat *catalog.Catalog, opts ...S3Option) (*CatalogFetcher, error) {
	settings := s3Settings{sessionName: "udal-cwd"}
	for _, o := range opts {
		o(&settings)
	}

	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	otelaws.AppendMiddlewares(&cfg.APIOptions)

	switch {
	case settings.accessKeyID != "":
		cfg.Credentials = credentials.NewStaticCredentialsProvider(settings.accessKeyID, settings.secretAccessKey, "")
	case !settings.defaultChain:
		cfg.Credentials = aws.AnonymousCredentials{}
	}

	m := &s3Manager{
		baseCfg:     cfg,
		sessionName: settings.sessionName,
		providers:   map[string]aws.CredentialsProvider{},
	}
	return NewFetcher(cat, m.open, settings.fetcherOpts...), nil
}

type s3Manager struct {
	baseCfg     aws.Config
	sessionName string

	sync.Mutex
	providers map[string]aws.CredentialsProvider
}

func (m *s3Manager) credentialsFor(role string) aws.CredentialsProvider {
	if role == "" {
		return m.baseCfg.Credentials
	}
	m.Lock()
	defer m.Unlock()
	if p, ok := m.providers[role]; ok {
		return p
	}
	p := aws.NewCredentialsCache(stscreds.NewAssumeRoleProvider(sts.NewFromConfig(m.baseCfg), role,
		func(o *stscreds.AssumeRoleOptions) {
			o.RoleSessionName = m.sessionName
		}))
	m.providers[role] = p
	return p
}

func (m *s3Manager) open(_ context.Context, ds catalog.Dataset) (ObjectStore, error) {
	src := ds.Source
	cfg := m.baseCfg.Copy()
	cfg.Region = src.Region
	if cfg.Region == "" {
		cfg.Region = defaultRegion
	}
	cfg.Credentials = m.credentialsFor(src.Role)
	if src.InsecureTLS {
		tr := http.DefaultTransport.(*http.Transport).Clone()
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		cfg.HTTPClient = &http.Client{Transport: tr}
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if src.Endpoint != "" {
			o.BaseEndpoint = aws.String(src.Endpoint)
		}
		o.UsePathStyle = src.UsePathStyle
	})
	return &s3Store{
		client: client,
		bucket: src.Bucket,
		prefix: strings.Trim(src.Prefix, "/"),
	}, nil
}

type s3Store struct {
	client *s3.Client
	bucket string
	prefix string
}

func (s *s3Store) key(rel string) string {
	if s.prefix == "" {
		return rel
	}
	return s.prefix + "/" + rel
}

func (s *s3Store) ListIndexParts(ctx context.Context) ([]string, error) {
	listPrefix := s.key(IndexPartPrefix)
	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.bucket),
		Prefix:    aws.String(listPrefix),
		Delimiter: aws.String("/"),
	})

	var keys []string
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list s3://%s/%s: %w", s.bucket, listPrefix, err)
		}
		for _, obj := range page.Contents {
			k := aws.ToString(obj.Key)
			if strings.HasSuffix(k, "/") {
				continue
			}
			keys = append(keys, path.Base(k))
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *s3Store) Download(ctx context.Context, key, dst string) (int64, error) {
	f, err := os.Create(dst)
	if err != nil {
		return 0, err
	}

	downloader := manager.NewDownloader(s.client)
	size, err := downloader.Download(ctx, f, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(key)),
	})
	cerr := f.Close()
	if err != nil {
		if s3ErrorIs404(err) {
			return 0, fmt.Errorf("s3://%s/%s: %w", s.bucket, s.key(key), ErrNotFound)
		}
		return 0, fmt.Errorf("s3://%s/%s: %w", s.bucket, s.key(key), err)
	}
	return size, cerr
}

func s3ErrorIs404(err error) bool {
	var noKeyErr *types.NoSuchKey
	if errors.As(err, &noKeyErr) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}
