// Package googlebooks looks up volume metadata by ISBN against the Google
// Books volumes API.
package googlebooks

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/pilcrowbooks/pilcrow/pkg/config"
	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://www.googleapis.com/books/v1"

	// Responses are small; anything larger than this is not a volumes
	// listing.
	maxBodyBytes = 2 << 20
)

// ErrNoItems is returned (inside a FetchError) when the API answered but had
// no volume for the ISBN.
var ErrNoItems = errors.New("no volumes found for isbn")

// ErrNoVolumeInfo is returned (inside a FetchError) when the first volume
// carries no volumeInfo block.
var ErrNoVolumeInfo = errors.New("malformed volumes response: volume has no volumeInfo")

// FetchError describes a lookup that did not produce a volume. Body holds
// whatever the API sent back so it can be shown to the operator.
type FetchError struct {
	ISBN   string
	Status int
	Body   []byte
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 && e.Status != http.StatusOK {
		return fmt.Sprintf("google books lookup for %s failed with status %d: %v", e.ISBN, e.Status, e.Err)
	}
	return fmt.Sprintf("google books lookup for %s failed: %v", e.ISBN, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

type ImageLinks struct {
	SmallThumbnail *string `json:"smallThumbnail"`
	Thumbnail      *string `json:"thumbnail"`
}

// VolumeInfo is the subset of a volume's metadata the catalog stores. Every
// field is optional in the API.
type VolumeInfo struct {
	Title         *string     `json:"title"`
	Subtitle      *string     `json:"subtitle"`
	Authors       []string    `json:"authors"`
	Publisher     *string     `json:"publisher"`
	PublishedDate *string     `json:"publishedDate"`
	ImageLinks    *ImageLinks `json:"imageLinks"`
	PreviewLink   *string     `json:"previewLink"`
	PageCount     *int        `json:"pageCount"`
}

type Volume struct {
	ID         string      `json:"id"`
	VolumeInfo *VolumeInfo `json:"volumeInfo"`

	// Raw is the full response body the volume was taken from.
	Raw []byte `json:"-"`
}

type volumesResponse struct {
	TotalItems int      `json:"totalItems"`
	Items      []Volume `json:"items"`
}

type Options struct {
	BaseURL           string
	CAFile            string
	Timeout           time.Duration
	RequestsPerSecond float64
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
}

// NewClientFromConfig builds a client from the google_books_* settings.
func NewClientFromConfig(cfg *config.Config) (*Client, error) {
	return NewClient(Options{
		BaseURL:           cfg.GoogleBooksBaseURL,
		CAFile:            cfg.GoogleBooksCAFile,
		Timeout:           cfg.GoogleBooksTimeout,
		RequestsPerSecond: cfg.GoogleBooksRequestsPerSecond,
	})
}

// NewClient returns a client that trusts the system roots plus any
// certificates in opts.CAFile.
func NewClient(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	roots, err := rootPool(opts.CAFile)
	if err != nil {
		return nil, err
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{
		RootCAs:    roots,
		MinVersion: tls.VersionTLS12,
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		baseURL: baseURL,
		limiter: rate.NewLimiter(limit, 1),
	}, nil
}

func rootPool(caFile string) (*x509.CertPool, error) {
	roots, err := x509.SystemCertPool()
	if err != nil || roots == nil {
		roots = x509.NewCertPool()
	}
	if caFile == "" {
		return roots, nil
	}

	pem, err := os.ReadFile(caFile)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read google books ca file %s", caFile)
	}
	if !roots.AppendCertsFromPEM(pem) {
		return nil, errors.Errorf("no certificates found in google books ca file %s", caFile)
	}
	return roots, nil
}

// LookupByISBN returns the first volume matching isbn. Any failure, including
// an empty result, is a *FetchError.
func (c *Client) LookupByISBN(ctx context.Context, isbn string) (*Volume, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &FetchError{ISBN: isbn, Err: errors.WithStack(err)}
	}

	u := fmt.Sprintf("%s/volumes?q=%s&projection=lite", c.baseURL, url.QueryEscape("isbn:"+isbn))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &FetchError{ISBN: isbn, Err: errors.WithStack(err)}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{ISBN: isbn, Err: errors.WithStack(err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &FetchError{ISBN: isbn, Status: resp.StatusCode, Err: errors.WithStack(err)}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{
			ISBN:   isbn,
			Status: resp.StatusCode,
			Body:   body,
			Err:    errors.Errorf("unexpected status code: %d", resp.StatusCode),
		}
	}

	var parsed volumesResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &FetchError{
			ISBN:   isbn,
			Status: resp.StatusCode,
			Body:   body,
			Err:    errors.Wrap(err, "malformed volumes response"),
		}
	}

	if len(parsed.Items) == 0 {
		return nil, &FetchError{ISBN: isbn, Status: resp.StatusCode, Body: body, Err: ErrNoItems}
	}

	volume := parsed.Items[0]
	if volume.VolumeInfo == nil {
		return nil, &FetchError{ISBN: isbn, Status: resp.StatusCode, Body: body, Err: ErrNoVolumeInfo}
	}
	volume.Raw = body
	return &volume, nil
}
