package ipfs

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"

	clierr "github.com/ggonzalez94/nftmp-cli/internal/errors"
	"github.com/ggonzalez94/nftmp-cli/internal/httpx"
)

const (
	DefaultAPIURL  = "https://ipfs.infura.io:5001"
	DefaultGateway = "https://ipfs.io/ipfs/"

	EnvProjectID     = "NFTMP_IPFS_PROJECT_ID"
	EnvProjectSecret = "NFTMP_IPFS_PROJECT_SECRET"

	scheme = "ipfs://"
)

// Client pins content through the /api/v0/add endpoint of an IPFS node or pinning
// service. Project credentials are sent as basic auth when set.
type Client struct {
	http      *httpx.Client
	apiURL    string
	projectID string
	secret    string
}

func New(httpClient *httpx.Client, apiURL, projectID, secret string) *Client {
	apiURL = strings.TrimRight(strings.TrimSpace(apiURL), "/")
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	return &Client{
		http:      httpClient,
		apiURL:    apiURL,
		projectID: strings.TrimSpace(projectID),
		secret:    strings.TrimSpace(secret),
	}
}

// UploadFile pins a local file and returns its ipfs:// URI.
func (c *Client) UploadFile(ctx context.Context, path string) (string, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return "", clierr.Wrap(clierr.CodeUsage, "read upload file", err)
	}
	return c.add(ctx, filepath.Base(path), buf)
}

// UploadJSON pins doc as a JSON document and returns its ipfs:// URI.
func (c *Client) UploadJSON(ctx context.Context, doc any) (string, error) {
	buf, err := json.Marshal(doc)
	if err != nil {
		return "", clierr.Wrap(clierr.CodeInternal, "encode metadata document", err)
	}
	return c.add(ctx, "metadata.json", buf)
}

func (c *Client) add(ctx context.Context, name string, content []byte) (string, error) {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("file", name)
	if err != nil {
		return "", clierr.Wrap(clierr.CodeInternal, "build upload form", err)
	}
	if _, err := part.Write(content); err != nil {
		return "", clierr.Wrap(clierr.CodeInternal, "build upload form", err)
	}
	if err := form.Close(); err != nil {
		return "", clierr.Wrap(clierr.CodeInternal, "build upload form", err)
	}
	payload := body.Bytes()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/api/v0/add?pin=true", bytes.NewReader(payload))
	if err != nil {
		return "", clierr.Wrap(clierr.CodeUsage, "build upload request", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.GetBody = func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(payload)), nil }
	if c.projectID != "" {
		req.SetBasicAuth(c.projectID, c.secret)
	}

	resp, _, err := c.http.Do(ctx, req)
	if err != nil {
		return "", err
	}
	hash := gjson.GetBytes(resp, "Hash").String()
	if hash == "" {
		return "", clierr.New(clierr.CodeUnavailable, "ipfs add response has no hash")
	}
	return scheme + hash, nil
}

// Gateway reads content by URI through an HTTP gateway.
type Gateway struct {
	http *httpx.Client
	base string
}

func NewGateway(httpClient *httpx.Client, base string) *Gateway {
	base = strings.TrimSpace(base)
	if base == "" {
		base = DefaultGateway
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return &Gateway{http: httpClient, base: base}
}

// URL maps a token URI to a fetchable URL. ipfs:// URIs and bare content ids go
// through the gateway; http(s) URLs are used as is.
func (g *Gateway) URL(uri string) (string, error) {
	uri = strings.TrimSpace(uri)
	switch {
	case uri == "":
		return "", clierr.New(clierr.CodeIntegrity, "empty token uri")
	case strings.HasPrefix(uri, "http://"), strings.HasPrefix(uri, "https://"):
		return uri, nil
	case strings.HasPrefix(uri, scheme):
		path := strings.TrimPrefix(strings.TrimPrefix(uri, scheme), "ipfs/")
		return g.base + path, nil
	case strings.HasPrefix(uri, "Qm"), strings.HasPrefix(uri, "baf"):
		return g.base + uri, nil
	}
	return "", clierr.New(clierr.CodeUnsupported, fmt.Sprintf("unsupported token uri %q", uri))
}

// Fetch returns the raw document behind uri. Inline base64 JSON data URIs are
// decoded without a request.
func (g *Gateway) Fetch(ctx context.Context, uri string) ([]byte, error) {
	const inline = "data:application/json;base64,"
	if strings.HasPrefix(uri, inline) {
		buf, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(uri, inline))
		if err != nil {
			return nil, clierr.Wrap(clierr.CodeIntegrity, "decode inline token uri", err)
		}
		return buf, nil
	}
	url, err := g.URL(uri)
	if err != nil {
		return nil, err
	}
	return httpx.Get(ctx, g.http, url, map[string]string{"Accept": "application/json"})
}
