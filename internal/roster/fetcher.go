package roster

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/tartampluch/go-congrats/internal/config"
)

// Fetcher retrieves a remote vCard stream.
type Fetcher interface {
	Fetch(ctx context.Context, location, user, pass string) (io.ReadCloser, error)
}

// HTTPFetcher downloads vCard exports from CardDAV/WebDAV collections.
type HTTPFetcher struct {
	Client *http.Client
}

// NewHTTPFetcher creates an HTTPFetcher bounded by config.HTTPTimeout.
func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{Client: &http.Client{Timeout: config.HTTPTimeout}}
}

// Fetch GETs location, with basic auth when credentials are given.
// The body is capped at config.MaxHTTPResponseSize. Neither logs nor
// returned errors carry the query string or embedded credentials.
func (f *HTTPFetcher) Fetch(ctx context.Context, location, user, pass string) (io.ReadCloser, error) {
	u, err := remoteURL(location)
	if err != nil {
		return nil, err
	}
	redacted := redactURL(u)
	log := slog.With(config.LogKeyComponent, config.CompFetcher, config.LogKeyURL, redacted)
	log.DebugContext(ctx, config.MsgDownloadStart)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrRequestCreate, err)
	}
	req.Header.Set(config.HeaderUserAgent, config.UserAgent)
	if user != "" || pass != "" {
		req.SetBasicAuth(user, pass)
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		var uerr *url.Error
		if errors.As(err, &uerr) {
			uerr.URL = redacted
		}
		return nil, fmt.Errorf("%s: %w", config.ErrNetwork, err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		log.WarnContext(ctx, config.MsgFetchBadStatus, config.LogKeyStatus, resp.StatusCode)
		return nil, fmt.Errorf("%s: %s", config.ErrBadStatus, resp.Status)
	}

	log.InfoContext(ctx, config.MsgDownloading, config.LogKeyLength, resp.ContentLength)
	return cappedBody{Reader: io.LimitReader(resp.Body, config.MaxHTTPResponseSize), Closer: resp.Body}, nil
}

// cappedBody reads through a limit and closes the underlying body.
type cappedBody struct {
	io.Reader
	io.Closer
}

// remoteURL accepts only absolute http and https locations.
func remoteURL(location string) (*url.URL, error) {
	u, err := url.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrInvalidURL, err)
	}
	if u.Scheme != config.SchemeHTTP && u.Scheme != config.SchemeHTTPS {
		return nil, fmt.Errorf("%s: %s", config.ErrProtocol, u.Scheme)
	}
	return u, nil
}

func redactURL(u *url.URL) string {
	clean := url.URL{Scheme: u.Scheme, Host: u.Host, Path: u.Path}
	return clean.String()
}

// Redact returns location in a form safe to log. Remote locations lose
// their userinfo, query and fragment; local paths are returned as is.
func Redact(location string) string {
	if !(Source{Location: location}).IsRemote() {
		return location
	}
	if u, err := url.Parse(location); err == nil {
		return redactURL(u)
	}
	if i := strings.IndexAny(location, "?#"); i >= 0 {
		return location[:i]
	}
	return location
}
