// Package fetcher retrieves raw staging dumps from local files, HTTP, or
// FTP, and decodes CSV/JSON/XLSX contents into source-native rows.
package fetcher

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
)

// Fetcher opens a raw dump by reference. References are local paths or
// http(s)/ftp URLs.
type Fetcher interface {
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
}

// New returns a fetcher that dispatches on the reference scheme.
func New(opts HTTPOptions) Fetcher {
	return &multiFetcher{
		http: NewHTTPFetcher(opts),
		ftp:  NewFTPFetcher(FTPOptions{Timeout: opts.Timeout}),
	}
}

type multiFetcher struct {
	http *HTTPFetcher
	ftp  *FTPFetcher
}

func (m *multiFetcher) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	switch {
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return m.http.Open(ctx, ref)
	case strings.HasPrefix(ref, "ftp://"):
		return m.ftp.Open(ctx, ref)
	default:
		f, err := os.Open(ref)
		if err != nil {
			return nil, eris.Wrapf(err, "fetcher: open file %s", ref)
		}
		return f, nil
	}
}
