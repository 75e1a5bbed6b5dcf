package xmlfeed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/mobilsoft/connectors/internal/domain/feed"
	"github.com/mobilsoft/connectors/internal/domain/shared"
	"github.com/mobilsoft/connectors/internal/infrastructure/httpclient"
)

// DefaultMaxDocumentSize caps the size of a fetched feed
const DefaultMaxDocumentSize int64 = 200 << 20

// Fetcher obtains feed documents from a URL or from an uploaded document
type Fetcher struct {
	session *httpclient.Session
	store   feed.DocumentStore
	maxSize int64
	logger  *zap.Logger
}

// NewFetcher creates a fetcher. store may be nil when uploads are not used.
func NewFetcher(session *httpclient.Session, store feed.DocumentStore, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		session: session,
		store:   store,
		maxSize: DefaultMaxDocumentSize,
		logger:  logger,
	}
}

// Fetch reads the source's document and returns it as validated UTF-8 XML.
// Transport problems are *feed.FetchError, decoding problems *feed.ParseError.
func (f *Fetcher) Fetch(ctx context.Context, source *feed.XMLProductSource) (*Document, error) {
	location := source.Location()

	var raw []byte
	var err error
	if source.UsesUpload() {
		raw, err = f.readUpload(ctx, source.UploadKey)
	} else {
		raw, err = f.download(ctx, source)
	}
	if err != nil {
		return nil, err
	}

	doc, err := NewDocument(location, raw, source.DeclaredEncoding)
	if err != nil {
		return nil, err
	}
	f.logger.Info("Feed document fetched",
		zap.String("source", source.Name),
		zap.String("location", location),
		zap.String("encoding", doc.Encoding),
		zap.Int("bytes", doc.Size()),
	)
	return doc, nil
}

func (f *Fetcher) readUpload(ctx context.Context, key string) ([]byte, error) {
	location := "upload:" + key
	if f.store == nil {
		return nil, &feed.FetchError{Location: location, Err: errors.New("no document store configured")}
	}
	data, err := f.store.Download(ctx, key)
	if err != nil {
		return nil, &feed.FetchError{Location: location, Err: err}
	}
	return data, nil
}

func (f *Fetcher) download(ctx context.Context, source *feed.XMLProductSource) ([]byte, error) {
	location := source.FeedURL
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source.FeedURL, nil)
	if err != nil {
		return nil, &feed.FetchError{Location: location, Err: shared.NewIngestError(shared.ErrConfig, "build feed request", err)}
	}
	req.Header.Set("Accept", "application/xml, text/xml;q=0.9, */*;q=0.8")
	if source.Username != "" {
		req.SetBasicAuth(source.Username, source.Password)
	}

	resp, err := f.session.Do(req)
	if err != nil {
		return nil, &feed.FetchError{Location: location, Err: err}
	}
	defer resp.Body.Close()

	if err := httpclient.CheckResponse("GET feed", resp); err != nil {
		return nil, &feed.FetchError{Location: location, StatusCode: resp.StatusCode, Err: err}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxSize+1))
	if err != nil {
		return nil, &feed.FetchError{Location: location, Err: shared.NewIngestError(shared.ErrNetwork, "read feed", err)}
	}
	if int64(len(data)) > f.maxSize {
		return nil, &feed.FetchError{Location: location, Err: fmt.Errorf("document exceeds %d bytes", f.maxSize)}
	}
	return data, nil
}
