package sink

import (
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"smartkeiba/internal/domain"
)

var _ domain.Sink = (*GCS)(nil)

// GCS stores files in a Google Cloud Storage bucket.
type GCS struct {
	client *storage.Client
	loc    Location
}

// NewGCS creates a GCS sink. Without keyFile the application default
// credentials are used.
func NewGCS(ctx context.Context, loc Location, keyFile string) (*GCS, error) {
	var opts []option.ClientOption
	if keyFile != "" {
		opts = append(opts, option.WithAuthCredentialsFile(option.ServiceAccount, keyFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create GCS client: %w", err)
	}
	return &GCS{client: client, loc: loc}, nil
}

// Put streams r to gs://bucket/prefix/name.
func (g *GCS) Put(ctx context.Context, name string, r io.Reader) error {
	w := g.client.Bucket(g.loc.Host).Object(g.loc.key(name)).NewWriter(ctx)
	w.ContentType = "text/csv"
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

func (g *GCS) String() string { return "gs://" + g.loc.Host + "/" + g.loc.Prefix }
