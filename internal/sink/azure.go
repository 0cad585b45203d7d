package sink

import (
	"context"
	"fmt"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"

	"smartkeiba/internal/domain"
)

var _ domain.Sink = (*Azure)(nil)

// Azure stores files in an Azure Blob Storage container.
type Azure struct {
	client *azblob.Client
	loc    Location
}

// NewAzure creates an Azure sink authenticated with an account key.
func NewAzure(loc Location, accountName, accountKey string) (*Azure, error) {
	if accountName == "" || accountKey == "" {
		return nil, domain.ErrConfiguration("azure_account", "AZURE_ACCOUNT_NAME and AZURE_ACCOUNT_KEY are required for az:// sinks")
	}
	cred, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("create shared key credential: %w", err)
	}
	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net", accountName)
	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("create Azure blob client: %w", err)
	}
	return &Azure{client: client, loc: loc}, nil
}

// Put uploads r to container/prefix/name.
func (a *Azure) Put(ctx context.Context, name string, r io.Reader) error {
	_, err := a.client.UploadStream(ctx, a.loc.Host, a.loc.key(name), r, nil)
	return err
}

func (a *Azure) String() string { return "az://" + a.loc.Host + "/" + a.loc.Prefix }
