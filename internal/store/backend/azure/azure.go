// Package azure stores documents as JSON blobs in an Azure Storage container.
package azure

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/vesaa/backdrop/internal/store/common"
)

// Backend implements backend.Backend for Azure Blob Storage.
type Backend struct {
	logger        log.Logger
	client        *azblob.Client
	containerName string
	prefix        string
}

// New creates an Azure Blob backend.
func New(l log.Logger, c Config) (*Backend, error) {
	if c.ContainerName == "" {
		return nil, errors.New("azure container name is required")
	}
	if c.AccountName == "" && c.ServiceURL == "" {
		return nil, errors.New("azure account name or service url is required")
	}

	serviceURL := c.ServiceURL
	if serviceURL == "" {
		serviceURL = fmt.Sprintf("https://%s.blob.core.windows.net/", c.AccountName)
	}

	var (
		client *azblob.Client
		err    error
	)
	if c.AccountKey != "" {
		level.Info(l).Log("msg", "using shared key authentication", "accountName", c.AccountName)
		cred, cerr := azblob.NewSharedKeyCredential(c.AccountName, c.AccountKey)
		if cerr != nil {
			return nil, fmt.Errorf("azure, invalid shared key credential, %w", cerr)
		}
		client, err = azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
	} else {
		level.Info(l).Log("msg", "using default azure credential chain")
		cred, cerr := azidentity.NewDefaultAzureCredential(nil)
		if cerr != nil {
			return nil, fmt.Errorf("azure, failed to create default credential, %w", cerr)
		}
		client, err = azblob.NewClient(serviceURL, cred, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("azure, failed to create blob client, %w", err)
	}

	return &Backend{
		logger:        l,
		client:        client,
		containerName: c.ContainerName,
		prefix:        c.Prefix,
	}, nil
}

// Get downloads the blob for p.
func (b *Backend) Get(ctx context.Context, p string) ([]byte, error) {
	resp, err := b.client.DownloadStream(ctx, b.containerName, common.ObjectKey(b.prefix, p), nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("get the blob, %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read the blob, %w", err)
	}
	return body, nil
}

// Put uploads body as the blob for p, replacing it.
func (b *Backend) Put(ctx context.Context, p string, body []byte) error {
	_, err := b.client.UploadBuffer(ctx, b.containerName, common.ObjectKey(b.prefix, p), body, &azblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: to.Ptr("application/json")},
	})
	if err != nil {
		return fmt.Errorf("put the blob, %w", err)
	}
	return nil
}
