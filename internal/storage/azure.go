package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/sirupsen/logrus"
)

const (
	blobTimeout   = 2 * time.Minute
	blobBlockSize = 1 << 20
)

// AzureStorage keeps report and alert snapshots as blobs in one container.
// Every call gets its own timeout.
type AzureStorage struct {
	client    *azblob.Client
	container string
}

var _ StorageInterface = (*AzureStorage)(nil)

// NewAzureStorage connects with the default Azure credential chain and
// creates the container on first use
func NewAzureStorage(accountName, container string) (*AzureStorage, error) {
	if accountName == "" {
		return nil, fmt.Errorf("storage account name is required")
	}

	credential, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure credential: %w", err)
	}

	client, err := azblob.NewClient(fmt.Sprintf("https://%s.blob.core.windows.net/", accountName), credential, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create blob client for %s: %w", accountName, err)
	}

	s := &AzureStorage{client: client, container: container}
	err = s.withTimeout(func(ctx context.Context) error {
		_, err := client.CreateContainer(ctx, container, nil)
		if bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
			return nil
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to prepare container %s: %w", container, err)
	}

	logrus.WithFields(logrus.Fields{"account": accountName, "container": container}).Info("Snapshot storage ready")
	return s, nil
}

func (s *AzureStorage) withTimeout(fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), blobTimeout)
	defer cancel()
	return fn(ctx)
}

// uploadOptions sets the content type from the snapshot extension
func uploadOptions(filename string) *azblob.UploadBufferOptions {
	opts := &azblob.UploadBufferOptions{BlockSize: blobBlockSize, Concurrency: 3}
	if path.Ext(filename) == ".json" {
		contentType := "application/json"
		opts.HTTPHeaders = &blob.HTTPHeaders{BlobContentType: &contentType}
	}
	return opts
}

func notFound(err error, filename string) error {
	if bloberror.HasCode(err, bloberror.BlobNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, filename)
	}
	return nil
}

func (s *AzureStorage) Store(filename string, data []byte) error {
	err := s.withTimeout(func(ctx context.Context) error {
		_, err := s.client.UploadBuffer(ctx, s.container, filename, data, uploadOptions(filename))
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to upload snapshot %s: %w", filename, err)
	}

	logrus.Debugf("Uploaded snapshot %s (%d bytes)", filename, len(data))
	return nil
}

func (s *AzureStorage) Retrieve(filename string) ([]byte, error) {
	var data []byte
	err := s.withTimeout(func(ctx context.Context) error {
		resp, err := s.client.DownloadStream(ctx, s.container, filename, nil)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		data, err = io.ReadAll(resp.Body)
		return err
	})
	if err != nil {
		if nf := notFound(err, filename); nf != nil {
			return nil, nf
		}
		return nil, fmt.Errorf("failed to download snapshot %s: %w", filename, err)
	}
	return data, nil
}

// List returns snapshot names starting with prefix, sorted
func (s *AzureStorage) List(prefix string) ([]string, error) {
	var names []string
	err := s.withTimeout(func(ctx context.Context) error {
		pager := s.client.NewListBlobsFlatPager(s.container, &azblob.ListBlobsFlatOptions{Prefix: &prefix})
		for pager.More() {
			page, err := pager.NextPage(ctx)
			if err != nil {
				return err
			}
			for _, item := range page.Segment.BlobItems {
				if item.Name != nil {
					names = append(names, *item.Name)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots under %q: %w", prefix, err)
	}

	sort.Strings(names)
	return names, nil
}

func (s *AzureStorage) Delete(filename string) error {
	err := s.withTimeout(func(ctx context.Context) error {
		_, err := s.client.DeleteBlob(ctx, s.container, filename, nil)
		return err
	})
	if err != nil {
		if nf := notFound(err, filename); nf != nil {
			return nf
		}
		return fmt.Errorf("failed to delete snapshot %s: %w", filename, err)
	}

	logrus.Debugf("Deleted snapshot %s", filename)
	return nil
}
