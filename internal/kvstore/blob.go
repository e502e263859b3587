package kvstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

const expiresAtMetadata = "expiresat"

// BlobConfig locates the container backing a BlobStore. When
// ConnectionString is empty, AccountURL is used with DefaultAzureCredential.
type BlobConfig struct {
	AccountURL       string
	ConnectionString string
	Container        string
}

// BlobStore keeps each key as a zstd-compressed block blob. Expiry is stored
// in blob metadata and enforced on read; a lifecycle management rule on the
// container can reclaim expired blobs.
type BlobStore struct {
	client    *azblob.Client
	container string
	codec     *codec
	now       func() time.Time
}

// NewBlobStore connects to the configured container, creating it if needed.
func NewBlobStore(ctx context.Context, cfg BlobConfig) (*BlobStore, error) {
	if cfg.Container == "" {
		return nil, errors.New("blob container is required")
	}

	var client *azblob.Client
	var err error
	switch {
	case cfg.ConnectionString != "":
		client, err = azblob.NewClientFromConnectionString(cfg.ConnectionString, nil)
	case cfg.AccountURL != "":
		cred, credErr := azidentity.NewDefaultAzureCredential(nil)
		if credErr != nil {
			return nil, fmt.Errorf("creating Azure credential: %w", credErr)
		}
		client, err = azblob.NewClient(cfg.AccountURL, cred, nil)
	default:
		return nil, errors.New("blob store needs an account URL or a connection string")
	}
	if err != nil {
		return nil, fmt.Errorf("creating blob client: %w", err)
	}

	if _, err := client.CreateContainer(ctx, cfg.Container, nil); err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		return nil, fmt.Errorf("creating container %q: %w", cfg.Container, err)
	}

	c, err := newCodec()
	if err != nil {
		return nil, err
	}
	return &BlobStore{client: client, container: cfg.Container, codec: c, now: time.Now}, nil
}

func (bs *BlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	resp, err := bs.client.DownloadStream(ctx, bs.container, blobName(key), nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("downloading %q: %w", key, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if expiresAt, ok := metadataTime(resp.Metadata); ok && expired(bs.now(), expiresAt) {
		if err := bs.Delete(ctx, key); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %q: %w", key, err)
	}
	return bs.codec.decompress(data)
}

func (bs *BlobStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	opts := &azblob.UploadBufferOptions{}
	if expiresAt := expiryFor(bs.now(), ttl); !expiresAt.IsZero() {
		opts.Metadata = map[string]*string{
			expiresAtMetadata: to.Ptr(expiresAt.UTC().Format(time.RFC3339Nano)),
		}
	}
	if _, err := bs.client.UploadBuffer(ctx, bs.container, blobName(key), bs.codec.compress(value), opts); err != nil {
		return fmt.Errorf("uploading %q: %w", key, err)
	}
	return nil
}

func (bs *BlobStore) Delete(ctx context.Context, key string) error {
	if _, err := bs.client.DeleteBlob(ctx, bs.container, blobName(key), nil); err != nil && !bloberror.HasCode(err, bloberror.BlobNotFound) {
		return fmt.Errorf("deleting %q: %w", key, err)
	}
	return nil
}

// DeletePrefix removes every blob whose key starts with prefix.
func (bs *BlobStore) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	pager := bs.client.NewListBlobsFlatPager(bs.container, &azblob.ListBlobsFlatOptions{
		Prefix: to.Ptr(blobName(prefix)),
	})
	n := 0
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return n, fmt.Errorf("listing blobs: %w", err)
		}
		for _, item := range page.Segment.BlobItems {
			if item.Name == nil {
				continue
			}
			if _, err := bs.client.DeleteBlob(ctx, bs.container, *item.Name, nil); err != nil && !bloberror.HasCode(err, bloberror.BlobNotFound) {
				return n, fmt.Errorf("deleting %q: %w", *item.Name, err)
			}
			n++
		}
	}
	return n, nil
}

// Close releases the compression codec.
func (bs *BlobStore) Close() error {
	bs.codec.close()
	return nil
}

// blobName maps the ':' separated key space onto virtual directories.
func blobName(key string) string {
	return strings.ReplaceAll(key, ":", "/")
}

func metadataTime(md map[string]*string) (time.Time, bool) {
	for k, v := range md {
		if !strings.EqualFold(k, expiresAtMetadata) || v == nil {
			continue
		}
		t, err := time.Parse(time.RFC3339Nano, *v)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	}
	return time.Time{}, false
}

var (
	_ Store         = (*BlobStore)(nil)
	_ PrefixDeleter = (*BlobStore)(nil)
	_ Closer        = (*BlobStore)(nil)
)
