// Package manifest reads bag manifests from the remote manifest store.
package manifest

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	bberrors "github.com/bagbrowser/bagbrowser/internal/errors"
	"github.com/bagbrowser/bagbrowser/internal/logctx"
	"github.com/bagbrowser/bagbrowser/internal/storage"
	"github.com/bagbrowser/bagbrowser/pkg/types"
)

// Source enumerates and fetches bag manifests.
type Source interface {
	// Identifiers lists every bag the store knows about, in id order.
	Identifiers(ctx context.Context) ([]types.BagIdentifier, error)

	// GetBag fetches and materializes one bag. A missing manifest yields a
	// MANIFEST_NOT_FOUND error.
	GetBag(ctx context.Context, id types.BagIdentifier) (*types.Bag, error)

	// GetBags fetches several bags. Per-bag failures are reported in the
	// error map; the returned error is reserved for cancellation.
	GetBags(ctx context.Context, ids []types.BagIdentifier) (map[types.BagIdentifier]*types.Bag, map[types.BagIdentifier]error, error)
}

const manifestSuffix = ".json"

// StorageSource reads manifests laid out as
// {prefix}/{space}/{external_identifier}/v{version}.json in object storage.
type StorageSource struct {
	storage storage.ObjectStorage
	prefix  string
	fetcher *storage.BatchFetcher
}

// NewStorageSource creates a source over store. concurrency bounds GetBags.
func NewStorageSource(store storage.ObjectStorage, prefix string, concurrency int) *StorageSource {
	return &StorageSource{
		storage: store,
		prefix:  strings.Trim(prefix, "/"),
		fetcher: storage.NewBatchFetcher(store, concurrency),
	}
}

// ObjectPath returns the object key holding the manifest for id.
func (s *StorageSource) ObjectPath(id types.BagIdentifier) string {
	return path.Join(s.prefix, id.ID()) + manifestSuffix
}

func (s *StorageSource) listPrefix() string {
	if s.prefix == "" {
		return ""
	}
	return s.prefix + "/"
}

// Identifiers lists manifests and parses their keys. Keys that do not follow
// the layout are logged and skipped.
func (s *StorageSource) Identifiers(ctx context.Context) ([]types.BagIdentifier, error) {
	keys, err := s.storage.ListObjects(ctx, s.listPrefix())
	if err != nil {
		return nil, bberrors.NewManifestError(bberrors.CodeFetchFailed, "list manifests", err)
	}

	log := logctx.FromContext(ctx)
	ids := make([]types.BagIdentifier, 0, len(keys))
	for _, key := range keys {
		id, err := s.parseKey(key)
		if err != nil {
			log.Debug().Str("key", key).Err(err).Msg("skipping object that is not a bag manifest")
			continue
		}
		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i].ID() < ids[j].ID() })
	return ids, nil
}

func (s *StorageSource) parseKey(key string) (types.BagIdentifier, error) {
	rel := strings.TrimPrefix(key, s.listPrefix())
	if !strings.HasSuffix(rel, manifestSuffix) {
		return types.BagIdentifier{}, fmt.Errorf("%w: %q", types.ErrInvalidBagID, key)
	}
	return types.ParseBagID(strings.TrimSuffix(rel, manifestSuffix))
}

// GetBag fetches and materializes one bag.
func (s *StorageSource) GetBag(ctx context.Context, id types.BagIdentifier) (*types.Bag, error) {
	raw, err := s.storage.Get(ctx, s.ObjectPath(id))
	if err != nil {
		return nil, fetchError(id, err)
	}
	return decode(id, raw)
}

// Exists reports whether the store holds a manifest for id, without
// downloading it.
func (s *StorageSource) Exists(ctx context.Context, id types.BagIdentifier) (bool, error) {
	ok, err := s.storage.Exists(ctx, s.ObjectPath(id))
	if err != nil {
		return false, fetchError(id, err)
	}
	return ok, nil
}

// GetBags fetches several bags in parallel.
func (s *StorageSource) GetBags(ctx context.Context, ids []types.BagIdentifier) (map[types.BagIdentifier]*types.Bag, map[types.BagIdentifier]error, error) {
	paths := make([]string, len(ids))
	byPath := make(map[string]types.BagIdentifier, len(ids))
	for i, id := range ids {
		paths[i] = s.ObjectPath(id)
		byPath[paths[i]] = id
	}

	result, err := s.fetcher.Fetch(ctx, paths)
	if err != nil {
		return nil, nil, err
	}

	bags := make(map[types.BagIdentifier]*types.Bag, len(result.Data))
	errs := make(map[types.BagIdentifier]error, len(result.Errors))
	for p, fetchErr := range result.Errors {
		id := byPath[p]
		errs[id] = fetchError(id, fetchErr)
	}
	for p, raw := range result.Data {
		id := byPath[p]
		bag, err := decode(id, raw)
		if err != nil {
			errs[id] = err
			continue
		}
		bags[id] = bag
	}
	return bags, errs, nil
}

func fetchError(id types.BagIdentifier, err error) error {
	if errors.Is(err, storage.ErrObjectNotFound) {
		return bberrors.NewManifestError(bberrors.CodeManifestNotFound,
			fmt.Sprintf("no manifest for %s", id), err)
	}
	return bberrors.NewManifestError(bberrors.CodeFetchFailed,
		fmt.Sprintf("fetch manifest for %s", id), err)
}

func decode(id types.BagIdentifier, raw []byte) (*types.Bag, error) {
	bag, err := types.BagFromStorageManifest(raw)
	if err != nil {
		return nil, bberrors.NewManifestError(bberrors.CodeInvalidManifest,
			fmt.Sprintf("decode manifest for %s", id), err)
	}
	if bag.Identifier != id {
		return nil, bberrors.NewManifestError(bberrors.CodeInvalidManifest,
			fmt.Sprintf("manifest stored under %s describes %s", id, bag.Identifier), nil)
	}
	return bag, nil
}
