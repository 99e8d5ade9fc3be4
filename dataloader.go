package main

import (
	"context"
	"net/http"
	"time"

	"github.com/graph-gophers/dataloader/v7"
)

// DataLoaderContextKey is the key used to store dataloaders in context
type DataLoaderContextKey string

const dataLoaderKey DataLoaderContextKey = "dataloader"

const loaderWait = 2 * time.Millisecond

// DataLoaders holds the per-request loaders.
type DataLoaders struct {
	UserLoader *dataloader.Loader[int, *UserSummary]
}

func NewDataLoaders(store Store) *DataLoaders {
	return &DataLoaders{
		UserLoader: dataloader.NewBatchedLoader(userSummaryBatchFn(store), dataloader.WithWait[int, *UserSummary](loaderWait)),
	}
}

func GetDataLoadersFromContext(ctx context.Context) *DataLoaders {
	if dl, ok := ctx.Value(dataLoaderKey).(*DataLoaders); ok {
		return dl
	}
	return nil
}

func WithDataLoaders(ctx context.Context, dl *DataLoaders) context.Context {
	return context.WithValue(ctx, dataLoaderKey, dl)
}

// DataLoaderMiddleware gives every request fresh loaders so cached rows never
// outlive the request.
func DataLoaderMiddleware(store Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := WithDataLoaders(r.Context(), NewDataLoaders(store))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// userSummaryBatchFn resolves all requested owners with one store call.
// Unknown ids resolve to nil without an error.
func userSummaryBatchFn(store Store) dataloader.BatchFunc[int, *UserSummary] {
	return func(ctx context.Context, keys []int) []*dataloader.Result[*UserSummary] {
		results := make([]*dataloader.Result[*UserSummary], len(keys))
		summaries, err := store.UserSummaries(ctx, keys)
		for i, key := range keys {
			if err != nil {
				results[i] = &dataloader.Result[*UserSummary]{Error: err}
				continue
			}
			results[i] = &dataloader.Result[*UserSummary]{Data: summaries[key]}
		}
		return results
	}
}

// loadOwners resolves the owner summary of every partner, batched through the
// request's loader when one is present.
func loadOwners(ctx context.Context, store Store, partners []Partner) (map[int]*UserSummary, error) {
	ids := make([]int, 0, len(partners))
	seen := make(map[int]struct{}, len(partners))
	for _, p := range partners {
		if _, ok := seen[p.UserID]; ok {
			continue
		}
		seen[p.UserID] = struct{}{}
		ids = append(ids, p.UserID)
	}
	if len(ids) == 0 {
		return map[int]*UserSummary{}, nil
	}

	dl := GetDataLoadersFromContext(ctx)
	if dl == nil {
		return store.UserSummaries(ctx, ids)
	}

	values, errs := dl.UserLoader.LoadMany(ctx, ids)()
	out := make(map[int]*UserSummary, len(ids))
	for i, id := range ids {
		if i < len(errs) && errs[i] != nil {
			return nil, errs[i]
		}
		if values[i] != nil {
			out[id] = values[i]
		}
	}
	return out, nil
}
