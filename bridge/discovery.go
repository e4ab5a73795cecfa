package bridge

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"
	bridgeschema "github.com/glyphs-mcp/bridge/schema"
	"golang.org/x/sync/errgroup"
)

const maxListPages = 100

// discover lists every capability kind concurrently. Failures leave the
// affected mirror as it was.
func (s *Service) discover(ctx context.Context) {
	var group errgroup.Group
	for _, listing := range bridgeschema.Listings {
		group.Go(func() error {
			if err := s.refresh(ctx, listing); err != nil {
				s.logger.Error(err, "capability discovery failed", "kind", listing.Kind)
			}
			return nil
		})
	}
	_ = group.Wait()
}

// refresh re-lists one capability kind and replaces its mirror wholesale.
// A listing overtaken by a newer one is discarded.
func (s *Service) refresh(ctx context.Context, listing bridgeschema.Listing) error {
	mirror := s.mirrors[listing.Method]
	generation := mirror.Begin()
	items, err := s.list(ctx, listing)
	if err != nil {
		return err
	}
	if !mirror.Replace(generation, items, listing.KeyOf) {
		s.logger.V(1).Info("discarding stale listing", "kind", listing.Kind, "generation", generation)
		return nil
	}
	s.logger.V(1).Info("capabilities refreshed", "kind", listing.Kind, "count", mirror.Len())
	return nil
}

// refreshAsync runs refresh in the background on the service lifetime.
// Nothing is started once Close began.
func (s *Service) refreshAsync(listing bridgeschema.Listing) {
	s.refreshMux.Lock()
	defer s.refreshMux.Unlock()
	if s.stopped {
		return
	}
	s.refreshes.Add(1)
	go func() {
		defer s.refreshes.Done()
		if err := s.refresh(s.ctx, listing); err != nil {
			s.logger.Error(err, "capability refresh failed, keeping previous listing", "kind", listing.Kind)
		}
	}()
}

// list fetches every page of a listing.
func (s *Service) list(ctx context.Context, listing bridgeschema.Listing) ([]json.RawMessage, error) {
	var items []json.RawMessage
	seen := map[string]bool{}
	cursor := ""
	for page := 0; page < maxListPages; page++ {
		result, err := s.client.Call(ctx, listing.Method, bridgeschema.ListParams(cursor))
		if err != nil {
			return nil, errors.Wrapf(err, "%v failed", listing.Method)
		}
		decoded, err := listing.DecodePage(result)
		if err != nil {
			return nil, err
		}
		items = append(items, decoded.Items...)
		if decoded.NextCursor == "" {
			return items, nil
		}
		if seen[decoded.NextCursor] {
			return nil, errors.Newf("%v returned repeated cursor %q", listing.Method, decoded.NextCursor)
		}
		seen[decoded.NextCursor] = true
		cursor = decoded.NextCursor
	}
	return nil, errors.Newf("%v exceeded %d pages", listing.Method, maxListPages)
}
