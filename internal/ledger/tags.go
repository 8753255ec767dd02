package ledger

import (
	"context"

	"spendly/internal/core"
	"spendly/internal/datastore"
)

// transactionTags resolves tags for a set of transactions via the join
// table. Tag failures never fail the read; the rows come back untagged and
// the error is logged.
func (s *Store) transactionTags(ctx context.Context, userID string, txnIDs []any) map[string][]core.Tag {
	if len(txnIDs) == 0 {
		return nil
	}

	linkRows, err := s.db.Select(ctx, "transaction_tags", datastore.Query{
		In: map[string][]any{"transaction_id": txnIDs},
	})
	if err != nil {
		s.logger.WarnContext(ctx, "tag links unavailable, returning untagged rows", "error", err)
		return nil
	}
	if len(linkRows) == 0 {
		return nil
	}

	tagIDs := make([]any, 0, len(linkRows))
	seen := make(map[string]bool, len(linkRows))
	for _, r := range linkRows {
		id := asString(r["tag_id"])
		if !seen[id] {
			seen[id] = true
			tagIDs = append(tagIDs, id)
		}
	}

	tagRows, err := s.db.Select(ctx, "tags", datastore.Query{
		Eq: map[string]any{"user_id": userID},
		In: map[string][]any{"id": tagIDs},
	})
	if err != nil {
		s.logger.WarnContext(ctx, "tags unavailable, returning untagged rows", "error", err)
		return nil
	}
	tagByID := make(map[string]core.Tag, len(tagRows))
	for _, r := range tagRows {
		t := toTag(r)
		tagByID[t.ID] = t
	}

	out := make(map[string][]core.Tag)
	for _, r := range linkRows {
		txnID := asString(r["transaction_id"])
		if t, ok := tagByID[asString(r["tag_id"])]; ok {
			out[txnID] = append(out[txnID], t)
		}
	}
	return out
}
