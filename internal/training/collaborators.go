package training

import "context"

// SessionLoader loads the stored definition of a session
type SessionLoader interface {
	LoadSession(ctx context.Context, sessionID string) (SessionDefinition, error)
}

// ItemLoader loads the selected items of one category of a session, ordered by OrderIndex
type ItemLoader interface {
	LoadSelectedItems(ctx context.Context, sessionID string, category Category) ([]Item, error)
}

// LoadItems loads all six category lists of a session. The first failure aborts the load.
func LoadItems(ctx context.Context, loader ItemLoader, sessionID string) (map[Category][]Item, error) {
	items := make(map[Category][]Item, categoryCount)
	for _, category := range SequenceOrder {
		list, err := loader.LoadSelectedItems(ctx, sessionID, category)
		if err != nil {
			return nil, err
		}
		items[category] = list
	}
	return items, nil
}
