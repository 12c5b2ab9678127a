package training

import "fmt"

func makeItems(category Category, names ...string) []Item {
	items := make([]Item, 0, len(names))
	for i, name := range names {
		items = append(items, Item{
			ID:         fmt.Sprintf("%s-%d", category, i),
			Category:   category,
			Name:       name,
			OrderIndex: i,
			Selected:   true,
		})
	}
	return items
}

func names(items []Item) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Name)
	}
	return out
}
