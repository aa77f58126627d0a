package optimistic

import (
	"encoding/json"
	"fmt"
)

// AppendItem returns the JSON list in current with item appended
func AppendItem[T any](current []byte, item T) ([]byte, error) {
	items, err := decodeList[T](current)
	if err != nil {
		return nil, err
	}
	return json.Marshal(append(items, item))
}

// ReplaceItem returns the JSON list in current with the element sharing item's ID replaced
func ReplaceItem[T any, K comparable](current []byte, item T, id func(T) K) ([]byte, error) {
	items, err := decodeList[T](current)
	if err != nil {
		return nil, err
	}

	target := id(item)
	for i := range items {
		if id(items[i]) == target {
			items[i] = item
		}
	}
	return json.Marshal(items)
}

// RemoveItem returns the JSON list in current without the elements whose ID is target
func RemoveItem[T any, K comparable](current []byte, target K, id func(T) K) ([]byte, error) {
	items, err := decodeList[T](current)
	if err != nil {
		return nil, err
	}

	kept := make([]T, 0, len(items))
	for _, item := range items {
		if id(item) != target {
			kept = append(kept, item)
		}
	}
	return json.Marshal(kept)
}

func decodeList[T any](current []byte) ([]T, error) {
	if len(current) == 0 {
		return []T{}, nil
	}

	var items []T
	if err := json.Unmarshal(current, &items); err != nil {
		return nil, fmt.Errorf("failed to decode list: %w", err)
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}
