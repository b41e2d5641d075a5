package feed

import (
	"fmt"
)

// KeyCodec maps feed coordinates to cache key strings. Pages live under
// {collection}:{parentId}:page:{n}, the last-page tracker under
// {collection}:{parentId}:lastPage, item details under {collection}:{itemId}.
type KeyCodec struct {
	collection string
}

// NewKeyCodec creates a codec for one collection namespace
func NewKeyCodec(collection string) KeyCodec {
	return KeyCodec{collection: collection}
}

// PageKey returns the key for one cached page of a parent
func (k KeyCodec) PageKey(parentID int64, page int) string {
	return fmt.Sprintf("%s:%d:page:%d", k.collection, parentID, page)
}

// PagePrefix returns the common prefix of all page keys of a parent
func (k KeyCodec) PagePrefix(parentID int64) string {
	return fmt.Sprintf("%s:%d:page:", k.collection, parentID)
}

// TrackerKey returns the key of the parent's last-page tracker
func (k KeyCodec) TrackerKey(parentID int64) string {
	return fmt.Sprintf("%s:%d:lastPage", k.collection, parentID)
}

// ItemKey returns the detail key of one item
func (k KeyCodec) ItemKey(itemID int64) string {
	return fmt.Sprintf("%s:%d", k.collection, itemID)
}
