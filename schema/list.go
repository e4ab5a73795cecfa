package schema

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
)

// Listing describes one capability kind the bridge mirrors.
type Listing struct {
	Kind    string // tools, resources, prompts
	Method  string // listing method
	Changed string // list_changed notification
	Field   string // result array field
	Key     string // identity field of each item
}

// Listings enumerates mirrored capability kinds in discovery order.
var Listings = []Listing{
	{Kind: "tools", Method: MethodToolsList, Changed: MethodNotificationToolsListChanged, Field: "tools", Key: "name"},
	{Kind: "resources", Method: MethodResourcesList, Changed: MethodNotificationResourcesListChanged, Field: "resources", Key: "uri"},
	{Kind: "prompts", Method: MethodPromptsList, Changed: MethodNotificationPromptsListChanged, Field: "prompts", Key: "name"},
}

// ListingFor returns the listing whose list_changed notification is method.
func ListingFor(method string) (Listing, bool) {
	for _, l := range Listings {
		if l.Changed == method {
			return l, true
		}
	}
	return Listing{}, false
}

// Page is one decoded page of a listing result.
type Page struct {
	Items      []json.RawMessage
	NextCursor string
}

// DecodePage extracts the items and cursor of a listing result. A result
// without the item array is an error, never an empty page.
func (l Listing) DecodePage(result json.RawMessage) (*Page, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(result, &fields); err != nil {
		return nil, errors.Wrapf(err, "failed to decode %v result", l.Method)
	}
	raw, ok := fields[l.Field]
	if !ok || string(raw) == "null" {
		return nil, errors.Newf("%v result has no %v", l.Method, l.Field)
	}
	ret := &Page{}
	if err := json.Unmarshal(raw, &ret.Items); err != nil {
		return nil, errors.Wrapf(err, "failed to decode %v.%v", l.Method, l.Field)
	}
	if raw, ok := fields["nextCursor"]; ok {
		_ = json.Unmarshal(raw, &ret.NextCursor)
	}
	return ret, nil
}

// KeyOf returns the identity of a listed item, empty when absent.
func (l Listing) KeyOf(item json.RawMessage) string {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(item, &fields); err != nil {
		return ""
	}
	var key string
	_ = json.Unmarshal(fields[l.Key], &key)
	return key
}

// EncodeList builds a local listing result from mirrored items.
func (l Listing) EncodeList(items []json.RawMessage) (json.RawMessage, error) {
	if items == nil {
		items = []json.RawMessage{}
	}
	return json.Marshal(map[string]interface{}{l.Field: items})
}

// ListParams builds listing params for the given cursor.
func ListParams(cursor string) json.RawMessage {
	if cursor == "" {
		return json.RawMessage("{}")
	}
	data, _ := json.Marshal(map[string]string{"cursor": cursor})
	return data
}
