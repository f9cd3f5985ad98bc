package normalize

// ChatDetails are the enrichment hints found in a webhook body or a chat
// info response. Empty strings and nil pointers mean "not present".
type ChatDetails struct {
	CustomerName string
	ItemTitle    string
	AdURL        string
	ChatURL      string
	ItemID       *int64
	// Price is only taken from an explicit item or ad object.
	Price *int64
}

// Empty reports whether no hint was found.
func (d ChatDetails) Empty() bool {
	return d.CustomerName == "" && d.ItemTitle == "" && d.AdURL == "" && d.ChatURL == "" &&
		d.ItemID == nil && d.Price == nil
}

// ExtractChatDetails pulls customer, listing and chat link hints out of doc.
// The customer is the first participant whose id is not accountID; a
// participant without a numeric id counts as the customer.
func ExtractChatDetails(doc any, accountID int64) ChatDetails {
	_, root := Detect(doc)

	ctx := firstObject(dig(root, "context", "value"), root["context"])
	explicit := firstObject(dig(ctx, "item"), dig(ctx, "ad"), root["item"], root["ad"])
	item := explicit
	if item == nil {
		item = ctx
	}
	if item == nil {
		item = root
	}

	var d ChatDetails

	if other := counterpart(participants(root), accountID); other != nil {
		d.CustomerName = firstString(other["name"], other["public_name"], other["publicName"], other["login"])
	}
	if d.CustomerName == "" {
		d.CustomerName = firstString(dig(root, "user", "name"), dig(root, "customer", "name"))
	}

	d.ItemTitle = firstString(item["title"], item["name"], item["item_title"], dig(ctx, "title"), root["title"])
	d.AdURL = firstString(item["url"], item["ad_url"], item["adUrl"], dig(ctx, "url"), root["url"])
	d.ChatURL = firstString(root["chat_url"], root["chatUrl"])

	// When item falls back to ctx or root, its "id" is the message or
	// context id, not a listing id.
	var itemSelfID any
	if explicit != nil {
		itemSelfID = explicit["id"]
		d.Price = NormalizePrice(explicit["price"])
	}
	d.ItemID = firstInt(
		itemSelfID,
		item["item_id"], item["itemId"],
		dig(ctx, "item_id"), dig(ctx, "itemId"),
		root["item_id"], root["itemId"],
	)
	return d
}

func participants(root map[string]any) []any {
	for _, k := range []string{"users", "participants", "members"} {
		if arr, ok := root[k].([]any); ok {
			return arr
		}
	}
	return nil
}

func counterpart(users []any, accountID int64) map[string]any {
	for _, u := range users {
		m := obj(u)
		if m == nil {
			continue
		}
		if n, ok := toInt(m["id"]); ok && n == accountID {
			continue
		}
		return m
	}
	return nil
}
