package normalize

// ItemInfo is the listing data used to fill chat price, title and URL.
type ItemInfo struct {
	ItemID int64          `json:"itemId"`
	Title  string         `json:"title,omitempty"`
	Price  *int64         `json:"price,omitempty"`
	URL    string         `json:"url,omitempty"`
	Raw    map[string]any `json:"raw,omitempty"`
}

var (
	itemWrappers = []string{"item", "data", "result", "value"}
	pricePaths   = [][]string{
		{"price", "value"}, {"price", "amount"}, {"price"},
	}
)

// ExtractItemInfo reads an item info response. Prices are probed at the top
// level first, then under the item, data, result and value wrappers.
func ExtractItemInfo(doc any, itemID int64) ItemInfo {
	root := obj(doc)
	info := ItemInfo{ItemID: itemID, Raw: root}
	if root == nil {
		return info
	}

	titles := []any{root["title"], root["name"]}
	for _, w := range itemWrappers {
		titles = append(titles, dig(root, w, "title"), dig(root, w, "name"))
	}
	info.Title = firstString(titles...)

	info.Price = NormalizePrice(root["price"])
	for _, w := range append([]string{""}, itemWrappers...) {
		if info.Price != nil {
			break
		}
		for _, p := range pricePaths {
			path := p
			if w != "" {
				path = append([]string{w}, p...)
			}
			if info.Price = NormalizePrice(dig(root, path...)); info.Price != nil {
				break
			}
		}
	}

	info.URL = firstString(
		root["url"], root["adUrl"], root["ad_url"],
		dig(root, "item", "url"), dig(root, "item", "ad_url"),
		dig(root, "data", "url"), dig(root, "result", "url"), dig(root, "value", "url"),
		root["seo_url"], root["share_url"], root["link"],
	)
	return info
}
