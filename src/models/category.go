package models

// Category is the list a subscriber joins.
type Category string

const (
	CategoryNewsletter       Category = "newsletter"
	CategoryShop             Category = "shop"
	CategoryPodcast          Category = "podcast"
	CategoryAuctionCollector Category = "auction-collector"
	CategoryAuctionCreator   Category = "auction-creator"
	CategoryContact          Category = "contact"
)

var AllCategories = []Category{
	CategoryNewsletter,
	CategoryShop,
	CategoryPodcast,
	CategoryAuctionCollector,
	CategoryAuctionCreator,
	CategoryContact,
}

func ParseCategory(s string) (Category, bool) {
	for _, c := range AllCategories {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

// DisplayName is the human-facing name of the list, as used in email copy.
func (c Category) DisplayName() string {
	switch c {
	case CategoryNewsletter:
		return "Newsletter"
	case CategoryShop:
		return "Shop Updates"
	case CategoryPodcast:
		return "Podcast"
	case CategoryAuctionCollector:
		return "Auction Collectors"
	case CategoryAuctionCreator:
		return "Auction Creators"
	case CategoryContact:
		return "Contact"
	}
	return string(c)
}
