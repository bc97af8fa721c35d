package console

import (
	"cmp"
	"slices"
	"strings"

	"github.com/yourorg/calibr8/internal/catalogclient"
)

type SortOrder string

const (
	Newest SortOrder = "newest"
	Oldest SortOrder = "oldest"
)

// SortAssets returns a sorted copy of assets by creation time. Ties are
// broken by id in the same direction.
func SortAssets(assets []catalogclient.Asset, order SortOrder) []catalogclient.Asset {
	out := slices.Clone(assets)
	slices.SortStableFunc(out, func(a, b catalogclient.Asset) int {
		c := a.CreatedAt.Compare(b.CreatedAt)
		if c == 0 {
			c = cmp.Compare(a.AssetID, b.AssetID)
		}
		if order == Oldest {
			return c
		}
		return -c
	})
	return out
}

// FilterSubgroupTags keeps the tags whose name contains query, ignoring case.
// An empty query keeps everything.
func FilterSubgroupTags(tags []catalogclient.SubgroupTag, query string) []catalogclient.SubgroupTag {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]catalogclient.SubgroupTag, 0, len(tags))
	for _, t := range tags {
		if q == "" || strings.Contains(strings.ToLower(t.SubgroupTagName), q) {
			out = append(out, t)
		}
	}
	return out
}
