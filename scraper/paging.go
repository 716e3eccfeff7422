package scraper

import (
	"strconv"
	"strings"
)

// PagedURL appends key=page to base for every page after the first.
func PagedURL(base, key string, page int) string {
	if page <= 1 {
		return base
	}
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + key + "=" + strconv.Itoa(page)
}
