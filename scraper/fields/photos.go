package fields

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// MaxPhotos caps the photo list of one listing.
const MaxPhotos = 20

// ImageSources collects normalized image URLs from the attrs of elements
// matching selector, in document order. Only URLs containing one of hosts
// are kept; no hosts keeps everything.
func ImageSources(sel *goquery.Selection, selector string, attrs []string, hosts ...string) []string {
	var out []string
	sel.Find(selector).Each(func(_ int, s *goquery.Selection) {
		for _, attr := range attrs {
			v, ok := s.Attr(attr)
			if !ok || v == "" {
				continue
			}
			u := PhotoURL(v)
			if u == "" {
				continue
			}
			if hostAllowed(u, hosts) {
				out = append(out, u)
			}
			return
		}
	})
	return out
}

func hostAllowed(u string, hosts []string) bool {
	if len(hosts) == 0 {
		return true
	}
	for _, h := range hosts {
		if strings.Contains(u, h) {
			return true
		}
	}
	return false
}

// MergePhotos concatenates lists in priority order, dropping duplicates
// and anything past MaxPhotos.
func MergePhotos(lists ...[]string) []string {
	out := make([]string, 0)
	seen := make(map[string]struct{})
	for _, list := range lists {
		for _, p := range list {
			if p == "" {
				continue
			}
			if _, dup := seen[p]; dup {
				continue
			}
			if len(out) == MaxPhotos {
				return out
			}
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	return out
}

// Coalesce returns the first non-empty value.
func Coalesce(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// TrimTel strips a tel: scheme from a phone link.
func TrimTel(href string) string {
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(href), "tel:"))
}
