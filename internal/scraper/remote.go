package scraper

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var productIDRegex = regexp.MustCompile(`productview/(\d+)(?:-|$|\?)`)

// ProductPath is the path prefix every product page lives under.
const ProductPath = "/ge/shop/productview/"

// Remote describes the remote catalog: its origin and the host used to
// recognise links pointing at it.
type Remote struct {
	BaseURL     string
	Host        string
	ListingPath string
}

func NewRemote(baseURL, listingPath string) (Remote, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || u.Host == "" {
		return Remote{}, fmt.Errorf("%w: %q", ErrInvalidURL, baseURL)
	}
	return Remote{
		BaseURL:     strings.TrimRight(u.Scheme+"://"+u.Host, "/"),
		Host:        strings.TrimPrefix(u.Hostname(), "www."),
		ListingPath: listingPath,
	}, nil
}

func (r Remote) ListingURL() string {
	return r.BaseURL + r.ListingPath
}

// ProductURL builds the absolute product page URL from the path tail that
// follows ProductPath, e.g. "32054-some-slug".
func (r Remote) ProductURL(tail string) string {
	return r.BaseURL + ProductPath + tail
}

// IsRemoteLink reports whether the link points at the remote host.
func (r Remote) IsRemoteLink(link string) bool {
	link = strings.TrimSpace(link)
	return link != "" && r.Host != "" && strings.Contains(link, r.Host)
}

// APICandidates lists the JSON endpoints probed for a product, in order.
func (r Remote) APICandidates(productID string) []string {
	return []string{
		r.BaseURL + "/api/shop/product/" + productID,
		r.BaseURL + "/api/products/" + productID,
		r.BaseURL + "/ge/api/product/" + productID,
	}
}

// ProductID extracts the numeric identifier from a product URL such as
// ".../productview/32054-slug". It returns "" when there is none.
func ProductID(link string) string {
	m := productIDRegex.FindStringSubmatch(link)
	if m == nil {
		return ""
	}
	return m[1]
}
