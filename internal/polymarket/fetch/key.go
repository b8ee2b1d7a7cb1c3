package fetch

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// CacheKey is the normalized form of a GET request: parameter pairs are
// sorted by name then value so that logically identical requests share a key
// regardless of the order the caller built them in.
func CacheKey(rawURL string, params url.Values) string {
	type pair struct{ k, v string }

	var pairs []pair
	for k, values := range params {
		for _, v := range values {
			pairs = append(pairs, pair{k, v})
		}
	}
	if len(pairs) == 0 {
		return "GET:" + rawURL
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].k != pairs[j].k {
			return pairs[i].k < pairs[j].k
		}
		return pairs[i].v < pairs[j].v
	})

	var b strings.Builder
	b.WriteString("GET:")
	b.WriteString(rawURL)
	b.WriteByte('?')
	for i, p := range pairs {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p.k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.v))
	}
	return b.String()
}

// cachedResponse is what the store holds for one request. An explicit
// absence is cached too so that repeated lookups of a missing resource do
// not hit the remote again.
type cachedResponse struct {
	NotFound bool   `msgpack:"nf"`
	Body     []byte `msgpack:"b"`
}

func encodeCached(r cachedResponse) ([]byte, error) {
	data, err := msgpack.Marshal(&r)
	if err != nil {
		return nil, fmt.Errorf("encode cache entry: %w", err)
	}
	return data, nil
}

func decodeCached(data []byte) (cachedResponse, error) {
	var r cachedResponse
	if err := msgpack.Unmarshal(data, &r); err != nil {
		return cachedResponse{}, fmt.Errorf("decode cache entry: %w", err)
	}
	return r, nil
}
