package descriptor

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/vula-mesh/vula/internal/errs"
)

// Chunk splits a key=value map into pieces no longer than length, the way a
// long value stored under key k becomes k00..kNN whose values concatenate
// back to the original. length is the ZeroConf TXT record's per-entry
// budget ("key=value" including the "="), so the usable chunk size leaves
// room for the key, a two-digit suffix, and the "=" sign: length-len(k)-3.
func Chunk(fields map[string]string, length int) (map[string]string, error) {
	res := make(map[string]string, len(fields))
	for k, v := range fields {
		if len(k)+len(v)+1 <= length {
			res[k] = v
			continue
		}
		cs := length - len(k) - 3
		if cs < 1 {
			return nil, errs.New(errs.DescriptorTooLarge, "no room for data with chunk size %d and key %s", length, k)
		}
		c := 0
		for len(v) > 0 {
			end := cs
			if end > len(v) {
				end = len(v)
			}
			res[fmt.Sprintf("%s%02d", k, c)] = v[:end]
			v = v[end:]
			c++
		}
	}
	return res, nil
}

// Unchunk reverses Chunk: any key ending in two digits has its value
// appended, in ascending key order, to the unsuffixed key's reassembled
// value. Keys whose last two characters don't parse as a number pass
// through unchanged — they were never chunked.
func Unchunk(fields map[string]string) map[string]string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	res := map[string]string{}
	for _, k := range keys {
		v := fields[k]
		if len(k) < 3 {
			res[k] = v
			continue
		}
		rk, suffix := k[:len(k)-2], k[len(k)-2:]
		if _, err := strconv.Atoi(suffix); err != nil {
			res[k] = v
			continue
		}
		res[rk] = res[rk] + v
	}
	return res
}
