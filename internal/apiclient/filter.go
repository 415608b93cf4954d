package apiclient

import (
	"net/url"
	"strconv"
)

// Filter is a list query: equality matches on top-level fields plus
// optional sort and paging. The zero value lists everything in insertion order.
type Filter struct {
	values url.Values
}

// Where returns a filter matching documents whose field equals value.
// The value "null" matches a null or missing field.
func Where(field, value string) Filter {
	return Filter{}.And(field, value)
}

// And adds another equality match.
func (f Filter) And(field, value string) Filter {
	out := f.clone()
	out.values.Set(field, value)
	return out
}

// SortBy orders results by field.
func (f Filter) SortBy(field string, desc bool) Filter {
	out := f.clone()
	out.values.Set("_sort", field)
	if desc {
		out.values.Set("_order", "desc")
	} else {
		out.values.Del("_order")
	}
	return out
}

// Page skips start results and returns at most limit.
func (f Filter) Page(start, limit int) Filter {
	out := f.clone()
	out.values.Set("_start", strconv.Itoa(start))
	out.values.Set("_limit", strconv.Itoa(limit))
	return out
}

// Encode renders the filter as a query string without the leading '?'.
func (f Filter) Encode() string {
	return f.values.Encode()
}

func (f Filter) clone() Filter {
	out := Filter{values: url.Values{}}
	for k, v := range f.values {
		out.values[k] = append([]string(nil), v...)
	}
	return out
}
