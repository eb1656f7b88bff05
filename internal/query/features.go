// Package query translates an inbound query string into the pieces of a
// single Mongo find call: filter, sort, projection and pagination. The
// translation runs as an ordered pipeline of named stages, each reading the
// raw values and writing into a Features struct. Stages never mutate the
// request; adding a stage means appending to the pipeline.
package query

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Meta keys consumed by the builder itself; everything else is a filter.
const (
	keyPage   = "page"
	keySort   = "sort"
	keyLimit  = "limit"
	keyFields = "fields"
)

// versionField is internal bookkeeping and is never projected to clients.
const versionField = "__v"

const (
	defaultLimit = 100
	defaultSort  = "createdAt"
)

// Features is the accumulated result of running the pipeline. Zero value
// plus defaults: unfiltered, newest first, all fields, first 100 documents.
type Features struct {
	Filter     bson.M
	Sort       bson.D
	Projection bson.M
	Skip       int64
	Limit      int64

	including bool // an explicit field include-list was requested
}

// Stage is one named transform over the raw query values.
type Stage struct {
	Name  string
	Apply func(url.Values, *Features) error
}

// Pipeline is the fixed stage order: filter, sort, field limiting,
// pagination.
var Pipeline = []Stage{
	{Name: "filter", Apply: applyFilter},
	{Name: "sort", Apply: applySort},
	{Name: "fields", Apply: applyFields},
	{Name: "paginate", Apply: applyPaginate},
}

// Build runs the full pipeline over the given query values.
func Build(values url.Values) (*Features, error) {
	f := &Features{Filter: bson.M{}}
	for _, s := range Pipeline {
		if err := s.Apply(values, f); err != nil {
			return nil, fmt.Errorf("%s stage: %w", s.Name, err)
		}
	}
	return f, nil
}

// Exclude removes the given fields from the projection. It is a no-op when
// the client asked for an explicit include-list, because Mongo does not mix
// inclusion and exclusion in one projection.
func (f *Features) Exclude(fields ...string) {
	if f.including {
		return
	}
	for _, field := range fields {
		f.Projection[field] = 0
	}
}

// FindOptions converts the accumulated features into driver options for a
// Find call.
func (f *Features) FindOptions() *options.FindOptions {
	opts := options.Find().
		SetSort(f.Sort).
		SetSkip(f.Skip).
		SetLimit(f.Limit)
	if len(f.Projection) > 0 {
		opts.SetProjection(f.Projection)
	}
	return opts
}

// applyFilter strips the meta keys and turns the rest into equality matches.
// Keys of the form field[op] with op in gte/gt/lte/lt become the matching
// Mongo comparison operator.
func applyFilter(values url.Values, f *Features) error {
	for key, vals := range values {
		if key == keyPage || key == keySort || key == keyLimit || key == keyFields {
			continue
		}
		if len(vals) == 0 || vals[0] == "" {
			continue
		}
		field, op, ok := splitOperator(key)
		if !ok {
			f.Filter[key] = coerce(vals[0])
			continue
		}
		sub, _ := f.Filter[field].(bson.M)
		if sub == nil {
			sub = bson.M{}
		}
		sub["$"+op] = coerce(vals[0])
		f.Filter[field] = sub
	}
	return nil
}

// applySort parses a comma-separated field list where a leading '-' means
// descending. Unspecified, results come back newest first.
func applySort(values url.Values, f *Features) error {
	raw := values.Get(keySort)
	if raw == "" {
		f.Sort = bson.D{{Key: defaultSort, Value: -1}}
		return nil
	}
	for _, field := range strings.Split(raw, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		dir := 1
		if strings.HasPrefix(field, "-") {
			dir = -1
			field = field[1:]
		}
		f.Sort = append(f.Sort, bson.E{Key: field, Value: dir})
	}
	if len(f.Sort) == 0 {
		f.Sort = bson.D{{Key: defaultSort, Value: -1}}
	}
	return nil
}

// applyFields builds the projection from a comma-separated allow-list. The
// version field is excluded either way.
func applyFields(values url.Values, f *Features) error {
	f.Projection = bson.M{}
	raw := values.Get(keyFields)
	if raw == "" {
		f.Projection[versionField] = 0
		return nil
	}
	for _, field := range strings.Split(raw, ",") {
		field = strings.TrimSpace(field)
		if field == "" || field == versionField {
			continue
		}
		f.Projection[field] = 1
	}
	if len(f.Projection) > 0 {
		f.including = true
	} else {
		f.Projection[versionField] = 0
	}
	return nil
}

// applyPaginate computes skip/limit from page/limit. A page beyond the end
// of the result set is not an error; the query simply returns nothing.
func applyPaginate(values url.Values, f *Features) error {
	page := int64(1)
	limit := int64(defaultLimit)
	if raw := values.Get(keyPage); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 1 {
			return fmt.Errorf("invalid page %q", raw)
		}
		page = n
	}
	if raw := values.Get(keyLimit); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 1 {
			return fmt.Errorf("invalid limit %q", raw)
		}
		limit = n
	}
	f.Skip = (page - 1) * limit
	f.Limit = limit
	return nil
}

// splitOperator recognizes the field[op] comparison form.
func splitOperator(key string) (field, op string, ok bool) {
	open := strings.IndexByte(key, '[')
	if open <= 0 || !strings.HasSuffix(key, "]") {
		return "", "", false
	}
	field = key[:open]
	op = key[open+1 : len(key)-1]
	switch op {
	case "gte", "gt", "lte", "lt":
		return field, op, true
	}
	return "", "", false
}

// coerce converts a raw query value into the most specific type Mongo can
// compare against: number, bool, else string.
func coerce(s string) interface{} {
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return n
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}
