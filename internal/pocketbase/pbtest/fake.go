// Package pbtest provides an in-memory pocketbase.Client for tests.
package pbtest

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jamesprial/pocketbase-mcp/internal/pocketbase"
)

// ImportCall records one ImportCollections invocation.
type ImportCall struct {
	Collections   []map[string]any
	DeleteMissing bool
}

// Fake is an in-memory PocketBase. It understands filters made of
// &&-joined `field = value` / `field != value` clauses, which covers
// everything the server generates. Other syntax yields a 400 APIError.
type Fake struct {
	mu          sync.Mutex
	order       []string
	collections map[string]pocketbase.Collection
	records     map[string][]pocketbase.Record
	nextID      int
	creates     map[string]int
	imports     []ImportCall
	errs        map[string]error
	token       string

	// BeforeCreate, when set, runs before every Create outside the lock.
	BeforeCreate func(collection string, data map[string]any)
}

var _ pocketbase.Client = (*Fake)(nil)

// NewFake returns a fake seeded with empty collections.
func NewFake(collections ...string) *Fake {
	f := &Fake{
		collections: make(map[string]pocketbase.Collection),
		records:     make(map[string][]pocketbase.Record),
		creates:     make(map[string]int),
		errs:        make(map[string]error),
	}
	for _, name := range collections {
		f.addCollection(pocketbase.Collection{"name": name, "type": "base"})
	}
	return f
}

// FailOn makes every call of the named method (e.g. "Create") return err.
// A nil err clears the failure.
func (f *Fake) FailOn(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.errs, method)
		return
	}
	f.errs[method] = err
}

// Records returns a copy of every record in collection.
func (f *Fake) Records(collection string) []pocketbase.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]pocketbase.Record, 0, len(f.records[collection]))
	for _, r := range f.records[collection] {
		out = append(out, clone(r))
	}
	return out
}

// Put stores rec in collection as is, assigning an id when missing.
func (f *Fake) Put(collection string, rec pocketbase.Record) pocketbase.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.collections[collection]; !ok {
		f.addCollection(pocketbase.Collection{"name": collection, "type": "base"})
	}
	r := clone(rec)
	if r.ID() == "" {
		r["id"] = f.newID()
	}
	f.records[collection] = append(f.records[collection], r)
	return clone(r)
}

// CreateCount reports how many successful Create calls targeted collection.
func (f *Fake) CreateCount(collection string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.creates[collection]
}

// Imports returns the recorded ImportCollections calls.
func (f *Fake) Imports() []ImportCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ImportCall(nil), f.imports...)
}

// Token returns the token set by the last AuthenticateAdmin.
func (f *Fake) Token() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token
}

// ListCollections implements pocketbase.Client.
func (f *Fake) ListCollections(ctx context.Context) ([]pocketbase.Collection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("ListCollections"); err != nil {
		return nil, err
	}
	out := make([]pocketbase.Collection, 0, len(f.order))
	for _, name := range f.order {
		out = append(out, pocketbase.Collection(clone(pocketbase.Record(f.collections[name]))))
	}
	return out, nil
}

// GetList implements pocketbase.Client.
func (f *Fake) GetList(ctx context.Context, collection string, q pocketbase.ListQuery) (*pocketbase.ListResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("GetList"); err != nil {
		return nil, err
	}
	matched, err := f.match(collection, q.Filter)
	if err != nil {
		return nil, err
	}
	if err := sortRecords(matched, q.Sort); err != nil {
		return nil, err
	}

	page, perPage := q.Page, q.PerPage
	if page <= 0 {
		page = 1
	}
	if perPage <= 0 {
		perPage = 30
	}
	total := len(matched)
	start := (page - 1) * perPage
	if start > total {
		start = total
	}
	end := start + perPage
	if end > total {
		end = total
	}
	items := make([]pocketbase.Record, 0, end-start)
	for _, r := range matched[start:end] {
		items = append(items, clone(r))
	}
	return &pocketbase.ListResult{
		Page:       page,
		PerPage:    perPage,
		TotalItems: total,
		TotalPages: (total + perPage - 1) / perPage,
		Items:      items,
	}, nil
}

// GetFirstListItem implements pocketbase.Client.
func (f *Fake) GetFirstListItem(ctx context.Context, collection, filter string) (pocketbase.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("GetFirstListItem"); err != nil {
		return nil, err
	}
	matched, err := f.match(collection, filter)
	if err != nil {
		return nil, err
	}
	if len(matched) == 0 {
		return nil, notFound()
	}
	return clone(matched[0]), nil
}

// Create implements pocketbase.Client.
func (f *Fake) Create(ctx context.Context, collection string, data map[string]any) (pocketbase.Record, error) {
	if f.BeforeCreate != nil {
		f.BeforeCreate(collection, data)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("Create"); err != nil {
		return nil, err
	}
	if _, ok := f.collections[collection]; !ok {
		return nil, missingCollection()
	}
	rec := pocketbase.Record{}
	for k, v := range data {
		if k == "password" || k == "passwordConfirm" {
			continue
		}
		rec[k] = v
	}
	rec["id"] = f.newID()
	rec["collectionName"] = collection
	now := time.Now().UTC().Format(time.RFC3339Nano)
	rec["created"] = now
	rec["updated"] = now
	f.records[collection] = append(f.records[collection], rec)
	f.creates[collection]++
	return clone(rec), nil
}

// Update implements pocketbase.Client.
func (f *Fake) Update(ctx context.Context, collection, id string, data map[string]any) (pocketbase.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("Update"); err != nil {
		return nil, err
	}
	for _, rec := range f.records[collection] {
		if rec.ID() != id {
			continue
		}
		for k, v := range data {
			if k == "id" {
				continue
			}
			rec[k] = v
		}
		rec["updated"] = time.Now().UTC().Format(time.RFC3339Nano)
		return clone(rec), nil
	}
	return nil, notFound()
}

// Delete implements pocketbase.Client.
func (f *Fake) Delete(ctx context.Context, collection, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("Delete"); err != nil {
		return err
	}
	recs := f.records[collection]
	for i, rec := range recs {
		if rec.ID() == id {
			f.records[collection] = append(recs[:i:i], recs[i+1:]...)
			return nil
		}
	}
	return notFound()
}

// ImportCollections implements pocketbase.Client.
func (f *Fake) ImportCollections(ctx context.Context, collections []map[string]any, deleteMissing bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("ImportCollections"); err != nil {
		return err
	}
	f.imports = append(f.imports, ImportCall{Collections: collections, DeleteMissing: deleteMissing})

	keep := make(map[string]bool, len(collections))
	for _, c := range collections {
		name, _ := c["name"].(string)
		if name == "" {
			return &pocketbase.APIError{Status: http.StatusBadRequest, Message: "Failed to import collections."}
		}
		keep[name] = true
		if _, ok := f.collections[name]; ok {
			f.collections[name] = pocketbase.Collection(c)
			continue
		}
		f.addCollection(pocketbase.Collection(c))
	}
	if deleteMissing {
		order := f.order[:0]
		for _, name := range f.order {
			if keep[name] {
				order = append(order, name)
				continue
			}
			delete(f.collections, name)
			delete(f.records, name)
		}
		f.order = order
	}
	return nil
}

// AuthenticateAdmin implements pocketbase.Client.
func (f *Fake) AuthenticateAdmin(ctx context.Context, email, password string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("AuthenticateAdmin"); err != nil {
		return err
	}
	f.token = "fake-token-" + email
	return nil
}

func (f *Fake) addCollection(c pocketbase.Collection) {
	name, _ := c["name"].(string)
	if _, ok := c["id"]; !ok {
		c["id"] = "col_" + name
	}
	f.collections[name] = c
	f.order = append(f.order, name)
}

func (f *Fake) newID() string {
	f.nextID++
	return fmt.Sprintf("r%014d", f.nextID)
}

func (f *Fake) failure(method string) error {
	return f.errs[method]
}

func (f *Fake) match(collection, filter string) ([]pocketbase.Record, error) {
	if _, ok := f.collections[collection]; !ok {
		return nil, missingCollection()
	}
	clauses, err := parseFilter(filter)
	if err != nil {
		return nil, &pocketbase.APIError{Status: http.StatusBadRequest, Message: "Invalid filter: " + err.Error()}
	}
	var out []pocketbase.Record
	for _, rec := range f.records[collection] {
		if matchesAll(rec, clauses) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func notFound() error {
	return &pocketbase.APIError{Status: http.StatusNotFound, Message: "The requested resource wasn't found."}
}

func missingCollection() error {
	return &pocketbase.APIError{Status: http.StatusNotFound, Message: "Missing collection context."}
}

func clone(r pocketbase.Record) pocketbase.Record {
	out := make(pocketbase.Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

func sortRecords(recs []pocketbase.Record, order string) error {
	order = strings.TrimSpace(order)
	if order == "" {
		return nil
	}
	keys := strings.Split(order, ",")
	for i := len(keys) - 1; i >= 0; i-- {
		key := strings.TrimSpace(keys[i])
		desc := strings.HasPrefix(key, "-")
		key = strings.TrimLeft(key, "+-")
		if key == "" {
			return &pocketbase.APIError{Status: http.StatusBadRequest, Message: "Invalid sort."}
		}
		sort.SliceStable(recs, func(a, b int) bool {
			x, y := fmt.Sprint(recs[a][key]), fmt.Sprint(recs[b][key])
			if desc {
				return x > y
			}
			return x < y
		})
	}
	return nil
}

type clause struct {
	field  string
	negate bool
	value  any
}

func matchesAll(rec pocketbase.Record, clauses []clause) bool {
	for _, c := range clauses {
		eq := equalValues(rec[c.field], c.value)
		if eq == c.negate {
			return false
		}
	}
	return true
}

func equalValues(have, want any) bool {
	switch w := want.(type) {
	case float64:
		switch h := have.(type) {
		case float64:
			return h == w
		case int:
			return float64(h) == w
		}
		return false
	case nil:
		return have == nil || have == ""
	default:
		return have == want
	}
}

// parseFilter splits on top-level && (outside quotes) and parses each clause.
func parseFilter(filter string) ([]clause, error) {
	filter = strings.TrimSpace(filter)
	if filter == "" {
		return nil, nil
	}
	var parts []string
	var cur strings.Builder
	inQuote, escaped := false, false
	for i := 0; i < len(filter); i++ {
		ch := filter[i]
		switch {
		case escaped:
			escaped = false
		case inQuote && ch == '\\':
			escaped = true
		case ch == '"':
			inQuote = !inQuote
		case !inQuote && ch == '&' && i+1 < len(filter) && filter[i+1] == '&':
			parts = append(parts, cur.String())
			cur.Reset()
			i++
			continue
		case !inQuote && ch == '|':
			return nil, fmt.Errorf("unsupported operator ||")
		}
		cur.WriteByte(ch)
	}
	if inQuote {
		return nil, fmt.Errorf("unterminated string")
	}
	parts = append(parts, cur.String())

	clauses := make([]clause, 0, len(parts))
	for _, p := range parts {
		c, err := parseClause(p)
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, c)
	}
	return clauses, nil
}

func parseClause(s string) (clause, error) {
	s = strings.Trim(s, "() \t\n")
	op, negate := "=", false
	idx := strings.Index(s, "!=")
	if idx >= 0 {
		op, negate = "!=", true
	} else {
		idx = strings.Index(s, "=")
	}
	if idx <= 0 {
		return clause{}, fmt.Errorf("cannot parse %q", s)
	}
	field := strings.TrimSpace(s[:idx])
	raw := strings.TrimSpace(s[idx+len(op):])
	if field == "" || raw == "" {
		return clause{}, fmt.Errorf("cannot parse %q", s)
	}
	v, err := parseValue(raw)
	if err != nil {
		return clause{}, err
	}
	return clause{field: field, negate: negate, value: v}, nil
}

func parseValue(raw string) (any, error) {
	switch {
	case strings.HasPrefix(raw, `"`) && strings.HasSuffix(raw, `"`) && len(raw) >= 2:
		var b strings.Builder
		body := raw[1 : len(raw)-1]
		for i := 0; i < len(body); i++ {
			if body[i] == '\\' && i+1 < len(body) {
				i++
			}
			b.WriteByte(body[i])
		}
		return b.String(), nil
	case raw == "true":
		return true, nil
	case raw == "false":
		return false, nil
	case raw == "null":
		return nil, nil
	}
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("cannot parse value %q", raw)
	}
	return n, nil
}
