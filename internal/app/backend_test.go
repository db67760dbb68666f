package app_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"

	"quiz-portal/internal/pocketbase"
)

type call struct {
	Method     string
	Collection string
	ID         string
	Page       int
	PerPage    int
	Query      pocketbase.Query
	Body       json.RawMessage
}

// fakeBackend serves canned records per collection and records every call.
type fakeBackend struct {
	mu      sync.Mutex
	store   *pocketbase.AuthStore
	records map[string][]any
	totals  map[string]int
	errs    map[string]error
	auth    pocketbase.AuthResponse
	authErr error
	calls   []call
	nextID  int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		store:   pocketbase.NewAuthStore(),
		records: make(map[string][]any),
		totals:  make(map[string]int),
		errs:    make(map[string]error),
	}
}

func (f *fakeBackend) set(collection string, records ...any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[collection] = records
}

func (f *fakeBackend) fail(collection string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[collection] = err
}

// validToken is an unsigned JWT expiring in 2100.
func validToken() string {
	enc := base64.RawURLEncoding
	return enc.EncodeToString([]byte(`{"alg":"HS256"}`)) + "." +
		enc.EncodeToString([]byte(`{"exp":4102444800}`)) + ".sig"
}

func (f *fakeBackend) login(record string) {
	f.store.Save(validToken(), json.RawMessage(record))
}

func (f *fakeBackend) callsTo(method, collection string) []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []call
	for _, c := range f.calls {
		if c.Method == method && c.Collection == collection {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeBackend) record(c call) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	return f.errs[c.Collection]
}

func (f *fakeBackend) items(collection string) []any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.records[collection]
}

func decodeInto(v, out any) error {
	if out == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func (f *fakeBackend) GetOne(_ context.Context, collection, id string, q pocketbase.Query, out any) error {
	if err := f.record(call{Method: "GetOne", Collection: collection, ID: id, Query: q}); err != nil {
		return err
	}
	for _, item := range f.items(collection) {
		var rec struct {
			ID string `json:"id"`
		}
		if err := decodeInto(item, &rec); err == nil && rec.ID == id {
			return decodeInto(item, out)
		}
	}
	return &pocketbase.ResponseError{Status: 404, Message: "The requested resource wasn't found."}
}

func (f *fakeBackend) GetList(_ context.Context, collection string, page, perPage int, q pocketbase.Query, out any) (pocketbase.ListMeta, error) {
	if err := f.record(call{Method: "GetList", Collection: collection, Page: page, PerPage: perPage, Query: q}); err != nil {
		return pocketbase.ListMeta{}, err
	}
	items := f.items(collection)
	total := len(items)
	f.mu.Lock()
	if n, ok := f.totals[collection]; ok {
		total = n
	}
	f.mu.Unlock()
	if len(items) > perPage {
		items = items[:perPage]
	}
	if items == nil {
		items = []any{}
	}
	return pocketbase.ListMeta{Page: page, PerPage: perPage, TotalItems: total, TotalPages: 1}, decodeInto(items, out)
}

func (f *fakeBackend) GetFullList(_ context.Context, collection string, q pocketbase.Query, out any) error {
	if err := f.record(call{Method: "GetFullList", Collection: collection, Query: q}); err != nil {
		return err
	}
	items := f.items(collection)
	if items == nil {
		items = []any{}
	}
	return decodeInto(items, out)
}

func (f *fakeBackend) Create(_ context.Context, collection string, body, out any) error {
	raw, _ := json.Marshal(body)
	if err := f.record(call{Method: "Create", Collection: collection, Body: raw}); err != nil {
		return err
	}
	rec := map[string]any{}
	if err := json.Unmarshal(raw, &rec); err != nil {
		return err
	}
	f.mu.Lock()
	f.nextID++
	rec["id"] = fmt.Sprintf("new%d", f.nextID)
	f.mu.Unlock()
	return decodeInto(rec, out)
}

func (f *fakeBackend) Update(_ context.Context, collection, id string, body, out any) error {
	raw, _ := json.Marshal(body)
	if err := f.record(call{Method: "Update", Collection: collection, ID: id, Body: raw}); err != nil {
		return err
	}
	rec := map[string]any{}
	if err := json.Unmarshal(raw, &rec); err != nil {
		return err
	}
	rec["id"] = id
	return decodeInto(rec, out)
}

func (f *fakeBackend) Delete(_ context.Context, collection, id string) error {
	return f.record(call{Method: "Delete", Collection: collection, ID: id})
}

func (f *fakeBackend) AuthWithPassword(_ context.Context, collection, identity, _ string) (pocketbase.AuthResponse, error) {
	if err := f.record(call{Method: "AuthWithPassword", Collection: collection, ID: identity}); err != nil {
		return pocketbase.AuthResponse{}, err
	}
	if f.authErr != nil {
		return pocketbase.AuthResponse{}, f.authErr
	}
	f.store.Save(f.auth.Token, f.auth.Record)
	return f.auth, nil
}

func (f *fakeBackend) AuthRefresh(_ context.Context, collection string) (pocketbase.AuthResponse, error) {
	if err := f.record(call{Method: "AuthRefresh", Collection: collection}); err != nil {
		return pocketbase.AuthResponse{}, err
	}
	if f.authErr != nil {
		return pocketbase.AuthResponse{}, f.authErr
	}
	return f.auth, nil
}

func (f *fakeBackend) AuthStore() *pocketbase.AuthStore { return f.store }

// memoryPersister records the last saved auth export.
type memoryPersister struct {
	mu      sync.Mutex
	blob    string
	cleared bool
}

func (m *memoryPersister) SaveAuth(_ context.Context, blob string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blob = blob
	return nil
}

func (m *memoryPersister) ClearAuth(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blob, m.cleared = "", true
	return nil
}
