package http

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
)

// fakePocketBase answers the record and auth endpoints the portal calls.
// Filters are ignored; callers seed only what a test needs.
type fakePocketBase struct {
	mu      sync.Mutex
	records map[string][]map[string]any
	users   map[string]map[string]any // by email
	nextID  int
	server  *httptest.Server
}

func newFakePocketBase(t *testing.T) *fakePocketBase {
	t.Helper()
	pb := &fakePocketBase{
		records: make(map[string][]map[string]any),
		users:   make(map[string]map[string]any),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"code": 200, "message": "API is healthy."})
	})
	mux.HandleFunc("POST /api/collections/users/auth-with-password", pb.handleAuth)
	mux.HandleFunc("POST /api/collections/users/auth-refresh", pb.handleRefresh)
	mux.HandleFunc("GET /api/collections/{collection}/records", pb.handleList)
	mux.HandleFunc("GET /api/collections/{collection}/records/{id}", pb.handleView)
	mux.HandleFunc("POST /api/collections/{collection}/records", pb.handleCreate)
	mux.HandleFunc("PATCH /api/collections/{collection}/records/{id}", pb.handleUpdate)
	mux.HandleFunc("DELETE /api/collections/{collection}/records/{id}", pb.handleDelete)
	pb.server = httptest.NewServer(mux)
	t.Cleanup(pb.server.Close)
	return pb
}

func (pb *fakePocketBase) URL() string { return pb.server.URL }

func (pb *fakePocketBase) addUser(id, email, role string) {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	rec := map[string]any{"id": id, "email": email, "name": "User " + id, "role": role}
	pb.users[email] = rec
	pb.records["users"] = append(pb.records["users"], rec)
}

func (pb *fakePocketBase) seed(collection string, records ...map[string]any) {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	pb.records[collection] = append(pb.records[collection], records...)
}

func (pb *fakePocketBase) all(collection string) []map[string]any {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	return append([]map[string]any(nil), pb.records[collection]...)
}

// testToken is an unsigned JWT for userID expiring in 2100.
func testToken(userID string) string {
	enc := base64.RawURLEncoding
	return enc.EncodeToString([]byte(`{"alg":"HS256"}`)) + "." +
		enc.EncodeToString([]byte(fmt.Sprintf(`{"id":%q,"exp":4102444800}`, userID))) + ".sig"
}

func (pb *fakePocketBase) handleAuth(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Identity string `json:"identity"`
		Password string `json:"password"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	pb.mu.Lock()
	user, ok := pb.users[body.Identity]
	pb.mu.Unlock()
	if !ok || body.Password != "secret" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"code": 400, "message": "Failed to authenticate.", "data": map[string]any{}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": testToken(user["id"].(string)), "record": user})
}

func (pb *fakePocketBase) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"code": 401, "message": "The request requires valid record authorization token."})
		return
	}
	pb.mu.Lock()
	var user map[string]any
	for _, u := range pb.users {
		if testToken(u["id"].(string)) == r.Header.Get("Authorization") {
			user = u
		}
	}
	pb.mu.Unlock()
	if user == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"code": 401, "message": "Invalid token."})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": testToken(user["id"].(string)), "record": user})
}

func (pb *fakePocketBase) handleList(w http.ResponseWriter, r *http.Request) {
	items := pb.all(r.PathValue("collection"))
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("perPage"))
	page, perPage = max(page, 1), max(perPage, 1)
	total := len(items)
	start := min((page-1)*perPage, total)
	end := min(start+perPage, total)
	writeJSON(w, http.StatusOK, map[string]any{
		"page":       page,
		"perPage":    perPage,
		"totalItems": total,
		"totalPages": (total + perPage - 1) / perPage,
		"items":      items[start:end],
	})
}

func (pb *fakePocketBase) handleView(w http.ResponseWriter, r *http.Request) {
	for _, rec := range pb.all(r.PathValue("collection")) {
		if rec["id"] == r.PathValue("id") {
			writeJSON(w, http.StatusOK, rec)
			return
		}
	}
	notFound(w)
}

func (pb *fakePocketBase) handleCreate(w http.ResponseWriter, r *http.Request) {
	rec := map[string]any{}
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"code": 400, "message": "Failed to load the submitted data."})
		return
	}
	pb.mu.Lock()
	pb.nextID++
	rec["id"] = fmt.Sprintf("rec%d", pb.nextID)
	collection := r.PathValue("collection")
	pb.records[collection] = append(pb.records[collection], rec)
	pb.mu.Unlock()
	writeJSON(w, http.StatusOK, rec)
}

func (pb *fakePocketBase) handleUpdate(w http.ResponseWriter, r *http.Request) {
	patch := map[string]any{}
	_ = json.NewDecoder(r.Body).Decode(&patch)
	pb.mu.Lock()
	defer pb.mu.Unlock()
	for _, rec := range pb.records[r.PathValue("collection")] {
		if rec["id"] == r.PathValue("id") {
			for k, v := range patch {
				rec[k] = v
			}
			writeJSON(w, http.StatusOK, rec)
			return
		}
	}
	notFound(w)
}

func (pb *fakePocketBase) handleDelete(w http.ResponseWriter, r *http.Request) {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	collection := r.PathValue("collection")
	for i, rec := range pb.records[collection] {
		if rec["id"] == r.PathValue("id") {
			pb.records[collection] = append(pb.records[collection][:i], pb.records[collection][i+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	notFound(w)
}

func notFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, map[string]any{"code": 404, "message": "The requested resource wasn't found.", "data": map[string]any{}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
