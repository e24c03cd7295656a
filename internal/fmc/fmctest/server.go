// Package fmctest provides an in-memory management controller for tests.
//
// The fake tracks references the way the controller does: an object is
// unused when no policy pins it and no existing group lists it as a member.
// A child group therefore only becomes unused once its parent is deleted.
package fmctest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/martinsuchenak/fmcsweep/internal/fmc"
	"github.com/martinsuchenak/fmcsweep/internal/model"
)

const (
	Username = "api-user"
	Password = "api-pass"
	DomainID = "e276abec-e0f2-11e3-8169-6d9ed49b625f"
)

// Entry is an object stored by the fake controller
type Entry struct {
	ID          string
	Name        string
	Description string
	Type        string
	Value       string
	Category    model.Category
	ReadOnly    bool
	Objects     []model.MemberRef
	Literals    []model.Literal
}

// Ref returns a member reference to the entry
func (e *Entry) Ref() model.MemberRef {
	return model.MemberRef{Type: e.Type, Name: e.Name, ID: e.ID}
}

// Request is a request seen by the fake
type Request struct {
	Method string
	Path   string
	Query  string
	Body   []byte
}

// Server is a fake controller listening on a local httptest server
type Server struct {
	*httptest.Server

	mu            sync.Mutex
	objects       map[model.Category][]*Entry
	pinned        map[string]bool
	rejectDelete  map[string]string
	rejectCreate  map[string]string
	rateLimitNext int
	accessToken   string
	refreshToken  string
	requests      []Request
	created       []string
}

// NewServer starts a plain HTTP fake, closed when the test ends
func NewServer(t testing.TB) *Server {
	t.Helper()
	s := newServer()
	s.Server = httptest.NewServer(s.handler())
	t.Cleanup(s.Close)
	return s
}

// NewTLSServer starts a fake with a self-signed certificate
func NewTLSServer(t testing.TB) *Server {
	t.Helper()
	s := newServer()
	s.Server = httptest.NewTLSServer(s.handler())
	t.Cleanup(s.Close)
	return s
}

func newServer() *Server {
	return &Server{
		objects:      make(map[model.Category][]*Entry),
		pinned:       make(map[string]bool),
		rejectDelete: make(map[string]string),
		rejectCreate: make(map[string]string),
		accessToken:  uuid.NewString(),
		refreshToken: uuid.NewString(),
	}
}

// Login returns a client authenticated against the fake with no cooldown
func (s *Server) Login(t testing.TB, opts ...fmc.Option) *fmc.Client {
	t.Helper()
	opts = append([]fmc.Option{fmc.WithCooldown(time.Millisecond), fmc.WithRequestsPerMinute(0)}, opts...)
	client := fmc.NewClient(s.URL, opts...)
	if _, err := client.Authenticate(context.Background(), fmc.Credentials{Username: Username, Password: Password}); err != nil {
		t.Fatalf("login to fake controller: %v", err)
	}
	return client
}

// AddNetwork stores a Network, Range or Host
func (s *Server) AddNetwork(category model.Category, name, value string) *Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := &Entry{
		ID:          uuid.NewString(),
		Name:        name,
		Description: "desc " + name,
		Type:        category.ObjectType(),
		Value:       value,
		Category:    category,
	}
	s.objects[category] = append(s.objects[category], e)
	return e
}

// AddGroup stores a group with the given members
func (s *Server) AddGroup(name string, members ...*Entry) *Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := &Entry{
		ID:          uuid.NewString(),
		Name:        name,
		Description: "group " + name,
		Type:        model.TypeNetworkGroup,
		Category:    model.NetworkGroups,
	}
	for _, m := range members {
		e.Objects = append(e.Objects, m.Ref())
	}
	s.objects[model.NetworkGroups] = append(s.objects[model.NetworkGroups], e)
	return e
}

// AddLiteral appends an inline literal to a group
func (s *Server) AddLiteral(group *Entry, typ, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	group.Literals = append(group.Literals, model.Literal{Type: typ, Value: value})
}

// SetReadOnly marks an entry as a system object
func (s *Server) SetReadOnly(e *Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ReadOnly = true
}

// Pin marks an entry as referenced by a policy so it is never unused
func (s *Server) Pin(e *Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pinned[e.ID] = true
}

// RejectDelete makes deletes of the named object fail with message
func (s *Server) RejectDelete(name, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejectDelete[name] = message
}

// RejectCreate makes creates of the named object fail with message
func (s *Server) RejectCreate(name, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejectCreate[name] = message
}

// RateLimitNext answers the next n requests with 429
func (s *Server) RateLimitNext(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rateLimitNext = n
}

// ExpireToken invalidates the current access token
func (s *Server) ExpireToken() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessToken = uuid.NewString()
}

// Find returns the stored entry with the given name, or nil
func (s *Server) Find(category model.Category, name string) *Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.objects[category] {
		if e.Name == name {
			return e
		}
	}
	return nil
}

// Names lists stored entry names in storage order
func (s *Server) Names(category model.Category) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.objects[category]))
	for _, e := range s.objects[category] {
		names = append(names, e.Name)
	}
	return names
}

// Count returns the number of stored entries
func (s *Server) Count(category model.Category) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects[category])
}

// Unused lists the names the controller would report as unused, read-only
// objects included
func (s *Server) Unused(category model.Category) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var names []string
	for _, e := range s.objects[category] {
		if !s.inUse(e.ID) {
			names = append(names, e.Name)
		}
	}
	return names
}

// Created lists the names of objects created through the API, in order
func (s *Server) Created() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.created...)
}

// Requests returns every request received
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// CountRequests counts requests with the given method whose path contains fragment
func (s *Server) CountRequests(method, fragment string) int {
	n := 0
	for _, r := range s.Requests() {
		if r.Method == method && strings.Contains(r.Path, fragment) {
			n++
		}
	}
	return n
}

func (s *Server) inUse(id string) bool {
	if s.pinned[id] {
		return true
	}
	for _, g := range s.objects[model.NetworkGroups] {
		for _, m := range g.Objects {
			if m.ID == id {
				return true
			}
		}
	}
	return false
}

func (s *Server) lookup(category model.Category, id string) (int, *Entry) {
	for i, e := range s.objects[category] {
		if e.ID == id {
			return i, e
		}
	}
	return -1, nil
}

func (s *Server) findAny(id string) *Entry {
	for _, entries := range s.objects {
		for _, e := range entries {
			if e.ID == id {
				return e
			}
		}
	}
	return nil
}

func (s *Server) handler() http.Handler {
	const objectBase = "/api/fmc_config/v1/domain/{domain}/object/{category}"

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/fmc_platform/v1/auth/generatetoken", s.generateToken)
	mux.HandleFunc("POST /api/fmc_platform/v1/auth/refreshtoken", s.refresh)
	mux.HandleFunc("GET "+objectBase, s.authorized(s.list))
	mux.HandleFunc("POST "+objectBase, s.authorized(s.create))
	mux.HandleFunc("GET "+objectBase+"/{id}", s.authorized(s.get))
	mux.HandleFunc("DELETE "+objectBase+"/{id}", s.authorized(s.delete))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body []byte
		if r.Body != nil {
			body, _ = io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewReader(body))
		}

		s.mu.Lock()
		s.requests = append(s.requests, Request{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery, Body: body})
		limited := s.rateLimitNext > 0
		if limited {
			s.rateLimitNext--
		}
		s.mu.Unlock()

		if limited {
			writeError(w, http.StatusTooManyRequests, "Too many requests")
			return
		}
		mux.ServeHTTP(w, r)
	})
}

func (s *Server) generateToken(w http.ResponseWriter, r *http.Request) {
	user, pass, ok := r.BasicAuth()
	if !ok || user != Username || pass != Password {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	s.mu.Lock()
	w.Header().Set("X-auth-access-token", s.accessToken)
	w.Header().Set("X-auth-refresh-token", s.refreshToken)
	w.Header().Set("DOMAIN_UUID", DomainID)
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.Header.Get("X-auth-refresh-token") != s.refreshToken {
		writeError(w, http.StatusUnauthorized, "Invalid refresh token")
		return
	}
	s.accessToken = uuid.NewString()
	w.Header().Set("X-auth-access-token", s.accessToken)
	w.Header().Set("X-auth-refresh-token", s.refreshToken)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) authorized(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		token := s.accessToken
		s.mu.Unlock()
		if r.Header.Get("X-auth-access-token") != token {
			writeError(w, http.StatusUnauthorized, "Access token invalid")
			return
		}
		if r.PathValue("domain") != DomainID {
			writeError(w, http.StatusNotFound, "Unknown domain")
			return
		}
		next(w, r)
	}
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	category := model.Category(r.PathValue("category"))
	q := r.URL.Query()
	offset, _ := strconv.Atoi(q.Get("offset"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit <= 0 {
		limit = 25
	}
	if limit > fmc.MaxPageSize {
		limit = fmc.MaxPageSize
	}
	unusedOnly := q.Get("filter") == "unusedOnly:true"

	s.mu.Lock()
	var matched []*Entry
	for _, e := range s.objects[category] {
		if unusedOnly && s.inUse(e.ID) {
			continue
		}
		matched = append(matched, e)
	}
	s.mu.Unlock()

	pages := (len(matched) + limit - 1) / limit
	resp := map[string]any{
		"paging": map[string]int{"offset": offset, "limit": limit, "count": len(matched), "pages": pages},
	}
	var items []map[string]any
	for i := offset; i < len(matched) && i < offset+limit; i++ {
		items = append(items, summary(matched[i]))
	}
	if len(items) > 0 {
		resp["items"] = items
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	category := model.Category(r.PathValue("category"))
	s.mu.Lock()
	_, e := s.lookup(category, r.PathValue("id"))
	s.mu.Unlock()
	if e == nil {
		writeError(w, http.StatusNotFound, "Object not found")
		return
	}
	writeJSON(w, http.StatusOK, detail(e))
}

func (s *Server) delete(w http.ResponseWriter, r *http.Request) {
	category := model.Category(r.PathValue("category"))
	s.mu.Lock()
	defer s.mu.Unlock()

	i, e := s.lookup(category, r.PathValue("id"))
	switch {
	case e == nil:
		writeError(w, http.StatusNotFound, "Object not found")
		return
	case e.ReadOnly:
		writeError(w, http.StatusBadRequest, "Operation not permitted on system defined object "+e.Name)
		return
	case s.rejectDelete[e.Name] != "":
		writeError(w, http.StatusBadRequest, s.rejectDelete[e.Name])
		return
	case s.inUse(e.ID):
		writeError(w, http.StatusBadRequest, "Object "+e.Name+" is in use")
		return
	}

	s.objects[category] = append(s.objects[category][:i], s.objects[category][i+1:]...)
	writeJSON(w, http.StatusOK, detail(e))
}

func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	category := model.Category(r.PathValue("category"))

	var payload struct {
		Name        string            `json:"name"`
		Description string            `json:"description"`
		Type        string            `json:"type"`
		Value       string            `json:"value"`
		Objects     []model.MemberRef `json:"objects"`
		Literals    []model.Literal   `json:"literals"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if msg := s.rejectCreate[payload.Name]; msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	for _, e := range s.objects[category] {
		if e.Name == payload.Name {
			writeError(w, http.StatusBadRequest, "The object name "+payload.Name+" already exists. Enter a new name.")
			return
		}
	}
	for _, m := range payload.Objects {
		if s.findAny(m.ID) == nil {
			writeError(w, http.StatusBadRequest, "Invalid member "+m.Name)
			return
		}
	}
	if category.IsGroup() && len(payload.Objects) == 0 && len(payload.Literals) == 0 {
		writeError(w, http.StatusBadRequest, "Network group "+payload.Name+" needs at least one member")
		return
	}

	e := &Entry{
		ID:          uuid.NewString(),
		Name:        payload.Name,
		Description: payload.Description,
		Type:        payload.Type,
		Value:       payload.Value,
		Category:    category,
		Objects:     payload.Objects,
		Literals:    payload.Literals,
	}
	s.objects[category] = append(s.objects[category], e)
	s.created = append(s.created, e.Name)
	writeJSON(w, http.StatusCreated, detail(e))
}

func summary(e *Entry) map[string]any {
	item := map[string]any{"id": e.ID, "name": e.Name, "type": e.Type}
	if e.ReadOnly {
		item["metadata"] = map[string]any{"readOnly": map[string]any{"state": true, "reason": "SYSTEM"}}
	} else {
		item["metadata"] = map[string]any{}
	}
	return item
}

func detail(e *Entry) map[string]any {
	d := summary(e)
	d["description"] = e.Description
	if e.Category.IsGroup() {
		if len(e.Objects) > 0 {
			d["objects"] = e.Objects
		}
		if len(e.Literals) > 0 {
			d["literals"] = e.Literals
		}
	} else {
		d["value"] = e.Value
	}
	return d
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, description string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"category": "FRAMEWORK",
			"messages": []map[string]string{{"description": description}},
			"severity": "ERROR",
		},
	})
}
