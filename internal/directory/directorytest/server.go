// Package directorytest runs an in-process backend that speaks the
// directory API. Every request is validated against the embedded OpenAPI
// contract before it is served, so a client that drifts from the contract
// fails loudly in tests.
package directorytest

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/legacy"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

//go:embed openapi.yaml
var contract []byte

// Contract returns the embedded OpenAPI document.
func Contract() []byte {
	return contract
}

// LoadContract parses and validates the embedded OpenAPI document.
func LoadContract(ctx context.Context) (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	loader.Context = ctx

	doc, err := loader.LoadFromData(contract)
	if err != nil {
		return nil, fmt.Errorf("failed to load OpenAPI contract: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("invalid OpenAPI contract: %w", err)
	}
	return doc, nil
}

// Seed describes a user present when the server starts.
type Seed struct {
	Name      string
	Email     string
	Password  string
	Role      string
	Active    bool
	Superuser bool
}

// DefaultSeeds is the demo directory: one protected root administrator and
// one user per role. Every password is "Passw0rd!".
func DefaultSeeds() []Seed {
	return []Seed{
		{Name: "Root Admin", Email: "root@rbr.local", Password: "Passw0rd!", Role: "SCM Admin", Active: true, Superuser: true},
		{Name: "Sam Admin", Email: "scm@rbr.local", Password: "Passw0rd!", Role: "SCM Admin", Active: true},
		{Name: "Erin Engineer", Email: "engineer@rbr.local", Password: "Passw0rd!", Role: "Sales Engineer", Active: true},
		{Name: "Max Manager", Email: "manager@rbr.local", Password: "Passw0rd!", Role: "Sales Manager", Active: true},
		{Name: "Morgan Exec", Email: "management@rbr.local", Password: "Passw0rd!", Role: "Management", Active: true},
	}
}

type user struct {
	id        int64
	name      string
	email     string
	hash      []byte
	role      string
	active    bool
	superuser bool
}

func (u *user) wire() map[string]any {
	var roleName any
	if u.role != "" {
		roleName = u.role
	}
	return map[string]any{
		"id":           u.id,
		"name":         u.name,
		"email":        u.email,
		"role_name":    roleName,
		"is_active":    u.active,
		"is_superuser": u.superuser,
	}
}

// Request is a recorded request as the server received it.
type Request struct {
	Method        string
	Path          string
	Authorization string
	RequestID     string
	Body          map[string]any
}

type failure struct {
	method string
	status int
	detail string
}

// Server is the fake backend.
type Server struct {
	*httptest.Server

	router     routers.Router
	signingKey []byte
	hashCost   int

	mu       sync.Mutex
	users    map[int64]*user
	nextID   int64
	requests []Request
	failures []failure
	hold     map[string]chan struct{}
}

// Option configures a Server.
type Option func(*Server)

// WithSeeds replaces the default seed users.
func WithSeeds(seeds ...Seed) Option {
	return func(s *Server) {
		s.users = make(map[int64]*user)
		s.nextID = 1
		for _, seed := range seeds {
			s.add(seed)
		}
	}
}

// WithHashCost sets the bcrypt cost for stored passwords.
func WithHashCost(cost int) Option {
	return func(s *Server) { s.hashCost = cost }
}

// NewServer starts a fake backend. Its URL plus "/api" is the base URL a
// directory client should use. Close it when done.
func NewServer(opts ...Option) (*Server, error) {
	doc, err := LoadContract(context.Background())
	if err != nil {
		return nil, err
	}
	router, err := legacy.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("build contract router: %w", err)
	}

	s := &Server{
		router:     router,
		signingKey: []byte(uuid.NewString()),
		hashCost:   bcrypt.MinCost,
		users:      make(map[int64]*user),
		nextID:     1,
		hold:       make(map[string]chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}
	if len(s.users) == 0 {
		for _, seed := range DefaultSeeds() {
			s.add(seed)
		}
	}

	mux := http.NewServeMux()
	mux.Handle("/api/", http.StripPrefix("/api", http.HandlerFunc(s.serve)))
	s.Server = httptest.NewServer(mux)
	return s, nil
}

// BaseURL returns the base URL for a directory client.
func (s *Server) BaseURL() string {
	return s.URL + "/api"
}

func (s *Server) add(seed Seed) *user {
	hash, err := bcrypt.GenerateFromPassword([]byte(seed.Password), s.hashCost)
	if err != nil {
		panic(fmt.Sprintf("directorytest: hash seed password: %v", err))
	}
	u := &user{
		id:        s.nextID,
		name:      seed.Name,
		email:     strings.ToLower(seed.Email),
		hash:      hash,
		role:      seed.Role,
		active:    seed.Active,
		superuser: seed.Superuser,
	}
	s.users[u.id] = u
	s.nextID++
	return u
}

// FailNext makes the next request with the given method fail with status.
func (s *Server) FailNext(method string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, failure{method: method, status: status, detail: http.StatusText(status)})
}

// Hold blocks requests with the given method until the returned release
// func is called.
func (s *Server) Hold(method string) (release func()) {
	ch := make(chan struct{})
	s.mu.Lock()
	s.hold[method] = ch
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.hold, method)
			s.mu.Unlock()
			close(ch)
		})
	}
}

// Requests returns every request received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Count returns how many requests with the given method were received.
func (s *Server) Count(method string) int {
	n := 0
	for _, r := range s.Requests() {
		if r.Method == method {
			n++
		}
	}
	return n
}

// ResetRequests forgets recorded requests.
func (s *Server) ResetRequests() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = nil
}

// User returns the wire form of the user with the given id.
func (s *Server) User(id int64) (map[string]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, false
	}
	return u.wire(), true
}

// IDByEmail returns the id of the user with the given email.
func (s *Server) IDByEmail(email string) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, u := range s.users {
		if u.email == strings.ToLower(email) {
			return id, true
		}
	}
	return 0, false
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	rec := Request{
		Method:        r.Method,
		Path:          r.URL.Path,
		Authorization: r.Header.Get("Authorization"),
		RequestID:     r.Header.Get("X-Request-ID"),
	}

	route, params, err := s.router.FindRoute(r)
	if err != nil {
		s.record(rec)
		writeDetail(w, http.StatusNotFound, "Not found.")
		return
	}

	input := &openapi3filter.RequestValidationInput{
		Request:    r,
		PathParams: params,
		Route:      route,
		Options: &openapi3filter.Options{
			AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
		},
	}
	if err := openapi3filter.ValidateRequest(r.Context(), input); err != nil {
		s.record(rec)
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	var body map[string]any
	if r.Body != nil && r.ContentLength != 0 {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}
	rec.Body = body
	s.record(rec)

	s.wait(r)

	if f, ok := s.takeFailure(r.Method); ok {
		writeDetail(w, f.status, f.detail)
		return
	}

	switch route.Operation.OperationID {
	case "login":
		s.login(w, body)
	case "listUsers":
		s.authorize(w, r, func() { s.list(w) })
	case "createUser":
		s.authorize(w, r, func() { s.create(w, body) })
	case "updateUser":
		s.authorize(w, r, func() { s.update(w, params["id"], body) })
	case "deleteUser":
		s.authorize(w, r, func() { s.remove(w, params["id"]) })
	default:
		writeDetail(w, http.StatusNotFound, "Not found.")
	}
}

func (s *Server) record(r Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, r)
}

func (s *Server) wait(r *http.Request) {
	s.mu.Lock()
	ch := s.hold[r.Method]
	s.mu.Unlock()
	if ch == nil {
		return
	}
	select {
	case <-ch:
	case <-r.Context().Done():
	}
}

func (s *Server) takeFailure(method string) (failure, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, f := range s.failures {
		if f.method == method {
			s.failures = append(s.failures[:i], s.failures[i+1:]...)
			return f, true
		}
	}
	return failure{}, false
}

type claims struct {
	jwt.RegisteredClaims
	UserID    int64  `json:"user_id"`
	TokenType string `json:"token_type"`
}

func (s *Server) issue(u *user, kind string, ttl time.Duration) (string, error) {
	now := time.Now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
		UserID:    u.id,
		TokenType: kind,
	})
	return tok.SignedString(s.signingKey)
}

func (s *Server) login(w http.ResponseWriter, body map[string]any) {
	email, _ := body["email"].(string)
	password, _ := body["password"].(string)

	s.mu.Lock()
	var found *user
	for _, u := range s.users {
		if u.email == strings.ToLower(email) {
			found = u
			break
		}
	}
	s.mu.Unlock()

	if found == nil || bcrypt.CompareHashAndPassword(found.hash, []byte(password)) != nil {
		writeDetail(w, http.StatusUnauthorized, "Invalid email or password.")
		return
	}
	if !found.active {
		writeDetail(w, http.StatusUnauthorized, "User account is disabled.")
		return
	}

	access, err := s.issue(found, "access", time.Hour)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	refresh, err := s.issue(found, "refresh", 24*time.Hour)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.mu.Lock()
	profile := found.wire()
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Login successful",
		"tokens":  map[string]string{"access": access, "refresh": refresh},
		"user":    profile,
	})
}

// authorize admits only active SCM Admins holding a valid access token.
func (s *Server) authorize(w http.ResponseWriter, r *http.Request, next func()) {
	raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || raw == "" {
		writeDetail(w, http.StatusUnauthorized, "Authentication credentials were not provided.")
		return
	}

	var c claims
	_, err := jwt.ParseWithClaims(raw, &c, func(t *jwt.Token) (any, error) {
		return s.signingKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || c.TokenType != "access" {
		writeDetail(w, http.StatusUnauthorized, "Given token not valid for any token type")
		return
	}

	s.mu.Lock()
	u, ok := s.users[c.UserID]
	allowed := ok && u.active && u.role == "SCM Admin"
	s.mu.Unlock()

	if !ok || !u.active {
		writeDetail(w, http.StatusUnauthorized, "User not found")
		return
	}
	if !allowed {
		writeDetail(w, http.StatusForbidden, "You do not have permission to perform this action.")
		return
	}
	next()
}

func (s *Server) list(w http.ResponseWriter) {
	s.mu.Lock()
	out := make([]map[string]any, 0, len(s.users))
	ids := make([]int64, 0, len(s.users))
	for id := range s.users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] > ids[j] })
	for _, id := range ids {
		out = append(out, s.users[id].wire())
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) create(w http.ResponseWriter, body map[string]any) {
	seed := Seed{Active: true}
	seed.Name, _ = body["name"].(string)
	seed.Email, _ = body["email"].(string)
	seed.Role, _ = body["role"].(string)
	seed.Password, _ = body["password"].(string)
	if v, ok := body["is_active"].(bool); ok {
		seed.Active = v
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.emailTaken(seed.Email, 0) {
		writeFieldError(w, "email", "user with this email already exists.")
		return
	}
	u := s.add(seed)
	writeJSON(w, http.StatusCreated, u.wire())
}

func (s *Server) update(w http.ResponseWriter, rawID string, body map[string]any) {
	id, _ := strconv.ParseInt(rawID, 10, 64)

	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		writeDetail(w, http.StatusNotFound, "No User matches the given query.")
		return
	}

	if v, ok := body["email"].(string); ok {
		if s.emailTaken(v, id) {
			writeFieldError(w, "email", "user with this email already exists.")
			return
		}
		u.email = strings.ToLower(v)
	}
	if v, ok := body["name"].(string); ok {
		u.name = v
	}
	if v, ok := body["role"].(string); ok {
		u.role = v
	}
	if v, ok := body["is_active"].(bool); ok {
		u.active = v
	}
	if v, ok := body["password"].(string); ok {
		hash, err := bcrypt.GenerateFromPassword([]byte(v), s.hashCost)
		if err != nil {
			writeDetail(w, http.StatusInternalServerError, err.Error())
			return
		}
		u.hash = hash
	}
	writeJSON(w, http.StatusOK, u.wire())
}

func (s *Server) remove(w http.ResponseWriter, rawID string) {
	id, _ := strconv.ParseInt(rawID, 10, 64)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		writeDetail(w, http.StatusNotFound, "No User matches the given query.")
		return
	}
	delete(s.users, id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) emailTaken(email string, except int64) bool {
	for id, u := range s.users {
		if id != except && u.email == strings.ToLower(email) {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeFieldError(w http.ResponseWriter, field, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string][]string{field: {msg}})
}
