package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/broly1009a/studymate-sub002/assistant"
)

func init() {
	jwtSecret = []byte("test_secret")
}

// memStore is an in-memory Store with the same filter and order semantics as
// the Postgres implementation.
type memStore struct {
	mu            sync.Mutex
	nextUserID    int
	nextPartnerID int
	users         map[int]*memUser
	partners      map[int]*Partner
	summaryCalls  [][]int
	listErr       error
}

type memUser struct {
	user User
	hash string
}

func newMemStore() *memStore {
	return &memStore{users: map[int]*memUser{}, partners: map[int]*Partner{}}
}

func (s *memStore) CreateUser(_ context.Context, email, passwordHash, fullName string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.user.Email, email) {
			return 0, ErrEmailExists
		}
	}
	s.nextUserID++
	now := time.Now()
	s.users[s.nextUserID] = &memUser{
		user: User{ID: s.nextUserID, Email: email, FullName: fullName, Role: roleUser, CreatedAt: now, UpdatedAt: now},
		hash: passwordHash,
	}
	return s.nextUserID, nil
}

func (s *memStore) UserCredentials(_ context.Context, email string) (int, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, u := range s.users {
		if u.user.Email == email {
			return id, u.hash, nil
		}
	}
	return 0, "", ErrNotFound
}

func (s *memStore) User(_ context.Context, id int) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := u.user
	return &cp, nil
}

func (s *memStore) UpdateProfile(_ context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	mu, ok := s.users[u.ID]
	if !ok {
		return ErrNotFound
	}
	u.UpdatedAt = time.Now()
	mu.user = *u
	return nil
}

func (s *memStore) UserSummaries(_ context.Context, ids []int) (map[int]*UserSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaryCalls = append(s.summaryCalls, append([]int(nil), ids...))
	out := make(map[int]*UserSummary, len(ids))
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			out[id] = &UserSummary{ID: id, FullName: u.user.FullName, Avatar: u.user.Avatar}
		}
	}
	return out, nil
}

func (s *memStore) ListPartners(_ context.Context, q PartnerQuery) (*PartnerPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}

	var matched []Partner
	for _, p := range s.partners {
		if memPartnerMatches(p, q) {
			matched = append(matched, *p)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Rating != matched[j].Rating {
			return matched[i].Rating > matched[j].Rating
		}
		return matched[i].ID < matched[j].ID
	})

	page := &PartnerPage{Items: []Partner{}, Total: len(matched)}
	start := q.Offset()
	if start < len(matched) {
		end := start + q.Limit
		if end > len(matched) {
			end = len(matched)
		}
		page.Items = append(page.Items, matched[start:end]...)
	}
	return page, nil
}

func memPartnerMatches(p *Partner, q PartnerQuery) bool {
	contains := func(field *string, needle string) bool {
		return field != nil && strings.Contains(strings.ToLower(*field), strings.ToLower(needle))
	}
	if q.ExcludeUserID > 0 && p.UserID == q.ExcludeUserID {
		return false
	}
	if s := strings.TrimSpace(q.Subject); s != "" {
		found := false
		for _, sub := range p.Subjects {
			if strings.EqualFold(sub, s) {
				found = true
			}
		}
		if !found {
			return false
		}
	}
	if p.Rating < q.MinRating {
		return false
	}
	if s := strings.TrimSpace(q.Search); s != "" {
		if !contains(&p.Name, s) && !contains(&p.Bio, s) && !contains(p.University, s) && !contains(p.Major, s) {
			return false
		}
	}
	if s := strings.TrimSpace(q.University); s != "" && !contains(p.University, s) {
		return false
	}
	if s := strings.TrimSpace(q.Major); s != "" && !contains(p.Major, s) {
		return false
	}
	return true
}

func (s *memStore) Partner(_ context.Context, id int) (*Partner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.partners[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *memStore) CreatePartner(_ context.Context, p *Partner) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.partners {
		if existing.UserID == p.UserID {
			return ErrPartnerExists
		}
	}
	s.nextPartnerID++
	p.ID = s.nextPartnerID
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	cp := *p
	s.partners[p.ID] = &cp
	return nil
}

func (s *memStore) UpdatePartner(_ context.Context, p *Partner) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.partners[p.ID]; !ok {
		return ErrNotFound
	}
	p.UpdatedAt = time.Now()
	cp := *p
	s.partners[p.ID] = &cp
	return nil
}

func (s *memStore) DeletePartner(_ context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.partners[id]; !ok {
		return ErrNotFound
	}
	delete(s.partners, id)
	return nil
}

// addUser stores u with a cheap bcrypt hash of password and returns its id.
func (s *memStore) addUser(t *testing.T, u User, password string) int {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextUserID++
	u.ID = s.nextUserID
	if u.Role == "" {
		u.Role = roleUser
	}
	s.users[u.ID] = &memUser{user: u, hash: string(hash)}
	return u.ID
}

func (s *memStore) addPartner(p Partner) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextPartnerID++
	p.ID = s.nextPartnerID
	s.partners[p.ID] = &p
	return p.ID
}

func (s *memStore) summaryCallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.summaryCalls)
}

// fakeGenerator stands in for the hosted model.
type fakeGenerator struct {
	mu    sync.Mutex
	calls int
	reply assistant.Completion
	err   error
}

func (f *fakeGenerator) Generate(_ context.Context, _ assistant.Prompt) (*assistant.Completion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	c := f.reply
	return &c, nil
}

func (f *fakeGenerator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

var testPartnerLimits = PartnersConfig{DefaultLimit: 10, MaxLimit: 20}

func newTestRouter(store Store, gen assistant.Generator) http.Handler {
	ai := assistant.New(gen, assistant.NewMemorySessions(20), assistant.Config{
		Model:           "test-model",
		CostPer1KTokens: 0.5,
		HistoryTurns:    4,
	}, zap.NewNop())
	return newRouter(routerDeps{
		store:          store,
		ai:             ai,
		partners:       testPartnerLimits,
		allowedOrigins: []string{"http://localhost:5173"},
		logger:         zap.NewNop(),
	})
}

func mustToken(t *testing.T, userID int) string {
	t.Helper()
	token, err := issueToken(userID, time.Now())
	if err != nil {
		t.Fatalf("issuing token: %v", err)
	}
	return token
}

func doRequest(h http.Handler, method, target, body, token string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func strPtr(s string) *string { return &s }

func intPtr(i int) *int { return &i }
