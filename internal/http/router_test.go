package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"

	"competition-voting/internal/domain/competition"
	"competition-voting/internal/domain/user"
	"competition-voting/internal/domain/vote"
	jwtpkg "competition-voting/internal/platform/jwt"
	"competition-voting/internal/repository/memory"
	"competition-voting/internal/worker"
)

type testEnv struct {
	server *httptest.Server
	store  *memory.Store
	voteCh chan worker.VoteEvent
	stats  *worker.StatsWorker
}

func setupServer(t *testing.T, voteBurst int) *testEnv {
	t.Helper()
	SetLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))

	store := memory.NewStore()
	userSvc := user.NewService(store.Users())
	compSvc := competition.NewService(store.Competitions())
	voteSvc := vote.NewService(store.Votes(), store.Competitions(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	voteCh := make(chan worker.VoteEvent, 100)
	stats := worker.NewStatsWorker(voteCh, slog.New(slog.NewTextHandler(io.Discard, nil)))

	server := httptest.NewServer(NewRouter(Deps{
		Users:        userSvc,
		Competitions: compSvc,
		Votes:        voteSvc,
		JWT:          jwtpkg.NewManager("secret", "test-issuer"),
		TokenTTL:     time.Hour,
		VoteCh:       voteCh,
		Activity:     stats,
		VoteRate:     rate.Every(time.Hour),
		VoteBurst:    voteBurst,
	}))
	t.Cleanup(server.Close)
	return &testEnv{server: server, store: store, voteCh: voteCh, stats: stats}
}

func seedUserWithPassword(t *testing.T, env *testEnv, email string, role user.Role, password string) uuid.UUID {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	u := &user.User{
		FullName:     "Test " + string(role),
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
	}
	if err := env.store.Users().Create(context.Background(), u); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u.ID
}

func loginAndToken(t *testing.T, env *testEnv, email, password string) string {
	t.Helper()
	resp := doJSON(t, env, http.MethodPost, "/api/v1/auth/login", "", loginRequest{Email: email, Password: password})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status: %d", resp.StatusCode)
	}
	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	token, _ := payload["token"].(string)
	if token == "" {
		t.Fatalf("token missing")
	}
	return token
}

func doJSON(t *testing.T, env *testEnv, method, path, token string, body any) *http.Response {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rdr = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, env.server.URL+path, rdr)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		payload, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected %d, got %d: %s", want, resp.StatusCode, payload)
	}
}

func decodeInto(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func decodeError(t *testing.T, resp *http.Response) map[string]string {
	t.Helper()
	var payload map[string]string
	decodeInto(t, resp, &payload)
	return payload
}

func createCompetitionViaAPI(t *testing.T, env *testEnv, token string, active bool, start, end time.Time) competition.Competition {
	t.Helper()
	resp := doJSON(t, env, http.MethodPost, "/api/v1/competitions", token, createCompetitionRequest{
		Title:     "Best Photo",
		StartTime: &start,
		EndTime:   &end,
		IsActive:  &active,
	})
	expectStatus(t, resp, http.StatusCreated)
	var c competition.Competition
	decodeInto(t, resp, &c)
	return c
}

func addOptionViaAPI(t *testing.T, env *testEnv, token string, compID uuid.UUID, name string) competition.Option {
	t.Helper()
	resp := doJSON(t, env, http.MethodPost, "/api/v1/competitions/"+compID.String()+"/options", token,
		createOptionRequest{Name: name})
	expectStatus(t, resp, http.StatusCreated)
	var o competition.Option
	decodeInto(t, resp, &o)
	return o
}

func votePath(compID, optID uuid.UUID) string {
	return "/api/v1/competitions/" + compID.String() + "/options/" + optID.String() + "/vote"
}

func openWindow() (time.Time, time.Time) {
	now := time.Now().UTC()
	return now.Add(-time.Hour), now.Add(time.Hour)
}

func TestRegisterLoginAndMe(t *testing.T) {
	env := setupServer(t, 10)

	resp := doJSON(t, env, http.MethodPost, "/api/v1/auth/register", "", registerRequest{
		FullName: "Ada Lovelace",
		Email:    "Ada@Example.com",
		Password: "pass123",
	})
	expectStatus(t, resp, http.StatusCreated)
	var reg authResponse
	decodeInto(t, resp, &reg)
	if reg.Token == "" || reg.User.Role != user.RoleRegular {
		t.Fatalf("unexpected register payload: %+v", reg)
	}

	dup := doJSON(t, env, http.MethodPost, "/api/v1/auth/register", "", registerRequest{
		FullName: "Ada", Email: "ada@example.com", Password: "x",
	})
	expectStatus(t, dup, http.StatusConflict)
	dup.Body.Close()

	token := loginAndToken(t, env, "ada@example.com", "pass123")
	me := doJSON(t, env, http.MethodGet, "/api/v1/users/me", token, nil)
	expectStatus(t, me, http.StatusOK)
	var u user.User
	decodeInto(t, me, &u)
	if u.ID != reg.User.ID || u.Email != "ada@example.com" {
		t.Fatalf("unexpected profile: %+v", u)
	}

	bad := doJSON(t, env, http.MethodPost, "/api/v1/auth/login", "", loginRequest{Email: "ada@example.com", Password: "nope"})
	expectStatus(t, bad, http.StatusUnauthorized)
	bad.Body.Close()

	anon := doJSON(t, env, http.MethodGet, "/api/v1/users/me", "", nil)
	expectStatus(t, anon, http.StatusUnauthorized)
	anon.Body.Close()
}

func TestScenarioVoting(t *testing.T) {
	env := setupServer(t, 10)
	seedUserWithPassword(t, env, "owner@test.com", user.RoleRegular, "pass123")
	seedUserWithPassword(t, env, "voter1@test.com", user.RoleRegular, "pass123")
	seedUserWithPassword(t, env, "voter2@test.com", user.RoleRegular, "pass123")
	ownerToken := loginAndToken(t, env, "owner@test.com", "pass123")
	voter1 := loginAndToken(t, env, "voter1@test.com", "pass123")
	voter2 := loginAndToken(t, env, "voter2@test.com", "pass123")

	start, end := openWindow()
	c := createCompetitionViaAPI(t, env, ownerToken, true, start, end)
	optA := addOptionViaAPI(t, env, ownerToken, c.ID, "A")
	optB := addOptionViaAPI(t, env, ownerToken, c.ID, "B")

	first := doJSON(t, env, http.MethodPost, votePath(c.ID, optA.ID), voter1, nil)
	expectStatus(t, first, http.StatusOK)
	var updated competition.Option
	decodeInto(t, first, &updated)
	if updated.VoteCount != 1 {
		t.Fatalf("expected vote_count 1, got %d", updated.VoteCount)
	}

	again := doJSON(t, env, http.MethodPost, votePath(c.ID, optB.ID), voter1, nil)
	expectStatus(t, again, http.StatusConflict)
	if code := decodeError(t, again)["error"]; code != "already_voted" {
		t.Fatalf("expected already_voted, got %q", code)
	}

	second := doJSON(t, env, http.MethodPost, votePath(c.ID, optB.ID), voter2, nil)
	expectStatus(t, second, http.StatusOK)
	second.Body.Close()

	results := doJSON(t, env, http.MethodGet, "/api/v1/competitions/"+c.ID.String()+"/results", "", nil)
	expectStatus(t, results, http.StatusOK)
	var tally vote.Tally
	decodeInto(t, results, &tally)
	if tally.TotalVotes != 2 || len(tally.Options) != 2 {
		t.Fatalf("unexpected tally: %+v", tally)
	}
	for _, r := range tally.Options {
		if r.Votes != 1 || r.Percentage != 50 {
			t.Fatalf("expected 1 vote and 50%% per option, got %+v", r)
		}
	}

	if got := env.store.VoteRows(optA.ID); got != 1 {
		t.Fatalf("expected 1 vote row for A, got %d", got)
	}

	select {
	case ev := <-env.voteCh:
		if ev.CompetitionID != c.ID {
			t.Fatalf("unexpected event: %+v", ev)
		}
	default:
		t.Fatal("expected a vote event to be published")
	}

	details := doJSON(t, env, http.MethodGet, "/api/v1/competitions/"+c.ID.String()+"/details", ownerToken, nil)
	expectStatus(t, details, http.StatusOK)
	var d competition.Details
	decodeInto(t, details, &d)
	if len(d.Options) != 2 || len(d.Options[0].Voters)+len(d.Options[1].Voters) != 2 {
		t.Fatalf("unexpected details: %+v", d)
	}

	foreign := doJSON(t, env, http.MethodGet, "/api/v1/competitions/"+c.ID.String()+"/details", voter1, nil)
	expectStatus(t, foreign, http.StatusForbidden)
	foreign.Body.Close()
}

func TestVoteGating(t *testing.T) {
	env := setupServer(t, 10)
	seedUserWithPassword(t, env, "owner@test.com", user.RoleRegular, "pass123")
	seedUserWithPassword(t, env, "voter@test.com", user.RoleRegular, "pass123")
	ownerToken := loginAndToken(t, env, "owner@test.com", "pass123")
	voterToken := loginAndToken(t, env, "voter@test.com", "pass123")

	start, end := openWindow()
	inactive := createCompetitionViaAPI(t, env, ownerToken, false, start, end)
	optInactive := addOptionViaAPI(t, env, ownerToken, inactive.ID, "only")

	resp := doJSON(t, env, http.MethodPost, votePath(inactive.ID, optInactive.ID), voterToken, nil)
	expectStatus(t, resp, http.StatusBadRequest)
	if code := decodeError(t, resp)["error"]; code != "competition_not_active" {
		t.Fatalf("expected competition_not_active, got %q", code)
	}

	future := createCompetitionViaAPI(t, env, ownerToken, true, time.Now().Add(time.Hour), time.Now().Add(2*time.Hour))
	optFuture := addOptionViaAPI(t, env, ownerToken, future.ID, "later")
	resp = doJSON(t, env, http.MethodPost, votePath(future.ID, optFuture.ID), voterToken, nil)
	expectStatus(t, resp, http.StatusBadRequest)
	if code := decodeError(t, resp)["error"]; code != "voting_closed" {
		t.Fatalf("expected voting_closed, got %q", code)
	}

	open := createCompetitionViaAPI(t, env, ownerToken, true, start, end)
	resp = doJSON(t, env, http.MethodPost, votePath(open.ID, optFuture.ID), voterToken, nil)
	expectStatus(t, resp, http.StatusNotFound)
	if code := decodeError(t, resp)["error"]; code != "option_not_found" {
		t.Fatalf("expected option_not_found, got %q", code)
	}

	resp = doJSON(t, env, http.MethodPost, votePath(uuid.New(), optFuture.ID), voterToken, nil)
	expectStatus(t, resp, http.StatusNotFound)
	resp.Body.Close()

	resp = doJSON(t, env, http.MethodPost, "/api/v1/competitions/not-a-uuid/options/"+optFuture.ID.String()+"/vote", voterToken, nil)
	expectStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()

	_, _, votes := env.store.CountRows()
	if votes != 0 {
		t.Fatalf("expected no vote rows, got %d", votes)
	}
}

func TestNonOwnerCannotMutate(t *testing.T) {
	env := setupServer(t, 10)
	seedUserWithPassword(t, env, "owner@test.com", user.RoleRegular, "pass123")
	seedUserWithPassword(t, env, "other@test.com", user.RoleRegular, "pass123")
	ownerToken := loginAndToken(t, env, "owner@test.com", "pass123")
	otherToken := loginAndToken(t, env, "other@test.com", "pass123")

	start, end := openWindow()
	c := createCompetitionViaAPI(t, env, ownerToken, true, start, end)
	opt := addOptionViaAPI(t, env, ownerToken, c.ID, "A")
	base := "/api/v1/competitions/" + c.ID.String()

	newTitle := "Hijacked"
	cases := []struct {
		method string
		path   string
		body   any
	}{
		{http.MethodPut, base, updateCompetitionRequest{Title: &newTitle}},
		{http.MethodPatch, base + "/status", map[string]bool{"is_active": false}},
		{http.MethodPost, base + "/options", createOptionRequest{Name: "B"}},
		{http.MethodPut, base + "/options/" + opt.ID.String(), updateOptionRequest{Name: &newTitle}},
		{http.MethodDelete, base + "/options/" + opt.ID.String(), nil},
		{http.MethodDelete, base, nil},
	}
	for _, tc := range cases {
		resp := doJSON(t, env, tc.method, tc.path, otherToken, tc.body)
		expectStatus(t, resp, http.StatusForbidden)
		resp.Body.Close()
	}

	get := doJSON(t, env, http.MethodGet, base, "", nil)
	expectStatus(t, get, http.StatusOK)
	var payload competitionResponse
	decodeInto(t, get, &payload)
	if payload.Competition.Title != "Best Photo" || !payload.Competition.IsActive || len(payload.Options) != 1 {
		t.Fatalf("state changed after forbidden mutations: %+v", payload)
	}
	if !payload.Competition.AcceptingVotes {
		t.Fatal("expected competition to accept votes")
	}
}

func TestOwnerUpdatesAndValidation(t *testing.T) {
	env := setupServer(t, 10)
	seedUserWithPassword(t, env, "owner@test.com", user.RoleRegular, "pass123")
	token := loginAndToken(t, env, "owner@test.com", "pass123")

	start, end := openWindow()
	bad := doJSON(t, env, http.MethodPost, "/api/v1/competitions", token, createCompetitionRequest{
		Title: "Backwards", StartTime: &end, EndTime: &start,
	})
	expectStatus(t, bad, http.StatusBadRequest)
	if code := decodeError(t, bad)["error"]; code != "invalid_dates" {
		t.Fatalf("expected invalid_dates, got %q", code)
	}
	if comps, _, _ := env.store.CountRows(); comps != 0 {
		t.Fatalf("expected nothing stored, got %d competitions", comps)
	}

	c := createCompetitionViaAPI(t, env, token, true, start, end)
	base := "/api/v1/competitions/" + c.ID.String()

	title := "Renamed"
	resp := doJSON(t, env, http.MethodPut, base, token, updateCompetitionRequest{Title: &title})
	expectStatus(t, resp, http.StatusOK)
	var updated competition.Competition
	decodeInto(t, resp, &updated)
	if updated.Title != title || !updated.EndTime.Equal(c.EndTime) {
		t.Fatalf("unexpected update result: %+v", updated)
	}

	early := start.Add(-2 * time.Hour)
	resp = doJSON(t, env, http.MethodPut, base, token, updateCompetitionRequest{EndTime: &early})
	expectStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()

	resp = doJSON(t, env, http.MethodPatch, base+"/status", token, map[string]bool{"is_active": false})
	expectStatus(t, resp, http.StatusOK)
	decodeInto(t, resp, &updated)
	if updated.IsActive {
		t.Fatal("expected competition deactivated")
	}

	resp = doJSON(t, env, http.MethodPatch, base+"/status", token, map[string]string{})
	expectStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()

	resp = doJSON(t, env, http.MethodPost, base+"/options", token, createOptionRequest{Name: "  "})
	expectStatus(t, resp, http.StatusBadRequest)
	if code := decodeError(t, resp)["error"]; code != "option_name_required" {
		t.Fatalf("expected option_name_required, got %q", code)
	}
}

func TestDeleteCompetitionCascades(t *testing.T) {
	env := setupServer(t, 10)
	seedUserWithPassword(t, env, "owner@test.com", user.RoleRegular, "pass123")
	seedUserWithPassword(t, env, "voter@test.com", user.RoleRegular, "pass123")
	ownerToken := loginAndToken(t, env, "owner@test.com", "pass123")
	voterToken := loginAndToken(t, env, "voter@test.com", "pass123")

	start, end := openWindow()
	c := createCompetitionViaAPI(t, env, ownerToken, true, start, end)
	opt := addOptionViaAPI(t, env, ownerToken, c.ID, "A")
	resp := doJSON(t, env, http.MethodPost, votePath(c.ID, opt.ID), voterToken, nil)
	expectStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	resp = doJSON(t, env, http.MethodDelete, "/api/v1/competitions/"+c.ID.String(), ownerToken, nil)
	expectStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	comps, opts, votes := env.store.CountRows()
	if comps != 0 || opts != 0 || votes != 0 {
		t.Fatalf("expected empty store after cascade, got %d/%d/%d", comps, opts, votes)
	}

	resp = doJSON(t, env, http.MethodDelete, "/api/v1/competitions/"+c.ID.String(), ownerToken, nil)
	expectStatus(t, resp, http.StatusNotFound)
	if decodeError(t, resp)["error"] == "" {
		t.Fatal("expected error code in response")
	}

	resp = doJSON(t, env, http.MethodGet, "/api/v1/competitions/"+c.ID.String(), "", nil)
	expectStatus(t, resp, http.StatusNotFound)
	resp.Body.Close()
}

func TestAdminRoutes(t *testing.T) {
	env := setupServer(t, 10)
	seedUserWithPassword(t, env, "admin@test.com", user.RoleAdmin, "pass123")
	userID := seedUserWithPassword(t, env, "user@test.com", user.RoleRegular, "pass123")
	adminToken := loginAndToken(t, env, "admin@test.com", "pass123")
	userToken := loginAndToken(t, env, "user@test.com", "pass123")

	resp := doJSON(t, env, http.MethodGet, "/api/v1/admin/users", userToken, nil)
	expectStatus(t, resp, http.StatusForbidden)
	resp.Body.Close()

	resp = doJSON(t, env, http.MethodPut, "/api/v1/admin/users/"+userID.String()+"/role", userToken, updateRoleRequest{Role: "ADMIN"})
	expectStatus(t, resp, http.StatusForbidden)
	resp.Body.Close()

	resp = doJSON(t, env, http.MethodGet, "/api/v1/admin/users", adminToken, nil)
	expectStatus(t, resp, http.StatusOK)
	var users []user.User
	decodeInto(t, resp, &users)
	if len(users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(users))
	}

	resp = doJSON(t, env, http.MethodPut, "/api/v1/admin/users/"+userID.String()+"/role", adminToken, updateRoleRequest{Role: "superuser"})
	expectStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()

	resp = doJSON(t, env, http.MethodPut, "/api/v1/admin/users/"+userID.String()+"/role", adminToken, updateRoleRequest{Role: "ADMIN"})
	expectStatus(t, resp, http.StatusOK)
	var promoted user.User
	decodeInto(t, resp, &promoted)
	if promoted.Role != user.RoleAdmin {
		t.Fatalf("expected ADMIN, got %s", promoted.Role)
	}

	resp = doJSON(t, env, http.MethodPut, "/api/v1/admin/users/"+uuid.NewString()+"/role", adminToken, updateRoleRequest{Role: "ADMIN"})
	expectStatus(t, resp, http.StatusNotFound)
	resp.Body.Close()

	resp = doJSON(t, env, http.MethodDelete, "/api/v1/admin/users/"+userID.String(), adminToken, nil)
	expectStatus(t, resp, http.StatusOK)
	resp.Body.Close()
}

func TestReconcileRepairsDrift(t *testing.T) {
	env := setupServer(t, 10)
	seedUserWithPassword(t, env, "admin@test.com", user.RoleAdmin, "pass123")
	seedUserWithPassword(t, env, "owner@test.com", user.RoleRegular, "pass123")
	adminToken := loginAndToken(t, env, "admin@test.com", "pass123")
	ownerToken := loginAndToken(t, env, "owner@test.com", "pass123")

	start, end := openWindow()
	c := createCompetitionViaAPI(t, env, ownerToken, true, start, end)
	opt := addOptionViaAPI(t, env, ownerToken, c.ID, "A")
	env.store.SetVoteCountForTest(opt.ID, 7)

	path := "/api/v1/admin/competitions/" + c.ID.String() + "/reconcile"
	resp := doJSON(t, env, http.MethodPost, path, ownerToken, nil)
	expectStatus(t, resp, http.StatusForbidden)
	resp.Body.Close()

	resp = doJSON(t, env, http.MethodPost, path, adminToken, nil)
	expectStatus(t, resp, http.StatusOK)
	var payload struct {
		Drift []vote.Drift `json:"drift"`
	}
	decodeInto(t, resp, &payload)
	if len(payload.Drift) != 1 || payload.Drift[0].Before != 7 || payload.Drift[0].After != 0 {
		t.Fatalf("unexpected drift: %+v", payload.Drift)
	}

	resp = doJSON(t, env, http.MethodPost, "/api/v1/admin/competitions/"+uuid.NewString()+"/reconcile", adminToken, nil)
	expectStatus(t, resp, http.StatusNotFound)
	resp.Body.Close()
}

func TestListCompetitionsPagination(t *testing.T) {
	env := setupServer(t, 10)
	seedUserWithPassword(t, env, "owner@test.com", user.RoleRegular, "pass123")
	token := loginAndToken(t, env, "owner@test.com", "pass123")

	start, end := openWindow()
	for i := 0; i < 3; i++ {
		createCompetitionViaAPI(t, env, token, i != 1, start, end)
	}

	resp := doJSON(t, env, http.MethodGet, "/api/v1/competitions?limit=2", "", nil)
	expectStatus(t, resp, http.StatusOK)
	var page competitionListResponse
	decodeInto(t, resp, &page)
	if len(page.Items) != 2 || page.NextAfter == nil {
		t.Fatalf("expected full first page with cursor, got %+v", page)
	}

	resp = doJSON(t, env, http.MethodGet, "/api/v1/competitions?limit=2&after="+page.NextAfter.String(), "", nil)
	expectStatus(t, resp, http.StatusOK)
	var next competitionListResponse
	decodeInto(t, resp, &next)
	if len(next.Items) != 1 || next.NextAfter != nil {
		t.Fatalf("expected last page with one item, got %+v", next)
	}

	resp = doJSON(t, env, http.MethodGet, "/api/v1/competitions?active=false", "", nil)
	expectStatus(t, resp, http.StatusOK)
	var inactive competitionListResponse
	decodeInto(t, resp, &inactive)
	if len(inactive.Items) != 1 || inactive.Items[0].IsActive {
		t.Fatalf("expected one inactive competition, got %+v", inactive)
	}

	resp = doJSON(t, env, http.MethodGet, "/api/v1/competitions?limit=abc", "", nil)
	expectStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()
}

func TestVoteRateLimit(t *testing.T) {
	env := setupServer(t, 1)
	seedUserWithPassword(t, env, "voter@test.com", user.RoleRegular, "pass123")
	token := loginAndToken(t, env, "voter@test.com", "pass123")

	path := votePath(uuid.New(), uuid.New())
	resp := doJSON(t, env, http.MethodPost, path, token, nil)
	expectStatus(t, resp, http.StatusNotFound)
	resp.Body.Close()

	resp = doJSON(t, env, http.MethodPost, path, token, nil)
	expectStatus(t, resp, http.StatusTooManyRequests)
	if code := decodeError(t, resp)["error"]; code != "rate_limited" {
		t.Fatalf("expected rate_limited, got %q", code)
	}
}

func TestHealthAndReady(t *testing.T) {
	env := setupServer(t, 10)
	for _, path := range []string{"/health", "/ready"} {
		resp := doJSON(t, env, http.MethodGet, path, "", nil)
		expectStatus(t, resp, http.StatusOK)
		resp.Body.Close()
	}
}

func TestAdminTargetRoutesReportNotFoundBeforeForbidden(t *testing.T) {
	env := setupServer(t, 10)
	userID := seedUserWithPassword(t, env, "user@test.com", user.RoleRegular, "pass123")
	userToken := loginAndToken(t, env, "user@test.com", "pass123")
	missing := uuid.NewString()

	cases := []struct {
		name   string
		method string
		path   string
		body   any
		code   string
	}{
		{"get user", http.MethodGet, "/api/v1/admin/users/" + missing, nil, "user_not_found"},
		{"update role", http.MethodPut, "/api/v1/admin/users/" + missing + "/role", updateRoleRequest{Role: "ADMIN"}, "user_not_found"},
		{"delete user", http.MethodDelete, "/api/v1/admin/users/" + missing, nil, "user_not_found"},
		{"reconcile", http.MethodPost, "/api/v1/admin/competitions/" + missing + "/reconcile", nil, "competition_not_found"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := doJSON(t, env, tc.method, tc.path, userToken, tc.body)
			expectStatus(t, resp, http.StatusNotFound)
			if code := decodeError(t, resp)["error"]; code != tc.code {
				t.Fatalf("expected %s, got %q", tc.code, code)
			}
		})
	}

	// An existing target is still off limits to a regular user.
	resp := doJSON(t, env, http.MethodDelete, "/api/v1/admin/users/"+userID.String(), userToken, nil)
	expectStatus(t, resp, http.StatusForbidden)
	resp.Body.Close()
	resp = doJSON(t, env, http.MethodGet, "/api/v1/admin/users/"+userID.String(), userToken, nil)
	expectStatus(t, resp, http.StatusForbidden)
	resp.Body.Close()
	if _, err := env.store.Users().GetByID(context.Background(), userID); err != nil {
		t.Fatalf("forbidden delete must not remove the user: %v", err)
	}
}

func TestAdminGetUser(t *testing.T) {
	env := setupServer(t, 10)
	seedUserWithPassword(t, env, "admin@test.com", user.RoleAdmin, "pass123")
	userID := seedUserWithPassword(t, env, "user@test.com", user.RoleRegular, "pass123")
	adminToken := loginAndToken(t, env, "admin@test.com", "pass123")

	resp := doJSON(t, env, http.MethodGet, "/api/v1/admin/users/"+userID.String(), adminToken, nil)
	expectStatus(t, resp, http.StatusOK)
	var got user.User
	decodeInto(t, resp, &got)
	if got.ID != userID || got.Email != "user@test.com" {
		t.Fatalf("unexpected user: %+v", got)
	}

	resp = doJSON(t, env, http.MethodGet, "/api/v1/admin/users/not-a-uuid", adminToken, nil)
	expectStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()
}

func TestUpdateMe(t *testing.T) {
	env := setupServer(t, 10)
	seedUserWithPassword(t, env, "grace@test.com", user.RoleRegular, "cobol")
	seedUserWithPassword(t, env, "alan@test.com", user.RoleRegular, "enigma")
	token := loginAndToken(t, env, "grace@test.com", "cobol")

	resp := doJSON(t, env, http.MethodPut, "/api/v1/users/me", "", user.ProfileUpdate{FullName: "x"})
	expectStatus(t, resp, http.StatusUnauthorized)
	resp.Body.Close()

	resp = doJSON(t, env, http.MethodPut, "/api/v1/users/me", token, user.ProfileUpdate{FullName: "Grace Hopper"})
	expectStatus(t, resp, http.StatusOK)
	var updated user.User
	decodeInto(t, resp, &updated)
	if updated.FullName != "Grace Hopper" || updated.Email != "grace@test.com" {
		t.Fatalf("only the name should change: %+v", updated)
	}

	resp = doJSON(t, env, http.MethodPut, "/api/v1/users/me", token, user.ProfileUpdate{Email: "alan@test.com"})
	expectStatus(t, resp, http.StatusConflict)
	if code := decodeError(t, resp)["error"]; code != "email_taken" {
		t.Fatalf("expected email_taken, got %q", code)
	}

	resp = doJSON(t, env, http.MethodPut, "/api/v1/users/me", token, user.ProfileUpdate{Email: "hopper@test.com", Password: "fortran"})
	expectStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	resp = doJSON(t, env, http.MethodPost, "/api/v1/auth/login", "", loginRequest{Email: "grace@test.com", Password: "cobol"})
	expectStatus(t, resp, http.StatusUnauthorized)
	resp.Body.Close()
	newToken := loginAndToken(t, env, "hopper@test.com", "fortran")

	resp = doJSON(t, env, http.MethodGet, "/api/v1/users/me", newToken, nil)
	expectStatus(t, resp, http.StatusOK)
	var me user.User
	decodeInto(t, resp, &me)
	if me.Email != "hopper@test.com" || me.FullName != "Grace Hopper" {
		t.Fatalf("unexpected profile: %+v", me)
	}
}

func TestResultsReportRecentActivity(t *testing.T) {
	env := setupServer(t, 10)
	seedUserWithPassword(t, env, "owner@test.com", user.RoleRegular, "pass123")
	seedUserWithPassword(t, env, "voter@test.com", user.RoleRegular, "pass123")
	ownerToken := loginAndToken(t, env, "owner@test.com", "pass123")
	voterToken := loginAndToken(t, env, "voter@test.com", "pass123")

	start, end := openWindow()
	c := createCompetitionViaAPI(t, env, ownerToken, true, start, end)
	opt := addOptionViaAPI(t, env, ownerToken, c.ID, "A")
	path := "/api/v1/competitions/" + c.ID.String() + "/results"

	resp := doJSON(t, env, http.MethodGet, path, "", nil)
	expectStatus(t, resp, http.StatusOK)
	var before map[string]any
	decodeInto(t, resp, &before)
	if before["recent_votes"] != float64(0) {
		t.Fatalf("expected no activity yet, got %v", before["recent_votes"])
	}
	if _, ok := before["last_vote_at"]; ok {
		t.Fatal("last_vote_at must be omitted before any vote")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go env.stats.Run(ctx)

	resp = doJSON(t, env, http.MethodPost, votePath(c.ID, opt.ID), voterToken, nil)
	expectStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	deadline := time.Now().Add(2 * time.Second)
	for {
		resp = doJSON(t, env, http.MethodGet, path, "", nil)
		expectStatus(t, resp, http.StatusOK)
		var got struct {
			TotalVotes  int64      `json:"total_votes"`
			RecentVotes int64      `json:"recent_votes"`
			LastVoteAt  *time.Time `json:"last_vote_at"`
		}
		decodeInto(t, resp, &got)
		if got.RecentVotes == 1 {
			if got.TotalVotes != 1 || got.LastVoteAt == nil {
				t.Fatalf("unexpected results: %+v", got)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("vote event never reached the results, got %+v", got)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
