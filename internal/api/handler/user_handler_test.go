package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/99minutos/user-registry/internal/api/metrics"
	"github.com/99minutos/user-registry/internal/core/domain"
	"github.com/99minutos/user-registry/internal/core/ports"
)

type stubUserService struct {
	registerFn func(ctx context.Context, req domain.CreateUserRequest) (*domain.User, error)
	listFn     func(ctx context.Context) ([]domain.User, error)
	findFn     func(ctx context.Context, username string) (*domain.User, error)
	getFn      func(ctx context.Context, id int64) (*domain.User, error)
}

func (s *stubUserService) Register(ctx context.Context, req domain.CreateUserRequest) (*domain.User, error) {
	return s.registerFn(ctx, req)
}

func (s *stubUserService) List(ctx context.Context) ([]domain.User, error) {
	return s.listFn(ctx)
}

func (s *stubUserService) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	return s.findFn(ctx, username)
}

func (s *stubUserService) Get(ctx context.Context, id int64) (*domain.User, error) {
	return s.getFn(ctx, id)
}

type stubBatch struct {
	submitFn func(ctx context.Context, reqs []domain.CreateUserRequest) ([]ports.RegistrationResult, error)
}

func (s *stubBatch) Submit(ctx context.Context, reqs []domain.CreateUserRequest) ([]ports.RegistrationResult, error) {
	return s.submitFn(ctx, reqs)
}

func newTestHandler(svc *stubUserService, batch *stubBatch) (*UserHandler, *metrics.Metrics) {
	m := metrics.New(prometheus.NewRegistry())
	return NewUserHandler(svc, batch, m, 3), m
}

func newContext(method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.Validator = NewValidator()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func alice() *domain.User {
	u := domain.NewUser(domain.CreateUserRequest{
		Email:          "alice@example.com",
		Username:       "alice",
		FirstName:      "Alice",
		LastName:       "Liddell",
		HashedPassword: "secret-hash",
	}).WithID(1)
	return &u
}

func TestUserHandler_Create_Success(t *testing.T) {
	svc := &stubUserService{
		registerFn: func(ctx context.Context, req domain.CreateUserRequest) (*domain.User, error) {
			if req.Username != "alice" || req.HashedPassword != "secret-hash" {
				t.Fatalf("unexpected request: %+v", req)
			}
			return alice(), nil
		},
	}
	h, m := newTestHandler(svc, nil)

	c, rec := newContext(http.MethodPost, "/user",
		`{"email":"alice@example.com","username":"alice","firstName":"Alice","lastName":"Liddell","hashedPassword":"secret-hash"}`)

	if err := h.Create(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if loc := rec.Header().Get(echo.HeaderLocation); loc != "/user/alice" {
		t.Fatalf("unexpected location %q", loc)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp["username"] != "alice" || resp["firstName"] != "Alice" || resp["enabled"] != true {
		t.Fatalf("unexpected payload: %+v", resp)
	}
	if _, leaked := resp["hashedPassword"]; leaked {
		t.Fatalf("hashed password must not be rendered")
	}
	if got := testutil.ToFloat64(m.RegistrationsTotal.WithLabelValues(metrics.OutcomeCreated)); got != 1 {
		t.Fatalf("expected one created registration, got %v", got)
	}
}

func TestUserHandler_Create_InvalidPayload(t *testing.T) {
	svc := &stubUserService{
		registerFn: func(ctx context.Context, req domain.CreateUserRequest) (*domain.User, error) {
			t.Fatalf("should not be called")
			return nil, nil
		},
	}
	h, _ := newTestHandler(svc, nil)

	c, _ := newContext(http.MethodPost, "/user", "not-json")

	err := h.Create(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 HTTPError, got %v", err)
	}
}

func TestUserHandler_Create_PropagatesDomainErrors(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		outcome string
	}{
		{"validation", &domain.ValidationError{Violations: []domain.Violation{{Field: "email", Message: "email may not be blank"}}}, metrics.OutcomeInvalid},
		{"conflict", &domain.ConflictError{Field: "username"}, metrics.OutcomeConflict},
		{"storage", &domain.StorageError{Op: "create user", Err: errors.New("down")}, metrics.OutcomeError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubUserService{
				registerFn: func(ctx context.Context, req domain.CreateUserRequest) (*domain.User, error) {
					return nil, tc.err
				},
			}
			h, m := newTestHandler(svc, nil)
			c, _ := newContext(http.MethodPost, "/user", `{"username":"alice"}`)

			if err := h.Create(c); !errors.Is(err, tc.err) {
				t.Fatalf("expected %v, got %v", tc.err, err)
			}
			if got := testutil.ToFloat64(m.RegistrationsTotal.WithLabelValues(tc.outcome)); got != 1 {
				t.Fatalf("expected outcome %s recorded once, got %v", tc.outcome, got)
			}
		})
	}
}

func TestUserHandler_List(t *testing.T) {
	svc := &stubUserService{
		listFn: func(ctx context.Context) ([]domain.User, error) {
			return []domain.User{}, nil
		},
	}
	h, _ := newTestHandler(svc, nil)
	c, rec := newContext(http.MethodGet, "/user", "")

	if err := h.List(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
		t.Fatalf("expected empty array, got %s", body)
	}
}

func TestUserHandler_FindByUsername(t *testing.T) {
	svc := &stubUserService{
		findFn: func(ctx context.Context, username string) (*domain.User, error) {
			if username == "alice" {
				return alice(), nil
			}
			return nil, domain.ErrUserNotFound
		},
	}
	h, m := newTestHandler(svc, nil)

	c, rec := newContext(http.MethodGet, "/user/alice", "")
	c.SetParamNames("username")
	c.SetParamValues("alice")
	if err := h.FindByUsername(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	c, _ = newContext(http.MethodGet, "/user/ghost", "")
	c.SetParamNames("username")
	c.SetParamValues("ghost")
	if err := h.FindByUsername(c); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}

	if got := testutil.ToFloat64(m.LookupsTotal.WithLabelValues("not_found")); got != 1 {
		t.Fatalf("expected one not_found lookup, got %v", got)
	}
}

func TestUserHandler_GetByID_BadID(t *testing.T) {
	svc := &stubUserService{
		getFn: func(ctx context.Context, id int64) (*domain.User, error) {
			t.Fatalf("should not be called")
			return nil, nil
		},
	}
	h, _ := newTestHandler(svc, nil)

	for _, raw := range []string{"abc", "0", "-4", "99999999999999999999"} {
		c, _ := newContext(http.MethodGet, "/user/id/"+raw, "")
		c.SetParamNames("id")
		c.SetParamValues(raw)

		var he *echo.HTTPError
		if err := h.GetByID(c); !errors.As(err, &he) || he.Code != http.StatusBadRequest {
			t.Fatalf("id %q: expected 400, got %v", raw, err)
		}
	}
}

func TestUserHandler_GetByID(t *testing.T) {
	svc := &stubUserService{
		getFn: func(ctx context.Context, id int64) (*domain.User, error) {
			if id != 1 {
				t.Fatalf("unexpected id %d", id)
			}
			return alice(), nil
		},
	}
	h, _ := newTestHandler(svc, nil)

	c, rec := newContext(http.MethodGet, "/user/id/1", "")
	c.SetParamNames("id")
	c.SetParamValues("1")
	if err := h.GetByID(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestUserHandler_Batch(t *testing.T) {
	batch := &stubBatch{
		submitFn: func(ctx context.Context, reqs []domain.CreateUserRequest) ([]ports.RegistrationResult, error) {
			if len(reqs) != 3 {
				t.Fatalf("expected 3 items, got %d", len(reqs))
			}
			return []ports.RegistrationResult{
				{Index: 0, User: alice()},
				{Index: 1, Err: &domain.ConflictError{Field: "email"}},
				{Index: 2, Err: &domain.ValidationError{Violations: []domain.Violation{{Field: "username", Message: "username may not be blank"}}}},
			}, nil
		},
	}
	h, m := newTestHandler(&stubUserService{}, batch)

	c, rec := newContext(http.MethodPost, "/user/batch", `{"users":[{"username":"alice"},{"username":"bobby"},{"username":""}]}`)
	if err := h.Batch(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		Results []struct {
			Index      int                `json:"index"`
			User       map[string]any     `json:"user"`
			Error      string             `json:"error"`
			Field      string             `json:"field"`
			Violations []domain.Violation `json:"violations"`
		} `json:"results"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(resp.Results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(resp.Results))
	}
	if resp.Results[0].User["username"] != "alice" || resp.Results[0].Error != "" {
		t.Fatalf("unexpected first result: %+v", resp.Results[0])
	}
	if resp.Results[1].Field != "email" || resp.Results[1].Error != "user with this email already exists" {
		t.Fatalf("unexpected second result: %+v", resp.Results[1])
	}
	if len(resp.Results[2].Violations) != 1 || resp.Results[2].Violations[0].Field != "username" {
		t.Fatalf("unexpected third result: %+v", resp.Results[2])
	}
	for _, outcome := range []string{metrics.OutcomeCreated, metrics.OutcomeConflict, metrics.OutcomeInvalid} {
		if got := testutil.ToFloat64(m.RegistrationsTotal.WithLabelValues(outcome)); got != 1 {
			t.Fatalf("expected outcome %s recorded once, got %v", outcome, got)
		}
	}
}

func TestUserHandler_Batch_RejectsBadEnvelope(t *testing.T) {
	batch := &stubBatch{
		submitFn: func(ctx context.Context, reqs []domain.CreateUserRequest) ([]ports.RegistrationResult, error) {
			t.Fatalf("should not be called")
			return nil, nil
		},
	}
	h, _ := newTestHandler(&stubUserService{}, batch)

	for name, body := range map[string]string{
		"empty list":   `{"users":[]}`,
		"missing list": `{}`,
		"too many":     `{"users":[{},{},{},{}]}`,
		"not json":     `[`,
	} {
		c, _ := newContext(http.MethodPost, "/user/batch", body)

		var he *echo.HTTPError
		if err := h.Batch(c); !errors.As(err, &he) || he.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %v", name, err)
		}
	}
}

func TestUserHandler_Batch_WorkersStopped(t *testing.T) {
	batch := &stubBatch{
		submitFn: func(ctx context.Context, reqs []domain.CreateUserRequest) ([]ports.RegistrationResult, error) {
			return nil, ports.ErrBatchStopped
		},
	}
	h, _ := newTestHandler(&stubUserService{}, batch)

	c, rec := newContext(http.MethodPost, "/user/batch",
		`{"users":[{"email":"alice@example.com","username":"alice","firstName":"A","lastName":"L","hashedPassword":"h"}]}`)

	if err := h.Batch(c); !errors.Is(err, ports.ErrBatchStopped) {
		t.Fatalf("expected ErrBatchStopped, got %v", err)
	}
	if rec.Body.Len() != 0 {
		t.Fatalf("handler wrote a body: %s", rec.Body.String())
	}
}
