package web

import (
	"bytes"
	"encoding/json"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/wishpair/internal/config"
	"github.com/hpungsan/wishpair/internal/db"
	"github.com/hpungsan/wishpair/internal/logger"
	"github.com/hpungsan/wishpair/internal/nudge"
)

func setupTest(t *testing.T) (*Handlers, http.Handler) {
	t.Helper()
	tmpDir := t.TempDir()
	database, err := db.Init(tmpDir)
	if err != nil {
		t.Fatalf("db.Init: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	cfg := config.DefaultConfig()
	log := logger.Discard()

	templateSub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		t.Fatalf("template sub-FS: %v", err)
	}

	engine := nudge.NewEngine(
		database,
		nudge.NewSelector(database, nil, nil),
		nudge.NewDispatcher(nil, false, nil, log),
		log,
		nil,
	)

	h := &Handlers{
		db:       database,
		cfg:      cfg,
		engine:   engine,
		renderer: NewRenderer(templateSub, "test"),
		log:      log,
	}
	return h, securityHeaders(newMux(h))
}

func do(t *testing.T, handler http.Handler, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

type apiError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Status  int    `json:"status"`
	} `json:"error"`
}

type idBody struct {
	ID         string `json:"id"`
	InviteCode string `json:"inviteCode"`
	Status     string `json:"status"`
}

// pairUp creates two users over HTTP and joins them. Returns pair id and user ids.
func pairUp(t *testing.T, handler http.Handler) (string, string, string) {
	t.Helper()
	w := do(t, handler, "POST", "/users", map[string]any{"email": "A@Example.com"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	a := decode[idBody](t, w)

	w = do(t, handler, "POST", "/users", map[string]any{"deviceId": "device-b"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	b := decode[idBody](t, w)

	w = do(t, handler, "POST", "/pairs/invite", map[string]any{"userId": a.ID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	inv := decode[idBody](t, w)
	assert.Equal(t, "awaiting", inv.Status)

	w = do(t, handler, "POST", "/pairs/join", map[string]any{"userId": b.ID, "inviteCode": strings.ToLower(inv.InviteCode)})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	p := decode[idBody](t, w)
	assert.Equal(t, "active", p.Status)
	return p.ID, a.ID, b.ID
}

func TestHealth(t *testing.T) {
	_, handler := setupTest(t)
	w := do(t, handler, "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true}`, w.Body.String())
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
}

func TestUsers_CreateGetPatch(t *testing.T) {
	_, handler := setupTest(t)

	w := do(t, handler, "POST", "/users", map[string]any{"email": "x@example.com", "nudgeLevel": 3})
	require.Equal(t, http.StatusCreated, w.Code)
	created := decode[db.User](t, w)
	assert.Equal(t, 3, created.NudgeLevel)

	w = do(t, handler, "GET", "/users/"+created.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, handler, "PATCH", "/users/"+created.ID, map[string]any{"pushToken": "ExponentPushToken[abc]", "nudgeLevel": 0})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[db.User](t, w)
	require.NotNil(t, updated.PushToken)
	assert.Equal(t, "ExponentPushToken[abc]", *updated.PushToken)
	assert.Equal(t, 0, updated.NudgeLevel)
}

func TestUsers_Errors(t *testing.T) {
	_, handler := setupTest(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   string
	}{
		{"missing identity", "POST", "/users", map[string]any{}, 400, "INVALID_REQUEST"},
		{"bad nudge level", "POST", "/users", map[string]any{"email": "a@b.c", "nudgeLevel": 9}, 400, "INVALID_REQUEST"},
		{"malformed json", "POST", "/users", "{not json", 400, "INVALID_REQUEST"},
		{"unknown user", "GET", "/users/usr_missing", nil, 404, "NOT_FOUND"},
		{"empty patch", "PATCH", "/users/usr_missing", map[string]any{}, 400, "INVALID_REQUEST"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, handler, tt.method, tt.path, tt.body)
			require.Equal(t, tt.status, w.Code, w.Body.String())
			e := decode[apiError](t, w)
			assert.Equal(t, tt.code, e.Error.Code)
			assert.Equal(t, tt.status, e.Error.Status)
			assert.NotEmpty(t, e.Error.Message)
		})
	}
}

func TestUsers_DuplicateEmail(t *testing.T) {
	_, handler := setupTest(t)
	w := do(t, handler, "POST", "/users", map[string]any{"email": "dup@example.com"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = do(t, handler, "POST", "/users", map[string]any{"email": "DUP@example.com"})
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "CONFLICT", decode[apiError](t, w).Error.Code)
}

func TestPairs_Flow(t *testing.T) {
	_, handler := setupTest(t)
	pairID, aID, bID := pairUp(t, handler)

	w := do(t, handler, "GET", "/users/"+aID+"/pair", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, pairID, decode[idBody](t, w).ID)

	w = do(t, handler, "GET", "/pairs/"+pairID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	// Already paired users cannot open another invite.
	w = do(t, handler, "POST", "/pairs/invite", map[string]any{"userId": bID})
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "ALREADY_PAIRED", decode[apiError](t, w).Error.Code)
}

func TestPairs_JoinOwnInvite(t *testing.T) {
	_, handler := setupTest(t)
	w := do(t, handler, "POST", "/users", map[string]any{"email": "solo@example.com"})
	u := decode[idBody](t, w)

	w = do(t, handler, "POST", "/pairs/invite", nil, "X-User-Id", u.ID)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	inv := decode[idBody](t, w)

	w = do(t, handler, "POST", "/pairs/join", map[string]any{"userId": u.ID, "inviteCode": inv.InviteCode})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, handler, "POST", "/pairs/join", map[string]any{"userId": u.ID, "inviteCode": "ZZZZZZ"})
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestWishes_Lifecycle(t *testing.T) {
	_, handler := setupTest(t)
	pairID, aID, _ := pairUp(t, handler)

	// createdBy falls back to the X-User-Id header.
	w := do(t, handler, "POST", "/pairs/"+pairID+"/wishes", map[string]any{
		"title":    "Hot springs trip",
		"category": "experience",
		"priority": "medium",
		"timing":   "this_month",
		"memo":     "**book** early",
	}, "X-User-Id", aID)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		ID        string  `json:"id"`
		Priority  string  `json:"priority"`
		Season    *string `json:"season"`
		Status    string  `json:"status"`
		CreatedBy string  `json:"createdBy"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "mid", created.Priority)
	assert.Equal(t, "todo", created.Status)
	assert.Equal(t, aID, created.CreatedBy)
	require.NotNil(t, created.Season)
	assert.Equal(t, "this_month", *created.Season)

	w = do(t, handler, "POST", "/pairs/"+pairID+"/wishes", map[string]any{
		"title": "Cook dinner", "createdBy": aID, "priority": "high", "budgetMin": 1000, "budgetMax": 3000,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(t, handler, "GET", "/pairs/"+pairID+"/wishes?priority=high", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Items []struct {
			Title string `json:"title"`
		} `json:"items"`
		Pagination struct {
			Total int `json:"total"`
		} `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Items, 1)
	assert.Equal(t, "Cook dinner", list.Items[0].Title)

	w = do(t, handler, "GET", "/pairs/"+pairID+"/wishes?minBudget=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, handler, "PATCH", "/wishes/"+created.ID, map[string]any{"title": "Hot springs weekend"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(t, handler, "POST", "/wishes/"+created.ID+"/complete", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var done struct {
		Status      string  `json:"status"`
		CompletedAt *string `json:"completedAt"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &done))
	assert.Equal(t, "done", done.Status)
	assert.NotNil(t, done.CompletedAt)

	w = do(t, handler, "POST", "/wishes/"+created.ID+"/complete", map[string]any{"completed": false})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"todo"`)

	w = do(t, handler, "DELETE", "/wishes/"+created.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ok":true`)

	w = do(t, handler, "GET", "/wishes/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWishes_CreateRequiresMember(t *testing.T) {
	_, handler := setupTest(t)
	pairID, _, _ := pairUp(t, handler)

	w := do(t, handler, "POST", "/pairs/"+pairID+"/wishes", map[string]any{"title": "x", "createdBy": "usr_stranger"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, handler, "POST", "/pairs/pair_missing/wishes", map[string]any{"title": "x", "createdBy": "usr_a"})
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestNudges_Trigger(t *testing.T) {
	_, handler := setupTest(t)
	pairID, aID, _ := pairUp(t, handler)

	w := do(t, handler, "POST", "/pairs/"+pairID+"/wishes", map[string]any{
		"title": "Picnic", "createdBy": aID, "priority": "high",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	// Force defaults to true; minAgeDays 0 makes the fresh wish eligible.
	w = do(t, handler, "POST", "/nudges/trigger", map[string]any{"minAgeDays": 0})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	summary := decode[nudge.Summary](t, w)
	assert.True(t, summary.Force)
	require.Equal(t, 1, summary.ProcessedPairs)
	require.Len(t, summary.Results, 1)
	r := summary.Results[0]
	assert.Equal(t, nudge.StatusNudged, r.Status)
	require.NotNil(t, r.Wish)
	assert.Equal(t, "Picnic", r.Wish.Title)
	require.Len(t, r.Deliveries, 2)
	for _, d := range r.Deliveries {
		assert.Equal(t, nudge.ChannelSimulated, d.Channel)
		assert.True(t, d.Sent)
	}

	// Not forced: cadence is not due right after a nudge.
	w = do(t, handler, "POST", "/nudges/trigger", map[string]any{"force": false, "minAgeDays": 0})
	require.Equal(t, http.StatusOK, w.Code)
	summary = decode[nudge.Summary](t, w)
	require.Len(t, summary.Results, 1)
	assert.Equal(t, nudge.StatusSkipped, summary.Results[0].Status)
	assert.Equal(t, nudge.ReasonCadenceNotDue, summary.Results[0].Reason)

	// Default minAgeDays from config leaves the fresh wish ineligible.
	w = do(t, handler, "POST", "/nudges/trigger", map[string]any{"pairId": pairID})
	require.Equal(t, http.StatusOK, w.Code)
	summary = decode[nudge.Summary](t, w)
	assert.Equal(t, config.DefaultMinAgeDays, summary.MinAgeDays)
	assert.Equal(t, nudge.ReasonNoEligible, summary.Results[0].Reason)
}

func TestNudges_TriggerInvalidMinAge(t *testing.T) {
	_, handler := setupTest(t)
	for _, body := range []string{`{"minAgeDays":-1}`, `{"minAgeDays":"soon"}`, `{"minAgeDays":"-2"}`, `{"minAgeDays":""}`, `{"minAgeDays":true}`} {
		w := do(t, handler, "POST", "/nudges/trigger", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
		assert.Equal(t, "INVALID_REQUEST", decode[apiError](t, w).Error.Code)
	}
}

func TestNudges_TriggerNumericStringMinAge(t *testing.T) {
	_, handler := setupTest(t)
	w := do(t, handler, "POST", "/nudges/trigger", `{"minAgeDays":"2.5"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 2.5, decode[nudge.Summary](t, w).MinAgeDays)
}

func TestNudges_Config(t *testing.T) {
	_, handler := setupTest(t)
	w := do(t, handler, "GET", "/nudges/config", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var out struct {
		NudgeLevels map[string]string `json:"nudgeLevels"`
		Scheduler   struct {
			Enabled bool   `json:"enabled"`
			Cadence string `json:"cadence"`
		} `json:"scheduler"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, "weekly", out.NudgeLevels["0"])
	assert.Equal(t, "twice_daily", out.NudgeLevels["3"])
	assert.False(t, out.Scheduler.Enabled)
	assert.Equal(t, schedulerCadence, out.Scheduler.Cadence)
}

func TestMetrics(t *testing.T) {
	_, handler := setupTest(t)
	w := do(t, handler, "POST", "/nudges/trigger", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, handler, "GET", "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "wishpair_nudge_runs_total")
}

func TestMetrics_Disabled(t *testing.T) {
	h, _ := setupTest(t)
	h.cfg.DisableMetrics = true
	handler := newMux(h)

	w := do(t, handler, "GET", "/metrics", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBoard_HTML(t *testing.T) {
	_, handler := setupTest(t)
	pairID, aID, _ := pairUp(t, handler)

	w := do(t, handler, "POST", "/pairs/"+pairID+"/wishes", map[string]any{
		"title": "Museum day", "createdBy": aID, "memo": "bring **tickets** <script>alert(1)</script>",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	req := httptest.NewRequest("GET", "/pairs/"+pairID+"/board", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	body := rec.Body.String()
	assert.Contains(t, body, "Museum day")
	assert.Contains(t, body, "<strong>tickets</strong>")
	assert.NotContains(t, body, "<script>alert(1)</script>")
	assert.Contains(t, body, "0 / 1 done")
}

func TestBoard_JSONAndErrors(t *testing.T) {
	_, handler := setupTest(t)
	pairID, _, _ := pairUp(t, handler)

	w := do(t, handler, "GET", "/pairs/"+pairID+"/board", nil, "Accept", "application/json")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"stats"`)

	req := httptest.NewRequest("GET", "/pairs/pair_missing/board", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "error-message")

	w = do(t, handler, "GET", "/pairs/pair_missing/board", nil, "Accept", "application/json")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", decode[apiError](t, w).Error.Code)
}

func TestStatic(t *testing.T) {
	_, handler := setupTest(t)
	req := httptest.NewRequest("GET", "/static/style.css", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRenderMarkdown(t *testing.T) {
	got := string(renderMarkdown("# Title\n\n- one"))
	assert.Contains(t, got, "<h1>Title</h1>")
	assert.Contains(t, got, "<li>one</li>")
}
