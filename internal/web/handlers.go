package web

import (
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/hpungsan/wishpair/internal/cadence"
	"github.com/hpungsan/wishpair/internal/config"
	"github.com/hpungsan/wishpair/internal/errors"
	"github.com/hpungsan/wishpair/internal/nudge"
	"github.com/hpungsan/wishpair/internal/ops"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

const schedulerCadence = "hourly check, fires only when pair cadence is due"

// Handlers contains HTTP route handlers for the API and the board.
type Handlers struct {
	db        *sql.DB
	cfg       *config.Config
	engine    *nudge.Engine
	scheduler *nudge.Scheduler
	renderer  *Renderer
	log       *logrus.Logger
}

// HandleHealth handles GET /health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	renderJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// --- users ---

type userBody struct {
	Email      *string `json:"email"`
	DeviceID   *string `json:"deviceId"`
	PushToken  *string `json:"pushToken"`
	NudgeLevel *int    `json:"nudgeLevel"`
}

// HandleCreateUser handles POST /users.
func (h *Handlers) HandleCreateUser(w http.ResponseWriter, r *http.Request) {
	var body userBody
	if err := decodeBody(r, &body); err != nil {
		renderAPIError(w, h.log, err)
		return
	}
	user, err := ops.CreateUser(r.Context(), h.db, ops.CreateUserInput{
		Email:      body.Email,
		DeviceID:   body.DeviceID,
		PushToken:  body.PushToken,
		NudgeLevel: body.NudgeLevel,
	})
	if err != nil {
		renderAPIError(w, h.log, err)
		return
	}
	renderJSON(w, http.StatusCreated, user)
}

// HandleGetUser handles GET /users/{id}.
func (h *Handlers) HandleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := ops.GetUser(r.Context(), h.db, r.PathValue("id"))
	if err != nil {
		renderAPIError(w, h.log, err)
		return
	}
	renderJSON(w, http.StatusOK, user)
}

// HandleUpdateUser handles PATCH /users/{id}.
func (h *Handlers) HandleUpdateUser(w http.ResponseWriter, r *http.Request) {
	var body userBody
	if err := decodeBody(r, &body); err != nil {
		renderAPIError(w, h.log, err)
		return
	}
	user, err := ops.UpdateUser(r.Context(), h.db, ops.UpdateUserInput{
		ID:         r.PathValue("id"),
		Email:      body.Email,
		DeviceID:   body.DeviceID,
		PushToken:  body.PushToken,
		NudgeLevel: body.NudgeLevel,
	})
	if err != nil {
		renderAPIError(w, h.log, err)
		return
	}
	renderJSON(w, http.StatusOK, user)
}

// HandleUserPair handles GET /users/{id}/pair.
func (h *Handlers) HandleUserPair(w http.ResponseWriter, r *http.Request) {
	pair, err := ops.GetUserPair(r.Context(), h.db, r.PathValue("id"))
	if err != nil {
		renderAPIError(w, h.log, err)
		return
	}
	renderJSON(w, http.StatusOK, pair)
}

// --- pairs ---

type pairBody struct {
	UserID     string `json:"userId"`
	InviteCode string `json:"inviteCode"`
}

// HandleInvite handles POST /pairs/invite.
func (h *Handlers) HandleInvite(w http.ResponseWriter, r *http.Request) {
	var body pairBody
	if err := decodeBody(r, &body); err != nil {
		renderAPIError(w, h.log, err)
		return
	}
	out, err := ops.Invite(r.Context(), h.db, ops.InviteInput{UserID: userIDFrom(r, body.UserID)})
	if err != nil {
		renderAPIError(w, h.log, err)
		return
	}
	renderJSON(w, http.StatusCreated, out)
}

// HandleJoin handles POST /pairs/join.
func (h *Handlers) HandleJoin(w http.ResponseWriter, r *http.Request) {
	var body pairBody
	if err := decodeBody(r, &body); err != nil {
		renderAPIError(w, h.log, err)
		return
	}
	pair, err := ops.Join(r.Context(), h.db, ops.JoinInput{
		UserID:     userIDFrom(r, body.UserID),
		InviteCode: body.InviteCode,
	})
	if err != nil {
		renderAPIError(w, h.log, err)
		return
	}
	renderJSON(w, http.StatusOK, pair)
}

// HandleGetPair handles GET /pairs/{id}.
func (h *Handlers) HandleGetPair(w http.ResponseWriter, r *http.Request) {
	pair, err := ops.GetPair(r.Context(), h.db, r.PathValue("id"))
	if err != nil {
		renderAPIError(w, h.log, err)
		return
	}
	renderJSON(w, http.StatusOK, pair)
}

// --- wishes ---

// wishBody accepts both "timing" and "season" for the season hint.
type wishBody struct {
	Title       *string `json:"title"`
	Category    *string `json:"category"`
	Season      *string `json:"season"`
	Timing      *string `json:"timing"`
	Priority    *string `json:"priority"`
	Status      *string `json:"status"`
	BudgetRange *string `json:"budgetRange"`
	BudgetMin   *int64  `json:"budgetMin"`
	BudgetMax   *int64  `json:"budgetMax"`
	Memo        *string `json:"memo"`
	CreatedBy   string  `json:"createdBy"`
}

func (b wishBody) season() *string {
	if b.Season != nil {
		return b.Season
	}
	return b.Timing
}

// HandleCreateWish handles POST /pairs/{id}/wishes.
func (h *Handlers) HandleCreateWish(w http.ResponseWriter, r *http.Request) {
	var body wishBody
	if err := decodeBody(r, &body); err != nil {
		renderAPIError(w, h.log, err)
		return
	}
	created, err := ops.CreateWish(r.Context(), h.db, ops.CreateWishInput{
		PairID:      r.PathValue("id"),
		CreatedBy:   userIDFrom(r, body.CreatedBy),
		Title:       derefString(body.Title),
		Category:    derefString(body.Category),
		Season:      body.season(),
		Priority:    derefString(body.Priority),
		Status:      derefString(body.Status),
		BudgetRange: derefString(body.BudgetRange),
		BudgetMin:   body.BudgetMin,
		BudgetMax:   body.BudgetMax,
		Memo:        body.Memo,
	})
	if err != nil {
		renderAPIError(w, h.log, err)
		return
	}
	renderJSON(w, http.StatusCreated, created)
}

// HandleListWishes handles GET /pairs/{id}/wishes.
func (h *Handlers) HandleListWishes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	minBudget, err := parseInt64Param(r, "minBudget")
	if err != nil {
		renderAPIError(w, h.log, err)
		return
	}
	maxBudget, err := parseInt64Param(r, "maxBudget")
	if err != nil {
		renderAPIError(w, h.log, err)
		return
	}
	season := q.Get("season")
	if season == "" {
		season = q.Get("timing")
	}

	out, err := ops.ListWishes(r.Context(), h.db, ops.ListWishesInput{
		PairID:    r.PathValue("id"),
		Status:    q.Get("status"),
		Category:  q.Get("category"),
		Priority:  q.Get("priority"),
		Season:    season,
		CreatedBy: q.Get("createdBy"),
		Q:         q.Get("q"),
		MinBudget: minBudget,
		MaxBudget: maxBudget,
		SortBy:    q.Get("sortBy"),
		Order:     q.Get("order"),
		Limit:     parseIntParam(r, "limit", ops.DefaultListLimit),
		Offset:    parseIntParam(r, "offset", 0),
	})
	if err != nil {
		renderAPIError(w, h.log, err)
		return
	}
	renderJSON(w, http.StatusOK, out)
}

// HandleGetWish handles GET /wishes/{id}.
func (h *Handlers) HandleGetWish(w http.ResponseWriter, r *http.Request) {
	found, err := ops.GetWish(r.Context(), h.db, r.PathValue("id"))
	if err != nil {
		renderAPIError(w, h.log, err)
		return
	}
	renderJSON(w, http.StatusOK, found)
}

// HandleUpdateWish handles PATCH /wishes/{id}.
func (h *Handlers) HandleUpdateWish(w http.ResponseWriter, r *http.Request) {
	var body wishBody
	if err := decodeBody(r, &body); err != nil {
		renderAPIError(w, h.log, err)
		return
	}
	updated, err := ops.UpdateWish(r.Context(), h.db, ops.UpdateWishInput{
		ID:          r.PathValue("id"),
		Title:       body.Title,
		Category:    body.Category,
		Season:      body.season(),
		Priority:    body.Priority,
		Status:      body.Status,
		BudgetRange: body.BudgetRange,
		BudgetMin:   body.BudgetMin,
		BudgetMax:   body.BudgetMax,
		Memo:        body.Memo,
	})
	if err != nil {
		renderAPIError(w, h.log, err)
		return
	}
	renderJSON(w, http.StatusOK, updated)
}

// HandleCompleteWish handles POST /wishes/{id}/complete.
func (h *Handlers) HandleCompleteWish(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Completed *bool `json:"completed"`
	}
	if err := decodeBody(r, &body); err != nil {
		renderAPIError(w, h.log, err)
		return
	}
	updated, err := ops.CompleteWish(r.Context(), h.db, ops.CompleteWishInput{
		ID:        r.PathValue("id"),
		Completed: body.Completed,
	})
	if err != nil {
		renderAPIError(w, h.log, err)
		return
	}
	renderJSON(w, http.StatusOK, updated)
}

// HandleDeleteWish handles DELETE /wishes/{id}.
func (h *Handlers) HandleDeleteWish(w http.ResponseWriter, r *http.Request) {
	out, err := ops.DeleteWish(r.Context(), h.db, r.PathValue("id"))
	if err != nil {
		renderAPIError(w, h.log, err)
		return
	}
	renderJSON(w, http.StatusOK, out)
}

// --- nudges ---

type triggerBody struct {
	PairID     string     `json:"pairId"`
	Force      *bool      `json:"force"`
	MinAgeDays *numberish `json:"minAgeDays"`
}

// numberish is a JSON number that clients may also send as a numeric string.
type numberish float64

func (n *numberish) UnmarshalJSON(data []byte) error {
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return err
	}
	v, err := num.Float64()
	if err != nil {
		return err
	}
	*n = numberish(v)
	return nil
}

// HandleTriggerNudges handles POST /nudges/trigger. Force defaults to true.
func (h *Handlers) HandleTriggerNudges(w http.ResponseWriter, r *http.Request) {
	var body triggerBody
	if err := decodeBody(r, &body); err != nil {
		renderAPIError(w, h.log, err)
		return
	}

	in := nudge.TriggerInput{
		PairID:     strings.TrimSpace(body.PairID),
		Force:      true,
		MinAgeDays: h.cfg.EffectiveMinAgeDays(),
	}
	if body.Force != nil {
		in.Force = *body.Force
	}
	if body.MinAgeDays != nil {
		in.MinAgeDays = float64(*body.MinAgeDays)
	}

	summary, err := h.engine.Trigger(r.Context(), in)
	if err != nil {
		renderAPIError(w, h.log, err)
		return
	}
	renderJSON(w, http.StatusOK, summary)
}

// NudgeConfigOutput is the response of GET /nudges/config.
type NudgeConfigOutput struct {
	NudgeLevels map[int]string  `json:"nudgeLevels"`
	MinAgeDays  float64         `json:"minAgeDays"`
	Push        bool            `json:"pushEnabled"`
	Scheduler   SchedulerConfig `json:"scheduler"`
}

// SchedulerConfig describes the background scheduler.
type SchedulerConfig struct {
	Enabled bool   `json:"enabled"`
	Spec    string `json:"spec"`
	Cadence string `json:"cadence"`
}

// HandleNudgeConfig handles GET /nudges/config.
func (h *Handlers) HandleNudgeConfig(w http.ResponseWriter, r *http.Request) {
	renderJSON(w, http.StatusOK, NudgeConfigOutput{
		NudgeLevels: cadence.Labels(),
		MinAgeDays:  h.cfg.EffectiveMinAgeDays(),
		Push:        h.cfg.PushEnabled,
		Scheduler: SchedulerConfig{
			Enabled: h.scheduler != nil,
			Spec:    h.cfg.SchedulerSpec,
			Cadence: schedulerCadence,
		},
	})
}

// decodeBody decodes a JSON request body into dst. An empty body leaves dst untouched.
func decodeBody(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if stderrors.Is(err, io.EOF) {
			return nil
		}
		return errors.NewInvalidRequest("invalid JSON body: " + err.Error())
	}
	return nil
}

// userIDFrom prefers the body value and falls back to the X-User-Id header.
func userIDFrom(r *http.Request, fromBody string) string {
	if v := strings.TrimSpace(fromBody); v != "" {
		return v
	}
	return strings.TrimSpace(r.Header.Get("X-User-Id"))
}

// parseIntParam reads an integer query parameter, returning defaultVal on absence or error.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}

// parseInt64Param reads an optional integer query parameter. Malformed values are rejected.
func parseInt64Param(r *http.Request, name string) (*int64, error) {
	s := strings.TrimSpace(r.URL.Query().Get(name))
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, errors.NewInvalidRequest(name + " must be an integer")
	}
	return &v, nil
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
