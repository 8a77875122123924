package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dermaluz/agenda/internal/agenda"
	"github.com/dermaluz/agenda/internal/directory"
)

type memRepo struct {
	mu    sync.Mutex
	appts map[uuid.UUID]agenda.Appointment
}

func (r *memRepo) List(ctx context.Context) ([]agenda.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]agenda.Appointment, 0, len(r.appts))
	for _, a := range r.appts {
		out = append(out, a)
	}
	return out, nil
}

func (r *memRepo) Get(ctx context.Context, id uuid.UUID) (*agenda.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appts[id]
	if !ok {
		return nil, agenda.ErrNotFound
	}
	return &a, nil
}

func (r *memRepo) ActiveBySlot(ctx context.Context, key agenda.SlotKey) (*agenda.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.appts {
		if a.Active() && a.Slot() == key {
			return &a, nil
		}
	}
	return nil, agenda.ErrNotFound
}

func (r *memRepo) Create(ctx context.Context, a agenda.Appointment) (*agenda.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.appts {
		if existing.Active() && a.Active() && existing.Slot() == a.Slot() {
			return nil, agenda.ErrSlotConflict
		}
	}
	a.ID = uuid.New()
	r.appts[a.ID] = a
	return &a, nil
}

func (r *memRepo) Update(ctx context.Context, a agenda.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.appts[a.ID]; !ok {
		return agenda.ErrNotFound
	}
	for _, existing := range r.appts {
		if existing.ID != a.ID && existing.Active() && a.Active() && existing.Slot() == a.Slot() {
			return agenda.ErrSlotConflict
		}
	}
	r.appts[a.ID] = a
	return nil
}

func (r *memRepo) Remove(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.appts[id]; !ok {
		return agenda.ErrNotFound
	}
	delete(r.appts, id)
	return nil
}

func (r *memRepo) Watch(ctx context.Context, onChange func([]agenda.Appointment)) {}

func (r *memRepo) RecordEvent(ctx context.Context, ev agenda.Event) error { return nil }

type noopLocker struct{}

func (noopLocker) WithSlotLock(ctx context.Context, date, tok, office string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type staticLookup []string

func (s staticLookup) List(ctx context.Context) ([]directory.Entry, error) {
	entries := make([]directory.Entry, len(s))
	for i, name := range s {
		entries[i] = directory.Entry{ID: uuid.New(), Name: name}
	}
	return entries, nil
}

func (s staticLookup) Exists(ctx context.Context, name string) (bool, error) {
	for _, n := range s {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	repo := &memRepo{appts: make(map[uuid.UUID]agenda.Appointment)}
	dirs := agenda.Directories{
		Patients:   staticLookup{"X", "Y"},
		Treatments: staticLookup{"Facial"},
		Offices:    staticLookup{"A"},
	}
	engine := agenda.NewEngine(repo, noopLocker{}, dirs, time.Second)

	view := agenda.NewView()

	srv := httptest.NewServer(NewRouter(RouterConfig{
		Engine:  engine,
		View:    view,
		Dirs:    dirs,
		Env:     "test",
		Version: "test",
	}))
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, payload any, operator string) *http.Response {
	t.Helper()

	var body bytes.Buffer
	if payload != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(payload))
	}

	req, err := http.NewRequest(method, url, &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if operator != "" {
		req.Header.Set("X-Operator", operator)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func validBooking() BookingRequest {
	return BookingRequest{
		Date:      "2026-09-01",
		Time:      "10:00",
		Office:    "A",
		Patient:   "X",
		Treatment: "Facial",
	}
}

func TestBookEndpoint_CreatesAppointment(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/appointments", validBooking(), "op-1")
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	appt := decodeBody[agenda.Appointment](t, resp)
	assert.Equal(t, agenda.StatusConfirmed, appt.Status)
	assert.NotEqual(t, uuid.Nil, appt.ID)
}

func TestBookEndpoint_RequiresOperator(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/appointments", validBooking(), "")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	errResp := decodeBody[ErrorResponse](t, resp)
	assert.Equal(t, "operator_required", errResp.Error)
}

func TestBookEndpoint_ConflictOnOccupiedSlot(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/appointments", validBooking(), "op-1")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	second := validBooking()
	second.Patient = "Y"
	resp = doJSON(t, http.MethodPost, srv.URL+"/appointments", second, "op-2")
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	errResp := decodeBody[ErrorResponse](t, resp)
	assert.Equal(t, "slot_conflict", errResp.Error)
}

func TestBookEndpoint_ValidationFailure(t *testing.T) {
	srv := newTestServer(t)

	req := validBooking()
	req.Patient = ""
	resp := doJSON(t, http.MethodPost, srv.URL+"/appointments", req, "op-1")
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	errResp := decodeBody[ErrorResponse](t, resp)
	assert.Equal(t, "validation_failed", errResp.Error)
}

func TestCancelEndpoint_RequiresReason(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/appointments", validBooking(), "op-1")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	appt := decodeBody[agenda.Appointment](t, resp)

	resp = doJSON(t, http.MethodPost, srv.URL+"/appointments/"+appt.ID.String()+"/cancel", CancelRequest{}, "op-1")
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, http.MethodPost, srv.URL+"/appointments/"+appt.ID.String()+"/cancel", CancelRequest{Reason: "no-show"}, "op-1")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	cancelled := decodeBody[agenda.Appointment](t, resp)
	assert.Equal(t, agenda.StatusCancelled, cancelled.Status)
	assert.Equal(t, "no-show", cancelled.CancelReason)
}

func TestReassignEndpoint_InvalidFromConfirmed(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/appointments", validBooking(), "op-1")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	appt := decodeBody[agenda.Appointment](t, resp)

	req := validBooking()
	req.Patient = "Y"
	resp = doJSON(t, http.MethodPost, srv.URL+"/appointments/"+appt.ID.String()+"/reassign", req, "op-1")
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	errResp := decodeBody[ErrorResponse](t, resp)
	assert.Equal(t, "invalid_transition", errResp.Error)
}

func TestDeleteEndpoint_NeedsConfirmation(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/appointments", validBooking(), "op-1")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	appt := decodeBody[agenda.Appointment](t, resp)

	resp = doJSON(t, http.MethodDelete, srv.URL+"/appointments/"+appt.ID.String(), nil, "op-1")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	errResp := decodeBody[ErrorResponse](t, resp)
	assert.Equal(t, "confirmation_required", errResp.Error)

	resp = doJSON(t, http.MethodDelete, srv.URL+"/appointments/"+appt.ID.String()+"?confirm=true", nil, "op-1")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()
}

func TestDeleteEndpoint_CompletedIsGuarded(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/appointments", validBooking(), "op-1")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	appt := decodeBody[agenda.Appointment](t, resp)

	resp = doJSON(t, http.MethodPost, srv.URL+"/appointments/"+appt.ID.String()+"/complete", CompleteRequest{Notes: "done"}, "op-1")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, http.MethodDelete, srv.URL+"/appointments/"+appt.ID.String()+"?confirm=true", nil, "op-1")
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	errResp := decodeBody[ErrorResponse](t, resp)
	assert.Equal(t, "invalid_transition", errResp.Error)
}

func TestWeekEndpoint_GridShape(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/agenda/week?anchor=2026-09-03")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	week := decodeBody[WeekResponse](t, resp)
	assert.Equal(t, "2026-08-31", week.WeekStart)
	assert.Len(t, week.Days, 6)
	assert.Len(t, week.Times, 22)
	assert.Len(t, week.Cells, 6*22)
}

func TestWeekEndpoint_RejectsBadAnchor(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/agenda/week?anchor=tomorrow")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDayEndpoint_RejectsBadDate(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/agenda/day?date=today")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDirectoryEndpoints(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/directory/patients")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	entries := decodeBody[[]directory.Entry](t, resp)
	require.Len(t, entries, 2)
	assert.Equal(t, "X", entries[0].Name)
}
