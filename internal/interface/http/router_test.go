package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/fevertrack/internal/domain/auth"
	"github.com/yanqian/fevertrack/internal/domain/episode"
	"github.com/yanqian/fevertrack/internal/domain/tracking"
	"github.com/yanqian/fevertrack/internal/infra/config"
	apperrors "github.com/yanqian/fevertrack/pkg/errors"
)

var (
	patientSession   = auth.Session{Subject: "u-1", Role: auth.RolePatient, PatientID: "p-1"}
	clinicianSession = auth.Session{Subject: "doc", Role: auth.RoleClinician}
)

func TestRouter_Healthz(t *testing.T) {
	recorder := performRequest(http.MethodGet, "/healthz", "", "", newRouterUnderTest(t, &stubTracking{}))
	require.Equal(t, http.StatusOK, recorder.Code)
}

func TestRouter_RequiresBearerToken(t *testing.T) {
	server := newRouterUnderTest(t, &stubTracking{})

	recorder := performRequest(http.MethodGet, "/api/v1/episodes/ep-1", "", "", server)
	require.Equal(t, http.StatusUnauthorized, recorder.Code)
	errBody := decodeErrorBody(t, recorder.Body.Bytes())
	require.Equal(t, "unauthorized", errBody["error"]["code"])

	recorder = performRequest(http.MethodGet, "/api/v1/episodes/ep-1", "", "bogus", server)
	require.Equal(t, http.StatusUnauthorized, recorder.Code)
	errBody = decodeErrorBody(t, recorder.Body.Bytes())
	require.Equal(t, "invalid_token", errBody["error"]["code"])
}

func TestRouter_StartEpisode(t *testing.T) {
	svc := &stubTracking{
		startFn: func(ctx context.Context, session auth.Session, req tracking.StartRequest) (tracking.EpisodeView, error) {
			require.Equal(t, patientSession, session)
			require.True(t, req.ExposureHistory.MosquitoExposure)
			return tracking.EpisodeView{ID: "ep-1", PatientID: session.PatientID, Status: episode.StateActive, CurrentDay: 1}, nil
		},
	}

	recorder := performRequest(http.MethodPost, "/api/v1/episodes", `{"exposureHistory":{"mosquitoExposure":true}}`, "patient", newRouterUnderTest(t, svc))
	require.Equal(t, http.StatusCreated, recorder.Code)

	var got tracking.EpisodeView
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &got))
	require.Equal(t, "ep-1", got.ID)
	require.Equal(t, "p-1", got.PatientID)
}

func TestRouter_LogReading(t *testing.T) {
	svc := &stubTracking{
		logFn: func(ctx context.Context, session auth.Session, id string, req tracking.LogRequest) (tracking.LogResponse, error) {
			require.Equal(t, "ep-1", id)
			require.NotNil(t, req.TemperatureF)
			require.Equal(t, 101.4, *req.TemperatureF)
			require.True(t, req.Symptoms.Bleeding)
			require.True(t, req.Predict)
			return tracking.LogResponse{
				Status:         episode.Status{EpisodeID: id, DangerSigns: []episode.DangerSign{episode.SignBleeding}, AlertRecommended: true},
				AlertID:        "a-1",
				AlertPublished: true,
			}, nil
		},
	}

	body := `{"temperatureF":101.4,"timeOfDay":"morning","symptoms":{"bleeding":true},"predict":true}`
	recorder := performRequest(http.MethodPost, "/api/v1/episodes/ep-1/readings", body, "patient", newRouterUnderTest(t, svc))
	require.Equal(t, http.StatusCreated, recorder.Code)

	var got tracking.LogResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &got))
	require.True(t, got.Status.AlertRecommended)
	require.Equal(t, "a-1", got.AlertID)
}

func TestRouter_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", apperrors.Wrap(episode.CodeValidation, "temperature must be between 95 and 108 F", nil), http.StatusBadRequest, episode.CodeValidation},
		{"invalid state", apperrors.Wrap(episode.CodeInvalidState, "episode is resolved", nil), http.StatusConflict, episode.CodeInvalidState},
		{"not found", apperrors.Wrap(episode.CodeNotFound, "episode not found", nil), http.StatusNotFound, episode.CodeNotFound},
		{"forbidden", apperrors.Wrap(tracking.CodeForbidden, "no", nil), http.StatusForbidden, tracking.CodeForbidden},
		{"store", apperrors.Wrap(tracking.CodeStoreError, "db down", nil), http.StatusServiceUnavailable, tracking.CodeStoreError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubTracking{
				logFn: func(context.Context, auth.Session, string, tracking.LogRequest) (tracking.LogResponse, error) {
					return tracking.LogResponse{}, tc.err
				},
			}
			recorder := performRequest(http.MethodPost, "/api/v1/episodes/ep-1/readings", `{"temperatureF":120}`, "patient", newRouterUnderTest(t, svc))
			require.Equal(t, tc.status, recorder.Code)
			errBody := decodeErrorBody(t, recorder.Body.Bytes())
			require.Equal(t, tc.code, errBody["error"]["code"])
			require.NotEmpty(t, errBody["error"]["message"])
		})
	}
}

func TestRouter_LogReadingInvalidJSON(t *testing.T) {
	recorder := performRequest(http.MethodPost, "/api/v1/episodes/ep-1/readings", `{"temperatureF":"hot"}`, "patient", newRouterUnderTest(t, &stubTracking{}))
	require.Equal(t, http.StatusBadRequest, recorder.Code)
	errBody := decodeErrorBody(t, recorder.Body.Bytes())
	require.Equal(t, "invalid_request", errBody["error"]["code"])
}

func TestRouter_DayDetail(t *testing.T) {
	svc := &stubTracking{
		dayFn: func(ctx context.Context, session auth.Session, id string, day int) (tracking.DayDetailResponse, error) {
			require.Equal(t, 3, day)
			return tracking.DayDetailResponse{EpisodeID: id, Day: day, Readings: []episode.Snapshot{}}, nil
		},
	}
	server := newRouterUnderTest(t, svc)

	recorder := performRequest(http.MethodGet, "/api/v1/episodes/ep-1/days/3", "", "clinician", server)
	require.Equal(t, http.StatusOK, recorder.Code)

	recorder = performRequest(http.MethodGet, "/api/v1/episodes/ep-1/days/three", "", "clinician", server)
	require.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestRouter_AlertInbox(t *testing.T) {
	var dismissed string
	svc := &stubTracking{
		alertsFn: func(ctx context.Context, session auth.Session, limit int) ([]tracking.Alert, error) {
			require.Equal(t, 5, limit)
			return []tracking.Alert{{AlertEvent: episode.AlertEvent{ID: "a-1", Severity: episode.AlertCritical}}}, nil
		},
		dismissFn: func(ctx context.Context, session auth.Session, id string) error {
			dismissed = id
			return nil
		},
	}
	server := newRouterUnderTest(t, svc)

	recorder := performRequest(http.MethodGet, "/api/v1/alerts?limit=5", "", "clinician", server)
	require.Equal(t, http.StatusOK, recorder.Code)
	var body struct {
		Alerts []tracking.Alert `json:"alerts"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	require.Len(t, body.Alerts, 1)
	require.Equal(t, episode.AlertCritical, body.Alerts[0].Severity)

	recorder = performRequest(http.MethodGet, "/api/v1/alerts?limit=-1", "", "clinician", server)
	require.Equal(t, http.StatusBadRequest, recorder.Code)

	recorder = performRequest(http.MethodDelete, "/api/v1/alerts/a-1", "", "clinician", server)
	require.Equal(t, http.StatusNoContent, recorder.Code)
	require.Equal(t, "a-1", dismissed)
}

func TestRouter_StreamAlerts(t *testing.T) {
	events := []episode.AlertEvent{
		{ID: "a-1", Type: episode.AlertTypeDangerSign},
		{ID: "a-2", Type: episode.AlertTypeUrgency},
	}
	svc := &stubTracking{
		subscribeFn: func(ctx context.Context, session auth.Session) (<-chan episode.AlertEvent, error) {
			require.True(t, session.IsClinician())
			stream := make(chan episode.AlertEvent, len(events))
			for _, ev := range events {
				stream <- ev
			}
			close(stream)
			return stream, nil
		},
	}

	recorder := performRequest(http.MethodGet, "/api/v1/alerts/stream", "", "clinician", newRouterUnderTest(t, svc))
	require.Equal(t, http.StatusOK, recorder.Code)
	require.Equal(t, "text/event-stream", recorder.Header().Get("Content-Type"))

	frames := strings.Split(strings.TrimSpace(recorder.Body.String()), "\n\n")
	require.Len(t, frames, len(events))
	for i, frame := range frames {
		lines := strings.Split(frame, "\n")
		require.Len(t, lines, 3)
		require.Equal(t, "event: alert", lines[0])
		require.Equal(t, "id: "+events[i].ID, lines[1])
		var got episode.AlertEvent
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(lines[2], "data: ")), &got))
		require.Equal(t, events[i].ID, got.ID)
	}
}

func TestRouter_StreamAlertsForbidden(t *testing.T) {
	svc := &stubTracking{
		subscribeFn: func(ctx context.Context, session auth.Session) (<-chan episode.AlertEvent, error) {
			return nil, apperrors.Wrap(tracking.CodeForbidden, "clinicians only", nil)
		},
	}
	recorder := performRequest(http.MethodGet, "/api/v1/alerts/stream", "", "patient", newRouterUnderTest(t, svc))
	require.Equal(t, http.StatusForbidden, recorder.Code)
}

func TestRetryExclusions(t *testing.T) {
	patterns := []string{"/api/v1/episodes/*/readings"}
	require.True(t, excluded("/api/v1/episodes/ep-1/readings", patterns))
	require.False(t, excluded("/api/v1/episodes/ep-1/resolve", patterns))
	require.False(t, excluded("/api/v1/episodes", patterns))
}

func performRequest(method, path, body, token string, server *http.Server) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, req)
	return rec
}

func newRouterUnderTest(t *testing.T, svc tracking.Service) *http.Server {
	t.Helper()
	handler := NewHandler(svc, newTestLogger())
	cfg := &config.Config{
		HTTP: config.HTTPConfig{
			Address:      ":0",
			ReadTimeout:  time.Second,
			WriteTimeout: time.Second,
		},
	}
	return NewRouter(cfg, handler, stubAuth{})
}

func newTestLogger() *slog.Logger {
	handler := slog.NewTextHandler(io.Discard, nil)
	return slog.New(handler)
}

type stubAuth struct{}

func (stubAuth) ValidateToken(_ context.Context, token string) (auth.Session, error) {
	switch token {
	case "patient":
		return patientSession, nil
	case "clinician":
		return clinicianSession, nil
	default:
		return auth.Session{}, apperrors.Wrap("invalid_token", "token invalid", nil)
	}
}

func (stubAuth) IssueToken(context.Context, auth.IssueRequest) (string, error) {
	return "", nil
}

type stubTracking struct {
	startFn     func(ctx context.Context, session auth.Session, req tracking.StartRequest) (tracking.EpisodeView, error)
	logFn       func(ctx context.Context, session auth.Session, id string, req tracking.LogRequest) (tracking.LogResponse, error)
	dayFn       func(ctx context.Context, session auth.Session, id string, day int) (tracking.DayDetailResponse, error)
	alertsFn    func(ctx context.Context, session auth.Session, limit int) ([]tracking.Alert, error)
	dismissFn   func(ctx context.Context, session auth.Session, id string) error
	subscribeFn func(ctx context.Context, session auth.Session) (<-chan episode.AlertEvent, error)
}

func (s *stubTracking) StartEpisode(ctx context.Context, session auth.Session, req tracking.StartRequest) (tracking.EpisodeView, error) {
	if s.startFn != nil {
		return s.startFn(ctx, session, req)
	}
	return tracking.EpisodeView{}, nil
}

func (s *stubTracking) GetEpisode(context.Context, auth.Session, string) (tracking.EpisodeView, error) {
	return tracking.EpisodeView{}, nil
}

func (s *stubTracking) ListEpisodes(context.Context, auth.Session, string) ([]tracking.EpisodeView, error) {
	return nil, nil
}

func (s *stubTracking) LogReading(ctx context.Context, session auth.Session, id string, req tracking.LogRequest) (tracking.LogResponse, error) {
	if s.logFn != nil {
		return s.logFn(ctx, session, id, req)
	}
	return tracking.LogResponse{}, nil
}

func (s *stubTracking) ResolveEpisode(context.Context, auth.Session, string) (tracking.EpisodeView, error) {
	return tracking.EpisodeView{}, nil
}

func (s *stubTracking) Trend(context.Context, auth.Session, string) (tracking.TrendResponse, error) {
	return tracking.TrendResponse{}, nil
}

func (s *stubTracking) DayDetail(ctx context.Context, session auth.Session, id string, day int) (tracking.DayDetailResponse, error) {
	if s.dayFn != nil {
		return s.dayFn(ctx, session, id, day)
	}
	return tracking.DayDetailResponse{}, nil
}

func (s *stubTracking) Latest(context.Context, auth.Session, string) (episode.Snapshot, error) {
	return episode.Snapshot{}, nil
}

func (s *stubTracking) CurrentStatus(context.Context, auth.Session, string) (episode.Status, error) {
	return episode.Status{}, nil
}

func (s *stubTracking) RecentAlerts(ctx context.Context, session auth.Session, limit int) ([]tracking.Alert, error) {
	if s.alertsFn != nil {
		return s.alertsFn(ctx, session, limit)
	}
	return nil, nil
}

func (s *stubTracking) MarkAlertRead(context.Context, auth.Session, string) error {
	return nil
}

func (s *stubTracking) DismissAlert(ctx context.Context, session auth.Session, id string) error {
	if s.dismissFn != nil {
		return s.dismissFn(ctx, session, id)
	}
	return nil
}

func (s *stubTracking) SubscribeAlerts(ctx context.Context, session auth.Session) (<-chan episode.AlertEvent, error) {
	if s.subscribeFn != nil {
		return s.subscribeFn(ctx, session)
	}
	stream := make(chan episode.AlertEvent)
	close(stream)
	return stream, nil
}

func decodeErrorBody(t *testing.T, raw []byte) map[string]map[string]string {
	t.Helper()
	var body map[string]map[string]string
	require.NoError(t, json.Unmarshal(raw, &body))
	return body
}

func TestRouter_StreamAcceptsQueryToken(t *testing.T) {
	server := newRouterUnderTest(t, &stubTracking{})

	recorder := performRequest(http.MethodGet, "/api/v1/alerts/stream?access_token=clinician", "", "", server)
	require.Equal(t, http.StatusOK, recorder.Code)

	recorder = performRequest(http.MethodPost, "/api/v1/episodes?access_token=patient", `{}`, "", server)
	require.Equal(t, http.StatusUnauthorized, recorder.Code)
}
