package tracking

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/yanqian/fevertrack/internal/domain/auth"
	"github.com/yanqian/fevertrack/internal/domain/episode"
	apperrors "github.com/yanqian/fevertrack/pkg/errors"
	"github.com/yanqian/fevertrack/pkg/util"
)

const (
	CodeForbidden  = "forbidden"
	CodeStoreError = "store_error"
	maxAlertLimit  = 100
	feedBuffer     = 32
)

// Service is the boundary around the escalation engine. It resolves the
// caller's access, fetches predictions, persists outcomes and delivers alerts.
type Service interface {
	StartEpisode(ctx context.Context, session auth.Session, req StartRequest) (EpisodeView, error)
	GetEpisode(ctx context.Context, session auth.Session, episodeID string) (EpisodeView, error)
	ListEpisodes(ctx context.Context, session auth.Session, patientID string) ([]EpisodeView, error)
	LogReading(ctx context.Context, session auth.Session, episodeID string, req LogRequest) (LogResponse, error)
	ResolveEpisode(ctx context.Context, session auth.Session, episodeID string) (EpisodeView, error)
	Trend(ctx context.Context, session auth.Session, episodeID string) (TrendResponse, error)
	DayDetail(ctx context.Context, session auth.Session, episodeID string, day int) (DayDetailResponse, error)
	Latest(ctx context.Context, session auth.Session, episodeID string) (episode.Snapshot, error)
	CurrentStatus(ctx context.Context, session auth.Session, episodeID string) (episode.Status, error)
	RecentAlerts(ctx context.Context, session auth.Session, limit int) ([]Alert, error)
	MarkAlertRead(ctx context.Context, session auth.Session, alertID string) error
	DismissAlert(ctx context.Context, session auth.Session, alertID string) error
	SubscribeAlerts(ctx context.Context, session auth.Session) (<-chan episode.AlertEvent, error)
}

type service struct {
	cfg       Config
	repo      Repository
	statuses  StatusStore
	alerts    Alerts
	predictor Predictor
	archiver  Archiver
	engine    *episode.Engine
	now       func() time.Time
	logger    *slog.Logger
}

// NewService wires the tracking domain. predictor and archiver may be nil.
func NewService(cfg Config, repo Repository, statuses StatusStore, alerts Alerts, predictor Predictor, archiver Archiver, logger *slog.Logger) Service {
	return newService(cfg, repo, statuses, alerts, predictor, archiver, util.NowUTC, logger)
}

func newService(cfg Config, repo Repository, statuses StatusStore, alerts Alerts, predictor Predictor, archiver Archiver, now func() time.Time, logger *slog.Logger) *service {
	if cfg.RecentAlertLimit <= 0 {
		cfg.RecentAlertLimit = 20
	}
	return &service{
		cfg:       cfg,
		repo:      repo,
		statuses:  statuses,
		alerts:    alerts,
		predictor: predictor,
		archiver:  archiver,
		engine:    episode.NewEngine(now),
		now:       now,
		logger:    logger.With("component", "tracking.service"),
	}
}

func (s *service) StartEpisode(ctx context.Context, session auth.Session, req StartRequest) (EpisodeView, error) {
	patientID := strings.TrimSpace(req.PatientID)
	if !session.IsClinician() {
		if patientID != "" && patientID != session.PatientID {
			return EpisodeView{}, forbidden()
		}
		patientID = session.PatientID
	}
	if patientID == "" {
		return EpisodeView{}, apperrors.Wrap(episode.CodeValidation, "patientId is required", nil)
	}
	if !session.CanAccessPatient(patientID) {
		return EpisodeView{}, forbidden()
	}

	if _, found, err := s.repo.FindActiveByPatient(ctx, patientID); err != nil {
		return EpisodeView{}, apperrors.Wrap(CodeStoreError, "failed to look up active episode", err)
	} else if found {
		return EpisodeView{}, apperrors.Wrap(episode.CodeInvalidState, "patient already has an active episode", nil)
	}

	ep, err := episode.New(patientID, s.now(), req.MedicalHistory, req.ExposureHistory)
	if err != nil {
		return EpisodeView{}, err
	}
	if err := s.repo.Create(ctx, ep); err != nil {
		return EpisodeView{}, s.mapRepoError(err, "failed to create episode")
	}
	s.logger.Info("episode started", "episodeId", ep.ID(), "patientId", patientID)
	return s.view(ep, ""), nil
}

func (s *service) GetEpisode(ctx context.Context, session auth.Session, episodeID string) (EpisodeView, error) {
	ep, err := s.load(ctx, session, episodeID)
	if err != nil {
		return EpisodeView{}, err
	}
	return s.view(ep, ""), nil
}

func (s *service) ListEpisodes(ctx context.Context, session auth.Session, patientID string) ([]EpisodeView, error) {
	patientID = strings.TrimSpace(patientID)
	if patientID == "" {
		return nil, apperrors.Wrap(episode.CodeValidation, "patientId is required", nil)
	}
	if !session.CanAccessPatient(patientID) {
		return nil, forbidden()
	}
	eps, err := s.repo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, apperrors.Wrap(CodeStoreError, "failed to list episodes", err)
	}
	views := make([]EpisodeView, 0, len(eps))
	for _, ep := range eps {
		views = append(views, s.view(ep, ""))
	}
	return views, nil
}

func (s *service) LogReading(ctx context.Context, session auth.Session, episodeID string, req LogRequest) (LogResponse, error) {
	current, err := s.load(ctx, session, episodeID)
	if err != nil {
		return LogResponse{}, err
	}
	if current.State() != episode.StateActive {
		return LogResponse{}, apperrors.Wrap(episode.CodeInvalidState, "episode is resolved and does not accept readings", nil)
	}

	if err := validatePlatelets(req.PlateletCount); err != nil {
		return LogResponse{}, err
	}
	pred, err := s.prediction(ctx, current, req)
	if err != nil {
		return LogResponse{}, err
	}

	var out episode.Outcome
	_, err = s.repo.Update(ctx, episodeID, func(ep *episode.Episode) error {
		var evalErr error
		out, evalErr = s.engine.Evaluate(ep, req.Reading, pred)
		return evalErr
	})
	if err != nil {
		return LogResponse{}, s.mapRepoError(err, "failed to record reading")
	}

	if err := s.statuses.SaveStatus(ctx, out.Status, s.cfg.StatusTTL); err != nil {
		s.logger.Warn("status cache write failed", "episodeId", episodeID, "error", err)
	}

	resp := LogResponse{Snapshot: out.Snapshot, Status: out.Status, Prediction: pred}
	if out.Alert != nil {
		resp.AlertID = out.Alert.ID
		if err := s.alerts.Publish(ctx, *out.Alert); err != nil {
			s.logger.Error("alert publish failed", "alertId", out.Alert.ID, "episodeId", episodeID, "error", err)
		} else {
			resp.AlertPublished = true
			s.logger.Info("alert published", "alertId", out.Alert.ID, "episodeId", episodeID, "severity", out.Alert.Severity)
		}
	}
	return resp, nil
}

// prediction returns the caller supplied prediction, or asks the predictor when
// requested. Predictor failures degrade to a status without disease guidance.
func (s *service) prediction(ctx context.Context, ep *episode.Episode, req LogRequest) (*episode.Prediction, error) {
	if req.Prediction != nil {
		pred, err := episode.NormalizePrediction(*req.Prediction)
		if err != nil {
			return nil, err
		}
		return &pred, nil
	}
	if !req.Predict || s.predictor == nil {
		return nil, nil
	}
	if err := episode.ValidateVitals(req.TemperatureF, req.PulseRate); err != nil {
		return nil, err
	}
	feverDays, err := episode.ResolveDay(req.DayOfIllness, ep.StartedAt(), s.now())
	if err != nil {
		return nil, err
	}

	platelets := s.cfg.DefaultPlateletCount
	if req.PlateletCount != nil {
		platelets = *req.PlateletCount
	}
	exposure := ep.ExposureHistory()
	symptoms := req.Symptoms
	in := PredictionInput{
		PatientID:        ep.PatientID(),
		EpisodeID:        ep.ID(),
		TemperatureF:     *req.TemperatureF,
		FeverDays:        feverDays,
		Headache:         symptoms.Headache,
		BodyPain:         symptoms.BodyPain,
		EyePain:          symptoms.EyePain,
		NauseaVomiting:   symptoms.Nausea || symptoms.Vomiting,
		AbdominalPain:    symptoms.AbdominalPain,
		Rash:             symptoms.Rash,
		Bleeding:         symptoms.Bleeding,
		PlateletCount:    platelets,
		MosquitoExposure: exposure.MosquitoExposure,
		Travel:           exposure.RecentTravel,
	}
	pred, err := s.predictor.Predict(ctx, in)
	if err != nil {
		s.logger.Warn("prediction unavailable, continuing without it", "episodeId", ep.ID(), "error", err)
		return nil, nil
	}
	return &pred, nil
}

// validatePlatelets accepts a count in thousands per microlitre.
func validatePlatelets(count *float64) error {
	if count == nil {
		return nil
	}
	if *count <= 0 || *count > MaxPlateletCount {
		return apperrors.Newf(episode.CodeValidation, "plateletCount must be in thousands per microlitre (0 < x <= %v), got %v", MaxPlateletCount, *count)
	}
	return nil
}

func (s *service) ResolveEpisode(ctx context.Context, session auth.Session, episodeID string) (EpisodeView, error) {
	if _, err := s.load(ctx, session, episodeID); err != nil {
		return EpisodeView{}, err
	}
	resolvedAt := s.now()
	ep, err := s.repo.Update(ctx, episodeID, func(ep *episode.Episode) error {
		return ep.Resolve(resolvedAt)
	})
	if err != nil {
		return EpisodeView{}, s.mapRepoError(err, "failed to resolve episode")
	}
	s.logger.Info("episode resolved", "episodeId", episodeID, "readings", ep.Len())

	var key string
	if s.archiver != nil {
		key, err = s.archiver.Archive(ctx, ep.Record())
		if err != nil {
			s.logger.Warn("episode archive failed", "episodeId", episodeID, "error", err)
			key = ""
		}
	}
	return s.view(ep, key), nil
}

func (s *service) Trend(ctx context.Context, session auth.Session, episodeID string) (TrendResponse, error) {
	ep, err := s.load(ctx, session, episodeID)
	if err != nil {
		return TrendResponse{}, err
	}
	return TrendResponse{EpisodeID: ep.ID(), Points: ep.DailyTrend()}, nil
}

func (s *service) DayDetail(ctx context.Context, session auth.Session, episodeID string, day int) (DayDetailResponse, error) {
	ep, err := s.load(ctx, session, episodeID)
	if err != nil {
		return DayDetailResponse{}, err
	}
	readings, err := ep.DayDetail(day)
	if err != nil {
		return DayDetailResponse{}, err
	}
	return DayDetailResponse{EpisodeID: ep.ID(), Day: day, Readings: readings}, nil
}

func (s *service) Latest(ctx context.Context, session auth.Session, episodeID string) (episode.Snapshot, error) {
	ep, err := s.load(ctx, session, episodeID)
	if err != nil {
		return episode.Snapshot{}, err
	}
	snap, ok := ep.Latest()
	if !ok {
		return episode.Snapshot{}, apperrors.Wrap(episode.CodeNotFound, "no readings recorded yet", nil)
	}
	return snap, nil
}

// CurrentStatus serves the cached status. On a cache miss it is recomposed from
// the latest snapshot and the prediction recorded with it.
func (s *service) CurrentStatus(ctx context.Context, session auth.Session, episodeID string) (episode.Status, error) {
	ep, err := s.load(ctx, session, episodeID)
	if err != nil {
		return episode.Status{}, err
	}
	status, found, err := s.statuses.GetStatus(ctx, episodeID)
	if err != nil {
		s.logger.Warn("status cache read failed", "episodeId", episodeID, "error", err)
	}
	if found {
		return status, nil
	}

	snap, ok := ep.Latest()
	if !ok {
		return episode.Status{}, apperrors.Wrap(episode.CodeNotFound, "no readings recorded yet", nil)
	}
	status = s.engine.Reassess(ep.ID(), snap, snap.Prediction)
	if err := s.statuses.SaveStatus(ctx, status, s.cfg.StatusTTL); err != nil {
		s.logger.Warn("status cache write failed", "episodeId", episodeID, "error", err)
	}
	return status, nil
}

func (s *service) RecentAlerts(ctx context.Context, session auth.Session, limit int) ([]Alert, error) {
	if !session.IsClinician() {
		return nil, forbidden()
	}
	if limit <= 0 {
		limit = s.cfg.RecentAlertLimit
	}
	if limit > maxAlertLimit {
		limit = maxAlertLimit
	}
	alerts, err := s.alerts.Recent(ctx, limit)
	if err != nil {
		return nil, apperrors.Wrap(CodeStoreError, "failed to load alerts", err)
	}
	return alerts, nil
}

func (s *service) MarkAlertRead(ctx context.Context, session auth.Session, alertID string) error {
	return s.updateAlert(ctx, session, alertID, s.alerts.MarkRead)
}

func (s *service) DismissAlert(ctx context.Context, session auth.Session, alertID string) error {
	return s.updateAlert(ctx, session, alertID, s.alerts.Dismiss)
}

// SubscribeAlerts streams live alerts until ctx is cancelled. Slow consumers
// drop events; the inbox still holds them.
func (s *service) SubscribeAlerts(ctx context.Context, session auth.Session) (<-chan episode.AlertEvent, error) {
	if !session.IsClinician() {
		return nil, forbidden()
	}
	stream := make(chan episode.AlertEvent, feedBuffer)
	go func() {
		defer close(stream)
		err := s.alerts.Subscribe(ctx, func(ev episode.AlertEvent) {
			select {
			case stream <- ev:
			default:
				s.logger.Warn("alert feed consumer too slow, dropping event", "alertId", ev.ID)
			}
		})
		if err != nil && ctx.Err() == nil {
			s.logger.Error("alert feed stopped", "error", err)
		}
	}()
	return stream, nil
}

func (s *service) updateAlert(ctx context.Context, session auth.Session, alertID string, fn func(context.Context, string) (bool, error)) error {
	if !session.IsClinician() {
		return forbidden()
	}
	alertID = strings.TrimSpace(alertID)
	if alertID == "" {
		return apperrors.Wrap(episode.CodeValidation, "alert id is required", nil)
	}
	found, err := fn(ctx, alertID)
	if err != nil {
		return apperrors.Wrap(CodeStoreError, "failed to update alert", err)
	}
	if !found {
		return apperrors.Wrap(episode.CodeNotFound, "alert not found", nil)
	}
	return nil
}

func (s *service) load(ctx context.Context, session auth.Session, episodeID string) (*episode.Episode, error) {
	episodeID = strings.TrimSpace(episodeID)
	if episodeID == "" {
		return nil, apperrors.Wrap(episode.CodeValidation, "episode id is required", nil)
	}
	ep, err := s.repo.Get(ctx, episodeID)
	if err != nil {
		return nil, s.mapRepoError(err, "failed to load episode")
	}
	// Unknown and foreign episodes look the same to patients.
	if !session.CanAccessPatient(ep.PatientID()) {
		return nil, apperrors.Wrap(episode.CodeNotFound, "episode not found", nil)
	}
	return ep, nil
}

func (s *service) mapRepoError(err error, msg string) error {
	switch {
	case errors.Is(err, ErrEpisodeNotFound):
		return apperrors.Wrap(episode.CodeNotFound, "episode not found", nil)
	case errors.Is(err, ErrActiveEpisodeExists):
		return apperrors.Wrap(episode.CodeInvalidState, "patient already has an active episode", nil)
	case apperrors.CodeOf(err) != "":
		return err
	default:
		return apperrors.Wrap(CodeStoreError, msg, err)
	}
}

func (s *service) view(ep *episode.Episode, archiveKey string) EpisodeView {
	view := EpisodeView{
		ID:              ep.ID(),
		PatientID:       ep.PatientID(),
		Status:          ep.State(),
		StartedAt:       ep.StartedAt(),
		ResolvedAt:      ep.ResolvedAt(),
		ReadingCount:    ep.Len(),
		MedicalHistory:  ep.MedicalHistory(),
		ExposureHistory: ep.ExposureHistory(),
		ArchiveKey:      archiveKey,
	}
	end := s.now()
	if view.ResolvedAt != nil {
		end = *view.ResolvedAt
	}
	view.CurrentDay = episode.DayOfIllness(ep.StartedAt(), end)
	return view
}

func forbidden() error {
	return apperrors.Wrap(CodeForbidden, "access to this resource is not allowed", nil)
}
