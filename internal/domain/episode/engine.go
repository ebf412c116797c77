package episode

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yanqian/fevertrack/pkg/util"
)

// AlertSeverity grades an alert for clinician inboxes.
type AlertSeverity string

const (
	AlertCritical AlertSeverity = "critical"
	AlertHigh     AlertSeverity = "high"
	AlertMedium   AlertSeverity = "medium"
)

// AlertType names what triggered an alert.
type AlertType string

const (
	AlertTypeDangerSign AlertType = "danger_sign"
	AlertTypeUrgency    AlertType = "urgency"
)

// AlertEvent is emitted when an evaluation recommends alerting. Delivery is the caller's job.
type AlertEvent struct {
	ID          string        `json:"id"`
	PatientID   string        `json:"patientId"`
	EpisodeID   string        `json:"episodeId"`
	SnapshotID  string        `json:"snapshotId"`
	Type        AlertType     `json:"alertType"`
	Severity    AlertSeverity `json:"severity"`
	Urgency     Urgency       `json:"urgency,omitempty"`
	DangerSigns []DangerSign  `json:"dangerSigns"`
	Message     string        `json:"message"`
	CreatedAt   time.Time     `json:"createdAt"`
}

// Outcome is everything one evaluation produced.
type Outcome struct {
	Snapshot Snapshot
	Status   Status
	Alert    *AlertEvent
}

// Engine is the risk escalation orchestrator. It is synchronous, performs no
// I/O and keeps no state besides its clock.
type Engine struct {
	now func() time.Time
}

// NewEngine builds an engine. A nil clock falls back to UTC wall time.
func NewEngine(now func() time.Time) *Engine {
	if now == nil {
		now = util.NowUTC
	}
	return &Engine{now: now}
}

// Evaluate validates a reading, appends it to the episode and composes the
// resulting status. Any error leaves the episode untouched.
// The prediction is optional and must already have been fetched by the caller.
func (e *Engine) Evaluate(ep *Episode, r Reading, pred *Prediction) (Outcome, error) {
	if ep == nil {
		return Outcome{}, validationError("episode is required")
	}
	if ep.State() != StateActive {
		return Outcome{}, invalidStateError("episode %s is %s and does not accept readings", ep.ID(), ep.State())
	}
	now := e.now()
	snap, err := NewSnapshot(ep.ID(), ep.StartedAt(), r, now)
	if err != nil {
		return Outcome{}, err
	}
	snap.Seq = ep.Len() + 1
	snap.Prediction = pred.clone()

	status := e.compose(ep.ID(), snap, snap.Prediction, now)
	if err := ep.Append(snap); err != nil {
		return Outcome{}, err
	}

	out := Outcome{Snapshot: snap, Status: status}
	if status.AlertRecommended {
		out.Alert = buildAlert(ep.PatientID(), status, now)
	}
	return out, nil
}

// Reassess recomputes the status of an already recorded snapshot without
// touching the episode, for example to rebuild a lost status cache entry.
// A nil pred falls back to the prediction stored on the snapshot.
func (e *Engine) Reassess(episodeID string, snap Snapshot, pred *Prediction) Status {
	if pred == nil {
		pred = snap.Prediction
	}
	return e.compose(episodeID, snap, pred, e.now())
}

func (e *Engine) compose(episodeID string, snap Snapshot, pred *Prediction, now time.Time) Status {
	signs := DetectDangerSigns(snap)
	status := Status{
		EpisodeID:    episodeID,
		SnapshotID:   snap.ID,
		SnapshotSeq:  snap.Seq,
		CurrentDay:   snap.DayOfIllness,
		SeverityBand: ClassifySeverity(snap.TemperatureF),
		DangerSigns:  signs,
		EvaluatedAt:  now,
	}

	var external Urgency
	if pred != nil {
		status.Disease = pred.Disease
		external = pred.Urgency
		if guidance, ok := AdvisePhase(pred.Disease, snap.DayOfIllness); ok {
			status.PhaseGuidance = &guidance
		}
	}
	status.EffectiveUrgency = EscalateUrgency(external, signs)
	status.AlertRecommended = len(signs) > 0 || status.EffectiveUrgency.AtLeast(UrgencyHigh)
	return status
}

func buildAlert(patientID string, status Status, now time.Time) *AlertEvent {
	alert := &AlertEvent{
		ID:          uuid.NewString(),
		PatientID:   patientID,
		EpisodeID:   status.EpisodeID,
		SnapshotID:  status.SnapshotID,
		Urgency:     status.EffectiveUrgency,
		Severity:    severityFor(status.EffectiveUrgency),
		DangerSigns: append([]DangerSign(nil), status.DangerSigns...),
		CreatedAt:   now,
	}
	if len(status.DangerSigns) > 0 {
		alert.Type = AlertTypeDangerSign
		names := make([]string, 0, len(status.DangerSigns))
		for _, s := range status.DangerSigns {
			names = append(names, string(s))
		}
		alert.Message = fmt.Sprintf("Danger signs reported on day %d (%s): seek immediate medical attention or call emergency services (108)",
			status.CurrentDay, strings.Join(names, ", "))
		return alert
	}
	alert.Type = AlertTypeUrgency
	disease := status.Disease
	if disease == "" {
		disease = DiseaseOther
	}
	alert.Message = fmt.Sprintf("%s urgency predicted for %s on day %d", status.EffectiveUrgency, disease, status.CurrentDay)
	return alert
}

func severityFor(u Urgency) AlertSeverity {
	switch {
	case u.AtLeast(UrgencyEmergency):
		return AlertCritical
	case u.AtLeast(UrgencyHigh):
		return AlertHigh
	default:
		return AlertMedium
	}
}
