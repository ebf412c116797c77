package episode

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Episode is one tracked illness period. It owns an append-only snapshot log.
//
// Episode does no locking. At most one Append may be in flight per episode and
// reads must not overlap an Append; callers serialise through their storage layer.
type Episode struct {
	id         string
	patientID  string
	startedAt  time.Time
	state      State
	resolvedAt *time.Time
	medical    MedicalHistory
	exposure   ExposureHistory
	snapshots  []Snapshot
}

// Record is the flat, serialisable form of an episode used by storage adapters.
type Record struct {
	ID              string          `json:"id"`
	PatientID       string          `json:"patientId"`
	StartedAt       time.Time       `json:"startedAt"`
	Status          State           `json:"status"`
	ResolvedAt      *time.Time      `json:"resolvedAt,omitempty"`
	MedicalHistory  MedicalHistory  `json:"medicalHistory"`
	ExposureHistory ExposureHistory `json:"exposureHistory"`
	Snapshots       []Snapshot      `json:"snapshots"`
}

// New opens an active episode for a patient.
func New(patientID string, startedAt time.Time, medical MedicalHistory, exposure ExposureHistory) (*Episode, error) {
	patientID = strings.TrimSpace(patientID)
	if patientID == "" {
		return nil, validationError("patient id is required")
	}
	if startedAt.IsZero() {
		return nil, validationError("episode start time is required")
	}
	water, err := ParseWaterSource(exposure.WaterSource)
	if err != nil {
		return nil, err
	}
	exposure.WaterSource = water
	if !medical.PriorAntibiotics {
		medical.AntibioticName = ""
	}
	if !exposure.RecentTravel {
		exposure.TravelLocation = ""
	}
	return &Episode{
		id:        uuid.NewString(),
		patientID: patientID,
		startedAt: startedAt,
		state:     StateActive,
		medical:   medical,
		exposure:  exposure,
	}, nil
}

// Restore rebuilds an episode from storage. Snapshots are kept in the given order.
func Restore(rec Record) (*Episode, error) {
	if rec.ID == "" || rec.PatientID == "" {
		return nil, validationError("episode record is missing identifiers")
	}
	switch rec.Status {
	case StateActive, StateResolved:
	default:
		return nil, validationError("unknown episode status %q", rec.Status)
	}
	ep := &Episode{
		id:         rec.ID,
		patientID:  rec.PatientID,
		startedAt:  rec.StartedAt,
		state:      rec.Status,
		resolvedAt: cloneTime(rec.ResolvedAt),
		medical:    rec.MedicalHistory,
		exposure:   rec.ExposureHistory,
		snapshots:  make([]Snapshot, 0, len(rec.Snapshots)),
	}
	for i, s := range rec.Snapshots {
		snap := s.clone()
		snap.Seq = i + 1
		ep.snapshots = append(ep.snapshots, snap)
	}
	return ep, nil
}

func (e *Episode) ID() string                       { return e.id }
func (e *Episode) PatientID() string                { return e.patientID }
func (e *Episode) StartedAt() time.Time             { return e.startedAt }
func (e *Episode) State() State                     { return e.state }
func (e *Episode) ResolvedAt() *time.Time           { return cloneTime(e.resolvedAt) }
func (e *Episode) MedicalHistory() MedicalHistory   { return e.medical }
func (e *Episode) ExposureHistory() ExposureHistory { return e.exposure }
func (e *Episode) Len() int                         { return len(e.snapshots) }

// Record returns a deep copy suitable for persistence or archiving.
func (e *Episode) Record() Record {
	return Record{
		ID:              e.id,
		PatientID:       e.patientID,
		StartedAt:       e.startedAt,
		Status:          e.state,
		ResolvedAt:      cloneTime(e.resolvedAt),
		MedicalHistory:  e.medical,
		ExposureHistory: e.exposure,
		Snapshots:       e.Snapshots(),
	}
}

// Append adds a snapshot to the log and numbers it. Only active episodes accept snapshots.
func (e *Episode) Append(s Snapshot) error {
	if e.state != StateActive {
		return invalidStateError("episode %s is %s and does not accept readings", e.id, e.state)
	}
	snap := s.clone()
	snap.Seq = len(e.snapshots) + 1
	e.snapshots = append(e.snapshots, snap)
	return nil
}

// Resolve closes the episode.
func (e *Episode) Resolve(at time.Time) error {
	if e.state != StateActive {
		return invalidStateError("episode %s is already %s", e.id, e.state)
	}
	e.state = StateResolved
	e.resolvedAt = &at
	return nil
}

// Snapshots returns a copy of the log in insertion order.
func (e *Episode) Snapshots() []Snapshot {
	out := make([]Snapshot, 0, len(e.snapshots))
	for _, s := range e.snapshots {
		out = append(out, s.clone())
	}
	return out
}

// SnapshotsSince returns copies of the snapshots appended after the first n.
func (e *Episode) SnapshotsSince(n int) []Snapshot {
	if n < 0 {
		n = 0
	}
	if n >= len(e.snapshots) {
		return []Snapshot{}
	}
	out := make([]Snapshot, 0, len(e.snapshots)-n)
	for _, s := range e.snapshots[n:] {
		out = append(out, s.clone())
	}
	return out
}

// DailyTrend returns one point per illness day using the mean temperature of that day.
func (e *Episode) DailyTrend() []TrendPoint {
	type acc struct {
		sum, min, max float64
		n             int
	}
	byDay := make(map[int]*acc)
	for _, s := range e.snapshots {
		a, ok := byDay[s.DayOfIllness]
		if !ok {
			a = &acc{min: math.Inf(1), max: math.Inf(-1)}
			byDay[s.DayOfIllness] = a
		}
		a.sum += s.TemperatureF
		a.n++
		a.min = math.Min(a.min, s.TemperatureF)
		a.max = math.Max(a.max, s.TemperatureF)
	}
	points := make([]TrendPoint, 0, len(byDay))
	for d, a := range byDay {
		points = append(points, TrendPoint{
			Day:          d,
			MeanTempF:    a.sum / float64(a.n),
			MinTempF:     a.min,
			MaxTempF:     a.max,
			ReadingCount: a.n,
		})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Day < points[j].Day })
	return points
}

// DayDetail returns the snapshots of one day ordered morning, afternoon,
// evening, night, then untagged readings; ties keep recorded order.
// A day with no readings yields an empty slice.
func (e *Episode) DayDetail(dayOfIllness int) ([]Snapshot, error) {
	if dayOfIllness < 1 {
		return nil, validationError("day of illness must be at least 1, got %d", dayOfIllness)
	}
	out := make([]Snapshot, 0)
	for _, s := range e.snapshots {
		if s.DayOfIllness == dayOfIllness {
			out = append(out, s.clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := out[i].TimeOfDay.rank(), out[j].TimeOfDay.rank()
		if ri != rj {
			return ri < rj
		}
		return out[i].RecordedAt.Before(out[j].RecordedAt)
	})
	return out, nil
}

// Latest returns the most recently recorded snapshot. The later append wins a tie.
func (e *Episode) Latest() (Snapshot, bool) {
	if len(e.snapshots) == 0 {
		return Snapshot{}, false
	}
	best := 0
	for i := 1; i < len(e.snapshots); i++ {
		if !e.snapshots[i].RecordedAt.Before(e.snapshots[best].RecordedAt) {
			best = i
		}
	}
	return e.snapshots[best].clone(), true
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
