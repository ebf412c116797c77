package episode

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Snapshot is one recorded reading. It is a value: corrections are made by
// appending a new snapshot, never by editing an old one.
// Seq is the 1-based position in the episode log, assigned on append.
// Prediction is the classifier result the reading was evaluated with, if any.
type Snapshot struct {
	ID           string      `json:"id"`
	EpisodeID    string      `json:"episodeId"`
	Seq          int         `json:"seq"`
	DayOfIllness int         `json:"dayOfIllness"`
	TimeOfDay    TimeOfDay   `json:"timeOfDay,omitempty"`
	TemperatureF float64     `json:"temperatureF"`
	PulseRate    *int        `json:"pulseRate,omitempty"`
	Symptoms     Symptoms    `json:"symptoms"`
	FoodIntake   FoodIntake  `json:"foodIntake"`
	UrineOutput  UrineOutput `json:"urineOutput"`
	DeviceID     string      `json:"deviceId,omitempty"`
	Prediction   *Prediction `json:"prediction,omitempty"`
	RecordedAt   time.Time   `json:"recordedAt"`
}

// NewSnapshot validates a reading and builds the snapshot for an episode that
// started at startedAt. recordedAt is the creation time of the snapshot.
func NewSnapshot(episodeID string, startedAt time.Time, r Reading, recordedAt time.Time) (Snapshot, error) {
	if err := ValidateVitals(r.TemperatureF, r.PulseRate); err != nil {
		return Snapshot{}, err
	}
	slot, err := parseTimeOfDay(r.TimeOfDay)
	if err != nil {
		return Snapshot{}, err
	}
	food, err := parseFoodIntake(r.FoodIntake)
	if err != nil {
		return Snapshot{}, err
	}
	urine, err := parseUrineOutput(r.UrineOutput)
	if err != nil {
		return Snapshot{}, err
	}
	symptoms, err := normalizeSymptoms(r.Symptoms)
	if err != nil {
		return Snapshot{}, err
	}
	device, err := parseDeviceID(r.DeviceID)
	if err != nil {
		return Snapshot{}, err
	}
	day, err := ResolveDay(r.DayOfIllness, startedAt, recordedAt)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		ID:           uuid.NewString(),
		EpisodeID:    episodeID,
		DayOfIllness: day,
		TimeOfDay:    slot,
		TemperatureF: *r.TemperatureF,
		PulseRate:    cloneInt(r.PulseRate),
		Symptoms:     symptoms,
		FoodIntake:   food,
		UrineOutput:  urine,
		DeviceID:     device,
		RecordedAt:   recordedAt,
	}, nil
}

func (s Snapshot) clone() Snapshot {
	out := s
	out.PulseRate = cloneInt(s.PulseRate)
	out.Symptoms.VomitingCount = cloneInt(s.Symptoms.VomitingCount)
	out.Prediction = s.Prediction.clone()
	return out
}

func normalizeSymptoms(in Symptoms) (Symptoms, error) {
	out := in
	out.RashLocation = ""
	out.BleedingSite = ""
	out.VomitingCount = nil
	if in.Rash {
		out.RashLocation = strings.TrimSpace(in.RashLocation)
	}
	if in.Bleeding {
		out.BleedingSite = strings.TrimSpace(in.BleedingSite)
	}
	if in.Vomiting && in.VomitingCount != nil {
		if *in.VomitingCount < 0 {
			return Symptoms{}, validationError("vomiting count cannot be negative, got %d", *in.VomitingCount)
		}
		out.VomitingCount = cloneInt(in.VomitingCount)
	}
	return out, nil
}

func parseTimeOfDay(raw TimeOfDay) (TimeOfDay, error) {
	clean := TimeOfDay(strings.ToLower(strings.TrimSpace(string(raw))))
	switch clean {
	case "", TimeMorning, TimeAfternoon, TimeEvening, TimeNight:
		return clean, nil
	default:
		return "", validationError("unknown time of day %q", raw)
	}
}

func parseFoodIntake(raw FoodIntake) (FoodIntake, error) {
	clean := FoodIntake(strings.ToLower(strings.TrimSpace(string(raw))))
	switch clean {
	case "":
		return FoodNormal, nil
	case FoodNormal, FoodReduced, FoodPoor, FoodNil:
		return clean, nil
	default:
		return "", validationError("unknown food intake %q", raw)
	}
}

func parseUrineOutput(raw UrineOutput) (UrineOutput, error) {
	clean := UrineOutput(strings.ToLower(strings.TrimSpace(string(raw))))
	switch clean {
	case "":
		return UrineNormal, nil
	case UrineNormal, UrineReduced, UrineDark, UrineBloody:
		return clean, nil
	default:
		return "", validationError("unknown urine output %q", raw)
	}
}

const maxDeviceIDLen = 64

func parseDeviceID(raw string) (string, error) {
	clean := strings.TrimSpace(raw)
	if len(clean) > maxDeviceIDLen {
		return "", validationError("device id must be at most %d characters", maxDeviceIDLen)
	}
	for _, r := range clean {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_', r == '.', r == ':':
		default:
			return "", validationError("device id %q contains invalid character %q", clean, r)
		}
	}
	return clean, nil
}

// ParseWaterSource validates the exposure-history water source. Empty means unknown.
func ParseWaterSource(raw WaterSource) (WaterSource, error) {
	clean := WaterSource(strings.ToLower(strings.TrimSpace(string(raw))))
	switch clean {
	case "", WaterFiltered, WaterTap, WaterWell, WaterOutside:
		return clean, nil
	default:
		return "", validationError("unknown water source %q", raw)
	}
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
