package episode

import (
	"strings"
	"time"
)

// State is the lifecycle state of an episode.
type State string

const (
	StateActive   State = "active"
	StateResolved State = "resolved"
)

// TimeOfDay tags a reading within a day. The empty value marks an untagged reading.
type TimeOfDay string

const (
	TimeMorning   TimeOfDay = "morning"
	TimeAfternoon TimeOfDay = "afternoon"
	TimeEvening   TimeOfDay = "evening"
	TimeNight     TimeOfDay = "night"
)

// rank orders slots inside a day; untagged readings sort after night.
func (t TimeOfDay) rank() int {
	switch t {
	case TimeMorning:
		return 1
	case TimeAfternoon:
		return 2
	case TimeEvening:
		return 3
	case TimeNight:
		return 4
	default:
		return 5
	}
}

// FoodIntake is the patient's reported appetite.
type FoodIntake string

const (
	FoodNormal  FoodIntake = "normal"
	FoodReduced FoodIntake = "reduced"
	FoodPoor    FoodIntake = "poor"
	FoodNil     FoodIntake = "nil"
)

// UrineOutput is the patient's reported urine observation.
type UrineOutput string

const (
	UrineNormal  UrineOutput = "normal"
	UrineReduced UrineOutput = "reduced"
	UrineDark    UrineOutput = "dark"
	UrineBloody  UrineOutput = "bloody"
)

// WaterSource records where the patient's drinking water comes from.
type WaterSource string

const (
	WaterFiltered WaterSource = "filtered"
	WaterTap      WaterSource = "tap"
	WaterWell     WaterSource = "well"
	WaterOutside  WaterSource = "outside"
)

// SeverityBand is the fever classification of a single temperature.
type SeverityBand string

const (
	SeverityNormal   SeverityBand = "normal"
	SeverityMild     SeverityBand = "mild"
	SeverityModerate SeverityBand = "moderate"
	SeverityHigh     SeverityBand = "high"
)

// DangerSign names an emergency condition found in a snapshot.
type DangerSign string

const (
	SignBleeding            DangerSign = "BLEEDING"
	SignBreathlessness      DangerSign = "BREATHLESSNESS"
	SignConfusion           DangerSign = "CONFUSION"
	SignSevereAbdominalPain DangerSign = "SEVERE_ABDOMINAL_PAIN"
	SignBloodyUrine         DangerSign = "BLOODY_URINE"
)

// Disease is a label produced by the external classifier.
type Disease string

const (
	DiseaseDengue  Disease = "Dengue"
	DiseaseMalaria Disease = "Malaria"
	DiseaseTyphoid Disease = "Typhoid"
	DiseaseViral   Disease = "Viral"
	DiseaseOther   Disease = "Other"
)

// ParseDisease maps a classifier label onto a known disease. Unknown labels become Other.
func ParseDisease(label string) Disease {
	clean := strings.TrimSpace(label)
	for _, d := range []Disease{DiseaseDengue, DiseaseMalaria, DiseaseTyphoid, DiseaseViral} {
		if strings.EqualFold(clean, string(d)) {
			return d
		}
	}
	return DiseaseOther
}

// Symptoms is the per-reading checklist. Detail fields only carry meaning when
// their parent flag is set.
type Symptoms struct {
	Headache       bool   `json:"headache" yaml:"headache"`
	BodyPain       bool   `json:"bodyPain" yaml:"bodyPain"`
	Rash           bool   `json:"rash" yaml:"rash"`
	RashLocation   string `json:"rashLocation,omitempty" yaml:"rashLocation"`
	Bleeding       bool   `json:"bleeding" yaml:"bleeding"`
	BleedingSite   string `json:"bleedingSite,omitempty" yaml:"bleedingSite"`
	AbdominalPain  bool   `json:"abdominalPain" yaml:"abdominalPain"`
	Vomiting       bool   `json:"vomiting" yaml:"vomiting"`
	VomitingCount  *int   `json:"vomitingCount,omitempty" yaml:"vomitingCount"`
	Breathlessness bool   `json:"breathlessness" yaml:"breathlessness"`
	Confusion      bool   `json:"confusion" yaml:"confusion"`
	EyePain        bool   `json:"eyePain" yaml:"eyePain"`
	Nausea         bool   `json:"nausea" yaml:"nausea"`
}

// MedicalHistory is captured when an episode starts.
type MedicalHistory struct {
	PriorAntibiotics  bool   `json:"priorAntibiotics" yaml:"priorAntibiotics"`
	AntibioticName    string `json:"antibioticName,omitempty" yaml:"antibioticName"`
	HasDiabetes       bool   `json:"hasDiabetes" yaml:"hasDiabetes"`
	Immunocompromised bool   `json:"immunocompromised" yaml:"immunocompromised"`
	IsPregnant        bool   `json:"isPregnant" yaml:"isPregnant"`
}

// ExposureHistory is captured when an episode starts and feeds the predictor.
type ExposureHistory struct {
	RecentTravel     bool        `json:"recentTravel" yaml:"recentTravel"`
	TravelLocation   string      `json:"travelLocation,omitempty" yaml:"travelLocation"`
	MosquitoExposure bool        `json:"mosquitoExposure" yaml:"mosquitoExposure"`
	SickContacts     bool        `json:"sickContacts" yaml:"sickContacts"`
	WaterSource      WaterSource `json:"waterSource,omitempty" yaml:"waterSource"`
}

// Reading is the unvalidated input for one snapshot. DayOfIllness is optional:
// the daily-log flow supplies it, the quick-log flow does not.
// DeviceID names the paired thermometer a synced reading came from; manual
// entries leave it empty.
type Reading struct {
	DayOfIllness *int        `json:"dayOfIllness,omitempty" yaml:"dayOfIllness"`
	TimeOfDay    TimeOfDay   `json:"timeOfDay,omitempty" yaml:"timeOfDay"`
	TemperatureF *float64    `json:"temperatureF" yaml:"temperatureF"`
	PulseRate    *int        `json:"pulseRate,omitempty" yaml:"pulseRate"`
	Symptoms     Symptoms    `json:"symptoms" yaml:"symptoms"`
	FoodIntake   FoodIntake  `json:"foodIntake,omitempty" yaml:"foodIntake"`
	UrineOutput  UrineOutput `json:"urineOutput,omitempty" yaml:"urineOutput"`
	DeviceID     string      `json:"deviceId,omitempty" yaml:"deviceId"`
}

// TrendPoint summarises one illness day.
type TrendPoint struct {
	Day          int     `json:"day"`
	MeanTempF    float64 `json:"meanTemperatureF"`
	MinTempF     float64 `json:"minTemperatureF"`
	MaxTempF     float64 `json:"maxTemperatureF"`
	ReadingCount int     `json:"readingCount"`
}

// PhaseGuidance is disease and day specific clinical guidance.
type PhaseGuidance struct {
	Phase string   `json:"phase"`
	Notes []string `json:"notes"`
}

// Status is the composed result of evaluating one snapshot.
type Status struct {
	EpisodeID        string         `json:"episodeId"`
	SnapshotID       string         `json:"snapshotId"`
	SnapshotSeq      int            `json:"snapshotSeq"`
	CurrentDay       int            `json:"currentDay"`
	SeverityBand     SeverityBand   `json:"severityBand"`
	DangerSigns      []DangerSign   `json:"dangerSigns"`
	Disease          Disease        `json:"disease,omitempty"`
	PhaseGuidance    *PhaseGuidance `json:"phaseGuidance,omitempty"`
	AlertRecommended bool           `json:"alertRecommended"`
	EffectiveUrgency Urgency        `json:"effectiveUrgency,omitempty"`
	EvaluatedAt      time.Time      `json:"evaluatedAt"`
}
