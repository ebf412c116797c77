package tracking

import (
	"time"

	"github.com/yanqian/fevertrack/internal/domain/episode"
)

// MaxPlateletCount bounds platelet counts, expressed in thousands per microlitre.
const MaxPlateletCount = 2000.0

// Config holds runtime knobs for the tracking service.
// DefaultPlateletCount is sent to the predictor when a reading carries none,
// in thousands per microlitre.
type Config struct {
	StatusTTL            time.Duration
	RecentAlertLimit     int
	DefaultPlateletCount float64
}

// StartRequest opens a new episode. PatientID is only read for clinician sessions;
// patients always start episodes for themselves.
type StartRequest struct {
	PatientID       string                  `json:"patientId"`
	MedicalHistory  episode.MedicalHistory  `json:"medicalHistory"`
	ExposureHistory episode.ExposureHistory `json:"exposureHistory"`
}

// LogRequest records one reading. A caller that already holds a prediction passes it
// in Prediction; otherwise Predict asks the service to consult the predictor first.
// PlateletCount is the latest lab value in thousands per microlitre (150 means 150,000/µL).
type LogRequest struct {
	episode.Reading
	Prediction    *episode.RawPrediction `json:"prediction,omitempty"`
	Predict       bool                   `json:"predict"`
	PlateletCount *float64               `json:"plateletCount,omitempty"`
}

// LogResponse is returned after a reading was committed.
type LogResponse struct {
	Snapshot       episode.Snapshot    `json:"snapshot"`
	Status         episode.Status      `json:"status"`
	Prediction     *episode.Prediction `json:"prediction,omitempty"`
	AlertID        string              `json:"alertId,omitempty"`
	AlertPublished bool                `json:"alertPublished"`
}

// EpisodeView is the API representation of an episode without its log.
type EpisodeView struct {
	ID              string                  `json:"id"`
	PatientID       string                  `json:"patientId"`
	Status          episode.State           `json:"status"`
	StartedAt       time.Time               `json:"startedAt"`
	ResolvedAt      *time.Time              `json:"resolvedAt,omitempty"`
	CurrentDay      int                     `json:"currentDay"`
	ReadingCount    int                     `json:"readingCount"`
	MedicalHistory  episode.MedicalHistory  `json:"medicalHistory"`
	ExposureHistory episode.ExposureHistory `json:"exposureHistory"`
	ArchiveKey      string                  `json:"archiveKey,omitempty"`
}

// TrendResponse carries the per-day trend of an episode.
type TrendResponse struct {
	EpisodeID string               `json:"episodeId"`
	Points    []episode.TrendPoint `json:"points"`
}

// DayDetailResponse carries every reading of a single day.
type DayDetailResponse struct {
	EpisodeID string             `json:"episodeId"`
	Day       int                `json:"day"`
	Readings  []episode.Snapshot `json:"readings"`
}

// Alert is an alert event as kept in the clinician inbox.
type Alert struct {
	episode.AlertEvent
	IsRead bool `json:"isRead"`
}

// PredictionInput is what the external classifier needs for one reading.
type PredictionInput struct {
	PatientID        string
	EpisodeID        string
	TemperatureF     float64
	FeverDays        int
	Headache         bool
	BodyPain         bool
	EyePain          bool
	NauseaVomiting   bool
	AbdominalPain    bool
	Rash             bool
	Bleeding         bool
	PlateletCount    float64
	MosquitoExposure bool
	Travel           bool
}
