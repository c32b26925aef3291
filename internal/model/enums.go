package model

// Track types
type TrackType string

const (
	TrackTypeSong         TrackType = "SONG"
	TrackTypeInstrumental TrackType = "INSTRUMENTAL"
	TrackTypeJingle       TrackType = "JINGLE"
)

var ValidTrackTypes = []TrackType{
	TrackTypeSong, TrackTypeInstrumental, TrackTypeJingle,
}

// Vocals modes
type Vocals string

const (
	VocalsNone   Vocals = "NONE"
	VocalsMale   Vocals = "MALE"
	VocalsFemale Vocals = "FEMALE"
	VocalsDuet   Vocals = "DUET"
)

var ValidVocals = []Vocals{
	VocalsNone, VocalsMale, VocalsFemale, VocalsDuet,
}

// Track status, visible to users. Always derived from the latest job state.
type TrackStatus string

const (
	TrackStatusQueued    TrackStatus = "queued"
	TrackStatusRendering TrackStatus = "rendering"
	TrackStatusReady     TrackStatus = "ready"
	TrackStatusError     TrackStatus = "error"
)

// Job state
type JobState string

const (
	JobStateQueued  JobState = "queued"
	JobStateRunning JobState = "running"
	JobStateDone    JobState = "done"
	JobStateFailed  JobState = "failed"
)

// StatusForJobState maps a job state to the track status it implies.
func StatusForJobState(state JobState) TrackStatus {
	switch state {
	case JobStateQueued:
		return TrackStatusQueued
	case JobStateRunning:
		return TrackStatusRendering
	case JobStateDone:
		return TrackStatusReady
	default:
		return TrackStatusError
	}
}

// Fidelity of a generation request
type Fidelity string

const (
	FidelityPreview Fidelity = "preview"
	FidelityFull    Fidelity = "full"
)

// Language codes accepted in briefs
type Language string

const (
	LanguageEN Language = "en"
	LanguageES Language = "es"
	LanguageFR Language = "fr"
	LanguageDE Language = "de"
	LanguageIT Language = "it"
	LanguagePT Language = "pt"
	LanguageJA Language = "ja"
	LanguageKO Language = "ko"
	LanguageZH Language = "zh"
)
