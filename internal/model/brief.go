package model

// Section is one named segment of a track's structure.
type Section struct {
	Name string `json:"name" validate:"required"`
	Bars int    `json:"bars,omitempty" validate:"omitempty,min=1,max=64"`
}

// Brief is the user's description of the desired track. It is denormalized
// onto the track at creation time and never mutated afterwards.
type Brief struct {
	Title       string    `json:"title,omitempty" validate:"omitempty,max=120"`
	Genre       string    `json:"genre" validate:"required,max=60"`
	Mood        string    `json:"mood,omitempty" validate:"omitempty,max=60"`
	Tempo       int       `json:"tempo,omitempty" validate:"omitempty,min=40,max=220"`
	DurationSec int       `json:"durationSec" validate:"required,min=5,max=600"`
	Vocals      Vocals    `json:"vocals" validate:"required,oneof=NONE MALE FEMALE DUET"`
	Language    Language  `json:"language,omitempty" validate:"omitempty,oneof=en es fr de it pt ja ko zh"`
	Lyrics      string    `json:"lyrics,omitempty" validate:"omitempty,max=2000"`
	Structure   []Section `json:"structure,omitempty" validate:"omitempty,dive"`
}
