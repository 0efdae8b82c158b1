package model

import "time"

// Showing is one scheduled screening of a film in a hall.
type Showing struct {
	ID        uint64    `json:"id"`
	FilmTitle string    `json:"film_title"`
	HallName  string    `json:"hall_name"`
	StartsAt  time.Time `json:"starts_at"`
	CreatedAt time.Time `json:"-"`
}

// Started reports whether the showing has begun at now.
func (s Showing) Started(now time.Time) bool {
	return !s.StartsAt.After(now)
}
