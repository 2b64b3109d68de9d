package model

// Catalog entities referenced by showings.  The booking engine only
// reads these; create/update/delete belongs to the catalog service.

// Movie is the subset of movie data the engine needs for snapshots.
type Movie struct {
	ID     uint64 // movies.id
	Title  string // movies.title
	Rating string // movies.rating
}

// Theatre is the venue a screen belongs to.
type Theatre struct {
	ID   uint64 // theatres.id
	Name string // theatres.name
	City string // theatres.city
}

// Screen is an auditorium inside a theatre.  Capacity bounds
// general-admission sales for showings scheduled on it.
type Screen struct {
	ID        uint64 // screens.id
	TheatreID uint64 // screens.theatre_id
	Name      string // screens.name
	Capacity  uint32 // screens.capacity
}
