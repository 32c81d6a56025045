package terminology

// SeedRepository provides the seed-mapping rows. The table is loaded once and
// cached for the process lifetime.
type SeedRepository interface {
	All() []SeedMapping
}
