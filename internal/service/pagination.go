package service

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// normalizePage clamps pagination inputs. Negative skips become 0,
// a missing limit defaults to 20 and anything above 100 is capped.
func normalizePage(skip, limit int) (int, int) {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return skip, limit
}
