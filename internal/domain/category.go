package domain

// Category is owned by the taxonomy collaborator; only the fields the
// lifecycle needs are modelled here.
type Category struct {
	ID                  string
	Name                string
	Department          string
	ResolutionTimeHours int
}
