package domain

// Author is a person credited with one or more books.
// Names are unique: the store keeps at most one Author per normalized name.
type Author struct {
	Document `bson:",inline"`
	Name     string `json:"name" bson:"name"`
	Born     *int   `json:"born,omitempty" bson:"born,omitempty"`
}

// SetBorn records the author's birth year.
func (a *Author) SetBorn(year int) {
	a.Born = &year
	a.Touch()
}
