package model

import "fmt"

// Category is a ticket class with its own capacity ceiling per session.
type Category string

const (
	CategoryAdult   Category = "ADULT"
	CategoryStudent Category = "STUDENT"
	CategoryChild   Category = "CHILD"
)

// Categories lists every category in a stable order.  Code that walks
// per-category counters iterates this slice so that reasons and rows
// always come out adult, student, child.
var Categories = []Category{CategoryAdult, CategoryStudent, CategoryChild}

// ParseCategory maps a stored or user supplied value to a Category.
func ParseCategory(s string) (Category, error) {
	switch Category(s) {
	case CategoryAdult, CategoryStudent, CategoryChild:
		return Category(s), nil
	}
	return "", fmt.Errorf("unknown ticket category %q", s)
}

// Counts holds one integer per category.  It is used for limits, sold
// counts, remaining capacity and requested quantities alike.
type Counts struct {
	Adult   int `json:"adult"`
	Student int `json:"student"`
	Child   int `json:"child"`
}

// Get returns the value for the given category.
func (c Counts) Get(cat Category) int {
	switch cat {
	case CategoryAdult:
		return c.Adult
	case CategoryStudent:
		return c.Student
	case CategoryChild:
		return c.Child
	}
	return 0
}

// Set stores v for the given category.
func (c *Counts) Set(cat Category, v int) {
	switch cat {
	case CategoryAdult:
		c.Adult = v
	case CategoryStudent:
		c.Student = v
	case CategoryChild:
		c.Child = v
	}
}

// Add returns the element-wise sum of c and o.
func (c Counts) Add(o Counts) Counts {
	return Counts{Adult: c.Adult + o.Adult, Student: c.Student + o.Student, Child: c.Child + o.Child}
}

// Sub returns the element-wise difference c - o.  Results are not clamped.
func (c Counts) Sub(o Counts) Counts {
	return Counts{Adult: c.Adult - o.Adult, Student: c.Student - o.Student, Child: c.Child - o.Child}
}

// Total returns the sum over all categories.
func (c Counts) Total() int { return c.Adult + c.Student + c.Child }

// IsZero reports whether every category is zero.
func (c Counts) IsZero() bool { return c.Adult == 0 && c.Student == 0 && c.Child == 0 }

// AnyNegative reports whether any category is below zero.
func (c Counts) AnyNegative() bool { return c.Adult < 0 || c.Student < 0 || c.Child < 0 }
