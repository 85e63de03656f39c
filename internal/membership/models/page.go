package models

const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

// Page selects a zero-based window of a newest-first listing.
type Page struct {
	Number int
	Size   int
}

// Normalize applies defaults and caps the size.
func (p Page) Normalize() Page {
	if p.Number < 0 {
		p.Number = 0
	}
	if p.Size <= 0 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	return p
}

func (p Page) Offset() int {
	return p.Number * p.Size
}

// ApplicantPage is one page of a listing plus the unpaged total.
type ApplicantPage struct {
	Items []*Applicant `json:"items"`
	Page  int          `json:"page"`
	Size  int          `json:"size"`
	Total int          `json:"total"`
}
