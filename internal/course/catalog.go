package course

import "fmt"

// Offer is a fixed catalog entry.
type Offer struct {
	ID    string
	Label string
	// Price is in whole rupees.
	Price int
}

// SkipFee is the extra payment that replaces the sharing requirement.
const SkipFee = 50

// RequiredScreenshots is how many sharing screenshots unlock the consent step.
const RequiredScreenshots = 3

// Catalog lists the offers in menu order.
type Catalog []Offer

// DefaultCatalog returns the three single courses and the bundle.
func DefaultCatalog() Catalog {
	return Catalog{
		{ID: "react", Label: "Namaste React", Price: 29},
		{ID: "frontend_sd", Label: "Namaste Frontend System Design", Price: 29},
		{ID: "nodejs", Label: "Namaste Node.js", Price: 29},
		{ID: "bundle", Label: "All three bundle", Price: 69},
	}
}

// Lookup finds an offer by id.
func (c Catalog) Lookup(id string) (Offer, bool) {
	for _, o := range c {
		if o.ID == id {
			return o, true
		}
	}
	return Offer{}, false
}

// Rupees formats an amount for display.
func Rupees(amount int) string {
	return fmt.Sprintf("₹%d", amount)
}
