package models

// Categories lists the case categories in display order
var Categories = []string{"white-collar", "violent", "drug", "property", "cybercrime"}

// CategoryKeywords maps each category to the words that place a case in it
var CategoryKeywords = map[string][]string{
	"white-collar": {"embezzlement", "fraud", "thompson"},
	"violent":      {"assault", "domestic", "violence", "rivera"},
	"drug":         {"drug", "possession", "harris"},
	"property":     {"burglary", "theft", "lopez"},
	"cybercrime":   {"hacking", "identity", "cyber", "chen"},
}

var categoryNames = map[string]string{
	"white-collar": "White Collar Crime",
	"violent":      "Violent Crime",
	"drug":         "Drug Crime",
	"property":     "Property Crime",
	"cybercrime":   "Cybercrime",
}

// CategoryDisplayName returns the human label for a category, or the
// category itself when unknown
func CategoryDisplayName(category string) string {
	if name, ok := categoryNames[category]; ok {
		return name
	}
	return category
}

// ValidCategory reports whether category is known
func ValidCategory(category string) bool {
	_, ok := CategoryKeywords[category]
	return ok
}
