package extract

import "strings"

// Subcategory is a named keyword list.
type Subcategory struct {
	Name     string
	Keywords []string
}

// CategoryGroup groups subcategories under a category name.
type CategoryGroup struct {
	Name          string
	Subcategories []Subcategory
}

// Keywords is an ordered categorisation table. Order matters: the first
// keyword found wins.
type Keywords []CategoryGroup

const (
	OtherCategory      = "Other"
	GeneralSubcategory = "General"
)

// Category matches title and description against kw with case-insensitive
// substring search. It returns ("", "") when there is no table or no title
// and ("Other", "General") when nothing matches.
func Category(title string, description []string, kw Keywords) (string, string) {
	if len(kw) == 0 || strings.TrimSpace(title) == "" {
		return "", ""
	}

	text := strings.ToLower(title)
	if len(description) > 0 {
		text += " " + strings.ToLower(strings.Join(description, " "))
	}

	for _, group := range kw {
		for _, sub := range group.Subcategories {
			for _, keyword := range sub.Keywords {
				if keyword != "" && strings.Contains(text, strings.ToLower(keyword)) {
					return group.Name, sub.Name
				}
			}
		}
	}
	return OtherCategory, GeneralSubcategory
}

// All returns every keyword in table order.
func (kw Keywords) All() []string {
	var all []string
	for _, group := range kw {
		for _, sub := range group.Subcategories {
			all = append(all, sub.Keywords...)
		}
	}
	return all
}
