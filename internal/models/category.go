package models

// Category is a node in the user's category tree. Parents form a tree; the
// validator rejects cycles.
type Category struct {
	// ID is the unique identifier for the category (UUID format).
	ID string `json:"id"`

	// Name is the user-visible category name.
	Name string `json:"name"`

	// ParentID references the parent category, empty for roots.
	ParentID string `json:"parent_id,omitempty"`

	// BudgetID references the budget tracking this category, if any.
	BudgetID string `json:"budget_id,omitempty"`
}
