package models

// AttributeValue is one allowed value of a category attribute.
type AttributeValue struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// AttributeDefinition describes one attribute a marketplace requires or
// accepts for products submitted under a given leaf category.
type AttributeDefinition struct {
	ID                 int              `json:"id"`
	Name               string           `json:"name"`
	Required           bool             `json:"required"`
	AllowCustomValue   bool             `json:"allowCustomValue"`
	IsVariantAttribute bool             `json:"isVariantAttribute"`
	Values             []AttributeValue `json:"values"`
}
