package models

// CategoryNode is one flattened node of a marketplace category tree.
// ParentID 0 marks a root. A node whose declared parent is missing from
// the flattened set is also treated as a root.
type CategoryNode struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	ParentID int    `json:"parentId"`
	Leaf     bool   `json:"leaf"`
}

// CategoryTreeNode is a CategoryNode with resolved children, produced by
// CategoryService.BuildTree for tree-shaped API responses.
type CategoryTreeNode struct {
	CategoryNode
	Children []*CategoryTreeNode `json:"children"`
}

// CategorySnapshot is the persisted form of a flattened category list.
// It is written to disk as-is and held in memory behind an atomic pointer,
// replaced wholesale on refresh so readers never observe a partial write.
type CategorySnapshot struct {
	Flat      []CategoryNode `json:"flat"`
	FetchedAt int64          `json:"fetchedAt"` // epoch millis
	Source    string         `json:"source"`
}
