package types

// Filter carries list query parameters:
// ?filter[branch_id]=1,2&sort[created_at]=desc&limit=50&page=2
type Filter struct {
	Sort           map[string]string      `json:"sort,omitempty"`
	Filter         map[string]interface{} `json:"filter,omitempty"`
	Limit          int                    `json:"limit"`
	Offset         int                    `json:"offset"`
	Page           int                    `json:"page"`
	WithPagination bool                   `json:"with_pagination"`
}
