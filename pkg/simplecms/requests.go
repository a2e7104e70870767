package simplecms

// Request/Response DTOs for service operations

// SettingsPatch overlays model settings. Nil members keep the current value.
type SettingsPatch struct {
	Singleton  *bool   `json:"singleton,omitempty"`
	Drafts     *bool   `json:"drafts,omitempty"`
	Versioning *bool   `json:"versioning,omitempty"`
	Timestamps *bool   `json:"timestamps,omitempty"`
	SlugField  *string `json:"slugField,omitempty"`
}

// Apply returns s with the patch applied.
func (p *SettingsPatch) Apply(s ModelSettings) ModelSettings {
	if p == nil {
		return s
	}
	if p.Singleton != nil {
		s.Singleton = *p.Singleton
	}
	if p.Drafts != nil {
		s.Drafts = *p.Drafts
	}
	if p.Versioning != nil {
		s.Versioning = *p.Versioning
	}
	if p.Timestamps != nil {
		s.Timestamps = *p.Timestamps
	}
	if p.SlugField != nil {
		s.SlugField = *p.SlugField
	}
	return s
}

// CreateModelRequest contains parameters for creating a content model.
// DisplayName defaults to Name.
type CreateModelRequest struct {
	Name        string         `json:"name"`
	DisplayName string         `json:"displayName,omitempty"`
	Description string         `json:"description,omitempty"`
	Fields      []ContentField `json:"fields"`
	Settings    *SettingsPatch `json:"settings,omitempty"`
}

// UpdateModelRequest is a partial update. A nil Fields keeps the stored list.
type UpdateModelRequest struct {
	Name        *string        `json:"name,omitempty"`
	DisplayName *string        `json:"displayName,omitempty"`
	Description *string        `json:"description,omitempty"`
	Fields      []ContentField `json:"fields,omitempty"`
	Settings    *SettingsPatch `json:"settings,omitempty"`
}

// CreateItemRequest contains parameters for creating a content item.
// AuthorID comes from the authenticated caller, never from the payload.
type CreateItemRequest struct {
	Status   ItemStatus     `json:"status,omitempty"`
	Data     map[string]any `json:"data"`
	AuthorID string         `json:"-"`
}

// UpdateItemRequest is a partial update. A nil Data keeps the stored data.
type UpdateItemRequest struct {
	Status *ItemStatus    `json:"status,omitempty"`
	Data   map[string]any `json:"data,omitempty"`
}

// ListItemsRequest carries raw listing filters; they are validated by the service.
type ListItemsRequest struct {
	Status    string
	Search    string
	SortBy    string
	SortOrder string
	Limit     int
	Offset    int
}

// ItemList is one page of items plus the total number of matches.
type ItemList struct {
	Items  []*ContentItem `json:"items"`
	Total  int            `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}
