package simplecms

import (
	"time"

	"github.com/google/uuid"
)

// FieldType identifies one entry of the field type registry.
type FieldType string

const (
	FieldTypeText        FieldType = "text"
	FieldTypeRichText    FieldType = "richtext"
	FieldTypeNumber      FieldType = "number"
	FieldTypeBoolean     FieldType = "boolean"
	FieldTypeDate        FieldType = "date"
	FieldTypeDateTime    FieldType = "datetime"
	FieldTypeEmail       FieldType = "email"
	FieldTypeURL         FieldType = "url"
	FieldTypeSlug        FieldType = "slug"
	FieldTypeJSON        FieldType = "json"
	FieldTypeReference   FieldType = "reference"
	FieldTypeMedia       FieldType = "media"
	FieldTypeSelect      FieldType = "select"
	FieldTypeMultiSelect FieldType = "multiselect"
	FieldTypeArray       FieldType = "array"
)

// ReferenceType tells whether a reference field points at one or many items.
type ReferenceType string

const (
	ReferenceOne  ReferenceType = "one"
	ReferenceMany ReferenceType = "many"
)

// ItemStatus represents the lifecycle state of a content item
type ItemStatus string

const (
	ItemStatusDraft     ItemStatus = "draft"
	ItemStatusPublished ItemStatus = "published"
	ItemStatusArchived  ItemStatus = "archived"
)

// FieldValidation holds the optional constraints of a field.
// Min and Max bound the textual length of the value.
type FieldValidation struct {
	Required bool     `json:"required,omitempty"`
	Min      *int     `json:"min,omitempty"`
	Max      *int     `json:"max,omitempty"`
	Pattern  string   `json:"pattern,omitempty"`
	Unique   bool     `json:"unique,omitempty"`
	Enum     []string `json:"enum,omitempty"`
}

// FieldOption is one choice of a select or multiselect field.
type FieldOption struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// ContentField is one typed attribute of a content model.
type ContentField struct {
	Name             string           `json:"name"`
	Type             FieldType        `json:"type"`
	Label            string           `json:"label,omitempty"`
	Description      string           `json:"description,omitempty"`
	Validation       *FieldValidation `json:"validation,omitempty"`
	DefaultValue     any              `json:"defaultValue,omitempty"`
	ReferenceTo      string           `json:"referenceTo,omitempty"`
	ReferenceType    ReferenceType    `json:"referenceType,omitempty"`
	Options          []FieldOption    `json:"options,omitempty"`
	ArrayOf          FieldType        `json:"arrayOf,omitempty"`
	ArrayReferenceTo string           `json:"arrayReferenceTo,omitempty"`
}

// Required reports whether the field must be present in every payload.
func (f ContentField) Required() bool {
	return f.Validation != nil && f.Validation.Required
}

// ModelSettings are the per-model switches.
type ModelSettings struct {
	Singleton  bool   `json:"singleton"`
	Drafts     bool   `json:"drafts"`
	Versioning bool   `json:"versioning"`
	Timestamps bool   `json:"timestamps"`
	SlugField  string `json:"slugField,omitempty"`
}

// DefaultModelSettings returns the settings a model gets when none are given.
func DefaultModelSettings() ModelSettings {
	return ModelSettings{
		Singleton:  false,
		Drafts:     true,
		Versioning: false,
		Timestamps: true,
	}
}

// ContentModel is a runtime-defined schema for content items.
type ContentModel struct {
	ID          uuid.UUID      `json:"id"`
	Name        string         `json:"name"`
	Slug        string         `json:"slug"`
	DisplayName string         `json:"displayName"`
	Description string         `json:"description,omitempty"`
	Fields      []ContentField `json:"fields"`
	Settings    ModelSettings  `json:"settings"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// Field looks up a field by name.
func (m *ContentModel) Field(name string) (ContentField, bool) {
	for _, f := range m.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return ContentField{}, false
}

// Clone returns a deep copy of the model.
func (m *ContentModel) Clone() *ContentModel {
	if m == nil {
		return nil
	}
	c := *m
	c.Fields = CloneFields(m.Fields)
	return &c
}

// ContentItem is one data record conforming to a content model.
type ContentItem struct {
	ID          uuid.UUID      `json:"id"`
	ModelID     uuid.UUID      `json:"modelId"`
	ModelSlug   string         `json:"modelSlug"`
	Slug        string         `json:"slug,omitempty"`
	Status      ItemStatus     `json:"status"`
	PublishedAt *time.Time     `json:"publishedAt,omitempty"`
	Data        map[string]any `json:"data"`
	AuthorID    string         `json:"authorId"`
	Version     int            `json:"version"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// Clone returns a deep copy of the item, data included.
func (i *ContentItem) Clone() *ContentItem {
	if i == nil {
		return nil
	}
	c := *i
	if i.PublishedAt != nil {
		t := *i.PublishedAt
		c.PublishedAt = &t
	}
	c.Data = CloneData(i.Data)
	return &c
}

// SortField names a column items can be ordered by.
type SortField string

const (
	SortByCreatedAt   SortField = "created_at"
	SortByUpdatedAt   SortField = "updated_at"
	SortByPublishedAt SortField = "published_at"
	SortBySlug        SortField = "slug"
	SortByStatus      SortField = "status"
	SortByVersion     SortField = "version"
)

// SortOrder is the direction of an item listing.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// ItemQuery is the normalized filter handed to Repository.ListItems.
// A zero Status matches every status; Limit <= 0 means no limit.
type ItemQuery struct {
	Status    ItemStatus
	Search    string
	SortBy    SortField
	SortOrder SortOrder
	Limit     int
	Offset    int
}

// ItemPage is one window of a listing plus the size of the whole result set.
type ItemPage struct {
	Items []*ContentItem
	Total int
}

// ItemUpdate describes one atomic item update. Nil members are left as stored.
// PublishedAt is only written when the stored value is still unset; the
// repository always increments the version by one.
type ItemUpdate struct {
	Status      *ItemStatus
	Data        map[string]any
	PublishedAt *time.Time
	UpdatedAt   time.Time
}
