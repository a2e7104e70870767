// Package simplecms provides a dynamic content-modeling engine for a headless
// CMS.
//
// Operators define content models at runtime. A model is an ordered list of
// typed fields plus a handful of settings. Content items are then validated and
// coerced against the fields of their model before they are stored.
//
// The package exposes a single Service interface that is backed by a pluggable
// Repository. Repository implementations live under repo/ (memory, postgres,
// sqlite).
//
// Typical usage:
//
//	repo := memory.New()
//	svc, err := simplecms.New(simplecms.WithRepository(repo))
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	model, err := svc.CreateModel(ctx, simplecms.CreateModelRequest{
//		Name: "Blog Post",
//		Fields: []simplecms.ContentField{
//			{Name: "title", Type: simplecms.FieldTypeText, Validation: &simplecms.FieldValidation{Required: true}},
//			{Name: "body", Type: simplecms.FieldTypeRichText},
//		},
//		Settings: &simplecms.SettingsPatch{SlugField: simplecms.String("title")},
//	})
//
//	item, err := svc.CreateItem(ctx, model.Slug, simplecms.CreateItemRequest{
//		Data:     map[string]any{"title": "Hello, World!"},
//		AuthorID: "user-1",
//	})
//	// item.Slug == "hello-world"
package simplecms
