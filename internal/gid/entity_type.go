package gid

// EntityType represents the type of entity a GID refers to
type EntityType string

const (
	EntityPost     EntityType = "Post"
	EntityCategory EntityType = "Category"
	EntityTag      EntityType = "Tag"
	EntityFile     EntityType = "File"
)

// ValidEntityTypes maps valid entity types for validation
var ValidEntityTypes = map[EntityType]bool{
	EntityPost:     true,
	EntityCategory: true,
	EntityTag:      true,
	EntityFile:     true,
}

// IsValid checks if the entity type is valid
func (e EntityType) IsValid() bool {
	return ValidEntityTypes[e]
}
