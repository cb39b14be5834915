package models

// Sticker represents an overlay image users can place on a photo
type Sticker struct {
	ID       int64  `json:"id" db:"id"`
	Name     string `json:"name" db:"name"`
	FilePath string `json:"file_path" db:"file_path"`
}

// Avatar represents a selectable profile picture
type Avatar struct {
	ID       int64  `json:"id" db:"id"`
	Name     string `json:"name" db:"name"`
	FilePath string `json:"file_path" db:"file_path"`
}
