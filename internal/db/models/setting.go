package models

// Setting represents a wiki-scoped configuration setting stored in the
// database. The preference resolver reads these before falling back to the
// file-scoped configuration.
type Setting struct {
	ID    uint64 `gorm:"primaryKey"`
	Wiki  string `gorm:"size:100;not null;uniqueIndex:idx_settings_wiki_name,priority:1"`
	Name  string `gorm:"size:255;not null;uniqueIndex:idx_settings_wiki_name,priority:2"`
	Value string `gorm:"type:text"`
}
