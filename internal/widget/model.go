package widget

import (
	"strconv"
	"strings"
	"time"
)

// Type tags the widget variant. Only text exists today.
type Type string

const (
	TypeText Type = "text"
)

// MaxTextLength is the inclusive upper bound on Widget.Text, in characters.
const MaxTextLength = 1000

var knownTypes = map[Type]struct{}{
	TypeText: {},
}

// ParseType accepts a type tag in any case ("TEXT", "text").
func ParseType(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := knownTypes[t]; !ok {
		return "", &ValidationError{Field: "type", Msg: "unrecognized widget type " + strconv.Quote(s)}
	}
	return t, nil
}

func (t Type) Valid() bool {
	_, ok := knownTypes[t]
	return ok
}

// Widget is the only persisted entity. ID is assigned on create and never reused.
type Widget struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)"`
	Type      Type      `gorm:"type:varchar(16);not null"`
	Text      string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"index;not null"`
}
