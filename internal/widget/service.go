package widget

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Service struct {
	DB *gorm.DB
}

type CreateInput struct {
	Type *Type // defaults to TypeText
}

// UpdateInput is a partial merge: nil fields are left untouched.
type UpdateInput struct {
	Type *Type
	Text *string
}

// List returns every widget in creation order. It never returns a partial set.
func (s *Service) List(ctx context.Context) ([]Widget, error) {
	var rows []Widget
	if err := s.DB.WithContext(ctx).Order("created_at asc, id asc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list widgets: %w", err)
	}
	return rows, nil
}

func (s *Service) Get(ctx context.Context, id string) (Widget, error) {
	if err := validateID(id); err != nil {
		return Widget{}, err
	}
	var w Widget
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&w).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Widget{}, ErrNotFound
		}
		return Widget{}, fmt.Errorf("get widget %s: %w", id, err)
	}
	return w, nil
}

// Create inserts a widget with empty text.
func (s *Service) Create(ctx context.Context, in CreateInput) (Widget, error) {
	typ := TypeText
	if in.Type != nil {
		if !in.Type.Valid() {
			return Widget{}, &ValidationError{Field: "type", Msg: fmt.Sprintf("unrecognized widget type %q", *in.Type)}
		}
		typ = *in.Type
	}

	now := storedNow()
	w := Widget{
		ID:        uuid.NewString(),
		Type:      typ,
		Text:      "",
		CreatedAt: now,
		UpdatedAt: now,
	}
	var out Widget
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&w).Error; err != nil {
			return err
		}
		// return what a later Get will see
		return tx.Where("id = ?", w.ID).First(&out).Error
	})
	if err != nil {
		return Widget{}, fmt.Errorf("create widget: %w", err)
	}
	return out, nil
}

// storedNow is the current time at the precision postgres keeps (microseconds).
func storedNow() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// Update applies the non-nil fields of in and refreshes UpdatedAt.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (Widget, error) {
	if err := validateID(id); err != nil {
		return Widget{}, err
	}

	set := map[string]any{}
	if in.Type != nil {
		if !in.Type.Valid() {
			return Widget{}, &ValidationError{Field: "type", Msg: fmt.Sprintf("unrecognized widget type %q", *in.Type)}
		}
		set["type"] = string(*in.Type)
	}
	if in.Text != nil {
		if err := ValidateText(*in.Text); err != nil {
			return Widget{}, err
		}
		set["text"] = *in.Text
	}
	set["updated_at"] = storedNow()

	var out Widget
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Widget{}).Where("id = ?", id).Updates(set)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Where("id = ?", id).First(&out).Error
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, gorm.ErrRecordNotFound) {
			return Widget{}, ErrNotFound
		}
		return Widget{}, fmt.Errorf("update widget %s: %w", id, err)
	}
	return out, nil
}

// Delete removes the record outright; there is no soft delete.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := validateID(id); err != nil {
		return err
	}
	res := s.DB.WithContext(ctx).Where("id = ?", id).Delete(&Widget{})
	if res.Error != nil {
		return fmt.Errorf("delete widget %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Service) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.DB.WithContext(ctx).Model(&Widget{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count widgets: %w", err)
	}
	return n, nil
}

// ValidateText requires valid UTF-8 and enforces the MaxTextLength bound, counted in runes.
func ValidateText(text string) error {
	if !utf8.ValidString(text) {
		return &ValidationError{Field: "text", Msg: "text is not valid UTF-8"}
	}
	if n := utf8.RuneCountInString(text); n > MaxTextLength {
		return &ValidationError{Field: "text", Msg: fmt.Sprintf("length %d exceeds %d characters", n, MaxTextLength)}
	}
	return nil
}

func validateID(id string) error {
	if id == "" {
		return &ValidationError{Field: "id", Msg: "widget id is required"}
	}
	if _, err := uuid.Parse(id); err != nil {
		return &ValidationError{Field: "id", Msg: "malformed widget id"}
	}
	return nil
}
