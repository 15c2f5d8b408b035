package cli

import (
	"errors"
	"fmt"

	"github.com/i5heu/ouroboros-objects/pkg/object"
)

var ErrSectionNotFound = errors.New("cli: section not found")

// Document is the helper set of DocumentType objects.
type Document struct {
	w *object.Wrapper
}

func init() {
	object.RegisterSpecialization(DocumentType, func(w *object.Wrapper) any { return Document{w: w} })
}

func (d Document) Wrapper() *object.Wrapper { return d.w }

// AddSection creates a document with the given title and body and links it
// as the last section.
func (d Document) AddSection(title, body string) (Document, error) {
	if title == "" {
		return Document{}, errors.New("cli: section needs a title")
	}
	repo := d.w.Repository()
	if repo == nil {
		return Document{}, object.ErrNoRepository
	}
	s, err := newDocument(repo, title, body)
	if err != nil {
		return Document{}, err
	}
	sections, err := d.w.CompositeList("sections")
	if err != nil {
		return Document{}, err
	}
	if _, err := sections.AddLink(s); err != nil {
		return Document{}, err
	}
	return Document{w: s}, nil
}

// FindSection returns the first direct section titled title.
func (d Document) FindSection(title string) (Document, error) {
	sections, err := d.w.CompositeList("sections")
	if err != nil {
		return Document{}, err
	}
	n, err := sections.Len()
	if err != nil {
		return Document{}, err
	}
	for i := 0; i < n; i++ {
		s, err := sections.Get(i)
		if err != nil {
			return Document{}, err
		}
		got, err := s.Get("title")
		if err != nil {
			return Document{}, err
		}
		if got == title {
			return Document{w: s}, nil
		}
	}
	return Document{}, fmt.Errorf("%w: %q", ErrSectionNotFound, title)
}

func (d Document) AddTags(tags ...string) error {
	list, err := d.w.ScalarList("tags")
	if err != nil {
		return err
	}
	values := make([]any, len(tags))
	for i, t := range tags {
		values[i] = t
	}
	return list.Extend(values...)
}

// SetAuthor links person as the author. person must be a PersonType object.
func (d Document) SetAuthor(person *object.Wrapper) error {
	if person.ObjectType() != PersonType {
		return fmt.Errorf("cli: author must be %s, got %s: %w", PersonType, person.ObjectType(), object.ErrTypeMismatch)
	}
	return d.w.Set("author", person)
}

func (d Document) Retitle(title string) error {
	return d.w.Set("title", title)
}
