package devserver

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/me/libra/pkg/model"
)

// Seed is the initial catalog and accounts of a Library.
type Seed struct {
	Books []SeedBook `yaml:"books"`
	Users []SeedUser `yaml:"users"`
}

// SeedBook is a catalog entry.
type SeedBook struct {
	Title           string   `yaml:"title"`
	ISBN            string   `yaml:"isbn"`
	Authors         []string `yaml:"authors"`
	Genres          []string `yaml:"genres"`
	Summary         string   `yaml:"summary"`
	PublicationYear int      `yaml:"publication_year"`
	Quantity        int      `yaml:"quantity"`
}

// SeedUser is a pre-registered member.
type SeedUser struct {
	Username string `yaml:"username"`
	Email    string `yaml:"email"`
	FullName string `yaml:"full_name"`
	Password string `yaml:"password"`
}

func (b SeedBook) toModel(id int64) model.Book {
	book := model.Book{
		ID:              id,
		ISBN:            b.ISBN,
		Title:           b.Title,
		Summary:         b.Summary,
		PublicationYear: b.PublicationYear,
		Quantity:        b.Quantity,
	}
	for i, a := range b.Authors {
		book.Authors = append(book.Authors, model.Author{ID: int64(i + 1), Name: a})
	}
	for i, g := range b.Genres {
		book.Genres = append(book.Genres, model.Genre{ID: int64(i + 1), Name: g})
	}
	return book
}

// LoadSeed reads a YAML seed file.
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed: %w", err)
	}
	var s Seed
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse seed %s: %w", path, err)
	}
	for i, b := range s.Books {
		if b.Title == "" {
			return nil, fmt.Errorf("seed book %d: title is required", i+1)
		}
		if b.Quantity < 0 {
			return nil, fmt.Errorf("seed book %q: negative quantity", b.Title)
		}
	}
	return &s, nil
}

// DefaultSeed returns a small built-in catalog with one demo member.
func DefaultSeed() *Seed {
	return &Seed{
		Books: []SeedBook{
			{Title: "The Go Programming Language", ISBN: "9780134190440", Authors: []string{"Alan Donovan", "Brian Kernighan"}, Genres: []string{"Programming"}, PublicationYear: 2015, Quantity: 3},
			{Title: "Noli Me Tangere", ISBN: "9780143039693", Authors: []string{"José Rizal"}, Genres: []string{"Fiction", "Classics"}, PublicationYear: 1887, Quantity: 2},
			{Title: "Dune", ISBN: "9780441172719", Authors: []string{"Frank Herbert"}, Genres: []string{"Science Fiction"}, PublicationYear: 1965, Quantity: 1},
			{Title: "A Brief History of Time", ISBN: "9780553380163", Authors: []string{"Stephen Hawking"}, Genres: []string{"Science"}, PublicationYear: 1988, Quantity: 0},
		},
		Users: []SeedUser{
			{Username: "demo", Email: "demo@example.org", FullName: "Demo Member", Password: "demo"},
		},
	}
}
