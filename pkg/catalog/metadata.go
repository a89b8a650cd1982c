package catalog

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"

	"library_catalog/pkg/models"
)

const maxSubjects = 5

var yearPattern = regexp.MustCompile(`\d{4}`)

// Metadata is what Open Library knows about one edition.
type Metadata struct {
	ISBN          string   `json:"isbn"`
	Title         string   `json:"title"`
	Authors       []string `json:"authors"`
	PublishYear   int      `json:"publishYear,omitempty"`
	PageCount     int      `json:"pageCount,omitempty"`
	Publisher     string   `json:"publisher,omitempty"`
	Description   string   `json:"description,omitempty"`
	Subjects      []string `json:"subjects,omitempty"`
	CoverURL      string   `json:"coverUrl"`
	SmallCoverURL string   `json:"smallCoverUrl"`
	LargeCoverURL string   `json:"largeCoverUrl"`
}

// Fill copies metadata into the empty fields of book and returns the changed
// columns. Fields the book already carries are left alone.
func (m Metadata) Fill(book *models.Book, now time.Time) map[string]interface{} {
	patch := map[string]interface{}{}
	if book.Title == "" && m.Title != "" {
		book.Title = m.Title
		patch["title"] = m.Title
	}
	if book.Author == "" && len(m.Authors) > 0 {
		book.Author = strings.Join(m.Authors, ", ")
		patch["author"] = book.Author
	}
	if book.Description == "" && m.Description != "" {
		book.Description = m.Description
		patch["description"] = m.Description
	}
	if book.Year == 0 && m.PublishYear != 0 {
		book.Year = m.PublishYear
		patch["year"] = m.PublishYear
	}
	if book.Publisher == "" && m.Publisher != "" {
		book.Publisher = m.Publisher
		patch["publisher"] = m.Publisher
	}
	if book.PageCount == 0 && m.PageCount != 0 {
		book.PageCount = m.PageCount
		patch["page_count"] = m.PageCount
	}
	if book.CoverURL == "" && m.CoverURL != "" {
		book.CoverURL = m.CoverURL
		patch["cover_url"] = m.CoverURL
	}
	if book.Subjects == "" && len(m.Subjects) > 0 {
		book.Subjects = strings.Join(m.Subjects, ",")
		patch["subjects"] = book.Subjects
	}
	if book.Genre == "" && len(m.Subjects) > 0 {
		book.Genre = m.Subjects[0]
		patch["genre"] = book.Genre
	}
	book.EnrichedAt = &now
	patch["enriched_at"] = now
	return patch
}

// text decodes Open Library values that appear either as a bare string or as
// an object carrying "value" or "name".
type text string

func (t *text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = text(s)
		return nil
	}
	var obj struct {
		Value string `json:"value"`
		Name  string `json:"name"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	if obj.Value != "" {
		*t = text(obj.Value)
	} else {
		*t = text(obj.Name)
	}
	return nil
}

type editionDetails struct {
	Title         string `json:"title"`
	Authors       []text `json:"authors"`
	PublishDate   string `json:"publish_date"`
	NumberOfPages int    `json:"number_of_pages"`
	Publishers    []text `json:"publishers"`
	Description   text   `json:"description"`
	Subjects      []text `json:"subjects"`
}

func (d editionDetails) metadata(isbn string, covers func(isbn, size string) string) *Metadata {
	m := &Metadata{
		ISBN:          isbn,
		Title:         d.Title,
		PageCount:     d.NumberOfPages,
		Description:   string(d.Description),
		CoverURL:      covers(isbn, "M"),
		SmallCoverURL: covers(isbn, "S"),
		LargeCoverURL: covers(isbn, "L"),
	}
	for _, a := range d.Authors {
		name := string(a)
		if name == "" {
			name = "Unknown Author"
		}
		m.Authors = append(m.Authors, name)
	}
	if y := yearPattern.FindString(d.PublishDate); y != "" {
		m.PublishYear, _ = strconv.Atoi(y)
	}
	if len(d.Publishers) > 0 {
		m.Publisher = string(d.Publishers[0])
	}
	for _, s := range d.Subjects {
		if len(m.Subjects) == maxSubjects {
			break
		}
		if s != "" {
			m.Subjects = append(m.Subjects, string(s))
		}
	}
	return m
}

// SearchResult is one hit of a free-text catalog search.
type SearchResult struct {
	Title       string   `json:"title"`
	Authors     []string `json:"authors"`
	PublishYear int      `json:"publishYear,omitempty"`
	ISBN        string   `json:"isbn,omitempty"`
	CoverURL    string   `json:"coverUrl,omitempty"`
	Publisher   string   `json:"publisher,omitempty"`
	PageCount   int      `json:"pageCount,omitempty"`
}

type searchDoc struct {
	Title               string   `json:"title"`
	AuthorName          []string `json:"author_name"`
	FirstPublishYear    int      `json:"first_publish_year"`
	ISBN                []string `json:"isbn"`
	CoverI              int      `json:"cover_i"`
	Publisher           []string `json:"publisher"`
	NumberOfPagesMedian int      `json:"number_of_pages_median"`
}
