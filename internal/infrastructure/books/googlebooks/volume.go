package googlebooks

import (
	"strconv"
	"strings"

	"github.com/kirillkom/bookbot/internal/core/domain"
)

type volumesResponse struct {
	TotalItems int      `json:"totalItems"`
	Items      []volume `json:"items"`
}

type volume struct {
	ID         string     `json:"id"`
	VolumeInfo volumeInfo `json:"volumeInfo"`
}

type volumeInfo struct {
	Title               string   `json:"title"`
	Subtitle            string   `json:"subtitle"`
	Authors             []string `json:"authors"`
	PublishedDate       string   `json:"publishedDate"`
	Description         string   `json:"description"`
	PageCount           int      `json:"pageCount"`
	Categories          []string `json:"categories"`
	IndustryIdentifiers []struct {
		Type       string `json:"type"`
		Identifier string `json:"identifier"`
	} `json:"industryIdentifiers"`
	ImageLinks struct {
		SmallThumbnail string `json:"smallThumbnail"`
		Thumbnail      string `json:"thumbnail"`
	} `json:"imageLinks"`
}

func (v volume) toMetadata() domain.BookMetadata {
	info := v.VolumeInfo
	genres := info.Categories
	if genres == nil {
		genres = []string{}
	}
	return domain.BookMetadata{
		Title:           strings.TrimSpace(info.Title),
		Author:          strings.Join(info.Authors, ", "),
		ExternalID:      v.ID,
		ISBN:            info.isbn(),
		CoverURL:        info.cover(),
		Genres:          genres,
		PublicationYear: parseYear(info.PublishedDate),
		Description:     strings.TrimSpace(info.Description),
		PageCount:       info.PageCount,
	}
}

// isbn prefers ISBN-13 over ISBN-10.
func (i volumeInfo) isbn() string {
	var isbn10 string
	for _, id := range i.IndustryIdentifiers {
		switch id.Type {
		case "ISBN_13":
			return id.Identifier
		case "ISBN_10":
			isbn10 = id.Identifier
		}
	}
	return isbn10
}

func (i volumeInfo) cover() string {
	link := i.ImageLinks.Thumbnail
	if link == "" {
		link = i.ImageLinks.SmallThumbnail
	}
	if strings.HasPrefix(link, "http://") {
		link = "https://" + strings.TrimPrefix(link, "http://")
	}
	return link
}

// parseYear reads the leading year of "2003", "2003-05" or "2003-05-01".
func parseYear(published string) int {
	if len(published) < 4 {
		return 0
	}
	year, err := strconv.Atoi(published[:4])
	if err != nil {
		return 0
	}
	return year
}
