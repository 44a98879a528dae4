package meta

import (
	"encoding/json"
	"errors"
	"fmt"
)

// MusicCategory is the tracker category catalogued as a release; torrents in
// any other category are recorded as non-music.
const MusicCategory = 1

// ErrMalformed indicates a torrent payload that cannot be catalogued
var ErrMalformed = errors.New("malformed torrent response")

// TorrentResponse is the "response" object of ajax.php?action=torrent
type TorrentResponse struct {
	Group   *Group   `json:"group"`
	Torrent *Torrent `json:"torrent"`
}

// Group is the release group a torrent belongs to
type Group struct {
	ID              int64               `json:"id"`
	Name            string              `json:"name"`
	Year            int                 `json:"year"`
	RecordLabel     string              `json:"recordLabel"`
	CatalogueNumber string              `json:"catalogueNumber"`
	CategoryID      int                 `json:"categoryId"`
	CategoryName    string              `json:"categoryName"`
	MusicInfo       map[string][]Artist `json:"musicInfo"`
	Tags            []string            `json:"tags"`
}

// Artist is one credited artist inside a musicInfo role
type Artist struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Torrent is the individual encode inside a group
type Torrent struct {
	ID                      int64  `json:"id"`
	Media                   string `json:"media"`
	Format                  string `json:"format"`
	Encoding                string `json:"encoding"`
	Remastered              bool   `json:"remastered"`
	RemasterYear            int    `json:"remasterYear"`
	RemasterTitle           string `json:"remasterTitle"`
	RemasterRecordLabel     string `json:"remasterRecordLabel"`
	RemasterCatalogueNumber string `json:"remasterCatalogueNumber"`
	HasLog                  bool   `json:"hasLog"`
	LogScore                *int   `json:"logScore"`
	HasCue                  bool   `json:"hasCue"`
	Size                    int64  `json:"size"`
	InfoHash                string `json:"infoHash"`
	Description             string `json:"description"`
	FilePath                string `json:"filePath"`
}

// Parse decodes a torrent payload. A payload missing its group or torrent,
// or with fields of the wrong type, yields an error wrapping ErrMalformed.
func Parse(raw []byte) (*TorrentResponse, error) {
	var resp TorrentResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if resp.Group == nil {
		return nil, fmt.Errorf("%w: missing group", ErrMalformed)
	}
	if resp.Torrent == nil {
		return nil, fmt.Errorf("%w: missing torrent", ErrMalformed)
	}
	return &resp, nil
}

// Qualifies reports whether the torrent is a music release
func (r *TorrentResponse) Qualifies() bool {
	return r.Group.CategoryID == MusicCategory
}
