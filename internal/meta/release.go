package meta

import (
	"fmt"
	"html"
	"sort"
	"strings"

	"github.com/franz/spreadred/internal/store"
)

// OriginalRelease is the edition title of a torrent that is not a remaster
const OriginalRelease = "Original Release"

// Normalize maps a parsed payload onto the rows written for one torrent.
// fallbackID is used when the payload carries no torrent id.
func Normalize(resp *TorrentResponse, fallbackID int64) *store.Release {
	g, t := resp.Group, resp.Torrent

	id := t.ID
	if id <= 0 {
		id = fallbackID
	}

	torrent := store.Torrent{
		ID:           id,
		Name:         html.UnescapeString(g.Name),
		OriginalYear: g.Year,
		Size:         t.Size,
		Source:       t.Media,
		Format:       t.Format,
		Encoding:     t.Encoding,
		LogScore:     t.LogScore,
		HasCue:       t.HasCue,
		InfoHash:     t.InfoHash,
		Description:  t.Description,
	}

	if t.Remastered {
		year := t.RemasterYear
		torrent.EditionYear = &year
		torrent.EditionTitle = t.RemasterTitle
		torrent.Label = t.RemasterRecordLabel
		torrent.CatalogNumber = t.RemasterCatalogueNumber
	} else {
		torrent.EditionTitle = OriginalRelease
		torrent.Label = g.RecordLabel
		torrent.CatalogNumber = g.CatalogueNumber
	}

	return &store.Release{
		Torrent: torrent,
		Credits: credits(id, g.MusicInfo),
		Tags:    tags(id, g.Tags),
	}
}

// credits flattens musicInfo into one credit per (artist, role). Roles are
// visited in name order so the result is stable; artists keep API order.
func credits(torrentID int64, info map[string][]Artist) []store.ArtistCredit {
	roles := make([]string, 0, len(info))
	for role := range info {
		roles = append(roles, role)
	}
	sort.Strings(roles)

	type key struct {
		artist int64
		role   string
	}
	seen := make(map[key]bool)

	var out []store.ArtistCredit
	for _, role := range roles {
		for _, a := range info[role] {
			k := key{a.ID, role}
			if seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, store.ArtistCredit{
				TorrentID: torrentID,
				ArtistID:  a.ID,
				Type:      role,
				Name:      html.UnescapeString(a.Name),
			})
		}
	}
	return out
}

func tags(torrentID int64, names []string) []store.Tag {
	seen := make(map[string]bool, len(names))

	var out []store.Tag
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, store.Tag{TorrentID: torrentID, Name: name})
	}
	return out
}

// PrimaryArtists returns the names credited in the main artist role
func PrimaryArtists(rel *store.Release) []string {
	var names []string
	for _, c := range rel.Credits {
		if c.Type == store.CreditPrimary {
			names = append(names, c.Name)
		}
	}
	return names
}

// Summary renders a release as "Artist, Artist - Name (Year) [Format]"
func Summary(rel *store.Release) string {
	t := &rel.Torrent
	return fmt.Sprintf("%s - %s (%d) [%s]",
		strings.Join(PrimaryArtists(rel), ", "), t.Name, t.OriginalYear, t.Format)
}
