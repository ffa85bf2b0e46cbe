// Package mbz extracts MusicBrainz Picard tags from a file's ingested
// Vorbis comments. See https://picard.musicbrainz.org/docs/mappings/ for
// the tag names this reads.
//
// Adapted from dhowden/tag's mbz package, which read these same tag names
// out of a generic tag.Metadata.Raw() map spanning ID3/MP4/Vorbis. This
// system only ever ingests FLAC/Ogg-Opus, so the ID3/MP4 extraction paths
// are gone; Extract now reads directly off []store.VorbisComment, the
// shape every other package in this module already works with.
package mbz

import "github.com/master-kurosawa/music-maid/internal/store"

// Info holds the MusicBrainz identifiers recovered from a file's comments.
type Info struct {
	AcoustID     string
	Album        string
	AlbumArtist  string
	Artist       string
	ReleaseGroup string
	Track        string
}

// Supported MusicBrainz Picard comment key names.
const (
	TagAcoustID     = "acoustid_id"
	TagAlbum        = "musicbrainz_albumid"
	TagAlbumArtist  = "musicbrainz_albumartistid"
	TagArtist       = "musicbrainz_artistid"
	TagReleaseGroup = "musicbrainz_releasegroupid"
	TagTrack        = "musicbrainz_recordingid"
)

func (i *Info) set(key, value string) {
	switch key {
	case TagAcoustID:
		i.AcoustID = value
	case TagAlbum:
		i.Album = value
	case TagAlbumArtist:
		i.AlbumArtist = value
	case TagArtist:
		i.Artist = value
	case TagReleaseGroup:
		i.ReleaseGroup = value
	case TagTrack:
		i.Track = value
	}
}

// Extract reads the MusicBrainz Picard tags out of comments. Vorbis
// comment keys are already lowercased at ingest time (spec §3), matching
// the constants above directly.
func Extract(comments []store.VorbisComment) *Info {
	i := &Info{}
	for _, c := range comments {
		if c.Value.Valid {
			i.set(c.Key, c.Value.String)
		}
	}
	return i
}
