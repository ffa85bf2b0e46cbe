// Package store holds the relational data model (spec §3) and the two
// components that sit on either side of it: the batching write-back queue
// (spec §5/§4's component I) and the sqlx/sqlite-backed persistence layer
// (component K). Every other package produces or consumes these structs
// without depending on how they are eventually stored.
package store

import "database/sql"

// AudioFile is created once per ingested file and is immutable after insert.
type AudioFile struct {
	ID     int64  `db:"id"`
	Path   string `db:"path"`
	Name   string `db:"name"`
	Format string `db:"format"` // "flac", "opus", or "ogg"
}

const (
	FormatFLAC = "flac"
	FormatOpus = "opus"
	FormatOgg  = "ogg"
)

// VorbisMeta describes one logical Vorbis comment block: one per FLAC
// VORBIS_COMMENT metadata block, or one per Opus comment header.
type VorbisMeta struct {
	ID               int64  `db:"id"`
	FileID           int64  `db:"file_id"`
	FilePtr          int64  `db:"file_ptr"`           // absolute offset of the block
	EndPtr           int64  `db:"end_ptr"`             // first byte after the comment list
	CommentAmountPtr int64  `db:"comment_amount_ptr"`  // offset of the little-endian comment count
	Vendor           string `db:"vendor"`
}

// VorbisComment is one KEY=VALUE entry. Value is absent when the comment is
// oversized (spans more than one Ogg page); LastOggHeaderPtr then locates the
// page holding the comment's length field, so the value can be streamed back
// out later without ever being materialized (spec §4.4).
type VorbisComment struct {
	ID                int64          `db:"id"`
	MetaID            int64          `db:"meta_id"`
	Key               string         `db:"key"`
	Value             sql.NullString `db:"value"`
	FilePtr           int64          `db:"file_ptr"`
	LastOggHeaderPtr  sql.NullInt64  `db:"last_ogg_header_ptr"`
	Size              int64          `db:"size"` // on-disk byte count of (u32 length, payload)
}

// Picture records a FLAC PICTURE block's structural metadata. VorbisComment
// is true when this picture was discovered inside an Opus
// metadata_block_picture comment rather than as a native FLAC block.
type Picture struct {
	ID                  int64  `db:"id"`
	FileID              int64  `db:"file_id"`
	FilePtr             int64  `db:"file_ptr"`
	PictureType         uint32 `db:"picture_type"`
	MIME                string `db:"mime"`
	Description         string `db:"description"`
	Width               uint32 `db:"width"`
	Height              uint32 `db:"height"`
	ColorDepth          uint32 `db:"color_depth"`
	IndexedColorNumber  uint32 `db:"indexed_color_number"`
	Size                uint32 `db:"size"`
	VorbisComment       bool   `db:"vorbis_comment"`
}

// Padding records a PADDING metadata block or trailing zeroed Ogg padding.
type Padding struct {
	ID       int64 `db:"id"`
	FileID   int64 `db:"file_id"`
	FilePtr  int64 `db:"file_ptr"`
	ByteSize int64 `db:"byte_size"`
}

// AudioFileMeta bundles everything extracted from one file, the unit the
// ingest pipeline hands to the write-back queue (spec §5's "batch extracted
// records"). FileID fields are left zero until the queue's writer assigns
// the AudioFile its id during insert.
type AudioFileMeta struct {
	File     AudioFile
	Metas    []VorbisMeta
	Comments [][]VorbisComment // Comments[i] belongs to Metas[i]
	Pictures []Picture
	Paddings []Padding
}
