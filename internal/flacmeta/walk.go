// Package flacmeta implements the FLAC metadata block walker (spec §4.2):
// it iterates METADATA_BLOCK entries after the "fLaC" magic, extracting
// VORBIS_COMMENT, PICTURE, and PADDING blocks and skipping everything else,
// stopping once the last-block bit is seen.
package flacmeta

import (
	"github.com/master-kurosawa/music-maid/internal/ioreader"
	"github.com/master-kurosawa/music-maid/internal/picture"
	"github.com/master-kurosawa/music-maid/internal/store"
	"github.com/master-kurosawa/music-maid/internal/vorbis"
)

const (
	blockStreamInfo    = 0
	blockPadding       = 1
	blockApplication   = 2
	blockSeekTable     = 3
	blockVorbisComment = 4
	blockCueSheet      = 5
	blockPicture       = 6

	lastBlockMask = 0x80
	typeMask      = 0x7F
)

// Result bundles everything a FLAC file's metadata blocks yielded. Comments
// and Metas are parallel slices: Comments[i] belongs to Metas[i]. A FLAC
// file normally carries at most one VORBIS_COMMENT block, but the walker
// places no such limit on the format.
type Result struct {
	Metas    []store.VorbisMeta
	Comments [][]store.VorbisComment
	Pictures []store.Picture
	Paddings []store.Padding
}

// Walk consumes metadata blocks from r until the last-block bit is set. r
// must already have consumed the 4-byte "fLaC" magic.
func Walk(r *ioreader.Reader) (Result, error) {
	var res Result

	for {
		header, err := r.GetBytes(4)
		if err != nil {
			return Result{}, err
		}
		last := header[0]&lastBlockMask != 0
		blockType := header[0] & typeMask
		blockLen := int(header[1])<<16 | int(header[2])<<8 | int(header[3])

		switch blockType {
		case blockVorbisComment:
			blockOffset := r.Offset()
			body, err := r.GetBytes(blockLen)
			if err != nil {
				return Result{}, err
			}
			meta, comments, err := vorbis.ParseBlock(r.Path, body, blockOffset)
			if err != nil {
				return Result{}, err
			}
			res.Metas = append(res.Metas, meta)
			res.Comments = append(res.Comments, comments)

		case blockPicture:
			blockOffset := r.Offset()
			pic, err := picture.ParseNative(r)
			if err != nil {
				return Result{}, err
			}
			consumed := r.Offset() - blockOffset
			if consumed < int64(blockLen) {
				if err := r.Skip(int64(blockLen) - consumed); err != nil {
					return Result{}, err
				}
			}
			pic.FilePtr = blockOffset
			res.Pictures = append(res.Pictures, pic)

		case blockPadding:
			res.Paddings = append(res.Paddings, store.Padding{
				FilePtr:  r.Offset(),
				ByteSize: int64(blockLen),
			})
			if err := r.Skip(int64(blockLen)); err != nil {
				return Result{}, err
			}

		default:
			if err := r.Skip(int64(blockLen)); err != nil {
				return Result{}, err
			}
		}

		if last {
			return res, nil
		}
	}
}
