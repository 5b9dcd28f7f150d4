package audio

import (
	"fmt"
	"os"

	"github.com/bogem/id3v2/v2"
	"github.com/dhowden/tag"
)

// Tags is the subset of file metadata carried from input to output.
type Tags struct {
	Title   string
	Artist  string
	Album   string
	Comment string
}

// IsEmpty reports whether no tag field is set
func (t Tags) IsEmpty() bool {
	return t == Tags{}
}

// Metadata returns the tags as ffmpeg -metadata keys.
func (t Tags) Metadata() map[string]string {
	return map[string]string{
		"title":   t.Title,
		"artist":  t.Artist,
		"album":   t.Album,
		"comment": t.Comment,
	}
}

// ReadTags reads ID3, Vorbis comment or FLAC tags from a file.
// Files without readable tags yield empty Tags.
func ReadTags(path string) Tags {
	f, err := os.Open(path)
	if err != nil {
		return Tags{}
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return Tags{}
	}

	return Tags{
		Title:   m.Title(),
		Artist:  m.Artist(),
		Album:   m.Album(),
		Comment: m.Comment(),
	}
}

// writeID3 stores tags in an MP3's ID3v2.4 header, replacing existing frames.
func writeID3(path string, tags Tags) error {
	t, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return fmt.Errorf("failed to open ID3 tag: %w", err)
	}
	defer t.Close()

	t.SetVersion(4)
	t.SetDefaultEncoding(id3v2.EncodingUTF8)

	if tags.Title != "" {
		t.SetTitle(tags.Title)
	}
	if tags.Artist != "" {
		t.SetArtist(tags.Artist)
	}
	if tags.Album != "" {
		t.SetAlbum(tags.Album)
	}
	if tags.Comment != "" {
		t.DeleteFrames(t.CommonID("Comments"))
		t.AddCommentFrame(id3v2.CommentFrame{
			Encoding:    id3v2.EncodingUTF8,
			Language:    "eng",
			Description: "",
			Text:        tags.Comment,
		})
	}

	if err := t.Save(); err != nil {
		return fmt.Errorf("failed to save ID3 tag: %w", err)
	}
	return nil
}
