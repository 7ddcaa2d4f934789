package bnk

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"haruki-wwise-audio/utils/wwisecodecs/bnk/bnktest"
	"haruki-wwise-audio/utils/wwisecodecs/hashid"
	"haruki-wwise-audio/utils/wwisecodecs/riff"
	"haruki-wwise-audio/utils/wwisecodecs/riff/rifftest"
	"haruki-wwise-audio/utils/wwisecodecs/wem"
)

func pcmMedia(payload []byte) []byte {
	return rifftest.Build(
		rifftest.FMT(riff.FormatPCM, 1, 48000, 96000, 2, 16, nil),
		rifftest.Data(payload),
	)
}

func writeTemp(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestKinds(t *testing.T) {
	assert.Equal(t, KindHIRC, KindOf("HIRC"))
	assert.Equal(t, KindAKPK, KindOf("AKPK"))
	assert.Equal(t, KindUnknown, KindOf("ABCD"))
	assert.Equal(t, "DIDX", KindDIDX.String())
	assert.Equal(t, "Unknown", KindUnknown.String())

	typ, err := ParseEntryType("Embedded")
	require.NoError(t, err)
	assert.Equal(t, TypeEmbeddedSound, typ)
	_, err = ParseEntryType("music")
	assert.Error(t, err)
	assert.Equal(t, "external", TypeExternal.String())
}

func TestStandaloneBank(t *testing.T) {
	media := pcmMedia([]byte{1, 2, 3, 4})
	bankID := hashid.Hash32("bank_a")
	eventID := hashid.Hash32("play_a")
	head := bnktest.Bank(
		bnktest.BKHD(0x88, bankID, 0, 16),
		bnktest.STID(bnktest.Name{ID: bankID, Name: "bank_a"}),
		bnktest.DIDX(bnktest.Media{ID: 1234, Offset: 0, Size: int32(len(media))}),
	)
	file := bnktest.Bank(
		head,
		bnktest.DATA(media),
		bnktest.HIRC(
			bnktest.Object{Type: uint8(HIRCEvent), ID: eventID, Payload: []byte{0}},
			bnktest.Object{Type: uint8(HIRCSound), ID: 77},
		),
	)
	path := writeTemp(t, "bank_a.bnk", file)

	session := hashid.NewSession()
	a, err := LoadFile(path, session)
	require.NoError(t, err)
	require.NotNil(t, a.Bank)
	assert.Nil(t, a.Package)
	require.Len(t, a.Entries, 2)

	bank := a.Bank
	assert.Equal(t, TypeBank, bank.Type())
	assert.Equal(t, "bank_a", bank.Name())
	assert.Equal(t, "None/bank_a.bnk", bank.Location(true))
	source, offset, size, ok := bank.ByteRange()
	assert.True(t, ok)
	assert.Equal(t, path, source)
	assert.Equal(t, int64(0), offset)
	assert.Equal(t, int64(len(file)), size)

	var kinds []Kind
	for _, c := range bank.Chunks() {
		kinds = append(kinds, c.Kind())
	}
	assert.Equal(t, []Kind{KindBKHD, KindSTID, KindDIDX, KindDATA, KindHIRC}, kinds)

	sound, ok := a.Entries[1].(*EmbeddedSound)
	require.True(t, ok)
	assert.Same(t, bank, sound.Bank())
	assert.Equal(t, "None/bank_a/1234.wem", sound.Location(false))
	assert.Equal(t, "None/bank_a/1234.wav", sound.Location(true))
	_, offset, _, ok = sound.ByteRange()
	require.True(t, ok)
	assert.Equal(t, int64(len(head)+8), offset)

	var out bytes.Buffer
	n, err := sound.WriteTo(&out)
	require.NoError(t, err)
	assert.Equal(t, int64(len(media)), n)
	assert.Equal(t, media, out.Bytes())

	hirc, ok := bank.HIRC()
	require.True(t, ok)
	assert.Same(t, bank, hirc.Bank)
	require.Len(t, hirc.Events(), 1)
	obj, ok := hirc.Object(77)
	require.True(t, ok)
	assert.Equal(t, HIRCSound, obj.Type)
	assert.True(t, session.IDs32().TryMatch("play_a"))

	keys := bank.Describe().Keys()
	assert.Equal(t, []string{"ID", "Name", "Folder", "Offset", "Size", "Version", "LanguageID", "Chunks", "Sounds", "Objects", "Events"}, keys)
}

func TestAudioEntryCachesMedia(t *testing.T) {
	media := pcmMedia([]byte{5, 6})
	path := writeTemp(t, "b.bnk", bnktest.Bank(
		bnktest.BKHD(0x88, 1, 0, 16),
		bnktest.DIDX(bnktest.Media{ID: 9, Size: int32(len(media))}),
		bnktest.DATA(media),
	))
	a, err := LoadFile(path, hashid.NewSession())
	require.NoError(t, err)
	sound := a.Entries[1].(*EmbeddedSound)

	first, err := sound.Media()
	require.NoError(t, err)
	assert.Equal(t, wem.CodecPCM, first.Codec)
	second, err := sound.Media()
	require.NoError(t, err)
	assert.Same(t, first, second)

	sound.Release()
	third, err := sound.Media()
	require.NoError(t, err)
	assert.NotSame(t, first, third)
}

func TestChunkOverrunIsSkipped(t *testing.T) {
	overrun := bnktest.Chunk("DATA", []byte{1, 2, 3, 4})
	overrun[4] = 0xFF
	file := bnktest.Bank(
		bnktest.BKHD(0x88, 42, 0, 16),
		bnktest.DIDX(bnktest.Media{ID: 7, Size: 4}),
		overrun,
	)
	path := writeTemp(t, "broken.bnk", file)
	a, err := LoadFile(path, hashid.NewSession())
	require.NoError(t, err)
	require.Len(t, a.Entries, 2)
	_, ok := a.Bank.DATA()
	assert.False(t, ok)

	sound := a.Entries[1].(*EmbeddedSound)
	assert.Nil(t, sound.Bank())
	_, _, _, ok = sound.ByteRange()
	assert.False(t, ok)
	_, err = sound.Open()
	assert.ErrorIs(t, err, ErrStructural)
	assert.Equal(t, "None/None/7.wem", sound.Location(false))
}

func TestUnsupportedArchive(t *testing.T) {
	path := writeTemp(t, "x.wem", pcmMedia([]byte{0, 0}))
	_, err := LoadFile(path, hashid.NewSession())
	assert.ErrorIs(t, err, ErrUnsupported)

	path = writeTemp(t, "tiny", []byte{1, 2})
	_, err = LoadFile(path, hashid.NewSession())
	assert.ErrorIs(t, err, ErrStructural)
}

func TestPackage(t *testing.T) {
	media := pcmMedia([]byte{1, 2, 3, 4, 5, 6})
	bankBytes := bnktest.Bank(
		bnktest.BKHD(0x88, hashid.Hash32("bank_b"), 0, 16),
		bnktest.DIDX(bnktest.Media{ID: 31, Size: int32(len(media))}),
		bnktest.DATA(media),
	)
	externalID := hashid.Hash64("music/bgm.wav")
	pkg := bnktest.Package{
		Folders:   []bnktest.Folder{{ID: 1, Name: "sfx"}, {ID: 2, Name: "日本語"}},
		Banks:     []bnktest.File{{ID: uint64(hashid.Hash32("bank_b")), Folder: 1, Data: bankBytes}},
		Sounds:    []bnktest.File{{ID: 555, Folder: 2, Data: media}},
		Externals: []bnktest.File{{ID: externalID, Folder: 1, Data: media}},
	}
	path := writeTemp(t, "sfx.pck", pkg.Bytes())

	session := hashid.NewSession()
	a, err := LoadFile(path, session)
	require.NoError(t, err)
	require.NotNil(t, a.Package)
	p := a.Package
	assert.Equal(t, []Folder{{ID: 1, Name: "sfx"}, {ID: 2, Name: "日本語"}}, p.Folders)
	require.Len(t, p.Banks, 1)
	require.Len(t, p.Sounds, 1)
	require.Len(t, p.Externals, 1)
	require.Len(t, a.Entries, 4)

	bank := p.Banks[0]
	assert.True(t, p.Contains(bank))
	assert.Equal(t, "sfx", bank.Folder().Name)
	assert.True(t, session.IDs32().TryMatch("bank_b"))
	assert.Equal(t, "sfx/bank_b.bnk", bank.Location(false))

	embedded := a.Entries[1].(*EmbeddedSound)
	assert.Equal(t, "sfx/bank_b/31.wem", embedded.Location(false))

	sound := p.Sounds[0]
	assert.Equal(t, "日本語/555.wem", sound.Location(false))

	external := p.Externals[0]
	assert.Equal(t, "sfx/"+session.IDs64().Name(externalID)+".wem", external.Location(false))
	assert.True(t, session.IDs64().TryMatch("music/bgm.wav"))
	assert.Equal(t, "music/bgm.wem", external.Location(false))
	assert.Equal(t, "music/bgm.wav", external.Location(true))

	for _, e := range []Entry{embedded, sound, external} {
		var out bytes.Buffer
		_, err := e.WriteTo(&out)
		require.NoError(t, err)
		assert.Equal(t, media, out.Bytes(), e.Location(false))
	}
	var out bytes.Buffer
	_, err = bank.WriteTo(&out)
	require.NoError(t, err)
	assert.Equal(t, bankBytes, out.Bytes())

	assert.Equal(t, []string{"Version", "Folders", "Banks", "Sounds", "Externals"}, p.Describe().Keys())
}

func TestEmbeddedSoundFirstBankWins(t *testing.T) {
	first := &Bank{}
	first.chunks = map[Kind]Chunk{KindDATA: &DATA{BaseOffset: 100}}
	first.source = "first.bnk"
	second := &Bank{}
	second.chunks = map[Kind]Chunk{KindDATA: &DATA{BaseOffset: 500}}
	second.source = "second.bnk"

	s := &EmbeddedSound{}
	s.offset = 8
	s.setBank(&Bank{})
	assert.Nil(t, s.Bank())
	s.setBank(first)
	s.setBank(second)
	assert.Same(t, first, s.Bank())
	assert.Equal(t, int64(108), s.offset)
	assert.Equal(t, "first.bnk", s.source)
}
