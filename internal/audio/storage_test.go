package audio

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Messijah/PedagogiskDialog/internal/config"
	"github.com/Messijah/PedagogiskDialog/internal/models"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := NewStorage(config.AudioConfig{
		StorageDir:        filepath.Join(t.TempDir(), "audio"),
		MaxUploadMB:       1,
		AllowedExtensions: []string{"wav", ".MP3", "m4a"},
	})
	require.NoError(t, err)
	s.now = func() time.Time { return time.Date(2024, 3, 5, 14, 30, 7, 0, time.UTC) }
	return s
}

func TestFileName(t *testing.T) {
	id := uuid.MustParse("0b7e4f5c-6a8d-4f8e-9a35-1c2d3e4f5a6b")
	at := time.Date(2024, 3, 5, 14, 30, 7, 0, time.UTC)
	assert.Equal(t, "session_0b7e4f5c-6a8d-4f8e-9a35-1c2d3e4f5a6b_stage_2_20240305_143007.wav", FileName(id, 2, "wav", at))
}

func TestStorageValidate(t *testing.T) {
	s := newTestStorage(t)

	tests := []struct {
		name     string
		file     string
		size     int64
		wantExt  string
		tooLarge bool
		wantErr  bool
	}{
		{name: "wav", file: "samtal.wav", size: 10, wantExt: "wav"},
		{name: "upper case", file: "SAMTAL.Mp3", size: 10, wantExt: "mp3"},
		{name: "unsupported", file: "samtal.txt", size: 10, wantErr: true},
		{name: "no extension", file: "samtal", size: 10, wantErr: true},
		{name: "empty", file: "samtal.wav", size: 0, wantErr: true},
		{name: "too large", file: "samtal.wav", size: 2 << 20, wantErr: true, tooLarge: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ext, err := s.Validate(tt.file, tt.size)
			if !tt.wantErr {
				require.NoError(t, err)
				assert.Equal(t, tt.wantExt, ext)
				return
			}
			var ve *models.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.tooLarge, ve.TooLarge)
		})
	}
}

func TestStorageSaveIsWriteOnce(t *testing.T) {
	s := newTestStorage(t)
	id := uuid.New()

	first, err := s.Save(id, 2, "samtal.wav", strings.NewReader("första"), 6)
	require.NoError(t, err)
	second, err := s.Save(id, 2, "samtal.wav", strings.NewReader("andra"), 5)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	assert.True(t, strings.HasPrefix(first, "session_"+id.String()+"_stage_2_20240305_143007"))

	path, err := s.Path(first)
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "första", string(data))
}

func TestStorageSaveEnforcesLimitOnContent(t *testing.T) {
	s := newTestStorage(t)

	_, err := s.Save(uuid.New(), 1, "samtal.wav", bytes.NewReader(make([]byte, 2<<20)), -1)
	var ve *models.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.True(t, ve.TooLarge)

	names, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestStoragePathRejectsTraversal(t *testing.T) {
	s := newTestStorage(t)

	for _, name := range []string{"", "../etc/passwd", ".hidden", "a/b.wav", "missing.wav"} {
		_, err := s.Path(name)
		assert.ErrorIs(t, err, models.ErrAudioNotFound, name)
	}
}

func TestStorageOrphans(t *testing.T) {
	s := newTestStorage(t)
	id := uuid.New()

	kept, err := s.Save(id, 1, "a.wav", strings.NewReader("a"), 1)
	require.NoError(t, err)
	orphan, err := s.Save(id, 2, "b.wav", strings.NewReader("b"), 1)
	require.NoError(t, err)

	orphans, err := s.Orphans([]string{kept})
	require.NoError(t, err)
	assert.Equal(t, []string{orphan}, orphans)
}
