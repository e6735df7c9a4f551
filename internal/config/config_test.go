package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/keystrokes/internal/input"
	"github.com/dshills/keystrokes/internal/input/combo"
)

const sampleTOML = `
sequence_timeout = "750ms"
self_releasing_keys = ["meta"]

[key_remap]
control = "ctrl"

[[bindings]]
combo = "ctrl+s"
action = "save"
description = "Save"

[[bindings]]
combo = "ctrl+k > ctrl+c"
action = "comment"
`

const sampleYAML = `
sequence_timeout: 750ms
self_releasing_keys: [meta]
key_remap:
  control: ctrl
bindings:
  - combo: ctrl+s
    action: save
    description: Save
  - combo: ctrl+k > ctrl+c
    action: comment
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFormats(t *testing.T) {
	dir := t.TempDir()
	for _, path := range []string{
		writeFile(t, dir, "keys.toml", sampleTOML),
		writeFile(t, dir, "keys.yaml", sampleYAML),
		writeFile(t, dir, "keys.yml", sampleYAML),
	} {
		t.Run(filepath.Base(path), func(t *testing.T) {
			f, err := Load(path)
			require.NoError(t, err)

			assert.Equal(t, 750*time.Millisecond, time.Duration(f.SequenceTimeout))
			assert.Equal(t, []string{"meta"}, f.SelfReleasingKeys)
			assert.Equal(t, map[string]string{"control": "ctrl"}, f.KeyRemap)
			require.Len(t, f.Bindings, 2)
			assert.Equal(t, Binding{Combo: "ctrl+s", Action: "save", Description: "Save"}, f.Bindings[0])
			assert.Equal(t, "comment", f.Bindings[1].Action)
		})
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(writeFile(t, dir, "keys.json", "{}"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = Load(filepath.Join(dir, "missing.toml"))
	assert.ErrorIs(t, err, ErrFileNotFound)

	_, err = Load(writeFile(t, dir, "broken.toml", "sequence_timeout = \n"))
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 1, pe.Line)

	_, err = Load(writeFile(t, dir, "broken.yaml", "bindings:\n  - combo: [\n"))
	require.ErrorAs(t, err, &pe)
	assert.Contains(t, pe.Error(), "broken.yaml")
}

func TestParseRejectsBadDuration(t *testing.T) {
	_, err := Parse([]byte(`sequence_timeout = "soon"`), FormatTOML)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	_, err := Parse([]byte(`
bindings:
  - combo: "a++b"
    action: broken
  - combo: "a"
`), FormatYAML)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidationFailed)
	assert.ErrorIs(t, err, combo.ErrConsecutiveOperators)

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "bindings[0].combo", ve.Field)
	assert.Contains(t, err.Error(), "bindings[1].action")
}

func TestApply(t *testing.T) {
	f, err := Parse([]byte(sampleTOML), FormatTOML)
	require.NoError(t, err)

	base := input.DefaultOptions()
	base.KeyRemap = map[string]string{"option": "alt"}

	opts := f.Apply(base)
	assert.Equal(t, 750*time.Millisecond, opts.SequenceTimeout)
	assert.Equal(t, []string{"meta"}, opts.SelfReleasingKeys)
	assert.Equal(t, map[string]string{"option": "alt", "control": "ctrl"}, opts.KeyRemap)
	assert.Equal(t, map[string]string{"option": "alt"}, base.KeyRemap)

	empty := (&File{}).Apply(base)
	assert.Equal(t, input.DefaultSequenceTimeout, empty.SequenceTimeout)
}

func TestEncodeRoundTrip(t *testing.T) {
	f, err := Parse([]byte(sampleTOML), FormatTOML)
	require.NoError(t, err)

	for _, format := range []Format{FormatTOML, FormatYAML} {
		data, err := f.Encode(format)
		require.NoError(t, err)
		back, err := Parse(data, format)
		require.NoError(t, err)
		assert.Equal(t, f, back, string(format))
	}

	_, err = f.Encode("ini")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestWatchReloads(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "keys.toml", sampleTOML)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loaded := make(chan *File, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func(f *File) {
			select {
			case loaded <- f:
			default:
			}
		}, WithDebounce(20*time.Millisecond))
	}()

	// Keep rewriting until the watcher is registered and reports back.
	update := `
[[bindings]]
combo = "ctrl+q"
action = "quit"
`
	var got *File
	require.Eventually(t, func() bool {
		_ = os.WriteFile(path, []byte(update), 0o644)
		select {
		case got = <-loaded:
			// A reload may observe the truncated file first.
			return len(got.Bindings) == 1
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, "quit", got.Bindings[0].Action)

	cancel()
	assert.True(t, errors.Is(<-done, context.Canceled))
}

func TestWatchReportsInvalidFiles(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "keys.yaml", sampleYAML)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	failures := make(chan error, 4)
	go func() {
		_ = Watch(ctx, path, func(*File) {},
			WithDebounce(20*time.Millisecond),
			WithErrorHandler(func(err error) {
				select {
				case failures <- err:
				default:
				}
			}))
	}()

	require.Eventually(t, func() bool {
		_ = os.WriteFile(path, []byte("bindings:\n  - combo: \"a>\"\n    action: x\n"), 0o644)
		select {
		case err := <-failures:
			return errors.Is(err, combo.ErrTrailingOperator)
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)
}

func TestWatchRejectsUnknownFormat(t *testing.T) {
	err := Watch(context.Background(), "keys.ini", func(*File) {})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}
