package registry

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_SwapPublishesAtomically(t *testing.T) {
	old := NewSnapshot([]PractitionerRecord{{RegistrationNumber: "1"}}, nil)
	next := NewSnapshot([]PractitionerRecord{{RegistrationNumber: "2"}}, []PractitionerRecord{{RegistrationNumber: "3"}})
	s := NewStore(old, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				snap := s.Current()
				_, has1 := snap.ActiveByNumber("1")
				_, has2 := snap.ActiveByNumber("2")
				_, has3 := snap.BlacklistedByNumber("3")
				// A reader sees exactly one of the two registries.
				if has1 == has2 || has2 != has3 {
					t.Errorf("observed mixed snapshot: 1=%v 2=%v 3=%v", has1, has2, has3)
					return
				}
			}
		}()
	}
	for j := 0; j < 100; j++ {
		if j%2 == 0 {
			s.Swap(next)
		} else {
			s.Swap(old)
		}
	}
	wg.Wait()
}

func TestStore_NilSnapshotIsEmpty(t *testing.T) {
	s := NewStore(nil, nil)
	a, b := s.Current().Len()
	assert.Zero(t, a)
	assert.Zero(t, b)

	prev := s.Swap(nil)
	assert.NotNil(t, prev)
	assert.NotNil(t, s.Current())
}

func TestStore_Reload(t *testing.T) {
	dir := t.TempDir()
	active := filepath.Join(dir, "active.csv")
	require.NoError(t, os.WriteFile(active, []byte("registration_number\n1\n"), 0o600))

	loader := NewLoader(FileSource{Path: active}, nil, zerolog.Nop())
	snap, _ := loader.Load(context.Background())
	s := NewStore(snap, loader)

	var reloads int
	s.OnReload(func(LoadReport) { reloads++ })

	_, ok := s.LastReport()
	assert.False(t, ok)

	require.NoError(t, os.WriteFile(active, []byte("registration_number\n1\n2\n"), 0o600))
	rep := s.Reload(context.Background())

	assert.Equal(t, 2, rep.Authorized.Records)
	_, ok = s.Current().ActiveByNumber("2")
	assert.True(t, ok)
	assert.Equal(t, 1, reloads)

	last, ok := s.LastReport()
	require.True(t, ok)
	assert.Equal(t, rep.LoadedAt, last.LoadedAt)
}

func TestStore_FailedReloadKeepsPreviousBlacklist(t *testing.T) {
	dir := t.TempDir()
	active := writeFile(t, dir, "active.csv", "registration_number\n1001\n")
	black := writeFile(t, dir, "black.csv", "registration_number,state_medical_council\nBL-9,Bihar Medical Council\n")

	s := NewStore(nil, NewLoader(FileSource{Path: active}, FileSource{Path: black}, zerolog.Nop()))
	rep := s.Reload(context.Background())
	require.False(t, rep.Degraded())
	_, ok := s.Current().BlacklistedByNumber("BL-9")
	require.True(t, ok)

	require.NoError(t, os.Remove(black))
	require.NoError(t, os.WriteFile(active, []byte("registration_number\n1001\n1002\n"), 0o600))
	rep = s.Reload(context.Background())

	assert.True(t, rep.Degraded())
	assert.NotEmpty(t, rep.Blacklisted.Error)
	assert.True(t, rep.Blacklisted.Retained)
	assert.Equal(t, 1, rep.Blacklisted.Records)
	assert.False(t, rep.Authorized.Retained)

	snap := s.Current()
	_, ok = snap.BlacklistedByNumber("BL-9")
	assert.True(t, ok, "blacklist survives a failed reload")
	_, ok = snap.BlacklistedByCouncil("bihar medical council")
	assert.True(t, ok)
	_, ok = snap.ActiveByNumber("1002")
	assert.True(t, ok, "the healthy source is still refreshed")
}

func TestStore_FailedFirstLoadDegradesToEmpty(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(nil, NewLoader(nil, FileSource{Path: filepath.Join(dir, "missing.csv")}, zerolog.Nop()))

	rep := s.Reload(context.Background())
	assert.True(t, rep.Degraded())
	assert.False(t, rep.Blacklisted.Retained)
	_, b := s.Current().Len()
	assert.Zero(t, b)
}

func TestStore_MalformedReloadKeepsPreviousRecords(t *testing.T) {
	dir := t.TempDir()
	black := writeFile(t, dir, "black.csv", "registration_number\nBL-1\n")

	s := NewStore(nil, NewLoader(nil, FileSource{Path: black}, zerolog.Nop()))
	s.Reload(context.Background())

	// a half-written replacement with only part of the header
	require.NoError(t, os.WriteFile(black, []byte("regis"), 0o600))
	rep := s.Reload(context.Background())

	assert.True(t, rep.Blacklisted.Retained)
	_, ok := s.Current().BlacklistedByNumber("BL-1")
	assert.True(t, ok)
}

func TestStore_TruncatedReloadKeepsPreviousRecords(t *testing.T) {
	dir := t.TempDir()
	black := writeFile(t, dir, "black.csv", "registration_number\nBL-1\n")

	s := NewStore(nil, NewLoader(nil, FileSource{Path: black}, zerolog.Nop()))
	s.Reload(context.Background())

	require.NoError(t, os.WriteFile(black, nil, 0o600))
	rep := s.Reload(context.Background())

	assert.True(t, rep.Degraded())
	assert.True(t, rep.Blacklisted.Retained)
	_, ok := s.Current().BlacklistedByNumber("BL-1")
	assert.True(t, ok)
}

func TestStore_ReloadWithoutLoader(t *testing.T) {
	s := NewStore(fixtureSnapshot(), nil)
	rep := s.Reload(context.Background())
	assert.Zero(t, rep.Authorized.Records)
	a, _ := s.Current().Len()
	assert.Equal(t, 3, a, "snapshot unchanged")
}

func TestWatcher_Relevant(t *testing.T) {
	w := NewWatcher(NewStore(nil, nil), []string{"/srv/reg/active.csv", "s3://b/k.csv", ""}, zerolog.Nop())

	assert.Len(t, w.files, 1)
	assert.True(t, w.relevant(fsnotify.Event{Name: "/srv/reg/active.csv", Op: fsnotify.Write}))
	assert.True(t, w.relevant(fsnotify.Event{Name: "/srv/reg/./active.csv", Op: fsnotify.Create}))
	assert.False(t, w.relevant(fsnotify.Event{Name: "/srv/reg/other.csv", Op: fsnotify.Write}))
	assert.False(t, w.relevant(fsnotify.Event{Name: "/srv/reg/active.csv", Op: fsnotify.Chmod}))
}

func TestWatcher_RunWithNoFilesReturns(t *testing.T) {
	w := NewWatcher(NewStore(nil, nil), nil, zerolog.Nop())
	assert.NoError(t, w.Run(context.Background()))
}

func TestWatcher_ReloadsOnFileChange(t *testing.T) {
	dir := t.TempDir()
	active := writeFile(t, dir, "active.csv", "registration_number\n1\n")

	s := NewStore(nil, NewLoader(FileSource{Path: active}, nil, zerolog.Nop()))
	s.Reload(context.Background())

	reloaded := make(chan LoadReport, 16)
	s.OnReload(func(rep LoadReport) { reloaded <- rep })

	w := NewWatcher(s, []string{active}, zerolog.Nop())
	w.debounce = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	defer func() {
		cancel()
		assert.NoError(t, <-done)
	}()

	// The watch is registered asynchronously, so keep rewriting the file
	// until a reload is observed.
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case rep := <-reloaded:
			// an event may land between truncate and write; that reload
			// keeps the old records and the next one picks up the change
			if _, ok := s.Current().ActiveByNumber("2"); ok {
				assert.Equal(t, 2, rep.Authorized.Records)
				return
			}
		case <-tick.C:
			require.NoError(t, os.WriteFile(active, []byte("registration_number\n1\n2\n"), 0o600))
		case <-deadline:
			t.Fatal("no reload after writing the watched file")
		}
	}
}
